package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cloo-solutions/docqa/internal/api/handlers"
	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/pagination"
	"github.com/cloo-solutions/docqa/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockIngestService struct {
	mock.Mock
}

func (m *MockIngestService) Ingest(ctx context.Context, input service.IngestInput) (*service.IngestResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.IngestResult), args.Error(1)
}

type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) List(ctx context.Context, input service.ListDocumentsInput) (*pagination.PageResult[*domain.Document], error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pagination.PageResult[*domain.Document]), args.Error(1)
}

func (m *MockDocumentService) FileURL(ctx context.Context, id int64, inline bool) (string, error) {
	args := m.Called(ctx, id, inline)
	return args.String(0), args.Error(1)
}

type MockOCRService struct {
	mock.Mock
}

func (m *MockOCRService) Start(ctx context.Context, documentID int64) (string, error) {
	args := m.Called(ctx, documentID)
	return args.String(0), args.Error(1)
}

func (m *MockOCRService) Poll(ctx context.Context, documentID int64) (*service.PollResult, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.PollResult), args.Error(1)
}

type MockAnswerService struct {
	mock.Mock
}

func (m *MockAnswerService) Ask(ctx context.Context, messages []service.Message) (service.AnswerStream, error) {
	args := m.Called(ctx, messages)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(service.AnswerStream), args.Error(1)
}

type MockEvidenceService struct {
	mock.Mock
}

func (m *MockEvidenceService) LookupEvidence(ctx context.Context, ref *domain.SourceRef) (*domain.Evidence, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Evidence), args.Error(1)
}

func newTestRouter(docs *MockDocumentService, ocr *MockOCRService) http.Handler {
	return NewRouter(RouterConfig{
		DocumentHandler: handlers.NewDocumentHandler(new(MockIngestService), docs),
		OCRHandler:      handlers.NewOCRHandler(ocr),
		ChatHandler:     handlers.NewChatHandler(new(MockAnswerService)),
		SourceHandler:   handlers.NewSourceHandler(new(MockEvidenceService)),
	})
}

func TestRouter_Health(t *testing.T) {
	router := newTestRouter(new(MockDocumentService), new(MockOCRService))

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Data["status"])
}

func TestRouter_RequestIDHeader(t *testing.T) {
	router := newTestRouter(new(MockDocumentService), new(MockOCRService))

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRouter_DocsListRoute(t *testing.T) {
	docs := new(MockDocumentService)
	docs.On("List", mock.Anything, mock.Anything).
		Return(&pagination.PageResult[*domain.Document]{}, nil)

	router := newTestRouter(docs, new(MockOCRService))

	req := httptest.NewRequest("GET", "/docs/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	docs.AssertExpectations(t)
}

func TestRouter_OCRRoutes(t *testing.T) {
	ocr := new(MockOCRService)
	ocr.On("Start", mock.Anything, int64(1)).Return("job-1", nil)

	router := newTestRouter(new(MockDocumentService), ocr)

	req := httptest.NewRequest("POST", "/docs/1/ocr/start", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestRouter_UnknownRoute(t *testing.T) {
	router := newTestRouter(new(MockDocumentService), new(MockOCRService))

	req := httptest.NewRequest("GET", "/nope", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
