package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockOCRDocumentSource struct {
	mock.Mock
}

func (m *MockOCRDocumentSource) ListIDsByOCRStatus(ctx context.Context, status domain.OCRStatus) ([]int64, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

type MockOCRPoller struct {
	mock.Mock
}

func (m *MockOCRPoller) Poll(ctx context.Context, documentID int64) (*service.PollResult, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.PollResult), args.Error(1)
}

func TestOCRWorker_ProcessJobs_PollsAllRunning(t *testing.T) {
	docs := new(MockOCRDocumentSource)
	poller := new(MockOCRPoller)
	worker := NewOCRWorker(docs, poller)

	docs.On("ListIDsByOCRStatus", mock.Anything, domain.OCRStatusRunning).Return([]int64{1, 2}, nil)
	poller.On("Poll", mock.Anything, int64(1)).Return(&service.PollResult{Status: domain.OCRStatusSucceeded, Chunks: 4}, nil)
	poller.On("Poll", mock.Anything, int64(2)).Return(&service.PollResult{Status: domain.OCRStatusRunning}, nil)

	err := worker.ProcessJobs(context.Background())

	assert.NoError(t, err)
	poller.AssertExpectations(t)
}

func TestOCRWorker_ProcessJobs_NoRunningDocuments(t *testing.T) {
	docs := new(MockOCRDocumentSource)
	poller := new(MockOCRPoller)
	worker := NewOCRWorker(docs, poller)

	docs.On("ListIDsByOCRStatus", mock.Anything, domain.OCRStatusRunning).Return([]int64{}, nil)

	err := worker.ProcessJobs(context.Background())

	assert.NoError(t, err)
	poller.AssertNotCalled(t, "Poll", mock.Anything, mock.Anything)
}

func TestOCRWorker_ProcessJobs_ListFailure(t *testing.T) {
	docs := new(MockOCRDocumentSource)
	worker := NewOCRWorker(docs, new(MockOCRPoller))

	docs.On("ListIDsByOCRStatus", mock.Anything, domain.OCRStatusRunning).Return(nil, errors.New("db down"))

	err := worker.ProcessJobs(context.Background())

	assert.ErrorContains(t, err, "failed to list running OCR documents")
}

func TestOCRWorker_ProcessJobs_PollFailureContinuesSweep(t *testing.T) {
	docs := new(MockOCRDocumentSource)
	poller := new(MockOCRPoller)
	worker := NewOCRWorker(docs, poller)

	docs.On("ListIDsByOCRStatus", mock.Anything, domain.OCRStatusRunning).Return([]int64{1, 2}, nil)
	poller.On("Poll", mock.Anything, int64(1)).Return(nil, errors.New("textract error"))
	poller.On("Poll", mock.Anything, int64(2)).Return(&service.PollResult{Status: domain.OCRStatusRunning}, nil)

	err := worker.ProcessJobs(context.Background())

	assert.NoError(t, err)
	poller.AssertExpectations(t)
}

func TestOCRWorker_ProcessJobs_CanceledContextAbortsSweep(t *testing.T) {
	docs := new(MockOCRDocumentSource)
	poller := new(MockOCRPoller)
	worker := NewOCRWorker(docs, poller)

	docs.On("ListIDsByOCRStatus", mock.Anything, domain.OCRStatusRunning).Return([]int64{1, 2}, nil)
	poller.On("Poll", mock.Anything, int64(1)).Return(nil, context.Canceled)

	err := worker.ProcessJobs(context.Background())

	assert.ErrorIs(t, err, context.Canceled)
	poller.AssertNotCalled(t, "Poll", mock.Anything, int64(2))
}
