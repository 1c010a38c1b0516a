package service

import (
	"context"
	"io"
	"testing"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockChatClient is a mock implementation of ChatClient
type MockChatClient struct {
	mock.Mock
}

func (m *MockChatClient) StreamChat(ctx context.Context, system string, messages []Message) (AnswerStream, error) {
	args := m.Called(ctx, system, messages)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(AnswerStream), args.Error(1)
}

// MockEvidenceDocumentRepository is a mock implementation of EvidenceDocumentRepository
type MockEvidenceDocumentRepository struct {
	mock.Mock
}

func (m *MockEvidenceDocumentRepository) GetLatestByFilename(ctx context.Context, filename string) (*domain.Document, error) {
	args := m.Called(ctx, filename)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

// MockEvidenceChunkRepository is a mock implementation of EvidenceChunkRepository
type MockEvidenceChunkRepository struct {
	mock.Mock
}

func (m *MockEvidenceChunkRepository) GetEvidence(ctx context.Context, documentID int64, chunkIndex int) (*domain.Evidence, error) {
	args := m.Called(ctx, documentID, chunkIndex)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Evidence), args.Error(1)
}

type staticStream struct {
	fragments []string
	index     int
}

func (s *staticStream) Recv() (string, error) {
	if s.index >= len(s.fragments) {
		return "", io.EOF
	}
	fragment := s.fragments[s.index]
	s.index++
	return fragment, nil
}

func (s *staticStream) Close() error { return nil }

func newTestAnswerService(chunkRepo *MockRetrievalChunkRepository, embedder *MockEmbeddingClient, chat *MockChatClient, docRepo *MockEvidenceDocumentRepository, evidenceRepo *MockEvidenceChunkRepository) *AnswerService {
	retrieval := NewRetrievalService(chunkRepo, embedder, 8)
	return NewAnswerService(retrieval, chat, docRepo, evidenceRepo)
}

func TestAnswerService_Ask_GroundsSystemPrompt(t *testing.T) {
	chunkRepo := new(MockRetrievalChunkRepository)
	embedder := new(MockEmbeddingClient)
	chat := new(MockChatClient)
	svc := newTestAnswerService(chunkRepo, embedder, chat, new(MockEvidenceDocumentRepository), new(MockEvidenceChunkRepository))

	chunkRepo.On("CountAll", mock.Anything).Return(int64(5), nil)
	embedder.On("GenerateEmbedding", mock.Anything, "what grew?").Return([]float32{0.1}, nil)
	chunkRepo.On("SearchNearest", mock.Anything, mock.Anything, 8).Return([]*domain.RankedChunk{
		{DocumentID: 7, Filename: "report.pdf", ChunkIndex: 3, Content: "revenue grew"},
	}, nil)

	var capturedSystem string
	chat.On("StreamChat", mock.Anything, mock.MatchedBy(func(system string) bool {
		capturedSystem = system
		return true
	}), mock.Anything).Return(&staticStream{fragments: []string{"Revenue grew [S1]."}}, nil)

	messages := []Message{
		{Role: "assistant", Content: "hello"},
		{Role: "user", Content: "what grew?"},
	}

	stream, err := svc.Ask(context.Background(), messages)

	require.NoError(t, err)
	require.NotNil(t, stream)
	assert.Contains(t, capturedSystem, "- S1: doc_id=7 file=report.pdf chunk=3")
	assert.Contains(t, capturedSystem, "revenue grew")
}

func TestAnswerService_Ask_UsesLastUserMessage(t *testing.T) {
	chunkRepo := new(MockRetrievalChunkRepository)
	embedder := new(MockEmbeddingClient)
	chat := new(MockChatClient)
	svc := newTestAnswerService(chunkRepo, embedder, chat, new(MockEvidenceDocumentRepository), new(MockEvidenceChunkRepository))

	chunkRepo.On("CountAll", mock.Anything).Return(int64(5), nil)
	embedder.On("GenerateEmbedding", mock.Anything, "second question").Return([]float32{0.1}, nil)
	chunkRepo.On("SearchNearest", mock.Anything, mock.Anything, 8).Return([]*domain.RankedChunk{}, nil)
	chat.On("StreamChat", mock.Anything, mock.Anything, mock.Anything).Return(&staticStream{}, nil)

	messages := []Message{
		{Role: "user", Content: "first question"},
		{Role: "assistant", Content: "an answer"},
		{Role: "user", Content: "second question"},
	}

	_, err := svc.Ask(context.Background(), messages)

	require.NoError(t, err)
	embedder.AssertCalled(t, "GenerateEmbedding", mock.Anything, "second question")
}

func TestAnswerService_Ask_EmptyIndexFailsBeforeGeneration(t *testing.T) {
	chunkRepo := new(MockRetrievalChunkRepository)
	chat := new(MockChatClient)
	svc := newTestAnswerService(chunkRepo, new(MockEmbeddingClient), chat, new(MockEvidenceDocumentRepository), new(MockEvidenceChunkRepository))

	chunkRepo.On("CountAll", mock.Anything).Return(int64(0), nil)

	_, err := svc.Ask(context.Background(), []Message{{Role: "user", Content: "hi"}})

	assert.ErrorIs(t, err, domain.ErrEmptyIndex)
	chat.AssertNotCalled(t, "StreamChat", mock.Anything, mock.Anything, mock.Anything)
}

func TestAnswerService_LookupEvidence_ByDocID(t *testing.T) {
	evidenceRepo := new(MockEvidenceChunkRepository)
	docRepo := new(MockEvidenceDocumentRepository)
	svc := newTestAnswerService(new(MockRetrievalChunkRepository), new(MockEmbeddingClient), new(MockChatClient), docRepo, evidenceRepo)

	expected := &domain.Evidence{Filename: "report.pdf", ChunkIndex: 3, Content: "revenue grew"}
	evidenceRepo.On("GetEvidence", mock.Anything, int64(7), 3).Return(expected, nil)

	result, err := svc.LookupEvidence(context.Background(), &domain.SourceRef{DocID: 7, HasDocID: true, Chunk: 3})

	require.NoError(t, err)
	assert.Equal(t, expected, result)
	docRepo.AssertNotCalled(t, "GetLatestByFilename", mock.Anything, mock.Anything)
}

func TestAnswerService_LookupEvidence_NewestDocumentByFilename(t *testing.T) {
	evidenceRepo := new(MockEvidenceChunkRepository)
	docRepo := new(MockEvidenceDocumentRepository)
	svc := newTestAnswerService(new(MockRetrievalChunkRepository), new(MockEmbeddingClient), new(MockChatClient), docRepo, evidenceRepo)

	docRepo.On("GetLatestByFilename", mock.Anything, "report.pdf").
		Return(&domain.Document{ID: 12, Filename: "report.pdf"}, nil)
	expected := &domain.Evidence{Filename: "report.pdf", ChunkIndex: 0, Content: "newest copy"}
	evidenceRepo.On("GetEvidence", mock.Anything, int64(12), 0).Return(expected, nil)

	result, err := svc.LookupEvidence(context.Background(), &domain.SourceRef{Filename: "report.pdf", Chunk: 0})

	require.NoError(t, err)
	assert.Equal(t, expected, result)
}

func TestAnswerService_LookupEvidence_NoDocIDNoFilename(t *testing.T) {
	svc := newTestAnswerService(new(MockRetrievalChunkRepository), new(MockEmbeddingClient), new(MockChatClient), new(MockEvidenceDocumentRepository), new(MockEvidenceChunkRepository))

	_, err := svc.LookupEvidence(context.Background(), &domain.SourceRef{Chunk: 1})

	assert.ErrorIs(t, err, domain.ErrEvidenceNotFound)
}

func TestAnswerService_LookupEvidence_UnknownFilename(t *testing.T) {
	docRepo := new(MockEvidenceDocumentRepository)
	svc := newTestAnswerService(new(MockRetrievalChunkRepository), new(MockEmbeddingClient), new(MockChatClient), docRepo, new(MockEvidenceChunkRepository))

	docRepo.On("GetLatestByFilename", mock.Anything, "missing.txt").Return(nil, domain.ErrDocumentNotFound)

	_, err := svc.LookupEvidence(context.Background(), &domain.SourceRef{Filename: "missing.txt", Chunk: 0})

	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}
