package service

import (
	"context"
	"fmt"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/telemetry"
)

// RetrievalChunkRepository defines the vector-store lookups retrieval needs.
type RetrievalChunkRepository interface {
	CountAll(ctx context.Context) (int64, error)
	SearchNearest(ctx context.Context, embedding []float32, limit int) ([]*domain.RankedChunk, error)
}

// RetrievalService ranks indexed chunks against a query embedding.
type RetrievalService struct {
	chunkRepo RetrievalChunkRepository
	embedder  EmbeddingClient
	topK      int
}

// NewRetrievalService creates a new RetrievalService instance
func NewRetrievalService(chunkRepo RetrievalChunkRepository, embedder EmbeddingClient, topK int) *RetrievalService {
	if topK <= 0 {
		topK = 8
	}
	return &RetrievalService{
		chunkRepo: chunkRepo,
		embedder:  embedder,
		topK:      topK,
	}
}

// Retrieve embeds the query and returns the nearest chunks in ranked
// order, at most topK. An index with zero chunks fails with
// ErrEmptyIndex regardless of the query, including an empty one.
func (s *RetrievalService) Retrieve(ctx context.Context, query string) ([]*domain.RankedChunk, error) {
	ctx, span := telemetry.StartSpan(ctx, "RetrievalService.Retrieve", telemetry.SpanAttributes{
		Operation: "retrieve",
	})
	defer span.End()

	count, err := s.chunkRepo.CountAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count chunks: %w", err)
	}
	if count == 0 {
		return nil, domain.ErrEmptyIndex
	}

	if query == "" {
		query = " "
	}

	embedding, err := s.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeUpstream, "failed to embed query", err)
	}

	ranked, err := s.chunkRepo.SearchNearest(ctx, embedding, s.topK)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}

	return ranked, nil
}
