package repository

import (
	"context"
	"errors"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// ChunkRepository handles persistence and nearest-neighbor lookup of
// embedded document chunks.
type ChunkRepository struct {
	pool *pgxpool.Pool
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{pool: pool}
}

// ReplaceChunks deletes all chunks for a document and inserts the new
// batch in a single transaction. A per-document advisory lock serializes
// concurrent reindex passes so the contiguous chunk_index range is never
// corrupted by interleaved delete/insert phases.
func (r *ChunkRepository) ReplaceChunks(ctx context.Context, documentID int64, chunks []domain.Chunk) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, documentID); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID); err != nil {
		return err
	}

	for _, c := range chunks {
		_, err := tx.Exec(ctx,
			`INSERT INTO chunks (document_id, chunk_index, content, embedding)
			 VALUES ($1, $2, $3, $4)`,
			documentID,
			c.ChunkIndex,
			c.Content,
			pgvector.NewVector(c.Embedding),
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// CountAll returns the total number of indexed chunks across all documents.
func (r *ChunkRepository) CountAll(ctx context.Context) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM chunks`).Scan(&count)
	return count, err
}

// SearchNearest returns the limit chunks closest to the query embedding
// under L2 distance, joined with the owning document, nearest first.
// Ties fall back to the store's native order.
func (r *ChunkRepository) SearchNearest(ctx context.Context, embedding []float32, limit int) ([]*domain.RankedChunk, error) {
	if limit <= 0 {
		limit = 8
	}

	rows, err := r.pool.Query(ctx,
		`SELECT d.id AS document_id, d.filename, c.chunk_index, c.content
		 FROM chunks c
		 JOIN documents d ON d.id = c.document_id
		 ORDER BY c.embedding <-> $1
		 LIMIT $2`,
		pgvector.NewVector(embedding), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]*domain.RankedChunk, 0, limit)
	for rows.Next() {
		var rc domain.RankedChunk
		if err := rows.Scan(&rc.DocumentID, &rc.Filename, &rc.ChunkIndex, &rc.Content); err != nil {
			return nil, err
		}
		results = append(results, &rc)
	}

	return results, rows.Err()
}

// GetEvidence fetches the chunk at chunkIndex for the given document,
// joined with its filename.
func (r *ChunkRepository) GetEvidence(ctx context.Context, documentID int64, chunkIndex int) (*domain.Evidence, error) {
	var ev domain.Evidence
	err := r.pool.QueryRow(ctx,
		`SELECT d.filename, c.chunk_index, c.content
		 FROM chunks c
		 JOIN documents d ON d.id = c.document_id
		 WHERE d.id = $1 AND c.chunk_index = $2
		 LIMIT 1`,
		documentID, chunkIndex,
	).Scan(&ev.Filename, &ev.ChunkIndex, &ev.Content)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrEvidenceNotFound
		}
		return nil, err
	}
	return &ev, nil
}
