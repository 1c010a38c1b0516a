//go:build integration

package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unitEmbedding returns a 1536-dim vector whose first component carries
// the given value, so L2 distance between two such vectors is |a-b|.
func unitEmbedding(v float32) []float32 {
	embedding := make([]float32, 1536)
	embedding[0] = v
	return embedding
}

func TestChunkRepository_Integration(t *testing.T) {
	ctx := context.Background()

	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	docRepo := NewDocumentRepository(pool)
	chunkRepo := NewChunkRepository(pool)

	makeChunks := func(n int, base float32) []domain.Chunk {
		chunks := make([]domain.Chunk, 0, n)
		for i := 0; i < n; i++ {
			chunks = append(chunks, domain.Chunk{
				ChunkIndex: i,
				Content:    fmt.Sprintf("chunk %d", i),
				Embedding:  unitEmbedding(base + float32(i)),
			})
		}
		return chunks
	}

	t.Run("ReplaceChunks_InsertAndCount", func(t *testing.T) {
		require.NoError(t, testutil.TruncateAll(ctx, pool))

		id, err := docRepo.Create(ctx, "a.txt")
		require.NoError(t, err)

		require.NoError(t, chunkRepo.ReplaceChunks(ctx, id, makeChunks(3, 0)))

		count, err := chunkRepo.CountAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), count)
	})

	t.Run("ReplaceChunks_ReindexReplacesOldBatch", func(t *testing.T) {
		require.NoError(t, testutil.TruncateAll(ctx, pool))

		id, err := docRepo.Create(ctx, "a.txt")
		require.NoError(t, err)

		require.NoError(t, chunkRepo.ReplaceChunks(ctx, id, makeChunks(5, 0)))
		require.NoError(t, chunkRepo.ReplaceChunks(ctx, id, makeChunks(2, 10)))

		count, err := chunkRepo.CountAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)

		ev, err := chunkRepo.GetEvidence(ctx, id, 1)
		require.NoError(t, err)
		assert.Equal(t, "chunk 1", ev.Content)

		_, err = chunkRepo.GetEvidence(ctx, id, 4)
		assert.ErrorIs(t, err, domain.ErrEvidenceNotFound)
	})

	t.Run("ReplaceChunks_EmptyBatchClears", func(t *testing.T) {
		require.NoError(t, testutil.TruncateAll(ctx, pool))

		id, err := docRepo.Create(ctx, "a.txt")
		require.NoError(t, err)

		require.NoError(t, chunkRepo.ReplaceChunks(ctx, id, makeChunks(3, 0)))
		require.NoError(t, chunkRepo.ReplaceChunks(ctx, id, nil))

		count, err := chunkRepo.CountAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(0), count)
	})

	t.Run("SearchNearest_RanksByDistance", func(t *testing.T) {
		require.NoError(t, testutil.TruncateAll(ctx, pool))

		id, err := docRepo.Create(ctx, "ranked.txt")
		require.NoError(t, err)

		chunks := []domain.Chunk{
			{ChunkIndex: 0, Content: "far", Embedding: unitEmbedding(100)},
			{ChunkIndex: 1, Content: "near", Embedding: unitEmbedding(1)},
			{ChunkIndex: 2, Content: "middle", Embedding: unitEmbedding(50)},
		}
		require.NoError(t, chunkRepo.ReplaceChunks(ctx, id, chunks))

		results, err := chunkRepo.SearchNearest(ctx, unitEmbedding(0), 2)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "near", results[0].Content)
		assert.Equal(t, "middle", results[1].Content)
		assert.Equal(t, id, results[0].DocumentID)
		assert.Equal(t, "ranked.txt", results[0].Filename)
		assert.Equal(t, 1, results[0].ChunkIndex)
	})

	t.Run("SearchNearest_EmptyIndex", func(t *testing.T) {
		require.NoError(t, testutil.TruncateAll(ctx, pool))

		results, err := chunkRepo.SearchNearest(ctx, unitEmbedding(0), 8)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("GetEvidence_NotFound", func(t *testing.T) {
		require.NoError(t, testutil.TruncateAll(ctx, pool))

		_, err := chunkRepo.GetEvidence(ctx, 424242, 0)
		assert.ErrorIs(t, err, domain.ErrEvidenceNotFound)
	})

	t.Run("DeleteDocumentCascadesChunks", func(t *testing.T) {
		require.NoError(t, testutil.TruncateAll(ctx, pool))

		id, err := docRepo.Create(ctx, "a.txt")
		require.NoError(t, err)
		require.NoError(t, chunkRepo.ReplaceChunks(ctx, id, makeChunks(2, 0)))

		_, err = pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
		require.NoError(t, err)

		count, err := chunkRepo.CountAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(0), count)
	})
}
