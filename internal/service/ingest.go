package service

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/telemetry"
)

// DocumentRepositoryInterface defines the repository operations the
// ingestion pipeline needs.
type DocumentRepositoryInterface interface {
	Create(ctx context.Context, filename string) (int64, error)
	GetByID(ctx context.Context, id int64) (*domain.Document, error)
	UpdateStorage(ctx context.Context, id int64, storageKey, mimeType string, sizeBytes int64) error
	UpdateOCRStatus(ctx context.Context, id int64, status domain.OCRStatus, detail string) error
}

// ChunkRepositoryInterface defines chunk persistence for indexing.
type ChunkRepositoryInterface interface {
	ReplaceChunks(ctx context.Context, documentID int64, chunks []domain.Chunk) error
}

// EmbeddingClient defines the interface for generating embeddings
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// StorageClientInterface defines the object storage operations used by
// ingestion and file-URL issuance.
type StorageClientInterface interface {
	PutObject(ctx context.Context, key string, body []byte, contentType string) error
	GenerateSignedURL(ctx context.Context, key string, opts SignedURLOptions) (string, error)
}

// SignedURLOptions mirrors the storage layer's presign options.
type SignedURLOptions struct {
	Inline      bool
	Filename    string
	ContentType string
}

// IngestInput carries one upload into the pipeline. DocumentID zero
// means "create a new document". ExtractedText, when non-empty, skips
// OCR entirely (plain text uploads and client-extracted PDF text).
type IngestInput struct {
	DocumentID    int64
	Filename      string
	MimeType      string
	Content       []byte
	ExtractedText string
}

// IngestResult reports what the pipeline did with an upload.
type IngestResult struct {
	DocumentID int64
	Chunks     int
	NeedsOCR   bool
	Truncated  bool
}

// IngestService orchestrates document creation, raw byte storage, and
// chunk indexing.
type IngestService struct {
	docRepo   DocumentRepositoryInterface
	chunkRepo ChunkRepositoryInterface
	embedder  EmbeddingClient
	storage   StorageClientInterface
	keyPrefix string
	chunkCfg  ChunkConfig
	now       func() time.Time
}

// NewIngestService creates a new IngestService instance
func NewIngestService(
	docRepo DocumentRepositoryInterface,
	chunkRepo ChunkRepositoryInterface,
	embedder EmbeddingClient,
	storage StorageClientInterface,
	keyPrefix string,
	chunkCfg ChunkConfig,
) *IngestService {
	if keyPrefix == "" {
		keyPrefix = "uploads"
	}
	if chunkCfg.ChunkWords <= 0 {
		chunkCfg = DefaultChunkConfig()
	}
	return &IngestService{
		docRepo:   docRepo,
		chunkRepo: chunkRepo,
		embedder:  embedder,
		storage:   storage,
		keyPrefix: strings.TrimRight(keyPrefix, "/"),
		chunkCfg:  chunkCfg,
		now:       time.Now,
	}
}

// Ingest runs the full upload pipeline: ensure a document row exists,
// persist the raw bytes, then either index the supplied text or mark
// the document as waiting for OCR.
//
// A document left in the "stored but not indexed" state (storage key
// set, no chunks) is a valid intermediate, not an error; indexing can
// be retried idempotently via Reindex.
func (s *IngestService) Ingest(ctx context.Context, input IngestInput) (*IngestResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "IngestService.Ingest", telemetry.SpanAttributes{
		DocumentID: input.DocumentID,
		Operation:  "ingest",
	})
	defer span.End()

	if len(input.Content) == 0 {
		return nil, domain.ErrMissingFile
	}

	docID := input.DocumentID
	if docID == 0 {
		id, err := s.docRepo.Create(ctx, input.Filename)
		if err != nil {
			return nil, fmt.Errorf("failed to create document: %w", err)
		}
		docID = id
	}

	key := s.buildStorageKey(docID, input.Filename)
	contentType := input.MimeType
	if contentType == "" && isPDF(input.Filename, input.MimeType) {
		contentType = "application/pdf"
	}

	if err := s.storage.PutObject(ctx, key, input.Content, contentType); err != nil {
		return nil, fmt.Errorf("failed to store raw file: %w", err)
	}

	if err := s.docRepo.UpdateStorage(ctx, docID, key, contentType, int64(len(input.Content))); err != nil {
		return nil, fmt.Errorf("failed to record storage key: %w", err)
	}

	text := input.ExtractedText
	if text == "" && !isPDF(input.Filename, input.MimeType) {
		text = string(input.Content)
	}

	if strings.TrimSpace(text) == "" {
		// Scanned or unreadable PDF: hand off to the OCR flow.
		if err := s.docRepo.UpdateOCRStatus(ctx, docID, domain.OCRStatusPending, ""); err != nil {
			return nil, fmt.Errorf("failed to mark document pending OCR: %w", err)
		}
		return &IngestResult{DocumentID: docID, NeedsOCR: true}, nil
	}

	reindex, err := s.Reindex(ctx, docID, text)
	if err != nil {
		return nil, err
	}

	return &IngestResult{
		DocumentID: docID,
		Chunks:     reindex.Chunks,
		Truncated:  reindex.Truncated,
	}, nil
}

// ReindexResult reports one indexing pass.
type ReindexResult struct {
	Chunks    int
	Truncated bool
}

// Reindex fully replaces a document's indexed chunks from the given
// text. The delete and insert happen in one transaction serialized per
// document, so repeating the call is safe and always leaves the chunk
// indices contiguous from zero.
func (s *IngestService) Reindex(ctx context.Context, documentID int64, text string) (*ReindexResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "IngestService.Reindex", telemetry.SpanAttributes{
		DocumentID: documentID,
		Operation:  "reindex",
	})
	defer span.End()

	clean := CleanText(text)
	if clean == "" {
		return nil, domain.ErrEmptyContent
	}

	chunks := ChunkWords(clean, s.chunkCfg)
	truncated := WouldTruncate(clean, s.chunkCfg)

	embeddings, err := s.embedder.GenerateEmbeddings(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("failed to embed chunks: %w", err)
	}

	entries := make([]domain.Chunk, len(chunks))
	for i, c := range chunks {
		entries[i] = domain.Chunk{
			DocumentID: documentID,
			ChunkIndex: i,
			Content:    c,
			Embedding:  embeddings[i],
		}
	}

	if err := s.chunkRepo.ReplaceChunks(ctx, documentID, entries); err != nil {
		return nil, fmt.Errorf("failed to replace chunks: %w", err)
	}

	return &ReindexResult{Chunks: len(chunks), Truncated: truncated}, nil
}

// CleanText strips NUL bytes and surrounding whitespace. Postgres text
// columns reject NULs, and OCR output sometimes carries them.
func CleanText(text string) string {
	return strings.TrimSpace(strings.ReplaceAll(text, "\x00", ""))
}

// buildStorageKey derives a deterministic object key from the document
// id, the upload timestamp, and the sanitized filename.
func (s *IngestService) buildStorageKey(documentID int64, filename string) string {
	return fmt.Sprintf("%s/%d/%d-%s", s.keyPrefix, documentID, s.now().UnixMilli(), SanitizeFilename(filename))
}

// SanitizeFilename replaces every character outside [A-Za-z0-9._-]
// with an underscore so the name is safe inside an object key.
func SanitizeFilename(filename string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, filename)
}

func isPDF(filename, mimeType string) bool {
	return mimeType == "application/pdf" || strings.EqualFold(path.Ext(filename), ".pdf")
}
