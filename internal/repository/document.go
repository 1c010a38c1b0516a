package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/pagination"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DocumentRepository struct {
	pool *pgxpool.Pool
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{pool: pool}
}

// Create inserts a document row carrying only the filename and returns
// the assigned id. Storage and OCR fields are filled in as ingestion
// progresses.
func (r *DocumentRepository) Create(ctx context.Context, filename string) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO documents (filename, created_at) VALUES ($1, $2) RETURNING id`,
		filename, time.Now().UTC(),
	).Scan(&id)
	return id, err
}

func (r *DocumentRepository) GetByID(ctx context.Context, id int64) (*domain.Document, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, filename, mime_type, size_bytes, storage_key, ocr_status, ocr_error, ocr_job_id, created_at
		 FROM documents WHERE id = $1`,
		id,
	)
	return scanDocument(row)
}

// GetLatestByFilename returns the most recently created document with
// the given filename, ties broken by highest id. Used to resolve legacy
// citation references that carry no document id.
func (r *DocumentRepository) GetLatestByFilename(ctx context.Context, filename string) (*domain.Document, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, filename, mime_type, size_bytes, storage_key, ocr_status, ocr_error, ocr_job_id, created_at
		 FROM documents WHERE filename = $1 ORDER BY id DESC LIMIT 1`,
		filename,
	)
	return scanDocument(row)
}

// UpdateStorage records where the raw bytes landed.
func (r *DocumentRepository) UpdateStorage(ctx context.Context, id int64, storageKey, mimeType string, sizeBytes int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE documents SET storage_key = $1, mime_type = $2, size_bytes = $3 WHERE id = $4`,
		storageKey, nullableString(mimeType), sizeBytes, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

// UpdateOCRStatus sets the OCR state and error detail. An empty detail
// clears any prior error. Unknown states are refused before touching
// the row.
func (r *DocumentRepository) UpdateOCRStatus(ctx context.Context, id int64, status domain.OCRStatus, detail string) error {
	if !domain.ValidOCRStatus(status) {
		return domain.NewDomainError(domain.ErrCodeInternalError, fmt.Sprintf("unknown OCR status %q", status))
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE documents SET ocr_status = $1, ocr_error = $2 WHERE id = $3`,
		string(status), nullableString(detail), id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

// UpdateOCRJob records the external job id and moves the document to
// RUNNING, clearing any prior error. A retry simply overwrites the job id.
func (r *DocumentRepository) UpdateOCRJob(ctx context.Context, id int64, jobID string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE documents SET ocr_job_id = $1, ocr_status = $2, ocr_error = NULL WHERE id = $3`,
		jobID, string(domain.OCRStatusRunning), id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

// ListIDsByOCRStatus returns ids of documents currently in the given
// OCR state, oldest first. Used by the background OCR poller.
func (r *DocumentRepository) ListIDsByOCRStatus(ctx context.Context, status domain.OCRStatus) ([]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM documents WHERE ocr_status = $1 ORDER BY id`,
		string(status),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListWithCursor returns documents newest-first, keyset-paginated on
// (created_at, id).
func (r *DocumentRepository) ListWithCursor(ctx context.Context, cursor *pagination.Cursor, limit int) (*pagination.PageResult[*domain.Document], error) {
	if limit <= 0 {
		limit = 50
	}

	var rows pgx.Rows
	var err error

	if cursor != nil {
		rows, err = r.pool.Query(ctx,
			`SELECT id, filename, mime_type, size_bytes, storage_key, ocr_status, ocr_error, ocr_job_id, created_at
			 FROM documents
			 WHERE (created_at, id) < ($1, $2)
			 ORDER BY created_at DESC, id DESC
			 LIMIT $3`,
			cursor.Timestamp, cursor.LastID, limit+1,
		)
	} else {
		rows, err = r.pool.Query(ctx,
			`SELECT id, filename, mime_type, size_bytes, storage_key, ocr_status, ocr_error, ocr_job_id, created_at
			 FROM documents
			 ORDER BY created_at DESC, id DESC
			 LIMIT $1`,
			limit+1,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := scanDocumentRows(rows)
	if err != nil {
		return nil, err
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	nextCursor := ""
	if hasMore {
		nextCursor = pagination.CreateNextCursor(items, limit,
			func(d *domain.Document) int64 { return d.ID },
			func(d *domain.Document) time.Time { return d.CreatedAt },
		)
	}

	return &pagination.PageResult[*domain.Document]{
		Items:   items,
		Cursor:  nextCursor,
		HasMore: hasMore,
	}, nil
}

func scanDocument(row pgx.Row) (*domain.Document, error) {
	var d domain.Document
	var mimeType, storageKey, ocrStatus, ocrError, ocrJobID *string
	var sizeBytes *int64

	err := row.Scan(&d.ID, &d.Filename, &mimeType, &sizeBytes, &storageKey, &ocrStatus, &ocrError, &ocrJobID, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}

	if mimeType != nil {
		d.MimeType = *mimeType
	}
	if sizeBytes != nil {
		d.SizeBytes = *sizeBytes
	}
	if storageKey != nil {
		d.StorageKey = *storageKey
	}
	if ocrStatus != nil {
		d.OCRStatus = domain.OCRStatus(*ocrStatus)
	}
	if ocrError != nil {
		d.OCRError = *ocrError
	}
	if ocrJobID != nil {
		d.OCRJobID = *ocrJobID
	}
	return &d, nil
}

func scanDocumentRows(rows pgx.Rows) ([]*domain.Document, error) {
	var docs []*domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
