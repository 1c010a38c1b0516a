package service

import (
	"context"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/pagination"
)

// ListingDocumentRepository defines the lookups the document listing
// and file-URL operations need.
type ListingDocumentRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Document, error)
	ListWithCursor(ctx context.Context, cursor *pagination.Cursor, limit int) (*pagination.PageResult[*domain.Document], error)
}

// ListDocumentsInput controls pagination of the listing.
type ListDocumentsInput struct {
	Cursor string
	Limit  int
}

const maxListLimit = 50

// DocumentService handles document listing and signed file URLs.
type DocumentService struct {
	docRepo ListingDocumentRepository
	storage StorageClientInterface
}

// NewDocumentService creates a new DocumentService instance
func NewDocumentService(docRepo ListingDocumentRepository, storage StorageClientInterface) *DocumentService {
	return &DocumentService{
		docRepo: docRepo,
		storage: storage,
	}
}

// List returns documents newest-first, capped at 50 per page.
func (s *DocumentService) List(ctx context.Context, input ListDocumentsInput) (*pagination.PageResult[*domain.Document], error) {
	cursor, err := pagination.DecodeCursor(input.Cursor)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid cursor", err)
	}

	limit := input.Limit
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}

	return s.docRepo.ListWithCursor(ctx, cursor, limit)
}

// GetByID returns a single document.
func (s *DocumentService) GetByID(ctx context.Context, id int64) (*domain.Document, error) {
	return s.docRepo.GetByID(ctx, id)
}

// FileURL issues a time-limited signed URL for a document's stored
// file. Inline renders a preview in the browser instead of downloading.
func (s *DocumentService) FileURL(ctx context.Context, id int64, inline bool) (string, error) {
	doc, err := s.docRepo.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if !doc.HasStoredFile() {
		return "", domain.ErrMissingStorageKey
	}

	return s.storage.GenerateSignedURL(ctx, doc.StorageKey, SignedURLOptions{
		Inline:      inline,
		Filename:    doc.Filename,
		ContentType: doc.MimeType,
	})
}
