package handlers

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/cloo-solutions/docqa/internal/api"
	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/pagination"
	"github.com/cloo-solutions/docqa/internal/service"
	"github.com/go-chi/chi/v5"
)

type IngestService interface {
	Ingest(ctx context.Context, input service.IngestInput) (*service.IngestResult, error)
}

type DocumentService interface {
	List(ctx context.Context, input service.ListDocumentsInput) (*pagination.PageResult[*domain.Document], error)
	FileURL(ctx context.Context, id int64, inline bool) (string, error)
}

type DocumentHandler struct {
	ingest IngestService
	docs   DocumentService
}

func NewDocumentHandler(ingest IngestService, docs DocumentService) *DocumentHandler {
	return &DocumentHandler{ingest: ingest, docs: docs}
}

type UploadResponse struct {
	DocumentID int64 `json:"document_id"`
	Chunks     int   `json:"chunks"`
	NeedsOCR   bool  `json:"needs_ocr"`
	Truncated  bool  `json:"truncated"`
}

type DocumentResponse struct {
	ID        int64  `json:"id"`
	Filename  string `json:"filename"`
	MimeType  string `json:"mime_type,omitempty"`
	SizeBytes int64  `json:"size_bytes,omitempty"`
	OCRStatus string `json:"ocr_status,omitempty"`
	OCRError  string `json:"ocr_error,omitempty"`
	HasFile   bool   `json:"has_file"`
	CreatedAt string `json:"created_at"`
}

func documentToResponse(d *domain.Document) *DocumentResponse {
	return &DocumentResponse{
		ID:        d.ID,
		Filename:  d.Filename,
		MimeType:  d.MimeType,
		SizeBytes: d.SizeBytes,
		OCRStatus: string(d.OCRStatus),
		OCRError:  d.OCRError,
		HasFile:   d.HasStoredFile(),
		CreatedAt: d.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}

const maxUploadMemory = 32 << 20

// Upload accepts a multipart form with a "file" part and an optional
// "extracted_text" field carrying text the client already pulled out of
// the file.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		api.HandleError(w, domain.ErrMissingFile)
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		api.Error(w, http.StatusBadRequest, "failed to read file")
		return
	}

	input := service.IngestInput{
		Filename:      header.Filename,
		MimeType:      header.Header.Get("Content-Type"),
		Content:       content,
		ExtractedText: r.FormValue("extracted_text"),
	}

	result, err := h.ingest.Ingest(r.Context(), input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, UploadResponse{
		DocumentID: result.DocumentID,
		Chunks:     result.Chunks,
		NeedsOCR:   result.NeedsOCR,
		Truncated:  result.Truncated,
	})
}

type DocumentListResponse struct {
	Items   []*DocumentResponse `json:"items"`
	Cursor  string              `json:"cursor,omitempty"`
	HasMore bool                `json:"has_more"`
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	cursor := r.URL.Query().Get("cursor")
	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	page, err := h.docs.List(r.Context(), service.ListDocumentsInput{
		Cursor: cursor,
		Limit:  limit,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*DocumentResponse, len(page.Items))
	for i, d := range page.Items {
		responses[i] = documentToResponse(d)
	}

	api.Success(w, http.StatusOK, DocumentListResponse{
		Items:   responses,
		Cursor:  page.Cursor,
		HasMore: page.HasMore,
	})
}

type FileURLResponse struct {
	URL string `json:"url"`
}

// FileURL returns a short-lived signed URL for the document's raw file.
// ?inline=1 asks for browser preview instead of download.
func (h *DocumentHandler) FileURL(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		api.Error(w, http.StatusBadRequest, "invalid document id")
		return
	}

	inline := r.URL.Query().Get("inline")
	url, err := h.docs.FileURL(r.Context(), id, inline == "1" || inline == "true")
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, FileURLResponse{URL: url})
}
