package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/cloo-solutions/docqa/internal/api"
	"github.com/cloo-solutions/docqa/internal/domain"
)

type EvidenceService interface {
	LookupEvidence(ctx context.Context, ref *domain.SourceRef) (*domain.Evidence, error)
}

type SourceHandler struct {
	svc EvidenceService
}

func NewSourceHandler(svc EvidenceService) *SourceHandler {
	return &SourceHandler{svc: svc}
}

// Lookup resolves a decoded citation reference to the stored chunk.
// Accepts ?docId=&chunk= or the legacy ?file=&chunk= form.
func (h *SourceHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	chunkStr := q.Get("chunk")
	chunk, err := strconv.Atoi(chunkStr)
	if chunkStr == "" || err != nil || chunk < 0 {
		api.HandleError(w, domain.ErrInvalidChunk)
		return
	}

	ref := &domain.SourceRef{
		Filename: q.Get("file"),
		Chunk:    chunk,
	}
	if docIDStr := q.Get("docId"); docIDStr != "" {
		docID, err := strconv.ParseInt(docIDStr, 10, 64)
		if err != nil || docID <= 0 {
			api.Error(w, http.StatusBadRequest, "invalid docId")
			return
		}
		ref.DocID = docID
		ref.HasDocID = true
	}

	evidence, err := h.svc.LookupEvidence(r.Context(), ref)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, evidence)
}
