package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/cloo-solutions/docqa/internal/api"
	"github.com/cloo-solutions/docqa/internal/service"
	"github.com/go-chi/chi/v5"
)

type OCRService interface {
	Start(ctx context.Context, documentID int64) (string, error)
	Poll(ctx context.Context, documentID int64) (*service.PollResult, error)
}

type OCRHandler struct {
	svc OCRService
}

func NewOCRHandler(svc OCRService) *OCRHandler {
	return &OCRHandler{svc: svc}
}

type StartOCRResponse struct {
	DocumentID int64  `json:"document_id"`
	JobID      string `json:"job_id"`
	Status     string `json:"status"`
}

type PollOCRResponse struct {
	DocumentID int64  `json:"document_id"`
	Status     string `json:"status"`
	Chunks     int    `json:"chunks,omitempty"`
	Truncated  bool   `json:"truncated,omitempty"`
}

func (h *OCRHandler) Start(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		api.Error(w, http.StatusBadRequest, "invalid document id")
		return
	}

	jobID, err := h.svc.Start(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusAccepted, StartOCRResponse{
		DocumentID: id,
		JobID:      jobID,
		Status:     "RUNNING",
	})
}

func (h *OCRHandler) Poll(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		api.Error(w, http.StatusBadRequest, "invalid document id")
		return
	}

	result, err := h.svc.Poll(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, PollOCRResponse{
		DocumentID: id,
		Status:     string(result.Status),
		Chunks:     result.Chunks,
		Truncated:  result.Truncated,
	})
}
