package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/cloo-solutions/docqa/internal/api"
	"github.com/cloo-solutions/docqa/internal/service"
)

type AnswerService interface {
	Ask(ctx context.Context, messages []service.Message) (service.AnswerStream, error)
}

type ChatHandler struct {
	svc AnswerService
}

func NewChatHandler(svc AnswerService) *ChatHandler {
	return &ChatHandler{svc: svc}
}

type ChatRequest struct {
	Messages []service.Message `json:"messages"`
}

// Chat streams the grounded answer as plain text. Errors that happen
// before the first byte is written get the usual JSON envelope; once
// streaming has begun the connection is simply closed.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Messages) == 0 {
		api.Error(w, http.StatusBadRequest, "messages are required")
		return
	}

	stream, err := h.svc.Ask(r.Context(), req.Messages)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	defer stream.Close()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)

	for {
		fragment, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			log.Printf("chat_stream_error: %v", err)
			return
		}
		if fragment == "" {
			continue
		}
		if _, err := io.WriteString(w, fragment); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}
