package server

import (
	"net/http"

	"github.com/cloo-solutions/docqa/internal/api"
	"github.com/cloo-solutions/docqa/internal/api/handlers"
	"github.com/cloo-solutions/docqa/internal/api/middleware"
	"github.com/go-chi/chi/v5"
)

type RouterConfig struct {
	DocumentHandler *handlers.DocumentHandler
	OCRHandler      *handlers.OCRHandler
	ChatHandler     *handlers.ChatHandler
	SourceHandler   *handlers.SourceHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 50 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/docs", func(r chi.Router) {
		r.Post("/upload", cfg.DocumentHandler.Upload)
		r.Get("/", cfg.DocumentHandler.List)
		r.Get("/{id}/file", cfg.DocumentHandler.FileURL)
		r.Post("/{id}/ocr/start", cfg.OCRHandler.Start)
		r.Post("/{id}/ocr/poll", cfg.OCRHandler.Poll)
	})

	r.Post("/chat", cfg.ChatHandler.Chat)
	r.Get("/source", cfg.SourceHandler.Lookup)

	return r
}
