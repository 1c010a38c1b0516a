package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/service"
)

// OCRDocumentSource lists documents whose external OCR job may have
// finished since the last sweep.
type OCRDocumentSource interface {
	ListIDsByOCRStatus(ctx context.Context, status domain.OCRStatus) ([]int64, error)
}

// OCRPoller polls one document's OCR job and indexes the text when done.
type OCRPoller interface {
	Poll(ctx context.Context, documentID int64) (*service.PollResult, error)
}

// OCRWorker sweeps RUNNING documents and polls their OCR jobs so
// indexing completes even when no client is actively polling. Terminal
// failures are already persisted by Poll, so a failed document drops
// out of the sweep on its own.
type OCRWorker struct {
	docs   OCRDocumentSource
	poller OCRPoller
}

// NewOCRWorker creates a new OCRWorker instance
func NewOCRWorker(docs OCRDocumentSource, poller OCRPoller) *OCRWorker {
	return &OCRWorker{
		docs:   docs,
		poller: poller,
	}
}

// ProcessJobs implements the JobProcessor interface
func (w *OCRWorker) ProcessJobs(ctx context.Context) error {
	ids, err := w.docs.ListIDsByOCRStatus(ctx, domain.OCRStatusRunning)
	if err != nil {
		return fmt.Errorf("failed to list running OCR documents: %w", err)
	}

	if len(ids) == 0 {
		return nil
	}

	log.Printf("Polling %d running OCR jobs", len(ids))

	for _, id := range ids {
		result, err := w.poller.Poll(ctx, id)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			log.Printf("OCR poll failed for document %d: %v", id, err)
			continue
		}
		if result.Status == domain.OCRStatusSucceeded {
			log.Printf("OCR completed for document %d: %d chunks indexed", id, result.Chunks)
		}
	}

	return nil
}
