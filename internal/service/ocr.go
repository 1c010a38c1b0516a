package service

import (
	"context"
	"fmt"
	"time"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/ocr"
	"github.com/cloo-solutions/docqa/internal/telemetry"
)

// OCRClient defines the external OCR capability: start a job against a
// stored object, query it later.
type OCRClient interface {
	StartJob(ctx context.Context, storageKey string) (string, error)
	GetJob(ctx context.Context, jobID string) (*ocr.JobResult, error)
}

// Reindexer is the slice of the ingestion pipeline the OCR flow feeds
// extracted text back into.
type Reindexer interface {
	Reindex(ctx context.Context, documentID int64, text string) (*ReindexResult, error)
}

// OCRDocumentRepository extends the document repository with the OCR
// bookkeeping fields.
type OCRDocumentRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Document, error)
	UpdateOCRJob(ctx context.Context, id int64, jobID string) error
	UpdateOCRStatus(ctx context.Context, id int64, status domain.OCRStatus, detail string) error
}

// PollResult is one poll's outcome. Status RUNNING means the external
// job is still working and nothing was mutated; SUCCEEDED carries the
// reindex counts.
type PollResult struct {
	Status    domain.OCRStatus
	Chunks    int
	Truncated bool
}

// OCRService drives the document OCR state machine:
// PENDING -> RUNNING -> SUCCEEDED | FAILED. Polling is externally
// driven; a FAILED document is only retried by a fresh Start, which
// overwrites the job id.
type OCRService struct {
	docRepo   OCRDocumentRepository
	client    OCRClient
	reindexer Reindexer
	policy    ocr.PollPolicy
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewOCRService creates a new OCRService instance
func NewOCRService(docRepo OCRDocumentRepository, client OCRClient, reindexer Reindexer, policy ocr.PollPolicy) *OCRService {
	if policy.Interval <= 0 || policy.MaxAttempts <= 0 {
		policy = ocr.DefaultPollPolicy()
	}
	return &OCRService{
		docRepo:   docRepo,
		client:    client,
		reindexer: reindexer,
		policy:    policy,
		sleep:     sleepCtx,
	}
}

// Start begins an OCR job for a document whose raw file is already
// stored, records the external job id, and moves the document to
// RUNNING.
func (s *OCRService) Start(ctx context.Context, documentID int64) (string, error) {
	ctx, span := telemetry.StartSpan(ctx, "OCRService.Start", telemetry.SpanAttributes{
		DocumentID: documentID,
		Operation:  "ocr_start",
	})
	defer span.End()

	doc, err := s.docRepo.GetByID(ctx, documentID)
	if err != nil {
		return "", err
	}
	if !doc.HasStoredFile() {
		return "", domain.ErrMissingStorageKey
	}

	jobID, err := s.client.StartJob(ctx, doc.StorageKey)
	if err != nil {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeUpstream, "failed to start OCR job", err)
	}

	if err := s.docRepo.UpdateOCRJob(ctx, documentID, jobID); err != nil {
		return "", err
	}

	return jobID, nil
}

// Poll checks the external job once. Terminal failure and empty-text
// outcomes are persisted on the document before the error is returned,
// so they survive restarts and show up on listings.
func (s *OCRService) Poll(ctx context.Context, documentID int64) (*PollResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "OCRService.Poll", telemetry.SpanAttributes{
		DocumentID: documentID,
		Operation:  "ocr_poll",
	})
	defer span.End()

	doc, err := s.docRepo.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.OCRJobID == "" {
		return nil, domain.ErrNoJobStarted
	}

	result, err := s.client.GetJob(ctx, doc.OCRJobID)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeUpstream, "failed to query OCR job", err)
	}

	if !result.Status.Terminal() {
		return &PollResult{Status: domain.OCRStatusRunning}, nil
	}

	if result.Status != ocr.JobStatusSucceeded {
		detail := fmt.Sprintf("OCR status=%s", result.Status)
		if err := s.docRepo.UpdateOCRStatus(ctx, documentID, domain.OCRStatusFailed, detail); err != nil {
			return nil, err
		}
		return nil, domain.NewDomainError(domain.ErrCodeUpstream, detail)
	}

	text := CleanText(result.Text)
	if text == "" {
		detail := "OCR returned empty text"
		if err := s.docRepo.UpdateOCRStatus(ctx, documentID, domain.OCRStatusFailed, detail); err != nil {
			return nil, err
		}
		return nil, domain.NewDomainError(domain.ErrCodeUpstream, detail)
	}

	reindex, err := s.reindexer.Reindex(ctx, documentID, text)
	if err != nil {
		return nil, err
	}

	if err := s.docRepo.UpdateOCRStatus(ctx, documentID, domain.OCRStatusSucceeded, ""); err != nil {
		return nil, err
	}

	return &PollResult{
		Status:    domain.OCRStatusSucceeded,
		Chunks:    reindex.Chunks,
		Truncated: reindex.Truncated,
	}, nil
}

// Wait polls until the job reaches a terminal outcome or the poll
// policy is exhausted. Exhaustion returns ErrOCRWaitTimeout: a distinct
// outcome from job failure, since the job may still finish and remains
// pollable.
func (s *OCRService) Wait(ctx context.Context, documentID int64) (*PollResult, error) {
	for attempt := 0; attempt < s.policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := s.sleep(ctx, s.policy.Interval); err != nil {
				return nil, err
			}
		}

		result, err := s.Poll(ctx, documentID)
		if err != nil {
			return nil, err
		}
		if result.Status != domain.OCRStatusRunning {
			return result, nil
		}
	}

	return nil, domain.ErrOCRWaitTimeout
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
