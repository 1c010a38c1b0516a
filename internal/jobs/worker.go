// Package jobs runs the background sweeps that keep ingestion moving
// without an active client, currently just the OCR poller.
package jobs

import (
	"context"
	"log"
	"time"
)

// JobProcessor is one sweep over whatever work is currently pending.
// Errors are logged and the next tick runs regardless.
type JobProcessor interface {
	ProcessJobs(ctx context.Context) error
}

// Worker drives a JobProcessor on a fixed tick until the context is
// cancelled or Stop is called.
type Worker struct {
	name         string
	processor    JobProcessor
	pollInterval time.Duration
	stopChan     chan struct{}
	doneChan     chan struct{}
}

// NewWorker wraps a processor in a ticking loop. The name only appears
// in log lines.
func NewWorker(name string, processor JobProcessor, pollInterval time.Duration) *Worker {
	return &Worker{
		name:         name,
		processor:    processor,
		pollInterval: pollInterval,
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
}

// Start runs the sweep loop. It blocks until the context is cancelled
// or Stop is called, so callers run it in its own goroutine.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	defer close(w.doneChan)

	log.Printf("%s worker sweeping every %v", w.name, w.pollInterval)

	for {
		select {
		case <-ctx.Done():
			log.Printf("%s worker stopped: context cancelled", w.name)
			return
		case <-w.stopChan:
			log.Printf("%s worker stopped: stop requested", w.name)
			return
		case <-ticker.C:
			if err := w.processor.ProcessJobs(ctx); err != nil {
				log.Printf("%s worker sweep failed: %v", w.name, err)
			}
		}
	}
}

// Stop signals the loop to exit and waits for the current sweep to
// finish.
func (w *Worker) Stop() {
	close(w.stopChan)
	<-w.doneChan
	log.Printf("%s worker shut down", w.name)
}
