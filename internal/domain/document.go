package domain

import "time"

// OCRStatus tracks the lifecycle of a document's OCR job. A document
// indexed directly from supplied text never gets a status.
type OCRStatus string

const (
	OCRStatusPending   OCRStatus = "PENDING"
	OCRStatusRunning   OCRStatus = "RUNNING"
	OCRStatusSucceeded OCRStatus = "SUCCEEDED"
	OCRStatusFailed    OCRStatus = "FAILED"
)

// Document is an uploaded file. Storage fields are populated once the
// raw bytes land in object storage; OCR fields only for scanned PDFs.
type Document struct {
	ID         int64
	Filename   string
	MimeType   string
	SizeBytes  int64
	StorageKey string
	OCRStatus  OCRStatus
	OCRError   string
	OCRJobID   string
	CreatedAt  time.Time
}

// HasStoredFile reports whether raw bytes were persisted for the document.
func (d *Document) HasStoredFile() bool {
	return d.StorageKey != ""
}

// ValidOCRStatus reports whether s is one of the known OCR states.
func ValidOCRStatus(s OCRStatus) bool {
	switch s {
	case OCRStatusPending, OCRStatusRunning, OCRStatusSucceeded, OCRStatusFailed:
		return true
	}
	return false
}
