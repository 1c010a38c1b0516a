package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeStateConflict = "STATE_CONFLICT"
	ErrCodeUpstream      = "UPSTREAM_ERROR"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// Validation errors
var (
	ErrMissingFile  = NewDomainError(ErrCodeValidation, "missing file")
	ErrEmptyContent = NewDomainError(ErrCodeValidation, "no text extracted from file")
	ErrEmptyIndex   = NewDomainError(ErrCodeValidation, "no chunks indexed yet, upload a document first")
	ErrInvalidChunk = NewDomainError(ErrCodeValidation, "missing or invalid chunk index")
)

// Not found errors
var (
	ErrDocumentNotFound  = NewDomainError(ErrCodeNotFound, "document not found")
	ErrEvidenceNotFound  = NewDomainError(ErrCodeNotFound, "evidence not found")
	ErrMissingStorageKey = NewDomainError(ErrCodeNotFound, "document has no stored file")
)

// State conflict errors
var (
	ErrNoJobStarted = NewDomainError(ErrCodeStateConflict, "no OCR job started for document")
)

// Upstream errors
var (
	ErrOCRWaitTimeout = NewDomainError(ErrCodeUpstream, "timed out waiting for OCR job, the job may still complete")
)
