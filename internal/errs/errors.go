package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrSourceUnreadable is returned when a file or source root is missing, locked or corrupt.
	ErrSourceUnreadable = errors.New("source unreadable")
	// ErrExtraction is returned when a document cannot be decoded or parsed.
	ErrExtraction = errors.New("extraction failure")
	// ErrEmbedding is returned when the external embedding call fails.
	ErrEmbedding = errors.New("embedding failure")
	// ErrConfiguration is returned when chunking or source parameters are invalid.
	ErrConfiguration = errors.New("configuration error")
	// ErrStorage is returned when a document's records cannot be written.
	ErrStorage = errors.New("storage failure")
)

// ValidationError represents a configuration error with a field name.
// It matches ErrConfiguration via errors.Is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

// Is reports ValidationError as a configuration error.
func (e *ValidationError) Is(target error) bool {
	return target == ErrConfiguration
}

// DocumentError attributes a failure to a single document of a source.
// Kind is one of the sentinel errors of this package.
type DocumentError struct {
	SourceID   string
	DocumentID string
	Kind       error
	Err        error
}

func (e *DocumentError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s %s", e.Kind, e.SourceID, e.DocumentID)
	}
	return fmt.Sprintf("%s: %s %s: %v", e.Kind, e.SourceID, e.DocumentID, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *DocumentError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewDocumentError builds a DocumentError of the given kind.
func NewDocumentError(kind error, sourceID, documentID string, err error) *DocumentError {
	return &DocumentError{
		SourceID:   sourceID,
		DocumentID: documentID,
		Kind:       kind,
		Err:        err,
	}
}
