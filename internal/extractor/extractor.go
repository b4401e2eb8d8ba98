// Package extractor recovers donor records from decoded donation requests.
package extractor

import (
	"errors"
	"fmt"

	"naturelife-cert/internal/models"
)

// ErrExtractionFailed is matched by every *ExtractionError
var ErrExtractionFailed = errors.New("donor information could not be extracted")

// Extractor turns a decoded message into a donor record. Implementations
// fail closed: a record is either complete or not returned at all.
type Extractor interface {
	Extract(msg *models.DecodedMessage) (*models.DonorRecord, error)
}

// ExtractionError names the field that was missing or invalid
type ExtractionError struct {
	Field  string
	Reason string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed: %s %s", e.Field, e.Reason)
}

func (e *ExtractionError) Is(target error) bool {
	return target == ErrExtractionFailed
}

func missing(field string) error {
	return &ExtractionError{Field: field, Reason: "is missing"}
}

func invalid(field, format string, args ...interface{}) error {
	return &ExtractionError{Field: field, Reason: "is invalid: " + fmt.Sprintf(format, args...)}
}
