package musicxml

import (
	"errors"
	"fmt"
)

// ErrEmptySequence reports that a document parsed but yielded no notes.
var ErrEmptySequence = errors.New("musicxml: no notes found")

// FormatError reports input that is not a score at all: an unreadable
// container or a different document type.
type FormatError struct {
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("musicxml: format: %s: %v", e.Reason, e.Err)
	}
	return "musicxml: format: " + e.Reason
}

func (e *FormatError) Unwrap() error { return e.Err }

// ExtractionError reports a compressed container without a resolvable
// MusicXML payload.
type ExtractionError struct {
	Reason string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("musicxml: extract: %s: %v", e.Reason, e.Err)
	}
	return "musicxml: extract: " + e.Reason
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// ParseError reports malformed XML.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("musicxml: parse: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
