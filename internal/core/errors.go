package core

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedTimestamp = errors.New("malformed timestamp")
	ErrSessionNotFound    = errors.New("session not found")
	ErrUnknownDimension   = errors.New("unknown dimension")
	ErrEmptyInput         = errors.New("empty input")
	ErrInvalidAmount      = errors.New("invalid amount")
)

// MalformedInputError is returned when the input bytes cannot be decoded or
// parsed as delimited text.
type MalformedInputError struct {
	Err error
}

func (e *MalformedInputError) Error() string {
	if e.Err == nil {
		return "malformed input"
	}
	return "malformed input: " + e.Err.Error()
}

func (e *MalformedInputError) Unwrap() error { return e.Err }

// MissingColumnError names a column required by a pipeline stage that is
// absent from the table.
type MissingColumnError struct {
	Column string
	Stage  string
}

func (e *MissingColumnError) Error() string {
	if e.Stage == "" {
		return fmt.Sprintf("missing column %q", e.Column)
	}
	return fmt.Sprintf("%s: missing column %q", e.Stage, e.Column)
}

// RowIssue records a per-row problem that did not abort processing.
// Row is the 1-based data row index in the source file.
type RowIssue struct {
	Row    int
	Column string
	Value  string
	Err    error
}

func (r RowIssue) Error() string {
	return fmt.Sprintf("row %d column %s value %q: %v", r.Row, r.Column, r.Value, r.Err)
}

func (r RowIssue) Unwrap() error { return r.Err }

// IsInputError reports whether err is caused by the uploaded data rather
// than by the service.
func IsInputError(err error) bool {
	var mi *MalformedInputError
	var mc *MissingColumnError
	return errors.As(err, &mi) || errors.As(err, &mc)
}
