package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyFile is returned when the file holds no rows at all, only blank
	// lines, or only a header.
	ErrEmptyFile = errors.New("empty file: no data rows found")

	// ErrNoData is returned when the file has content but no delimiter
	// produced a usable table.
	ErrNoData = errors.New("no data: could not read any rows from the file")

	// ErrUnreadableFile is returned when a workbook cannot be opened.
	ErrUnreadableFile = errors.New("unreadable file")

	// ErrFileTooLarge is returned when an upload exceeds the configured size.
	ErrFileTooLarge = errors.New("file too large")

	// ErrNoFile is returned when an upload carries no file part.
	ErrNoFile = errors.New("no file provided")

	// ErrImportInProgress is returned when the operator already has a running import.
	ErrImportInProgress = errors.New("import already in progress for this operator")

	// ErrSessionNotFound is returned for unknown or expired session ids.
	ErrSessionNotFound = errors.New("import session not found")

	// ErrSessionRunning is returned when an operation needs a finished session.
	ErrSessionRunning = errors.New("import session still running")
)

// ReasonCount pairs a defect reason with how many rows carry it.
type ReasonCount struct {
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}

// NoValidRecordsError is returned when no row survived validation.
// Top holds the most frequent validation reasons (at most three).
type NoValidRecordsError struct {
	Invalid int
	Top     []ReasonCount
}

func (e *NoValidRecordsError) Error() string {
	if len(e.Top) == 0 {
		return "no valid records to import"
	}
	parts := make([]string, len(e.Top))
	for i, rc := range e.Top {
		parts[i] = fmt.Sprintf("%s (%d)", rc.Reason, rc.Count)
	}
	return fmt.Sprintf("no valid records to import: %s", strings.Join(parts, "; "))
}

// ReferenceLookupError is returned when a reference collection cannot be loaded.
type ReferenceLookupError struct {
	Kind ReferenceKind
	Err  error
}

func (e *ReferenceLookupError) Error() string {
	return fmt.Sprintf("reference lookup failed for %s: %v", e.Kind, e.Err)
}

func (e *ReferenceLookupError) Unwrap() error {
	return e.Err
}

// SubmissionError is returned by submitters when the whole batch failed,
// either in transport or because the service answered with a server error.
type SubmissionError struct {
	StatusCode int // HTTP status, 0 when not applicable
	Err        error
}

func (e *SubmissionError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("batch submission failed with status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("batch submission failed: %v", e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// UnsupportedFormatError is returned for files that are neither text nor a workbook.
type UnsupportedFormatError struct {
	MIME string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported file format: %s", e.MIME)
}

// IsFatalFileError reports whether err ended the attempt before any row was produced.
func IsFatalFileError(err error) bool {
	var unsupported *UnsupportedFormatError
	return errors.Is(err, ErrEmptyFile) ||
		errors.Is(err, ErrNoData) ||
		errors.Is(err, ErrUnreadableFile) ||
		errors.As(err, &unsupported)
}
