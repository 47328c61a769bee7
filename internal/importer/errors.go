package importer

import (
	"errors"
	"fmt"
)

// File-level errors. Any of these rejects the whole upload.
var (
	ErrMissingColumns  = errors.New("missing required columns")
	ErrNoHeader        = errors.New("CSV file must include a header row")
	ErrNotUTF8         = errors.New("Uploaded file must be UTF-8 encoded")
	ErrInvalidMode     = errors.New("mode must be either create_only or upsert")
	ErrUnsupportedFile = errors.New("unsupported or unreadable file")
	ErrFileTooLarge    = errors.New("file too large")
	ErrNoFile          = errors.New("no file provided")
)

// FileError wraps a file-level error kind with a user-facing message.
type FileError struct {
	Kind    error
	Message string
}

func (e *FileError) Error() string {
	return e.Message
}

func (e *FileError) Unwrap() error {
	return e.Kind
}

// NewFileError returns a file-level error of the given kind.
func NewFileError(kind error, message string) *FileError {
	return &FileError{Kind: kind, Message: message}
}

func fileError(kind error, format string, args ...any) *FileError {
	return &FileError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// RowError records why a single data row could not be imported. Row is the
// 1-based position of the row after the header.
type RowError struct {
	Row      int
	Message  string
	Original []string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}
