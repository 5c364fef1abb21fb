package notation

import (
	"errors"
	"fmt"
)

// ErrParse marks a source that could not be read or decoded as symbolic music.
var ErrParse = errors.New("notation parse failure")

// ErrUnsupportedFormat is returned for file extensions no decoder handles.
var ErrUnsupportedFormat = errors.New("unsupported notation format")

// ParseError describes a failed decode of one file.
type ParseError struct {
	Path   string
	Format Format
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s %s: %v", e.Format, e.Path, e.Err)
}

// Unwrap exposes both ErrParse and the underlying cause to errors.Is.
func (e *ParseError) Unwrap() []error {
	return []error{ErrParse, e.Err}
}

func parseError(path string, format Format, err error) error {
	return &ParseError{Path: path, Format: format, Err: err}
}
