package dataset

import (
	"fmt"

	"github.com/cwbudde/xcfit/internal/fit"
)

// ParseError reports malformed dataset input. It matches fit.ErrConfig.
type ParseError struct {
	Path   string
	Line   int // 1-based, 0 when not line oriented
	Reason string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Reason)
	}
	return e.Path + ": " + e.Reason
}

func (e *ParseError) Unwrap() error {
	return fit.ErrConfig
}

func parseErrorf(path string, line int, format string, args ...any) error {
	return &ParseError{Path: path, Line: line, Reason: fmt.Sprintf(format, args...)}
}
