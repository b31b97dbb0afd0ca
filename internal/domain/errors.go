package domain

import (
	"context"
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrNodeNotFound     = errors.New("node not found")
	ErrNotADocument     = errors.New("node is not a document")
	ErrUnknownNodeType  = errors.New("unknown node type")
	ErrViewerNotFound   = errors.New("viewer not found")
	ErrViewerClosed     = errors.New("viewer closed")
	ErrInvalidLocator   = errors.New("invalid locator")
	ErrDocumentClosed   = errors.New("document closed")
	ErrPageOutOfRange   = errors.New("page out of range")
	ErrPageNotRendered  = errors.New("page not rendered")
	ErrStaleResult      = errors.New("stale result discarded")
	ErrTextUnavailable  = errors.New("document has no text layer")
)

// ValidationError represents a validation error with field and message information.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return e.Field + ": " + e.Message
	}
	return e.Message
}

// LoadError reports a failure to open a document locator.
type LoadError struct {
	Locator string
	Err     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %q: %v", e.Locator, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// RenderError reports a failure to render a single page.
type RenderError struct {
	Page int
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render page %d: %v", e.Page, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// IsCancellation reports whether err only means the work was abandoned
// because its document was closed or its context cancelled.
func IsCancellation(err error) bool {
	return errors.Is(err, ErrDocumentClosed) ||
		errors.Is(err, ErrStaleResult) ||
		errors.Is(err, context.Canceled)
}
