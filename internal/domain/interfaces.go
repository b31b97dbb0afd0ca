package domain

import (
	"context"
	"net/http"
	"time"
)

// DocumentHandle is an opened remote document accepting page render calls.
type DocumentHandle interface {
	Locator() string
	PageCount() int
	PageSize(page int) (PageSize, error)
	RenderPage(ctx context.Context, page int, scale float64) (*Surface, error)
	Close() error
}

// TextSource is implemented by handles that can extract a page's text layer.
type TextSource interface {
	PageText(ctx context.Context, page int) (string, error)
}

// DocumentLoader opens document locators. progress receives load
// percentages in [0, 100]; it may be nil.
type DocumentLoader interface {
	Open(ctx context.Context, locator string, progress func(percent int)) (DocumentHandle, error)
}

// FetchTarget is the HTTP request a locator resolves to.
type FetchTarget struct {
	URL    string
	Header http.Header
}

// LocatorResolver maps a non-HTTP locator scheme onto a fetchable target.
type LocatorResolver interface {
	Scheme() string
	Resolve(locator string) (*FetchTarget, error)
}

// NodeRepository defines read access to the document tree.
type NodeRepository interface {
	GetNode(id string) (Node, error)
	GetChildren(folderID string) ([]Node, error)
}

// Logger defines the interface for logging operations
type Logger interface {
	Info(msg string, fields ...interface{})
	Error(msg string, err error, fields ...interface{})
	Debug(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
}

// Config defines the interface for configuration management
type Config interface {
	GetServerPort() string
	GetLogLevel() string
	GetSupabaseURL() string
	GetSupabaseKey() string
	GetDocumentSourceToken() string
	GetFetchTimeout() time.Duration
	GetPrefetchRate() float64
	GetDocumentCacheSize() int
	GetViewerSettings() ViewerSettings
}
