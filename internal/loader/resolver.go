package loader

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"pdf-page-viewer/internal/domain"
)

// SupabaseStorageResolver resolves supabase://bucket/path locators to the
// authenticated Storage object endpoint.
type SupabaseStorageResolver struct {
	baseURL string
	apiKey  string
}

func NewSupabaseStorageResolver(baseURL, apiKey string) *SupabaseStorageResolver {
	return &SupabaseStorageResolver{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

func (s *SupabaseStorageResolver) Scheme() string {
	return "supabase"
}

// Resolve maps supabase://<bucket>/<object path> onto a fetch target.
func (s *SupabaseStorageResolver) Resolve(locator string) (*domain.FetchTarget, error) {
	u, err := url.Parse(locator)
	if err != nil || u.Scheme != s.Scheme() {
		return nil, domain.ErrInvalidLocator
	}
	bucket := u.Host
	object := strings.TrimPrefix(u.Path, "/")
	if bucket == "" || object == "" || s.baseURL == "" {
		return nil, fmt.Errorf("%w: bucket and object path are required", domain.ErrInvalidLocator)
	}

	header := make(http.Header)
	header.Set("Authorization", "Bearer "+s.apiKey)
	header.Set("apikey", s.apiKey)
	return &domain.FetchTarget{
		URL:    s.baseURL + "/storage/v1/object/authenticated/" + url.PathEscape(bucket) + "/" + escapePath(object),
		Header: header,
	}, nil
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
