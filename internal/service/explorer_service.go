package service

import (
	"context"
	"strings"

	"pdf-page-viewer/internal/domain"
)

// ExplorerService serves the document tree and the document cache.
type ExplorerService struct {
	repo   domain.NodeRepository
	cache  *DocumentCache
	logger domain.Logger
}

func NewExplorerService(repo domain.NodeRepository, cache *DocumentCache, logger domain.Logger) *ExplorerService {
	return &ExplorerService{
		repo:   repo,
		cache:  cache,
		logger: logger,
	}
}

func (s *ExplorerService) GetChildren(folderID string) ([]domain.Node, error) {
	if strings.TrimSpace(folderID) == "" {
		return nil, &domain.ValidationError{Field: "id", Message: "folder ID is required"}
	}
	return s.repo.GetChildren(folderID)
}

func (s *ExplorerService) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	if strings.TrimSpace(id) == "" {
		return nil, &domain.ValidationError{Field: "id", Message: "document ID is required"}
	}
	return s.cache.Load(ctx, id)
}

func (s *ExplorerService) SearchDocuments(query string) ([]SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, &domain.ValidationError{Field: "q", Message: "search query is required"}
	}
	results := s.cache.Search(query)
	if results == nil {
		results = []SearchResult{}
	}
	return results, nil
}

// EvictDocument drops one document from the cache.
func (s *ExplorerService) EvictDocument(id string) error {
	if !s.cache.Evict(id) {
		return domain.ErrDocumentNotFound
	}
	s.logger.Debug("Evicted cached document", "id", id)
	return nil
}

func (s *ExplorerService) ClearCache() int {
	n := s.cache.Len()
	s.cache.Clear()
	s.logger.Info("Document cache cleared", "entries", n)
	return n
}
