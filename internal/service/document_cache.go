package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"pdf-page-viewer/internal/domain"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

const snippetRadius = 60

// SearchResult is a cached document matching a text search.
type SearchResult struct {
	DocumentID string `json:"document_id"`
	Name       string `json:"name"`
	Matches    int    `json:"matches"`
	Snippet    string `json:"snippet"`
}

// DocumentCache keeps recently used documents, with their OCR text, in a
// bounded LRU. Concurrent loads of the same id share one repository read.
type DocumentCache struct {
	repo   domain.NodeRepository
	docs   *lru.Cache[string, *domain.Document]
	group  singleflight.Group
	logger domain.Logger

	// epoch advances on Evict and Clear; reads started in an earlier epoch
	// are returned to their callers but not cached.
	mu    sync.Mutex
	epoch uint64
}

func NewDocumentCache(repo domain.NodeRepository, size int, logger domain.Logger) (*DocumentCache, error) {
	docs, err := lru.New[string, *domain.Document](size)
	if err != nil {
		return nil, fmt.Errorf("create document cache: %w", err)
	}
	return &DocumentCache{repo: repo, docs: docs, logger: logger}, nil
}

// Load returns the document with id, reading it from the repository on a
// miss. Only documents are cached; folders fail with domain.ErrNotADocument.
func (c *DocumentCache) Load(ctx context.Context, id string) (*domain.Document, error) {
	if doc, ok := c.docs.Get(id); ok {
		return doc, nil
	}

	c.mu.Lock()
	epoch := c.epoch
	c.mu.Unlock()

	ch := c.group.DoChan(fmt.Sprintf("%d/%s", epoch, id), func() (interface{}, error) {
		node, err := c.repo.GetNode(id)
		if err != nil {
			return nil, err
		}
		doc, ok := node.(*domain.Document)
		if !ok {
			return nil, domain.ErrNotADocument
		}
		if err := doc.Validate(); err != nil {
			return nil, err
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.epoch != epoch {
			c.logger.Debug("Cache invalidated during load; not caching", "id", id)
			return doc, nil
		}
		if evicted := c.docs.Add(id, doc); evicted {
			c.logger.Debug("Document cache full; evicted least recently used entry", "size", c.docs.Len())
		}
		return doc, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*domain.Document), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Evict drops id and reports whether it was cached.
func (c *DocumentCache) Evict(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	return c.docs.Remove(id)
}

// Clear drops every cached document.
func (c *DocumentCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.docs.Purge()
}

func (c *DocumentCache) Len() int {
	return c.docs.Len()
}

// Search looks for query, case-insensitively, in the names and OCR text of
// the cached documents. It does not change their recency.
func (c *DocumentCache) Search(query string) []SearchResult {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return nil
	}

	var results []SearchResult
	for _, id := range c.docs.Keys() {
		doc, ok := c.docs.Peek(id)
		if !ok {
			continue
		}
		text := strings.ToLower(doc.OCRText)
		matches := strings.Count(text, needle)
		nameMatch := strings.Contains(strings.ToLower(doc.Name), needle)
		if matches == 0 && !nameMatch {
			continue
		}
		results = append(results, SearchResult{
			DocumentID: doc.ID,
			Name:       doc.Name,
			Matches:    matches,
			Snippet:    snippet(doc.OCRText, strings.Index(text, needle), len(needle)),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Matches > results[j].Matches
	})
	return results
}

// snippet returns the text around the match at byte offset at. The offset
// comes from the lowercased text, which may differ in length for some
// scripts, so bounds are clamped and aligned to rune starts.
func snippet(text string, at, n int) string {
	if at < 0 || text == "" {
		return ""
	}
	start := max(at-snippetRadius, 0)
	end := min(at+n+snippetRadius, len(text))
	if start >= end {
		return ""
	}
	for start > 0 && !utf8.RuneStart(text[start]) {
		start--
	}
	for end < len(text) && !utf8.RuneStart(text[end]) {
		end++
	}

	s := strings.Join(strings.Fields(text[start:end]), " ")
	if start > 0 {
		s = "…" + s
	}
	if end < len(text) {
		s += "…"
	}
	return s
}
