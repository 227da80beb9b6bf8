package citations

import (
	"context"
	"crypto/md5"
	"fmt"
	"time"

	"github.com/openpress/pulse/pkg/observability"
	"github.com/openpress/pulse/pkg/store"
	"github.com/openpress/pulse/pkg/upstream"
)

// lookupTTL is how long a citation search result is served from cache.
const lookupTTL = 24 * time.Hour

// Service fronts the citation-search upstream with a Redis-backed cache
// keyed on the article title.
type Service struct {
	client *upstream.CitationsClient
	store  *store.Store
	logger *observability.Logger
}

// NewService creates a citation lookup service.
func NewService(client *upstream.CitationsClient, st *store.Store, logger *observability.Logger) *Service {
	return &Service{
		client: client,
		store:  st,
		logger: logger,
	}
}

// IsConfigured reports whether the citation upstream has credentials.
func (s *Service) IsConfigured() bool {
	return s.client.IsConfigured()
}

// cacheKey hashes the title so arbitrary punctuation never leaks into the
// key space.
func cacheKey(articleTitle string) string {
	return fmt.Sprintf("citation_cache:%x", md5.Sum([]byte(articleTitle)))
}

// Lookup returns the citation result for an article title, served from cache
// for 24 hours unless forceRefresh is set. Author and journal narrow the
// search when present.
func (s *Service) Lookup(ctx context.Context, articleTitle, author, journal string, forceRefresh bool) (*upstream.CitationResult, error) {
	key := cacheKey(articleTitle)

	if !forceRefresh {
		var cached upstream.CitationResult
		if s.store.CacheGet(ctx, key, &cached) {
			return &cached, nil
		}
	}

	result, err := s.client.Search(ctx, articleTitle, author, journal)
	if err != nil {
		return nil, err
	}

	s.store.CacheSet(ctx, key, result, lookupTTL)
	return result, nil
}
