package store

import (
	"context"
)

const (
	trendingKey = "trending:articles"

	// trendingLimit is a hard cap: entries ranked beyond it are evicted on
	// every bump and need a fresh bump to re-enter.
	trendingLimit = 100
)

// TrendingEntry is one ranked article. Scores accumulate as floats in the
// sorted set but are reported truncated to integers.
type TrendingEntry struct {
	ArticleID string `json:"article_id"`
	Score     int64  `json:"score"`
}

// BumpTrending adds delta to the article's trending score, creating the entry
// when absent, then truncates the ranked set to the top 100. ZINCRBY makes
// concurrent bumps of the same article additive; no application lock is
// needed. Returns false when the backing store is unreachable, in which case
// tracking proceeds without the trending side effect.
func (s *Store) BumpTrending(ctx context.Context, articleID string, delta float64) bool {
	pipe := s.client.TxPipeline()
	pipe.ZIncrBy(ctx, trendingKey, delta, articleID)
	pipe.ZRemRangeByRank(ctx, trendingKey, 0, int64(-(trendingLimit + 1)))

	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.WithError(err).WithField("article_id", articleID).Error("failed to update trending")
		return false
	}
	return true
}

// Trending returns up to limit entries ordered by descending score. The
// result never exceeds the trending cap regardless of the requested limit.
func (s *Store) Trending(ctx context.Context, limit int) []TrendingEntry {
	if limit <= 0 || limit > trendingLimit {
		limit = trendingLimit
	}

	results, err := s.client.ZRevRangeWithScores(ctx, trendingKey, 0, int64(limit-1)).Result()
	if err != nil {
		s.logger.WithError(err).Error("failed to get trending articles")
		return []TrendingEntry{}
	}

	entries := make([]TrendingEntry, 0, len(results))
	for _, z := range results {
		id, ok := z.Member.(string)
		if !ok {
			continue
		}
		entries = append(entries, TrendingEntry{
			ArticleID: id,
			Score:     int64(z.Score),
		})
	}
	return entries
}
