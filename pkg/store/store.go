package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/openpress/pulse/pkg/observability"
)

// Config holds Redis connection settings
type Config struct {
	URL        string
	Password   string
	DB         int
	MaxRetries int
	PoolSize   int
}

// DefaultConfig returns the default Redis configuration
func DefaultConfig() Config {
	return Config{
		URL:        "redis://localhost:6379",
		DB:         0,
		MaxRetries: 3,
		PoolSize:   10,
	}
}

// Store is the Redis-backed counter, trending, geo and cache layer. All
// mutation goes through atomic single-key Redis primitives; the store is the
// single source of truth across process instances.
//
// Counter operations are best-effort: when the backing store is unreachable
// they log and return zero values instead of propagating errors, so tracking
// requests degrade rather than fail.
type Store struct {
	client *redis.Client
	logger *observability.Logger
}

// New creates a Store from the given configuration. An unreachable Redis is
// not fatal: the client reconnects on demand and every operation degrades to
// zero values until it does. Only an invalid URL is an error.
func New(cfg Config, logger *observability.Logger) (*Store, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB >= 0 {
		opts.DB = cfg.DB
	}
	if cfg.MaxRetries > 0 {
		opts.MaxRetries = cfg.MaxRetries
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolTimeout = 4 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Warn("redis unreachable at startup, counters degrade to zero until it recovers")
	}

	return &Store{
		client: client,
		logger: logger,
	}, nil
}

// Key scheme shared with the original deployment: per-subject counters plus a
// hash per concern.
func articleViewsKey(articleID string) string {
	return fmt.Sprintf("article:%s:views", articleID)
}

func articleDownloadsKey(articleID string) string {
	return fmt.Sprintf("article:%s:downloads", articleID)
}

func journalViewsKey(journalID string) string {
	return fmt.Sprintf("journal:%s:views", journalID)
}

const geoKey = "geo:countries"

// increment atomically increments a counter, returning the new value.
// Backend failure is swallowed: the caller gets the zero sentinel.
func (s *Store) increment(ctx context.Context, key string, amount int64) int64 {
	val, err := s.client.IncrBy(ctx, key, amount).Result()
	if err != nil {
		s.logger.WithError(err).WithField("key", key).Error("failed to increment counter")
		return 0
	}
	return val
}

// getCounter returns the current counter value, or 0 when the key is absent
// or the backend is unreachable. Absence and failure are indistinguishable to
// callers.
func (s *Store) getCounter(ctx context.Context, key string) int64 {
	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return 0
	} else if err != nil {
		s.logger.WithError(err).WithField("key", key).Error("failed to get counter")
		return 0
	}

	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		s.logger.WithField("key", key).Warn("counter holds a non-integer value")
		return 0
	}
	return n
}

// IncrementArticleViews increments the view counter for an article
func (s *Store) IncrementArticleViews(ctx context.Context, articleID string) int64 {
	return s.increment(ctx, articleViewsKey(articleID), 1)
}

// ArticleViews returns the view count for an article
func (s *Store) ArticleViews(ctx context.Context, articleID string) int64 {
	return s.getCounter(ctx, articleViewsKey(articleID))
}

// IncrementArticleDownloads increments the download counter for an article
func (s *Store) IncrementArticleDownloads(ctx context.Context, articleID string) int64 {
	return s.increment(ctx, articleDownloadsKey(articleID), 1)
}

// ArticleDownloads returns the download count for an article
func (s *Store) ArticleDownloads(ctx context.Context, articleID string) int64 {
	return s.getCounter(ctx, articleDownloadsKey(articleID))
}

// IncrementJournalViews increments the view counter for a journal
func (s *Store) IncrementJournalViews(ctx context.Context, journalID string) int64 {
	return s.increment(ctx, journalViewsKey(journalID), 1)
}

// JournalViews returns the view count for a journal
func (s *Store) JournalViews(ctx context.Context, journalID string) int64 {
	return s.getCounter(ctx, journalViewsKey(journalID))
}

// sumCounters scans all keys matching the pattern and sums their values.
// O(number of tracked subjects); subject cardinality stays in the thousands
// so this is fine off the hot path.
func (s *Store) sumCounters(ctx context.Context, pattern string) int64 {
	var total int64

	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		total += s.getCounter(ctx, iter.Val())
	}
	if err := iter.Err(); err != nil {
		s.logger.WithError(err).WithField("pattern", pattern).Error("counter scan failed")
		return 0
	}

	return total
}

// TotalViews sums view counters across all articles
func (s *Store) TotalViews(ctx context.Context) int64 {
	return s.sumCounters(ctx, "article:*:views")
}

// TotalDownloads sums download counters across all articles
func (s *Store) TotalDownloads(ctx context.Context) int64 {
	return s.sumCounters(ctx, "article:*:downloads")
}

// GeoIncrement increments the visit count for a country code
func (s *Store) GeoIncrement(ctx context.Context, countryCode string) bool {
	if err := s.client.HIncrBy(ctx, geoKey, countryCode, 1).Err(); err != nil {
		s.logger.WithError(err).WithField("country", countryCode).Error("failed to update geo count")
		return false
	}
	return true
}

// GeoSnapshot returns all country visit counts
func (s *Store) GeoSnapshot(ctx context.Context) map[string]int64 {
	data, err := s.client.HGetAll(ctx, geoKey).Result()
	if err != nil {
		s.logger.WithError(err).Error("failed to get geo data")
		return map[string]int64{}
	}

	counts := make(map[string]int64, len(data))
	for code, raw := range data {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			counts[code] = n
		}
	}
	return counts
}

// Ping checks Redis connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Connected reports whether the backing store is currently reachable
func (s *Store) Connected(ctx context.Context) bool {
	return s.Ping(ctx) == nil
}

// Client returns the underlying Redis client for health checks
func (s *Store) Client() *redis.Client {
	return s.client
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}
