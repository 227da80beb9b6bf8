package store

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/openpress/pulse/pkg/observability"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	s, err := New(Config{URL: "redis://" + mr.Addr()}, logger)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return s, mr
}

func TestNewInvalidURL(t *testing.T) {
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	if _, err := New(Config{URL: "not a url"}, logger); err == nil {
		t.Fatal("Expected error for invalid redis URL")
	}
}

func TestArticleCounters(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if got := s.ArticleViews(ctx, "42"); got != 0 {
		t.Errorf("Expected 0 views for untracked article, got %d", got)
	}

	if got := s.IncrementArticleViews(ctx, "42"); got != 1 {
		t.Errorf("Expected first increment to return 1, got %d", got)
	}
	if got := s.IncrementArticleViews(ctx, "42"); got != 2 {
		t.Errorf("Expected second increment to return 2, got %d", got)
	}
	if got := s.ArticleViews(ctx, "42"); got != 2 {
		t.Errorf("Expected 2 views, got %d", got)
	}

	// Downloads are tracked independently of views.
	if got := s.IncrementArticleDownloads(ctx, "42"); got != 1 {
		t.Errorf("Expected 1 download, got %d", got)
	}
	if got := s.ArticleViews(ctx, "42"); got != 2 {
		t.Errorf("Download increment must not touch views, got %d", got)
	}
}

func TestJournalCounters(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	s.IncrementJournalViews(ctx, "1")
	s.IncrementJournalViews(ctx, "1")
	s.IncrementJournalViews(ctx, "2")

	if got := s.JournalViews(ctx, "1"); got != 2 {
		t.Errorf("Expected 2 journal views, got %d", got)
	}
	if got := s.JournalViews(ctx, "2"); got != 1 {
		t.Errorf("Expected 1 journal view, got %d", got)
	}
}

func TestConcurrentIncrementsAreMonotonic(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	const (
		workers       = 10
		perWorker     = 20
		expectedTotal = workers * perWorker
	)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				s.IncrementArticleViews(ctx, "contended")
			}
		}()
	}
	wg.Wait()

	if got := s.ArticleViews(ctx, "contended"); got != expectedTotal {
		t.Errorf("Expected %d views after concurrent increments, got %d", expectedTotal, got)
	}
}

func TestTotals(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	s.IncrementArticleViews(ctx, "a")
	s.IncrementArticleViews(ctx, "a")
	s.IncrementArticleViews(ctx, "b")
	s.IncrementArticleDownloads(ctx, "a")
	s.IncrementJournalViews(ctx, "1")

	if got := s.TotalViews(ctx); got != 3 {
		t.Errorf("Expected total views 3, got %d", got)
	}
	if got := s.TotalDownloads(ctx); got != 1 {
		t.Errorf("Expected total downloads 1, got %d", got)
	}
}

func TestGeoHistogram(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	s.GeoIncrement(ctx, "US")
	s.GeoIncrement(ctx, "US")
	s.GeoIncrement(ctx, "DE")

	snapshot := s.GeoSnapshot(ctx)
	if snapshot["US"] != 2 {
		t.Errorf("Expected US count 2, got %d", snapshot["US"])
	}
	if snapshot["DE"] != 1 {
		t.Errorf("Expected DE count 1, got %d", snapshot["DE"])
	}
}

func TestCacheRoundTrip(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	if !s.CacheSet(ctx, "cache:test", payload{Name: "x", Count: 3}, time.Minute) {
		t.Fatal("CacheSet failed")
	}

	var got payload
	if !s.CacheGet(ctx, "cache:test", &got) {
		t.Fatal("Expected cache hit")
	}
	if got.Name != "x" || got.Count != 3 {
		t.Errorf("Unexpected cached value: %+v", got)
	}

	// Expired entries read as absent.
	mr.FastForward(2 * time.Minute)
	if s.CacheGet(ctx, "cache:test", &got) {
		t.Error("Expected miss after TTL expiry")
	}

	if !s.CacheSet(ctx, "cache:gone", payload{}, time.Minute) {
		t.Fatal("CacheSet failed")
	}
	if !s.CacheDelete(ctx, "cache:gone") {
		t.Fatal("CacheDelete failed")
	}
	if s.CacheGet(ctx, "cache:gone", &got) {
		t.Error("Expected miss after delete")
	}
}

func TestCacheDropsCorruptEntries(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	if err := mr.Set("cache:bad", "{not json"); err != nil {
		t.Fatalf("Failed to seed corrupt entry: %v", err)
	}

	var dest map[string]string
	if s.CacheGet(ctx, "cache:bad", &dest) {
		t.Error("Expected miss for corrupt entry")
	}
	if mr.Exists("cache:bad") {
		t.Error("Expected corrupt entry to be deleted")
	}
}

func TestCitationRecord(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	rec, err := s.CitationRecordFor(ctx, "7")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if rec != nil {
		t.Fatal("Expected nil record for untracked article")
	}

	updated := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	if err := s.SetCitationRecord(ctx, "7", CitationRecord{
		CitationCount: 12,
		TotalResults:  4,
		LastUpdated:   updated,
		Data:          []byte(`{"article_title":"x"}`),
	}); err != nil {
		t.Fatalf("SetCitationRecord failed: %v", err)
	}

	rec, err = s.CitationRecordFor(ctx, "7")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if rec == nil {
		t.Fatal("Expected stored record")
	}
	if rec.CitationCount != 12 || rec.TotalResults != 4 {
		t.Errorf("Unexpected counts: %+v", rec)
	}
	if !rec.LastUpdated.Equal(updated) {
		t.Errorf("Expected last_updated %v, got %v", updated, rec.LastUpdated)
	}

	if ttl := mr.TTL("article:7:citations"); ttl <= 0 || ttl > citationTTL {
		t.Errorf("Expected TTL within (0, %v], got %v", citationTTL, ttl)
	}

	// Records expire rather than linger.
	mr.FastForward(citationTTL + time.Hour)
	rec, err = s.CitationRecordFor(ctx, "7")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if rec != nil {
		t.Error("Expected record to expire")
	}
}

func TestDegradedBackendReturnsZero(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	s.IncrementArticleViews(ctx, "42")
	mr.Close()

	if got := s.IncrementArticleViews(ctx, "42"); got != 0 {
		t.Errorf("Expected zero sentinel on unreachable backend, got %d", got)
	}
	if got := s.ArticleViews(ctx, "42"); got != 0 {
		t.Errorf("Expected zero read on unreachable backend, got %d", got)
	}
	if s.BumpTrending(ctx, "42", 1.0) {
		t.Error("Expected trending bump to report failure")
	}
	if got := s.TotalViews(ctx); got != 0 {
		t.Errorf("Expected zero total on unreachable backend, got %d", got)
	}
	if s.Connected(ctx) {
		t.Error("Expected Connected to report false")
	}
}
