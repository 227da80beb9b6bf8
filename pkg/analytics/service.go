package analytics

import (
	"context"
	"time"

	"github.com/openpress/pulse/pkg/observability"
	"github.com/openpress/pulse/pkg/realtime"
	"github.com/openpress/pulse/pkg/store"
	"github.com/openpress/pulse/pkg/upstream"
)

// Service owns the tracking flow and live-metric reads: counters and
// trending in the backing store, broadcast through the hub, realtime visitor
// counts from the analytics upstream.
type Service struct {
	store   *store.Store
	matomo  *upstream.MatomoClient
	ojs     *upstream.OJSClient
	hub     *realtime.Hub
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewService creates the analytics service. metrics may be nil.
func NewService(st *store.Store, matomo *upstream.MatomoClient, ojs *upstream.OJSClient, hub *realtime.Hub, logger *observability.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		store:   st,
		matomo:  matomo,
		ojs:     ojs,
		hub:     hub,
		logger:  logger,
		metrics: metrics,
	}
}

// TrackView records one article view: article counter, trending bump,
// optional journal counter and geo hint, then a broadcast to the analytics
// room. Counter writes are best-effort; a degraded store yields zero counts
// but the request still succeeds.
func (s *Service) TrackView(ctx context.Context, req TrackRequest) ViewTracked {
	views := s.store.IncrementArticleViews(ctx, req.ArticleID)
	s.store.BumpTrending(ctx, req.ArticleID, 1.0)

	if req.JournalID != "" {
		s.store.IncrementJournalViews(ctx, req.JournalID)
	}
	if req.CountryCode != "" {
		s.store.GeoIncrement(ctx, req.CountryCode)
	}

	if s.metrics != nil {
		s.metrics.ViewsTracked.Inc()
	}

	s.hub.Publish(realtime.DefaultRoom, realtime.Event{
		Type: realtime.EventView,
		Data: TrackEventPayload{
			ArticleID: req.ArticleID,
			JournalID: req.JournalID,
			Timestamp: time.Now().UTC(),
		},
	})

	return ViewTracked{Success: true, ArticleID: req.ArticleID, Views: views}
}

// TrackDownload records one article download. Downloads do not feed the
// trending set.
func (s *Service) TrackDownload(ctx context.Context, req TrackRequest) DownloadTracked {
	downloads := s.store.IncrementArticleDownloads(ctx, req.ArticleID)

	if req.CountryCode != "" {
		s.store.GeoIncrement(ctx, req.CountryCode)
	}

	if s.metrics != nil {
		s.metrics.DownloadsTracked.Inc()
	}

	s.hub.Publish(realtime.DefaultRoom, realtime.Event{
		Type: realtime.EventDownload,
		Data: TrackEventPayload{
			ArticleID: req.ArticleID,
			JournalID: req.JournalID,
			Timestamp: time.Now().UTC(),
		},
	})

	return DownloadTracked{Success: true, ArticleID: req.ArticleID, Downloads: downloads}
}

// LiveMetrics assembles the realtime snapshot. Every input degrades to zero
// on failure; the call itself never fails.
func (s *Service) LiveMetrics(ctx context.Context) realtime.LiveMetrics {
	count, err := s.matomo.RealtimeCount(ctx)
	if err != nil {
		count = 0
	}

	return realtime.LiveMetrics{
		RealtimeCount:  count,
		TotalViews:     s.store.TotalViews(ctx),
		TotalDownloads: s.store.TotalDownloads(ctx),
		Timestamp:      time.Now().UTC(),
	}
}

// Trending returns the current top trending articles.
func (s *Service) Trending(ctx context.Context, limit int) []store.TrendingEntry {
	return s.store.Trending(ctx, limit)
}

// ArticleMetrics returns the live counters for one article plus its cached
// citation record when present.
func (s *Service) ArticleMetrics(ctx context.Context, articleID string) ArticleMetrics {
	m := ArticleMetrics{
		ArticleID: articleID,
		Realtime: CounterPair{
			Views:     s.store.ArticleViews(ctx, articleID),
			Downloads: s.store.ArticleDownloads(ctx, articleID),
		},
	}

	if rec, err := s.store.CitationRecordFor(ctx, articleID); err == nil {
		m.Citations = rec
	}

	return m
}
