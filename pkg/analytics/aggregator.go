package analytics

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// dashboardLimit caps the row count of the list-valued dashboard sections.
const dashboardLimit = 10

// Dashboard assembles the merged cross-source snapshot. Each upstream
// section is fetched concurrently and independently; a failing section is
// left nil and the call never fails wholesale.
func (s *Service) Dashboard(ctx context.Context, period, date string) *Dashboard {
	d := &Dashboard{}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if kpi, err := s.matomo.KPI(gctx, period, date); err == nil {
			d.KPI = kpi
		} else {
			s.logger.WithError(err).Debug("dashboard kpi section unavailable")
		}
		return nil
	})
	g.Go(func() error {
		if count, err := s.matomo.RealtimeCount(gctx); err == nil {
			d.RealtimeCount = count
		}
		return nil
	})
	g.Go(func() error {
		if rows, err := s.matomo.TopArticles(gctx, period, date, dashboardLimit); err == nil {
			d.TopArticles = rows
		}
		return nil
	})
	g.Go(func() error {
		if rows, err := s.matomo.Downloads(gctx, period, date, dashboardLimit); err == nil {
			d.Downloads = rows
		}
		return nil
	})
	g.Go(func() error {
		if rows, err := s.matomo.Countries(gctx, period, date); err == nil {
			d.Countries = rows
		}
		return nil
	})
	g.Go(func() error {
		if rows, err := s.matomo.Devices(gctx, period, date); err == nil {
			d.Devices = rows
		}
		return nil
	})
	g.Go(func() error {
		if rows, err := s.matomo.Referrers(gctx, period, date); err == nil {
			d.Referrers = rows
		}
		return nil
	})
	g.Go(func() error {
		if trends, err := s.matomo.Trends(gctx, "day", "last30"); err == nil {
			d.Trends = trends
		}
		return nil
	})

	// Every closure returns nil; Wait only synchronizes.
	_ = g.Wait()

	d.LiveMetrics = s.LiveMetrics(ctx)
	d.Trending = s.Trending(ctx, dashboardLimit)

	return d
}

// GeoHeatmap merges the upstream country report with the live geo histogram.
// The upstream section is nil when the source is down; the live section is
// always present.
func (s *Service) GeoHeatmap(ctx context.Context, period, date string) *GeoHeatmap {
	hm := &GeoHeatmap{
		Live: s.store.GeoSnapshot(ctx),
	}

	if rows, err := s.matomo.Countries(ctx, period, date); err == nil {
		hm.Upstream = rows
	} else {
		s.logger.WithError(err).Debug("geo heatmap upstream section unavailable")
	}

	return hm
}
