package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/openpress/pulse/pkg/citations"
	"github.com/openpress/pulse/pkg/config"
	"github.com/openpress/pulse/pkg/observability"
	"github.com/openpress/pulse/pkg/store"
	"github.com/openpress/pulse/pkg/upstream"
)

var (
	schedule = flag.String("schedule", "", "Cron schedule for the citation sweep (default: config or 02:30 UTC)")
	runOnce  = flag.Bool("run-once", false, "Run the sweep once and exit (for testing)")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	sweepLog := logrus.New()

	st, err := store.New(cfg.Redis, logger)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer st.Close()

	refs := make([]upstream.JournalRef, 0, len(cfg.Journals))
	for _, j := range cfg.Journals {
		refs = append(refs, upstream.JournalRef{Path: j.Path, ID: j.ID})
	}
	ojs := upstream.NewOJSClient(cfg.OJS.BaseURL, cfg.OJS.APIKey, refs, logger)
	serper := upstream.NewCitationsClient(cfg.Citations.APIKey, logger)

	tracker := citations.NewTracker(citations.NewService(serper, st, logger), ojs, st, sweepLog)

	// Run once mode (for testing or manual refreshes)
	if *runOnce {
		result := tracker.UpdateAll(context.Background())
		if len(result.Failed) > 0 && len(result.Updated) == 0 {
			log.Fatalf("Citation sweep failed for all %d articles", result.Total)
		}
		log.Printf("Citation sweep finished: %d updated, %d failed of %d", len(result.Updated), len(result.Failed), result.Total)
		return
	}

	cronSchedule := cfg.Citations.Schedule
	if *schedule != "" {
		cronSchedule = *schedule
	}

	c := cron.New()
	_, err = c.AddFunc(cronSchedule, func() {
		log.Println("Starting citation sweep")
		result := tracker.UpdateAll(context.Background())
		log.Printf("Citation sweep finished: %d updated, %d failed of %d", len(result.Updated), len(result.Failed), result.Total)
	})
	if err != nil {
		log.Fatalf("Failed to schedule citation sweep: %v", err)
	}

	c.Start()
	log.Println("Pulse citation tracker started")
	log.Printf("Sweep schedule: %s", cronSchedule)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down gracefully...")
	ctx := c.Stop()
	<-ctx.Done()
	log.Println("Citation tracker stopped")
}
