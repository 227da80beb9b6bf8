package citations

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/openpress/pulse/pkg/store"
	"github.com/openpress/pulse/pkg/upstream"
)

// sweepPageSize is how many published submissions are pulled per journal.
const sweepPageSize = 50

// Tracker runs the citation sweep: for every published article of every
// configured journal it forces a fresh citation search and stores the
// summarized record.
type Tracker struct {
	citations *Service
	ojs       *upstream.OJSClient
	store     *store.Store
	log       *logrus.Logger
}

// NewTracker creates a citation tracker. A nil log falls back to the logrus
// default.
func NewTracker(citations *Service, ojs *upstream.OJSClient, st *store.Store, log *logrus.Logger) *Tracker {
	if log == nil {
		log = logrus.New()
	}
	return &Tracker{
		citations: citations,
		ojs:       ojs,
		store:     st,
		log:       log,
	}
}

// SweepResult summarizes one sweep run.
type SweepResult struct {
	Updated   []string  `json:"updated"`
	Failed    []string  `json:"failed"`
	Total     int       `json:"total"`
	Timestamp time.Time `json:"timestamp"`
}

// UpdateAll refreshes the citation record of every published article across
// the configured journals. Per-article failures are collected, never fatal;
// a journal whose listing fails is skipped wholesale.
func (t *Tracker) UpdateAll(ctx context.Context) *SweepResult {
	result := &SweepResult{
		Updated:   []string{},
		Failed:    []string{},
		Timestamp: time.Now().UTC(),
	}

	for _, ref := range t.ojs.JournalRefs() {
		submissions, err := t.ojs.Submissions(ctx, ref.Path, "published", 1, sweepPageSize)
		if err != nil {
			t.log.WithError(err).WithField("journal", ref.Path).Warn("skipping journal, listing failed")
			continue
		}

		for _, item := range submissions.Items {
			title := item.Title.Value()
			if title == "" {
				continue
			}
			articleID := strconv.Itoa(item.ID)
			result.Total++

			var author string
			if len(item.Authors) > 0 {
				author = item.Authors[0].FullName
			}

			search, err := t.citations.Lookup(ctx, title, author, ref.Path, true)
			if err != nil {
				t.log.WithError(err).WithField("article", articleID).Warn("citation search failed")
				result.Failed = append(result.Failed, articleID)
				continue
			}

			data, err := json.Marshal(search)
			if err != nil {
				result.Failed = append(result.Failed, articleID)
				continue
			}

			rec := store.CitationRecord{
				CitationCount: search.CitationCount,
				TotalResults:  search.TotalResults,
				LastUpdated:   time.Now().UTC(),
				Data:          data,
			}
			if err := t.store.SetCitationRecord(ctx, articleID, rec); err != nil {
				t.log.WithError(err).WithField("article", articleID).Error("failed to store citation record")
				result.Failed = append(result.Failed, articleID)
				continue
			}

			result.Updated = append(result.Updated, articleID)
			t.log.WithFields(logrus.Fields{
				"article":   articleID,
				"citations": search.CitationCount,
			}).Info("citation record updated")
		}
	}

	t.log.WithFields(logrus.Fields{
		"total":   result.Total,
		"updated": len(result.Updated),
		"failed":  len(result.Failed),
	}).Info("citation sweep finished")

	return result
}
