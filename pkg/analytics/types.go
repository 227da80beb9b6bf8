package analytics

import (
	"encoding/json"
	"time"

	"github.com/openpress/pulse/pkg/realtime"
	"github.com/openpress/pulse/pkg/store"
	"github.com/openpress/pulse/pkg/upstream"
)

// TrackRequest is the body of the tracking endpoints. CountryCode is an
// optional hint used to maintain the live geo histogram.
type TrackRequest struct {
	ArticleID   string `json:"article_id"`
	JournalID   string `json:"journal_id,omitempty"`
	CountryCode string `json:"country_code,omitempty"`
}

// ViewTracked is the response to a tracked view.
type ViewTracked struct {
	Success   bool   `json:"success"`
	ArticleID string `json:"article_id"`
	Views     int64  `json:"views"`
}

// DownloadTracked is the response to a tracked download.
type DownloadTracked struct {
	Success   bool   `json:"success"`
	ArticleID string `json:"article_id"`
	Downloads int64  `json:"downloads"`
}

// TrackEventPayload is the broadcast payload for view/download events.
type TrackEventPayload struct {
	ArticleID string    `json:"article_id"`
	JournalID string    `json:"journal_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Dashboard is the merged cross-source snapshot. Upstream sections are nil
// when their source failed; live sections are zero-filled instead.
type Dashboard struct {
	KPI           *upstream.KPISummary       `json:"kpi"`
	RealtimeCount int                        `json:"realtime_count"`
	TopArticles   []upstream.PageStat        `json:"top_articles"`
	Downloads     []upstream.PageStat        `json:"downloads"`
	Countries     []upstream.CountryStat     `json:"countries"`
	Devices       []upstream.SegmentStat     `json:"devices"`
	Referrers     []upstream.SegmentStat     `json:"referrers"`
	Trends        map[string]json.RawMessage `json:"trends"`
	LiveMetrics   realtime.LiveMetrics       `json:"live_metrics"`
	Trending      []store.TrendingEntry      `json:"trending"`
}

// CounterPair groups the live view/download counts for one subject.
type CounterPair struct {
	Views     int64 `json:"views"`
	Downloads int64 `json:"downloads"`
}

// ArticleMetrics is the per-article snapshot: live counters plus the cached
// citation record when one exists.
type ArticleMetrics struct {
	ArticleID string                `json:"article_id"`
	Realtime  CounterPair           `json:"realtime"`
	Citations *store.CitationRecord `json:"citations,omitempty"`
}

// GeoHeatmap merges upstream country statistics with the live geo histogram.
type GeoHeatmap struct {
	Upstream []upstream.CountryStat `json:"upstream"`
	Live     map[string]int64       `json:"live"`
}

// RecentArticle is a condensed submission row inside journal metrics.
type RecentArticle struct {
	ID            int      `json:"id"`
	Title         string   `json:"title"`
	Status        int      `json:"status"`
	DatePublished string   `json:"date_published,omitempty"`
	Authors       []string `json:"authors"`
}

// JournalSection is one section of a journal.
type JournalSection struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

// JournalMetrics merges a journal's content inventory with its live view
// counter.
type JournalMetrics struct {
	JournalPath     string           `json:"journal_path"`
	TotalArticles   int              `json:"total_articles"`
	TotalIssues     int              `json:"total_issues"`
	PublishedIssues int              `json:"published_issues"`
	RecentArticles  []RecentArticle  `json:"recent_articles"`
	Sections        []JournalSection `json:"sections"`
	Views           int64            `json:"views"`
}

// AllJournalMetrics is the rollup across every configured journal.
type AllJournalMetrics struct {
	Journals      []JournalMetrics `json:"journals"`
	TotalJournals int              `json:"total_journals"`
	TotalArticles int              `json:"total_articles"`
	TotalIssues   int              `json:"total_issues"`
	Timestamp     time.Time        `json:"timestamp"`
}

// ArticleAuthor is one author row inside article details.
type ArticleAuthor struct {
	FullName    string `json:"full_name"`
	Affiliation string `json:"affiliation,omitempty"`
	ORCID       string `json:"orcid,omitempty"`
}

// ArticleDetails merges a submission's content record with its live counters
// and the cached citation summary.
type ArticleDetails struct {
	ArticleID     int                   `json:"article_id"`
	Title         string                `json:"title"`
	Abstract      string                `json:"abstract,omitempty"`
	Section       string                `json:"section,omitempty"`
	Status        int                   `json:"status"`
	DatePublished string                `json:"date_published,omitempty"`
	Authors       []ArticleAuthor       `json:"authors"`
	Views         int64                 `json:"views"`
	Downloads     int64                 `json:"downloads"`
	Citations     *store.CitationRecord `json:"citations,omitempty"`
}
