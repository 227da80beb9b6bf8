package analytics

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/openpress/pulse/pkg/citations"
	"github.com/openpress/pulse/pkg/httputil"
	"github.com/openpress/pulse/pkg/observability"
	"github.com/openpress/pulse/pkg/realtime"
	"github.com/openpress/pulse/pkg/store"
	"github.com/openpress/pulse/pkg/upstream"
)

// Handlers mounts the HTTP surface: tracking, aggregates, upstream proxies,
// citation endpoints and the real-time transports.
type Handlers struct {
	service   *Service
	matomo    *upstream.MatomoClient
	ojs       *upstream.OJSClient
	citations *citations.Service
	tracker   *citations.Tracker
	store     *store.Store
	streams   *realtime.StreamServer
	health    http.Handler
	logger    *observability.Logger
}

// NewHandlers creates the handler set.
func NewHandlers(
	service *Service,
	matomo *upstream.MatomoClient,
	ojs *upstream.OJSClient,
	citationSvc *citations.Service,
	tracker *citations.Tracker,
	st *store.Store,
	streams *realtime.StreamServer,
	health http.Handler,
	logger *observability.Logger,
) *Handlers {
	return &Handlers{
		service:   service,
		matomo:    matomo,
		ojs:       ojs,
		citations: citationSvc,
		tracker:   tracker,
		store:     st,
		streams:   streams,
		health:    health,
		logger:    logger,
	}
}

// RegisterRoutes mounts all routes on the router.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.Handle("/health", h.health).Methods(http.MethodGet)

	// Aggregates and live reads.
	r.HandleFunc("/dashboard", h.handleDashboard).Methods(http.MethodGet)
	r.HandleFunc("/kpi", h.handleKPI).Methods(http.MethodGet)
	r.HandleFunc("/live-metrics", h.handleLiveMetrics).Methods(http.MethodGet)
	r.HandleFunc("/trending", h.handleTrending).Methods(http.MethodGet)
	r.HandleFunc("/geo-heatmap", h.handleGeoHeatmap).Methods(http.MethodGet)
	r.HandleFunc("/article/{id}/metrics", h.handleArticleMetrics).Methods(http.MethodGet)

	// Tracking.
	r.HandleFunc("/track/view", h.handleTrackView).Methods(http.MethodPost)
	r.HandleFunc("/track/download", h.handleTrackDownload).Methods(http.MethodPost)

	// Analytics upstream proxies.
	r.HandleFunc("/realtime", h.handleRealtime).Methods(http.MethodGet)
	r.HandleFunc("/top-articles", h.handleTopArticles).Methods(http.MethodGet)
	r.HandleFunc("/downloads", h.handleDownloads).Methods(http.MethodGet)
	r.HandleFunc("/countries", h.handleCountries).Methods(http.MethodGet)
	r.HandleFunc("/devices", h.handleDevices).Methods(http.MethodGet)
	r.HandleFunc("/referrers", h.handleReferrers).Methods(http.MethodGet)
	r.HandleFunc("/trends", h.handleTrends).Methods(http.MethodGet)

	// Content upstream proxies and metrics assembly.
	r.HandleFunc("/journals", h.handleJournals).Methods(http.MethodGet)
	r.HandleFunc("/journals/metrics", h.handleAllJournalMetrics).Methods(http.MethodGet)
	r.HandleFunc("/journals/{path}/issues", h.handleJournalIssues).Methods(http.MethodGet)
	r.HandleFunc("/journals/{path}/submissions", h.handleJournalSubmissions).Methods(http.MethodGet)
	r.HandleFunc("/journals/{path}/stats", h.handleJournalStats).Methods(http.MethodGet)
	r.HandleFunc("/journals/{path}/metrics", h.handleJournalMetrics).Methods(http.MethodGet)
	r.HandleFunc("/journals/{path}/articles/{id}", h.handleJournalArticle).Methods(http.MethodGet)
	r.HandleFunc("/journals/{path}/articles/{id}/metrics", h.handleJournalArticleMetrics).Methods(http.MethodGet)

	// Citations.
	r.HandleFunc("/articles/{id}/citations", h.handleArticleCitations).Methods(http.MethodGet)
	r.HandleFunc("/citations/search", h.handleCitationsSearch).Methods(http.MethodGet)
	r.HandleFunc("/citations/update", h.handleCitationsUpdate).Methods(http.MethodPost)

	// Real-time transports.
	r.HandleFunc("/sse", h.streams.HandleSSE).Methods(http.MethodGet)
	r.HandleFunc("/events", h.streams.HandleEvents).Methods(http.MethodGet)
	r.HandleFunc("/ws", h.streams.HandleWS).Methods(http.MethodGet)
}

// writeUpstreamError maps the upstream error taxonomy onto HTTP statuses for
// direct proxy endpoints. Aggregate endpoints never call this; they degrade
// per section instead.
func writeUpstreamError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, upstream.ErrNotConfigured),
		errors.Is(err, upstream.ErrUnavailable),
		errors.Is(err, upstream.ErrTimeout),
		errors.Is(err, upstream.ErrMalformedResponse):
		httputil.WriteServiceUnavailable(w, err.Error())
	default:
		httputil.WriteInternalError(w, err)
	}
}

func (h *Handlers) handleDashboard(w http.ResponseWriter, r *http.Request) {
	period := httputil.QueryString(r, "period", "month")
	date := httputil.QueryString(r, "date", "today")
	httputil.WriteSuccess(w, h.service.Dashboard(r.Context(), period, date))
}

func (h *Handlers) handleKPI(w http.ResponseWriter, r *http.Request) {
	period := httputil.QueryString(r, "period", "day")
	date := httputil.QueryString(r, "date", "today")

	kpi, err := h.matomo.KPI(r.Context(), period, date)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	httputil.WriteSuccess(w, kpi)
}

func (h *Handlers) handleLiveMetrics(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, h.service.LiveMetrics(r.Context()))
}

func (h *Handlers) handleTrending(w http.ResponseWriter, r *http.Request) {
	limit := httputil.QueryInt(r, "limit", 10)
	httputil.WriteSuccess(w, map[string]interface{}{
		"trending": h.service.Trending(r.Context(), limit),
	})
}

func (h *Handlers) handleGeoHeatmap(w http.ResponseWriter, r *http.Request) {
	period := httputil.QueryString(r, "period", "month")
	date := httputil.QueryString(r, "date", "today")
	httputil.WriteSuccess(w, h.service.GeoHeatmap(r.Context(), period, date))
}

func (h *Handlers) handleArticleMetrics(w http.ResponseWriter, r *http.Request) {
	articleID := mux.Vars(r)["id"]
	httputil.WriteSuccess(w, h.service.ArticleMetrics(r.Context(), articleID))
}

// parseTrackRequest validates the tracking body. Validation failures happen
// before any side effect.
func parseTrackRequest(w http.ResponseWriter, r *http.Request) (TrackRequest, bool) {
	var req TrackRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return req, false
	}
	if req.ArticleID == "" {
		httputil.WriteBadRequest(w, "article_id is required")
		return req, false
	}
	return req, true
}

func (h *Handlers) handleTrackView(w http.ResponseWriter, r *http.Request) {
	req, ok := parseTrackRequest(w, r)
	if !ok {
		return
	}
	httputil.WriteSuccess(w, h.service.TrackView(r.Context(), req))
}

func (h *Handlers) handleTrackDownload(w http.ResponseWriter, r *http.Request) {
	req, ok := parseTrackRequest(w, r)
	if !ok {
		return
	}
	httputil.WriteSuccess(w, h.service.TrackDownload(r.Context(), req))
}

// handleRealtime returns the live visitor count alongside the recent visit
// detail rows. The count degrades to zero on its own; only a failed detail
// fetch surfaces an error.
func (h *Handlers) handleRealtime(w http.ResponseWriter, r *http.Request) {
	maxRows := httputil.QueryInt(r, "max_rows", 10)

	visits, err := h.matomo.RealtimeVisits(r.Context(), maxRows)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}

	count, err := h.matomo.RealtimeCount(r.Context())
	if err != nil {
		count = 0
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"count":  count,
		"visits": visits,
	})
}

func (h *Handlers) handleTopArticles(w http.ResponseWriter, r *http.Request) {
	period := httputil.QueryString(r, "period", "week")
	date := httputil.QueryString(r, "date", "today")
	limit := httputil.QueryInt(r, "limit", 20)

	rows, err := h.matomo.TopArticles(r.Context(), period, date, limit)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	httputil.WriteSuccess(w, rows)
}

func (h *Handlers) handleDownloads(w http.ResponseWriter, r *http.Request) {
	period := httputil.QueryString(r, "period", "month")
	date := httputil.QueryString(r, "date", "today")
	limit := httputil.QueryInt(r, "limit", 20)

	rows, err := h.matomo.Downloads(r.Context(), period, date, limit)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	httputil.WriteSuccess(w, rows)
}

func (h *Handlers) handleCountries(w http.ResponseWriter, r *http.Request) {
	period := httputil.QueryString(r, "period", "month")
	date := httputil.QueryString(r, "date", "today")

	rows, err := h.matomo.Countries(r.Context(), period, date)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	httputil.WriteSuccess(w, rows)
}

func (h *Handlers) handleDevices(w http.ResponseWriter, r *http.Request) {
	period := httputil.QueryString(r, "period", "month")
	date := httputil.QueryString(r, "date", "today")

	rows, err := h.matomo.Devices(r.Context(), period, date)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	httputil.WriteSuccess(w, rows)
}

func (h *Handlers) handleReferrers(w http.ResponseWriter, r *http.Request) {
	period := httputil.QueryString(r, "period", "month")
	date := httputil.QueryString(r, "date", "today")

	rows, err := h.matomo.Referrers(r.Context(), period, date)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	httputil.WriteSuccess(w, rows)
}

func (h *Handlers) handleTrends(w http.ResponseWriter, r *http.Request) {
	period := httputil.QueryString(r, "period", "day")
	date := httputil.QueryString(r, "date", "last30")

	trends, err := h.matomo.Trends(r.Context(), period, date)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	httputil.WriteSuccess(w, trends)
}

func (h *Handlers) handleJournals(w http.ResponseWriter, r *http.Request) {
	journals, err := h.ojs.Journals(r.Context())
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{
		"itemsMax": len(journals),
		"items":    journals,
	})
}

func (h *Handlers) handleJournalIssues(w http.ResponseWriter, r *http.Request) {
	issues, err := h.ojs.Issues(r.Context(), mux.Vars(r)["path"])
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	httputil.WriteSuccess(w, issues)
}

func (h *Handlers) handleJournalSubmissions(w http.ResponseWriter, r *http.Request) {
	status := httputil.QueryString(r, "status", "")
	page := httputil.QueryInt(r, "page", 1)
	perPage := httputil.QueryInt(r, "per_page", 20)

	submissions, err := h.ojs.Submissions(r.Context(), mux.Vars(r)["path"], status, page, perPage)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	httputil.WriteSuccess(w, submissions)
}

func (h *Handlers) handleJournalStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.ojs.JournalStats(r.Context(), mux.Vars(r)["path"])
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	httputil.WriteSuccess(w, stats)
}

func (h *Handlers) handleAllJournalMetrics(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, h.service.AllJournalMetrics(r.Context()))
}

func (h *Handlers) handleJournalMetrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.service.JournalMetrics(r.Context(), mux.Vars(r)["path"])
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	httputil.WriteSuccess(w, metrics)
}

func (h *Handlers) handleJournalArticle(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	article, err := h.ojs.Article(r.Context(), vars["path"], vars["id"])
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	httputil.WriteSuccess(w, article)
}

func (h *Handlers) handleJournalArticleMetrics(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	details, err := h.service.ArticleDetails(r.Context(), vars["path"], vars["id"])
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	httputil.WriteSuccess(w, details)
}

// handleCitationsSearch looks up citations by title, served from the 24 hour
// cache unless refresh=true.
func (h *Handlers) handleCitationsSearch(w http.ResponseWriter, r *http.Request) {
	title := httputil.QueryString(r, "title", "")
	if title == "" {
		httputil.WriteBadRequest(w, "title is required")
		return
	}
	author := httputil.QueryString(r, "author", "")
	journal := httputil.QueryString(r, "journal", "")
	refresh := httputil.QueryBool(r, "refresh", false)

	result, err := h.citations.Lookup(r.Context(), title, author, journal, refresh)
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	httputil.WriteSuccess(w, result)
}

func (h *Handlers) handleArticleCitations(w http.ResponseWriter, r *http.Request) {
	articleID := mux.Vars(r)["id"]

	rec, err := h.store.CitationRecordFor(r.Context(), articleID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if rec == nil {
		httputil.WriteNotFound(w, "no citation record for article")
		return
	}
	httputil.WriteSuccess(w, rec)
}

func (h *Handlers) handleCitationsUpdate(w http.ResponseWriter, r *http.Request) {
	result := h.tracker.UpdateAll(r.Context())
	httputil.WriteSuccess(w, map[string]interface{}{
		"success":   true,
		"updated":   len(result.Updated),
		"failed":    len(result.Failed),
		"total":     result.Total,
		"timestamp": result.Timestamp,
	})
}
