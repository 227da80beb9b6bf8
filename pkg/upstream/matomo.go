package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/openpress/pulse/pkg/observability"
)

// MatomoClient wraps the Matomo reporting API. Every reporting call is a
// POST of form parameters to the installation's base URL with
// module=API/method/idSite/format=JSON/token_auth.
type MatomoClient struct {
	baseURL string
	token   string
	siteID  string
	http    *http.Client
	logger  *observability.Logger
}

// NewMatomoClient creates a Matomo client. An empty base URL or token yields
// a client whose calls all return ErrNotConfigured.
func NewMatomoClient(baseURL, token, siteID string, logger *observability.Logger) *MatomoClient {
	return &MatomoClient{
		baseURL: baseURL,
		token:   token,
		siteID:  siteID,
		http:    &http.Client{Timeout: requestTimeout},
		logger:  logger.WithField("upstream", "matomo"),
	}
}

// IsConfigured reports whether the client has a base URL and auth token.
func (c *MatomoClient) IsConfigured() bool {
	return c.baseURL != "" && c.token != ""
}

// KPISummary is the VisitsSummary.get result for one period.
type KPISummary struct {
	Visits         int    `json:"nb_visits"`
	UniqueVisitors int    `json:"nb_uniq_visitors"`
	Actions        int    `json:"nb_actions"`
	BounceRate     string `json:"bounce_rate"`
	AvgTimeOnSite  int    `json:"avg_time_on_site"`
	MaxActions     int    `json:"max_actions"`
}

// PageStat is one row of a page-level report (top articles, downloads).
type PageStat struct {
	Label  string `json:"label"`
	Hits   int    `json:"nb_hits"`
	Visits int    `json:"nb_visits"`
	URL    string `json:"url,omitempty"`
}

// CountryStat is one row of the visitor-country report.
type CountryStat struct {
	Label  string `json:"label"`
	Code   string `json:"code"`
	Visits int    `json:"nb_visits"`
}

// SegmentStat is one row of a device or referrer breakdown.
type SegmentStat struct {
	Label  string `json:"label"`
	Visits int    `json:"nb_visits"`
}

// call issues one reporting API request and decodes the JSON body into dest.
func (c *MatomoClient) call(ctx context.Context, method string, params url.Values, dest interface{}) error {
	if !c.IsConfigured() {
		return ErrNotConfigured
	}

	form := url.Values{
		"module":     {"API"},
		"method":     {method},
		"idSite":     {c.siteID},
		"format":     {"JSON"},
		"token_auth": {c.token},
	}
	for key, values := range params {
		for _, v := range values {
			form.Add(key, v)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build matomo request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.WithError(err).WithField("method", method).Warn("matomo request failed")
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s returned status %d", ErrUnavailable, method, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return classifyTransportError(err)
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedResponse, method, err)
	}
	return nil
}

// KPI returns the visit summary for a period.
func (c *MatomoClient) KPI(ctx context.Context, period, date string) (*KPISummary, error) {
	var out KPISummary
	if err := c.call(ctx, "VisitsSummary.get", url.Values{"period": {period}, "date": {date}}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RealtimeCount returns the number of visitors active in the last 30 minutes.
func (c *MatomoClient) RealtimeCount(ctx context.Context) (int, error) {
	var out []struct {
		Visits int `json:"visits"`
	}
	if err := c.call(ctx, "Live.getCounters", url.Values{"lastMinutes": {"30"}}, &out); err != nil {
		return 0, err
	}
	if len(out) == 0 {
		return 0, nil
	}
	return out[0].Visits, nil
}

// RealtimeVisits returns the most recent visit detail rows. The report
// schema is wide and version-dependent, so rows stay raw JSON for callers to
// pass through.
func (c *MatomoClient) RealtimeVisits(ctx context.Context, maxRows int) ([]json.RawMessage, error) {
	var out []json.RawMessage
	if err := c.call(ctx, "Live.getLastVisitsDetails", url.Values{"maxRows": {strconv.Itoa(maxRows)}}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// TopArticles returns the most-viewed page titles for a period.
func (c *MatomoClient) TopArticles(ctx context.Context, period, date string, limit int) ([]PageStat, error) {
	params := url.Values{
		"period":       {period},
		"date":         {date},
		"flat":         {"1"},
		"filter_limit": {strconv.Itoa(limit)},
	}
	var out []PageStat
	if err := c.call(ctx, "Actions.getPageTitles", params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Downloads returns the file-download report for a period.
func (c *MatomoClient) Downloads(ctx context.Context, period, date string, limit int) ([]PageStat, error) {
	params := url.Values{
		"period":       {period},
		"date":         {date},
		"expanded":     {"1"},
		"filter_limit": {strconv.Itoa(limit)},
	}
	var out []PageStat
	if err := c.call(ctx, "Actions.getDownloads", params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Countries returns the visitor-country breakdown for a period.
func (c *MatomoClient) Countries(ctx context.Context, period, date string) ([]CountryStat, error) {
	var out []CountryStat
	if err := c.call(ctx, "UserCountry.getCountry", url.Values{"period": {period}, "date": {date}}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Devices returns the device-type breakdown for a period.
func (c *MatomoClient) Devices(ctx context.Context, period, date string) ([]SegmentStat, error) {
	var out []SegmentStat
	if err := c.call(ctx, "DevicesDetection.getType", url.Values{"period": {period}, "date": {date}}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Referrers returns the referrer-type breakdown for a period.
func (c *MatomoClient) Referrers(ctx context.Context, period, date string) ([]SegmentStat, error) {
	var out []SegmentStat
	if err := c.call(ctx, "Referrers.getReferrerType", url.Values{"period": {period}, "date": {date}}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Trends returns per-period visit summaries over a date range, keyed by date.
// Matomo reports empty periods as empty arrays, so values stay raw JSON.
func (c *MatomoClient) Trends(ctx context.Context, period, date string) (map[string]json.RawMessage, error) {
	var out map[string]json.RawMessage
	if err := c.call(ctx, "VisitsSummary.get", url.Values{"period": {period}, "date": {date}}, &out); err != nil {
		return nil, err
	}
	return out, nil
}
