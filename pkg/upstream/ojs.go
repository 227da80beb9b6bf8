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

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/openpress/pulse/pkg/observability"
)

// journalContextCacheSize bounds the in-process context cache; deployments
// track a handful of journals so this never evicts in practice.
const journalContextCacheSize = 32

// JournalRef identifies one hosted journal: its URL path segment and the
// numeric context ID the API knows it by.
type JournalRef struct {
	Path string `json:"path"`
	ID   string `json:"id"`
}

// Localized is an OJS locale-keyed string field.
type Localized map[string]string

// Value returns the English value, falling back to any locale present.
func (l Localized) Value() string {
	if v, ok := l["en"]; ok && v != "" {
		return v
	}
	for _, v := range l {
		if v != "" {
			return v
		}
	}
	return ""
}

// Journal is an OJS context record.
type Journal struct {
	ID          int       `json:"id"`
	URLPath     string    `json:"urlPath"`
	Name        Localized `json:"name"`
	Description Localized `json:"description"`
	Enabled     bool      `json:"enabled"`
}

// Issue is one journal issue.
type Issue struct {
	ID             int    `json:"id"`
	Volume         int    `json:"volume"`
	Number         string `json:"number"`
	Year           int    `json:"year"`
	DatePublished  string `json:"datePublished"`
	Identification string `json:"identification"`
}

// IssueList is a paginated issue listing.
type IssueList struct {
	ItemsMax int     `json:"itemsMax"`
	Items    []Issue `json:"items"`
}

// Section is one journal section.
type Section struct {
	ID    int       `json:"id"`
	Title Localized `json:"title"`
}

// Author is one submission author.
type Author struct {
	FullName    string `json:"fullName"`
	Affiliation string `json:"affiliation"`
	ORCID       string `json:"orcid"`
}

// Submission is one article submission.
type Submission struct {
	ID            int       `json:"id"`
	Title         Localized `json:"title"`
	Abstract      Localized `json:"abstract"`
	Status        int       `json:"status"`
	DatePublished string    `json:"datePublished"`
	URLPublished  string    `json:"urlPublished"`
	Section       Section   `json:"section"`
	Authors       []Author  `json:"authors"`
}

// SubmissionList is a paginated submission listing.
type SubmissionList struct {
	ItemsMax int          `json:"itemsMax"`
	Items    []Submission `json:"items"`
}

// JournalStats is the aggregated content summary for one journal.
type JournalStats struct {
	JournalPath   string `json:"journal_path"`
	TotalArticles int    `json:"total_articles"`
	TotalIssues   int    `json:"total_issues"`
}

// OJSClient wraps the OJS REST API. Endpoints live under
// <base>/index.php/<journal-path>/api/v1/ and authenticate with an apiToken
// query parameter. There is no system-wide journal listing; the client
// iterates the configured journal refs instead.
type OJSClient struct {
	baseURL  string
	apiKey   string
	journals []JournalRef
	http     *http.Client
	contexts *lru.Cache[string, *Journal]
	logger   *observability.Logger
}

// NewOJSClient creates an OJS client. The base URL is normalized to end with
// /index.php so endpoint paths concatenate cleanly.
func NewOJSClient(baseURL, apiKey string, journals []JournalRef, logger *observability.Logger) *OJSClient {
	if baseURL != "" && !strings.HasSuffix(baseURL, "/index.php") {
		baseURL = strings.TrimRight(baseURL, "/") + "/index.php"
	}

	// Size is fixed and positive, the constructor cannot fail.
	contexts, _ := lru.New[string, *Journal](journalContextCacheSize)

	return &OJSClient{
		baseURL:  baseURL,
		apiKey:   apiKey,
		journals: journals,
		http:     &http.Client{Timeout: requestTimeout},
		contexts: contexts,
		logger:   logger.WithField("upstream", "ojs"),
	}
}

// IsConfigured reports whether the client has a base URL and API key.
func (c *OJSClient) IsConfigured() bool {
	return c.baseURL != "" && c.apiKey != ""
}

// JournalRefs returns the configured journal (path, id) pairs.
func (c *OJSClient) JournalRefs() []JournalRef {
	return c.journals
}

// get issues one API request against a journal-scoped endpoint and decodes
// the JSON body into dest.
func (c *OJSClient) get(ctx context.Context, endpoint string, params url.Values, dest interface{}) error {
	if !c.IsConfigured() {
		return ErrNotConfigured
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("apiToken", c.apiKey)

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to build OJS request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.WithError(err).WithField("endpoint", endpoint).Warn("OJS request failed")
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s returned status %d", ErrUnavailable, endpoint, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return classifyTransportError(err)
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedResponse, endpoint, err)
	}
	return nil
}

// JournalContext returns the context record for one journal, served from the
// in-process cache after the first fetch.
func (c *OJSClient) JournalContext(ctx context.Context, ref JournalRef) (*Journal, error) {
	if cached, ok := c.contexts.Get(ref.Path); ok {
		return cached, nil
	}

	var out Journal
	endpoint := fmt.Sprintf("/%s/api/v1/contexts/%s", ref.Path, ref.ID)
	if err := c.get(ctx, endpoint, nil, &out); err != nil {
		return nil, err
	}

	c.contexts.Add(ref.Path, &out)
	return &out, nil
}

// Journals returns the context records for all configured journals. Journals
// that fail to resolve are skipped; an error is returned only when none
// resolve.
func (c *OJSClient) Journals(ctx context.Context) ([]Journal, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}

	var (
		journals []Journal
		lastErr  error
	)
	for _, ref := range c.journals {
		j, err := c.JournalContext(ctx, ref)
		if err != nil {
			c.logger.WithError(err).WithField("journal", ref.Path).Warn("skipping unresolvable journal")
			lastErr = err
			continue
		}
		journals = append(journals, *j)
	}

	if len(journals) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return journals, nil
}

func (c *OJSClient) issues(ctx context.Context, journalPath string, params url.Values) (*IssueList, error) {
	var out IssueList
	if err := c.get(ctx, fmt.Sprintf("/%s/api/v1/issues", journalPath), params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Issues returns the issue listing for a journal.
func (c *OJSClient) Issues(ctx context.Context, journalPath string) (*IssueList, error) {
	return c.issues(ctx, journalPath, nil)
}

// PublishedIssues returns only the issues already published.
func (c *OJSClient) PublishedIssues(ctx context.Context, journalPath string) (*IssueList, error) {
	return c.issues(ctx, journalPath, url.Values{"status": {"published"}})
}

// Sections returns the section listing for a journal.
func (c *OJSClient) Sections(ctx context.Context, journalPath string) ([]Section, error) {
	var out []Section
	if err := c.get(ctx, fmt.Sprintf("/%s/api/v1/sections", journalPath), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Submissions returns a page of submissions for a journal, optionally
// filtered by status.
func (c *OJSClient) Submissions(ctx context.Context, journalPath, status string, page, perPage int) (*SubmissionList, error) {
	params := url.Values{
		"page":         {strconv.Itoa(page)},
		"itemsPerPage": {strconv.Itoa(perPage)},
	}
	if status != "" {
		params.Set("status", status)
	}

	var out SubmissionList
	if err := c.get(ctx, fmt.Sprintf("/%s/api/v1/submissions", journalPath), params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PublishedSubmissions returns the first page of published submissions.
func (c *OJSClient) PublishedSubmissions(ctx context.Context, journalPath string) (*SubmissionList, error) {
	return c.Submissions(ctx, journalPath, "published", 1, 20)
}

// Article returns one submission by ID.
func (c *OJSClient) Article(ctx context.Context, journalPath, articleID string) (*Submission, error) {
	var out Submission
	if err := c.get(ctx, fmt.Sprintf("/%s/api/v1/submissions/%s", journalPath, articleID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// JournalStats aggregates published-article and issue totals for a journal.
func (c *OJSClient) JournalStats(ctx context.Context, journalPath string) (*JournalStats, error) {
	stats := &JournalStats{JournalPath: journalPath}

	submissions, err := c.PublishedSubmissions(ctx, journalPath)
	if err != nil {
		return nil, err
	}
	stats.TotalArticles = submissions.ItemsMax

	issues, err := c.Issues(ctx, journalPath)
	if err != nil {
		return nil, err
	}
	stats.TotalIssues = issues.ItemsMax

	return stats, nil
}
