package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/openpress/pulse/pkg/observability"
)

const (
	serperCitationsURL = "https://google.serper.dev/citations"

	// maxCitationSources caps how many organic results are carried along
	// with the scholarly citations.
	maxCitationSources = 10
)

// Citation is one scholarly citation of an article.
type Citation struct {
	Title   string   `json:"title"`
	Link    string   `json:"link"`
	Snippet string   `json:"snippet"`
	CitedBy int      `json:"cited_by"`
	Year    int      `json:"year,omitempty"`
	Authors []string `json:"authors,omitempty"`
	Venue   string   `json:"venue,omitempty"`
}

// CitationSource is one non-scholarly web result mentioning the article.
type CitationSource struct {
	Title    string `json:"title"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet"`
	Position int    `json:"position"`
}

// CitationResult is the processed outcome of one citation search.
type CitationResult struct {
	ArticleTitle  string           `json:"article_title"`
	SearchTime    time.Time        `json:"search_time"`
	Citations     []Citation       `json:"citations"`
	TotalResults  int              `json:"total_results"`
	Sources       []CitationSource `json:"sources"`
	CitationCount int              `json:"citation_count"`
}

// CitationsClient wraps the Serper search API's citations endpoint: POST
// JSON with an X-API-Key header.
type CitationsClient struct {
	apiKey       string
	citationsURL string
	http         *http.Client
	logger       *observability.Logger
}

// NewCitationsClient creates a citation-search client. An empty API key
// yields a client whose calls all return ErrNotConfigured.
func NewCitationsClient(apiKey string, logger *observability.Logger) *CitationsClient {
	return &CitationsClient{
		apiKey:       apiKey,
		citationsURL: serperCitationsURL,
		http:         &http.Client{Timeout: requestTimeout},
		logger:       logger.WithField("upstream", "serper"),
	}
}

// IsConfigured reports whether the client has an API key.
func (c *CitationsClient) IsConfigured() bool {
	return c.apiKey != ""
}

// WithEndpoint overrides the citations endpoint, for proxies and tests.
func (c *CitationsClient) WithEndpoint(endpoint string) *CitationsClient {
	c.citationsURL = endpoint
	return c
}

// Search looks up citations of an article. Author and journal narrow the
// query when present.
func (c *CitationsClient) Search(ctx context.Context, articleTitle, author, journal string) (*CitationResult, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}

	query := articleTitle
	if author != "" {
		query += fmt.Sprintf(" author:%q", author)
	}
	if journal != "" {
		query += " site:" + journal
	}

	payload, err := json.Marshal(map[string]interface{}{
		"q":   query,
		"num": 20,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode citation query: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.citationsURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build citation request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.WithError(err).WithField("article", articleTitle).Warn("citation search failed")
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: citation search returned status %d", ErrUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransportError(err)
	}

	var raw struct {
		Citations []Citation       `json:"citations"`
		Organic   []CitationSource `json:"organic"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: citation search: %v", ErrMalformedResponse, err)
	}

	return processCitations(articleTitle, raw.Citations, raw.Organic), nil
}

// processCitations derives the summary metrics from a raw search response.
func processCitations(articleTitle string, citations []Citation, organic []CitationSource) *CitationResult {
	result := &CitationResult{
		ArticleTitle: articleTitle,
		SearchTime:   time.Now().UTC(),
		Citations:    citations,
		TotalResults: len(citations),
	}

	if len(organic) > maxCitationSources {
		organic = organic[:maxCitationSources]
	}
	result.Sources = organic

	for _, cit := range citations {
		result.CitationCount += cit.CitedBy
	}
	return result
}
