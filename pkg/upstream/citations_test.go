package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCitationsNotConfigured(t *testing.T) {
	c := NewCitationsClient("", testLogger())

	if c.IsConfigured() {
		t.Error("Expected unconfigured client")
	}
	if _, err := c.Search(context.Background(), "Some Title", "", ""); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Expected ErrNotConfigured, got %v", err)
	}
}

func TestCitationsSearch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "serper-key" {
			t.Errorf("Missing API key header, got %q", r.Header.Get("X-API-Key"))
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Unexpected content type %q", r.Header.Get("Content-Type"))
		}

		var body struct {
			Q   string `json:"q"`
			Num int    `json:"num"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("Failed to decode body: %v", err)
		}
		if !strings.Contains(body.Q, "Quantum Widgets") {
			t.Errorf("Query missing title: %q", body.Q)
		}
		if !strings.Contains(body.Q, `author:"Ada Example"`) {
			t.Errorf("Query missing author filter: %q", body.Q)
		}
		if !strings.Contains(body.Q, "site:innovative-minds") {
			t.Errorf("Query missing journal filter: %q", body.Q)
		}
		if body.Num != 20 {
			t.Errorf("Expected num 20, got %d", body.Num)
		}

		w.Write([]byte(`{
			"citations": [
				{"title": "Citing Paper A", "link": "https://a", "cited_by": 7},
				{"title": "Citing Paper B", "link": "https://b", "cited_by": 3}
			],
			"organic": [
				{"title": "Blog post", "link": "https://c", "position": 1}
			]
		}`))
	}))
	defer ts.Close()

	c := NewCitationsClient("serper-key", testLogger()).WithEndpoint(ts.URL)

	result, err := c.Search(context.Background(), "Quantum Widgets", "Ada Example", "innovative-minds")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if result.ArticleTitle != "Quantum Widgets" {
		t.Errorf("Unexpected title %q", result.ArticleTitle)
	}
	if result.TotalResults != 2 {
		t.Errorf("Expected 2 total results, got %d", result.TotalResults)
	}
	if result.CitationCount != 10 {
		t.Errorf("Expected citation count 10, got %d", result.CitationCount)
	}
	if len(result.Sources) != 1 || result.Sources[0].Link != "https://c" {
		t.Errorf("Unexpected sources: %+v", result.Sources)
	}
	if result.SearchTime.IsZero() {
		t.Error("Expected search time to be set")
	}
}

func TestCitationsSourcesCapped(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var organic []string
		for i := 0; i < 25; i++ {
			organic = append(organic, fmt.Sprintf(`{"title": "r%d", "position": %d}`, i, i+1))
		}
		fmt.Fprintf(w, `{"citations": [], "organic": [%s]}`, strings.Join(organic, ","))
	}))
	defer ts.Close()

	c := NewCitationsClient("serper-key", testLogger()).WithEndpoint(ts.URL)

	result, err := c.Search(context.Background(), "Anything", "", "")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(result.Sources) != maxCitationSources {
		t.Errorf("Expected %d sources, got %d", maxCitationSources, len(result.Sources))
	}
	if result.CitationCount != 0 || result.TotalResults != 0 {
		t.Errorf("Expected zero citation metrics, got %+v", result)
	}
}

func TestCitationsUnavailable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	c := NewCitationsClient("bad-key", testLogger()).WithEndpoint(ts.URL)

	if _, err := c.Search(context.Background(), "Anything", "", ""); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable, got %v", err)
	}
}
