package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

var testJournals = []JournalRef{
	{Path: "innovative-minds", ID: "1"},
	{Path: "bright-tomorrow", ID: "2"},
}

func TestOJSNotConfigured(t *testing.T) {
	c := NewOJSClient("", "", testJournals, testLogger())

	if c.IsConfigured() {
		t.Error("Expected unconfigured client")
	}
	if _, err := c.Issues(context.Background(), "innovative-minds"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Expected ErrNotConfigured, got %v", err)
	}
	if _, err := c.Journals(context.Background()); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Expected ErrNotConfigured, got %v", err)
	}
}

func TestOJSBaseURLNormalization(t *testing.T) {
	c := NewOJSClient("https://journals.example.org/", "key", testJournals, testLogger())
	if c.baseURL != "https://journals.example.org/index.php" {
		t.Errorf("Unexpected base URL %q", c.baseURL)
	}

	// Already normalized URLs stay put.
	c = NewOJSClient("https://journals.example.org/index.php", "key", testJournals, testLogger())
	if c.baseURL != "https://journals.example.org/index.php" {
		t.Errorf("Unexpected base URL %q", c.baseURL)
	}
}

func TestOJSJournalContextCached(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/index.php/innovative-minds/api/v1/contexts/1" {
			t.Errorf("Unexpected path %q", r.URL.Path)
		}
		if r.URL.Query().Get("apiToken") != "key" {
			t.Errorf("Missing apiToken, got %q", r.URL.Query().Get("apiToken"))
		}
		w.Write([]byte(`{"id": 1, "urlPath": "innovative-minds", "name": {"en": "Innovative Minds"}, "enabled": true}`))
	}))
	defer ts.Close()

	c := NewOJSClient(ts.URL, "key", testJournals, testLogger())
	ctx := context.Background()
	ref := testJournals[0]

	j, err := c.JournalContext(ctx, ref)
	if err != nil {
		t.Fatalf("JournalContext failed: %v", err)
	}
	if j.Name.Value() != "Innovative Minds" {
		t.Errorf("Unexpected journal name %q", j.Name.Value())
	}

	if _, err := c.JournalContext(ctx, ref); err != nil {
		t.Fatalf("Cached lookup failed: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("Expected 1 upstream call, got %d", calls.Load())
	}
}

func TestOJSJournalsSkipsFailures(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/index.php/innovative-minds/api/v1/contexts/1" {
			w.Write([]byte(`{"id": 1, "urlPath": "innovative-minds", "name": {"en": "Innovative Minds"}}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	c := NewOJSClient(ts.URL, "key", testJournals, testLogger())

	journals, err := c.Journals(context.Background())
	if err != nil {
		t.Fatalf("Journals failed: %v", err)
	}
	if len(journals) != 1 || journals[0].URLPath != "innovative-minds" {
		t.Errorf("Unexpected journals: %+v", journals)
	}
}

func TestOJSSubmissions(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/index.php/innovative-minds/api/v1/submissions" {
			t.Errorf("Unexpected path %q", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("status") != "published" || q.Get("page") != "1" || q.Get("itemsPerPage") != "20" {
			t.Errorf("Unexpected query %v", q)
		}
		w.Write([]byte(`{
			"itemsMax": 2,
			"items": [
				{"id": 10, "title": {"en": "Deep Learning for Peer Review"}, "status": 3,
				 "datePublished": "2026-01-15",
				 "authors": [{"fullName": "Ada Example", "affiliation": "Example U"}]},
				{"id": 11, "title": {"fr": "Sans titre anglais"}, "status": 3}
			]
		}`))
	}))
	defer ts.Close()

	c := NewOJSClient(ts.URL, "key", testJournals, testLogger())

	list, err := c.PublishedSubmissions(context.Background(), "innovative-minds")
	if err != nil {
		t.Fatalf("PublishedSubmissions failed: %v", err)
	}
	if list.ItemsMax != 2 || len(list.Items) != 2 {
		t.Fatalf("Unexpected list: %+v", list)
	}
	if list.Items[0].Title.Value() != "Deep Learning for Peer Review" {
		t.Errorf("Unexpected title %q", list.Items[0].Title.Value())
	}
	// Locale fallback when English is absent.
	if list.Items[1].Title.Value() != "Sans titre anglais" {
		t.Errorf("Unexpected fallback title %q", list.Items[1].Title.Value())
	}
	if list.Items[0].Authors[0].FullName != "Ada Example" {
		t.Errorf("Unexpected author %+v", list.Items[0].Authors)
	}
}

func TestOJSJournalStats(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/index.php/innovative-minds/api/v1/submissions":
			w.Write([]byte(`{"itemsMax": 42, "items": []}`))
		case "/index.php/innovative-minds/api/v1/issues":
			w.Write([]byte(`{"itemsMax": 6, "items": []}`))
		default:
			t.Errorf("Unexpected path %q", r.URL.Path)
		}
	}))
	defer ts.Close()

	c := NewOJSClient(ts.URL, "key", testJournals, testLogger())

	stats, err := c.JournalStats(context.Background(), "innovative-minds")
	if err != nil {
		t.Fatalf("JournalStats failed: %v", err)
	}
	if stats.TotalArticles != 42 || stats.TotalIssues != 6 || stats.JournalPath != "innovative-minds" {
		t.Errorf("Unexpected stats: %+v", stats)
	}
}

func TestOJSArticle(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/index.php/innovative-minds/api/v1/submissions/10" {
			t.Errorf("Unexpected path %q", r.URL.Path)
		}
		w.Write([]byte(`{"id": 10, "title": {"en": "Deep Learning for Peer Review"}, "status": 3}`))
	}))
	defer ts.Close()

	c := NewOJSClient(ts.URL, "key", testJournals, testLogger())

	article, err := c.Article(context.Background(), "innovative-minds", "10")
	if err != nil {
		t.Fatalf("Article failed: %v", err)
	}
	if article.ID != 10 || article.Title.Value() != "Deep Learning for Peer Review" {
		t.Errorf("Unexpected article: %+v", article)
	}
}

func TestOJSMalformedResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>login required</html>`))
	}))
	defer ts.Close()

	c := NewOJSClient(ts.URL, "key", testJournals, testLogger())

	if _, err := c.Issues(context.Background(), "innovative-minds"); !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("Expected ErrMalformedResponse, got %v", err)
	}
}

func TestOJSSections(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/index.php/innovative-minds/api/v1/sections" {
			t.Errorf("Unexpected path %q", r.URL.Path)
		}
		w.Write([]byte(`[{"id": 1, "title": {"en": "Articles"}}, {"id": 2, "title": {"en": "Reviews"}}]`))
	}))
	defer ts.Close()

	c := NewOJSClient(ts.URL, "key", testJournals, testLogger())

	sections, err := c.Sections(context.Background(), "innovative-minds")
	if err != nil {
		t.Fatalf("Sections failed: %v", err)
	}
	if len(sections) != 2 || sections[0].Title.Value() != "Articles" {
		t.Errorf("Unexpected sections: %+v", sections)
	}
}

func TestOJSPublishedIssuesFiltered(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("status"); got != "published" {
			t.Errorf("Expected published status filter, got %q", got)
		}
		w.Write([]byte(`{"itemsMax": 4, "items": []}`))
	}))
	defer ts.Close()

	c := NewOJSClient(ts.URL, "key", testJournals, testLogger())

	issues, err := c.PublishedIssues(context.Background(), "innovative-minds")
	if err != nil {
		t.Fatalf("PublishedIssues failed: %v", err)
	}
	if issues.ItemsMax != 4 {
		t.Errorf("Unexpected itemsMax %d", issues.ItemsMax)
	}
}
