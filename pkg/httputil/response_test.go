package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	if err := WriteJSON(rec, http.StatusCreated, map[string]int{"n": 3}); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	if rec.Code != http.StatusCreated {
		t.Errorf("Expected 201, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Unexpected content type %q", ct)
	}

	var body map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Invalid body: %v", err)
	}
	if body["n"] != 3 {
		t.Errorf("Unexpected body %v", body)
	}
}

func TestWriteErrorShapes(t *testing.T) {
	tests := []struct {
		name   string
		write  func(w http.ResponseWriter)
		status int
	}{
		{"bad request", func(w http.ResponseWriter) { WriteBadRequest(w, "missing field") }, http.StatusBadRequest},
		{"not found", func(w http.ResponseWriter) { WriteNotFound(w, "nope") }, http.StatusNotFound},
		{"service unavailable", func(w http.ResponseWriter) { WriteServiceUnavailable(w, "upstream down") }, http.StatusServiceUnavailable},
		{"internal", func(w http.ResponseWriter) { WriteInternalError(w, errors.New("boom")) }, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.write(rec)

			if rec.Code != tt.status {
				t.Errorf("Expected %d, got %d", tt.status, rec.Code)
			}
			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("Invalid error body: %v", err)
			}
			if body["error"] == "" {
				t.Error("Expected error message in body")
			}
		})
	}
}

func TestParseJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"article_id": "42"}`))

	var dest struct {
		ArticleID string `json:"article_id"`
	}
	if err := ParseJSON(req, &dest); err != nil {
		t.Fatalf("ParseJSON failed: %v", err)
	}
	if dest.ArticleID != "42" {
		t.Errorf("Unexpected value %q", dest.ArticleID)
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{broken"))
	if err := ParseJSON(req, &dest); err == nil {
		t.Error("Expected error for invalid JSON")
	}
}

func TestQueryHelpers(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?period=week&limit=5&force=true&bad=x", nil)

	if got := QueryString(req, "period", "month"); got != "week" {
		t.Errorf("QueryString = %q", got)
	}
	if got := QueryString(req, "missing", "month"); got != "month" {
		t.Errorf("QueryString default = %q", got)
	}
	if got := QueryInt(req, "limit", 10); got != 5 {
		t.Errorf("QueryInt = %d", got)
	}
	if got := QueryInt(req, "bad", 10); got != 10 {
		t.Errorf("QueryInt invalid = %d", got)
	}
	if got := QueryBool(req, "force", false); !got {
		t.Error("QueryBool = false")
	}
}
