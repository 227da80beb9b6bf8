package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// citationTTL bounds how long a citation record survives without a refresh;
// the daily sweep rewrites records well inside this window.
const citationTTL = 48 * time.Hour

// CitationRecord is the cached citation summary for one article. Records are
// superseded wholesale on refresh, never merged.
type CitationRecord struct {
	CitationCount int             `json:"citation_count"`
	TotalResults  int             `json:"total_results"`
	LastUpdated   time.Time       `json:"last_updated"`
	Data          json.RawMessage `json:"data,omitempty"`
}

func citationRecordKey(articleID string) string {
	return fmt.Sprintf("article:%s:citations", articleID)
}

// SetCitationRecord stores the citation record for an article with a 2-day
// TTL. Unlike counter writes this returns an error so the sweep can report
// failures.
func (s *Store) SetCitationRecord(ctx context.Context, articleID string, rec CitationRecord) error {
	key := citationRecordKey(articleID)

	fields := map[string]interface{}{
		"citation_count": rec.CitationCount,
		"total_results":  rec.TotalResults,
		"last_updated":   rec.LastUpdated.UTC().Format(time.RFC3339),
		"data":           string(rec.Data),
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, citationTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store citation record: %w", err)
	}
	return nil
}

// CitationRecordFor returns the cached citation record for an article, or
// nil when none is stored.
func (s *Store) CitationRecordFor(ctx context.Context, articleID string) (*CitationRecord, error) {
	fields, err := s.client.HGetAll(ctx, citationRecordKey(articleID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read citation record: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	rec := &CitationRecord{}
	if v, ok := fields["citation_count"]; ok {
		rec.CitationCount, _ = strconv.Atoi(v)
	}
	if v, ok := fields["total_results"]; ok {
		rec.TotalResults, _ = strconv.Atoi(v)
	}
	if v, ok := fields["last_updated"]; ok {
		rec.LastUpdated, _ = time.Parse(time.RFC3339, v)
	}
	if v, ok := fields["data"]; ok && v != "" {
		rec.Data = json.RawMessage(v)
	}

	return rec, nil
}
