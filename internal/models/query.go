package models

import (
	"fmt"
	"strings"
)

// SearchQuery is a keyword search over the local archive.
type SearchQuery struct {
	Query    string   `json:"query"`
	Limit    int      `json:"limit,omitempty"`
	Platform Platform `json:"platform,omitempty"` // only records for this platform
	Fuzzy    bool     `json:"fuzzy,omitempty"`    // tolerate typos
}

// Validate trims the query, rejects empty queries and clamps Limit to 1..100 (default 10).
func (q *SearchQuery) Validate() error {
	q.Query = strings.TrimSpace(q.Query)
	if q.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if q.Limit <= 0 {
		q.Limit = 10
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	return nil
}

// SearchHit is one archived record matching a SearchQuery.
type SearchHit struct {
	Key     string  `json:"key"`
	Score   float64 `json:"score"`
	Snippet string  `json:"snippet,omitempty"`
	Record  *Record `json:"record"`
}

// SearchResponse lists hits best first.
type SearchResponse struct {
	Query     string       `json:"query"`
	Total     int          `json:"total"`
	QueryTime int64        `json:"query_time_ms"`
	Hits      []*SearchHit `json:"hits"`
}
