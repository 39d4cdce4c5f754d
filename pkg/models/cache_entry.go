package models

import (
	"time"
)

// ColumnInfo describes one column of a cached result set.
type ColumnInfo struct {
	Name string `json:"name"`
	Type string `json:"type"` // Database type name (e.g., "TEXT", "INT4")
}

// ResultMetadata describes a result set produced by executing generated SQL.
type ResultMetadata struct {
	RowCount        int          `json:"row_count"`
	Columns         []ColumnInfo `json:"columns"`
	ExecutionTimeMs int64        `json:"execution_time_ms"`
	Warnings        []string     `json:"warnings,omitempty"`
}

// CacheEntry is a cached resolution of a natural-language query: the SQL the
// generator produced for it and the rows that SQL returned.
// Stored in engine_query_cache, keyed by QueryHash.
type CacheEntry struct {
	QueryHash    string `json:"query_hash"`
	ContextHash  string `json:"context_hash"`
	NaturalQuery string `json:"natural_query"`
	GeneratedSQL string `json:"generated_sql"`

	ResultData     []map[string]any `json:"result_data"`
	ResultMetadata ResultMetadata   `json:"result_metadata"`

	// Usage
	HitCount  int64      `json:"hit_count"`
	LastHitAt *time.Time `json:"last_hit_at,omitempty"`

	// Lifecycle
	ExpiresAt time.Time `json:"expires_at"`
	IsValid   bool      `json:"is_valid"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsExpired reports whether the entry's TTL has elapsed at now.
func (e *CacheEntry) IsExpired(now time.Time) bool {
	return !e.ExpiresAt.After(now)
}

// IsUsable reports whether the entry may satisfy a lookup at now.
func (e *CacheEntry) IsUsable(now time.Time) bool {
	return e.IsValid && !e.IsExpired(now)
}

// Clone returns a copy that can be handed to callers without sharing
// mutable usage fields. Result rows are shared and must be treated as read-only.
func (e *CacheEntry) Clone() *CacheEntry {
	c := *e
	if e.LastHitAt != nil {
		t := *e.LastHitAt
		c.LastHitAt = &t
	}
	if e.ResultMetadata.Columns != nil {
		c.ResultMetadata.Columns = append([]ColumnInfo(nil), e.ResultMetadata.Columns...)
	}
	if e.ResultMetadata.Warnings != nil {
		c.ResultMetadata.Warnings = append([]string(nil), e.ResultMetadata.Warnings...)
	}
	if e.ResultData != nil {
		c.ResultData = append([]map[string]any(nil), e.ResultData...)
	}
	return &c
}
