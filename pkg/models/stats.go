package models

// CacheStats summarizes cache entries that have not yet expired.
// ExpiredCaches counts unexpired entries that were invalidated, i.e. entries
// that are still stored but no longer served.
type CacheStats struct {
	TotalCaches     int64   `json:"total_caches"`
	ValidCaches     int64   `json:"valid_caches"`
	ExpiredCaches   int64   `json:"expired_caches"`
	TotalHits       int64   `json:"total_hits"`
	AvgHitsPerCache float64 `json:"avg_hits_per_cache"`
}

// FeedbackStats summarizes all feedback records.
type FeedbackStats struct {
	TotalFeedbacks int64                    `json:"total_feedbacks"`
	AvgRating      float64                  `json:"avg_rating"`
	PositiveCount  int64                    `json:"positive_count"`
	NegativeCount  int64                    `json:"negative_count"`
	ByType         map[FeedbackType]int64   `json:"by_type"`
	ByStatus       map[FeedbackStatus]int64 `json:"by_status"`
}

// ExecutionStats summarizes query execution logs.
type ExecutionStats struct {
	TotalExecutions    int64                     `json:"total_executions"`
	ByStatus           map[ExecutionStatus]int64 `json:"by_status"`
	CacheHits          int64                     `json:"cache_hits"`
	CacheHitRate       float64                   `json:"cache_hit_rate"`
	AvgExecutionTimeMs float64                   `json:"avg_execution_time_ms"`
	TotalTokensUsed    int64                     `json:"total_tokens_used"`
}

// Dashboard aggregates the read-only rollups shown to operators.
type Dashboard struct {
	CacheStats     *CacheStats     `json:"cache_stats"`
	FeedbackStats  *FeedbackStats  `json:"feedback_stats"`
	ExecutionStats *ExecutionStats `json:"execution_stats"`
	PopularCaches  []*CacheEntry   `json:"popular_caches"`
}
