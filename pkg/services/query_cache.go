package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-querycache/pkg/cachekey"
	"github.com/ekaya-inc/ekaya-querycache/pkg/logging"
	"github.com/ekaya-inc/ekaya-querycache/pkg/models"
	"github.com/ekaya-inc/ekaya-querycache/pkg/repositories"
)

// Cache defaults.
const (
	DefaultCacheTTL     = time.Hour
	DefaultPopularLimit = 10
)

// QueryCacheService stores and serves resolved natural-language queries.
type QueryCacheService interface {
	// Lookup returns the usable entry for the query in this context.
	// Absent, invalid and expired entries are a miss; nothing is deleted.
	Lookup(ctx context.Context, naturalQuery string, qctx models.QueryContext) (*models.CacheEntry, bool, error)

	// RecordHit increments the entry's hit count and advances LastHitAt.
	RecordHit(ctx context.Context, entry *models.CacheEntry) error

	// Store writes a fresh entry, replacing any existing one for the same key.
	// Hit history and validity are reset. ttl <= 0 uses the default TTL.
	Store(ctx context.Context, naturalQuery string, qctx models.QueryContext, generatedSQL string,
		resultData []map[string]any, metadata models.ResultMetadata, ttl time.Duration) (*models.CacheEntry, error)

	// Invalidate marks an entry unusable. Unknown hashes are a no-op.
	Invalidate(ctx context.Context, queryHash string) error

	// InvalidateByContext marks every entry derived from contextHash unusable.
	InvalidateByContext(ctx context.Context, contextHash string) (int64, error)

	// CleanupExpired removes every expired entry, valid or not.
	CleanupExpired(ctx context.Context) (int64, error)

	// CleanupInvalid removes entries that are both invalid and expired.
	CleanupInvalid(ctx context.Context) (int64, error)

	// GetPopularCaches returns usable entries, most hit first.
	GetPopularCaches(ctx context.Context, limit int) ([]*models.CacheEntry, error)
}

// QueryCacheConfig configures a QueryCacheService.
type QueryCacheConfig struct {
	DefaultTTL   time.Duration
	PopularLimit int
}

type queryCacheService struct {
	repo         repositories.QueryCacheRepository
	defaultTTL   time.Duration
	popularLimit int
	metrics      *Metrics
	logger       *zap.Logger
	now          func() time.Time
}

// NewQueryCacheService creates a cache service over repo.
func NewQueryCacheService(
	repo repositories.QueryCacheRepository,
	cfg QueryCacheConfig,
	metrics *Metrics,
	logger *zap.Logger,
) QueryCacheService {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultCacheTTL
	}
	if cfg.PopularLimit <= 0 {
		cfg.PopularLimit = DefaultPopularLimit
	}
	return &queryCacheService{
		repo:         repo,
		defaultTTL:   cfg.DefaultTTL,
		popularLimit: cfg.PopularLimit,
		metrics:      metrics,
		logger:       logger.Named("query-cache-service"),
		now:          time.Now,
	}
}

var _ QueryCacheService = (*queryCacheService)(nil)

func (s *queryCacheService) Lookup(ctx context.Context, naturalQuery string, qctx models.QueryContext) (*models.CacheEntry, bool, error) {
	queryHash, _ := cachekey.Derive(naturalQuery, qctx)

	entry, err := s.repo.Get(ctx, queryHash)
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up cache entry: %w", err)
	}

	switch {
	case entry == nil:
		s.metrics.recordLookup(ctx, "miss")
		return nil, false, nil
	case !entry.IsValid:
		s.metrics.recordLookup(ctx, "invalid")
		return nil, false, nil
	case entry.IsExpired(s.now()):
		s.metrics.recordLookup(ctx, "expired")
		return nil, false, nil
	}

	s.metrics.recordLookup(ctx, "hit")
	s.logger.Debug("Cache hit",
		zap.String("query_hash", queryHash),
		zap.Int64("hit_count", entry.HitCount))
	return entry, true, nil
}

func (s *queryCacheService) RecordHit(ctx context.Context, entry *models.CacheEntry) error {
	if entry == nil {
		return nil
	}

	now := s.now()
	found, err := s.repo.RecordHit(ctx, entry.QueryHash, now)
	if err != nil {
		return fmt.Errorf("failed to record cache hit: %w", err)
	}
	if !found {
		// Swept or replaced since the lookup; the caller already has its rows.
		s.logger.Debug("Cache entry vanished before hit was recorded",
			zap.String("query_hash", entry.QueryHash))
		return nil
	}

	entry.HitCount++
	if entry.LastHitAt == nil || now.After(*entry.LastHitAt) {
		entry.LastHitAt = &now
	}
	s.metrics.recordHit(ctx)
	return nil
}

func (s *queryCacheService) Store(
	ctx context.Context,
	naturalQuery string,
	qctx models.QueryContext,
	generatedSQL string,
	resultData []map[string]any,
	metadata models.ResultMetadata,
	ttl time.Duration,
) (*models.CacheEntry, error) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	if resultData == nil {
		resultData = []map[string]any{}
	}

	queryHash, contextHash := cachekey.Derive(naturalQuery, qctx)
	now := s.now()
	entry := &models.CacheEntry{
		QueryHash:      queryHash,
		ContextHash:    contextHash,
		NaturalQuery:   naturalQuery,
		GeneratedSQL:   generatedSQL,
		ResultData:     resultData,
		ResultMetadata: metadata,
		HitCount:       0,
		LastHitAt:      nil,
		ExpiresAt:      now.Add(ttl),
		IsValid:        true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.Upsert(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to store cache entry: %w", err)
	}

	s.metrics.recordStore(ctx)
	s.logger.Debug("Cached query result",
		zap.String("query_hash", queryHash),
		zap.String("natural_query", logging.SanitizeQuery(naturalQuery)),
		zap.Int("row_count", metadata.RowCount),
		zap.Duration("ttl", ttl))
	return entry, nil
}

func (s *queryCacheService) Invalidate(ctx context.Context, queryHash string) error {
	found, err := s.repo.Invalidate(ctx, queryHash)
	if err != nil {
		return fmt.Errorf("failed to invalidate cache entry: %w", err)
	}
	if found {
		s.logger.Info("Cache entry invalidated", zap.String("query_hash", queryHash))
	}
	return nil
}

func (s *queryCacheService) InvalidateByContext(ctx context.Context, contextHash string) (int64, error) {
	n, err := s.repo.InvalidateByContext(ctx, contextHash)
	if err != nil {
		return 0, fmt.Errorf("failed to invalidate cache entries by context: %w", err)
	}
	if n > 0 {
		s.logger.Info("Cache entries invalidated by context",
			zap.String("context_hash", contextHash),
			zap.Int64("count", n))
	}
	return n, nil
}

func (s *queryCacheService) CleanupExpired(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteExpired(ctx, s.now())
	if err != nil {
		return n, fmt.Errorf("failed to clean up expired cache entries: %w", err)
	}
	s.metrics.recordSwept(ctx, "expired", n)
	return n, nil
}

func (s *queryCacheService) CleanupInvalid(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteInvalidExpired(ctx, s.now())
	if err != nil {
		return n, fmt.Errorf("failed to clean up invalid cache entries: %w", err)
	}
	s.metrics.recordSwept(ctx, "invalid", n)
	return n, nil
}

func (s *queryCacheService) GetPopularCaches(ctx context.Context, limit int) ([]*models.CacheEntry, error) {
	if limit <= 0 {
		limit = s.popularLimit
	}
	entries, err := s.repo.ListPopular(ctx, s.now(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list popular cache entries: %w", err)
	}
	return entries, nil
}
