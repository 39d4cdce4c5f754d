package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-querycache/pkg/models"
	"github.com/ekaya-inc/ekaya-querycache/pkg/repositories"
)

// StatsAggregator computes read-only rollups over the stores.
type StatsAggregator interface {
	CacheStats(ctx context.Context) (*models.CacheStats, error)
	FeedbackStats(ctx context.Context) (*models.FeedbackStats, error)
	ExecutionStats(ctx context.Context) (*models.ExecutionStats, error)
}

type statsAggregator struct {
	cacheRepo    repositories.QueryCacheRepository
	feedbackRepo repositories.FeedbackRepository
	logRepo      repositories.ExecutionLogRepository
	logger       *zap.Logger
	now          func() time.Time
}

// NewStatsAggregator creates a StatsAggregator over the three stores.
func NewStatsAggregator(
	cacheRepo repositories.QueryCacheRepository,
	feedbackRepo repositories.FeedbackRepository,
	logRepo repositories.ExecutionLogRepository,
	logger *zap.Logger,
) StatsAggregator {
	return &statsAggregator{
		cacheRepo:    cacheRepo,
		feedbackRepo: feedbackRepo,
		logRepo:      logRepo,
		logger:       logger.Named("stats-aggregator"),
		now:          time.Now,
	}
}

var _ StatsAggregator = (*statsAggregator)(nil)

func (s *statsAggregator) CacheStats(ctx context.Context) (*models.CacheStats, error) {
	stats, err := s.cacheRepo.Stats(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to compute cache stats: %w", err)
	}
	return stats, nil
}

func (s *statsAggregator) FeedbackStats(ctx context.Context) (*models.FeedbackStats, error) {
	stats, err := s.feedbackRepo.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compute feedback stats: %w", err)
	}
	if stats.ByType == nil {
		stats.ByType = make(map[models.FeedbackType]int64)
	}
	if stats.ByStatus == nil {
		stats.ByStatus = make(map[models.FeedbackStatus]int64)
	}
	return stats, nil
}

func (s *statsAggregator) ExecutionStats(ctx context.Context) (*models.ExecutionStats, error) {
	stats, err := s.logRepo.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compute execution stats: %w", err)
	}
	if stats.ByStatus == nil {
		stats.ByStatus = make(map[models.ExecutionStatus]int64)
	}
	return stats, nil
}
