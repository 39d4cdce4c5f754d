package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-querycache/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-querycache/pkg/models"
)

type memoryExecutionLogRepository struct {
	mu   sync.RWMutex
	logs map[uuid.UUID]*models.QueryExecutionLog
}

// NewMemoryExecutionLogRepository creates an in-process execution log repository.
func NewMemoryExecutionLogRepository() ExecutionLogRepository {
	return &memoryExecutionLogRepository{logs: make(map[uuid.UUID]*models.QueryExecutionLog)}
}

var _ ExecutionLogRepository = (*memoryExecutionLogRepository)(nil)

func copyExecutionLog(l *models.QueryExecutionLog) *models.QueryExecutionLog {
	c := *l
	return &c
}

func (r *memoryExecutionLogRepository) Create(_ context.Context, log *models.QueryExecutionLog) error {
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.logs[log.ID]; ok {
		return fmt.Errorf("execution log %s: %w", log.ID, apperrors.ErrConflict)
	}
	r.logs[log.ID] = copyExecutionLog(log)
	return nil
}

func (r *memoryExecutionLogRepository) Get(_ context.Context, id uuid.UUID) (*models.QueryExecutionLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.logs[id]
	if !ok {
		return nil, nil
	}
	return copyExecutionLog(l), nil
}

func (r *memoryExecutionLogRepository) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.logs[id]
	return ok, nil
}

func (r *memoryExecutionLogRepository) Complete(_ context.Context, log *models.QueryExecutionLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.logs[log.ID]
	if !ok {
		return fmt.Errorf("execution log %s: %w", log.ID, apperrors.ErrNotFound)
	}
	if stored.ExecutionStatus != models.ExecutionStatusPending {
		return fmt.Errorf("execution log %s is no longer pending: %w", log.ID, apperrors.ErrInvalidTransition)
	}

	updated := copyExecutionLog(log)
	// Identity fields are fixed at creation.
	updated.UserID = stored.UserID
	updated.SessionID = stored.SessionID
	updated.NaturalQuery = stored.NaturalQuery
	updated.CreatedAt = stored.CreatedAt
	r.logs[log.ID] = updated
	return nil
}

func (r *memoryExecutionLogRepository) List(_ context.Context, filter models.ExecutionLogFilter) ([]*models.QueryExecutionLog, error) {
	r.mu.RLock()
	logs := make([]*models.QueryExecutionLog, 0)
	for _, l := range r.logs {
		if filter.UserID != "" && l.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && l.ExecutionStatus != filter.Status {
			continue
		}
		if filter.Since != nil && l.CreatedAt.Before(*filter.Since) {
			continue
		}
		logs = append(logs, copyExecutionLog(l))
	}
	r.mu.RUnlock()

	sort.Slice(logs, func(i, j int) bool {
		return logs[i].CreatedAt.After(logs[j].CreatedAt)
	})
	if limit := clampLimit(filter.Limit); len(logs) > limit {
		logs = logs[:limit]
	}
	return logs, nil
}

func (r *memoryExecutionLogRepository) Stats(_ context.Context) (*models.ExecutionStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := &models.ExecutionStats{ByStatus: make(map[models.ExecutionStatus]int64)}
	var completed, totalTime int64
	for _, l := range r.logs {
		stats.TotalExecutions++
		stats.ByStatus[l.ExecutionStatus]++
		if l.CacheHit {
			stats.CacheHits++
		}
		stats.TotalTokensUsed += int64(l.TokensUsed)
		if l.ExecutionStatus != models.ExecutionStatusPending {
			completed++
			totalTime += l.ExecutionTimeMs
		}
	}
	if stats.TotalExecutions > 0 {
		stats.CacheHitRate = float64(stats.CacheHits) / float64(stats.TotalExecutions)
	}
	if completed > 0 {
		stats.AvgExecutionTimeMs = float64(totalTime) / float64(completed)
	}
	return stats, nil
}
