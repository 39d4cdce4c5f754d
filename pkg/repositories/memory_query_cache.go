package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ekaya-inc/ekaya-querycache/pkg/models"
)

// cacheRecord guards a single entry. Upsert never mutates a record in place:
// it swaps a new record into the map, so a hit recorded against the old
// record concurrently with an overwrite is dropped together with it.
type cacheRecord struct {
	mu    sync.Mutex
	entry models.CacheEntry
}

type memoryQueryCacheRepository struct {
	entries sync.Map // query hash -> *cacheRecord
}

// NewMemoryQueryCacheRepository creates an in-process cache repository.
// Each instance is isolated; nothing is shared between instances.
func NewMemoryQueryCacheRepository() QueryCacheRepository {
	return &memoryQueryCacheRepository{}
}

var _ QueryCacheRepository = (*memoryQueryCacheRepository)(nil)

func (r *memoryQueryCacheRepository) load(queryHash string) (*cacheRecord, bool) {
	v, ok := r.entries.Load(queryHash)
	if !ok {
		return nil, false
	}
	return v.(*cacheRecord), true
}

func (r *memoryQueryCacheRepository) Get(_ context.Context, queryHash string) (*models.CacheEntry, error) {
	rec, ok := r.load(queryHash)
	if !ok {
		return nil, nil
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.entry.Clone(), nil
}

func (r *memoryQueryCacheRepository) Upsert(_ context.Context, entry *models.CacheEntry) error {
	r.entries.Store(entry.QueryHash, &cacheRecord{entry: *entry.Clone()})
	return nil
}

func (r *memoryQueryCacheRepository) RecordHit(_ context.Context, queryHash string, at time.Time) (bool, error) {
	rec, ok := r.load(queryHash)
	if !ok {
		return false, nil
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	rec.entry.HitCount++
	if rec.entry.LastHitAt == nil || at.After(*rec.entry.LastHitAt) {
		t := at
		rec.entry.LastHitAt = &t
	}
	rec.entry.UpdatedAt = at
	return true, nil
}

func (r *memoryQueryCacheRepository) Invalidate(_ context.Context, queryHash string) (bool, error) {
	rec, ok := r.load(queryHash)
	if !ok {
		return false, nil
	}
	rec.mu.Lock()
	rec.entry.IsValid = false
	rec.mu.Unlock()
	return true, nil
}

func (r *memoryQueryCacheRepository) InvalidateByContext(_ context.Context, contextHash string) (int64, error) {
	var n int64
	r.entries.Range(func(_, v any) bool {
		rec := v.(*cacheRecord)
		rec.mu.Lock()
		if rec.entry.ContextHash == contextHash && rec.entry.IsValid {
			rec.entry.IsValid = false
			n++
		}
		rec.mu.Unlock()
		return true
	})
	return n, nil
}

func (r *memoryQueryCacheRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return r.deleteWhere(ctx, func(e *models.CacheEntry) bool {
		return e.IsExpired(now)
	})
}

func (r *memoryQueryCacheRepository) DeleteInvalidExpired(ctx context.Context, now time.Time) (int64, error) {
	return r.deleteWhere(ctx, func(e *models.CacheEntry) bool {
		return !e.IsValid && e.IsExpired(now)
	})
}

// deleteWhere removes matching entries one key at a time. Expiry and
// invalidity never revert on a record, so a match observed under the record
// lock still holds at CompareAndDelete unless the key was overwritten.
func (r *memoryQueryCacheRepository) deleteWhere(ctx context.Context, match func(*models.CacheEntry) bool) (int64, error) {
	var n int64
	r.entries.Range(func(k, v any) bool {
		if ctx.Err() != nil {
			return false
		}
		rec := v.(*cacheRecord)
		rec.mu.Lock()
		matched := match(&rec.entry)
		rec.mu.Unlock()

		if matched && r.entries.CompareAndDelete(k, rec) {
			n++
		}
		return true
	})
	return n, ctx.Err()
}

func (r *memoryQueryCacheRepository) ListPopular(_ context.Context, now time.Time, limit int) ([]*models.CacheEntry, error) {
	entries := make([]*models.CacheEntry, 0)
	r.entries.Range(func(_, v any) bool {
		rec := v.(*cacheRecord)
		rec.mu.Lock()
		if rec.entry.IsUsable(now) {
			entries = append(entries, rec.entry.Clone())
		}
		rec.mu.Unlock()
		return true
	})

	SortByPopularity(entries)
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (r *memoryQueryCacheRepository) Stats(_ context.Context, now time.Time) (*models.CacheStats, error) {
	var stats models.CacheStats
	r.entries.Range(func(_, v any) bool {
		rec := v.(*cacheRecord)
		rec.mu.Lock()
		defer rec.mu.Unlock()

		if rec.entry.IsExpired(now) {
			return true
		}
		stats.TotalCaches++
		if rec.entry.IsValid {
			stats.ValidCaches++
		} else {
			stats.ExpiredCaches++
		}
		stats.TotalHits += rec.entry.HitCount
		return true
	})
	if stats.TotalCaches > 0 {
		stats.AvgHitsPerCache = float64(stats.TotalHits) / float64(stats.TotalCaches)
	}
	return &stats, nil
}

// SortByPopularity orders entries by hit count descending, breaking ties by
// the most recent hit. Entries that were never hit sort after those that were.
func SortByPopularity(entries []*models.CacheEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.HitCount != b.HitCount {
			return a.HitCount > b.HitCount
		}
		switch {
		case a.LastHitAt == nil:
			return false
		case b.LastHitAt == nil:
			return true
		default:
			return a.LastHitAt.After(*b.LastHitAt)
		}
	})
}
