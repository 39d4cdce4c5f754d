package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-querycache/pkg/database"
	"github.com/ekaya-inc/ekaya-querycache/pkg/models"
)

// DefaultCleanupBatchSize bounds how many rows a single cleanup statement removes.
const DefaultCleanupBatchSize = 500

// QueryCacheRepository provides keyed storage for cache entries.
//
// Get returns (nil, nil) when no entry exists for the hash. Mutations on a
// single key are atomic; mutations on different keys never block each other.
type QueryCacheRepository interface {
	Get(ctx context.Context, queryHash string) (*models.CacheEntry, error)
	// Upsert writes entry, replacing any existing entry with the same hash wholesale.
	Upsert(ctx context.Context, entry *models.CacheEntry) error
	// RecordHit increments hit_count and advances last_hit_at. Returns false if the entry is absent.
	RecordHit(ctx context.Context, queryHash string, at time.Time) (bool, error)
	// Invalidate marks the entry unusable. Returns false if the entry is absent.
	Invalidate(ctx context.Context, queryHash string) (bool, error)
	InvalidateByContext(ctx context.Context, contextHash string) (int64, error)
	// DeleteExpired removes entries with expires_at <= now, valid or not.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	// DeleteInvalidExpired removes entries that are both invalid and expired.
	DeleteInvalidExpired(ctx context.Context, now time.Time) (int64, error)
	// ListPopular returns usable entries by hit_count desc, last_hit_at desc.
	ListPopular(ctx context.Context, now time.Time, limit int) ([]*models.CacheEntry, error)
	// Stats summarizes entries that have not expired at now.
	Stats(ctx context.Context, now time.Time) (*models.CacheStats, error)
}

type queryCacheRepository struct {
	db        *database.DB
	batchSize int
}

// NewQueryCacheRepository creates a PostgreSQL-backed cache repository.
// Cleanup deletes in batches of batchSize rows (DefaultCleanupBatchSize if <= 0).
func NewQueryCacheRepository(db *database.DB, batchSize int) QueryCacheRepository {
	if batchSize <= 0 {
		batchSize = DefaultCleanupBatchSize
	}
	return &queryCacheRepository{db: db, batchSize: batchSize}
}

var _ QueryCacheRepository = (*queryCacheRepository)(nil)

const cacheEntryColumns = `
	query_hash, context_hash, natural_query, generated_sql,
	result_data, result_metadata,
	hit_count, last_hit_at, expires_at, is_valid,
	created_at, updated_at`

func (r *queryCacheRepository) Get(ctx context.Context, queryHash string) (*models.CacheEntry, error) {
	query := `SELECT ` + cacheEntryColumns + ` FROM engine_query_cache WHERE query_hash = $1`

	entry, err := scanCacheEntryRow(r.db.QueryRow(ctx, query, queryHash))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cache entry: %w", err)
	}
	return entry, nil
}

func (r *queryCacheRepository) Upsert(ctx context.Context, entry *models.CacheEntry) error {
	query := `
		INSERT INTO engine_query_cache (
			query_hash, context_hash, natural_query, generated_sql,
			result_data, result_metadata,
			hit_count, last_hit_at, expires_at, is_valid,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (query_hash) DO UPDATE SET
			context_hash    = EXCLUDED.context_hash,
			natural_query   = EXCLUDED.natural_query,
			generated_sql   = EXCLUDED.generated_sql,
			result_data     = EXCLUDED.result_data,
			result_metadata = EXCLUDED.result_metadata,
			hit_count       = EXCLUDED.hit_count,
			last_hit_at     = EXCLUDED.last_hit_at,
			expires_at      = EXCLUDED.expires_at,
			is_valid        = EXCLUDED.is_valid,
			created_at      = EXCLUDED.created_at,
			updated_at      = EXCLUDED.updated_at`

	_, err := r.db.Exec(ctx, query,
		entry.QueryHash,
		entry.ContextHash,
		entry.NaturalQuery,
		entry.GeneratedSQL,
		entry.ResultData,
		entry.ResultMetadata,
		entry.HitCount,
		entry.LastHitAt,
		entry.ExpiresAt,
		entry.IsValid,
		entry.CreatedAt,
		entry.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert cache entry: %w", err)
	}
	return nil
}

func (r *queryCacheRepository) RecordHit(ctx context.Context, queryHash string, at time.Time) (bool, error) {
	query := `
		UPDATE engine_query_cache
		SET hit_count = hit_count + 1,
		    last_hit_at = GREATEST(COALESCE(last_hit_at, $2), $2),
		    updated_at = $2
		WHERE query_hash = $1`

	tag, err := r.db.Exec(ctx, query, queryHash, at)
	if err != nil {
		return false, fmt.Errorf("failed to record cache hit: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *queryCacheRepository) Invalidate(ctx context.Context, queryHash string) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE engine_query_cache SET is_valid = false WHERE query_hash = $1`, queryHash)
	if err != nil {
		return false, fmt.Errorf("failed to invalidate cache entry: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *queryCacheRepository) InvalidateByContext(ctx context.Context, contextHash string) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE engine_query_cache SET is_valid = false WHERE context_hash = $1 AND is_valid`, contextHash)
	if err != nil {
		return 0, fmt.Errorf("failed to invalidate cache entries by context: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *queryCacheRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	// The outer predicate is re-checked against concurrently replaced rows.
	query := `
		DELETE FROM engine_query_cache
		WHERE expires_at <= $1
		  AND query_hash IN (
			SELECT query_hash FROM engine_query_cache
			WHERE expires_at <= $1
			LIMIT $2
		  )`
	n, err := r.deleteInBatches(ctx, query, now)
	if err != nil {
		return n, fmt.Errorf("failed to delete expired cache entries: %w", err)
	}
	return n, nil
}

func (r *queryCacheRepository) DeleteInvalidExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `
		DELETE FROM engine_query_cache
		WHERE NOT is_valid AND expires_at <= $1
		  AND query_hash IN (
			SELECT query_hash FROM engine_query_cache
			WHERE NOT is_valid AND expires_at <= $1
			LIMIT $2
		  )`
	n, err := r.deleteInBatches(ctx, query, now)
	if err != nil {
		return n, fmt.Errorf("failed to delete invalid cache entries: %w", err)
	}
	return n, nil
}

// deleteInBatches runs a bounded DELETE until it removes fewer rows than the batch size.
func (r *queryCacheRepository) deleteInBatches(ctx context.Context, query string, now time.Time) (int64, error) {
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		tag, err := r.db.Exec(ctx, query, now, r.batchSize)
		if err != nil {
			return total, err
		}
		total += tag.RowsAffected()
		if tag.RowsAffected() < int64(r.batchSize) {
			return total, nil
		}
	}
}

func (r *queryCacheRepository) ListPopular(ctx context.Context, now time.Time, limit int) ([]*models.CacheEntry, error) {
	query := `SELECT ` + cacheEntryColumns + `
		FROM engine_query_cache
		WHERE is_valid AND expires_at > $1
		ORDER BY hit_count DESC, last_hit_at DESC NULLS LAST
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list popular cache entries: %w", err)
	}
	defer rows.Close()

	entries := make([]*models.CacheEntry, 0)
	for rows.Next() {
		entry, err := scanCacheEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cache entries: %w", err)
	}
	return entries, nil
}

func (r *queryCacheRepository) Stats(ctx context.Context, now time.Time) (*models.CacheStats, error) {
	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE is_valid),
		       COUNT(*) FILTER (WHERE NOT is_valid),
		       COALESCE(SUM(hit_count), 0)
		FROM engine_query_cache
		WHERE expires_at > $1`

	var stats models.CacheStats
	err := r.db.QueryRow(ctx, query, now).Scan(
		&stats.TotalCaches,
		&stats.ValidCaches,
		&stats.ExpiredCaches,
		&stats.TotalHits,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compute cache stats: %w", err)
	}
	if stats.TotalCaches > 0 {
		stats.AvgHitsPerCache = float64(stats.TotalHits) / float64(stats.TotalCaches)
	}
	return &stats, nil
}

// ============================================================================
// Helper Functions - Scan
// ============================================================================

func scanCacheEntry(rows pgx.Rows) (*models.CacheEntry, error) {
	entry, err := scanCacheEntryRow(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan cache entry: %w", err)
	}
	return entry, nil
}

func scanCacheEntryRow(row pgx.Row) (*models.CacheEntry, error) {
	var e models.CacheEntry
	err := row.Scan(
		&e.QueryHash, &e.ContextHash, &e.NaturalQuery, &e.GeneratedSQL,
		&e.ResultData, &e.ResultMetadata,
		&e.HitCount, &e.LastHitAt, &e.ExpiresAt, &e.IsValid,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
