package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ekaya-inc/ekaya-querycache/pkg/models"
)

// Key layout:
//
//	<prefix>entry:<query_hash>   hash holding one cache entry
//	<prefix>expires              sorted set of query hashes scored by expires_at (unix ms)
//	<prefix>ctx:<context_hash>   set of query hashes stored under a context
//
// Timestamps are kept with millisecond precision.
const DefaultRedisKeyPrefix = "querycache:"

// Entry hash fields.
const (
	fieldContextHash = "context_hash"
	fieldPayload     = "payload"
	fieldHitCount    = "hit_count"
	fieldLastHitAt   = "last_hit_at"
	fieldExpiresAt   = "expires_at"
	fieldIsValid     = "is_valid"
	fieldCreatedAt   = "created_at"
	fieldUpdatedAt   = "updated_at"
)

// KEYS[1] entry key. ARGV[1] hit time (unix ms).
var recordHitScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
redis.call('HINCRBY', KEYS[1], 'hit_count', 1)
local last = tonumber(redis.call('HGET', KEYS[1], 'last_hit_at') or '0')
if tonumber(ARGV[1]) > last then
  redis.call('HSET', KEYS[1], 'last_hit_at', ARGV[1])
end
redis.call('HSET', KEYS[1], 'updated_at', ARGV[1])
return 1
`)

// KEYS[1] entry key. Returns -1 if absent, 1 if it was valid, 0 otherwise.
var invalidateScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return -1
end
local prev = redis.call('HGET', KEYS[1], 'is_valid')
redis.call('HSET', KEYS[1], 'is_valid', '0')
if prev == '1' then
  return 1
end
return 0
`)

// KEYS[1] entry key, KEYS[2] context set. ARGV[1] context hash, ARGV[2] query hash.
// Members whose entry is gone or was re-stored under another context are pruned.
var invalidateInContextScript = redis.NewScript(`
local ch = redis.call('HGET', KEYS[1], 'context_hash')
if ch ~= ARGV[1] then
  redis.call('SREM', KEYS[2], ARGV[2])
  return 0
end
if redis.call('HGET', KEYS[1], 'is_valid') == '1' then
  redis.call('HSET', KEYS[1], 'is_valid', '0')
  return 1
end
return 0
`)

// KEYS[1] entry key, KEYS[2] expiry index. ARGV[1] now (unix ms),
// ARGV[2] "1" to require the entry be invalid, ARGV[3] query hash,
// ARGV[4] context set key prefix. The predicate is re-checked here so an
// entry re-stored since the index scan survives. Returns 1 when the entry is
// deleted, 2 when only a stale index member is dropped, 3 when the entry was
// re-stored with a later expiry and so left the scanned range, 0 when kept.
var deleteIfExpiredScript = redis.NewScript(`
local exp = redis.call('HGET', KEYS[1], 'expires_at')
if not exp then
  redis.call('ZREM', KEYS[2], ARGV[3])
  return 2
end
if tonumber(exp) > tonumber(ARGV[1]) then
  return 3
end
if ARGV[2] == '1' and redis.call('HGET', KEYS[1], 'is_valid') ~= '0' then
  return 0
end
local ch = redis.call('HGET', KEYS[1], 'context_hash')
redis.call('DEL', KEYS[1])
redis.call('ZREM', KEYS[2], ARGV[3])
if ch then
  redis.call('SREM', ARGV[4] .. ch, ARGV[3])
end
return 1
`)

// cachePayload holds the parts of an entry that only change on store.
type cachePayload struct {
	NaturalQuery   string                `json:"natural_query"`
	GeneratedSQL   string                `json:"generated_sql"`
	ResultData     []map[string]any      `json:"result_data"`
	ResultMetadata models.ResultMetadata `json:"result_metadata"`
}

type redisQueryCacheRepository struct {
	client    redis.UniversalClient
	prefix    string
	batchSize int
}

// NewRedisQueryCacheRepository creates a Redis-backed cache repository.
// An empty prefix uses DefaultRedisKeyPrefix; batchSize <= 0 uses DefaultCleanupBatchSize.
func NewRedisQueryCacheRepository(client redis.UniversalClient, prefix string, batchSize int) QueryCacheRepository {
	if prefix == "" {
		prefix = DefaultRedisKeyPrefix
	}
	if batchSize <= 0 {
		batchSize = DefaultCleanupBatchSize
	}
	return &redisQueryCacheRepository{client: client, prefix: prefix, batchSize: batchSize}
}

var _ QueryCacheRepository = (*redisQueryCacheRepository)(nil)

func (r *redisQueryCacheRepository) entryKey(queryHash string) string {
	return r.prefix + "entry:" + queryHash
}

func (r *redisQueryCacheRepository) expiresKey() string {
	return r.prefix + "expires"
}

func (r *redisQueryCacheRepository) contextPrefix() string {
	return r.prefix + "ctx:"
}

func (r *redisQueryCacheRepository) contextKey(contextHash string) string {
	return r.contextPrefix() + contextHash
}

func (r *redisQueryCacheRepository) Get(ctx context.Context, queryHash string) (*models.CacheEntry, error) {
	fields, err := r.client.HGetAll(ctx, r.entryKey(queryHash)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get cache entry: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	entry, err := decodeRedisEntry(queryHash, fields)
	if err != nil {
		return nil, fmt.Errorf("failed to decode cache entry %s: %w", queryHash, err)
	}
	return entry, nil
}

func (r *redisQueryCacheRepository) Upsert(ctx context.Context, entry *models.CacheEntry) error {
	payload, err := json.Marshal(cachePayload{
		NaturalQuery:   entry.NaturalQuery,
		GeneratedSQL:   entry.GeneratedSQL,
		ResultData:     entry.ResultData,
		ResultMetadata: entry.ResultMetadata,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal cache payload: %w", err)
	}

	fields := map[string]any{
		fieldContextHash: entry.ContextHash,
		fieldPayload:     payload,
		fieldHitCount:    entry.HitCount,
		fieldExpiresAt:   entry.ExpiresAt.UnixMilli(),
		fieldIsValid:     boolField(entry.IsValid),
		fieldCreatedAt:   entry.CreatedAt.UnixMilli(),
		fieldUpdatedAt:   entry.UpdatedAt.UnixMilli(),
	}
	if entry.LastHitAt != nil {
		fields[fieldLastHitAt] = entry.LastHitAt.UnixMilli()
	}

	key := r.entryKey(entry.QueryHash)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, fields)
		pipe.ZAdd(ctx, r.expiresKey(), redis.Z{
			Score:  float64(entry.ExpiresAt.UnixMilli()),
			Member: entry.QueryHash,
		})
		pipe.SAdd(ctx, r.contextKey(entry.ContextHash), entry.QueryHash)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to upsert cache entry: %w", err)
	}
	return nil
}

func (r *redisQueryCacheRepository) RecordHit(ctx context.Context, queryHash string, at time.Time) (bool, error) {
	n, err := recordHitScript.Run(ctx, r.client, []string{r.entryKey(queryHash)}, at.UnixMilli()).Int()
	if err != nil {
		return false, fmt.Errorf("failed to record cache hit: %w", err)
	}
	return n == 1, nil
}

func (r *redisQueryCacheRepository) Invalidate(ctx context.Context, queryHash string) (bool, error) {
	n, err := invalidateScript.Run(ctx, r.client, []string{r.entryKey(queryHash)}).Int()
	if err != nil {
		return false, fmt.Errorf("failed to invalidate cache entry: %w", err)
	}
	return n >= 0, nil
}

func (r *redisQueryCacheRepository) InvalidateByContext(ctx context.Context, contextHash string) (int64, error) {
	setKey := r.contextKey(contextHash)
	members, err := r.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list cache entries by context: %w", err)
	}

	var total int64
	for _, queryHash := range members {
		n, err := invalidateInContextScript.Run(ctx, r.client,
			[]string{r.entryKey(queryHash), setKey}, contextHash, queryHash).Int64()
		if err != nil {
			return total, fmt.Errorf("failed to invalidate cache entries by context: %w", err)
		}
		total += n
	}
	return total, nil
}

func (r *redisQueryCacheRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	n, err := r.deleteExpired(ctx, now, false)
	if err != nil {
		return n, fmt.Errorf("failed to delete expired cache entries: %w", err)
	}
	return n, nil
}

func (r *redisQueryCacheRepository) DeleteInvalidExpired(ctx context.Context, now time.Time) (int64, error) {
	n, err := r.deleteExpired(ctx, now, true)
	if err != nil {
		return n, fmt.Errorf("failed to delete invalid cache entries: %w", err)
	}
	return n, nil
}

// deleteExpired walks the expiry index in pages of batchSize. Valid expired
// entries are skipped rather than removed when requireInvalid is set, so the
// offset advances past them.
func (r *redisQueryCacheRepository) deleteExpired(ctx context.Context, now time.Time, requireInvalid bool) (int64, error) {
	nowMs := now.UnixMilli()
	require := "0"
	if requireInvalid {
		require = "1"
	}

	var total int64
	var offset int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		members, err := r.client.ZRangeByScore(ctx, r.expiresKey(), &redis.ZRangeBy{
			Min:    "-inf",
			Max:    strconv.FormatInt(nowMs, 10),
			Offset: offset,
			Count:  int64(r.batchSize),
		}).Result()
		if err != nil {
			return total, err
		}

		var removed int64
		for _, queryHash := range members {
			n, err := deleteIfExpiredScript.Run(ctx, r.client,
				[]string{r.entryKey(queryHash), r.expiresKey()},
				nowMs, require, queryHash, r.contextPrefix()).Int64()
			if err != nil {
				return total, err
			}
			if n == 1 {
				total++
			}
			if n > 0 {
				removed++
			}
		}

		if len(members) < r.batchSize {
			return total, nil
		}
		offset += int64(len(members)) - removed
	}
}

// liveEntries loads every entry whose expiry is after now.
func (r *redisQueryCacheRepository) liveEntries(ctx context.Context, now time.Time) ([]*models.CacheEntry, error) {
	members, err := r.client.ZRangeByScore(ctx, r.expiresKey(), &redis.ZRangeBy{
		Min: "(" + strconv.FormatInt(now.UnixMilli(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return []*models.CacheEntry{}, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(members))
	_, err = r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, queryHash := range members {
			cmds[i] = pipe.HGetAll(ctx, r.entryKey(queryHash))
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	entries := make([]*models.CacheEntry, 0, len(members))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		entry, err := decodeRedisEntry(members[i], fields)
		if err != nil {
			return nil, fmt.Errorf("failed to decode cache entry %s: %w", members[i], err)
		}
		if entry.IsExpired(now) {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (r *redisQueryCacheRepository) ListPopular(ctx context.Context, now time.Time, limit int) ([]*models.CacheEntry, error) {
	all, err := r.liveEntries(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list popular cache entries: %w", err)
	}

	entries := make([]*models.CacheEntry, 0, len(all))
	for _, e := range all {
		if e.IsValid {
			entries = append(entries, e)
		}
	}
	SortByPopularity(entries)
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (r *redisQueryCacheRepository) Stats(ctx context.Context, now time.Time) (*models.CacheStats, error) {
	entries, err := r.liveEntries(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to compute cache stats: %w", err)
	}

	var stats models.CacheStats
	for _, e := range entries {
		stats.TotalCaches++
		if e.IsValid {
			stats.ValidCaches++
		} else {
			stats.ExpiredCaches++
		}
		stats.TotalHits += e.HitCount
	}
	if stats.TotalCaches > 0 {
		stats.AvgHitsPerCache = float64(stats.TotalHits) / float64(stats.TotalCaches)
	}
	return &stats, nil
}

// ============================================================================
// Helper Functions - Encoding
// ============================================================================

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func decodeRedisEntry(queryHash string, fields map[string]string) (*models.CacheEntry, error) {
	var payload cachePayload
	if err := json.Unmarshal([]byte(fields[fieldPayload]), &payload); err != nil {
		return nil, fmt.Errorf("payload: %w", err)
	}

	entry := &models.CacheEntry{
		QueryHash:      queryHash,
		ContextHash:    fields[fieldContextHash],
		NaturalQuery:   payload.NaturalQuery,
		GeneratedSQL:   payload.GeneratedSQL,
		ResultData:     payload.ResultData,
		ResultMetadata: payload.ResultMetadata,
		IsValid:        fields[fieldIsValid] == "1",
	}

	var err error
	if entry.HitCount, err = parseIntField(fields, fieldHitCount); err != nil {
		return nil, err
	}
	if entry.ExpiresAt, err = parseMilliField(fields, fieldExpiresAt); err != nil {
		return nil, err
	}
	if entry.CreatedAt, err = parseMilliField(fields, fieldCreatedAt); err != nil {
		return nil, err
	}
	if entry.UpdatedAt, err = parseMilliField(fields, fieldUpdatedAt); err != nil {
		return nil, err
	}
	if _, ok := fields[fieldLastHitAt]; ok {
		t, err := parseMilliField(fields, fieldLastHitAt)
		if err != nil {
			return nil, err
		}
		entry.LastHitAt = &t
	}
	return entry, nil
}

func parseIntField(fields map[string]string, name string) (int64, error) {
	raw, ok := fields[name]
	if !ok || raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return n, nil
}

func parseMilliField(fields map[string]string, name string) (time.Time, error) {
	ms, err := parseIntField(fields, name)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms), nil
}
