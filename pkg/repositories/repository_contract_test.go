package repositories

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-querycache/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-querycache/pkg/models"
)

// Timestamps are truncated to milliseconds, the coarsest precision any
// backend stores.
func contractNow() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func newContractEntry(hash, contextHash string, now time.Time, ttl time.Duration) *models.CacheEntry {
	return &models.CacheEntry{
		QueryHash:    hash,
		ContextHash:  contextHash,
		NaturalQuery: "list students in " + hash,
		GeneratedSQL: "SELECT name FROM students",
		ResultData:   []map[string]any{{"name": "Ada"}, {"name": "Grace"}},
		ResultMetadata: models.ResultMetadata{
			RowCount:        2,
			Columns:         []models.ColumnInfo{{Name: "name", Type: "TEXT"}},
			ExecutionTimeMs: 12,
		},
		ExpiresAt: now.Add(ttl),
		IsValid:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// testQueryCacheRepositoryContract runs behavior every cache backend shares.
// newRepo must return an empty repository.
func testQueryCacheRepositoryContract(t *testing.T, newRepo func(t *testing.T) QueryCacheRepository) {
	ctx := context.Background()

	t.Run("get missing returns nil", func(t *testing.T) {
		repo := newRepo(t)

		entry, err := repo.Get(ctx, "missing")
		require.NoError(t, err)
		assert.Nil(t, entry)
	})

	t.Run("upsert then get round trips", func(t *testing.T) {
		repo := newRepo(t)
		now := contractNow()
		in := newContractEntry("h1", "c1", now, time.Hour)

		require.NoError(t, repo.Upsert(ctx, in))

		got, err := repo.Get(ctx, "h1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "c1", got.ContextHash)
		assert.Equal(t, in.NaturalQuery, got.NaturalQuery)
		assert.Equal(t, in.GeneratedSQL, got.GeneratedSQL)
		assert.Equal(t, in.ResultData, got.ResultData)
		assert.Equal(t, in.ResultMetadata, got.ResultMetadata)
		assert.True(t, got.IsValid)
		assert.Zero(t, got.HitCount)
		assert.Nil(t, got.LastHitAt)
		assert.True(t, in.ExpiresAt.Equal(got.ExpiresAt), "expires_at %s != %s", got.ExpiresAt, in.ExpiresAt)
	})

	t.Run("upsert replaces wholesale", func(t *testing.T) {
		repo := newRepo(t)
		now := contractNow()
		require.NoError(t, repo.Upsert(ctx, newContractEntry("h1", "c1", now, time.Hour)))
		_, err := repo.RecordHit(ctx, "h1", now)
		require.NoError(t, err)
		_, err = repo.Invalidate(ctx, "h1")
		require.NoError(t, err)

		replacement := newContractEntry("h1", "c2", now, 2*time.Hour)
		replacement.GeneratedSQL = "SELECT name FROM students ORDER BY name"
		require.NoError(t, repo.Upsert(ctx, replacement))

		got, err := repo.Get(ctx, "h1")
		require.NoError(t, err)
		assert.Equal(t, "c2", got.ContextHash)
		assert.Equal(t, replacement.GeneratedSQL, got.GeneratedSQL)
		assert.True(t, got.IsValid)
		assert.Zero(t, got.HitCount)
		assert.Nil(t, got.LastHitAt)
	})

	t.Run("store racing hits resets history on the last store", func(t *testing.T) {
		repo := newRepo(t)
		now := contractNow()
		require.NoError(t, repo.Upsert(ctx, newContractEntry("h1", "c1", now, time.Hour)))

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				for j := 0; j < 10; j++ {
					_, err := repo.RecordHit(ctx, "h1", now.Add(time.Duration(j)*time.Millisecond))
					assert.NoError(t, err)
				}
			}()
			go func(i int) {
				defer wg.Done()
				assert.NoError(t, repo.Upsert(ctx, newContractEntry("h1", "c1", now, time.Duration(i+1)*time.Hour)))
			}(i)
		}
		wg.Wait()

		final := newContractEntry("h1", "c2", now, 3*time.Hour)
		require.NoError(t, repo.Upsert(ctx, final))

		got, err := repo.Get(ctx, "h1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "c2", got.ContextHash)
		assert.Zero(t, got.HitCount)
		assert.Nil(t, got.LastHitAt)
		assert.True(t, final.ExpiresAt.Equal(got.ExpiresAt))
	})

	t.Run("record hit never moves last hit backwards", func(t *testing.T) {
		repo := newRepo(t)
		now := contractNow()
		require.NoError(t, repo.Upsert(ctx, newContractEntry("h1", "c1", now, time.Hour)))

		later := now.Add(5 * time.Second)
		found, err := repo.RecordHit(ctx, "h1", later)
		require.NoError(t, err)
		assert.True(t, found)
		found, err = repo.RecordHit(ctx, "h1", now.Add(time.Second))
		require.NoError(t, err)
		assert.True(t, found)

		got, err := repo.Get(ctx, "h1")
		require.NoError(t, err)
		assert.Equal(t, int64(2), got.HitCount)
		require.NotNil(t, got.LastHitAt)
		assert.True(t, later.Equal(*got.LastHitAt), "last_hit_at %s != %s", got.LastHitAt, later)

		found, err = repo.RecordHit(ctx, "missing", now)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("invalidate", func(t *testing.T) {
		repo := newRepo(t)
		now := contractNow()
		require.NoError(t, repo.Upsert(ctx, newContractEntry("h1", "c1", now, time.Hour)))

		found, err := repo.Invalidate(ctx, "h1")
		require.NoError(t, err)
		assert.True(t, found)
		found, err = repo.Invalidate(ctx, "h1")
		require.NoError(t, err)
		assert.True(t, found, "invalidating twice still finds the entry")

		got, err := repo.Get(ctx, "h1")
		require.NoError(t, err)
		assert.False(t, got.IsValid)

		found, err = repo.Invalidate(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("invalidate by context counts only valid entries", func(t *testing.T) {
		repo := newRepo(t)
		now := contractNow()
		require.NoError(t, repo.Upsert(ctx, newContractEntry("a", "fall", now, time.Hour)))
		require.NoError(t, repo.Upsert(ctx, newContractEntry("b", "fall", now, time.Hour)))
		require.NoError(t, repo.Upsert(ctx, newContractEntry("c", "spring", now, time.Hour)))
		_, err := repo.Invalidate(ctx, "b")
		require.NoError(t, err)

		n, err := repo.InvalidateByContext(ctx, "fall")
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		a, err := repo.Get(ctx, "a")
		require.NoError(t, err)
		assert.False(t, a.IsValid)
		c, err := repo.Get(ctx, "c")
		require.NoError(t, err)
		assert.True(t, c.IsValid)
	})

	t.Run("delete expired", func(t *testing.T) {
		repo := newRepo(t)
		now := contractNow()
		require.NoError(t, repo.Upsert(ctx, newContractEntry("expired-valid", "c", now, -time.Minute)))
		require.NoError(t, repo.Upsert(ctx, newContractEntry("expired-invalid", "c", now, -time.Minute)))
		require.NoError(t, repo.Upsert(ctx, newContractEntry("boundary", "c", now, 0)))
		require.NoError(t, repo.Upsert(ctx, newContractEntry("live-invalid", "c", now, time.Hour)))
		require.NoError(t, repo.Upsert(ctx, newContractEntry("live", "c", now, time.Hour)))
		for _, h := range []string{"expired-invalid", "live-invalid"} {
			_, err := repo.Invalidate(ctx, h)
			require.NoError(t, err)
		}

		n, err := repo.DeleteInvalidExpired(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		n, err = repo.DeleteExpired(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n, "expires_at == now counts as expired")

		for hash, wantPresent := range map[string]bool{
			"expired-valid":   false,
			"expired-invalid": false,
			"boundary":        false,
			"live-invalid":    true,
			"live":            true,
		} {
			got, err := repo.Get(ctx, hash)
			require.NoError(t, err)
			assert.Equal(t, wantPresent, got != nil, hash)
		}
	})

	t.Run("list popular", func(t *testing.T) {
		repo := newRepo(t)
		now := contractNow()
		for _, h := range []string{"cold", "warm", "hot", "tied", "invalid", "expired"} {
			ttl := time.Hour
			if h == "expired" {
				ttl = -time.Minute
			}
			require.NoError(t, repo.Upsert(ctx, newContractEntry(h, "c", now, ttl)))
		}
		hits := map[string]int{"warm": 2, "hot": 3, "tied": 2, "invalid": 9, "expired": 9}
		for h, n := range hits {
			for i := 0; i < n; i++ {
				at := now.Add(time.Duration(i) * time.Second)
				if h == "tied" {
					at = at.Add(time.Minute)
				}
				_, err := repo.RecordHit(ctx, h, at)
				require.NoError(t, err)
			}
		}
		_, err := repo.Invalidate(ctx, "invalid")
		require.NoError(t, err)

		popular, err := repo.ListPopular(ctx, now, 10)
		require.NoError(t, err)
		hashes := make([]string, 0, len(popular))
		for _, e := range popular {
			hashes = append(hashes, e.QueryHash)
		}
		assert.Equal(t, []string{"hot", "tied", "warm", "cold"}, hashes)

		popular, err = repo.ListPopular(ctx, now, 2)
		require.NoError(t, err)
		assert.Len(t, popular, 2)
	})

	t.Run("stats cover unexpired entries", func(t *testing.T) {
		repo := newRepo(t)
		now := contractNow()

		stats, err := repo.Stats(ctx, now)
		require.NoError(t, err)
		assert.Zero(t, stats.TotalCaches)
		assert.Zero(t, stats.AvgHitsPerCache)

		require.NoError(t, repo.Upsert(ctx, newContractEntry("a", "c", now, time.Hour)))
		require.NoError(t, repo.Upsert(ctx, newContractEntry("b", "c", now, time.Hour)))
		require.NoError(t, repo.Upsert(ctx, newContractEntry("gone", "c", now, -time.Hour)))
		for i := 0; i < 3; i++ {
			_, err := repo.RecordHit(ctx, "a", now)
			require.NoError(t, err)
		}
		_, err = repo.Invalidate(ctx, "b")
		require.NoError(t, err)

		stats, err = repo.Stats(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, int64(2), stats.TotalCaches)
		assert.Equal(t, int64(1), stats.ValidCaches)
		assert.Equal(t, int64(1), stats.ExpiredCaches)
		assert.Equal(t, int64(3), stats.TotalHits)
		assert.InDelta(t, 1.5, stats.AvgHitsPerCache, 1e-9)
	})
}

func newContractLog(userID string, createdAt time.Time) *models.QueryExecutionLog {
	return &models.QueryExecutionLog{
		ID:              uuid.New(),
		UserID:          userID,
		NaturalQuery:    "how many students",
		ExecutionStatus: models.ExecutionStatusPending,
		CreatedAt:       createdAt,
	}
}

func completeContractLog(log *models.QueryExecutionLog, status models.ExecutionStatus, ms int64, at time.Time) {
	log.ExecutionStatus = status
	log.ExecutionTimeMs = ms
	log.CompletedAt = &at
}

// testExecutionLogRepositoryContract runs behavior every execution log
// backend shares. newRepo must return an empty repository.
func testExecutionLogRepositoryContract(t *testing.T, newRepo func(t *testing.T) ExecutionLogRepository) {
	ctx := context.Background()

	t.Run("create get exists", func(t *testing.T) {
		repo := newRepo(t)
		log := newContractLog("u1", contractNow())
		session := "s-1"
		log.SessionID = &session

		require.NoError(t, repo.Create(ctx, log))

		got, err := repo.Get(ctx, log.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "u1", got.UserID)
		require.NotNil(t, got.SessionID)
		assert.Equal(t, "s-1", *got.SessionID)
		assert.Equal(t, models.ExecutionStatusPending, got.ExecutionStatus)

		exists, err := repo.Exists(ctx, log.ID)
		require.NoError(t, err)
		assert.True(t, exists)

		missing, err := repo.Get(ctx, uuid.New())
		require.NoError(t, err)
		assert.Nil(t, missing)
		exists, err = repo.Exists(ctx, uuid.New())
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("create assigns an id", func(t *testing.T) {
		repo := newRepo(t)
		log := newContractLog("u1", contractNow())
		log.ID = uuid.Nil

		require.NoError(t, repo.Create(ctx, log))
		assert.NotEqual(t, uuid.Nil, log.ID)
	})

	t.Run("complete only once", func(t *testing.T) {
		repo := newRepo(t)
		now := contractNow()
		log := newContractLog("u1", now)
		require.NoError(t, repo.Create(ctx, log))

		sql := "SELECT COUNT(*) FROM students"
		rows := 1
		log.FinalSQL = &sql
		log.ResultRowCount = &rows
		log.TokensUsed = 42
		log.QueryComplexity = 2
		log.IntentAnalysis = map[string]any{"query_type": "aggregation"}
		completeContractLog(log, models.ExecutionStatusSuccess, 120, now.Add(time.Second))
		require.NoError(t, repo.Complete(ctx, log))

		got, err := repo.Get(ctx, log.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ExecutionStatusSuccess, got.ExecutionStatus)
		assert.Equal(t, int64(120), got.ExecutionTimeMs)
		assert.Equal(t, 42, got.TokensUsed)
		assert.Equal(t, "aggregation", got.IntentAnalysis["query_type"])
		require.NotNil(t, got.FinalSQL)
		assert.Equal(t, sql, *got.FinalSQL)
		require.NotNil(t, got.CompletedAt)

		errType := models.ErrorTypeSystem
		log.ErrorType = &errType
		completeContractLog(log, models.ExecutionStatusFailed, 5, now.Add(2*time.Second))
		err = repo.Complete(ctx, log)
		assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)

		got, err = repo.Get(ctx, log.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ExecutionStatusSuccess, got.ExecutionStatus, "a terminal log is never rewritten")
	})

	t.Run("complete missing log", func(t *testing.T) {
		repo := newRepo(t)
		log := newContractLog("u1", contractNow())
		completeContractLog(log, models.ExecutionStatusCancelled, 1, contractNow())

		err := repo.Complete(ctx, log)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("list filters newest first", func(t *testing.T) {
		repo := newRepo(t)
		base := contractNow()
		var ids []uuid.UUID
		for i, user := range []string{"u1", "u2", "u1", "u1"} {
			log := newContractLog(user, base.Add(time.Duration(i)*time.Minute))
			require.NoError(t, repo.Create(ctx, log))
			ids = append(ids, log.ID)
		}

		logs, err := repo.List(ctx, models.ExecutionLogFilter{UserID: "u1"})
		require.NoError(t, err)
		require.Len(t, logs, 3)
		assert.Equal(t, ids[3], logs[0].ID)
		assert.Equal(t, ids[0], logs[2].ID)

		since := base.Add(90 * time.Second)
		logs, err = repo.List(ctx, models.ExecutionLogFilter{Since: &since})
		require.NoError(t, err)
		assert.Len(t, logs, 2)

		logs, err = repo.List(ctx, models.ExecutionLogFilter{Limit: 1})
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.Equal(t, ids[3], logs[0].ID)

		logs, err = repo.List(ctx, models.ExecutionLogFilter{Status: models.ExecutionStatusSuccess})
		require.NoError(t, err)
		assert.Empty(t, logs)
	})

	t.Run("stats", func(t *testing.T) {
		repo := newRepo(t)
		now := contractNow()

		stats, err := repo.Stats(ctx)
		require.NoError(t, err)
		assert.Zero(t, stats.TotalExecutions)
		assert.Zero(t, stats.CacheHitRate)

		hit := newContractLog("u1", now)
		miss := newContractLog("u1", now)
		failed := newContractLog("u1", now)
		pending := newContractLog("u1", now)
		for _, l := range []*models.QueryExecutionLog{hit, miss, failed, pending} {
			require.NoError(t, repo.Create(ctx, l))
		}
		hit.CacheHit = true
		completeContractLog(hit, models.ExecutionStatusSuccess, 10, now)
		miss.TokensUsed = 300
		completeContractLog(miss, models.ExecutionStatusSuccess, 200, now)
		errType := models.ErrorTypeAI
		failed.ErrorType = &errType
		failed.TokensUsed = 100
		completeContractLog(failed, models.ExecutionStatusFailed, 90, now)
		for _, l := range []*models.QueryExecutionLog{hit, miss, failed} {
			require.NoError(t, repo.Complete(ctx, l))
		}

		stats, err = repo.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(4), stats.TotalExecutions)
		assert.Equal(t, int64(2), stats.ByStatus[models.ExecutionStatusSuccess])
		assert.Equal(t, int64(1), stats.ByStatus[models.ExecutionStatusFailed])
		assert.Equal(t, int64(1), stats.ByStatus[models.ExecutionStatusPending])
		assert.Equal(t, int64(1), stats.CacheHits)
		assert.InDelta(t, 0.25, stats.CacheHitRate, 1e-9)
		assert.InDelta(t, 100.0, stats.AvgExecutionTimeMs, 1e-9, "pending logs are excluded from the average")
		assert.Equal(t, int64(400), stats.TotalTokensUsed)
	})
}

func newContractFeedback(logID uuid.UUID, rating int, ft models.FeedbackType, helpful bool, createdAt time.Time) *models.Feedback {
	return &models.Feedback{
		ID:           uuid.New(),
		QueryLogID:   logID,
		UserID:       "u1",
		Rating:       rating,
		FeedbackType: ft,
		IsHelpful:    helpful,
		Status:       models.FeedbackStatusPending,
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}
}

// testFeedbackRepositoryContract runs behavior every feedback backend
// shares. newRepos must return empty repositories; feedback rows reference
// logs created through the returned log repository.
func testFeedbackRepositoryContract(t *testing.T, newRepos func(t *testing.T) (FeedbackRepository, ExecutionLogRepository)) {
	ctx := context.Background()

	newLog := func(t *testing.T, logs ExecutionLogRepository) uuid.UUID {
		t.Helper()
		log := newContractLog("u1", contractNow())
		require.NoError(t, logs.Create(ctx, log))
		return log.ID
	}

	t.Run("create and get", func(t *testing.T) {
		repo, logs := newRepos(t)
		fb := newContractFeedback(newLog(t, logs), 2, models.FeedbackTypeIncorrect, false, contractNow())
		corrected := "SELECT name FROM students WHERE active"
		fb.CorrectedSQL = &corrected

		require.NoError(t, repo.Create(ctx, fb))

		got, err := repo.Get(ctx, fb.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, fb.QueryLogID, got.QueryLogID)
		assert.Equal(t, 2, got.Rating)
		assert.Equal(t, models.FeedbackTypeIncorrect, got.FeedbackType)
		assert.Equal(t, models.FeedbackStatusPending, got.Status)
		require.NotNil(t, got.CorrectedSQL)
		assert.Equal(t, corrected, *got.CorrectedSQL)
		assert.Nil(t, got.ReviewedAt)

		missing, err := repo.Get(ctx, uuid.New())
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("transition only from pending", func(t *testing.T) {
		repo, logs := newRepos(t)
		now := contractNow()
		fb := newContractFeedback(newLog(t, logs), 5, models.FeedbackTypeHelpful, true, now)
		require.NoError(t, repo.Create(ctx, fb))

		note := "thanks"
		reviewedAt := now.Add(time.Minute)
		updated, err := repo.Transition(ctx, fb.ID, models.FeedbackTransition{
			Status:        models.FeedbackStatusResolved,
			ReviewerID:    "admin-1",
			AdminResponse: &note,
			ReviewedAt:    reviewedAt,
		})
		require.NoError(t, err)
		assert.Equal(t, models.FeedbackStatusResolved, updated.Status)
		require.NotNil(t, updated.ReviewedBy)
		assert.Equal(t, "admin-1", *updated.ReviewedBy)
		require.NotNil(t, updated.ReviewedAt)
		assert.True(t, reviewedAt.Equal(*updated.ReviewedAt))
		require.NotNil(t, updated.AdminResponse)
		assert.Equal(t, "thanks", *updated.AdminResponse)

		_, err = repo.Transition(ctx, fb.ID, models.FeedbackTransition{
			Status:     models.FeedbackStatusDismissed,
			ReviewerID: "admin-2",
			ReviewedAt: reviewedAt.Add(time.Minute),
		})
		assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)

		got, err := repo.Get(ctx, fb.ID)
		require.NoError(t, err)
		assert.Equal(t, models.FeedbackStatusResolved, got.Status)
		assert.Equal(t, "admin-1", *got.ReviewedBy)

		_, err = repo.Transition(ctx, uuid.New(), models.FeedbackTransition{
			Status:     models.FeedbackStatusReviewed,
			ReviewerID: "admin-1",
			ReviewedAt: now,
		})
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("list by status oldest first", func(t *testing.T) {
		repo, logs := newRepos(t)
		logID := newLog(t, logs)
		base := contractNow()
		var ids []uuid.UUID
		for i := 0; i < 3; i++ {
			fb := newContractFeedback(logID, 3, models.FeedbackTypeSlow, false, base.Add(time.Duration(i)*time.Second))
			require.NoError(t, repo.Create(ctx, fb))
			ids = append(ids, fb.ID)
		}
		_, err := repo.Transition(ctx, ids[1], models.FeedbackTransition{
			Status:     models.FeedbackStatusReviewed,
			ReviewerID: "admin-1",
			ReviewedAt: base,
		})
		require.NoError(t, err)

		pending, err := repo.ListByStatus(ctx, models.FeedbackStatusPending, 10)
		require.NoError(t, err)
		require.Len(t, pending, 2)
		assert.Equal(t, ids[0], pending[0].ID)
		assert.Equal(t, ids[2], pending[1].ID)

		pending, err = repo.ListByStatus(ctx, models.FeedbackStatusPending, 1)
		require.NoError(t, err)
		assert.Len(t, pending, 1)

		reviewed, err := repo.ListByStatus(ctx, models.FeedbackStatusReviewed, 10)
		require.NoError(t, err)
		require.Len(t, reviewed, 1)
		assert.Equal(t, ids[1], reviewed[0].ID)
	})

	t.Run("stats", func(t *testing.T) {
		repo, logs := newRepos(t)

		stats, err := repo.Stats(ctx)
		require.NoError(t, err)
		assert.Zero(t, stats.TotalFeedbacks)
		assert.NotNil(t, stats.ByType)
		assert.NotNil(t, stats.ByStatus)

		logID := newLog(t, logs)
		now := contractNow()
		for _, fb := range []*models.Feedback{
			newContractFeedback(logID, 5, models.FeedbackTypeHelpful, true, now),
			newContractFeedback(logID, 4, models.FeedbackTypeSuggestion, true, now),
			newContractFeedback(logID, 1, models.FeedbackTypeIncorrect, false, now),
		} {
			require.NoError(t, repo.Create(ctx, fb))
		}

		stats, err = repo.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), stats.TotalFeedbacks)
		assert.InDelta(t, 10.0/3.0, stats.AvgRating, 1e-9)
		assert.Equal(t, int64(2), stats.PositiveCount)
		assert.Equal(t, int64(1), stats.NegativeCount)
		assert.Equal(t, int64(1), stats.ByType[models.FeedbackTypeIncorrect])
		assert.Equal(t, int64(3), stats.ByStatus[models.FeedbackStatusPending])
	})
}
