//go:build integration

package repositories

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/ekaya-inc/ekaya-querycache/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-querycache/pkg/models"
	"github.com/ekaya-inc/ekaya-querycache/pkg/testhelpers"
)

var querycacheTables = []string{
	"engine_query_feedback",
	"engine_query_execution_logs",
	"engine_query_cache",
}

func TestPostgresQueryCacheRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	tdb := testhelpers.GetTestDB(t)

	testQueryCacheRepositoryContract(t, func(t *testing.T) QueryCacheRepository {
		tdb.Truncate(t, querycacheTables...)
		// Small batch size so cleanup crosses batch boundaries.
		return NewQueryCacheRepository(tdb.DB, 2)
	})
}

func TestPostgresExecutionLogRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	tdb := testhelpers.GetTestDB(t)

	testExecutionLogRepositoryContract(t, func(t *testing.T) ExecutionLogRepository {
		tdb.Truncate(t, querycacheTables...)
		return NewExecutionLogRepository(tdb.DB)
	})
}

func TestPostgresFeedbackRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	tdb := testhelpers.GetTestDB(t)

	testFeedbackRepositoryContract(t, func(t *testing.T) (FeedbackRepository, ExecutionLogRepository) {
		tdb.Truncate(t, querycacheTables...)
		return NewFeedbackRepository(tdb.DB), NewExecutionLogRepository(tdb.DB)
	})
}

func TestPostgresFeedbackRepository_CreateUnknownLog(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	tdb := testhelpers.GetTestDB(t)
	tdb.Truncate(t, querycacheTables...)
	repo := NewFeedbackRepository(tdb.DB)

	fb := newContractFeedback(uuid.New(), 2, models.FeedbackTypeIncorrect, false, contractNow())
	err := repo.Create(context.Background(), fb)
	assert.ErrorIs(t, err, apperrors.ErrReferenceNotFound)
}
