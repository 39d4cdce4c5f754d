package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ekaya-inc/ekaya-querycache/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-querycache/pkg/audit"
	"github.com/ekaya-inc/ekaya-querycache/pkg/generation"
	"github.com/ekaya-inc/ekaya-querycache/pkg/logging"
	"github.com/ekaya-inc/ekaya-querycache/pkg/models"
)

// QueryRequest asks for the answer to a natural-language query.
type QueryRequest struct {
	NaturalQuery string
	Context      models.QueryContext
	UserID       string
	SessionID    *string
	// TTL for a newly cached answer. Zero uses the cache default.
	TTL time.Duration
}

// QueryResponse is the answer to a QueryRequest.
type QueryResponse struct {
	LogID          uuid.UUID             `json:"log_id"`
	QueryHash      string                `json:"query_hash"`
	SQL            string                `json:"sql"`
	ResultData     []map[string]any      `json:"result_data"`
	ResultMetadata models.ResultMetadata `json:"result_metadata"`
	FromCache      bool                  `json:"from_cache"`
}

// QueryPipeline is the caller-facing entry point: it answers queries from
// cache or the generator, and exposes feedback and dashboard operations.
type QueryPipeline interface {
	// Query answers req. Generation failures are logged and returned as
	// *generation.GenerationError; nothing is cached for them.
	Query(ctx context.Context, req QueryRequest) (*QueryResponse, error)

	SubmitFeedback(ctx context.Context, req SubmitFeedbackRequest) (*models.Feedback, error)

	// ReviewFeedback applies a moderator action. note is the admin response,
	// and is required for dismissals.
	ReviewFeedback(ctx context.Context, feedbackID uuid.UUID, action models.ReviewAction, reviewerID, note string) (*models.Feedback, error)

	ListPendingFeedback(ctx context.Context, limit int) ([]*models.Feedback, error)

	InvalidateCache(ctx context.Context, queryHash string) error

	GetDashboard(ctx context.Context) (*models.Dashboard, error)
}

type queryPipeline struct {
	cache        QueryCacheService
	execLogger   ExecutionLogger
	feedback     FeedbackService
	stats        StatsAggregator
	generator    generation.Generator
	metrics      *Metrics
	popularLimit int
	logger       *zap.Logger
	now          func() time.Time
}

// NewQueryPipeline wires the services behind QueryPipeline.
func NewQueryPipeline(
	cache QueryCacheService,
	execLogger ExecutionLogger,
	feedback FeedbackService,
	stats StatsAggregator,
	generator generation.Generator,
	metrics *Metrics,
	popularLimit int,
	logger *zap.Logger,
) QueryPipeline {
	if popularLimit <= 0 {
		popularLimit = DefaultPopularLimit
	}
	return &queryPipeline{
		cache:        cache,
		execLogger:   execLogger,
		feedback:     feedback,
		stats:        stats,
		generator:    generator,
		metrics:      metrics,
		popularLimit: popularLimit,
		logger:       logger.Named("query-pipeline"),
		now:          time.Now,
	}
}

var _ QueryPipeline = (*queryPipeline)(nil)

func (p *queryPipeline) Query(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	if strings.TrimSpace(req.NaturalQuery) == "" {
		return nil, apperrors.NewValidationError("natural_query", "is required")
	}

	handle, err := p.execLogger.Begin(ctx, req.UserID, req.NaturalQuery, req.SessionID)
	if err != nil {
		return nil, err
	}

	entry, hit, err := p.cache.Lookup(ctx, req.NaturalQuery, req.Context)
	if err != nil {
		// Lookup failures fall through to generation.
		p.logger.Warn("Cache lookup failed, generating instead", zap.Error(err))
		hit = false
	}
	if hit {
		return p.serveFromCache(ctx, handle, entry), nil
	}

	return p.generate(ctx, handle, req)
}

func (p *queryPipeline) serveFromCache(ctx context.Context, handle *LogHandle, entry *models.CacheEntry) *QueryResponse {
	// A hit is recorded and logged even if the caller has gone.
	ctx = context.WithoutCancel(ctx)
	if err := p.cache.RecordHit(ctx, entry); err != nil {
		p.logger.Warn("Failed to record cache hit",
			zap.String("query_hash", entry.QueryHash),
			zap.Error(err))
	}

	outcome := SuccessOutcome(entry.GeneratedSQL, entry.ResultMetadata.RowCount)
	outcome.CacheHit = true
	outcome.ExecutionTimeMs = p.elapsedMs(handle)
	outcome.QueryComplexity = ScoreComplexity(entry.GeneratedSQL)
	p.complete(ctx, handle, outcome)

	return &QueryResponse{
		LogID:          handle.ID,
		QueryHash:      entry.QueryHash,
		SQL:            entry.GeneratedSQL,
		ResultData:     entry.ResultData,
		ResultMetadata: entry.ResultMetadata,
		FromCache:      true,
	}
}

func (p *queryPipeline) generate(ctx context.Context, handle *LogHandle, req QueryRequest) (*QueryResponse, error) {
	start := p.now()
	genCtx := audit.WithRequester(ctx, audit.Requester{UserID: req.UserID, QueryLogID: handle.ID})
	result, err := p.generator.Generate(genCtx, req.NaturalQuery, req.Context)
	generationMs := p.now().Sub(start).Milliseconds()

	// The caller may be gone by now; the answer is still cached and the log
	// is still closed out.
	detached := context.WithoutCancel(ctx)
	if err != nil {
		outcome, returned := p.classifyFailure(ctx, err)
		outcome.ExecutionTimeMs = p.elapsedMs(handle)
		p.metrics.recordGeneration(detached, generationMs, string(outcome.Status))
		p.complete(detached, handle, outcome)
		return nil, returned
	}
	p.metrics.recordGeneration(detached, generationMs, string(models.ExecutionStatusSuccess))

	queryHash := ""
	entry, err := p.cache.Store(detached, req.NaturalQuery, req.Context, result.SQL, result.ResultData, result.ResultMetadata, req.TTL)
	if err != nil {
		p.logger.Warn("Failed to cache generated result", zap.Error(err))
	} else {
		queryHash = entry.QueryHash
	}

	outcome := SuccessOutcome(result.SQL, result.ResultMetadata.RowCount)
	outcome.IntentAnalysis = result.IntentAnalysis
	outcome.ExecutionTimeMs = p.elapsedMs(handle)
	outcome.AIProcessingTimeMs = result.ProcessingTimeMs
	outcome.TokensUsed = result.TokensUsed
	outcome.QueryComplexity = ScoreComplexity(result.SQL)
	p.complete(detached, handle, outcome)

	resultData := result.ResultData
	if resultData == nil {
		resultData = []map[string]any{}
	}
	return &QueryResponse{
		LogID:          handle.ID,
		QueryHash:      queryHash,
		SQL:            result.SQL,
		ResultData:     resultData,
		ResultMetadata: result.ResultMetadata,
		FromCache:      false,
	}, nil
}

// classifyFailure maps a generator error to the outcome to log and the
// error to return.
func (p *queryPipeline) classifyFailure(ctx context.Context, err error) (ExecutionOutcome, error) {
	var genErr *generation.GenerationError
	switch {
	case errors.As(err, &genErr):
		return FailedOutcome(genErr.Type, genErr.Error()), genErr
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil:
		return CancelledOutcome(err.Error()), fmt.Errorf("query cancelled: %w", err)
	default:
		p.logger.Error("Unclassified generation failure", zap.String("error", logging.SanitizeError(err)))
		genErr = generation.NewGenerationError(models.ErrorTypeSystem, "query could not be answered", err)
		return FailedOutcome(models.ErrorTypeSystem, genErr.Error()), genErr
	}
}

func (p *queryPipeline) complete(ctx context.Context, handle *LogHandle, outcome ExecutionOutcome) {
	if _, err := p.execLogger.Complete(ctx, handle, outcome); err != nil {
		p.logger.Error("Failed to complete execution log",
			zap.String("log_id", handle.ID.String()),
			zap.Error(err))
	}
}

func (p *queryPipeline) elapsedMs(handle *LogHandle) int64 {
	return p.now().Sub(handle.StartedAt).Milliseconds()
}

func (p *queryPipeline) SubmitFeedback(ctx context.Context, req SubmitFeedbackRequest) (*models.Feedback, error) {
	return p.feedback.Submit(ctx, req)
}

func (p *queryPipeline) ReviewFeedback(
	ctx context.Context,
	feedbackID uuid.UUID,
	action models.ReviewAction,
	reviewerID, note string,
) (*models.Feedback, error) {
	switch action {
	case models.ReviewActionReview:
		return p.feedback.MarkReviewed(ctx, feedbackID, reviewerID, optionalString(note))
	case models.ReviewActionResolve:
		return p.feedback.MarkResolved(ctx, feedbackID, reviewerID, optionalString(note))
	case models.ReviewActionDismiss:
		return p.feedback.MarkDismissed(ctx, feedbackID, reviewerID, note)
	default:
		return nil, apperrors.NewValidationError("action", "%q is not one of review, resolve, dismiss", action)
	}
}

func (p *queryPipeline) ListPendingFeedback(ctx context.Context, limit int) ([]*models.Feedback, error) {
	return p.feedback.ListPending(ctx, limit)
}

func (p *queryPipeline) InvalidateCache(ctx context.Context, queryHash string) error {
	if strings.TrimSpace(queryHash) == "" {
		return apperrors.NewValidationError("query_hash", "is required")
	}
	return p.cache.Invalidate(ctx, queryHash)
}

func (p *queryPipeline) GetDashboard(ctx context.Context) (*models.Dashboard, error) {
	var dashboard models.Dashboard
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		stats, err := p.stats.CacheStats(gctx)
		dashboard.CacheStats = stats
		return err
	})
	g.Go(func() error {
		stats, err := p.stats.FeedbackStats(gctx)
		dashboard.FeedbackStats = stats
		return err
	})
	g.Go(func() error {
		stats, err := p.stats.ExecutionStats(gctx)
		dashboard.ExecutionStats = stats
		return err
	})
	g.Go(func() error {
		popular, err := p.cache.GetPopularCaches(gctx, p.popularLimit)
		dashboard.PopularCaches = popular
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to build dashboard: %w", err)
	}
	return &dashboard, nil
}
