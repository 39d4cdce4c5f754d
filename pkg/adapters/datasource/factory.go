package datasource

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-querycache/pkg/config"
	"github.com/ekaya-inc/ekaya-querycache/pkg/logging"
	"github.com/ekaya-inc/ekaya-querycache/pkg/retry"
)

// NewQueryExecutor opens the executor registered for cfg.Type and pings it,
// retrying transient connection failures with backoff.
func NewQueryExecutor(ctx context.Context, cfg *config.DatasourceConfig, retryCfg *retry.Config, logger *zap.Logger) (QueryExecutor, error) {
	factory := GetFactory(cfg.Type)
	if factory == nil {
		return nil, fmt.Errorf("unsupported datasource type: %s (not compiled in)", cfg.Type)
	}
	if retryCfg == nil {
		retryCfg = retry.DefaultConfig()
	}

	logger = logger.Named("datasource")
	attempt := 0

	return retry.DoWithResultIfRetryable(ctx, retryCfg, func() (QueryExecutor, error) {
		attempt++
		exec, err := factory(ctx, cfg)
		if err != nil {
			logger.Warn("Datasource open failed",
				zap.String("type", cfg.Type),
				zap.Int("attempt", attempt),
				zap.String("error", logging.SanitizeError(err)))
			return nil, err
		}
		if err := exec.Ping(ctx); err != nil {
			_ = exec.Close()
			logger.Warn("Datasource ping failed",
				zap.String("type", cfg.Type),
				zap.Int("attempt", attempt),
				zap.String("error", logging.SanitizeError(err)))
			return nil, fmt.Errorf("ping %s datasource: %w", cfg.Type, err)
		}
		logger.Info("Datasource connected",
			zap.String("type", cfg.Type),
			zap.String("host", cfg.Host),
			zap.String("database", cfg.Database))
		return exec, nil
	})
}
