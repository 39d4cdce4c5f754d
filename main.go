package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-querycache/pkg/adapters/datasource"
	_ "github.com/ekaya-inc/ekaya-querycache/pkg/adapters/datasource/mssql"
	_ "github.com/ekaya-inc/ekaya-querycache/pkg/adapters/datasource/postgres"
	"github.com/ekaya-inc/ekaya-querycache/pkg/config"
	"github.com/ekaya-inc/ekaya-querycache/pkg/database"
	"github.com/ekaya-inc/ekaya-querycache/pkg/generation"
	"github.com/ekaya-inc/ekaya-querycache/pkg/handlers"
	"github.com/ekaya-inc/ekaya-querycache/pkg/llm"
	"github.com/ekaya-inc/ekaya-querycache/pkg/logging"
	"github.com/ekaya-inc/ekaya-querycache/pkg/mcp"
	"github.com/ekaya-inc/ekaya-querycache/pkg/mcp/tools"
	"github.com/ekaya-inc/ekaya-querycache/pkg/middleware"
	"github.com/ekaya-inc/ekaya-querycache/pkg/repositories"
	"github.com/ekaya-inc/ekaya-querycache/pkg/retry"
	"github.com/ekaya-inc/ekaya-querycache/pkg/services"
	"github.com/ekaya-inc/ekaya-querycache/pkg/telemetry"
)

// Version is set at build time via ldflags
var Version = "dev"

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

// stores holds the repositories selected by cache.store_backend and the
// connections behind them.
type stores struct {
	cache    repositories.QueryCacheRepository
	logs     repositories.ExecutionLogRepository
	feedback repositories.FeedbackRepository

	db    *database.DB
	redis *redis.Client
}

func (s *stores) close() {
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
}

// openStores connects the configured backend. The memory backend keeps
// everything in process; postgres and redis keep logs and feedback in
// PostgreSQL.
func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*stores, error) {
	if cfg.Cache.StoreBackend == config.StoreBackendMemory {
		return &stores{
			cache:    repositories.NewMemoryQueryCacheRepository(),
			logs:     repositories.NewMemoryExecutionLogRepository(),
			feedback: repositories.NewMemoryFeedbackRepository(),
		}, nil
	}

	if err := database.Migrate(cfg.Database.URL(), logger); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	db, err := database.NewConnection(ctx, database.ConfigFromSettings(&cfg.Database), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &stores{
		db:       db,
		logs:     repositories.NewExecutionLogRepository(db),
		feedback: repositories.NewFeedbackRepository(db),
	}

	switch cfg.Cache.StoreBackend {
	case config.StoreBackendPostgres:
		s.cache = repositories.NewQueryCacheRepository(db, cfg.Cache.SweepBatchSize)
	case config.StoreBackendRedis:
		client, err := database.NewRedisClient(ctx, &cfg.Redis, logger)
		if err != nil {
			s.close()
			return nil, err
		}
		s.redis = client
		s.cache = repositories.NewRedisQueryCacheRepository(client, cfg.Redis.KeyPrefix, cfg.Cache.SweepBatchSize)
	}
	return s, nil
}

// healthChecks returns the dependency probes shared by /health and the MCP
// health tool.
func healthChecks(s *stores, executor datasource.QueryExecutor) map[string]func(context.Context) error {
	checks := map[string]func(context.Context) error{
		"datasource": executor.Ping,
	}
	if s.db != nil {
		checks["database"] = s.db.Ping
	}
	if s.redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return s.redis.Ping(ctx).Err()
		}
	}
	return checks
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Configuration loaded",
		zap.String("version", cfg.Version),
		zap.String("base_url", cfg.BaseURL),
		zap.String("cache_store", cfg.Cache.StoreBackend),
		zap.String("datasource", cfg.Datasource.Type),
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.String("metrics_exporter", cfg.Metrics.Exporter),
	)

	tel, err := telemetry.Setup(ctx, cfg.Metrics, cfg.Version)
	if err != nil {
		return err
	}

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	executor, err := datasource.NewQueryExecutor(ctx, &cfg.Datasource, retry.DefaultConfig(), logger)
	if err != nil {
		return fmt.Errorf("failed to open datasource: %w", err)
	}
	defer func() { _ = executor.Close() }()

	llmClient, err := llm.NewClientFromConfig(&cfg.LLM, logger)
	if err != nil {
		return fmt.Errorf("failed to create LLM client: %w", err)
	}

	llmRetry := retry.DefaultConfig()
	llmRetry.MaxRetries = cfg.LLM.MaxRetries
	generator := generation.NewLLMGenerator(llmClient, executor, generation.LLMGeneratorConfig{
		Temperature: cfg.LLM.Temperature,
		MaxRows:     cfg.Datasource.MaxRows,
		Retry:       llmRetry,
	}, logger)

	metrics, err := services.NewMetrics(tel.Meter("querycache"))
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	cacheService := services.NewQueryCacheService(st.cache, services.QueryCacheConfig{
		DefaultTTL:   cfg.Cache.DefaultTTL,
		PopularLimit: cfg.Cache.PopularLimit,
	}, metrics, logger)
	pipeline := services.NewQueryPipeline(
		cacheService,
		services.NewExecutionLogger(st.logs, logger),
		services.NewFeedbackService(st.feedback, st.logs, logger),
		services.NewStatsAggregator(st.cache, st.feedback, st.logs, logger),
		generator,
		metrics,
		cfg.Cache.PopularLimit,
		logger,
	)

	sweeper := services.NewCacheSweeper(cacheService, cfg.Cache.SweepInterval, logger)
	sweeper.Run(ctx)
	defer sweeper.Stop()

	checks := healthChecks(st, executor)
	httpChecks := make(map[string]handlers.HealthCheck, len(checks))
	mcpChecks := make(map[string]tools.HealthCheck, len(checks))
	for name, check := range checks {
		httpChecks[name] = check
		mcpChecks[name] = check
	}

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, httpChecks, logger).RegisterRoutes(mux)
	handlers.NewQueryHandler(pipeline, logger).RegisterRoutes(mux)
	handlers.NewFeedbackHandler(pipeline, logger).RegisterRoutes(mux)

	audit, err := mcp.NewAuditLogger(tel.Meter("querycache.mcp"), logger)
	if err != nil {
		return fmt.Errorf("failed to create MCP audit logger: %w", err)
	}
	mcpServer := mcp.NewServer(telemetry.ServiceName, cfg.Version, logger, server.WithHooks(audit.Hooks()))
	tools.RegisterQueryCacheTools(mcpServer.MCP(), &tools.QueryCacheToolDeps{Pipeline: pipeline, Logger: logger})
	tools.RegisterHealthTool(mcpServer.MCP(), cfg.Version, mcpChecks)
	mux.Handle("/mcp", mcpServer.Handler("/mcp"))

	if h := tel.Handler(); h != nil {
		mux.Handle("GET "+cfg.Metrics.Path, h)
	}

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           middleware.RequestLogger(logger.Named("http"))(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting ekaya-querycache",
			zap.String("addr", srv.Addr),
			zap.Bool("tls", cfg.TLSCertPath != ""),
		)
		var err error
		if cfg.TLSCertPath != "" {
			err = srv.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
		} else {
			err = srv.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server stopped: %w", err)
		}
	case <-ctx.Done():
		logger.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown failed", zap.Error(err))
	}
	sweeper.Stop()
	if err := tel.Shutdown(shutdownCtx); err != nil {
		logger.Error("Telemetry shutdown failed", zap.Error(err))
	}
	return nil
}
