package cmd

import (
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/agentkb/agentkb/api"
	"github.com/agentkb/agentkb/db"
	"github.com/agentkb/agentkb/internal/config"
	"github.com/agentkb/agentkb/internal/embedding"
	"github.com/agentkb/agentkb/internal/knowledge"
	"github.com/agentkb/agentkb/internal/log"
	"github.com/agentkb/agentkb/internal/retrieval"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the knowledge base HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, addr string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if addr == "" {
		addr = cfg.ListenAddr
	}

	logger := log.New(log.Config{
		Level: parseLogLevel(cfg.LogLevel),
		JSON:  cfg.LogJSON,
	})
	logger.Info("starting", "version", AppVersion, "addr", addr)

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	pool, err := pgxpool.New(ctx, cfg.PostgresDSN())
	if err != nil {
		return fmt.Errorf("creating connection pool: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}

	embedder, err := embedding.NewClient(ctx, cfg.GeminiAPIKey, logger.With("component", "embedding"))
	if err != nil {
		return fmt.Errorf("creating embedding client: %w", err)
	}

	store, err := knowledge.NewStore(pool, logger.With("component", "store"))
	if err != nil {
		return fmt.Errorf("creating knowledge store: %w", err)
	}

	service, err := retrieval.NewService(store, embedder, retrieval.Config{
		SimilarityThreshold: cfg.SimilarityThreshold,
		MaxResults:          cfg.MaxResults,
	}, logger.With("component", "retrieval"))
	if err != nil {
		return fmt.Errorf("creating retrieval service: %w", err)
	}

	server := api.NewServer(pool, service, api.Config{
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	}, logger.With("component", "api"))

	return server.Run(ctx, addr)
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
