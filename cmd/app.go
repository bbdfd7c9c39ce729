package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cmazet/ragchat/internal/activity"
	"github.com/cmazet/ragchat/internal/chat"
	"github.com/cmazet/ragchat/internal/config"
	"github.com/cmazet/ragchat/internal/conversation"
	"github.com/cmazet/ragchat/internal/knowledge"
	"github.com/cmazet/ragchat/internal/log"
	"github.com/cmazet/ragchat/internal/postgres"
	"github.com/cmazet/ragchat/internal/provider"
)

// Provider call rate across all users of this process.
const (
	providerRPS   = 2.0
	providerBurst = 4
)

// app holds the wired application components.
type app struct {
	cfg           *config.Config
	logger        log.Logger
	pool          *pgxpool.Pool
	client        *provider.Client
	knowledge     *knowledge.Store
	conversations *conversation.Store
	activity      *activity.Recorder
	engine        *chat.Engine
}

// setup loads configuration and wires the full pipeline.
func setup(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := log.New(log.Config{Level: level})

	pool, err := pgxpool.New(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to PostgreSQL: %w", err)
	}

	budget := provider.NewBudget(cfg.MaxBudget)
	client, err := provider.NewClient(provider.ClientConfig{
		Endpoint:            cfg.Endpoint,
		APIKey:              cfg.APIKey,
		APIVersion:          cfg.APIVersion,
		ChatDeployment:      cfg.ChatDeployment,
		EmbeddingDeployment: cfg.EmbeddingDeployment,
		Temperature:         cfg.Temperature,
		MaxTokens:           cfg.MaxTokens,
	},
		provider.WithLogger(logger),
		provider.WithBudget(budget),
		provider.WithRateLimit(providerRPS, providerBurst),
	)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating provider client: %w", err)
	}

	queries := postgres.New(pool)
	knowledgeStore := knowledge.NewStore(queries,
		knowledge.WithLogger(logger),
		knowledge.WithMaxDocuments(cfg.MaxDocuments),
	)
	conversationStore := conversation.NewStore(queries,
		conversation.WithLogger(logger),
		conversation.WithKeepLast(cfg.KeepLastTurns),
	)
	recorder := activity.NewRecorder(queries, logger)

	engine := chat.NewEngine(client, client, knowledgeStore, conversationStore,
		chat.WithLogger(logger),
		chat.WithTopK(cfg.TopK),
		chat.WithActivity(recorder),
		chat.WithBudget(budget),
	)

	return &app{
		cfg:           cfg,
		logger:        logger,
		pool:          pool,
		client:        client,
		knowledge:     knowledgeStore,
		conversations: conversationStore,
		activity:      recorder,
		engine:        engine,
	}, nil
}

// close releases held resources.
func (a *app) close() {
	a.pool.Close()
}
