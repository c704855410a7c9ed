package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/config"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/memory"
	"live-quiz-service/internal/infra/postgres"
	infraredis "live-quiz-service/internal/infra/redis"
	"live-quiz-service/internal/logging"
	"live-quiz-service/internal/metrics"
	"live-quiz-service/internal/scoring"
	transport "live-quiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz coordinator",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	mode, err := app.ParseScoringMode(cfg.Session.Scoring)
	if err != nil {
		return err
	}
	window := config.TTLDuration(cfg.Session.VotingWindow, scoring.TimeWindow)
	checks := map[string]transport.Checker{}

	var (
		pool  *pgxpool.Pool
		bunDB *bun.DB
	)
	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
			return err
		}
		if pool, err = postgres.Connect(ctx, cfg.Postgres.URL); err != nil {
			return err
		}
		defer pool.Close()
		bunDB = postgres.OpenBun(cfg.Postgres.URL)
		defer bunDB.Close()
		checks["postgres"] = transport.CheckerFunc(pool.Ping)
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("pinging redis: %w", err)
		}
		checks["redis"] = transport.CheckerFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })
	}

	var loader memory.QuestionLoader = memory.NewStaticQuestionLoader(sampleQuestions())
	if bunDB != nil {
		loader = postgres.NewCatalogLoader(bunDB)
	}

	catalogTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var catalog app.QuestionCatalog
	var bus app.Bus
	if redisClient != nil {
		catalog = infraredis.NewCatalogRepository(redisClient, loader, catalogTTL)
		bus = infraredis.NewBus(redisClient)
	} else {
		catalog = memory.NewCatalogRepository(loader, catalogTTL)
		memBus := memory.NewBus()
		defer memBus.Close()
		bus = memBus
	}

	var (
		states app.StateStore
		store  app.Store
	)
	if pool != nil {
		states = postgres.NewStateStore(pool)
		store = postgres.NewStore(pool)
	} else {
		logger.Warn("postgres not configured: participants, scores and session state are kept in memory")
		states = memory.NewStateStore()
		store = memory.NewStore()
	}

	buffer := app.NewAnswerBuffer()
	ranker := app.NewRanker(store, cfg.Session.RankingLimit)
	host := app.NewHostController(states, store, bus, catalog, buffer, ranker, app.HostOptions{
		VotingWindow: window,
		AutoAdvance:  cfg.Session.AutoAdvance,
	}, logger)
	if err := host.Init(ctx); err != nil {
		return err
	}
	defer host.Close()

	registry := app.NewRegistry(store, bus)
	feed := app.NewFeed(bus, states, catalog, ranker, logger)
	ingestor := app.NewIngestor(bus, buffer, catalog, host, mode, logger)

	view := transport.View{RevealAnswers: mode == app.ScoringClient, VotingWindow: window}
	handler := transport.NewRouter(transport.RouterDeps{
		API:      transport.NewAPI(host, registry, feed, catalog, view, logger),
		WS:       transport.NewWSHandler(registry, feed, view, logger),
		Health:   transport.NewHealthHandler(logger, checks),
		Gatherer: metrics.NewRegistry(),
		Logger:   logger,
	})

	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting quiz coordinator",
			zap.String("addr", server.Addr),
			zap.String("scoring", string(mode)),
			zap.Duration("voting_window", window),
			zap.Bool("auto_advance", cfg.Session.AutoAdvance),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error { return feed.Run(gctx) })
	g.Go(func() error { return ingestor.Run(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down quiz coordinator")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// sampleQuestions is the bank served when no Postgres is configured.
func sampleQuestions() []domain.Question {
	return []domain.Question{
		{ID: 1, Prompt: "What is 2 + 2?", Options: [4]string{"3", "4", "5", "22"}, CorrectIndex: 2, Ordinal: 1},
		{ID: 2, Prompt: "Which planet is the largest?", Options: [4]string{"Mars", "Venus", "Jupiter", "Earth"}, CorrectIndex: 3, Ordinal: 2},
		{ID: 3, Prompt: "What is the Go mascot?", Options: [4]string{"Gopher", "Crab", "Snake", "Whale"}, CorrectIndex: 1, Ordinal: 3},
		{ID: 4, Prompt: "Which keyword starts a goroutine?", Options: [4]string{"async", "go", "spawn", "thread"}, CorrectIndex: 2, Ordinal: 4},
	}
}
