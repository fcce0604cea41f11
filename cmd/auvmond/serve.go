package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"auv-monitor/ingestion/internal/auth"
	"auv-monitor/ingestion/internal/config"
	"auv-monitor/ingestion/internal/domain"
	"auv-monitor/ingestion/internal/dwell"
	"auv-monitor/ingestion/internal/geo"
	"auv-monitor/ingestion/internal/health"
	"auv-monitor/ingestion/internal/metrics"
	"auv-monitor/ingestion/internal/pipeline"
	"auv-monitor/ingestion/internal/rules"
	"auv-monitor/ingestion/internal/store"
	"auv-monitor/ingestion/internal/stream"
	transport "auv-monitor/ingestion/internal/transport/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the ingestion pipeline",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	// Missing .env is fine, the system environment applies.
	_ = godotenv.Load()
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.NewTimescaleStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	var rdb *store.RedisStore
	if cfg.RedisAddr != "" {
		rdb, err = store.NewRedisStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer rdb.Close()
	}

	hs := health.NewState()

	// Zone index: load immediately, then refresh on a timer.
	zoneIndex := geo.NewIndex()
	zoneRefresher := geo.NewRefresher(db, zoneIndex, cfg.ZoneRefresh, hs, logger)

	// Rules: prefer a local file when configured, otherwise the
	// rules table with periodic hot reload.
	var ruleDefs []domain.AlertRule
	if cfg.RulesFile != "" {
		ruleDefs, err = rules.LoadFile(cfg.RulesFile)
	} else {
		ruleDefs, err = db.LoadRules(ctx)
	}
	if err != nil {
		return err
	}
	ruleSet := rules.Compile(ruleDefs, logger)
	logger.Info("rule set compiled", zap.Int("rules", ruleSet.Len()))

	var dedup rules.DedupIndex
	if rdb != nil {
		dedup = rdb
	} else {
		dedup = rules.NewMemoryDedup()
	}

	tracker := dwell.NewTracker(cfg.DwellGapTolerance)
	engine := rules.NewEngine(ruleSet, zoneIndex, tracker, dedup, logger)

	hub := stream.NewHub(cfg.StreamBuffer, logger)
	hub.OnDisconnect(metrics.SubscriberDisconnects.Inc)

	writer := pipeline.NewBatchWriter(db, pipeline.BatchWriterConfig{
		QueueSize:   cfg.BatchQueueSize,
		BatchSize:   cfg.BatchSize,
		MaxWait:     cfg.BatchMaxWait,
		MaxRetries:  cfg.BatchRetryMax,
		BaseBackoff: cfg.BatchBackoff,
	}, hs, logger)

	var state pipeline.StatePublisher
	if rdb != nil {
		state = rdb
	}
	lanes := pipeline.NewLanes(cfg.LaneCount, cfg.LaneDepth, engine, db, hub, state, logger)
	coord := pipeline.NewCoordinator(writer, lanes, logger)

	var keys auth.KeyStore
	if rdb != nil {
		keys = rdb
	}
	authn := auth.NewAuthenticator(cfg, keys)

	var redisPinger transport.Pinger
	if rdb != nil {
		redisPinger = rdb
	}
	handler := transport.NewHandler(coord, hub, hs, db, redisPinger, logger)
	router := transport.NewRouter(handler, transport.NewAuthMiddleware(authn).WithLogger(logger))

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return writer.Run(ctx) })
	g.Go(func() error { return lanes.Run(ctx) })
	g.Go(func() error { return zoneRefresher.Run(ctx) })
	if md, ok := dedup.(*rules.MemoryDedup); ok {
		g.Go(func() error { return md.Run(ctx, time.Minute) })
	}
	if cfg.RulesFile == "" {
		refresher := rules.NewRefresher(db, engine, cfg.RuleRefresh, logger)
		g.Go(func() error { return refresher.Run(ctx) })
	}
	g.Go(func() error {
		logger.Info("ingestion listening", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("ingestion stopped")
	return nil
}
