package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sura-tech/quotes-api/internal/adapters/httpapi"
	"github.com/sura-tech/quotes-api/internal/adapters/kafka"
	"github.com/sura-tech/quotes-api/internal/adapters/logsink"
	memidempotency "github.com/sura-tech/quotes-api/internal/adapters/memory/idempotency"
	memoutbox "github.com/sura-tech/quotes-api/internal/adapters/memory/outbox"
	memquoterepo "github.com/sura-tech/quotes-api/internal/adapters/memory/quoterepo"
	memtx "github.com/sura-tech/quotes-api/internal/adapters/memory/tx"
	"github.com/sura-tech/quotes-api/internal/adapters/postgres"
	pgidempotency "github.com/sura-tech/quotes-api/internal/adapters/postgres/idempotency"
	pgoutbox "github.com/sura-tech/quotes-api/internal/adapters/postgres/outbox"
	pgquoterepo "github.com/sura-tech/quotes-api/internal/adapters/postgres/quoterepo"
	appidempotency "github.com/sura-tech/quotes-api/internal/app/idempotency"
	appoutbox "github.com/sura-tech/quotes-api/internal/app/outbox"
	"github.com/sura-tech/quotes-api/internal/app/quotes"
	platformclock "github.com/sura-tech/quotes-api/internal/platform/clock"
	"github.com/sura-tech/quotes-api/internal/platform/config"
	"github.com/sura-tech/quotes-api/internal/platform/logging"
	"github.com/sura-tech/quotes-api/internal/ports/out/eventsink"
	idempotencyport "github.com/sura-tech/quotes-api/internal/ports/out/idempotency"
	outboxport "github.com/sura-tech/quotes-api/internal/ports/out/outbox"
	quoterepoport "github.com/sura-tech/quotes-api/internal/ports/out/quoterepo"
	txport "github.com/sura-tech/quotes-api/internal/ports/out/tx"
)

func main() {
	logger, err := logging.New()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clk := platformclock.NewSystemClock()

	var (
		quoteRepo   quoterepoport.Repository
		idemStore   idempotencyport.Store
		outboxStore outboxport.Store
		runner      txport.Runner
		cleanup     func()
	)

	switch cfg.StorageBackend {
	case config.BackendPostgres:
		if cfg.MigrateOnStart {
			if err := postgres.Migrate(cfg.MigrationsURL, cfg.DatabaseURL); err != nil {
				logger.Fatal("migrations failed", zap.Error(err))
			}
		}
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, postgres.PoolOptions{})
		if err != nil {
			logger.Fatal("postgres connection failed", zap.Error(err))
		}
		cleanup = pool.Close

		quoteRepo = pgquoterepo.NewRepository(pool)
		idemStore = pgidempotency.NewStore(pool)
		outboxStore = pgoutbox.NewStore(pool)
		runner = postgres.NewRunner(pool)
	default:
		memQuotes := memquoterepo.NewRepo()
		memIdem := memidempotency.NewStore()
		memOutbox := memoutbox.NewStore()

		quoteRepo = memQuotes
		idemStore = memIdem
		outboxStore = memOutbox
		runner = memtx.NewRunner(memQuotes, memIdem, memOutbox)
	}
	if cleanup != nil {
		defer cleanup()
	}

	var sink eventsink.Sink
	switch cfg.Sink {
	case config.SinkKafka:
		kafkaSink := kafka.NewSink(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer func() { _ = kafkaSink.Close() }()
		sink = kafkaSink
	default:
		sink = logsink.NewSink(logger.With(zap.String("component", "log-sink")))
	}

	idemSvc := appidempotency.NewService(idemStore, runner, clk, cfg.IdempotencyTTL)
	quoteSvc := quotes.NewService(quoteRepo, outboxStore, idemSvc, clk)

	if cfg.Outbox.Enabled {
		publisher := appoutbox.NewPublisher(outboxStore, sink, clk, appoutbox.Config{
			PollInterval: cfg.Outbox.PollInterval,
			BatchSize:    cfg.Outbox.BatchSize,
			MaxAttempts:  cfg.Outbox.MaxAttempts,
			BaseBackoff:  cfg.Outbox.BaseBackoff,
			MaxBackoff:   cfg.Outbox.MaxBackoff,
			StuckAfter:   cfg.Outbox.StuckAfter,
		}, logger.With(zap.String("component", "outbox-publisher")))
		go publisher.Run(ctx)
	}

	api := httpapi.NewServer(quoteSvc, logger.With(zap.String("component", "http")))
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpapi.NewRouter(api),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("api listening", zap.String("port", cfg.Port), zap.String("storage", string(cfg.StorageBackend)), zap.String("sink", string(cfg.Sink)))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
