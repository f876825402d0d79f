package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4" // Echo web framework
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/iliyamo/venue-table-reservation/internal/config" // Internal config loader
	"github.com/iliyamo/venue-table-reservation/internal/database"
	"github.com/iliyamo/venue-table-reservation/internal/docstore"
	"github.com/iliyamo/venue-table-reservation/internal/docstore/memstore"
	"github.com/iliyamo/venue-table-reservation/internal/docstore/mongostore"
	"github.com/iliyamo/venue-table-reservation/internal/docstore/mysqlstore"
	"github.com/iliyamo/venue-table-reservation/internal/eventdir"
	"github.com/iliyamo/venue-table-reservation/internal/handler"
	"github.com/iliyamo/venue-table-reservation/internal/identity"
	"github.com/iliyamo/venue-table-reservation/internal/logging"
	"github.com/iliyamo/venue-table-reservation/internal/middleware"
	"github.com/iliyamo/venue-table-reservation/internal/queue"
	"github.com/iliyamo/venue-table-reservation/internal/reconcile"
	"github.com/iliyamo/venue-table-reservation/internal/repository"
	"github.com/iliyamo/venue-table-reservation/internal/router" // Internal router setup
	"github.com/iliyamo/venue-table-reservation/internal/service"
)

func main() {
	_ = godotenv.Load() // a missing .env is fine; the environment may already be set
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, &logger)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("cannot open document store")
	}
	defer store.Close(context.Background())

	// Redis is optional: without it events are read from the store on
	// every lookup and rate limits are kept per process.
	rdb := config.NewRedisClient(config.LoadRedisConfig())
	if rdb == nil {
		logger.Warn().Msg("redis unavailable; event cache off, rate limiting per process")
	} else {
		defer rdb.Close()
	}

	events := eventdir.New(store, eventdir.NewRedisCache(rdb), config.LoadEventCacheConfig(), &logger)
	svc := service.NewReservationService(store, events, &logger)
	provider := identity.NewProvider(cfg.JWTSecret, repository.NewUserRepo(store), &logger)

	startReconciliation(ctx, cfg, store, svc, &logger)

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = middleware.ErrorHandler(&logger)
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(&logger))
	e.Use(echomw.Recover())
	e.Use(echomw.ContextTimeout(cfg.RequestTimeout))

	router.RegisterRoutes(e)
	router.RegisterReservation(e, handler.NewReservationHandler(svc), provider, cfg.AllowedRoles,
		middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, &logger))

	addr := ":" + cfg.Port
	go func() {
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Str("store", cfg.StoreDriver).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server stopped")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func openStore(ctx context.Context, cfg config.Config, logger *zerolog.Logger) (docstore.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		logger.Warn().Msg("using the in-memory store; data is lost on exit")
		return memstore.New(), nil
	case config.DriverMySQL:
		db, err := database.Open(ctx, cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		if err != nil {
			return nil, err
		}
		s := mysqlstore.New(db, logger)
		if err := s.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		return s, nil
	default:
		return mongostore.Open(ctx, cfg.MongoURL, cfg.MongoDB, logger)
	}
}

// startReconciliation runs the outbox relay and, with a broker configured,
// the queue consumer. Without RABBITMQ_URL the relay hands entries to the
// reconciler directly.
func startReconciliation(ctx context.Context, cfg config.Config, store docstore.Store, svc *service.ReservationService, logger *zerolog.Logger) {
	rc := config.LoadReconcileConfig()
	if !rc.Enabled {
		logger.Warn().Msg("reconciliation disabled")
		return
	}
	reconciler := reconcile.NewReconciler(store, svc, logger)

	var pub reconcile.Publisher = reconcile.NewDirect(reconciler)
	if cfg.RabbitURL != "" {
		p := queue.NewPublisher(cfg.RabbitURL, cfg.OutboxQueue, logger)
		pub = p
		consumer := queue.NewConsumer(cfg.RabbitURL, cfg.OutboxQueue, reconciler.HandleDelivery, logger)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("outbox consumer stopped")
			}
		}()
		go func() {
			<-ctx.Done()
			_ = p.Close()
		}()
	}
	go reconcile.NewRelay(store, pub, rc, logger).Run(ctx)
}
