package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"example.com/fitprogress/internal/api"
	"example.com/fitprogress/internal/auth"
	"example.com/fitprogress/internal/config"
	"example.com/fitprogress/internal/database"
	"example.com/fitprogress/internal/domain"
	"example.com/fitprogress/internal/observability"
	"example.com/fitprogress/internal/outbox"
	"example.com/fitprogress/internal/persistence/memory"
	persistence "example.com/fitprogress/internal/persistence/postgres"
	"example.com/fitprogress/internal/scoring"
	httptransport "example.com/fitprogress/internal/transport/http"
)

func main() {
	cfg := config.Load()
	logger := observability.NewLogger("fitprogress-api", cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		store      domain.Store
		dispatcher *outbox.Dispatcher
	)

	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		logger.Warn("using in-memory store; data is lost on restart")
		store = memory.NewStore()
	case config.StoreDriverPostgres:
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			logger.WithError(err).Fatal("failed to connect to postgres")
		}
		defer pool.Close()

		if cfg.MigrateOnStart {
			if err := database.Migrate(ctx, pool, logger); err != nil {
				logger.WithError(err).Fatal("migration failed")
			}
		}
		store = persistence.NewRepository(pool)

		if cfg.OutboxEnabled {
			producer := outbox.NewKafkaProducer(cfg.KafkaBrokers, logger)
			defer producer.Close()

			registry := outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL)
			dispatcher = outbox.NewDispatcher(pool, producer, registry, cfg.OutboxPollInterval, cfg.OutboxBatchSize, logger)
			go dispatcher.Start(ctx)
		}
	default:
		logger.WithField("driver", cfg.StoreDriver).Fatal("unknown store driver")
	}

	var revoker *auth.Revoker
	if cfg.RedisAddr != "" {
		revoker = auth.NewRevoker(ctx, &redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, logger)
		defer revoker.Close()
	}

	scorer := scoring.NewClient(cfg.ScoringURL, cfg.ScoringTimeout)
	service := domain.NewService(store, scorer,
		domain.WithLocation(cfg.Location()),
		domain.WithLogger(logger),
	)
	accounts := domain.NewAccountService(store, auth.NewArgon2Hasher(nil))

	tokens := auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer, TTL: cfg.JWTTTL}

	var sessions api.SessionRevoker
	var revocations auth.RevocationChecker
	if revoker != nil {
		sessions = revoker
		revocations = revoker
	}

	handler := api.NewHandler(service, accounts, tokens, sessions, logger)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	authMiddleware := auth.NewMiddleware(tokens, revocations, logger)

	server := httptransport.NewServer(httptransport.ServerConfig{
		Address:      cfg.HTTPAddress,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, httptransport.Chain(mux,
		httptransport.LogRequests(logger),
		httptransport.CORS(cfg.CORSOrigin),
		authMiddleware.Wrap,
	), logger)

	go func() {
		shutdownCh := make(chan os.Signal, 1)
		signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)
		<-shutdownCh
		logger.Info("shutdown requested")
		cancel()
	}()

	logger.WithField("address", cfg.HTTPAddress).Info("fitprogress api listening")
	if err := httptransport.Run(ctx, server, 15*time.Second); err != nil {
		logger.WithError(err).Error("server stopped with error")
		cancel()
	}

	if dispatcher != nil {
		dispatcher.Wait()
	}
}
