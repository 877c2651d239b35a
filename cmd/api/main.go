package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/harentsoaR/account-api/internal/config"
	"github.com/harentsoaR/account-api/internal/handlers"
	"github.com/harentsoaR/account-api/internal/logging"
	"github.com/harentsoaR/account-api/internal/middleware"
	"github.com/harentsoaR/account-api/internal/services"
	"github.com/harentsoaR/account-api/internal/store"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		bootLog := logging.New("info", nil)
		bootLog.Fatal().Err(err).Msg("Invalid configuration")
	}
	log := logging.New(cfg.LogLevel, nil)
	if envErr != nil {
		log.Info().Msg("No .env file found, relying on environment variables.")
	}
	log.Info().
		Str("port", cfg.Port).
		Str("storeDriver", cfg.StoreDriver).
		Bool("redisSessions", cfg.RedisAddr != "").
		Bool("kafkaEvents", len(cfg.KafkaBrokers) > 0).
		Msg("Configuration loaded")

	// --- Database Connection ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	st, err := openStore(ctx, cfg, log)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open account store")
	}
	defer st.Close(context.Background())

	// --- Initialize Services ---
	sessions, closeSessions := openSessions(cfg, log)
	defer closeSessions()

	events := openEvents(cfg, log)
	defer events.Close()

	accounts := services.NewAccountService(st, sessions, events, log, services.AccountOptions{
		BcryptCost: cfg.BcryptCost,
		JWTSecret:  []byte(cfg.JWTSecret),
		SessionTTL: cfg.SessionTTL,
	})

	// --- Gin Router ---
	gin.SetMode(gin.ReleaseMode)
	h := handlers.NewHandler(accounts, log)
	r := handlers.NewRouter(h, handlers.RouterOptions{
		CORSOrigins: cfg.CORSOrigins,
		Limiter:     middleware.NewRateLimiter(cfg.LoginRate, cfg.LoginBurst, 3*time.Minute),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
	log.Info().Msg("Server exited")
}

func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverMongo:
		s, err := store.OpenMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		log.Info().Str("database", cfg.MongoDatabase).Msg("Successfully connected to MongoDB!")
		return s, nil
	case config.DriverMemory:
		log.Warn().Msg("Using in-memory account store; data is lost on restart")
		return store.NewMemoryStore(), nil
	default:
		db, err := store.OpenMySQL(ctx, cfg.MySQLDSN)
		if err != nil {
			return nil, err
		}
		if cfg.RunMigrations {
			if err := store.Migrate(db); err != nil {
				db.Close()
				return nil, err
			}
		}
		log.Info().Msg("Successfully connected to MySQL!")
		return store.NewMySQLStore(db), nil
	}
}

func openSessions(cfg *config.Config, log zerolog.Logger) (services.SessionStore, func()) {
	if cfg.RedisAddr == "" {
		log.Warn().Msg("REDIS_ADDR is not set; sessions are kept in memory")
		return services.NewMemorySessionStore(), func() {}
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	return services.NewRedisSessionStore(rdb), func() { _ = rdb.Close() }
}

func openEvents(cfg *config.Config, log zerolog.Logger) services.EventPublisher {
	if len(cfg.KafkaBrokers) == 0 {
		log.Info().Msg("KAFKA_BROKERS is not set; account events are disabled")
		return services.NoopPublisher{}
	}
	return services.NewKafkaPublisher(services.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic))
}
