package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/cypherlabdev/kalshi-best-bets/internal/cache"
	"github.com/cypherlabdev/kalshi-best-bets/internal/config"
	httpHandler "github.com/cypherlabdev/kalshi-best-bets/internal/handler/http"
	"github.com/cypherlabdev/kalshi-best-bets/internal/messaging"
	"github.com/cypherlabdev/kalshi-best-bets/internal/metrics"
	"github.com/cypherlabdev/kalshi-best-bets/internal/service"
)

func main() {
	flags := pflag.NewFlagSet("dashboard", pflag.ExitOnError)
	configPath := flags.String("config", "config/config.yaml", "config file")
	envFile := flags.String("env-file", ".env", "dotenv file with secrets")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	_ = flags.Parse(os.Args[1:])

	// Secrets such as BESTBETS_DASHBOARD_JWT_SECRET may live in .env
	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatal().Err(err).Msg("failed to load env file")
	}

	// Load configuration
	cfg, err := config.Load(*configPath, flags)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)
	logger.Info().Msg("starting best-bets dashboard")

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create Redis cache
	redisCache := cache.NewRedisCache(
		cache.RedisCacheConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.TTL,
		},
		logger,
	)
	defer redisCache.Close()

	// Test Redis connection
	if err := redisCache.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	logger.Info().Str("addr", cfg.Redis.Addr).Msg("connected to Redis")

	m := metrics.New().WithRuntimeCollectors()

	// Create feed service layer
	feedService := service.NewFeedService(redisCache, logger)
	if cfg.Dashboard.SeedFile != "" {
		if err := feedService.LoadSeed(ctx, cfg.Dashboard.SeedFile); err != nil {
			logger.Warn().Err(err).Str("path", cfg.Dashboard.SeedFile).Msg("failed to load seed feed")
		}
	}
	logger.Info().Msg("feed service initialized")

	// Create Kafka consumer
	if cfg.Kafka.Enabled {
		consumer := messaging.NewKafkaConsumer(
			messaging.KafkaConsumerConfig{
				Brokers: cfg.Kafka.Brokers,
				Topic:   cfg.Kafka.Topic,
				GroupID: cfg.Kafka.GroupID,
			},
			redisCache,
			logger,
		).WithMetrics(m)
		defer consumer.Close()

		// Start Kafka consumer in goroutine
		go func() {
			if err := consumer.Start(ctx); err != nil {
				logger.Error().Err(err).Msg("Kafka consumer failed")
			}
		}()
	}

	// Initialize HTTP handler
	auth, err := httpHandler.NewAuthenticator(httpHandler.AuthConfig{
		Secret:   cfg.Dashboard.JWTSecret,
		TokenTTL: cfg.Dashboard.TokenTTL,
		Users:    cfg.Dashboard.Users,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create authenticator")
	}
	feedHandler := httpHandler.NewFeedHandler(feedService, auth, logger)
	router := httpHandler.NewRouter(
		httpHandler.RouterConfig{
			CORSOrigins: cfg.Dashboard.CORSOrigins,
			Timeout:     cfg.Server.WriteTimeout,
		},
		feedHandler,
		m,
		logger,
	)
	logger.Info().Int("users", len(cfg.Dashboard.Users)).Msg("API routes registered")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start HTTP server in goroutine
	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("starting HTTP server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("shutting down gracefully...")

	// Cancel context to stop consumer
	cancel()

	// Shutdown HTTP server
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	logger.Info().Msg("shutdown complete")
}

// setupLogger configures the logger based on config
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	// Set log level
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Set format
	if cfg.Format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	return log.Logger.With().Str("service", "bestbets-dashboard").Logger()
}
