package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"

	"github.com/missioncare/intake-api/internal/config"
	"github.com/missioncare/intake-api/internal/repository/postgres"
	internalworker "github.com/missioncare/intake-api/internal/worker"
	"github.com/missioncare/intake-api/pkg/logger"
	"github.com/missioncare/intake-api/pkg/messaging/redis"
	"github.com/missioncare/intake-api/pkg/metrics"
	"github.com/missioncare/intake-api/pkg/worker"
)

// Env is the worker's environment configuration. The worker runs as a
// standalone process, often in a container, so it reads everything from
// the environment instead of the API's config file.
type Env struct {
	DBHost     string `envconfig:"DB_HOST" default:"localhost"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"intake"`
	DBPassword string `envconfig:"DB_PASSWORD" default:"intake"`
	DBName     string `envconfig:"DB_NAME" default:"intake_db"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`

	RedisURL string `envconfig:"REDIS_URL" default:"redis://localhost:6379/0"`

	BatchSize    int           `envconfig:"BATCH_SIZE" default:"100"`
	PollInterval time.Duration `envconfig:"POLL_INTERVAL" default:"5s"`
	MaxRetries   int           `envconfig:"MAX_RETRIES" default:"3"`
	RetryDelay   time.Duration `envconfig:"RETRY_DELAY" default:"5s"`

	RetentionDays     int           `envconfig:"RETENTION_DAYS" default:"365"`
	RetentionInterval time.Duration `envconfig:"RETENTION_INTERVAL" default:"24h"`

	HealthAddr string `envconfig:"HEALTH_ADDR" default:":8081"`
}

func setupHealthCheck(addr string, appLogger *logger.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			appLogger.Error(err, "health check server failed")
			os.Exit(1)
		}
	}()
}

func main() {
	var env Env
	if err := envconfig.Process("intake", &env); err != nil {
		log.Fatal().Err(err).Msg("failed to load environment")
	}

	appLogger := logger.NewLogger(&logger.Config{
		Level:      logger.InfoLevel,
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
	})

	db, err := postgres.NewDB(config.DatabaseConfig{
		Host:         env.DBHost,
		Port:         env.DBPort,
		User:         env.DBUser,
		Password:     env.DBPassword,
		Name:         env.DBName,
		SSLMode:      env.DBSSLMode,
		MaxOpenConns: 10,
		MaxIdleConns: 2,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	broker, err := redis.NewRedisBroker(redis.Config{URL: env.RedisURL}, appLogger.Zerolog())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer broker.Close()

	outboxRepo := postgres.NewOutboxRepository(db)
	auditRepo := postgres.NewAuditRepository(db)

	writer := worker.NewAuditWriter(
		outboxRepo,
		auditRepo,
		broker,
		worker.AuditWriterConfig{
			BatchSize:    env.BatchSize,
			PollInterval: env.PollInterval,
			MaxRetries:   env.MaxRetries,
			RetryDelay:   env.RetryDelay,
		},
		appLogger,
		metrics.NewMetrics("intake_worker"),
	)

	retention := internalworker.NewRetentionWorker(
		auditRepo,
		outboxRepo,
		env.RetentionDays,
		env.RetentionInterval,
		appLogger,
	)

	setupHealthCheck(env.HealthAddr, appLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		appLogger.Info("shutting down")
		cancel()
	}()

	go retention.Start(ctx)
	writer.Start(ctx)
}
