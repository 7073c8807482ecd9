package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/missioncare/intake-api/internal/config"
	auditHandler "github.com/missioncare/intake-api/internal/handler/audit"
	beneficiaryHandler "github.com/missioncare/intake-api/internal/handler/beneficiary"
	healthHandler "github.com/missioncare/intake-api/internal/handler/health"
	inventoryHandler "github.com/missioncare/intake-api/internal/handler/inventory"
	missionHandler "github.com/missioncare/intake-api/internal/handler/mission"
	pharmacyHandler "github.com/missioncare/intake-api/internal/handler/pharmacy"
	visitHandler "github.com/missioncare/intake-api/internal/handler/visit"
	"github.com/missioncare/intake-api/internal/middleware"
	"github.com/missioncare/intake-api/internal/repository/postgres"
	"github.com/missioncare/intake-api/internal/router"
	advisorService "github.com/missioncare/intake-api/internal/service/advisor"
	auditService "github.com/missioncare/intake-api/internal/service/audit"
	beneficiaryService "github.com/missioncare/intake-api/internal/service/beneficiary"
	dispenseService "github.com/missioncare/intake-api/internal/service/dispense"
	inventoryService "github.com/missioncare/intake-api/internal/service/inventory"
	missionService "github.com/missioncare/intake-api/internal/service/mission"
	queueService "github.com/missioncare/intake-api/internal/service/queue"
	visitService "github.com/missioncare/intake-api/internal/service/visit"
	"github.com/missioncare/intake-api/pkg/auth"
	"github.com/missioncare/intake-api/pkg/logger"
	"github.com/missioncare/intake-api/pkg/messaging"
	"github.com/missioncare/intake-api/pkg/messaging/redis"
	"github.com/missioncare/intake-api/pkg/metrics"
	"github.com/missioncare/intake-api/pkg/validator"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(&logger.Config{
		Level:      logger.InfoLevel,
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
	})

	if err := validator.RegisterCustomRules(); err != nil {
		log.Fatal().Err(err).Msg("failed to register validation rules")
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	appMetrics := metrics.NewMetrics("intake_api")

	var broker messaging.Broker
	broker, err = redis.NewRedisBroker(redis.Config{
		URL:          cfg.Redis.URL,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, appLogger.Zerolog())
	if err != nil {
		// The outbox buffers audit events, so a missing broker only delays
		// live delivery.
		appLogger.Warn("redis broker unavailable, audit events will queue", "error", err.Error())
		broker = nil
	} else {
		defer broker.Close()
	}

	// Repositories
	beneficiaryRepo := postgres.NewBeneficiaryRepository(db)
	visitRepo := postgres.NewVisitRepository(db)
	itemRepo := postgres.NewItemRepository(db)
	movementRepo := postgres.NewStockMovementRepository(db)
	missionRepo := postgres.NewMissionRepository(db)
	auditRepo := postgres.NewAuditRepository(db)
	outboxRepo := postgres.NewOutboxRepository(db)
	txBeginner := postgres.NewBaseRepository(db)

	// Services
	recorder := auditService.NewRecorder(outboxRepo, appLogger, appMetrics)
	beneficiarySvc := beneficiaryService.NewService(beneficiaryRepo, recorder)
	visitSvc := visitService.NewService(visitRepo, beneficiaryRepo, recorder, appMetrics)
	queueSvc := queueService.NewService(visitRepo, appMetrics)
	inventorySvc := inventoryService.NewService(itemRepo, movementRepo, recorder)
	missionSvc := missionService.NewService(missionRepo, recorder)
	advisorSvc := advisorService.NewService(missionRepo)
	dispenseSvc := dispenseService.NewService(txBeginner, visitRepo, itemRepo, movementRepo, recorder, appLogger, appMetrics)
	auditSvc := auditService.NewService(auditRepo)

	// Middleware and handlers
	tokens := auth.NewJWTService(cfg.JWT.Secret)
	authMiddleware := middleware.NewAuthMiddleware(tokens)

	r := router.NewRouter(
		authMiddleware,
		healthHandler.NewHandler(db, broker),
		visitHandler.NewHandler(visitSvc, queueSvc),
		pharmacyHandler.NewHandler(dispenseSvc, advisorSvc),
		beneficiaryHandler.NewHandler(beneficiarySvc),
		inventoryHandler.NewHandler(inventorySvc),
		missionHandler.NewHandler(missionSvc),
		auditHandler.NewHandler(auditSvc),
		router.Config{
			RateLimit:  rate.Limit(cfg.RateLimit.RPS),
			RateBurst:  cfg.RateLimit.Burst,
			CORSConfig: middleware.DefaultCORSConfig(),
			Timeout:    time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()
	appLogger.Info("server started", "port", cfg.Server.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	appLogger.Info("server exited")
}
