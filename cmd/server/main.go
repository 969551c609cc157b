package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"

	alertingapp "github.com/supplyai/backend/internal/application/alerting"
	allocationapp "github.com/supplyai/backend/internal/application/allocation"
	catalogapp "github.com/supplyai/backend/internal/application/catalog"
	classificationapp "github.com/supplyai/backend/internal/application/classification"
	partnerapp "github.com/supplyai/backend/internal/application/partner"
	reservationapp "github.com/supplyai/backend/internal/application/reservation"
	rulesetapp "github.com/supplyai/backend/internal/application/ruleset"
	stockapp "github.com/supplyai/backend/internal/application/stock"
	"github.com/supplyai/backend/internal/domain/allocation"
	"github.com/supplyai/backend/internal/domain/rules"
	"github.com/supplyai/backend/internal/domain/shared"
	"github.com/supplyai/backend/internal/infrastructure/cache"
	"github.com/supplyai/backend/internal/infrastructure/config"
	"github.com/supplyai/backend/internal/infrastructure/event"
	"github.com/supplyai/backend/internal/infrastructure/logger"
	"github.com/supplyai/backend/internal/infrastructure/persistence"
	"github.com/supplyai/backend/internal/interfaces/http/handler"
	"github.com/supplyai/backend/internal/interfaces/http/middleware"
	"github.com/supplyai/backend/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting allocation engine",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Initialize database connection
	gormLogLevel := gormlogger.Silent
	if cfg.Log.Level == "debug" {
		gormLogLevel = gormlogger.Info
	}
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLogLevel)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Initialize repositories
	productRepo := persistence.NewGormProductRepository(db.DB)
	customerRepo := persistence.NewGormCustomerRepository(db.DB)
	historyRepo := persistence.NewGormOrderHistoryRepository(db.DB)
	inventoryRepo := persistence.NewGormInventoryRepository(db.DB)
	reservationRepo := persistence.NewGormReservationRepository(db.DB)
	ruleRepo := persistence.NewGormRuleRepository(db.DB)
	requestRepo := persistence.NewGormRequestRepository(db.DB)
	decisionRepo := persistence.NewGormDecisionRepository(db.DB)

	// Commit idempotency store: Redis when configured, in-process otherwise
	var idemStore shared.IdempotencyStore
	if cfg.Redis.Enabled {
		redisStore, err := cache.NewRedisIdempotencyStore(&cfg.Redis)
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		idemStore = redisStore
		log.Info("Redis idempotency store connected",
			zap.String("host", cfg.Redis.Host),
			zap.Int("port", cfg.Redis.Port))
	} else {
		idemStore = cache.NewInMemoryIdempotencyStore()
		log.Info("Using in-memory idempotency store")
	}
	defer func() {
		if err := idemStore.Close(); err != nil {
			log.Error("Error closing idempotency store", zap.Error(err))
		}
	}()

	// Initialize event bus and alert subscriber
	eventBus := event.NewInMemoryEventBus(log)
	alertSubscriber := alertingapp.NewSubscriber(log)
	eventBus.Subscribe(alertSubscriber)
	log.Info("Alert subscriber registered",
		zap.Strings("events", alertSubscriber.EventTypes()))

	// Initialize application services
	catalogService := catalogapp.NewService(productRepo, log)
	customerService := partnerapp.NewService(customerRepo, log)
	classificationService := classificationapp.NewService(
		customerRepo, historyRepo, eventBus,
		classificationapp.Weights{
			Volume:      cfg.Classification.VolumeWeight,
			Margin:      cfg.Classification.MarginWeight,
			PaymentRisk: cfg.Classification.RiskWeight,
			VolumeScale: decimal.NewFromFloat(cfg.Classification.VolumeScale),
			MarginScale: decimal.NewFromFloat(cfg.Classification.MarginScale),
		}, log)
	ruleService := rulesetapp.NewService(ruleRepo, log)
	stockService := stockapp.NewService(inventoryRepo, eventBus, cfg.Allocation.MaxCommitRetries, log)
	reservationService := reservationapp.NewService(
		reservationRepo, inventoryRepo, eventBus,
		decimal.NewFromFloat(cfg.Reservation.CeilingRatio),
		cfg.Allocation.MaxCommitRetries, log)

	commitStore := persistence.NewGormCommitStore(db.DB)
	ledger := allocationapp.NewLedger(inventoryRepo, decisionRepo, commitStore, idemStore, cfg.Idempotency.TTL, log)
	optimizer := allocation.NewOptimizer(cfg.Optimizer.MaxExactCandidates, cfg.Optimizer.TimeBudget)
	allocationService := allocationapp.NewService(
		requestRepo, customerRepo, ruleRepo, rules.NewEngine(),
		reservationRepo, ledger, optimizer, eventBus,
		cfg.Allocation.AllowPartial, cfg.Allocation.MaxCommitRetries, log)

	// Start background sweepers
	sweepCtx, cancelSweeps := context.WithCancel(context.Background())
	defer cancelSweeps()

	expirationSweeper := reservationapp.NewExpirationService(
		reservationService, cfg.Reservation.SweepInterval, cfg.Reservation.SweepBatchSize, log)
	expirationSweeper.Start(sweepCtx)
	defer expirationSweeper.Stop()

	classificationSweeper := classificationapp.NewSweeper(
		classificationService, cfg.Classification.SweepInterval, log)
	classificationSweeper.Start(sweepCtx)
	defer classificationSweeper.Stop()

	// Initialize HTTP handlers
	productHandler := handler.NewProductHandler(catalogService)
	customerHandler := handler.NewCustomerHandler(customerService, classificationService)
	inventoryHandler := handler.NewInventoryHandler(stockService)
	reservationHandler := handler.NewReservationHandler(reservationService)
	ruleHandler := handler.NewRuleHandler(ruleService)
	allocationHandler := handler.NewAllocationHandler(allocationService)

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	middleware.SetupValidator()

	engine := gin.New()

	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.CORS())
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	// Health check endpoint (outside API versioning)
	engine.GET("/health", healthHandler(db))

	// Register API routes
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Register(productHandler).
		Register(customerHandler).
		Register(inventoryHandler).
		Register(reservationHandler).
		Register(ruleHandler).
		Register(allocationHandler)
	r.Setup()

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// healthHandler reports liveness and database reachability
func healthHandler(db *persistence.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)
		if err := db.Ping(); err != nil {
			reqLog.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}
