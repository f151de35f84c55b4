package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ragpdf/server/internal/module/auth"
	"github.com/ragpdf/server/internal/module/billing"
	"github.com/ragpdf/server/internal/module/billing/entitlement"
	"github.com/ragpdf/server/internal/module/document"
	"github.com/ragpdf/server/internal/module/org"
	"github.com/ragpdf/server/internal/module/retention"
	"github.com/ragpdf/server/internal/module/slack"
	"github.com/ragpdf/server/internal/module/thread"
	"github.com/ragpdf/server/internal/module/usage"
	"github.com/ragpdf/server/internal/shared/cache"
	"github.com/ragpdf/server/internal/shared/config"
	"github.com/ragpdf/server/internal/shared/database"
	"github.com/ragpdf/server/internal/shared/logger"
	"github.com/ragpdf/server/internal/utils/metrics"
	"github.com/ragpdf/server/internal/utils/middleware"
)

// App wires the modules together and owns their lifecycles.
type App struct {
	config *config.Config
	logger *zap.Logger
	db     *gorm.DB
	redis  redis.UniversalClient
	router *gin.Engine

	recorder      *usage.Recorder
	sweeper       *retention.Sweeper
	sweeperCancel context.CancelFunc
}

// New creates the application.
func New(cfg *config.Config) (*App, error) {
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	db, err := database.New(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	if err := migrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	rdb, err := cache.NewRedisClient(&cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("init redis: %w", err)
	}

	m := metrics.New("ragpdf")

	// Plan catalog and gate. All entitlement decisions flow through
	// the one gate instance.
	catalog := billing.NewCatalogWithPrices(cfg.Stripe.PriceIDs)
	gate := entitlement.NewGate(catalog)

	// Usage tracking.
	counters := usage.NewCounters(rdb)
	usageRepo := usage.NewRepository(db)
	recorder := usage.NewRecorder(usageRepo, counters, log, 1024)

	// Billing.
	billingRepo := billing.NewRepository(db)
	stripeProvider := billing.NewStripeProvider(&billing.StripeProviderConfig{
		APIKey:        cfg.Stripe.APIKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
	})
	billingService := billing.NewService(catalog, billingRepo, stripeProvider, counters, log)

	// Organizations.
	orgRepo := org.NewRepository(db)
	orgService := org.NewService(orgRepo, billingService, gate, log)

	// Documents.
	store, err := document.NewS3Store(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}
	docRepo := document.NewRepository(db)
	slots := document.NewUploadSlots(rdb, cfg.Uploads.SlotTTL)
	docService := document.NewService(docRepo, store, slots, billingService, gate, recorder, m, log)

	// The usage snapshot pulls document and member counts from their
	// owning repositories.
	usageSource := usage.NewSource(counters, usageRepo, docRepo, orgRepo, log)

	// Threads.
	threadRepo := thread.NewRepository(db)
	threadService := thread.NewService(threadRepo, billingService, gate, counters, recorder, m, log)

	// Slack.
	slackRepo := slack.NewRepository(db)
	slackService := slack.NewService(
		slackRepo,
		billingService,
		gate,
		slack.NewOAuthProvider(cfg.Slack),
		slack.NewClient(),
		rdb,
		log,
	)

	// Retention sweeper.
	sweeper := retention.NewSweeper(orgRepo, billingService, catalog, docRepo, store, cfg.Retention, m, log)

	jwtManager := auth.NewJWTManager(&auth.JWTConfig{
		Secret:            cfg.Auth.JWTSecret,
		AccessTokenExpiry: cfg.Auth.AccessTokenExpiry,
		Issuer:            cfg.Auth.Issuer,
	})

	app := &App{
		config:   cfg,
		logger:   log,
		db:       db,
		redis:    rdb,
		recorder: recorder,
		sweeper:  sweeper,
	}
	app.router = app.setupRouter(
		jwtManager,
		m,
		billing.NewHandler(billingService, m),
		billing.NewWebhookHandler(billingService, billingRepo, stripeProvider, m, log),
		entitlement.NewHandler(gate, billingService, usageSource, m, log),
		usage.NewHandler(usageSource, usageRepo),
		org.NewHandler(orgService),
		document.NewHandler(docService),
		thread.NewHandler(threadService),
		slack.NewHandler(slackService),
	)

	sweepCtx, cancel := context.WithCancel(context.Background())
	app.sweeperCancel = cancel
	go sweeper.Run(sweepCtx)

	return app, nil
}

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&org.Organization{},
		&org.Membership{},
		&billing.Subscription{},
		&billing.WebhookEvent{},
		&usage.Record{},
		&document.Project{},
		&document.Document{},
		&thread.Thread{},
		&thread.Message{},
		&slack.Installation{},
	)
}

func (a *App) setupRouter(
	jwtManager *auth.JWTManager,
	m *metrics.Metrics,
	billingHandler *billing.Handler,
	webhookHandler *billing.WebhookHandler,
	entitlementHandler *entitlement.Handler,
	usageHandler *usage.Handler,
	orgHandler *org.Handler,
	documentHandler *document.Handler,
	threadHandler *thread.Handler,
	slackHandler *slack.Handler,
) *gin.Engine {
	if a.config.Log.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.Recovery(a.logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logging(a.logger))
	r.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	r.Use(middleware.Metrics(m))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")

	// Routes called by external services, not our clients.
	webhookHandler.RegisterRoutes(v1.Group("/billing/webhooks"))
	slackHandler.RegisterCallbackRoute(v1)

	authed := v1.Group("")
	authed.Use(middleware.RequireAuth(jwtManager))
	authed.Use(middleware.Idempotency(a.redis, middleware.DefaultIdempotencyConfig()))

	billingGroup := authed.Group("/billing")
	billingHandler.RegisterRoutes(authed)
	entitlementHandler.RegisterRoutes(billingGroup)
	usageHandler.RegisterRoutes(billingGroup)

	orgHandler.RegisterRoutes(authed)
	documentHandler.RegisterRoutes(authed)
	threadHandler.RegisterRoutes(authed)
	slackHandler.RegisterRoutes(authed)

	return r
}

// Router returns the HTTP handler.
func (a *App) Router() *gin.Engine {
	return a.router
}

// Stop flushes the usage recorder and releases resources.
func (a *App) Stop() {
	if a.sweeperCancel != nil {
		a.sweeperCancel()
	}
	if a.recorder != nil {
		a.recorder.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis", zap.Error(err))
		}
	}
	if sqlDB, err := a.db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			a.logger.Warn("close database", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
