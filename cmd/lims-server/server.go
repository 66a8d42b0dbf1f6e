package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/medilab/lims/internal/config"
	"github.com/medilab/lims/internal/domain/activitylog"
	"github.com/medilab/lims/internal/domain/catalog"
	"github.com/medilab/lims/internal/domain/dashboard"
	"github.com/medilab/lims/internal/domain/inventory"
	"github.com/medilab/lims/internal/domain/invoice"
	"github.com/medilab/lims/internal/domain/lab"
	"github.com/medilab/lims/internal/domain/patient"
	"github.com/medilab/lims/internal/domain/report"
	"github.com/medilab/lims/internal/domain/user"
	"github.com/medilab/lims/internal/platform/auth"
	"github.com/medilab/lims/internal/platform/blobstore"
	"github.com/medilab/lims/internal/platform/db"
	"github.com/medilab/lims/internal/platform/idgen"
	"github.com/medilab/lims/internal/platform/live"
	"github.com/medilab/lims/internal/platform/middleware"
	"github.com/medilab/lims/internal/platform/sweep"
)

const (
	version        = "0.1.0"
	bodyLimit      = "2M"
	limiterMaxIdle = 10 * time.Minute
)

func newLogger(dev bool) zerolog.Logger {
	if dev {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func cliLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.WarnLevel)
}

// services is every domain service the API serves.
type services struct {
	activity  *activitylog.Service
	catalog   *catalog.Service
	patients  *patient.Service
	users     *user.Service
	lab       *lab.Service
	invoices  *invoice.Service
	inventory *inventory.Service
	reports   *report.Service
	dashboard *dashboard.Service
}

func newServices(pool *pgxpool.Pool, blobs blobstore.Store, reg prometheus.Registerer, logger zerolog.Logger) *services {
	ids := idgen.New()
	s := &services{}
	s.activity = activitylog.NewService(activitylog.NewRepo(pool), ids, logger)
	s.catalog = catalog.NewService(catalog.NewRepo(pool), s.activity)
	s.patients = patient.NewService(patient.NewRepo(pool), ids, s.activity)
	s.users = user.NewService(user.NewRepo(pool), s.patients, s.activity)
	s.lab = lab.NewService(lab.Repos{
		Samples: lab.NewSampleRepo(pool),
		Orders:  lab.NewOrderRepo(pool),
		Results: lab.NewResultRepo(pool),
	}, s.patients, s.catalog, db.PoolTransactor{Pool: pool}, ids, s.activity, lab.NewMetrics(reg))
	s.invoices = invoice.NewService(invoice.NewRepo(pool), s.patients, s.lab, s.catalog, ids, s.activity)
	s.inventory = inventory.NewService(inventory.NewRepo(pool), db.PoolTransactor{Pool: pool}, s.activity)
	s.reports = report.NewService(report.NewRepo(pool), blobs, s.patients, s.lab, s.catalog, ids, s.activity)
	s.dashboard = dashboard.NewService(dashboard.NewRepo(pool))
	return s
}

// sweepTasks keeps time-dependent statuses current and trims in-memory
// bookkeeping.
func sweepTasks(s *services, revoked *auth.RevocationList, limiter *middleware.Limiter) []sweep.Task {
	return []sweep.Task{
		{Name: "inventory-expiry", Run: s.inventory.RefreshExpired},
		{Name: "invoice-overdue", Run: s.invoices.RefreshOverdue},
		{Name: "token-revocations", Run: func(context.Context) (int, error) { return revoked.Sweep(), nil }},
		{Name: "rate-limit-buckets", Run: func(context.Context) (int, error) { return limiter.Prune(limiterMaxIdle), nil }},
	}
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logger := newLogger(cfg.IsDev())
	log.Logger = logger
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Report documents
	blobs, err := blobstore.Open(ctx, cfg.BlobDriver, blobstore.S3Config{
		Bucket:    cfg.BlobS3Bucket,
		Region:    cfg.BlobS3Region,
		Endpoint:  cfg.BlobS3Endpoint,
		PathStyle: cfg.BlobS3PathStyle,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open blob store")
	}
	logger.Info().Str("driver", cfg.BlobDriver).Msg("blob store ready")

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	httpMetrics := middleware.NewHTTPMetrics(reg)

	// Sessions
	key, err := cfg.SigningKey()
	if err != nil {
		logger.Fatal().Err(err).Msg("no token signing key")
	}
	issuer := auth.NewIssuer(key, cfg.JWTIssuer, cfg.JWTTTL)
	revoked := auth.NewRevocationList()

	svcs := newServices(pool, blobs, reg, logger)
	hub := live.NewHub()
	svcs.lab.PublishTo(hub)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(httpMetrics.Middleware())
	e.Use(middleware.BodyLimit(bodyLimit))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Auth middleware
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware(issuer, revoked))
	} else {
		e.Use(auth.JWTMiddleware(issuer, revoked))
	}

	// Audit middleware
	e.Use(middleware.Audit(logger))

	// Health and metrics
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	// API
	limiter := middleware.NewLimiter(rateLimitConfig(cfg))
	apiV1 := e.Group("/api/v1", middleware.RateLimit(limiter))

	auth.NewSessionHandler(svcs.users, issuer, revoked).RegisterRoutes(apiV1)
	user.NewHandler(svcs.users).RegisterRoutes(apiV1)
	patient.NewHandler(svcs.patients).RegisterRoutes(apiV1)
	catalog.NewHandler(svcs.catalog).RegisterRoutes(apiV1)
	lab.NewHandler(svcs.lab).RegisterRoutes(apiV1)
	invoice.NewHandler(svcs.invoices).RegisterRoutes(apiV1)
	inventory.NewHandler(svcs.inventory).RegisterRoutes(apiV1)
	report.NewHandler(svcs.reports).RegisterRoutes(apiV1)
	dashboard.NewHandler(svcs.dashboard).RegisterRoutes(apiV1)
	activitylog.NewHandler(svcs.activity).RegisterRoutes(apiV1)
	live.NewHandler(hub, cfg.CORSOrigins).RegisterRoutes(apiV1)

	// Background sweeps
	sweeper := sweep.New(cfg.SweepInterval, logger.With().Str("component", "sweep").Logger(),
		sweepTasks(svcs, revoked, limiter)...)
	go sweeper.Run(ctx)

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	go func() {
		logger.Info().Str("addr", addr).Str("version", version).Msg("starting LIMS server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}

func rateLimitConfig(cfg *config.Config) middleware.RateLimitConfig {
	rl := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rl.RequestsPerSecond <= 0 || rl.BurstSize <= 0 {
		return middleware.DefaultRateLimitConfig()
	}
	return rl
}
