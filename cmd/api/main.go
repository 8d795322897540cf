package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	validator "github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"

	"github.com/dilmapos/backend-pos/internal/app"
	"github.com/dilmapos/backend-pos/internal/auth"
	"github.com/dilmapos/backend-pos/internal/catalog"
	"github.com/dilmapos/backend-pos/internal/common"
	"github.com/dilmapos/backend-pos/internal/config"
	"github.com/dilmapos/backend-pos/internal/health"
	"github.com/dilmapos/backend-pos/internal/inventory"
	"github.com/dilmapos/backend-pos/internal/lock"
	"github.com/dilmapos/backend-pos/internal/obs"
	"github.com/dilmapos/backend-pos/internal/ratelimit"
	"github.com/dilmapos/backend-pos/internal/register"
	"github.com/dilmapos/backend-pos/internal/report"
	"github.com/dilmapos/backend-pos/internal/sale"
	"github.com/dilmapos/backend-pos/internal/security"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "pos")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	if metricsEnabled {
		obs.MustRegisterDomainMetrics(metricsNamespace, nil)
	}

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		sampling := envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0)
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "pos-api",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: sampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := app.NewPGXPool(ctx, cfg.DatabaseURL, "pos-api")
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	redisClient, err := app.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect redis")
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	if envBool("RUN_MIGRATIONS", true) {
		source := envOrDefault("MIGRATIONS_URL", "file://migrations")
		if err := app.RunMigrations(source, cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("run migrations")
		}
	}

	validate := validator.New()

	authService, err := auth.NewService(auth.Config{
		Store:           auth.NewPGStore(pool),
		Secret:          cfg.JWTSecret,
		AccessTokenTTL:  cfg.AccessTokenTTL,
		RefreshTokenTTL: cfg.RefreshTokenTTL,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise auth service")
	}
	authHandler := &auth.Handler{Service: authService, Validate: validate}
	authMiddleware := auth.Middleware{Service: authService}

	catalogService, err := catalog.NewService(catalog.ServiceConfig{
		Store:             catalog.NewPGStore(pool),
		Cache:             catalog.NewCache(redisClient, cfg.CatalogCacheTTL),
		LowStockThreshold: cfg.LowStockThreshold,
		DefaultLimit:      cfg.DefaultPageSize,
		MaxLimit:          cfg.MaxPageSize,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise catalog service")
	}
	catalogHandler := &catalog.Handler{Service: catalogService}

	inventoryService, err := inventory.NewService(inventory.NewPGStore(pool))
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise inventory service")
	}
	inventoryHandler := &inventory.Handler{Service: inventoryService}

	registerService, err := register.NewService(register.ServiceConfig{
		Store:      register.NewRedisStore(redisClient, cfg.RegisterCartTTL),
		Locker:     lock.Locker{R: redisClient},
		Products:   catalogService,
		TaxRateBPS: cfg.TaxRateBPS,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise register service")
	}
	registerHandler := &register.Handler{Service: registerService}

	saleService, err := sale.NewService(sale.ServiceConfig{
		Store:      sale.NewPGStore(pool),
		TaxRateBPS: cfg.TaxRateBPS,
		Currency:   cfg.CurrencyCode,
		Company: sale.CompanyInfo{
			Name:    cfg.CompanyName,
			Address: cfg.CompanyAddress,
			Phone:   cfg.CompanyPhone,
			Email:   cfg.CompanyEmail,
			TaxID:   cfg.CompanyTaxID,
		},
		DefaultLimit: cfg.DefaultPageSize,
		MaxLimit:     cfg.MaxPageSize,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise sale service")
	}
	saleHandler := &sale.Handler{Service: saleService}

	reportService, err := report.NewService(report.ServiceConfig{
		Store:    report.NewPGStore(pool),
		Cache:    redisClient,
		CacheTTL: cfg.ReportCacheTTL,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise report service")
	}
	reportHandler := &report.Handler{Service: reportService}

	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}
	loginLimit := ratelimit.Handler{
		Limiter: ratelimit.Limiter{Client: redisClient, Prefix: "ratelimit:login:"},
		Config: ratelimit.Config{
			Key:    clientIP,
			Window: cfg.LoginRateLimitWindow,
			Max:    cfg.LoginRateLimitMax,
		},
		OnError: func(err error) {
			logger.Error().Err(err).Msg("login rate limiter")
		},
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{
		Enable:     envBool("SECURE_HEADERS_ENABLED", true),
		EnableHSTS: envBool("SECURE_HSTS_ENABLED", false),
	}.Middleware)
	r.Use(security.BodyLimit{Max: int64(envInt("SECURE_MAX_BODY_BYTES", 1<<20))}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	healthHandler := health.Handler{
		Checker:      readinessChecker{db: pool, redis: redisClient},
		DBTimeout:    envDurationMillis("HEALTH_READY_DB_TIMEOUT_MS", 500),
		RedisTimeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Route("/auth", func(a chi.Router) {
			a.With(loginLimit.Middleware).Post("/login", authHandler.Login)
			a.Post("/refresh", authHandler.Refresh)
			a.Post("/logout", authHandler.Logout)

			a.Group(func(protected chi.Router) {
				protected.Use(authMiddleware.RequireAuth)
				protected.Get("/me", authHandler.Me)
			})
		})

		v.Route("/products", func(p chi.Router) {
			p.Use(authMiddleware.RequireAuth)
			p.Get("/", catalogHandler.List)
			p.Get("/search", catalogHandler.Search)
			p.Get("/low-stock", catalogHandler.LowStock)
			p.With(authMiddleware.RequireRole(auth.RoleAdmin)).Post("/", catalogHandler.Create)

			p.Route("/{id}", func(child chi.Router) {
				child.Get("/", catalogHandler.Get)
				child.Get("/inventory", inventoryHandler.Get)
				child.Group(func(admin chi.Router) {
					admin.Use(authMiddleware.RequireRole(auth.RoleAdmin))
					admin.Put("/", catalogHandler.Update)
					admin.Delete("/", catalogHandler.Delete)
					admin.Put("/inventory", inventoryHandler.Set)
				})
			})
		})

		v.Route("/carts", func(c chi.Router) {
			c.Use(authMiddleware.RequireAuth)
			c.Post("/", registerHandler.Create)
			c.Post("/quote", registerHandler.Quote)
			c.Route("/{id}", func(child chi.Router) {
				child.Get("/", registerHandler.Get)
				child.Delete("/", registerHandler.Clear)
				child.Post("/items", registerHandler.AddItem)
				child.Patch("/items/{productId}", registerHandler.PatchLine)
				child.Delete("/items/{productId}", registerHandler.RemoveLine)
				child.Put("/discount", registerHandler.SetDiscount)
			})
		})

		v.Route("/sales", func(s chi.Router) {
			s.Use(authMiddleware.RequireAuth)
			s.With(idem.Middleware).Post("/", saleHandler.Create)
			s.Get("/", saleHandler.List)
			s.Get("/{id}", saleHandler.Get)
			s.Get("/{id}/receipt", saleHandler.Receipt)
		})

		v.Route("/reports", func(rep chi.Router) {
			rep.Use(authMiddleware.RequireAuth)
			rep.Use(authMiddleware.RequireRole(auth.RoleAdmin))
			rep.Get("/sales", reportHandler.Sales)
			rep.Get("/top-products", reportHandler.TopProducts)
			rep.Get("/cashier-performance", reportHandler.CashierPerformance)
			rep.Get("/export-sales", reportHandler.ExportSales)
		})
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-shutdownCtx.Done()
		health.SetReady(false)
		grace := envDurationMillis("SHUTDOWN_GRACE_MS", 10000)
		ctx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
	logger.Info().Msg("server stopped")
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type readinessChecker struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func (c readinessChecker) PingDB(ctx context.Context, timeout time.Duration) error {
	if c.db == nil {
		return errors.New("db not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.db.Ping(ctx)
}

func (c readinessChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	if c.redis == nil {
		return errors.New("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.redis.Ping(ctx).Err()
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}
