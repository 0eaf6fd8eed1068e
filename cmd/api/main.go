package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/toko-affiliate/internal/affiliate"
	"github.com/noah-isme/toko-affiliate/internal/app"
	"github.com/noah-isme/toko-affiliate/internal/attribution"
	"github.com/noah-isme/toko-affiliate/internal/audit"
	"github.com/noah-isme/toko-affiliate/internal/auth"
	"github.com/noah-isme/toko-affiliate/internal/cache"
	"github.com/noah-isme/toko-affiliate/internal/catalog"
	"github.com/noah-isme/toko-affiliate/internal/common"
	"github.com/noah-isme/toko-affiliate/internal/config"
	"github.com/noah-isme/toko-affiliate/internal/events"
	"github.com/noah-isme/toko-affiliate/internal/health"
	"github.com/noah-isme/toko-affiliate/internal/lock"
	"github.com/noah-isme/toko-affiliate/internal/notify"
	"github.com/noah-isme/toko-affiliate/internal/obs"
	"github.com/noah-isme/toko-affiliate/internal/priceoverride"
	"github.com/noah-isme/toko-affiliate/internal/pricing"
	"github.com/noah-isme/toko-affiliate/internal/ratelimit"
	"github.com/noah-isme/toko-affiliate/internal/resilience"
	"github.com/noah-isme/toko-affiliate/internal/security"
	"github.com/noah-isme/toko-affiliate/internal/session"
	"github.com/noah-isme/toko-affiliate/internal/settlement"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(obs.LogConfig{
		Format:  envOrDefault("OBS_LOG_FORMAT", "json"),
		Level:   envOrDefault("OBS_LOG_LEVEL", "info"),
		Service: "toko-affiliate",
	}).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "toko_affiliate")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)
	resilience.MustRegisterMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "toko-affiliate",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0),
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

	deps, err := app.New(context.Background(), cfg, app.Options{
		ApplicationName: "toko-affiliate",
		Metrics:         metricsEnabled,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise dependencies")
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Error().Err(err).Msg("close dependencies")
		}
	}()

	var mailer common.EmailSender = common.NopEmailSender{}
	if cfg.Notify.EmailEnabled {
		mailer = notify.LogEmailSender{Logger: logger.With().Str("component", "mail").Logger(), From: cfg.Notify.From}
	}

	calc := pricing.NewCalculator(cfg.Affiliate.MaxProfit, cfg.Currency.MinorUnits)

	catalogStore := &catalog.PGStore{DB: deps.DB}
	catalogHandler := &catalog.Handler{Svc: &catalog.Service{Store: catalogStore, Logger: logger}}

	newToken, err := affiliate.NewTokenGenerator(cfg.Affiliate.TokenLength)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise token generator")
	}
	linkStore := &affiliate.PGStore{DB: deps.DB}
	linkService := &affiliate.Service{
		Links:    linkStore,
		Catalog:  catalogStore,
		Calc:     calc,
		NewToken: newToken,
		Attempts: cfg.Affiliate.TokenAttempts,
		BaseURL:  cfg.StorefrontBaseURL,
		Logger:   logger,
	}
	linkHandler := &affiliate.Handler{Svc: linkService, Validate: deps.Validator}

	sessions := &session.Manager{
		Store:   &session.RedisStore{Client: deps.Redis, TTL: cfg.Session.TTL},
		Links:   linkStore,
		Catalog: catalogStore,
		Calc:    calc,
		Logger:  logger,
	}
	sessionMW := session.Middleware{
		Manager:    sessions,
		CookieName: cfg.Session.CookieName,
		TTL:        cfg.Session.TTL,
		Domain:     cfg.Session.CookieDomain,
		Secure:     cfg.Session.CookieSecure,
		SameSite:   cfg.Session.CookieSameSite,
		Logger:     logger,
	}
	sessionHandler := session.Handler{}

	priceHandler := &priceoverride.Handler{
		Gateway: priceoverride.Gateway{MinorUnits: cfg.Currency.MinorUnits, TaxRateBps: cfg.Currency.TaxRateBps},
		Catalog: catalogStore,
	}

	attributions := &attribution.PGRepository{DB: deps.DB}
	attributionHandler := &attribution.Handler{
		Attributor: &attribution.Attributor{Repo: attributions, Logger: logger},
		Sessions:   sessions,
	}

	bus := &events.Bus{
		Store: &events.PGStore{DB: deps.DB},
		Notifiers: []events.Notifier{notify.Guarded{
			Next: notify.EmailNotifier{
				Mail:         mailer,
				Enabled:      cfg.Notify.EmailEnabled,
				From:         cfg.Notify.From,
				TopicToggles: topicToggles(cfg.Notify.Topics),
			},
			Retry: resilience.Retry{
				Breaker:     resilience.NewBreaker("email", 5, 0.5, 30*time.Second).WithLogger(logger),
				MaxAttempts: envInt("NOTIFY_EMAIL_MAX_ATTEMPTS", 3),
				BaseBackoff: envDurationMillis("NOTIFY_EMAIL_BACKOFF_MS", 200),
				Jitter:      0.2,
			},
		}},
	}
	earningsCache := cache.NewJSON(deps.Redis, cfg.EarningsCacheTTL)
	settlementStore := &settlement.PGStore{DB: deps.DB}
	settlementHandler := &settlement.Handler{
		Reporter: &settlement.Reporter{
			Attributions:  attributions,
			Store:         settlementStore,
			Resellers:     &settlement.PGDirectory{DB: deps.DB},
			Locker:        lock.Locker{R: deps.Redis, Prefix: "affiliate:settle:"},
			LockTTL:       cfg.SettlementLock,
			Bus:           bus,
			Cache:         earningsCache,
			OnZeroEarning: cfg.Notify.OnZeroEarning,
			AdminEmail:    cfg.Notify.AdminEmail,
			Currency:      cfg.Currency.Code,
			MinorUnits:    cfg.Currency.MinorUnits,
			Logger:        logger,
		},
		Earnings: &settlement.Earnings{
			Store:  settlementStore,
			Cache:  earningsCache,
			Calc:   calc,
			Logger: logger,
		},
		MinorUnits: cfg.Currency.MinorUnits,
	}

	verifier, err := auth.NewVerifier(auth.Config{
		Secret:   cfg.JWTSecret,
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise token verifier")
	}
	authMW := auth.Middleware{Verifier: verifier}

	linkLimit := ratelimit.Handler{
		Limiter: ratelimit.Limiter{Client: deps.Redis, Prefix: "affiliate:rl:"},
		Config: ratelimit.Config{
			Key:    ratelimit.PrincipalKey("links"),
			Window: time.Minute,
			Max:    cfg.Limits.LinkPerMinute,
		},
		OnError: func(err error) { logger.Warn().Err(err).Msg("link rate limiter unavailable") },
	}
	storefrontLimit, err := ratelimit.NewIPMiddleware(deps.LimiterStore, cfg.Limits.Storefront)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise storefront rate limit")
	}

	auditStore := &audit.PGStore{DB: deps.DB}
	auditRec := audit.HTTPRecorder{
		Service: &audit.Service{
			Store:        auditStore,
			Enabled:      envBool("AUDIT_ENABLED", true),
			SamplingRate: envFloat("AUDIT_SAMPLING_RATE", 1.0),
		},
		OnError: func(err error) { logger.Error().Err(err).Msg("record audit entry") },
	}
	auditHandler := audit.Handler{Store: auditStore}

	idem := common.Idem{R: deps.Redis, TTL: cfg.IdempotencyTTL, Prefix: "affiliate:idem"}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", "")), nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if tracingEnabled {
		r.Use(obs.Tracing("toko-affiliate"))
	}
	if httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger, SkipPaths: []string{"/health/live", "/health/ready", "/metrics"}}.Middleware)
	r.Use(security.Headers{
		Enable:     envBool("SECURE_HEADERS_ENABLE", true),
		EnableHSTS: envBool("SECURE_HSTS_ENABLE", cfg.AppEnv == "production"),
		HSTSMaxAge: envInt("SECURE_HSTS_MAX_AGE", 31536000),
	}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", session.HeaderSessionID},
		ExposedHeaders:   []string{"X-Total-Count", "X-Total-Commission", session.NoticeHeader, "RateLimit-Remaining", "RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(security.BodyLimit{Max: cfg.HTTPBodyLimitBytes}.Middleware)

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if envBool("OBS_ENABLE_PPROF", false) {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}

	healthHandler := health.Handler{
		Checker:      health.Probes{DB: deps.DB, Redis: deps.Redis},
		DBTimeout:    envDurationMillis("HEALTH_READY_DB_TIMEOUT_MS", 500),
		RedisTimeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Route("/reseller", func(rs chi.Router) {
			rs.Use(authMW.RequireRole(common.RoleReseller))
			rs.Use(security.NoStore)
			rs.With(linkLimit.Middleware, idem.Middleware).Post("/links", linkHandler.Create)
			rs.Get("/links", linkHandler.List)
			rs.Post("/links/preview", linkHandler.Preview)
			rs.Get("/earnings", settlementHandler.ResellerEarnings)
		})

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(authMW.RequireRole(common.RoleAdmin))
			admin.Use(security.NoStore)
			admin.Get("/earnings", settlementHandler.AdminEarnings)
			admin.With(auditRec.Middleware(audit.HTTPConfig{
				Action:       "earnings.export",
				ResourceType: "earnings",
			})).Get("/earnings.csv", settlementHandler.AdminEarningsCSV)
			admin.With(auditRec.Middleware(audit.HTTPConfig{
				Action:          "catalog.admin_discount.set",
				ResourceType:    "product",
				ResourceIDParam: "productId",
			})).Put("/products/{productId}/admin-discount", catalogHandler.SetAdminDiscount)
			admin.Get("/audit-logs", auditHandler.List)
		})

		v.Route("/storefront", func(sf chi.Router) {
			sf.Use(storefrontLimit)
			sf.Use(security.CSRF{
				CookieName:     cfg.Session.CookieName,
				AllowedOrigins: append([]string{cfg.StorefrontBaseURL}, cfg.CORSAllowedOrigins...),
			}.Middleware)
			sf.Use(sessionMW.Handler)
			sf.Get("/session", sessionHandler.Get)
			sf.Delete("/session/affiliate", sessionHandler.ClearAffiliate)
			sf.Post("/prices", priceHandler.Prices)
			sf.Post("/cart/totals", priceHandler.CartTotals)
			sf.Post("/cart/line-removed", sessionHandler.LineRemoved)
			sf.Post("/cart/emptied", sessionHandler.CartEmptied)
		})

		v.Route("/hooks/orders/{orderId}", func(h chi.Router) {
			h.Use(auth.RequireHooksSecret(cfg.HooksSecret))
			h.Use(idem.Middleware)
			h.Post("/lines", attributionHandler.LinesCreated)
			h.Post("/submitted", attributionHandler.Submitted)
			h.Post("/completed", settlementHandler.Completed)
		})
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			logger.Error().Err(err).Msg("server exited unexpectedly")
		}
	case <-ctx.Done():
		health.SetReady(false)
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), envDurationMillis("SHUTDOWN_TIMEOUT_MS", 15000))
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown")
		}
	}
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func topicToggles(enabled []string) map[string]bool {
	if len(enabled) == 0 {
		return nil
	}
	toggles := make(map[string]bool, len(events.DefaultTopics()))
	for _, topic := range events.DefaultTopics() {
		toggles[topic] = false
	}
	for _, topic := range enabled {
		toggles[topic] = true
	}
	return toggles
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

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
