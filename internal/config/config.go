package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	JWTSecret          string
	JWTIssuer          string
	JWTAudience        string
	CORSAllowedOrigins []string
	StorefrontBaseURL  string
	DBAutoMigrate      bool
	HTTPBodyLimitBytes int64
	HooksSecret        string

	Affiliate AffiliateConfig
	Session   SessionConfig
	Currency  CurrencyConfig
	Notify    NotifyConfig
	Limits    LimitsConfig

	IdempotencyTTL   time.Duration
	EarningsCacheTTL time.Duration
	SettlementLock   time.Duration
}

// AffiliateConfig bounds link generation.
type AffiliateConfig struct {
	MaxProfit     decimal.Decimal
	TokenAttempts int
	TokenLength   int
}

// SessionConfig controls the storefront session cookie and its backing store.
type SessionConfig struct {
	CookieName     string
	TTL            time.Duration
	CookieDomain   string
	CookieSecure   bool
	CookieSameSite http.SameSite
}

// CurrencyConfig describes the store currency.
type CurrencyConfig struct {
	Code       string
	MinorUnits int32
	TaxRateBps int
}

// NotifyConfig toggles settlement emails.
type NotifyConfig struct {
	EmailEnabled  bool
	From          string
	AdminEmail    string
	OnZeroEarning bool
	// Topics restricts emailed topics; empty means every topic.
	Topics []string
}

// LimitsConfig carries request rate limits.
type LimitsConfig struct {
	LinkPerMinute int
	Storefront    string
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	maxProfit, err := parseDecimal(k.String("AFFILIATE_MAX_PROFIT"), "800")
	if err != nil {
		return nil, fmt.Errorf("AFFILIATE_MAX_PROFIT: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		JWTSecret:          k.String("JWT_SECRET"),
		JWTIssuer:          strings.TrimSpace(k.String("JWT_ISSUER")),
		JWTAudience:        strings.TrimSpace(k.String("JWT_AUDIENCE")),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		StorefrontBaseURL:  strings.TrimRight(valueOrDefault(k.String("STOREFRONT_BASE_URL"), "http://localhost:3000"), "/"),
		DBAutoMigrate:      parseBool(k.String("DB_AUTO_MIGRATE")),
		HTTPBodyLimitBytes: int64(parseInt(k.String("HTTP_BODY_LIMIT_BYTES"), 1<<20)),
		HooksSecret:        k.String("HOOKS_SECRET"),
		Affiliate: AffiliateConfig{
			MaxProfit:     maxProfit,
			TokenAttempts: parseInt(k.String("AFFILIATE_TOKEN_ATTEMPTS"), 3),
			TokenLength:   parseInt(k.String("AFFILIATE_TOKEN_LENGTH"), 22),
		},
		Session: SessionConfig{
			CookieName:     valueOrDefault(k.String("SESSION_COOKIE_NAME"), "toko_session"),
			TTL:            parseDuration(k.String("SESSION_TTL"), "48h"),
			CookieDomain:   strings.TrimSpace(k.String("COOKIE_DOMAIN")),
			CookieSecure:   parseBool(k.String("COOKIE_SECURE")),
			CookieSameSite: parseSameSite(k.String("COOKIE_SAMESITE")),
		},
		Currency: CurrencyConfig{
			Code:       strings.ToUpper(valueOrDefault(k.String("CURRENCY_CODE"), "IDR")),
			MinorUnits: int32(parseInt(k.String("CURRENCY_MINOR_UNITS"), 2)),
			TaxRateBps: parseInt(k.String("PRICING_TAX_RATE_BPS"), 0),
		},
		Notify: NotifyConfig{
			EmailEnabled:  parseBool(k.String("NOTIFY_EMAIL_ENABLED")),
			From:          valueOrDefault(k.String("NOTIFY_EMAIL_FROM"), "no-reply@toko.local"),
			AdminEmail:    strings.TrimSpace(k.String("ADMIN_EMAIL")),
			OnZeroEarning: parseBool(k.String("NOTIFY_ON_ZERO_EARNING")),
			Topics:        splitAndTrim(k.String("NOTIFY_EMAIL_TOPICS")),
		},
		Limits: LimitsConfig{
			LinkPerMinute: parseInt(k.String("LINK_RATE_LIMIT_PER_MINUTE"), 30),
			Storefront:    valueOrDefault(k.String("STOREFRONT_RATE_LIMIT"), "300-M"),
		},
		IdempotencyTTL:   parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		EarningsCacheTTL: parseDuration(k.String("EARNINGS_CACHE_TTL"), "60s"),
		SettlementLock:   parseDuration(k.String("SETTLEMENT_LOCK_TTL"), "30s"),
	}

	if cfg.Session.CookieSameSite == http.SameSiteDefaultMode {
		cfg.Session.CookieSameSite = http.SameSiteLaxMode
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if !cfg.Affiliate.MaxProfit.IsPositive() {
		return nil, errors.New("AFFILIATE_MAX_PROFIT must be positive")
	}
	if cfg.Affiliate.TokenAttempts < 1 {
		return nil, errors.New("AFFILIATE_TOKEN_ATTEMPTS must be at least 1")
	}
	if cfg.Affiliate.TokenLength < 22 || cfg.Affiliate.TokenLength > 64 {
		return nil, errors.New("AFFILIATE_TOKEN_LENGTH must be between 22 and 64")
	}
	if cfg.Currency.MinorUnits < 0 || cfg.Currency.MinorUnits > 2 {
		return nil, errors.New("CURRENCY_MINOR_UNITS must be between 0 and 2")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func parseDecimal(value, fallback string) (decimal.Decimal, error) {
	return decimal.NewFromString(valueOrDefault(value, fallback))
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func parseSameSite(value string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	case "lax":
		return http.SameSiteLaxMode
	default:
		return http.SameSiteDefaultMode
	}
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
