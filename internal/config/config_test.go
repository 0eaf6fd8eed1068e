package config

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func baseEnv() map[string]string {
	return map[string]string{
		"DATABASE_URL":             "postgres://localhost/toko",
		"REDIS_URL":                "redis://localhost:6379/0",
		"JWT_SECRET":               "secret",
		"AFFILIATE_MAX_PROFIT":     "",
		"AFFILIATE_TOKEN_ATTEMPTS": "",
		"AFFILIATE_TOKEN_LENGTH":   "",
		"SESSION_TTL":              "",
		"COOKIE_SAMESITE":          "",
		"CURRENCY_MINOR_UNITS":     "",
		"STOREFRONT_BASE_URL":      "",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(baseEnv())
	require.NoError(t, err)
	require.Equal(t, "800", cfg.Affiliate.MaxProfit.String())
	require.Equal(t, 3, cfg.Affiliate.TokenAttempts)
	require.Equal(t, 22, cfg.Affiliate.TokenLength)
	require.Equal(t, 48*time.Hour, cfg.Session.TTL)
	require.Equal(t, http.SameSiteLaxMode, cfg.Session.CookieSameSite)
	require.Equal(t, int32(2), cfg.Currency.MinorUnits)
	require.Equal(t, "http://localhost:3000", cfg.StorefrontBaseURL)
}

func TestLoadOverrides(t *testing.T) {
	env := baseEnv()
	env["AFFILIATE_MAX_PROFIT"] = "1200.50"
	env["SESSION_TTL"] = "2h"
	env["COOKIE_SAMESITE"] = "strict"
	env["STOREFRONT_BASE_URL"] = "https://shop.example.com/"
	cfg, err := LoadForTests(env)
	require.NoError(t, err)
	require.Equal(t, "1200.5", cfg.Affiliate.MaxProfit.String())
	require.Equal(t, 2*time.Hour, cfg.Session.TTL)
	require.Equal(t, http.SameSiteStrictMode, cfg.Session.CookieSameSite)
	require.Equal(t, "https://shop.example.com", cfg.StorefrontBaseURL)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	env := baseEnv()
	env["AFFILIATE_MAX_PROFIT"] = "-1"
	_, err := LoadForTests(env)
	require.Error(t, err)

	env = baseEnv()
	env["AFFILIATE_TOKEN_LENGTH"] = "8"
	_, err = LoadForTests(env)
	require.Error(t, err)

	env = baseEnv()
	env["JWT_SECRET"] = ""
	_, err = LoadForTests(env)
	require.Error(t, err)
}

func TestLoadMinorUnits(t *testing.T) {
	env := baseEnv()
	env["CURRENCY_MINOR_UNITS"] = "0"
	cfg, err := LoadForTests(env)
	require.NoError(t, err)
	require.Equal(t, int32(0), cfg.Currency.MinorUnits)

	env["CURRENCY_MINOR_UNITS"] = "3"
	_, err = LoadForTests(env)
	require.Error(t, err)
}

func TestLoadNotifyTopics(t *testing.T) {
	env := baseEnv()
	env["NOTIFY_EMAIL_TOPICS"] = " affiliate.sale.recorded , "
	cfg, err := LoadForTests(env)
	require.NoError(t, err)
	require.Equal(t, []string{"affiliate.sale.recorded"}, cfg.Notify.Topics)
}
