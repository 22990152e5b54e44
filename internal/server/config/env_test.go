package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupFrom(m map[string]string) lookupFunc {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestParseEnv(t *testing.T) {
	c := &Config{}
	c.LoadDefaults()

	err := parseEnv(c, lookupFrom(map[string]string{
		"WEBSHELF_HTTP_ADDR":         ":9000",
		"WEBSHELF_DATABASE_URL":      "memory://",
		"WEBSHELF_REDIS_URL":         "redis://localhost:6379/1",
		"WEBSHELF_JWT_SECRET":        "env-secret",
		"WEBSHELF_TOKEN_TTL":         "900",
		"WEBSHELF_LOCK_TTL":          "3s",
		"WEBSHELF_LOCK_MAX_ATTEMPTS": "5",
		"WEBSHELF_PUBLIC_PATHS":      "/api/public, /api/health ,,",
		"WEBSHELF_GRPC_ADDR":         "",
		"JWT_SECRET":                 "ignored without prefix",
	}))
	require.NoError(t, err)

	assert.Equal(t, ":9000", c.HTTPAddr)
	assert.Equal(t, "memory://", c.DatabaseDSN)
	assert.Equal(t, "redis://localhost:6379/1", c.RedisURL)
	assert.Equal(t, "env-secret", c.SecretKey)
	assert.Equal(t, 15*time.Minute, c.TokenTTL)
	assert.Equal(t, 3*time.Second, c.LockTTL)
	assert.Equal(t, 5, c.LockMaxAttempts)
	assert.Equal(t, []string{"/api/public", "/api/health"}, c.PublicPaths)
	assert.Empty(t, c.GRPCAddr)
	assert.Equal(t, 100*time.Millisecond, c.LockRetryDelay)
}

func TestParseEnv_Errors(t *testing.T) {
	c := &Config{}
	assert.ErrorContains(t, parseEnv(c, lookupFrom(map[string]string{"WEBSHELF_TOKEN_TTL": "forever"})), "WEBSHELF_TOKEN_TTL")
	assert.ErrorContains(t, parseEnv(c, lookupFrom(map[string]string{"WEBSHELF_LOCK_MAX_ATTEMPTS": "many"})), "WEBSHELF_LOCK_MAX_ATTEMPTS")
}
