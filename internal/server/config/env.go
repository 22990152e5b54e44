package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const envPrefix = "WEBSHELF_"

type lookupFunc func(string) (string, bool)

// parseEnv overlays WEBSHELF_* variables. Durations take Go duration
// strings or plain integers, which count seconds.
func parseEnv(c *Config, lookup lookupFunc) error {
	get := func(name string) (string, bool) {
		return lookup(envPrefix + name)
	}

	strs := map[string]*string{
		"ENV":          &c.Env,
		"HTTP_ADDR":    &c.HTTPAddr,
		"GRPC_ADDR":    &c.GRPCAddr,
		"DATABASE_URL": &c.DatabaseDSN,
		"REDIS_URL":    &c.RedisURL,
		"JWT_SECRET":   &c.SecretKey,
		"LOG_LEVEL":    &c.LogLevel,
		"LOG_FORMAT":   &c.LogFormat,
	}
	for name, dst := range strs {
		if v, ok := get(name); ok {
			*dst = v
		}
	}

	lists := map[string]*[]string{
		"PUBLIC_PATHS": &c.PublicPaths,
		"CORS_ORIGINS": &c.CORSOrigins,
	}
	for name, dst := range lists {
		if v, ok := get(name); ok {
			*dst = splitList(v)
		}
	}

	durations := map[string]*time.Duration{
		"TOKEN_TTL":        &c.TokenTTL,
		"LOCK_TTL":         &c.LockTTL,
		"LOCK_RETRY_DELAY": &c.LockRetryDelay,
	}
	for name, dst := range durations {
		v, ok := get(name)
		if !ok {
			continue
		}
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, name, err)
		}
		*dst = d
	}

	if v, ok := get("LOCK_MAX_ATTEMPTS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sLOCK_MAX_ATTEMPTS: %w", envPrefix, err)
		}
		c.LockMaxAttempts = n
	}
	return nil
}

func parseDuration(v string) (time.Duration, error) {
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(v)
}

func splitList(v string) []string {
	out := []string{}
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// LoadEnv overlays the WEBSHELF_* environment onto c. Tools that share the
// server's settings but not its flags start from LoadDefaults and this.
func LoadEnv(c *Config) error {
	return parseEnv(c, os.LookupEnv)
}
