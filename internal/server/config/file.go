package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/webshelf/internal/flagx"
	"github.com/dmitrijs2005/webshelf/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig mirrors Config for JSON and YAML files. Durations accept
// either "90s" style strings or integer nanoseconds. Keys that are absent
// leave the current value untouched.
type FileConfig struct {
	Env         string         `json:"env" yaml:"env"`
	HTTPAddr    string         `json:"http_addr" yaml:"http_addr"`
	GRPCAddr    *string        `json:"grpc_addr" yaml:"grpc_addr"`
	DatabaseDSN string         `json:"database_url" yaml:"database_url"`
	RedisURL    *string        `json:"redis_url" yaml:"redis_url"`
	SecretKey   string         `json:"jwt_secret" yaml:"jwt_secret"`
	TokenTTL    timex.Duration `json:"token_ttl" yaml:"token_ttl"`
	LogLevel    string         `json:"log_level" yaml:"log_level"`
	LogFormat   string         `json:"log_format" yaml:"log_format"`
	PublicPaths []string       `json:"public_paths" yaml:"public_paths"`
	CORSOrigins []string       `json:"cors_origins" yaml:"cors_origins"`
	Lock        struct {
		TTL         timex.Duration `json:"ttl" yaml:"ttl"`
		MaxAttempts int            `json:"max_attempts" yaml:"max_attempts"`
		RetryDelay  timex.Duration `json:"retry_delay" yaml:"retry_delay"`
	} `json:"lock" yaml:"lock"`
}

// parseFile overlays the file named by -c/-config, if any. The format is
// chosen by extension: .yaml and .yml are YAML, anything else JSON.
func parseFile(config *Config) {
	path := flagx.ConfigFileFlag(os.Args[1:])
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	fc := &FileConfig{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, fc)
	default:
		err = json.Unmarshal(data, fc)
	}
	if err != nil {
		panic(err)
	}

	fc.apply(config)
}

func (fc *FileConfig) apply(c *Config) {
	setString(&c.Env, fc.Env)
	setString(&c.HTTPAddr, fc.HTTPAddr)
	if fc.GRPCAddr != nil {
		c.GRPCAddr = *fc.GRPCAddr
	}
	setString(&c.DatabaseDSN, fc.DatabaseDSN)
	if fc.RedisURL != nil {
		c.RedisURL = *fc.RedisURL
	}
	setString(&c.SecretKey, fc.SecretKey)
	if fc.TokenTTL.Duration > 0 {
		c.TokenTTL = fc.TokenTTL.Duration
	}
	setString(&c.LogLevel, fc.LogLevel)
	setString(&c.LogFormat, fc.LogFormat)
	if fc.PublicPaths != nil {
		c.PublicPaths = fc.PublicPaths
	}
	if fc.CORSOrigins != nil {
		c.CORSOrigins = fc.CORSOrigins
	}
	if fc.Lock.TTL.Duration > 0 {
		c.LockTTL = fc.Lock.TTL.Duration
	}
	if fc.Lock.MaxAttempts > 0 {
		c.LockMaxAttempts = fc.Lock.MaxAttempts
	}
	if fc.Lock.RetryDelay.Duration > 0 {
		c.LockRetryDelay = fc.Lock.RetryDelay.Duration
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
