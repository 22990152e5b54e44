package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/webshelf/internal/flagx"
)

// parseFlags overlays command-line flags:
//
//	-a string   HTTP listen address (e.g. "0.0.0.0:3000")
//	-g string   gRPC listen address, empty disables
//	-d string   database DSN, or memory://
//	-r string   Redis URL, empty disables locking
//	-s string   JWT HMAC secret
//	-t int      token lifetime, seconds
//	-l string   log level (debug, info, warn, error)
//	-e string   environment name
//
// os.Args is filtered through flagx.FilterArgs first, so flags owned by
// other layers (such as -c) do not cause parse errors.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-g", "-d", "-r", "-s", "-t", "-l", "-e"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "HTTP listen address")
	fs.StringVar(&config.GRPCAddr, "g", config.GRPCAddr, "gRPC listen address")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.RedisURL, "r", config.RedisURL, "Redis URL")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "JWT secret key")
	ttl := fs.Int("t", int(config.TokenTTL.Seconds()), "token lifetime (in seconds)")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.StringVar(&config.Env, "e", config.Env, "environment")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	// -t only overrides when given; its default is rounded to whole seconds.
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "t" {
			config.TokenTTL = time.Duration(*ttl) * time.Second
		}
	})
}
