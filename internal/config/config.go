// Package config loads the chat client configuration from a .env file,
// the environment and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// Environment variables read by Load.
const (
	EnvEndpoint     = "CHAT_ENDPOINT"
	EnvToken        = "CHAT_TOKEN"
	EnvJWTSecret    = "CHAT_JWT_SECRET"
	EnvLogLevel     = "CHAT_LOG_LEVEL"
	EnvPingInterval = "CHAT_PING_INTERVAL"
	EnvQueueSize    = "CHAT_QUEUE_SIZE"
	EnvMetricsAddr  = "CHAT_METRICS_ADDR"
)

const (
	defaultEndpoint     = "ws://localhost:8080/ws"
	defaultPingInterval = 15 * time.Second
	defaultQueueSize    = 64
)

// ErrInvalidEndpoint is returned when the endpoint is not a ws:// or wss:// URL.
var ErrInvalidEndpoint = errors.New("endpoint must be a ws:// or wss:// URL")

// Config is the client configuration.
type Config struct {
	Endpoint     string
	Token        string
	JWTSecret    string
	LogLevel     slog.Level
	PingInterval time.Duration
	QueueSize    int
	// MetricsAddr is the listen address of the /metrics endpoint. Empty
	// disables it.
	MetricsAddr string
}

// Load reads .env from the working directory, if present, and parses args
// over the resulting environment. It returns pflag.ErrHelp for --help.
func Load(args []string) (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}
	return Parse(args, os.Getenv)
}

// Parse builds a Config from args, using getenv for defaults.
func Parse(args []string, getenv func(string) string) (*Config, error) {
	env := func(key, fallback string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return fallback
	}

	pingDefault := defaultPingInterval
	if v := getenv(EnvPingInterval); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPingInterval, err)
		}
		pingDefault = d
	}
	queueDefault := defaultQueueSize
	if v := getenv(EnvQueueSize); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvQueueSize, err)
		}
		queueDefault = n
	}

	cfg := &Config{}
	var level string

	fs := pflag.NewFlagSet("chat-client", pflag.ContinueOnError)
	fs.StringVar(&cfg.Endpoint, "endpoint", env(EnvEndpoint, defaultEndpoint), "chat server WebSocket URL")
	fs.StringVar(&cfg.Token, "token", env(EnvToken, ""), "session bearer token")
	fs.StringVar(&cfg.JWTSecret, "jwt-secret", env(EnvJWTSecret, ""), "HS256 secret to verify the token with (optional)")
	fs.StringVar(&level, "log-level", env(EnvLogLevel, "info"), "log level (debug, info, warn, error)")
	fs.DurationVar(&cfg.PingInterval, "ping-interval", pingDefault, "keep-alive ping interval")
	fs.IntVar(&cfg.QueueSize, "queue-size", queueDefault, "outbound frames buffered while connecting")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", env(EnvMetricsAddr, ""), "serve Prometheus metrics on this address")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Endpoint)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidEndpoint, c.Endpoint)
	}
	if c.PingInterval <= 0 {
		return fmt.Errorf("ping interval must be positive, got %s", c.PingInterval)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("queue size must be positive, got %d", c.QueueSize)
	}
	return nil
}
