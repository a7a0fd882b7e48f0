package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Default configuration values
const (
	DefaultPort            = "3000"
	DefaultSendBuffer      = 256
	DefaultMaxMessageSize  = 64 * 1024
	DefaultChatInterval    = 500 * time.Millisecond
	DefaultShutdownTimeout = 10 * time.Second
)

// Config holds the coordinator's runtime settings
type Config struct {
	// Addr is the listen address, e.g. ":3000"
	Addr string

	// AllowedOrigins restricts websocket upgrades. Empty allows any origin.
	AllowedOrigins []string

	// Per-connection limits
	SendBuffer     int
	MaxMessageSize int64

	// ChatInterval is the minimum gap between two chat messages of one connection
	ChatInterval time.Duration

	ShutdownTimeout time.Duration
}

// Options for loading config with CLI flag overrides. Zero values fall
// through to the environment.
type Options struct {
	Addr            string
	AllowedOrigins  []string
	SendBuffer      int
	MaxMessageSize  int64
	ChatInterval    time.Duration
	ShutdownTimeout time.Duration
}

// LoadDotEnv reads .env files into the process environment. Variables that
// are already set win. A missing file is not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	// Listen address: flag > ADDR > PORT > default
	addr := opts.Addr
	if addr == "" {
		addr = os.Getenv("ADDR")
	}
	if addr == "" {
		port := os.Getenv("PORT")
		if port == "" {
			port = DefaultPort
		}
		addr = ":" + port
	}

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = splitList(os.Getenv("ALLOWED_ORIGINS"))
	}

	sendBuffer := opts.SendBuffer
	if sendBuffer == 0 {
		n, err := envInt("SEND_BUFFER", DefaultSendBuffer)
		if err != nil {
			return nil, err
		}
		sendBuffer = n
	}
	if sendBuffer <= 0 {
		return nil, fmt.Errorf("send buffer must be positive, got %d", sendBuffer)
	}

	maxSize := opts.MaxMessageSize
	if maxSize == 0 {
		n, err := envInt("MAX_MESSAGE_SIZE", DefaultMaxMessageSize)
		if err != nil {
			return nil, err
		}
		maxSize = int64(n)
	}
	if maxSize <= 0 {
		return nil, fmt.Errorf("max message size must be positive, got %d", maxSize)
	}

	chatInterval := opts.ChatInterval
	if chatInterval == 0 {
		d, err := envDuration("CHAT_INTERVAL", DefaultChatInterval)
		if err != nil {
			return nil, err
		}
		chatInterval = d
	}
	if chatInterval < 0 {
		return nil, fmt.Errorf("chat interval must not be negative, got %s", chatInterval)
	}

	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout == 0 {
		d, err := envDuration("SHUTDOWN_TIMEOUT", DefaultShutdownTimeout)
		if err != nil {
			return nil, err
		}
		shutdownTimeout = d
	}
	if shutdownTimeout <= 0 {
		return nil, fmt.Errorf("shutdown timeout must be positive, got %s", shutdownTimeout)
	}

	return &Config{
		Addr:            addr,
		AllowedOrigins:  origins,
		SendBuffer:      sendBuffer,
		MaxMessageSize:  maxSize,
		ChatInterval:    chatInterval,
		ShutdownTimeout: shutdownTimeout,
	}, nil
}

// OriginAllowed reports whether a websocket upgrade from origin is accepted.
// Requests without an Origin header (non-browser clients) are always accepted.
func (c *Config) OriginAllowed(origin string) bool {
	if len(c.AllowedOrigins) == 0 || origin == "" {
		return true
	}
	for _, o := range c.AllowedOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

func envInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
