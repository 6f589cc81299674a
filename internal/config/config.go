package config

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Config holds all application configuration
type Config struct {
	// Server
	Port string

	// Backend
	BackendBaseURL string
	BackendTimeout time.Duration

	// Form
	AlertTTL   time.Duration
	SessionTTL time.Duration

	// Security
	AllowedOrigins []string

	// Rate Limiting
	RateLimitAPI    rate.Limit
	RateLimitWS     rate.Limit
	RateLimitSubmit rate.Limit

	// Logging
	LogLevel string
}

// DefaultConfig returns configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Port:            "8080",
		BackendBaseURL:  "http://127.0.0.1:8000",
		BackendTimeout:  60 * time.Second,
		AlertTTL:        4 * time.Second,
		SessionTTL:      30 * time.Minute,
		AllowedOrigins:  localOrigins("8080"),
		RateLimitAPI:    10,
		RateLimitWS:     5,
		RateLimitSubmit: 1,
		LogLevel:        "info", // Options: debug, info, silent
	}
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	cfg := DefaultConfig()

	// Server
	if port := os.Getenv("PORT"); port != "" {
		cfg.Port = port
	}

	// Backend
	if base := os.Getenv("BACKEND_BASE_URL"); base != "" {
		cfg.BackendBaseURL = strings.TrimRight(strings.TrimSpace(base), "/")
	}

	if secs := os.Getenv("BACKEND_TIMEOUT_SECONDS"); secs != "" {
		if val, err := strconv.Atoi(secs); err == nil && val > 0 {
			cfg.BackendTimeout = time.Duration(val) * time.Second
		}
	}

	// Form
	if ms := os.Getenv("ALERT_TTL_MS"); ms != "" {
		if val, err := strconv.Atoi(ms); err == nil && val > 0 {
			cfg.AlertTTL = time.Duration(val) * time.Millisecond
		}
	}

	if mins := os.Getenv("SESSION_TTL_MINUTES"); mins != "" {
		if val, err := strconv.Atoi(mins); err == nil && val > 0 {
			cfg.SessionTTL = time.Duration(val) * time.Minute
		}
	}

	// Security
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = parseOrigins(origins)
	} else {
		cfg.AllowedOrigins = localOrigins(cfg.Port)
	}

	// Rate Limiting
	if rl := os.Getenv("RATE_LIMIT_API"); rl != "" {
		if val, err := strconv.Atoi(rl); err == nil && val > 0 {
			cfg.RateLimitAPI = rate.Limit(val)
		}
	}

	if rl := os.Getenv("RATE_LIMIT_WS"); rl != "" {
		if val, err := strconv.Atoi(rl); err == nil && val > 0 {
			cfg.RateLimitWS = rate.Limit(val)
		}
	}

	if rl := os.Getenv("RATE_LIMIT_SUBMIT"); rl != "" {
		if val, err := strconv.Atoi(rl); err == nil && val > 0 {
			cfg.RateLimitSubmit = rate.Limit(val)
		}
	}

	// Logging
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = strings.ToLower(level)
	}

	return cfg
}

// Validate checks that the backend address is an absolute http(s) URL
func (c *Config) Validate() error {
	if c.BackendBaseURL == "" {
		return errors.New("config: BACKEND_BASE_URL is empty")
	}
	u, err := url.Parse(c.BackendBaseURL)
	if err != nil {
		return fmt.Errorf("config: invalid BACKEND_BASE_URL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("config: BACKEND_BASE_URL must be an absolute http(s) URL, got %q", c.BackendBaseURL)
	}
	return nil
}

// Silent reports whether logging is switched off
func (c *Config) Silent() bool {
	return c.LogLevel == "silent" || c.LogLevel == "off"
}

// Debugf logs only when LOG_LEVEL=debug
func Debugf(format string, args ...any) {
	if AppConfig != nil && AppConfig.LogLevel == "debug" {
		log.Printf("[debug] "+format, args...)
	}
}

// localOrigins are the addresses a browser uses for a server on this machine
func localOrigins(port string) []string {
	return []string{
		"http://localhost:" + port,
		"http://127.0.0.1:" + port,
	}
}

// parseOrigins parses comma-separated origins
func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// Global configuration instance
var AppConfig = LoadFromEnv()
