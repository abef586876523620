// Package config provides daemon configuration loading from environment
// variables and .env files. It uses viper for flexible configuration
// management with sensible defaults.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all daemon configuration. Priority: environment
// variables > .env file > defaults.
type Config struct {
	AppEnv          string // Application environment (dev, staging, prod)
	HTTPAddr        string // HTTP server bind address (e.g., ":8080")
	MetricsAddr     string // Metrics server bind address
	Namespace       string // Namespace served by this daemon
	StoreType       string // Snapshot store backend (postgres or memory)
	DatabaseDSN     string // PostgreSQL connection string
	AdminAPIKey       string   // Legacy plaintext admin key for control-plane operations
	AdminAPIKeyHashes []string // bcrypt hashes of issued admin keys (see `konditional keys generate`)
	AuthTokenPrefix   string   // Prefix for generated API tokens
	RateLimitPerIP  int    // Per-IP rate limit for the public read endpoints
	DefaultSalt     string // Bucketing salt applied to flags without one
	HistoryCapacity int    // Registry rollback history bound
}

const (
	saltByteSize        = 16
	defaultAdminAPIKey  = "admin-123"
	defaultSaltFallback = "default-random-salt"
)

// Load reads configuration from environment variables and a .env file
// if present. Environment variables take precedence.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env") // optional; silently ignored if absent
	_ = v.ReadInConfig()
	v.AutomaticEnv()

	setDefaults(v)

	appEnv := strings.TrimSpace(v.GetString("APP_ENV"))
	salt, saltConfigured, err := getDefaultSalt(v, appEnv)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		AppEnv:          appEnv,
		HTTPAddr:        strings.TrimSpace(v.GetString("APP_HTTP_ADDR")),
		MetricsAddr:     strings.TrimSpace(v.GetString("METRICS_ADDR")),
		Namespace:       strings.TrimSpace(v.GetString("NAMESPACE")),
		StoreType:       strings.ToLower(strings.TrimSpace(v.GetString("STORE_TYPE"))),
		DatabaseDSN:     strings.TrimSpace(v.GetString("DB_DSN")),
		AdminAPIKey:       strings.TrimSpace(v.GetString("ADMIN_API_KEY")),
		AdminAPIKeyHashes: splitList(v.GetString("ADMIN_API_KEY_HASHES")),
		AuthTokenPrefix:   strings.TrimSpace(v.GetString("AUTH_TOKEN_PREFIX")),
		RateLimitPerIP:  v.GetInt("RATE_LIMIT_PER_IP"),
		DefaultSalt:     salt,
		HistoryCapacity: v.GetInt("HISTORY_CAPACITY"),
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	warnOnUnsafeDefaults(cfg, saltConfigured)
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "dev")
	v.SetDefault("APP_HTTP_ADDR", ":8080")
	v.SetDefault("METRICS_ADDR", ":9090")
	v.SetDefault("NAMESPACE", "app")
	v.SetDefault("STORE_TYPE", "memory")
	v.SetDefault("DB_DSN", "")
	v.SetDefault("ADMIN_API_KEY", defaultAdminAPIKey) // change in production
	v.SetDefault("ADMIN_API_KEY_HASHES", "")
	v.SetDefault("AUTH_TOKEN_PREFIX", "kdl_")
	v.SetDefault("RATE_LIMIT_PER_IP", 100)
	v.SetDefault("HISTORY_CAPACITY", 32)
}

// getDefaultSalt retrieves ROLLOUT_SALT or generates a random one for
// non-prod environments. A random salt changes user bucketing on every
// restart, so prod requires an explicit value.
func getDefaultSalt(v *viper.Viper, appEnv string) (string, bool, error) {
	salt := strings.TrimSpace(v.GetString("ROLLOUT_SALT"))
	if salt != "" {
		return salt, true, nil
	}
	if strings.EqualFold(appEnv, "prod") {
		return "", false, fmt.Errorf("ROLLOUT_SALT must be set when APP_ENV=prod")
	}
	salt = generateRandomSalt()
	log.Printf("[config] WARNING: ROLLOUT_SALT not configured; generated random salt. Bucket assignments will change on restart.")
	return salt, false, nil
}

func generateRandomSalt() string {
	b := make([]byte, saltByteSize)
	if _, err := rand.Read(b); err != nil {
		log.Printf("[config] ERROR: failed to generate random salt: %v. Using fallback.", err)
		return defaultSaltFallback
	}
	return hex.EncodeToString(b)
}

// splitList parses a comma-separated value, dropping empty entries.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func validate(cfg *Config) error {
	if cfg.AppEnv == "" {
		return fmt.Errorf("APP_ENV must not be empty")
	}
	if cfg.HTTPAddr == "" {
		return fmt.Errorf("APP_HTTP_ADDR must not be empty")
	}
	if cfg.MetricsAddr == "" {
		return fmt.Errorf("METRICS_ADDR must not be empty")
	}
	if cfg.Namespace == "" {
		return fmt.Errorf("NAMESPACE must not be empty")
	}
	switch cfg.StoreType {
	case "postgres", "memory":
	case "":
		return fmt.Errorf("STORE_TYPE must not be empty")
	default:
		return fmt.Errorf("unsupported STORE_TYPE %q (expected postgres or memory)", cfg.StoreType)
	}
	if cfg.StoreType == "postgres" && cfg.DatabaseDSN == "" {
		return fmt.Errorf("DB_DSN must be set when STORE_TYPE=postgres")
	}
	if cfg.HistoryCapacity < 1 {
		return fmt.Errorf("HISTORY_CAPACITY must be at least 1")
	}
	return nil
}

func warnOnUnsafeDefaults(cfg *Config, saltConfigured bool) {
	if !strings.EqualFold(cfg.AppEnv, "prod") {
		return
	}
	if !saltConfigured {
		log.Printf("[config] WARNING: APP_ENV=prod with generated rollout salt. Set ROLLOUT_SALT to stabilize bucketing.")
	}
	if (cfg.AdminAPIKey == "" || cfg.AdminAPIKey == defaultAdminAPIKey) && len(cfg.AdminAPIKeyHashes) == 0 {
		log.Printf("[config] WARNING: APP_ENV=prod with default ADMIN_API_KEY and no ADMIN_API_KEY_HASHES. Issue keys with `konditional keys generate` before production use.")
	}
}
