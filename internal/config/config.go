// Package config loads the controller's environment-driven configuration.
package config

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the process-wide, immutable configuration snapshot built once at
// startup. Operator-writable values that change at runtime live in the
// Setting table (see internal/settings), never here.
type Config struct {
	Version string

	DB DBConfig

	APIKey string

	AuthEnabled        bool
	OIDCEnabled        bool
	OIDCIssuerURL      string
	OIDCClientID       string
	OIDCClientSecret   string
	OIDCSSLVerify      bool
	OIDCProviderName   string
	LocalLoginEnabled  bool
	LocalUser          string
	LocalPasswordPlain string // decoded from LOCAL_PASSWORD (base64)

	ArrSSLVerify bool
	TZ           string
	DevMode      bool

	// MediaPaths is the worker-side allow-list of absolute directories a
	// job's filepath must resolve inside of. The controller applies the
	// same containment rule only to its folder listing; scan candidates are
	// not checked against it.
	MediaPaths []string

	ListenAddr string
}

// DBConfig holds the Postgres connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
}

// DSN renders a libpq-style connection string for pgxpool.ParseConfig.
func (d DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Password, d.Name)
}

// Load reads configuration from the process environment using viper, applying
// the defaults from spec.md §6.
func Load(version string) (Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "librarrarian")
	v.SetDefault("DB_NAME", "librarrarian")
	v.SetDefault("AUTH_ENABLED", true)
	v.SetDefault("OIDC_ENABLED", false)
	v.SetDefault("OIDC_SSL_VERIFY", true)
	v.SetDefault("OIDC_PROVIDER_NAME", "OIDC")
	v.SetDefault("LOCAL_LOGIN_ENABLED", false)
	v.SetDefault("ARR_SSL_VERIFY", true)
	v.SetDefault("TZ", "UTC")
	v.SetDefault("DEVMODE", false)
	v.SetDefault("LISTEN_ADDR", ":8080")

	cfg := Config{
		Version: version,
		DB: DBConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetInt("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			Name:     v.GetString("DB_NAME"),
		},
		APIKey:            v.GetString("API_KEY"),
		AuthEnabled:       v.GetBool("AUTH_ENABLED"),
		OIDCEnabled:       v.GetBool("OIDC_ENABLED"),
		OIDCIssuerURL:     v.GetString("OIDC_ISSUER_URL"),
		OIDCClientID:      v.GetString("OIDC_CLIENT_ID"),
		OIDCClientSecret:  v.GetString("OIDC_CLIENT_SECRET"),
		OIDCSSLVerify:     v.GetBool("OIDC_SSL_VERIFY"),
		OIDCProviderName:  v.GetString("OIDC_PROVIDER_NAME"),
		LocalLoginEnabled: v.GetBool("LOCAL_LOGIN_ENABLED"),
		LocalUser:         v.GetString("LOCAL_USER"),
		ArrSSLVerify:      v.GetBool("ARR_SSL_VERIFY"),
		TZ:                v.GetString("TZ"),
		DevMode:           v.GetBool("DEVMODE"),
		ListenAddr:        v.GetString("LISTEN_ADDR"),
	}

	if raw := v.GetString("LOCAL_PASSWORD"); raw != "" {
		decoded, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return Config{}, fmt.Errorf("config: LOCAL_PASSWORD is not valid base64: %w", err)
		}
		cfg.LocalPasswordPlain = string(decoded)
	}

	if raw := v.GetString("MEDIA_PATHS"); raw != "" {
		for _, p := range strings.Split(raw, ",") {
			p = strings.TrimSpace(p)
			if p != "" {
				cfg.MediaPaths = append(cfg.MediaPaths, p)
			}
		}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("config: API_KEY is required")
	}
	if c.OIDCEnabled {
		if c.OIDCIssuerURL == "" || c.OIDCClientID == "" {
			return fmt.Errorf("config: OIDC_ENABLED requires OIDC_ISSUER_URL and OIDC_CLIENT_ID")
		}
	}
	if c.LocalLoginEnabled && c.LocalUser == "" {
		return fmt.Errorf("config: LOCAL_LOGIN_ENABLED requires LOCAL_USER")
	}
	return nil
}

// HeartbeatFreshness is the window within which a node is considered live.
const HeartbeatFreshness = 5 * time.Minute
