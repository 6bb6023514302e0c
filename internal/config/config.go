// Package config loads service configuration from DDSPM_-prefixed
// environment variables.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config carries all tunables for the API process.
type Config struct {
	ListenAddr  string
	PostgresDSN string

	// Directory holding the CA material and governance file.
	SecretsDir string

	// HS256 secret for bind tokens and user tokens.
	TokenSecret string

	// Bind-token lifetime.
	GrantTokenTTL time.Duration

	// Identity certificate lifetime.
	CertificateExpiry time.Duration

	RateBurst  int
	RatePerSec int
}

// Load reads configuration from the environment, applying defaults.
func Load() Config {
	v := viper.New()
	v.SetEnvPrefix("DDSPM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("pg_dsn", "")
	v.SetDefault("secrets_dir", "")
	v.SetDefault("token_secret", "")
	v.SetDefault("grant_token_ttl_hours", 48)
	v.SetDefault("certificate_expiry_days", 365)
	v.SetDefault("rate_burst", 50)
	v.SetDefault("rate_per_sec", 25)

	return Config{
		ListenAddr:        v.GetString("listen_addr"),
		PostgresDSN:       v.GetString("pg_dsn"),
		SecretsDir:        v.GetString("secrets_dir"),
		TokenSecret:       v.GetString("token_secret"),
		GrantTokenTTL:     time.Duration(v.GetInt("grant_token_ttl_hours")) * time.Hour,
		CertificateExpiry: time.Duration(v.GetInt("certificate_expiry_days")) * 24 * time.Hour,
		RateBurst:         v.GetInt("rate_burst"),
		RatePerSec:        v.GetInt("rate_per_sec"),
	}
}
