// Package config reads the site configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type Config struct {
	Port          string
	Domain        string
	DatabaseURL   string
	SessionSecret string
	JWTSecret     string
	TokenTTL      time.Duration
	SecureCookies bool
	LogLevel      string

	StorageDriver  string
	OSSEndpoint    string
	OSSAccessKey   string
	OSSSecretKey   string
	OSSBucket      string
	PublicBaseURL  string
	SignedURLTTL   time.Duration
	UploadMaxBytes int64
	NewsUploadMax  int64

	CacheDir    string
	CacheMaxAge time.Duration

	SeedAdminEmail    string
	SeedAdminPassword string
}

func defaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("DOMAIN", "http://localhost:8080")
	v.SetDefault("DATABASE_URL", "fm3d.db")
	v.SetDefault("TOKEN_TTL", 7*24*time.Hour)
	v.SetDefault("SECURE_COOKIES", false)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORAGE_DRIVER", "memory")
	v.SetDefault("PUBLIC_BASE_URL", "http://localhost:8080/files")
	v.SetDefault("SIGNED_URL_TTL", 3600*time.Second)
	v.SetDefault("UPLOAD_MAX_BYTES", 20<<20)
	v.SetDefault("NEWS_UPLOAD_MAX_BYTES", 8<<20)
	v.SetDefault("CACHE_DIR", "cache")
	v.SetDefault("CACHE_MAX_AGE", 10*time.Minute)
}

// Load reads envFile when it exists, then the process environment.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return nil, errors.Wrapf(err, "loading %s", envFile)
			}
		} else if !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "stat %s", envFile)
		}
	}

	v := viper.New()
	defaults(v)
	v.AutomaticEnv()

	cfg := &Config{
		Port:              v.GetString("PORT"),
		Domain:            strings.TrimRight(v.GetString("DOMAIN"), "/"),
		DatabaseURL:       v.GetString("DATABASE_URL"),
		SessionSecret:     v.GetString("SESSION_SECRET"),
		JWTSecret:         v.GetString("JWT_SECRET"),
		TokenTTL:          v.GetDuration("TOKEN_TTL"),
		SecureCookies:     v.GetBool("SECURE_COOKIES"),
		LogLevel:          v.GetString("LOG_LEVEL"),
		StorageDriver:     strings.ToLower(v.GetString("STORAGE_DRIVER")),
		OSSEndpoint:       v.GetString("OSS_ENDPOINT"),
		OSSAccessKey:      v.GetString("OSS_ACCESS_KEY"),
		OSSSecretKey:      v.GetString("OSS_SECRET_KEY"),
		OSSBucket:         v.GetString("OSS_BUCKET"),
		PublicBaseURL:     strings.TrimRight(v.GetString("PUBLIC_BASE_URL"), "/"),
		SignedURLTTL:      seconds(v, "SIGNED_URL_TTL"),
		UploadMaxBytes:    v.GetInt64("UPLOAD_MAX_BYTES"),
		NewsUploadMax:     v.GetInt64("NEWS_UPLOAD_MAX_BYTES"),
		CacheDir:          v.GetString("CACHE_DIR"),
		CacheMaxAge:       v.GetDuration("CACHE_MAX_AGE"),
		SeedAdminEmail:    v.GetString("SEED_ADMIN_EMAIL"),
		SeedAdminPassword: v.GetString("SEED_ADMIN_PASSWORD"),
	}
	return cfg, nil
}

// Validate reports settings the server cannot start without.
func (c *Config) Validate() error {
	if c.SessionSecret == "" {
		return errors.New("SESSION_SECRET environment variable not set")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET environment variable not set")
	}
	if c.StorageDriver != "memory" && c.StorageDriver != "oss" {
		return errors.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	return nil
}

// seconds accepts both a bare number of seconds (SIGNED_URL_TTL=3600) and
// a Go duration string.
func seconds(v *viper.Viper, key string) time.Duration {
	raw := strings.TrimSpace(v.GetString(key))
	if raw != "" && strings.Trim(raw, "0123456789") == "" {
		return time.Duration(v.GetInt64(key)) * time.Second
	}
	return v.GetDuration(key)
}
