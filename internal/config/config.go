package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port              string   `mapstructure:"PORT"`
	Env               string   `mapstructure:"ENV"`
	DatabaseURL       string   `mapstructure:"DATABASE_URL"`
	DBMaxConns        int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns        int32    `mapstructure:"DB_MIN_CONNS"`
	RedisURL          string   `mapstructure:"REDIS_URL"`
	TokenSigningKey   string   `mapstructure:"TOKEN_SIGNING_KEY"`
	TokenIssuer       string   `mapstructure:"TOKEN_ISSUER"`
	StorageBackend    string   `mapstructure:"STORAGE_BACKEND"`
	StorageDir        string   `mapstructure:"STORAGE_DIR"`
	S3Bucket          string   `mapstructure:"S3_BUCKET"`
	S3Region          string   `mapstructure:"S3_REGION"`
	S3Endpoint        string   `mapstructure:"S3_ENDPOINT"`
	S3AccessKeyID     string   `mapstructure:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string   `mapstructure:"S3_SECRET_ACCESS_KEY"`
	CORSOrigins       []string `mapstructure:"CORS_ORIGINS"`
	StrictHistoryRead bool     `mapstructure:"STRICT_HISTORY_READ"`
	BodyLimit         string   `mapstructure:"BODY_LIMIT"`
	LoginRateLimitRPS float64  `mapstructure:"LOGIN_RATE_LIMIT_RPS"`
	LoginRateBurst    int      `mapstructure:"LOGIN_RATE_LIMIT_BURST"`
}

const devSigningKey = "clinica-development-signing-key"

var keys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "REDIS_URL",
	"TOKEN_SIGNING_KEY", "TOKEN_ISSUER",
	"STORAGE_BACKEND", "STORAGE_DIR",
	"S3_BUCKET", "S3_REGION", "S3_ENDPOINT", "S3_ACCESS_KEY_ID", "S3_SECRET_ACCESS_KEY",
	"CORS_ORIGINS", "STRICT_HISTORY_READ", "BODY_LIMIT",
	"LOGIN_RATE_LIMIT_RPS", "LOGIN_RATE_LIMIT_BURST",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("TOKEN_ISSUER", "clinica")
	v.SetDefault("STORAGE_BACKEND", "local")
	v.SetDefault("STORAGE_DIR", "./storage")
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("STRICT_HISTORY_READ", false)
	v.SetDefault("BODY_LIMIT", "1M")
	v.SetDefault("LOGIN_RATE_LIMIT_RPS", 1)
	v.SetDefault("LOGIN_RATE_LIMIT_BURST", 10)

	for _, k := range keys {
		v.BindEnv(k)
	}

	// .env is optional
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		if origins := v.GetString("CORS_ORIGINS"); origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}
	for i, o := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(o)
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.TokenSigningKey == "" && cfg.IsDev() {
		log.Println("WARNING: TOKEN_SIGNING_KEY is not set, using the development key.")
		cfg.TokenSigningKey = devSigningKey
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	if c.TokenSigningKey == "" {
		return fmt.Errorf("TOKEN_SIGNING_KEY is required")
	}
	if c.IsProduction() {
		if c.TokenSigningKey == devSigningKey {
			return fmt.Errorf("TOKEN_SIGNING_KEY must not be the development key in production")
		}
		if len(c.TokenSigningKey) < 32 {
			return fmt.Errorf("TOKEN_SIGNING_KEY must be at least 32 characters in production, got %d", len(c.TokenSigningKey))
		}
		if c.StorageBackend == "memory" {
			return fmt.Errorf("STORAGE_BACKEND=memory is not allowed in production")
		}
	}

	switch c.StorageBackend {
	case "local":
		if c.StorageDir == "" {
			return fmt.Errorf("STORAGE_DIR is required when STORAGE_BACKEND is \"local\"")
		}
	case "s3":
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when STORAGE_BACKEND is \"s3\"")
		}
	case "memory":
	default:
		return fmt.Errorf("STORAGE_BACKEND must be \"local\", \"s3\", or \"memory\", got %q", c.StorageBackend)
	}

	if c.DBMinConns > c.DBMaxConns && c.DBMaxConns > 0 {
		return fmt.Errorf("DB_MIN_CONNS (%d) must not exceed DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	return nil
}
