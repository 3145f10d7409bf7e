package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage modes select which file origin adapter the process runs.
const (
	ModeLocal = "local"
	ModeS3    = "s3"
)

// Metadata backends.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// MetadataConfig selects where document records are persisted.
type MetadataConfig struct {
	Backend string
	File    string
}

// LocalConfig holds settings for the local disk / proxy-cache variant.
type LocalConfig struct {
	StorageDir        string
	MaxUploadMB       int
	PrecacheOnWebhook bool
}

// MaxUploadBytes returns the upload ceiling in bytes.
func (c LocalConfig) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// TelegramConfig holds the bot platform credential and endpoint.
type TelegramConfig struct {
	BotToken   string
	APIBase    string
	TimeoutSec int
}

// Configured reports whether a bot credential is present.
func (c TelegramConfig) Configured() bool {
	return c.BotToken != ""
}

// S3Config holds object storage settings for the presigned-URL variant.
// Any S3-compatible endpoint works (AWS S3, MinIO).
type S3Config struct {
	Endpoint     string
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	UseSSL       bool
	KeyPrefix    string
	PutExpirySec int
	GetExpirySec int
}

// PutExpiry is the lifetime of a write grant.
func (c S3Config) PutExpiry() time.Duration {
	return time.Duration(c.PutExpirySec) * time.Second
}

// GetExpiry is the lifetime of a read URL.
func (c S3Config) GetExpiry() time.Duration {
	return time.Duration(c.GetExpirySec) * time.Second
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost        string
	Port           string
	StorageMode    string
	LogLevel       string
	AllowedOrigins []string
	Metadata       MetadataConfig
	Database       DatabaseConfig
	Local          LocalConfig
	Telegram       TelegramConfig
	S3             S3Config
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// Real environment variables take precedence over the file.
func Load() *AppConfig {
	region := getEnv("S3_REGION", "")
	return &AppConfig{
		AppHost:        getEnv("APP_HOST", "localhost:8080"),
		Port:           getEnv("PORT", "8080"),
		StorageMode:    strings.ToLower(getEnv("STORAGE_MODE", ModeLocal)),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", []string{"*"}),
		Metadata: MetadataConfig{
			Backend: strings.ToLower(getEnv("METADATA_BACKEND", BackendFile)),
			File:    getEnv("METADATA_FILE", "./data/metadata.json"),
		},
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		Local: LocalConfig{
			StorageDir:        getEnv("STORAGE_DIR", "./storage"),
			MaxUploadMB:       getEnvInt("MAX_UPLOAD_MB", 50),
			PrecacheOnWebhook: getEnvBool("PRECACHE_ON_WEBHOOK", true),
		},
		Telegram: TelegramConfig{
			BotToken:   getEnv("TELEGRAM_BOT_TOKEN", ""),
			APIBase:    getEnv("TELEGRAM_API_BASE", "https://api.telegram.org"),
			TimeoutSec: getEnvInt("TELEGRAM_TIMEOUT_SEC", 0),
		},
		S3: S3Config{
			Endpoint:     getEnv("S3_ENDPOINT", defaultS3Endpoint(region)),
			Region:       region,
			Bucket:       getEnv("S3_BUCKET", ""),
			AccessKey:    getEnv("S3_ACCESS_KEY", ""),
			SecretKey:    getEnv("S3_SECRET_KEY", ""),
			UseSSL:       getEnvBool("S3_USE_SSL", true),
			KeyPrefix:    strings.Trim(getEnv("S3_KEY_PREFIX", "uploads"), "/"),
			PutExpirySec: getEnvInt("PRESIGN_PUT_EXPIRES", 900),
			GetExpirySec: getEnvInt("PRESIGN_GET_EXPIRES", 120),
		},
	}
}

// Validate checks settings that would otherwise fail late at request time.
func (c *AppConfig) Validate() error {
	switch c.StorageMode {
	case ModeLocal:
		if c.Local.StorageDir == "" {
			return fmt.Errorf("STORAGE_DIR is required in %s mode", ModeLocal)
		}
		if c.Local.MaxUploadMB <= 0 {
			return fmt.Errorf("MAX_UPLOAD_MB must be positive")
		}
	case ModeS3:
		if c.S3.Bucket == "" || c.S3.Region == "" {
			return fmt.Errorf("S3_BUCKET and S3_REGION are required in %s mode", ModeS3)
		}
		if c.S3.PutExpirySec <= 0 || c.S3.GetExpirySec <= 0 {
			return fmt.Errorf("presign expirations must be positive")
		}
	default:
		return fmt.Errorf("unknown STORAGE_MODE %q", c.StorageMode)
	}

	switch c.Metadata.Backend {
	case BackendFile:
		if c.Metadata.File == "" {
			return fmt.Errorf("METADATA_FILE is required for the %s backend", BackendFile)
		}
	case BackendPostgres:
	default:
		return fmt.Errorf("unknown METADATA_BACKEND %q", c.Metadata.Backend)
	}
	return nil
}

func defaultS3Endpoint(region string) string {
	if region == "" {
		return "s3.amazonaws.com"
	}
	return "s3." + region + ".amazonaws.com"
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

// getEnvList splits a comma-separated value, dropping blanks.
func getEnvList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
