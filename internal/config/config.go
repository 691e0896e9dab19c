package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Tesseract-Nexus/go-shared/secrets"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"storefront-sync-service/internal/clients"
	"storefront-sync-service/internal/models"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

type Config struct {
	// Server
	Port        string
	Environment string
	CORSOrigins []string

	// Backend: memory or postgres
	StorageBackend string

	// Database
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Redis mirror for the catalog cache; empty disables it
	RedisURL string
	CacheTTL time.Duration

	// NATS for catalog and order events; empty disables publishing
	NATSURL string

	// 1C exchange
	ExchangeUser     string
	ExchangePassword string
	FileLimit        int64
	SaleExportStatus string
	StagingDir       string

	// Shared secrets for the JSON APIs. Empty sync key rejects every call,
	// empty admin key hides the maintenance routes.
	SyncAPIKey  string
	AdminAPIKey string

	// Object storage (Yandex Object Storage or any S3-compatible bucket)
	ObjectStorage clients.S3Config
	UploadDir     string

	// Background work
	ReconcileInterval time.Duration
	ImageBatchLimit   int
	ImageRatePerSec   float64
}

// Load reads the environment. Passwords and keys go through the secrets
// package, which falls back to plain environment variables.
func Load() *Config {
	cfg := loadSettings()
	cfg.DBPassword = secrets.GetDBPassword()
	cfg.ExchangePassword = secrets.GetSecretOrEnv("EXCHANGE_PASSWORD_SECRET_NAME", "EXCHANGE_PASSWORD", "")
	cfg.SyncAPIKey = secrets.GetSecretOrEnv("SYNC_API_KEY_SECRET_NAME", "SYNC_API_KEY", "")
	cfg.AdminAPIKey = secrets.GetSecretOrEnv("ADMIN_API_KEY_SECRET_NAME", "ADMIN_API_KEY", "")
	cfg.ObjectStorage.SecretKey = secrets.GetSecretOrEnv("YANDEX_STORAGE_SECRET_NAME", "YANDEX_STORAGE_SECRET_KEY", os.Getenv("YC_SECRET_ACCESS_KEY"))
	return cfg
}

func loadSettings() *Config {
	dbPort, _ := strconv.Atoi(getEnv("DB_PORT", "5432"))
	fileLimit, _ := strconv.ParseInt(getEnv("FILE_LIMIT", "104857600"), 10, 64)
	imageBatchLimit, _ := strconv.Atoi(getEnv("IMAGE_BATCH_LIMIT", "50"))
	imageRate, _ := strconv.ParseFloat(getEnv("IMAGE_RATE_PER_SEC", "4"), 64)
	useSSL, _ := strconv.ParseBool(getEnv("YANDEX_STORAGE_USE_SSL", "true"))

	return &Config{
		Port:        getEnv("PORT", "5000"),
		Environment: getEnv("ENVIRONMENT", "development"),
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "")),

		StorageBackend: strings.ToLower(getEnv("STORAGE_BACKEND", StoragePostgres)),

		DBHost:    getEnv("DB_HOST", "localhost"),
		DBPort:    dbPort,
		DBUser:    getEnv("DB_USER", "postgres"),
		DBName:    getEnv("DB_NAME", "storefront_db"),
		DBSSLMode: getEnv("DB_SSLMODE", "disable"),

		RedisURL: getEnv("REDIS_URL", ""),
		CacheTTL: getDuration("CACHE_TTL", 5*time.Minute),

		NATSURL: getEnv("NATS_URL", ""),

		ExchangeUser:     getEnv("EXCHANGE_USER", ""),
		FileLimit:        fileLimit,
		SaleExportStatus: getEnv("SALE_EXPORT_STATUS", string(models.OrderStatusPending)),
		StagingDir:       getEnv("STAGING_DIR", "./data/exchange"),

		ObjectStorage: clients.S3Config{
			Endpoint:  getEnv("YANDEX_STORAGE_ENDPOINT", "storage.yandexcloud.net"),
			Region:    getEnv("YANDEX_STORAGE_REGION", "ru-central1"),
			Bucket:    getEnv("YANDEX_STORAGE_BUCKET_NAME", ""),
			AccessKey: getEnv("YANDEX_STORAGE_ACCESS_KEY", os.Getenv("YC_ACCESS_KEY_ID")),
			UseSSL:    useSSL,
		},
		UploadDir: getEnv("UPLOAD_DIR", "./uploads"),

		ReconcileInterval: getDuration("RECONCILE_INTERVAL", 30*time.Minute),
		ImageBatchLimit:   imageBatchLimit,
		ImageRatePerSec:   imageRate,
	}
}

func InitDB(cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode)

	var logLevel logger.LogLevel
	if cfg.Environment == "production" {
		logLevel = logger.Error
	} else {
		logLevel = logger.Info
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Println("Running auto-migrations...")
	if err := db.AutoMigrate(
		&models.Product{},
		&models.CartItem{},
		&models.Order{},
	); err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "does not exist") && strings.Contains(errStr, "constraint") {
			log.Printf("Note: Migration constraint warning (safe to ignore): %v", err)
		} else {
			return nil, fmt.Errorf("failed to run auto-migrations: %w", err)
		}
	}
	log.Println("Auto-migrations completed successfully")

	return db, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDuration accepts Go durations ("30m") or plain seconds
func getDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	log.Printf("WARNING: invalid %s=%q, using %s", key, raw, defaultValue)
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
