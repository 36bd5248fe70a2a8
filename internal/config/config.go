package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                   string
	AllowedOrigin          string
	DatabaseURL            string
	RedisAddr              string
	RedisPassword          string
	RedisDB                int
	AuthSecret             string
	AccessTokenTTLMinutes  int
	BusinessTimezone       string
	TxMaxAttempts          int
	LogLevel               string
	LogDevelopment         bool
	PaystackSecretKey      string
	PaystackBaseURL        string
	LoginRateLimit         string
	AuditCompressThreshold int
	SeedCatalog            bool
	BootstrapAdminUsername string
	BootstrapAdminPassword string
	BootstrapAdminName     string
	BootstrapAdminStaffID  string
}

// Load reads the environment. A .env file in the working directory is
// applied first when present; variables already set win over it.
func Load() Config {
	_ = godotenv.Load()

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	tokenTTL, err := strconv.Atoi(getEnv("ACCESS_TOKEN_TTL_MINUTES", "480"))
	if err != nil || tokenTTL < 1 {
		tokenTTL = 480
	}
	attempts, err := strconv.Atoi(getEnv("TX_MAX_ATTEMPTS", "5"))
	if err != nil || attempts < 1 {
		attempts = 5
	}
	threshold, err := strconv.Atoi(getEnv("AUDIT_COMPRESS_THRESHOLD", "4096"))
	if err != nil || threshold < 0 {
		threshold = 4096
	}
	development, _ := strconv.ParseBool(getEnv("LOG_DEVELOPMENT", "false"))
	seedCatalog, _ := strconv.ParseBool(getEnv("SEED_CATALOG", "false"))

	cfg := Config{
		Port:                   getEnv("PORT", "8080"),
		AllowedOrigin:          getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		RedisAddr:              os.Getenv("REDIS_ADDR"),
		RedisPassword:          os.Getenv("REDIS_PASSWORD"),
		RedisDB:                redisDB,
		AuthSecret:             strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes:  tokenTTL,
		BusinessTimezone:       getEnv("BUSINESS_TIMEZONE", "Africa/Lagos"),
		TxMaxAttempts:          attempts,
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		LogDevelopment:         development,
		PaystackSecretKey:      strings.TrimSpace(os.Getenv("PAYSTACK_SECRET_KEY")),
		PaystackBaseURL:        os.Getenv("PAYSTACK_BASE_URL"),
		LoginRateLimit:         getEnv("LOGIN_RATE_LIMIT", "5-M"),
		AuditCompressThreshold: threshold,
		SeedCatalog:            seedCatalog,
		BootstrapAdminUsername: strings.TrimSpace(os.Getenv("BOOTSTRAP_ADMIN_USERNAME")),
		BootstrapAdminPassword: os.Getenv("BOOTSTRAP_ADMIN_PASSWORD"),
		BootstrapAdminName:     getEnv("BOOTSTRAP_ADMIN_NAME", "Administrator"),
		BootstrapAdminStaffID:  getEnv("BOOTSTRAP_ADMIN_STAFF_ID", "staff-admin"),
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMinutes) * time.Minute
}

// Location resolves BusinessTimezone. Day boundaries for sales totals use it.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.BusinessTimezone)
	if err != nil {
		return nil, fmt.Errorf("BUSINESS_TIMEZONE %q: %w", c.BusinessTimezone, err)
	}
	return loc, nil
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
