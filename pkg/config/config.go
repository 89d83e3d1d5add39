package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Cache    CacheConfig
	Claims   ClaimsConfig
	Evidence EvidenceConfig
	Charges  ChargesConfig
	Sweeper  SweeperConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// CacheConfig tunes the Redis-backed claim projection cache.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

// ClaimsConfig holds the lifecycle rules for damage claims.
type ClaimsConfig struct {
	ChefResponseWindow time.Duration
	FilingWindowDays   int
	BookingWindowDays  int
	MinEvidenceCount   int
	MinAmountCents     int64
	MaxAmountCents     int64
}

// EvidenceConfig controls evidence file storage & validation.
type EvidenceConfig struct {
	StorageDir       string
	SignedURLSecret  string
	SignedURLTTL     time.Duration
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
	MaxPerClaim      int
}

// ChargesConfig configures the asynchronous charge pipeline.
type ChargesConfig struct {
	GatewayURL        string
	GatewayAPIKey     string
	GatewayTimeout    time.Duration
	WorkerConcurrency int
	WorkerRetries     int
}

// SweeperConfig controls the background deadline sweeper.
type SweeperConfig struct {
	Enabled     bool
	Interval    time.Duration
	SettleDelay time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Cache = CacheConfig{
		Enabled: v.GetBool("ENABLE_CACHE"),
		TTL:     parseDuration(v.GetString("CACHE_TTL"), 30*time.Second),
	}

	cfg.Claims = ClaimsConfig{
		ChefResponseWindow: parseDuration(v.GetString("CLAIMS_CHEF_RESPONSE_WINDOW"), 72*time.Hour),
		FilingWindowDays:   v.GetInt("CLAIMS_FILING_WINDOW_DAYS"),
		BookingWindowDays:  v.GetInt("CLAIMS_BOOKING_WINDOW_DAYS"),
		MinEvidenceCount:   v.GetInt("CLAIMS_MIN_EVIDENCE"),
		MinAmountCents:     v.GetInt64("CLAIMS_MIN_AMOUNT_CENTS"),
		MaxAmountCents:     v.GetInt64("CLAIMS_MAX_AMOUNT_CENTS"),
	}

	maxEvidenceSize := v.GetInt64("EVIDENCE_MAX_FILE_SIZE")
	if maxEvidenceSize <= 0 {
		maxEvidenceSize = 4_500_000
	}
	cfg.Evidence = EvidenceConfig{
		StorageDir:       v.GetString("EVIDENCE_STORAGE_DIR"),
		SignedURLSecret:  v.GetString("EVIDENCE_SIGNED_URL_SECRET"),
		SignedURLTTL:     parseDuration(v.GetString("EVIDENCE_SIGNED_URL_TTL"), 30*time.Minute),
		MaxFileSizeBytes: maxEvidenceSize,
		AllowedMIMEs:     splitAndTrim(v.GetString("EVIDENCE_ALLOWED_MIME_TYPES")),
		MaxPerClaim:      v.GetInt("EVIDENCE_MAX_PER_CLAIM"),
	}

	cfg.Charges = ChargesConfig{
		GatewayURL:        v.GetString("CHARGE_GATEWAY_URL"),
		GatewayAPIKey:     v.GetString("CHARGE_GATEWAY_API_KEY"),
		GatewayTimeout:    parseDuration(v.GetString("CHARGE_GATEWAY_TIMEOUT"), 15*time.Second),
		WorkerConcurrency: v.GetInt("CHARGE_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("CHARGE_WORKER_RETRIES"),
	}

	cfg.Sweeper = SweeperConfig{
		Enabled:     v.GetBool("ENABLE_SWEEPER"),
		Interval:    parseDuration(v.GetString("SWEEPER_INTERVAL"), 5*time.Minute),
		SettleDelay: parseDuration(v.GetString("SWEEPER_SETTLE_DELAY"), 24*time.Hour),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "prepshare_claims")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_CACHE", false)
	v.SetDefault("CACHE_TTL", "30s")

	v.SetDefault("CLAIMS_CHEF_RESPONSE_WINDOW", "72h")
	v.SetDefault("CLAIMS_FILING_WINDOW_DAYS", 30)
	v.SetDefault("CLAIMS_BOOKING_WINDOW_DAYS", 14)
	v.SetDefault("CLAIMS_MIN_EVIDENCE", 2)
	v.SetDefault("CLAIMS_MIN_AMOUNT_CENTS", 1000)
	v.SetDefault("CLAIMS_MAX_AMOUNT_CENTS", 5_000_000)

	v.SetDefault("EVIDENCE_STORAGE_DIR", "./evidence")
	v.SetDefault("EVIDENCE_SIGNED_URL_SECRET", "dev_evidence_secret")
	v.SetDefault("EVIDENCE_SIGNED_URL_TTL", "30m")
	v.SetDefault("EVIDENCE_MAX_FILE_SIZE", 4_500_000)
	v.SetDefault("EVIDENCE_ALLOWED_MIME_TYPES", "image/jpeg,image/jpg,image/png,image/webp,application/pdf")
	v.SetDefault("EVIDENCE_MAX_PER_CLAIM", 20)

	v.SetDefault("CHARGE_GATEWAY_URL", "http://localhost:9090/v1/charges")
	v.SetDefault("CHARGE_GATEWAY_API_KEY", "")
	v.SetDefault("CHARGE_GATEWAY_TIMEOUT", "15s")
	v.SetDefault("CHARGE_WORKER_CONCURRENCY", 1)
	v.SetDefault("CHARGE_WORKER_RETRIES", 3)

	v.SetDefault("ENABLE_SWEEPER", true)
	v.SetDefault("SWEEPER_INTERVAL", "5m")
	v.SetDefault("SWEEPER_SETTLE_DELAY", "24h")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
