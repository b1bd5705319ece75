package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	DatabaseURL   string
	Port          string
	IsProduction  bool
	EnableDBCheck bool
	JWTSecret     string

	// Upload pipeline tuning
	ChunkSize     int
	MaxUploadRows int
	UploadTimeout time.Duration

	// Fallback fiscal calendar, used when portal_settings has no override
	FiscalStartMonth int
	FiscalStartDay   int

	// Rate limiting for the admin API, e.g. "30-M"
	RateLimit string

	// Allowed CORS origins for the portal frontend
	CORSAllowedOrigins []string
}

// LoadConfig loads configuration from environment variables and .env file if present.
func LoadConfig() (*Config, error) {
	// Attempt to load .env file, ignore error if it doesn't exist
	_ = godotenv.Load()

	viper.SetDefault("PGSQL_URL", "")
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("IS_PRODUCTION", false)
	viper.SetDefault("ENABLE_DB_CHECK", false)
	viper.SetDefault("JWT_SECRET", "a-very-secret-key-should-be-longer-and-random")
	viper.SetDefault("UPLOAD_CHUNK_SIZE", 5000)
	viper.SetDefault("MAX_UPLOAD_ROWS", 250000)
	viper.SetDefault("UPLOAD_TIMEOUT", "5m")
	viper.SetDefault("FISCAL_START_MONTH", 1)
	viper.SetDefault("FISCAL_START_DAY", 1)
	viper.SetDefault("RATE_LIMIT", "30-M")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")

	viper.AutomaticEnv()

	cfg := &Config{}

	cfg.DatabaseURL = viper.GetString("PGSQL_URL")
	if cfg.DatabaseURL == "" {
		log.Println("Warning: PGSQL_URL environment variable not set.")
	}

	cfg.Port = viper.GetString("PORT")
	if cfg.Port == "" {
		cfg.Port = "8080"
		log.Printf("Warning: PORT environment variable not set. Defaulting to %s\n", cfg.Port)
	}

	cfg.JWTSecret = viper.GetString("JWT_SECRET")
	if cfg.JWTSecret == "a-very-secret-key-should-be-longer-and-random" {
		log.Println("Warning: JWT_SECRET environment variable not set. Using default insecure key.")
	}

	cfg.ChunkSize = viper.GetInt("UPLOAD_CHUNK_SIZE")
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 5000
		log.Printf("Warning: Invalid UPLOAD_CHUNK_SIZE. Defaulting to %d.\n", cfg.ChunkSize)
	}

	cfg.MaxUploadRows = viper.GetInt("MAX_UPLOAD_ROWS")
	if cfg.MaxUploadRows <= 0 {
		cfg.MaxUploadRows = 250000
		log.Printf("Warning: Invalid MAX_UPLOAD_ROWS. Defaulting to %d.\n", cfg.MaxUploadRows)
	}

	uploadTimeoutStr := viper.GetString("UPLOAD_TIMEOUT")
	uploadTimeout, err := time.ParseDuration(uploadTimeoutStr)
	if err != nil || uploadTimeout <= 0 {
		uploadTimeout = 5 * time.Minute
		if uploadTimeoutStr != "" {
			log.Printf("Warning: Invalid value for UPLOAD_TIMEOUT ('%s'). Defaulting to %s.\n", uploadTimeoutStr, uploadTimeout.String())
		}
	}
	cfg.UploadTimeout = uploadTimeout

	cfg.FiscalStartMonth = viper.GetInt("FISCAL_START_MONTH")
	cfg.FiscalStartDay = viper.GetInt("FISCAL_START_DAY")

	cfg.RateLimit = viper.GetString("RATE_LIMIT")
	if cfg.RateLimit == "" {
		cfg.RateLimit = "30-M"
	}

	origins := viper.GetString("CORS_ALLOWED_ORIGINS")
	for _, origin := range strings.Split(origins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, origin)
		}
	}

	cfg.IsProduction = viper.GetBool("IS_PRODUCTION")
	cfg.EnableDBCheck = viper.GetBool("ENABLE_DB_CHECK")

	return cfg, nil
}
