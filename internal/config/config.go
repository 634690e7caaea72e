package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cyphera/cyphera-wallet/internal/constants"
	"github.com/cyphera/cyphera-wallet/internal/helpers"
	"github.com/joho/godotenv"
)

// Config is the process configuration, read from the environment (and an optional .env file).
type Config struct {
	Stage              string   `env:"STAGE" envDefault:"local"`
	LogLevel           string   `env:"LOG_LEVEL" envDefault:"info"`
	APIPort            string   `env:"API_PORT" envDefault:"8000"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	StorageDriver  string `env:"STORAGE_DRIVER" envDefault:"sqlite"`
	StoragePath    string `env:"STORAGE_PATH" envDefault:"wallet-storage.db"`
	DatabaseURL    string `env:"DATABASE_URL"`
	DatabaseURLARN string `env:"DATABASE_URL_ARN"`
	StorageKey     string `env:"STORAGE_KEY"`
	StorageKeyARN  string `env:"STORAGE_KEY_ARN"`

	AlchemyAPIKey    string  `env:"ALCHEMY_API_KEY"`
	AlchemyAPIKeyARN string  `env:"ALCHEMY_API_KEY_ARN"`
	AlchemyRateLimit float64 `env:"ALCHEMY_RATE_LIMIT" envDefault:"10"`
	CMCAPIKey        string  `env:"CMC_API_KEY"`
	CoinGeckoBaseURL string  `env:"COINGECKO_BASE_URL" envDefault:"https://api.coingecko.com"`

	BridgeURL string `env:"BRIDGE_URL"`

	AllowMainnet        bool          `env:"ALLOW_MAINNET" envDefault:"true"`
	WriteDebounce       time.Duration `env:"WRITE_DEBOUNCE" envDefault:"1s"`
	WriteRetryDelay     time.Duration `env:"WRITE_RETRY_DELAY" envDefault:"2s"`
	WriteBatchSize      int           `env:"WRITE_BATCH_SIZE" envDefault:"10"`
	WriteBatchPause     time.Duration `env:"WRITE_BATCH_PAUSE" envDefault:"100ms"`
	ImmediateLockWrites bool          `env:"IMMEDIATE_LOCK_WRITES" envDefault:"false"`

	PriceStaleTime       time.Duration `env:"PRICE_STALE_TIME" envDefault:"30s"`
	PriceRefetchInterval time.Duration `env:"PRICE_REFETCH_INTERVAL" envDefault:"60s"`
}

// Load reads .env (if present) and parses the environment into a validated Config.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: .env file not found, relying on environment variables")
	}
	return Parse()
}

// Parse reads the process environment without touching .env.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints that struct tags cannot express.
func (c Config) Validate() error {
	if !helpers.IsValidStage(c.Stage) {
		return fmt.Errorf("invalid STAGE %q, must be one of: %s, %s, %s",
			c.Stage, helpers.StageProd, helpers.StageDev, helpers.StageLocal)
	}

	switch c.StorageDriver {
	case constants.StorageDriverMemory, constants.StorageDriverSQLite:
	case constants.StorageDriverPostgres:
		if c.DatabaseURL == "" && c.DatabaseURLARN == "" {
			return fmt.Errorf("DATABASE_URL or DATABASE_URL_ARN is required when STORAGE_DRIVER=%s", constants.StorageDriverPostgres)
		}
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}

	if c.WriteBatchSize <= 0 {
		return fmt.Errorf("WRITE_BATCH_SIZE must be positive, got %d", c.WriteBatchSize)
	}
	if c.WriteDebounce < 0 || c.WriteRetryDelay < 0 || c.WriteBatchPause < 0 {
		return fmt.Errorf("write timings must not be negative")
	}
	if c.AlchemyRateLimit <= 0 {
		return fmt.Errorf("ALCHEMY_RATE_LIMIT must be positive")
	}
	return nil
}
