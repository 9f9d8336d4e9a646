// Package config loads static settings for the surge lab from a YAML file,
// an optional .env file and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file values.
const (
	EnvBirdeyeAPIKey    = "BIRDEYE_API_KEY"
	EnvTelegramBotToken = "TELEGRAM_BOT_TOKEN"
	EnvTelegramChatID   = "TELEGRAM_CHAT_ID"
	EnvRedisAddr        = "REDIS_ADDR"
)

var (
	// ErrMissingAPIKey is returned when the market-data API key is not configured.
	ErrMissingAPIKey = errors.New("market data api key not configured")

	// ErrMissingTelegram is returned when bot token or chat id is not configured.
	ErrMissingTelegram = errors.New("telegram bot token or chat id not configured")
)

// Config is the root configuration object. It is loaded once per process
// and handed to components as option structs.
type Config struct {
	APIKeys    APIKeysConfig    `yaml:"api_keys"`
	MarketData MarketDataConfig `yaml:"market_data"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Tokens     TokensConfig     `yaml:"tokens"`
	Features   FeaturesConfig   `yaml:"features"`
	Labels     LabelsConfig     `yaml:"labels"`
	Events     EventsConfig     `yaml:"events"`
	Model      ModelConfig      `yaml:"model"`
	Predictor  PredictorConfig  `yaml:"predictor"`
	Paths      PathsConfig      `yaml:"paths"`
	Redis      RedisConfig      `yaml:"redis"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Log        LogConfig        `yaml:"log"`
}

// APIKeysConfig holds static API keys.
type APIKeysConfig struct {
	Birdeye string `yaml:"birdeye"`
}

// MarketDataConfig configures the candle/listing HTTP client.
type MarketDataConfig struct {
	BaseURL         string        `yaml:"base_url" validate:"required,url"`
	Interval        string        `yaml:"interval" validate:"oneof=1m 5m 15m 1H"`
	PageSize        int           `yaml:"page_size" validate:"gte=1"`
	RequestDelay    time.Duration `yaml:"request_delay" validate:"gte=0"`
	Timeout         time.Duration `yaml:"timeout" validate:"gt=0"`
	History         time.Duration `yaml:"history" validate:"gt=0"`
	ListingLimit    int           `yaml:"listing_limit" validate:"gte=1,lte=50"`
	BreakerFailures uint32        `yaml:"breaker_failures" validate:"gte=1"`
	BreakerCooldown time.Duration `yaml:"breaker_cooldown" validate:"gt=0"`
}

// TelegramConfig holds bot credentials.
type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
	APIURL   string `yaml:"api_url" validate:"omitempty,url"`
}

// TokensConfig points at the token list file.
type TokensConfig struct {
	ListPath string `yaml:"list_path" validate:"required"`
}

// FeaturesConfig holds feature window sizes.
type FeaturesConfig struct {
	VolatilityWindow  int   `yaml:"volatility_window" validate:"gte=2"`
	CorrelationWindow int   `yaml:"correlation_window" validate:"gte=2"`
	Lags              int   `yaml:"lags" validate:"gte=0"`
	MAWindows         []int `yaml:"ma_windows" validate:"dive,gte=1"`
	EMASpans          []int `yaml:"ema_spans" validate:"dive,gte=1"`
	RSIWindow         int   `yaml:"rsi_window" validate:"gte=1"`
}

// LabelsConfig configures the training target.
type LabelsConfig struct {
	Policy  string        `yaml:"policy" validate:"oneof=forward window"`
	Factor  float64       `yaml:"factor" validate:"gt=1"`
	Horizon int           `yaml:"horizon" validate:"gte=1"`
	Window  time.Duration `yaml:"window" validate:"gt=0"`
}

// EventsConfig configures the window-scan event detector and the analysis.
type EventsConfig struct {
	Factor    float64         `yaml:"factor" validate:"gt=1"`
	MinVolume float64         `yaml:"min_volume" validate:"gte=0"`
	Windows   []time.Duration `yaml:"windows" validate:"required,dive,gt=0"`
	Lookback  int             `yaml:"lookback" validate:"gte=2"`
	Clusters  int             `yaml:"clusters" validate:"gte=1"`
}

// ModelConfig holds classifier hyper-parameters and split settings.
type ModelConfig struct {
	NEstimators    int     `yaml:"n_estimators" validate:"gte=1"`
	LearningRate   float64 `yaml:"learning_rate" validate:"gt=0,lte=1"`
	MaxDepth       int     `yaml:"max_depth" validate:"gte=1,lte=16"`
	Lambda         float64 `yaml:"lambda" validate:"gte=0"`
	MinChildWeight float64 `yaml:"min_child_weight" validate:"gte=0"`
	Balance        string  `yaml:"balance" validate:"oneof=oversample weight none"`
	TestSize       float64 `yaml:"test_size" validate:"gt=0,lt=1"`
	Seed           int64   `yaml:"seed"`
	Threshold      float64 `yaml:"threshold" validate:"gt=0,lt=1"`
	MinRows        int     `yaml:"min_rows" validate:"gte=2"`
	Scale          bool    `yaml:"scale"`
}

// PredictorConfig configures the scoring loop for new listings.
type PredictorConfig struct {
	Lookback      time.Duration `yaml:"lookback" validate:"gt=0"`
	MinRows       int           `yaml:"min_rows" validate:"gte=2"`
	Schedule      string        `yaml:"schedule" validate:"required"`
	AlertCooldown time.Duration `yaml:"alert_cooldown" validate:"gte=0"`
}

// PathsConfig lists flat-file locations.
type PathsConfig struct {
	RawSnapshot string `yaml:"raw_snapshot" validate:"required"`
	Model       string `yaml:"model" validate:"required"`
	Scaler      string `yaml:"scaler"`
	EventsDir   string `yaml:"events_dir" validate:"required"`
	ChartsDir   string `yaml:"charts_dir" validate:"required"`
}

// RedisConfig configures the optional alert cooldown store.
// An empty Addr selects the in-memory cooldown.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" validate:"gte=0"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Addr      string `yaml:"addr"`
	Namespace string `yaml:"namespace" validate:"required"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=trace debug info warn error"`
	Format string `yaml:"format" validate:"oneof=console json"`
}

// Default returns a configuration with every tunable set.
func Default() *Config {
	return &Config{
		MarketData: MarketDataConfig{
			BaseURL:         "https://public-api.birdeye.so",
			Interval:        "1m",
			PageSize:        1000,
			RequestDelay:    time.Second,
			Timeout:         30 * time.Second,
			History:         7 * 24 * time.Hour,
			ListingLimit:    20,
			BreakerFailures: 5,
			BreakerCooldown: time.Minute,
		},
		Tokens: TokensConfig{ListPath: "config/token_list.yaml"},
		Features: FeaturesConfig{
			VolatilityWindow:  5,
			CorrelationWindow: 5,
			Lags:              5,
			MAWindows:         []int{3, 5, 10},
			EMASpans:          []int{3, 5},
			RSIWindow:         7,
		},
		Labels: LabelsConfig{
			Policy:  "forward",
			Factor:  5,
			Horizon: 15,
			Window:  15 * time.Minute,
		},
		Events: EventsConfig{
			Factor:    5,
			MinVolume: 0,
			Windows: []time.Duration{
				5 * time.Minute,
				15 * time.Minute,
				60 * time.Minute,
				1440 * time.Minute,
			},
			Lookback: 15,
			Clusters: 5,
		},
		Model: ModelConfig{
			NEstimators:    100,
			LearningRate:   0.1,
			MaxDepth:       5,
			Lambda:         1,
			MinChildWeight: 1,
			Balance:        "oversample",
			TestSize:       0.2,
			Seed:           42,
			Threshold:      0.5,
			MinRows:        20,
		},
		Predictor: PredictorConfig{
			Lookback:      6 * time.Hour,
			MinRows:       20,
			Schedule:      "@every 15m",
			AlertCooldown: 6 * time.Hour,
		},
		Paths: PathsConfig{
			RawSnapshot: "data/raw/historical_high_freq_data.csv",
			Model:       "models/model.json",
			EventsDir:   "data/events",
			ChartsDir:   "data/charts",
		},
		Metrics: MetricsConfig{
			Addr:      ":9090",
			Namespace: "surge_lab",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads configuration. Priority: environment > .env file > YAML file > defaults.
// An empty path skips the YAML file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Missing .env is fine.
	_ = godotenv.Load()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvBirdeyeAPIKey); v != "" {
		c.APIKeys.Birdeye = v
	}
	if v := os.Getenv(EnvTelegramBotToken); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv(EnvTelegramChatID); v != "" {
		c.Telegram.ChatID = v
	}
	if v := os.Getenv(EnvRedisAddr); v != "" {
		c.Redis.Addr = v
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints.
func (c *Config) Validate() error {
	return validate.Struct(c)
}

// RequireMarketData fails when the market-data API key is missing.
func (c *Config) RequireMarketData() error {
	if c.APIKeys.Birdeye == "" {
		return ErrMissingAPIKey
	}
	return nil
}

// RequireTelegram fails when bot credentials are missing.
func (c *Config) RequireTelegram() error {
	if c.Telegram.BotToken == "" || c.Telegram.ChatID == "" {
		return ErrMissingTelegram
	}
	return nil
}

// MaskedAPIKey returns the API key with most characters hidden for logging.
func (c *Config) MaskedAPIKey() string {
	return maskSecret(c.APIKeys.Birdeye)
}

func maskSecret(s string) string {
	if len(s) <= 8 {
		if s == "" {
			return ""
		}
		return "****"
	}
	return s[:4] + "****" + s[len(s)-4:]
}
