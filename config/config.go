// Package config holds all application configuration loaded from environment
// variables, with a best-effort .env file load for local runs.
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// Exchange
	Pair       string // market-data pair, e.g. "B-BTC_USDT"
	Market     string // order-book market code, e.g. "BTCUSDT"
	Interval   string // history candle interval
	APIKey     string
	APISecret  string
	Simulation bool

	// Strategy
	TradeCapital    float64
	TrailingStopPct float64
	RSIBuy          float64
	RSISell         float64
	RSIPanicBuy     float64
	RSIPeriod       int
	BandPeriod      int
	BandWidth       float64
	HistoryWindow   int

	// Scheduling
	Cadence       time.Duration
	BucketWidth   time.Duration
	WalletRefresh time.Duration
	PruneEvery    time.Duration
	PruneMaxAge   time.Duration

	// Wallet display
	QuoteAsset string
	BaseAsset  string

	// Infrastructure
	DBPath        string
	ListenAddr    string
	MetricsAddr   string
	RedisAddr     string // empty disables the Redis snapshot mirror
	RedisPassword string
	LogLevel      string

	// Operator surface
	OperatorTOTPSecret string // empty disables /api/close
	TelegramToken      string
	TelegramChatID     string
	WebhookURL         string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	// Local convenience only; the file is absent in deployments.
	if err := godotenv.Load(); err == nil {
		log.Println("[config] loaded .env file")
	}

	return &Config{
		Pair:       getEnv("PAIR", "B-BTC_USDT"),
		Market:     getEnv("MARKET", "BTCUSDT"),
		Interval:   getEnv("CANDLE_INTERVAL", "1m"),
		APIKey:     getEnv("COINDCX_API_KEY", "dummy"),
		APISecret:  getEnv("COINDCX_SECRET_KEY", "dummy"),
		Simulation: getEnvBool("SIMULATION", true),

		TradeCapital:    getEnvFloat("TRADE_CAPITAL", 10000),
		TrailingStopPct: getEnvFloat("TRAILING_STOP_PCT", 0.005),
		RSIBuy:          getEnvFloat("RSI_BUY", 30),
		RSISell:         getEnvFloat("RSI_SELL", 70),
		RSIPanicBuy:     getEnvFloat("RSI_PANIC_BUY", 20),
		RSIPeriod:       getEnvInt("RSI_PERIOD", 14),
		BandPeriod:      getEnvInt("BAND_PERIOD", 20),
		BandWidth:       getEnvFloat("BAND_WIDTH", 2),
		HistoryWindow:   getEnvInt("HISTORY_WINDOW", 50),

		Cadence:       getEnvDuration("CYCLE_INTERVAL", 5*time.Second),
		BucketWidth:   getEnvDuration("BUCKET_WIDTH", time.Minute),
		WalletRefresh: getEnvDuration("WALLET_REFRESH", 60*time.Second),
		PruneEvery:    getEnvDuration("PRUNE_EVERY", 5*time.Minute),
		PruneMaxAge:   getEnvDuration("PRUNE_MAX_AGE", time.Hour),

		QuoteAsset: getEnv("QUOTE_ASSET", "USDT"),
		BaseAsset:  getEnv("BASE_ASSET", "BTC"),

		DBPath:        getEnv("SQLITE_PATH", "data/scalper.db"),
		ListenAddr:    getEnv("LISTEN_ADDR", ":3000"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		OperatorTOTPSecret: getEnv("OPERATOR_TOTP_SECRET", ""),
		TelegramToken:      getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:     getEnv("TELEGRAM_CHAT_ID", ""),
		WebhookURL:         getEnv("ALERT_WEBHOOK_URL", ""),
	}
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %g", key, v, fallback)
		return fallback
	}
	return f
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %t", key, v, fallback)
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %s", key, v, fallback)
		return fallback
	}
	return d
}
