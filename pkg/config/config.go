// Package config loads daemon configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config centralizes every tunable the daemon reads at startup.
type Config struct {
	Env         string // "local", "staging", "production"
	ServiceName string
	HTTPAddr    string
	ShareBaseURL string

	LLM      LLMConfig
	Redis    RedisConfig
	Minio    MinioConfig
	Ledger   LedgerConfig
	Kafka    KafkaConfig
	Risk     RiskConfig
	Dialogue DialogueConfig
	F1       F1Config
}

// LLMConfig selects and tunes the language-model provider.
type LLMConfig struct {
	Provider       string // "openai", "anthropic", "none"
	Model          string
	APIKey         string
	BaseURL        string
	ExtractTimeout time.Duration // soft timeout before falling back to regex
}

// RedisConfig tunes the response cache. Empty Addr disables it.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// MinioConfig tunes the durable metadata store. Empty Endpoint selects the
// in-memory store.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// LedgerConfig tunes the on-chain ledger client. Empty RPCURL selects the
// dry-run engine.
type LedgerConfig struct {
	RPCURL       string
	ContractAddr string
	ChainID      int64
	PrivateKey   string
	WriteTimeout time.Duration // hard commit deadline
	GasLimit     uint64
	RateLimit    float64
	Burst        int
}

// KafkaConfig tunes the wager-event publisher. Empty Brokers disables it.
type KafkaConfig struct {
	Brokers string
	Topic   string
}

// RiskConfig carries the tier thresholds as decimal strings.
type RiskConfig struct {
	ModerateThreshold string
	HighThreshold     string
	ExtremeThreshold  string
}

// DialogueConfig tunes the slot-filling engine.
type DialogueConfig struct {
	MaxRetries        int
	LargeBetThreshold string
}

// F1Config points at the reference sports-data API.
type F1Config struct {
	BaseURL   string
	RateLimit float64
	Burst     int
}

// Load reads the environment (and a best-effort .env) into a Config with
// development-friendly defaults.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Env:          getEnv("ENV", "local"),
		ServiceName:  getEnv("SERVICE_NAME", "betd"),
		HTTPAddr:     getEnv("HTTP_ADDR", ":8090"),
		ShareBaseURL: getEnv("SHARE_BASE_URL", "https://daredevil.bet"),

		LLM: LLMConfig{
			Provider:       getEnv("LLM_PROVIDER", "none"),
			Model:          getEnv("LLM_MODEL", "gpt-4o-mini"),
			APIKey:         getEnv("LLM_API_KEY", ""),
			BaseURL:        getEnv("LLM_BASE_URL", ""),
			ExtractTimeout: getDuration("LLM_EXTRACT_TIMEOUT", 4*time.Second),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getInt("REDIS_DB", 0),
			TTL:      getDuration("CACHE_TTL", time.Hour),
		},
		Minio: MinioConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", "daredevil-wagers"),
			UseSSL:    getBool("MINIO_USE_SSL", false),
		},
		Ledger: LedgerConfig{
			RPCURL:       getEnv("LEDGER_RPC_URL", ""),
			ContractAddr: getEnv("LEDGER_CONTRACT", ""),
			ChainID:      int64(getInt("LEDGER_CHAIN_ID", 1116)),
			PrivateKey:   getEnv("LEDGER_PRIVATE_KEY", ""),
			WriteTimeout: getDuration("LEDGER_WRITE_TIMEOUT", 60*time.Second),
			GasLimit:     uint64(getInt("LEDGER_GAS_LIMIT", 500000)),
			RateLimit:    getFloat("LEDGER_RATE_LIMIT", 2),
			Burst:        getInt("LEDGER_RATE_BURST", 1),
		},
		Kafka: KafkaConfig{
			Brokers: getEnv("KAFKA_BROKERS", ""),
			Topic:   getEnv("KAFKA_TOPIC_WAGERS", "wager.committed"),
		},
		Risk: RiskConfig{
			ModerateThreshold: getEnv("RISK_MODERATE", "100"),
			HighThreshold:     getEnv("RISK_HIGH", "500"),
			ExtremeThreshold:  getEnv("RISK_EXTREME", "1000"),
		},
		Dialogue: DialogueConfig{
			MaxRetries:        getInt("DIALOGUE_MAX_RETRIES", 3),
			LargeBetThreshold: getEnv("DIALOGUE_LARGE_BET", "500"),
		},
		F1: F1Config{
			BaseURL:   getEnv("F1_API_URL", ""),
			RateLimit: getFloat("F1_RATE_LIMIT", 5),
			Burst:     getInt("F1_RATE_BURST", 2),
		},
	}
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
