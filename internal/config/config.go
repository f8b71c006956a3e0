package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort  string
	MetricsPort string

	BackendBaseURL      string
	BackendServiceToken string
	BackendTimeout      time.Duration

	PaymentTimeout       time.Duration
	EstimateTickInterval time.Duration
	RateCacheSize        int
	RateCacheTTL         time.Duration

	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSslMode  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SubmitLockTTL time.Duration

	AWSRegion             string
	PaymentEventsQueueURL string
	BookingEventsQueueURL string
	IoTMQTTEndpoint       string
	ExitBarrierThing      string

	JWTSecret string

	LogLevel  string
	LogFormat string
}

func Load() *Config {
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		log.Printf("warning: could not load .env file: %v", err)
	}

	return &Config{
		ServerPort:  getEnv("SERVER_PORT", "8081"),
		MetricsPort: getEnv("METRICS_PORT", "9091"),

		BackendBaseURL:      getEnv("BACKEND_BASE_URL", "http://localhost:8080/api"),
		BackendServiceToken: getEnv("BACKEND_SERVICE_TOKEN", ""),
		BackendTimeout:      getDuration("BACKEND_TIMEOUT", 20*time.Second),

		PaymentTimeout:       getDuration("PAYMENT_TIMEOUT", 15*time.Second),
		EstimateTickInterval: getDuration("ESTIMATE_TICK_INTERVAL", 30*time.Second),
		RateCacheSize:        getInt("RATE_CACHE_SIZE", 64),
		RateCacheTTL:         getDuration("RATE_CACHE_TTL", 5*time.Minute),

		DBHost:     getEnv("DB_HOST", ""),
		DBPort:     getInt("DB_PORT", 5432),
		DBUser:     getEnv("DB_USER", "parking"),
		DBPassword: getEnv("DB_PASSWORD", "parking"),
		DBName:     getEnv("DB_NAME", "parking_checkout"),
		DBSslMode:  getEnv("DB_SSLMODE", "disable"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getInt("REDIS_DB", 0),
		SubmitLockTTL: getDuration("SUBMIT_LOCK_TTL", 30*time.Second),

		AWSRegion:             getEnv("AWS_REGION", "ap-southeast-1"),
		PaymentEventsQueueURL: getEnv("PAYMENT_EVENTS_QUEUE_URL", ""),
		BookingEventsQueueURL: getEnv("BOOKING_EVENTS_QUEUE_URL", ""),
		IoTMQTTEndpoint:       getEnv("IOT_MQTT_ENDPOINT", ""),
		ExitBarrierThing:      getEnv("EXIT_BARRIER_THING", ""),

		JWTSecret: getEnv("JWT_SECRET", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}
}

// LedgerEnabled reports whether a database is configured for payment attempts.
func (c *Config) LedgerEnabled() bool {
	return c.DBHost != "" && c.DBName != ""
}

func getEnv(key string, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

// getDuration accepts Go duration strings ("15s") or a bare number of seconds.
func getDuration(key string, fallback time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
