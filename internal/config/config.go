package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Weather cache backends.
const (
	CacheBackendNone   = "none"
	CacheBackendRedis  = "redis"
	CacheBackendSQLite = "sqlite"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaSinkTopic   string
	KafkaGroupID     string
	HTTPAddr         string
	LogLevel         string
	LogFormat        string
	ShutdownTimeout  time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration
	TransformTimeout   time.Duration

	// Weather enrichment configuration.
	WeatherAPIKey        string
	WeatherEnabled       bool
	WeatherBaseURL       string
	WeatherLocation      string
	WeatherTimeout       time.Duration
	WeatherConcurrency   int
	WeatherRetryAttempts int
	WeatherRetryDelay    time.Duration
	WeatherCacheSize     int
	WeatherCacheBackend  string
	WeatherCacheTTL      time.Duration
	RedisAddr            string

	// Optional sinks and notifications.
	SQLitePath        string
	SQLiteSinkEnabled bool
	PostgresURL       string
	RabbitMQURL       string
	RabbitMQExchange  string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	transformTimeout, err := parsePositiveDuration("TRANSFORM_TIMEOUT", "2m")
	if err != nil {
		return nil, err
	}
	weatherTimeout, err := parsePositiveDuration("WEATHER_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	retryDelay, err := parseDuration("WEATHER_RETRY_DELAY", "2s")
	if err != nil {
		return nil, err
	}
	cacheTTL, err := parsePositiveDuration("WEATHER_CACHE_TTL", "720h")
	if err != nil {
		return nil, err
	}
	concurrency, err := parseInt("WEATHER_CONCURRENCY", 10, 1)
	if err != nil {
		return nil, err
	}
	attempts, err := parseInt("WEATHER_RETRY_ATTEMPTS", 3, 1)
	if err != nil {
		return nil, err
	}
	cacheSize, err := parseInt("WEATHER_CACHE_SIZE", 1000, 0)
	if err != nil {
		return nil, err
	}

	apiKey := os.Getenv("WEATHER_API_KEY")
	weatherEnabled := apiKey != ""
	if v := os.Getenv("WEATHER_ENABLED"); v != "" {
		weatherEnabled = v == "true"
	}

	cfg := &Config{
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "raw-deliveries"),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "enriched-deliveries"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "courier-delay-etl"),
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,
		TransformTimeout:   transformTimeout,

		WeatherAPIKey:        apiKey,
		WeatherEnabled:       weatherEnabled,
		WeatherBaseURL:       sharedcfg.EnvOrDefault("WEATHER_BASE_URL", "http://api.weatherapi.com/v1/history.json"),
		WeatherLocation:      sharedcfg.EnvOrDefault("WEATHER_LOCATION", "Paris"),
		WeatherTimeout:       weatherTimeout,
		WeatherConcurrency:   concurrency,
		WeatherRetryAttempts: attempts,
		WeatherRetryDelay:    retryDelay,
		WeatherCacheSize:     cacheSize,
		WeatherCacheBackend:  sharedcfg.EnvOrDefault("WEATHER_CACHE_BACKEND", CacheBackendNone),
		WeatherCacheTTL:      cacheTTL,
		RedisAddr:            sharedcfg.EnvOrDefault("REDIS_ADDR", "localhost:6379"),

		SQLitePath:        sharedcfg.EnvOrDefault("SQLITE_PATH", "output/courier.db"),
		SQLiteSinkEnabled: os.Getenv("SQLITE_SINK_ENABLED") == "true",
		PostgresURL:       os.Getenv("POSTGRES_URL"),
		RabbitMQURL:       os.Getenv("RABBITMQ_URL"),
		RabbitMQExchange:  sharedcfg.EnvOrDefault("RABBITMQ_EXCHANGE", "courier.etl"),
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaSourceTopic == "" {
		return nil, errors.New("KAFKA_SOURCE_TOPIC is required")
	}
	if cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required")
	}
	if cfg.WeatherEnabled && cfg.WeatherAPIKey == "" {
		return nil, errors.New("WEATHER_ENABLED is true but WEATHER_API_KEY is not set")
	}
	switch cfg.WeatherCacheBackend {
	case CacheBackendNone, CacheBackendRedis, CacheBackendSQLite:
	default:
		return nil, fmt.Errorf("invalid WEATHER_CACHE_BACKEND %q", cfg.WeatherCacheBackend)
	}

	return cfg, nil
}

func parseDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, fallback))
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveDuration(key, fallback string) (time.Duration, error) {
	d, err := parseDuration(key, fallback)
	if err != nil || d == 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseInt(key string, fallback, minimum int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < minimum {
		return 0, fmt.Errorf("invalid %s: must be an integer >= %d", key, minimum)
	}
	return n, nil
}
