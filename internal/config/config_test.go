package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	defaultBroker  = "localhost:9092"
	testWeatherKey = "wk-test-key"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{defaultBroker}, cfg.KafkaBrokers)
	assert.Equal(t, "raw-deliveries", cfg.KafkaSourceTopic)
	assert.Equal(t, "enriched-deliveries", cfg.KafkaSinkTopic)
	assert.Equal(t, "courier-delay-etl", cfg.KafkaGroupID)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, 500*time.Millisecond, cfg.BatchFlushInterval)
	assert.Equal(t, 2*time.Minute, cfg.TransformTimeout)

	assert.False(t, cfg.WeatherEnabled)
	assert.Empty(t, cfg.WeatherAPIKey)
	assert.Equal(t, "http://api.weatherapi.com/v1/history.json", cfg.WeatherBaseURL)
	assert.Equal(t, "Paris", cfg.WeatherLocation)
	assert.Equal(t, 10*time.Second, cfg.WeatherTimeout)
	assert.Equal(t, 10, cfg.WeatherConcurrency)
	assert.Equal(t, 3, cfg.WeatherRetryAttempts)
	assert.Equal(t, 2*time.Second, cfg.WeatherRetryDelay)
	assert.Equal(t, 1000, cfg.WeatherCacheSize)
	assert.Equal(t, CacheBackendNone, cfg.WeatherCacheBackend)
	assert.Equal(t, 720*time.Hour, cfg.WeatherCacheTTL)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)

	assert.Equal(t, "output/courier.db", cfg.SQLitePath)
	assert.False(t, cfg.SQLiteSinkEnabled)
	assert.Empty(t, cfg.PostgresURL)
	assert.Empty(t, cfg.RabbitMQURL)
	assert.Equal(t, "courier.etl", cfg.RabbitMQExchange)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_SOURCE_TOPIC", "custom-source")
	t.Setenv("KAFKA_SINK_TOPIC", "custom-sink")
	t.Setenv("KAFKA_GROUP_ID", "custom-group")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("BATCH_SIZE", "100")
	t.Setenv("BATCH_FLUSH_INTERVAL", "1s")
	t.Setenv("TRANSFORM_TIMEOUT", "30s")
	t.Setenv("WEATHER_API_KEY", testWeatherKey)
	t.Setenv("WEATHER_LOCATION", "Lyon")
	t.Setenv("WEATHER_TIMEOUT", "3s")
	t.Setenv("WEATHER_CONCURRENCY", "4")
	t.Setenv("WEATHER_RETRY_ATTEMPTS", "5")
	t.Setenv("WEATHER_RETRY_DELAY", "0s")
	t.Setenv("WEATHER_CACHE_SIZE", "0")
	t.Setenv("WEATHER_CACHE_BACKEND", "redis")
	t.Setenv("WEATHER_CACHE_TTL", "1h")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("SQLITE_PATH", "/tmp/c.db")
	t.Setenv("SQLITE_SINK_ENABLED", "true")
	t.Setenv("POSTGRES_URL", "postgres://etl@db/courier")
	t.Setenv("RABBITMQ_URL", "amqp://guest:guest@mq:5672/")
	t.Setenv("RABBITMQ_EXCHANGE", "runs")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-source", cfg.KafkaSourceTopic)
	assert.Equal(t, "custom-sink", cfg.KafkaSinkTopic)
	assert.Equal(t, "custom-group", cfg.KafkaGroupID)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 1*time.Second, cfg.BatchFlushInterval)
	assert.Equal(t, 30*time.Second, cfg.TransformTimeout)
	assert.True(t, cfg.WeatherEnabled)
	assert.Equal(t, testWeatherKey, cfg.WeatherAPIKey)
	assert.Equal(t, "Lyon", cfg.WeatherLocation)
	assert.Equal(t, 3*time.Second, cfg.WeatherTimeout)
	assert.Equal(t, 4, cfg.WeatherConcurrency)
	assert.Equal(t, 5, cfg.WeatherRetryAttempts)
	assert.Equal(t, time.Duration(0), cfg.WeatherRetryDelay)
	assert.Equal(t, 0, cfg.WeatherCacheSize)
	assert.Equal(t, CacheBackendRedis, cfg.WeatherCacheBackend)
	assert.Equal(t, time.Hour, cfg.WeatherCacheTTL)
	assert.Equal(t, "redis:6379", cfg.RedisAddr)
	assert.Equal(t, "/tmp/c.db", cfg.SQLitePath)
	assert.True(t, cfg.SQLiteSinkEnabled)
	assert.Equal(t, "postgres://etl@db/courier", cfg.PostgresURL)
	assert.Equal(t, "amqp://guest:guest@mq:5672/", cfg.RabbitMQURL)
	assert.Equal(t, "runs", cfg.RabbitMQExchange)
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_InvalidBatchSize(t *testing.T) {
	t.Setenv("BATCH_SIZE", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BATCH_SIZE")
}

func TestLoad_InvalidBatchFlushInterval(t *testing.T) {
	t.Setenv("BATCH_FLUSH_INTERVAL", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BATCH_FLUSH_INTERVAL")
}

func TestLoad_InvalidDurations(t *testing.T) {
	for _, key := range []string{"TRANSFORM_TIMEOUT", "WEATHER_TIMEOUT", "WEATHER_RETRY_DELAY", "WEATHER_CACHE_TTL"} {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, "bad")
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestLoad_ZeroTransformTimeout(t *testing.T) {
	t.Setenv("TRANSFORM_TIMEOUT", "0s")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TRANSFORM_TIMEOUT")
}

func TestLoad_InvalidIntegers(t *testing.T) {
	tests := map[string]string{
		"WEATHER_CONCURRENCY":    "0",
		"WEATHER_RETRY_ATTEMPTS": "many",
		"WEATHER_CACHE_SIZE":     "-1",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestLoad_InvalidCacheBackend(t *testing.T) {
	t.Setenv("WEATHER_CACHE_BACKEND", "memcached")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WEATHER_CACHE_BACKEND")
}

func TestLoad_WeatherEnabledWithoutKey(t *testing.T) {
	t.Setenv("WEATHER_ENABLED", "true")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WEATHER_API_KEY")
}

func TestLoad_WeatherKeyImpliesEnabled(t *testing.T) {
	t.Setenv("WEATHER_API_KEY", testWeatherKey)
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.WeatherEnabled)
}

func TestLoad_WeatherExplicitlyDisabled(t *testing.T) {
	t.Setenv("WEATHER_API_KEY", testWeatherKey)
	t.Setenv("WEATHER_ENABLED", "false")
	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.WeatherEnabled)
}
