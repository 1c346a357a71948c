package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrMissingAPIKey is returned when no OpenAQ credential is configured.
var ErrMissingAPIKey = errors.New("API key not found in environment variables")

type Config struct {
	AppEnv   string
	LogLevel slog.Level

	APIKey     string
	APIBaseURL string
	APITimeout time.Duration
	OutputPath string
	HTTPAddr   string
	CacheTTL   time.Duration

	// SQLitePath enables the run archive when non-empty.
	SQLitePath            string
	SQLiteMaxOpenConns    int
	SQLiteMaxIdleConns    int
	SQLiteConnMaxLifetime time.Duration

	// MQTTBroker enables MQTT publishing when non-empty.
	MQTTBroker      string
	MQTTPort        int
	MQTTClientID    string
	MQTTTopicPrefix string

	// KafkaBrokers enables the Kafka sink when non-empty.
	KafkaBrokers []string
	KafkaTopic   string
}

func (c Config) ArchiveEnabled() bool { return c.SQLitePath != "" }

func (c Config) MQTTEnabled() bool { return c.MQTTBroker != "" }

func (c Config) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }

// RequireAPIKey reports ErrMissingAPIKey for commands that call OpenAQ.
func (c Config) RequireAPIKey() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}

// LoadFromEnv reads every setting. The OpenAQ key is optional here because
// migrate does not need it; see RequireAPIKey.
func LoadFromEnv() (Config, error) {
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = "dev"
	}
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	logLevelStr := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if logLevelStr == "" {
		logLevelStr = "info"
	}
	level, err := parseLogLevel(logLevelStr)
	if err != nil {
		return Config{}, err
	}

	apiKey := strings.TrimSpace(os.Getenv("OPENAQ_API_KEY"))
	if apiKey == "" {
		// Name used by the web frontend's .env files.
		apiKey = strings.TrimSpace(os.Getenv("NEXT_PUBLIC_OPENAQ_API_KEY"))
	}

	apiBaseURL := strings.TrimRight(strings.TrimSpace(os.Getenv("OPENAQ_BASE_URL")), "/")
	if apiBaseURL == "" {
		apiBaseURL = "https://api.openaq.org/v3"
	}

	apiTimeout, err := durationFromEnv("OPENAQ_TIMEOUT", "0s")
	if err != nil {
		return Config{}, err
	}
	if apiTimeout < 0 {
		return Config{}, fmt.Errorf("OPENAQ_TIMEOUT must not be negative, got %v", apiTimeout)
	}

	outputPath := strings.TrimSpace(os.Getenv("OUTPUT_PATH"))
	if outputPath == "" {
		outputPath = "latest_measurements.json"
	}

	httpAddr := strings.TrimSpace(os.Getenv("HTTP_ADDR"))
	if httpAddr == "" {
		httpAddr = ":8080"
	}

	cacheTTL, err := durationFromEnv("CACHE_TTL", "24h")
	if err != nil {
		return Config{}, err
	}
	if cacheTTL < 0 {
		return Config{}, fmt.Errorf("CACHE_TTL must not be negative, got %v", cacheTTL)
	}

	sqlitePath := strings.TrimSpace(os.Getenv("SQLITE_PATH"))

	maxOpenConns, err := intFromEnv("DB_MAX_OPEN_CONNS", "1")
	if err != nil {
		return Config{}, err
	}
	maxIdleConns, err := intFromEnv("DB_MAX_IDLE_CONNS", "1")
	if err != nil {
		return Config{}, err
	}
	connMaxLifetime, err := durationFromEnv("DB_CONN_MAX_LIFETIME", "0s")
	if err != nil {
		return Config{}, err
	}

	mqttBroker := strings.TrimSpace(os.Getenv("MQTT_BROKER"))
	mqttPort, err := intFromEnv("MQTT_PORT", "1883")
	if err != nil {
		return Config{}, err
	}
	if mqttPort <= 0 || mqttPort > 65535 {
		return Config{}, fmt.Errorf("MQTT_PORT out of range: %d", mqttPort)
	}

	mqttClientID := strings.TrimSpace(os.Getenv("MQTT_CLIENT_ID"))
	if mqttClientID == "" {
		mqttClientID = "pollutionmap"
	}

	mqttTopicPrefix := strings.Trim(strings.TrimSpace(os.Getenv("MQTT_TOPIC_PREFIX")), "/")
	if mqttTopicPrefix == "" {
		mqttTopicPrefix = "airquality"
	}

	kafkaBrokers := splitList(os.Getenv("KAFKA_BROKERS"))
	kafkaTopic := strings.TrimSpace(os.Getenv("KAFKA_TOPIC"))
	if kafkaTopic == "" {
		kafkaTopic = "airquality.records"
	}

	return Config{
		AppEnv:                appEnv,
		LogLevel:              level,
		APIKey:                apiKey,
		APIBaseURL:            apiBaseURL,
		APITimeout:            apiTimeout,
		OutputPath:            outputPath,
		HTTPAddr:              httpAddr,
		CacheTTL:              cacheTTL,
		SQLitePath:            sqlitePath,
		SQLiteMaxOpenConns:    maxOpenConns,
		SQLiteMaxIdleConns:    maxIdleConns,
		SQLiteConnMaxLifetime: connMaxLifetime,
		MQTTBroker:            mqttBroker,
		MQTTPort:              mqttPort,
		MQTTClientID:          mqttClientID,
		MQTTTopicPrefix:       mqttTopicPrefix,
		KafkaBrokers:          kafkaBrokers,
		KafkaTopic:            kafkaTopic,
	}, nil
}

func intFromEnv(key, def string) (int, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		s = def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return n, nil
}

func durationFromEnv(key, def string) (time.Duration, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		s = def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
