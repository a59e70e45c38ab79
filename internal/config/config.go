package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"wisefido-survival/internal/common/config"
)

// Config survival-signal service configuration
type Config struct {
	Database config.DatabaseConfig
	Redis    config.RedisConfig
	MQTT     config.MQTTConfig

	// DBEnabled turns the Postgres alert-event log on or off
	DBEnabled bool
	// MQTTEnabled turns the heartbeat consumer on or off
	MQTTEnabled bool

	Survival struct {
		FamilyIDs     []string      // families to monitor, from FAMILY_IDS
		PollInterval  time.Duration // recompute tick, default 60s
		Timezone      string        // wall-clock zone for sleep windows, default Asia/Seoul
		NotifyTimeout time.Duration // bound on one critical notification, default 10s

		Document struct {
			KeyPrefix     string // e.g. "survival:family:"
			ChangedSuffix string // e.g. ":changed"
		}

		AlertStream    string // Redis stream for critical transitions
		WebhookURL     string // optional push gateway endpoint
		HeartbeatTopic string // MQTT topic filter, e.g. "survival/+/heartbeat"
	}

	HTTP struct {
		Addr string
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load reads configuration from the environment
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Database = config.DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "postgres",
		Database: "owlrd",
		SSLMode:  "disable",
		MaxConns:    10,
		MaxIdle:     2,
		MaxLifetime: 30 * time.Minute,
		MaxIdleTime: 5 * time.Minute,
	}
	cfg.Database.LoadFromEnv("DB")
	cfg.DBEnabled = getEnv("DB_ENABLED", "true") == "true"

	cfg.Redis = config.RedisConfig{
		Addr:        "localhost:6379",
		PoolSize:    10,
		DialTimeout: 5 * time.Second,
		ReadTimeout: 3 * time.Second,
	}
	cfg.Redis.LoadFromEnv("REDIS")

	cfg.MQTT = config.MQTTConfig{
		Broker:   "tcp://localhost:1883",
		ClientID: "wisefido-survival",
		QoS:      1,
	}
	cfg.MQTT.LoadFromEnv("MQTT")
	cfg.MQTTEnabled = getEnv("MQTT_ENABLED", "false") == "true"

	cfg.Survival.FamilyIDs = splitList(getEnv("FAMILY_IDS", ""))
	cfg.Survival.PollInterval = time.Duration(getEnvInt("SURVIVAL_POLL_INTERVAL", 60)) * time.Second
	cfg.Survival.Timezone = getEnv("SURVIVAL_TIMEZONE", "Asia/Seoul")
	cfg.Survival.NotifyTimeout = time.Duration(getEnvInt("SURVIVAL_NOTIFY_TIMEOUT", 10)) * time.Second
	cfg.Survival.Document.KeyPrefix = getEnv("SURVIVAL_DOC_PREFIX", "survival:family:")
	cfg.Survival.Document.ChangedSuffix = getEnv("SURVIVAL_CHANGED_SUFFIX", ":changed")
	cfg.Survival.AlertStream = getEnv("SURVIVAL_ALERT_STREAM", "survival:alerts")
	cfg.Survival.WebhookURL = getEnv("SURVIVAL_WEBHOOK_URL", "")
	cfg.Survival.HeartbeatTopic = getEnv("SURVIVAL_HEARTBEAT_TOPIC", "survival/+/heartbeat")

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8090")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

// Location resolves Survival.Timezone, falling back to KST
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Survival.Timezone)
	if err != nil {
		return time.FixedZone("KST", 9*60*60)
	}
	return loc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil || v <= 0 {
		return defaultValue
	}
	return v
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
