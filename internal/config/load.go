package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. INKWELL_SERVER_PORT.
const EnvPrefix = "INKWELL"

// ConfigFileEnv names an explicit configuration file to read.
const ConfigFileEnv = "INKWELL_CONFIG_FILE"

// keys without defaults still have to be known to viper for env lookup
var envOnlyKeys = []string{
	"database.url",
	"auth.jwt_secret",
	"llm.gemini_api_key",
	"queue.redis_addr",
	"queue.redis_password",
	"events.kafka_brokers",
	"events.kafka_topic",
}

// Load configuration from environment variables and optionally a config file.
// Environment variables take precedence over values from the file.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path := os.Getenv(ConfigFileEnv); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envOnlyKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate runs struct validation over a configuration.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)

	v.SetDefault("auth.token_lifetime_minutes", 60)

	v.SetDefault("llm.default_model", "gemini")
	v.SetDefault("llm.gemini_model", "gemini-2.0-flash")
	v.SetDefault("llm.ollama_url", "http://localhost:11434")
	v.SetDefault("llm.ollama_model", "llama3.1")
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.retry_delay_seconds", 2)
	v.SetDefault("llm.request_timeout_seconds", 120)
	v.SetDefault("llm.image_model", "imagen-3.0-generate-002")
	v.SetDefault("llm.image_dir", "./data/images")
	v.SetDefault("llm.image_base_url", "/images")

	v.SetDefault("task.worker_count", 2)
	v.SetDefault("task.queue_size", 100)
	v.SetDefault("task.pacing_delay_ms", 1500)
	v.SetDefault("task.stuck_job_age_minutes", 30)
	v.SetDefault("task.stuck_job_check_interval_minutes", 5)
	v.SetDefault("task.max_attempts", 5)
	v.SetDefault("task.retry_delay_seconds", 30)

	v.SetDefault("queue.driver", "memory")
	v.SetDefault("queue.redis_db", 0)
	v.SetDefault("queue.key_prefix", "inkwell:jobs")

	v.SetDefault("ledger.overage_policy", "debit")
}
