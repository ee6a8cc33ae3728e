package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth"     validate:"required"`
	LLM      LLMConfig      `mapstructure:"llm"      validate:"required"`
	Task     TaskConfig     `mapstructure:"task"     validate:"required"`
	Queue    QueueConfig    `mapstructure:"queue"    validate:"required"`
	Events   EventsConfig   `mapstructure:"events"`
	Ledger   LedgerConfig   `mapstructure:"ledger"   validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error fatal"`
}

// DatabaseConfig selects and configures the record store.
// The memory driver keeps everything in process and is meant for local runs.
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"         validate:"required,oneof=memory postgres"`
	URL          string `mapstructure:"url"            validate:"required_if=Driver postgres"`
	MaxOpenConns int    `mapstructure:"max_open_conns" validate:"gte=1"`
	MaxIdleConns int    `mapstructure:"max_idle_conns" validate:"gte=0"`
}

// AuthConfig contains the settings used to validate bearer tokens.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret"             validate:"required,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"required,gt=0"`
}

// LLMConfig contains generation backend settings.
type LLMConfig struct {
	DefaultModel      string `mapstructure:"default_model"       validate:"required,oneof=gemini ollama"`
	GeminiAPIKey      string `mapstructure:"gemini_api_key"      validate:"required_if=DefaultModel gemini"`
	GeminiModel       string `mapstructure:"gemini_model"        validate:"required"`
	OllamaURL         string `mapstructure:"ollama_url"          validate:"omitempty,url"`
	OllamaModel       string `mapstructure:"ollama_model"`
	MaxRetries        int    `mapstructure:"max_retries"         validate:"gte=0,lte=10"`
	RetryDelaySeconds int    `mapstructure:"retry_delay_seconds" validate:"gte=1,lte=60"`
	RequestTimeoutSec int    `mapstructure:"request_timeout_seconds" validate:"gte=1"`
	ImageModel        string `mapstructure:"image_model"`
	ImageDir          string `mapstructure:"image_dir"`
	ImageBaseURL      string `mapstructure:"image_base_url"`
}

// TaskConfig contains worker pool settings.
type TaskConfig struct {
	WorkerCount                  int `mapstructure:"worker_count"                     validate:"required,gt=0"`
	QueueSize                    int `mapstructure:"queue_size"                       validate:"required,gt=0"`
	PacingDelayMs                int `mapstructure:"pacing_delay_ms"                  validate:"gte=0"`
	StuckJobAgeMinutes           int `mapstructure:"stuck_job_age_minutes"            validate:"required,gt=0"`
	StuckJobCheckIntervalMinutes int `mapstructure:"stuck_job_check_interval_minutes" validate:"required,gt=0"`
	MaxAttempts                  int `mapstructure:"max_attempts"                     validate:"required,gt=0"`
	RetryDelaySeconds            int `mapstructure:"retry_delay_seconds"              validate:"gte=0"`
}

// QueueConfig selects the job queue implementation.
type QueueConfig struct {
	Driver        string `mapstructure:"driver"         validate:"required,oneof=memory redis"`
	RedisAddr     string `mapstructure:"redis_addr"     validate:"required_if=Driver redis"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"       validate:"gte=0"`
	KeyPrefix     string `mapstructure:"key_prefix"     validate:"required"`
}

// EventsConfig configures publishing of job lifecycle events.
// Publishing is disabled when no brokers are configured.
type EventsConfig struct {
	KafkaBrokers []string `mapstructure:"kafka_brokers"`
	KafkaTopic   string   `mapstructure:"kafka_topic"   validate:"required_with=KafkaBrokers"`
}

// LedgerConfig contains credit settlement settings.
type LedgerConfig struct {
	// OveragePolicy decides what happens when actual cost exceeds the
	// reservation: "debit" charges the excess as far as the balance allows,
	// "cap" never charges more than was reserved.
	OveragePolicy string `mapstructure:"overage_policy" validate:"required,oneof=debit cap"`
}
