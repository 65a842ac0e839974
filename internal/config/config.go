package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBUser  string
	DBPass  string
	DBHost  string
	DBPort  string
	DBName  string
	SSLMode string

	RedisHost string
	RedisPort string

	NatsHost string
	NatsPort string

	ApiPort string

	OpenAIKey     string
	OpenAIBaseURL string
	OpenAIModel   string

	ReplicateToken   string
	ReplicateBaseURL string

	StripeKey           string
	StripeWebhookSecret string

	JobPollInterval    time.Duration
	JobPollMaxAttempts int
}

// New loads and validates configuration from environment variables.
// A .env file is honoured when present, the way local development runs it.
func New() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DBUser:  os.Getenv("CREDITGATE_POSTGRES_USER"),
		DBPass:  os.Getenv("CREDITGATE_POSTGRES_PASSWORD"),
		DBHost:  os.Getenv("CREDITGATE_POSTGRES_HOST"),
		DBPort:  os.Getenv("CREDITGATE_POSTGRES_PORT"),
		DBName:  os.Getenv("CREDITGATE_POSTGRES_DB"),
		SSLMode: os.Getenv("CREDITGATE_POSTGRES_SSLMODE"),

		RedisHost: os.Getenv("CREDITGATE_REDIS_HOST"),
		RedisPort: os.Getenv("CREDITGATE_REDIS_PORT"),

		NatsHost: os.Getenv("CREDITGATE_NATS_HOST"),
		NatsPort: os.Getenv("CREDITGATE_NATS_PORT"),

		ApiPort: os.Getenv("CREDITGATE_API_PORT"),

		OpenAIKey:     os.Getenv("CREDITGATE_OPENAI_API_KEY"),
		OpenAIBaseURL: os.Getenv("CREDITGATE_OPENAI_BASE_URL"),
		OpenAIModel:   os.Getenv("CREDITGATE_OPENAI_MODEL"),

		ReplicateToken:   os.Getenv("CREDITGATE_REPLICATE_TOKEN"),
		ReplicateBaseURL: os.Getenv("CREDITGATE_REPLICATE_BASE_URL"),

		StripeKey:           os.Getenv("CREDITGATE_STRIPE_KEY"),
		StripeWebhookSecret: os.Getenv("CREDITGATE_STRIPE_WEBHOOK_SECRET"),

		JobPollInterval:    getEnvDuration("CREDITGATE_JOB_POLL_INTERVAL", time.Second),
		JobPollMaxAttempts: getEnvInt("CREDITGATE_JOB_POLL_MAX_ATTEMPTS", 20),
	}

	// Required: database
	if cfg.DBUser == "" || cfg.DBHost == "" || cfg.DBName == "" || cfg.SSLMode == "" {
		return nil, fmt.Errorf("missing required env for database: CREDITGATE_POSTGRES_USER/HOST/DB/SSLMODE")
	}

	// Required: redis
	if cfg.RedisHost == "" || cfg.RedisPort == "" {
		return nil, fmt.Errorf("missing required env for redis: CREDITGATE_REDIS_HOST/PORT")
	}

	// Required: nats
	if cfg.NatsHost == "" || cfg.NatsPort == "" {
		return nil, fmt.Errorf("missing required env for nats: CREDITGATE_NATS_HOST/PORT")
	}

	// Required: providers and payments
	if cfg.OpenAIKey == "" {
		return nil, fmt.Errorf("missing required env: CREDITGATE_OPENAI_API_KEY")
	}
	if cfg.ReplicateToken == "" {
		return nil, fmt.Errorf("missing required env: CREDITGATE_REPLICATE_TOKEN")
	}
	if cfg.StripeKey == "" || cfg.StripeWebhookSecret == "" {
		return nil, fmt.Errorf("missing required env: CREDITGATE_STRIPE_KEY/WEBHOOK_SECRET")
	}

	if cfg.ApiPort == "" {
		cfg.ApiPort = "8080"
	}
	if cfg.JobPollMaxAttempts <= 0 {
		cfg.JobPollMaxAttempts = 20
	}

	return cfg, nil
}

func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPass, c.DBHost, c.DBPort, c.DBName, c.SSLMode)
}

func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

func (c *Config) NatsAddr() string {
	return fmt.Sprintf("nats://%s:%s", c.NatsHost, c.NatsPort)
}

func (c *Config) ApiAddr() string {
	return ":" + c.ApiPort
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var intVal int
	if _, err := fmt.Sscanf(val, "%d", &intVal); err != nil {
		return defaultVal
	}
	return intVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}
