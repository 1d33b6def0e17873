package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort    int
	StaticDir     string
	MaxUploadSize int64
	Mongo         MongoConfig
	Session       SessionConfig
	OpenAI        OpenAIConfig
	Storage       StorageConfig
	MQ            MQConfig
	Log           LogConfig
}

type MongoConfig struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
	MaxPoolSize    uint64
}

type SessionConfig struct {
	Secret       string
	TTL          time.Duration
	SecureCookie bool
}

// OpenAIConfig configures the chatbot upstream. An empty APIKey disables the chatbot.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

type StorageConfig struct {
	// Backend is "minio", "gcs" or empty for no image storage.
	Backend   string
	PublicURL string
	Minio     MinioConfig
	GCS       GCSConfig
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type GCSConfig struct {
	Bucket          string
	ProjectID       string
	CredentialsFile string
}

type MQConfig struct {
	// Backend is "rabbitmq", "pubsub" or empty to handle events inline.
	Backend  string
	RabbitMQ RabbitMQConfig
	PubSub   PubSubConfig
}

type RabbitMQConfig struct {
	URL             string
	QueueDurable    bool
	QueueAutoDelete bool
	PrefetchCount   int
}

type PubSubConfig struct {
	ProjectID          string
	CredentialsFile    string
	SubscriptionSuffix string
}

type LogConfig struct {
	Level  string
	Format string
}

func LoadConfig() Config {
	if os.Getenv("ENV") == "dev" {
		godotenv.Load()
	}

	return Config{
		ServerPort:    getEnvInt("SERVER_PORT", 5004),
		StaticDir:     getEnv("STATIC_DIR", "static"),
		MaxUploadSize: int64(getEnvInt("MAX_UPLOAD_SIZE", 10<<20)),
		Mongo: MongoConfig{
			URI:            strings.TrimSpace(getEnv("MONGO_URI", "")),
			Database:       getEnv("MONGO_DATABASE", "O2A"),
			ConnectTimeout: getEnvDuration("MONGO_CONNECT_TIMEOUT", 10*time.Second),
			MaxPoolSize:    uint64(getEnvInt("MONGO_MAX_POOL_SIZE", 50)),
		},
		Session: SessionConfig{
			Secret:       strings.TrimSpace(getEnv("SESSION_SECRET", "")),
			TTL:          getEnvDuration("SESSION_TTL", 24*time.Hour),
			SecureCookie: getEnvBool("SESSION_SECURE_COOKIE", false),
		},
		OpenAI: OpenAIConfig{
			APIKey:  strings.TrimSpace(getEnv("OPENAI_API_KEY", "")),
			Model:   getEnv("OPENAI_MODEL", "gpt-3.5-turbo"),
			BaseURL: getEnv("OPENAI_BASE_URL", ""),
			Timeout: getEnvDuration("OPENAI_TIMEOUT", 30*time.Second),
		},
		Storage: StorageConfig{
			Backend:   strings.ToLower(getEnv("STORAGE_BACKEND", "")),
			PublicURL: getEnv("STORAGE_PUBLIC_URL", ""),
			Minio: MinioConfig{
				Endpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
				AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
				SecretKey: getEnv("MINIO_SECRET_KEY", ""),
				Bucket:    getEnv("MINIO_BUCKET", "recipe-images"),
				UseSSL:    getEnvBool("MINIO_USE_SSL", false),
			},
			GCS: GCSConfig{
				Bucket:          getEnv("GCS_BUCKET", ""),
				ProjectID:       getEnv("GCS_PROJECT_ID", ""),
				CredentialsFile: getEnv("GCS_CREDENTIALS_FILE", ""),
			},
		},
		MQ: MQConfig{
			Backend: strings.ToLower(getEnv("MQ_BACKEND", "")),
			RabbitMQ: RabbitMQConfig{
				URL:             getEnv("RABBITMQ_URL", ""),
				QueueDurable:    getEnvBool("RABBITMQ_QUEUE_DURABLE", true),
				QueueAutoDelete: getEnvBool("RABBITMQ_QUEUE_AUTO_DELETE", false),
				PrefetchCount:   getEnvInt("RABBITMQ_PREFETCH", 10),
			},
			PubSub: PubSubConfig{
				ProjectID:          getEnv("PUBSUB_PROJECT_ID", ""),
				CredentialsFile:    getEnv("PUBSUB_CREDENTIALS_FILE", ""),
				SubscriptionSuffix: getEnv("PUBSUB_SUBSCRIPTION_SUFFIX", "-sub"),
			},
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}
}

// Validate reports configuration that must be supplied per deployment.
func (c Config) Validate() error {
	var errs []error
	if c.Mongo.URI == "" {
		errs = append(errs, errors.New("MONGO_URI is required"))
	}
	if c.Session.Secret == "" {
		errs = append(errs, errors.New("SESSION_SECRET is required"))
	}
	switch c.Storage.Backend {
	case "", "minio", "gcs":
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_BACKEND %q", c.Storage.Backend))
	}
	switch c.MQ.Backend {
	case "", "rabbitmq", "pubsub":
	default:
		errs = append(errs, fmt.Errorf("unknown MQ_BACKEND %q", c.MQ.Backend))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		if value, err := strconv.Atoi(strings.TrimSpace(valueStr)); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(key); exists {
		if value, err := strconv.ParseBool(strings.TrimSpace(valueStr)); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valueStr, exists := os.LookupEnv(key); exists {
		if value, err := time.ParseDuration(strings.TrimSpace(valueStr)); err == nil {
			return value
		}
	}
	return defaultValue
}
