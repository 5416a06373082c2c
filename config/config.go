package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"

	MQBackendNone     = ""
	MQBackendRabbitMQ = "rabbitmq"
	MQBackendPubSub   = "pubsub"
)

type Config struct {
	ServerPort int
	Env        string
	LogLevel   string
	Database   DatabaseConfig
	JWT        JWTConfig
	SMTP       SMTPConfig
	MQ         MQConfig
}

type DatabaseConfig struct {
	Driver   string
	URL      string
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	UseSSL   bool

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type JWTConfig struct {
	Secret         string
	Algorithm      string
	AccessTokenTTL time.Duration
}

type SMTPConfig struct {
	Server   string
	Port     int
	Username string
	Password string
	From     string
	UseTLS   bool
	UseSSL   bool
}

type MQConfig struct {
	Backend  string
	Channel  string
	RabbitMQ RabbitMQConfig
	PubSub   PubSubConfig
}

type RabbitMQConfig struct {
	URL             string
	PrefetchCount   int
	QueueDurable    bool
	QueueAutoDelete bool
}

type PubSubConfig struct {
	ProjectID          string
	CredentialsFile    string
	SubscriptionSuffix string
}

func LoadConfig() Config {
	if os.Getenv("ENV") == "dev" {
		godotenv.Load()
	}

	dbConfig := DatabaseConfig{
		Driver:   getEnv("DB_DRIVER", DriverPostgres),
		URL:      getEnv("DATABASE_URL", ""),
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnvInt("DB_PORT", 5432),
		User:     getEnv("DB_USER", "tasktrack"),
		Password: getEnv("DB_PASSWORD", "password"),
		DBName:   getEnv("DB_NAME", "tasktrack_db"),
		UseSSL:   getEnvBool("DB_USE_SSL", false),

		MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: time.Duration(getEnvInt("DB_CONN_MAX_LIFETIME_MINUTES", 30)) * time.Minute,
	}

	jwtConfig := JWTConfig{
		Secret:         strings.TrimSpace(getEnv("JWT_SECRET", "")),
		Algorithm:      getEnv("JWT_ALGORITHM", "HS256"),
		AccessTokenTTL: time.Duration(getEnvInt("ACCESS_TOKEN_EXPIRE_MINUTES", 30)) * time.Minute,
	}

	smtpConfig := SMTPConfig{
		Server:   getEnv("SMTP_SERVER", ""),
		Port:     getEnvInt("SMTP_PORT", 587),
		Username: getEnv("SMTP_USERNAME", ""),
		Password: getEnv("SMTP_PASSWORD", ""),
		From:     getEnv("SMTP_FROM", ""),
		UseTLS:   getEnvBool("SMTP_USE_TLS", true),
		UseSSL:   getEnvBool("SMTP_USE_SSL", false),
	}
	if smtpConfig.From == "" {
		smtpConfig.From = smtpConfig.Username
	}

	mqConfig := MQConfig{
		Backend: strings.ToLower(getEnv("MQ_BACKEND", MQBackendNone)),
		Channel: getEnv("MQ_TASK_CHANNEL", "task-events"),
		RabbitMQ: RabbitMQConfig{
			URL:             getEnv("RABBITMQ_URL", ""),
			PrefetchCount:   getEnvInt("RABBITMQ_PREFETCH", 10),
			QueueDurable:    getEnvBool("RABBITMQ_QUEUE_DURABLE", true),
			QueueAutoDelete: getEnvBool("RABBITMQ_QUEUE_AUTO_DELETE", false),
		},
		PubSub: PubSubConfig{
			ProjectID:          getEnv("PUBSUB_PROJECT_ID", ""),
			CredentialsFile:    getEnv("PUBSUB_CREDENTIALS_FILE", ""),
			SubscriptionSuffix: getEnv("PUBSUB_SUBSCRIPTION_SUFFIX", "-sub"),
		},
	}

	return Config{
		ServerPort: getEnvInt("SERVER_PORT", 8080),
		Env:        getEnv("ENV", "prod"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		Database:   dbConfig,
		JWT:        jwtConfig,
		SMTP:       smtpConfig,
		MQ:         mqConfig,
	}
}

// Validate reports every required setting that is missing or malformed.
func (c Config) Validate() error {
	var errs []error
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.JWT.AccessTokenTTL <= 0 {
		errs = append(errs, errors.New("ACCESS_TOKEN_EXPIRE_MINUTES must be positive"))
	}
	switch c.Database.Driver {
	case DriverPostgres, DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver))
	}
	switch c.MQ.Backend {
	case MQBackendNone:
	case MQBackendRabbitMQ:
		if strings.TrimSpace(c.MQ.RabbitMQ.URL) == "" {
			errs = append(errs, errors.New("RABBITMQ_URL is required for the rabbitmq backend"))
		}
	case MQBackendPubSub:
		if strings.TrimSpace(c.MQ.PubSub.ProjectID) == "" {
			errs = append(errs, errors.New("PUBSUB_PROJECT_ID is required for the pubsub backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported MQ_BACKEND %q", c.MQ.Backend))
	}
	return errors.Join(errs...)
}

// IsDev reports whether the process runs in the local development profile.
func (c Config) IsDev() bool {
	return c.Env == "dev"
}

// DSN returns the PostgreSQL connection URL. DATABASE_URL wins over the
// individual DB_* settings when set.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}

	sslmode := "disable"
	if d.UseSSL {
		sslmode = "require"
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		User:   url.UserPassword(d.User, d.Password),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", sslmode)
	u.RawQuery = q.Encode()
	return u.String()
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		value, err := strconv.Atoi(strings.TrimSpace(valueStr))
		if err != nil {
			return defaultValue
		}
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(key); exists {
		value, err := strconv.ParseBool(strings.TrimSpace(valueStr))
		if err != nil {
			return defaultValue
		}
		return value
	}
	return defaultValue
}
