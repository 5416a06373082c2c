package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	cfg := LoadConfig()

	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "HS256", cfg.JWT.Algorithm)
	assert.Equal(t, 30*time.Minute, cfg.JWT.AccessTokenTTL)
	assert.Equal(t, "task-events", cfg.MQ.Channel)
	assert.True(t, cfg.SMTP.UseTLS)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("JWT_ALGORITHM", "HS512")
	t.Setenv("ACCESS_TOKEN_EXPIRE_MINUTES", "5")
	t.Setenv("SMTP_SERVER", "smtp.example.com")
	t.Setenv("SMTP_PORT", "2525")
	t.Setenv("SMTP_USERNAME", "mailer@example.com")
	t.Setenv("SMTP_USE_SSL", "true")
	t.Setenv("DB_PORT", "not-a-number")

	cfg := LoadConfig()

	assert.Equal(t, 9090, cfg.ServerPort)
	assert.Equal(t, "HS512", cfg.JWT.Algorithm)
	assert.Equal(t, 5*time.Minute, cfg.JWT.AccessTokenTTL)
	assert.Equal(t, "smtp.example.com", cfg.SMTP.Server)
	assert.Equal(t, 2525, cfg.SMTP.Port)
	assert.Equal(t, "mailer@example.com", cfg.SMTP.From)
	assert.True(t, cfg.SMTP.UseSSL)
	assert.Equal(t, 5432, cfg.Database.Port)
}

func TestValidate(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DB_DRIVER", "mysql")
	t.Setenv("MQ_BACKEND", "rabbitmq")

	err := LoadConfig().Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET is required")
	assert.Contains(t, err.Error(), `unsupported DB_DRIVER "mysql"`)
	assert.Contains(t, err.Error(), "RABBITMQ_URL is required")
}

func TestDSN(t *testing.T) {
	db := DatabaseConfig{
		Host:     "db",
		Port:     5433,
		User:     "task",
		Password: "p@ss",
		DBName:   "tasks",
	}
	assert.Equal(t, "postgres://task:p%40ss@db:5433/tasks?sslmode=disable", db.DSN())

	db.UseSSL = true
	assert.Contains(t, db.DSN(), "sslmode=require")

	db.URL = "postgres://override/db"
	assert.Equal(t, "postgres://override/db", db.DSN())
}
