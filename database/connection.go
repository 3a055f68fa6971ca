package database

import (
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Ananth-NQI/intake-backend/internal/config"
)

// socketDir is where Cloud Run mounts Cloud SQL unix sockets
const socketDir = "/cloudsql"

// DSN builds the Postgres connection string. With an instance connection name it
// targets the Cloud SQL socket, otherwise TCP.
func DSN(cfg config.DatabaseConfig) string {
	user := cfg.User
	if user == "" {
		user = "postgres"
	}

	if cfg.InstanceConnectionName != "" {
		return fmt.Sprintf("host=%s/%s user=%s password=%s dbname=%s sslmode=disable",
			socketDir, cfg.InstanceConnectionName, user, cfg.Password, cfg.Name)
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		cfg.Host, user, cfg.Password, cfg.Name, cfg.Port, cfg.SSLMode)
}

// Connect opens the database, retrying with a linear backoff while Postgres comes up
func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	attempts := cfg.ConnectAttempts
	if attempts < 1 {
		attempts = 1
	}

	if cfg.InstanceConnectionName != "" {
		slog.Info("Connecting to Cloud SQL via socket", "instance", cfg.InstanceConnectionName)
	} else {
		slog.Info("Connecting to PostgreSQL", "host", cfg.Host, "port", cfg.Port)
	}

	var lastErr error
	for i := 1; i <= attempts; i++ {
		db, err := gorm.Open(postgres.Open(DSN(cfg)), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Warn),
		})
		if err == nil {
			slog.Info("✅ Database connected successfully!")
			return db, nil
		}
		lastErr = err
		slog.Warn("database not ready", "attempt", i, "of", attempts, "error", err)
		if i < attempts {
			time.Sleep(time.Duration(i) * time.Second)
		}
	}
	return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", attempts, lastErr)
}
