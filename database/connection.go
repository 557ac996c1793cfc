package database

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Ananth-NQI/lycapay-backend/internal/config"
	"github.com/Ananth-NQI/lycapay-backend/internal/logging"
	"github.com/Ananth-NQI/lycapay-backend/internal/models"
)

const socketDir = "/cloudsql"

// DSN builds the key/value connection string. A Cloud SQL instance name
// switches the host to its unix socket.
func DSN(cfg config.DatabaseConfig) string {
	if cfg.InstanceConnectionName != "" {
		return fmt.Sprintf("host=%s/%s user=%s password=%s dbname=%s sslmode=disable",
			socketDir, cfg.InstanceConnectionName, cfg.User, cfg.Password, cfg.Name)
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		cfg.Host, cfg.User, cfg.Password, cfg.Name, cfg.Port, cfg.SSLMode)
}

// Connect opens the PostgreSQL pool and, when enabled, auto-migrates the models.
func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	log := logging.WithComponent("database")
	if cfg.InstanceConnectionName != "" {
		log.WithField("instance", cfg.InstanceConnectionName).Info("Connecting to Cloud SQL via socket")
	} else {
		log.WithField("host", cfg.Host).Info("Connecting to PostgreSQL")
	}

	db, err := gorm.Open(postgres.Open(DSN(cfg)), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxConnections)
	sqlDB.SetMaxIdleConns(cfg.MaxConnections / 2)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if cfg.AutoMigrate {
		if err := AutoMigrate(db); err != nil {
			return nil, err
		}
		log.Info("✅ Database migrations completed")
	}

	log.Info("✅ Database connected successfully")
	return db, nil
}

// AutoMigrate creates or updates the tables for all persisted models.
func AutoMigrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Session{},
		&models.SavedNumber{},
		&models.Transaction{},
		&models.MessageLog{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
