package database

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/Ananth-NQI/lycapay-backend/internal/config"
)

// MigrationURL builds the postgres:// URL golang-migrate expects.
func MigrationURL(cfg config.DatabaseConfig) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Path:   "/" + cfg.Name,
	}
	q := url.Values{}
	if cfg.InstanceConnectionName != "" {
		q.Set("host", socketDir+"/"+cfg.InstanceConnectionName)
		q.Set("sslmode", "disable")
	} else {
		u.Host = cfg.Host + ":" + cfg.Port
		q.Set("sslmode", cfg.SSLMode)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// NewMigrator opens a migrator over the SQL files in dir.
func NewMigrator(cfg config.DatabaseConfig, dir string) (*migrate.Migrate, error) {
	m, err := migrate.New("file://"+dir, MigrationURL(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize migrations: %w", err)
	}
	return m, nil
}

// MigrateUp applies every pending migration. No pending migrations is not an error.
func MigrateUp(m *migrate.Migrate) error {
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration execution failed: %w", err)
	}
	return nil
}
