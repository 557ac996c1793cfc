package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"

	"github.com/Ananth-NQI/lycapay-backend/database"
	"github.com/Ananth-NQI/lycapay-backend/internal/config"
	"github.com/Ananth-NQI/lycapay-backend/internal/logging"
)

func main() {
	configPath := flag.String("config", envOr("CONFIG_FILE", "config.yaml"), "path to YAML config")
	dir := flag.String("dir", "migrations", "migrations directory")
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	log := logging.WithComponent("migrate")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	m, err := database.NewMigrator(cfg.Database, *dir)
	if err != nil {
		log.WithError(err).Fatal("Failed to open migrator")
	}
	defer func() {
		if sourceErr, dbErr := m.Close(); sourceErr != nil || dbErr != nil {
			log.Warnf("Failed to close migrator: %v, %v", sourceErr, dbErr)
		}
	}()

	switch flag.Arg(0) {
	case "up":
		if err := database.MigrateUp(m); err != nil {
			log.WithError(err).Fatal("Migration failed")
		}
		log.Info("✅ Migrations applied")

	case "down":
		if err := m.Steps(-1); err != nil {
			log.WithError(err).Fatal("Rollback failed")
		}
		log.Info("Last migration rolled back")

	case "version":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			log.Info("No migrations applied yet")
			return
		}
		if err != nil {
			log.WithError(err).Fatal("Failed to read version")
		}
		log.WithField("dirty", dirty).Infof("Current version: %d", version)

	case "force":
		if flag.NArg() < 2 {
			log.Fatal("force requires a version number")
		}
		version, err := strconv.Atoi(flag.Arg(1))
		if err != nil {
			log.WithError(err).Fatal("Invalid version number")
		}
		if err := m.Force(version); err != nil {
			log.WithError(err).Fatal("Force failed")
		}
		log.Infof("Version forced to %d", version)

	default:
		printUsage()
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func printUsage() {
	fmt.Println("Usage: migrate [-config config.yaml] [-dir migrations] <command>")
	fmt.Println("Commands:")
	fmt.Println("  up         apply all pending migrations")
	fmt.Println("  down       roll back the last migration")
	fmt.Println("  version    print the current version")
	fmt.Println("  force N    set the version without running migrations")
}
