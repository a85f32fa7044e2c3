package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/clipdeck/kick-clips-go/internal/config"
	"github.com/clipdeck/kick-clips-go/internal/db"
	"github.com/clipdeck/kick-clips-go/internal/db/migrations"
	"github.com/clipdeck/kick-clips-go/pkg/logger"
	"github.com/golang-migrate/migrate/v4"
	"go.uber.org/zap"
)

func main() {
	var (
		dbURL     string
		direction string
		steps     int
	)

	flag.StringVar(&dbURL, "db", "", "Database URL (defaults to the database section of the config)")
	flag.StringVar(&direction, "direction", "up", "Migration direction: up, down, or version")
	flag.IntVar(&steps, "steps", 0, "Number of steps to migrate (0 means all)")
	flag.Parse()

	if err := logger.Init("info", ""); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if dbURL == "" {
		cfg, err := config.Load()
		if err != nil {
			logger.Log.Fatal("Failed to load config", zap.Error(err))
		}
		dbURL = db.FromAppConfig(cfg.Database).URL()
	}

	m, err := migrations.New(dbURL)
	if err != nil {
		logger.Log.Fatal("Failed to create migrate instance", zap.Error(err))
	}
	defer m.Close()

	switch direction {
	case "up":
		if steps > 0 {
			err = m.Steps(steps)
		} else {
			err = m.Up()
		}
	case "down":
		if steps > 0 {
			err = m.Steps(-steps)
		} else {
			err = m.Down()
		}
	case "version":
	default:
		logger.Log.Fatal("Invalid direction (must be 'up', 'down' or 'version')", zap.String("direction", direction))
	}

	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Log.Fatal("Migration failed", zap.Error(err))
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		logger.Log.Fatal("Failed to get migration version", zap.Error(err))
	}

	if errors.Is(err, migrate.ErrNilVersion) {
		logger.Log.Info("Migration completed successfully (no version)")
	} else {
		logger.Log.Info("Migration completed successfully", zap.Uint("version", version), zap.Bool("dirty", dirty))
	}
}
