// Command migrate applies the embedded schema migrations to the configured database.
package main

import (
	"context"
	"os"
	"time"

	"github.com/wso2/consent-lifecycle-store/internal/config"
	"github.com/wso2/consent-lifecycle-store/internal/database"
	"github.com/wso2/consent-lifecycle-store/internal/system/log"
)

// Version information (set by build script)
var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	logger := log.GetLogger()

	// Priority: CONFIG_PATH env var > configs/config.yaml > built-in defaults
	configPath := os.Getenv("CONFIG_PATH")

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal("Failed to load configuration", log.Error(err))
	}

	logger, err = log.New(cfg.Logging)
	if err != nil {
		log.GetLogger().Fatal("Failed to configure logger", log.Error(err))
	}
	log.SetLogger(logger)
	logger = logger.With(log.String(log.LoggerKeyComponentName, "Migrate"))

	logger.Info("Starting consent schema migration",
		log.String("version", version),
		log.String("build_date", buildDate),
		log.String("database_type", cfg.Database.Consent.Type))

	db, err := database.Initialize(&cfg.Database.Consent)
	if err != nil {
		logger.Fatal("Failed to initialize database", log.Error(err))
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	applied, err := database.Migrate(ctx, db)
	if err != nil {
		logger.Fatal("Migration failed", log.Error(err), log.Any("applied", applied))
	}

	if len(applied) == 0 {
		logger.Info("Schema is up to date")
		return
	}
	logger.Info("Migration complete", log.Int("applied", len(applied)), log.Any("versions", applied))
}
