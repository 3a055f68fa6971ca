package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Ananth-NQI/intake-backend/database"
	"github.com/Ananth-NQI/intake-backend/internal/logging"
	"github.com/Ananth-NQI/intake-backend/internal/storage"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Long: `Run the gorm migrations for sessions, messages and support tickets against
the configured PostgreSQL database.

Examples:
  intake-backend migrate
  DB_NAME=intake intake-backend migrate`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.UseMemoryStore {
		return fmt.Errorf("migrate needs a database; unset USE_MEMORY_STORE")
	}
	log := logging.Setup(cfg.Environment, cfg.LogLevel)

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	log.Info("🔄 Running database migrations...")
	if err := storage.NewDatabaseStore(db).AutoMigrate(); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	log.Info("✅ Database migrations completed!")
	return nil
}
