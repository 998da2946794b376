package database

import (
	"fmt"

	"github.com/GapNapatS/PredictableTimingExperiment/server/internal/config"
	logging "github.com/GapNapatS/PredictableTimingExperiment/server/internal/logging"
	"github.com/GapNapatS/PredictableTimingExperiment/server/internal/models"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB is nil when the database is disabled.
var DB *gorm.DB

// Enabled reports whether Init has connected.
func Enabled() bool { return DB != nil }

func Init(conf config.DatabaseConfig, log *zap.Logger) error {
	// Create our custom GORM logger
	gormLogger := logging.NewGormZapLogger(log)
	gormLogger.LogLevel = logger.Warn

	db, err := gorm.Open(postgres.Open(conf.DSN()), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	DB = db

	log.Info("Database connection established successfully.")
	return runMigrations(log)
}

func runMigrations(log *zap.Logger) error {
	// AutoMigrate does not create composite indexes; those are handled below.
	err := DB.AutoMigrate(
		&models.SessionRecord{},
		&models.TrialRecord{},
	)
	if err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}
	log.Info("Database migrations completed successfully.")

	trialsIndex := `CREATE INDEX IF NOT EXISTS idx_trials_participant_created ON trial_records (participant_id, created_at, id);`
	if err := DB.Exec(trialsIndex).Error; err != nil {
		return fmt.Errorf("failed to create index on trial_records: %w", err)
	}
	log.Info("Custom indexes ensured successfully.")
	return nil
}

// Close releases the connection pool.
func Close() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
