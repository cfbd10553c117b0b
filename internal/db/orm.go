package db

import (
	"fmt"
	"time"

	"devmind/datacollector/internal/config"
	"devmind/datacollector/internal/logging"
	gormModels "devmind/datacollector/internal/models/gorm"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Driver names as database/sql knows them. sqlx needs them to pick a bind style.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// OpenORM connects GORM to Postgres, or to SQLite when SQLITE_PATH is set.
// Postgres is retried while the database comes up.
func OpenORM(cfg *config.Config) (*gorm.DB, string, error) {
	gormCfg := &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	}

	if cfg.SQLitePath != "" {
		db, err := gorm.Open(sqlite.Open(cfg.SQLitePath+"?_foreign_keys=on&_busy_timeout=5000"), gormCfg)
		if err != nil {
			return nil, "", fmt.Errorf("failed to open sqlite: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, "", err
		}
		// sqlite allows a single writer
		sqlDB.SetMaxOpenConns(1)
		logging.Info("Connected to SQLite via GORM", "path", cfg.SQLitePath)
		return db, DriverSQLite, nil
	}

	if cfg.DatabaseDSN == "" {
		return nil, "", fmt.Errorf("no database configured: set DATABASE_DSN, PG_HOST or SQLITE_PATH")
	}

	var (
		db  *gorm.DB
		err error
	)
	for i := 0; i < 10; i++ {
		db, err = gorm.Open(postgres.Open(cfg.DatabaseDSN), gormCfg)
		if err == nil {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to connect to postgres: %w", err)
	}

	logging.Info("Connected to Postgres via GORM")
	return db, DriverPostgres, nil
}

// Migrate creates or updates every collector table
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(gormModels.AllModels()...); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}
