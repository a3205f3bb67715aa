package database

import (
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/noah-isme/educlass-api/internal/models"
)

// MemoryDSN keeps the batch registry in process memory for the lifetime of the service.
const MemoryDSN = "file:educlass?mode=memory&cache=shared"

// ConnectPostgres establishes a connection to the PostgreSQL database using the provided DSN.
func ConnectPostgres(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn must not be empty")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	return db, nil
}

// ConnectSQLite opens a SQLite database, typically an in-memory one.
func ConnectSQLite(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		dsn = MemoryDSN
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	// A shared-cache memory database lives as long as one connection stays open.
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}

	return db, nil
}

// Connect picks PostgreSQL for postgres:// URLs and SQLite otherwise.
func Connect(url string) (*gorm.DB, error) {
	trimmed := strings.TrimSpace(url)
	if strings.HasPrefix(trimmed, "postgres://") || strings.HasPrefix(trimmed, "postgresql://") {
		return ConnectPostgres(trimmed)
	}
	return ConnectSQLite(trimmed)
}

// Migrate creates the registry and chat tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Batch{}, &models.Enrollment{}, &models.SessionChatMessage{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
