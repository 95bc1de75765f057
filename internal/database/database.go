package database

import (
	"fmt"
	"log"
	"strings"

	"github.com/gdg-garage/facility-api/internal/config"
	"github.com/gdg-garage/facility-api/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens the configured database and migrates the schema, exiting on failure.
func Connect(cfg *config.Config) *gorm.DB {
	db, err := Open(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	return db
}

func Open(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DatabaseDriver {
	case config.DriverPostgres:
		dialector = postgres.Open(cfg.DatabaseDSN)
	case config.DriverSQLite, "":
		dialector = sqlite.Open(SQLiteDSN(cfg.DatabasePath))
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Facility{},
		&models.Reservation{},
		&models.Announcement{},
		&models.Complaint{},
		&models.Visitor{},
		&models.Bill{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// SQLiteDSN appends the connection options the booking transaction relies on:
// BEGIN IMMEDIATE so concurrent writers queue on the database lock, a busy
// timeout so they wait instead of failing, and enforced foreign keys.
func SQLiteDSN(path string) string {
	opts := "_txlock=immediate&_busy_timeout=5000&_foreign_keys=1"
	if strings.Contains(path, "?") {
		return path + "&" + opts
	}
	return path + "?" + opts
}
