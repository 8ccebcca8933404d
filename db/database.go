package db

import (
	"database/sql"
	"fmt"
	"path/filepath"

	"github.com/agnosto/board-collector/db/models"
	"github.com/agnosto/board-collector/logger"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

const FileName = "collector.db"

// Database represents the database connection
type Database struct {
	DB   *gorm.DB
	Path string
}

// NewDatabase opens (or creates) the collector database in saveLocation
// and brings the schema up to date.
func NewDatabase(saveLocation string) (*Database, error) {
	return Open(filepath.Join(saveLocation, FileName))
}

func Open(dbPath string) (*Database, error) {
	// Configure GORM logger
	logConfig := gormlogger.Config{
		LogLevel:                  gormlogger.Warn, // Log only warnings and errors
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: gormlogger.New(
			logger.Logger,
			logConfig,
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(
		&models.ImageEntry{},
		&models.ImageEncounter{},
		&models.TextEntry{},
		&models.PostStatistic{},
	); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Database{DB: db, Path: dbPath}, nil
}

// IntegrityCheck runs sqlite's own consistency check on a separate
// connection, so it also works while the collector holds the file open.
func IntegrityCheck(dbPath string) (string, error) {
	sqlDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return "", err
	}
	defer sqlDB.Close()

	var result string
	if err := sqlDB.QueryRow(`PRAGMA integrity_check`).Scan(&result); err != nil {
		return "", err
	}
	return result, nil
}

// Close closes the database connection
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
