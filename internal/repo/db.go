package repo

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func gormConfig() *gorm.Config {
	return &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
		NowFunc:        func() time.Time { return time.Now().UTC() },
	}
}

// OpenPostgres opens the domain database. The schema is owned by migrations.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("repo: open postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(15 * time.Minute)
	return db, nil
}

// OpenSQLite opens an SQLite database and creates the domain tables. It backs
// the in-memory deployment mode and tests.
func OpenSQLite(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		dsn = "file:hostelhub?mode=memory&cache=shared"
	}
	db, err := gorm.Open(sqlite.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("repo: open sqlite: %w", err)
	}
	if err := db.AutoMigrate(&Room{}, &Complaint{}); err != nil {
		return nil, fmt.Errorf("repo: migrate sqlite: %w", err)
	}
	return db, nil
}

func nowUTC() time.Time { return time.Now().UTC() }
