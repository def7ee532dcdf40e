package database

import (
	"log/slog"
	"os"
	"sync"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	mu  sync.Mutex
	dbs = map[string]*gorm.DB{}
)

// ConnectWithDSN opens (once per service name) a PostgreSQL connection using GORM.
// The process exits when the database is unreachable.
func ConnectWithDSN(service, dsn string) *gorm.DB {
	mu.Lock()
	defer mu.Unlock()

	if db, ok := dbs[service]; ok {
		return db
	}

	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		slog.Error("failed to connect to postgres", "service", service, "err", err)
		os.Exit(1)
	}

	if sqlDB, err := conn.DB(); err == nil {
		sqlDB.SetMaxOpenConns(20)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	dbs[service] = conn
	return conn
}

// Migrate runs AutoMigrate for the supplied models.
func Migrate(db *gorm.DB, models ...any) error {
	return db.AutoMigrate(models...)
}
