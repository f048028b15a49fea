package datastore

import (
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DefaultSlowQueryThreshold defines the duration after which a query is
// considered slow and logged at warn level.
const DefaultSlowQueryThreshold = 1 * time.Second

// slogPrintfWriter adapts a slog.Logger to gorm's logger.Writer.
type slogPrintfWriter struct {
	l *slog.Logger
}

func (w slogPrintfWriter) Printf(format string, args ...any) {
	w.l.Info(fmt.Sprintf(format, args...))
}

// createGormLogger configures and returns a new GORM logger instance that
// writes into the datastore service log.
func createGormLogger() gormlogger.Interface {
	return gormlogger.New(slogPrintfWriter{l: logger}, gormlogger.Config{
		SlowThreshold:             DefaultSlowQueryThreshold,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}

// performAutoMigration runs GORM auto-migration for all engine tables.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	if err := db.AutoMigrate(
		&SeasonWindow{},
		&SeasonOverride{},
		&Rider{},
		&Attempt{},
		&AttemptEffort{},
		&SegmentEffort{},
	); err != nil {
		return fmt.Errorf("failed to auto-migrate %s database: %w", dbType, err)
	}

	if debug {
		logger.Debug("database connection initialized",
			"db_type", dbType,
			"connection", connectionInfo)
	}
	return nil
}
