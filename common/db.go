package common

import (
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// ConnectDb opens databaseURL: a postgres:// DSN selects PostgreSQL,
// anything else is taken as a SQLite file path.
func ConnectDb(databaseURL string, log zerolog.Logger) (*gorm.DB, error) {
	cfg := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Warn),
	}

	var dialector gorm.Dialector
	if strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://") {
		dialector = postgres.Open(databaseURL)
		log.Info().Msg("opening postgres database")
	} else {
		dialector = sqlite.Open(databaseURL)
		log.Info().Str("path", databaseURL).Msg("opening sqlite database")
	}

	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		log.Error().Err(err).Msg("error opening database")
		return nil, err
	}
	return db, nil
}
