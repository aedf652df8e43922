package database

import (
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"fm3d/models"
)

// Models lists every table the site owns, in migration order.
var Models = []interface{}{
	&models.User{},
	&models.ContentItem{},
	&models.BadgeAward{},
	&models.JournalEntry{},
}

func RunMigrations(db *gorm.DB, log zerolog.Logger) error {
	log.Info().Msg("running database migrations")

	if err := db.AutoMigrate(Models...); err != nil {
		log.Error().Err(err).Msg("migrations failed")
		return err
	}

	log.Info().Msg("migrations completed")
	return nil
}
