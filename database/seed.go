package database

import (
	"strings"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fm3d/auth"
	"fm3d/models"
)

// SeedAdmin makes sure exactly one account with email exists and that it is
// a SUPERADMIN with the given password. Running it again updates that same
// row. An empty password is replaced by a generated one, which is returned.
func SeedAdmin(db *gorm.DB, email, password string) (*models.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, "", errors.New("seed admin: email is required")
	}
	if password == "" {
		generated, err := auth.GeneratePassword()
		if err != nil {
			return nil, "", errors.Wrap(err, "generating password")
		}
		password = generated
	}
	if err := auth.ValidatePassword(password); err != nil {
		return nil, "", err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, "", errors.Wrap(err, "hashing password")
	}

	admin := &models.User{
		Email:        email,
		Name:         "Admin",
		Role:         models.RoleSuperadmin,
		PasswordHash: hash,
	}
	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"password_hash", "role", "updated_at"}),
	}).Create(admin).Error
	if err != nil {
		return nil, "", errors.Wrap(err, "upserting admin")
	}

	var saved models.User
	if err := db.Where("email = ?", email).First(&saved).Error; err != nil {
		return nil, "", errors.Wrap(err, "reloading admin")
	}
	return &saved, password, nil
}
