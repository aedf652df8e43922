package auth

import (
	"crypto/rand"
	"encoding/base64"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"fm3d/apperr"
	"fm3d/models"
)

const (
	MinPasswordLength = 8
	bcryptCost        = 10
)

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// ValidatePassword enforces the minimum length on a new password.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return apperr.Validation("Lozinka mora imati najmanje 8 karaktera.")
	}
	return nil
}

// GeneratePassword returns a random URL-safe password.
func GeneratePassword() (string, error) {
	b := make([]byte, 18)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Authenticate looks the user up by email and checks the password. Unknown
// emails and wrong passwords fail the same way.
func Authenticate(db *gorm.DB, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperr.Validation("Unesite email i lozinku.")
	}
	var user models.User
	if err := db.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, apperr.New(apperr.KindUnauthorized, "Pogrešan email ili lozinka.")
	}
	if user.PasswordHash == "" || !CheckPasswordHash(password, user.PasswordHash) {
		return nil, apperr.New(apperr.KindUnauthorized, "Pogrešan email ili lozinka.")
	}
	return &user, nil
}
