// Package participants is identity management for the admin area:
// provisioning participants, changing roles, resetting passwords and
// removing accounts. Everything here is SUPERADMIN only.
package participants

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"fm3d/apperr"
	"fm3d/assets"
	"fm3d/auth"
	"fm3d/content"
	"fm3d/models"
	"fm3d/policy"
)

// Invalidator drops cached renderings of public paths.
type Invalidator interface {
	Invalidate(paths ...string)
}

type nopInvalidator struct{}

func (nopInvalidator) Invalidate(...string) {}

type NewParticipant struct {
	Name        string
	Email       string
	Role        models.Role
	Password    string
	Bio         string
	SchoolClass string
	Avatar      *assets.Upload
}

type Service struct {
	db           *gorm.DB
	assets       *assets.Service
	cache        Invalidator
	avatarLimits assets.Limits
	log          zerolog.Logger
}

func NewService(db *gorm.DB, assetService *assets.Service, cache Invalidator, avatarLimits assets.Limits, log zerolog.Logger) *Service {
	if cache == nil {
		cache = nopInvalidator{}
	}
	return &Service{db: db, assets: assetService, cache: cache, avatarLimits: avatarLimits, log: log}
}

func (s *Service) authorize(actor auth.Identity, action policy.Action) error {
	if actor.ID == "" {
		return apperr.Unauthorized()
	}
	if !policy.Can(actor.Role, action, policy.Context{ActorID: actor.ID}) {
		return apperr.Forbidden()
	}
	return nil
}

// Create provisions a STUDENT or PARENT account.
func (s *Service) Create(ctx context.Context, actor auth.Identity, in NewParticipant) (*models.User, error) {
	if err := s.authorize(actor, policy.ManageIdentities); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	password := strings.TrimSpace(in.Password)
	if name == "" || email == "" || in.Role == "" || password == "" {
		return nil, apperr.Validation("Ime, email, uloga i lozinka su obavezni.")
	}
	if !in.Role.Participant() {
		return nil, apperr.Validation("Uloga mora biti UČENIK ili RODITELJ.")
	}
	if err := auth.ValidatePassword(password); err != nil {
		return nil, err
	}

	var taken int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&taken).Error; err != nil {
		return nil, errors.Wrap(err, "checking email")
	}
	if taken > 0 {
		return nil, apperr.Conflict("Email je već zauzet.")
	}

	u := &models.User{
		Name:        name,
		Email:       email,
		Role:        in.Role,
		Bio:         strings.TrimSpace(in.Bio),
		SchoolClass: strings.TrimSpace(in.SchoolClass),
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, errors.Wrap(err, "hashing password")
	}
	u.PasswordHash = hash

	if in.Avatar != nil {
		if err := assets.Validate(in.Avatar, s.avatarLimits); err != nil {
			return nil, err
		}
		fitted, err := assets.FitImage(in.Avatar, assets.AvatarMaxSide)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindValidation, err, "Slika nije ispravna.")
		}
		if _, err := s.assets.Attach(ctx, &u.Avatar, assets.PrefixUsers, fitted, s.avatarLimits); err != nil {
			return nil, err
		}
	}

	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		s.assets.Discard(ctx, u.Avatar.Path)
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Conflict("Email je već zauzet.")
		}
		return nil, apperr.Wrap(apperr.KindInternal, err, "Neuspešno kreiranje učesnika.")
	}
	s.log.Info().Str("id", u.ID).Str("role", string(u.Role)).Str("actor", actor.ID).Msg("participant created")
	s.cache.Invalidate("/api/ucesnici")
	return u, nil
}

// Delete removes an account with its journal and badges. Works it authored
// stay, without attribution. The avatar object is deleted best-effort.
func (s *Service) Delete(ctx context.Context, actor auth.Identity, id string) error {
	if err := s.authorize(actor, policy.ManageIdentities); err != nil {
		return err
	}
	if id == actor.ID {
		return apperr.Validation("Ne možete obrisati sopstveni nalog.")
	}
	u, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	var touched []models.ContentItem
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// items whose public detail loses this author or one of their badges
		err := tx.Model(&models.ContentItem{}).Select("kind", "slug").
			Where("author_id = ? OR id IN (?)", u.ID,
				tx.Model(&models.BadgeAward{}).Select("content_item_id").Where("giver_id = ?", u.ID)).
			Find(&touched).Error
		if err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", u.ID).Delete(&models.JournalEntry{}).Error; err != nil {
			return err
		}
		if err := tx.Where("giver_id = ?", u.ID).Delete(&models.BadgeAward{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.ContentItem{}).Where("author_id = ?", u.ID).Update("author_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(u).Error
	})
	if err != nil {
		return errors.Wrap(err, "deleting participant")
	}
	s.assets.Discard(ctx, u.Avatar.Path)

	s.log.Info().Str("id", u.ID).Str("actor", actor.ID).Msg("participant deleted")
	paths := []string{"/api/ucesnici", "/api/ucesnici/" + u.ID, content.PublicPath(models.KindWork)}
	for _, it := range touched {
		paths = append(paths, content.PublicPath(it.Kind), content.PublicPath(it.Kind)+"/"+it.Slug)
	}
	s.cache.Invalidate(paths...)
	return nil
}

// ChangeRole sets any known role, SUPERADMIN included.
func (s *Service) ChangeRole(ctx context.Context, actor auth.Identity, id string, role models.Role) (*models.User, error) {
	if err := s.authorize(actor, policy.ChangeOtherIdentityRole); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, apperr.Validation("Nepoznata uloga.")
	}
	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.Role == role {
		return u, nil
	}
	if err := s.db.WithContext(ctx).Model(u).Update("role", role).Error; err != nil {
		return nil, errors.Wrap(err, "changing role")
	}
	u.Role = role
	s.log.Info().Str("id", u.ID).Str("role", string(role)).Str("actor", actor.ID).Msg("role changed")
	s.cache.Invalidate("/api/ucesnici", "/api/ucesnici/"+u.ID)
	return u, nil
}

func (s *Service) ResetPassword(ctx context.Context, actor auth.Identity, id, password string) error {
	if err := s.authorize(actor, policy.ResetOtherIdentityPassword); err != nil {
		return err
	}
	password = strings.TrimSpace(password)
	if err := auth.ValidatePassword(password); err != nil {
		return err
	}
	u, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return errors.Wrap(err, "hashing password")
	}
	if err := s.db.WithContext(ctx).Model(u).Update("password_hash", hash).Error; err != nil {
		return errors.Wrap(err, "resetting password")
	}
	s.log.Info().Str("id", u.ID).Str("actor", actor.ID).Msg("password reset")
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.User, error) {
	if id == "" {
		return nil, apperr.Validation("Nedostaje ID.")
	}
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Učesnik ne postoji.")
		}
		return nil, errors.Wrap(err, "loading participant")
	}
	return &u, nil
}

// List returns all accounts ordered by name.
func (s *Service) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := s.db.WithContext(ctx).Order("name ASC, email ASC").Find(&users).Error
	return users, errors.Wrap(err, "listing participants")
}

// ListParticipants returns the public directory: students and parents.
func (s *Service) ListParticipants(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := s.db.WithContext(ctx).
		Where("role IN ?", []models.Role{models.RoleStudent, models.RoleParent}).
		Order("name ASC").
		Find(&users).Error
	return users, errors.Wrap(err, "listing participants")
}

func (s *Service) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("role IN ?", []models.Role{models.RoleStudent, models.RoleParent}).
		Count(&n).Error
	return n, errors.Wrap(err, "counting participants")
}
