// Package profile is the signed-in participant's own space: biography and
// avatar, password, practice journal and self-service work uploads.
package profile

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fm3d/apperr"
	"fm3d/assets"
	"fm3d/auth"
	"fm3d/models"
	"fm3d/policy"
)

const (
	DayLayout        = "2006-01-02"
	MinJournalLength = 10
)

// Invalidator drops cached renderings of public paths.
type Invalidator interface {
	Invalidate(paths ...string)
}

type Service struct {
	db           *gorm.DB
	assets       *assets.Service
	cache        Invalidator
	avatarLimits assets.Limits
	log          zerolog.Logger
	now          func() time.Time
}

func NewService(db *gorm.DB, assetService *assets.Service, cache Invalidator, avatarLimits assets.Limits, log zerolog.Logger) *Service {
	return &Service{db: db, assets: assetService, cache: cache, avatarLimits: avatarLimits, log: log, now: time.Now}
}

// Me loads the acting user.
func (s *Service) Me(ctx context.Context, actor auth.Identity) (*models.User, error) {
	if actor.ID == "" {
		return nil, apperr.Unauthorized()
	}
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, "id = ?", actor.ID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Nalog nije pronađen.")
		}
		return nil, errors.Wrap(err, "loading user")
	}
	return &u, nil
}

// SaveProfile replaces the biography and, when avatar is given, the avatar.
// The old avatar object is deleted best-effort after the save.
func (s *Service) SaveProfile(ctx context.Context, actor auth.Identity, bio string, avatar *assets.Upload) (*models.User, error) {
	me, err := s.Me(ctx, actor)
	if err != nil {
		return nil, err
	}
	if !policy.Can(actor.Role, policy.EditOwnProfile, policy.Context{ActorID: me.ID}) {
		return nil, apperr.Forbidden()
	}
	me.Bio = strings.TrimSpace(bio)

	var superseded string
	if avatar != nil {
		if err := assets.Validate(avatar, s.avatarLimits); err != nil {
			return nil, err
		}
		fitted, err := assets.FitImage(avatar, assets.AvatarMaxSide)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindValidation, err, "Slika nije ispravna.")
		}
		superseded, err = s.assets.Attach(ctx, &me.Avatar, assets.PrefixUsers, fitted, s.avatarLimits)
		if err != nil {
			return nil, err
		}
	}

	err = s.db.WithContext(ctx).Model(me).Select("bio", "avatar_path", "avatar_url", "updated_at").Updates(me).Error
	if err != nil {
		if avatar != nil {
			s.assets.Discard(ctx, me.Avatar.Path)
		}
		return nil, errors.Wrap(err, "saving profile")
	}
	s.assets.Discard(ctx, superseded)
	if s.cache != nil {
		s.cache.Invalidate("/api/ucesnici", "/api/ucesnici/"+me.ID)
	}
	s.log.Info().Str("user", me.ID).Bool("avatar", avatar != nil).Msg("profile saved")
	return me, nil
}

// ChangePassword checks the current password (when one is set) and stores
// a new one.
func (s *Service) ChangePassword(ctx context.Context, actor auth.Identity, current, next, confirm string) error {
	me, err := s.Me(ctx, actor)
	if err != nil {
		return err
	}
	if err := auth.ValidatePassword(next); err != nil {
		return apperr.Validation("Nova šifra mora imati min 8 karaktera.")
	}
	if next != confirm {
		return apperr.Validation("Nove šifre se ne poklapaju.")
	}
	if me.PasswordHash != "" && !auth.CheckPasswordHash(current, me.PasswordHash) {
		return apperr.Validation("Stara šifra nije tačna.")
	}
	hash, err := auth.HashPassword(next)
	if err != nil {
		return errors.Wrap(err, "hashing password")
	}
	return errors.Wrap(s.db.WithContext(ctx).Model(me).Update("password_hash", hash).Error, "saving password")
}

// WriteJournal stores the entry for day (today, UTC, when empty). A second
// write on the same day replaces the text.
func (s *Service) WriteJournal(ctx context.Context, actor auth.Identity, day, text string) (*models.JournalEntry, error) {
	if actor.ID == "" || !policy.Can(actor.Role, policy.WriteOwnJournal, policy.Context{ActorID: actor.ID}) {
		return nil, apperr.Unauthorized()
	}
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < MinJournalLength {
		return nil, apperr.Validation("Unos treba da ima bar 10 karaktera.")
	}
	day = strings.TrimSpace(day)
	if day == "" {
		day = s.now().UTC().Format(DayLayout)
	} else if t, err := time.Parse(DayLayout, day); err != nil {
		return nil, apperr.Validation("Neispravan datum.")
	} else {
		day = t.Format(DayLayout)
	}

	entry := &models.JournalEntry{UserID: actor.ID, Day: day, Text: text}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "day"}},
		DoUpdates: clause.AssignmentColumns([]string{"text", "updated_at"}),
	}).Create(entry).Error
	if err != nil {
		return nil, errors.Wrap(err, "saving journal entry")
	}
	return entry, nil
}

// Journal lists the actor's entries, newest day first.
func (s *Service) Journal(ctx context.Context, actor auth.Identity) ([]models.JournalEntry, error) {
	if actor.ID == "" {
		return nil, apperr.Unauthorized()
	}
	var entries []models.JournalEntry
	err := s.db.WithContext(ctx).Where("user_id = ?", actor.ID).Order("day DESC").Find(&entries).Error
	return entries, errors.Wrap(err, "listing journal")
}

func (s *Service) AvatarSrc(ctx context.Context, u models.User) string {
	return s.assets.ResolveViewableURL(ctx, u.Avatar)
}

// CanSubmitWork reports whether u passes the biography gate for uploads.
func (s *Service) CanSubmitWork(u models.User) bool {
	return policy.IsContentEditor(u.Role) || policy.HasBio(u.Bio)
}
