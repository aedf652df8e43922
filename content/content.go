// Package content implements the lifecycle of news posts and portfolio
// works: creation, editing, publication and deletion, together with the
// files attached to them.
package content

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"fm3d/apperr"
	"fm3d/assets"
	"fm3d/auth"
	"fm3d/models"
	"fm3d/policy"
)

// Invalidator drops cached renderings of public paths.
type Invalidator interface {
	Invalidate(paths ...string)
}

type nopInvalidator struct{}

func (nopInvalidator) Invalidate(...string) {}

// CoverInput describes what to do with an item's cover. At most one of the
// fields is acted on, in the order Remove, Upload, Path, URL.
type CoverInput struct {
	Remove bool
	Upload *assets.Upload
	Path   string
	URL    string
}

type Input struct {
	Title     string
	Slug      string
	Excerpt   string
	Body      string
	MediaKind models.MediaKind
	AuthorID  string
	Publish   bool
	Cover     CoverInput
	File      *assets.Upload
}

type Limits struct {
	Cover assets.Limits
	File  assets.Limits
}

type Service struct {
	db     *gorm.DB
	assets *assets.Service
	cache  Invalidator
	limits Limits
	log    zerolog.Logger
	now    func() time.Time
}

func NewService(db *gorm.DB, assetService *assets.Service, cache Invalidator, limits Limits, log zerolog.Logger) *Service {
	if cache == nil {
		cache = nopInvalidator{}
	}
	return &Service{
		db:     db,
		assets: assetService,
		cache:  cache,
		limits: limits,
		log:    log,
		now:    time.Now,
	}
}

// Create stores a new item. Content editors decide whether it starts
// published; anyone else can only submit their own work, which is published
// right away once their biography is filled in.
func (s *Service) Create(ctx context.Context, actor auth.Identity, kind models.ContentKind, in Input) (*models.ContentItem, error) {
	if actor.ID == "" || !policy.Can(actor.Role, policy.CreateOwnContent, policy.Context{ActorID: actor.ID}) {
		return nil, apperr.Unauthorized()
	}
	editor := policy.IsContentEditor(actor.Role)
	if kind == models.KindPost && !editor {
		return nil, apperr.Forbidden()
	}

	item := &models.ContentItem{
		Kind:      kind,
		Title:     strings.TrimSpace(in.Title),
		Excerpt:   strings.TrimSpace(in.Excerpt),
		Body:      strings.TrimSpace(in.Body),
		MediaKind: models.ParseMediaKind(string(in.MediaKind)),
		Published: in.Publish,
	}
	if item.Title == "" {
		return nil, apperr.Validation("Naslov je obavezan.")
	}

	if editor {
		if in.AuthorID != "" {
			if err := s.ensureUser(ctx, in.AuthorID); err != nil {
				return nil, err
			}
			item.AuthorID = &in.AuthorID
		}
	} else {
		me, err := s.loadUser(ctx, actor.ID)
		if err != nil {
			return nil, err
		}
		if !policy.HasBio(me.Bio) {
			return nil, apperr.Validation("Molimo popunite biografiju pre otpremanja rada.")
		}
		item.AuthorID = &me.ID
		item.Published = true
	}

	slug, err := s.pickSlug(ctx, kind, in.Slug, item.Title, "")
	if err != nil {
		return nil, err
	}
	item.Slug = slug

	uploaded, _, err := s.applyAssets(ctx, item, in)
	if err != nil {
		s.assets.Discard(ctx, uploaded...)
		return nil, err
	}

	if err := s.db.WithContext(ctx).Create(item).Error; err != nil {
		s.assets.Discard(ctx, uploaded...)
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, slugTaken()
		}
		return nil, errors.Wrap(err, "creating content item")
	}

	s.log.Info().Str("id", item.ID).Str("kind", string(kind)).Str("slug", item.Slug).
		Bool("published", item.Published).Str("actor", actor.ID).Msg("content created")
	s.invalidate(item, "")
	return item, nil
}

// Update edits the text fields and cover of an item. Posts are editable by
// content editors only; works additionally by their author.
func (s *Service) Update(ctx context.Context, actor auth.Identity, id string, in Input) (*models.ContentItem, error) {
	if actor.ID == "" {
		return nil, apperr.Unauthorized()
	}
	item, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.canEdit(actor, item) {
		return nil, apperr.Forbidden()
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperr.Validation("Naslov je obavezan.")
	}
	oldSlug := item.Slug
	if requested := strings.TrimSpace(in.Slug); requested != "" && requested != item.Slug {
		slug, err := s.pickSlug(ctx, item.Kind, requested, title, item.ID)
		if err != nil {
			return nil, err
		}
		item.Slug = slug
	}
	item.Title = title
	item.Excerpt = strings.TrimSpace(in.Excerpt)
	item.Body = strings.TrimSpace(in.Body)
	if in.MediaKind != "" {
		item.MediaKind = models.ParseMediaKind(string(in.MediaKind))
	}

	uploaded, superseded, err := s.applyAssets(ctx, item, in)
	if err != nil {
		s.assets.Discard(ctx, uploaded...)
		return nil, err
	}

	err = s.db.WithContext(ctx).Model(item).Select(
		"title", "slug", "excerpt", "body", "media_kind",
		"cover_path", "cover_url", "file_path", "file_url", "updated_at",
	).Updates(item).Error
	if err != nil {
		s.assets.Discard(ctx, uploaded...)
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, slugTaken()
		}
		return nil, errors.Wrap(err, "updating content item")
	}
	s.assets.Discard(ctx, superseded...)

	s.log.Info().Str("id", item.ID).Str("actor", actor.ID).Msg("content updated")
	s.invalidate(item, oldSlug)
	return item, nil
}

// SetPublished moves an item between draft and published. Setting the state
// it already has succeeds without writing.
func (s *Service) SetPublished(ctx context.Context, actor auth.Identity, id string, publish bool) (*models.ContentItem, error) {
	if actor.ID == "" {
		return nil, apperr.Unauthorized()
	}
	if !policy.Can(actor.Role, policy.PublishContent, policy.Context{ActorID: actor.ID}) {
		return nil, apperr.Forbidden()
	}
	item, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.Published == publish {
		return item, nil
	}
	if err := s.db.WithContext(ctx).Model(item).Update("published", publish).Error; err != nil {
		return nil, errors.Wrap(err, "toggling published")
	}
	item.Published = publish

	s.log.Info().Str("id", item.ID).Bool("published", publish).Str("actor", actor.ID).Msg("publication changed")
	s.invalidate(item, "")
	return item, nil
}

// Delete removes an item with its badges, then deletes its stored files
// best-effort.
func (s *Service) Delete(ctx context.Context, actor auth.Identity, id string) error {
	if actor.ID == "" {
		return apperr.Unauthorized()
	}
	if !policy.Can(actor.Role, policy.DeleteAnyContent, policy.Context{ActorID: actor.ID}) {
		return apperr.Forbidden()
	}
	item, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("content_item_id = ?", item.ID).Delete(&models.BadgeAward{}).Error; err != nil {
			return err
		}
		return tx.Delete(item).Error
	})
	if err != nil {
		return errors.Wrap(err, "deleting content item")
	}
	s.assets.Discard(ctx, item.Cover.Path, item.File.Path)

	s.log.Info().Str("id", item.ID).Str("actor", actor.ID).Msg("content deleted")
	s.invalidate(item, "")
	return nil
}

func (s *Service) canEdit(actor auth.Identity, item *models.ContentItem) bool {
	if item.Kind == models.KindPost {
		return policy.Can(actor.Role, policy.EditAnyContent, policy.Context{ActorID: actor.ID})
	}
	owner := ""
	if item.AuthorID != nil {
		owner = *item.AuthorID
	}
	return policy.Can(actor.Role, policy.EditOwnContent, policy.Context{ActorID: actor.ID, OwnerID: owner})
}

// pickSlug validates an explicit slug or derives one from the title, and
// rejects it when another item of the same kind already uses it.
func (s *Service) pickSlug(ctx context.Context, kind models.ContentKind, requested, title, selfID string) (string, error) {
	slug := strings.TrimSpace(requested)
	if slug == "" {
		slug = deriveSlug(title, s.now())
	} else if !ValidSlug(slug) {
		return "", apperr.Validation("Slug sme da sadrži samo mala slova, brojeve i crtice.")
	}

	q := s.db.WithContext(ctx).Model(&models.ContentItem{}).Where("kind = ? AND slug = ?", kind, slug)
	if selfID != "" {
		q = q.Where("id <> ?", selfID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return "", errors.Wrap(err, "checking slug")
	}
	if n > 0 {
		return "", slugTaken()
	}
	return slug, nil
}

// applyAssets applies the cover and file changes in `in` to item. It returns
// the keys it uploaded (to discard if the save fails) and the keys the item
// no longer references (to discard once it succeeded).
func (s *Service) applyAssets(ctx context.Context, item *models.ContentItem, in Input) (uploaded, superseded []string, err error) {
	var old string
	switch c := in.Cover; {
	case c.Remove:
		old = s.assets.Detach(&item.Cover)
	case c.Upload != nil:
		prefix := assets.PrefixWorks
		if item.Kind == models.KindPost {
			prefix = assets.PrefixPosts
		}
		old, err = s.assets.Attach(ctx, &item.Cover, prefix, c.Upload, s.limits.Cover)
		if err != nil {
			return nil, nil, err
		}
		uploaded = append(uploaded, item.Cover.Path)
	case strings.TrimSpace(c.Path) != "":
		old, err = s.assets.AttachPath(&item.Cover, c.Path)
	case strings.TrimSpace(c.URL) != "":
		old, err = s.assets.AttachExternal(&item.Cover, c.URL)
	}
	if err != nil {
		return uploaded, nil, err
	}
	superseded = append(superseded, old)

	if in.File != nil {
		old, err = s.assets.Attach(ctx, &item.File, assets.PrefixWorks, in.File, s.limits.File)
		if err != nil {
			return uploaded, nil, err
		}
		uploaded = append(uploaded, item.File.Path)
		superseded = append(superseded, old)
	}
	return uploaded, superseded, nil
}

func (s *Service) invalidate(item *models.ContentItem, oldSlug string) {
	base := PublicPath(item.Kind)
	paths := []string{base, base + "/" + item.Slug}
	if oldSlug != "" && oldSlug != item.Slug {
		paths = append(paths, base+"/"+oldSlug)
	}
	if item.AuthorID != nil {
		paths = append(paths, "/api/ucesnici", "/api/ucesnici/"+*item.AuthorID)
	}
	s.cache.Invalidate(paths...)
}

// PublicPath is the public API listing path for kind.
func PublicPath(kind models.ContentKind) string {
	if kind == models.KindPost {
		return "/api/vesti"
	}
	return "/api/radovi"
}

func (s *Service) loadUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Nalog nije pronađen.")
		}
		return nil, errors.Wrap(err, "loading user")
	}
	return &u, nil
}

func (s *Service) ensureUser(ctx context.Context, id string) error {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return errors.Wrap(err, "checking author")
	}
	if n == 0 {
		return apperr.Validation("Izabrani autor ne postoji.")
	}
	return nil
}

func slugTaken() error {
	return apperr.Conflict("Slug je već zauzet.")
}
