package content

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"fm3d/apperr"
	"fm3d/models"
)

// Get loads an item by id regardless of its state.
func (s *Service) Get(ctx context.Context, id string) (*models.ContentItem, error) {
	if id == "" {
		return nil, apperr.Validation("Nedostaje ID.")
	}
	var item models.ContentItem
	if err := s.db.WithContext(ctx).Preload("Author").First(&item, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Sadržaj ne postoji.")
		}
		return nil, errors.Wrap(err, "loading content item")
	}
	return &item, nil
}

// GetPublished loads a published item by slug. Drafts are reported as not
// found.
func (s *Service) GetPublished(ctx context.Context, kind models.ContentKind, slug string) (*models.ContentItem, error) {
	var item models.ContentItem
	err := s.db.WithContext(ctx).Preload("Author").
		Where("kind = ? AND slug = ? AND published = ?", kind, slug, true).
		First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Sadržaj ne postoji.")
		}
		return nil, errors.Wrap(err, "loading content item")
	}
	return &item, nil
}

// ListPublished returns the published items of kind, newest first.
func (s *Service) ListPublished(ctx context.Context, kind models.ContentKind) ([]models.ContentItem, error) {
	var items []models.ContentItem
	err := s.db.WithContext(ctx).Preload("Author").
		Where("kind = ? AND published = ?", kind, true).
		Order("created_at DESC").
		Find(&items).Error
	return items, errors.Wrap(err, "listing published content")
}

// ListPublishedByAuthor returns the published works attributed to userID.
func (s *Service) ListPublishedByAuthor(ctx context.Context, userID string) ([]models.ContentItem, error) {
	var items []models.ContentItem
	err := s.db.WithContext(ctx).
		Where("kind = ? AND author_id = ? AND published = ?", models.KindWork, userID, true).
		Order("created_at DESC").
		Find(&items).Error
	return items, errors.Wrap(err, "listing works by author")
}

// List returns every item of kind, drafts included, for the admin area.
func (s *Service) List(ctx context.Context, kind models.ContentKind) ([]models.ContentItem, error) {
	var items []models.ContentItem
	err := s.db.WithContext(ctx).Preload("Author").
		Where("kind = ?", kind).
		Order("created_at DESC").
		Find(&items).Error
	return items, errors.Wrap(err, "listing content")
}

func (s *Service) Count(ctx context.Context, kind models.ContentKind) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.ContentItem{}).Where("kind = ?", kind).Count(&n).Error
	return n, errors.Wrap(err, "counting content")
}
