package content

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"fm3d/apperr"
	"fm3d/auth"
	"fm3d/models"
	"fm3d/policy"
)

type BadgeCount struct {
	Badge models.BadgeKind `json:"badge"`
	Label string           `json:"label"`
	Count int64            `json:"count"`
}

// AwardBadge records an endorsement of a published item by actor. The giver
// needs a biography and cannot endorse their own work; repeated awards are
// allowed.
func (s *Service) AwardBadge(ctx context.Context, actor auth.Identity, itemID string, badge models.BadgeKind, note string) (*models.BadgeAward, error) {
	if actor.ID == "" {
		return nil, apperr.Unauthorized()
	}
	me, err := s.loadUser(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	if !policy.HasBio(me.Bio) {
		return nil, apperr.Validation("Popunite biografiju pre dodeljivanja bedževa.")
	}
	if !badge.Valid() {
		return nil, apperr.Validation("Nepoznat bedž.")
	}

	var item models.ContentItem
	if err := s.db.WithContext(ctx).First(&item, "id = ? AND published = ?", itemID, true).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Rad nije pronađen.")
		}
		return nil, errors.Wrap(err, "loading content item")
	}
	if item.AuthoredBy(me.ID) {
		return nil, apperr.Validation("Ne možete dodeliti bedž svom radu.")
	}

	owner := ""
	if item.AuthorID != nil {
		owner = *item.AuthorID
	}
	if !policy.Can(actor.Role, policy.AwardBadge, policy.Context{ActorID: me.ID, ActorBio: me.Bio, OwnerID: owner}) {
		return nil, apperr.Forbidden()
	}

	award := &models.BadgeAward{
		ContentItemID: item.ID,
		GiverID:       me.ID,
		Badge:         badge,
		Note:          strings.TrimSpace(note),
	}
	if err := s.db.WithContext(ctx).Create(award).Error; err != nil {
		return nil, errors.Wrap(err, "creating badge award")
	}
	s.invalidate(&item, "")
	return award, nil
}

// BadgeCounts groups the badges awarded to one item.
func (s *Service) BadgeCounts(ctx context.Context, itemID string) ([]BadgeCount, error) {
	rows := []BadgeCount{}
	err := s.db.WithContext(ctx).Model(&models.BadgeAward{}).
		Select("badge, COUNT(*) AS count").
		Where("content_item_id = ?", itemID).
		Group("badge").
		Order("badge").
		Scan(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "counting badges")
	}
	return labeled(rows), nil
}

// AuthorBadgeCounts groups the badges awarded across all works of userID.
func (s *Service) AuthorBadgeCounts(ctx context.Context, userID string) ([]BadgeCount, error) {
	rows := []BadgeCount{}
	err := s.db.WithContext(ctx).Table("badge_awards").
		Select("badge_awards.badge AS badge, COUNT(*) AS count").
		Joins("INNER JOIN content_items ON content_items.id = badge_awards.content_item_id").
		Where("content_items.author_id = ?", userID).
		Group("badge_awards.badge").
		Order("badge_awards.badge").
		Scan(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "counting author badges")
	}
	return labeled(rows), nil
}

func labeled(rows []BadgeCount) []BadgeCount {
	for i := range rows {
		rows[i].Label = models.BadgeLabels[rows[i].Badge]
	}
	return rows
}
