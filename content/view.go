package content

import (
	"context"

	"fm3d/models"
)

// ItemView is an item with its stored references resolved into URLs.
type ItemView struct {
	models.ContentItem
	CoverSrc   string `json:"cover_src"`
	FileSrc    string `json:"file_src,omitempty"`
	AuthorName string `json:"author_name,omitempty"`
}

func (s *Service) View(ctx context.Context, item models.ContentItem) ItemView {
	v := ItemView{
		ContentItem: item,
		CoverSrc:    s.assets.ResolveViewableURL(ctx, item.Cover),
	}
	if !item.File.Empty() {
		v.FileSrc = s.assets.ResolveViewableURL(ctx, item.File)
	}
	if item.Author != nil {
		v.AuthorName = item.Author.DisplayName()
		// the embedded author would otherwise leak into public listings
		v.ContentItem.Author = nil
	}
	return v
}

func (s *Service) Views(ctx context.Context, items []models.ContentItem) []ItemView {
	out := make([]ItemView, 0, len(items))
	for _, it := range items {
		out = append(out, s.View(ctx, it))
	}
	return out
}
