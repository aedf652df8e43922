package site

import (
	"html/template"

	"github.com/gin-gonic/gin"

	"fm3d/apperr"
	"fm3d/content"
	"fm3d/models"
)

type articleView struct {
	content.ItemView
	HTML template.HTML `json:"html"`
}

func (s *SiteModule) listNews(c *gin.Context) { s.listKind(c, models.KindPost) }

func (s *SiteModule) listWorks(c *gin.Context) { s.listKind(c, models.KindWork) }

func (s *SiteModule) listKind(c *gin.Context, kind models.ContentKind) {
	s.serve(c, func(c *gin.Context) (payload, error) {
		ctx := c.Request.Context()
		items, err := s.content.ListPublished(ctx, kind)
		if err != nil {
			return nil, err
		}
		return payload{"items": s.content.Views(ctx, items)}, nil
	}, isPage(c))
}

func (s *SiteModule) article(c *gin.Context, kind models.ContentKind) (*models.ContentItem, articleView, error) {
	ctx := c.Request.Context()
	item, err := s.content.GetPublished(ctx, kind, c.Param("slug"))
	if err != nil {
		return nil, articleView{}, err
	}
	if isPage(c) {
		s.analytics.TrackVisit(c, c.Request.URL.Path, &item.ID)
	}
	return item, articleView{ItemView: s.content.View(ctx, *item), HTML: renderMarkdown(item.Body)}, nil
}

func (s *SiteModule) showNews(c *gin.Context) {
	s.serve(c, func(c *gin.Context) (payload, error) {
		_, view, err := s.article(c, models.KindPost)
		if err != nil {
			return nil, err
		}
		return payload{"item": view}, nil
	}, isPage(c))
}

func (s *SiteModule) showWork(c *gin.Context) {
	s.serve(c, func(c *gin.Context) (payload, error) {
		item, view, err := s.article(c, models.KindWork)
		if err != nil {
			return nil, err
		}
		badges, err := s.content.BadgeCounts(c.Request.Context(), item.ID)
		if err != nil {
			return nil, err
		}
		return payload{
			"item":   view,
			"badges": badges,
			"kinds":  models.BadgeLabels,
		}, nil
	}, isPage(c))
}

func (s *SiteModule) listPeople(c *gin.Context) {
	s.serve(c, func(c *gin.Context) (payload, error) {
		ctx := c.Request.Context()
		users, err := s.participants.ListParticipants(ctx)
		if err != nil {
			return nil, err
		}
		return payload{"participants": s.participants.Views(ctx, users, true)}, nil
	}, isPage(c))
}

func (s *SiteModule) showPerson(c *gin.Context) {
	s.serve(c, func(c *gin.Context) (payload, error) {
		ctx := c.Request.Context()
		u, err := s.participants.Get(ctx, c.Param("id"))
		if err != nil {
			return nil, err
		}
		if !u.Role.Participant() {
			return nil, apperr.NotFound("Učesnik ne postoji.")
		}
		works, err := s.content.ListPublishedByAuthor(ctx, u.ID)
		if err != nil {
			return nil, err
		}
		badges, err := s.content.AuthorBadgeCounts(ctx, u.ID)
		if err != nil {
			return nil, err
		}
		return payload{
			"participant": s.participants.View(ctx, *u, true),
			"bio_html":    renderMarkdown(u.Bio),
			"works":       s.content.Views(ctx, works),
			"badges":      badges,
		}, nil
	}, isPage(c))
}
