// Package site serves the public side of FM3D: the read API for news, works
// and participants, the pages that carry flash messages, badge awards and
// the sitemap.
package site

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"fm3d/analytics"
	"fm3d/auth"
	"fm3d/common"
	"fm3d/content"
	"fm3d/models"
	"fm3d/participants"
)

const homeNews = 3

type SiteModule struct {
	content      *content.Service
	participants *participants.Service
	analytics    *analytics.AnalyticsModule
	domain       string
	log          zerolog.Logger
}

func NewSiteModule(contentService *content.Service, participantService *participants.Service,
	analyticsModule *analytics.AnalyticsModule, domain string, log zerolog.Logger) *SiteModule {
	return &SiteModule{
		content:      contentService,
		participants: participantService,
		analytics:    analyticsModule,
		domain:       domain,
		log:          log.With().Str("module", "site").Logger(),
	}
}

// RegisterRoutes mounts the cacheable /api reads and, next to them, the
// page routes that also hand out pending flash messages.
func (s *SiteModule) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	{
		api.GET("/vesti", s.listNews)
		api.GET("/vesti/:slug", s.showNews)
		api.GET("/radovi", s.listWorks)
		api.GET("/radovi/:slug", s.showWork)
		api.GET("/ucesnici", s.listPeople)
		api.GET("/ucesnici/:id", s.showPerson)
	}

	router.GET("/", s.index)
	router.GET("/vesti", s.page(s.listNews))
	router.GET("/vesti/:slug", s.page(s.showNews))
	router.GET("/radovi", s.page(s.listWorks))
	router.GET("/radovi/:slug", s.page(s.showWork))
	router.GET("/ucesnici", s.page(s.listPeople))
	router.GET("/ucesnici/:id", s.page(s.showPerson))
	router.POST("/radovi/:slug/bedz", s.awardBadge)
	router.GET("/sitemap.xml", s.sitemap)
}

type payload = gin.H

// loader builds a response body or fails with an apperr-kinded error.
type loader func(c *gin.Context) (payload, error)

func (s *SiteModule) serve(c *gin.Context, load loader, withFlash bool) {
	body, err := load(c)
	if err != nil {
		common.FailJSON(c, s.log, err)
		return
	}
	if withFlash {
		body["flash"] = common.PopFlashes(c)
		if id, ok := auth.Current(c); ok {
			body["viewer"] = id
		}
	}
	c.JSON(http.StatusOK, body)
}

// page wraps an API loader for the browser facing route.
func (s *SiteModule) page(h gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(pageKey, true)
		h(c)
	}
}

const pageKey = "site.page"

func isPage(c *gin.Context) bool {
	return c.GetBool(pageKey)
}

func (s *SiteModule) index(c *gin.Context) {
	s.serve(c, func(c *gin.Context) (payload, error) {
		ctx := c.Request.Context()
		news, err := s.content.ListPublished(ctx, models.KindPost)
		if err != nil {
			return nil, err
		}
		if len(news) > homeNews {
			news = news[:homeNews]
		}
		return payload{
			"title": "FM3D",
			"news":  s.content.Views(ctx, news),
		}, nil
	}, true)
}
