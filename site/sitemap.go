package site

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"fm3d/models"
)

func writeURL(b *strings.Builder, loc string, lastmod time.Time, changefreq, priority string) {
	b.WriteString("  <url>\n")
	b.WriteString("    <loc>" + loc + "</loc>\n")
	if !lastmod.IsZero() {
		b.WriteString("    <lastmod>" + lastmod.Format(time.RFC3339) + "</lastmod>\n")
	}
	b.WriteString("    <changefreq>" + changefreq + "</changefreq>\n")
	b.WriteString("    <priority>" + priority + "</priority>\n")
	b.WriteString("  </url>\n")
}

func (s *SiteModule) sitemap(c *gin.Context) {
	ctx := c.Request.Context()

	var sitemap strings.Builder
	sitemap.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	sitemap.WriteString("\n")
	sitemap.WriteString(`<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`)
	sitemap.WriteString("\n")

	writeURL(&sitemap, s.domain+"/", time.Time{}, "weekly", "1.0")
	writeURL(&sitemap, s.domain+"/vesti", time.Time{}, "daily", "0.8")
	writeURL(&sitemap, s.domain+"/radovi", time.Time{}, "daily", "0.8")
	writeURL(&sitemap, s.domain+"/ucesnici", time.Time{}, "weekly", "0.7")

	for _, kind := range []models.ContentKind{models.KindPost, models.KindWork} {
		items, err := s.content.ListPublished(ctx, kind)
		if err != nil {
			s.log.Error().Err(err).Msg("sitemap: listing content")
			c.String(http.StatusInternalServerError, "")
			return
		}
		base := s.domain + "/radovi/"
		if kind == models.KindPost {
			base = s.domain + "/vesti/"
		}
		for _, it := range items {
			writeURL(&sitemap, base+it.Slug, it.UpdatedAt, "monthly", "0.6")
		}
	}

	people, err := s.participants.ListParticipants(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("sitemap: listing participants")
		c.String(http.StatusInternalServerError, "")
		return
	}
	for _, u := range people {
		writeURL(&sitemap, s.domain+"/ucesnici/"+u.ID, u.UpdatedAt, "monthly", "0.5")
	}

	sitemap.WriteString("</urlset>\n")

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.String(http.StatusOK, sitemap.String())
}
