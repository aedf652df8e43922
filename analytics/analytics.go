// Package analytics counts visits to the public news and work pages.
package analytics

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

const (
	visitorCookie = "fm3d_visitor"
	// a visitor reloading the same page within this window is counted once
	throttle = 30 * time.Minute
)

// Visit is one counted view of a public page.
type Visit struct {
	ID            string    `gorm:"primaryKey;size:36"`
	ContentItemID *string   `gorm:"size:36;index"`
	Path          string    `gorm:"not null;index"`
	VisitorID     string    `gorm:"not null;index"`
	IP            string    `gorm:"not null"`
	Language      *string
	Browser       *string
	CreatedAt     time.Time `gorm:"index"`
}

func (v *Visit) BeforeCreate(*gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	return nil
}

type AnalyticsModule struct {
	db     *gorm.DB
	log    zerolog.Logger
	secure bool
	now    func() time.Time
}

// NewAnalyticsModule migrates the visits table. A nil module is valid and
// records nothing.
func NewAnalyticsModule(db *gorm.DB, secureCookie bool, log zerolog.Logger) (*AnalyticsModule, error) {
	if err := db.AutoMigrate(&Visit{}); err != nil {
		return nil, errors.Wrap(err, "migrating visits")
	}
	return &AnalyticsModule{db: db, log: log, secure: secureCookie, now: time.Now}, nil
}

// TrackVisit records a view of path, optionally tied to a content item.
// Failures are logged; they never affect the page.
func (a *AnalyticsModule) TrackVisit(c *gin.Context, path string, itemID *string) {
	if a == nil {
		return
	}
	visitor := a.visitorID(c)
	since := a.now().UTC().Add(-throttle)

	var recent int64
	err := a.db.WithContext(c.Request.Context()).Model(&Visit{}).
		Where("visitor_id = ? AND path = ? AND created_at > ?", visitor, path, since).
		Count(&recent).Error
	if err != nil {
		a.log.Warn().Err(err).Msg("checking recent visit")
		return
	}
	if recent > 0 {
		return
	}

	visit := Visit{
		ContentItemID: itemID,
		Path:          path,
		VisitorID:     visitor,
		IP:            clientIP(c),
		Language:      language(c.GetHeader("Accept-Language")),
		Browser:       browser(c.Request.UserAgent()),
		CreatedAt:     a.now().UTC(),
	}
	if err := a.db.WithContext(c.Request.Context()).Create(&visit).Error; err != nil {
		a.log.Warn().Err(err).Str("path", path).Msg("saving visit")
	}
}

func (a *AnalyticsModule) visitorID(c *gin.Context) string {
	if v, err := c.Cookie(visitorCookie); err == nil && v != "" {
		return v
	}
	sum := sha256.Sum256([]byte(a.now().String() + c.ClientIP() + c.Request.UserAgent()))
	id := hex.EncodeToString(sum[:])
	c.SetCookie(visitorCookie, id, 60*60*24*365, "/", "", a.secure, true)
	// visible to TrackVisit calls later in the same request
	c.Request.AddCookie(&http.Cookie{Name: visitorCookie, Value: id})
	return id
}

// clientIP prefers the address reported by a fronting proxy.
func clientIP(c *gin.Context) string {
	if fwd := c.GetHeader("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	if ip := c.GetHeader("X-Real-IP"); ip != "" {
		return ip
	}
	return c.ClientIP()
}

func browser(userAgent string) *string {
	if userAgent == "" {
		return nil
	}
	ua := strings.ToLower(userAgent)
	var name string
	// more specific engines first
	switch {
	case strings.Contains(ua, "edg"):
		name = "Edge"
	case strings.Contains(ua, "opr") || strings.Contains(ua, "opera"):
		name = "Opera"
	case strings.Contains(ua, "chrome"):
		name = "Chrome"
	case strings.Contains(ua, "safari"):
		name = "Safari"
	case strings.Contains(ua, "firefox"):
		name = "Firefox"
	default:
		name = "Other"
	}
	return &name
}

// language is the first tag of an Accept-Language header.
func language(header string) *string {
	if header == "" {
		return nil
	}
	lang := strings.TrimSpace(strings.Split(strings.Split(header, ",")[0], ";")[0])
	if lang == "" {
		return nil
	}
	return &lang
}
