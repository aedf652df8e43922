package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Role string

const (
	RoleStudent    Role = "STUDENT"
	RoleParent     Role = "PARENT"
	RoleAdmin      Role = "ADMIN"
	RoleSuperadmin Role = "SUPERADMIN"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleParent, RoleAdmin, RoleSuperadmin:
		return true
	}
	return false
}

// Participant reports whether r may be assigned when provisioning a
// participant from the admin area.
func (r Role) Participant() bool {
	return r == RoleStudent || r == RoleParent
}

type ContentKind string

const (
	KindPost ContentKind = "post"
	KindWork ContentKind = "work"
)

type MediaKind string

const (
	MediaImage MediaKind = "IMAGE"
	MediaVideo MediaKind = "VIDEO"
	MediaGLTF  MediaKind = "GLTF"
	MediaOther MediaKind = "OTHER"
)

// ParseMediaKind falls back to IMAGE for anything unknown.
func ParseMediaKind(s string) MediaKind {
	switch k := MediaKind(s); k {
	case MediaImage, MediaVideo, MediaGLTF, MediaOther:
		return k
	}
	return MediaImage
}

type BadgeKind string

const (
	BadgeInnovative BadgeKind = "INNOVATIVE"
	BadgeAesthetic  BadgeKind = "AESTHETIC"
	BadgeCraft      BadgeKind = "CRAFT"
	BadgeTeamwork   BadgeKind = "TEAMWORK"
	BadgeProgress   BadgeKind = "PROGRESS"
	BadgeHelpful    BadgeKind = "HELPFUL"
)

var BadgeLabels = map[BadgeKind]string{
	BadgeInnovative: "Inovativno",
	BadgeAesthetic:  "Estetski lepo",
	BadgeCraft:      "Izvedba/preciznost",
	BadgeTeamwork:   "Timski rad",
	BadgeProgress:   "Napredak",
	BadgeHelpful:    "Pomoć drugima",
}

func (b BadgeKind) Valid() bool {
	_, ok := BadgeLabels[b]
	return ok
}

// AssetRef points at a stored object: either a key inside our bucket or an
// absolute external URL. At most one of the two is set.
type AssetRef struct {
	Path string `gorm:"size:512" json:"path,omitempty"`
	URL  string `gorm:"size:2048" json:"url,omitempty"`
}

func (a *AssetRef) SetPath(p string) {
	a.Path = p
	a.URL = ""
}

func (a *AssetRef) SetURL(u string) {
	a.URL = u
	a.Path = ""
}

func (a *AssetRef) Clear() {
	a.Path = ""
	a.URL = ""
}

func (a AssetRef) Empty() bool {
	return a.Path == "" && a.URL == ""
}

type User struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	Role         Role      `gorm:"type:varchar(16);not null;default:STUDENT;index" json:"role"`
	Bio          string    `gorm:"type:text" json:"bio"`
	SchoolClass  string    `json:"school_class,omitempty"`
	Avatar       AssetRef  `gorm:"embedded;embeddedPrefix:avatar_" json:"avatar"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DisplayName falls back to the email when no name was given.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

type ContentItem struct {
	ID        string      `gorm:"primaryKey;size:36" json:"id"`
	Kind      ContentKind `gorm:"type:varchar(8);not null;uniqueIndex:idx_content_kind_slug" json:"kind"`
	Slug      string      `gorm:"not null;uniqueIndex:idx_content_kind_slug" json:"slug"`
	Title     string      `gorm:"not null" json:"title"`
	Excerpt   string      `gorm:"type:text" json:"excerpt,omitempty"`
	Body      string      `gorm:"type:text" json:"body,omitempty"`
	MediaKind MediaKind   `gorm:"type:varchar(8);not null;default:IMAGE" json:"media_kind"`
	Cover     AssetRef    `gorm:"embedded;embeddedPrefix:cover_" json:"cover"`
	File      AssetRef    `gorm:"embedded;embeddedPrefix:file_" json:"file"`
	AuthorID  *string     `gorm:"size:36;index" json:"author_id,omitempty"`
	Author    *User       `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Published bool        `gorm:"default:false;index" json:"published"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// AuthoredBy reports whether userID is the attributed author.
func (c ContentItem) AuthoredBy(userID string) bool {
	return c.AuthorID != nil && *c.AuthorID == userID
}

type BadgeAward struct {
	ID            string    `gorm:"primaryKey;size:36" json:"id"`
	ContentItemID string    `gorm:"size:36;not null;index" json:"content_item_id"`
	GiverID       string    `gorm:"size:36;not null;index" json:"giver_id"`
	Badge         BadgeKind `gorm:"type:varchar(16);not null" json:"badge"`
	Note          string    `gorm:"type:text" json:"note,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// JournalEntry is unique per user and calendar day (Day is YYYY-MM-DD, UTC).
type JournalEntry struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	UserID    string    `gorm:"size:36;not null;uniqueIndex:idx_journal_user_day" json:"user_id"`
	Day       string    `gorm:"size:10;not null;uniqueIndex:idx_journal_user_day" json:"day"`
	Text      string    `gorm:"type:text;not null" json:"text"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

func (u *User) BeforeCreate(*gorm.DB) error         { newID(&u.ID); return nil }
func (c *ContentItem) BeforeCreate(*gorm.DB) error  { newID(&c.ID); return nil }
func (b *BadgeAward) BeforeCreate(*gorm.DB) error   { newID(&b.ID); return nil }
func (j *JournalEntry) BeforeCreate(*gorm.DB) error { newID(&j.ID); return nil }
