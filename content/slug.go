package content

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	nonSlugRun  = regexp.MustCompile(`[^a-z0-9]+`)
	slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
)

// Slugify lower-cases title, collapses every run of characters outside
// [a-z0-9] into one hyphen and trims hyphens from both ends.
func Slugify(title string) string {
	s := nonSlugRun.ReplaceAllString(strings.ToLower(strings.TrimSpace(title)), "-")
	return strings.Trim(s, "-")
}

// deriveSlug is Slugify with a time based fallback for titles that have no
// usable characters.
func deriveSlug(title string, now time.Time) string {
	if s := Slugify(title); s != "" {
		return s
	}
	return fmt.Sprintf("item-%d", now.UnixMilli())
}

// ValidSlug reports whether s is already in canonical slug form.
func ValidSlug(s string) bool {
	return slugPattern.MatchString(s)
}
