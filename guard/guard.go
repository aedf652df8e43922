// Package guard is the first-line check in front of the admin area. It only
// decides where a request may go; every mutation behind it checks the role
// policy again.
package guard

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"fm3d/auth"
	"fm3d/common"
	"fm3d/policy"
)

type Decision int

const (
	Allow Decision = iota
	RedirectLogin
	RedirectProfile
)

// ProtectedPrefixes are matched on whole path segments.
var ProtectedPrefixes = []string{"/admin", "/dashboard"}

func Protected(path string) bool {
	for _, p := range ProtectedPrefixes {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// Evaluate decides what happens to a request for path made by id (present
// only when authenticated is true).
func Evaluate(path string, id auth.Identity, authenticated bool) Decision {
	if !Protected(path) {
		return Allow
	}
	if !authenticated {
		return RedirectLogin
	}
	if !policy.Can(id.Role, policy.ViewAdminArea, policy.Context{ActorID: id.ID}) {
		return RedirectProfile
	}
	return Allow
}

// Middleware applies Evaluate. It must run after auth's token middleware.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := auth.Current(c)
		switch Evaluate(c.Request.URL.Path, id, ok) {
		case RedirectLogin:
			c.Redirect(http.StatusFound, common.LoginRedirect(c.Request.URL.RequestURI()))
			c.Abort()
		case RedirectProfile:
			c.Redirect(http.StatusFound, common.ProfilePath)
			c.Abort()
		default:
			c.Next()
		}
	}
}
