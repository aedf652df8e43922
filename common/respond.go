package common

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"fm3d/apperr"
)

const (
	LoginPath   = "/login"
	ProfilePath = "/profil"
)

// LoginRedirect is the login entry point carrying the page to return to.
func LoginRedirect(callback string) string {
	return LoginPath + "?callbackUrl=" + url.QueryEscape(callback)
}

// Finish ends a mutation handler. On success it flashes the notice and
// follows the outcome; on failure the error kind decides where the user
// lands: the login page, their own profile, or back at the form with the
// message.
func Finish(c *gin.Context, log zerolog.Logger, out apperr.Outcome, err error, back string) {
	if err == nil {
		FlashNotice(c, out.Notice)
		c.Redirect(http.StatusFound, out.Redirect)
		return
	}

	switch apperr.KindOf(err) {
	case apperr.KindUnauthorized:
		c.Redirect(http.StatusFound, LoginRedirect(back))
		return
	case apperr.KindForbidden:
		c.Redirect(http.StatusFound, ProfilePath)
		return
	case apperr.KindInternal:
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("mutation failed")
	default:
		log.Debug().Err(err).Str("path", c.Request.URL.Path).Msg("mutation rejected")
	}
	FlashError(c, apperr.Message(err))
	c.Redirect(http.StatusFound, back)
}

// FailJSON writes err as a JSON error with a status matching its kind.
func FailJSON(c *gin.Context, log zerolog.Logger, err error) {
	status := http.StatusInternalServerError
	switch apperr.KindOf(err) {
	case apperr.KindUnauthorized:
		status = http.StatusUnauthorized
	case apperr.KindForbidden:
		status = http.StatusForbidden
	case apperr.KindValidation:
		status = http.StatusBadRequest
	case apperr.KindConflict:
		status = http.StatusConflict
	case apperr.KindNotFound:
		status = http.StatusNotFound
	default:
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
	}
	c.JSON(status, gin.H{"error": apperr.Message(err)})
}
