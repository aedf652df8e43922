// Package admin serves the sign-in flow and the SUPERADMIN back office:
// news, works, participants and the upload endpoint used by the editors.
package admin

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"fm3d/analytics"
	"fm3d/apperr"
	"fm3d/assets"
	"fm3d/auth"
	"fm3d/common"
	"fm3d/content"
	"fm3d/models"
	"fm3d/participants"
	"fm3d/policy"
)

type AdminModule struct {
	db           *gorm.DB
	tokens       *auth.Tokens
	content      *content.Service
	participants *participants.Service
	assets       *assets.Service
	// uploadMax caps how much of a multipart file is read before validation.
	uploadMax  int64
	newsLimits assets.Limits
	analytics  *analytics.AnalyticsModule
	cache      CacheClearer
	log        zerolog.Logger
}

// CacheClearer empties the public page cache.
type CacheClearer interface {
	Clear() error
}

type Options struct {
	UploadMax  int64
	NewsLimits assets.Limits
	Analytics  *analytics.AnalyticsModule
	Cache      CacheClearer
}

const (
	statsDays = 14
	statsTop  = 5
)

func NewAdminModule(db *gorm.DB, tokens *auth.Tokens, contentService *content.Service,
	participantService *participants.Service, assetService *assets.Service, opts Options, log zerolog.Logger) *AdminModule {
	return &AdminModule{
		db:           db,
		tokens:       tokens,
		content:      contentService,
		participants: participantService,
		assets:       assetService,
		uploadMax:    opts.UploadMax,
		newsLimits:   opts.NewsLimits,
		analytics:    opts.Analytics,
		cache:        opts.Cache,
		log:          log.With().Str("module", "admin").Logger(),
	}
}

func (a *AdminModule) RegisterRoutes(router *gin.Engine) {
	router.GET("/login", a.loginPage)
	router.POST("/login", a.loginPost)
	router.POST("/logout", a.logout)
	router.GET("/logout", a.logout)
	router.GET("/dashboard", a.requireAdmin, a.dashboard)
	router.GET("/admin", a.adminRoot)

	router.POST("/api/upload", a.upload)

	adminGroup := router.Group("/admin")
	adminGroup.Use(a.requireAdmin)
	{
		adminGroup.GET("/vesti", a.listPosts)
		adminGroup.POST("/vesti", a.createPost)
		adminGroup.GET("/vesti/:id", a.getItem)
		adminGroup.POST("/vesti/:id", a.updatePost)
		adminGroup.POST("/vesti/:id/publish", a.publishPost)
		adminGroup.POST("/vesti/:id/delete", a.deletePost)

		adminGroup.GET("/radovi", a.listWorks)
		adminGroup.POST("/radovi", a.createWork)
		adminGroup.GET("/radovi/:id", a.getItem)
		adminGroup.POST("/radovi/:id", a.updateWork)
		adminGroup.POST("/radovi/:id/publish", a.publishWork)
		adminGroup.POST("/radovi/:id/delete", a.deleteWork)

		adminGroup.GET("/ucesnici", a.listParticipants)
		adminGroup.POST("/ucesnici", a.createParticipant)
		adminGroup.GET("/ucesnici/:id", a.getParticipant)
		adminGroup.POST("/ucesnici/:id/role", a.changeRole)
		adminGroup.POST("/ucesnici/:id/password", a.resetPassword)
		adminGroup.POST("/ucesnici/:id/delete", a.deleteParticipant)

		adminGroup.POST("/cache/clear", a.clearCache)
	}
}

// requireAdmin repeats the guard's decision for the handlers themselves, so
// the back office stays closed when the router is mounted without it.
func (a *AdminModule) requireAdmin(c *gin.Context) {
	id, ok := auth.Current(c)
	if !ok {
		c.Redirect(http.StatusFound, common.LoginRedirect(c.Request.URL.RequestURI()))
		c.Abort()
		return
	}
	if !policy.Can(id.Role, policy.ViewAdminArea, policy.Context{ActorID: id.ID}) {
		c.Redirect(http.StatusFound, common.ProfilePath)
		c.Abort()
		return
	}
	c.Next()
}

func (a *AdminModule) adminRoot(c *gin.Context) {
	if _, ok := auth.Current(c); ok {
		c.Redirect(http.StatusFound, "/dashboard")
		return
	}
	c.Redirect(http.StatusFound, common.LoginRedirect("/dashboard"))
}

func (a *AdminModule) dashboard(c *gin.Context) {
	ctx := c.Request.Context()
	posts, err := a.content.Count(ctx, models.KindPost)
	if err != nil {
		common.FailJSON(c, a.log, err)
		return
	}
	works, err := a.content.Count(ctx, models.KindWork)
	if err != nil {
		common.FailJSON(c, a.log, err)
		return
	}
	people, err := a.participants.Count(ctx)
	if err != nil {
		common.FailJSON(c, a.log, err)
		return
	}
	byDay, err := a.analytics.VisitsByDay(ctx, statsDays)
	if err != nil {
		common.FailJSON(c, a.log, err)
		return
	}
	top, err := a.analytics.TopItems(ctx, statsDays, statsTop)
	if err != nil {
		common.FailJSON(c, a.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"posts":         posts,
		"works":         works,
		"participants":  people,
		"visits_by_day": byDay,
		"top_items":     top,
		"flash":         common.PopFlashes(c),
	})
}

func (a *AdminModule) clearCache(c *gin.Context) {
	var err error
	if a.cache != nil {
		err = a.cache.Clear()
	}
	if err == nil {
		a.log.Info().Str("actor", actor(c).ID).Msg("page cache cleared")
	}
	common.Finish(c, a.log, apperr.Ok("/dashboard", "Keš je obrisan."), err, "/dashboard")
}

// safeCallback keeps redirects after login on this site.
func safeCallback(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
		return common.ProfilePath
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host != "" || u.Scheme != "" {
		return common.ProfilePath
	}
	return raw
}

func (a *AdminModule) loginPage(c *gin.Context) {
	callback := safeCallback(c.Query("callbackUrl"))
	if _, ok := auth.Current(c); ok {
		c.Redirect(http.StatusFound, callback)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"callbackUrl": callback,
		"flash":       common.PopFlashes(c),
	})
}

type loginForm struct {
	Email       string `form:"email" binding:"required,email"`
	Password    string `form:"password" binding:"required"`
	CallbackURL string `form:"callbackUrl"`
}

var loginMessages = apperr.FieldMessages{
	"Email":    "Unesite ispravan email.",
	"Password": "Unesite lozinku.",
}

func (a *AdminModule) loginPost(c *gin.Context) {
	callback := safeCallback(c.PostForm("callbackUrl"))
	out, err := a.doLogin(c, callback)
	if apperr.Is(err, apperr.KindUnauthorized) {
		// a failed sign-in goes back to the form, not through Finish's
		// login redirect
		common.FlashError(c, apperr.Message(err))
		c.Redirect(http.StatusFound, common.LoginRedirect(callback))
		return
	}
	common.Finish(c, a.log, out, err, common.LoginRedirect(callback))
}

func (a *AdminModule) doLogin(c *gin.Context, callback string) (apperr.Outcome, error) {
	var form loginForm
	if err := c.ShouldBind(&form); err != nil {
		return apperr.Outcome{}, apperr.FromBinding(err, loginMessages)
	}
	user, err := auth.Authenticate(a.db.WithContext(c.Request.Context()), form.Email, form.Password)
	if err != nil {
		a.log.Info().Str("email", form.Email).Msg("sign-in rejected")
		return apperr.Outcome{}, err
	}
	token, err := a.tokens.Issue(*user)
	if err != nil {
		return apperr.Outcome{}, err
	}
	a.tokens.SetCookie(c, token)
	a.log.Info().Str("user", user.ID).Str("role", string(user.Role)).Msg("signed in")
	return apperr.Ok(callback, "Dobro došli, "+user.DisplayName()+"."), nil
}

func (a *AdminModule) logout(c *gin.Context) {
	a.tokens.ClearCookie(c)
	c.Redirect(http.StatusFound, "/")
}

// actor is the identity resolved by the token middleware; the zero value
// makes every service answer Unauthorized.
func actor(c *gin.Context) auth.Identity {
	id, _ := auth.Current(c)
	return id
}
