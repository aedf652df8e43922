package profile

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"fm3d/apperr"
	"fm3d/auth"
	"fm3d/common"
	"fm3d/content"
	"fm3d/models"
)

const (
	profilePath = common.ProfilePath
	journalTake = 30
)

type ProfileModule struct {
	profile   *Service
	content   *content.Service
	uploadMax int64
	log       zerolog.Logger
}

func NewProfileModule(profileService *Service, contentService *content.Service, uploadMax int64, log zerolog.Logger) *ProfileModule {
	return &ProfileModule{
		profile:   profileService,
		content:   contentService,
		uploadMax: uploadMax,
		log:       log.With().Str("module", "profile").Logger(),
	}
}

func (p *ProfileModule) RegisterRoutes(router *gin.Engine) {
	group := router.Group(profilePath)
	group.Use(p.requireAuth)
	{
		group.GET("", p.show)
		group.POST("", p.save)
		group.POST("/lozinka", p.changePassword)
		group.POST("/rad", p.submitWork)
		group.POST("/dnevnik", p.writeJournal)
	}
}

// requireAuth sends anonymous visitors to sign in and back here.
func (p *ProfileModule) requireAuth(c *gin.Context) {
	if _, ok := auth.Current(c); !ok {
		c.Redirect(http.StatusFound, common.LoginRedirect(profilePath))
		c.Abort()
		return
	}
	c.Next()
}

func actor(c *gin.Context) auth.Identity {
	id, _ := auth.Current(c)
	return id
}

func (p *ProfileModule) show(c *gin.Context) {
	ctx := c.Request.Context()
	id := actor(c)
	me, err := p.profile.Me(ctx, id)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			// the token outlived its account
			c.Redirect(http.StatusFound, "/logout")
			return
		}
		common.FailJSON(c, p.log, err)
		return
	}
	journal, err := p.profile.Journal(ctx, id)
	if err != nil {
		common.FailJSON(c, p.log, err)
		return
	}
	if len(journal) > journalTake {
		journal = journal[:journalTake]
	}
	works, err := p.content.ListPublishedByAuthor(ctx, me.ID)
	if err != nil {
		common.FailJSON(c, p.log, err)
		return
	}
	badges, err := p.content.AuthorBadgeCounts(ctx, me.ID)
	if err != nil {
		common.FailJSON(c, p.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user":       me,
		"avatar_src": p.profile.AvatarSrc(ctx, *me),
		"can_upload": p.profile.CanSubmitWork(*me),
		"journal":    journal,
		"works":      p.content.Views(ctx, works),
		"badges":     badges,
		"flash":      common.PopFlashes(c),
	})
}

type profileForm struct {
	Bio string `form:"bio" binding:"max=2000"`
}

func (p *ProfileModule) save(c *gin.Context) {
	out, err := p.doSave(c)
	common.Finish(c, p.log, out, err, profilePath)
}

func (p *ProfileModule) doSave(c *gin.Context) (apperr.Outcome, error) {
	var form profileForm
	if err := c.ShouldBind(&form); err != nil {
		return apperr.Outcome{}, apperr.FromBinding(err, apperr.FieldMessages{"Bio": "Biografija je predugačka."})
	}
	avatar, err := common.FormUpload(c, "avatar", p.uploadMax)
	if err != nil {
		return apperr.Outcome{}, err
	}
	if _, err := p.profile.SaveProfile(c.Request.Context(), actor(c), form.Bio, avatar); err != nil {
		return apperr.Outcome{}, err
	}
	return apperr.Ok(profilePath, "Profil je sačuvan."), nil
}

type passwordForm struct {
	Current string `form:"currentPassword"`
	Next    string `form:"newPassword"`
	Confirm string `form:"confirmPassword"`
}

func (p *ProfileModule) changePassword(c *gin.Context) {
	var form passwordForm
	err := c.ShouldBind(&form)
	if err != nil {
		err = apperr.FromBinding(err, nil)
	} else {
		err = p.profile.ChangePassword(c.Request.Context(), actor(c), form.Current, form.Next, form.Confirm)
	}
	common.Finish(c, p.log, apperr.Ok(profilePath, "Šifra je promenjena."), err, profilePath)
}

type workForm struct {
	Title     string `form:"title" binding:"required,max=200"`
	Excerpt   string `form:"excerpt" binding:"max=500"`
	Body      string `form:"body"`
	MediaType string `form:"mediaType"`
}

var workMessages = apperr.FieldMessages{
	"Title":   "Naslov je obavezan.",
	"Excerpt": "Kratak opis je predugačak.",
}

func (p *ProfileModule) submitWork(c *gin.Context) {
	out, err := p.doSubmitWork(c)
	common.Finish(c, p.log, out, err, profilePath)
}

func (p *ProfileModule) doSubmitWork(c *gin.Context) (apperr.Outcome, error) {
	var form workForm
	if err := c.ShouldBind(&form); err != nil {
		return apperr.Outcome{}, apperr.FromBinding(err, workMessages)
	}
	cover, err := common.FormUpload(c, "cover", p.uploadMax)
	if err != nil {
		return apperr.Outcome{}, err
	}
	file, err := common.FormUpload(c, "file", p.uploadMax)
	if err != nil {
		return apperr.Outcome{}, err
	}
	me := actor(c)
	// works sent from the profile are always the sender's own and go live
	item, err := p.content.Create(c.Request.Context(), me, models.KindWork, content.Input{
		AuthorID:  me.ID,
		Publish:   true,
		Title:     form.Title,
		Excerpt:   form.Excerpt,
		Body:      form.Body,
		MediaKind: models.MediaKind(form.MediaType),
		Cover:     content.CoverInput{Upload: cover},
		File:      file,
	})
	if err != nil {
		return apperr.Outcome{}, err
	}
	return apperr.Ok("/radovi/"+item.Slug, "Rad je objavljen."), nil
}

type journalForm struct {
	Date string `form:"date"`
	Text string `form:"text"`
}

func (p *ProfileModule) writeJournal(c *gin.Context) {
	var form journalForm
	err := c.ShouldBind(&form)
	if err != nil {
		err = apperr.FromBinding(err, nil)
	} else {
		_, err = p.profile.WriteJournal(c.Request.Context(), actor(c), form.Date, form.Text)
	}
	common.Finish(c, p.log, apperr.Ok(profilePath, "Unos je sačuvan."), err, profilePath)
}
