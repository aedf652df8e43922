package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fm3d/apperr"
	"fm3d/common"
	"fm3d/models"
	"fm3d/participants"
)

const participantsPath = "/admin/ucesnici"

type participantForm struct {
	Name        string `form:"name"`
	Email       string `form:"email" binding:"omitempty,email"`
	Role        string `form:"role"`
	Password    string `form:"password"`
	Bio         string `form:"bio" binding:"max=2000"`
	SchoolClass string `form:"schoolClass" binding:"max=32"`
}

var participantMessages = apperr.FieldMessages{
	"Email":       "Unesite ispravan email.",
	"Bio":         "Biografija je predugačka.",
	"SchoolClass": "Odeljenje je predugačko.",
}

func (a *AdminModule) listParticipants(c *gin.Context) {
	ctx := c.Request.Context()
	users, err := a.participants.List(ctx)
	if err != nil {
		common.FailJSON(c, a.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"participants": a.participants.Views(ctx, users, false),
		"flash":        common.PopFlashes(c),
	})
}

func (a *AdminModule) getParticipant(c *gin.Context) {
	ctx := c.Request.Context()
	u, err := a.participants.Get(ctx, c.Param("id"))
	if err != nil {
		common.FailJSON(c, a.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"participant": a.participants.View(ctx, *u, false),
		"flash":       common.PopFlashes(c),
	})
}

func (a *AdminModule) createParticipant(c *gin.Context) {
	out, err := a.doCreateParticipant(c)
	common.Finish(c, a.log, out, err, participantsPath)
}

func (a *AdminModule) doCreateParticipant(c *gin.Context) (apperr.Outcome, error) {
	var form participantForm
	if err := c.ShouldBind(&form); err != nil {
		return apperr.Outcome{}, apperr.FromBinding(err, participantMessages)
	}
	avatar, err := common.FormUpload(c, "avatar", a.uploadMax)
	if err != nil {
		return apperr.Outcome{}, err
	}
	u, err := a.participants.Create(c.Request.Context(), actor(c), participants.NewParticipant{
		Name:        form.Name,
		Email:       form.Email,
		Role:        models.Role(form.Role),
		Password:    form.Password,
		Bio:         form.Bio,
		SchoolClass: form.SchoolClass,
		Avatar:      avatar,
	})
	if err != nil {
		return apperr.Outcome{}, err
	}
	return apperr.Ok(participantsPath+"/"+u.ID, "Učesnik je dodat."), nil
}

func (a *AdminModule) changeRole(c *gin.Context) {
	id := c.Param("id")
	_, err := a.participants.ChangeRole(c.Request.Context(), actor(c), id, models.Role(c.PostForm("role")))
	common.Finish(c, a.log, apperr.Ok(participantsPath+"/"+id, "Uloga je promenjena."), err, participantsPath+"/"+id)
}

func (a *AdminModule) resetPassword(c *gin.Context) {
	id := c.Param("id")
	err := a.participants.ResetPassword(c.Request.Context(), actor(c), id, c.PostForm("password"))
	common.Finish(c, a.log, apperr.Ok(participantsPath+"/"+id, "Lozinka je promenjena."), err, participantsPath+"/"+id)
}

func (a *AdminModule) deleteParticipant(c *gin.Context) {
	err := a.participants.Delete(c.Request.Context(), actor(c), c.Param("id"))
	common.Finish(c, a.log, apperr.Ok(participantsPath, "Učesnik je obrisan."), err, participantsPath)
}
