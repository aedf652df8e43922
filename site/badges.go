package site

import (
	"github.com/gin-gonic/gin"

	"fm3d/apperr"
	"fm3d/auth"
	"fm3d/common"
	"fm3d/models"
)

type badgeForm struct {
	Badge string `form:"badge" binding:"required"`
	Note  string `form:"note" binding:"max=500"`
}

var badgeMessages = apperr.FieldMessages{
	"Badge": "Izaberite bedž.",
	"Note":  "Napomena je predugačka.",
}

func (s *SiteModule) awardBadge(c *gin.Context) {
	back := "/radovi/" + c.Param("slug")
	out, err := s.doAwardBadge(c, back)
	common.Finish(c, s.log, out, err, back)
}

func (s *SiteModule) doAwardBadge(c *gin.Context, back string) (apperr.Outcome, error) {
	id, ok := auth.Current(c)
	if !ok {
		return apperr.Outcome{}, apperr.Unauthorized()
	}
	var form badgeForm
	if err := c.ShouldBind(&form); err != nil {
		return apperr.Outcome{}, apperr.FromBinding(err, badgeMessages)
	}
	ctx := c.Request.Context()
	item, err := s.content.GetPublished(ctx, models.KindWork, c.Param("slug"))
	if err != nil {
		return apperr.Outcome{}, err
	}
	if _, err := s.content.AwardBadge(ctx, id, item.ID, models.BadgeKind(form.Badge), form.Note); err != nil {
		return apperr.Outcome{}, err
	}
	return apperr.Ok(back, "Bedž je dodeljen."), nil
}
