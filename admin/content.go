package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fm3d/apperr"
	"fm3d/common"
	"fm3d/content"
	"fm3d/models"
)

type itemForm struct {
	Title       string `form:"title" binding:"required,max=200"`
	Slug        string `form:"slug" binding:"max=120"`
	Excerpt     string `form:"excerpt" binding:"max=500"`
	Body        string `form:"body"`
	Published   string `form:"published"`
	CoverPath   string `form:"coverPath"`
	CoverURL    string `form:"coverUrl"`
	RemoveCover string `form:"removeCover"`
	AuthorID    string `form:"authorId"`
	MediaType   string `form:"mediaType"`
}

var itemMessages = apperr.FieldMessages{
	"Title":   "Naslov je obavezan.",
	"Slug":    "Slug je predugačak.",
	"Excerpt": "Kratak opis je predugačak.",
}

// checked reads an HTML checkbox value.
func checked(v string) bool {
	switch v {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}

func adminPath(kind models.ContentKind) string {
	if kind == models.KindPost {
		return "/admin/vesti"
	}
	return "/admin/radovi"
}

// readItem binds the item form together with its uploaded files.
func (a *AdminModule) readItem(c *gin.Context, kind models.ContentKind) (content.Input, error) {
	var form itemForm
	if err := c.ShouldBind(&form); err != nil {
		return content.Input{}, apperr.FromBinding(err, itemMessages)
	}
	in := content.Input{
		Title:   form.Title,
		Slug:    form.Slug,
		Excerpt: form.Excerpt,
		Body:    form.Body,
		Publish: checked(form.Published),
		Cover: content.CoverInput{
			Remove: checked(form.RemoveCover),
			Path:   form.CoverPath,
			URL:    form.CoverURL,
		},
	}
	cover, err := common.FormUpload(c, "cover", a.uploadMax)
	if err != nil {
		return content.Input{}, err
	}
	in.Cover.Upload = cover

	if kind == models.KindWork {
		in.AuthorID = form.AuthorID
		in.MediaKind = models.MediaKind(form.MediaType)
		file, err := common.FormUpload(c, "file", a.uploadMax)
		if err != nil {
			return content.Input{}, err
		}
		in.File = file
	}
	return in, nil
}

func (a *AdminModule) listItems(c *gin.Context, kind models.ContentKind) {
	ctx := c.Request.Context()
	items, err := a.content.List(ctx, kind)
	if err != nil {
		common.FailJSON(c, a.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"items": a.content.Views(ctx, items),
		"flash": common.PopFlashes(c),
	})
}

func (a *AdminModule) listPosts(c *gin.Context) { a.listItems(c, models.KindPost) }

func (a *AdminModule) listWorks(c *gin.Context) { a.listItems(c, models.KindWork) }

func (a *AdminModule) getItem(c *gin.Context) {
	ctx := c.Request.Context()
	item, err := a.content.Get(ctx, c.Param("id"))
	if err != nil {
		common.FailJSON(c, a.log, err)
		return
	}
	visits, err := a.analytics.ItemVisitCount(ctx, item.ID)
	if err != nil {
		common.FailJSON(c, a.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"item":   a.content.View(ctx, *item),
		"visits": visits,
		"flash":  common.PopFlashes(c),
	})
}

func (a *AdminModule) createItem(c *gin.Context, kind models.ContentKind) (apperr.Outcome, error) {
	in, err := a.readItem(c, kind)
	if err != nil {
		return apperr.Outcome{}, err
	}
	item, err := a.content.Create(c.Request.Context(), actor(c), kind, in)
	if err != nil {
		return apperr.Outcome{}, err
	}
	return apperr.Ok(adminPath(kind)+"/"+item.ID, "Sačuvano."), nil
}

func (a *AdminModule) updateItem(c *gin.Context, kind models.ContentKind) (apperr.Outcome, error) {
	in, err := a.readItem(c, kind)
	if err != nil {
		return apperr.Outcome{}, err
	}
	item, err := a.content.Update(c.Request.Context(), actor(c), c.Param("id"), in)
	if err != nil {
		return apperr.Outcome{}, err
	}
	return apperr.Ok(adminPath(kind)+"/"+item.ID, "Izmene su sačuvane."), nil
}

func (a *AdminModule) publishItem(c *gin.Context, kind models.ContentKind) (apperr.Outcome, error) {
	publish := checked(c.PostForm("published"))
	if _, err := a.content.SetPublished(c.Request.Context(), actor(c), c.Param("id"), publish); err != nil {
		return apperr.Outcome{}, err
	}
	if publish {
		return apperr.Ok(adminPath(kind), "Objavljeno."), nil
	}
	return apperr.Ok(adminPath(kind), "Povučeno u nacrt."), nil
}

func (a *AdminModule) deleteItem(c *gin.Context, kind models.ContentKind) (apperr.Outcome, error) {
	if err := a.content.Delete(c.Request.Context(), actor(c), c.Param("id")); err != nil {
		return apperr.Outcome{}, err
	}
	return apperr.Ok(adminPath(kind), "Obrisano."), nil
}

func (a *AdminModule) createPost(c *gin.Context) {
	out, err := a.createItem(c, models.KindPost)
	common.Finish(c, a.log, out, err, "/admin/vesti")
}

func (a *AdminModule) updatePost(c *gin.Context) {
	out, err := a.updateItem(c, models.KindPost)
	common.Finish(c, a.log, out, err, "/admin/vesti/"+c.Param("id"))
}

func (a *AdminModule) publishPost(c *gin.Context) {
	out, err := a.publishItem(c, models.KindPost)
	common.Finish(c, a.log, out, err, "/admin/vesti")
}

func (a *AdminModule) deletePost(c *gin.Context) {
	out, err := a.deleteItem(c, models.KindPost)
	common.Finish(c, a.log, out, err, "/admin/vesti")
}

func (a *AdminModule) createWork(c *gin.Context) {
	out, err := a.createItem(c, models.KindWork)
	common.Finish(c, a.log, out, err, "/admin/radovi")
}

func (a *AdminModule) updateWork(c *gin.Context) {
	out, err := a.updateItem(c, models.KindWork)
	common.Finish(c, a.log, out, err, "/admin/radovi/"+c.Param("id"))
}

func (a *AdminModule) publishWork(c *gin.Context) {
	out, err := a.publishItem(c, models.KindWork)
	common.Finish(c, a.log, out, err, "/admin/radovi")
}

func (a *AdminModule) deleteWork(c *gin.Context) {
	out, err := a.deleteItem(c, models.KindWork)
	common.Finish(c, a.log, out, err, "/admin/radovi")
}
