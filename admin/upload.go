package admin

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"fm3d/apperr"
	"fm3d/assets"
	"fm3d/auth"
	"fm3d/common"
	"fm3d/models"
	"fm3d/policy"
)

// upload stores a single image for the news editor and answers with the
// bucket key, a URL the editor can preview right away and the unsigned
// public URL of the object.
func (a *AdminModule) upload(c *gin.Context) {
	id, ok := auth.Current(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "UNAUTHORIZED"})
		return
	}
	if !policy.Can(id.Role, policy.UploadAsset, policy.Context{ActorID: id.ID}) {
		c.JSON(http.StatusForbidden, gin.H{"error": "FORBIDDEN"})
		return
	}

	up, err := common.FormUpload(c, "file", a.newsLimits.MaxBytes)
	if err == nil && up == nil {
		err = assets.ErrNoFile
	}
	if err != nil {
		a.uploadFailed(c, err)
		return
	}

	ctx := c.Request.Context()
	key, err := a.assets.Store(ctx, assets.PrefixNews, up, a.newsLimits)
	if err != nil {
		a.uploadFailed(c, err)
		return
	}
	a.log.Info().Str("key", key).Str("actor", id.ID).Int("bytes", len(up.Data)).Msg("asset uploaded")
	// url previews in the editor; public_url is what a public bucket serves
	c.JSON(http.StatusOK, gin.H{
		"url":        a.assets.ResolveViewableURL(ctx, models.AssetRef{Path: key}),
		"path":       key,
		"public_url": a.assets.PublicURL(key),
	})
}

func (a *AdminModule) uploadFailed(c *gin.Context, err error) {
	switch {
	case errors.Is(err, assets.ErrTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": apperr.Message(err)})
	case errors.Is(err, assets.ErrUnsupportedType):
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": apperr.Message(err)})
	case apperr.Is(err, apperr.KindStorage):
		a.log.Error().Err(err).Msg("upload to bucket failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": apperr.Message(err)})
	default:
		common.FailJSON(c, a.log, err)
	}
}
