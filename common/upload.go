package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"fm3d/apperr"
	"fm3d/assets"
)

// FormUpload reads the multipart file field, nil when the field is absent
// or empty.
func FormUpload(c *gin.Context, field string, maxBytes int64) (*assets.Upload, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, apperr.Wrap(apperr.KindValidation, err, "Neispravan fajl.")
	}
	return assets.FromFileHeader(fh, maxBytes)
}
