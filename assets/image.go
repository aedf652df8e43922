package assets

import (
	"bytes"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// AvatarMaxSide bounds avatar width and height in pixels.
const AvatarMaxSide = 512

// FitImage shrinks JPEG and PNG uploads so neither side exceeds maxSide,
// honoring EXIF orientation. Other formats and images already small enough
// are returned unchanged. Call it after Validate.
func FitImage(up *Upload, maxSide int) (*Upload, error) {
	var format imaging.Format
	switch up.ContentType {
	case "image/jpeg":
		format = imaging.JPEG
	case "image/png":
		format = imaging.PNG
	default:
		return up, nil
	}

	img, err := imaging.Decode(bytes.NewReader(up.Data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrap(err, "decoding image")
	}
	b := img.Bounds()
	if b.Dx() <= maxSide && b.Dy() <= maxSide {
		return up, nil
	}

	var buf bytes.Buffer
	fitted := imaging.Fit(img, maxSide, maxSide, imaging.Lanczos)
	if err := imaging.Encode(&buf, fitted, format, imaging.JPEGQuality(85)); err != nil {
		return nil, errors.Wrap(err, "encoding image")
	}
	return &Upload{Name: up.Name, ContentType: up.ContentType, Data: buf.Bytes()}, nil
}
