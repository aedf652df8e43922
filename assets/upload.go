package assets

import (
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"

	"fm3d/apperr"
)

const MiB = 1 << 20

var (
	ErrTooLarge        = apperr.Validation("Fajl je prevelik.")
	ErrUnsupportedType = apperr.Validation("Nepodržan tip fajla.")
	ErrNoFile          = apperr.Validation("Fajl nije poslat.")
)

var imageTypes = []string{
	"image/jpeg",
	"image/png",
	"image/webp",
	"image/avif",
	"image/gif",
}

// Limits is the boundary check applied to an upload before it reaches the
// bucket. A nil Allowed accepts any content type.
type Limits struct {
	MaxBytes int64
	Allowed  map[string]bool
}

// ImageLimits accepts the raster image types; withSVG adds image/svg+xml.
func ImageLimits(maxBytes int64, withSVG bool) Limits {
	allowed := make(map[string]bool, len(imageTypes)+1)
	for _, t := range imageTypes {
		allowed[t] = true
	}
	if withSVG {
		allowed["image/svg+xml"] = true
	}
	return Limits{MaxBytes: maxBytes, Allowed: allowed}
}

// AnyLimits only bounds the size.
func AnyLimits(maxBytes int64) Limits {
	return Limits{MaxBytes: maxBytes}
}

// Upload is a file received from a form, fully read into memory.
type Upload struct {
	Name        string
	ContentType string
	Data        []byte
}

// FromFileHeader reads fh, refusing to read past maxBytes. A nil or empty
// header yields a nil upload and no error.
func FromFileHeader(fh *multipart.FileHeader, maxBytes int64) (*Upload, error) {
	if fh == nil || fh.Size == 0 {
		return nil, nil
	}
	if maxBytes > 0 && fh.Size > maxBytes {
		return nil, tooLarge()
	}
	f, err := fh.Open()
	if err != nil {
		return nil, errors.Wrap(err, "opening upload")
	}
	defer f.Close()

	r := io.Reader(f)
	if maxBytes > 0 {
		r = io.LimitReader(f, maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading upload")
	}
	return &Upload{Name: fh.Filename, ContentType: fh.Header.Get("Content-Type"), Data: data}, nil
}

// Validate enforces limits on up and fixes up its ContentType from the
// sniffed bytes. Declared types are not trusted.
func Validate(up *Upload, limits Limits) error {
	if up == nil || len(up.Data) == 0 {
		return ErrNoFile
	}
	if limits.MaxBytes > 0 && int64(len(up.Data)) > limits.MaxBytes {
		return tooLarge()
	}
	detected := mimetype.Detect(up.Data)
	ct := baseType(detected.String())
	if limits.Allowed != nil {
		if !limits.Allowed[ct] {
			// SVG is text; the sniffer may only see XML.
			declared := baseType(up.ContentType)
			if !(declared == "image/svg+xml" && limits.Allowed[declared] && detected.Is("text/xml")) {
				return ErrUnsupportedType
			}
			ct = declared
		}
	}
	if ct == "" || ct == "application/octet-stream" {
		if declared := baseType(up.ContentType); declared != "" {
			ct = declared
		}
	}
	up.ContentType = ct
	return nil
}

// Extension is the normalized extension for up, without the dot.
func Extension(up *Upload) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(up.Name), "."))
	if ext == "" || len(ext) > 8 || strings.IndexFunc(ext, notAlnum) >= 0 {
		ext = strings.TrimPrefix(mimetype.Detect(up.Data).Extension(), ".")
	}
	if ext == "" {
		ext = "bin"
	}
	return ext
}

func notAlnum(r rune) bool {
	return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
}

func baseType(ct string) string {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

func tooLarge() error {
	return ErrTooLarge
}
