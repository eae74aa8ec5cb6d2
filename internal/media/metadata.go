// Package media derives artifacts from uploaded bytes: content-sniffed
// metadata and bounded thumbnails.
package media

import (
	"bytes"
	"image"
	"image/color"
	"io"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/gabriel-vasile/mimetype"
)

// sniffLimit bounds how much of the stream is read for detection. MIME magic
// bytes and image headers both live well within this prefix.
const sniffLimit = 512 << 10

// Extract sniffs the MIME type from content (never from the filename) and,
// for images, decodes basic properties. A failure in the image-specific
// subset is non-fatal: the base fields are still returned alongside an error
// marker.
func Extract(r io.Reader, ext string, size int64) map[string]any {
	meta := map[string]any{
		"extension":  strings.ToLower(ext),
		"size_bytes": size,
	}

	head, err := io.ReadAll(io.LimitReader(r, sniffLimit))
	if err != nil {
		meta["error"] = err.Error()
		return meta
	}

	mtype := mimetype.Detect(head)
	meta["mime_type"] = mtype.String()

	if strings.HasPrefix(mtype.String(), "image/") {
		cfg, format, err := image.DecodeConfig(bytes.NewReader(head))
		if err != nil {
			meta["image_error"] = err.Error()
			return meta
		}
		meta["width"] = cfg.Width
		meta["height"] = cfg.Height
		meta["format"] = format
		meta["mode"] = colorMode(cfg.ColorModel)
	}

	return meta
}

func colorMode(m color.Model) string {
	switch m {
	case color.RGBAModel:
		return "RGBA"
	case color.RGBA64Model:
		return "RGBA64"
	case color.NRGBAModel:
		return "NRGBA"
	case color.NRGBA64Model:
		return "NRGBA64"
	case color.GrayModel:
		return "Gray"
	case color.Gray16Model:
		return "Gray16"
	case color.YCbCrModel:
		return "YCbCr"
	case color.NYCbCrAModel:
		return "NYCbCrA"
	case color.CMYKModel:
		return "CMYK"
	}
	if _, ok := m.(color.Palette); ok {
		return "Paletted"
	}
	return "unknown"
}
