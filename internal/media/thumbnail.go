package media

import (
	"fmt"
	"io"

	"github.com/disintegration/imaging"
)

const thumbnailJPEGQuality = 85

// Thumbnail resizes src preserving aspect ratio so that neither dimension
// exceeds the bounds, and writes a JPEG at fixed quality. Non-image or
// corrupt input returns an error; the caller treats that as a skipped
// thumbnail, never as an upload failure.
func Thumbnail(src io.Reader, dst io.Writer, maxWidth, maxHeight int) error {
	img, err := imaging.Decode(src, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}

	thumb := imaging.Fit(img, maxWidth, maxHeight, imaging.Lanczos)

	if err := imaging.Encode(dst, thumb, imaging.JPEG, imaging.JPEGQuality(thumbnailJPEGQuality)); err != nil {
		return fmt.Errorf("encode thumbnail: %w", err)
	}

	return nil
}
