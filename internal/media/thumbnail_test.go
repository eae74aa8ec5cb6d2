package media

import (
	"bytes"
	"image"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThumbnailFitsBounds(t *testing.T) {
	src := bytes.NewReader(encodePNG(t, 800, 600))

	var dst bytes.Buffer
	require.NoError(t, Thumbnail(src, &dst, 300, 300))

	cfg, format, err := image.DecodeConfig(bytes.NewReader(dst.Bytes()))
	require.NoError(t, err)

	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 300, cfg.Width)
	assert.Equal(t, 225, cfg.Height)
}

func TestThumbnailDoesNotUpscale(t *testing.T) {
	src := bytes.NewReader(encodePNG(t, 100, 50))

	var dst bytes.Buffer
	require.NoError(t, Thumbnail(src, &dst, 300, 300))

	cfg, _, err := image.DecodeConfig(bytes.NewReader(dst.Bytes()))
	require.NoError(t, err)

	assert.Equal(t, 100, cfg.Width)
	assert.Equal(t, 50, cfg.Height)
}

func TestThumbnailCorruptInput(t *testing.T) {
	var dst bytes.Buffer
	err := Thumbnail(strings.NewReader("definitely not an image"), &dst, 300, 300)
	assert.Error(t, err)
	assert.Zero(t, dst.Len())
}
