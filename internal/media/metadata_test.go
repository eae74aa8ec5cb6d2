package media

import (
	"bytes"
	"image"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func TestExtractText(t *testing.T) {
	meta := Extract(strings.NewReader("plain text content"), ".txt", 18)

	assert.Equal(t, ".txt", meta["extension"])
	assert.Equal(t, int64(18), meta["size_bytes"])

	mime, ok := meta["mime_type"].(string)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(mime, "text/plain"), "got %q", mime)

	assert.NotContains(t, meta, "width")
	assert.NotContains(t, meta, "image_error")
}

func TestExtractImage(t *testing.T) {
	data := encodePNG(t, 64, 48)
	meta := Extract(bytes.NewReader(data), ".png", int64(len(data)))

	assert.Equal(t, "image/png", meta["mime_type"])
	assert.Equal(t, 64, meta["width"])
	assert.Equal(t, 48, meta["height"])
	assert.Equal(t, "png", meta["format"])
	assert.NotEmpty(t, meta["mode"])
}

func TestExtractCorruptImage(t *testing.T) {
	// valid PNG signature, garbage after it
	data := append([]byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}, []byte("not a real png")...)

	meta := Extract(bytes.NewReader(data), ".png", int64(len(data)))

	assert.Equal(t, "image/png", meta["mime_type"])
	assert.Contains(t, meta, "image_error")
	assert.NotContains(t, meta, "width")
}

func TestExtractUppercaseExtension(t *testing.T) {
	meta := Extract(strings.NewReader("x"), ".TXT", 1)
	assert.Equal(t, ".txt", meta["extension"])
}
