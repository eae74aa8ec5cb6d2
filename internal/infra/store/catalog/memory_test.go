package catalog

import (
	"fmt"
	"testing"

	"github.com/jb-platform/fileserver/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCatalogPutGet(t *testing.T) {
	c := NewMemoryCatalog()

	f := domain.StoredFile{ID: "f1", Filename: "a.txt", Size: 10}
	require.NoError(t, c.Put(f))

	got, ok := c.Get("f1")
	require.True(t, ok)
	assert.Equal(t, f, got)

	_, ok = c.Get("nope")
	assert.False(t, ok)
}

func TestMemoryCatalogPutOverwrite(t *testing.T) {
	c := NewMemoryCatalog()

	require.NoError(t, c.Put(domain.StoredFile{ID: "f1", Filename: "a.txt"}))
	require.NoError(t, c.Put(domain.StoredFile{ID: "f1", Filename: "b.txt"}))

	got, ok := c.Get("f1")
	require.True(t, ok)
	assert.Equal(t, "b.txt", got.Filename)

	_, total, err := c.List(10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestMemoryCatalogSetThumbnail(t *testing.T) {
	c := NewMemoryCatalog()
	require.NoError(t, c.Put(domain.StoredFile{ID: "f1"}))

	c.SetThumbnail("f1", "http://host/thumbnails/f1")
	c.SetThumbnail("ghost", "ignored")

	got, _ := c.Get("f1")
	assert.Equal(t, "http://host/thumbnails/f1", got.ThumbnailURL)
}

func TestMemoryCatalogDelete(t *testing.T) {
	c := NewMemoryCatalog()
	require.NoError(t, c.Put(domain.StoredFile{ID: "f1"}))

	require.NoError(t, c.Delete("f1"))

	_, ok := c.Get("f1")
	assert.False(t, ok)

	assert.ErrorIs(t, c.Delete("f1"), domain.ErrFileNotFound)
}

func TestMemoryCatalogStats(t *testing.T) {
	c := NewMemoryCatalog()

	count, size, err := c.Stats()
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Zero(t, size)

	require.NoError(t, c.Put(domain.StoredFile{ID: "f1", Size: 100}))
	require.NoError(t, c.Put(domain.StoredFile{ID: "f2", Size: 250}))

	count, size, err = c.Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, int64(350), size)
}

func TestMemoryCatalogListNewestFirst(t *testing.T) {
	c := NewMemoryCatalog()
	for i := 0; i < 5; i++ {
		require.NoError(t, c.Put(domain.StoredFile{ID: fmt.Sprintf("f%d", i)}))
	}

	page, total, err := c.List(2, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page, 2)
	assert.Equal(t, "f4", page[0].ID)
	assert.Equal(t, "f3", page[1].ID)

	page, _, err = c.List(2, 4)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "f0", page[0].ID)

	page, total, err = c.List(2, 10)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Empty(t, page)
}
