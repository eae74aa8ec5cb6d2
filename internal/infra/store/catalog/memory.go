package catalog

import (
	"sync"

	"github.com/jb-platform/fileserver/internal/domain"
)

// memoryCatalog is the default file index: a mutex-guarded map plus an
// insertion-ordered id slice for listing.
type memoryCatalog struct {
	mu    sync.RWMutex
	files map[string]domain.StoredFile
	order []string
}

func NewMemoryCatalog() *memoryCatalog {
	return &memoryCatalog{files: make(map[string]domain.StoredFile)}
}

func (c *memoryCatalog) Put(f domain.StoredFile) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.files[f.ID]; !exists {
		c.order = append(c.order, f.ID)
	}
	c.files[f.ID] = f
	return nil
}

func (c *memoryCatalog) Get(id string) (domain.StoredFile, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, ok := c.files[id]
	return f, ok
}

func (c *memoryCatalog) SetThumbnail(id, url string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, ok := c.files[id]
	if !ok {
		return
	}
	f.ThumbnailURL = url
	c.files[id] = f
}

func (c *memoryCatalog) Delete(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.files[id]; !ok {
		return domain.ErrFileNotFound
	}
	delete(c.files, id)
	for i, fid := range c.order {
		if fid == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

// Stats returns the number of records and the summed size of their originals.
func (c *memoryCatalog) Stats() (int, int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var size int64
	for _, f := range c.files {
		size += f.Size
	}
	return len(c.files), size, nil
}

// List returns a page of records, newest upload first, and the total count.
func (c *memoryCatalog) List(limit, offset int) ([]domain.StoredFile, int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	total := len(c.order)
	if offset >= total {
		return nil, total, nil
	}

	end := min(offset+limit, total)

	page := make([]domain.StoredFile, 0, end-offset)
	for i := offset; i < end; i++ {
		// newest first: walk the order slice from the tail
		id := c.order[total-1-i]
		page = append(page, c.files[id])
	}
	return page, total, nil
}
