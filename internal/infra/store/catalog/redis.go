package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jb-platform/fileserver/internal/domain"

	"github.com/redis/go-redis/v9"
)

// redisCatalog keeps one hash per file record plus a z-set index ordered by
// upload time, so listings survive a restart when Redis is configured.
type redisCatalog struct {
	rdb redis.Cmdable
}

func NewRedisCatalog(rdb redis.Cmdable) *redisCatalog {
	return &redisCatalog{rdb: rdb}
}

func (c *redisCatalog) Put(f domain.StoredFile) error {
	ctx := context.Background()

	metaJSON, err := json.Marshal(f.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	pipe := c.rdb.TxPipeline()

	pipe.HSet(ctx, fileKey(f.ID), map[string]interface{}{
		"id":              f.ID,
		"filename":        f.Filename,
		"stored_filename": f.StoredFilename,
		"content_type":    f.ContentType,
		"size":            f.Size,
		"hash":            f.Hash,
		"uploaded_at":     f.UploadedAt.UnixNano(),
		"file_url":        f.FileURL,
		"thumbnail_url":   f.ThumbnailURL,
		"metadata":        string(metaJSON),
		"task_id":         f.TaskID,
	})

	pipe.ZAdd(ctx, filesByUploadedKey(), redis.Z{
		Score:  float64(f.UploadedAt.UnixNano()),
		Member: f.ID,
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline Put: %w", err)
	}

	return nil
}

func (c *redisCatalog) Get(id string) (domain.StoredFile, bool) {
	ctx := context.Background()

	res, err := c.rdb.HGetAll(ctx, fileKey(id)).Result()
	if err != nil || len(res) == 0 {
		return domain.StoredFile{}, false
	}

	f := domain.StoredFile{
		ID:             id,
		Filename:       res["filename"],
		StoredFilename: res["stored_filename"],
		ContentType:    res["content_type"],
		Hash:           res["hash"],
		FileURL:        res["file_url"],
		ThumbnailURL:   res["thumbnail_url"],
		TaskID:         res["task_id"],
	}

	if v := res["size"]; v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			f.Size = n
		}
	}
	if v := res["uploaded_at"]; v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			f.UploadedAt = time.Unix(0, n)
		}
	}
	if v := res["metadata"]; v != "" && v != "null" {
		if err := json.Unmarshal([]byte(v), &f.Metadata); err != nil {
			slog.Warn("redis catalog: bad metadata json",
				slog.String("file_id", id),
				slog.String("error", err.Error()),
			)
		}
	}

	return f, true
}

func (c *redisCatalog) SetThumbnail(id, url string) {
	ctx := context.Background()

	if err := c.rdb.HSet(ctx, fileKey(id), "thumbnail_url", url).Err(); err != nil {
		slog.Warn("redis catalog SetThumbnail", slog.String("error", err.Error()))
	}
}

func (c *redisCatalog) Delete(id string) error {
	ctx := context.Background()

	n, err := c.rdb.Exists(ctx, fileKey(id)).Result()
	if err != nil {
		return fmt.Errorf("redis exists: %w", err)
	}
	if n == 0 {
		return domain.ErrFileNotFound
	}

	pipe := c.rdb.TxPipeline()
	pipe.Del(ctx, fileKey(id))
	pipe.ZRem(ctx, filesByUploadedKey(), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline Delete: %w", err)
	}

	return nil
}

func (c *redisCatalog) Stats() (int, int64, error) {
	ctx := context.Background()

	ids, err := c.rdb.ZRange(ctx, filesByUploadedKey(), 0, -1).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("redis zrange: %w", err)
	}

	pipe := c.rdb.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGet(ctx, fileKey(id), "size")
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return 0, 0, fmt.Errorf("redis pipeline Stats: %w", err)
	}

	var size int64
	for _, cmd := range cmds {
		if n, err := cmd.Int64(); err == nil {
			size += n
		}
	}
	return len(ids), size, nil
}

func (c *redisCatalog) List(limit, offset int) ([]domain.StoredFile, int, error) {
	ctx := context.Background()

	total, err := c.rdb.ZCard(ctx, filesByUploadedKey()).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("redis zcard: %w", err)
	}

	ids, err := c.rdb.ZRevRange(ctx, filesByUploadedKey(),
		int64(offset), int64(offset+limit-1)).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("redis zrevrange: %w", err)
	}

	page := make([]domain.StoredFile, 0, len(ids))
	for _, id := range ids {
		if f, ok := c.Get(id); ok {
			page = append(page, f)
		}
	}
	return page, int(total), nil
}

func fileKey(id string) string {
	return "file:" + id
}

func filesByUploadedKey() string {
	return "files:by_uploaded"
}
