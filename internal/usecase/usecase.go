package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jb-platform/fileserver/internal/domain"
	"github.com/jb-platform/fileserver/internal/infra/scheduler"
	"github.com/jb-platform/fileserver/internal/media"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
)

// Object names are namespaced by purpose so originals and thumbnails sharing
// an identifier prefix never collide.
const (
	originalsPrefix  = "uploads"
	thumbnailsPrefix = "thumbs"
)

type FileStore interface {
	Save(ctx context.Context, reader io.Reader, name string, size int64) (int64, string, error)
	Open(ctx context.Context, name string) (io.ReadCloser, int64, error)
	Delete(ctx context.Context, name string) error
}

type FileCatalog interface {
	Put(f domain.StoredFile) error
	Get(id string) (domain.StoredFile, bool)
	SetThumbnail(id, url string)
	Delete(id string) error
	List(limit, offset int) ([]domain.StoredFile, int, error)
	Stats() (count int, totalSize int64, err error)
}

type TaskRegistry interface {
	Create(fileID string) domain.Task
	Task(id string) (domain.Task, bool)
	Fail(id string, detail string) error
}

type Scheduler interface {
	Submit(job scheduler.Job) bool
}

type Dispatcher interface {
	Dispatch(ctx context.Context, storedName, fileID, taskID string)
}

type Params struct {
	ServerURL string
	BaseDir   string

	AllowedExtensions    []string
	ImageExtensions      []string
	AnalyzableExtensions []string

	ThumbMaxWidth  int
	ThumbMaxHeight int

	MinFreeSpacePercent float64

	Store      FileStore
	Catalog    FileCatalog
	Registry   TaskRegistry
	Scheduler  Scheduler
	Dispatcher Dispatcher
}

type usecase struct {
	serverURL string
	baseDir   string

	allowed    map[string]struct{}
	image      map[string]struct{}
	analyzable map[string]struct{}

	thumbW, thumbH int

	minFreePercent float64

	store      FileStore
	catalog    FileCatalog
	registry   TaskRegistry
	scheduler  Scheduler
	dispatcher Dispatcher
}

func New(p Params) *usecase {
	return &usecase{
		serverURL:      strings.TrimRight(p.ServerURL, "/"),
		baseDir:        p.BaseDir,
		allowed:        extSet(p.AllowedExtensions),
		image:          extSet(p.ImageExtensions),
		analyzable:     extSet(p.AnalyzableExtensions),
		thumbW:         p.ThumbMaxWidth,
		thumbH:         p.ThumbMaxHeight,
		minFreePercent: p.MinFreeSpacePercent,
		store:          p.Store,
		catalog:        p.Catalog,
		registry:       p.Registry,
		scheduler:      p.Scheduler,
		dispatcher:     p.Dispatcher,
	}
}

// Upload validates, persists and indexes one file, then schedules the
// background steps. It returns as soon as the synchronous artifacts (stored
// bytes, hash, metadata) exist; thumbnail and analysis results arrive later
// via polling.
func (uc *usecase) Upload(
	ctx context.Context,
	file io.Reader,
	filename, contentType string,
	opts domain.UploadOptions,
) (domain.UploadResponse, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := uc.allowed[ext]; !ok {
		return domain.UploadResponse{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedType, ext)
	}

	fileID := uuid.NewString()
	storedName := fileID + "-" + time.Now().Format("20060102-150405") + ext
	objectName := originalObject(storedName)

	written, hash, err := uc.store.Save(ctx, file, objectName, -1)
	if err != nil {
		// Save is atomic for the local backend; delete covers remote partials.
		_ = uc.store.Delete(ctx, objectName)
		return domain.UploadResponse{}, fmt.Errorf("save file: %w", err)
	}

	meta := uc.extractMetadata(ctx, objectName, ext, written)

	rec := domain.StoredFile{
		ID:             fileID,
		Filename:       filename,
		StoredFilename: storedName,
		ContentType:    contentType,
		Size:           written,
		Hash:           hash,
		UploadedAt:     time.Now(),
		FileURL:        uc.fileURL(fileID),
		Metadata:       meta,
	}

	resp := domain.UploadResponse{
		Success:     true,
		FileID:      fileID,
		FileURL:     rec.FileURL,
		Filename:    filename,
		Size:        written,
		ContentType: contentType,
	}

	var task domain.Task
	analyze := opts.Analyze && uc.isAnalyzable(ext)
	if analyze {
		task = uc.registry.Create(fileID)
		rec.TaskID = task.ID
		resp.AnalysisTaskID = task.ID
	}

	if err := uc.catalog.Put(rec); err != nil {
		_ = uc.store.Delete(ctx, objectName)
		if analyze {
			_ = uc.registry.Fail(task.ID, "catalog write failed")
		}
		return domain.UploadResponse{}, fmt.Errorf("catalog put: %w", err)
	}

	// Thumbnails are attempted only when the image header decoded during
	// metadata extraction: corrupt bytes behind an image extension get no
	// thumbnail URL, and the upload still succeeds.
	if opts.CreateThumbnail && uc.isImage(ext) && decodableImage(meta) {
		ok := uc.scheduler.Submit(scheduler.Job{
			Name: "thumbnail " + fileID,
			Fn: func(jobCtx context.Context) {
				uc.generateThumbnail(jobCtx, fileID, storedName)
			},
		})
		if ok {
			resp.ThumbnailURL = uc.thumbnailURL(fileID)
		} else {
			slog.Warn("thumbnail skipped, queue full", slog.String("file_id", fileID))
		}
	}

	if analyze {
		ok := uc.scheduler.Submit(scheduler.Job{
			Name: "analysis " + task.ID,
			Fn: func(jobCtx context.Context) {
				uc.dispatcher.Dispatch(jobCtx, objectName, fileID, task.ID)
			},
		})
		if !ok {
			slog.Error("analysis dispatch rejected, queue full",
				slog.String("task_id", task.ID),
			)
			_ = uc.registry.Fail(task.ID, "analysis queue full")
		}
	}

	return resp, nil
}

func (uc *usecase) GetFile(ctx context.Context, fileID string) (domain.DownloadResult, error) {
	rec, ok := uc.catalog.Get(fileID)
	if !ok {
		return domain.DownloadResult{}, domain.ErrFileNotFound
	}

	f, size, err := uc.store.Open(ctx, originalObject(rec.StoredFilename))
	if err != nil {
		return domain.DownloadResult{}, fmt.Errorf("open original: %w", err)
	}

	return domain.DownloadResult{
		FileName:    rec.Filename,
		ContentType: rec.ContentType,
		Size:        size,
		Content:     f,
	}, nil
}

func (uc *usecase) GetThumbnail(ctx context.Context, fileID string) (domain.DownloadResult, error) {
	rec, ok := uc.catalog.Get(fileID)
	if !ok {
		return domain.DownloadResult{}, domain.ErrFileNotFound
	}

	f, size, err := uc.store.Open(ctx, thumbnailObject(rec.StoredFilename))
	if err != nil {
		return domain.DownloadResult{}, fmt.Errorf("open thumbnail: %w", err)
	}

	return domain.DownloadResult{
		FileName:    "thumb_" + rec.StoredFilename,
		ContentType: "image/jpeg",
		Size:        size,
		Content:     f,
	}, nil
}

// DeleteFile removes the original and any thumbnail, then drops the catalog
// record. A missing thumbnail is not an error.
func (uc *usecase) DeleteFile(ctx context.Context, fileID string) error {
	rec, ok := uc.catalog.Get(fileID)
	if !ok {
		return domain.ErrFileNotFound
	}

	eg, eCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return uc.store.Delete(eCtx, originalObject(rec.StoredFilename))
	})
	eg.Go(func() error {
		err := uc.store.Delete(eCtx, thumbnailObject(rec.StoredFilename))
		if errors.Is(err, domain.ErrFileNotFound) {
			return nil
		}
		return err
	})

	if err := eg.Wait(); err != nil && !errors.Is(err, domain.ErrFileNotFound) {
		return fmt.Errorf("delete stored objects: %w", err)
	}

	return uc.catalog.Delete(fileID)
}

func (uc *usecase) TaskStatus(ctx context.Context, taskID string) (domain.Task, error) {
	task, ok := uc.registry.Task(taskID)
	if !ok {
		return domain.Task{}, domain.ErrTaskNotFound
	}
	return task, nil
}

func (uc *usecase) ListFiles(ctx context.Context, limit, offset int) (domain.FileListResponse, error) {
	files, total, err := uc.catalog.List(limit, offset)
	if err != nil {
		return domain.FileListResponse{}, fmt.Errorf("list files: %w", err)
	}
	if files == nil {
		files = []domain.StoredFile{}
	}

	return domain.FileListResponse{
		Success: true,
		Files:   files,
		Pagination: domain.Pagination{
			Total:   total,
			Offset:  offset,
			Limit:   limit,
			HasMore: offset+len(files) < total,
		},
	}, nil
}

// Health probes the working directory for writability and checks free disk
// space against the configured threshold.
func (uc *usecase) Health(ctx context.Context) domain.HealthResponse {
	now := time.Now()

	probe := filepath.Join(uc.baseDir, ".healthcheck")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return domain.HealthResponse{
			Status:    domain.HealthUnhealthy,
			Message:   "storage directory not writable: " + err.Error(),
			Timestamp: now,
		}
	}
	_ = os.Remove(probe)

	stats, err := uc.storageStats()
	if err != nil {
		return domain.HealthResponse{
			Status:    domain.HealthUnhealthy,
			Message:   "statfs failed: " + err.Error(),
			Timestamp: now,
		}
	}

	if stats.FreePercent < uc.minFreePercent {
		return domain.HealthResponse{
			Status:    domain.HealthDegraded,
			Message:   fmt.Sprintf("low disk space: %.1f%% free", stats.FreePercent),
			Storage:   stats,
			Timestamp: now,
		}
	}

	return domain.HealthResponse{
		Status:    domain.HealthHealthy,
		Storage:   stats,
		Timestamp: now,
	}
}

// Stats reports catalog totals and disk usage of the storage directory.
func (uc *usecase) Stats(ctx context.Context) (domain.ServiceStats, error) {
	count, totalSize, err := uc.catalog.Stats()
	if err != nil {
		return domain.ServiceStats{}, fmt.Errorf("catalog stats: %w", err)
	}

	storage, err := uc.storageStats()
	if err != nil {
		return domain.ServiceStats{}, fmt.Errorf("storage stats: %w", err)
	}

	return domain.ServiceStats{
		Service:        "fileserver",
		Status:         "active",
		TotalFiles:     count,
		TotalSizeBytes: totalSize,
		Storage:        storage,
		Timestamp:      time.Now(),
	}, nil
}

func (uc *usecase) storageStats() (*domain.StorageStats, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(uc.baseDir, &st); err != nil {
		return nil, err
	}

	total := st.Blocks * uint64(st.Bsize)
	free := st.Bavail * uint64(st.Bsize)
	stats := &domain.StorageStats{
		Total: total,
		Used:  total - free,
		Free:  free,
	}
	if total > 0 {
		stats.FreePercent = float64(free) / float64(total) * 100
	}
	return stats, nil
}

func (uc *usecase) generateThumbnail(ctx context.Context, fileID, storedName string) {
	logger := slog.With(slog.String("file_id", fileID))

	src, _, err := uc.store.Open(ctx, originalObject(storedName))
	if err != nil {
		logger.Warn("thumbnail: open original", slog.String("error", err.Error()))
		return
	}
	defer src.Close()

	var buf bytes.Buffer
	if err := media.Thumbnail(src, &buf, uc.thumbW, uc.thumbH); err != nil {
		logger.Warn("thumbnail generation failed", slog.String("error", err.Error()))
		return
	}

	if _, _, err := uc.store.Save(ctx, &buf, thumbnailObject(storedName), int64(buf.Len())); err != nil {
		logger.Warn("thumbnail: save", slog.String("error", err.Error()))
		return
	}

	uc.catalog.SetThumbnail(fileID, uc.thumbnailURL(fileID))
	logger.Debug("thumbnail created")
}

// extractMetadata re-reads the stored bytes, so detection reflects exactly
// what was persisted.
func (uc *usecase) extractMetadata(ctx context.Context, objectName, ext string, size int64) map[string]any {
	f, _, err := uc.store.Open(ctx, objectName)
	if err != nil {
		return map[string]any{
			"extension":  ext,
			"size_bytes": size,
			"error":      err.Error(),
		}
	}
	defer f.Close()

	return media.Extract(f, ext, size)
}

func (uc *usecase) isImage(ext string) bool {
	_, ok := uc.image[ext]
	return ok
}

func (uc *usecase) isAnalyzable(ext string) bool {
	_, ok := uc.analyzable[ext]
	return ok
}

func (uc *usecase) fileURL(fileID string) string {
	return uc.serverURL + "/files/" + fileID
}

func (uc *usecase) thumbnailURL(fileID string) string {
	return uc.serverURL + "/thumbnails/" + fileID
}

func decodableImage(meta map[string]any) bool {
	_, ok := meta["width"]
	return ok
}

func originalObject(storedName string) string {
	return originalsPrefix + "/" + storedName
}

func thumbnailObject(storedName string) string {
	return thumbnailsPrefix + "/thumb_" + storedName
}

func extSet(exts []string) map[string]struct{} {
	set := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		set[strings.ToLower(e)] = struct{}{}
	}
	return set
}
