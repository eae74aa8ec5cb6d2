package transport

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/jb-platform/fileserver/internal/domain"

	"github.com/google/uuid"
)

const authHeader = "X-Auth-Token"

// multipartMemoryLimit caps how much of a multipart body stays in RAM while
// parsing; anything past it spools to temp files, so a maximal upload never
// occupies the full cap in memory.
const multipartMemoryLimit = 10 << 20

type Usecase interface {
	Upload(ctx context.Context, file io.Reader, filename, contentType string, opts domain.UploadOptions) (domain.UploadResponse, error)
	GetFile(ctx context.Context, fileID string) (domain.DownloadResult, error)
	GetThumbnail(ctx context.Context, fileID string) (domain.DownloadResult, error)
	DeleteFile(ctx context.Context, fileID string) error
	TaskStatus(ctx context.Context, taskID string) (domain.Task, error)
	ListFiles(ctx context.Context, limit, offset int) (domain.FileListResponse, error)
	Stats(ctx context.Context) (domain.ServiceStats, error)
	Health(ctx context.Context) domain.HealthResponse
}

type handler struct {
	maxUploadBytes int64
	authEnabled    bool
	authToken      string
	usecase        Usecase
}

func NewHandler(maxUploadBytesMb int64, authEnabled bool, authToken string, uc Usecase) *handler {
	return &handler{
		maxUploadBytes: maxUploadBytesMb << 20,
		authEnabled:    authEnabled,
		authToken:      authToken,
		usecase:        uc,
	}
}

func (h *handler) upload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "")
		return
	}
	if !h.authorized(r) {
		writeError(w, http.StatusUnauthorized, "invalid authentication token")
		return
	}

	logger := requestLogger(r, "upload")

	defer r.Body.Close()
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		logger.Error("ParseMultipartForm", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, "unable to parse multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		logger.Warn("missing file field")
		writeError(w, http.StatusBadRequest, "field `file` is required")
		return
	}
	defer file.Close()

	opts := domain.UploadOptions{
		Analyze:         parseBool(r.URL.Query().Get("analyze"), false),
		CreateThumbnail: parseBool(r.URL.Query().Get("create_thumb"), true),
	}

	resp, err := h.usecase.Upload(
		r.Context(),
		file,
		header.Filename,
		header.Header.Get("Content-Type"),
		opts,
	)
	if err != nil {
		if errors.Is(err, domain.ErrUnsupportedType) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		logger.Error("Upload usecase",
			slog.String("file_name", header.Filename),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "file upload failed")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) batchUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "")
		return
	}
	if !h.authorized(r) {
		writeError(w, http.StatusUnauthorized, "invalid authentication token")
		return
	}

	logger := requestLogger(r, "batch_upload")

	defer r.Body.Close()
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		logger.Error("ParseMultipartForm", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, "unable to parse multipart form")
		return
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "field `files` is required")
		return
	}

	opts := domain.UploadOptions{
		Analyze:         parseBool(r.URL.Query().Get("analyze"), false),
		CreateThumbnail: parseBool(r.URL.Query().Get("create_thumb"), true),
	}

	// One file failing never aborts the rest: each entry carries its own
	// success flag or error.
	results := make([]domain.BatchResult, 0, len(headers))
	for _, fh := range headers {
		results = append(results, h.uploadOne(r.Context(), fh, opts))
	}

	writeJSON(w, http.StatusOK, domain.BatchResponse{Results: results})
}

func (h *handler) uploadOne(ctx context.Context, fh *multipart.FileHeader, opts domain.UploadOptions) domain.BatchResult {
	f, err := fh.Open()
	if err != nil {
		return domain.BatchResult{Filename: fh.Filename, Error: err.Error()}
	}
	defer f.Close()

	resp, err := h.usecase.Upload(ctx, f, fh.Filename, fh.Header.Get("Content-Type"), opts)
	if err != nil {
		return domain.BatchResult{Filename: fh.Filename, Error: err.Error()}
	}

	return domain.BatchResult{
		Filename: fh.Filename,
		Success:  true,
		FileID:   resp.FileID,
		FileURL:  resp.FileURL,
	}
}

// webhookUpload accepts uploads pushed by external systems; flags arrive as
// form fields instead of query parameters.
func (h *handler) webhookUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "")
		return
	}

	logger := requestLogger(r, "webhook_upload")

	defer r.Body.Close()
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		logger.Error("ParseMultipartForm", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, "unable to parse multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file part in the request")
		return
	}
	defer file.Close()

	opts := domain.UploadOptions{
		Analyze:         parseBool(r.FormValue("analyze"), false),
		CreateThumbnail: parseBool(r.FormValue("create_thumb"), true),
	}

	resp, err := h.usecase.Upload(r.Context(), file, header.Filename, header.Header.Get("Content-Type"), opts)
	if err != nil {
		if errors.Is(err, domain.ErrUnsupportedType) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		logger.Error("webhook upload", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "webhook upload failed")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) file(w http.ResponseWriter, r *http.Request) {
	fileID := strings.TrimPrefix(r.URL.Path, "/files/")
	if fileID == "" {
		writeError(w, http.StatusBadRequest, "missing file ID")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.serveContent(w, r, fileID, h.usecase.GetFile)
	case http.MethodDelete:
		h.deleteFile(w, r, fileID)
	default:
		writeError(w, http.StatusMethodNotAllowed, "")
	}
}

func (h *handler) thumbnail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "")
		return
	}

	fileID := strings.TrimPrefix(r.URL.Path, "/thumbnails/")
	if fileID == "" {
		writeError(w, http.StatusBadRequest, "missing file ID")
		return
	}

	h.serveContent(w, r, fileID, h.usecase.GetThumbnail)
}

func (h *handler) serveContent(
	w http.ResponseWriter,
	r *http.Request,
	fileID string,
	get func(context.Context, string) (domain.DownloadResult, error),
) {
	logger := requestLogger(r, "download")

	result, err := get(r.Context(), fileID)
	if err != nil {
		if errors.Is(err, domain.ErrFileNotFound) {
			writeError(w, http.StatusNotFound, "file not found")
			return
		}
		logger.Error("get content",
			slog.String("file_id", fileID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "")
		return
	}
	defer result.Content.Close()

	contentType := result.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.FormatInt(result.Size, 10))
	w.Header().Set("Content-Disposition", `attachment; filename="`+result.FileName+`"`)

	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, result.Content); err != nil {
		logger.Error("send file",
			slog.String("file_id", fileID),
			slog.String("error", err.Error()),
		)
	}
}

func (h *handler) deleteFile(w http.ResponseWriter, r *http.Request, fileID string) {
	if !h.authorized(r) {
		writeError(w, http.StatusUnauthorized, "invalid authentication token")
		return
	}

	logger := requestLogger(r, "delete")

	if err := h.usecase.DeleteFile(r.Context(), fileID); err != nil {
		if errors.Is(err, domain.ErrFileNotFound) {
			writeError(w, http.StatusNotFound, "file not found")
			return
		}
		logger.Error("delete file",
			slog.String("file_id", fileID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "file deleted successfully",
	})
}

func (h *handler) status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "")
		return
	}

	taskID := strings.TrimPrefix(r.URL.Path, "/status/")
	if taskID == "" {
		writeError(w, http.StatusBadRequest, "missing task ID")
		return
	}

	task, err := h.usecase.TaskStatus(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, domain.ErrTaskNotFound) {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "")
		return
	}

	writeJSON(w, http.StatusOK, task)
}

func (h *handler) listFiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "")
		return
	}
	if !h.authorized(r) {
		writeError(w, http.StatusUnauthorized, "invalid authentication token")
		return
	}

	limit := parseIntInRange(r.URL.Query().Get("limit"), 50, 1, 1000)
	offset := parseIntInRange(r.URL.Query().Get("offset"), 0, 0, 1<<30)

	resp, err := h.usecase.ListFiles(r.Context(), limit, offset)
	if err != nil {
		requestLogger(r, "list_files").Error("list files", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "")
		return
	}

	resp, err := h.usecase.Stats(r.Context())
	if err != nil {
		requestLogger(r, "stats").Error("service stats", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "")
		return
	}

	resp := h.usecase.Health(r.Context())

	status := http.StatusOK
	if resp.Status != domain.HealthHealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (h *handler) authorized(r *http.Request) bool {
	if !h.authEnabled {
		return true
	}
	token := r.Header.Get(authHeader)
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.authToken)) == 1
}

func requestLogger(r *http.Request, name string) *slog.Logger {
	return slog.With(
		slog.String("request_id", uuid.NewString()),
		slog.String("handler", name),
		slog.String("remote_addr", r.RemoteAddr),
	)
}

func parseBool(v string, def bool) bool {
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func parseIntInRange(v string, def, lo, hi int) int {
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < lo || n > hi {
		return def
	}
	return n
}

func writeError(w http.ResponseWriter, status int, message string) {
	if message == "" {
		message = http.StatusText(status)
	}
	resp := domain.ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("writeJSON", slog.String("error", err.Error()))
	}
}
