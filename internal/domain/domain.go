package domain

import (
	"encoding/json"
	"errors"
	"io"
	"time"
)

type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in_progress"
	StatusCompleted  TaskStatus = "completed"
	StatusFailed     TaskStatus = "failed"
)

// Terminal reports whether no further transition is possible.
func (s TaskStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Task tracks a single analysis request through its lifecycle.
// Mutated only by the dispatcher; readers always see a consistent record.
type Task struct {
	ID          string          `json:"id"`
	Status      TaskStatus      `json:"status"`
	FileID      string          `json:"file_id"`
	CreatedAt   time.Time       `json:"created_at"`
	CompletedAt time.Time       `json:"completed_at,omitzero"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// StoredFile is the catalog record for an uploaded original. Immutable after
// upload except for ThumbnailURL, which the background thumbnail step sets.
type StoredFile struct {
	ID             string         `json:"id"`
	Filename       string         `json:"filename"`
	StoredFilename string         `json:"stored_filename"`
	ContentType    string         `json:"content_type"`
	Size           int64          `json:"size"`
	Hash           string         `json:"hash"`
	UploadedAt     time.Time      `json:"uploaded_at"`
	FileURL        string         `json:"file_url"`
	ThumbnailURL   string         `json:"thumbnail_url,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	TaskID         string         `json:"analysis_task_id,omitempty"`
}

type UploadOptions struct {
	Analyze         bool
	CreateThumbnail bool
}

type UploadResponse struct {
	Success        bool   `json:"success"`
	FileID         string `json:"file_id"`
	FileURL        string `json:"file_url"`
	ThumbnailURL   string `json:"thumbnail_url,omitempty"`
	Filename       string `json:"filename"`
	Size           int64  `json:"size"`
	ContentType    string `json:"content_type"`
	AnalysisTaskID string `json:"analysis_task_id,omitempty"`
}

type BatchResult struct {
	Filename string `json:"filename"`
	Success  bool   `json:"success"`
	FileID   string `json:"file_id,omitempty"`
	FileURL  string `json:"file_url,omitempty"`
	Error    string `json:"error,omitempty"`
}

type BatchResponse struct {
	Results []BatchResult `json:"results"`
}

type Pagination struct {
	Total   int  `json:"total"`
	Offset  int  `json:"offset"`
	Limit   int  `json:"limit"`
	HasMore bool `json:"has_more"`
}

type FileListResponse struct {
	Success    bool         `json:"success"`
	Files      []StoredFile `json:"files"`
	Pagination Pagination   `json:"pagination"`
}

// ServiceStats is the informational view served alongside the listing:
// catalog totals plus disk usage of the storage directory.
type ServiceStats struct {
	Service        string        `json:"service"`
	Status         string        `json:"status"`
	TotalFiles     int           `json:"total_files"`
	TotalSizeBytes int64         `json:"total_size_bytes"`
	Storage        *StorageStats `json:"storage,omitempty"`
	Timestamp      time.Time     `json:"timestamp"`
}

type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
)

type StorageStats struct {
	Total       uint64  `json:"total"`
	Used        uint64  `json:"used"`
	Free        uint64  `json:"free"`
	FreePercent float64 `json:"free_percent"`
}

type HealthResponse struct {
	Status    HealthStatus  `json:"status"`
	Message   string        `json:"message,omitempty"`
	Storage   *StorageStats `json:"storage,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

type DownloadResult struct {
	FileName    string
	ContentType string
	Size        int64
	Content     io.ReadCloser
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

var (
	ErrFileNotFound      = errors.New("file not found")
	ErrTaskNotFound      = errors.New("task not found")
	ErrUnsupportedType   = errors.New("unsupported file type")
	ErrInvalidTransition = errors.New("invalid task transition")
)
