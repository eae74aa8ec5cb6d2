package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr            string        `yaml:"addr"`
	ServerURL       string        `yaml:"server_url"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	BaseDir          string `yaml:"base_dir"`
	MaxUploadBytesMb int64  `yaml:"max_upload_mb"`
	ChunkSizeBytes   int    `yaml:"chunk_size_bytes"`

	AllowedExtensions    []string `yaml:"allowed_extensions"`
	ImageExtensions      []string `yaml:"image_extensions"`
	AnalyzableExtensions []string `yaml:"analyzable_extensions"`

	ThumbMaxWidth  int `yaml:"thumb_max_width"`
	ThumbMaxHeight int `yaml:"thumb_max_height"`

	MinFreeSpacePercent float64 `yaml:"min_free_space_percent"`

	QueueCapacity int `yaml:"queue_capacity"`
	PoolSize      int `yaml:"pool_size"`

	TaskRetention       time.Duration `yaml:"task_retention"`
	TaskCleanupInterval time.Duration `yaml:"task_cleanup_interval"`

	Auth    Auth    `yaml:"auth"`
	Storage Storage `yaml:"storage"`
	Catalog Catalog `yaml:"catalog"`
	AI      AI      `yaml:"ai"`
	Notify  Notify  `yaml:"notify"`
}

type Auth struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
}

type Storage struct {
	Backend string `yaml:"backend"` // local | minio
	MinIO   MinIO  `yaml:"minio"`
}

type MinIO struct {
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	UseSSL          bool   `yaml:"use_ssl"`
	Bucket          string `yaml:"bucket"`
}

type Catalog struct {
	Backend string `yaml:"backend"` // memory | redis
	Redis   Redis  `yaml:"redis"`
}

type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type AI struct {
	URL     string        `yaml:"url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

type Notify struct {
	NATS    NATS    `yaml:"nats"`
	Webhook Webhook `yaml:"webhook"`
}

type NATS struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Name          string `yaml:"name"`
	MaxReconnects int    `yaml:"max_reconnects"`
	Stream        string `yaml:"stream"`
	Subject       string `yaml:"subject"`
}

type Webhook struct {
	URL     string        `yaml:"url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: cannot read file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: cannot unmarshal yaml: %w", err)
	}

	if cfg.Addr == "" {
		return nil, fmt.Errorf("config: addr is empty")
	}
	if cfg.BaseDir == "" {
		return nil, fmt.Errorf("config: base_dir is empty")
	}
	if cfg.AI.URL == "" {
		return nil, fmt.Errorf("config: ai.url is empty")
	}
	if cfg.Storage.Backend == "minio" && cfg.Storage.MinIO.Endpoint == "" {
		return nil, fmt.Errorf("config: storage.minio.endpoint is empty")
	}
	if cfg.Catalog.Backend == "redis" && cfg.Catalog.Redis.Addr == "" {
		return nil, fmt.Errorf("config: catalog.redis.addr is empty")
	}
	if cfg.Notify.NATS.Enabled && cfg.Notify.NATS.Subject == "" {
		return nil, fmt.Errorf("config: notify.nats.subject is empty")
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		log.Fatalf("%v", err)
	}
	return cfg
}

func (cfg *Config) applyDefaults() {
	if cfg.ServerURL == "" {
		cfg.ServerURL = "http://localhost" + cfg.Addr
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.MaxUploadBytesMb <= 0 {
		cfg.MaxUploadBytesMb = 100
	}
	if cfg.ChunkSizeBytes <= 0 {
		cfg.ChunkSizeBytes = 1 << 20
	}
	if len(cfg.AllowedExtensions) == 0 {
		cfg.AllowedExtensions = []string{
			".jpg", ".jpeg", ".png", ".gif", ".pdf", ".doc", ".docx",
			".xls", ".xlsx", ".txt", ".csv", ".zip", ".mp4", ".mov", ".mp3", ".wav",
		}
	}
	if len(cfg.ImageExtensions) == 0 {
		cfg.ImageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}
	}
	if len(cfg.AnalyzableExtensions) == 0 {
		cfg.AnalyzableExtensions = []string{".jpg", ".jpeg", ".png", ".pdf", ".doc", ".docx", ".txt"}
	}
	if cfg.ThumbMaxWidth <= 0 {
		cfg.ThumbMaxWidth = 300
	}
	if cfg.ThumbMaxHeight <= 0 {
		cfg.ThumbMaxHeight = 300
	}
	if cfg.MinFreeSpacePercent <= 0 {
		cfg.MinFreeSpacePercent = 10.0
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = 100
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 4
	}
	if cfg.TaskRetention <= 0 {
		cfg.TaskRetention = 24 * time.Hour
	}
	if cfg.TaskCleanupInterval <= 0 {
		cfg.TaskCleanupInterval = 10 * time.Minute
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "local"
	}
	if cfg.Catalog.Backend == "" {
		cfg.Catalog.Backend = "memory"
	}
	if cfg.AI.Timeout <= 0 {
		cfg.AI.Timeout = 5 * time.Minute
	}
	if cfg.Notify.Webhook.Timeout <= 0 {
		cfg.Notify.Webhook.Timeout = 10 * time.Second
	}
	if cfg.Notify.NATS.Stream == "" {
		cfg.Notify.NATS.Stream = "ANALYSIS_EVENTS"
	}
}
