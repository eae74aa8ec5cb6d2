package app

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/jb-platform/fileserver/internal/analysis"
	"github.com/jb-platform/fileserver/internal/infra/config"
	"github.com/jb-platform/fileserver/internal/infra/scheduler"
	"github.com/jb-platform/fileserver/internal/infra/store/catalog"
	filestore "github.com/jb-platform/fileserver/internal/infra/store/file"
	taskstore "github.com/jb-platform/fileserver/internal/infra/store/task"
	mio "github.com/jb-platform/fileserver/internal/libs/minio"
	natsq "github.com/jb-platform/fileserver/internal/libs/nats"
	rediscli "github.com/jb-platform/fileserver/internal/libs/redis"
	"github.com/jb-platform/fileserver/internal/notify"
	"github.com/jb-platform/fileserver/internal/transport"
	"github.com/jb-platform/fileserver/internal/usecase"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
)

const defaultCfgPath = "./configs/local.yaml"

type Router interface {
	MountRoutes(*http.ServeMux) *http.ServeMux
}

type dependencyInjector struct {
	cfg    *config.Config
	logger *slog.Logger

	redis *redis.Client

	fileStore usecase.FileStore
	catalog   usecase.FileCatalog
	registry  *taskstore.Registry
	scheduler *scheduler.Scheduler

	natsConn *nats.Conn
	js       nats.JetStreamContext
	notifier *notify.Fanout

	analysisClient *analysis.Client
	dispatcher     *analysis.Dispatcher

	usecase transport.Usecase
	handler transport.Handler
	router  Router
}

func newDI() *dependencyInjector {
	return &dependencyInjector{}
}

func (di *dependencyInjector) Config() *config.Config {
	if di.cfg == nil {
		path := defaultCfgPath
		if p := os.Getenv("CONFIG_PATH"); p != "" {
			path = p
		}
		di.cfg = config.MustLoad(path)
	}

	return di.cfg
}

func (di *dependencyInjector) Logger() *slog.Logger {
	if di.logger == nil {
		di.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))

	}

	slog.SetDefault(di.logger)
	return di.logger
}

func (di *dependencyInjector) RedisClient(ctx context.Context) *redis.Client {
	if di.redis == nil {
		cfg := di.Config().Catalog.Redis
		client, err := rediscli.NewClient(rediscli.Config{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
		if err != nil {
			log.Fatalf("RedisClient: %+v", err)
		}

		di.redis = client
		di.Logger().Info("connected to redis", slog.String("addr", cfg.Addr))
	}
	return di.redis
}

func (di *dependencyInjector) FileStore(ctx context.Context) usecase.FileStore {
	if di.fileStore == nil {
		cfg := di.Config()

		switch cfg.Storage.Backend {
		case "minio":
			remote, err := filestore.NewMinIOStore(ctx, mio.Config{
				Endpoint:        cfg.Storage.MinIO.Endpoint,
				AccessKeyID:     cfg.Storage.MinIO.AccessKeyID,
				SecretAccessKey: cfg.Storage.MinIO.SecretAccessKey,
				UseSSL:          cfg.Storage.MinIO.UseSSL,
				Bucket:          cfg.Storage.MinIO.Bucket,
				BasePath:        cfg.BaseDir,
			})
			if err != nil {
				log.Fatalf("FileStore minio: %+v", err)
			}
			di.Logger().Info(
				"initialized MinIO file store",
				slog.String("endpoint", cfg.Storage.MinIO.Endpoint),
				slog.String("bucket", cfg.Storage.MinIO.Bucket),
			)
			di.fileStore = remote
		default:
			local, err := filestore.NewLocalStore(cfg.BaseDir, cfg.ChunkSizeBytes)
			if err != nil {
				log.Fatalf("FileStore local: %+v", err)
			}
			di.Logger().Info("initialized local file store", slog.String("base_dir", cfg.BaseDir))
			di.fileStore = local
		}
	}

	return di.fileStore
}

func (di *dependencyInjector) FileCatalog(ctx context.Context) usecase.FileCatalog {
	if di.catalog == nil {
		switch di.Config().Catalog.Backend {
		case "redis":
			di.catalog = catalog.NewRedisCatalog(di.RedisClient(ctx))
			di.Logger().Info("using redis file catalog")
		default:
			di.catalog = catalog.NewMemoryCatalog()
			di.Logger().Info("using in-memory file catalog")
		}
	}
	return di.catalog
}

func (di *dependencyInjector) Registry() *taskstore.Registry {
	if di.registry == nil {
		cfg := di.Config()
		di.registry = taskstore.NewRegistry(cfg.TaskRetention, cfg.TaskCleanupInterval)
	}
	return di.registry
}

func (di *dependencyInjector) Scheduler() *scheduler.Scheduler {
	if di.scheduler == nil {
		cfg := di.Config()
		di.scheduler = scheduler.New(cfg.QueueCapacity, cfg.PoolSize)
		di.Logger().Info("initialized background scheduler",
			slog.Int("queue_size", cfg.QueueCapacity),
			slog.Int("worker_num", cfg.PoolSize),
		)
	}
	return di.scheduler
}

func (di *dependencyInjector) NATSConn(ctx context.Context) *nats.Conn {
	if di.natsConn == nil {
		cfg := di.Config().Notify.NATS
		nc, err := natsq.NewConnect(cfg.URL, natsq.Config{
			Name:          cfg.Name,
			MaxReconnects: cfg.MaxReconnects,
		})
		if err != nil {
			log.Fatalf("NATS connect: %+v", err)
		}
		di.natsConn = nc
	}
	return di.natsConn
}

func (di *dependencyInjector) JetStream(ctx context.Context) nats.JetStreamContext {
	if di.js == nil {
		cfg := di.Config().Notify.NATS
		js, err := natsq.NewJetStream(di.NATSConn(ctx), &nats.StreamConfig{
			Name:     cfg.Stream,
			Subjects: []string{cfg.Subject},
			Storage:  nats.FileStorage,
			Replicas: 1,
			MaxAge:   2 * di.Config().TaskRetention,
		})
		if err != nil {
			log.Fatalf("DI JetStream: %+v", err)
		}

		di.js = js
	}
	return di.js
}

func (di *dependencyInjector) Notifier(ctx context.Context) *notify.Fanout {
	if di.notifier == nil {
		cfg := di.Config().Notify

		var sinks []notify.Sink
		if cfg.NATS.Enabled {
			sinks = append(sinks, notify.NewBusSink(di.JetStream(ctx), cfg.NATS.Subject))
			di.Logger().Info("notification bus sink enabled", slog.String("subject", cfg.NATS.Subject))
		}
		if cfg.Webhook.URL != "" {
			sinks = append(sinks, notify.NewWebhookSink(cfg.Webhook.URL, cfg.Webhook.Token, cfg.Webhook.Timeout))
			di.Logger().Info("notification webhook sink enabled", slog.String("url", cfg.Webhook.URL))
		}
		if len(sinks) == 0 {
			sinks = append(sinks, notify.NoopSink{})
			di.Logger().Info("no notification sinks configured, events are dropped")
		}

		di.notifier = notify.NewFanout(sinks...)
	}
	return di.notifier
}

func (di *dependencyInjector) AnalysisClient() *analysis.Client {
	if di.analysisClient == nil {
		cfg := di.Config().AI
		di.analysisClient = analysis.NewClient(cfg.URL, cfg.Token, cfg.Timeout)
	}
	return di.analysisClient
}

func (di *dependencyInjector) Dispatcher(ctx context.Context) *analysis.Dispatcher {
	if di.dispatcher == nil {
		di.dispatcher = analysis.NewDispatcher(
			di.AnalysisClient(),
			di.Registry(),
			di.FileStore(ctx),
			di.Notifier(ctx),
			di.Config().Notify.Webhook.URL,
		)
	}
	return di.dispatcher
}

func (di *dependencyInjector) Usecase(ctx context.Context) transport.Usecase {
	if di.usecase == nil {
		cfg := di.Config()
		di.usecase = usecase.New(usecase.Params{
			ServerURL:            cfg.ServerURL,
			BaseDir:              cfg.BaseDir,
			AllowedExtensions:    cfg.AllowedExtensions,
			ImageExtensions:      cfg.ImageExtensions,
			AnalyzableExtensions: cfg.AnalyzableExtensions,
			ThumbMaxWidth:        cfg.ThumbMaxWidth,
			ThumbMaxHeight:       cfg.ThumbMaxHeight,
			MinFreeSpacePercent:  cfg.MinFreeSpacePercent,
			Store:                di.FileStore(ctx),
			Catalog:              di.FileCatalog(ctx),
			Registry:             di.Registry(),
			Scheduler:            di.Scheduler(),
			Dispatcher:           di.Dispatcher(ctx),
		})
	}

	return di.usecase
}

func (di *dependencyInjector) Handler(ctx context.Context) transport.Handler {
	if di.handler == nil {
		cfg := di.Config()
		di.handler = transport.NewHandler(
			cfg.MaxUploadBytesMb,
			cfg.Auth.Enabled,
			cfg.Auth.Token,
			di.Usecase(ctx),
		)
	}

	return di.handler
}

func (di *dependencyInjector) Router(ctx context.Context) Router {
	if di.router == nil {
		di.router = transport.NewRouter(di.Handler(ctx))
	}

	return di.router
}
