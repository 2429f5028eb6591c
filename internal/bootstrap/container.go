package bootstrap

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"

	"github.com/lumenhq/dam/internal/config"
	"github.com/lumenhq/dam/internal/infra/blob"
	"github.com/lumenhq/dam/internal/infra/cache"
	"github.com/lumenhq/dam/internal/infra/db"
	"github.com/lumenhq/dam/internal/infra/httpclient"
	"github.com/lumenhq/dam/internal/infra/logger"
	mq "github.com/lumenhq/dam/internal/infra/queue"
	"github.com/lumenhq/dam/internal/modules/handler"
	"github.com/lumenhq/dam/internal/modules/repo"
	"github.com/lumenhq/dam/internal/modules/service"
	"github.com/lumenhq/dam/internal/pkg/keyname"
	"github.com/lumenhq/dam/internal/pkg/thumbnail"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/samber/do"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func BuildContainer() *do.Injector {
	inj := do.New()

	// config
	do.Provide(inj, func(i *do.Injector) (*config.Config, error) {
		return config.Load()
	})

	// logger
	do.Provide(inj, func(i *do.Injector) (*zap.Logger, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return logger.New(cfg.Log)
	})

	// DB
	do.Provide(inj, func(i *do.Injector) (*gorm.DB, error) {
		cfg := do.MustInvoke[*config.Config](i)
		log := do.MustInvoke[*zap.Logger](i)
		d, err := db.New(cfg, log)
		if err != nil {
			return nil, err
		}
		if cfg.Telemetry.Enabled {
			if err := db.RegisterOpenTelemetryPlugin(d); err != nil {
				log.Warn("gorm tracing disabled", zap.Error(err))
			}
		}
		if cfg.Database.AutoMigrate {
			if err := db.Migrate(d); err != nil {
				return nil, fmt.Errorf("migrate: %w", err)
			}
		}

		if err := EnsureRootActor(context.Background(), repo.NewUserRepo(d), cfg, log); err != nil {
			return nil, err
		}
		return d, nil
	})

	// URL cache. Redis is optional: when it is off or unreachable, URLs are minted on every request.
	do.Provide(inj, func(i *do.Injector) (*cache.URLCache, error) {
		cfg := do.MustInvoke[*config.Config](i)
		log := do.MustInvoke[*zap.Logger](i)
		if !cfg.Ingest.URLCacheEnabled {
			return cache.NewURLCache(nil, log), nil
		}
		rdb, err := cache.New(context.Background(), cfg)
		if err != nil {
			log.Warn("redis unavailable, url cache disabled", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
			return cache.NewURLCache(nil, log), nil
		}
		if cfg.Telemetry.Enabled {
			if err := cache.RegisterOpenTelemetryPlugin(rdb); err != nil {
				log.Warn("redis tracing disabled", zap.Error(err))
			}
		}
		return cache.NewURLCache(rdb, log), nil
	})

	// RabbitMQ DialFunc for connection and reconnection
	do.Provide(inj, func(i *do.Injector) (mq.DialFunc, error) {
		cfg := do.MustInvoke[*config.Config](i)

		dialFn := func() (*amqp.Connection, error) {
			url := cfg.RabbitMQ.URL
			if cfg.RabbitMQ.EnableTLS || strings.HasPrefix(url, "amqps://") {
				if strings.HasPrefix(url, "amqp://") {
					url = strings.Replace(url, "amqp://", "amqps://", 1)
				}
				return amqp.DialTLS(url, &tls.Config{MinVersion: tls.VersionTLS12})
			}
			return amqp.Dial(url)
		}
		return dialFn, nil
	})

	// RabbitMQ Connection
	do.Provide(inj, func(i *do.Injector) (*amqp.Connection, error) {
		dialFn := do.MustInvoke[mq.DialFunc](i)
		return dialFn()
	})

	// RabbitMQ Publisher
	do.Provide(inj, func(i *do.Injector) (*mq.Publisher, error) {
		cfg := do.MustInvoke[*config.Config](i)
		conn, err := do.Invoke[*amqp.Connection](i)
		if err != nil {
			return nil, err
		}
		return mq.NewPublisher(conn, do.MustInvoke[*zap.Logger](i), cfg, do.MustInvoke[mq.DialFunc](i))
	})

	// S3
	do.Provide(inj, func(i *do.Injector) (*blob.S3Deps, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return blob.NewS3(context.Background(), cfg)
	})

	// Processor HTTP client
	do.Provide(inj, func(i *do.Injector) (*httpclient.ProcessorClient, error) {
		cfg := do.MustInvoke[*config.Config](i)
		log := do.MustInvoke[*zap.Logger](i)
		return httpclient.NewProcessorClient(cfg, log), nil
	})

	// Key namer and thumbnail deriver
	do.Provide(inj, func(i *do.Injector) (*keyname.Namer, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return keyname.New(cfg.Ingest.KeyPrefix), nil
	})
	do.Provide(inj, func(i *do.Injector) (*thumbnail.Deriver, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return thumbnail.New(
			thumbnail.WithThumbnailSize(cfg.Ingest.ThumbnailSize),
			thumbnail.WithPreviewSize(cfg.Ingest.PreviewSize),
			thumbnail.WithTimeout(cfg.DeriveTimeout()),
			thumbnail.WithLogger(do.MustInvoke[*zap.Logger](i)),
		), nil
	})

	// Repo
	do.Provide(inj, func(i *do.Injector) (repo.AssetRepo, error) {
		return repo.NewAssetRepo(do.MustInvoke[*gorm.DB](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (repo.UserRepo, error) {
		return repo.NewUserRepo(do.MustInvoke[*gorm.DB](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (repo.UnitOfWork, error) {
		return repo.NewUnitOfWork(
			do.MustInvoke[*gorm.DB](i),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})

	// Service
	do.Provide(inj, func(i *do.Injector) (service.MetadataManager, error) {
		return service.NewMetadataManager(
			do.MustInvoke[repo.UnitOfWork](i),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})
	do.Provide(inj, func(i *do.Injector) (service.Dispatcher, error) {
		cfg := do.MustInvoke[*config.Config](i)
		log := do.MustInvoke[*zap.Logger](i)
		submit, err := newSubmitter(i, cfg)
		if err != nil {
			if errors.Is(err, errUnknownBackend) {
				return nil, err
			}
			log.Warn("dispatch backend unavailable, uploads will carry a warning",
				zap.String("backend", cfg.Dispatch.Backend), zap.Error(err))
			submit = service.NewUnavailableSubmitter(err)
		}
		return service.NewDispatcher(cfg.Dispatch.Backend, submit, log), nil
	})
	do.Provide(inj, func(i *do.Injector) (service.IngestService, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return service.NewIngestService(
			do.MustInvoke[*blob.S3Deps](i),
			do.MustInvoke[*thumbnail.Deriver](i),
			do.MustInvoke[*keyname.Namer](i),
			do.MustInvoke[service.MetadataManager](i),
			do.MustInvoke[service.Dispatcher](i),
			service.IngestOptions{
				URLTTL:          cfg.ResponseURLTTL(),
				CleanupOrphans:  cfg.Ingest.CleanupOrphans,
				DefaultCategory: cfg.Ingest.DefaultCategory,
			},
			do.MustInvoke[*zap.Logger](i),
		), nil
	})
	do.Provide(inj, func(i *do.Injector) (service.AssetService, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return service.NewAssetService(
			do.MustInvoke[repo.AssetRepo](i),
			do.MustInvoke[*blob.S3Deps](i),
			do.MustInvoke[*cache.URLCache](i),
			cfg.PresignExpire(),
		), nil
	})
	do.Provide(inj, func(i *do.Injector) (service.StatusService, error) {
		return service.NewStatusService(
			do.MustInvoke[repo.AssetRepo](i),
			do.MustInvoke[repo.UnitOfWork](i),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})

	// Handler
	do.Provide(inj, func(i *do.Injector) (*handler.AssetHandler, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return handler.NewAssetHandler(
			do.MustInvoke[service.IngestService](i),
			do.MustInvoke[service.AssetService](i),
			cfg.App.BaseURL,
			cfg.MaxUploadBytes(),
		), nil
	})
	return inj
}

var errUnknownBackend = errors.New("unknown dispatch backend")

// newSubmitter resolves the configured job backend. "none" yields a nil submitter.
func newSubmitter(i *do.Injector, cfg *config.Config) (service.JobSubmitter, error) {
	switch cfg.Dispatch.Backend {
	case service.BackendRabbitMQ:
		pub, err := do.Invoke[*mq.Publisher](i)
		if err != nil {
			return nil, err
		}
		return service.NewRabbitMQSubmitter(pub, cfg.RabbitMQ.ExchangeName.AssetProcessing), nil
	case service.BackendHTTP:
		if cfg.Processor.BaseURL == "" {
			return nil, errors.New("processor.base_url is not set")
		}
		return service.NewHTTPSubmitter(do.MustInvoke[*httpclient.ProcessorClient](i)), nil
	case service.BackendNone, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownBackend, cfg.Dispatch.Backend)
	}
}
