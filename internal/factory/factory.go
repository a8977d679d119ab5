package factory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"credential-service/internal/audit"
	"credential-service/internal/biometric"
	"credential-service/internal/bucketing"
	"credential-service/internal/client"
	"credential-service/internal/config"
	"credential-service/internal/devices"
	"credential-service/internal/directory"
	"credential-service/internal/qrcode"
	redisrepo "credential-service/internal/repository/redis"
	"credential-service/internal/repository/scylla"
	"credential-service/internal/secrets"
	"credential-service/internal/service"
	"credential-service/internal/tls"
	"credential-service/internal/util"

	"golang.org/x/sync/errgroup"
)

// Factory manages the lifecycle of all application dependencies
type Factory struct {
	config     *config.Config
	tlsManager *tls.Manager

	// Clients
	redisClient      *client.RedisClient
	scyllaClient     *scylla.ScyllaClient
	kafkaProducer    *client.KafkaProducer
	clickhouseClient *client.ClickHouseClient
	esClient         *client.ESClient

	// Managers
	secretsManager   *secrets.Manager
	bucketingManager *bucketing.Manager

	// Core
	auditLog        *audit.Log
	sinkAttachments []*audit.SinkAttachment
	deviceRegistry  *devices.Registry
	serviceFactory  *service.ServiceFactory
	authenticator   biometric.Authenticator

	closeOnce sync.Once
	closed    chan struct{}
}

// NewFactory creates and initializes all application dependencies
func NewFactory() (*Factory, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	util.Init(cfg.Environment, cfg.Logging.Level, cfg.Logging.Format)

	f := &Factory{
		config:        cfg,
		closed:        make(chan struct{}),
		authenticator: biometric.UnavailableAuthenticator{},
	}

	if cfg.Server.EnableTLS {
		f.tlsManager = tls.NewManager(&tls.Config{
			EnableTLS:   cfg.Server.EnableTLS,
			AutoCert:    cfg.Server.AutoCert,
			Domain:      cfg.Server.Domain,
			CertFile:    cfg.Server.CertFile,
			KeyFile:     cfg.Server.KeyFile,
			AutoCertDir: cfg.Server.AutoCertDir,
			Email:       cfg.Server.Email,
			Environment: cfg.Environment,
		})
	}

	if err := f.initializeClients(); err != nil {
		return nil, fmt.Errorf("failed to initialize clients: %w", err)
	}

	if err := f.initializeManagers(); err != nil {
		return nil, err
	}

	f.initializeCore()

	util.Info("Factory initialized successfully",
		util.String("environment", cfg.Environment),
		util.Bool("tls_enabled", cfg.Server.EnableTLS),
		util.Bool("kms_enabled", cfg.KMS.Enabled),
	)
	return f, nil
}

// initializeClients initializes external service clients with health
// checks, in parallel since none depend on each other. In development
// a missing backing service degrades the corresponding feature; in
// production Redis and Scylla are required.
func (f *Factory) initializeClients() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var g errgroup.Group

	g.Go(func() error {
		c, err := client.NewRedisClient(f.config, util.Get())
		if err != nil {
			return f.clientFailure("redis", err)
		}
		if err := c.HealthCheck(ctx); err != nil {
			return f.clientFailure("redis health check", err)
		}
		f.redisClient = c
		util.Info("Redis client initialized and healthy")
		return nil
	})

	g.Go(func() error {
		c, err := scylla.NewScyllaClient(f.config, util.Get())
		if err != nil {
			return f.clientFailure("scylla", err)
		}
		if err := c.HealthCheck(); err != nil {
			return f.clientFailure("scylla health check", err)
		}
		f.scyllaClient = c
		util.Info("ScyllaDB client initialized and healthy")
		return nil
	})

	g.Go(func() error {
		if !f.config.Kafka.Enabled {
			return nil
		}
		producer, err := client.NewKafkaProducer(f.config, util.Get())
		if err != nil {
			util.Warn("Kafka producer initialization failed - proceeding without Kafka", util.ErrorField(err))
			return nil
		}
		f.kafkaProducer = producer
		return nil
	})

	g.Go(func() error {
		if !f.config.ClickHouse.Enabled {
			return nil
		}
		c, err := client.NewClickHouseClient(f.config, util.Get())
		if err != nil {
			util.Warn("ClickHouse initialization failed - proceeding without analytics sink", util.ErrorField(err))
			return nil
		}
		f.clickhouseClient = c
		return nil
	})

	g.Go(func() error {
		if !f.config.Elasticsearch.Enabled {
			return nil
		}
		c, err := client.NewElasticsearchClient(f.config, util.Get())
		if err != nil {
			util.Warn("Elasticsearch initialization failed - proceeding without forensic index", util.ErrorField(err))
			return nil
		}
		f.esClient = c
		return nil
	})

	return g.Wait()
}

// clientFailure decides whether a required-client failure is fatal.
func (f *Factory) clientFailure(name string, err error) error {
	if f.config.IsProduction() {
		return fmt.Errorf("%s: %w", name, err)
	}
	util.Warn("Service initialization warning", util.String("client", name), util.ErrorField(err))
	return nil
}

func (f *Factory) initializeManagers() error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	sm, err := secrets.NewManager(ctx, f.config, util.Get())
	if err != nil {
		return fmt.Errorf("failed to resolve integrity secret: %w", err)
	}
	f.secretsManager = sm
	f.bucketingManager = bucketing.NewManager(f.config.Bucketing)
	return nil
}

// initializeCore builds the audit log, attaches sinks, and wires the
// domain stores over whichever clients came up.
func (f *Factory) initializeCore() {
	f.auditLog = audit.NewLog(f.config.Audit.RetainRecords, util.Named("audit"))

	if f.scyllaClient != nil {
		archive := scylla.NewAuditArchive(f.scyllaClient, f.bucketingManager, util.Named("audit-archive"))
		f.sinkAttachments = append(f.sinkAttachments,
			audit.AttachSink(f.auditLog, archive, 256, 5*time.Second, util.Named("audit")))
	}
	if f.kafkaProducer != nil {
		sink := client.NewKafkaAuditSink(f.kafkaProducer, f.config.Audit.KafkaTopic)
		f.sinkAttachments = append(f.sinkAttachments,
			audit.AttachSink(f.auditLog, sink, 256, 5*time.Second, util.Named("audit")))
	}
	if f.clickhouseClient != nil {
		sink := client.NewClickHouseAuditSink(f.clickhouseClient)
		f.sinkAttachments = append(f.sinkAttachments,
			audit.AttachSink(f.auditLog, sink, 256, 5*time.Second, util.Named("audit")))
	}
	if f.esClient != nil {
		sink := client.NewESAuditSink(f.esClient, f.config.Audit.ESIndex)
		f.sinkAttachments = append(f.sinkAttachments,
			audit.AttachSink(f.auditLog, sink, 256, 5*time.Second, util.Named("audit")))
	}

	var deviceCache devices.StatusCache
	if f.redisClient != nil {
		deviceCache = redisrepo.NewDeviceCache(f.redisClient, util.Named("devices"))
	}
	f.deviceRegistry = devices.NewRegistry(deviceCache, util.Named("devices"))
}

// UseAuthenticator installs the platform credential bridge. Must be
// called before the first ServiceFactory() use; without it every
// biometric operation reports UNSUPPORTED_PLATFORM.
func (f *Factory) UseAuthenticator(auth biometric.Authenticator) {
	f.authenticator = auth
}

// ServiceFactory builds the service layer over the initialized stores.
func (f *Factory) ServiceFactory() *service.ServiceFactory {
	if f.serviceFactory == nil {
		codec := qrcode.NewCodec(
			f.config.Security.Namespace,
			f.secretsManager.IntegritySecret(),
			f.config.Security.DefaultValidity,
		)

		var dir directory.Directory
		if f.scyllaClient != nil {
			dir = scylla.NewSubjectRepository(f.scyllaClient, util.Named("directory"))
		} else {
			util.Warn("Scylla unavailable, using empty static subject directory")
			dir = directory.NewStaticDirectory()
		}

		var revChecker qrcode.RevocationChecker
		var revoker service.Revoker
		if f.redisClient != nil {
			cache := redisrepo.NewRevocationCache(f.redisClient, util.Named("revocations"))
			revChecker = cache
			revoker = cache
		}

		var store biometric.EnrollmentStore
		if f.scyllaClient != nil {
			store = scylla.NewEnrollmentRepository(f.scyllaClient, util.Named("enrollments"))
		} else {
			util.Warn("Scylla unavailable, using in-memory enrollment store")
			store = biometric.NewMemoryStore()
		}

		var attempts biometric.AttemptTracker
		if f.redisClient != nil {
			attempts = redisrepo.NewAttemptCache(f.redisClient, f.config.Biometric.SpoofWindow, util.Named("attempts"))
		} else {
			attempts = biometric.NewMemoryAttempts(f.config.Biometric.SpoofWindow)
		}

		f.serviceFactory = service.NewServiceFactory(
			codec,
			dir,
			revChecker,
			revoker,
			f.authenticator,
			store,
			attempts,
			f.auditLog,
			f.config,
			util.Get(),
		)
	}
	return f.serviceFactory
}

// HealthCheck reports per-dependency health.
func (f *Factory) HealthCheck(ctx context.Context) map[string]error {
	healthErrors := make(map[string]error)

	if f.redisClient != nil {
		if err := f.redisClient.HealthCheck(ctx); err != nil {
			healthErrors["redis"] = err
		}
	} else {
		healthErrors["redis"] = fmt.Errorf("redis client not initialized")
	}

	if f.scyllaClient != nil {
		if err := f.scyllaClient.HealthCheck(); err != nil {
			healthErrors["scylla"] = err
		}
	} else {
		healthErrors["scylla"] = fmt.Errorf("scylla client not initialized")
	}

	if f.kafkaProducer != nil {
		if err := f.kafkaProducer.HealthCheck(ctx); err != nil {
			healthErrors["kafka"] = err
		}
	}

	if f.clickhouseClient != nil {
		if err := f.clickhouseClient.HealthCheck(ctx); err != nil {
			healthErrors["clickhouse"] = err
		}
	}

	if f.esClient != nil {
		if err := f.esClient.HealthCheck(); err != nil {
			healthErrors["elasticsearch"] = err
		}
	}

	return healthErrors
}

func (f *Factory) IsHealthy(ctx context.Context) bool {
	healthErrors := f.HealthCheck(ctx)
	// Optional sinks degrade features, they do not fail readiness.
	delete(healthErrors, "kafka")
	delete(healthErrors, "clickhouse")
	delete(healthErrors, "elasticsearch")
	return len(healthErrors) == 0
}

func (f *Factory) Close() error {
	f.closeOnce.Do(func() {
		close(f.closed)
		util.Info("Shutting down factory...")

		// Detach sinks first so the drain goroutines flush while the
		// clients are still alive.
		for _, a := range f.sinkAttachments {
			a.Close()
		}

		if f.serviceFactory != nil {
			f.serviceFactory.Cleanup()
		}

		if f.clickhouseClient != nil {
			if err := f.clickhouseClient.Close(); err != nil {
				util.Error("Failed to close ClickHouse client", util.ErrorField(err))
			}
		}

		if f.esClient != nil {
			f.esClient.Close()
		}

		if f.kafkaProducer != nil {
			if err := f.kafkaProducer.Close(); err != nil {
				util.Error("Failed to close Kafka producer", util.ErrorField(err))
			}
		}

		if f.scyllaClient != nil {
			f.scyllaClient.Close()
			util.Info("ScyllaDB client closed")
		}

		if f.redisClient != nil {
			if err := f.redisClient.Close(); err != nil {
				util.Error("Failed to close Redis client", util.ErrorField(err))
			}
		}

		util.Sync()
		util.Info("Factory shutdown completed")
	})
	return nil
}

func (f *Factory) WaitForClose() {
	<-f.closed
}

func (f *Factory) Config() *config.Config {
	return f.config
}

func (f *Factory) TLSManager() *tls.Manager {
	return f.tlsManager
}

func (f *Factory) AuditLog() *audit.Log {
	return f.auditLog
}

func (f *Factory) DeviceRegistry() *devices.Registry {
	return f.deviceRegistry
}
