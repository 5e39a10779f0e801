package factory

import (
	"context"
	"fmt"
	"sync"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"

	"docverify-service/internal/audit"
	"docverify-service/internal/bucketing"
	"docverify-service/internal/client"
	"docverify-service/internal/codec"
	"docverify-service/internal/config"
	"docverify-service/internal/hashing"
	"docverify-service/internal/queue"
	"docverify-service/internal/search"
	"docverify-service/internal/service"
	"docverify-service/internal/settings"
	"docverify-service/internal/store"
	"docverify-service/internal/tls"
	"docverify-service/internal/util"
)

// Factory manages the lifecycle of all application dependencies.
type Factory struct {
	config     *config.Config
	tlsManager *tls.TLSManager

	// Clients. Redis, Kafka, ClickHouse, and Elasticsearch are optional;
	// the features they back degrade gracefully when absent.
	redisClient      *client.RedisClient
	scyllaClient     *store.ScyllaClient
	kafkaProducer    *client.KafkaProducer
	esClient         *client.ESClient
	clickhouseClient *client.ClickHouseClient
	ocrClient        *client.OCRClient
	kmsClient        *kms.Client

	// Managers
	hasher           *hashing.Hasher
	submissionCodec  *codec.Codec
	bucketingManager *bucketing.Manager

	// Storage and domain layer
	documentStore   store.Store
	submissionQueue *queue.Queue
	scanRecorder    *audit.Recorder
	searchIndexer   *search.Indexer
	settingsService *settings.Service
	serviceFactory  *service.ServiceFactory

	closeOnce sync.Once
	closed    chan struct{}
}

// NewFactory creates and initializes all application dependencies.
func NewFactory() (*Factory, error) {
	cfg := config.LoadConfig()

	util.Init(cfg.Environment, cfg.Logging.Level, cfg.Logging.Format)

	factory := &Factory{
		config: cfg,
		closed: make(chan struct{}),
	}

	if cfg.Server.EnableTLS {
		tlsConfig := &tls.TLSConfig{
			EnableTLS:   cfg.Server.EnableTLS,
			AutoCert:    cfg.Server.AutoCert,
			Domain:      cfg.Server.Domain,
			CertFile:    cfg.Server.CertFile,
			KeyFile:     cfg.Server.KeyFile,
			AutoCertDir: cfg.Server.AutoCertDir,
			Email:       cfg.Server.Email,
			Environment: cfg.Environment,
		}
		factory.tlsManager = tls.NewTLSManager(tlsConfig)
	}

	if err := factory.initializeClients(); err != nil {
		return nil, fmt.Errorf("failed to initialize clients: %w", err)
	}

	factory.initializeManagers()

	if err := factory.initializeStorage(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	factory.initializeDomain()

	util.Info("Factory initialized successfully",
		util.String("environment", cfg.Environment),
		util.Bool("tls_enabled", cfg.Server.EnableTLS),
		util.Bool("remote_store", cfg.HasRemoteStore()),
		util.Bool("kms_enabled", cfg.KMS.Enabled),
	)

	return factory, nil
}

// initializeClients brings up the external service clients. In production a
// failed required client aborts startup; in development the service runs
// with whatever subset is reachable.
func (f *Factory) initializeClients() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var initErrors []error

	// Redis backs the settings store.
	if redisClient, err := client.NewRedisClient(f.config, util.Get()); err != nil {
		util.Warn("Redis initialization failed - settings store disabled", util.ErrorField(err))
	} else {
		f.redisClient = redisClient
		if err := f.redisClient.HealthCheck(ctx); err != nil {
			initErrors = append(initErrors, fmt.Errorf("redis health check: %w", err))
		} else {
			util.Info("Redis client initialized and healthy")
		}
	}

	// ScyllaDB is the remote document store; without it the file-backed
	// local store takes over.
	if f.config.HasRemoteStore() {
		scyllaClient, err := store.NewScyllaClient(f.config, util.Get())
		if err != nil {
			initErrors = append(initErrors, fmt.Errorf("scylla: %w", err))
		} else {
			f.scyllaClient = scyllaClient
			if err := f.scyllaClient.HealthCheck(); err != nil {
				initErrors = append(initErrors, fmt.Errorf("scylla health check: %w", err))
			} else {
				util.Info("ScyllaDB client initialized and healthy")
			}
		}
	} else {
		util.Info("No ScyllaDB nodes configured - using local document store")
	}

	// Kafka carries submission lifecycle events.
	if producer, err := client.NewKafkaProducer(f.config, util.Get()); err != nil {
		util.Warn("Kafka producer initialization failed - proceeding without events", util.ErrorField(err))
	} else {
		f.kafkaProducer = producer
		util.Info("Kafka producer initialized")
	}

	// Elasticsearch backs submission search.
	if esClient, err := client.NewElasticsearchClient(f.config, util.Get()); err != nil {
		util.Warn("Elasticsearch initialization failed - submission search disabled", util.ErrorField(err))
	} else {
		f.esClient = esClient
		if err := f.esClient.HealthCheck(); err != nil {
			initErrors = append(initErrors, fmt.Errorf("elasticsearch health check: %w", err))
		} else {
			util.Info("Elasticsearch client initialized and healthy")
		}
	}

	// ClickHouse stores the scan audit trail.
	if chClient, err := client.NewClickHouseClient(f.config, util.Get()); err != nil {
		util.Warn("ClickHouse initialization failed - scan audit disabled", util.ErrorField(err))
	} else {
		f.clickhouseClient = chClient
		if err := f.clickhouseClient.HealthCheck(ctx); err != nil {
			initErrors = append(initErrors, fmt.Errorf("clickhouse health check: %w", err))
		} else {
			util.Info("ClickHouse client initialized and healthy")
		}
	}

	// The OCR backend is required; every upload goes through it.
	f.ocrClient = client.NewOCRClient(f.config, util.Get())
	if err := f.ocrClient.HealthCheck(ctx); err != nil {
		initErrors = append(initErrors, fmt.Errorf("ocr backend health check: %w", err))
	} else {
		util.Info("OCR backend reachable", util.String("base_url", f.config.OCR.BaseURL))
	}

	if f.config.KMS.Enabled {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(f.config.KMS.Region))
		if err != nil {
			initErrors = append(initErrors, fmt.Errorf("kms: %w", err))
		} else {
			f.kmsClient = kms.NewFromConfig(awsCfg)
			util.Info("KMS client initialized", util.String("region", f.config.KMS.Region))
		}
	}

	if len(initErrors) > 0 {
		if f.config.IsProduction() {
			return fmt.Errorf("critical service initialization failed: %v", initErrors)
		}
		for _, err := range initErrors {
			util.Warn("Service initialization warning", util.ErrorField(err))
		}
	}

	return nil
}

func (f *Factory) initializeManagers() {
	f.hasher = hashing.NewHasher(f.config)
	f.submissionCodec = codec.NewCodec(f.config, f.kmsClient)
	f.bucketingManager = bucketing.NewManager(f.config)

	util.Info("Managers initialized successfully",
		util.Bool("hashing_initialized", f.hasher != nil),
		util.Bool("codec_initialized", f.submissionCodec != nil),
		util.Bool("bucketing_initialized", f.bucketingManager != nil),
	)
}

func (f *Factory) initializeStorage() error {
	if f.scyllaClient != nil {
		f.documentStore = store.NewScyllaStore(f.scyllaClient, f.bucketingManager)
		util.Info("Using ScyllaDB document store")
		return nil
	}

	localStore, err := store.NewLocalStore(f.config)
	if err != nil {
		return fmt.Errorf("local store: %w", err)
	}
	f.documentStore = localStore
	util.Info("Using local document store", util.String("dir", f.config.Store.LocalDir))
	return nil
}

func (f *Factory) initializeDomain() {
	f.searchIndexer = search.NewIndexer(f.esClient, f.config.Elasticsearch.Index)
	f.scanRecorder = audit.NewRecorder(f.clickhouseClient, f.bucketingManager, f.config.Clickhouse.Table)
	f.settingsService = settings.NewService(f.redisClient, f.hasher, f.config.Store.Namespace)

	f.submissionQueue = queue.NewQueue(
		f.documentStore,
		f.submissionCodec,
		f.kafkaProducer,
		f.searchIndexer,
		f.config.Kafka.SubmissionTopic,
	)
}

func (f *Factory) ServiceFactory() *service.ServiceFactory {
	if f.serviceFactory == nil {
		f.serviceFactory = service.NewServiceFactory(
			f.documentStore,
			f.submissionQueue,
			f.ocrClient,
			f.scanRecorder,
			f.settingsService,
			f.config,
			util.Get(),
		)
	}
	return f.serviceFactory
}

// HealthCheck probes every wired dependency. Optional clients that were
// never configured are skipped rather than reported unhealthy.
func (f *Factory) HealthCheck(ctx context.Context) map[string]error {
	healthErrors := make(map[string]error)

	if f.documentStore != nil {
		if err := f.documentStore.HealthCheck(ctx); err != nil {
			healthErrors["store"] = err
		}
	} else {
		healthErrors["store"] = fmt.Errorf("document store not initialized")
	}

	if f.ocrClient != nil {
		if err := f.ocrClient.HealthCheck(ctx); err != nil {
			healthErrors["ocr"] = err
		}
	} else {
		healthErrors["ocr"] = fmt.Errorf("ocr client not initialized")
	}

	if f.redisClient != nil {
		if err := f.redisClient.HealthCheck(ctx); err != nil {
			healthErrors["redis"] = err
		}
	}
	if f.esClient != nil {
		if err := f.esClient.HealthCheck(); err != nil {
			healthErrors["elasticsearch"] = err
		}
	}
	if f.clickhouseClient != nil {
		if err := f.clickhouseClient.HealthCheck(ctx); err != nil {
			healthErrors["clickhouse"] = err
		}
	}
	if f.kafkaProducer != nil {
		if err := f.kafkaProducer.HealthCheck(ctx); err != nil {
			healthErrors["kafka"] = err
		}
	}

	return healthErrors
}

func (f *Factory) IsHealthy(ctx context.Context) bool {
	healthErrors := f.HealthCheck(ctx)
	delete(healthErrors, "kafka")
	return len(healthErrors) == 0
}

func (f *Factory) Close() error {
	f.closeOnce.Do(func() {
		close(f.closed)
		util.Info("Shutting down factory...")

		if f.clickhouseClient != nil {
			if err := f.clickhouseClient.Close(); err != nil {
				util.Error("Failed to close ClickHouse client", util.ErrorField(err))
			} else {
				util.Info("ClickHouse client closed")
			}
		}

		if f.esClient != nil {
			f.esClient.Close()
			util.Info("Elasticsearch client closed")
		}

		if f.kafkaProducer != nil {
			if err := f.kafkaProducer.Close(); err != nil {
				util.Error("Failed to close Kafka producer", util.ErrorField(err))
			} else {
				util.Info("Kafka producer closed")
			}
		}

		if f.serviceFactory != nil {
			f.serviceFactory.Cleanup()
		}

		if f.documentStore != nil {
			if err := f.documentStore.Close(); err != nil {
				util.Error("Failed to close document store", util.ErrorField(err))
			} else {
				util.Info("Document store closed")
			}
		}

		if f.redisClient != nil {
			if err := f.redisClient.Close(); err != nil {
				util.Error("Failed to close Redis client", util.ErrorField(err))
			} else {
				util.Info("Redis client closed")
			}
		}

		if f.submissionCodec != nil {
			f.submissionCodec.ClearCache()
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

func (f *Factory) TLSManager() *tls.TLSManager {
	return f.tlsManager
}

func (f *Factory) SubmissionQueue() *queue.Queue {
	return f.submissionQueue
}

func (f *Factory) SearchIndexer() *search.Indexer {
	return f.searchIndexer
}

func (f *Factory) DocumentStore() store.Store {
	return f.documentStore
}
