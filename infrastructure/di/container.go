// Package di assembles the application from configuration. Wiring is
// explicit: each adapter is chosen from config and handed to the layer
// above it, so the whole object graph is readable in one place.
package di

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"engram-backend/application/commands"
	"engram-backend/application/events"
	"engram-backend/application/ports"
	"engram-backend/application/projections"
	queryhandlers "engram-backend/application/queries/handlers"
	"engram-backend/application/sagas"
	appservices "engram-backend/application/services"
	domainservices "engram-backend/domain/services"
	"engram-backend/infrastructure/blob"
	"engram-backend/infrastructure/config"
	"engram-backend/infrastructure/embedding"
	"engram-backend/infrastructure/extraction"
	"engram-backend/infrastructure/ledger"
	badgerstore "engram-backend/infrastructure/persistence/badger"
	memstore "engram-backend/infrastructure/persistence/memory"
	"engram-backend/interfaces/http/rest"
	"engram-backend/interfaces/http/rest/handlers"
	"engram-backend/pkg/auth"
	"engram-backend/pkg/observability"
)

const (
	operationTTL = time.Hour

	// devJWTSecret keeps local development friction-free. Validate()
	// refuses to start production without a real secret.
	devJWTSecret = "engram-development-secret-do-not-deploy"
)

// Container holds the assembled application
type Container struct {
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *observability.Collector
	Tracing *observability.TracerProvider
	Dynamic *config.DynamicConfigManager

	MemoryRepo       *badgerstore.MemoryRepository
	GraphStore       *memstore.GraphStore
	VectorIndex      *memstore.VectorIndex
	OperationStore   *memstore.OperationStore
	IdempotencyStore *memstore.IdempotencyStore
	EventBus         *events.Bus

	RepairService *appservices.RepairService
	Handler       http.Handler
}

// InitializeContainer builds the full object graph from config
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	logger, err := buildLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}

	c := &Container{Config: cfg, Logger: logger}

	if cfg.EnableMetrics {
		c.Metrics = observability.NewCollector("engram")
	}
	if cfg.EnableTracing {
		tracing, err := observability.InitTracing("engram-backend", cfg.Environment, cfg.OTLPEndpoint)
		if err != nil {
			return nil, fmt.Errorf("initializing tracing: %w", err)
		}
		c.Tracing = tracing
	}

	dynamic, err := config.NewDynamicConfigManager(cfg.DynamicConfigPath, logger)
	if err != nil {
		return nil, fmt.Errorf("loading dynamic config: %w", err)
	}
	dynamic.Start()
	c.Dynamic = dynamic

	// Storage.
	memoryRepo, err := badgerstore.NewMemoryRepository(cfg.BadgerPath, logger)
	if err != nil {
		return nil, fmt.Errorf("opening memory store: %w", err)
	}
	c.MemoryRepo = memoryRepo
	c.GraphStore = memstore.NewGraphStore()
	c.VectorIndex = memstore.NewVectorIndex()
	c.OperationStore = memstore.NewOperationStore(operationTTL)
	c.IdempotencyStore = memstore.NewIdempotencyStore()

	blobStore, err := buildBlobStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("building blob store: %w", err)
	}

	// External collaborators.
	extractor := buildExtractor(cfg, logger)
	embedder, err := buildEmbedder(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("building embedder: %w", err)
	}
	capabilityLedger := buildLedger(cfg, logger)

	// Events.
	bus := events.NewBus(logger)
	c.EventBus = bus
	if c.Metrics != nil {
		if err := bus.Subscribe(events.Wildcard, projections.NewMetricsProjection(c.Metrics, logger)); err != nil {
			return nil, fmt.Errorf("subscribing metrics projection: %w", err)
		}
	}

	// Application services.
	accessGate := appservices.NewAccessGate(capabilityLedger, logger)
	resolver := domainservices.NewEntityResolver(logger)
	querySvc := appservices.NewQueryService(
		c.GraphStore, c.VectorIndex, memoryRepo, embedder, dynamic, logger)
	c.RepairService = appservices.NewRepairService(
		memoryRepo, c.GraphStore, c.VectorIndex,
		extractor, embedder, resolver,
		dynamic, bus, logger)

	// Graph and vector state live in process memory; replay the durable
	// records before serving so a restart never leaves indexed memories
	// unreachable.
	rebuild, err := c.RepairService.RebuildIndexes(ctx)
	if err != nil {
		return nil, fmt.Errorf("rebuilding indexes: %w", err)
	}
	logger.Info("index rebuild complete",
		zap.Int("replayed", rebuild.Replayed),
		zap.Int("failed", rebuild.Failed))

	saga := sagas.NewIngestMemorySaga(
		memoryRepo, c.GraphStore, c.VectorIndex,
		extractor, embedder, resolver,
		blobStore, bus, c.OperationStore, dynamic, logger)

	// Command and query handlers.
	ingestHandler := commands.NewIngestMemoryHandler(
		accessGate, memoryRepo, saga, c.IdempotencyStore, c.OperationStore, logger)
	deleteHandler := commands.NewDeleteMemoryHandler(
		accessGate, memoryRepo, c.GraphStore, c.VectorIndex, blobStore, bus, logger)
	getMemoryHandler := queryhandlers.NewGetMemoryHandler(accessGate, memoryRepo, logger)
	semanticHandler := queryhandlers.NewSemanticSearchHandler(accessGate, querySvc, logger)
	graphHandler := queryhandlers.NewGraphNeighborhoodHandler(accessGate, querySvc, logger)
	hybridHandler := queryhandlers.NewHybridSearchHandler(accessGate, querySvc, logger)
	statsHandler := queryhandlers.NewGetGraphStatsHandler(accessGate, querySvc, logger)
	operationHandler := queryhandlers.NewGetOperationStatusHandler(c.OperationStore, logger)

	// HTTP surface.
	validator, err := buildJWTValidator(cfg)
	if err != nil {
		return nil, fmt.Errorf("building jwt validator: %w", err)
	}
	router := rest.NewRouter(
		handlers.NewMemoryHandler(ingestHandler, deleteHandler, getMemoryHandler, logger),
		handlers.NewSearchHandler(semanticHandler, graphHandler, hybridHandler, logger),
		handlers.NewGraphHandler(statsHandler, logger),
		handlers.NewOperationHandler(operationHandler, logger),
		logger,
		rest.Options{
			Validator:     validator,
			Metrics:       c.Metrics,
			EnableCORS:    cfg.EnableCORS,
			EnableMetrics: cfg.EnableMetrics,
		},
	)
	c.Handler = router.Setup()

	return c, nil
}

// StartRepairLoop runs the periodic index repair sweep until ctx is
// cancelled. The returned channel closes when the loop has exited. The
// sweep shares the process with the server because the embedded store
// holds an exclusive directory lock; a separate repair binary could
// never open it.
func (c *Container) StartRepairLoop(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	c.Logger.Info("starting repair sweep",
		zap.Int("interval_seconds", c.Dynamic.RepairInterval()),
		zap.Int("batch_size", c.Dynamic.RepairBatchSize()),
		zap.Int("stuck_after_seconds", c.Dynamic.RepairStuckAfter()),
	)

	go func() {
		defer close(done)
		for {
			interval := time.Duration(c.Dynamic.RepairInterval()) * time.Second
			select {
			case <-ctx.Done():
				return
			case <-time.After(interval):
			}

			olderThan := time.Duration(c.Dynamic.RepairStuckAfter()) * time.Second
			if _, err := c.RepairService.RepairOnce(ctx, c.Dynamic.RepairBatchSize(), olderThan); err != nil && ctx.Err() == nil {
				c.Logger.Error("repair sweep failed", zap.Error(err))
			}
		}
	}()
	return done
}

// Shutdown releases the container's resources
func (c *Container) Shutdown(ctx context.Context) error {
	if c.Dynamic != nil {
		c.Dynamic.Stop()
	}
	if c.OperationStore != nil {
		c.OperationStore.Close()
	}
	if c.Tracing != nil {
		if err := c.Tracing.Shutdown(ctx); err != nil {
			c.Logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}
	if c.MemoryRepo != nil {
		if err := c.MemoryRepo.Close(); err != nil {
			return fmt.Errorf("closing memory store: %w", err)
		}
	}
	return nil
}

func buildLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Environment == "production" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}

func buildExtractor(cfg *config.Config, logger *zap.Logger) ports.Extractor {
	if cfg.Extraction.ServiceURL == "" {
		logger.Info("no extraction service configured, using fixture extractor")
		return extraction.NewFixtureExtractor(logger)
	}
	return extraction.NewHTTPExtractor(
		cfg.Extraction.ServiceURL,
		time.Duration(cfg.Extraction.TimeoutMS)*time.Millisecond,
		cfg.Extraction.MaxRetries,
		logger,
	)
}

func buildEmbedder(cfg *config.Config, logger *zap.Logger) (ports.Embedder, error) {
	switch cfg.Embedding.Provider {
	case "openai":
		if cfg.Embedding.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai embedding provider requires OPENAI_API_KEY")
		}
		return embedding.NewOpenAIEmbedder(
			cfg.Embedding.OpenAIAPIKey,
			cfg.Embedding.Model,
			cfg.Embedding.Dimensions,
			logger,
		), nil
	case "local":
		return embedding.NewLocalEmbedder(), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Embedding.Provider)
	}
}

func buildLedger(cfg *config.Config, logger *zap.Logger) ports.CapabilityLedger {
	if cfg.Ledger.Mode == "http" {
		return ledger.NewHTTPLedger(
			cfg.Ledger.ServiceURL,
			time.Duration(cfg.Ledger.TimeoutMS)*time.Millisecond,
			logger,
		)
	}
	return ledger.NewStaticLedger()
}

func buildBlobStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ports.BlobStore, error) {
	if cfg.Blob.Endpoint == "" {
		logger.Info("no blob endpoint configured, archiving raw text in memory")
		return blob.NewMemoryStore(), nil
	}
	return blob.NewMinioStore(
		ctx,
		cfg.Blob.Endpoint,
		cfg.Blob.AccessKey,
		cfg.Blob.SecretKey,
		cfg.Blob.Bucket,
		cfg.Blob.UseSSL,
		logger,
	)
}

func buildJWTValidator(cfg *config.Config) (*auth.JWTValidator, error) {
	secret := cfg.JWTSecret
	if secret == "" {
		secret = devJWTSecret
	}
	return auth.NewJWTValidator(auth.JWTConfig{
		SecretKey: secret,
		Issuer:    cfg.JWTIssuer,
	})
}
