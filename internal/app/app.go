package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/finreview/internal/common"
	"github.com/ternarybob/finreview/internal/handlers"
	"github.com/ternarybob/finreview/internal/interfaces"
	"github.com/ternarybob/finreview/internal/models"
	"github.com/ternarybob/finreview/internal/services/chunker"
	"github.com/ternarybob/finreview/internal/services/embeddings"
	"github.com/ternarybob/finreview/internal/services/events"
	"github.com/ternarybob/finreview/internal/services/findata"
	"github.com/ternarybob/finreview/internal/services/indicators"
	"github.com/ternarybob/finreview/internal/services/industry"
	"github.com/ternarybob/finreview/internal/services/ingestion"
	"github.com/ternarybob/finreview/internal/services/llm"
	"github.com/ternarybob/finreview/internal/services/pdf"
	"github.com/ternarybob/finreview/internal/services/prompts"
	"github.com/ternarybob/finreview/internal/services/reports"
	"github.com/ternarybob/finreview/internal/services/retrieval"
	"github.com/ternarybob/finreview/internal/services/scheduler"
	"github.com/ternarybob/finreview/internal/storage"
	"github.com/ternarybob/finreview/internal/workflow"
)

// App wires configuration, services, and handlers together.
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	// Storage
	Storage interfaces.StorageManager
	Vectors interfaces.VectorStore

	// Ingestion pipeline
	Chunker   interfaces.ChunkerService
	Embedder  interfaces.EmbeddingService
	Ingestion interfaces.IngestionService
	Retrieval interfaces.RetrievalService

	// Report generation
	FinData    interfaces.FinancialDataService
	Indicators interfaces.IndicatorService
	Industries interfaces.IndustryService
	LLM        interfaces.LLMService
	Prompts    *prompts.Store
	PDF        interfaces.PDFService
	Reports    interfaces.ReportService

	// Event-driven services
	Events    interfaces.EventService
	Scheduler interfaces.SchedulerService

	// HTTP handlers
	HealthHandler  *handlers.HealthHandler
	IngestHandler  *handlers.IngestHandler
	SearchHandler  *handlers.SearchHandler
	ReportHandler  *handlers.ReportHandler
	CatalogHandler *handlers.CatalogHandler
	RatiosHandler  *handlers.RatiosHandler
	WSHandler      *handlers.WebSocketHandler
	LogRelay       *handlers.LogRelay
}

// New initializes the application with all dependencies.
func New(ctx context.Context, cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	// Events and the WebSocket hub come first so every later service can
	// publish and every log line can reach connected clients.
	app.Events = events.NewService(logger)

	wsHandler, err := handlers.NewWebSocketHandler(app.Events, cfg.WebSocket, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize websocket hub: %w", err)
	}
	app.WSHandler = wsHandler

	app.LogRelay = handlers.NewLogRelay(wsHandler, &cfg.WebSocket)
	app.LogRelay.Start()
	logger.SetChannel("websocket", app.LogRelay.Channel())

	if err := app.initStorage(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	if err := app.initServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	if err := app.seedCompanies(ctx); err != nil {
		return nil, fmt.Errorf("failed to seed company catalog: %w", err)
	}
	app.initHandlers()

	if cfg.Scheduler.Enabled {
		if err := app.startScheduler(); err != nil {
			return nil, fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	logger.Info().
		Str("vector_backend", cfg.Vector.Backend).
		Msg("Application initialization complete")

	return app, nil
}

// initStorage opens the document store and the vector store.
func (a *App) initStorage(ctx context.Context) error {
	manager, err := storage.NewStorageManager(a.Logger, a.Config)
	if err != nil {
		return err
	}
	a.Storage = manager

	vectors, err := storage.NewVectorStore(ctx, a.Config, a.Logger)
	if err != nil {
		return err
	}
	if err := vectors.EnsureCollection(ctx); err != nil {
		return err
	}
	a.Vectors = vectors

	a.Logger.Info().
		Str("backend", a.Config.Vector.Backend).
		Str("collection", a.Config.Vector.Collection).
		Msg("Storage initialized")
	return nil
}

// initServices builds the ingestion pipeline and the report workflow.
func (a *App) initServices() error {
	chunkerSvc, err := chunker.NewService(a.Config.Chunking, a.Logger)
	if err != nil {
		return err
	}
	a.Chunker = chunkerSvc

	embedder, err := embeddings.NewClient(a.Config.Embedding, a.Config.Vector.Dimension, a.Logger)
	if err != nil {
		return err
	}
	a.Embedder = embedder

	a.Ingestion = ingestion.NewService(a.Chunker, a.Embedder, a.Vectors,
		a.Storage.Ingests(), a.Config.Embedding, a.Logger)
	a.Retrieval = retrieval.NewService(a.Embedder, a.Vectors, a.Logger)

	finClient, err := findata.NewClient(a.Config.FinData.BaseURL,
		findata.WithTimeout(time.Duration(a.Config.FinData.TimeoutSec)*time.Second),
		findata.WithReportType(a.Config.FinData.ReportType),
		findata.WithRateLimit(a.Config.FinData.RatePerSecond),
		findata.WithLogger(a.Logger),
	)
	if err != nil {
		return err
	}
	a.FinData = finClient

	a.Indicators = indicators.NewService(a.Logger)

	industries := industry.NewService(a.Logger)
	if dir := a.Config.Industries.ProfilesDir; dir != "" {
		if err := industries.LoadDir(dir); err != nil {
			a.Logger.Warn().Err(err).Str("dir", dir).Msg("Failed to load industry profiles")
		}
	}
	a.Industries = industries

	llmService, err := llm.NewLLMService(&a.Config.LLM, a.Logger)
	if err != nil {
		return err
	}
	a.LLM = llmService

	promptStore, err := prompts.NewStore(a.Config.Prompts, a.Logger)
	if err != nil {
		return err
	}
	a.Prompts = promptStore

	a.PDF = pdf.NewService(a.Logger)

	nodes := workflow.NewNodes(workflow.Dependencies{
		FinData:    a.FinData,
		Indicators: a.Indicators,
		Retrieval:  a.Retrieval,
		LLM:        a.LLM,
		Industries: a.Industries,
		Prompts:    a.Prompts,
		Config:     a.Config.Workflow,
		Logger:     a.Logger,
	})

	reportService, err := reports.NewService(reports.Options{
		Nodes:     nodes,
		Storage:   a.Storage,
		Ingestion: a.Ingestion,
		Events:    a.Events,
		PDF:       a.PDF,
		Config:    a.Config.Reports,
		Logger:    a.Logger,
	})
	if err != nil {
		return err
	}
	a.Reports = reportService

	a.Logger.Info().
		Str("llm_provider", a.LLM.Provider()).
		Str("embedding_model", a.Embedder.ModelName()).
		Msg("Services initialized")
	return nil
}

// seedCompanies upserts the configured company catalog entries.
func (a *App) seedCompanies(ctx context.Context) error {
	for _, seed := range a.Config.Companies {
		code := common.ParseStockCode(seed.Code)
		if code.Code == "" {
			a.Logger.Warn().
				Str("name", seed.Name).
				Str("code", seed.Code).
				Msg("Skipping company seed with unrecognizable stock code")
			continue
		}
		company := &models.Company{
			Code:     code.Code,
			Name:     seed.Name,
			Industry: seed.Industry,
		}
		if err := a.Storage.Companies().UpsertCompany(ctx, company); err != nil {
			return err
		}
	}

	if len(a.Config.Companies) > 0 {
		a.Logger.Info().
			Int("count", len(a.Config.Companies)).
			Msg("Company catalog seeded")
	}
	return nil
}

// initHandlers builds the HTTP handlers over the services.
func (a *App) initHandlers() {
	a.HealthHandler = handlers.NewHealthHandler(a.FinData, a.Embedder, a.Vectors, a.LLM, a.Logger)
	a.IngestHandler = handlers.NewIngestHandler(a.Ingestion, a.Logger)
	a.SearchHandler = handlers.NewSearchHandler(a.Retrieval, a.Logger)
	a.ReportHandler = handlers.NewReportHandler(a.Reports, a.Logger)
	a.CatalogHandler = handlers.NewCatalogHandler(a.Storage.Companies(), a.Industries, a.Logger)
	a.RatiosHandler = handlers.NewRatiosHandler(a.FinData, a.Indicators, a.Logger)
}

// startScheduler registers and starts the maintenance jobs.
func (a *App) startScheduler() error {
	sched := scheduler.NewService(a.Logger)

	healthCron := a.Config.Scheduler.HealthCron
	if healthCron == "" {
		healthCron = "*/5 * * * *"
	}
	if err := sched.RegisterJob("upstream-health", healthCron, "upstream health sweep", a.healthSweep); err != nil {
		return err
	}

	flushCron := a.Config.Scheduler.FlushCron
	if flushCron == "" {
		flushCron = "*/15 * * * *"
	}
	if err := sched.RegisterJob("vector-flush", flushCron, "vector index flush", a.flushVectors); err != nil {
		return err
	}

	if err := sched.Start(); err != nil {
		return err
	}
	a.Scheduler = sched
	return nil
}

// healthSweep probes every upstream and publishes a health event on
// failure. With health_quiet set, healthy sweeps stay out of the log.
func (a *App) healthSweep() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	checks := map[string]func(context.Context) error{
		"findata":      a.FinData.HealthCheck,
		"embedding":    a.Embedder.HealthCheck,
		"vector_store": a.Vectors.HealthCheck,
		"llm":          a.LLM.HealthCheck,
	}

	var failed []string
	for name, check := range checks {
		if err := check(ctx); err != nil {
			failed = append(failed, name)
			a.Logger.Warn().
				Err(err).
				Str("upstream", name).
				Msg("Upstream health check failed")
		}
	}

	if len(failed) > 0 {
		a.Events.Publish(context.Background(), interfaces.Event{
			Type:    interfaces.EventHealthChanged,
			Payload: map[string]interface{}{"status": "degraded", "failed": failed},
		})
		return fmt.Errorf("%d upstream(s) unhealthy", len(failed))
	}
	if !a.Config.Scheduler.HealthQuiet {
		a.Logger.Info().Msg("All upstreams healthy")
	}
	return nil
}

// flushVectors persists the embedded vector index. The Milvus backend
// flushes per insert, so the job is a no-op there.
func (a *App) flushVectors() error {
	flusher, ok := a.Vectors.(interface{ Flush() error })
	if !ok {
		return nil
	}
	return flusher.Flush()
}

// Close shuts down services in reverse dependency order.
func (a *App) Close() error {
	if a.Scheduler != nil {
		if err := a.Scheduler.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop scheduler")
		}
	}

	if a.WSHandler != nil {
		if err := a.WSHandler.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close websocket hub")
		}
	}
	if a.LogRelay != nil {
		a.LogRelay.Stop()
	}

	if a.Events != nil {
		if err := a.Events.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close event service")
		}
	}

	if a.LLM != nil {
		if err := a.LLM.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close LLM service")
		}
	}

	if a.Vectors != nil {
		if err := a.Vectors.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close vector store")
		}
	}

	if a.Storage != nil {
		if err := a.Storage.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}
