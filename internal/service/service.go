package service

import (
	"context"
	"net/http"
	"time"

	"github.com/holmes-py/JS-DeepLens/internal/common"
	"github.com/holmes-py/JS-DeepLens/internal/config"
	"github.com/holmes-py/JS-DeepLens/internal/datastore"
	"github.com/holmes-py/JS-DeepLens/internal/ingest"
	"github.com/holmes-py/JS-DeepLens/internal/jsanalysis"
	"github.com/holmes-py/JS-DeepLens/internal/llm"
	"github.com/holmes-py/JS-DeepLens/internal/models"
	"github.com/holmes-py/JS-DeepLens/internal/notifier"
	"github.com/holmes-py/JS-DeepLens/internal/patterns"
	"github.com/holmes-py/JS-DeepLens/internal/rescan"
	"github.com/holmes-py/JS-DeepLens/internal/scope"
	"github.com/holmes-py/JS-DeepLens/internal/secrets"
	"github.com/holmes-py/JS-DeepLens/internal/stats"
	"github.com/rs/zerolog"
)

// Service owns every component of one project and exposes the operations
// served over HTTP.
type Service struct {
	cfg    *config.GlobalConfig
	logger zerolog.Logger

	db       *datastore.DB
	records  *datastore.RecordStore
	settings *datastore.ConfigStore
	blobs    *datastore.BlobStore
	exporter *datastore.ParquetWriter

	patternStore *patterns.Store
	registry     *patterns.Registry
	scope        *scope.Filter
	syntax       *jsanalysis.Analyzer

	bus      *notifier.Bus
	pipeline *ingest.Pipeline
	rescan   *rescan.Orchestrator
	stats    *stats.Aggregator
	llm      llm.Analyzer

	// lifetime of background jobs; cancelled by Close
	jobCtx    context.Context
	cancelJob context.CancelFunc
}

// Option customises New.
type Option func(*options)

type options struct {
	analyzer   llm.Analyzer
	httpClient *http.Client
}

// WithAnalyzer replaces the Gemini collaborator.
func WithAnalyzer(a llm.Analyzer) Option {
	return func(o *options) { o.analyzer = a }
}

// WithHTTPClient sets the client used for outbound webhook calls.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// New opens the project's storage, restores persisted settings and starts
// the notification subscribers.
func New(ctx context.Context, cfg *config.GlobalConfig, logger zerolog.Logger, opts ...Option) (*Service, error) {
	o := options{httpClient: &http.Client{Timeout: 20 * time.Second}}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Service{
		cfg:    cfg,
		logger: logger.With().Str("component", "Service").Str("project", cfg.ProjectConfig.Name).Logger(),
	}

	db, err := datastore.Open(cfg.DatabasePath(), cfg.StorageConfig.BusyTimeoutMs, logger)
	if err != nil {
		return nil, common.WrapError(err, "failed to open project database")
	}
	s.db = db
	s.records = db.Records()
	s.settings = db.Settings()

	if s.blobs, err = datastore.NewBlobStore(cfg.ScriptsPath(), logger); err != nil {
		db.Close()
		return nil, err
	}
	if s.exporter, err = datastore.NewParquetWriter(cfg.ExportPath(), datastore.DefaultParquetWriterConfig(), logger); err != nil {
		db.Close()
		return nil, err
	}

	s.patternStore = patterns.NewStore(cfg.PatternsConfig.Directory, logger)
	if seeded, err := s.patternStore.SeedDefaults(); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to seed default pattern sets")
	} else if len(seeded) > 0 {
		s.logger.Info().Strs("files", seeded).Msg("Seeded default pattern sets")
	}
	s.registry = patterns.NewRegistry(s.patternStore, logger)
	s.syntax = jsanalysis.NewAnalyzer(logger)

	if err := s.restoreSettings(ctx); err != nil {
		db.Close()
		return nil, err
	}

	s.bus = notifier.NewBus(cfg.NotificationConfig.EventBuffer, logger)
	notifier.NewLogSubscriber(logger).Register(s.bus)
	discord := notifier.NewDiscordSubscriber(cfg.NotificationConfig, notifier.NewDiscordNotifier(logger, o.httpClient), logger)
	if discord.Enabled() {
		discord.Register(s.bus)
	}

	regex := secrets.NewAnalyzer(logger)
	s.pipeline = ingest.NewPipeline(s.records, s.blobs, s.registry, regex, s.bus, logger)
	s.rescan = rescan.NewOrchestrator(s.records, s.blobs, s.registry, regex, s.bus, rescan.Options{
		ProgressEvery: cfg.RescanConfig.ProgressEvery,
		YieldDelay:    time.Duration(cfg.RescanConfig.YieldDelayMs) * time.Millisecond,
	}, logger)
	s.stats = stats.NewAggregator(s.records, s.scope, s.bus, logger)

	s.jobCtx, s.cancelJob = context.WithCancel(context.Background())
	s.bus.Attach(notifier.EventRescanComplete, func(ctx context.Context, _ notifier.Event) {
		s.stats.Refresh(ctx)
	})

	s.llm = o.analyzer
	if s.llm == nil {
		gemini, err := llm.NewGeminiAnalyzer(ctx, cfg.LLMConfig, logger)
		if err != nil {
			s.logger.Warn().Err(err).Msg("LLM collaborator unavailable, continuing without it")
		} else {
			s.llm = gemini
		}
	}

	s.logger.Info().
		Str("database", cfg.DatabasePath()).
		Strs("patterns", s.registry.Snapshot().Selected).
		Bool("llm_enabled", s.llmEnabled()).
		Msg("Service ready")
	return s, nil
}

// restoreSettings loads the persisted scope and pattern selection. Broken
// stored values degrade to empty rather than failing startup.
func (s *Service) restoreSettings(ctx context.Context) error {
	include, err := s.settings.GetStringList(ctx, datastore.KeyScopeIncludeList)
	if err != nil {
		return err
	}
	exclude, err := s.settings.GetStringList(ctx, datastore.KeyScopeExcludeList)
	if err != nil {
		return err
	}
	s.scope = scope.NewFilterLenient(models.ScopeConfig{IncludePatterns: include, ExcludePatterns: exclude}, s.logger)

	selected, err := s.settings.GetStringList(ctx, datastore.KeySelectedPatternFiles)
	if err != nil {
		return err
	}
	if _, err := s.registry.Select(selected); err != nil {
		s.logger.Warn().Err(err).Strs("selected", selected).Msg("Failed to load persisted pattern selection")
	}
	return nil
}

// Bus exposes the notification channel for extra subscribers.
func (s *Service) Bus() *notifier.Bus {
	return s.bus
}

// Close stops background jobs, drains subscribers and closes storage.
func (s *Service) Close() error {
	s.cancelJob()
	s.rescan.Wait()
	s.bus.Close()
	return s.db.Close()
}

// Ingest counts and processes one submitted script.
func (s *Service) Ingest(ctx context.Context, url string, content *string) (ingest.Result, error) {
	s.stats.RecordScriptReceived()
	if url == "" || content == nil {
		s.stats.Refresh(ctx)
		return ingest.Result{}, common.NewValidationError("url", url, "missing url or content")
	}
	res, err := s.pipeline.Ingest(ctx, url, []byte(*content))
	s.stats.Refresh(ctx)
	return res, err
}

// RecordRequest counts one observed network request.
func (s *Service) RecordRequest(ctx context.Context) {
	s.stats.RecordRequest()
	s.stats.Refresh(ctx)
}

// Stats returns fresh dashboard counters.
func (s *Service) Stats(ctx context.Context) models.Stats {
	return s.stats.Refresh(ctx)
}

// StartRescan launches a rescan with the current pattern selection.
func (s *Service) StartRescan() (string, error) {
	return s.rescan.Start(s.jobCtx)
}

// RescanStatus reports whether a job runs and the last finished summary.
func (s *Service) RescanStatus() (bool, *models.RescanSummary) {
	if summary, ok := s.rescan.LastSummary(); ok {
		return s.rescan.Running(), &summary
	}
	return s.rescan.Running(), nil
}

func (s *Service) llmEnabled() bool {
	return s.llm != nil && s.llm.Enabled()
}
