package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"ContentRewriter/internal/approval"
	"ContentRewriter/internal/config"
	"ContentRewriter/internal/dedup"
	"ContentRewriter/internal/domain"
	"ContentRewriter/internal/httpapi"
	"ContentRewriter/internal/infrastructure/llm"
	"ContentRewriter/internal/infrastructure/parser"
	"ContentRewriter/internal/infrastructure/scheduler"
	"ContentRewriter/internal/infrastructure/storage/memory"
	"ContentRewriter/internal/infrastructure/storage/postgres"
	"ContentRewriter/internal/infrastructure/storage/redisstore"
	"ContentRewriter/internal/infrastructure/telegram"
	"ContentRewriter/internal/infrastructure/wordpress"
	"ContentRewriter/internal/logging"
	"ContentRewriter/internal/ports"
	"ContentRewriter/internal/prompt"
	"ContentRewriter/internal/quality"
	"ContentRewriter/internal/ratelimit"
	"ContentRewriter/internal/recovery"
	"ContentRewriter/internal/retry"
	"ContentRewriter/internal/scanner"
	"ContentRewriter/internal/usage"
	"ContentRewriter/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

// repositories groups every persistence port served by one backend.
type repositories interface {
	ports.PublishedRepository
	ports.UsageRepository
	ports.ApprovalRepository
	ports.VariantStatsRepository
	ports.RateLimitStore
}

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	pipeline  *usecase.Pipeline
	scheduler *usecase.Scheduler
	server    *http.Server
	closers   []io.Closer
}

// New builds every adapter and use case from cfg.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	a := &Application{cfg: cfg, logger: baseLogger.With("component", "app")}

	repos, err := a.openRepositories(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	rateStore, err := a.openRateLimitStore(ctx, repos)
	if err != nil {
		a.Close()
		return nil, err
	}

	limiter := ratelimit.New(rateStore, baseLogger)
	accounting := usage.New(repos, baseLogger)

	gate, err := quality.NewGate(cfg.Rewrite.HeuristicCacheSize)
	if err != nil {
		a.Close()
		return nil, err
	}

	selector, template, err := buildSelector(cfg.Rewrite, repos, baseLogger)
	if err != nil {
		a.Close()
		return nil, err
	}

	var notifier ports.Notifier
	if tg := telegram.NewNotifier(cfg.Notifications.Telegram); tg.Configured() {
		notifier = tg
	}

	var sink ports.PublicationSink
	wp := wordpress.NewClient(cfg.WordPress)
	if wp.Configured() {
		sink = wp
	}

	registry := scanner.NewRegistry()
	registry.Register(parser.NewRSSScanner(nil, limiter, baseLogger.With("component", "scanner.rss")))
	source := parser.NewStrategySource(registry, cfg.Sources, baseLogger.With("component", "source"))
	a.logger.Info("sources configured", "sources", len(cfg.Sources), "scanners", registry.Names())
	extractor := parser.NewArticleExtractor(cfg.Extraction, limiter, baseLogger.With("component", "extractor"))

	rewriter, err := usecase.NewRewriter(usecase.RewriterDeps{
		Generator:      llm.NewClient(cfg.LLM),
		Limiter:        limiter,
		Selector:       selector,
		Template:       template,
		Parser:         recovery.NewParser(recovery.NewFileDiagnostics(cfg.Rewrite.DiagnosticsDir), baseLogger),
		Gate:           gate,
		Usage:          accounting,
		Policy:         policy(cfg.Retry.Rewrite),
		Service:        usecase.DefaultRewriteService,
		MinInterval:    cfg.LLM.MinInterval,
		Threshold:      cfg.Rewrite.QualityThreshold,
		MinInputLength: cfg.Rewrite.MinInputLength,
		Logger:         baseLogger,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	// the pipeline is created after the workflow, so the callback reaches it late
	var pipeline *usecase.Pipeline
	workflow, err := approval.NewWorkflow(approval.WorkflowDeps{
		Approvals: repos,
		Published: repos,
		Sink:      sink,
		Logger:    baseLogger,
		OnUnauthorized: func(err error) {
			if pipeline != nil {
				pipeline.RequireManualApproval(err)
			}
		},
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	pipeline, err = usecase.NewPipeline(usecase.PipelineDeps{
		Source:           source,
		Dedup:            dedup.New(repos, baseLogger),
		Extractor:        extractor,
		Rewriter:         rewriter,
		Approvals:        workflow,
		Notifier:         notifier,
		Logger:           baseLogger,
		FeedPolicy:       policy(cfg.Retry.Feed),
		ExtractionPolicy: policy(cfg.Retry.Extraction),
		Cooldown:         cfg.Rewrite.Cooldown,
		AutoPublish:      cfg.Approval.AutoPublish,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.pipeline = pipeline

	a.verifyPublicationTarget(ctx, wp)

	driver := scheduler.NewIntervalScheduler(cfg.Scheduler.Interval, cfg.Scheduler.Location())
	a.scheduler = usecase.NewScheduler(driver, pipeline, notifier, baseLogger)

	handler := httpapi.NewHandler(httpapi.HandlerDeps{
		Workflow:     workflow,
		Selector:     selector,
		Usage:        accounting,
		UsageService: usecase.DefaultRewriteService,
		Logger:       baseLogger,
	})
	a.server = &http.Server{
		Addr:              cfg.Approval.ListenAddr,
		Handler:           httpapi.NewRouter(handler),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return a, nil
}

func (a *Application) openRepositories(ctx context.Context) (repositories, error) {
	switch a.cfg.Storage.Backend {
	case config.BackendMemory:
		a.logger.Warn("using in-memory storage; state is lost on restart")
		return memory.NewStore(), nil
	case config.BackendPostgres, "":
		db, err := postgres.Open(ctx, a.cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		a.closers = append(a.closers, db)
		if a.cfg.Database.Migrate() {
			if err := postgres.Migrate(ctx, db, a.logger); err != nil {
				return nil, err
			}
		}
		a.logger.Info("using postgres storage")
		return postgres.NewStore(db), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", a.cfg.Storage.Backend)
	}
}

func (a *Application) openRateLimitStore(ctx context.Context, repos repositories) (ports.RateLimitStore, error) {
	switch a.cfg.Storage.RateLimitBackend {
	case config.BackendRedis:
		store, err := redisstore.Connect(ctx, a.cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.closers = append(a.closers, store)
		a.logger.Info("rate limit state in redis")
		return store, nil
	case config.BackendMemory, config.BackendPostgres, "":
		return repos, nil
	default:
		return nil, fmt.Errorf("unknown rate limit backend %q", a.cfg.Storage.RateLimitBackend)
	}
}

// verifyPublicationTarget switches to manual approval when the publication
// target is missing or refuses the configured credentials.
func (a *Application) verifyPublicationTarget(ctx context.Context, wp *wordpress.Client) {
	if !wp.Configured() {
		if a.cfg.Approval.AutoPublish {
			a.pipeline.RequireManualApproval(errors.New("publication target is not configured"))
			return
		}
		a.logger.Info("no publication target configured; approvals are recorded only")
		return
	}
	if err := wp.VerifyCredentials(ctx); err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			a.pipeline.RequireManualApproval(err)
			return
		}
		a.logger.Warn("publication target unreachable at startup", "error", err)
	}
}

func buildSelector(cfg config.RewriteConfig, repo ports.VariantStatsRepository, logger *slog.Logger) (*prompt.Selector, string, error) {
	template := cfg.CustomTemplate
	if template == "" {
		template = prompt.DefaultTemplate
	}
	if !cfg.ABTestingEnabled() {
		return nil, template, nil
	}

	variants := prompt.DefaultVariants()
	if len(cfg.Variants) > 0 {
		variants = make([]domain.PromptVariant, 0, len(cfg.Variants))
		for _, v := range cfg.Variants {
			variants = append(variants, domain.PromptVariant{ID: v.ID, Template: v.Template})
		}
	}
	selector, err := prompt.NewSelector(variants, repo, logger.With("component", "prompt"))
	if err != nil {
		return nil, "", fmt.Errorf("prompt variants: %w", err)
	}
	return selector, template, nil
}

func policy(cfg config.RetryPolicyConfig) retry.Policy {
	return retry.Policy{
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.BaseDelay,
		MinDelay:    cfg.MinDelay,
		MaxDelay:    cfg.MaxDelay,
	}
}

// RunOnce executes a single cycle and returns its statistics.
func (a *Application) RunOnce(ctx context.Context) (domain.CycleStats, error) {
	return a.pipeline.RunCycle(ctx)
}

// Run starts the schedule and the review API, then blocks until ctx is
// cancelled or the server fails.
func (a *Application) Run(ctx context.Context) error {
	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		a.logger.Info("review api listening", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err, ok := <-serverErr:
		if ok {
			runErr = fmt.Errorf("review api: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := a.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// Shutdown stops the schedule, drains the API and releases connections.
func (a *Application) Shutdown(ctx context.Context) error {
	var errs []error
	if err := a.scheduler.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop scheduler: %w", err))
	}
	if err := a.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown api: %w", err))
	}
	a.Close()
	return errors.Join(errs...)
}

// Close releases database and cache connections.
func (a *Application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}
