// Package bootstrap builds the object graph shared by the server and the
// command-line tools from one common.Config.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joseph-ayodele/merchant-intake/internal/async"
	"github.com/joseph-ayodele/merchant-intake/internal/backend"
	"github.com/joseph-ayodele/merchant-intake/internal/common"
	"github.com/joseph-ayodele/merchant-intake/internal/extract"
	"github.com/joseph-ayodele/merchant-intake/internal/intake"
	"github.com/joseph-ayodele/merchant-intake/internal/metrics"
	"github.com/joseph-ayodele/merchant-intake/internal/ocr"
	"github.com/joseph-ayodele/merchant-intake/internal/patterns"
	"github.com/joseph-ayodele/merchant-intake/internal/pipeline"
	"github.com/joseph-ayodele/merchant-intake/internal/repository"
	"github.com/joseph-ayodele/merchant-intake/internal/resilience"
	"github.com/joseph-ayodele/merchant-intake/internal/server"
	"github.com/joseph-ayodele/merchant-intake/internal/storage"
)

// NewBackendClient returns nil and no error when BACKEND_URL is unset.
func NewBackendClient(cfg *common.Config, logger *slog.Logger) (*backend.Client, error) {
	if cfg.Backend.URL == "" {
		logger.Warn("backend.disabled", "reason", "BACKEND_URL not set")
		return nil, nil
	}
	r := cfg.Resilience
	exec := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    r.RetryMaxAttempts,
		RetryInitialBackoff: r.RetryInitialBackoff,
		RetryMaxBackoff:     r.RetryMaxBackoff,
		RetryAfterCap:       r.RetryAfterCap,
		BreakerEnabled:      r.BreakerEnabled,
		BreakerMinRequests:  r.BreakerMinRequests,
		BreakerFailureRatio: r.BreakerFailureRatio,
		BreakerOpenTimeout:  r.BreakerOpenTimeout,
	}, logger)
	return backend.NewClient(backend.Options{
		URL:           cfg.Backend.URL,
		AuthToken:     cfg.Backend.AuthToken,
		Timeout:       cfg.Backend.Timeout,
		RatePerSecond: cfg.Backend.RatePerSecond,
		Burst:         cfg.Backend.Burst,
		Executor:      exec,
	}, logger)
}

// NewPatternLibrary returns the built-in library plus any jurisdictions
// listed in cfg.Patterns.JurisdictionsFile.
func NewPatternLibrary(cfg *common.Config, logger *slog.Logger) (*patterns.Library, error) {
	lib := patterns.Default()
	path := cfg.Patterns.JurisdictionsFile
	if path == "" {
		return lib, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open jurisdictions file: %w", err)
	}
	defer f.Close()
	n, err := lib.Registry().LoadYAML(f)
	if err != nil {
		return nil, fmt.Errorf("load jurisdictions file: %w", err)
	}
	logger.Info("patterns.jurisdictions.loaded", "path", path, "count", n)
	return lib, nil
}

// NewAnalyzer wires both engines. A nil client leaves the remote engine
// unconfigured; it then degrades on every run.
func NewAnalyzer(cfg *common.Config, client *backend.Client, recorder pipeline.Recorder, logger *slog.Logger) (*pipeline.Analyzer, error) {
	lib, err := NewPatternLibrary(cfg, logger)
	if err != nil {
		return nil, err
	}
	o := cfg.OCR
	extractor := ocr.NewExtractor(ocr.Config{
		Tesseract:     o.Tesseract,
		Pdftotext:     o.Pdftotext,
		Pdftoppm:      o.Pdftoppm,
		Lang:          o.Lang,
		DPI:           o.DPI,
		MaxPages:      o.MaxPages,
		TessdataDir:   o.TessdataDir,
		PDFMode:       o.PDFMode,
		CaptureWords:  o.CaptureWords,
		HeicConverter: o.HeicConverter,
	}, nil, logger)
	local := extract.NewLocalEngine(extractor, lib, extract.LocalOptions{EnablePDF: o.EnablePDF}, logger)

	var analyzer extract.DocumentAnalyzer
	if client != nil {
		analyzer = client
	}
	remote := extract.NewRemoteEngine(analyzer, logger)
	return pipeline.NewAnalyzer(remote, local, recorder, logger), nil
}

// App is the running service graph.
type App struct {
	Config   *common.Config
	Metrics  *metrics.Metrics
	Backend  *backend.Client
	Analyzer *pipeline.Analyzer
	Store    *intake.Store
	Workflow *intake.Workflow
	DB       *repository.DB
	Runs     repository.RunRepository
	Archive  storage.DocumentStore
	Queue    *async.WorkerQueue
	Proc     *pipeline.Processor

	logger *slog.Logger
}

// New opens every configured dependency. Close releases them.
func New(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*App, error) {
	a := &App{Config: cfg, Metrics: metrics.New(), logger: logger}

	client, err := NewBackendClient(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("backend client: %w", err)
	}
	a.Backend = client

	if a.Analyzer, err = NewAnalyzer(cfg, client, a.Metrics, logger); err != nil {
		return nil, err
	}

	if cfg.Database.Driver != "" {
		d := cfg.Database
		db, err := repository.Open(ctx, repository.Config{
			Driver:           d.Driver,
			DSN:              d.DSN,
			MaxConns:         d.MaxConns,
			MinConns:         d.MinConns,
			MaxConnLifetime:  d.MaxConnLifetime,
			MaxConnIdleTime:  d.MaxConnIdleTime,
			DialTimeout:      d.DialTimeout,
			StatementTimeout: d.StatementTimeout,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		a.DB = db
		if err := db.HealthCheck(ctx, 5*time.Second); err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("ping database: %w", err)
		}
		if err := repository.Migrate(ctx, db); err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("migrate: %w", err)
		}
		a.Runs = repository.NewRunRepository(db, logger)
	}

	archive, err := storage.New(ctx, storage.Config{
		Type:           cfg.Storage.Type,
		LocalPath:      cfg.Storage.LocalPath,
		GCSBucket:      cfg.Storage.GCSBucket,
		GCSProjectID:   cfg.Storage.GCSProjectID,
		GCSCredentials: cfg.Storage.GCSCredentials,
	})
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("open storage: %w", err)
	}
	a.Archive = archive

	a.Queue = async.NewWorkerQueue(logger,
		async.WithWorkers(cfg.Queue.Workers),
		async.WithQueueSize(cfg.Queue.Size),
		async.WithProcessTimeout(cfg.Queue.Timeout),
		async.WithObserver(a.Metrics),
	)

	// interface fields stay nil rather than holding typed nil pointers
	var wb intake.Backend
	var audit pipeline.AuditLogger
	if client != nil {
		wb, audit = client, client
	}
	a.Store = intake.NewStore(logger)
	a.Workflow = intake.NewWorkflow(a.Store, wb, logger)
	a.Proc = pipeline.NewProcessor(a.Store, a.Analyzer, pipeline.Options{
		Runs:    a.Runs,
		Queue:   a.Queue,
		Archive: a.Archive,
		Audit:   audit,
		Metrics: a.Metrics,
	}, logger)
	return a, nil
}

// ServerDeps returns the HTTP dependencies for this graph.
func (a *App) ServerDeps() server.Deps {
	d := server.Deps{
		Store:          a.Store,
		Workflow:       a.Workflow,
		Processor:      a.Proc,
		Runs:           a.Runs,
		Metrics:        a.Metrics,
		MaxUploadBytes: a.Config.Server.MaxUploadBytes,
		Logger:         a.logger,
	}
	if a.Backend != nil {
		d.Admin = a.Backend
	}
	if a.DB != nil {
		d.Health = a.DB
	}
	return d
}

// Close drains the queue, then releases storage and the database.
func (a *App) Close(ctx context.Context) {
	if a.Queue != nil {
		a.Queue.Shutdown(ctx)
	}
	var errs []error
	if a.Archive != nil {
		errs = append(errs, a.Archive.Close())
	}
	if a.DB != nil {
		a.DB.Close()
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Error("app.close.failed", "error", err)
	}
}
