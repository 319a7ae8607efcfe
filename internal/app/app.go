// Package app assembles the verification core from configuration. The HTTP
// server and the kycctl command both build on it.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"kycbuster/internal/decision"
	decisionmetrics "kycbuster/internal/decision/metrics"
	"kycbuster/internal/evidence/analysis"
	"kycbuster/internal/evidence/analysis/genai"
	evidencemetrics "kycbuster/internal/evidence/metrics"
	"kycbuster/internal/platform/config"
	"kycbuster/internal/platform/database"
	redisclient "kycbuster/internal/platform/redis"
	recordsmetrics "kycbuster/internal/records/metrics"
	"kycbuster/internal/records/mirror"
	"kycbuster/internal/records/models"
	recordsvc "kycbuster/internal/records/service"
	"kycbuster/internal/records/store"
	"kycbuster/internal/video"
	videometrics "kycbuster/internal/video/metrics"
	"kycbuster/internal/workflow"
	workflowmetrics "kycbuster/internal/workflow/metrics"
	id "kycbuster/pkg/domain"
	"kycbuster/pkg/platform/audit"
	"kycbuster/pkg/platform/audit/publisher"
	auditmemory "kycbuster/pkg/platform/audit/store/memory"
	"kycbuster/pkg/platform/audit/store/sqlstore"
	"kycbuster/pkg/platform/circuit"
)

const auditBufferSize = 1024

// RecordStore is the union of what the finalizer, the history service and
// the video pipeline need from the record store.
type RecordStore interface {
	InsertRecord(ctx context.Context, r *models.VerificationRecord) error
	HistoryForUser(ctx context.Context, userID id.UserID) ([]models.VerificationRecord, error)
	InsertVideoRecord(ctx context.Context, r *models.VideoAnalysisRecord) error
	VideoHistoryForUser(ctx context.Context, userID id.UserID) ([]models.VideoAnalysisRecord, error)
	AggregateStats(ctx context.Context, recentLimit int) (*models.Stats, error)
}

// App holds the wired services. Close releases everything New opened.
type App struct {
	Logger    *slog.Logger
	DB        *sql.DB
	Redis     *redisclient.Client
	Records   RecordStore
	Audit     *publisher.Publisher
	Gateway   *analysis.Service
	Decisions *decision.Service
	History   *recordsvc.Service
	Engine    *workflow.Engine
	Sessions  *workflow.Registry
	Video     *video.Service

	closers []func(context.Context) error
}

type metricSet struct {
	evidence *evidencemetrics.Metrics
	decision *decisionmetrics.Metrics
	records  *recordsmetrics.Metrics
	workflow *workflowmetrics.Metrics
	video    *videometrics.Metrics
}

var (
	metricsOnce sync.Once
	sharedSet   metricSet
)

// Prometheus collectors register globally, so they are built once per process.
func sharedMetrics() metricSet {
	metricsOnce.Do(func() {
		sharedSet = metricSet{
			evidence: evidencemetrics.New(),
			decision: decisionmetrics.New(),
			records:  recordsmetrics.New(),
			workflow: workflowmetrics.New(),
			video:    videometrics.New(),
		}
	})
	return sharedSet
}

// Option adjusts how New wires the core.
type Option func(*options)

type options struct {
	backend analysis.Backend
}

// WithBackend replaces the model API client. Used by tests and offline runs.
func WithBackend(b analysis.Backend) Option {
	return func(o *options) { o.backend = b }
}

// New opens the configured stores and wires every service. Without a
// database URL records and audit events stay in memory. Redis and the
// record mirror are only connected when configured.
func New(ctx context.Context, cfg config.Server, logger *slog.Logger, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	a := &App{Logger: logger}
	m := sharedMetrics()

	var auditStore audit.Store
	if cfg.Database.URL != "" {
		db, err := database.Open(ctx, cfg.Database.Driver, cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		a.addCloser(func(context.Context) error { return db.Close() })
		if err := database.Migrate(ctx, db); err != nil {
			_ = a.Close(ctx)
			return nil, err
		}
		a.DB = db
		a.Records = store.NewSQL(db)
		auditStore = sqlstore.New(db)
	} else {
		logger.Warn("DATABASE_URL not set, records are kept in memory")
		a.Records = store.NewInMemory()
		auditStore = auditmemory.NewInMemoryStore()
	}

	a.Audit = publisher.NewPublisher(auditStore,
		publisher.WithAsyncBuffer(auditBufferSize),
		publisher.WithLogger(logger),
	)
	a.addCloser(func(context.Context) error { return a.Audit.Close() })

	rdb, err := redisclient.New(ctx, cfg.Redis)
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	if rdb != nil {
		a.Redis = rdb
		a.addCloser(func(context.Context) error { return rdb.Close() })
	}

	var sink mirror.Publisher = mirror.Noop{}
	if len(cfg.Mirror.Brokers) > 0 {
		k, err := mirror.NewKafka(ctx, mirror.Config{Brokers: cfg.Mirror.Brokers, Topic: cfg.Mirror.Topic},
			mirror.WithLogger(logger),
			mirror.WithMetrics(m.records),
		)
		if err != nil {
			_ = a.Close(ctx)
			return nil, fmt.Errorf("connect record mirror: %w", err)
		}
		a.addCloser(k.Close)
		sink = k
	}

	backend := o.backend
	if backend == nil {
		backend = genai.New(genai.Config{
			APIKey:     cfg.Analysis.APIKey,
			BaseURL:    cfg.Analysis.BaseURL,
			Model:      cfg.Analysis.Model,
			VideoModel: cfg.Analysis.VideoModel,
		}, &http.Client{})
		if cfg.Analysis.APIKey == "" {
			logger.Warn("ANALYSIS_API_KEY not set, every analysis call will fail as unconfigured")
		}
	}
	a.Gateway = analysis.New(backend,
		analysis.WithTimeout(cfg.Analysis.Timeout),
		analysis.WithBreaker(circuit.New("analysis")),
		analysis.WithMetrics(m.evidence),
		analysis.WithLogger(logger),
	)

	a.Decisions = decision.New(a.Gateway, a.Records,
		decision.WithLogger(logger),
		decision.WithMetrics(m.decision),
		decision.WithAuditPublisher(a.Audit),
		decision.WithMirror(sink),
	)
	a.History = recordsvc.New(a.Records,
		recordsvc.WithLogger(logger),
		recordsvc.WithAuditPublisher(a.Audit),
		recordsvc.WithRecentLimit(cfg.AdminRecent),
	)
	a.Engine = workflow.NewEngine(a.Gateway, a.Decisions,
		workflow.WithAuditPublisher(a.Audit),
		workflow.WithLogger(logger),
		workflow.WithMetrics(m.workflow),
	)
	a.Sessions = workflow.NewRegistry(a.Engine,
		workflow.WithIdleTTL(cfg.SessionIdleTTL),
		workflow.WithRegistryLogger(logger),
		workflow.WithRegistryMetrics(m.workflow),
	)
	a.Video = video.New(a.Gateway, a.Records,
		video.WithLogger(logger),
		video.WithMetrics(m.video),
		video.WithAuditPublisher(a.Audit),
		video.WithMaxBytes(cfg.VideoMaxBytes),
	)
	return a, nil
}

func (a *App) addCloser(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

// Close releases resources in reverse order of acquisition so the audit
// buffer drains before the database goes away.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
