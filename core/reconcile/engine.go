package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"asset-sync/core/reconcile/schema"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DocumentValidator validates a destination document before it is written.
type DocumentValidator interface {
	ValidateDocument(kind string, doc map[string]any) error
}

// Options configures an Engine.
type Options struct {
	// CrossRefKey is the source attribute holding the destination id.
	CrossRefKey string

	// IgnoreSyncKey is the source attribute excluding a subtree from sync.
	IgnoreSyncKey string

	// FPSKeys lists attribute keys normalized as frame rates.
	FPSKeys []string

	// NamePatterns overrides the schema name pattern per kind (project, asset, task).
	NamePatterns map[string]string

	// DryRun computes the plan without writing to either side.
	DryRun bool

	// LockTimeout bounds the wait for a running sync of the same project.
	// Zero waits until the context is done.
	LockTimeout time.Duration

	// Validator checks documents before the bulk write. Defaults to the embedded schemas.
	Validator DocumentValidator
}

// Engine reconciles one project at a time between a source tree and a
// destination store. It is safe for concurrent use.
type Engine struct {
	source    SourceTree
	store     DestinationStore
	logger    *zap.Logger
	opts      Options
	names     *NameValidator
	identity  *IdentityResolver
	validator DocumentValidator
	locks     *projectLocks
	newID     func() string
}

// NewEngine creates an engine. A nil logger disables logging.
func NewEngine(source SourceTree, store DestinationStore, logger *zap.Logger, opts Options) (*Engine, error) {
	if source == nil || store == nil {
		return nil, errors.New("source tree and destination store are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.CrossRefKey == "" {
		opts.CrossRefKey = DefaultCrossRefKey
	}
	if opts.IgnoreSyncKey == "" {
		opts.IgnoreSyncKey = DefaultIgnoreSyncKey
	}
	if opts.FPSKeys == nil {
		opts.FPSKeys = []string{"fps"}
	}

	patterns, err := schema.NamePatterns()
	if err != nil {
		return nil, err
	}
	for kind, p := range opts.NamePatterns {
		patterns[kind] = p
	}
	names, err := NewNameValidator(patterns)
	if err != nil {
		return nil, err
	}

	validator := opts.Validator
	if validator == nil {
		v, err := schema.Default()
		if err != nil {
			return nil, err
		}
		validator = v
	}

	return &Engine{
		source:    source,
		store:     store,
		logger:    logger,
		opts:      opts,
		names:     names,
		identity:  NewIdentityResolver(opts.CrossRefKey),
		validator: validator,
		locks:     newProjectLocks(),
		newID:     uuid.NewString,
	}, nil
}

// Synchronize runs one synchronization of the project using the configured dry-run mode.
func (e *Engine) Synchronize(ctx context.Context, project string) *Report {
	_, report := e.SynchronizeWithPlan(ctx, project, e.opts.DryRun)
	return report
}

// SynchronizeWithPlan runs one synchronization and also returns the computed plan.
// The report is never nil. The plan is nil when the run could not start.
func (e *Engine) SynchronizeWithPlan(ctx context.Context, project string, dryRun bool) (*Plan, *Report) {
	start := time.Now()
	log := e.logger.With(zap.String("project", project), zap.Bool("dry_run", dryRun))
	agg := NewReportAggregator()

	release, err := e.locks.acquire(ctx, project, e.opts.LockTimeout)
	if err != nil {
		log.Warn("Synchronization did not start", zap.Error(err))
		report := agg.Report(project, false, err.Error())
		report.DryRun = dryRun
		return nil, report
	}
	defer release()

	r := newRun(e, project, dryRun, agg, log)
	err = r.execute(ctx)

	var report *Report
	switch {
	case err == nil:
		report = agg.Report(project, true, "")
	case errors.Is(err, ErrProjectIgnored):
		report = agg.Report(project, false, MsgProjectIgnored)
	default:
		if IsTransportError(err) {
			agg.Error(MsgTransportFailure, project)
		}
		report = agg.Report(project, false, fmt.Sprintf("synchronization failed: %v", err))
	}
	report.DryRun = dryRun
	report.Summary = r.summary

	fields := append(report.Fields(), zap.Duration("duration", time.Since(start)))
	if report.Success {
		e.logger.Info("Synchronization finished", fields...)
	} else {
		e.logger.Error("Synchronization failed", append(fields, zap.Error(err))...)
	}
	return r.plan, report
}
