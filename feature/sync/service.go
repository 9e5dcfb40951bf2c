package sync

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"

	"asset-sync/core/metrics"
	"asset-sync/core/reconcile"
	"asset-sync/core/storage"

	"go.uber.org/zap"
)

const latestReport = "latest.json"

// ErrNoReport is returned when a project has no archived report.
var ErrNoReport = errors.New("no report archived")

// Synchronizer runs synchronizations. *reconcile.Engine implements it.
type Synchronizer interface {
	SynchronizeWithPlan(ctx context.Context, project string, dryRun bool) (*reconcile.Plan, *reconcile.Report)
}

// RecordStore exposes destination records to the API. *assetstore.Store implements it.
type RecordStore interface {
	FindByProject(ctx context.Context, project string) ([]reconcile.DestinationRecord, error)
	FindArchived(ctx context.Context, project string) ([]reconcile.DestinationRecord, error)
	AddDependent(ctx context.Context, project, documentID, kind, name string) error
}

// Options configures the report archive.
type Options struct {
	// Bucket receives archived reports. Reports are not archived without a storage client.
	Bucket string
	// Prefix is the key prefix of archived reports.
	Prefix string
	// Retention is the number of timestamped reports kept per project. Zero keeps all.
	Retention int
}

// Service runs synchronizations and archives their reports.
type Service struct {
	engine Synchronizer
	store  RecordStore
	client storage.Client
	opts   Options
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a new sync service. client may be nil to disable archiving.
func NewService(engine Synchronizer, store RecordStore, client storage.Client, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Prefix == "" {
		opts.Prefix = "reports"
	}
	return &Service{
		engine: engine,
		store:  store,
		client: client,
		opts:   opts,
		logger: logger,
		now:    time.Now,
	}
}

// Run synchronizes a project, records metrics and archives the report.
// Archive failures are logged and never fail the run. The plan is nil when
// the run could not start.
func (s *Service) Run(ctx context.Context, project string, dryRun bool) (*reconcile.Plan, *reconcile.Report) {
	start := s.now()
	plan, report := s.engine.SynchronizeWithPlan(ctx, project, dryRun)
	metrics.ObserveRun(report, s.now().Sub(start))

	if s.client != nil {
		if err := s.archive(ctx, report, start); err != nil {
			metrics.ArchiveFailed()
			s.logger.Error("Failed to archive report", zap.String("project", project), zap.Error(err))
		}
	}
	return plan, report
}

func (s *Service) projectPrefix(project string) string {
	return path.Join(s.opts.Prefix, url.PathEscape(project)) + "/"
}

func (s *Service) archive(ctx context.Context, report *reconcile.Report, at time.Time) error {
	prefix := s.projectPrefix(report.Project)
	key := prefix + at.UTC().Format("20060102T150405.000000000Z") + ".json"

	if err := storage.PutJSON(ctx, s.client, s.opts.Bucket, key, report); err != nil {
		return err
	}
	if err := storage.PutJSON(ctx, s.client, s.opts.Bucket, prefix+latestReport, report); err != nil {
		return err
	}
	s.logger.Debug("Report archived", zap.String("key", key))
	return s.prune(ctx, report.Project)
}

// prune removes the oldest timestamped reports beyond the retention.
func (s *Service) prune(ctx context.Context, project string) error {
	if s.opts.Retention <= 0 {
		return nil
	}
	keys, err := s.History(ctx, project)
	if err != nil {
		return err
	}
	if len(keys) <= s.opts.Retention {
		return nil
	}
	return storage.RemoveKeys(ctx, s.client, s.opts.Bucket, keys[:len(keys)-s.opts.Retention])
}

// History returns the keys of the timestamped reports of a project, oldest first.
func (s *Service) History(ctx context.Context, project string) ([]string, error) {
	if s.client == nil {
		return nil, nil
	}
	keys, err := storage.ListKeys(ctx, s.client, s.opts.Bucket, s.projectPrefix(project))
	if err != nil {
		return nil, err
	}
	out := keys[:0]
	for _, k := range keys {
		if !strings.HasSuffix(k, "/"+latestReport) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

// LatestReport returns the last archived report of a project.
func (s *Service) LatestReport(ctx context.Context, project string) (*reconcile.Report, error) {
	if s.client == nil {
		return nil, ErrNoReport
	}
	var report reconcile.Report
	err := storage.GetJSON(ctx, s.client, s.opts.Bucket, s.projectPrefix(project)+latestReport, &report)
	if storage.IsNotFound(err) {
		return nil, fmt.Errorf("%w for %s", ErrNoReport, project)
	}
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// Records returns the active or archived records of a project.
func (s *Service) Records(ctx context.Context, project string, archived bool) ([]reconcile.DestinationRecord, error) {
	if archived {
		return s.store.FindArchived(ctx, project)
	}
	return s.store.FindByProject(ctx, project)
}

// AddDependent registers downstream data against a record.
func (s *Service) AddDependent(ctx context.Context, project, recordID, kind, name string) error {
	return s.store.AddDependent(ctx, project, recordID, kind, name)
}
