package assetstore

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"asset-sync/core/database"
	"asset-sync/core/reconcile"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DefaultChunkSize bounds the number of ids per IN query.
const DefaultChunkSize = 500

// ErrRecordNotFound is returned when an update targets a missing document.
var ErrRecordNotFound = errors.New("record not found")

// Store is a reconcile.DestinationStore backed by a SQL database through GORM.
type Store struct {
	db        *gorm.DB
	logger    *zap.Logger
	chunkSize int
}

// NewStore creates a store. A nil logger disables logging.
func NewStore(db *gorm.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger, chunkSize: DefaultChunkSize}
}

var _ reconcile.DestinationStore = (*Store)(nil)

// AutoMigrate creates or updates the store tables.
func (s *Store) AutoMigrate() error {
	if err := s.db.AutoMigrate(&Document{}, &Dependent{}); err != nil {
		return fmt.Errorf("failed to migrate asset store: %w", err)
	}
	return nil
}

// CheckSchema returns "table.column" for every column the store needs but
// the database lacks.
func (s *Store) CheckSchema() ([]string, error) {
	tables := make([]string, 0, len(requiredColumns))
	for table := range requiredColumns {
		tables = append(tables, table)
	}
	sort.Strings(tables)

	var missing []string
	for _, table := range tables {
		cols, err := database.MissingColumns(s.db, table, requiredColumns[table])
		if err != nil {
			return nil, err
		}
		for _, c := range cols {
			missing = append(missing, table+"."+c)
		}
	}
	return missing, nil
}

// FindByProject returns the active documents of a project, project document included.
func (s *Store) FindByProject(ctx context.Context, project string) ([]reconcile.DestinationRecord, error) {
	return s.find(ctx, project, TypeProject, TypeAsset)
}

// FindArchived returns the archived documents of a project.
func (s *Store) FindArchived(ctx context.Context, project string) ([]reconcile.DestinationRecord, error) {
	return s.find(ctx, project, TypeArchivedAsset)
}

func (s *Store) find(ctx context.Context, project string, types ...string) ([]reconcile.DestinationRecord, error) {
	var docs []Document
	err := s.db.WithContext(ctx).
		Where("project = ? AND type IN ?", project, types).
		Order("id").
		Find(&docs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query documents of %s: %w", project, err)
	}
	out := make([]reconcile.DestinationRecord, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toRecord())
	}
	return out, nil
}

// Get returns one document of a project.
func (s *Store) Get(ctx context.Context, project, id string) (reconcile.DestinationRecord, bool, error) {
	var doc Document
	err := s.db.WithContext(ctx).Where("project = ? AND id = ?", project, id).Take(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return reconcile.DestinationRecord{}, false, nil
	}
	if err != nil {
		return reconcile.DestinationRecord{}, false, fmt.Errorf("failed to query document %s: %w", id, err)
	}
	return doc.toRecord(), true, nil
}

// BulkWrite applies all operations in one transaction. Any failure rolls
// back the whole batch.
func (s *Store) BulkWrite(ctx context.Context, project string, ops []reconcile.Op) error {
	if len(ops) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, op := range ops {
			if err := applyOp(tx, project, op); err != nil {
				return fmt.Errorf("%s %s: %w", op.Type, op.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Bulk write failed", zap.String("project", project), zap.Int("ops", len(ops)), zap.Error(err))
		return reconcile.NewTransportError("bulk write", err)
	}
	s.logger.Debug("Bulk write applied", zap.String("project", project), zap.Int("ops", len(ops)))
	return nil
}

func applyOp(tx *gorm.DB, project string, op reconcile.Op) error {
	switch op.Type {
	case reconcile.OpInsert:
		if op.Record == nil {
			return errors.New("insert without record")
		}
		doc := fromRecord(project, op.Record)
		return tx.Create(&doc).Error

	case reconcile.OpUnarchive:
		if op.Record == nil {
			return errors.New("unarchive without record")
		}
		rec := op.Record.Clone()
		rec.Archived = false
		doc := fromRecord(project, rec)
		return tx.Save(&doc).Error

	case reconcile.OpUpdate:
		var doc Document
		err := tx.Where("project = ? AND id = ?", project, op.ID).Take(&doc).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRecordNotFound
		}
		if err != nil {
			return err
		}
		rec := doc.toRecord()
		if err := reconcile.ApplyPatch(&rec, op.Patch); err != nil {
			return err
		}
		updated := fromRecord(project, &rec)
		return tx.Save(&updated).Error

	case reconcile.OpArchive:
		res := tx.Model(&Document{}).
			Where("project = ? AND id = ? AND type = ?", project, op.ID, TypeAsset).
			Update("type", TypeArchivedAsset)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrRecordNotFound
		}
		return nil
	}
	return fmt.Errorf("unsupported operation type %q", op.Type)
}

// FindDependents returns the ids with at least one dependent. Ids are
// queried in chunks.
func (s *Store) FindDependents(ctx context.Context, project string, ids []string) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	for start := 0; start < len(ids); start += s.chunkSize {
		end := min(start+s.chunkSize, len(ids))
		var found []string
		err := s.db.WithContext(ctx).
			Model(&Dependent{}).
			Where("project = ? AND document_id IN ?", project, ids[start:end]).
			Distinct().
			Pluck("document_id", &found).Error
		if err != nil {
			return nil, reconcile.NewTransportError("find dependents", err)
		}
		for _, id := range found {
			out[id] = struct{}{}
		}
	}
	return out, nil
}

// AddDependent registers downstream data published against a document.
func (s *Store) AddDependent(ctx context.Context, project, documentID, kind, name string) error {
	rec, ok, err := s.Get(ctx, project, documentID)
	if err != nil {
		return err
	}
	if !ok || rec.Kind != reconcile.RecordAsset {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, documentID)
	}
	dep := Dependent{Project: project, DocumentID: documentID, Kind: kind, Name: name}
	if err := s.db.WithContext(ctx).Create(&dep).Error; err != nil {
		return fmt.Errorf("failed to add dependent to %s: %w", documentID, err)
	}
	return nil
}
