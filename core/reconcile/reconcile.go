package reconcile

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"asset-sync/core/utils"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// run is the state of one Synchronize call. Nodes move through
// Validated, Identified, Archiving/Creating/Updating and Committed in that order.
type run struct {
	e       *Engine
	project string
	dryRun  bool
	source  *recordingSource
	log     *zap.Logger
	report  *ReportAggregator
	plan    *Plan
	summary Summary

	sc     *SyncContext
	attrs  *AttributeResolver
	oracle *ChangeabilityOracle
	class  Classification

	original         map[string]*DestinationRecord
	originalArchived map[string]*DestinationRecord
	stored           map[string]map[string]any
	inserted         map[string]struct{}
	unarchived       map[string]struct{}
	archived         []string
	touched          []string
}

func newRun(e *Engine, project string, dryRun bool, report *ReportAggregator, log *zap.Logger) *run {
	return &run{
		e:                e,
		project:          project,
		dryRun:           dryRun,
		source:           newRecordingSource(e.source, dryRun),
		log:              log,
		report:           report,
		plan:             newPlan(project),
		original:         make(map[string]*DestinationRecord),
		originalArchived: make(map[string]*DestinationRecord),
		stored:           make(map[string]map[string]any),
		inserted:         make(map[string]struct{}),
		unarchived:       make(map[string]struct{}),
	}
}

func (r *run) execute(ctx context.Context) error {
	defer func() {
		r.plan.SourceWrites = r.source.writes
		r.summary.SourceWrites = len(r.source.writes)
		if r.sc != nil {
			r.summary.Pruned = r.sc.PrunedCount()
		}
	}()

	if err := r.load(ctx); err != nil {
		return err
	}
	sc := r.sc
	if r.ignored(sc.Root()) {
		r.report.Warn(MsgProjectIgnored, sc.Root().Name)
		return ErrProjectIgnored
	}

	// Validated
	r.pruneIgnored()
	r.e.names.Validate(sc, r.report)
	r.attrs.Resolve(sc, r.report)

	// Identified
	r.e.identity.Resolve(sc, r.report)
	r.class = Classify(sc)
	if err := r.loadChangeability(ctx); err != nil {
		return err
	}
	r.log.Debug("Classified project",
		zap.Int("create", len(r.class.Create)),
		zap.Int("update", len(r.class.Update)),
		zap.Int("archive", len(r.class.Archive)),
	)

	// Archiving may recreate source entities, so names are re-checked and
	// attributes resolved again before records are created.
	if err := r.archivePhase(ctx); err != nil {
		return r.abort(ctx, err)
	}
	r.e.names.Revalidate(sc, r.touched, r.report)
	r.attrs.Resolve(sc, r.report)
	r.createPhase()
	if err := r.updatePhase(ctx); err != nil {
		return r.abort(ctx, err)
	}
	r.discardPruned()
	r.propagate()

	// Committed
	r.buildOps()
	r.plan.After = hierarchyPaths(sc.Records)
	if err := r.source.Commit(ctx); err != nil {
		if IsTransportError(err) {
			return err
		}
		r.report.Warn(MsgSourceWriteRejected, r.project)
	}
	if r.dryRun || len(r.plan.Ops) == 0 {
		return nil
	}
	if err := r.e.store.BulkWrite(ctx, r.project, r.plan.Ops); err != nil {
		return NewTransportError("bulk write", err)
	}
	return nil
}

// abort commits the source writes applied before err stopped the run. They
// are not rolled back, so they must not stay pending either. A commit
// failure is logged and err is returned unchanged.
func (r *run) abort(ctx context.Context, err error) error {
	if len(r.source.writes) == 0 {
		return err
	}
	if cerr := r.source.Commit(ctx); cerr != nil {
		r.log.Error("Failed to commit source writes of aborted run",
			zap.Int("writes", len(r.source.writes)),
			zap.Error(cerr),
		)
	}
	return err
}

// load runs the four initial queries concurrently and builds the run context.
func (r *run) load(ctx context.Context) error {
	var (
		entities []SourceNode
		defs     []AttributeDefinition
		active   []DestinationRecord
		archived []DestinationRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		entities, err = r.source.ListEntities(gctx, r.project)
		return NewTransportError("list entities", err)
	})
	g.Go(func() error {
		var err error
		defs, err = r.source.GetCustomAttributeDefinitions(gctx)
		return NewTransportError("get attribute definitions", err)
	})
	g.Go(func() error {
		var err error
		active, err = r.e.store.FindByProject(gctx, r.project)
		return NewTransportError("find records", err)
	})
	g.Go(func() error {
		var err error
		archived, err = r.e.store.FindArchived(gctx, r.project)
		return NewTransportError("find archived records", err)
	})
	if err := g.Wait(); err != nil {
		return err
	}

	sc, err := NewSyncContext(r.project, entities, defs, active, archived)
	if err != nil {
		return err
	}
	r.sc = sc
	for id, rec := range sc.Records {
		r.original[id] = rec.Clone()
		r.stored[id] = rec.Document()
	}
	for id, rec := range sc.Archived {
		r.originalArchived[id] = rec.Clone()
	}
	r.plan.Before = hierarchyPaths(sc.Records)
	r.attrs = NewAttributeResolver(defs, r.e.opts.FPSKeys, r.e.opts.CrossRefKey, r.e.opts.IgnoreSyncKey)

	r.log.Debug("Loaded project state",
		zap.Int("entities", len(entities)),
		zap.Int("definitions", len(defs)),
		zap.Int("records", len(active)),
		zap.Int("archived", len(archived)),
	)
	return nil
}

func (r *run) ignored(n *SourceNode) bool {
	key := r.e.opts.IgnoreSyncKey
	return utils.ToBool(n.Attributes[key]) || utils.ToBool(n.HierAttributes[key])
}

func (r *run) pruneIgnored() {
	for _, id := range r.sc.Order() {
		n, ok := r.sc.Node(id)
		if !ok || id == r.sc.RootID || !r.ignored(n) {
			continue
		}
		r.report.Info(MsgSyncIgnored, r.sc.Path(id))
		r.sc.Prune(id)
	}
}

func (r *run) loadChangeability(ctx context.Context) error {
	ids := make([]string, 0, len(r.sc.Records)+len(r.sc.Archived))
	for id := range r.sc.Records {
		ids = append(ids, id)
	}
	for id := range r.sc.Archived {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	anchors := map[string]struct{}{}
	if len(ids) > 0 {
		deps, err := r.e.store.FindDependents(ctx, r.project, ids)
		if err != nil {
			return NewTransportError("find dependents", err)
		}
		anchors = deps
	}
	r.oracle = NewChangeabilityOracle(r.sc, anchors)
	return nil
}

// createPhase gives every unmapped node a record, unarchiving a tombstone when one matches.
func (r *run) createPhase() {
	for _, id := range r.class.Create {
		n, ok := r.sc.Node(id)
		if !ok {
			continue
		}
		if _, mapped := r.sc.SourceToDest[id]; mapped {
			continue
		}
		if id == r.sc.RootID {
			rec := &DestinationRecord{ID: r.e.newID(), Name: r.project, Kind: RecordProject}
			r.sc.Records[rec.ID] = rec
			r.sc.ProjectRecordID = rec.ID
			r.sc.Link(id, rec.ID)
			r.inserted[rec.ID] = struct{}{}
			continue
		}
		parentRef, ok := r.sc.ParentRefFor(n.ParentID)
		if !ok {
			r.log.Warn("Skipping entity whose parent has no record", zap.String("path", r.sc.Path(id)))
			continue
		}
		if tomb, ok := r.findTombstone(n, parentRef); ok {
			r.unarchive(tomb, n, parentRef)
			continue
		}
		rec := &DestinationRecord{ID: r.e.newID(), Name: n.Name, ParentRef: parentRef, Kind: RecordAsset}
		r.sc.Records[rec.ID] = rec
		r.sc.Link(id, rec.ID)
		r.inserted[rec.ID] = struct{}{}
	}
}

// findTombstone picks the archived record a new node revives, in order:
// the record the node's cross reference points to, a tombstone with the same
// name and parents, then a changeable tombstone with the same name under the
// same parent, then any changeable tombstone with the same name. A pinned
// tombstone referenced by the node that no longer matches its name and
// parents stops the search.
func (r *run) findTombstone(n *SourceNode, parentRef string) (*DestinationRecord, bool) {
	parents := r.sc.ParentNames(n.ID)
	if t, ok := r.sc.Archived[r.e.identity.StoredID(n)]; ok {
		if r.oracle.IsChangeable(t.ID) || (t.Name == n.Name && equalStrings(t.Data.Parents, parents)) {
			return t, true
		}
		return nil, false
	}

	tombs := make([]*DestinationRecord, 0, len(r.sc.Archived))
	for _, t := range r.sc.Archived {
		if t.Name == n.Name {
			tombs = append(tombs, t)
		}
	}
	sort.Slice(tombs, func(i, j int) bool { return tombs[i].ID < tombs[j].ID })

	for _, t := range tombs {
		if equalStrings(t.Data.Parents, parents) {
			return t, true
		}
	}
	for _, t := range tombs {
		if t.ParentRef == parentRef && r.oracle.IsChangeable(t.ID) {
			return t, true
		}
	}
	for _, t := range tombs {
		if r.oracle.IsChangeable(t.ID) {
			return t, true
		}
	}
	return nil, false
}

func (r *run) unarchive(t *DestinationRecord, n *SourceNode, parentRef string) {
	delete(r.sc.Archived, t.ID)
	t.Archived = false
	t.Name = n.Name
	t.ParentRef = parentRef
	r.sc.Records[t.ID] = t
	r.sc.Link(n.ID, t.ID)

	// A record archived earlier in this run is still active in the store.
	for i, id := range r.archived {
		if id == t.ID {
			r.archived = append(r.archived[:i], r.archived[i+1:]...)
			return
		}
	}
	r.unarchived[t.ID] = struct{}{}
}

// updatePhase aligns every mapped record with its node.
func (r *run) updatePhase(ctx context.Context) error {
	for _, id := range r.sc.Order() {
		n, ok := r.sc.Node(id)
		if !ok {
			continue
		}
		rec, ok := r.sc.RecordOf(id)
		if !ok {
			continue
		}
		if rec.Kind == RecordAsset {
			if err := r.reconcileStructure(ctx, n, rec); err != nil {
				return err
			}
			if _, live := r.sc.Node(id); !live {
				continue
			}
		}
		r.applyData(n, rec)
		if r.e.identity.StoredID(n) != rec.ID {
			if err := r.setAttribute(ctx, n, r.e.opts.CrossRefKey, rec.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

// reconcileStructure applies a rename or move to a changeable record and
// reverts the source otherwise.
func (r *run) reconcileStructure(ctx context.Context, n *SourceNode, rec *DestinationRecord) error {
	parentRef, ok := r.sc.ParentRefFor(n.ParentID)
	if !ok {
		return nil
	}
	nameChanged := rec.Name != n.Name
	parentChanged := rec.ParentRef != parentRef
	if !nameChanged && !parentChanged {
		return nil
	}
	if _, isNew := r.inserted[rec.ID]; isNew || r.oracle.IsChangeable(rec.ID) {
		rec.Name = n.Name
		rec.ParentRef = parentRef
		return nil
	}
	return r.revert(ctx, n, rec, nameChanged, parentChanged)
}

func (r *run) applyData(n *SourceNode, rec *DestinationRecord) {
	rec.Data.CrossRefID = n.ID
	if rec.Kind == RecordAsset {
		rec.Data.EntityType = n.Kind
		rec.Data.Tasks = cloneStrings(n.TaskNames)
	} else {
		rec.Data.EntityType = KindProject
	}
	extra := cloneValues(rec.Data.Extra)
	if extra == nil {
		extra = make(map[string]Value)
	}
	// Unset values are written as nil so a cleared attribute reaches the store.
	for k, v := range r.sc.Resolved[n.ID] {
		extra[k] = v
	}
	rec.Data.Extra = extra
}

func (r *run) setAttribute(ctx context.Context, n *SourceNode, key string, v Value) error {
	if err := r.source.SetAttribute(ctx, n.ID, key, v); err != nil {
		return r.rejected(err, r.sc.Path(n.ID))
	}
	if n.Attributes == nil {
		n.Attributes = make(map[string]Value)
	}
	n.Attributes[key] = v
	return nil
}

// rejected turns a non-transport source write failure into a warning.
func (r *run) rejected(err error, path string) error {
	if IsTransportError(err) {
		return err
	}
	r.log.Warn("Source write rejected", zap.String("path", path), zap.Error(err))
	r.report.Warn(MsgSourceWriteRejected, path)
	return nil
}

// discardPruned drops the effects of the run on records whose node was
// pruned after being mapped.
func (r *run) discardPruned() {
	for id, rec := range r.sc.Records {
		if _, mapped := r.sc.DestToSource[id]; mapped {
			continue
		}
		if _, ok := r.inserted[id]; ok {
			delete(r.sc.Records, id)
			delete(r.inserted, id)
			continue
		}
		if _, ok := r.unarchived[id]; ok {
			delete(r.sc.Records, id)
			delete(r.unarchived, id)
			restored := rec
			if orig, ok := r.originalArchived[id]; ok {
				restored = orig.Clone()
			}
			restored.Archived = true
			r.sc.Archived[id] = restored
			continue
		}
		if r.sc.IsHeld(id) {
			if orig, ok := r.original[id]; ok {
				r.sc.Records[id] = orig.Clone()
			}
		}
	}
}

// propagate recomputes parents and hierarchy of every active record top-down.
func (r *run) propagate() {
	for _, rec := range r.sc.Records {
		if rec.Kind != RecordAsset {
			continue
		}
		parents := r.sc.recordParents(rec)
		rec.Data.Parents = parents
		rec.Data.Hierarchy = strings.Join(parents, HierarchySeparator)
	}
	r.inheritHeld()
}

// inheritHeld refreshes hierarchical values of records without a live node.
// A value equal to the parent's stored value was inherited and follows the
// parent's new value; anything else is an override and stays.
func (r *run) inheritHeld() {
	keys := r.attrs.HierarchicalKeys()
	if len(keys) == 0 {
		return
	}
	ids := make([]string, 0, len(r.sc.Records))
	for id := range r.sc.Records {
		ids = append(ids, id)
	}
	for _, id := range r.sc.RecordOrder(ids) {
		rec := r.sc.Records[id]
		if _, mapped := r.sc.DestToSource[id]; mapped || rec.Kind != RecordAsset {
			continue
		}
		parentID := rec.ParentRef
		if parentID == "" {
			parentID = r.sc.ProjectRecordID
		}
		parent, ok := r.sc.Records[parentID]
		origSelf, okSelf := r.original[id]
		origParent, okParent := r.original[parentID]
		if !ok || !okSelf || !okParent {
			continue
		}
		for _, key := range keys {
			old := origSelf.Data.Extra[key]
			if old == nil || !valuesEqual(old, origParent.Data.Extra[key]) {
				continue
			}
			nv, ok := parent.Data.Extra[key]
			if !ok || valuesEqual(nv, old) {
				continue
			}
			extra := cloneValues(rec.Data.Extra)
			if extra == nil {
				extra = make(map[string]Value)
			}
			extra[key] = nv
			rec.Data.Extra = extra
		}
	}
}

// buildOps turns the in-memory records into the bulk write and fills the plan.
func (r *run) buildOps() {
	ids := make([]string, 0, len(r.sc.Records))
	for id := range r.sc.Records {
		ids = append(ids, id)
	}
	dropped := make(map[string]struct{})
	for _, id := range r.sc.RecordOrder(ids) {
		rec := r.sc.Records[id]
		_, isInsert := r.inserted[id]
		_, isUnarchive := r.unarchived[id]
		path := rec.Path(r.project)

		var op Op
		switch {
		case isInsert:
			op = Op{Type: OpInsert, ID: id, Record: rec.Clone()}
		case isUnarchive:
			op = Op{Type: OpUnarchive, ID: id, Record: rec.Clone()}
		default:
			patch := DiffDocuments(r.stored[id], rec.Document())
			if !r.oracle.IsChangeable(id) {
				delete(patch, "name")
				delete(patch, "parent")
			}
			if len(patch) == 0 {
				continue
			}
			op = Op{Type: OpUpdate, ID: id, Patch: patch}
		}

		if _, ok := dropped[rec.ParentRef]; ok && rec.ParentRef != "" {
			r.report.Error(MsgInvalidDocument, fmt.Sprintf("%s: parent record was not written", path))
			dropped[id] = struct{}{}
			continue
		}
		if err := r.e.validator.ValidateDocument(string(rec.Kind), rec.Document()); err != nil {
			r.report.Error(MsgInvalidDocument, fmt.Sprintf("%s: %v", path, err))
			if isInsert || isUnarchive {
				dropped[id] = struct{}{}
			}
			continue
		}

		r.plan.Ops = append(r.plan.Ops, op)
		switch op.Type {
		case OpInsert:
			r.plan.ToCreate = append(r.plan.ToCreate, r.sc.DestToSource[id])
			r.summary.Created++
		case OpUnarchive:
			r.plan.ToCreate = append(r.plan.ToCreate, r.sc.DestToSource[id])
			r.summary.Unarchived++
		case OpUpdate:
			r.plan.ToUpdate = append(r.plan.ToUpdate, id)
			r.plan.FieldPatches[id] = op.Patch
			r.summary.Updated++
		}
	}

	// Children are archived before their parents.
	for i := len(r.archived) - 1; i >= 0; i-- {
		r.plan.Ops = append(r.plan.Ops, Op{Type: OpArchive, ID: r.archived[i]})
	}
	r.plan.ToArchive = append(r.plan.ToArchive, r.archived...)
	r.summary.Archived = len(r.archived)
}

// hierarchyPaths lists "parents/name" of every asset record, sorted.
func hierarchyPaths(records map[string]*DestinationRecord) []string {
	paths := make([]string, 0, len(records))
	for _, rec := range records {
		if rec.Kind != RecordAsset {
			continue
		}
		parts := append(cloneStrings(rec.Data.Parents), rec.Name)
		paths = append(paths, strings.Join(parts, HierarchySeparator))
	}
	sort.Strings(paths)
	return paths
}
