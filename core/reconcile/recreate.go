package reconcile

import (
	"context"
	"sort"

	"go.uber.org/zap"
)

// archivePhase archives changeable records without a node and recreates the
// source entity of pinned ones. Records are visited parents first so a
// recreated parent exists before its children need it.
func (r *run) archivePhase(ctx context.Context) error {
	shielded := r.shieldedRecords()
	for _, id := range r.class.Archive {
		rec, ok := r.sc.Records[id]
		if !ok {
			continue
		}
		if !r.oracle.IsChangeable(id) {
			if err := r.recreate(ctx, rec); err != nil {
				return err
			}
			continue
		}
		if _, ok := shielded[id]; ok {
			r.sc.Hold(id)
			continue
		}
		delete(r.sc.Records, id)
		rec.Archived = true
		r.sc.Archived[id] = rec
		r.archived = append(r.archived, id)
	}
	return nil
}

// shieldedRecords returns the ancestors of held records. Archiving one of
// them would orphan a record that stays active.
func (r *run) shieldedRecords() map[string]struct{} {
	out := make(map[string]struct{})
	for id, rec := range r.sc.Records {
		if !r.sc.IsHeld(id) {
			continue
		}
		for ref := rec.ParentRef; ref != ""; {
			if _, done := out[ref]; done {
				break
			}
			out[ref] = struct{}{}
			p, ok := r.sc.Records[ref]
			if !ok {
				break
			}
			ref = p.ParentRef
		}
	}
	return out
}

// recreate restores the source entity of a pinned record under the node of
// its stored parent. A pending new node with the same name is adopted
// instead. When the parent cannot be resolved, or the name already belongs
// to another live node, the subtree is left out of this run.
func (r *run) recreate(ctx context.Context, rec *DestinationRecord) error {
	path := rec.Path(r.project)
	parent, ok := r.sc.ParentNodeFor(rec.ParentRef)
	if !ok {
		r.report.Error(MsgNonSynchronizable, path)
		r.sc.Hold(rec.ID)
		return nil
	}

	if nodeID, ok := r.pendingCreate(rec.Name, parent.ID); ok {
		r.sc.Link(nodeID, rec.ID)
		r.touched = append(r.touched, nodeID)
		r.log.Debug("Adopted pending entity for pinned record",
			zap.String("path", path),
			zap.String("entity", r.sc.Path(nodeID)),
		)
		return nil
	}
	if other, ok := r.liveNamed(rec.Name); ok {
		r.report.Error(MsgNonSynchronizable, path, r.sc.Path(other))
		r.sc.Hold(rec.ID)
		return nil
	}

	kind := rec.Data.EntityType
	if kind == "" || kind == KindProject || kind == KindTask {
		kind = KindFolder
	}
	id, err := r.source.CreateEntity(ctx, kind, rec.Name, parent.ID)
	if err != nil {
		r.sc.Hold(rec.ID)
		return r.rejected(err, path)
	}
	n := &SourceNode{ID: id, Name: rec.Name, Kind: kind, ParentID: parent.ID}
	r.sc.Attach(n)
	r.sc.Link(id, rec.ID)

	if err := r.restoreAttributes(ctx, n, rec, parent); err != nil {
		return err
	}
	for _, task := range rec.Data.Tasks {
		if _, err := r.source.CreateEntity(ctx, KindTask, task, id); err != nil {
			if err := r.rejected(err, path+HierarchySeparator+task); err != nil {
				return err
			}
			continue
		}
		n.TaskNames = append(n.TaskNames, task)
	}

	r.report.Info(MsgEntityRecreated, path)
	r.plan.ToRecreateInSource = append(r.plan.ToRecreateInSource, rec.ID)
	r.summary.Recreated++
	r.touched = append(r.touched, id)
	return nil
}

// restoreAttributes writes the record's attribute values onto a recreated
// node. Hierarchical values equal to the parent's are left to inheritance.
func (r *run) restoreAttributes(ctx context.Context, n *SourceNode, rec *DestinationRecord, parent *SourceNode) error {
	keys := make([]string, 0, len(rec.Data.Extra))
	for k := range rec.Data.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	inherited := r.sc.Resolved[parent.ID]
	for _, key := range keys {
		def, ok := r.attrs.Definition(key)
		if !ok || !def.Applies(n.Kind) {
			continue
		}
		v := rec.Data.Extra[key]
		if v == nil {
			continue
		}
		if def.IsHierarchical {
			if valuesEqual(v, inherited[key]) {
				continue
			}
			if n.HierAttributes == nil {
				n.HierAttributes = make(map[string]Value)
			}
			n.HierAttributes[key] = v
		} else {
			if n.Attributes == nil {
				n.Attributes = make(map[string]Value)
			}
			n.Attributes[key] = v
		}
		if err := r.source.SetAttribute(ctx, n.ID, key, v); err != nil {
			if err := r.rejected(err, r.sc.Path(n.ID)); err != nil {
				return err
			}
		}
	}
	return nil
}

// pendingCreate finds an unmapped live node with the given name, preferring
// one under parentID.
func (r *run) pendingCreate(name, parentID string) (string, bool) {
	var fallback string
	for _, id := range r.class.Create {
		if id == r.sc.RootID {
			continue
		}
		n, ok := r.sc.Node(id)
		if !ok || n.Name != name {
			continue
		}
		if _, mapped := r.sc.SourceToDest[id]; mapped {
			continue
		}
		if n.ParentID == parentID {
			return id, true
		}
		if fallback == "" {
			fallback = id
		}
	}
	return fallback, fallback != ""
}

func (r *run) liveNamed(name string) (string, bool) {
	for _, id := range r.sc.Order() {
		if id != r.sc.RootID && r.sc.Nodes[id].Name == name {
			return id, true
		}
	}
	return "", false
}

// revert puts a node back to the name and parent of its pinned record.
func (r *run) revert(ctx context.Context, n *SourceNode, rec *DestinationRecord, nameChanged, parentChanged bool) error {
	path := r.sc.Path(n.ID)
	if parentChanged {
		target, ok := r.sc.ParentNodeFor(rec.ParentRef)
		if !ok || r.isWithin(target.ID, n.ID) {
			r.report.Error(MsgNonSynchronizable, path)
			r.sc.Prune(n.ID)
			return nil
		}
		if err := r.source.Reparent(ctx, n.ID, target.ID); err != nil {
			return r.rejected(err, path)
		}
		r.sc.Move(n.ID, target.ID)
	}
	if nameChanged {
		if err := r.source.Rename(ctx, n.ID, rec.Name); err != nil {
			return r.rejected(err, path)
		}
		n.Name = rec.Name
	}

	r.report.Info(MsgChangeRejected, path)
	r.summary.Reverted++
	r.e.names.Revalidate(r.sc, []string{n.ID}, r.report)
	return nil
}

// isWithin reports whether id is ancestorID or one of its descendants.
func (r *run) isWithin(id, ancestorID string) bool {
	for cur := id; cur != ""; {
		if cur == ancestorID {
			return true
		}
		n, ok := r.sc.Nodes[cur]
		if !ok {
			return false
		}
		cur = n.ParentID
	}
	return false
}
