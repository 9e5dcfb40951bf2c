package sourcetree

import (
	"context"
	"fmt"
	"sync"

	"asset-sync/core/reconcile"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Tree is an in-memory project-management tree serving one project. Writes
// apply immediately and Commit flushes them to the snapshot file, if any.
type Tree struct {
	mu      sync.Mutex
	project string
	defs    []reconcile.AttributeDefinition
	nodes   map[string]*reconcile.SourceNode
	order   []string
	rejects map[string]error
	pending int
	commits int
	path    string
	logger  *zap.Logger
}

var _ reconcile.SourceTree = (*Tree)(nil)

// New builds a tree from a snapshot. A nil logger disables logging.
func New(snapshot Snapshot, logger *zap.Logger) (*Tree, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tree{
		project: snapshot.Project,
		defs:    append([]reconcile.AttributeDefinition(nil), snapshot.Attributes...),
		nodes:   make(map[string]*reconcile.SourceNode, len(snapshot.Entities)),
		rejects: make(map[string]error),
		logger:  logger,
	}
	for _, n := range snapshot.Entities {
		if n.ID == "" {
			return nil, fmt.Errorf("entity %q has no id", n.Name)
		}
		if _, dup := t.nodes[n.ID]; dup {
			return nil, fmt.Errorf("duplicate entity id %q", n.ID)
		}
		t.add(copyNode(n))
	}
	return t, nil
}

// Open loads a snapshot file into a tree that saves itself back on Commit.
func Open(path string, logger *zap.Logger) (*Tree, error) {
	snap, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	t, err := New(*snap, logger)
	if err != nil {
		return nil, fmt.Errorf("invalid snapshot %s: %w", path, err)
	}
	t.path = path
	return t, nil
}

func (t *Tree) add(n *reconcile.SourceNode) {
	t.nodes[n.ID] = n
	t.order = append(t.order, n.ID)
}

// Reject makes every later write of the given action fail with err.
// A nil err clears the rejection. Actions are the reconcile.Write* constants.
func (t *Tree) Reject(action string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err == nil {
		delete(t.rejects, action)
		return
	}
	t.rejects[action] = err
}

// ListEntities returns every entity of the project in insertion order.
func (t *Tree) ListEntities(_ context.Context, projectName string) ([]reconcile.SourceNode, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if projectName != t.project {
		return nil, fmt.Errorf("project %q not found", projectName)
	}
	out := make([]reconcile.SourceNode, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, *copyNode(*t.nodes[id]))
	}
	return out, nil
}

// GetCustomAttributeDefinitions returns the declared attributes.
func (t *Tree) GetCustomAttributeDefinitions(_ context.Context) ([]reconcile.AttributeDefinition, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]reconcile.AttributeDefinition(nil), t.defs...), nil
}

// SetAttribute stores a flat custom attribute value.
func (t *Tree) SetAttribute(_ context.Context, nodeID, key string, value reconcile.Value) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, err := t.writable(reconcile.WriteSetAttribute, nodeID)
	if err != nil {
		return err
	}
	if n.Attributes == nil {
		n.Attributes = make(map[string]reconcile.Value)
	}
	n.Attributes[key] = value
	t.pending++
	return nil
}

// CreateEntity adds a new entity under parentID.
func (t *Tree) CreateEntity(_ context.Context, kind, name, parentID string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.rejects[reconcile.WriteCreate]; err != nil {
		return "", err
	}
	if _, ok := t.nodes[parentID]; !ok {
		return "", fmt.Errorf("parent entity %s not found", parentID)
	}
	id := uuid.NewString()
	t.add(&reconcile.SourceNode{ID: id, Name: name, Kind: kind, ParentID: parentID})
	t.pending++
	t.logger.Debug("Entity created", zap.String("id", id), zap.String("kind", kind), zap.String("name", name))
	return id, nil
}

// Rename renames an entity.
func (t *Tree) Rename(_ context.Context, id, name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, err := t.writable(reconcile.WriteRename, id)
	if err != nil {
		return err
	}
	n.Name = name
	t.pending++
	return nil
}

// Reparent moves an entity under a new parent.
func (t *Tree) Reparent(_ context.Context, id, newParentID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, err := t.writable(reconcile.WriteReparent, id)
	if err != nil {
		return err
	}
	if _, ok := t.nodes[newParentID]; !ok {
		return fmt.Errorf("parent entity %s not found", newParentID)
	}
	n.ParentID = newParentID
	t.pending++
	return nil
}

// Commit flushes pending writes. Trees opened from a file save the snapshot.
func (t *Tree) Commit(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending == 0 {
		return nil
	}
	if t.path != "" {
		if err := SaveFile(t.path, t.snapshot()); err != nil {
			return err
		}
	}
	t.logger.Debug("Source writes committed", zap.String("project", t.project), zap.Int("writes", t.pending))
	t.commits++
	t.pending = 0
	return nil
}

// Dirty reports whether any write was committed since the tree was built.
func (t *Tree) Dirty() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.commits > 0
}

// Snapshot returns the current state of the tree.
func (t *Tree) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshot()
}

func (t *Tree) snapshot() Snapshot {
	s := Snapshot{
		Project:    t.project,
		Attributes: append([]reconcile.AttributeDefinition(nil), t.defs...),
		Entities:   make([]reconcile.SourceNode, 0, len(t.order)),
	}
	for _, id := range t.order {
		s.Entities = append(s.Entities, *copyNode(*t.nodes[id]))
	}
	return s
}

func (t *Tree) writable(action, id string) (*reconcile.SourceNode, error) {
	if err := t.rejects[action]; err != nil {
		return nil, err
	}
	n, ok := t.nodes[id]
	if !ok {
		return nil, fmt.Errorf("entity %s not found", id)
	}
	return n, nil
}

func copyNode(n reconcile.SourceNode) *reconcile.SourceNode {
	c := n
	c.Children = nil
	c.TaskNames = append([]string(nil), n.TaskNames...)
	c.Attributes = copyValues(n.Attributes)
	c.HierAttributes = copyValues(n.HierAttributes)
	return &c
}

func copyValues(m map[string]reconcile.Value) map[string]reconcile.Value {
	if m == nil {
		return nil
	}
	out := make(map[string]reconcile.Value, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
