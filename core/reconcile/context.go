package reconcile

import (
	"fmt"
	"sort"
	"strings"
)

// SyncContext holds the in-memory state of one synchronization run.
// It is built once from the initial queries and passed by reference through
// every stage; nothing in it outlives the run.
type SyncContext struct {
	// Project is the project full name.
	Project string

	// RootID is the id of the project node.
	RootID string

	// Nodes indexes every source node by id, pruned nodes included.
	Nodes map[string]*SourceNode

	// Definitions are the declared custom attributes.
	Definitions []AttributeDefinition

	// Records indexes active destination records by id.
	Records map[string]*DestinationRecord

	// Archived indexes tombstones by id.
	Archived map[string]*DestinationRecord

	// ProjectRecordID is the id of the project record, empty when absent.
	ProjectRecordID string

	// SourceToDest and DestToSource hold the identity mapping.
	SourceToDest map[string]string
	DestToSource map[string]string

	// Resolved holds the attribute values synchronized into each node's record.
	Resolved map[string]map[string]Value

	pruned map[string]struct{}
	held   map[string]struct{}
}

// NewSyncContext builds the run state from the initial query results.
// Task entities are folded into their parent's TaskNames.
func NewSyncContext(project string, entities []SourceNode, defs []AttributeDefinition, active, archived []DestinationRecord) (*SyncContext, error) {
	if len(entities) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, project)
	}

	c := &SyncContext{
		Project:      project,
		Nodes:        make(map[string]*SourceNode, len(entities)),
		Definitions:  defs,
		Records:      make(map[string]*DestinationRecord, len(active)),
		Archived:     make(map[string]*DestinationRecord, len(archived)),
		SourceToDest: make(map[string]string),
		DestToSource: make(map[string]string),
		Resolved:     make(map[string]map[string]Value),
		pruned:       make(map[string]struct{}),
		held:         make(map[string]struct{}),
	}

	var tasks []SourceNode
	for i := range entities {
		e := entities[i]
		if e.ID == "" {
			return nil, fmt.Errorf("%w: entity %q has no id", ErrInvalidTree, e.Name)
		}
		if _, dup := c.Nodes[e.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate entity id %s", ErrInvalidTree, e.ID)
		}
		if e.Kind == KindTask {
			tasks = append(tasks, e)
			continue
		}
		n := e
		n.Children = nil
		n.TaskNames = cloneStrings(e.TaskNames)
		n.Attributes = cloneValues(e.Attributes)
		n.HierAttributes = cloneValues(e.HierAttributes)
		c.Nodes[n.ID] = &n
	}

	for _, t := range tasks {
		parent, ok := c.Nodes[t.ParentID]
		if !ok {
			return nil, fmt.Errorf("%w: task %q has no parent entity", ErrInvalidTree, t.Name)
		}
		parent.TaskNames = append(parent.TaskNames, t.Name)
	}

	for id, n := range c.Nodes {
		if n.ParentID == "" {
			if c.RootID != "" {
				return nil, fmt.Errorf("%w: more than one root", ErrInvalidTree)
			}
			c.RootID = id
			continue
		}
		parent, ok := c.Nodes[n.ParentID]
		if !ok {
			return nil, fmt.Errorf("%w: entity %q references missing parent %s", ErrInvalidTree, n.Name, n.ParentID)
		}
		parent.Children = append(parent.Children, id)
	}
	if c.RootID == "" {
		return nil, fmt.Errorf("%w: no root", ErrInvalidTree)
	}
	if c.Nodes[c.RootID].Kind != KindProject {
		return nil, fmt.Errorf("%w: root %q is not a project", ErrInvalidTree, c.Nodes[c.RootID].Name)
	}
	for _, n := range c.Nodes {
		c.sortChildren(n)
	}
	if visited := len(c.Order()); visited != len(c.Nodes) {
		return nil, fmt.Errorf("%w: %d entities unreachable from the project", ErrInvalidTree, len(c.Nodes)-visited)
	}

	for i := range active {
		r := active[i].Clone()
		r.Archived = false
		c.Records[r.ID] = r
		if r.Kind == RecordProject && (c.ProjectRecordID == "" || r.Name == project) {
			c.ProjectRecordID = r.ID
		}
	}
	for i := range archived {
		r := archived[i].Clone()
		r.Archived = true
		if r.Kind == RecordProject {
			continue
		}
		c.Archived[r.ID] = r
	}
	return c, nil
}

// Root returns the project node.
func (c *SyncContext) Root() *SourceNode {
	return c.Nodes[c.RootID]
}

// Node returns a node that has not been pruned.
func (c *SyncContext) Node(id string) (*SourceNode, bool) {
	n, ok := c.Nodes[id]
	if !ok || c.IsPruned(id) {
		return nil, false
	}
	return n, true
}

// IsPruned reports whether the node was removed from this run.
func (c *SyncContext) IsPruned(id string) bool {
	_, ok := c.pruned[id]
	return ok
}

// PrunedCount returns how many nodes were removed from this run.
func (c *SyncContext) PrunedCount() int {
	return len(c.pruned)
}

// Path returns the human-readable path of a node, project first.
func (c *SyncContext) Path(id string) string {
	var parts []string
	for cur := id; cur != ""; {
		n, ok := c.Nodes[cur]
		if !ok {
			break
		}
		parts = append(parts, n.Name)
		cur = n.ParentID
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, HierarchySeparator)
}

// RecordPath returns the human-readable path of a stored record, project first.
func (c *SyncContext) RecordPath(rec *DestinationRecord) string {
	parts := make([]string, 0, len(rec.Data.Parents)+2)
	if root := c.Root(); root != nil {
		parts = append(parts, root.Name)
	}
	parts = append(parts, rec.Data.Parents...)
	parts = append(parts, rec.Name)
	return strings.Join(parts, HierarchySeparator)
}

// ParentNames returns the ancestor names of a node, project and node excluded.
func (c *SyncContext) ParentNames(id string) []string {
	n, ok := c.Nodes[id]
	if !ok {
		return nil
	}
	var names []string
	for cur := n.ParentID; cur != "" && cur != c.RootID; {
		p, ok := c.Nodes[cur]
		if !ok {
			break
		}
		names = append(names, p.Name)
		cur = p.ParentID
	}
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	if names == nil {
		names = []string{}
	}
	return names
}

// Prune removes a node and its subtree from the run and returns the removed ids.
// The root is never pruned.
func (c *SyncContext) Prune(id string) []string {
	n, ok := c.Node(id)
	if !ok || id == c.RootID {
		return nil
	}
	if parent, ok := c.Nodes[n.ParentID]; ok {
		parent.Children = removeString(parent.Children, id)
	}
	removed := c.subtree(id)
	for _, rid := range removed {
		c.pruned[rid] = struct{}{}
		if recID, ok := c.SourceToDest[rid]; ok {
			c.held[recID] = struct{}{}
			c.Unlink(rid)
		}
	}
	return removed
}

func (c *SyncContext) subtree(id string) []string {
	out := []string{id}
	for i := 0; i < len(out); i++ {
		if n, ok := c.Nodes[out[i]]; ok {
			out = append(out, n.Children...)
		}
	}
	return out
}

// Attach adds a node created during the run under its ParentID.
func (c *SyncContext) Attach(n *SourceNode) {
	c.Nodes[n.ID] = n
	if parent, ok := c.Nodes[n.ParentID]; ok {
		parent.Children = append(parent.Children, n.ID)
		c.sortChildren(parent)
	}
}

// Move reparents a node in memory.
func (c *SyncContext) Move(id, newParentID string) {
	n, ok := c.Nodes[id]
	if !ok {
		return
	}
	if old, ok := c.Nodes[n.ParentID]; ok {
		old.Children = removeString(old.Children, id)
	}
	n.ParentID = newParentID
	if parent, ok := c.Nodes[newParentID]; ok {
		parent.Children = append(parent.Children, id)
		c.sortChildren(parent)
	}
}

// Link records that a node and a record are the same identity.
func (c *SyncContext) Link(nodeID, recordID string) {
	c.SourceToDest[nodeID] = recordID
	c.DestToSource[recordID] = nodeID
}

// Unlink removes the mapping of a node.
func (c *SyncContext) Unlink(nodeID string) {
	if recID, ok := c.SourceToDest[nodeID]; ok {
		delete(c.DestToSource, recID)
	}
	delete(c.SourceToDest, nodeID)
}

// RecordOf returns the active record mapped to a node.
func (c *SyncContext) RecordOf(nodeID string) (*DestinationRecord, bool) {
	id, ok := c.SourceToDest[nodeID]
	if !ok {
		return nil, false
	}
	r, ok := c.Records[id]
	return r, ok
}

// NodeOf returns the live node mapped to a record.
func (c *SyncContext) NodeOf(recordID string) (*SourceNode, bool) {
	id, ok := c.DestToSource[recordID]
	if !ok {
		return nil, false
	}
	return c.Node(id)
}

// Hold keeps a record out of archival for this run.
func (c *SyncContext) Hold(recordID string) {
	c.held[recordID] = struct{}{}
}

// IsHeld reports whether a record is kept out of archival.
func (c *SyncContext) IsHeld(recordID string) bool {
	_, ok := c.held[recordID]
	return ok
}

// ParentRefFor returns the destination parent reference for children of the
// given node: empty for the project, the mapped record id otherwise.
func (c *SyncContext) ParentRefFor(parentNodeID string) (string, bool) {
	if parentNodeID == c.RootID {
		return "", true
	}
	id, ok := c.SourceToDest[parentNodeID]
	return id, ok
}

// ParentNodeFor returns the live node standing for a destination parent reference.
func (c *SyncContext) ParentNodeFor(parentRef string) (*SourceNode, bool) {
	if parentRef == "" || parentRef == c.ProjectRecordID {
		return c.Root(), true
	}
	return c.NodeOf(parentRef)
}

// lookupRecord returns an active or archived record.
func (c *SyncContext) lookupRecord(id string) (*DestinationRecord, bool) {
	if r, ok := c.Records[id]; ok {
		return r, true
	}
	r, ok := c.Archived[id]
	return r, ok
}

func (c *SyncContext) sortChildren(n *SourceNode) {
	sort.Slice(n.Children, func(i, j int) bool {
		a, b := c.Nodes[n.Children[i]], c.Nodes[n.Children[j]]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})
}

func cloneValues(in map[string]Value) map[string]Value {
	if in == nil {
		return nil
	}
	out := make(map[string]Value, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func removeString(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
