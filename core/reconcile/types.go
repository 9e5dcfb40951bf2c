package reconcile

import "strings"

// Value is a custom attribute value.
// Values are JSON compatible: nil, bool, numbers, strings and []any of those.
type Value = any

// Source node kinds with special meaning to the engine.
// Any other kind (Sequence, Shot, Folder, ...) is synchronized as an asset.
const (
	// KindProject is the kind of the single root node.
	KindProject = "Project"
	// KindTask is folded into the owning node's TaskNames.
	KindTask = "Task"
	// KindFolder is used when recreating a node whose record has no entity type.
	KindFolder = "Folder"
)

// Default attribute keys on the source side.
const (
	// DefaultCrossRefKey holds the destination record id on every source node.
	DefaultCrossRefKey = "avalon_mongo_id"
	// DefaultIgnoreSyncKey excludes a node and its subtree when true.
	DefaultIgnoreSyncKey = "avalon_ignore_sync"
)

// SourceNode is one entity of the project-management tree.
type SourceNode struct {
	// ID is the opaque identifier assigned by the source system.
	ID string `json:"id" yaml:"id"`

	// Name is the entity name. Unique names are required by the destination only.
	Name string `json:"name" yaml:"name"`

	// Kind is the entity type, e.g. Project, Sequence, Shot, Task.
	Kind string `json:"kind" yaml:"kind"`

	// ParentID is empty for the project root.
	ParentID string `json:"parent_id,omitempty" yaml:"parent_id,omitempty"`

	// Children lists child node ids. It is rebuilt from ParentID for every run.
	Children []string `json:"children,omitempty" yaml:"-"`

	// TaskNames lists the names of the tasks attached to this node.
	TaskNames []string `json:"task_names,omitempty" yaml:"task_names,omitempty"`

	// Attributes holds flat custom attribute values.
	Attributes map[string]Value `json:"attributes,omitempty" yaml:"attributes,omitempty"`

	// HierAttributes holds values that inherit down the tree unless overridden.
	HierAttributes map[string]Value `json:"hier_attributes,omitempty" yaml:"hier_attributes,omitempty"`
}

// RecordKind is the destination document type.
type RecordKind string

const (
	// RecordProject is the single project document.
	RecordProject RecordKind = "project"
	// RecordAsset is any non-project document.
	RecordAsset RecordKind = "asset"
)

// RecordData is the data payload of a destination record.
type RecordData struct {
	// CrossRefID points back to the SourceNode id.
	CrossRefID string `json:"crossRefId,omitempty"`

	// Parents lists ancestor names, project excluded.
	Parents []string `json:"parents"`

	// Hierarchy is Parents joined with HierarchySeparator.
	Hierarchy string `json:"hierarchy"`

	// Tasks lists task names attached to the record.
	Tasks []string `json:"tasks"`

	// EntityType is the kind of the source node.
	EntityType string `json:"entityType,omitempty"`

	// Extra holds custom and inherited attribute values copied from the source.
	Extra map[string]Value `json:"extra,omitempty"`
}

// DestinationRecord is one document of the destination store.
type DestinationRecord struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	ParentRef string     `json:"parent,omitempty"`
	Kind      RecordKind `json:"type"`
	Archived  bool       `json:"archived"`
	Data      RecordData `json:"data"`
}

// HierarchySeparator joins the parents list into the hierarchy string.
const HierarchySeparator = "/"

// Clone returns a deep copy of the record.
func (r *DestinationRecord) Clone() *DestinationRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.Data.Parents = cloneStrings(r.Data.Parents)
	c.Data.Tasks = cloneStrings(r.Data.Tasks)
	if r.Data.Extra != nil {
		c.Data.Extra = make(map[string]Value, len(r.Data.Extra))
		for k, v := range r.Data.Extra {
			c.Data.Extra[k] = v
		}
	}
	return &c
}

// Path returns the human-readable path of the record, project name first.
func (r *DestinationRecord) Path(project string) string {
	if r.Kind == RecordProject {
		return r.Name
	}
	parts := make([]string, 0, len(r.Data.Parents)+2)
	parts = append(parts, project)
	parts = append(parts, r.Data.Parents...)
	parts = append(parts, r.Name)
	return strings.Join(parts, HierarchySeparator)
}

// OpType is the type of a destination write.
type OpType string

const (
	OpInsert    OpType = "insert"
	OpUpdate    OpType = "update"
	OpArchive   OpType = "archive"
	OpUnarchive OpType = "unarchive"
)

// Op is one destination write of the final bulk write.
type Op struct {
	// Type selects the write.
	Type OpType `json:"type"`

	// ID is the destination record id.
	ID string `json:"id"`

	// Record is the full document for insert and unarchive.
	Record *DestinationRecord `json:"record,omitempty"`

	// Patch holds the changed keys for update.
	Patch Patch `json:"patch,omitempty"`
}

// SourceWrite is one mutation sent to the source tree.
type SourceWrite struct {
	Action string `json:"action"`
	NodeID string `json:"node_id"`
	Key    string `json:"key,omitempty"`
	Value  Value  `json:"value,omitempty"`
}

// Source write actions.
const (
	WriteSetAttribute = "set_attribute"
	WriteCreate       = "create"
	WriteRename       = "rename"
	WriteReparent     = "reparent"
)

// Plan is the transient aggregate computed by one run.
type Plan struct {
	// Project is the project full name.
	Project string `json:"project"`

	// ToCreate lists source node ids that got a new or unarchived record.
	ToCreate []string `json:"to_create"`

	// ToUpdate lists record ids with a non-empty field patch.
	ToUpdate []string `json:"to_update"`

	// ToArchive lists record ids archived by this run.
	ToArchive []string `json:"to_archive"`

	// ToRecreateInSource lists record ids whose source node was recreated.
	ToRecreateInSource []string `json:"to_recreate_in_source"`

	// FieldPatches holds the partial update per record id.
	FieldPatches map[string]Patch `json:"field_patches"`

	// Ops is the destination bulk write, in submission order.
	Ops []Op `json:"ops"`

	// SourceWrites lists every mutation sent to the source tree.
	SourceWrites []SourceWrite `json:"source_writes"`

	// Before and After list record hierarchy paths around the run.
	Before []string `json:"-"`
	After  []string `json:"-"`
}

func newPlan(project string) *Plan {
	return &Plan{
		Project:      project,
		FieldPatches: make(map[string]Patch),
	}
}

// Empty reports whether the plan changes nothing in the destination store.
func (p *Plan) Empty() bool {
	return p == nil || (len(p.ToCreate) == 0 && len(p.ToUpdate) == 0 && len(p.ToArchive) == 0 && len(p.Ops) == 0)
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
