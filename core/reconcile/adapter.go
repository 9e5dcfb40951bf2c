package reconcile

import "context"

// AttributeType is the declared type of a custom attribute.
type AttributeType string

const (
	AttrText       AttributeType = "text"
	AttrBoolean    AttributeType = "boolean"
	AttrNumber     AttributeType = "number"
	AttrEnumerator AttributeType = "enumerator"
)

// AttributeDefinition describes one custom attribute declared in the source system.
type AttributeDefinition struct {
	// Key is the attribute key.
	Key string `json:"key" yaml:"key"`

	// AppliesTo lists the node kinds carrying the attribute. Empty means all kinds.
	AppliesTo []string `json:"applies_to,omitempty" yaml:"applies_to,omitempty"`

	// IsHierarchical marks values that inherit down the tree.
	IsHierarchical bool `json:"is_hierarchical" yaml:"is_hierarchical"`

	// Default is the project level default.
	Default Value `json:"default,omitempty" yaml:"default,omitempty"`

	// Type drives value conversion. Empty keeps values untouched.
	Type AttributeType `json:"type,omitempty" yaml:"type,omitempty"`

	// IsDecimal selects float64 over int for number attributes.
	IsDecimal bool `json:"is_decimal,omitempty" yaml:"is_decimal,omitempty"`

	// MultiSelect marks enumerators holding a list of values.
	MultiSelect bool `json:"multi_select,omitempty" yaml:"multi_select,omitempty"`
}

// Applies reports whether the definition applies to nodes of the given kind.
// Hierarchical attributes apply to every kind.
func (d AttributeDefinition) Applies(kind string) bool {
	if d.IsHierarchical || len(d.AppliesTo) == 0 {
		return true
	}
	for _, k := range d.AppliesTo {
		if k == kind {
			return true
		}
	}
	return false
}

// SourceTree is the project-management system collaborator.
// Write calls may be rejected individually; implementations return a
// *TransportError when the transport itself fails.
type SourceTree interface {
	// ListEntities returns every entity of the project, tasks included.
	ListEntities(ctx context.Context, projectName string) ([]SourceNode, error)

	// GetCustomAttributeDefinitions returns the declared custom attributes.
	GetCustomAttributeDefinitions(ctx context.Context) ([]AttributeDefinition, error)

	// SetAttribute sets one custom attribute on a node.
	SetAttribute(ctx context.Context, nodeID, key string, value Value) error

	// CreateEntity creates an entity and returns its id.
	CreateEntity(ctx context.Context, kind, name, parentID string) (string, error)

	// Rename renames an entity.
	Rename(ctx context.Context, id, name string) error

	// Reparent moves an entity under a new parent.
	Reparent(ctx context.Context, id, newParentID string) error

	// Commit flushes pending writes.
	Commit(ctx context.Context) error
}

// DestinationStore is the document store collaborator.
type DestinationStore interface {
	// FindByProject returns the active records of a project, project record included.
	FindByProject(ctx context.Context, project string) ([]DestinationRecord, error)

	// FindArchived returns the archived records of a project.
	FindArchived(ctx context.Context, project string) ([]DestinationRecord, error)

	// BulkWrite applies all operations of one run atomically.
	BulkWrite(ctx context.Context, project string, ops []Op) error

	// FindDependents returns the subset of ids with at least one downstream dependent.
	FindDependents(ctx context.Context, project string, ids []string) (map[string]struct{}, error)
}
