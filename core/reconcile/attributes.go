package reconcile

import (
	"fmt"
)

// AttributeResolver resolves the attribute values synchronized into each
// node's record. Hierarchical attributes follow top-down override: the node's
// own value, else the nearest ancestor's resolved value, else the project
// default, else nil. Keys not declared in the definitions are dropped.
type AttributeResolver struct {
	defs     []AttributeDefinition
	fpsKeys  map[string]struct{}
	reserved map[string]struct{}
}

// NewAttributeResolver creates a resolver. Reserved keys (cross reference,
// ignore flag) are never copied into records.
func NewAttributeResolver(defs []AttributeDefinition, fpsKeys []string, reserved ...string) *AttributeResolver {
	r := &AttributeResolver{
		defs:     defs,
		fpsKeys:  make(map[string]struct{}, len(fpsKeys)),
		reserved: make(map[string]struct{}, len(reserved)),
	}
	for _, k := range fpsKeys {
		r.fpsKeys[k] = struct{}{}
	}
	for _, k := range reserved {
		r.reserved[k] = struct{}{}
	}
	return r
}

// Resolve computes the values of every live node, stores them in c.Resolved
// and returns them. Every declared key applying to a node is present; a nil
// value means the attribute is unset. Invalid explicit values are reported and ignored, so the
// node inherits as if it had no value.
func (r *AttributeResolver) Resolve(c *SyncContext, report *ReportAggregator) map[string]map[string]Value {
	resolved := make(map[string]map[string]Value, len(c.Nodes))
	for _, id := range c.Order() {
		n := c.Nodes[id]
		parent := resolved[n.ParentID]
		out := make(map[string]Value)
		for _, def := range r.defs {
			if _, skip := r.reserved[def.Key]; skip || !def.Applies(n.Kind) {
				continue
			}
			if v, ok := r.explicit(c, def, n, report); ok {
				out[def.Key] = v
				continue
			}
			if def.IsHierarchical {
				if id != c.RootID {
					out[def.Key] = parent[def.Key]
					continue
				}
				out[def.Key] = r.defaultValue(def)
				continue
			}
			out[def.Key] = r.defaultValue(def)
		}
		resolved[id] = out
	}
	c.Resolved = resolved
	return resolved
}

// HierarchicalKeys returns the declared hierarchical keys.
func (r *AttributeResolver) HierarchicalKeys() []string {
	var keys []string
	for _, def := range r.defs {
		if _, skip := r.reserved[def.Key]; skip {
			continue
		}
		if def.IsHierarchical {
			keys = append(keys, def.Key)
		}
	}
	return keys
}

// Definition returns the definition of a declared key.
func (r *AttributeResolver) Definition(key string) (AttributeDefinition, bool) {
	for _, def := range r.defs {
		if def.Key == key {
			return def, true
		}
	}
	return AttributeDefinition{}, false
}

func (r *AttributeResolver) explicit(c *SyncContext, def AttributeDefinition, n *SourceNode, report *ReportAggregator) (Value, bool) {
	var (
		raw Value
		ok  bool
	)
	if def.IsHierarchical {
		raw, ok = n.HierAttributes[def.Key]
	}
	if !ok {
		raw, ok = n.Attributes[def.Key]
	}
	if !ok {
		return nil, false
	}
	v, err := r.convert(def, raw)
	if err != nil {
		entity := fmt.Sprintf("%s (%s=%v)", c.Path(n.ID), def.Key, raw)
		if _, fps := r.fpsKeys[def.Key]; fps {
			report.Error(MsgInvalidFPS, entity)
		} else {
			report.Warn(MsgInvalidAttribute, entity)
		}
		return nil, false
	}
	if isUnset(v) {
		return nil, false
	}
	return v, true
}

func (r *AttributeResolver) defaultValue(def AttributeDefinition) Value {
	v, err := r.convert(def, def.Default)
	if err != nil || isUnset(v) {
		return nil
	}
	return v
}

func (r *AttributeResolver) convert(def AttributeDefinition, raw Value) (Value, error) {
	v := raw
	if _, fps := r.fpsKeys[def.Key]; fps && v != nil {
		converted, err := ConvertFPS(v)
		if err != nil {
			return nil, err
		}
		v = converted
	}
	out, ok := convertValue(def, v)
	if !ok {
		return nil, fmt.Errorf("value %v is not a valid %s", raw, def.Type)
	}
	return out, nil
}
