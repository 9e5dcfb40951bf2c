package reconcile

import (
	"fmt"
	"regexp"
)

// Name schema kinds.
const (
	SchemaProject = "project"
	SchemaAsset   = "asset"
	SchemaTask    = "task"
)

// DefaultNamePattern applies to kinds without a configured pattern.
const DefaultNamePattern = `^[a-zA-Z0-9_.]*$`

// NameValidator enforces naming patterns and uniqueness. Nodes failing a
// check are pruned with their subtree; invalid task names are removed from
// the owning node only.
type NameValidator struct {
	patterns map[string]*regexp.Regexp
	fallback *regexp.Regexp
}

// NewNameValidator compiles a pattern per schema kind.
func NewNameValidator(patterns map[string]string) (*NameValidator, error) {
	v := &NameValidator{
		patterns: make(map[string]*regexp.Regexp, len(patterns)),
		fallback: regexp.MustCompile(DefaultNamePattern),
	}
	for kind, p := range patterns {
		if p == "" {
			continue
		}
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid name pattern for %s: %w", kind, err)
		}
		v.patterns[kind] = re
	}
	return v, nil
}

// Valid reports whether name matches the pattern of the schema kind.
func (v *NameValidator) Valid(kind, name string) bool {
	re, ok := v.patterns[kind]
	if !ok {
		re = v.fallback
	}
	return re.MatchString(name)
}

// Validate checks every live node. The project name is owned by the caller
// and not checked here.
func (v *NameValidator) Validate(c *SyncContext, report *ReportAggregator) {
	for _, id := range c.Order() {
		n, ok := c.Node(id)
		if !ok {
			continue
		}
		if id != c.RootID && !v.Valid(SchemaAsset, n.Name) {
			report.Warn(MsgInvalidName, c.Path(id))
			c.Prune(id)
			continue
		}
		v.validateTasks(c, n, report)
	}
	v.pruneDuplicates(c, report)
}

// Revalidate re-checks nodes touched by recreation or reversal. A touched
// node colliding with other live nodes is pruned together with them.
func (v *NameValidator) Revalidate(c *SyncContext, ids []string, report *ReportAggregator) {
	if len(ids) == 0 {
		return
	}
	byName := make(map[string][]string)
	for _, id := range c.Order() {
		if id == c.RootID {
			continue
		}
		byName[c.Nodes[id].Name] = append(byName[c.Nodes[id].Name], id)
	}
	for _, id := range ids {
		n, ok := c.Node(id)
		if !ok || id == c.RootID {
			continue
		}
		if !v.Valid(SchemaAsset, n.Name) {
			report.Warn(MsgInvalidName, c.Path(id))
			c.Prune(id)
			continue
		}
		v.validateTasks(c, n, report)
		var others []string
		for _, other := range byName[n.Name] {
			if other == id {
				continue
			}
			if _, live := c.Node(other); live {
				others = append(others, other)
			}
		}
		if len(others) == 0 {
			continue
		}
		paths := []string{c.Path(id)}
		for _, other := range others {
			paths = append(paths, c.Path(other))
		}
		report.Warn(MsgDuplicateName, paths...)
		c.Prune(id)
		for _, other := range others {
			c.Prune(other)
		}
	}
}

func (v *NameValidator) validateTasks(c *SyncContext, n *SourceNode, report *ReportAggregator) {
	if len(n.TaskNames) == 0 {
		return
	}
	path := c.Path(n.ID)
	seen := make(map[string]struct{}, len(n.TaskNames))
	kept := make([]string, 0, len(n.TaskNames))
	for _, t := range n.TaskNames {
		if !v.Valid(SchemaTask, t) {
			report.Warn(MsgInvalidName, path+HierarchySeparator+t)
			continue
		}
		if _, dup := seen[t]; dup {
			report.Warn(MsgDuplicateName, path+HierarchySeparator+t)
			continue
		}
		seen[t] = struct{}{}
		kept = append(kept, t)
	}
	n.TaskNames = kept
}

// pruneDuplicates removes every node sharing its name with another live node.
func (v *NameValidator) pruneDuplicates(c *SyncContext, report *ReportAggregator) {
	order := c.Order()
	byName := make(map[string][]string)
	var names []string
	for _, id := range order {
		if id == c.RootID {
			continue
		}
		name := c.Nodes[id].Name
		if _, ok := byName[name]; !ok {
			names = append(names, name)
		}
		byName[name] = append(byName[name], id)
	}
	for _, name := range names {
		ids := byName[name]
		if len(ids) < 2 {
			continue
		}
		paths := make([]string, 0, len(ids))
		for _, id := range ids {
			paths = append(paths, c.Path(id))
		}
		report.Warn(MsgDuplicateName, paths...)
		for _, id := range ids {
			c.Prune(id)
		}
	}
}
