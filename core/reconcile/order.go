package reconcile

import "sort"

// Order returns the live nodes in breadth-first order from the root, so a
// parent always precedes its children. Attribute resolution, name validation
// and classification all consume this one ordering.
func (c *SyncContext) Order() []string {
	if c.RootID == "" {
		return nil
	}
	order := make([]string, 0, len(c.Nodes))
	queue := []string{c.RootID}
	seen := make(map[string]struct{}, len(c.Nodes))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if _, dup := seen[id]; dup {
			continue
		}
		n, ok := c.Node(id)
		if !ok {
			continue
		}
		seen[id] = struct{}{}
		order = append(order, id)
		queue = append(queue, n.Children...)
	}
	return order
}

// recordParents computes the ancestor names of a record by walking ParentRef
// through active and archived records.
func (c *SyncContext) recordParents(r *DestinationRecord) []string {
	names := []string{}
	seen := map[string]struct{}{r.ID: {}}
	for ref := r.ParentRef; ref != "" && ref != c.ProjectRecordID; {
		if _, loop := seen[ref]; loop {
			break
		}
		seen[ref] = struct{}{}
		p, ok := c.lookupRecord(ref)
		if !ok {
			break
		}
		names = append([]string{p.Name}, names...)
		ref = p.ParentRef
	}
	return names
}

// RecordOrder sorts record ids parents first: by depth, then by path.
func (c *SyncContext) RecordOrder(ids []string) []string {
	type keyed struct {
		id    string
		depth int
		path  string
	}
	items := make([]keyed, 0, len(ids))
	for _, id := range ids {
		r, ok := c.lookupRecord(id)
		if !ok {
			continue
		}
		parents := c.recordParents(r)
		items = append(items, keyed{id: id, depth: len(parents), path: r.Path(c.Project)})
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].depth != items[j].depth {
			return items[i].depth < items[j].depth
		}
		if items[i].path != items[j].path {
			return items[i].path < items[j].path
		}
		return items[i].id < items[j].id
	})
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.id
	}
	return out
}
