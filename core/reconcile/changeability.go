package reconcile

// ChangeabilityOracle tells whether a record's name, parent and existence may
// still be altered. Records with downstream dependents are anchors; anchors
// and all their ancestors are pinned. The project record is always pinned.
type ChangeabilityOracle struct {
	pinned map[string]struct{}
	memo   map[string]bool
}

// NewChangeabilityOracle walks every anchor's ancestor chain once.
// An archived anchor pins archived ancestors only: a tombstone never pins an
// active parent.
func NewChangeabilityOracle(c *SyncContext, anchors map[string]struct{}) *ChangeabilityOracle {
	o := &ChangeabilityOracle{
		pinned: make(map[string]struct{}),
		memo:   make(map[string]bool),
	}
	if c.ProjectRecordID != "" {
		o.pinned[c.ProjectRecordID] = struct{}{}
	}
	for id := range anchors {
		rec, ok := c.lookupRecord(id)
		if !ok {
			continue
		}
		fromArchived := rec.Archived
		for cur := rec; cur != nil; {
			if _, done := o.pinned[cur.ID]; done {
				break
			}
			o.pinned[cur.ID] = struct{}{}
			if cur.ParentRef == "" {
				break
			}
			parent, ok := c.lookupRecord(cur.ParentRef)
			if !ok || (fromArchived && !parent.Archived) {
				break
			}
			cur = parent
		}
	}
	return o
}

// IsChangeable reports whether the record may be structurally altered.
// Unknown ids are changeable.
func (o *ChangeabilityOracle) IsChangeable(id string) bool {
	if v, ok := o.memo[id]; ok {
		return v
	}
	_, pinned := o.pinned[id]
	o.memo[id] = !pinned
	return !pinned
}
