package reconcile

import (
	"sort"
	"strings"

	"asset-sync/core/utils"
)

// MatchMethod tells how a node was mapped to its record.
type MatchMethod string

const (
	MatchNone     MatchMethod = ""
	MatchProject  MatchMethod = "project"
	MatchCrossRef MatchMethod = "cross_ref"
	MatchReverse  MatchMethod = "reverse"
	MatchName     MatchMethod = "name"
)

// IdentityResolver maps source nodes to destination records using, in order,
// the stored cross reference, the record back-pointer and the record name.
type IdentityResolver struct {
	crossRefKey string
}

// NewIdentityResolver creates a resolver reading the cross reference from key.
func NewIdentityResolver(crossRefKey string) *IdentityResolver {
	return &IdentityResolver{crossRefKey: crossRefKey}
}

// StoredID returns the destination id stored on the node, empty when never synchronized.
func (r *IdentityResolver) StoredID(n *SourceNode) string {
	if n == nil {
		return ""
	}
	return strings.TrimSpace(utils.ToString(n.Attributes[r.crossRefKey]))
}

// Resolve links every live node it can match and returns the method used per node.
// Claimants of one record that cannot be told apart are pruned and reported.
func (r *IdentityResolver) Resolve(c *SyncContext, report *ReportAggregator) map[string]MatchMethod {
	methods := make(map[string]MatchMethod)
	order := c.Order()

	if c.ProjectRecordID != "" {
		c.Link(c.RootID, c.ProjectRecordID)
		methods[c.RootID] = MatchProject
	}

	// Cross reference claims
	claims := make(map[string][]string)
	var claimed []string
	for _, id := range order {
		if id == c.RootID {
			continue
		}
		stored := r.StoredID(c.Nodes[id])
		rec, ok := c.Records[stored]
		if stored == "" || !ok || rec.Kind != RecordAsset {
			continue
		}
		if _, seen := claims[stored]; !seen {
			claimed = append(claimed, stored)
		}
		claims[stored] = append(claims[stored], id)
	}
	for _, recID := range claimed {
		ids := claims[recID]
		rec := c.Records[recID]
		if len(ids) == 1 {
			c.Link(ids[0], recID)
			methods[ids[0]] = MatchCrossRef
			continue
		}
		if winner, ok := r.tieBreak(c, rec, ids); ok {
			c.Link(winner, recID)
			methods[winner] = MatchCrossRef
			continue
		}
		paths := make([]string, 0, len(ids))
		for _, id := range ids {
			paths = append(paths, c.Path(id))
		}
		report.AddSubject(SeverityWarning, MsgDuplicateIdentity, c.RecordPath(rec), paths...)
		for _, id := range ids {
			c.Prune(id)
		}
		c.Hold(recID)
	}

	unmatched := func() []*DestinationRecord {
		var out []*DestinationRecord
		for id, rec := range c.Records {
			if _, mapped := c.DestToSource[id]; mapped || rec.Kind != RecordAsset {
				continue
			}
			out = append(out, rec)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
		return out
	}

	// Reverse match on the record back-pointer
	byBackPointer := make(map[string][]*DestinationRecord)
	for _, rec := range unmatched() {
		if rec.Data.CrossRefID != "" {
			byBackPointer[rec.Data.CrossRefID] = append(byBackPointer[rec.Data.CrossRefID], rec)
		}
	}
	for _, id := range order {
		if _, mapped := c.SourceToDest[id]; mapped || id == c.RootID {
			continue
		}
		if _, live := c.Node(id); !live {
			continue
		}
		if rec, ok := pickCandidate(c, byBackPointer[id], c.Nodes[id].Name); ok {
			c.Link(id, rec.ID)
			methods[id] = MatchReverse
		}
	}

	// Name match against records never linked
	byName := make(map[string][]*DestinationRecord)
	for _, rec := range unmatched() {
		if rec.Data.CrossRefID == "" && !c.IsHeld(rec.ID) {
			byName[rec.Name] = append(byName[rec.Name], rec)
		}
	}
	for _, id := range order {
		if _, mapped := c.SourceToDest[id]; mapped || id == c.RootID {
			continue
		}
		n, live := c.Node(id)
		if !live {
			continue
		}
		if rec, ok := pickCandidate(c, byName[n.Name], n.Name); ok {
			c.Link(id, rec.ID)
			methods[id] = MatchName
		}
	}

	r.holdPruned(c)
	return methods
}

// tieBreak picks one claimant of a record: the node the record points back
// to, else the only node whose ancestor names equal the record's parents,
// else the only node with the record's name.
func (r *IdentityResolver) tieBreak(c *SyncContext, rec *DestinationRecord, ids []string) (string, bool) {
	for _, id := range ids {
		if rec.Data.CrossRefID == id {
			return id, true
		}
	}
	var sameParents []string
	for _, id := range ids {
		if equalStrings(c.ParentNames(id), rec.Data.Parents) {
			sameParents = append(sameParents, id)
		}
	}
	if len(sameParents) == 1 {
		return sameParents[0], true
	}
	pool := ids
	if len(sameParents) > 1 {
		pool = sameParents
	}
	var sameName []string
	for _, id := range pool {
		if c.Nodes[id].Name == rec.Name {
			sameName = append(sameName, id)
		}
	}
	if len(sameName) == 1 {
		return sameName[0], true
	}
	return "", false
}

// holdPruned keeps records that belong to pruned nodes out of archival.
func (r *IdentityResolver) holdPruned(c *SyncContext) {
	if len(c.pruned) == 0 {
		return
	}
	for id := range c.pruned {
		if stored := r.StoredID(c.Nodes[id]); stored != "" {
			if _, ok := c.Records[stored]; ok {
				if _, mapped := c.DestToSource[stored]; !mapped {
					c.Hold(stored)
				}
			}
		}
	}
	for recID, rec := range c.Records {
		if _, mapped := c.DestToSource[recID]; mapped {
			continue
		}
		if _, pruned := c.pruned[rec.Data.CrossRefID]; pruned {
			c.Hold(recID)
		}
	}
}

func pickCandidate(c *SyncContext, candidates []*DestinationRecord, name string) (*DestinationRecord, bool) {
	var first *DestinationRecord
	for _, rec := range candidates {
		if _, mapped := c.DestToSource[rec.ID]; mapped {
			continue
		}
		if rec.Name == name {
			return rec, true
		}
		if first == nil {
			first = rec
		}
	}
	return first, first != nil
}
