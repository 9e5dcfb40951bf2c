package reconcile

// Classification partitions a run into three disjoint id lists, parents first.
type Classification struct {
	// Create lists live node ids without a record.
	Create []string
	// Update lists live node ids mapped to a record.
	Update []string
	// Archive lists active asset record ids mapped to no live node.
	Archive []string
}

// Classify partitions the identity mapping held by c. Records of pruned or
// excluded nodes are held and never archived.
func Classify(c *SyncContext) Classification {
	var out Classification
	for _, id := range c.Order() {
		if _, mapped := c.SourceToDest[id]; mapped {
			out.Update = append(out.Update, id)
			continue
		}
		out.Create = append(out.Create, id)
	}

	var archive []string
	for id, rec := range c.Records {
		if rec.Kind != RecordAsset || c.IsHeld(id) {
			continue
		}
		if _, mapped := c.DestToSource[id]; mapped {
			continue
		}
		archive = append(archive, id)
	}
	out.Archive = c.RecordOrder(archive)
	return out
}
