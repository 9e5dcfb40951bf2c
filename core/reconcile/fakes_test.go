package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// fakeSource is an in-memory SourceTree.
type fakeSource struct {
	mu      sync.Mutex
	nodes   map[string]*SourceNode
	defs    []AttributeDefinition
	nextID  int
	reject  map[string]error
	listErr error
	commits int
}

func newFakeSource(nodes ...SourceNode) *fakeSource {
	s := &fakeSource{nodes: make(map[string]*SourceNode), reject: make(map[string]error)}
	for _, n := range nodes {
		n := n
		s.nodes[n.ID] = &n
	}
	return s
}

func (s *fakeSource) ListEntities(_ context.Context, _ string) ([]SourceNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]SourceNode, 0, len(s.nodes))
	for _, n := range s.nodes {
		c := *n
		c.TaskNames = cloneStrings(n.TaskNames)
		c.Attributes = cloneValues(n.Attributes)
		c.HierAttributes = cloneValues(n.HierAttributes)
		out = append(out, c)
	}
	return out, nil
}

func (s *fakeSource) GetCustomAttributeDefinitions(_ context.Context) ([]AttributeDefinition, error) {
	return s.defs, nil
}

func (s *fakeSource) SetAttribute(_ context.Context, nodeID, key string, value Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.reject["set_attribute"]; err != nil {
		return err
	}
	n, ok := s.nodes[nodeID]
	if !ok {
		return fmt.Errorf("entity %s not found", nodeID)
	}
	if n.Attributes == nil {
		n.Attributes = make(map[string]Value)
	}
	n.Attributes[key] = value
	return nil
}

func (s *fakeSource) CreateEntity(_ context.Context, kind, name, parentID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.reject["create"]; err != nil {
		return "", err
	}
	s.nextID++
	id := fmt.Sprintf("created-%d", s.nextID)
	s.nodes[id] = &SourceNode{ID: id, Name: name, Kind: kind, ParentID: parentID}
	return id, nil
}

func (s *fakeSource) Rename(_ context.Context, id, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.reject["rename"]; err != nil {
		return err
	}
	s.nodes[id].Name = name
	return nil
}

func (s *fakeSource) Reparent(_ context.Context, id, newParentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.reject["reparent"]; err != nil {
		return err
	}
	s.nodes[id].ParentID = newParentID
	return nil
}

func (s *fakeSource) Commit(_ context.Context) error {
	s.commits++
	return nil
}

func (s *fakeSource) byName(name string) *SourceNode {
	for _, n := range s.nodes {
		if n.Name == name && n.Kind != KindTask {
			return n
		}
	}
	return nil
}

func (s *fakeSource) remove(id string) {
	for cid, n := range s.nodes {
		if n.ParentID == id {
			s.remove(cid)
		}
	}
	delete(s.nodes, id)
}

// fakeStore is an in-memory DestinationStore. Records are stored as JSON so
// reads return the shapes a real document store returns.
type fakeStore struct {
	mu         sync.Mutex
	docs       map[string][]byte
	dependents map[string]struct{}
	bulkErr    error
	writes     [][]Op
}

func newFakeStore(records ...DestinationRecord) *fakeStore {
	s := &fakeStore{docs: make(map[string][]byte), dependents: make(map[string]struct{})}
	for i := range records {
		s.put(&records[i])
	}
	return s
}

func (s *fakeStore) put(r *DestinationRecord) {
	raw, err := json.Marshal(r)
	if err != nil {
		panic(err)
	}
	s.docs[r.ID] = raw
}

func (s *fakeStore) get(id string) (*DestinationRecord, bool) {
	raw, ok := s.docs[id]
	if !ok {
		return nil, false
	}
	var r DestinationRecord
	if err := json.Unmarshal(raw, &r); err != nil {
		panic(err)
	}
	return &r, true
}

func (s *fakeStore) find(archived bool) []DestinationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []DestinationRecord
	for id := range s.docs {
		r, _ := s.get(id)
		if r.Archived == archived {
			out = append(out, *r)
		}
	}
	return out
}

func (s *fakeStore) FindByProject(_ context.Context, _ string) ([]DestinationRecord, error) {
	return s.find(false), nil
}

func (s *fakeStore) FindArchived(_ context.Context, _ string) ([]DestinationRecord, error) {
	return s.find(true), nil
}

func (s *fakeStore) BulkWrite(_ context.Context, _ string, ops []Op) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bulkErr != nil {
		return s.bulkErr
	}
	s.writes = append(s.writes, ops)
	for _, op := range ops {
		switch op.Type {
		case OpInsert, OpUnarchive:
			rec := op.Record.Clone()
			rec.Archived = false
			s.put(rec)
		case OpUpdate:
			rec, ok := s.get(op.ID)
			if !ok {
				return fmt.Errorf("record %s not found", op.ID)
			}
			if err := ApplyPatch(rec, op.Patch); err != nil {
				return err
			}
			s.put(rec)
		case OpArchive:
			rec, ok := s.get(op.ID)
			if !ok {
				return fmt.Errorf("record %s not found", op.ID)
			}
			rec.Archived = true
			s.put(rec)
		}
	}
	return nil
}

func (s *fakeStore) FindDependents(_ context.Context, _ string, ids []string) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]struct{})
	for _, id := range ids {
		if _, ok := s.dependents[id]; ok {
			out[id] = struct{}{}
		}
	}
	return out, nil
}

func (s *fakeStore) byName(name string) *DestinationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.docs {
		r, _ := s.get(id)
		if r.Name == name {
			return r
		}
	}
	return nil
}

func (s *fakeStore) active() []DestinationRecord {
	return s.find(false)
}

func project(id, name string) SourceNode {
	return SourceNode{ID: id, Name: name, Kind: KindProject}
}

func entity(id, name, kind, parent string) SourceNode {
	return SourceNode{ID: id, Name: name, Kind: kind, ParentID: parent}
}

func task(id, name, parent string) SourceNode {
	return SourceNode{ID: id, Name: name, Kind: KindTask, ParentID: parent}
}

func projectRecord(id, name, rootID string) DestinationRecord {
	return DestinationRecord{
		ID:   id,
		Name: name,
		Kind: RecordProject,
		Data: RecordData{CrossRefID: rootID, EntityType: KindProject},
	}
}

func assetRecord(id, name, parentRef string, parents []string, crossRef string) DestinationRecord {
	return DestinationRecord{
		ID:        id,
		Name:      name,
		ParentRef: parentRef,
		Kind:      RecordAsset,
		Data: RecordData{
			CrossRefID: crossRef,
			Parents:    parents,
			Hierarchy:  joinParents(parents),
			Tasks:      []string{},
			EntityType: "Shot",
		},
	}
}

func joinParents(parents []string) string {
	out := ""
	for i, p := range parents {
		if i > 0 {
			out += HierarchySeparator
		}
		out += p
	}
	return out
}

func withCrossRef(n SourceNode, id string) SourceNode {
	if n.Attributes == nil {
		n.Attributes = map[string]Value{}
	}
	n.Attributes[DefaultCrossRefKey] = id
	return n
}

func newTestEngine(source SourceTree, store DestinationStore, opts Options) *Engine {
	e, err := NewEngine(source, store, nil, opts)
	if err != nil {
		panic(err)
	}
	counter := 0
	e.newID = func() string {
		counter++
		return fmt.Sprintf("rec-%d", counter)
	}
	return e
}
