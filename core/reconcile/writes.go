package reconcile

import (
	"context"

	"github.com/google/uuid"
)

// DryRunIDPrefix prefixes ids handed out for entities created during a dry run.
const DryRunIDPrefix = "dryrun-"

// recordingSource forwards to the source tree and records every applied
// write. In dry-run mode writes are recorded but never sent.
type recordingSource struct {
	SourceTree
	dryRun bool
	writes []SourceWrite
}

func newRecordingSource(inner SourceTree, dryRun bool) *recordingSource {
	return &recordingSource{SourceTree: inner, dryRun: dryRun}
}

func (s *recordingSource) SetAttribute(ctx context.Context, nodeID, key string, value Value) error {
	if !s.dryRun {
		if err := s.SourceTree.SetAttribute(ctx, nodeID, key, value); err != nil {
			return err
		}
	}
	s.writes = append(s.writes, SourceWrite{Action: WriteSetAttribute, NodeID: nodeID, Key: key, Value: value})
	return nil
}

func (s *recordingSource) CreateEntity(ctx context.Context, kind, name, parentID string) (string, error) {
	id := DryRunIDPrefix + uuid.NewString()
	if !s.dryRun {
		var err error
		if id, err = s.SourceTree.CreateEntity(ctx, kind, name, parentID); err != nil {
			return "", err
		}
	}
	s.writes = append(s.writes, SourceWrite{Action: WriteCreate, NodeID: id, Key: kind, Value: name})
	return id, nil
}

func (s *recordingSource) Rename(ctx context.Context, id, name string) error {
	if !s.dryRun {
		if err := s.SourceTree.Rename(ctx, id, name); err != nil {
			return err
		}
	}
	s.writes = append(s.writes, SourceWrite{Action: WriteRename, NodeID: id, Value: name})
	return nil
}

func (s *recordingSource) Reparent(ctx context.Context, id, newParentID string) error {
	if !s.dryRun {
		if err := s.SourceTree.Reparent(ctx, id, newParentID); err != nil {
			return err
		}
	}
	s.writes = append(s.writes, SourceWrite{Action: WriteReparent, NodeID: id, Value: newParentID})
	return nil
}

func (s *recordingSource) Commit(ctx context.Context) error {
	if s.dryRun {
		return nil
	}
	return s.SourceTree.Commit(ctx)
}
