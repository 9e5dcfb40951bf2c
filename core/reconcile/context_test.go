package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSyncContext_InvalidTrees(t *testing.T) {
	tests := []struct {
		name     string
		entities []SourceNode
		err      error
	}{
		{"empty", nil, ErrProjectNotFound},
		{"two roots", []SourceNode{project("p", "P"), project("x", "X")}, ErrInvalidTree},
		{"root is not a project", []SourceNode{entity("p", "P", "Folder", "")}, ErrInvalidTree},
		{"missing parent", []SourceNode{project("p", "P"), entity("n1", "sh01", "Shot", "nope")}, ErrInvalidTree},
		{"orphan task", []SourceNode{project("p", "P"), task("t1", "comp", "nope")}, ErrInvalidTree},
		{"duplicate id", []SourceNode{project("p", "P"), entity("p", "sh01", "Shot", "p")}, ErrInvalidTree},
		{"cycle", []SourceNode{
			project("p", "P"),
			entity("a", "a", "Folder", "b"),
			entity("b", "b", "Folder", "a"),
		}, ErrInvalidTree},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSyncContext("P", tt.entities, nil, nil, nil)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestNewSyncContext_Structure(t *testing.T) {
	c := mustContext(t, []SourceNode{
		project("p", "P"),
		entity("q1", "sq01", "Sequence", "p"),
		entity("n2", "sh02", "Shot", "q1"),
		entity("n1", "sh01", "Shot", "q1"),
		task("t1", "comp", "n1"),
		task("t2", "anim", "n1"),
	})

	assert.Equal(t, "p", c.RootID)
	assert.Equal(t, []string{"p", "q1", "n1", "n2"}, c.Order())
	assert.Equal(t, []string{"comp", "anim"}, c.Nodes["n1"].TaskNames)
	assert.NotContains(t, c.Nodes, "t1")

	assert.Equal(t, "P/sq01/sh01", c.Path("n1"))
	assert.Equal(t, []string{"sq01"}, c.ParentNames("n1"))
	assert.Equal(t, []string{}, c.ParentNames("q1"))
}

func TestNewSyncContext_ProjectRecord(t *testing.T) {
	old := projectRecord("old", "Other", "p")
	archived := projectRecord("gone", "P", "p")
	c, err := NewSyncContext("P", []SourceNode{project("p", "P")}, nil,
		[]DestinationRecord{old, projectRecord("prj", "P", "p")},
		[]DestinationRecord{archived, assetRecord("tomb", "sh01", "", []string{}, "")},
	)
	require.NoError(t, err)

	assert.Equal(t, "prj", c.ProjectRecordID)
	assert.NotContains(t, c.Archived, "gone")
	assert.True(t, c.Archived["tomb"].Archived)
}

func TestSyncContext_Prune(t *testing.T) {
	c := mustContext(t,
		[]SourceNode{
			project("p", "P"),
			entity("q1", "sq01", "Sequence", "p"),
			entity("n1", "sh01", "Shot", "q1"),
		},
		assetRecord("R1", "sq01", "", []string{}, "q1"),
	)
	c.Link("q1", "R1")

	assert.Nil(t, c.Prune("p"))
	removed := c.Prune("q1")

	assert.ElementsMatch(t, []string{"q1", "n1"}, removed)
	assert.Equal(t, []string{"p"}, c.Order())
	assert.Equal(t, 2, c.PrunedCount())
	assert.True(t, c.IsHeld("R1"))
	_, mapped := c.DestToSource["R1"]
	assert.False(t, mapped)
	_, ok := c.Node("n1")
	assert.False(t, ok)
	assert.Nil(t, c.Prune("n1"))
}

func TestSyncContext_ParentMapping(t *testing.T) {
	c := mustContext(t,
		[]SourceNode{
			project("p", "P"),
			entity("q1", "sq01", "Sequence", "p"),
			entity("q2", "sq02", "Sequence", "p"),
		},
		projectRecord("prj", "P", "p"),
		assetRecord("R1", "sq01", "", []string{}, "q1"),
	)
	c.Link("p", "prj")
	c.Link("q1", "R1")

	ref, ok := c.ParentRefFor("p")
	assert.True(t, ok)
	assert.Equal(t, "", ref)
	ref, ok = c.ParentRefFor("q1")
	assert.True(t, ok)
	assert.Equal(t, "R1", ref)
	_, ok = c.ParentRefFor("q2")
	assert.False(t, ok)

	n, ok := c.ParentNodeFor("")
	require.True(t, ok)
	assert.Equal(t, "p", n.ID)
	n, ok = c.ParentNodeFor("prj")
	require.True(t, ok)
	assert.Equal(t, "p", n.ID)
	n, ok = c.ParentNodeFor("R1")
	require.True(t, ok)
	assert.Equal(t, "q1", n.ID)
	_, ok = c.ParentNodeFor("unknown")
	assert.False(t, ok)

	c.Move("q2", "q1")
	assert.Equal(t, "P/sq01/sq02", c.Path("q2"))
	assert.Equal(t, []string{"p", "q1", "q2"}, c.Order())
}

func TestSyncContext_RecordOrder(t *testing.T) {
	c, err := NewSyncContext("P", []SourceNode{project("p", "P")}, nil,
		[]DestinationRecord{
			assetRecord("c", "sh01", "b", []string{"sq01"}, ""),
			assetRecord("b", "sq01", "", []string{}, ""),
			assetRecord("a", "sq00", "", []string{}, ""),
		},
		[]DestinationRecord{assetRecord("d", "sh02", "c", nil, "")},
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c", "d"}, c.RecordOrder([]string{"d", "c", "b", "a", "missing"}))
	assert.Equal(t, []string{"sq01", "sh01"}, c.recordParents(c.Archived["d"]))
}

func TestClassify(t *testing.T) {
	c := mustContext(t,
		[]SourceNode{
			project("p", "P"),
			entity("n1", "sh01", "Shot", "p"),
			entity("n2", "sh02", "Shot", "p"),
		},
		projectRecord("prj", "P", "p"),
		assetRecord("R1", "sh01", "", []string{}, "n1"),
		assetRecord("R3", "sh03", "", []string{}, "gone"),
		assetRecord("R4", "sh04", "", []string{}, "gone"),
	)
	c.Link("p", "prj")
	c.Link("n1", "R1")
	c.Hold("R4")

	got := Classify(c)
	assert.Equal(t, []string{"p", "n1"}, got.Update)
	assert.Equal(t, []string{"n2"}, got.Create)
	assert.Equal(t, []string{"R3"}, got.Archive)
}

func TestChangeabilityOracle(t *testing.T) {
	c, err := NewSyncContext("P", []SourceNode{project("p", "P")}, nil,
		[]DestinationRecord{
			projectRecord("prj", "P", "p"),
			assetRecord("sq", "sq01", "", []string{}, ""),
			assetRecord("sh", "sh01", "sq", []string{"sq01"}, ""),
			assetRecord("free", "sh02", "sq", []string{"sq01"}, ""),
			assetRecord("other", "sq02", "", []string{}, ""),
		},
		[]DestinationRecord{
			assetRecord("tomb", "sh03", "other", []string{"sq02"}, ""),
			assetRecord("tombParent", "sq09", "", []string{}, ""),
			assetRecord("tombChild", "sh09", "tombParent", []string{"sq09"}, ""),
		},
	)
	require.NoError(t, err)

	o := NewChangeabilityOracle(c, map[string]struct{}{"sh": {}, "tomb": {}, "tombChild": {}})

	assert.False(t, o.IsChangeable("prj"))
	assert.False(t, o.IsChangeable("sh"))
	assert.False(t, o.IsChangeable("sq"))
	assert.True(t, o.IsChangeable("free"))
	assert.False(t, o.IsChangeable("tomb"))
	assert.True(t, o.IsChangeable("other"), "an archived anchor never pins an active parent")
	assert.False(t, o.IsChangeable("tombParent"))
	assert.True(t, o.IsChangeable("unknown"))
}
