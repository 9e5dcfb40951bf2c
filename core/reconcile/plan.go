package reconcile

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// HierarchyDiff renders the destination hierarchy before and after the plan
// as a unified diff. It returns an empty string when nothing moves.
func HierarchyDiff(p *Plan) (string, error) {
	if p == nil {
		return "", nil
	}
	diff := difflib.UnifiedDiff{
		A:        lines(p.Before),
		B:        lines(p.After),
		FromFile: p.Project + " (destination)",
		ToFile:   p.Project + " (planned)",
		Context:  1,
	}
	out, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return "", fmt.Errorf("failed to render hierarchy diff: %w", err)
	}
	return out, nil
}

// Describe lists the destination operations of the plan, one per line.
func (p *Plan) Describe() []string {
	if p == nil {
		return nil
	}
	out := make([]string, 0, len(p.Ops))
	for _, op := range p.Ops {
		switch op.Type {
		case OpInsert, OpUnarchive:
			out = append(out, fmt.Sprintf("%s %s %s", op.Type, op.ID, op.Record.Path(p.Project)))
		case OpUpdate:
			out = append(out, fmt.Sprintf("%s %s %s", op.Type, op.ID, strings.Join(op.Patch.Keys(), ",")))
		default:
			out = append(out, fmt.Sprintf("%s %s", op.Type, op.ID))
		}
	}
	return out
}

func lines(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = p + "\n"
	}
	return out
}
