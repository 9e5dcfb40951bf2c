// Package schema holds the destination document schemas. They provide the
// per-kind name patterns and validate every document before the bulk write.
package schema

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schemas/*.json
var files embed.FS

const baseURL = "https://asset-sync.local/schemas/"

// Kinds lists the schema kinds shipped with the package.
var Kinds = []string{"project", "asset", "task"}

// Validator validates documents against the compiled schemas.
type Validator struct {
	schemas map[string]*jsonschema.Schema
}

var (
	defaultOnce      sync.Once
	defaultValidator *Validator
	defaultErr       error
)

// New compiles the embedded schemas.
func New() (*Validator, error) {
	c := jsonschema.NewCompiler()
	for _, kind := range Kinds {
		raw, err := files.ReadFile("schemas/" + kind + ".json")
		if err != nil {
			return nil, fmt.Errorf("failed to read %s schema: %w", kind, err)
		}
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s schema: %w", kind, err)
		}
		if err := c.AddResource(baseURL+kind+".json", doc); err != nil {
			return nil, fmt.Errorf("failed to add %s schema: %w", kind, err)
		}
	}

	v := &Validator{schemas: make(map[string]*jsonschema.Schema, len(Kinds))}
	for _, kind := range Kinds {
		sch, err := c.Compile(baseURL + kind + ".json")
		if err != nil {
			return nil, fmt.Errorf("failed to compile %s schema: %w", kind, err)
		}
		v.schemas[kind] = sch
	}
	return v, nil
}

// Default returns a process-wide validator compiled on first use.
func Default() (*Validator, error) {
	defaultOnce.Do(func() {
		defaultValidator, defaultErr = New()
	})
	return defaultValidator, defaultErr
}

// ValidateDocument validates doc against the schema of kind.
func (v *Validator) ValidateDocument(kind string, doc map[string]any) error {
	sch, ok := v.schemas[kind]
	if !ok {
		return fmt.Errorf("no schema for kind %q", kind)
	}
	// Round-trip through JSON so numbers and lists take the shapes the validator expects.
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode %s document: %w", kind, err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("failed to decode %s document: %w", kind, err)
	}
	return sch.Validate(inst)
}

// NamePatterns returns properties.name.pattern of every embedded schema.
func NamePatterns() (map[string]string, error) {
	out := make(map[string]string, len(Kinds))
	for _, kind := range Kinds {
		raw, err := files.ReadFile("schemas/" + kind + ".json")
		if err != nil {
			return nil, fmt.Errorf("failed to read %s schema: %w", kind, err)
		}
		var doc struct {
			Properties struct {
				Name struct {
					Pattern string `json:"pattern"`
				} `json:"name"`
			} `json:"properties"`
		}
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse %s schema: %w", kind, err)
		}
		if doc.Properties.Name.Pattern != "" {
			out[kind] = doc.Properties.Name.Pattern
		}
	}
	return out, nil
}
