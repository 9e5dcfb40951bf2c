package reconcile

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"asset-sync/core/utils"
)

// Patch is a partial document update keyed by dotted path, e.g. "name",
// "data.parents" or "data.fps". Keys are never removed; a cleared attribute
// is set to nil.
type Patch map[string]Value

// Keys returns the patch keys in sorted order.
func (p Patch) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Document renders the record as the JSON-shaped document stored downstream.
// Numbers become float64 and string lists become []any, so documents built
// in memory compare equal to documents read back from the store. Unset
// attributes are kept as null.
func (r *DestinationRecord) Document() map[string]any {
	data := make(map[string]any, len(r.Data.Extra)+5)
	for k, v := range r.Data.Extra {
		data[k] = normalizeValue(v)
	}
	data["crossRefId"] = r.Data.CrossRefID
	data["entityType"] = r.Data.EntityType
	if r.Kind != RecordProject {
		data["parents"] = stringsToAny(r.Data.Parents)
		data["hierarchy"] = r.Data.Hierarchy
		data["tasks"] = stringsToAny(r.Data.Tasks)
	}
	doc := map[string]any{
		"name": r.Name,
		"type": string(r.Kind),
		"data": data,
	}
	if r.Kind != RecordProject {
		doc["parent"] = r.ParentRef
	}
	return doc
}

// DiffDocuments compares desired against stored recursively and returns the
// keys whose value differs. Lists are compared and replaced as a whole. A
// key missing from stored equals a null desired value.
func DiffDocuments(stored, desired map[string]any) Patch {
	patch := Patch{}
	diffInto(patch, "", stored, desired)
	return patch
}

func diffInto(patch Patch, prefix string, stored, desired map[string]any) {
	for k, dv := range desired {
		key := prefix + k
		sv, ok := stored[k]
		dm, dIsMap := dv.(map[string]any)
		sm, sIsMap := sv.(map[string]any)
		if ok && dIsMap && sIsMap {
			diffInto(patch, key+".", sm, dm)
			continue
		}
		if !ok && dv == nil {
			continue
		}
		if !ok || !valuesEqual(sv, dv) {
			patch[key] = dv
		}
	}
}

// ApplyPatch applies a patch produced by DiffDocuments to a record.
func ApplyPatch(r *DestinationRecord, patch Patch) error {
	for _, key := range patch.Keys() {
		v := patch[key]
		switch key {
		case "name":
			r.Name = utils.ToString(v)
		case "parent":
			r.ParentRef = utils.ToString(v)
		case "type":
			r.Kind = RecordKind(utils.ToString(v))
		case "data":
			m, ok := v.(map[string]any)
			if !ok {
				return fmt.Errorf("patch key data: expected object, got %T", v)
			}
			for k, dv := range m {
				applyDataKey(r, k, dv)
			}
		default:
			field, ok := strings.CutPrefix(key, "data.")
			if !ok || field == "" {
				return fmt.Errorf("unsupported patch key %q", key)
			}
			applyDataKey(r, field, v)
		}
	}
	return nil
}

func applyDataKey(r *DestinationRecord, field string, v Value) {
	switch field {
	case "crossRefId":
		r.Data.CrossRefID = utils.ToString(v)
	case "parents":
		r.Data.Parents = utils.ToStringSlice(v)
	case "hierarchy":
		r.Data.Hierarchy = utils.ToString(v)
	case "tasks":
		r.Data.Tasks = utils.ToStringSlice(v)
	case "entityType":
		r.Data.EntityType = utils.ToString(v)
	default:
		if r.Data.Extra == nil {
			r.Data.Extra = make(map[string]Value)
		}
		r.Data.Extra[field] = v
	}
}

func valuesEqual(a, b Value) bool {
	return reflect.DeepEqual(normalizeValue(a), normalizeValue(b))
}

// normalizeValue maps a value onto the shapes produced by JSON decoding.
func normalizeValue(v Value) Value {
	switch t := v.(type) {
	case nil, bool, string, float64:
		return v
	case []string:
		return stringsToAny(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalizeValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = normalizeValue(item)
		}
		return out
	}
	if f, ok := utils.ToFloat(v); ok && utils.IsNumber(v) {
		return f
	}
	return v
}

func stringsToAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
