package satchel

import (
	"strings"
	"time"
)

// Document is a schemaless record stored in a collection. Nested maps and
// slices are supported; values should stay within the JSON type set
// (string, float64/int, bool, nil, map[string]any, []any) plus time.Time.
type Document map[string]any

// ID returns the document id, or "" if unset.
func (d Document) ID() string {
	id, _ := d["id"].(string)
	return id
}

// Field resolves a dot-separated path ("author.name") against the document.
// The second return reports whether the full path exists.
func (d Document) Field(path string) (any, bool) {
	if d == nil {
		return nil, false
	}
	cur := any(d)
	for {
		i := strings.IndexByte(path, '.')
		key := path
		if i >= 0 {
			key = path[:i]
		}

		var v any
		switch m := cur.(type) {
		case Document:
			var ok bool
			v, ok = m[key]
			if !ok {
				return nil, false
			}
		case map[string]any:
			var ok bool
			v, ok = m[key]
			if !ok {
				return nil, false
			}
		default:
			return nil, false
		}

		if i < 0 {
			return v, true
		}
		cur = v
		path = path[i+1:]
	}
}

// Clone returns a deep copy of the document. Maps and slices are copied;
// other values are shared (they are treated as immutable).
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Document:
		return t.Clone()
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = cloneValue(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// Merge applies the fields of patch on top of the document, replacing
// existing keys and descending into nested maps key by key.
func (d Document) Merge(patch Document) {
	for k, v := range patch {
		if sub, ok := v.(Document); ok {
			if cur, ok := d[k].(Document); ok {
				cur.Merge(sub)
				continue
			}
			if cur, ok := d[k].(map[string]any); ok {
				Document(cur).Merge(sub)
				continue
			}
		}
		if sub, ok := v.(map[string]any); ok {
			if cur, ok := d[k].(map[string]any); ok {
				Document(cur).Merge(Document(sub))
				continue
			}
			if cur, ok := d[k].(Document); ok {
				cur.Merge(Document(sub))
				continue
			}
		}
		d[k] = cloneValue(v)
	}
}

// valueClass ranks values into comparable classes. Values compare within a
// class; across classes the rank decides. Missing/nil ranks last so that
// documents without a sort field trail the rest in any direction.
func valueClass(v any) int {
	switch v.(type) {
	case bool:
		return 0
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return 1
	case string:
		return 2
	case time.Time:
		return 3
	case nil:
		return 4
	default:
		return 5
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
