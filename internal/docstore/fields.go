package docstore

import (
	"cmp"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"
)

// Fields is the generic document body used by adapters that keep documents
// as JSON trees (memstore, mysqlstore).
type Fields map[string]any

// Encode converts a typed document into its JSON tree form.
func Encode(doc any) (Fields, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var out Fields
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	if out == nil {
		out = Fields{}
	}
	return out, nil
}

// Decode fills dst (a pointer) from src, which may be Fields or a slice of
// Fields.
func Decode(src any, dst any) error {
	raw, err := json.Marshal(src)
	if err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}

// Clone returns a deep copy of f.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	return cloneValue(map[string]any(f)).(map[string]any)
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[k] = cloneValue(val)
		}
		return m
	case Fields:
		return cloneValue(map[string]any(t))
	case []any:
		s := make([]any, len(t))
		for i, val := range t {
			s[i] = cloneValue(val)
		}
		return s
	default:
		return v
	}
}

// normalize turns an arbitrary Go value into the JSON tree representation
// (maps, slices, float64, string, bool, nil).
func normalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func splitPath(path string) ([]string, error) {
	if path == "" {
		return nil, ErrInvalidPath
	}
	parts := strings.Split(path, ".")
	for _, p := range parts {
		if p == "" {
			return nil, ErrInvalidPath
		}
	}
	return parts, nil
}

// Lookup returns the value at a dotted path.
func (f Fields) Lookup(path string) (any, bool) {
	parts, err := splitPath(path)
	if err != nil {
		return nil, false
	}
	var cur any = map[string]any(f)
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// parent walks to the map holding the last path segment, creating
// intermediate maps when create is true.
func (f Fields) parent(parts []string, create bool) (map[string]any, error) {
	cur := map[string]any(f)
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p]
		if !ok || next == nil {
			if !create {
				return nil, nil
			}
			m := map[string]any{}
			cur[p] = m
			cur = m
			continue
		}
		m, ok := next.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: %q is not an object", ErrInvalidPath, p)
		}
		cur = m
	}
	return cur, nil
}

// Apply mutates f with ops in order.
func (f Fields) Apply(ops ...Op) error {
	for _, op := range ops {
		parts, err := splitPath(op.Path)
		if err != nil {
			return err
		}
		leaf := parts[len(parts)-1]
		switch op.Kind {
		case OpSet:
			m, err := f.parent(parts, true)
			if err != nil {
				return err
			}
			v, err := normalize(op.Value)
			if err != nil {
				return fmt.Errorf("set %s: %w", op.Path, err)
			}
			m[leaf] = v
		case OpIncrement:
			m, err := f.parent(parts, true)
			if err != nil {
				return err
			}
			delta, err := toFloat(op.Value)
			if err != nil {
				return fmt.Errorf("increment %s: %w", op.Path, err)
			}
			cur := 0.0
			if existing, ok := m[leaf]; ok && existing != nil {
				cur, err = toFloat(existing)
				if err != nil {
					return fmt.Errorf("increment %s: %w", op.Path, err)
				}
			}
			m[leaf] = cur + delta
		case OpDelete:
			m, err := f.parent(parts, false)
			if err != nil {
				return err
			}
			if m != nil {
				delete(m, leaf)
			}
		case OpAddToSet:
			m, err := f.parent(parts, true)
			if err != nil {
				return err
			}
			v, err := normalize(op.Value)
			if err != nil {
				return fmt.Errorf("addToSet %s: %w", op.Path, err)
			}
			var arr []any
			if existing, ok := m[leaf]; ok && existing != nil {
				arr, ok = existing.([]any)
				if !ok {
					return fmt.Errorf("%w: %q is not an array", ErrInvalidPath, op.Path)
				}
			}
			if !containsValue(arr, v) {
				arr = append(arr, v)
			}
			m[leaf] = arr
		default:
			return fmt.Errorf("unknown op kind %d", op.Kind)
		}
	}
	return nil
}

// Matches reports whether f satisfies every filter.
func (f Fields) Matches(where ...Where) bool {
	for _, w := range where {
		got, ok := f.Lookup(w.Path)
		if !ok {
			return false
		}
		if w.Cmp != CmpEq {
			c, ok := compare(got, w.Value)
			if !ok || c > 0 || (c == 0 && w.Cmp == CmpLt) {
				return false
			}
			continue
		}
		candidates := w.Values
		if candidates == nil {
			candidates = []any{w.Value}
		}
		matched := false
		for _, c := range candidates {
			want, err := normalize(c)
			if err != nil {
				return false
			}
			if reflect.DeepEqual(got, want) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

// compare orders a stored value against a filter value. Numbers compare
// numerically; strings holding RFC 3339 times compare as instants, other
// strings lexically.
func compare(got, want any) (int, bool) {
	w, err := normalize(want)
	if err != nil {
		return 0, false
	}
	switch g := got.(type) {
	case float64:
		n, ok := w.(float64)
		if !ok {
			return 0, false
		}
		return cmp.Compare(g, n), true
	case string:
		n, ok := w.(string)
		if !ok {
			return 0, false
		}
		gt, gerr := time.Parse(time.RFC3339Nano, g)
		wt, werr := time.Parse(time.RFC3339Nano, n)
		if gerr == nil && werr == nil {
			return gt.Compare(wt), true
		}
		return strings.Compare(g, n), true
	}
	return 0, false
}

func containsValue(arr []any, v any) bool {
	for _, e := range arr {
		if reflect.DeepEqual(e, v) {
			return true
		}
	}
	return false
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	default:
		return 0, fmt.Errorf("value %v (%T) is not numeric", v, v)
	}
}

// CollectionOf returns the collection path of a full document path.
func CollectionOf(docPath string) string {
	i := strings.LastIndex(docPath, "/")
	if i < 0 {
		return ""
	}
	return docPath[:i]
}
