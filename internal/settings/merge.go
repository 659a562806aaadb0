package settings

import "fmt"

// Tree is a settings document: string keys mapping to scalars, slices or
// nested trees. Nested values may be Tree or plain map[string]any.
type Tree = map[string]any

// Merge overlays override onto defaults and returns a new tree.
//
// Keys missing from override, and override values that are nil or the empty
// string, keep the default. Nested objects on both sides are merged
// recursively; slices are replaced whole. Keys that only exist in override
// are copied through. A non-object override yields a copy of defaults.
func Merge(defaults Tree, override any) Tree {
	result := make(Tree, len(defaults))
	for k, v := range defaults {
		result[k] = v
	}

	ov, ok := asObject(override)
	if !ok {
		return result
	}

	for key, defVal := range defaults {
		ovVal, present := ov[key]
		if !present {
			continue
		}
		defObj, defIsObj := asObject(defVal)
		ovObj, ovIsObj := asObject(ovVal)
		switch {
		case defIsObj && ovIsObj && defObj != nil && ovObj != nil:
			result[key] = Merge(defObj, ovObj)
		case isEmpty(ovVal):
		default:
			result[key] = Normalize(ovVal)
		}
	}

	for key, ovVal := range ov {
		if _, known := result[key]; !known {
			result[key] = Normalize(ovVal)
		}
	}
	return result
}

// Overlay applies patch on top of base the way a partial save does: nested
// objects merge, everything else in patch (empty values included) wins.
// Neither input is modified.
func Overlay(base Tree, patch Tree) Tree {
	result := make(Tree, len(base)+len(patch))
	for k, v := range base {
		result[k] = v
	}
	for k, pv := range patch {
		bObj, bOK := asObject(result[k])
		pObj, pOK := asObject(pv)
		if bOK && pOK && bObj != nil && pObj != nil {
			result[k] = Overlay(bObj, pObj)
			continue
		}
		result[k] = Normalize(pv)
	}
	return result
}

// Clone deep-copies nested objects and slices of t.
func Clone(t Tree) Tree {
	if t == nil {
		return nil
	}
	out := make(Tree, len(t))
	for k, v := range t {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	if obj, ok := asObject(v); ok {
		return Clone(obj)
	}
	if list, ok := v.([]any); ok && list != nil {
		cp := make([]any, len(list))
		for i := range list {
			cp[i] = cloneValue(list[i])
		}
		return cp
	}
	return v
}

// asObject reports whether v is a map usable as a tree. YAML documents
// decoded into interface values carry map[any]any for nested objects; their
// keys are converted with fmt.Sprint.
func asObject(v any) (Tree, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(Tree, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	default:
		return nil, false
	}
}

// Normalize rewrites every map[any]any inside v into a Tree so the result
// can be encoded as JSON. YAML keys such as `1:` or `true:` become "1" and
// "true".
func Normalize(v any) any {
	switch m := v.(type) {
	case map[string]any:
		if m == nil {
			return m
		}
		out := make(Tree, len(m))
		for k, val := range m {
			out[k] = Normalize(val)
		}
		return out
	case map[any]any:
		out := make(Tree, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = Normalize(val)
		}
		return out
	case []any:
		if m == nil {
			return m
		}
		out := make([]any, len(m))
		for i := range m {
			out[i] = Normalize(m[i])
		}
		return out
	default:
		return v
	}
}

// isEmpty is the "no override" test: nil or the empty string.
func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok && s == "" {
		return true
	}
	if m, ok := v.(map[string]any); ok && m == nil {
		return true
	}
	if l, ok := v.([]any); ok && l == nil {
		return true
	}
	return false
}
