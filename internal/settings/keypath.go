package settings

import (
	"fmt"
	"strconv"
)

// ToKeyPath flattens a structural path into backend segments. Integers
// become their decimal form.
func ToKeyPath(path []any) ([]string, error) {
	if len(path) == 0 {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidKeyPath)
	}
	out := make([]string, 0, len(path))
	for i, seg := range path {
		switch v := seg.(type) {
		case string:
			out = append(out, v)
		case int:
			out = append(out, strconv.Itoa(v))
		case int32:
			out = append(out, strconv.FormatInt(int64(v), 10))
		case int64:
			out = append(out, strconv.FormatInt(v, 10))
		case uint:
			out = append(out, strconv.FormatUint(uint64(v), 10))
		default:
			return nil, fmt.Errorf("%w: segment %d has type %T", ErrInvalidKeyPath, i, seg)
		}
	}
	return out, nil
}

// ExtensionPath is the key path of an extension's enablement flag.
func ExtensionPath(extensionID string) []any {
	return []any{ExtensionsKey, extensionID}
}

// ApplyEdit returns a copy of contents with value set at keyPath. Missing
// objects along the path are created. A nil value deletes an object key and
// is distinct from false. Array elements are addressed by decimal index and
// must exist.
func ApplyEdit(contents map[string]any, keyPath []string, value any) (map[string]any, error) {
	if len(keyPath) == 0 {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidKeyPath)
	}
	root := cloneMap(contents)
	if root == nil {
		root = make(map[string]any)
	}

	var cur any = root
	for i, seg := range keyPath {
		last := i == len(keyPath)-1
		switch node := cur.(type) {
		case map[string]any:
			if last {
				if value == nil {
					delete(node, seg)
				} else {
					node[seg] = value
				}
				return root, nil
			}
			next, ok := node[seg]
			if !ok || next == nil {
				next = make(map[string]any)
				node[seg] = next
			}
			cur = next
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, fmt.Errorf("%w: index %q out of range at %d", ErrInvalidKeyPath, seg, i)
			}
			if last {
				node[idx] = value
				return root, nil
			}
			cur = node[idx]
		default:
			return nil, fmt.Errorf("%w: %q at %d is not an object or array", ErrInvalidKeyPath, seg, i)
		}
	}
	return root, nil
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneMap(val)
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return val
	}
}

// Merge folds the cascade into one settings object. Later subjects override
// earlier ones; nested objects are merged key by key.
func Merge(c Cascade) map[string]any {
	merged := make(map[string]any)
	for _, s := range c.Subjects {
		if s.LatestSettings == nil {
			continue
		}
		mergeInto(merged, s.LatestSettings.Contents)
	}
	return merged
}

func mergeInto(dst, src map[string]any) {
	for k, v := range src {
		srcMap, ok := v.(map[string]any)
		if !ok {
			dst[k] = cloneValue(v)
			continue
		}
		dstMap, ok := dst[k].(map[string]any)
		if !ok {
			dst[k] = cloneMap(srcMap)
			continue
		}
		mergeInto(dstMap, srcMap)
	}
}

// ExtensionState reports whether merged settings mention an extension and
// whether it is enabled.
func ExtensionState(merged map[string]any, extensionID string) (configured, enabled bool) {
	exts, ok := merged[ExtensionsKey].(map[string]any)
	if !ok {
		return false, false
	}
	v, ok := exts[extensionID]
	if !ok {
		return false, false
	}
	b, _ := v.(bool)
	return true, b
}
