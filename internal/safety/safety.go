// Package safety implements the defense-in-depth helpers from spec.md §4.12:
// rejecting prototype-pollution-class keys and deep-sanitizing untrusted
// JSON before it is merged into in-process maps (e.g. callTool params
// forwarded to the MCP layer).
package safety

// UnsafeKeys are rejected whenever untrusted JSON is merged into an
// in-process map, per spec.md §4.12.
var UnsafeKeys = map[string]bool{
	"__proto__":   true,
	"prototype":   true,
	"constructor": true,
}

// IsUnsafeKey reports whether key is one of the rejected prototype-
// pollution-class keys.
func IsUnsafeKey(key string) bool {
	return UnsafeKeys[key]
}

// Sanitize deep-copies v, dropping any UnsafeKeys from maps at every level,
// recursing into slices, and passing non-plain values (anything that isn't
// map[string]interface{} or []interface{}) through unchanged. Cycles can't
// occur in the output of encoding/json.Unmarshal (it only produces trees),
// so no identity-set bookkeeping is needed for that source; Sanitize still
// bounds recursion depth to guard against a maliciously deep input.
func Sanitize(v interface{}) interface{} {
	return sanitize(v, 0)
}

const maxDepth = 64

func sanitize(v interface{}, depth int) interface{} {
	if depth > maxDepth {
		return nil
	}
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, child := range val {
			if IsUnsafeKey(k) {
				continue
			}
			out[k] = sanitize(child, depth+1)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, child := range val {
			out[i] = sanitize(child, depth+1)
		}
		return out
	default:
		return val
	}
}

// SanitizeStringMap is a convenience wrapper for the common case of
// sanitizing a map[string]string (e.g. server env overlays), where unsafe
// keys are simply the same reserved names.
func SanitizeStringMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		if IsUnsafeKey(k) {
			continue
		}
		out[k] = v
	}
	return out
}
