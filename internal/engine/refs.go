package engine

import (
	"fmt"
	"strings"

	"github.com/groundwork-iac/groundwork/internal/ir"
)

// refScheme prefixes a symbolic reference to another resource's
// attribute: ref://<type>.<name>/<attribute>. References are stored
// unresolved in the model and resolved late, once the target's
// backend-assigned attributes are known.
const refScheme = "ref://"

// extractRefs walks a property value and collects every ref:// token.
func extractRefs(v any) []string {
	var refs []string
	switch val := v.(type) {
	case string:
		if strings.HasPrefix(val, refScheme) {
			refs = append(refs, val)
		}
	case map[string]any:
		for _, v := range val {
			refs = append(refs, extractRefs(v)...)
		}
	case map[any]any:
		for _, v := range val {
			refs = append(refs, extractRefs(v)...)
		}
	case []any:
		for _, v := range val {
			refs = append(refs, extractRefs(v)...)
		}
	}
	return refs
}

// splitRef parses a ref:// token into the target address and attribute.
// ref://aws:s3.Bucket.data/arn -> ("aws:s3.Bucket.data", "arn").
func splitRef(ref string) (addr, attr string, ok bool) {
	if !strings.HasPrefix(ref, refScheme) {
		return "", "", false
	}
	path := ref[len(refScheme):]
	i := strings.LastIndex(path, "/")
	if i <= 0 || i == len(path)-1 {
		return "", "", false
	}
	return path[:i], path[i+1:], true
}

// resolveRefs substitutes every ref:// token in val with the referenced
// resource's attribute from state, preferring backend outputs over
// declared inputs. A token whose target has applied but lacks the
// attribute is an error rather than a silent pass-through.
func resolveRefs(val any, state *ir.State) (any, error) {
	switch v := val.(type) {
	case string:
		if !strings.HasPrefix(v, refScheme) {
			return v, nil
		}
		addr, attr, ok := splitRef(v)
		if !ok {
			return nil, fmt.Errorf("malformed reference %q", v)
		}
		res := state.Resource(addr)
		if res == nil {
			return nil, fmt.Errorf("reference %q: %s not found in state", v, addr)
		}
		if out, ok := res.Outputs[attr]; ok {
			return out, nil
		}
		if in, ok := res.Inputs[attr]; ok {
			return in, nil
		}
		return nil, fmt.Errorf("reference %q: %s has no attribute %q", v, addr, attr)
	case map[string]any:
		resolved := make(map[string]any, len(v))
		for k, item := range v {
			r, err := resolveRefs(item, state)
			if err != nil {
				return nil, err
			}
			resolved[k] = r
		}
		return resolved, nil
	case []any:
		resolved := make([]any, len(v))
		for i, item := range v {
			r, err := resolveRefs(item, state)
			if err != nil {
				return nil, err
			}
			resolved[i] = r
		}
		return resolved, nil
	default:
		return v, nil
	}
}
