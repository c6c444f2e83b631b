package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/groundwork-iac/groundwork/internal/ir"
)

// ExpandResources flattens count and forEach declarations into concrete
// resource instances. A count of zero drops the resource entirely; its
// address is returned in disabled so the graph builder can fail fast
// when something still references it.
func ExpandResources(resources []*ir.Resource) (expanded []*ir.Resource, disabled map[string]bool) {
	disabled = make(map[string]bool)

	for _, res := range resources {
		switch {
		case res.Count != nil:
			n := *res.Count
			if n <= 0 {
				disabled[res.Addr()] = true
				continue
			}
			for i := 0; i < n; i++ {
				clone := cloneResource(res)
				clone.Count = nil
				clone.Name = fmt.Sprintf("%s[%d]", res.Name, i)
				clone.Properties = substituteAll(clone.Properties, map[string]string{
					"${count.index}": fmt.Sprintf("%d", i),
				})
				expanded = append(expanded, clone)
			}
		case len(res.ForEach) > 0:
			for _, key := range sortedKeys(res.ForEach) {
				clone := cloneResource(res)
				clone.ForEach = nil
				clone.Name = fmt.Sprintf("%s[%q]", res.Name, key)
				clone.Properties = substituteAll(clone.Properties, map[string]string{
					"${each.key}":   key,
					"${each.value}": fmt.Sprintf("%v", res.ForEach[key]),
				})
				expanded = append(expanded, clone)
			}
		default:
			expanded = append(expanded, res)
		}
	}

	return expanded, disabled
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func cloneResource(res *ir.Resource) *ir.Resource {
	clone := &ir.Resource{
		Type:     res.Type,
		Name:     res.Name,
		Provider: res.Provider,
		Timeout:  res.Timeout,
	}
	if res.Count != nil {
		n := *res.Count
		clone.Count = &n
	}
	if res.Lifecycle != nil {
		clone.Lifecycle = &ir.Lifecycle{
			CreateBeforeDestroy: res.Lifecycle.CreateBeforeDestroy,
			PreventDestroy:      res.Lifecycle.PreventDestroy,
			IgnoreChanges:       append([]string{}, res.Lifecycle.IgnoreChanges...),
			Immutable:           append([]string{}, res.Lifecycle.Immutable...),
		}
	}
	clone.DependsOn = append([]string{}, res.DependsOn...)
	clone.Properties = deepCopyMap(res.Properties)
	return clone
}

func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	result := make(map[string]any, len(m))
	for k, v := range m {
		result[k] = deepCopyValue(v)
	}
	return result
}

func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		clone := make([]any, len(val))
		for i, item := range val {
			clone[i] = deepCopyValue(item)
		}
		return clone
	default:
		return v
	}
}

func substituteAll(props map[string]any, replacements map[string]string) map[string]any {
	result := make(map[string]any, len(props))
	for k, v := range props {
		result[k] = substituteValue(v, replacements)
	}
	return result
}

func substituteValue(v any, replacements map[string]string) any {
	switch val := v.(type) {
	case string:
		result := val
		for old, repl := range replacements {
			result = strings.ReplaceAll(result, old, repl)
		}
		return result
	case map[string]any:
		return substituteAll(val, replacements)
	case []any:
		result := make([]any, len(val))
		for i, item := range val {
			result[i] = substituteValue(item, replacements)
		}
		return result
	default:
		return v
	}
}
