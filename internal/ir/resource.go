package ir

import "fmt"

// Resource represents a single declared infrastructure object.
// Identity is (Type, Name); Type carries the provider-scoped resource
// kind, e.g. "aws:s3.Bucket".
type Resource struct {
	Type       string         `pkl:"type" json:"type"`
	Name       string         `pkl:"name" json:"name"`
	Provider   string         `pkl:"provider" json:"provider"`
	Count      *int           `pkl:"count" json:"count,omitempty"`
	ForEach    map[string]any `pkl:"forEach" json:"forEach,omitempty"`
	Lifecycle  *Lifecycle     `pkl:"lifecycle" json:"lifecycle,omitempty"`
	DependsOn  []string       `pkl:"dependsOn" json:"dependsOn,omitempty"`
	Timeout    string         `pkl:"timeout" json:"timeout,omitempty"`
	Properties map[string]any `pkl:"properties" json:"properties"`
}

// Lifecycle holds per-resource behavioral flags.
type Lifecycle struct {
	// CreateBeforeDestroy sequences the replacement Create ahead of the
	// Destroy of the old instance.
	CreateBeforeDestroy bool `pkl:"createBeforeDestroy" json:"createBeforeDestroy"`

	// PreventDestroy makes any plan that would destroy this resource an error.
	PreventDestroy bool `pkl:"preventDestroy" json:"preventDestroy"`

	// IgnoreChanges lists attributes whose drift never triggers an update.
	IgnoreChanges []string `pkl:"ignoreChanges" json:"ignoreChanges,omitempty"`

	// Immutable lists attributes that cannot be updated in place; a change
	// forces a Destroy+Create pair.
	Immutable []string `pkl:"immutable" json:"immutable,omitempty"`
}

// Addr returns the canonical address of a resource (type.name).
func (r *Resource) Addr() string {
	return fmt.Sprintf("%s.%s", r.Type, r.Name)
}

// Enabled reports whether the resource expands to at least one instance.
// A nil count means exactly one.
func (r *Resource) Enabled() bool {
	return r.Count == nil || *r.Count > 0
}
