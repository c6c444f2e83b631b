package ir

import "fmt"

// State represents the persisted record of previously-applied resources.
// It is owned by the state manager and mutated only by the executor
// after a successful operation.
type State struct {
	Version   int              `json:"version"`
	Serial    int              `json:"serial"`
	Lineage   string           `json:"lineage"`
	Resources []*ResourceState `json:"resources"`
	Outputs   map[string]any   `json:"outputs,omitempty"`
}

// ResourceState is the stored record for one applied resource.
type ResourceState struct {
	Type         string         `json:"type"`
	Name         string         `json:"name"`
	Provider     string         `json:"provider"`
	Inputs       map[string]any `json:"inputs"`
	InputsHash   string         `json:"inputsHash"`
	Outputs      map[string]any `json:"outputs"` // backend-assigned values (id, arn, ...)
	Dependencies []string       `json:"dependencies,omitempty"`
	Tainted      bool           `json:"tainted,omitempty"`
}

// Addr returns the canonical address of the stored resource (type.name).
func (r *ResourceState) Addr() string {
	return fmt.Sprintf("%s.%s", r.Type, r.Name)
}

// NewState returns an empty state at version 1, serial 0.
func NewState() *State {
	return &State{Version: 1}
}

// Resource returns the stored record at addr, or nil.
func (s *State) Resource(addr string) *ResourceState {
	for _, res := range s.Resources {
		if res.Addr() == addr {
			return res
		}
	}
	return nil
}

// Put inserts or replaces the stored record for res.Addr().
func (s *State) Put(res *ResourceState) {
	for i, existing := range s.Resources {
		if existing.Addr() == res.Addr() {
			s.Resources[i] = res
			return
		}
	}
	s.Resources = append(s.Resources, res)
}

// Remove deletes the stored record at addr, if present.
func (s *State) Remove(addr string) {
	for i, res := range s.Resources {
		if res.Addr() == addr {
			s.Resources = append(s.Resources[:i], s.Resources[i+1:]...)
			return
		}
	}
}
