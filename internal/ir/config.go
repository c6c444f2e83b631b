package ir

// Config represents the top-level desired configuration for one run.
// It is recomputed from the declarations every run and never mutated
// after variable resolution.
type Config struct {
	Variables map[string]*Variable `pkl:"variables"`

	// Providers holds per-provider settings (region, profile) handed to
	// the backend adapter before its first operation.
	Providers map[string]map[string]string `pkl:"providers"`

	Resources []*Resource    `pkl:"resources"`
	Outputs   map[string]any `pkl:"outputs"`
}

// Variable declares a typed input with an optional default and
// validation predicates.
type Variable struct {
	Type        string   `pkl:"type"` // "string", "number", "bool"
	Description string   `pkl:"description"`
	Default     any      `pkl:"default"`
	Sensitive   bool     `pkl:"sensitive"`
	Enum        []string `pkl:"enum"`
	Min         *float64 `pkl:"min"`
	Max         *float64 `pkl:"max"`
	Pattern     string   `pkl:"pattern"`
}
