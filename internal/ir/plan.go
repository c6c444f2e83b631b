package ir

// Action is the kind of operation a plan entry performs.
type Action string

const (
	ActionCreate  Action = "CREATE"
	ActionUpdate  Action = "UPDATE"
	ActionReplace Action = "REPLACE"
	ActionDelete  Action = "DELETE"
	ActionNoOp    Action = "NOOP"
)

// Plan represents a calculated, ordered set of pending operations.
// Plans are ephemeral: computed, applied, discarded.
type Plan struct {
	Metadata *PlanMetadata     `json:"metadata"`
	Changes  []*ResourceChange `json:"changes"`
	Summary  *PlanSummary      `json:"summary"`
	Outputs  map[string]any    `json:"outputs,omitempty"`
}

// HasChanges reports whether the plan contains any non-NoOp operation.
func (p *Plan) HasChanges() bool {
	return len(p.Changes) > 0
}

type PlanMetadata struct {
	Timestamp string `json:"timestamp"`
}

// ResourceChange binds one operation to one resource, carrying the
// attribute diff and the dependency edges used for execution ordering.
type ResourceChange struct {
	Address string                   `json:"address"`
	Action  Action                   `json:"action"`
	Desired *Resource                `json:"resource,omitempty"`
	Prior   *ResourceState           `json:"prior,omitempty"`
	Diff    map[string]*PropertyDiff `json:"diff,omitempty"`

	// Deps are the addresses of changes in the same plan that must
	// complete before this one starts. For deletes the edges point the
	// other way: a delete waits for its dependents' deletes.
	Deps []string `json:"deps,omitempty"`
}

type PropertyDiff struct {
	Before            any    `json:"before,omitempty"`
	After             any    `json:"after,omitempty"`
	ForcesReplacement bool   `json:"forcesReplacement,omitempty"`
	Action            string `json:"action"` // "create", "update", "delete"
}

type PlanSummary struct {
	Create  int `json:"create"`
	Update  int `json:"update"`
	Delete  int `json:"delete"`
	Replace int `json:"replace"`
	NoOp    int `json:"noop"`
}

// ResultStatus is the outcome classification of applying one change.
type ResultStatus string

const (
	ResultApplied          ResultStatus = "applied"
	ResultFailed           ResultStatus = "failed"
	ResultSkipped          ResultStatus = "skipped"
	ResultDependencyFailed ResultStatus = "dependency-failed"
)

// Result records the outcome of applying one plan entry.
type Result struct {
	Address string       `json:"address"`
	Action  Action       `json:"action"`
	Status  ResultStatus `json:"status"`
	Err     error        `json:"-"`
}

// ApplySummary aggregates results for user-facing reporting.
type ApplySummary struct {
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Destroyed int `json:"destroyed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// Summarize folds a result list into counts.
func Summarize(results []*Result) *ApplySummary {
	sum := &ApplySummary{}
	for _, r := range results {
		switch r.Status {
		case ResultApplied:
			switch r.Action {
			case ActionCreate, ActionReplace:
				sum.Created++
			case ActionUpdate:
				sum.Updated++
			case ActionDelete:
				sum.Destroyed++
			}
		case ResultFailed:
			sum.Failed++
		case ResultSkipped, ResultDependencyFailed:
			sum.Skipped++
		}
	}
	return sum
}
