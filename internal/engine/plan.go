package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/groundwork-iac/groundwork/internal/ir"
	"github.com/groundwork-iac/groundwork/internal/logging"
	"github.com/groundwork-iac/groundwork/internal/provider"
)

const defaultParallelism = 10

// Engine orchestrates planning and applying of resource changes.
type Engine struct {
	registry *provider.Registry

	// Parallelism bounds the worker pool during apply.
	Parallelism int

	// SensitiveValues holds resolved sensitive variable values; they are
	// digested before anything is written to state or shown in diffs.
	SensitiveValues []string
}

func NewEngine(registry *provider.Registry) *Engine {
	return &Engine{
		registry:    registry,
		Parallelism: defaultParallelism,
	}
}

// CreatePlan computes the ordered operation set that reconciles the
// desired configuration with the stored state. Creates and updates
// follow topological order; deletes follow reverse topological order.
func (e *Engine) CreatePlan(ctx context.Context, cfg *ir.Config, state *ir.State) (*ir.Plan, error) {
	logging.Debug("creating plan", "resources", len(cfg.Resources), "state_resources", len(state.Resources))

	plan := &ir.Plan{
		Metadata: &ir.PlanMetadata{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
		Changes: []*ir.ResourceChange{},
		Summary: &ir.PlanSummary{},
		Outputs: cfg.Outputs,
	}

	resources, disabled := ExpandResources(cfg.Resources)

	dag, err := BuildDAG(resources, disabled)
	if err != nil {
		return nil, err
	}

	for _, res := range resources {
		if err := e.registry.Configure(ctx, res.Provider, cfg.Providers[res.Provider]); err != nil {
			return nil, err
		}
	}

	byAddr := make(map[string]*ir.Resource, len(resources))
	for _, res := range resources {
		byAddr[res.Addr()] = res
	}

	replaced := make(map[string]bool)
	noopAddrs := make(map[string]bool)

	for _, addr := range dag.CreationOrder() {
		res := byAddr[addr]
		prior := state.Resource(addr)

		change, err := e.diffResource(res, prior)
		if err != nil {
			return nil, err
		}
		if change == nil {
			plan.Summary.NoOp++
			noopAddrs[addr] = true
			continue
		}

		change.Deps = dag.Dependencies(addr)
		plan.Changes = append(plan.Changes, change)

		switch change.Action {
		case ir.ActionCreate:
			plan.Summary.Create++
		case ir.ActionUpdate:
			plan.Summary.Update++
		case ir.ActionReplace:
			replaced[addr] = true
			plan.Summary.Replace++
		}
	}

	// A replaced resource gets a fresh backend identifier, so otherwise
	// unchanged dependents must be re-applied to pick up the rewired
	// reference once the new instance's attributes are known.
	for _, addr := range dag.CreationOrder() {
		if !noopAddrs[addr] {
			continue
		}
		res := byAddr[addr]
		for _, dep := range dag.Dependencies(addr) {
			if replaced[dep] {
				plan.Summary.NoOp--
				plan.Summary.Update++
				plan.Changes = append(plan.Changes, &ir.ResourceChange{
					Address: addr,
					Action:  ir.ActionUpdate,
					Desired: res,
					Prior:   state.Resource(addr),
					Deps:    dag.Dependencies(addr),
					Diff: map[string]*ir.PropertyDiff{
						dep: {Action: "update", Before: dep, After: dep},
					},
				})
				break
			}
		}
	}

	deletes, err := e.planDeletes(ctx, cfg.Providers, state, byAddr)
	if err != nil {
		return nil, err
	}
	plan.Changes = append(plan.Changes, deletes...)
	plan.Summary.Delete += len(deletes)

	return plan, nil
}

// diffResource computes the change for one desired resource against its
// stored record. Returns nil for a NoOp.
func (e *Engine) diffResource(res *ir.Resource, prior *ir.ResourceState) (*ir.ResourceChange, error) {
	addr := res.Addr()
	desired := e.normalizeProps(res.Properties)

	if prior == nil {
		return &ir.ResourceChange{
			Address: addr,
			Action:  ir.ActionCreate,
			Desired: res,
			Diff:    buildCreateDiff(desired),
		}, nil
	}

	if prior.Tainted {
		if err := checkPreventDestroy(res, addr); err != nil {
			return nil, err
		}
		return &ir.ResourceChange{
			Address: addr,
			Action:  ir.ActionReplace,
			Desired: res,
			Prior:   prior,
			Diff:    buildCreateDiff(desired),
		}, nil
	}

	if HashInputs(desired) == prior.InputsHash {
		return nil, nil
	}

	changed := changedAttributes(prior.Inputs, desired)
	changed = filterIgnored(res, changed)
	if len(changed) == 0 {
		return nil, nil
	}

	action := ir.ActionUpdate
	if res.Lifecycle != nil {
		for attr := range changed {
			if contains(res.Lifecycle.Immutable, attr) {
				changed[attr].ForcesReplacement = true
				action = ir.ActionReplace
			}
		}
	}
	if action == ir.ActionReplace {
		if err := checkPreventDestroy(res, addr); err != nil {
			return nil, err
		}
	}

	return &ir.ResourceChange{
		Address: addr,
		Action:  action,
		Desired: res,
		Prior:   prior,
		Diff:    changed,
	}, nil
}

// planDeletes emits DELETE changes, in reverse topological order, for
// every stored resource missing from the desired set.
func (e *Engine) planDeletes(ctx context.Context, providerConfigs map[string]map[string]string, state *ir.State, desired map[string]*ir.Resource) ([]*ir.ResourceChange, error) {
	var orphans []*ir.ResourceState
	for _, res := range state.Resources {
		if _, ok := desired[res.Addr()]; !ok {
			orphans = append(orphans, res)
		}
	}
	if len(orphans) == 0 {
		return nil, nil
	}

	stateDag, err := BuildDAGFromState(state.Resources)
	if err != nil {
		return nil, err
	}

	orphanSet := make(map[string]*ir.ResourceState, len(orphans))
	for _, res := range orphans {
		if err := e.registry.Configure(ctx, res.Provider, providerConfigs[res.Provider]); err != nil {
			return nil, err
		}
		orphanSet[res.Addr()] = res
	}

	var changes []*ir.ResourceChange
	for _, addr := range stateDag.DestructionOrder() {
		prior, ok := orphanSet[addr]
		if !ok {
			continue
		}
		// A delete must wait for its dependents' deletes.
		var deps []string
		for _, dependent := range stateDag.Dependents(addr) {
			if _, isOrphan := orphanSet[dependent]; isOrphan {
				deps = append(deps, dependent)
			}
		}
		changes = append(changes, &ir.ResourceChange{
			Address: addr,
			Action:  ir.ActionDelete,
			Prior:   prior,
			Deps:    deps,
			Diff:    buildDeleteDiff(prior.Inputs),
		})
	}
	return changes, nil
}

func checkPreventDestroy(res *ir.Resource, addr string) error {
	if res.Lifecycle != nil && res.Lifecycle.PreventDestroy {
		return &ValidationError{
			Resource: addr,
			Detail:   "has preventDestroy set but the plan requires destruction",
		}
	}
	return nil
}

func filterIgnored(res *ir.Resource, changed map[string]*ir.PropertyDiff) map[string]*ir.PropertyDiff {
	if res.Lifecycle == nil || len(res.Lifecycle.IgnoreChanges) == 0 {
		return changed
	}
	filtered := make(map[string]*ir.PropertyDiff, len(changed))
	for attr, diff := range changed {
		if !contains(res.Lifecycle.IgnoreChanges, attr) {
			filtered[attr] = diff
		}
	}
	return filtered
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// changedAttributes compares prior and desired attribute maps.
func changedAttributes(prior, desired map[string]any) map[string]*ir.PropertyDiff {
	diff := make(map[string]*ir.PropertyDiff)

	keys := make(map[string]bool)
	for k := range prior {
		keys[k] = true
	}
	for k := range desired {
		keys[k] = true
	}

	for k := range keys {
		priorVal, inPrior := prior[k]
		desiredVal, inDesired := desired[k]

		switch {
		case !inPrior:
			diff[k] = &ir.PropertyDiff{After: desiredVal, Action: "create"}
		case !inDesired:
			diff[k] = &ir.PropertyDiff{Before: priorVal, Action: "delete"}
		case !valuesEqual(priorVal, desiredVal):
			diff[k] = &ir.PropertyDiff{Before: priorVal, After: desiredVal, Action: "update"}
		}
	}
	return diff
}

func valuesEqual(a, b any) bool {
	aj, _ := json.Marshal(a)
	bj, _ := json.Marshal(b)
	return string(aj) == string(bj)
}

func buildCreateDiff(props map[string]any) map[string]*ir.PropertyDiff {
	diff := make(map[string]*ir.PropertyDiff, len(props))
	for k, v := range props {
		diff[k] = &ir.PropertyDiff{After: v, Action: "create"}
	}
	return diff
}

func buildDeleteDiff(props map[string]any) map[string]*ir.PropertyDiff {
	diff := make(map[string]*ir.PropertyDiff, len(props))
	for k, v := range props {
		diff[k] = &ir.PropertyDiff{Before: v, Action: "delete"}
	}
	return diff
}

// redact replaces any occurrence of a sensitive value with its digest
// marker, so plans and state never carry the plaintext.
func (e *Engine) redact(v any) any {
	if len(e.SensitiveValues) == 0 {
		return v
	}
	switch val := v.(type) {
	case string:
		for _, secret := range e.SensitiveValues {
			if secret != "" && val == secret {
				return DigestValue(val)
			}
			if secret != "" && strings.Contains(val, secret) {
				val = strings.ReplaceAll(val, secret, DigestValue(secret))
			}
		}
		return val
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = e.redact(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = e.redact(item)
		}
		return out
	default:
		return v
	}
}

// DigestValue returns the irreversible marker stored in place of a
// sensitive value.
func DigestValue(v string) string {
	sum := sha256.Sum256([]byte(v))
	return "sha256:" + hex.EncodeToString(sum[:])
}

// HashInputs returns a stable hash over an attribute map, used as the
// last-applied fingerprint in state.
func HashInputs(props map[string]any) string {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		vj, _ := json.Marshal(props[k])
		fmt.Fprintf(h, "%s=%s;", k, vj)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// normalizeProps canonicalizes and redacts a property map, tolerating nil.
func (e *Engine) normalizeProps(props map[string]any) map[string]any {
	if props == nil {
		return map[string]any{}
	}
	return e.redact(normalizeValue(props)).(map[string]any)
}

// normalizeValue canonicalizes decoded property values so hashing and
// diffing see one representation.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case map[any]any:
		newMap := make(map[string]any, len(val))
		for k, item := range val {
			newMap[fmt.Sprintf("%v", k)] = normalizeValue(item)
		}
		return newMap
	case map[string]any:
		newMap := make(map[string]any, len(val))
		for k, item := range val {
			newMap[k] = normalizeValue(item)
		}
		return newMap
	case []any:
		newSlice := make([]any, len(val))
		for i, item := range val {
			newSlice[i] = normalizeValue(item)
		}
		return newSlice
	default:
		return val
	}
}
