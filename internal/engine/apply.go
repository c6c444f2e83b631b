package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/groundwork-iac/groundwork/internal/ir"
	"github.com/groundwork-iac/groundwork/internal/logging"
	"github.com/groundwork-iac/groundwork/pkg/provider"
)

// ApplyEvent reports progress for one plan entry during apply.
type ApplyEvent struct {
	Address  string
	Action   ir.Action
	Status   string // "started", "completed", "failed", "skipped"
	Duration time.Duration
	Error    error
}

// ApplyCallback is invoked for each apply event if set.
type ApplyCallback func(event ApplyEvent)

// ApplyPlan executes a plan against the backend with a bounded worker
// pool. Entries with no unmet dependency run concurrently; an entry
// never starts before all of its dependency edges completed
// successfully. On a failure the resource and its transitive dependents
// are skipped as dependency-failed while independent branches continue.
// Completed results are always folded into state before returning, so a
// re-run resumes from accurate partial state.
func (e *Engine) ApplyPlan(ctx context.Context, plan *ir.Plan, state *ir.State, callback ApplyCallback) ([]*ir.Result, error) {
	var mu sync.Mutex // guards state

	emit := func(event ApplyEvent) {
		if callback != nil {
			callback(event)
		}
	}

	var createUpdates, deletes []*ir.ResourceChange
	for _, change := range plan.Changes {
		if change.Action == ir.ActionDelete {
			deletes = append(deletes, change)
		} else {
			createUpdates = append(createUpdates, change)
		}
	}

	results := e.applyGroup(ctx, createUpdates, state, &mu, emit)

	// Deletes run after the create/update wave. Their dependency edges
	// already point at dependents' deletes, giving reverse order.
	results = append(results, e.applyGroup(ctx, deletes, state, &mu, emit)...)

	state.Serial++
	state.Outputs = e.resolveOutputs(plan.Outputs, state)

	var errs []error
	for _, r := range results {
		if r.Status == ir.ResultFailed {
			errs = append(errs, r.Err)
		}
	}
	if len(errs) > 0 {
		return results, fmt.Errorf("%d resource(s) failed: %w", len(errs), errors.Join(errs...))
	}
	return results, nil
}

// applyGroup executes one wave of changes concurrently, serializing
// entries that share a dependency edge.
func (e *Engine) applyGroup(ctx context.Context, changes []*ir.ResourceChange, state *ir.State, mu *sync.Mutex, emit func(ApplyEvent)) []*ir.Result {
	if len(changes) == 0 {
		return nil
	}

	pending := make(map[string]*ir.ResourceChange, len(changes))
	for _, c := range changes {
		pending[c.Address] = c
	}

	// Dependency edges restricted to changes in this wave; everything
	// else is already settled.
	deps := make(map[string][]string, len(changes))
	for _, c := range changes {
		for _, d := range c.Deps {
			if _, ok := pending[d]; ok {
				deps[c.Address] = append(deps[c.Address], d)
			}
		}
	}

	parallelism := e.Parallelism
	if parallelism <= 0 {
		parallelism = defaultParallelism
	}

	var (
		trackMu   sync.Mutex
		trackCond = sync.NewCond(&trackMu)
		completed = make(map[string]bool)
		failed    = make(map[string]string) // address -> failed dependency (or itself)
		skipped   = make(map[string]bool)   // cancelled before starting; not a failure
		results   []*ir.Result
		sem       = make(chan struct{}, parallelism)
		wg        sync.WaitGroup
	)

	record := func(r *ir.Result) {
		results = append(results, r)
	}

	for _, change := range changes {
		wg.Add(1)
		go func(c *ir.ResourceChange) {
			defer wg.Done()

			trackMu.Lock()
			for {
				failedDep := ""
				skippedDep := false
				ready := true
				for _, dep := range deps[c.Address] {
					if _, bad := failed[dep]; bad {
						failedDep = dep
						break
					}
					if skipped[dep] {
						skippedDep = true
						break
					}
					if !completed[dep] {
						ready = false
						break
					}
				}
				if failedDep != "" {
					failed[c.Address] = failedDep
					err := &DependencyFailedError{Resource: c.Address, Dependency: failedDep}
					record(&ir.Result{Address: c.Address, Action: c.Action, Status: ir.ResultDependencyFailed, Err: err})
					trackMu.Unlock()
					emit(ApplyEvent{Address: c.Address, Action: c.Action, Status: "skipped", Error: err})
					e.taint(c.Address, state, mu)
					trackCond.Broadcast()
					return
				}
				if skippedDep {
					// The dependency was never attempted, so nothing here is
					// suspect: skip without tainting.
					skipped[c.Address] = true
					record(&ir.Result{Address: c.Address, Action: c.Action, Status: ir.ResultSkipped})
					trackMu.Unlock()
					emit(ApplyEvent{Address: c.Address, Action: c.Action, Status: "skipped"})
					trackCond.Broadcast()
					return
				}
				if ready {
					break
				}
				trackCond.Wait()
			}
			trackMu.Unlock()

			// A cancelled run skips everything not yet started; in-flight
			// backend calls are never interrupted mid-write.
			if ctx.Err() != nil {
				trackMu.Lock()
				skipped[c.Address] = true
				record(&ir.Result{Address: c.Address, Action: c.Action, Status: ir.ResultSkipped})
				trackMu.Unlock()
				emit(ApplyEvent{Address: c.Address, Action: c.Action, Status: "skipped"})
				trackCond.Broadcast()
				return
			}

			sem <- struct{}{}
			defer func() { <-sem }()

			start := time.Now()
			emit(ApplyEvent{Address: c.Address, Action: c.Action, Status: "started"})

			err := e.executeChange(ctx, c, state, mu)

			trackMu.Lock()
			if err != nil {
				failed[c.Address] = c.Address
				record(&ir.Result{Address: c.Address, Action: c.Action, Status: ir.ResultFailed, Err: err})
			} else {
				completed[c.Address] = true
				record(&ir.Result{Address: c.Address, Action: c.Action, Status: ir.ResultApplied})
			}
			trackMu.Unlock()

			if err != nil {
				emit(ApplyEvent{Address: c.Address, Action: c.Action, Status: "failed", Duration: time.Since(start), Error: err})
				e.taint(c.Address, state, mu)
			} else {
				emit(ApplyEvent{Address: c.Address, Action: c.Action, Status: "completed", Duration: time.Since(start)})
			}
			trackCond.Broadcast()
		}(change)
	}

	wg.Wait()
	return results
}

// executeChange applies one plan entry with per-resource timeout and
// transient-error retry.
func (e *Engine) executeChange(ctx context.Context, change *ir.ResourceChange, state *ir.State, mu *sync.Mutex) error {
	addr := change.Address
	logging.Debug("applying change", "address", addr, "action", change.Action)

	timeout := DefaultTimeout
	if change.Desired != nil && change.Desired.Timeout != "" {
		if d, err := time.ParseDuration(change.Desired.Timeout); err == nil && d > 0 {
			timeout = d
		}
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	prov, err := e.providerFor(change)
	if err != nil {
		return err
	}

	switch change.Action {
	case ir.ActionCreate:
		return e.executeCreate(ctx, prov, change, state, mu)
	case ir.ActionUpdate:
		return e.executeUpdate(ctx, prov, change, state, mu)
	case ir.ActionReplace:
		return e.executeReplace(ctx, prov, change, state, mu)
	case ir.ActionDelete:
		return e.executeDelete(ctx, prov, change, state, mu)
	default:
		return nil
	}
}

func (e *Engine) providerFor(change *ir.ResourceChange) (provider.Interface, error) {
	name := ""
	if change.Desired != nil {
		name = change.Desired.Provider
	} else if change.Prior != nil {
		name = change.Prior.Provider
	}
	return e.registry.Get(name)
}

// desiredConfigJSON resolves symbolic references against current state
// and marshals the resulting attribute map. State access is serialized
// because upstream changes mutate it concurrently.
func (e *Engine) desiredConfigJSON(change *ir.ResourceChange, state *ir.State, mu *sync.Mutex) ([]byte, map[string]any, error) {
	inputs := e.normalizeProps(change.Desired.Properties)

	mu.Lock()
	resolved, err := resolveRefs(normalizeValue(change.Desired.Properties), state)
	mu.Unlock()
	if err != nil {
		return nil, nil, &BackendError{Resource: change.Address, Operation: string(change.Action), Err: err}
	}

	raw, err := json.Marshal(resolved)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal properties for %s: %w", change.Address, err)
	}
	return raw, inputs, nil
}

func (e *Engine) executeCreate(ctx context.Context, prov provider.Interface, change *ir.ResourceChange, state *ir.State, mu *sync.Mutex) error {
	configJSON, inputs, err := e.desiredConfigJSON(change, state, mu)
	if err != nil {
		return err
	}

	var resp *provider.CreateResponse
	err = RetryWithBackoff(ctx, DefaultRetryPolicy(), func() error {
		var createErr error
		resp, createErr = prov.Create(ctx, &provider.CreateRequest{
			Type:       change.Desired.Type,
			Name:       change.Desired.Name,
			ConfigJSON: configJSON,
		})
		return createErr
	}, IsTransientError)
	if err != nil {
		return &BackendError{Resource: change.Address, Operation: "create", Err: err}
	}

	return e.storeResult(change, inputs, resp.StateJSON, state, mu)
}

func (e *Engine) executeUpdate(ctx context.Context, prov provider.Interface, change *ir.ResourceChange, state *ir.State, mu *sync.Mutex) error {
	configJSON, inputs, err := e.desiredConfigJSON(change, state, mu)
	if err != nil {
		return err
	}

	var priorJSON []byte
	mu.Lock()
	if prior := state.Resource(change.Address); prior != nil && prior.Outputs != nil {
		priorJSON, _ = json.Marshal(prior.Outputs)
	}
	mu.Unlock()

	var resp *provider.UpdateResponse
	err = RetryWithBackoff(ctx, DefaultRetryPolicy(), func() error {
		var updateErr error
		resp, updateErr = prov.Update(ctx, &provider.UpdateRequest{
			Type:           change.Desired.Type,
			Name:           change.Desired.Name,
			ConfigJSON:     configJSON,
			PriorStateJSON: priorJSON,
		})
		return updateErr
	}, IsTransientError)
	if err != nil {
		return &BackendError{Resource: change.Address, Operation: "update", Err: err}
	}

	return e.storeResult(change, inputs, resp.StateJSON, state, mu)
}

// executeReplace performs a Destroy+Create pair. With createBeforeDestroy
// the new instance is created first and the old one is deleted only
// after the create completed; dependents pick up the new identifier
// through their unresolved references.
func (e *Engine) executeReplace(ctx context.Context, prov provider.Interface, change *ir.ResourceChange, state *ir.State, mu *sync.Mutex) error {
	cbd := change.Desired.Lifecycle != nil && change.Desired.Lifecycle.CreateBeforeDestroy

	if cbd {
		if err := e.executeCreate(ctx, prov, change, state, mu); err != nil {
			return err
		}
		if change.Prior != nil {
			if err := e.deletePrior(ctx, prov, change.Address, change.Prior); err != nil {
				// The new instance is live and recorded; losing the old
				// one only leaks a remote object, so surface but keep state.
				return &BackendError{Resource: change.Address, Operation: "destroy (replaced instance)", Err: err}
			}
		}
		return nil
	}

	if change.Prior != nil {
		if err := e.deletePrior(ctx, prov, change.Address, change.Prior); err != nil {
			return &BackendError{Resource: change.Address, Operation: "delete", Err: err}
		}
		mu.Lock()
		state.Remove(change.Address)
		mu.Unlock()
	}
	return e.executeCreate(ctx, prov, change, state, mu)
}

func (e *Engine) executeDelete(ctx context.Context, prov provider.Interface, change *ir.ResourceChange, state *ir.State, mu *sync.Mutex) error {
	if change.Prior == nil {
		return nil
	}
	if err := e.deletePrior(ctx, prov, change.Address, change.Prior); err != nil {
		return &BackendError{Resource: change.Address, Operation: "delete", Err: err}
	}
	mu.Lock()
	state.Remove(change.Address)
	mu.Unlock()
	return nil
}

func (e *Engine) deletePrior(ctx context.Context, prov provider.Interface, addr string, prior *ir.ResourceState) error {
	var currentJSON []byte
	if prior.Outputs != nil {
		currentJSON, _ = json.Marshal(prior.Outputs)
	}
	id := ""
	if v, ok := prior.Outputs["id"]; ok {
		id = fmt.Sprintf("%v", v)
	}

	return RetryWithBackoff(ctx, DefaultRetryPolicy(), func() error {
		_, deleteErr := prov.Delete(ctx, &provider.DeleteRequest{
			Type:             prior.Type,
			Name:             prior.Name,
			ID:               id,
			CurrentStateJSON: currentJSON,
		})
		return deleteErr
	}, IsTransientError)
}

// storeResult folds a successful create/update into state.
func (e *Engine) storeResult(change *ir.ResourceChange, inputs map[string]any, stateJSON []byte, state *ir.State, mu *sync.Mutex) error {
	var outputs map[string]any
	if len(stateJSON) > 0 {
		if err := json.Unmarshal(stateJSON, &outputs); err != nil {
			return fmt.Errorf("failed to unmarshal provider state for %s: %w", change.Address, err)
		}
	}

	mu.Lock()
	state.Put(&ir.ResourceState{
		Type:         change.Desired.Type,
		Name:         change.Desired.Name,
		Provider:     change.Desired.Provider,
		Inputs:       inputs,
		InputsHash:   HashInputs(inputs),
		Outputs:      outputs,
		Dependencies: change.Deps,
	})
	mu.Unlock()
	return nil
}

// taint marks a failed resource's stored record so the next plan
// replaces it instead of assuming it is healthy.
func (e *Engine) taint(addr string, state *ir.State, mu *sync.Mutex) {
	mu.Lock()
	defer mu.Unlock()
	if res := state.Resource(addr); res != nil {
		res.Tainted = true
	}
}

// resolveOutputs materializes declared outputs against the final state.
// An output whose reference cannot resolve (for example it names a
// resource disabled by a feature flag) becomes null rather than an error.
func (e *Engine) resolveOutputs(outputs map[string]any, state *ir.State) map[string]any {
	if len(outputs) == 0 {
		return nil
	}
	resolved := make(map[string]any, len(outputs))
	for k, v := range outputs {
		r, err := resolveRefs(v, state)
		if err != nil {
			logging.Debug("output unresolved, set to null", "output", k, "reason", err)
			resolved[k] = nil
			continue
		}
		resolved[k] = r
	}
	return resolved
}
