package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/groundwork-iac/groundwork/internal/engine"
	"github.com/groundwork-iac/groundwork/internal/eval"
	"github.com/groundwork-iac/groundwork/internal/ir"
	"github.com/groundwork-iac/groundwork/internal/state"
)

// resolveWorkdir maps an optional positional argument to the project
// directory and entry point. A directory argument keeps the default
// main.pkl entry point; a file argument splits into its directory and base.
func resolveWorkdir(args []string) (wd, entryPoint string, err error) {
	wd, err = os.Getwd()
	if err != nil {
		return "", "", fmt.Errorf("failed to get working directory: %w", err)
	}
	entryPoint = "main.pkl"

	if len(args) > 0 {
		absPath, err := filepath.Abs(args[0])
		if err != nil {
			return "", "", fmt.Errorf("failed to resolve path %s: %w", args[0], err)
		}

		info, err := os.Stat(absPath)
		if err != nil {
			return "", "", fmt.Errorf("failed to stat path %s: %w", args[0], err)
		}

		if info.IsDir() {
			wd = absPath
		} else {
			wd = filepath.Dir(absPath)
			entryPoint = filepath.Base(absPath)
		}
	}
	return wd, entryPoint, nil
}

// loadDesiredConfig evaluates the entry point and resolves declared
// variables. The returned slice holds resolved sensitive values for
// redaction downstream.
func loadDesiredConfig(ctx context.Context, wd, entryPoint string, properties, vars map[string]string) (*ir.Config, []string, error) {
	evaluator := eval.NewEvaluator(wd)

	cfg, err := evaluator.LoadConfig(ctx, entryPoint, properties)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	values, sensitive, err := eval.ResolveVariables(cfg, vars)
	if err != nil {
		return nil, nil, err
	}
	eval.SubstituteVariables(cfg, values)

	return cfg, sensitive, nil
}

// stateStore abstracts local and remote state so commands don't care
// which one is configured.
type stateStore interface {
	Read(ctx context.Context) (*ir.State, error)
	Write(ctx context.Context, s *ir.State) error
	Lock(ctx context.Context) error
	Unlock(ctx context.Context) error
}

// lockRetryInterval is how often a contended lock is retried while
// --lock-wait has time left. Shortened in tests.
var lockRetryInterval = 2 * time.Second

// localStore adapts the file-based manager to the stateStore interface.
type localStore struct {
	mgr *state.Manager
}

func (l *localStore) Read(ctx context.Context) (*ir.State, error)  { return l.mgr.Read() }
func (l *localStore) Write(ctx context.Context, s *ir.State) error { return l.mgr.Write(s) }
func (l *localStore) Unlock(ctx context.Context) error             { return l.mgr.Unlock() }

// Lock waits out short-lived contention instead of failing on first
// contact; the wait is bounded by --lock-wait.
func (l *localStore) Lock(ctx context.Context) error {
	wait := lockWait
	if wait <= 0 {
		return l.mgr.Lock()
	}
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	return l.mgr.LockWithRetry(ctx, lockRetryInterval)
}

// remoteStore adds the same bounded lock retry to a remote backend that
// the local store gets from LockWithRetry.
type remoteStore struct {
	state.Backend
}

func (r *remoteStore) Lock(ctx context.Context) error {
	wait := lockWait
	if wait <= 0 {
		return r.Backend.Lock(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	for {
		err := r.Backend.Lock(ctx)
		if err == nil {
			return nil
		}
		var lockErr *state.LockError
		if !errors.As(err, &lockErr) {
			return err
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("timed out waiting for state lock: %w", err)
		case <-time.After(lockRetryInterval):
		}
	}
}

// newStateStore builds the configured state store for a project
// directory: the S3 backend when --backend s3 is set, the local file
// manager otherwise.
func newStateStore(wd string) (stateStore, error) {
	if backendType != "" && backendType != "local" {
		backend, err := state.NewBackend(&state.BackendConfig{
			Type:   backendType,
			Config: backendConfig,
		})
		if err != nil {
			return nil, err
		}
		return &remoteStore{Backend: backend}, nil
	}

	path := statePath
	if path == "" {
		path = filepath.Join(wd, ".groundwork", "state.json")
	} else if !filepath.IsAbs(path) {
		path = filepath.Join(wd, path)
	}
	return &localStore{mgr: state.NewManager(path)}, nil
}

const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
)

func actionSymbol(action ir.Action) (symbol, color string) {
	switch action {
	case ir.ActionCreate:
		return "+", colorGreen
	case ir.ActionDelete:
		return "-", colorRed
	case ir.ActionReplace:
		return "-/+", colorYellow
	case ir.ActionUpdate:
		return "~", colorYellow
	default:
		return " ", colorReset
	}
}

// renderPlanChanges prints the detailed change list for a plan.
func renderPlanChanges(plan *ir.Plan) {
	for _, change := range plan.Changes {
		symbol, color := actionSymbol(change.Action)

		var resourceType, resourceName string
		if change.Desired != nil {
			resourceType = change.Desired.Type
			resourceName = change.Desired.Name
		} else if change.Prior != nil {
			resourceType = change.Prior.Type
			resourceName = change.Prior.Name
		}

		fmt.Printf("\n%s  # %s will be %s%s\n", color, change.Address, change.Action, colorReset)
		fmt.Printf("%s  %s resource %q %q {%s\n", color, symbol, resourceType, resourceName, colorReset)
		renderPropertyDiff(change)
		fmt.Printf("%s    }%s\n", color, colorReset)
	}
}

func renderPropertyDiff(change *ir.ResourceChange) {
	for key, diff := range change.Diff {
		switch diff.Action {
		case "create":
			fmt.Printf("%s      + %s = %v%s\n", colorGreen, key, formatValue(diff.After), colorReset)
		case "delete":
			fmt.Printf("%s      - %s = %v%s\n", colorRed, key, formatValue(diff.Before), colorReset)
		case "update":
			marker := ""
			if diff.ForcesReplacement {
				marker = " # forces replacement"
			}
			fmt.Printf("%s      ~ %s = %v -> %v%s%s\n", colorYellow, key, formatValue(diff.Before), formatValue(diff.After), marker, colorReset)
		default:
			fmt.Printf("        %s = %v\n", key, formatValue(diff.After))
		}
	}
}

// formatValue returns a human-readable representation of a value.
func formatValue(v any) string {
	if v == nil {
		return "null"
	}
	switch val := v.(type) {
	case string:
		return fmt.Sprintf("%q", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// renderPlanSummary prints the plan summary counts.
func renderPlanSummary(plan *ir.Plan) {
	fmt.Println("\nPlan Summary:")
	fmt.Printf("  Create:  %d\n", plan.Summary.Create)
	fmt.Printf("  Update:  %d\n", plan.Summary.Update)
	fmt.Printf("  Delete:  %d\n", plan.Summary.Delete)
	fmt.Printf("  Replace: %d\n", plan.Summary.Replace)
	fmt.Printf("  NoOp:    %d\n", plan.Summary.NoOp)
}

// progressCallback prints per-resource apply events as they happen.
func progressCallback(event engine.ApplyEvent) {
	switch event.Status {
	case "started":
		fmt.Printf("%s: %s...\n", event.Address, actionVerb(event.Action))
	case "completed":
		fmt.Printf("%s: %s complete (%s)\n", event.Address, actionVerb(event.Action), event.Duration.Round(time.Millisecond))
	case "failed":
		fmt.Printf("%s%s: failed: %v%s\n", colorRed, event.Address, event.Error, colorReset)
	case "skipped":
		if event.Error != nil {
			fmt.Printf("%s%s: skipped: %v%s\n", colorYellow, event.Address, event.Error, colorReset)
		} else {
			fmt.Printf("%s%s: skipped%s\n", colorYellow, event.Address, colorReset)
		}
	}
}

func actionVerb(action ir.Action) string {
	switch action {
	case ir.ActionCreate:
		return "creating"
	case ir.ActionUpdate:
		return "updating"
	case ir.ActionReplace:
		return "replacing"
	case ir.ActionDelete:
		return "destroying"
	default:
		return "applying"
	}
}

// renderApplySummary prints the outcome counts after an apply.
func renderApplySummary(results []*ir.Result) {
	sum := ir.Summarize(results)
	fmt.Printf("\nApply complete! Resources: %d added, %d changed, %d destroyed.\n",
		sum.Created, sum.Updated, sum.Destroyed)
	if sum.Skipped > 0 || sum.Failed > 0 {
		fmt.Printf("Incomplete: %d failed, %d skipped.\n", sum.Failed, sum.Skipped)
	}
}

// renderOutputs prints resolved output values.
func renderOutputs(outputs map[string]any) {
	if len(outputs) == 0 {
		return
	}
	fmt.Println("\nOutputs:")
	for k, v := range outputs {
		fmt.Printf("  %s = %v\n", k, formatValue(v))
	}
}
