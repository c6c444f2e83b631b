package cli

import (
	"fmt"

	"github.com/groundwork-iac/groundwork/internal/engine"
	"github.com/groundwork-iac/groundwork/internal/provider"
	"github.com/spf13/cobra"
)

var (
	planProperties map[string]string
	planVars       map[string]string
)

var planCmd = &cobra.Command{
	Use:   "plan [path]",
	Short: "Show what an apply would change",
	Long: `Computes the ordered set of operations needed to reconcile the
declared configuration with the stored state, without touching anything.

Exit codes: 0 when nothing would change, 2 when changes are pending,
1 on error.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringToStringVarP(&planProperties, "prop", "D", nil, "Set external properties (format: key=value)")
	planCmd.Flags().StringToStringVar(&planVars, "var", nil, "Override declared variables (format: name=value)")
}

func runPlan(cmd *cobra.Command, args []string) error {
	wd, entryPoint, err := resolveWorkdir(args)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	fmt.Print("Loading configuration... ")
	cfg, sensitive, err := loadDesiredConfig(ctx, wd, entryPoint, planProperties, planVars)
	if err != nil {
		fmt.Println("FAILED")
		return err
	}
	fmt.Println("OK")

	store, err := newStateStore(wd)
	if err != nil {
		return err
	}
	// Planning holds the lock too, so a plan never races a concurrent
	// apply into showing half-written state.
	if err := store.Lock(ctx); err != nil {
		return err
	}
	defer store.Unlock(ctx)

	currentState, err := store.Read(ctx)
	if err != nil {
		return fmt.Errorf("failed to read state: %w", err)
	}

	eng := engine.NewEngine(provider.NewRegistry())
	eng.Parallelism = parallelism
	eng.SensitiveValues = sensitive

	fmt.Print("Calculating plan... ")
	plan, err := eng.CreatePlan(ctx, cfg, currentState)
	if err != nil {
		fmt.Println("FAILED")
		return err
	}
	fmt.Println("OK")

	if !plan.HasChanges() {
		fmt.Println("\nNo changes. Infrastructure is up-to-date.")
		return nil
	}

	fmt.Println("\nGroundwork will perform the following actions:")
	renderPlanChanges(plan)
	renderPlanSummary(plan)

	exitStatus = 2
	return nil
}
