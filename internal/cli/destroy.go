package cli

import (
	"fmt"

	"github.com/groundwork-iac/groundwork/internal/engine"
	"github.com/groundwork-iac/groundwork/internal/ir"
	"github.com/groundwork-iac/groundwork/internal/provider"
	"github.com/spf13/cobra"
)

var destroyAutoApprove bool

var destroyCmd = &cobra.Command{
	Use:   "destroy [path]",
	Short: "Destroy all managed infrastructure",
	Long: `Destroys every resource recorded in state, in reverse dependency
order: dependents go before the resources they depend on.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDestroy,
}

func init() {
	destroyCmd.Flags().BoolVar(&destroyAutoApprove, "auto-approve", false, "Skip interactive approval before destroying")
}

func runDestroy(cmd *cobra.Command, args []string) error {
	wd, _, err := resolveWorkdir(args)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	store, err := newStateStore(wd)
	if err != nil {
		return err
	}
	if err := store.Lock(ctx); err != nil {
		return err
	}
	defer store.Unlock(ctx)

	currentState, err := store.Read(ctx)
	if err != nil {
		return fmt.Errorf("failed to read state: %w", err)
	}

	if len(currentState.Resources) == 0 {
		fmt.Println("Nothing to destroy. State is empty.")
		return nil
	}

	eng := engine.NewEngine(provider.NewRegistry())
	eng.Parallelism = parallelism

	// An empty desired configuration plans a delete for every stored
	// resource, already ordered for teardown.
	plan, err := eng.CreatePlan(ctx, &ir.Config{}, currentState)
	if err != nil {
		return err
	}

	fmt.Println("Groundwork will destroy the following resources:")
	renderPlanChanges(plan)
	renderPlanSummary(plan)

	if !destroyAutoApprove {
		fmt.Print("\nDo you really want to destroy all resources? (y/n): ")
		var response string
		fmt.Scanln(&response)
		if response != "y" && response != "yes" {
			fmt.Println("Destroy cancelled.")
			return nil
		}
	}

	fmt.Printf("\nDestroying %d resources...\n\n", len(plan.Changes))

	results, applyErr := eng.ApplyPlan(ctx, plan, currentState, progressCallback)

	if err := store.Write(ctx, currentState); err != nil {
		if applyErr != nil {
			return fmt.Errorf("destroy failed (%v) and state could not be written: %w", applyErr, err)
		}
		return fmt.Errorf("failed to write state: %w", err)
	}

	renderApplySummary(results)
	return applyErr
}
