package cli

import (
	"fmt"

	"github.com/groundwork-iac/groundwork/internal/engine"
	"github.com/groundwork-iac/groundwork/internal/provider"
	"github.com/spf13/cobra"
)

var (
	applyAutoApprove bool
	applyProperties  map[string]string
	applyVars        map[string]string
)

var applyCmd = &cobra.Command{
	Use:   "apply [path]",
	Short: "Apply a configuration",
	Long: `Builds or changes infrastructure to match the declared
configuration. Operations run in dependency order, independent branches
in parallel. On failure the completed work is kept in state so a re-run
resumes where the last one stopped.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runApply,
}

func init() {
	applyCmd.Flags().BoolVar(&applyAutoApprove, "auto-approve", false, "Skip interactive approval of plan before applying")
	applyCmd.Flags().StringToStringVarP(&applyProperties, "prop", "D", nil, "Set external properties (format: key=value)")
	applyCmd.Flags().StringToStringVar(&applyVars, "var", nil, "Override declared variables (format: name=value)")
}

func runApply(cmd *cobra.Command, args []string) error {
	wd, entryPoint, err := resolveWorkdir(args)
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

	fmt.Print("Loading configuration... ")
	cfg, sensitive, err := loadDesiredConfig(ctx, wd, entryPoint, applyProperties, applyVars)
	if err != nil {
		fmt.Println("FAILED")
		return err
	}
	fmt.Println("OK")

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
		fmt.Println("No changes. Infrastructure is up-to-date.")
		return nil
	}

	fmt.Println("\nGroundwork will perform the following actions:")
	renderPlanChanges(plan)
	renderPlanSummary(plan)

	if !applyAutoApprove {
		fmt.Print("\nDo you want to perform these actions? (y/n): ")
		var response string
		fmt.Scanln(&response)
		if response != "y" && response != "yes" {
			fmt.Println("Apply cancelled.")
			return nil
		}
	}

	fmt.Printf("\nApplying %d changes...\n\n", len(plan.Changes))

	results, applyErr := eng.ApplyPlan(ctx, plan, currentState, progressCallback)

	// Completed operations are already folded into the state document;
	// persist it even when the run failed partway.
	if err := store.Write(ctx, currentState); err != nil {
		if applyErr != nil {
			return fmt.Errorf("apply failed (%v) and state could not be written: %w", applyErr, err)
		}
		return fmt.Errorf("failed to write state: %w", err)
	}

	renderApplySummary(results)
	if applyErr != nil {
		return applyErr
	}

	renderOutputs(currentState.Outputs)
	return nil
}
