package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var taintCmd = &cobra.Command{
	Use:   "taint <address>",
	Short: "Mark a resource for replacement on the next apply",
	Long: `Marks the resource at the given address (type.name) as tainted.
The next plan schedules a destroy and re-create for it.`,
	Args: cobra.ExactArgs(1),
	RunE: runTaint(true),
}

var untaintCmd = &cobra.Command{
	Use:   "untaint <address>",
	Short: "Clear the taint marker from a resource",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaint(false),
}

func runTaint(taint bool) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		addr := args[0]
		ctx := cmd.Context()

		wd, _, err := resolveWorkdir(nil)
		if err != nil {
			return err
		}

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

		res := currentState.Resource(addr)
		if res == nil {
			return fmt.Errorf("resource %q not found in state", addr)
		}

		res.Tainted = taint
		currentState.Serial++

		if err := store.Write(ctx, currentState); err != nil {
			return fmt.Errorf("failed to write state: %w", err)
		}

		if taint {
			fmt.Printf("Resource %s has been marked as tainted.\n", addr)
		} else {
			fmt.Printf("Resource %s is no longer tainted.\n", addr)
		}
		return nil
	}
}
