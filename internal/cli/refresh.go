package cli

import (
	"encoding/json"
	"fmt"

	"github.com/groundwork-iac/groundwork/internal/provider"
	pb "github.com/groundwork-iac/groundwork/pkg/provider"
	"github.com/spf13/cobra"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh [path]",
	Short: "Reconcile state with the real infrastructure",
	Long: `Asks the backend for the current attributes of every resource in
state. Resources that no longer exist are dropped; changed attributes
are recorded so the next plan sees the drift.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRefresh,
}

func runRefresh(cmd *cobra.Command, args []string) error {
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
		fmt.Println("State is empty, nothing to refresh.")
		return nil
	}

	registry := provider.NewRegistry()

	var removed []string
	for _, res := range currentState.Resources {
		// Refresh works from state alone; providers fall back to ambient
		// credentials and region when no settings are declared.
		if err := registry.Configure(ctx, res.Provider, nil); err != nil {
			return err
		}
		prov, err := registry.Get(res.Provider)
		if err != nil {
			return err
		}

		var currentJSON []byte
		if res.Outputs != nil {
			currentJSON, _ = json.Marshal(res.Outputs)
		}

		resp, err := prov.Read(ctx, &pb.ReadRequest{
			Type:             res.Type,
			Name:             res.Name,
			CurrentStateJSON: currentJSON,
		})
		if err != nil {
			return fmt.Errorf("failed to refresh %s: %w", res.Addr(), err)
		}

		if !resp.Exists {
			fmt.Printf("%s: gone, removing from state\n", res.Addr())
			removed = append(removed, res.Addr())
			continue
		}

		var outputs map[string]any
		if len(resp.StateJSON) > 0 {
			if err := json.Unmarshal(resp.StateJSON, &outputs); err != nil {
				return fmt.Errorf("failed to decode refreshed state for %s: %w", res.Addr(), err)
			}
			res.Outputs = outputs
		}
		fmt.Printf("%s: refreshed\n", res.Addr())
	}

	for _, addr := range removed {
		currentState.Remove(addr)
	}
	currentState.Serial++

	if err := store.Write(ctx, currentState); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}

	fmt.Printf("\nRefresh complete: %d resources checked, %d removed.\n",
		len(currentState.Resources)+len(removed), len(removed))
	return nil
}
