package cli

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var outputJSON bool

var outputCmd = &cobra.Command{
	Use:   "output [name]",
	Short: "Show output values from state",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runOutput,
}

func init() {
	outputCmd.Flags().BoolVar(&outputJSON, "json", false, "Print outputs as JSON")
}

func runOutput(cmd *cobra.Command, args []string) error {
	wd, _, err := resolveWorkdir(nil)
	if err != nil {
		return err
	}

	store, err := newStateStore(wd)
	if err != nil {
		return err
	}
	currentState, err := store.Read(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to read state: %w", err)
	}

	if len(args) == 1 {
		value, ok := currentState.Outputs[args[0]]
		if !ok {
			return fmt.Errorf("output %q not found in state", args[0])
		}
		if outputJSON {
			raw, err := json.MarshalIndent(value, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(raw))
		} else {
			fmt.Printf("%v\n", value)
		}
		return nil
	}

	if outputJSON {
		raw, err := json.MarshalIndent(currentState.Outputs, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(raw))
		return nil
	}

	names := make([]string, 0, len(currentState.Outputs))
	for name := range currentState.Outputs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("%s = %v\n", name, formatValue(currentState.Outputs[name]))
	}
	return nil
}
