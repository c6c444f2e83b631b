package cli

import (
	"fmt"

	"github.com/groundwork-iac/groundwork/internal/engine"
	"github.com/spf13/cobra"
)

var (
	graphProperties map[string]string
	graphVars       map[string]string
)

var graphCmd = &cobra.Command{
	Use:   "graph [path]",
	Short: "Print the dependency graph in DOT format",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runGraph,
}

func init() {
	graphCmd.Flags().StringToStringVarP(&graphProperties, "prop", "D", nil, "Set external properties (format: key=value)")
	graphCmd.Flags().StringToStringVar(&graphVars, "var", nil, "Override declared variables (format: name=value)")
}

func runGraph(cmd *cobra.Command, args []string) error {
	wd, entryPoint, err := resolveWorkdir(args)
	if err != nil {
		return err
	}

	cfg, _, err := loadDesiredConfig(cmd.Context(), wd, entryPoint, graphProperties, graphVars)
	if err != nil {
		return err
	}

	resources, disabled := engine.ExpandResources(cfg.Resources)
	dag, err := engine.BuildDAG(resources, disabled)
	if err != nil {
		return err
	}

	fmt.Print(dag.ToDOT())
	return nil
}
