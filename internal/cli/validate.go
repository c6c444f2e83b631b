package cli

import (
	"fmt"

	"github.com/groundwork-iac/groundwork/internal/engine"
	"github.com/spf13/cobra"
)

var (
	validateProperties map[string]string
	validateVars       map[string]string
)

var validateCmd = &cobra.Command{
	Use:   "validate [path]",
	Short: "Check the configuration for errors",
	Long: `Evaluates the configuration, resolves variables against their
validation rules, and builds the dependency graph. Catches unknown or
disabled references and dependency cycles before anything runs.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringToStringVarP(&validateProperties, "prop", "D", nil, "Set external properties (format: key=value)")
	validateCmd.Flags().StringToStringVar(&validateVars, "var", nil, "Override declared variables (format: name=value)")
}

func runValidate(cmd *cobra.Command, args []string) error {
	wd, entryPoint, err := resolveWorkdir(args)
	if err != nil {
		return err
	}

	cfg, _, err := loadDesiredConfig(cmd.Context(), wd, entryPoint, validateProperties, validateVars)
	if err != nil {
		return err
	}

	resources, disabled := engine.ExpandResources(cfg.Resources)
	if _, err := engine.BuildDAG(resources, disabled); err != nil {
		return err
	}

	fmt.Printf("Configuration is valid: %d resources, %d disabled.\n", len(resources), len(disabled))
	return nil
}
