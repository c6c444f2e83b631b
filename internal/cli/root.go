package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/groundwork-iac/groundwork/internal/logging"
	"github.com/groundwork-iac/groundwork/internal/state"
	"github.com/spf13/cobra"
)

var (
	logLevel      string
	parallelism   int
	statePath     string
	lockTimeout   time.Duration
	lockWait      time.Duration
	backendType   string
	backendConfig map[string]string
)

// exitStatus is the process exit code beyond success/failure: plan sets
// it to 2 when changes are pending.
var exitStatus int

var rootCmd = &cobra.Command{
	Use:   "groundwork",
	Short: "Declarative infrastructure from Pkl configurations",
	Long: `Groundwork reconciles declared infrastructure with what actually
exists, through a plan/apply workflow:

  • Pkl-typed resource declarations
  • Dependency-ordered, parallel execution
  • Durable state with locking and drift detection`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(logLevel)
		if lockTimeout > 0 {
			state.StaleLockTimeout = lockTimeout
		}
	},
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command under ctx; cancellation stops
// pending work at the next safe point.
func ExecuteContext(ctx context.Context) int {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return exitStatus
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().IntVar(&parallelism, "parallelism", 10, "Maximum concurrent resource operations")
	rootCmd.PersistentFlags().StringVar(&statePath, "state", "", "Path to the state file (default .groundwork/state.json)")
	rootCmd.PersistentFlags().DurationVar(&lockTimeout, "lock-timeout", 0, "Age after which a state lock is considered stale")
	rootCmd.PersistentFlags().DurationVar(&lockWait, "lock-wait", 30*time.Second, "How long to wait for a held state lock before giving up")
	rootCmd.PersistentFlags().StringVar(&backendType, "backend", "", "State backend type (local, s3)")
	rootCmd.PersistentFlags().StringToStringVar(&backendConfig, "backend-config", nil, "Backend settings (format: key=value)")

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(destroyCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(outputCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(taintCmd)
	rootCmd.AddCommand(untaintCmd)
	rootCmd.AddCommand(versionCmd)
}
