// Command stackgen renders an extended compose document into a set of
// CloudFormation templates and optionally plans or deploys the resulting
// stack.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// Exit codes.
const (
	ExitSuccess     = 0
	ExitConfigError = 1
	ExitSynthError  = 2
	ExitDeployError = 3
)

// rootFlags are the persistent flags shared by every subcommand.
type rootFlags struct {
	configPath  string
	composeFile string
	stackName   string
}

func main() {
	os.Exit(run())
}

func run() int {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "stackgen",
		Short:         "Render compose documents into CloudFormation stacks",
		Version:       fmt.Sprintf("%s (built %s)", Version, BuildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "Path to config file")
	root.PersistentFlags().StringVarP(&flags.composeFile, "file", "f", "compose.yaml", "Compose file to synthesize")
	root.PersistentFlags().StringVarP(&flags.stackName, "name", "n", "stackgen", "Root stack name")

	root.AddCommand(
		newRenderCommand(flags),
		newPlanCommand(flags),
		newDeployCommand(flags),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "stackgen: %v\n", err)
		var cErr *cmdError
		if errors.As(err, &cErr) {
			return cErr.code
		}
		return ExitConfigError
	}
	return ExitSuccess
}

// cmdError carries a process exit code alongside the failure.
type cmdError struct {
	code int
	err  error
}

func (e *cmdError) Error() string { return e.err.Error() }
func (e *cmdError) Unwrap() error { return e.err }

func synthErr(err error) error  { return &cmdError{code: ExitSynthError, err: err} }
func deployErr(err error) error { return &cmdError{code: ExitDeployError, err: err} }
