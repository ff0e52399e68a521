// Package cli implements the insidebi command line: asking questions,
// training the example store and migrating databases without the HTTP server.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/seanankenbruck/insidebi-ai/internal/config"
	"github.com/seanankenbruck/insidebi-ai/internal/observability"
)

type ExitCode int

const (
	exitCodeSuccess = 0
	exitCodeError   = 1
)

// LoadFunc produces the configuration commands run with
type LoadFunc func(ctx context.Context) (*config.Config, error)

// DefaultLoad reads configuration from the default secret chain and validates it
func DefaultLoad(ctx context.Context) (*config.Config, error) {
	cfg, err := config.NewDefaultLoader().Load(ctx)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Run executes the CLI against os.Args
func Run() ExitCode {
	if err := NewRootCmd(os.Stdout, DefaultLoad).Execute(); err != nil {
		return exitCodeError
	}
	return exitCodeSuccess
}

// NewRootCmd builds the command tree writing to out
func NewRootCmd(out io.Writer, load LoadFunc) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "insidebi",
		Short:        "Ask questions about the risk dataset in natural language.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cmd.Help(); err != nil {
				return fmt.Errorf("failed to show help: %w", err)
			}
			return nil
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(out)

	var verbose bool
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "set debug logging level")

	env := &environment{out: out, load: load, verbose: &verbose}
	rootCmd.AddCommand(
		newAskCmd(env),
		newTrainCmd(env),
		newMigrateCmd(env),
		newSuggestCmd(env),
	)
	return rootCmd
}

// environment is shared by every subcommand
type environment struct {
	out     io.Writer
	load    LoadFunc
	verbose *bool
}

// logger writes to stderr so command output stays machine readable
func (e *environment) logger(component string) *observability.Logger {
	level := observability.LevelWarn
	if *e.verbose {
		level = observability.LevelDebug
	}
	return observability.NewLogger(component).WithOutput(os.Stderr).WithLevel(level)
}
