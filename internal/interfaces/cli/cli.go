// Package cli is the offline command-line front end of the report engine.
// It works on template files and ledger CSVs without a database.
package cli

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// CLI represents the command-line interface
type CLI struct {
	rootCmd *cobra.Command
	out     io.Writer
	errOut  io.Writer
	logger  *zap.Logger
}

// Options contain configuration for the CLI
type Options struct {
	Output      io.Writer
	ErrorOutput io.Writer
	Logger      *zap.Logger
}

// New creates a new CLI instance
func New(opts Options) *CLI {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.ErrorOutput == nil {
		opts.ErrorOutput = os.Stderr
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	c := &CLI{
		out:    opts.Output,
		errOut: opts.ErrorOutput,
		logger: opts.Logger,
	}
	c.rootCmd = c.newRootCmd()
	return c
}

// Execute runs the command selected by os.Args
func (c *CLI) Execute(ctx context.Context) error {
	return c.rootCmd.ExecuteContext(ctx)
}

// Command returns the root command
func (c *CLI) Command() *cobra.Command {
	return c.rootCmd
}

func (c *CLI) newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "dre",
		Short:         "Income statement (DRE) report tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(c.out)
	cmd.SetErr(c.errOut)

	cmd.AddCommand(NewValidateCmd(c.logger))
	cmd.AddCommand(NewGenerateCmd(c.logger))
	cmd.AddCommand(NewSeedCmd(c.logger))

	return cmd
}
