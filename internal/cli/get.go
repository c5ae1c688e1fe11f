package cli

import (
	"context"

	"github.com/spf13/cobra"
)

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get [scope]",
		Short: "Print a scope, or every scope",
		Long: `Print the tree stored in a scope. Without a scope, print every scope
keyed by name. A scope that does not exist prints as an empty tree.

Examples:
  app-state get global
  app-state get --db ./state.db --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runGet(opts *RootOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	ctx := commandContext(cmd)

	s, err := openSession(ctx, opts.Database)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeLoadFailed, "failed to open database", err)
	}
	defer s.Close(ctx)

	if len(args) == 1 {
		formatter.VerboseLog("Reading scope %q from %s", args[0], opts.Database)
		return formatter.Success(s.state.Get(args[0]))
	}
	formatter.VerboseLog("Reading %d scopes from %s", len(s.state.Scopes()), opts.Database)
	return formatter.Success(s.state.Snapshot())
}

// commandContext returns the command's context, or Background outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
