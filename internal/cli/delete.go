package cli

import (
	"context"

	"github.com/spf13/cobra"
)

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <scope> <key>",
		Short: "Remove a top-level key from a scope",
		Long: `Remove a top-level key from a scope and print the resulting delta.
Deleting a key or scope that does not exist is not an error.

Example:
  app-state delete global user`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(rootOpts, args[0], args[1], cmd)
		},
	}

	return cmd
}

func runDelete(opts *RootOptions, scope, key string, cmd *cobra.Command) error {
	if key == "" {
		return newFormatter(opts, cmd).Fail(ExitCommandError, ErrCodeInvalidValue, "invalid key", errMissingKey)
	}
	return runWrite(opts, cmd, scope, func(ctx context.Context, s *session) error {
		return s.state.DeleteKey(ctx, scope, key)
	})
}

// NewDropCommand creates the drop command.
func NewDropCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drop <scope>",
		Short: "Remove a whole scope",
		Long: `Remove a whole scope. The printed delta marks every key that
was removed with null.

Example:
  app-state drop session`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			scope := args[0]
			return runWrite(rootOpts, cmd, scope, func(ctx context.Context, s *session) error {
				return s.state.DeleteScope(ctx, scope)
			})
		},
	}

	return cmd
}
