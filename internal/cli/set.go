package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/atrium-ui/app-state/internal/tree"
)

// NewSetCommand creates the set command.
func NewSetCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <scope> <json>",
		Short: "Merge a JSON object into a scope",
		Long: `Merge a JSON object into a scope and print the delta a subscriber
holding the previous state would receive.

Nested objects merge key by key. Arrays, scalars, null and {} replace the
stored value. Nothing is printed but a notice when the write changed nothing.

Examples:
  app-state set global '{"user":{"name":"Ann"}}'
  app-state set settings '{"theme":"dark"}' --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSet(rootOpts, args[0], args[1], cmd)
		},
	}

	return cmd
}

func runSet(opts *RootOptions, scope, raw string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	partial, err := tree.ParseMap([]byte(raw))
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidValue, "value must be a JSON object", err)
	}

	return runWrite(opts, cmd, scope, func(ctx context.Context, s *session) error {
		return s.state.Set(ctx, scope, partial)
	})
}

// runWrite opens a session, applies one write and prints its delta.
func runWrite(opts *RootOptions, cmd *cobra.Command, scope string, op func(context.Context, *session) error) error {
	formatter := newFormatter(opts, cmd)
	ctx := commandContext(cmd)

	s, err := openSession(ctx, opts.Database)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeLoadFailed, "failed to open database", err)
	}

	result, writeErr := s.write(ctx, scope, func(ctx context.Context) error {
		return op(ctx, s)
	})
	closeErr := s.Close(ctx)

	if writeErr != nil {
		code := ErrCodeWriteFailed
		if tree.IsMalformed(writeErr) {
			code = ErrCodeInvalidValue
		}
		return formatter.Fail(ExitCommandError, code, "write failed", writeErr)
	}
	if closeErr != nil {
		return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, "failed to persist state", closeErr)
	}

	formatter.VerboseLog("Committed revision %d to %s", result.Revision, opts.Database)
	return formatter.Success(result)
}

var errMissingKey = errors.New("key must not be empty")
