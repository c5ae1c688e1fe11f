package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

// SeedResult reports the scopes a seed wrote.
type SeedResult struct {
	Scopes   []string `json:"scopes"`
	Changed  []string `json:"changed"`
	Revision int64    `json:"revision"`
}

func (r SeedResult) String() string {
	return fmt.Sprintf("Seeded %d scope(s), %d changed (revision %d).", len(r.Scopes), len(r.Changed), r.Revision)
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed <path>",
		Short: "Merge a seed file into the store",
		Long: `Merge every top-level scope of a seed into the store.

A seed is a .cue, .yaml, .yml or .json file, or a directory holding a CUE
package. Each top-level field names a scope and must be an object; it is
merged into that scope like set.

Examples:
  app-state seed ./seed.cue
  app-state seed ./seeds --db ./state.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runSeed(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	ctx := commandContext(cmd)

	seed, err := LoadSeed(path)
	if err != nil {
		return formatter.Fail(ExitCommandError, loadErrorCode(err), "failed to load seed", err)
	}

	s, err := openSession(ctx, opts.Database)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeLoadFailed, "failed to open database", err)
	}

	scopes := make([]string, 0, len(seed))
	for scope := range seed {
		scopes = append(scopes, scope)
	}
	sort.Strings(scopes)

	result := SeedResult{Scopes: scopes, Changed: []string{}}
	var writeErr error
	for _, scope := range scopes {
		formatter.VerboseLog("Seeding scope %q", scope)
		partial := seed[scope]
		written, err := s.write(ctx, scope, func(ctx context.Context) error {
			return s.state.Set(ctx, scope, partial)
		})
		if err != nil {
			writeErr = fmt.Errorf("scope %q: %w", scope, err)
			break
		}
		if len(written.Delta) > 0 {
			result.Changed = append(result.Changed, scope)
		}
	}
	result.Revision = s.state.Revision()
	closeErr := s.Close(ctx)

	if writeErr != nil {
		return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, "seed failed", writeErr)
	}
	if closeErr != nil {
		return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, "failed to persist state", closeErr)
	}
	return formatter.Success(result)
}

// loadErrorCode returns the code carried by a LoadError.
func loadErrorCode(err error) string {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code
	}
	return ErrCodeGeneric
}
