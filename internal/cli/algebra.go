package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/spf13/cobra"

	"github.com/atrium-ui/app-state/internal/tree"
)

// DiffOptions holds flags for the diff command.
type DiffOptions struct {
	*RootOptions
	Unified bool // also render a unified text diff
	Context int  // context lines for --unified
}

// DiffResult is the delta between two trees.
type DiffResult struct {
	Delta   tree.Map `json:"delta"`
	Unified string   `json:"unified,omitempty"`
}

func (r DiffResult) String() string {
	if r.Unified != "" {
		return strings.TrimSuffix(r.Unified, "\n")
	}
	if len(r.Delta) == 0 {
		return "No differences."
	}
	text, err := indentJSON(r.Delta)
	if err != nil {
		return err.Error()
	}
	return text
}

// CompareResult reports whether two trees are equivalent.
type CompareResult struct {
	Equal bool `json:"equal"`
}

func (r CompareResult) String() string {
	if r.Equal {
		return "equal"
	}
	return "different"
}

// NewMergeCommand creates the merge command.
func NewMergeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge <base> <incoming>",
		Short: "Deep-merge two trees",
		Long: `Deep-merge incoming into base and print the result. Neither file is
modified. Use - as base to read JSON from stdin.

Example:
  app-state merge state.json patch.json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)
			base, incoming, err := readTreePair(cmd, args)
			if err != nil {
				return formatter.Fail(ExitCommandError, loadErrorCode(err), "failed to read input", err)
			}
			merged, err := tree.Merge(base, incoming)
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeInvalidValue, "merge failed", err)
			}
			return formatter.Success(merged)
		},
	}

	return cmd
}

// NewDiffCommand creates the diff command.
func NewDiffCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DiffOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "diff <before> <after>",
		Short: "Print the minimal delta between two trees",
		Long: `Print the minimal delta that turns before into after. Removed keys
appear as null. With --unified a line diff of the indented trees is printed
instead. Use - as before to read JSON from stdin.

Examples:
  app-state diff old.json new.json
  app-state diff old.json new.json --unified`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVarP(&opts.Unified, "unified", "u", false, "print a unified diff of the indented trees")
	cmd.Flags().IntVar(&opts.Context, "context", 3, "context lines for --unified")

	return cmd
}

func runDiff(opts *DiffOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	before, after, err := readTreePair(cmd, args)
	if err != nil {
		return formatter.Fail(ExitCommandError, loadErrorCode(err), "failed to read input", err)
	}
	delta, err := tree.Subtract(before, after)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidValue, "diff failed", err)
	}

	result := DiffResult{Delta: delta}
	if opts.Unified {
		result.Unified, err = unifiedDiff(args[0], args[1], before, after, opts.Context)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, "diff failed", err)
		}
	}
	return formatter.Success(result)
}

// unifiedDiff renders a line diff of the indented trees.
func unifiedDiff(fromName, toName string, before, after tree.Map, lines int) (string, error) {
	a, err := indentJSON(before)
	if err != nil {
		return "", err
	}
	b, err := indentJSON(after)
	if err != nil {
		return "", err
	}
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(a + "\n"),
		B:        difflib.SplitLines(b + "\n"),
		FromFile: fromName,
		ToFile:   toName,
		Context:  lines,
	})
}

// NewCompareCommand creates the compare command.
func NewCompareCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare <a> <b>",
		Short: "Check two trees for equivalence",
		Long: `Check whether two trees are equivalent. Keys holding null count as
absent and numbers compare by value. Use - as the first tree to read JSON
from stdin.

Exit codes:
  0 - Trees are equivalent
  1 - Trees differ
  2 - Command error`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)
			a, b, err := readTreePair(cmd, args)
			if err != nil {
				return formatter.Fail(ExitCommandError, loadErrorCode(err), "failed to read input", err)
			}
			result := CompareResult{Equal: tree.Compare(a, b)}
			if err := formatter.Success(result); err != nil {
				return err
			}
			if !result.Equal {
				return NewExitError(ExitFailure, "trees differ")
			}
			return nil
		},
	}

	return cmd
}

// readTreePair loads the two tree arguments. Only the first may be "-".
func readTreePair(cmd *cobra.Command, args []string) (tree.Map, tree.Map, error) {
	if args[1] == "-" {
		return nil, nil, &LoadError{Code: ErrCodeGeneric, Message: "only the first argument may read stdin"}
	}
	a, err := readTreeArg(cmd, args[0])
	if err != nil {
		return nil, nil, err
	}
	b, err := readTreeArg(cmd, args[1])
	if err != nil {
		return nil, nil, err
	}
	return a, b, nil
}

func readTreeArg(cmd *cobra.Command, arg string) (tree.Map, error) {
	if arg != "-" {
		return LoadTree(arg)
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("reading stdin: %v", err)}
	}
	m, err := tree.ParseMap(data)
	if err != nil {
		return nil, loadValueError("stdin", err)
	}
	return m, nil
}
