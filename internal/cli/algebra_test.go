package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeFile writes content to name under dir and returns its path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestMergeCommand(t *testing.T) {
	dir := t.TempDir()
	base := writeFile(t, dir, "base.json", `{"user":{"name":"Ann","id":1},"tags":["a"]}`)
	patch := writeFile(t, dir, "patch.json", `{"user":{"name":"Bea"},"tags":["b"]}`)

	out, err := execute(t, nil, "--format", "json", "merge", base, patch)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok","data":{"user":{"name":"Bea","id":1},"tags":["b"]}}`, out)
}

func TestMergeCommand_Stdin(t *testing.T) {
	dir := t.TempDir()
	patch := writeFile(t, dir, "patch.yaml", "b: 2\n")

	out, err := execute(t, strings.NewReader(`{"a":1}`), "--format", "json", "merge", "-", patch)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok","data":{"a":1,"b":2}}`, out)
}

func TestMergeCommand_StdinOnlyFirst(t *testing.T) {
	dir := t.TempDir()
	base := writeFile(t, dir, "base.json", `{}`)

	_, err := execute(t, strings.NewReader(`{}`), "merge", base, "-")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestMergeCommand_MissingFile(t *testing.T) {
	dir := t.TempDir()
	base := writeFile(t, dir, "base.json", `{}`)

	out, err := execute(t, nil, "merge", base, filepath.Join(dir, "nope.json"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error ["+ErrCodeNotFound+"]")
}

func TestMergeCommand_NotAnObject(t *testing.T) {
	dir := t.TempDir()
	base := writeFile(t, dir, "base.json", `{}`)
	list := writeFile(t, dir, "list.json", `[1,2,3]`)

	out, err := execute(t, nil, "merge", base, list)
	require.Error(t, err)
	assert.Contains(t, out, "Error ["+ErrCodeInvalidValue+"]")
}

func TestDiffCommand(t *testing.T) {
	dir := t.TempDir()
	before := writeFile(t, dir, "before.json", `{"user":{"name":"Ann","id":1},"theme":"light"}`)
	after := writeFile(t, dir, "after.json", `{"user":{"name":"Bea","id":1}}`)

	out, err := execute(t, nil, "--format", "json", "diff", before, after)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok","data":{"delta":{"user":{"name":"Bea"},"theme":null}}}`, out)
}

func TestDiffCommand_NoDifferences(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.json", `{"n":1}`)
	b := writeFile(t, dir, "b.json", `{"n":1.0}`)

	out, err := execute(t, nil, "diff", a, b)
	require.NoError(t, err)
	assert.Equal(t, "No differences.\n", out)
}

func TestDiffCommand_Unified(t *testing.T) {
	dir := t.TempDir()
	before := writeFile(t, dir, "before.json", `{"a":1,"b":2}`)
	after := writeFile(t, dir, "after.json", `{"a":1,"b":3}`)

	out, err := execute(t, nil, "diff", "--unified", before, after)
	require.NoError(t, err)
	assert.Contains(t, out, "--- "+before)
	assert.Contains(t, out, "+++ "+after)
	assert.Contains(t, out, "-  \"b\": 2\n")
	assert.Contains(t, out, "+  \"b\": 3\n")
}

func TestCompareCommand(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.json", `{"a":1,"gone":null}`)
	b := writeFile(t, dir, "b.yaml", "a: 1.0\n")
	c := writeFile(t, dir, "c.json", `{"a":2}`)

	out, err := execute(t, nil, "compare", a, b)
	require.NoError(t, err)
	assert.Equal(t, "equal\n", out)

	out, err = execute(t, nil, "compare", a, c)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, "different\n", out)
}
