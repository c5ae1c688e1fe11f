package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atrium-ui/app-state/internal/store"
	"github.com/atrium-ui/app-state/internal/tree"
)

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, stdin io.Reader, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	if stdin != nil {
		cmd.SetIn(stdin)
	}
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func testDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "state.db")
}

// persisted reads the database directly, bypassing the CLI.
func persisted(t *testing.T, path string) (int64, map[string]tree.Map) {
	t.Helper()

	db, err := store.Open(path)
	require.NoError(t, err)
	defer db.Close()

	rev, snapshot, err := db.LoadSnapshot(context.Background())
	require.NoError(t, err)
	return rev, snapshot
}

func TestSetCommand_PrintsDeltaAndPersists(t *testing.T) {
	db := testDB(t)

	out, err := execute(t, nil, "--db", db, "set", "global", `{"user":{"name":"Ann","id":1}}`)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"user\": {\n    \"id\": 1,\n    \"name\": \"Ann\"\n  }\n}\n", out)

	out, err = execute(t, nil, "--db", db, "set", "global", `{"user":{"name":"Bea"}}`)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"user\": {\n    \"name\": \"Bea\"\n  }\n}\n", out)

	rev, snapshot := persisted(t, db)
	assert.Equal(t, int64(2), rev)
	assert.Equal(t, map[string]tree.Map{
		"global": {"user": tree.Map{"name": tree.String("Bea"), "id": tree.Int(1)}},
	}, snapshot)
}

func TestSetCommand_NoChange(t *testing.T) {
	db := testDB(t)

	_, err := execute(t, nil, "--db", db, "set", "global", `{"a":1}`)
	require.NoError(t, err)

	out, err := execute(t, nil, "--db", db, "set", "global", `{"a":1}`)
	require.NoError(t, err)
	assert.Equal(t, "No change to \"global\" (revision 2).\n", out)
}

func TestSetCommand_JSONFormat(t *testing.T) {
	db := testDB(t)

	out, err := execute(t, nil, "--db", db, "--format", "json", "set", "settings", `{"theme":"dark"}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok","data":{"scope":"settings","revision":1,"delta":{"theme":"dark"}}}`, out)
}

func TestSetCommand_InvalidValue(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"not json", `{"a":`},
		{"array", `[1,2]`},
		{"scalar", `42`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := testDB(t)

			out, err := execute(t, nil, "--db", db, "set", "global", tt.value)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, out, "Error ["+ErrCodeInvalidValue+"]")
		})
	}
}

func TestGetCommand(t *testing.T) {
	db := testDB(t)

	_, err := execute(t, nil, "--db", db, "set", "global", `{"a":1}`)
	require.NoError(t, err)
	_, err = execute(t, nil, "--db", db, "set", "settings", `{"theme":"dark"}`)
	require.NoError(t, err)

	out, err := execute(t, nil, "--db", db, "get", "global")
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a\": 1\n}\n", out)

	out, err = execute(t, nil, "--db", db, "get", "missing")
	require.NoError(t, err)
	assert.Equal(t, "{}\n", out)

	out, err = execute(t, nil, "--db", db, "--format", "json", "get")
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok","data":{"global":{"a":1},"settings":{"theme":"dark"}}}`, out)
}

func TestDeleteCommand(t *testing.T) {
	db := testDB(t)

	_, err := execute(t, nil, "--db", db, "set", "global", `{"user":{"name":"Ann"},"flag":true}`)
	require.NoError(t, err)

	out, err := execute(t, nil, "--db", db, "delete", "global", "user")
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"user\": null\n}\n", out)

	out, err = execute(t, nil, "--db", db, "delete", "global", "user")
	require.NoError(t, err)
	assert.Contains(t, out, "No change")

	_, snapshot := persisted(t, db)
	assert.Equal(t, map[string]tree.Map{"global": {"flag": tree.Bool(true)}}, snapshot)
}

func TestDeleteCommand_EmptyKey(t *testing.T) {
	_, err := execute(t, nil, "--db", testDB(t), "delete", "global", "")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestDropCommand(t *testing.T) {
	db := testDB(t)

	_, err := execute(t, nil, "--db", db, "set", "session", `{"token":"abc","ttl":30}`)
	require.NoError(t, err)

	out, err := execute(t, nil, "--db", db, "--format", "json", "drop", "session")
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   WriteResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, tree.Map{"token": tree.Null{}, "ttl": tree.Null{}}, resp.Data.Delta)

	_, snapshot := persisted(t, db)
	assert.Empty(t, snapshot)
}

func TestStateCommands_UnopenableDatabase(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "missing", "nested", "state.db")

	out, err := execute(t, nil, "--db", bad, "get")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.True(t, strings.Contains(out, ErrCodeLoadFailed), out)
}
