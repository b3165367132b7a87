package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registerJSON(t *testing.T, db string, args ...string) registration {
	t.Helper()
	out, _, err := execute(t, nil, append([]string{"client", "register", "--db", db, "--format", "json"}, args...)...)
	require.NoError(t, err)

	var resp struct {
		Data registration `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	return resp.Data
}

func TestClientRegister_IssuesStableToken(t *testing.T) {
	db := filepath.Join(t.TempDir(), "backend.db")

	first := registerJSON(t, db, "acme", "--company", "Acme Traders")
	assert.Equal(t, "acme", first.ClientID)
	assert.Equal(t, "Acme Traders", first.CompanyName)
	assert.Len(t, first.Token, 64)

	again := registerJSON(t, db, "acme")
	assert.Equal(t, first.Token, again.Token)
	assert.Equal(t, "Acme Traders", again.CompanyName)
}

func TestClientRegister_Text(t *testing.T) {
	db := filepath.Join(t.TempDir(), "backend.db")

	out, _, err := execute(t, nil, "client", "register", "acme", "--db", db)
	require.NoError(t, err)
	got := lines(out)
	require.Len(t, got, 2)
	assert.Equal(t, "client: acme", got[0])
	assert.Regexp(t, `^token:  [0-9a-f]{64}$`, got[1])
}

func TestClientRegister_BlankID(t *testing.T) {
	db := filepath.Join(t.TempDir(), "backend.db")

	_, _, err := execute(t, nil, "client", "register", "  ", "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestClientList(t *testing.T) {
	db := filepath.Join(t.TempDir(), "backend.db")
	registerJSON(t, db, "beta")
	registerJSON(t, db, "acme", "--company", "Acme Traders")

	out, _, err := execute(t, nil, "client", "list", "--db", db)
	require.NoError(t, err)

	got := lines(out)
	require.Len(t, got, 3)
	assert.Contains(t, got[0], "CLIENT")
	assert.Contains(t, got[1], "acme")
	assert.Contains(t, got[1], "Acme Traders")
	assert.Contains(t, got[2], "beta")
	assert.NotRegexp(t, `[0-9a-f]{64}`, out, "tokens are never listed")
}

func TestClientList_Empty(t *testing.T) {
	db := filepath.Join(t.TempDir(), "backend.db")

	out, _, err := execute(t, nil, "client", "list", "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "no clients registered\n", out)
}
