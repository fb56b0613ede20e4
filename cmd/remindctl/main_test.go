package main

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicebot/internal/repositories"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(t.Context())
	return out.String(), err
}

func TestNormalizeCommand(t *testing.T) {
	out, err := execute(t, "normalize", "9588423093", "12345")
	require.NoError(t, err)

	assert.Contains(t, out, "+919588423093")
	assert.Contains(t, out, "true")
	assert.Contains(t, out, "false")
}

func TestNormalizeRequiresArgs(t *testing.T) {
	_, err := execute(t, "normalize")
	assert.Error(t, err)
}

func TestLedgerCommandListsEntries(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sent.json")

	ledger := repositories.NewFileLedger(path, false)
	require.NoError(t, ledger.Load(t.Context()))
	require.NoError(t, ledger.Record(t.Context(), "inv-7", time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)))
	require.NoError(t, ledger.Flush(t.Context()))

	t.Setenv("CONFIG_PATH", "")
	t.Setenv("LEDGER_BACKEND", "file")
	t.Setenv("LEDGER_PATH", path)

	_, err := execute(t, "ledger", "--config", filepath.Join(dir, "missing.yaml"))
	require.Error(t, err, "explicit config path must exist")

	out, err := execute(t, "ledger")
	require.NoError(t, err)
	assert.Contains(t, out, "inv-7")
	assert.Contains(t, out, "2025-03-01T10:00:00Z")
}

func TestLedgerCommandEmpty(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("LEDGER_BACKEND", "file")
	t.Setenv("LEDGER_PATH", filepath.Join(t.TempDir(), "none.json"))

	out, err := execute(t, "ledger")
	require.NoError(t, err)
	assert.Contains(t, out, "ledger is empty")
}
