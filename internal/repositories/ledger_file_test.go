package repositories

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLedgerFlushAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sent_reminders.json")
	ctx := t.Context()

	l := NewFileLedger(path, false)
	require.NoError(t, l.Load(ctx))

	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, l.Record(ctx, "INV1", at))
	require.NoError(t, l.Record(ctx, "INV1", at.Add(time.Hour)))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "nothing is written before Flush")

	require.NoError(t, l.Flush(ctx))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]string
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, map[string]string{"INV1": "2025-03-01T10:00:00Z"}, raw)

	reloaded := NewFileLedger(path, false)
	require.NoError(t, reloaded.Load(ctx))
	ok, err := reloaded.Contains(ctx, "INV1")
	require.NoError(t, err)
	assert.True(t, ok)

	entries, err := reloaded.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].SentAt.Equal(at))
}

func TestFileLedgerPersistEach(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger", "sent.json")
	ctx := t.Context()

	l := NewFileLedger(path, true)
	require.NoError(t, l.Load(ctx))
	require.NoError(t, l.Record(ctx, "A", time.Now()))

	other := NewFileLedger(path, false)
	require.NoError(t, other.Load(ctx))
	ok, err := other.Contains(ctx, "A")
	require.NoError(t, err)
	assert.True(t, ok)

	matches, err := filepath.Glob(filepath.Join(filepath.Dir(path), ".ledger-*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestFileLedgerCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sent.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o600))

	err := NewFileLedger(path, false).Load(t.Context())
	assert.ErrorContains(t, err, "decode ledger")
}

func TestFileLedgerFlushWithoutChangesKeepsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sent.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"X":"2024-01-02T03:04:05Z"}`), 0o600))

	l := NewFileLedger(path, false)
	require.NoError(t, l.Load(t.Context()))
	require.NoError(t, l.Flush(t.Context()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"X":"2024-01-02T03:04:05Z"}`, string(data))
}

func TestFileLedgerKeepsNaiveTimestamps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sent_reminders.json")
	ctx := t.Context()
	legacy := `{"inv_old": "2025-11-28T12:34:56.123456", "inv_odd": "last tuesday"}`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o644))

	l := NewFileLedger(path, false)
	require.NoError(t, l.Load(ctx))
	require.NoError(t, l.Record(ctx, "inv_new", time.Date(2025, 12, 1, 9, 0, 0, 0, time.UTC)))
	require.NoError(t, l.Flush(ctx))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]string
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "last tuesday", raw["inv_odd"])
	assert.Equal(t, "2025-12-01T09:00:00Z", raw["inv_new"])

	want := time.Date(2025, 11, 28, 12, 34, 56, 123456000, time.Local)
	got, err := time.Parse(time.RFC3339Nano, raw["inv_old"])
	require.NoError(t, err)
	assert.True(t, want.Equal(got), "got %s, want %s", got, want)

	reloaded := NewFileLedger(path, false)
	require.NoError(t, reloaded.Load(ctx))
	entries, err := reloaded.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for _, e := range entries {
		if e.InvoiceID == "inv_old" {
			assert.True(t, want.Equal(e.SentAt))
		}
	}
}
