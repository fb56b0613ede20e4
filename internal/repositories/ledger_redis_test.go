package repositories

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLedger(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx := t.Context()
	l := NewRedisLedger(client, "invoicebot:sent_reminders")
	require.NoError(t, l.Load(ctx))

	first := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, l.Record(ctx, "INV1", first))
	require.NoError(t, l.Record(ctx, "INV1", first.Add(time.Hour)))

	ok, err := l.Contains(ctx, "INV1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = l.Contains(ctx, "INV2")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, "2025-01-02T03:04:05Z", mr.HGet("invoicebot:sent_reminders", "INV1"))

	entries, err := l.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].SentAt.Equal(first))
	require.NoError(t, l.Flush(ctx))
}

func TestRedisLedgerUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	assert.Error(t, NewRedisLedger(client, "k").Load(t.Context()))
}
