package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"invoicebot/internal/models"
)

// RedisLedger stores reminder history in a single hash; every record is durable.
type RedisLedger struct {
	Client *redis.Client
	Key    string
}

func NewRedisLedger(client *redis.Client, key string) *RedisLedger {
	return &RedisLedger{Client: client, Key: key}
}

func (l *RedisLedger) Load(ctx context.Context) error {
	if err := l.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ledger ping: %w", err)
	}
	return nil
}

func (l *RedisLedger) Contains(ctx context.Context, invoiceID string) (bool, error) {
	ok, err := l.Client.HExists(ctx, l.Key, invoiceID).Result()
	if err != nil {
		return false, fmt.Errorf("redis ledger lookup: %w", err)
	}
	return ok, nil
}

func (l *RedisLedger) Record(ctx context.Context, invoiceID string, at time.Time) error {
	if err := l.Client.HSetNX(ctx, l.Key, invoiceID, at.UTC().Format(time.RFC3339Nano)).Err(); err != nil {
		return fmt.Errorf("redis ledger record: %w", err)
	}
	return nil
}

func (l *RedisLedger) Flush(context.Context) error { return nil }

func (l *RedisLedger) Entries(ctx context.Context) ([]models.LedgerEntry, error) {
	raw, err := l.Client.HGetAll(ctx, l.Key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis ledger entries: %w", err)
	}
	m := make(map[string]time.Time, len(raw))
	for id, ts := range raw {
		t, _ := time.Parse(time.RFC3339Nano, ts)
		m[id] = t
	}
	return sortedEntries(m), nil
}
