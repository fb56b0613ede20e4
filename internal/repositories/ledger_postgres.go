package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"invoicebot/internal/models"
)

const createSentRemindersTable = `
CREATE TABLE IF NOT EXISTS sent_reminders (
	invoice_id TEXT PRIMARY KEY,
	sent_at    TIMESTAMPTZ NOT NULL
)`

type PostgresLedger struct {
	Pool *pgxpool.Pool
}

func NewPostgresLedger(pool *pgxpool.Pool) *PostgresLedger { return &PostgresLedger{Pool: pool} }

func (l *PostgresLedger) Load(ctx context.Context) error {
	if _, err := l.Pool.Exec(ctx, createSentRemindersTable); err != nil {
		return fmt.Errorf("ensure sent_reminders table: %w", err)
	}
	return nil
}

func (l *PostgresLedger) Contains(ctx context.Context, invoiceID string) (bool, error) {
	var exists bool
	err := l.Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM sent_reminders WHERE invoice_id = $1)`, invoiceID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("postgres ledger lookup: %w", err)
	}
	return exists, nil
}

func (l *PostgresLedger) Record(ctx context.Context, invoiceID string, at time.Time) error {
	_, err := l.Pool.Exec(ctx,
		`INSERT INTO sent_reminders (invoice_id, sent_at) VALUES ($1, $2) ON CONFLICT (invoice_id) DO NOTHING`,
		invoiceID, at.UTC(),
	)
	if err != nil {
		return fmt.Errorf("postgres ledger record: %w", err)
	}
	return nil
}

func (l *PostgresLedger) Flush(context.Context) error { return nil }

func (l *PostgresLedger) Entries(ctx context.Context) ([]models.LedgerEntry, error) {
	rows, err := l.Pool.Query(ctx, `SELECT invoice_id, sent_at FROM sent_reminders ORDER BY invoice_id`)
	if err != nil {
		return nil, fmt.Errorf("postgres ledger entries: %w", err)
	}
	defer rows.Close()

	var out []models.LedgerEntry
	for rows.Next() {
		var e models.LedgerEntry
		if err := rows.Scan(&e.InvoiceID, &e.SentAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
