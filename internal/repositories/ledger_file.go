package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"invoicebot/internal/models"
)

// FileLedger keeps reminder history in a JSON object of invoice id to RFC3339
// timestamp. Writes go to a temp file that is renamed over the original.
type FileLedger struct {
	Path        string
	PersistEach bool

	mu      sync.Mutex
	entries map[string]time.Time
	// timestamps that could not be parsed are written back unchanged
	verbatim map[string]string
	dirty    bool
}

func NewFileLedger(path string, persistEach bool) *FileLedger {
	return &FileLedger{
		Path:        path,
		PersistEach: persistEach,
		entries:     map[string]time.Time{},
		verbatim:    map[string]string{},
	}
}

// Older ledgers hold naive local timestamps such as 2025-11-28T12:34:56.123456.
var naiveTimeLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func parseLedgerTime(ts string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
		return t, true
	}
	for _, layout := range naiveTimeLayouts {
		if t, err := time.ParseInLocation(layout, ts, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func (l *FileLedger) Load(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := os.ReadFile(l.Path)
	if errors.Is(err, os.ErrNotExist) {
		l.entries = map[string]time.Time{}
		l.verbatim = map[string]string{}
		l.dirty = false
		return nil
	}
	if err != nil {
		return fmt.Errorf("read ledger %s: %w", l.Path, err)
	}

	raw := map[string]string{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("decode ledger %s: %w", l.Path, err)
		}
	}
	entries := make(map[string]time.Time, len(raw))
	verbatim := map[string]string{}
	for id, ts := range raw {
		t, ok := parseLedgerTime(ts)
		if !ok {
			// an unreadable timestamp still means the reminder went out
			verbatim[id] = ts
		}
		entries[id] = t
	}
	l.entries = entries
	l.verbatim = verbatim
	l.dirty = false
	return nil
}

func (l *FileLedger) Contains(_ context.Context, invoiceID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.entries[invoiceID]
	return ok, nil
}

func (l *FileLedger) Record(_ context.Context, invoiceID string, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.entries[invoiceID]; ok {
		return nil
	}
	l.entries[invoiceID] = at
	l.dirty = true
	if l.PersistEach {
		return l.writeLocked()
	}
	return nil
}

func (l *FileLedger) Flush(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.dirty {
		return nil
	}
	return l.writeLocked()
}

func (l *FileLedger) Entries(_ context.Context) ([]models.LedgerEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return sortedEntries(l.entries), nil
}

func (l *FileLedger) writeLocked() error {
	raw := make(map[string]string, len(l.entries))
	for id, t := range l.entries {
		if ts, ok := l.verbatim[id]; ok {
			raw[id] = ts
			continue
		}
		raw[id] = t.UTC().Format(time.RFC3339Nano)
	}
	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}

	dir := filepath.Dir(l.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".ledger-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp ledger: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp ledger: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp ledger: %w", err)
	}
	if err := os.Rename(tmpName, l.Path); err != nil {
		return fmt.Errorf("replace ledger: %w", err)
	}
	l.dirty = false
	return nil
}

func sortedEntries(m map[string]time.Time) []models.LedgerEntry {
	out := make([]models.LedgerEntry, 0, len(m))
	for id, t := range m {
		out = append(out, models.LedgerEntry{InvoiceID: id, SentAt: t})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InvoiceID < out[j].InvoiceID })
	return out
}
