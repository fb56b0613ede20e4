package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"invoicebot/internal/metrics"
	"invoicebot/internal/models"
	"invoicebot/utils"
)

// ErrSweepInProgress is returned when a sweep is requested while another runs.
var ErrSweepInProgress = errors.New("reminder sweep already in progress")

type InvoiceSource interface {
	ListInvoices(ctx context.Context) ([]models.StoredInvoice, error)
	ListPendingInvoices(ctx context.Context) ([]models.StoredInvoice, error)
	GetInvoice(ctx context.Context, id string) (models.StoredInvoice, error)
}

// Ledger remembers which invoices already got an automatic reminder.
type Ledger interface {
	Load(ctx context.Context) error
	Contains(ctx context.Context, invoiceID string) (bool, error)
	Record(ctx context.Context, invoiceID string, at time.Time) error
	Flush(ctx context.Context) error
	Entries(ctx context.Context) ([]models.LedgerEntry, error)
}

type ReminderConfig struct {
	Currency        string
	CallbackBaseURL string
	IndexedQuery    bool
}

// SweepResult summarises one pass over the invoice store.
type SweepResult struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Scanned    int       `json:"scanned"`
	Pending    int       `json:"pending"`
	Already    int       `json:"already_reminded"`
	Sent       []string  `json:"sent"`
	Skipped    []string  `json:"skipped"`
	Failed     []string  `json:"failed"`
}

type ReminderService struct {
	cfg     ReminderConfig
	source  InvoiceSource
	ledger  Ledger
	links   PaymentLinks
	msgr    Messenger
	logger  *zap.Logger
	now     func() time.Time
	running sync.Mutex
}

func NewReminderService(cfg ReminderConfig, source InvoiceSource, ledger Ledger, links PaymentLinks, msgr Messenger, logger *zap.Logger) *ReminderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Currency == "" {
		cfg.Currency = "INR"
	}
	return &ReminderService{
		cfg:    cfg,
		source: source,
		ledger: ledger,
		links:  links,
		msgr:   msgr,
		logger: logger,
		now:    time.Now,
	}
}

// ScanOnce reminds every pending invoice that has no ledger entry yet.
func (s *ReminderService) ScanOnce(ctx context.Context) (SweepResult, error) {
	if !s.running.TryLock() {
		return SweepResult{}, ErrSweepInProgress
	}
	defer s.running.Unlock()

	logger := s.logger.With(zap.String("op", "ScanOnce"))
	res := SweepResult{StartedAt: s.now(), Sent: []string{}, Skipped: []string{}, Failed: []string{}}

	if err := s.ledger.Load(ctx); err != nil {
		return res, fmt.Errorf("load ledger: %w", err)
	}

	var (
		invoices []models.StoredInvoice
		err      error
	)
	if s.cfg.IndexedQuery {
		invoices, err = s.source.ListPendingInvoices(ctx)
	} else {
		invoices, err = s.source.ListInvoices(ctx)
	}
	if err != nil {
		return res, fmt.Errorf("list invoices: %w", err)
	}
	res.Scanned = len(invoices)

	for _, inv := range invoices {
		if ctx.Err() != nil {
			break
		}
		if inv.ReminderStatus() != string(models.PaymentPending) {
			continue
		}
		res.Pending++

		seen, err := s.ledger.Contains(ctx, inv.ID)
		if err != nil {
			logger.Error("ledger lookup failed", zap.String("invoice", inv.ID), zap.Error(err))
			res.Failed = append(res.Failed, inv.ID)
			continue
		}
		if seen {
			res.Already++
			metrics.Reminder("already_sent")
			continue
		}

		if err := s.SendReminder(ctx, inv); err != nil {
			if errors.Is(err, models.ErrInvalidPhone) || errors.Is(err, models.ErrValidation) {
				logger.Warn("reminder skipped", zap.String("invoice", inv.ID), zap.Error(err))
				res.Skipped = append(res.Skipped, inv.ID)
				metrics.Reminder("skipped")
				continue
			}
			logger.Error("reminder failed", zap.String("invoice", inv.ID), zap.Error(err))
			res.Failed = append(res.Failed, inv.ID)
			metrics.Reminder("failed")
			continue
		}

		if err := s.ledger.Record(ctx, inv.ID, s.now()); err != nil {
			logger.Error("ledger record failed", zap.String("invoice", inv.ID), zap.Error(err))
		}
		res.Sent = append(res.Sent, inv.ID)
		metrics.Reminder("sent")
	}

	flushErr := s.ledger.Flush(ctx)
	res.FinishedAt = s.now()
	logger.Info("reminder sweep finished",
		zap.Int("scanned", res.Scanned),
		zap.Int("pending", res.Pending),
		zap.Int("sent", len(res.Sent)),
		zap.Int("skipped", len(res.Skipped)),
		zap.Int("failed", len(res.Failed)))
	if flushErr != nil {
		return res, fmt.Errorf("flush ledger: %w", flushErr)
	}
	return res, nil
}

// SendReminder creates a fresh payment link for the invoice and messages the
// buyer. It does not consult or update the ledger.
func (s *ReminderService) SendReminder(ctx context.Context, inv models.StoredInvoice) error {
	phone, err := utils.NormalizePhone(inv.Buyer.Contact)
	if err != nil {
		return fmt.Errorf("invoice %s contact %q: %w", inv.ID, inv.Buyer.Contact, err)
	}
	minor, err := AmountMinorUnits(inv.Total)
	if err != nil {
		return fmt.Errorf("invoice %s: %w", inv.ID, err)
	}
	currency := inv.Currency
	if currency == "" {
		currency = s.cfg.Currency
	}

	link, err := s.links.CreateLink(ctx, CreateLinkRequest{
		AmountMinor: minor,
		Currency:    currency,
		Description: "Payment reminder for invoice #" + inv.ID,
		Contact:     phone,
		CallbackURL: CallbackURL(s.cfg.CallbackBaseURL, inv.ID),
	})
	if err != nil {
		return fmt.Errorf("create reminder link: %w", err)
	}

	if _, err := s.msgr.SendText(ctx, phone, reminderMessage(inv.ID, inv.Total, link.ShortURL), WithPriority("10")); err != nil {
		return fmt.Errorf("send reminder: %w", err)
	}
	s.logger.Info("reminder sent", zap.String("invoice", inv.ID), zap.String("link_id", link.ID))
	return nil
}

// Entries lists what the ledger has recorded so far.
func (s *ReminderService) Entries(ctx context.Context) ([]models.LedgerEntry, error) {
	return s.ledger.Entries(ctx)
}
