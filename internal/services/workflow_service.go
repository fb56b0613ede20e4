package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"invoicebot/internal/metrics"
	"invoicebot/internal/models"
	"invoicebot/utils"
)

type PaymentLinks interface {
	CreateLink(ctx context.Context, req CreateLinkRequest) (PaymentLink, error)
	FetchLinkStatus(ctx context.Context, linkID string) (string, error)
}

type DocumentPublisher interface {
	RenderAndPublish(ctx context.Context, invoice models.InvoiceData, paymentURL string) (string, error)
}

type Messenger interface {
	SendText(ctx context.Context, phone, body string, opts ...SendOption) (Ack, error)
	SendDocument(ctx context.Context, phone, documentURL, filename, caption string) (Ack, error)
}

// PaymentNotifier is told about runs that ended paid.
type PaymentNotifier interface {
	NotifyPaid(ctx context.Context, state *models.WorkflowState) error
}

const (
	ModeStrict     = "strict"
	ModeBestEffort = "best_effort"
)

type WorkflowConfig struct {
	Mode                string
	FallbackPhone       string
	Currency            string
	CallbackBaseURL     string
	PollAttempts        uint
	PollInterval        time.Duration
	ConfirmOnlyWhenPaid bool
	SendDocument        bool
}

// WorkflowService drives one invoice from link creation to payment confirmation.
type WorkflowService struct {
	cfg      WorkflowConfig
	links    PaymentLinks
	docs     DocumentPublisher
	msgr     Messenger
	notifier PaymentNotifier
	logger   *zap.Logger
}

func NewWorkflowService(cfg WorkflowConfig, links PaymentLinks, docs DocumentPublisher, msgr Messenger, notifier PaymentNotifier, logger *zap.Logger) *WorkflowService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeStrict
	}
	if cfg.Currency == "" {
		cfg.Currency = "INR"
	}
	if cfg.PollAttempts == 0 {
		cfg.PollAttempts = 1
	}
	return &WorkflowService{cfg: cfg, links: links, docs: docs, msgr: msgr, notifier: notifier, logger: logger}
}

// CallbackURL is where the provider redirects the payer once the link is paid.
func CallbackURL(baseURL, invoiceNumber string) string {
	return strings.TrimRight(baseURL, "/") + "/api/payment-success/" + url.PathEscape(invoiceNumber)
}

type stageFunc func(ctx context.Context, st *models.WorkflowState) (string, error)

// Run executes all stages in order. A returned error means the run was
// aborted; the partial state is returned alongside it.
func (w *WorkflowService) Run(ctx context.Context, invoice models.InvoiceData, customerPhone string) (*models.WorkflowState, error) {
	if err := invoice.Validate(); err != nil {
		return nil, err
	}

	st := &models.WorkflowState{
		RunID:         uuid.NewString(),
		Invoice:       invoice,
		CustomerPhone: customerPhone,
		PaymentStatus: models.PaymentPending,
	}
	logger := w.logger.With(zap.String("run_id", st.RunID), zap.String("invoice", invoice.Number))
	logger.Info("workflow started")

	stages := []struct {
		name string
		fn   stageFunc
	}{
		{models.StageCreateLink, w.createLink},
		{models.StageRenderDocument, w.renderDocument},
		{models.StageNotifyCustomer, w.notifyCustomer},
		{models.StagePollPayment, w.pollPayment},
		{models.StageNotifyConfirmation, w.notifyConfirmation},
	}
	for _, s := range stages {
		start := time.Now()
		outcome, err := s.fn(ctx, st)
		rec := models.StageRecord{Name: s.name, Outcome: outcome, Duration: time.Since(start)}
		if err != nil {
			rec.Error = err.Error()
		}
		st.Stages = append(st.Stages, rec)
		metrics.StageObserved(s.name, outcome, rec.Duration.Seconds())

		if outcome == models.StageFailed {
			logger.Error("workflow aborted", zap.String("stage", s.name), zap.Error(err))
			metrics.WorkflowRun("failed")
			return st, fmt.Errorf("%s: %w", s.name, err)
		}
		if err != nil {
			logger.Warn("stage degraded", zap.String("stage", s.name), zap.Error(err))
		}
	}

	metrics.WorkflowRun(string(st.PaymentStatus))
	logger.Info("workflow finished", zap.String("payment_status", string(st.PaymentStatus)))
	return st, nil
}

func (w *WorkflowService) createLink(ctx context.Context, st *models.WorkflowState) (string, error) {
	phone, err := utils.NormalizePhone(st.CustomerPhone)
	if err != nil {
		w.logger.Warn("customer phone rejected, using fallback",
			zap.String("invoice", st.Invoice.Number), zap.String("phone", st.CustomerPhone))
		phone = w.cfg.FallbackPhone
		st.PhoneFallback = true
	}
	st.NormalizedPhone = phone

	minor, err := AmountMinorUnits(st.Invoice.Amount)
	if err != nil {
		return models.StageFailed, err
	}

	link, err := w.links.CreateLink(ctx, CreateLinkRequest{
		AmountMinor: minor,
		Currency:    w.cfg.Currency,
		Description: "Invoice #" + st.Invoice.Number,
		Contact:     phone,
		CallbackURL: CallbackURL(w.cfg.CallbackBaseURL, st.Invoice.Number),
		ReferenceID: referenceID(st.Invoice.Number, st.RunID),
	})
	if err != nil {
		return models.StageFailed, err
	}
	st.PaymentLinkID = link.ID
	st.PaymentURL = link.ShortURL
	st.Invoice.PaymentURL = link.ShortURL
	return models.StageOK, nil
}

// referenceID must be unique per link at the provider, so reruns for the same
// invoice carry the run id too.
func referenceID(number, runID string) string {
	ref := number + "-" + strings.ReplaceAll(runID, "-", "")[:8]
	if len(ref) > 40 {
		ref = ref[len(ref)-40:]
	}
	return ref
}

func (w *WorkflowService) renderDocument(ctx context.Context, st *models.WorkflowState) (string, error) {
	paymentURL := st.PaymentURL
	if paymentURL == "" {
		paymentURL = notGeneratedYet
	}
	pdfURL, err := w.docs.RenderAndPublish(ctx, st.Invoice, paymentURL)
	if err != nil {
		if w.cfg.Mode == ModeBestEffort {
			st.PDFURL = notGeneratedYet
			return models.StageDegraded, err
		}
		return models.StageFailed, err
	}
	st.PDFURL = pdfURL
	return models.StageOK, nil
}

func (w *WorkflowService) notifyCustomer(ctx context.Context, st *models.WorkflowState) (string, error) {
	body := invoiceNotice(st.Invoice.Number, st.Invoice.Amount, st.PaymentURL, st.PDFURL)
	if _, err := w.msgr.SendText(ctx, st.NormalizedPhone, body); err != nil {
		return models.StageDegraded, err
	}
	if w.cfg.SendDocument && st.PDFURL != "" && st.PDFURL != notGeneratedYet {
		filename := "invoice_" + st.Invoice.Number + ".pdf"
		if _, err := w.msgr.SendDocument(ctx, st.NormalizedPhone, st.PDFURL, filename, "Invoice #"+st.Invoice.Number); err != nil {
			return models.StageDegraded, err
		}
	}
	return models.StageOK, nil
}

var errStillPending = errors.New("payment still pending")

func (w *WorkflowService) pollPayment(ctx context.Context, st *models.WorkflowState) (string, error) {
	if st.PaymentLinkID == "" {
		st.PaymentStatus = models.PaymentError
		st.StatusReason = "no_link_id"
		metrics.PollAttempts(0)
		return models.StageSkipped, nil
	}

	fetches := 0
	final := models.PaymentPending
	err := retry.Do(func() error {
		fetches++
		status, err := w.links.FetchLinkStatus(ctx, st.PaymentLinkID)
		if err != nil {
			w.logger.Warn("payment status fetch failed", zap.String("link_id", st.PaymentLinkID), zap.Int("attempt", fetches), zap.Error(err))
			return err
		}
		resolved, terminal := models.ResolveProviderStatus(status)
		if !terminal {
			return errStillPending
		}
		final = resolved
		return nil
	},
		retry.Attempts(w.cfg.PollAttempts),
		retry.Delay(w.cfg.PollInterval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)
	metrics.PollAttempts(fetches)

	if !models.CanTransitionPayment(st.PaymentStatus, final) {
		return models.StageFailed, fmt.Errorf("payment status %s -> %s not allowed", st.PaymentStatus, final)
	}
	st.PaymentStatus = final
	if err != nil {
		if ctx.Err() != nil {
			st.StatusReason = "poll_interrupted"
		}
		return models.StageOK, nil
	}

	if final == models.PaymentPaid && w.notifier != nil {
		if err := w.notifier.NotifyPaid(ctx, st); err != nil {
			w.logger.Warn("operator push failed", zap.String("invoice", st.Invoice.Number), zap.Error(err))
		}
	}
	return models.StageOK, nil
}

func (w *WorkflowService) notifyConfirmation(ctx context.Context, st *models.WorkflowState) (string, error) {
	if w.cfg.ConfirmOnlyWhenPaid && st.PaymentStatus != models.PaymentPaid {
		return models.StageSkipped, nil
	}
	if _, err := w.msgr.SendText(ctx, st.NormalizedPhone, confirmationMessage); err != nil {
		return models.StageDegraded, err
	}
	st.ConfirmationSent = true
	return models.StageOK, nil
}
