package models

import "time"

// PaymentStatus is the payment state of an invoice run.
type PaymentStatus string

const (
	PaymentPending       PaymentStatus = "pending"
	PaymentPaid          PaymentStatus = "paid"
	PaymentPaidPartially PaymentStatus = "paid_partially"
	PaymentCancelled     PaymentStatus = "cancelled"
	PaymentExpired       PaymentStatus = "expired"
	PaymentError         PaymentStatus = "error"
)

var paymentTransitions = map[PaymentStatus]map[PaymentStatus]struct{}{
	PaymentPending: {
		PaymentPaid:      {},
		PaymentCancelled: {},
		PaymentExpired:   {},
		PaymentError:     {},
	},
	PaymentPaid:      {},
	PaymentCancelled: {},
	PaymentExpired:   {},
	PaymentError:     {},
}

// CanTransitionPayment returns whether a run may move from one status to another.
func CanTransitionPayment(from, to PaymentStatus) bool {
	if from == to {
		return true
	}
	allowed, ok := paymentTransitions[from]
	if !ok {
		return false
	}
	_, ok = allowed[to]
	return ok
}

// ResolveProviderStatus maps a provider link status onto a run status.
// The second value is false while polling should continue.
func ResolveProviderStatus(status string) (PaymentStatus, bool) {
	switch PaymentStatus(status) {
	case PaymentPaid, PaymentPaidPartially:
		return PaymentPaid, true
	case PaymentCancelled, PaymentExpired:
		return PaymentStatus(status), true
	default:
		return PaymentPending, false
	}
}

const (
	StageCreateLink         = "create_link"
	StageRenderDocument     = "render_document"
	StageNotifyCustomer     = "notify_customer"
	StagePollPayment        = "poll_payment"
	StageNotifyConfirmation = "notify_confirmation"
)

const (
	StageOK       = "ok"
	StageFailed   = "failed"
	StageDegraded = "degraded"
	StageSkipped  = "skipped"
)

// StageRecord is the outcome of a single workflow stage.
type StageRecord struct {
	Name     string        `json:"name"`
	Outcome  string        `json:"outcome"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// WorkflowState is the working record of one invoice-to-payment run.
type WorkflowState struct {
	RunID            string        `json:"run_id"`
	Invoice          InvoiceData   `json:"invoice_data"`
	CustomerPhone    string        `json:"customer_phone"`
	NormalizedPhone  string        `json:"normalized_phone"`
	PhoneFallback    bool          `json:"phone_fallback"`
	PaymentLinkID    string        `json:"payment_link_id,omitempty"`
	PaymentURL       string        `json:"payment_url,omitempty"`
	PDFURL           string        `json:"pdf_url,omitempty"`
	PaymentStatus    PaymentStatus `json:"payment_status"`
	StatusReason     string        `json:"payment_status_reason,omitempty"`
	ConfirmationSent bool          `json:"confirmation_sent"`
	Stages           []StageRecord `json:"stages"`
}

// LedgerEntry is one reminder recorded in the dedup ledger.
type LedgerEntry struct {
	InvoiceID string    `json:"invoice_id"`
	SentAt    time.Time `json:"sent_at"`
}
