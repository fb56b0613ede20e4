package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"invoicebot/internal/models"
	"invoicebot/internal/services"
)

type InvoiceStatusUpdater interface {
	MarkStatus(ctx context.Context, id, status string) error
}

type PaymentHandler struct {
	Invoices  InvoiceStatusUpdater
	KeySecret string
	Logger    *zap.Logger
}

func NewPaymentHandler(invoices InvoiceStatusUpdater, keySecret string, logger *zap.Logger) *PaymentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentHandler{Invoices: invoices, KeySecret: keySecret, Logger: logger}
}

// Success is the redirect target of a paid payment link.
func (h *PaymentHandler) Success(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	number := pathParam(r, "invoice_number")
	if number == "" {
		writeError(w, http.StatusBadRequest, "missing invoice_number")
		return
	}

	cb := services.PaymentLinkCallback{
		PaymentID:   q.Get("razorpay_payment_id"),
		LinkID:      q.Get("razorpay_payment_link_id"),
		ReferenceID: q.Get("razorpay_payment_link_reference_id"),
		Status:      q.Get("razorpay_payment_link_status"),
		Signature:   q.Get("razorpay_signature"),
	}
	resp := map[string]any{"status": "ok", "invoice_number": number}

	if cb.Present() {
		if !services.VerifyPaymentLinkCallback(cb, h.KeySecret) {
			h.Logger.Warn("payment callback signature rejected", zap.String("invoice", number), zap.String("link_id", cb.LinkID))
			writeError(w, http.StatusBadRequest, "invalid callback signature")
			return
		}
		status := strings.ToLower(cb.Status)
		if status == "partially_paid" {
			status = string(models.PaymentPaidPartially)
		}
		if status != "" && h.Invoices != nil {
			err := h.Invoices.MarkStatus(r.Context(), number, status)
			switch {
			case errors.Is(err, models.ErrNotFound):
				h.Logger.Info("payment callback for unknown invoice", zap.String("invoice", number))
			case err != nil:
				h.Logger.Error("update invoice status", zap.String("invoice", number), zap.Error(err))
				writeError(w, http.StatusInternalServerError, "update status: "+err.Error())
				return
			default:
				resp["payment_status"] = status
			}
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
