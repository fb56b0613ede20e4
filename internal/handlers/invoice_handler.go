package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"invoicebot/internal/models"
)

type WorkflowRunner interface {
	Run(ctx context.Context, invoice models.InvoiceData, customerPhone string) (*models.WorkflowState, error)
}

type InvoiceHandler struct {
	Workflow WorkflowRunner
	Logger   *zap.Logger
}

func NewInvoiceHandler(workflow WorkflowRunner, logger *zap.Logger) *InvoiceHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InvoiceHandler{Workflow: workflow, Logger: logger}
}

type invoiceRequest struct {
	InvoiceData   *models.InvoiceData `json:"invoice_data"`
	CustomerPhone any                 `json:"customer_phone"`
}

// Process runs the full invoice workflow synchronously and returns its state.
func (h *InvoiceHandler) Process(w http.ResponseWriter, r *http.Request) {
	var req invoiceRequest
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.InvoiceData == nil {
		writeError(w, http.StatusBadRequest, "invoice_data is required")
		return
	}

	state, err := h.Workflow.Run(r.Context(), *req.InvoiceData, models.ScalarString(req.CustomerPhone))
	if err != nil {
		status := errorStatus(err)
		if status >= http.StatusInternalServerError {
			h.Logger.Error("invoice workflow failed", zap.String("invoice", req.InvoiceData.Number), zap.Error(err))
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, state)
}
