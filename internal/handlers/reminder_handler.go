package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"invoicebot/internal/models"
	"invoicebot/internal/services"
)

type Sweeper interface {
	ScanOnce(ctx context.Context) (services.SweepResult, error)
	Entries(ctx context.Context) ([]models.LedgerEntry, error)
}

type ReminderHandler struct {
	Reminders Sweeper
	Logger    *zap.Logger
}

func NewReminderHandler(reminders Sweeper, logger *zap.Logger) *ReminderHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReminderHandler{Reminders: reminders, Logger: logger}
}

func (h *ReminderHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	res, err := h.Reminders.ScanOnce(r.Context())
	if err != nil {
		h.Logger.Error("manual reminder sweep failed", zap.Error(err))
		writeError(w, errorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *ReminderHandler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Reminders.Entries(r.Context())
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	if entries == nil {
		entries = []models.LedgerEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
