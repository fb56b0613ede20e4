package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"invoicebot/internal/models"
)

type ProductSource interface {
	ListProducts(ctx context.Context) ([]models.Product, error)
}

type ReminderSender interface {
	SendReminder(ctx context.Context, inv models.StoredInvoice) error
}

type TaskSubmitter interface {
	Submit(name string, fn func(ctx context.Context) error) error
}

const (
	toolListPendingInvoices = "list_pending_invoices"
	toolListProducts        = "list_products"
	toolGetCustomerInfo     = "get_customer_info"
	toolSendPaymentReminder = "send_payment_reminder"
)

// AgentTools executes the functions the chat model may call. Every result is
// a JSON object; failures are reported inside it rather than as Go errors.
type AgentTools struct {
	invoices  InvoiceSource
	products  ProductSource
	reminders ReminderSender
	tasks     TaskSubmitter
	logger    *zap.Logger
}

func NewAgentTools(invoices InvoiceSource, products ProductSource, reminders ReminderSender, tasks TaskSubmitter, logger *zap.Logger) *AgentTools {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AgentTools{invoices: invoices, products: products, reminders: reminders, tasks: tasks, logger: logger}
}

func (t *AgentTools) Definitions() []ToolDefinition {
	noParams := map[string]any{"type": "object", "properties": map[string]any{}}
	return []ToolDefinition{
		{Type: "function", Function: ToolFunction{
			Name:        toolListPendingInvoices,
			Description: "Return all invoices with status 'sent' or 'pending'.",
			Parameters:  noParams,
		}},
		{Type: "function", Function: ToolFunction{
			Name:        toolListProducts,
			Description: "Return the list of products.",
			Parameters:  noParams,
		}},
		{Type: "function", Function: ToolFunction{
			Name:        toolGetCustomerInfo,
			Description: "Fetch a customer's invoices by exact name. Only send reminders when trigger_reminder is true and the user explicitly asked for it.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"customer_name":    map[string]any{"type": "string"},
					"trigger_reminder": map[string]any{"type": "boolean", "default": false},
				},
				"required": []string{"customer_name"},
			},
		}},
		{Type: "function", Function: ToolFunction{
			Name:        toolSendPaymentReminder,
			Description: "Send a payment reminder (WhatsApp message with a fresh payment link) for an invoice id.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"invoice_id": map[string]any{"type": "string"},
				},
				"required": []string{"invoice_id"},
			},
		}},
	}
}

// Call runs the named tool with JSON arguments and returns its JSON result.
func (t *AgentTools) Call(ctx context.Context, name, arguments string) string {
	logger := t.logger.With(zap.String("tool", name))
	logger.Info("tool call", zap.String("arguments", trimBody(arguments, 500)))

	var (
		result any
		err    error
	)
	switch name {
	case toolListPendingInvoices:
		result, err = t.listPendingInvoices(ctx)
	case toolListProducts:
		result, err = t.listProducts(ctx)
	case toolGetCustomerInfo:
		var args struct {
			CustomerName    string `json:"customer_name"`
			TriggerReminder bool   `json:"trigger_reminder"`
		}
		if err = decodeArguments(arguments, &args); err == nil {
			result, err = t.getCustomerInfo(ctx, args.CustomerName, args.TriggerReminder)
		}
	case toolSendPaymentReminder:
		var args struct {
			InvoiceID string `json:"invoice_id"`
		}
		if err = decodeArguments(arguments, &args); err == nil {
			result, err = t.sendPaymentReminder(ctx, args.InvoiceID)
		}
	default:
		result = map[string]any{"error": fmt.Sprintf("unknown tool %q", name)}
	}
	if err != nil {
		logger.Error("tool failed", zap.Error(err))
		result = map[string]any{"error": err.Error()}
	}

	out, mErr := json.Marshal(result)
	if mErr != nil {
		return `{"error":"tool result could not be encoded"}`
	}
	return string(out)
}

func decodeArguments(raw string, v any) error {
	if strings.TrimSpace(raw) == "" {
		raw = "{}"
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func (t *AgentTools) listPendingInvoices(ctx context.Context) (any, error) {
	invoices, err := t.invoices.ListInvoices(ctx)
	if err != nil {
		return nil, err
	}
	pending := []models.ReminderCandidate{}
	for _, inv := range invoices {
		switch inv.Status {
		case "sent", "pending":
			c := inv.Candidate()
			c.Status = inv.Status
			pending = append(pending, c)
		}
	}
	return map[string]any{"result": pending}, nil
}

func (t *AgentTools) listProducts(ctx context.Context) (any, error) {
	products, err := t.products.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	if products == nil {
		products = []models.Product{}
	}
	return map[string]any{"result": products}, nil
}

type reminderOutcome struct {
	InvoiceID string `json:"invoice_id"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

func (t *AgentTools) getCustomerInfo(ctx context.Context, customerName string, trigger bool) (any, error) {
	name := strings.ToLower(strings.TrimSpace(customerName))
	if name == "" {
		return map[string]any{"error": "Customer name missing."}, nil
	}

	invoices, err := t.invoices.ListInvoices(ctx)
	if err != nil {
		return nil, err
	}

	var (
		matches   []models.StoredInvoice
		reminders []reminderOutcome
	)
	for _, inv := range invoices {
		if strings.ToLower(strings.TrimSpace(inv.Buyer.Name)) != name {
			continue
		}
		matches = append(matches, inv)
		if !trigger {
			continue
		}
		outcome := reminderOutcome{InvoiceID: inv.ID, Status: "sent"}
		if err := t.reminders.SendReminder(ctx, inv); err != nil {
			outcome.Status = "failed"
			outcome.Error = err.Error()
		}
		reminders = append(reminders, outcome)
	}

	if len(matches) == 0 {
		return map[string]any{"message": fmt.Sprintf("No customer found with name '%s'.", customerName)}, nil
	}
	out := map[string]any{"invoices": matches}
	if trigger {
		out["reminders"] = reminders
	}
	return out, nil
}

func (t *AgentTools) sendPaymentReminder(ctx context.Context, invoiceID string) (any, error) {
	invoiceID = strings.TrimSpace(invoiceID)
	if invoiceID == "" {
		return map[string]any{"error": "Invoice id missing."}, nil
	}

	inv, err := t.invoices.GetInvoice(ctx, invoiceID)
	if errors.Is(err, models.ErrNotFound) {
		return map[string]any{"error": fmt.Sprintf("Invoice '%s' not found.", invoiceID)}, nil
	}
	if err != nil {
		return nil, err
	}

	err = t.tasks.Submit("reminder:"+invoiceID, func(ctx context.Context) error {
		return t.reminders.SendReminder(ctx, inv)
	})
	if err != nil {
		return nil, fmt.Errorf("queue reminder for %s: %w", invoiceID, err)
	}

	return map[string]any{
		"status":   "success",
		"message":  fmt.Sprintf("Reminder sent to customer for invoice %s.", invoiceID),
		"customer": inv.Buyer.Name,
		"contact":  inv.Buyer.Contact,
		"total":    inv.Total,
	}, nil
}
