package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// InvoiceData is the invoice payload accepted by the workflow. Fields other
// than the number and the amount are kept in Extra and forwarded untouched
// into the rendered document and the workflow result.
type InvoiceData struct {
	Number     string
	Amount     string
	PaymentURL string
	Extra      map[string]any
}

func (d *InvoiceData) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("%w: invoice_data must be an object", ErrValidation)
	}

	d.Number = ScalarString(raw["invoice_number"])
	d.Amount = ScalarString(raw["amount"])
	d.PaymentURL = ScalarString(raw["payment_url"])
	delete(raw, "invoice_number")
	delete(raw, "amount")
	delete(raw, "payment_url")
	d.Extra = raw
	return nil
}

func (d InvoiceData) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Extra)+3)
	for k, v := range d.Extra {
		out[k] = v
	}
	out["invoice_number"] = d.Number
	out["amount"] = d.Amount
	if d.PaymentURL != "" {
		out["payment_url"] = d.PaymentURL
	}
	return json.Marshal(out)
}

// Validate reports missing required fields.
func (d InvoiceData) Validate() error {
	if strings.TrimSpace(d.Number) == "" {
		return fmt.Errorf("%w: invoice_number is required", ErrValidation)
	}
	if strings.TrimSpace(d.Amount) == "" {
		return fmt.Errorf("%w: amount is required", ErrValidation)
	}
	return nil
}

// BuyerInfo mirrors the buyerInfo map of an invoice document.
type BuyerInfo struct {
	Name    string `json:"name"`
	Contact string `json:"contact"`
	Status  string `json:"status,omitempty"`
}

// StoredInvoice is an invoice document read from the record store.
type StoredInvoice struct {
	ID       string         `json:"invoice_id"`
	Buyer    BuyerInfo      `json:"buyerInfo"`
	Status   string         `json:"status"`
	Total    string         `json:"total"`
	Currency string         `json:"currency,omitempty"`
	Fields   map[string]any `json:"-"`
}

// ReminderStatus is the status the reminder sweep filters on: the buyer
// status, falling back to the invoice status when the buyer has none.
func (i StoredInvoice) ReminderStatus() string {
	status := strings.ToLower(strings.TrimSpace(i.Buyer.Status))
	if status == "" {
		status = strings.ToLower(strings.TrimSpace(i.Status))
	}
	return status
}

func (i StoredInvoice) Candidate() ReminderCandidate {
	return ReminderCandidate{
		InvoiceID: i.ID,
		BuyerName: i.Buyer.Name,
		Contact:   i.Buyer.Contact,
		Amount:    i.Total,
		Status:    i.ReminderStatus(),
	}
}

// ReminderCandidate is the read-only view of an invoice selected for a reminder.
type ReminderCandidate struct {
	InvoiceID string `json:"invoice_id"`
	BuyerName string `json:"name,omitempty"`
	Contact   string `json:"contact"`
	Amount    string `json:"total"`
	Status    string `json:"status"`
}

// Product is a catalogue entry from the record store.
type Product struct {
	ID       string  `json:"productId"`
	Name     string  `json:"name"`
	SKU      string  `json:"sku,omitempty"`
	Price    float64 `json:"price"`
	Currency string  `json:"currency,omitempty"`
	Stock    int64   `json:"stock"`
	Unit     string  `json:"unit,omitempty"`
}

// ScalarString renders JSON-ish scalars (strings, numbers, bools) as text.
func ScalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}
