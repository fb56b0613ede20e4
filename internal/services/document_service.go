package services

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/go-pdf/fpdf"
	"go.uber.org/zap"

	"invoicebot/internal/models"
)

// ObjectStore publishes a blob under a key and returns its public URL.
// Putting the same key twice overwrites the previous object.
type ObjectStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

type RenderError struct {
	Invoice string
	Err     error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render invoice %q: %v", e.Invoice, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

type UploadError struct {
	Key string
	Err error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s: %v", e.Key, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

type invoiceField struct {
	Key   string
	Value string
}

// invoiceFields lists the labelled lines printed under the title, in order.
func invoiceFields(invoice models.InvoiceData, currency string) []invoiceField {
	fields := []invoiceField{{Key: "Amount", Value: currency + " " + invoice.Amount}}
	keys := make([]string, 0, len(invoice.Extra))
	for k := range invoice.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if v := models.ScalarString(invoice.Extra[k]); v != "" {
			fields = append(fields, invoiceField{Key: k, Value: v})
		}
	}
	return fields
}

type DocumentService struct {
	store    ObjectStore
	currency string
	compress bool
	logger   *zap.Logger
}

func NewDocumentService(store ObjectStore, currency string, logger *zap.Logger) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if currency == "" {
		currency = "INR"
	}
	return &DocumentService{store: store, currency: currency, compress: true, logger: logger}
}

// DocumentKey is the storage key of an invoice PDF.
func DocumentKey(number string) string {
	return "invoices/invoice_" + number
}

// Render lays the invoice out as a single-page PDF.
func (s *DocumentService) Render(invoice models.InvoiceData, paymentURL string) ([]byte, error) {
	if strings.TrimSpace(invoice.Number) == "" {
		return nil, &RenderError{Err: fmt.Errorf("%w: invoice_number is empty", models.ErrValidation)}
	}
	if paymentURL == "" {
		paymentURL = notGeneratedYet
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(s.compress)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Invoice "+invoice.Number, true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, tr("INVOICE #"+invoice.Number), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 12)
	_, fontHt := pdf.GetFontSize()
	lineHt := fontHt * 1.5
	label := func(text string) {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.Write(lineHt, tr(text+": "))
		pdf.SetFont("Helvetica", "", 12)
	}
	for _, f := range invoiceFields(invoice, s.currency) {
		label(f.Key)
		pdf.Write(lineHt, tr(f.Value))
		pdf.Ln(lineHt)
	}

	pdf.Ln(lineHt)
	label("Payment link")
	if strings.HasPrefix(paymentURL, "http") {
		pdf.SetTextColor(0, 0, 200)
		pdf.WriteLinkString(lineHt, paymentURL, paymentURL)
		pdf.SetTextColor(0, 0, 0)
	} else {
		pdf.Write(lineHt, tr(paymentURL))
	}
	pdf.Ln(lineHt)

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, &RenderError{Invoice: invoice.Number, Err: err}
	}
	return out.Bytes(), nil
}

// RenderAndPublish renders the invoice and uploads it, returning the public URL.
func (s *DocumentService) RenderAndPublish(ctx context.Context, invoice models.InvoiceData, paymentURL string) (string, error) {
	logger := s.logger.With(zap.String("op", "RenderAndPublish"), zap.String("invoice", invoice.Number))

	body, err := s.Render(invoice, paymentURL)
	if err != nil {
		logger.Error("render failed", zap.Error(err))
		return "", err
	}

	key := DocumentKey(invoice.Number)
	url, err := s.store.Put(ctx, key, body, "application/pdf")
	if err != nil {
		logger.Error("upload failed", zap.String("key", key), zap.Error(err))
		return "", &UploadError{Key: key, Err: err}
	}
	logger.Info("invoice document published", zap.String("key", key), zap.Int("bytes", len(body)))
	return url, nil
}
