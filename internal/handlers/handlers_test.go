package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/bmizerany/pat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicebot/internal/models"
	"invoicebot/internal/services"
)

type fakeWorkflow struct {
	gotInvoice models.InvoiceData
	gotPhone   string
	err        error
}

func (f *fakeWorkflow) Run(_ context.Context, inv models.InvoiceData, phone string) (*models.WorkflowState, error) {
	f.gotInvoice = inv
	f.gotPhone = phone
	if f.err != nil {
		return nil, f.err
	}
	return &models.WorkflowState{
		RunID:           "run-1",
		Invoice:         inv,
		CustomerPhone:   phone,
		NormalizedPhone: "+91" + phone,
		PaymentStatus:   models.PaymentPaid,
	}, nil
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	return out
}

func TestInvoiceHandlerProcess(t *testing.T) {
	wf := &fakeWorkflow{}
	h := NewInvoiceHandler(wf, nil)

	body := `{"invoice_data":{"invoice_number":202,"amount":"249.50","customer":"Asha"},"customer_phone":9588423093}`
	rr := httptest.NewRecorder()
	h.Process(rr, httptest.NewRequest(http.MethodPost, "/api/invoice", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "202", wf.gotInvoice.Number)
	assert.Equal(t, "9588423093", wf.gotPhone)
	assert.Equal(t, "Asha", wf.gotInvoice.Extra["customer"])

	out := decodeBody(t, rr)
	assert.Equal(t, "paid", out["payment_status"])
	inv := out["invoice_data"].(map[string]any)
	assert.Equal(t, "202", inv["invoice_number"])
	assert.Equal(t, "Asha", inv["customer"])
}

func TestInvoiceHandlerErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
		want int
	}{
		{"malformed json", `{"invoice_data":`, nil, http.StatusBadRequest},
		{"missing invoice_data", `{"customer_phone":"1"}`, nil, http.StatusBadRequest},
		{"null invoice_data", `{"invoice_data":null}`, nil, http.StatusBadRequest},
		{"validation", `{"invoice_data":{"amount":"1"}}`, fmt.Errorf("%w: invoice_number is required", models.ErrValidation), http.StatusBadRequest},
		{"provider failure", `{"invoice_data":{"invoice_number":"1","amount":"1"}}`, fmt.Errorf("create_link: %w", services.ErrProviderAuth), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewInvoiceHandler(&fakeWorkflow{err: tt.err}, nil)
			rr := httptest.NewRecorder()
			h.Process(rr, httptest.NewRequest(http.MethodPost, "/api/invoice", strings.NewReader(tt.body)))
			assert.Equal(t, tt.want, rr.Code)
			assert.NotEmpty(t, decodeBody(t, rr)["error"])
		})
	}
}

type fakeUpdater struct {
	id, status string
	err        error
}

func (f *fakeUpdater) MarkStatus(_ context.Context, id, status string) error {
	f.id, f.status = id, status
	return f.err
}

func signedCallback(secret string) url.Values {
	v := url.Values{}
	v.Set("razorpay_payment_id", "pay_1")
	v.Set("razorpay_payment_link_id", "plink_1")
	v.Set("razorpay_payment_link_reference_id", "202-abcd1234")
	v.Set("razorpay_payment_link_status", "paid")
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte("plink_1|202-abcd1234|paid|pay_1"))
	v.Set("razorpay_signature", hex.EncodeToString(mac.Sum(nil)))
	return v
}

func servePaymentSuccess(h *PaymentHandler, target string) *httptest.ResponseRecorder {
	mux := pat.New()
	mux.Get("/api/payment-success/:invoice_number", http.HandlerFunc(h.Success))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
	return rr
}

func TestPaymentSuccessWithoutCallbackParams(t *testing.T) {
	up := &fakeUpdater{}
	rr := servePaymentSuccess(NewPaymentHandler(up, "secret", nil), "/api/payment-success/202")

	require.Equal(t, http.StatusOK, rr.Code)
	out := decodeBody(t, rr)
	assert.Equal(t, "ok", out["status"])
	assert.Equal(t, "202", out["invoice_number"])
	assert.Empty(t, up.id)
}

func TestPaymentSuccessVerifiedCallback(t *testing.T) {
	up := &fakeUpdater{}
	target := "/api/payment-success/202?" + signedCallback("secret").Encode()
	rr := servePaymentSuccess(NewPaymentHandler(up, "secret", nil), target)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "202", up.id)
	assert.Equal(t, "paid", up.status)
	assert.Equal(t, "paid", decodeBody(t, rr)["payment_status"])
}

func TestPaymentSuccessBadSignature(t *testing.T) {
	up := &fakeUpdater{}
	target := "/api/payment-success/202?" + signedCallback("other").Encode()
	rr := servePaymentSuccess(NewPaymentHandler(up, "secret", nil), target)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Empty(t, up.id)
}

func TestPaymentSuccessUnknownInvoice(t *testing.T) {
	up := &fakeUpdater{err: models.ErrNotFound}
	target := "/api/payment-success/999?" + signedCallback("secret").Encode()
	rr := servePaymentSuccess(NewPaymentHandler(up, "secret", nil), target)
	assert.Equal(t, http.StatusOK, rr.Code)
}

type fakeChatter struct {
	thread string
	reply  string
	err    error
}

func (f *fakeChatter) Chat(_ context.Context, thread, _ string) (string, error) {
	f.thread = thread
	return f.reply, f.err
}

func TestAgentHandler(t *testing.T) {
	ch := &fakeChatter{reply: "2 invoices are pending"}
	h := NewAgentHandler(ch, nil)

	rr := httptest.NewRecorder()
	h.Chat(rr, httptest.NewRequest(http.MethodPost, "/agent", strings.NewReader(`{"message":"pending?","thread_id":"t9"}`)))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "2 invoices are pending", decodeBody(t, rr)["reply"])
	assert.Equal(t, "t9", ch.thread)

	rr = httptest.NewRecorder()
	h.Chat(rr, httptest.NewRequest(http.MethodPost, "/agent", strings.NewReader(`{"message":"  "}`)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	ch.err = errors.New("upstream down")
	rr = httptest.NewRecorder()
	h.Chat(rr, httptest.NewRequest(http.MethodPost, "/agent", strings.NewReader(`{"message":"hi"}`)))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

type fakeSweeper struct {
	res     services.SweepResult
	err     error
	entries []models.LedgerEntry
}

func (f *fakeSweeper) ScanOnce(context.Context) (services.SweepResult, error) { return f.res, f.err }
func (f *fakeSweeper) Entries(context.Context) ([]models.LedgerEntry, error) {
	return f.entries, nil
}

func TestReminderHandler(t *testing.T) {
	sw := &fakeSweeper{res: services.SweepResult{Scanned: 3, Sent: []string{"A"}}}
	h := NewReminderHandler(sw, nil)

	rr := httptest.NewRecorder()
	h.Sweep(rr, httptest.NewRequest(http.MethodPost, "/api/reminders/sweep", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.EqualValues(t, 3, decodeBody(t, rr)["scanned"])

	sw.err = services.ErrSweepInProgress
	rr = httptest.NewRecorder()
	h.Sweep(rr, httptest.NewRequest(http.MethodPost, "/api/reminders/sweep", nil))
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = httptest.NewRecorder()
	h.List(rr, httptest.NewRequest(http.MethodGet, "/api/reminders", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []any{}, decodeBody(t, rr)["entries"])
}

func TestHealth(t *testing.T) {
	rr := httptest.NewRecorder()
	Health(rr, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Agent running", decodeBody(t, rr)["message"])
}

func TestErrorStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, errorStatus(fmt.Errorf("x: %w", models.ErrValidation)))
	assert.Equal(t, http.StatusNotFound, errorStatus(models.ErrNotFound))
	assert.Equal(t, http.StatusServiceUnavailable, errorStatus(models.ErrQueueFull))
	assert.Equal(t, http.StatusInternalServerError, errorStatus(&services.ProviderError{StatusCode: 401}))
}
