package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"invoicebot/internal/models"
)

// ErrProviderAuth marks payment provider failures caused by bad or missing credentials.
var ErrProviderAuth = errors.New("payment provider authentication failed")

type RazorpayConfig struct {
	KeyID     string
	KeySecret string

	// API base, e.g. https://api.razorpay.com
	BaseURL string

	Client *http.Client
	Logger *zap.Logger
}

// RazorpayService creates and inspects Razorpay payment links.
// It holds no per-request state and is safe for concurrent use.
type RazorpayService struct {
	keyID      string
	keySecret  string
	baseURL    *url.URL
	httpClient *http.Client
	logger     *zap.Logger
}

func NewRazorpayService(cfg RazorpayConfig) (*RazorpayService, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("razorpay: base_url is required")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}

	s := &RazorpayService{
		keyID:      strings.TrimSpace(cfg.KeyID),
		keySecret:  strings.TrimSpace(cfg.KeySecret),
		baseURL:    u,
		httpClient: client,
		logger:     logger,
	}
	if s.keyID == "" || s.keySecret == "" {
		logger.Warn("razorpay credentials are not set; link creation will fail")
	}
	return s, nil
}

// CreateLinkRequest describes a payment link to create.
type CreateLinkRequest struct {
	AmountMinor int64
	Currency    string
	Description string
	Contact     string
	CallbackURL string
	ReferenceID string
}

// PaymentLink is the provider's answer to a create or fetch call.
type PaymentLink struct {
	ID       string `json:"id"`
	ShortURL string `json:"short_url"`
	Status   string `json:"status"`
}

type paymentLinkRequest struct {
	Amount         int64             `json:"amount"`
	Currency       string            `json:"currency"`
	Description    string            `json:"description"`
	Customer       map[string]string `json:"customer"`
	Notify         map[string]bool   `json:"notify"`
	CallbackURL    string            `json:"callback_url,omitempty"`
	CallbackMethod string            `json:"callback_method,omitempty"`
	ReferenceID    string            `json:"reference_id,omitempty"`
}

func (s *RazorpayService) CreateLink(ctx context.Context, req CreateLinkRequest) (PaymentLink, error) {
	logger := s.logger.With(zap.String("op", "CreateLink"))
	if err := s.checkCredentials(); err != nil {
		return PaymentLink{}, err
	}
	if req.AmountMinor <= 0 {
		return PaymentLink{}, fmt.Errorf("%w: amount must be positive", models.ErrValidation)
	}

	body := paymentLinkRequest{
		Amount:      req.AmountMinor,
		Currency:    req.Currency,
		Description: req.Description,
		Customer:    map[string]string{"contact": req.Contact},
		Notify:      map[string]bool{"sms": true, "email": false},
		ReferenceID: req.ReferenceID,
	}
	if req.CallbackURL != "" {
		body.CallbackURL = req.CallbackURL
		body.CallbackMethod = "get"
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return PaymentLink{}, fmt.Errorf("marshal payment link: %w", err)
	}

	var link PaymentLink
	if err := s.do(ctx, http.MethodPost, "/v1/payment_links", payload, &link); err != nil {
		if errors.Is(err, ErrProviderAuth) {
			logger.Error("razorpay authentication failed; verify RAZORPAY_KEY_ID and RAZORPAY_KEY_SECRET", zap.Error(err))
		} else {
			logger.Error("create payment link failed", zap.Error(err))
		}
		return PaymentLink{}, err
	}
	if strings.TrimSpace(link.ID) == "" {
		return PaymentLink{}, fmt.Errorf("razorpay: create payment link: empty id")
	}
	logger.Info("payment link created", zap.String("link_id", link.ID), zap.Int64("amount", req.AmountMinor))
	return link, nil
}

// FetchLinkStatus returns the current status of a payment link.
// Razorpay reports "partially_paid"; it is reported here as "paid_partially".
func (s *RazorpayService) FetchLinkStatus(ctx context.Context, linkID string) (string, error) {
	if err := s.checkCredentials(); err != nil {
		return "", err
	}
	var link PaymentLink
	if err := s.do(ctx, http.MethodGet, "/v1/payment_links/"+url.PathEscape(linkID), nil, &link); err != nil {
		return "", err
	}
	status := strings.ToLower(strings.TrimSpace(link.Status))
	if status == "partially_paid" {
		status = string(models.PaymentPaidPartially)
	}
	return status, nil
}

func (s *RazorpayService) checkCredentials() error {
	if s.keyID == "" || s.keySecret == "" {
		return fmt.Errorf("%w: razorpay key id/secret not configured", ErrProviderAuth)
	}
	return nil
}

func (s *RazorpayService) do(ctx context.Context, method, p string, payload []byte, out any) error {
	endpoint := *s.baseURL
	endpoint.Path = path.Join(endpoint.Path, p)

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(s.keyID, s.keySecret)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("razorpay request: %w", err)
	}
	defer resp.Body.Close()

	b, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	s.logger.Debug("razorpay raw", zap.String("status", resp.Status), zap.String("body", trimBody(string(b), 2000)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newProviderError(resp.StatusCode, resp.Status, b)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("decode razorpay response: %w", err)
	}
	return nil
}

// ProviderError is a non-2xx answer from the payment provider.
type ProviderError struct {
	StatusCode  int
	Status      string
	Code        string
	Description string
	Body        string
}

func newProviderError(statusCode int, status string, body []byte) *ProviderError {
	e := &ProviderError{StatusCode: statusCode, Status: status, Body: string(body)}
	var parsed struct {
		Error struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &parsed) == nil {
		e.Code = parsed.Error.Code
		e.Description = parsed.Error.Description
	}
	return e
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Description != "" {
		return fmt.Sprintf("razorpay error: %s: %s", e.Status, e.Description)
	}
	bt := strings.TrimSpace(e.Body)
	if bt == "" {
		return fmt.Sprintf("razorpay error: %s", e.Status)
	}
	return fmt.Sprintf("razorpay error: %s: %s", e.Status, trimBody(bt, 500))
}

// Unwrap exposes ErrProviderAuth for authentication failures.
func (e *ProviderError) Unwrap() error {
	if e.IsAuth() {
		return ErrProviderAuth
	}
	return nil
}

func (e *ProviderError) IsAuth() bool {
	if e == nil {
		return false
	}
	return e.StatusCode == http.StatusUnauthorized || strings.Contains(e.Description, "Authentication failed")
}

// AmountMinorUnits converts a decimal amount string into minor units (x100),
// truncating anything past two fractional digits.
func AmountMinorUnits(amount string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return 0, fmt.Errorf("%w: amount %q is not a decimal number", models.ErrValidation, amount)
	}
	if !d.IsPositive() {
		return 0, fmt.Errorf("%w: amount %q must be positive", models.ErrValidation, amount)
	}
	return d.Mul(decimal.NewFromInt(100)).IntPart(), nil
}

func trimBody(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
