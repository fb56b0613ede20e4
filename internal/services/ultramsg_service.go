package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"invoicebot/internal/metrics"
)

const defaultUltraMsgBaseURL = "https://api.ultramsg.com"

type UltraMsgConfig struct {
	Instance string
	Token    string
	BaseURL  string

	Client *http.Client
	Logger *zap.Logger
}

// Ack is the raw provider acknowledgement of a sent message.
type Ack struct {
	StatusCode int
	Body       string
}

// TransportError is returned when a message could not be handed to the provider.
type TransportError struct {
	Endpoint   string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ultramsg %s: %v", e.Endpoint, e.Err)
	}
	return fmt.Sprintf("ultramsg %s: status %d: %s", e.Endpoint, e.StatusCode, trimBody(e.Body, 300))
}

func (e *TransportError) Unwrap() error { return e.Err }

// SendOption tweaks a single outgoing message.
type SendOption func(url.Values)

// WithPriority sets the provider queue priority. Reminders go out with "10".
func WithPriority(p string) SendOption {
	return func(v url.Values) { v.Set("priority", p) }
}

type UltraMsgService struct {
	instance   string
	token      string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewUltraMsgService(cfg UltraMsgConfig) *UltraMsgService {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = defaultUltraMsgBaseURL
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Instance == "" || cfg.Token == "" {
		logger.Warn("ultramsg instance or token is not set; messages will be rejected")
	}
	return &UltraMsgService{
		instance:   strings.TrimSpace(cfg.Instance),
		token:      strings.TrimSpace(cfg.Token),
		baseURL:    base,
		httpClient: client,
		logger:     logger,
	}
}

func (s *UltraMsgService) SendText(ctx context.Context, phone, body string, opts ...SendOption) (Ack, error) {
	form := url.Values{}
	form.Set("to", phone)
	form.Set("body", body)
	for _, o := range opts {
		o(form)
	}
	ack, err := s.post(ctx, "messages/chat", form)
	metrics.MessageSent("text", err == nil)
	return ack, err
}

func (s *UltraMsgService) SendDocument(ctx context.Context, phone, documentURL, filename, caption string) (Ack, error) {
	form := url.Values{}
	form.Set("to", phone)
	form.Set("document", documentURL)
	form.Set("filename", filename)
	form.Set("caption", caption)
	ack, err := s.post(ctx, "messages/document", form)
	metrics.MessageSent("document", err == nil)
	return ack, err
}

func (s *UltraMsgService) post(ctx context.Context, endpoint string, form url.Values) (Ack, error) {
	form.Set("token", s.token)
	target := s.baseURL + "/" + path.Join(s.instance, endpoint)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		return Ack{}, &TransportError{Endpoint: endpoint, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return Ack{}, &TransportError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	ack := Ack{StatusCode: resp.StatusCode, Body: string(b)}
	s.logger.Debug("ultramsg raw", zap.String("endpoint", endpoint), zap.Int("status", resp.StatusCode), zap.String("body", trimBody(ack.Body, 500)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || strings.Contains(strings.ToLower(ack.Body), "error") {
		return ack, &TransportError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: ack.Body}
	}
	return ack, nil
}
