package services

import (
	"context"
	"fmt"

	"firebase.google.com/go/messaging"
	"go.uber.org/zap"

	"invoicebot/internal/models"
)

type pushSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// PushService tells operators subscribed to a topic that an invoice was paid.
type PushService struct {
	client pushSender
	topic  string
	logger *zap.Logger
}

func NewPushService(client pushSender, topic string, logger *zap.Logger) *PushService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PushService{client: client, topic: topic, logger: logger}
}

func (s *PushService) NotifyPaid(ctx context.Context, st *models.WorkflowState) error {
	if s == nil || s.client == nil || s.topic == "" {
		return nil
	}
	title := "Invoice paid"
	body := fmt.Sprintf("Invoice #%s (%s) was paid", st.Invoice.Number, st.Invoice.Amount)
	message := &messaging.Message{
		Topic: s.topic,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: map[string]string{
			"invoice_number":  st.Invoice.Number,
			"payment_link_id": st.PaymentLinkID,
			"run_id":          st.RunID,
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{"apns-priority": "10"},
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Alert: &messaging.ApsAlert{Title: title, Body: body},
					Sound: "default",
				},
			},
		},
	}

	id, err := s.client.Send(ctx, message)
	if err != nil {
		return fmt.Errorf("fcm send: %w", err)
	}
	s.logger.Info("operator push sent", zap.String("invoice", st.Invoice.Number), zap.String("message_id", id))
	return nil
}
