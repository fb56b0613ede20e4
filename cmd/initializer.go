package main

import (
	"go.uber.org/zap"

	"invoicebot/internal/bootstrap"
	"invoicebot/internal/config"
	"invoicebot/internal/handlers"
)

type application struct {
	cfg           config.Config
	logger        *zap.Logger
	sentryEnabled bool

	services *bootstrap.Services

	invoiceHandler  *handlers.InvoiceHandler
	paymentHandler  *handlers.PaymentHandler
	agentHandler    *handlers.AgentHandler
	reminderHandler *handlers.ReminderHandler
}

func initializeApp(cfg config.Config, svc *bootstrap.Services, logger *zap.Logger) *application {
	return &application{
		cfg:             cfg,
		logger:          logger,
		services:        svc,
		invoiceHandler:  handlers.NewInvoiceHandler(svc.Workflow, logger.Named("invoice")),
		paymentHandler:  handlers.NewPaymentHandler(svc.Invoices, cfg.Razorpay.KeySecret, logger.Named("payment")),
		agentHandler:    handlers.NewAgentHandler(svc.Agent, logger.Named("agent")),
		reminderHandler: handlers.NewReminderHandler(svc.Reminders, logger.Named("reminders")),
	}
}
