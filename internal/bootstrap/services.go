package bootstrap

import (
	"context"

	"invoicebot/internal/repositories"
	"invoicebot/internal/services"
)

// Services is the wired domain layer shared by the server and the CLI.
type Services struct {
	Invoices  *repositories.InvoiceRepo
	Products  *repositories.ProductRepo
	Razorpay  *services.RazorpayService
	Messenger *services.UltraMsgService
	Documents *services.DocumentService
	Push      *services.PushService
	Workflow  *services.WorkflowService
	Reminders *services.ReminderService
	Tasks     *services.TaskPool
	Agent     *services.AgentService
}

// NewServices builds the domain services. ctx bounds the background task pool.
func NewServices(ctx context.Context, d *Deps) (*Services, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	cfg := d.Config
	logger := d.Logger

	razorpay, err := services.NewRazorpayService(services.RazorpayConfig{
		KeyID:     cfg.Razorpay.KeyID,
		KeySecret: cfg.Razorpay.KeySecret,
		BaseURL:   cfg.Razorpay.BaseURL,
		Logger:    logger.Named("razorpay"),
	})
	if err != nil {
		return nil, err
	}

	s := &Services{
		Invoices: repositories.NewInvoiceRepo(d.Firestore),
		Products: repositories.NewProductRepo(d.Firestore),
		Razorpay: razorpay,
		Messenger: services.NewUltraMsgService(services.UltraMsgConfig{
			Instance: cfg.UltraMsg.Instance,
			Token:    cfg.UltraMsg.Token,
			BaseURL:  cfg.UltraMsg.BaseURL,
			Logger:   logger.Named("ultramsg"),
		}),
		Documents: services.NewDocumentService(d.Store, cfg.Razorpay.Currency, logger.Named("documents")),
	}
	if d.Messaging != nil {
		s.Push = services.NewPushService(d.Messaging, cfg.Firebase.OperatorTopic, logger.Named("push"))
	}

	var notifier services.PaymentNotifier
	if s.Push != nil {
		notifier = s.Push
	}
	s.Workflow = services.NewWorkflowService(services.WorkflowConfig{
		Mode:                cfg.Workflow.Mode,
		FallbackPhone:       cfg.Workflow.FallbackPhone,
		Currency:            cfg.Razorpay.Currency,
		CallbackBaseURL:     cfg.Server.BaseURL,
		PollAttempts:        cfg.Workflow.PollAttempts,
		PollInterval:        cfg.Workflow.PollInterval,
		ConfirmOnlyWhenPaid: cfg.Workflow.ConfirmOnlyWhenPaid,
		SendDocument:        cfg.Workflow.SendDocument,
	}, s.Razorpay, s.Documents, s.Messenger, notifier, logger.Named("workflow"))

	s.Reminders = services.NewReminderService(services.ReminderConfig{
		Currency:        cfg.Razorpay.Currency,
		CallbackBaseURL: cfg.Server.BaseURL,
		IndexedQuery:    cfg.Reminders.IndexedQuery,
	}, s.Invoices, d.Ledger, s.Razorpay, s.Messenger, logger.Named("reminders"))

	s.Tasks = services.NewTaskPool(ctx, cfg.Agent.ReminderWorkers, cfg.Agent.ReminderQueue, logger.Named("tasks"))

	tools := services.NewAgentTools(s.Invoices, s.Products, s.Reminders, s.Tasks, logger.Named("tools"))
	client := services.NewOpenAIClient(nil, cfg.Agent.APIKey, cfg.Agent.BaseURL)
	s.Agent = services.NewAgentService(services.AgentConfig{
		Model:         cfg.Agent.Model,
		MaxToolRounds: cfg.Agent.MaxToolRounds,
		HistoryLimit:  cfg.Agent.HistoryLimit,
	}, client, tools, logger.Named("agent"))

	return s, nil
}
