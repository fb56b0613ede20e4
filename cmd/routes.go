package main

import (
	"net/http"

	"github.com/bmizerany/pat"
	"github.com/justinas/alice"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"invoicebot/internal/handlers"
)

func (app *application) routes() http.Handler {
	standardMiddleware := alice.New(app.recoverPanic, app.logRequest, secureHeaders, makeResponseJSON)
	wsMiddleware := alice.New(app.recoverPanic, app.logRequest)

	mux := pat.New()

	mux.Get("/api/health", standardMiddleware.ThenFunc(handlers.Health))

	// Invoices
	mux.Post("/api/invoice", standardMiddleware.ThenFunc(app.invoiceHandler.Process))
	mux.Get("/api/payment-success/:invoice_number", standardMiddleware.ThenFunc(app.paymentHandler.Success))

	// Reminders
	mux.Post("/api/reminders/sweep", standardMiddleware.ThenFunc(app.reminderHandler.Sweep))
	mux.Get("/api/reminders", standardMiddleware.ThenFunc(app.reminderHandler.List))

	// Agent
	mux.Post("/agent", standardMiddleware.ThenFunc(app.agentHandler.Chat))
	mux.Get("/agent/ws", wsMiddleware.ThenFunc(app.AgentWebSocketHandler))

	mux.Get("/metrics", promhttp.Handler())

	return mux
}
