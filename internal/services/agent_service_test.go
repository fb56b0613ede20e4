package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicebot/internal/models"
)

type scriptedClient struct {
	mu        sync.Mutex
	responses []ChatCompletionResponse
	requests  []ChatCompletionRequest
}

func (c *scriptedClient) Complete(_ context.Context, req ChatCompletionRequest) (ChatCompletionResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	if len(c.responses) == 0 {
		return ChatCompletionResponse{}, errors.New("no scripted response")
	}
	r := c.responses[0]
	if len(c.responses) > 1 {
		c.responses = c.responses[1:]
	}
	return r, nil
}

func toolCallResponse(id, name, args string) ChatCompletionResponse {
	return ChatCompletionResponse{Message: ChatMessage{
		Role:      "assistant",
		ToolCalls: []ToolCall{{ID: id, Type: "function", Function: ToolCallFunction{Name: name, Arguments: args}}},
	}}
}

func textResponse(s string) ChatCompletionResponse {
	return ChatCompletionResponse{Message: ChatMessage{Role: "assistant", Content: s}}
}

type fakeProducts struct {
	products []models.Product
}

func (f *fakeProducts) ListProducts(context.Context) ([]models.Product, error) {
	return f.products, nil
}

type recordingReminders struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (r *recordingReminders) SendReminder(_ context.Context, inv models.StoredInvoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, inv.ID)
	return nil
}

type inlineTasks struct {
	full bool
	ran  int
}

func (t *inlineTasks) Submit(_ string, fn func(ctx context.Context) error) error {
	if t.full {
		return models.ErrQueueFull
	}
	t.ran++
	return fn(context.Background())
}

func agentFixtures() (*fakeSource, *recordingReminders, *inlineTasks, *AgentTools) {
	source := &fakeSource{invoices: []models.StoredInvoice{
		storedInvoice("INV1", "9588423093", "120", "pending", "sent"),
		storedInvoice("INV2", "9123456780", "80", "paid", "paid"),
		{ID: "INV3", Buyer: models.BuyerInfo{Name: "Ravi Kumar", Contact: "9876543210"}, Status: "pending", Total: "45"},
	}}
	products := &fakeProducts{products: []models.Product{{ID: "p1", Name: "Widget", Price: 9.5, Stock: 3}}}
	rem := &recordingReminders{}
	tasks := &inlineTasks{}
	return source, rem, tasks, NewAgentTools(source, products, rem, tasks, nil)
}

func decodeResult(t *testing.T, raw string) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &out))
	return out
}

func TestToolListPendingInvoices(t *testing.T) {
	_, _, _, tools := agentFixtures()
	out := decodeResult(t, tools.Call(t.Context(), toolListPendingInvoices, "{}"))
	list := out["result"].([]any)
	require.Len(t, list, 2)
	ids := []string{list[0].(map[string]any)["invoice_id"].(string), list[1].(map[string]any)["invoice_id"].(string)}
	assert.ElementsMatch(t, []string{"INV1", "INV3"}, ids)
}

func TestToolListProducts(t *testing.T) {
	_, _, _, tools := agentFixtures()
	out := decodeResult(t, tools.Call(t.Context(), toolListProducts, ""))
	list := out["result"].([]any)
	require.Len(t, list, 1)
	assert.Equal(t, "Widget", list[0].(map[string]any)["name"])
}

func TestToolGetCustomerInfo(t *testing.T) {
	_, rem, _, tools := agentFixtures()

	out := decodeResult(t, tools.Call(t.Context(), toolGetCustomerInfo, `{"customer_name":"  "}`))
	assert.Equal(t, "Customer name missing.", out["error"])

	out = decodeResult(t, tools.Call(t.Context(), toolGetCustomerInfo, `{"customer_name":"Nobody Special"}`))
	assert.Equal(t, "No customer found with name 'Nobody Special'.", out["message"])

	out = decodeResult(t, tools.Call(t.Context(), toolGetCustomerInfo, `{"customer_name":"RAVI kumar"}`))
	assert.Len(t, out["invoices"], 1)
	assert.Empty(t, rem.sent)

	out = decodeResult(t, tools.Call(t.Context(), toolGetCustomerInfo, `{"customer_name":"ravi kumar","trigger_reminder":true}`))
	assert.Len(t, out["invoices"], 1)
	assert.Equal(t, []string{"INV3"}, rem.sent)
}

func TestToolSendPaymentReminder(t *testing.T) {
	_, rem, tasks, tools := agentFixtures()

	out := decodeResult(t, tools.Call(t.Context(), toolSendPaymentReminder, `{"invoice_id":"INV1"}`))
	assert.Equal(t, "success", out["status"])
	assert.Equal(t, "Buyer INV1", out["customer"])
	assert.Equal(t, "9588423093", out["contact"])
	assert.Equal(t, "120", out["total"])
	assert.Equal(t, 1, tasks.ran)
	assert.Equal(t, []string{"INV1"}, rem.sent)

	out = decodeResult(t, tools.Call(t.Context(), toolSendPaymentReminder, `{"invoice_id":"missing"}`))
	assert.Contains(t, out["error"], "not found")

	tasks.full = true
	out = decodeResult(t, tools.Call(t.Context(), toolSendPaymentReminder, `{"invoice_id":"INV1"}`))
	assert.Contains(t, out["error"], "queue is full")
}

func TestToolBadArgumentsAndUnknownTool(t *testing.T) {
	_, _, _, tools := agentFixtures()
	out := decodeResult(t, tools.Call(t.Context(), toolSendPaymentReminder, `{not json`))
	assert.Contains(t, out["error"], "invalid arguments")

	out = decodeResult(t, tools.Call(t.Context(), "drop_tables", `{}`))
	assert.Contains(t, out["error"], "unknown tool")
}

func TestAgentChatRunsToolsAndKeepsHistory(t *testing.T) {
	_, _, _, tools := agentFixtures()
	client := &scriptedClient{responses: []ChatCompletionResponse{
		toolCallResponse("call_1", toolListPendingInvoices, "{}"),
		textResponse("INV1 and INV3 are pending."),
		textResponse("You're welcome."),
	}}
	agent := NewAgentService(AgentConfig{Model: "m", MaxToolRounds: 5, HistoryLimit: 10}, client, tools, nil)

	reply, err := agent.Chat(t.Context(), "", "which invoices are pending?")
	require.NoError(t, err)
	assert.Equal(t, "INV1 and INV3 are pending.", reply)

	require.Len(t, client.requests, 2)
	second := client.requests[1].Messages
	last := second[len(second)-1]
	assert.Equal(t, "tool", last.Role)
	assert.Equal(t, "call_1", last.ToolCallID)
	assert.Contains(t, last.Content, "INV3")

	reply, err = agent.Chat(t.Context(), DefaultThreadID, "thanks")
	require.NoError(t, err)
	assert.Equal(t, "You're welcome.", reply)

	third := client.requests[2].Messages
	// system, previous user, previous answer, new user
	require.Len(t, third, 4)
	assert.Equal(t, "which invoices are pending?", third[1].Content)
	assert.Equal(t, "INV1 and INV3 are pending.", third[2].Content)
}

func TestAgentChatStopsAfterToolRoundLimit(t *testing.T) {
	_, _, _, tools := agentFixtures()
	client := &scriptedClient{responses: []ChatCompletionResponse{
		toolCallResponse("call_x", toolListProducts, "{}"),
	}}
	agent := NewAgentService(AgentConfig{Model: "m", MaxToolRounds: 2}, client, tools, nil)

	reply, err := agent.Chat(t.Context(), "t1", "loop forever")
	require.NoError(t, err)
	assert.Equal(t, agentFallbackAnswer, reply)
	require.Len(t, client.requests, 3)
	assert.Empty(t, client.requests[2].Tools)
}

func TestAgentChatValidation(t *testing.T) {
	_, _, _, tools := agentFixtures()
	agent := NewAgentService(AgentConfig{}, &scriptedClient{}, tools, nil)

	_, err := agent.Chat(t.Context(), "t", "   ")
	assert.True(t, errors.Is(err, models.ErrValidation))

	_, err = agent.Chat(t.Context(), "t", "hi")
	assert.ErrorContains(t, err, "no scripted response")
}

func TestAgentHistoryIsBounded(t *testing.T) {
	_, _, _, tools := agentFixtures()
	client := &scriptedClient{responses: []ChatCompletionResponse{textResponse("ok")}}
	agent := NewAgentService(AgentConfig{HistoryLimit: 4}, client, tools, nil)

	for i := 0; i < 5; i++ {
		_, err := agent.Chat(t.Context(), "t", "ping")
		require.NoError(t, err)
	}
	assert.Len(t, agent.history("t"), 4)
	agent.Reset("t")
	assert.Empty(t, agent.history("t"))
}
