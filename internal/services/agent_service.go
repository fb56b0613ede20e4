package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"invoicebot/internal/models"
)

const (
	DefaultThreadID     = "global_user_1"
	agentFallbackAnswer = "Sorry, I could not finish that request. Please try again or rephrase it."
	agentSystemPrompt   = "You are an accounts assistant for a small business. " +
		"Use the tools to look up invoices, products and customers. " +
		"Only send payment reminders when the user explicitly asks for one. " +
		"Amounts are in Indian rupees. Answer briefly."
)

type AgentConfig struct {
	Model         string
	MaxToolRounds int
	HistoryLimit  int
	Timeout       time.Duration
}

// AgentService answers free-text requests using a tool-calling chat model.
type AgentService struct {
	cfg    AgentConfig
	client ChatCompletionClient
	tools  *AgentTools
	logger *zap.Logger

	mu      sync.Mutex
	threads map[string][]ChatMessage
}

func NewAgentService(cfg AgentConfig, client ChatCompletionClient, tools *AgentTools, logger *zap.Logger) *AgentService {
	if cfg.MaxToolRounds <= 0 {
		cfg.MaxToolRounds = 5
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 40
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AgentService{
		cfg:     cfg,
		client:  client,
		tools:   tools,
		logger:  logger,
		threads: make(map[string][]ChatMessage),
	}
}

// Chat sends message on the given thread and returns the model's final reply.
func (s *AgentService) Chat(ctx context.Context, threadID, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", fmt.Errorf("%w: message is required", models.ErrValidation)
	}
	if strings.TrimSpace(threadID) == "" {
		threadID = DefaultThreadID
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	logger := s.logger.With(zap.String("op", "Chat"), zap.String("thread", threadID))

	userMsg := ChatMessage{Role: "user", Content: message}
	conv := []ChatMessage{{Role: "system", Content: agentSystemPrompt}}
	conv = append(conv, s.history(threadID)...)
	conv = append(conv, userMsg)

	defs := s.tools.Definitions()
	for round := 0; round <= s.cfg.MaxToolRounds; round++ {
		req := ChatCompletionRequest{Model: s.cfg.Model, Temperature: 0.2, Messages: conv}
		if round < s.cfg.MaxToolRounds {
			req.Tools = defs
		}

		resp, err := s.client.Complete(ctx, req)
		if err != nil {
			logger.Error("chat completion failed", zap.Int("round", round), zap.Error(err))
			return "", fmt.Errorf("chat completion: %w", err)
		}

		if len(resp.Message.ToolCalls) == 0 {
			reply := strings.TrimSpace(resp.Message.Content)
			if reply == "" {
				reply = agentFallbackAnswer
			}
			s.remember(threadID, userMsg, ChatMessage{Role: "assistant", Content: reply})
			return reply, nil
		}

		assistant := resp.Message
		assistant.Role = "assistant"
		conv = append(conv, assistant)
		for _, call := range resp.Message.ToolCalls {
			result := s.tools.Call(ctx, call.Function.Name, call.Function.Arguments)
			conv = append(conv, ChatMessage{Role: "tool", ToolCallID: call.ID, Content: result})
		}
	}

	logger.Warn("tool round limit reached", zap.Int("max_rounds", s.cfg.MaxToolRounds))
	s.remember(threadID, userMsg, ChatMessage{Role: "assistant", Content: agentFallbackAnswer})
	return agentFallbackAnswer, nil
}

func (s *AgentService) history(threadID string) []ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ChatMessage(nil), s.threads[threadID]...)
}

func (s *AgentService) remember(threadID string, msgs ...ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := append(s.threads[threadID], msgs...)
	if over := len(h) - s.cfg.HistoryLimit; over > 0 {
		h = append([]ChatMessage(nil), h[over:]...)
	}
	s.threads[threadID] = h
}

// Reset forgets the conversation held for a thread.
func (s *AgentService) Reset(threadID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.threads, threadID)
}
