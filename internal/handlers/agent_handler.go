package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

type Chatter interface {
	Chat(ctx context.Context, threadID, message string) (string, error)
}

type AgentHandler struct {
	Agent  Chatter
	Logger *zap.Logger
}

func NewAgentHandler(agent Chatter, logger *zap.Logger) *AgentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AgentHandler{Agent: agent, Logger: logger}
}

type agentRequest struct {
	Message  string `json:"message"`
	ThreadID string `json:"thread_id,omitempty"`
}

func (h *AgentHandler) Chat(w http.ResponseWriter, r *http.Request) {
	if h.Agent == nil {
		writeError(w, http.StatusServiceUnavailable, "agent unavailable")
		return
	}

	var req agentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	reply, err := h.Agent.Chat(r.Context(), req.ThreadID, req.Message)
	if err != nil {
		h.Logger.Error("agent chat failed", zap.Error(err))
		writeError(w, errorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}
