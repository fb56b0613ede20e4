package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	agentWSMessageTypeAsk    = "ask"
	agentWSMessageTypeAnswer = "answer"
	agentWSMessageTypeError  = "error"
)

type agentWSMessage struct {
	Type      string `json:"type,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	ThreadID  string `json:"thread_id,omitempty"`
	Message   string `json:"message"`
}

type agentWSResponse struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	Reply     string `json:"reply,omitempty"`
	Error     string `json:"error,omitempty"`
}

func (app *application) AgentWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if app.services == nil || app.services.Agent == nil {
		http.Error(w, "agent unavailable", http.StatusServiceUnavailable)
		return
	}
	logger := app.logger.With(zap.String("op", "agent_ws"), zap.String("remote", r.RemoteAddr))

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	conn.SetReadLimit(readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(readDeadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readDeadline))
	})

	stop := make(chan struct{})
	defer close(stop)
	go pingLoop(conn, pingInterval, stop)

	for {
		var msg agentWSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("read error", zap.Error(err))
			}
			_ = writeClose(conn, websocket.CloseNormalClosure, "read error")
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readDeadline))

		if t := strings.TrimSpace(msg.Type); t != "" && t != agentWSMessageTypeAsk {
			app.sendAgentWSError(conn, msg.RequestID, "unknown message type")
			continue
		}
		if strings.TrimSpace(msg.Message) == "" {
			app.sendAgentWSError(conn, msg.RequestID, "message is required")
			continue
		}

		ctx, cancel := context.WithTimeout(r.Context(), 90*time.Second)
		reply, err := app.services.Agent.Chat(ctx, msg.ThreadID, msg.Message)
		cancel()
		if err != nil {
			logger.Error("agent chat failed", zap.Error(err))
			app.sendAgentWSError(conn, msg.RequestID, "failed to get answer")
			continue
		}

		resp := agentWSResponse{Type: agentWSMessageTypeAnswer, RequestID: msg.RequestID, Reply: reply}
		if err := writeAgentWSResponse(conn, resp); err != nil {
			logger.Debug("write error", zap.Error(err))
			return
		}
	}
}

func (app *application) sendAgentWSError(conn *websocket.Conn, requestID, message string) {
	resp := agentWSResponse{Type: agentWSMessageTypeError, RequestID: requestID, Error: message}
	if err := writeAgentWSResponse(conn, resp); err != nil {
		app.logger.Debug("agent ws send error failed", zap.Error(err))
	}
}

func writeAgentWSResponse(conn *websocket.Conn, resp agentWSResponse) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	return conn.WriteJSON(resp)
}
