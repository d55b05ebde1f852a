package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/kaizenhr/appraise/backend/models"
	ws "github.com/kaizenhr/appraise/backend/websocket"
)

// safeSend tries to send a message to the client channel, recovers if closed
func safeSend(ch chan<- []byte, msg []byte) {
	defer func() {
		if r := recover(); r != nil {
			// Channel is closed, ignore
		}
	}()
	select {
	case ch <- msg:
		// sent
	default:
		// channel full or closed
	}
}

// Event is the envelope for outbound frames.
type Event struct {
	Type     string    `json:"type"`
	Content  string    `json:"content,omitempty"`
	Code     string    `json:"code,omitempty"`
	Snapshot *Snapshot `json:"snapshot,omitempty"`
}

type WebSocketHandler struct {
	manager *EngineManager
}

func NewWebSocketHandler(manager *EngineManager) *WebSocketHandler {
	return &WebSocketHandler{
		manager: manager,
	}
}

// HandleConnection auto-starts the appraisal conversation for a freshly
// connected client and pushes the first snapshot.
func (h *WebSocketHandler) HandleConnection(client *ws.Client, user *models.User) {
	slog.Info("WebSocket connection handled", "user_id", client.UserID)

	engine := h.manager.Get(user)
	if err := engine.Initialize(context.Background()); err != nil {
		slog.Error("Failed to auto-start appraisal conversation", "error", err, "user_id", client.UserID)
		h.sendError(client, err)
		return
	}

	h.sendSnapshot(client, engine)
}

// HandleMessage routes an inbound frame to the conversation engine.
func (h *WebSocketHandler) HandleMessage(client *ws.Client, user *models.User, messageBytes []byte) {
	var msg ws.Message
	if err := json.Unmarshal(messageBytes, &msg); err != nil {
		slog.Error("Failed to unmarshal WebSocket message", "error", err)
		return
	}

	slog.Info("WebSocket message received", "type", msg.Type, "user_id", client.UserID)

	engine := h.manager.Get(user)
	h.manager.Touch(user.ID)

	switch msg.Type {
	case "start":
		if err := engine.Initialize(context.Background()); err != nil {
			h.sendError(client, err)
			return
		}
		h.sendSnapshot(client, engine)

	case "message":
		// Push an interim snapshot while the generation round trip is in
		// flight (user message plus typing indicator), then the settled
		// state once the turn resolves.
		done := make(chan error, 1)
		go func() {
			done <- engine.SubmitTurn(context.Background(), msg.Content)
		}()
		h.sendSnapshot(client, engine)
		if err := <-done; err != nil {
			h.sendError(client, err)
		}
		h.sendSnapshot(client, engine)

	case "submit":
		if err := engine.Submit(context.Background()); err != nil {
			h.sendError(client, err)
			return
		}
		h.manager.Remove(user.ID)
		h.sendEvent(client, Event{Type: "submitted", Content: "Appraisal submitted successfully"})

	case "cancel":
		if err := engine.Cancel(context.Background()); err != nil {
			h.sendError(client, err)
			return
		}
		h.manager.Remove(user.ID)
		h.sendEvent(client, Event{Type: "cancelled"})

	case "state":
		h.sendSnapshot(client, engine)

	default:
		slog.Warn("Unknown message type", "type", msg.Type, "user_id", client.UserID)
	}
}

func (h *WebSocketHandler) sendSnapshot(client *ws.Client, engine *ConversationEngine) {
	snapshot := engine.Snapshot()
	h.sendEvent(client, Event{Type: "snapshot", Snapshot: &snapshot})
}

func (h *WebSocketHandler) sendError(client *ws.Client, err error) {
	code := "internal"
	switch {
	case errors.Is(err, ErrConcurrentTurn):
		code = "concurrent_turn"
	case errors.Is(err, ErrInvalidTransition):
		code = "invalid_transition"
	case errors.Is(err, ErrGenerationUnavailable):
		code = "generation_unavailable"
	case errors.Is(err, ErrPersistenceUnavailable):
		code = "persistence_unavailable"
	}
	h.sendEvent(client, Event{Type: "error", Code: code, Content: err.Error()})
}

func (h *WebSocketHandler) sendEvent(client *ws.Client, event Event) {
	b, err := json.Marshal(event)
	if err != nil {
		slog.Error("Failed to marshal event", "error", err, "type", event.Type)
		return
	}
	safeSend(client.Send, b)
}
