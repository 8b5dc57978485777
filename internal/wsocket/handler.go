package wsocket

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"memory_stitcher_go_backend/internal/broker"
	"memory_stitcher_go_backend/internal/models"
	"memory_stitcher_go_backend/internal/services"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// InterviewActions is the part of the interview service reachable over the socket.
type InterviewActions interface {
	SubmitMessage(ctx context.Context, userID, sessionID uuid.UUID, text string) (*models.Message, error)
	Finish(ctx context.Context, userID, sessionID uuid.UUID) (*models.ChatSession, error)
	Recover(ctx context.Context, userID, sessionID uuid.UUID) (*models.ChatSession, error)
	GetSession(ctx context.Context, userID, sessionID uuid.UUID) (*models.ChatSession, []models.Message, error)
}

type Handler struct {
	interviews        InterviewActions
	broker            *broker.Broker
	upgrader          websocket.Upgrader
	heartbeatInterval time.Duration
}

// Message is a client command or a direct reply to one. Session and credit
// events are written as published by the services.
type Message struct {
	Type      string `json:"type"`
	Content   string `json:"content,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
}

func NewHandler(interviews InterviewActions, messageBroker *broker.Broker, upgrader websocket.Upgrader, heartbeatInterval time.Duration) *Handler {
	if heartbeatInterval <= 0 {
		heartbeatInterval = 30 * time.Second
	}
	return &Handler{
		interviews:        interviews,
		broker:            messageBroker,
		upgrader:          upgrader,
		heartbeatInterval: heartbeatInterval,
	}
}

func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request, user *models.User) {
	sessionID, err := uuid.Parse(r.URL.Query().Get("sessionId"))
	if err != nil {
		http.Error(w, "A valid sessionId is required", http.StatusBadRequest)
		return
	}
	session, _, err := h.interviews.GetSession(r.Context(), user.ID, sessionID)
	if err != nil {
		http.Error(w, "Interview session not found", http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	logger := log.With().Str("sessionID", sessionID.String()).Str("userID", user.ID.String()).Logger()
	logger.Debug().Msg("WebSocket connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sessionTopic := services.SessionTopic(sessionID)
	creditTopic := services.CreditTopic(user.ID)
	sessionEvents := h.broker.Subscribe(sessionTopic)
	defer h.broker.Unsubscribe(sessionTopic, sessionEvents)
	creditEvents := h.broker.Subscribe(creditTopic)
	defer h.broker.Unsubscribe(creditTopic, creditEvents)

	// gorilla connections allow a single writer; everything goes through out.
	out := make(chan interface{}, 16)
	send := func(msg interface{}) {
		select {
		case out <- msg:
		case <-ctx.Done():
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(h.heartbeatInterval)
		defer ticker.Stop()
		for {
			var msg interface{}
			select {
			case <-ctx.Done():
				return
			case msg = <-out:
			case ev, ok := <-sessionEvents:
				if !ok {
					return
				}
				msg = ev
			case ev, ok := <-creditEvents:
				if !ok {
					return
				}
				msg = ev
			case <-ticker.C:
				msg = Message{Type: "heartbeat", SessionID: sessionID.String()}
			}
			if err := conn.WriteJSON(msg); err != nil {
				logger.Debug().Err(err).Msg("WebSocket write failed")
				cancel()
				return
			}
		}
	}()

	send(services.SessionEvent{
		Type:      "session_update",
		SessionID: sessionID.String(),
		Status:    session.Status,
		LastError: session.LastError,
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			logger.Debug().Err(err).Msg("WebSocket closed")
			break
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			send(Message{Type: "error", Content: "Malformed message"})
			continue
		}

		if reply := h.handleCommand(ctx, user.ID, sessionID, msg); reply != nil {
			send(*reply)
		}
	}

	cancel()
	<-done
}

// handleCommand runs one client command. Successful results reach the client as
// broker events, so only errors and heartbeats are answered directly.
func (h *Handler) handleCommand(ctx context.Context, userID, sessionID uuid.UUID, msg Message) *Message {
	var err error
	switch msg.Type {
	case "message":
		if msg.Content == "" {
			return &Message{Type: "error", Content: "Message content is required", SessionID: sessionID.String()}
		}
		_, err = h.interviews.SubmitMessage(ctx, userID, sessionID, msg.Content)
	case "finish":
		_, err = h.interviews.Finish(ctx, userID, sessionID)
	case "recover":
		_, err = h.interviews.Recover(ctx, userID, sessionID)
	case "heartbeat":
		return &Message{Type: "heartbeat", SessionID: sessionID.String()}
	default:
		return &Message{Type: "error", Content: "Unknown message type: " + msg.Type, SessionID: sessionID.String()}
	}
	if err != nil {
		log.Debug().Err(err).Str("command", msg.Type).Str("sessionID", sessionID.String()).Msg("WebSocket command failed")
		return &Message{Type: "error", Content: services.FailureReason(err), SessionID: sessionID.String()}
	}
	return nil
}
