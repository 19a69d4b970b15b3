package stream

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"golang.org/x/sync/errgroup"
)

// Message is the envelope for every frame in either direction.
type Message struct {
	Type    string `json:"type"` // event, error, connection, ping, pong
	Payload any    `json:"payload,omitempty"`
}

var errHubClosed = errors.New("subscription closed")

// Handler upgrades requests to websockets and streams hub events for the
// game state named by the gameStateId query parameter.
type Handler struct {
	Hub            *Hub
	Heartbeat      time.Duration // ping interval
	WriteTimeout   time.Duration
	OriginPatterns []string
}

// NewHandler creates a handler with default timeouts.
func NewHandler(hub *Hub, heartbeat time.Duration) *Handler {
	return &Handler{
		Hub:          hub,
		Heartbeat:    heartbeat,
		WriteTimeout: 10 * time.Second,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	gameStateID := r.URL.Query().Get("gameStateId")
	if gameStateID == "" {
		http.Error(w, "gameStateId is required", http.StatusBadRequest)
		return
	}

	sub, err := h.Hub.Subscribe(gameStateID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	defer sub.Close()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.OriginPatterns,
	})
	if err != nil {
		slog.Error("stream accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	slog.Debug("stream client connected", "game", gameStateID, "clients", h.Hub.Connections())

	if err := h.write(ctx, conn, Message{Type: "connection", Payload: map[string]any{
		"game_state_id": gameStateID,
		"connected_at":  time.Now().UTC(),
	}}); err != nil {
		return
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return h.readLoop(ctx, conn) })
	g.Go(func() error { return h.writeLoop(ctx, conn, sub) })
	err = g.Wait()

	switch {
	case websocket.CloseStatus(err) == websocket.StatusNormalClosure,
		websocket.CloseStatus(err) == websocket.StatusGoingAway:
		slog.Debug("stream client disconnected", "game", gameStateID)
	case errors.Is(err, errHubClosed):
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	default:
		slog.Debug("stream client dropped", "game", gameStateID, "error", err)
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		var msg Message
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			return err
		}
		reply := Message{Type: "pong"}
		if msg.Type != "ping" {
			reply = Message{Type: "error", Payload: map[string]string{
				"code":    "UNKNOWN_MESSAGE_TYPE",
				"message": "unknown message type: " + msg.Type,
			}}
		}
		if err := h.write(ctx, conn, reply); err != nil {
			return err
		}
	}
}

func (h *Handler) writeLoop(ctx context.Context, conn *websocket.Conn, sub *Subscription) error {
	var heartbeat <-chan time.Time
	if h.Heartbeat > 0 {
		ticker := time.NewTicker(h.Heartbeat)
		defer ticker.Stop()
		heartbeat = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-sub.C:
			if !ok {
				return errHubClosed
			}
			if err := h.write(ctx, conn, Message{Type: "event", Payload: ev}); err != nil {
				return err
			}
		case <-heartbeat:
			pingCtx, cancel := context.WithTimeout(ctx, h.writeTimeout())
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}

func (h *Handler) write(ctx context.Context, conn *websocket.Conn, msg Message) error {
	ctx, cancel := context.WithTimeout(ctx, h.writeTimeout())
	defer cancel()
	return wsjson.Write(ctx, conn, msg)
}

func (h *Handler) writeTimeout() time.Duration {
	if h.WriteTimeout <= 0 {
		return 10 * time.Second
	}
	return h.WriteTimeout
}
