package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"

	"messenger-service/internal/notify"
	"messenger-service/internal/observability"
	"messenger-service/internal/presence"
	"messenger-service/internal/session"
)

// Command is one inbound client frame.
type Command struct {
	Action   string `json:"action"`
	FriendID int    `json:"friend_id,omitempty"`
	Content  string `json:"content,omitempty"`
	Enabled  bool   `json:"enabled,omitempty"`
}

// Inbound actions.
const (
	ActionOpenChat      = "open_chat"
	ActionCloseChat     = "close_chat"
	ActionSendMessage   = "send_message"
	ActionTyping        = "typing"
	ActionNotifications = "notifications"
)

// FeedHandler upgrades authenticated clients and binds each connection to a
// session manager.
type FeedHandler struct {
	hub        *Hub
	sessionCfg session.Config
	deps       session.Deps
	tracker    *presence.Tracker
	notifier   *notify.Notifier
}

// NewFeedHandler constructs a FeedHandler.
func NewFeedHandler(hub *Hub, sessionCfg session.Config, deps session.Deps, tracker *presence.Tracker, notifier *notify.Notifier) *FeedHandler {
	return &FeedHandler{hub: hub, sessionCfg: sessionCfg, deps: deps, tracker: tracker, notifier: notifier}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the connection, marks the user online, and runs the
// command loop until the client disconnects. A `?chat=<id>` query parameter
// auto-opens that conversation.
func (h *FeedHandler) Handle(c *gin.Context) {
	userID := c.GetInt("userID")
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
		return
	}

	ctx, span := otel.Tracer("messenger-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	h.hub.AddClient(userID, conn, info)
	observability.IncWSActive()
	h.emitWSEvent(info, "ws_connect", "")

	if err := h.tracker.SetOnline(ctx, userID); err != nil {
		log.Warn().Err(err).Int("user_id", userID).Msg("set online failed")
	}

	view := &feedView{hub: h.hub, userID: userID}
	manager := session.NewManager(userID, h.sessionCfg, h.deps, view, h.notifier)

	// Deep link straight into a conversation.
	if chat := c.Query("chat"); chat != "" {
		if friendID, err := strconv.Atoi(chat); err == nil {
			if err := manager.OpenChat(ctx, friendID); err != nil {
				log.Warn().Err(err).Int("friend_id", friendID).Msg("auto-open failed")
				view.ShowError("open chat", "could not open conversation")
			}
		}
	}

	go h.readLoop(conn, info, manager, view)
}

func (h *FeedHandler) readLoop(conn *websocket.Conn, info ConnInfo, manager *session.Manager, view *feedView) {
	userID := info.UserID
	var closeReason string
	defer func() {
		// Teardown runs even when the connection dies mid-command: offline
		// flag is best-effort, the session close is not.
		teardownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		manager.Shutdown(teardownCtx)
		if h.hub.ConnectionCount(userID) <= 1 {
			if err := h.tracker.SetOffline(teardownCtx, userID); err != nil {
				log.Warn().Err(err).Int("user_id", userID).Msg("set offline failed")
			}
		}
		h.hub.RemoveClient(userID, conn)
		observability.DecWSActive()
		h.emitWSEvent(info, "ws_disconnect", closeReason)
		conn.Close()
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.emitWSEvent(info, "ws_error", closeReason)
			}
			return
		}

		var cmd Command
		if err := json.Unmarshal(payload, &cmd); err != nil {
			view.ShowError("command", "malformed command")
			continue
		}
		h.dispatch(conn, info, manager, view, cmd)
	}
}

func (h *FeedHandler) dispatch(conn *websocket.Conn, info ConnInfo, manager *session.Manager, view *feedView, cmd Command) {
	userID := info.UserID
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch cmd.Action {
	case ActionOpenChat:
		if err := manager.OpenChat(ctx, cmd.FriendID); err != nil {
			log.Error().Err(err).Int("friend_id", cmd.FriendID).Msg("open chat failed")
			view.ShowError("open chat", "could not open conversation")
		}

	case ActionCloseChat:
		manager.CloseChat(ctx)

	case ActionSendMessage:
		sess := manager.Open()
		if sess == nil {
			view.ShowError("send message", "no open conversation")
			return
		}
		if _, err := sess.Send(ctx, cmd.Content); err != nil {
			log.Error().Err(err).Int("user_id", userID).Msg("send failed")
		}

	case ActionTyping:
		if sess := manager.Open(); sess != nil {
			sess.SendTyping()
		}
		h.tracker.Heartbeat(ctx, userID)

	case ActionNotifications:
		h.notifier.SetPermission(userID, cmd.Enabled)

	default:
		view.ShowError("command", "unknown action")
	}
}

// emitWSEvent publishes with its own deadline: connection events outlive the
// handshake request context.
func (h *FeedHandler) emitWSEvent(info ConnInfo, event, reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	observability.IncWSEvent(event)
	_ = observability.PublishEvent(ctx, "ws_events.feed", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload: map[string]any{
			"ws": map[string]any{
				"event":       event,
				"conn_id":     info.ConnID,
				"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
				"reason":      reason,
			},
			"identity": map[string]any{
				"user_id":   info.UserID,
				"device_id": info.DeviceID,
				"ip":        info.IP,
			},
		},
	})
}
