package signal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"parley/internal/core/domain"
	"parley/internal/core/ports"
	"parley/internal/core/services"
	"parley/pkg/utils"
	"parley/pkg/validation"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ServerConfig carries the transport tunables for the websocket boundary.
type ServerConfig struct {
	PingInterval time.Duration
	PongTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	AllowedOrigins []string

	MaxChatMessageLen int
	MaxDisplayNameLen int

	// MessagesPerSecond <= 0 disables per-connection rate limiting.
	MessagesPerSecond float64
	MessageBurst      int
}

// WebSocketServer is the transport boundary: it authenticates connections,
// decodes the event envelope and dispatches to the coordinator services.
type WebSocketServer struct {
	registry *services.SessionRegistry
	rooms    ports.RoomService
	relay    ports.SignalRelay
	chat     ports.ChatRelay
	auth     ports.AuthService
	hub      *Hub
	metrics  ports.MetricsRecorder

	upgrader websocket.Upgrader
	cfg      ServerConfig

	logger *zap.SugaredLogger
}

func NewWebSocketServer(
	registry *services.SessionRegistry,
	rooms ports.RoomService,
	relay ports.SignalRelay,
	chat ports.ChatRelay,
	auth ports.AuthService,
	hub *Hub,
	metrics ports.MetricsRecorder,
	cfg ServerConfig,
	logger *zap.SugaredLogger,
) *WebSocketServer {
	s := &WebSocketServer{
		registry: registry,
		rooms:    rooms,
		relay:    relay,
		chat:     chat,
		auth:     auth,
		hub:      hub,
		metrics:  metrics,
		cfg:      cfg,
		logger:   logger,
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin:     s.checkOrigin,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	return s
}

func (s *WebSocketServer) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func (s *WebSocketServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Credential check happens before the upgrade so a bad token gets a plain
	// HTTP status instead of a half-open socket.
	identity, err := s.auth.VerifyConnectionCredential(r.URL.Query().Get("token"))
	if err != nil {
		s.logger.Warnw("connection credential rejected", "error", err)
		http.Error(w, "invalid credential", http.StatusUnauthorized)
		return
	}

	if identity.Guest {
		if name := utils.SanitizeString(r.URL.Query().Get("name")); name != "" {
			identity.Name = utils.TruncateString(name, s.cfg.MaxDisplayNameLen)
		}
	}

	connID := domain.ConnectionID(r.URL.Query().Get("connection_id"))
	if connID == "" {
		connID = domain.ConnectionID(utils.GenerateConnectionID())
	} else if err := validation.ValidateConnectionID(string(connID)); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	if _, err := s.registry.Register(connID, *identity); err != nil {
		s.logger.Warnw("connection rejected", "connection_id", connID, "error", err)
		s.writeError(conn, "connection id already in use")
		return
	}
	if !s.hub.Add(connID, conn) {
		s.registry.Deregister(connID)
		s.writeError(conn, "connection id already in use")
		return
	}

	s.metrics.RecordSessionConnected()
	s.logger.Infow("session connected",
		"connection_id", connID,
		"user_id", identity.UserID,
		"guest", identity.Guest,
	)

	conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		return nil
	})

	pingTicker := time.NewTicker(s.cfg.PingInterval)
	defer pingTicker.Stop()

	var limiter *rate.Limiter
	if s.cfg.MessagesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.cfg.MessagesPerSecond), s.cfg.MessageBurst)
	}

	eventChan := make(chan domain.Event, 10)
	errorChan := make(chan error, 1)

	go func() {
		for {
			var event domain.Event
			if err := conn.ReadJSON(&event); err != nil {
				errorChan <- err
				return
			}
			conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
			eventChan <- event
		}
	}()

	for {
		select {
		case event := <-eventChan:
			if limiter != nil && !limiter.Allow() {
				s.metrics.RecordClientError("rate_limited")
				s.sendError(connID, "too many messages")
				continue
			}
			if err := s.handleEvent(context.Background(), connID, event); err != nil {
				s.logger.Infow("event rejected",
					"connection_id", connID,
					"type", event.Type,
					"error", err,
				)
				s.metrics.RecordClientError(errorCode(err))
				s.sendError(connID, clientMessage(err))
			}

		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.logger.Infow("ping failed", "connection_id", connID, "error", err)
				goto cleanup
			}

		case err := <-errorChan:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Infow("read failed", "connection_id", connID, "error", err)
			}
			goto cleanup
		}
	}

cleanup:
	s.hub.Remove(connID)
	s.rooms.HandleDisconnect(context.Background(), connID)
	s.metrics.RecordSessionDisconnected()
	s.logger.Infow("session disconnected", "connection_id", connID)
}

func (s *WebSocketServer) handleEvent(ctx context.Context, connID domain.ConnectionID, event domain.Event) error {
	if event.Type == "" {
		return fmt.Errorf("event type is required")
	}

	switch event.Type {
	case domain.EventJoinMeeting:
		return s.handleJoin(ctx, connID, event)
	case domain.EventLeaveMeeting:
		return s.rooms.Leave(ctx, connID)
	case domain.EventSendMessage:
		return s.handleSendMessage(ctx, connID, event)
	case domain.EventUpdateStatus:
		return s.handleUpdateStatus(ctx, connID, event)
	case domain.EventWebRTCOffer, domain.EventWebRTCAnswer, domain.EventWebRTCICECandidate:
		return s.handleSignal(ctx, connID, event)
	case domain.EventStartScreenShare:
		return s.handleScreenShare(ctx, connID, event, true)
	case domain.EventStopScreenShare:
		return s.handleScreenShare(ctx, connID, event, false)
	case domain.EventMuteParticipant:
		return s.handleMuteParticipant(ctx, connID, event)
	default:
		return fmt.Errorf("unknown event type: %s", event.Type)
	}
}

func (s *WebSocketServer) handleJoin(ctx context.Context, connID domain.ConnectionID, event domain.Event) error {
	var payload domain.JoinMeetingPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("invalid join-meeting payload: %w", err)
	}
	if err := validation.ValidateMeetingCode(payload.RoomID); err != nil {
		return err
	}

	result, err := s.rooms.Join(ctx, connID, payload.RoomID, payload.Password)
	if err != nil {
		return err
	}
	return s.hub.Send(connID, domain.NewEvent(domain.EventMeetingJoined, result))
}

func (s *WebSocketServer) handleSendMessage(ctx context.Context, connID domain.ConnectionID, event domain.Event) error {
	var payload domain.SendMessagePayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("invalid send-message payload: %w", err)
	}

	text := utils.TruncateString(payload.Text, s.cfg.MaxChatMessageLen)
	_, err := s.chat.Send(ctx, connID, payload.RoomID, text, payload.Kind)
	return err
}

func (s *WebSocketServer) handleUpdateStatus(ctx context.Context, connID domain.ConnectionID, event domain.Event) error {
	var payload domain.UpdateStatusPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("invalid update-participant-status payload: %w", err)
	}
	if payload.Muted == nil && payload.VideoOn == nil {
		return fmt.Errorf("at least one of muted or videoOn is required")
	}

	return s.rooms.UpdateStatus(ctx, connID, domain.StatusUpdate{
		Muted:   payload.Muted,
		VideoOn: payload.VideoOn,
	})
}

func (s *WebSocketServer) handleSignal(ctx context.Context, connID domain.ConnectionID, event domain.Event) error {
	var payload domain.SignalPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("invalid %s payload: %w", event.Type, err)
	}
	if len(payload.Body()) == 0 {
		return fmt.Errorf("%s payload is empty", event.Type)
	}

	return s.relay.Relay(ctx, connID, payload.RoomID, event.Type, payload.TargetUserID, payload.Body())
}

func (s *WebSocketServer) handleScreenShare(ctx context.Context, connID domain.ConnectionID, event domain.Event, active bool) error {
	var payload domain.ScreenSharePayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("invalid %s payload: %w", event.Type, err)
	}
	return s.rooms.SetScreenShare(ctx, connID, payload.RoomID, active)
}

func (s *WebSocketServer) handleMuteParticipant(ctx context.Context, connID domain.ConnectionID, event domain.Event) error {
	var payload domain.MuteParticipantPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("invalid mute-participant payload: %w", err)
	}
	if payload.TargetUserID == "" {
		return fmt.Errorf("targetUserId is required")
	}
	return s.rooms.RequestMute(ctx, connID, payload.RoomID, payload.TargetUserID)
}

// clientMessage maps domain sentinels to the strings clients display verbatim.
func clientMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrRoomFull):
		return "Meeting is full"
	case errors.Is(err, domain.ErrRoomNotFound):
		return "Meeting not found"
	case errors.Is(err, domain.ErrUnauthorized):
		return "Invalid meeting password"
	case errors.Is(err, domain.ErrNotInRoom):
		return "Not in a meeting"
	case errors.Is(err, domain.ErrForbidden):
		return "Only the host can do that"
	case errors.Is(err, domain.ErrPersistence):
		return "Meeting storage is unavailable, try again"
	default:
		return err.Error()
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrRoomFull):
		return "room_full"
	case errors.Is(err, domain.ErrRoomNotFound):
		return "room_not_found"
	case errors.Is(err, domain.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, domain.ErrNotInRoom):
		return "not_in_room"
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	case errors.Is(err, domain.ErrPersistence):
		return "storage"
	default:
		return "bad_request"
	}
}

// sendError delivers an error event through the hub once the connection is
// registered.
func (s *WebSocketServer) sendError(connID domain.ConnectionID, message string) {
	s.hub.Send(connID, domain.NewEvent(domain.EventError, domain.ErrorPayload{Message: message}))
}

// writeError writes directly to a connection that never made it into the hub.
func (s *WebSocketServer) writeError(conn *websocket.Conn, message string) {
	conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	conn.WriteJSON(domain.NewEvent(domain.EventError, domain.ErrorPayload{Message: message}))
}

func (s *WebSocketServer) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":      "healthy",
		"timestamp":   time.Now().Unix(),
		"connections": s.hub.Count(),
		"rooms":       len(s.registry.Rooms()),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
