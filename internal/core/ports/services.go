package ports

import (
	"context"
	"encoding/json"

	"parley/internal/core/domain"
)

// RoomService orchestrates join/leave/disconnect transitions and status
// changes, keeping the live registry and the persisted meeting record
// eventually consistent.
type RoomService interface {
	Join(ctx context.Context, connID domain.ConnectionID, roomID, password string) (*domain.JoinResult, error)
	Leave(ctx context.Context, connID domain.ConnectionID) error
	HandleDisconnect(ctx context.Context, connID domain.ConnectionID)
	UpdateStatus(ctx context.Context, connID domain.ConnectionID, upd domain.StatusUpdate) error
	RequestMute(ctx context.Context, connID domain.ConnectionID, roomID string, target domain.UserID) error
	SetScreenShare(ctx context.Context, connID domain.ConnectionID, roomID string, active bool) error
}

// SignalRelay forwards opaque WebRTC negotiation payloads between members of
// the sender's room.
type SignalRelay interface {
	Relay(ctx context.Context, connID domain.ConnectionID, roomID string, kind domain.EventKind, target domain.UserID, payload json.RawMessage) error
}

// ChatRelay fans ephemeral chat messages out to a room, sender included.
type ChatRelay interface {
	Send(ctx context.Context, connID domain.ConnectionID, roomID, text, kind string) (*domain.ChatMessage, error)
}

// EventSink delivers an outbound event to one connection. Implemented by the
// websocket hub; delivery is fire-and-forget from the caller's point of view.
type EventSink interface {
	Send(connID domain.ConnectionID, event domain.Event) error
}

// AuthService is the auth collaborator: it turns a connection credential into
// an identity. An empty credential yields a guest identity.
type AuthService interface {
	VerifyConnectionCredential(token string) (*domain.Identity, error)
}

// MetricsRecorder receives coordinator-level counters and gauges.
type MetricsRecorder interface {
	RecordSessionConnected()
	RecordSessionDisconnected()
	RecordJoin(roomID domain.MeetingID)
	RecordLeave(roomID domain.MeetingID)
	RecordRoomOpened()
	RecordRoomClosed(roomID domain.MeetingID)
	RecordChatMessage(roomID domain.MeetingID)
	RecordSignal(kind domain.EventKind)
	RecordClientError(code string)
}
