package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"parley/internal/core/domain"
	"parley/internal/core/ports"
	"parley/pkg/utils"

	"go.uber.org/zap"
)

const DefaultMessageKind = "text"

// chatService fans ephemeral messages out to a room. Nothing is stored: a
// message missed because of a dropped connection is gone.
type chatService struct {
	registry *SessionRegistry
	sink     ports.EventSink
	metrics  ports.MetricsRecorder
	logger   *zap.SugaredLogger

	seq atomic.Int64
}

func NewChatRelay(
	registry *SessionRegistry,
	sink ports.EventSink,
	metrics ports.MetricsRecorder,
	logger *zap.SugaredLogger,
) ports.ChatRelay {
	return &chatService{
		registry: registry,
		sink:     sink,
		metrics:  metrics,
		logger:   logger,
	}
}

// Send broadcasts a chat message to every member of the sender's room,
// including the sender, so every UI renders from the same event stream.
// Message IDs are monotonic within the process.
func (s *chatService) Send(ctx context.Context, connID domain.ConnectionID, rawRoomID, text, kind string) (*domain.ChatMessage, error) {
	sess, ok := s.registry.Lookup(connID)
	roomID := domain.NormalizeMeetingID(rawRoomID)
	if !ok || sess.Room == "" || sess.Room != roomID {
		return nil, domain.ErrNotInRoom
	}

	text = utils.SanitizeString(text)
	if text == "" {
		return nil, fmt.Errorf("message text is empty")
	}
	if kind == "" {
		kind = DefaultMessageKind
	}

	msg := &domain.ChatMessage{
		ID:           fmt.Sprintf("msg_%d", s.seq.Add(1)),
		SenderUserID: sess.UserID,
		SenderName:   sess.Name,
		Text:         text,
		Kind:         kind,
		Timestamp:    time.Now().UTC(),
	}

	event := domain.NewEvent(domain.EventNewMessage, msg)
	for _, member := range s.registry.RoomSessions(roomID) {
		if err := s.sink.Send(member.ConnID, event); err != nil {
			s.logger.Debugw("message delivery failed",
				"connection_id", member.ConnID, "message_id", msg.ID, "error", err)
		}
	}

	s.metrics.RecordChatMessage(roomID)
	return msg, nil
}
