package services

import (
	"context"
	"encoding/json"

	"parley/internal/core/domain"
	"parley/internal/core/ports"

	"go.uber.org/zap"
)

// relayService is the stateless signaling pass-through. Payloads are opaque:
// they are forwarded byte for byte, never parsed.
type relayService struct {
	registry *SessionRegistry
	sink     ports.EventSink
	metrics  ports.MetricsRecorder
	logger   *zap.SugaredLogger
}

func NewSignalRelay(
	registry *SessionRegistry,
	sink ports.EventSink,
	metrics ports.MetricsRecorder,
	logger *zap.SugaredLogger,
) ports.SignalRelay {
	return &relayService{
		registry: registry,
		sink:     sink,
		metrics:  metrics,
		logger:   logger,
	}
}

// Relay forwards an offer, answer or ICE candidate to every other member of
// the sender's room. The target user ID travels along unresolved; receivers
// filter, matching the membership broadcast pattern.
func (s *relayService) Relay(ctx context.Context, connID domain.ConnectionID, rawRoomID string, kind domain.EventKind, target domain.UserID, payload json.RawMessage) error {
	sess, ok := s.registry.Lookup(connID)
	roomID := domain.NormalizeMeetingID(rawRoomID)
	if !ok || sess.Room == "" || sess.Room != roomID {
		return domain.ErrNotInRoom
	}

	event := domain.NewEvent(kind, domain.SignalRelayPayload{
		Payload:          payload,
		FromConnectionID: connID,
		FromName:         sess.Name,
		TargetUserID:     target,
	})

	for _, member := range s.registry.RoomSessions(roomID) {
		if member.ConnID == connID {
			continue
		}
		if err := s.sink.Send(member.ConnID, event); err != nil {
			s.logger.Debugw("signal delivery failed",
				"connection_id", member.ConnID, "kind", kind, "error", err)
		}
	}

	s.metrics.RecordSignal(kind)
	return nil
}
