package services

import (
	"context"
	"fmt"

	"parley/internal/core/domain"
	"parley/internal/core/ports"
	"parley/pkg/tracing"

	"go.uber.org/zap"
)

type roomService struct {
	registry *SessionRegistry
	meetings ports.MeetingRepository
	sink     ports.EventSink
	metrics  ports.MetricsRecorder
	logger   *zap.SugaredLogger
}

func NewRoomService(
	registry *SessionRegistry,
	meetings ports.MeetingRepository,
	sink ports.EventSink,
	metrics ports.MetricsRecorder,
	logger *zap.SugaredLogger,
) ports.RoomService {
	return &roomService{
		registry: registry,
		meetings: meetings,
		sink:     sink,
		metrics:  metrics,
		logger:   logger,
	}
}

// Join admits a connection into a room. The persisted meeting is read first
// (a suspension point under concurrent joins), then capacity and uniqueness
// are re-validated against the live registry in a single synchronous step.
// The participant append happens after the live slot is reserved; a
// persistence failure rolls the reservation back so no partial join remains.
func (s *roomService) Join(ctx context.Context, connID domain.ConnectionID, rawRoomID, password string) (*domain.JoinResult, error) {
	ctx, span := tracing.TraceRoomOperation(ctx, "join", rawRoomID)
	defer span.End()

	sess, ok := s.registry.Lookup(connID)
	if !ok {
		return nil, domain.ErrUnknownConnection
	}
	if sess.Room != "" {
		// Joining a new meeting implicitly leaves the current one.
		if err := s.Leave(ctx, connID); err != nil {
			return nil, err
		}
	}

	roomID := domain.NormalizeMeetingID(rawRoomID)
	meeting, err := s.meetings.FindActive(ctx, roomID)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}

	if meeting.Password != "" && meeting.Password != password {
		return nil, domain.ErrUnauthorized
	}

	isHost := !sess.Guest && sess.UserID == meeting.HostID

	displaced, opened, err := s.registry.JoinRoom(connID, roomID, meeting.Capacity, isHost)
	if displaced != nil {
		// A lingering session of the same user was kicked out of the room.
		s.send(displaced.ConnID, domain.NewEvent(domain.EventUserDisconnected, domain.PresencePayload{
			RoomID:       roomID,
			ConnectionID: displaced.ConnID,
			UserID:       displaced.UserID,
			Name:         displaced.Name,
		}))
	}
	if err != nil {
		return nil, err
	}

	participant := domain.Participant{
		UserID:    sess.UserID,
		Name:      sess.Name,
		JoinedAt:  sess.JoinedAt,
		IsVideoOn: true,
		IsHost:    isHost,
	}
	if _, err := s.meetings.AppendParticipantIfAbsent(ctx, roomID, participant); err != nil {
		s.registry.LeaveRoom(connID)
		tracing.RecordError(ctx, err)
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}

	joined, _ := s.registry.Lookup(connID)
	members := s.registry.RoomMembers(roomID)

	s.broadcast(roomID, connID,
		domain.NewEvent(domain.EventUserConnected, domain.PresencePayload{
			RoomID:       roomID,
			ConnectionID: connID,
			UserID:       joined.UserID,
			Name:         joined.Name,
		}),
		domain.NewEvent(domain.EventParticipantJoined, domain.MembershipPayload{
			RoomID:       roomID,
			User:         joined.View(),
			Participants: members,
		}),
	)

	if opened {
		s.metrics.RecordRoomOpened()
	}
	s.metrics.RecordJoin(roomID)
	s.logger.Infow("session joined room",
		"connection_id", connID,
		"room_id", roomID,
		"user_id", joined.UserID,
		"is_host", isHost,
		"members", len(members),
	)

	return &domain.JoinResult{
		Room:         roomID,
		Participants: members,
		IsHost:       isHost,
	}, nil
}

// Leave drops the session from its current room and tells the remaining
// members. The persisted participant entry stays: an explicit rejoin reuses
// it, and a returning host keeps host status.
func (s *roomService) Leave(ctx context.Context, connID domain.ConnectionID) error {
	_, span := tracing.TraceRoomOperation(ctx, "leave", "")
	defer span.End()

	roomID, view, left, closed := s.registry.LeaveRoom(connID)
	if !left {
		return nil
	}

	members := s.registry.RoomMembers(roomID)
	s.broadcast(roomID, connID,
		domain.NewEvent(domain.EventParticipantLeft, domain.MembershipPayload{
			RoomID:       roomID,
			User:         view,
			Participants: members,
		}),
		domain.NewEvent(domain.EventUserDisconnected, domain.PresencePayload{
			RoomID:       roomID,
			ConnectionID: view.ConnectionID,
			UserID:       view.UserID,
			Name:         view.Name,
		}),
	)

	s.metrics.RecordLeave(roomID)
	if closed {
		s.metrics.RecordRoomClosed(roomID)
	}
	s.logger.Infow("session left room",
		"connection_id", connID,
		"room_id", roomID,
		"remaining", len(members),
	)
	return nil
}

// HandleDisconnect is the transport-close path: leave whatever room the
// session was in, then drop the handle. Safe to call after an explicit leave.
func (s *roomService) HandleDisconnect(ctx context.Context, connID domain.ConnectionID) {
	if err := s.Leave(ctx, connID); err != nil {
		s.logger.Warnw("leave on disconnect failed", "connection_id", connID, "error", err)
	}
	s.registry.Deregister(connID)
}

// UpdateStatus flips the session's ephemeral flags, mirrors them into the
// persisted record on a best-effort basis, and tells the whole room,
// sender included.
func (s *roomService) UpdateStatus(ctx context.Context, connID domain.ConnectionID, upd domain.StatusUpdate) error {
	sess, err := s.registry.UpdateStatus(connID, upd)
	if err != nil {
		return err
	}

	// The live broadcast matters more than the persisted mirror for
	// ephemeral flags: a store error is logged and tolerated.
	if _, err := s.meetings.UpdateParticipantStatus(ctx, sess.Room, sess.UserID, upd); err != nil {
		s.logger.Warnw("persisting participant status failed",
			"connection_id", connID,
			"room_id", sess.Room,
			"user_id", sess.UserID,
			"error", err,
		)
	}

	s.broadcast(sess.Room, "", domain.NewEvent(domain.EventStatusUpdated, domain.StatusUpdatedPayload{
		RoomID:       sess.Room,
		ConnectionID: sess.ConnID,
		UserID:       sess.UserID,
		Muted:        sess.Muted,
		VideoOn:      sess.VideoOn,
	}))
	return nil
}

// RequestMute asks another participant to mute. The server never force-mutes:
// the target's client is expected to follow up with its own status update.
func (s *roomService) RequestMute(ctx context.Context, connID domain.ConnectionID, rawRoomID string, target domain.UserID) error {
	sess, ok := s.registry.Lookup(connID)
	roomID := domain.NormalizeMeetingID(rawRoomID)
	if !ok || sess.Room == "" || sess.Room != roomID {
		return domain.ErrNotInRoom
	}
	if !sess.IsHost {
		return domain.ErrForbidden
	}

	// Cross-check the live host flag against the persisted record; the
	// record wins when it disagrees.
	if isHost, err := s.meetings.IsHost(ctx, roomID, sess.UserID); err == nil && !isHost {
		return domain.ErrForbidden
	} else if err != nil {
		s.logger.Warnw("host check against store failed, trusting live flag",
			"room_id", roomID, "user_id", sess.UserID, "error", err)
	}

	event := domain.NewEvent(domain.EventMuteRequest, domain.MuteRequestPayload{
		RoomID:       roomID,
		TargetUserID: target,
	})
	for _, member := range s.registry.RoomSessions(roomID) {
		if member.UserID == target {
			s.send(member.ConnID, event)
		}
	}
	return nil
}

// SetScreenShare announces a screen share start or stop to the other members.
func (s *roomService) SetScreenShare(ctx context.Context, connID domain.ConnectionID, rawRoomID string, active bool) error {
	sess, ok := s.registry.Lookup(connID)
	roomID := domain.NormalizeMeetingID(rawRoomID)
	if !ok || sess.Room == "" || sess.Room != roomID {
		return domain.ErrNotInRoom
	}

	kind := domain.EventScreenShareStopped
	if active {
		kind = domain.EventScreenShareStarted
	}
	s.broadcast(roomID, connID, domain.NewEvent(kind, domain.PresencePayload{
		RoomID:       roomID,
		ConnectionID: connID,
		UserID:       sess.UserID,
		Name:         sess.Name,
	}))
	return nil
}

// broadcast delivers events to a snapshot of the room's current members in
// order, skipping the excluded connection. Send failures are logged and do
// not stop the fan-out.
func (s *roomService) broadcast(roomID domain.MeetingID, exclude domain.ConnectionID, events ...domain.Event) {
	members := s.registry.RoomSessions(roomID)
	for _, event := range events {
		for _, member := range members {
			if member.ConnID == exclude {
				continue
			}
			s.send(member.ConnID, event)
		}
	}
}

func (s *roomService) send(connID domain.ConnectionID, event domain.Event) {
	if err := s.sink.Send(connID, event); err != nil {
		s.logger.Debugw("event delivery failed", "connection_id", connID, "event", event.Type, "error", err)
	}
}
