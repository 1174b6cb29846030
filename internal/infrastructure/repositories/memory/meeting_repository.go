package memory

import (
	"context"
	"sync"

	"parley/internal/core/domain"
	"parley/internal/core/ports"
)

// MeetingRepository is an in-memory meeting store for development and tests.
// Mutations run under one lock, giving the same per-document atomicity the
// Redis store provides with transactions.
type MeetingRepository struct {
	mu       sync.RWMutex
	meetings map[domain.MeetingID]*domain.Meeting
}

var _ ports.MeetingRepository = (*MeetingRepository)(nil)

func NewMeetingRepository() *MeetingRepository {
	return &MeetingRepository{
		meetings: make(map[domain.MeetingID]*domain.Meeting),
	}
}

// Create stores a meeting record. Used by tests and local tooling; in
// production the meeting-persistence collaborator owns creation.
func (r *MeetingRepository) Create(ctx context.Context, meeting *domain.Meeting) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := cloneMeeting(meeting)
	r.meetings[meeting.ID] = copied
	return nil
}

func (r *MeetingRepository) FindActive(ctx context.Context, id domain.MeetingID) (*domain.Meeting, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	meeting, exists := r.meetings[id]
	if !exists || !meeting.Active {
		return nil, domain.ErrRoomNotFound
	}
	return cloneMeeting(meeting), nil
}

func (r *MeetingRepository) AppendParticipantIfAbsent(ctx context.Context, id domain.MeetingID, p domain.Participant) (*domain.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	meeting, exists := r.meetings[id]
	if !exists || !meeting.Active {
		return nil, domain.ErrRoomNotFound
	}

	if existing := meeting.FindParticipant(p.UserID); existing != nil {
		copied := *existing
		return &copied, nil
	}

	meeting.Participants = append(meeting.Participants, p)
	copied := p
	return &copied, nil
}

func (r *MeetingRepository) UpdateParticipantStatus(ctx context.Context, id domain.MeetingID, userID domain.UserID, upd domain.StatusUpdate) (*domain.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	meeting, exists := r.meetings[id]
	if !exists {
		return nil, domain.ErrRoomNotFound
	}

	participant := meeting.FindParticipant(userID)
	if participant == nil {
		return nil, domain.ErrParticipantNotFound
	}
	if upd.Muted != nil {
		participant.IsMuted = *upd.Muted
	}
	if upd.VideoOn != nil {
		participant.IsVideoOn = *upd.VideoOn
	}

	copied := *participant
	return &copied, nil
}

func (r *MeetingRepository) IsHost(ctx context.Context, id domain.MeetingID, userID domain.UserID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	meeting, exists := r.meetings[id]
	if !exists {
		return false, domain.ErrRoomNotFound
	}
	return meeting.HostID == userID, nil
}

func cloneMeeting(m *domain.Meeting) *domain.Meeting {
	copied := *m
	copied.Participants = make([]domain.Participant, len(m.Participants))
	copy(copied.Participants, m.Participants)
	return &copied
}
