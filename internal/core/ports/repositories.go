package ports

import (
	"context"

	"parley/internal/core/domain"
)

// MeetingRepository is the persisted meeting record collaborator. Mutating
// methods must be atomic per meeting document; the coordinator relies on that
// instead of running its own transactions.
type MeetingRepository interface {
	// FindActive resolves a meeting by its normalized ID. Returns
	// domain.ErrRoomNotFound when the meeting is absent or marked inactive.
	FindActive(ctx context.Context, id domain.MeetingID) (*domain.Meeting, error)

	// AppendParticipantIfAbsent appends the participant to the persisted list
	// unless an entry with the same user ID already exists, in which case the
	// existing entry is returned untouched.
	AppendParticipantIfAbsent(ctx context.Context, id domain.MeetingID, p domain.Participant) (*domain.Participant, error)

	// UpdateParticipantStatus patches the persisted ephemeral flags of one
	// participant. Returns domain.ErrParticipantNotFound when the user has no
	// entry.
	UpdateParticipantStatus(ctx context.Context, id domain.MeetingID, userID domain.UserID, upd domain.StatusUpdate) (*domain.Participant, error)

	// IsHost reports whether the user is the meeting's host.
	IsHost(ctx context.Context, id domain.MeetingID, userID domain.UserID) (bool, error)
}
