package memory

import (
	"context"
	"testing"
	"time"

	"parley/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedMeeting(t *testing.T, repo *MeetingRepository, active bool) *domain.Meeting {
	t.Helper()
	meeting := &domain.Meeting{
		ID:        "ABC12345",
		Title:     "Standup",
		HostID:    "host-1",
		Capacity:  8,
		Active:    active,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.Create(context.Background(), meeting))
	return meeting
}

func TestMemoryRepo_FindActive(t *testing.T) {
	repo := NewMeetingRepository()
	seedMeeting(t, repo, true)

	meeting, err := repo.FindActive(context.Background(), "ABC12345")
	require.NoError(t, err)
	assert.Equal(t, "Standup", meeting.Title)

	_, err = repo.FindActive(context.Background(), "MISSING1")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestMemoryRepo_InactiveMeetingIsNotFound(t *testing.T) {
	repo := NewMeetingRepository()
	seedMeeting(t, repo, false)

	_, err := repo.FindActive(context.Background(), "ABC12345")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestMemoryRepo_AppendParticipantIfAbsent(t *testing.T) {
	repo := NewMeetingRepository()
	seedMeeting(t, repo, true)

	first := domain.Participant{UserID: "user-1", Name: "Alice", IsVideoOn: true}
	appended, err := repo.AppendParticipantIfAbsent(context.Background(), "ABC12345", first)
	require.NoError(t, err)
	assert.Equal(t, "Alice", appended.Name)

	// Same user again: the existing entry wins, nothing is duplicated.
	again := domain.Participant{UserID: "user-1", Name: "Alice Updated"}
	existing, err := repo.AppendParticipantIfAbsent(context.Background(), "ABC12345", again)
	require.NoError(t, err)
	assert.Equal(t, "Alice", existing.Name)

	meeting, err := repo.FindActive(context.Background(), "ABC12345")
	require.NoError(t, err)
	assert.Len(t, meeting.Participants, 1)
}

func TestMemoryRepo_UpdateParticipantStatus(t *testing.T) {
	repo := NewMeetingRepository()
	seedMeeting(t, repo, true)

	_, err := repo.AppendParticipantIfAbsent(context.Background(), "ABC12345", domain.Participant{
		UserID: "user-1", Name: "Alice", IsVideoOn: true,
	})
	require.NoError(t, err)

	muted := true
	updated, err := repo.UpdateParticipantStatus(context.Background(), "ABC12345", "user-1", domain.StatusUpdate{Muted: &muted})
	require.NoError(t, err)
	assert.True(t, updated.IsMuted)
	assert.True(t, updated.IsVideoOn) // untouched

	_, err = repo.UpdateParticipantStatus(context.Background(), "ABC12345", "nobody", domain.StatusUpdate{Muted: &muted})
	assert.ErrorIs(t, err, domain.ErrParticipantNotFound)
}

func TestMemoryRepo_IsHost(t *testing.T) {
	repo := NewMeetingRepository()
	seedMeeting(t, repo, true)

	isHost, err := repo.IsHost(context.Background(), "ABC12345", "host-1")
	require.NoError(t, err)
	assert.True(t, isHost)

	isHost, err = repo.IsHost(context.Background(), "ABC12345", "user-2")
	require.NoError(t, err)
	assert.False(t, isHost)
}

func TestMemoryRepo_ReturnsCopies(t *testing.T) {
	repo := NewMeetingRepository()
	seedMeeting(t, repo, true)

	meeting, err := repo.FindActive(context.Background(), "ABC12345")
	require.NoError(t, err)
	meeting.Title = "mutated"
	meeting.Participants = append(meeting.Participants, domain.Participant{UserID: "sneak"})

	fresh, err := repo.FindActive(context.Background(), "ABC12345")
	require.NoError(t, err)
	assert.Equal(t, "Standup", fresh.Title)
	assert.Empty(t, fresh.Participants)
}
