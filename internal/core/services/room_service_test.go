package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"parley/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockMeetingRepository struct {
	mock.Mock
}

func (m *MockMeetingRepository) FindActive(ctx context.Context, id domain.MeetingID) (*domain.Meeting, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Meeting), args.Error(1)
}

func (m *MockMeetingRepository) AppendParticipantIfAbsent(ctx context.Context, id domain.MeetingID, p domain.Participant) (*domain.Participant, error) {
	args := m.Called(ctx, id, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Participant), args.Error(1)
}

func (m *MockMeetingRepository) UpdateParticipantStatus(ctx context.Context, id domain.MeetingID, userID domain.UserID, upd domain.StatusUpdate) (*domain.Participant, error) {
	args := m.Called(ctx, id, userID, upd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Participant), args.Error(1)
}

func (m *MockMeetingRepository) IsHost(ctx context.Context, id domain.MeetingID, userID domain.UserID) (bool, error) {
	args := m.Called(ctx, id, userID)
	return args.Bool(0), args.Error(1)
}

// recordingSink captures every delivered event for assertions.
type recordingSink struct {
	mu     sync.Mutex
	events []sinkEntry
}

type sinkEntry struct {
	ConnID domain.ConnectionID
	Event  domain.Event
}

func (s *recordingSink) Send(connID domain.ConnectionID, event domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, sinkEntry{ConnID: connID, Event: event})
	return nil
}

func (s *recordingSink) byKind(kind domain.EventKind) []sinkEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []sinkEntry
	for _, e := range s.events {
		if e.Event.Type == kind {
			matched = append(matched, e)
		}
	}
	return matched
}

func (s *recordingSink) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}

// nopMetrics satisfies ports.MetricsRecorder for tests.
type nopMetrics struct{}

func (nopMetrics) RecordSessionConnected()            {}
func (nopMetrics) RecordSessionDisconnected()         {}
func (nopMetrics) RecordJoin(domain.MeetingID)        {}
func (nopMetrics) RecordLeave(domain.MeetingID)       {}
func (nopMetrics) RecordRoomOpened()                  {}
func (nopMetrics) RecordRoomClosed(domain.MeetingID)  {}
func (nopMetrics) RecordChatMessage(domain.MeetingID) {}
func (nopMetrics) RecordSignal(domain.EventKind)      {}
func (nopMetrics) RecordClientError(string)           {}

func testMeeting(capacity int) *domain.Meeting {
	return &domain.Meeting{
		ID:       "ABC12345",
		Title:    "Standup",
		HostID:   "host-1",
		Capacity: capacity,
		Active:   true,
	}
}

func newRoomServiceFixture(t *testing.T, repo *MockMeetingRepository) (*SessionRegistry, *recordingSink, *roomService) {
	t.Helper()
	registry := NewSessionRegistry()
	sink := &recordingSink{}
	svc := NewRoomService(registry, repo, sink, nopMetrics{}, zap.NewNop().Sugar()).(*roomService)
	return registry, sink, svc
}

func anyParticipant() interface{} {
	return mock.AnythingOfType("domain.Participant")
}

func TestRoomService_JoinBroadcastsAndReturnsRoster(t *testing.T) {
	repo := &MockMeetingRepository{}
	registry, sink, svc := newRoomServiceFixture(t, repo)

	repo.On("FindActive", mock.Anything, domain.MeetingID("ABC12345")).Return(testMeeting(10), nil)
	repo.On("AppendParticipantIfAbsent", mock.Anything, domain.MeetingID("ABC12345"), anyParticipant()).
		Return(&domain.Participant{}, nil)

	_, err := registry.Register("conn-a", identity("host-1", "Alice"))
	require.NoError(t, err)
	_, err = registry.Register("conn-b", identity("user-2", "Bob"))
	require.NoError(t, err)

	resultA, err := svc.Join(context.Background(), "conn-a", "abc12345", "")
	require.NoError(t, err)
	assert.True(t, resultA.IsHost)
	assert.Equal(t, domain.MeetingID("ABC12345"), resultA.Room)
	assert.Len(t, resultA.Participants, 1)

	sink.reset()
	resultB, err := svc.Join(context.Background(), "conn-b", "ABC12345", "")
	require.NoError(t, err)
	assert.False(t, resultB.IsHost)
	assert.Len(t, resultB.Participants, 2)

	// Existing member hears about the newcomer; the joiner does not get its
	// own membership broadcast.
	connected := sink.byKind(domain.EventUserConnected)
	require.Len(t, connected, 1)
	assert.Equal(t, domain.ConnectionID("conn-a"), connected[0].ConnID)

	joined := sink.byKind(domain.EventParticipantJoined)
	require.Len(t, joined, 1)
	assert.Equal(t, domain.ConnectionID("conn-a"), joined[0].ConnID)
}

func TestRoomService_JoinRoomFull(t *testing.T) {
	repo := &MockMeetingRepository{}
	registry, _, svc := newRoomServiceFixture(t, repo)

	repo.On("FindActive", mock.Anything, domain.MeetingID("ABC12345")).Return(testMeeting(2), nil)
	repo.On("AppendParticipantIfAbsent", mock.Anything, domain.MeetingID("ABC12345"), anyParticipant()).
		Return(&domain.Participant{}, nil)

	for _, id := range []string{"conn-1", "conn-2", "conn-3"} {
		_, err := registry.Register(domain.ConnectionID(id), identity("user-"+id, id))
		require.NoError(t, err)
	}

	_, err := svc.Join(context.Background(), "conn-1", "ABC12345", "")
	require.NoError(t, err)
	_, err = svc.Join(context.Background(), "conn-2", "ABC12345", "")
	require.NoError(t, err)

	_, err = svc.Join(context.Background(), "conn-3", "ABC12345", "")
	assert.ErrorIs(t, err, domain.ErrRoomFull)
	assert.Equal(t, 2, registry.RoomCount("ABC12345"))
}

func TestRoomService_JoinWrongPassword(t *testing.T) {
	repo := &MockMeetingRepository{}
	registry, _, svc := newRoomServiceFixture(t, repo)

	meeting := testMeeting(10)
	meeting.Password = "s3cret"
	repo.On("FindActive", mock.Anything, domain.MeetingID("ABC12345")).Return(meeting, nil)

	_, err := registry.Register("conn-1", identity("user-1", "Alice"))
	require.NoError(t, err)

	_, err = svc.Join(context.Background(), "conn-1", "ABC12345", "wrong")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Equal(t, 0, registry.RoomCount("ABC12345"))
}

func TestRoomService_JoinUnknownRoom(t *testing.T) {
	repo := &MockMeetingRepository{}
	registry, _, svc := newRoomServiceFixture(t, repo)

	repo.On("FindActive", mock.Anything, domain.MeetingID("NOPE")).Return(nil, domain.ErrRoomNotFound)

	_, err := registry.Register("conn-1", identity("user-1", "Alice"))
	require.NoError(t, err)

	_, err = svc.Join(context.Background(), "conn-1", "nope", "")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestRoomService_PersistenceFailureRollsBackLiveSlot(t *testing.T) {
	repo := &MockMeetingRepository{}
	registry, _, svc := newRoomServiceFixture(t, repo)

	repo.On("FindActive", mock.Anything, domain.MeetingID("ABC12345")).Return(testMeeting(10), nil)
	repo.On("AppendParticipantIfAbsent", mock.Anything, domain.MeetingID("ABC12345"), anyParticipant()).
		Return(nil, errors.New("connection refused"))

	_, err := registry.Register("conn-1", identity("user-1", "Alice"))
	require.NoError(t, err)

	_, err = svc.Join(context.Background(), "conn-1", "ABC12345", "")
	assert.ErrorIs(t, err, domain.ErrPersistence)

	// No partial join survives the failure.
	assert.Equal(t, 0, registry.RoomCount("ABC12345"))
	sess, _ := registry.Lookup("conn-1")
	assert.Empty(t, sess.Room)
}

func TestRoomService_LeaveBroadcastsToRemaining(t *testing.T) {
	repo := &MockMeetingRepository{}
	registry, sink, svc := newRoomServiceFixture(t, repo)

	repo.On("FindActive", mock.Anything, domain.MeetingID("ABC12345")).Return(testMeeting(10), nil)
	repo.On("AppendParticipantIfAbsent", mock.Anything, domain.MeetingID("ABC12345"), anyParticipant()).
		Return(&domain.Participant{}, nil)

	_, err := registry.Register("conn-a", identity("host-1", "Alice"))
	require.NoError(t, err)
	_, err = registry.Register("conn-b", identity("user-2", "Bob"))
	require.NoError(t, err)

	_, err = svc.Join(context.Background(), "conn-a", "ABC12345", "")
	require.NoError(t, err)
	_, err = svc.Join(context.Background(), "conn-b", "ABC12345", "")
	require.NoError(t, err)

	sink.reset()
	require.NoError(t, svc.Leave(context.Background(), "conn-b"))

	left := sink.byKind(domain.EventParticipantLeft)
	require.Len(t, left, 1)
	assert.Equal(t, domain.ConnectionID("conn-a"), left[0].ConnID)

	disconnected := sink.byKind(domain.EventUserDisconnected)
	require.Len(t, disconnected, 1)
	assert.Equal(t, domain.ConnectionID("conn-a"), disconnected[0].ConnID)

	assert.Equal(t, 1, registry.RoomCount("ABC12345"))
}

func TestRoomService_DisconnectAfterLeaveEmitsNothing(t *testing.T) {
	repo := &MockMeetingRepository{}
	registry, sink, svc := newRoomServiceFixture(t, repo)

	repo.On("FindActive", mock.Anything, domain.MeetingID("ABC12345")).Return(testMeeting(10), nil)
	repo.On("AppendParticipantIfAbsent", mock.Anything, domain.MeetingID("ABC12345"), anyParticipant()).
		Return(&domain.Participant{}, nil)

	_, err := registry.Register("conn-1", identity("user-1", "Alice"))
	require.NoError(t, err)
	_, err = svc.Join(context.Background(), "conn-1", "ABC12345", "")
	require.NoError(t, err)

	require.NoError(t, svc.Leave(context.Background(), "conn-1"))
	sink.reset()

	svc.HandleDisconnect(context.Background(), "conn-1")
	assert.Empty(t, sink.byKind(domain.EventParticipantLeft))
	assert.Empty(t, sink.byKind(domain.EventUserDisconnected))
	assert.Equal(t, 0, registry.SessionCount())
}

func TestRoomService_UpdateStatusNotInRoom(t *testing.T) {
	repo := &MockMeetingRepository{}
	registry, sink, svc := newRoomServiceFixture(t, repo)

	_, err := registry.Register("conn-1", identity("user-1", "Alice"))
	require.NoError(t, err)

	muted := true
	err = svc.UpdateStatus(context.Background(), "conn-1", domain.StatusUpdate{Muted: &muted})
	assert.ErrorIs(t, err, domain.ErrNotInRoom)
	assert.Empty(t, sink.byKind(domain.EventStatusUpdated))
}

func TestRoomService_UpdateStatusBroadcastsToWholeRoom(t *testing.T) {
	repo := &MockMeetingRepository{}
	registry, sink, svc := newRoomServiceFixture(t, repo)

	repo.On("FindActive", mock.Anything, domain.MeetingID("ABC12345")).Return(testMeeting(10), nil)
	repo.On("AppendParticipantIfAbsent", mock.Anything, domain.MeetingID("ABC12345"), anyParticipant()).
		Return(&domain.Participant{}, nil)
	repo.On("UpdateParticipantStatus", mock.Anything, domain.MeetingID("ABC12345"), domain.UserID("user-2"), mock.Anything).
		Return(&domain.Participant{}, nil)

	_, err := registry.Register("conn-a", identity("host-1", "Alice"))
	require.NoError(t, err)
	_, err = registry.Register("conn-b", identity("user-2", "Bob"))
	require.NoError(t, err)
	_, err = svc.Join(context.Background(), "conn-a", "ABC12345", "")
	require.NoError(t, err)
	_, err = svc.Join(context.Background(), "conn-b", "ABC12345", "")
	require.NoError(t, err)

	sink.reset()
	muted := true
	require.NoError(t, svc.UpdateStatus(context.Background(), "conn-b", domain.StatusUpdate{Muted: &muted}))

	// Sender included: both members hear the status change.
	updated := sink.byKind(domain.EventStatusUpdated)
	assert.Len(t, updated, 2)
	repo.AssertCalled(t, "UpdateParticipantStatus", mock.Anything, domain.MeetingID("ABC12345"), domain.UserID("user-2"), mock.Anything)
}

func TestRoomService_UpdateStatusToleratesStoreFailure(t *testing.T) {
	repo := &MockMeetingRepository{}
	registry, sink, svc := newRoomServiceFixture(t, repo)

	repo.On("FindActive", mock.Anything, domain.MeetingID("ABC12345")).Return(testMeeting(10), nil)
	repo.On("AppendParticipantIfAbsent", mock.Anything, domain.MeetingID("ABC12345"), anyParticipant()).
		Return(&domain.Participant{}, nil)
	repo.On("UpdateParticipantStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("store down"))

	_, err := registry.Register("conn-1", identity("user-1", "Alice"))
	require.NoError(t, err)
	_, err = svc.Join(context.Background(), "conn-1", "ABC12345", "")
	require.NoError(t, err)

	sink.reset()
	muted := true
	require.NoError(t, svc.UpdateStatus(context.Background(), "conn-1", domain.StatusUpdate{Muted: &muted}))
	assert.Len(t, sink.byKind(domain.EventStatusUpdated), 1)
}

func TestRoomService_RequestMuteNonHostForbidden(t *testing.T) {
	repo := &MockMeetingRepository{}
	registry, sink, svc := newRoomServiceFixture(t, repo)

	repo.On("FindActive", mock.Anything, domain.MeetingID("ABC12345")).Return(testMeeting(10), nil)
	repo.On("AppendParticipantIfAbsent", mock.Anything, domain.MeetingID("ABC12345"), anyParticipant()).
		Return(&domain.Participant{}, nil)

	_, err := registry.Register("conn-1", identity("user-2", "Bob"))
	require.NoError(t, err)
	_, err = svc.Join(context.Background(), "conn-1", "ABC12345", "")
	require.NoError(t, err)

	err = svc.RequestMute(context.Background(), "conn-1", "ABC12345", "host-1")
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.Empty(t, sink.byKind(domain.EventMuteRequest))
}

func TestRoomService_RequestMuteDeliveredToTargetOnly(t *testing.T) {
	repo := &MockMeetingRepository{}
	registry, sink, svc := newRoomServiceFixture(t, repo)

	repo.On("FindActive", mock.Anything, domain.MeetingID("ABC12345")).Return(testMeeting(10), nil)
	repo.On("AppendParticipantIfAbsent", mock.Anything, domain.MeetingID("ABC12345"), anyParticipant()).
		Return(&domain.Participant{}, nil)
	repo.On("IsHost", mock.Anything, domain.MeetingID("ABC12345"), domain.UserID("host-1")).Return(true, nil)

	_, err := registry.Register("conn-host", identity("host-1", "Alice"))
	require.NoError(t, err)
	_, err = registry.Register("conn-b", identity("user-2", "Bob"))
	require.NoError(t, err)
	_, err = registry.Register("conn-c", identity("user-3", "Cara"))
	require.NoError(t, err)

	for _, id := range []domain.ConnectionID{"conn-host", "conn-b", "conn-c"} {
		_, err = svc.Join(context.Background(), id, "ABC12345", "")
		require.NoError(t, err)
	}

	sink.reset()
	require.NoError(t, svc.RequestMute(context.Background(), "conn-host", "ABC12345", "user-2"))

	requests := sink.byKind(domain.EventMuteRequest)
	require.Len(t, requests, 1)
	assert.Equal(t, domain.ConnectionID("conn-b"), requests[0].ConnID)
}

func TestRoomService_ScreenShareBroadcastExcludesSharer(t *testing.T) {
	repo := &MockMeetingRepository{}
	registry, sink, svc := newRoomServiceFixture(t, repo)

	repo.On("FindActive", mock.Anything, domain.MeetingID("ABC12345")).Return(testMeeting(10), nil)
	repo.On("AppendParticipantIfAbsent", mock.Anything, domain.MeetingID("ABC12345"), anyParticipant()).
		Return(&domain.Participant{}, nil)

	_, err := registry.Register("conn-a", identity("host-1", "Alice"))
	require.NoError(t, err)
	_, err = registry.Register("conn-b", identity("user-2", "Bob"))
	require.NoError(t, err)
	_, err = svc.Join(context.Background(), "conn-a", "ABC12345", "")
	require.NoError(t, err)
	_, err = svc.Join(context.Background(), "conn-b", "ABC12345", "")
	require.NoError(t, err)

	sink.reset()
	require.NoError(t, svc.SetScreenShare(context.Background(), "conn-a", "ABC12345", true))

	started := sink.byKind(domain.EventScreenShareStarted)
	require.Len(t, started, 1)
	assert.Equal(t, domain.ConnectionID("conn-b"), started[0].ConnID)

	sink.reset()
	require.NoError(t, svc.SetScreenShare(context.Background(), "conn-a", "ABC12345", false))
	stopped := sink.byKind(domain.EventScreenShareStopped)
	require.Len(t, stopped, 1)
	assert.Equal(t, domain.ConnectionID("conn-b"), stopped[0].ConnID)
}
