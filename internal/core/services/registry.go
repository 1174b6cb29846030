package services

import (
	"sort"
	"strings"
	"sync"
	"time"

	"parley/internal/core/domain"
)

// SessionRegistry is the single source of truth for who is connected and
// which room each connection is in. All mutation happens synchronously under
// one lock, so capacity and uniqueness checks can never interleave with a
// membership change.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[domain.ConnectionID]*domain.Session
	rooms    map[domain.MeetingID]map[domain.ConnectionID]*domain.Session
}

// RoomInfo is a read-only summary of one live room.
type RoomInfo struct {
	ID      domain.MeetingID `json:"roomId"`
	Members int              `json:"members"`
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[domain.ConnectionID]*domain.Session),
		rooms:    make(map[domain.MeetingID]map[domain.ConnectionID]*domain.Session),
	}
}

// Register creates a session handle for a new transport connection. A second
// registration under the same connection ID fails with ErrDuplicateConnection;
// correct transport semantics should make that impossible.
func (r *SessionRegistry) Register(connID domain.ConnectionID, identity domain.Identity) (domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[connID]; exists {
		return domain.Session{}, domain.ErrDuplicateConnection
	}

	sess := &domain.Session{
		ConnID: connID,
		UserID: identity.UserID,
		Name:   identity.Name,
		Guest:  identity.Guest,
	}
	r.sessions[connID] = sess
	return *sess, nil
}

// Deregister removes the handle and, if it was in a room, drops it from that
// room's member set. Idempotent: unknown connections are a no-op.
func (r *SessionRegistry) Deregister(connID domain.ConnectionID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, exists := r.sessions[connID]
	if !exists {
		return
	}
	if sess.Room != "" {
		r.removeFromRoomLocked(sess)
	}
	delete(r.sessions, connID)
}

func (r *SessionRegistry) Lookup(connID domain.ConnectionID) (domain.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, exists := r.sessions[connID]
	if !exists {
		return domain.Session{}, false
	}
	return *sess, true
}

// JoinRoom adds the session to a room after re-validating capacity and the
// one-entry-per-authenticated-user invariant against the latest live state.
// A still-present session of the same authenticated user is displaced (its
// membership is dropped; the connection itself stays registered). The first
// member of a room creates it.
func (r *SessionRegistry) JoinRoom(connID domain.ConnectionID, roomID domain.MeetingID, capacity int, isHost bool) (displaced *domain.Session, opened bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, exists := r.sessions[connID]
	if !exists {
		return nil, false, domain.ErrUnknownConnection
	}
	if sess.Room == roomID {
		return nil, false, nil
	}
	if sess.Room != "" {
		r.removeFromRoomLocked(sess)
	}

	room, exists := r.rooms[roomID]
	if !exists {
		room = make(map[domain.ConnectionID]*domain.Session)
	}

	if !sess.Guest {
		for _, member := range room {
			if member.UserID == sess.UserID {
				stale := *member
				r.removeFromRoomLocked(member)
				displaced = &stale
				break
			}
		}
	}

	if capacity > 0 && len(room) >= capacity {
		return displaced, false, domain.ErrRoomFull
	}

	opened = len(r.rooms[roomID]) == 0
	room[connID] = sess
	r.rooms[roomID] = room

	sess.Room = roomID
	sess.IsHost = isHost
	sess.Muted = false
	sess.VideoOn = true
	sess.JoinedAt = time.Now()
	return displaced, opened, nil
}

// LeaveRoom removes the session from its current room, if any. The last
// member leaving closes the live room; the persisted meeting is untouched.
func (r *SessionRegistry) LeaveRoom(connID domain.ConnectionID) (roomID domain.MeetingID, view domain.ParticipantView, left bool, closed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, exists := r.sessions[connID]
	if !exists || sess.Room == "" {
		return "", domain.ParticipantView{}, false, false
	}

	roomID = sess.Room
	view = sess.View()
	r.removeFromRoomLocked(sess)
	_, stillOpen := r.rooms[roomID]
	return roomID, view, true, !stillOpen
}

// UpdateStatus mutates the session's ephemeral flags and returns the updated
// snapshot. Fails with ErrNotInRoom when the session has no current room.
func (r *SessionRegistry) UpdateStatus(connID domain.ConnectionID, upd domain.StatusUpdate) (domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, exists := r.sessions[connID]
	if !exists {
		return domain.Session{}, domain.ErrUnknownConnection
	}
	if sess.Room == "" {
		return domain.Session{}, domain.ErrNotInRoom
	}
	if upd.Muted != nil {
		sess.Muted = *upd.Muted
	}
	if upd.VideoOn != nil {
		sess.VideoOn = *upd.VideoOn
	}
	return *sess, nil
}

// RoomSessions returns a snapshot of the room's members: host first, then
// name-ascending. Safe to iterate while the room mutates.
func (r *SessionRegistry) RoomSessions(roomID domain.MeetingID) []domain.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, exists := r.rooms[roomID]
	if !exists {
		return nil
	}
	members := make([]domain.Session, 0, len(room))
	for _, sess := range room {
		members = append(members, *sess)
	}
	sortMembers(members)
	return members
}

// RoomMembers is RoomSessions projected to wire views.
func (r *SessionRegistry) RoomMembers(roomID domain.MeetingID) []domain.ParticipantView {
	sessions := r.RoomSessions(roomID)
	views := make([]domain.ParticipantView, len(sessions))
	for i, sess := range sessions {
		views[i] = sess.View()
	}
	return views
}

func (r *SessionRegistry) RoomCount(roomID domain.MeetingID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[roomID])
}

func (r *SessionRegistry) SessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Rooms lists the live rooms, sorted by ID.
func (r *SessionRegistry) Rooms() []RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]RoomInfo, 0, len(r.rooms))
	for id, room := range r.rooms {
		infos = append(infos, RoomInfo{ID: id, Members: len(room)})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

func (r *SessionRegistry) removeFromRoomLocked(sess *domain.Session) {
	room, exists := r.rooms[sess.Room]
	if exists {
		delete(room, sess.ConnID)
		if len(room) == 0 {
			delete(r.rooms, sess.Room)
		}
	}
	sess.Room = ""
	sess.IsHost = false
}

func sortMembers(members []domain.Session) {
	sort.Slice(members, func(i, j int) bool {
		if members[i].IsHost != members[j].IsHost {
			return members[i].IsHost
		}
		ni, nj := strings.ToLower(members[i].Name), strings.ToLower(members[j].Name)
		if ni != nj {
			return ni < nj
		}
		return members[i].ConnID < members[j].ConnID
	})
}
