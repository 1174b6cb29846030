package domain

import (
	"strings"
	"time"
)

type MeetingID string
type UserID string
type ConnectionID string

// Meeting is the persisted meeting record owned by the meeting-persistence
// collaborator. The coordinator reads it to validate joins and mirrors
// ephemeral participant status into it on a best-effort basis.
type Meeting struct {
	ID           MeetingID     `json:"id"`
	Title        string        `json:"title"`
	HostID       UserID        `json:"hostId"`
	Password     string        `json:"password,omitempty"`
	Capacity     int           `json:"capacity"`
	Active       bool          `json:"active"`
	CreatedAt    time.Time     `json:"createdAt"`
	Participants []Participant `json:"participants"`
}

// Participant is one entry in the persisted participant list: every user ever
// admitted to the meeting, whether or not they are currently connected.
type Participant struct {
	UserID    UserID    `json:"userId"`
	Name      string    `json:"name"`
	JoinedAt  time.Time `json:"joinedAt"`
	IsMuted   bool      `json:"isMuted"`
	IsVideoOn bool      `json:"isVideoOn"`
	IsHost    bool      `json:"isHost"`
}

// StatusUpdate carries a partial update of a participant's ephemeral flags.
// Nil fields are left untouched.
type StatusUpdate struct {
	Muted   *bool `json:"muted,omitempty"`
	VideoOn *bool `json:"videoOn,omitempty"`
}

// NormalizeMeetingID upper-cases and trims a client-supplied meeting code so
// lookups are case-insensitive.
func NormalizeMeetingID(raw string) MeetingID {
	return MeetingID(strings.ToUpper(strings.TrimSpace(raw)))
}

func (m *Meeting) FindParticipant(userID UserID) *Participant {
	for i := range m.Participants {
		if m.Participants[i].UserID == userID {
			return &m.Participants[i]
		}
	}
	return nil
}
