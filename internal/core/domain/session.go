package domain

import "time"

// Session is one live client connection: its identity and ephemeral status.
// Sessions are owned exclusively by the session registry for the lifetime of
// the transport connection.
type Session struct {
	ConnID ConnectionID
	UserID UserID // guests carry a generated ID, assigned at connect time
	Name   string
	Guest  bool

	Room     MeetingID // empty when not joined to any room
	Muted    bool
	VideoOn  bool
	IsHost   bool
	JoinedAt time.Time
}

// Identity is the result of verifying a connection credential with the auth
// collaborator.
type Identity struct {
	UserID UserID
	Name   string
	Guest  bool
}

// ParticipantView is the wire representation of a live room member, as sent in
// membership and status events.
type ParticipantView struct {
	ConnectionID ConnectionID `json:"connectionId"`
	UserID       UserID       `json:"userId"`
	Name         string       `json:"name"`
	Muted        bool         `json:"muted"`
	VideoOn      bool         `json:"videoOn"`
	IsHost       bool         `json:"isHost"`
}

func (s *Session) View() ParticipantView {
	return ParticipantView{
		ConnectionID: s.ConnID,
		UserID:       s.UserID,
		Name:         s.Name,
		Muted:        s.Muted,
		VideoOn:      s.VideoOn,
		IsHost:       s.IsHost,
	}
}

// JoinResult is returned to the joining session after a successful join.
type JoinResult struct {
	Room         MeetingID         `json:"roomId"`
	Participants []ParticipantView `json:"participants"`
	IsHost       bool              `json:"isHost"`
}
