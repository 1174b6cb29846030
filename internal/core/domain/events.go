package domain

import (
	"encoding/json"
	"time"
)

// EventKind enumerates every inbound and outbound transport event. The set is
// closed: the websocket boundary rejects kinds it does not know.
type EventKind string

// Inbound events (client -> coordinator).
const (
	EventJoinMeeting        EventKind = "join-meeting"
	EventLeaveMeeting       EventKind = "leave-meeting"
	EventSendMessage        EventKind = "send-message"
	EventUpdateStatus       EventKind = "update-participant-status"
	EventWebRTCOffer        EventKind = "webrtc-offer"
	EventWebRTCAnswer       EventKind = "webrtc-answer"
	EventWebRTCICECandidate EventKind = "webrtc-ice-candidate"
	EventStartScreenShare   EventKind = "start-screen-share"
	EventStopScreenShare    EventKind = "stop-screen-share"
	EventMuteParticipant    EventKind = "mute-participant"
)

// Outbound events (coordinator -> client).
const (
	EventMeetingJoined      EventKind = "meeting-joined"
	EventParticipantJoined  EventKind = "participant-joined"
	EventParticipantLeft    EventKind = "participant-left"
	EventUserConnected      EventKind = "user-connected"
	EventUserDisconnected   EventKind = "user-disconnected"
	EventNewMessage         EventKind = "new-message"
	EventStatusUpdated      EventKind = "participant-status-updated"
	EventMuteRequest        EventKind = "mute-request"
	EventScreenShareStarted EventKind = "screen-share-started"
	EventScreenShareStopped EventKind = "screen-share-stopped"
	EventError              EventKind = "error"
)

// Event is the wire envelope for both directions.
type Event struct {
	Type    EventKind       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEvent marshals a typed payload into an envelope. Payload structs are
// plain data, so marshalling cannot realistically fail; a failure here is a
// programming error and yields an empty payload.
func NewEvent(kind EventKind, payload interface{}) Event {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{Type: kind}
	}
	return Event{Type: kind, Payload: data}
}

// Inbound payload shapes.

type JoinMeetingPayload struct {
	RoomID   string `json:"roomId"`
	Password string `json:"password,omitempty"`
}

type SendMessagePayload struct {
	RoomID string `json:"roomId"`
	Text   string `json:"text"`
	Kind   string `json:"kind,omitempty"`
}

type UpdateStatusPayload struct {
	RoomID  string `json:"roomId"`
	Muted   *bool  `json:"muted,omitempty"`
	VideoOn *bool  `json:"videoOn,omitempty"`
}

// SignalPayload covers webrtc-offer, webrtc-answer and webrtc-ice-candidate.
// The negotiation body is opaque: the coordinator relays it without looking
// inside.
type SignalPayload struct {
	RoomID       string          `json:"roomId"`
	TargetUserID UserID          `json:"targetUserId"`
	Offer        json.RawMessage `json:"offer,omitempty"`
	Answer       json.RawMessage `json:"answer,omitempty"`
	Candidate    json.RawMessage `json:"candidate,omitempty"`
}

// Body returns whichever negotiation field the sender populated.
func (p SignalPayload) Body() json.RawMessage {
	switch {
	case len(p.Offer) > 0:
		return p.Offer
	case len(p.Answer) > 0:
		return p.Answer
	default:
		return p.Candidate
	}
}

type ScreenSharePayload struct {
	RoomID string `json:"roomId"`
}

type MuteParticipantPayload struct {
	RoomID       string `json:"roomId"`
	TargetUserID UserID `json:"targetUserId"`
}

// Outbound payload shapes.

type MembershipPayload struct {
	RoomID       MeetingID         `json:"roomId"`
	User         ParticipantView   `json:"user"`
	Participants []ParticipantView `json:"participants"`
}

type PresencePayload struct {
	RoomID       MeetingID    `json:"roomId"`
	ConnectionID ConnectionID `json:"connectionId"`
	UserID       UserID       `json:"userId"`
	Name         string       `json:"name"`
}

type StatusUpdatedPayload struct {
	RoomID       MeetingID    `json:"roomId"`
	ConnectionID ConnectionID `json:"connectionId"`
	UserID       UserID       `json:"userId"`
	Muted        bool         `json:"muted"`
	VideoOn      bool         `json:"videoOn"`
}

type MuteRequestPayload struct {
	RoomID       MeetingID `json:"roomId"`
	TargetUserID UserID    `json:"targetUserId"`
}

// SignalRelayPayload is the forwarded form of a signaling message. Receivers
// filter on sender identity client-side; the target user ID is carried along
// unchanged for that purpose.
type SignalRelayPayload struct {
	Payload          json.RawMessage `json:"payload"`
	FromConnectionID ConnectionID    `json:"fromConnectionId"`
	FromName         string          `json:"fromName"`
	TargetUserID     UserID          `json:"targetUserId,omitempty"`
}

// ChatMessage is an ephemeral chat event. Messages are relayed, never stored.
type ChatMessage struct {
	ID           string    `json:"id"`
	SenderUserID UserID    `json:"senderUserId"`
	SenderName   string    `json:"senderName"`
	Text         string    `json:"text"`
	Kind         string    `json:"kind"`
	Timestamp    time.Time `json:"timestamp"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
