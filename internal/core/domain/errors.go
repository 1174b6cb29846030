package domain

import "errors"

var (
	ErrRoomNotFound        = errors.New("room not found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrRoomFull            = errors.New("room full")
	ErrNotInRoom           = errors.New("not in room")
	ErrForbidden           = errors.New("forbidden")
	ErrDuplicateConnection = errors.New("duplicate connection")
	ErrPersistence         = errors.New("persistence failure")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrUnknownConnection   = errors.New("unknown connection")
)
