package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"parley/internal/core/domain"
	"parley/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

// maxTxRetries bounds the optimistic-lock retry loop on contended documents.
const maxTxRetries = 5

// MeetingRepository stores each meeting as one JSON document. Mutations run
// inside WATCH transactions so concurrent writers on the same document never
// lose updates.
type MeetingRepository struct {
	client *redis.Client
	prefix string
}

var _ ports.MeetingRepository = (*MeetingRepository)(nil)

func NewMeetingRepository(client *redis.Client) *MeetingRepository {
	return &MeetingRepository{
		client: client,
		prefix: "parley:meeting:",
	}
}

func (r *MeetingRepository) meetingKey(id domain.MeetingID) string {
	return r.prefix + string(id)
}

func (r *MeetingRepository) FindActive(ctx context.Context, id domain.MeetingID) (*domain.Meeting, error) {
	meeting, err := r.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !meeting.Active {
		return nil, domain.ErrRoomNotFound
	}
	return meeting, nil
}

func (r *MeetingRepository) AppendParticipantIfAbsent(ctx context.Context, id domain.MeetingID, p domain.Participant) (*domain.Participant, error) {
	var result *domain.Participant

	err := r.mutate(ctx, id, func(meeting *domain.Meeting) (bool, error) {
		if !meeting.Active {
			return false, domain.ErrRoomNotFound
		}
		if existing := meeting.FindParticipant(p.UserID); existing != nil {
			copied := *existing
			result = &copied
			return false, nil
		}
		meeting.Participants = append(meeting.Participants, p)
		copied := p
		result = &copied
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *MeetingRepository) UpdateParticipantStatus(ctx context.Context, id domain.MeetingID, userID domain.UserID, upd domain.StatusUpdate) (*domain.Participant, error) {
	var result *domain.Participant

	err := r.mutate(ctx, id, func(meeting *domain.Meeting) (bool, error) {
		participant := meeting.FindParticipant(userID)
		if participant == nil {
			return false, domain.ErrParticipantNotFound
		}
		if upd.Muted != nil {
			participant.IsMuted = *upd.Muted
		}
		if upd.VideoOn != nil {
			participant.IsVideoOn = *upd.VideoOn
		}
		copied := *participant
		result = &copied
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *MeetingRepository) IsHost(ctx context.Context, id domain.MeetingID, userID domain.UserID) (bool, error) {
	meeting, err := r.get(ctx, id)
	if err != nil {
		return false, err
	}
	return meeting.HostID == userID, nil
}

// Create stores a meeting record. Used by tests and local tooling; in
// production the meeting-persistence collaborator owns creation.
func (r *MeetingRepository) Create(ctx context.Context, meeting *domain.Meeting) error {
	data, err := json.Marshal(meeting)
	if err != nil {
		return fmt.Errorf("failed to marshal meeting: %w", err)
	}
	if err := r.client.Set(ctx, r.meetingKey(meeting.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set meeting in Redis: %w", err)
	}
	return nil
}

func (r *MeetingRepository) get(ctx context.Context, id domain.MeetingID) (*domain.Meeting, error) {
	data, err := r.client.Get(ctx, r.meetingKey(id)).Result()
	if err == redis.Nil {
		return nil, domain.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get meeting from Redis: %w", err)
	}

	var meeting domain.Meeting
	if err := json.Unmarshal([]byte(data), &meeting); err != nil {
		return nil, fmt.Errorf("failed to unmarshal meeting: %w", err)
	}
	return &meeting, nil
}

// mutate runs a read-modify-write cycle on one meeting document under WATCH.
// The apply callback reports whether the document changed; a false return
// commits nothing. Contended transactions retry a bounded number of times.
func (r *MeetingRepository) mutate(ctx context.Context, id domain.MeetingID, apply func(*domain.Meeting) (bool, error)) error {
	key := r.meetingKey(id)

	txn := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Result()
		if err == redis.Nil {
			return domain.ErrRoomNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get meeting from Redis: %w", err)
		}

		var meeting domain.Meeting
		if err := json.Unmarshal([]byte(data), &meeting); err != nil {
			return fmt.Errorf("failed to unmarshal meeting: %w", err)
		}

		changed, err := apply(&meeting)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}

		updated, err := json.Marshal(&meeting)
		if err != nil {
			return fmt.Errorf("failed to marshal meeting: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, 0)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := r.client.Watch(ctx, txn, key)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("%w: meeting %s update kept conflicting", domain.ErrPersistence, id)
}
