package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
	"github.com/rocketscienceinc/duoplay-backend/internal/apperror"
	"github.com/rocketscienceinc/duoplay-backend/internal/entity"
)

const (
	inboxPrefix  = "invites:"
	outboxPrefix = "sentInvites:"

	maxResolveAttempts = 5
)

type InviteRepository interface {
	// Save stores the invite in the recipient's inbox and the sender's outbox.
	Save(ctx context.Context, invite *entity.Invite) error
	GetInbox(ctx context.Context, user string) ([]*entity.Invite, error)
	GetSent(ctx context.Context, user string) ([]*entity.Invite, error)
	GetFromInbox(ctx context.Context, user, id string) (*entity.Invite, error)
	// Resolve records the final state in the sender's outbox and drops the inbox copy.
	// It fails with ErrInviteNotPending when the invite was already resolved.
	Resolve(ctx context.Context, invite *entity.Invite) error
}

type dbInvite struct {
	client *redis.Client
}

func NewInviteRepository(client *redis.Client) InviteRepository {
	return &dbInvite{
		client: client,
	}
}

func (that *dbInvite) Save(ctx context.Context, invite *entity.Invite) error {
	inviteJSON, err := json.Marshal(invite)
	if err != nil {
		return fmt.Errorf("failed to marshal invite: %w", err)
	}

	_, err = that.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, inboxPrefix+invite.To, invite.ID, inviteJSON)
		pipe.HSet(ctx, outboxPrefix+invite.From, invite.ID, inviteJSON)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save invite: %w", err)
	}

	return nil
}

func (that *dbInvite) GetInbox(ctx context.Context, user string) ([]*entity.Invite, error) {
	return that.list(ctx, inboxPrefix+user)
}

func (that *dbInvite) GetSent(ctx context.Context, user string) ([]*entity.Invite, error) {
	return that.list(ctx, outboxPrefix+user)
}

func (that *dbInvite) list(ctx context.Context, key string) ([]*entity.Invite, error) {
	values, err := that.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get invites: %w", err)
	}

	invites := make([]*entity.Invite, 0, len(values))
	for _, value := range values {
		var invite entity.Invite
		if err = json.Unmarshal([]byte(value), &invite); err != nil {
			return nil, fmt.Errorf("failed to unmarshal invite: %w", err)
		}
		invites = append(invites, &invite)
	}

	sort.Slice(invites, func(i, j int) bool {
		return invites[i].Timestamp > invites[j].Timestamp
	})

	return invites, nil
}

func (that *dbInvite) GetFromInbox(ctx context.Context, user, id string) (*entity.Invite, error) {
	response, err := that.client.HGet(ctx, inboxPrefix+user, id).Bytes()

	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("invite %s: %w", id, apperror.ErrInviteNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get invite by id: %w", err)
	}

	var invite entity.Invite
	if err = json.Unmarshal(response, &invite); err != nil {
		return nil, fmt.Errorf("failed to unmarshal invite: %w", err)
	}

	return &invite, nil
}

func (that *dbInvite) Resolve(ctx context.Context, invite *entity.Invite) error {
	inviteJSON, err := json.Marshal(invite)
	if err != nil {
		return fmt.Errorf("failed to marshal invite: %w", err)
	}

	inboxKey := inboxPrefix + invite.To

	txf := func(tx *redis.Tx) error {
		response, err := tx.HGet(ctx, inboxKey, invite.ID).Bytes()
		if errors.Is(err, redis.Nil) {
			// a resolved invite leaves the inbox
			return fmt.Errorf("invite %s: %w", invite.ID, apperror.ErrInviteNotPending)
		}
		if err != nil {
			return fmt.Errorf("failed to read invite: %w", err)
		}

		var current entity.Invite
		if err = json.Unmarshal(response, &current); err != nil {
			return fmt.Errorf("failed to unmarshal invite: %w", err)
		}

		if !current.IsPending() {
			return fmt.Errorf("invite %s: %w", invite.ID, apperror.ErrInviteNotPending)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, outboxPrefix+invite.From, invite.ID, inviteJSON)
			pipe.HDel(ctx, inboxKey, invite.ID)
			return nil
		})
		return err
	}

	// the watch covers the whole inbox, so an unrelated invite arriving also aborts the transaction
	for range maxResolveAttempts {
		err = that.client.Watch(ctx, txf, inboxKey)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}

	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("invite %s kept changing: %w", invite.ID, apperror.ErrInviteNotPending)
	}
	if err != nil {
		return fmt.Errorf("failed to resolve invite: %w", err)
	}

	return nil
}
