package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rocketscienceinc/duoplay-backend/internal/apperror"
	"github.com/rocketscienceinc/duoplay-backend/internal/entity"
)

const (
	sessionPrefix       = "gameSessions:"
	playerSessionPrefix = "playerSessions:"
	changesSuffix       = ":changes"

	// deletedMarker is published on the change channel when a session is removed.
	deletedMarker = "null"

	changeBuffer = 16

	snapshotRetries       = 3
	snapshotRetryInterval = 50 * time.Millisecond
)

type SessionRepository interface {
	Create(ctx context.Context, session *entity.GameSession) (*entity.GameSession, error)
	GetByID(ctx context.Context, id string) (*entity.GameSession, error)
	// Update applies patch only if the stored version still equals version.
	Update(ctx context.Context, id string, version int64, patch entity.SessionPatch) (*entity.GameSession, error)
	DeleteByID(ctx context.Context, id string) error
	ListByPlayer(ctx context.Context, player string) ([]*entity.GameSession, error)
	// Subscribe delivers the current record first, then every later version.
	Subscribe(ctx context.Context, id string) (entity.SessionSubscription, error)
}

type dbSession struct {
	logger *slog.Logger
	client *redis.Client
}

func NewSessionRepository(logger *slog.Logger, client *redis.Client) SessionRepository {
	return &dbSession{
		logger: logger.With("component", "session-repository"),
		client: client,
	}
}

func sessionKey(id string) string {
	return sessionPrefix + id
}

func changesChannel(id string) string {
	return sessionPrefix + id + changesSuffix
}

func playerSessionsKey(player string) string {
	return playerSessionPrefix + player
}

func (that *dbSession) Create(ctx context.Context, session *entity.GameSession) (*entity.GameSession, error) {
	if err := session.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session: %w", err)
	}

	created := session.Clone()
	created.Version = 1

	sessionJSON, err := json.Marshal(created)
	if err != nil {
		return nil, fmt.Errorf("could not marshal session: %w", err)
	}

	ok, err := that.client.SetNX(ctx, sessionKey(created.ID), sessionJSON, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	if !ok {
		return nil, fmt.Errorf("session %s: %w", created.ID, apperror.ErrSessionExists)
	}

	_, err = that.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, playerSessionsKey(created.Players.Player1), created.ID)
		pipe.SAdd(ctx, playerSessionsKey(created.Players.Player2), created.ID)
		pipe.Publish(ctx, changesChannel(created.ID), sessionJSON)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to index session: %w", err)
	}

	return created, nil
}

func (that *dbSession) GetByID(ctx context.Context, id string) (*entity.GameSession, error) {
	response, err := that.client.Get(ctx, sessionKey(id)).Bytes()

	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("session %s: %w", id, apperror.ErrSessionNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get session by id: %w", err)
	}

	var session entity.GameSession
	if err = json.Unmarshal(response, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	return &session, nil
}

func (that *dbSession) Update(ctx context.Context, id string, version int64, patch entity.SessionPatch) (*entity.GameSession, error) {
	key := sessionKey(id)

	var updated *entity.GameSession
	txf := func(tx *redis.Tx) error {
		response, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("session %s: %w", id, apperror.ErrSessionNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to read session: %w", err)
		}

		var session entity.GameSession
		if err = json.Unmarshal(response, &session); err != nil {
			return fmt.Errorf("failed to unmarshal session: %w", err)
		}

		if session.Version != version {
			return fmt.Errorf("session %s is at version %d, write was based on %d: %w",
				id, session.Version, version, apperror.ErrStaleWrite)
		}

		if err = session.Apply(patch); err != nil {
			return err
		}
		session.Version++

		sessionJSON, err := json.Marshal(&session)
		if err != nil {
			return fmt.Errorf("could not marshal session: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, sessionJSON, 0)
			pipe.Publish(ctx, changesChannel(id), sessionJSON)
			return nil
		})
		if err != nil {
			return err
		}

		updated = &session
		return nil
	}

	err := that.client.Watch(ctx, txf, key)
	if errors.Is(err, redis.TxFailedErr) {
		return nil, fmt.Errorf("session %s changed during write: %w", id, apperror.ErrStaleWrite)
	}
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func (that *dbSession) DeleteByID(ctx context.Context, id string) error {
	session, err := that.GetByID(ctx, id)
	if err != nil {
		return err
	}

	_, err = that.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, sessionKey(id))
		pipe.SRem(ctx, playerSessionsKey(session.Players.Player1), id)
		pipe.SRem(ctx, playerSessionsKey(session.Players.Player2), id)
		pipe.Publish(ctx, changesChannel(id), deletedMarker)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete session by ID: %w", err)
	}

	return nil
}

func (that *dbSession) ListByPlayer(ctx context.Context, player string) ([]*entity.GameSession, error) {
	ids, err := that.client.SMembers(ctx, playerSessionsKey(player)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions of %s: %w", player, err)
	}

	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, sessionKey(id))
	}

	values, err := that.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load sessions of %s: %w", player, err)
	}

	sessions := make([]*entity.GameSession, 0, len(values))
	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			// index entry outlived its session
			continue
		}

		var session entity.GameSession
		if err = json.Unmarshal([]byte(raw), &session); err != nil {
			that.logger.Error("skipping unreadable session", "sessionID", ids[i], "error", err)
			continue
		}

		sessions = append(sessions, &session)
	}

	return sessions, nil
}

type subscription struct {
	pubsub  *redis.PubSub
	changes chan entity.SessionChange
}

func (that *subscription) Changes() <-chan entity.SessionChange {
	return that.changes
}

func (that *subscription) Close() error {
	return that.pubsub.Close()
}

func (that *dbSession) Subscribe(ctx context.Context, id string) (entity.SessionSubscription, error) {
	log := that.logger.With("method", "Subscribe", "sessionID", id)

	pubsub := that.client.Subscribe(ctx, changesChannel(id))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to session %s: %w", id, err)
	}

	sub := &subscription{
		pubsub:  pubsub,
		changes: make(chan entity.SessionChange, changeBuffer),
	}

	messages := pubsub.Channel()

	go func() {
		defer close(sub.changes)

		send := func(change entity.SessionChange) bool {
			select {
			case sub.changes <- change:
				return true
			case <-ctx.Done():
				return false
			}
		}

		current, err := that.initialSnapshot(ctx, id)
		switch {
		case errors.Is(err, apperror.ErrSessionNotFound):
			send(entity.SessionChange{Deleted: true})
			_ = pubsub.Close()
			return
		case err != nil:
			// without a first snapshot the subscriber would wait forever; closing lets it reconnect
			log.Error("failed to read initial snapshot", "error", err)
			_ = pubsub.Close()
			return
		default:
			if !send(entity.SessionChange{Session: current}) {
				return
			}
		}

		for msg := range messages {
			if msg.Payload == deletedMarker {
				send(entity.SessionChange{Deleted: true})
				_ = pubsub.Close()
				return
			}

			var session entity.GameSession
			if err := json.Unmarshal([]byte(msg.Payload), &session); err != nil {
				log.Error("failed to decode session change", "error", err)
				continue
			}

			if !send(entity.SessionChange{Session: &session}) {
				return
			}
		}
	}()

	return sub, nil
}

// initialSnapshot reads the record a new subscriber starts from, retrying transient failures.
func (that *dbSession) initialSnapshot(ctx context.Context, id string) (*entity.GameSession, error) {
	policy := backoff.NewExponentialBackOff(backoff.WithInitialInterval(snapshotRetryInterval))

	operation := func() (*entity.GameSession, error) {
		session, err := that.GetByID(ctx, id)
		if errors.Is(err, apperror.ErrSessionNotFound) {
			return nil, backoff.Permanent(err)
		}
		return session, err
	}

	return backoff.RetryWithData(operation, backoff.WithContext(backoff.WithMaxRetries(policy, snapshotRetries), ctx))
}
