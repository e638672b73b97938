package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rocketscienceinc/duoplay-backend/internal/apperror"
	"github.com/rocketscienceinc/duoplay-backend/internal/entity"
)

var errStoreUnavailable = errors.New("store unavailable")

// memStore is an in-memory session store with the same versioning and
// change feed contract as the Redis repository.
type memStore struct {
	mu       sync.Mutex
	sessions map[string]*entity.GameSession
	subs     map[string][]*memSubscription

	// failures makes the next n updates fail with errStoreUnavailable.
	failures int
	// muted suppresses change notifications.
	muted bool

	updates int
}

func newMemStore(sessions ...*entity.GameSession) *memStore {
	store := &memStore{
		sessions: make(map[string]*entity.GameSession),
		subs:     make(map[string][]*memSubscription),
	}

	for _, session := range sessions {
		stored := session.Clone()
		stored.Version = 1
		store.sessions[session.ID] = stored
	}

	return store
}

func (that *memStore) GetByID(_ context.Context, id string) (*entity.GameSession, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	session, ok := that.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, apperror.ErrSessionNotFound)
	}

	return session.Clone(), nil
}

func (that *memStore) Update(_ context.Context, id string, version int64, patch entity.SessionPatch) (*entity.GameSession, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.updates++

	if that.failures > 0 {
		that.failures--
		return nil, errStoreUnavailable
	}

	stored, ok := that.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, apperror.ErrSessionNotFound)
	}

	if stored.Version != version {
		return nil, fmt.Errorf("session %s at %d, write based on %d: %w", id, stored.Version, version, apperror.ErrStaleWrite)
	}

	next := stored.Clone()
	if err := next.Apply(patch); err != nil {
		return nil, err
	}
	next.Version++

	that.sessions[id] = next
	that.publish(id, entity.SessionChange{Session: next.Clone()})

	return next.Clone(), nil
}

// Put overwrites a record without any checks, as another writer would.
func (that *memStore) Put(session *entity.GameSession) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.sessions[session.ID] = session.Clone()
	that.publish(session.ID, entity.SessionChange{Session: session.Clone()})
}

// Republish pushes the stored record again without changing it.
func (that *memStore) Republish(id string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.muted = false
	that.publish(id, entity.SessionChange{Session: that.sessions[id].Clone()})
}

func (that *memStore) Delete(id string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	delete(that.sessions, id)
	that.publish(id, entity.SessionChange{Deleted: true})
}

func (that *memStore) Mute() {
	that.mu.Lock()
	defer that.mu.Unlock()
	that.muted = true
}

func (that *memStore) FailNext(n int) {
	that.mu.Lock()
	defer that.mu.Unlock()
	that.failures = n
}

func (that *memStore) Updates() int {
	that.mu.Lock()
	defer that.mu.Unlock()
	return that.updates
}

func (that *memStore) publish(id string, change entity.SessionChange) {
	if that.muted && !change.Deleted {
		return
	}

	for _, sub := range that.subs[id] {
		sub.changes <- change
	}
}

func (that *memStore) Subscribe(_ context.Context, id string) (entity.SessionSubscription, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	sub := &memSubscription{store: that, id: id, changes: make(chan entity.SessionChange, 64)}
	that.subs[id] = append(that.subs[id], sub)

	if session, ok := that.sessions[id]; ok {
		sub.changes <- entity.SessionChange{Session: session.Clone()}
	} else {
		sub.changes <- entity.SessionChange{Deleted: true}
	}

	return sub, nil
}

type memSubscription struct {
	store   *memStore
	id      string
	changes chan entity.SessionChange
}

func (that *memSubscription) Changes() <-chan entity.SessionChange {
	return that.changes
}

func (that *memSubscription) Close() error {
	that.store.mu.Lock()
	defer that.store.mu.Unlock()

	subs := that.store.subs[that.id]
	for i, sub := range subs {
		if sub == that {
			that.store.subs[that.id] = append(subs[:i], subs[i+1:]...)
			break
		}
	}

	return nil
}
