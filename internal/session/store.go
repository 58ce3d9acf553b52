package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/medscan-console/internal/domain"
	"github.com/sirupsen/logrus"
)

// Snapshot is a point-in-time copy of the session state
type Snapshot struct {
	User          *domain.User
	Token         string
	Authenticated bool
}

// Store holds the current identity and credential.
// Readers see a consistent value at call time; writers are last-writer-wins.
type Store struct {
	mu    sync.RWMutex
	user  *domain.User
	token string

	storage Storage
	logger  *logrus.Logger

	subMu  sync.Mutex
	subs   map[int]func(Snapshot)
	nextID int
}

// NewStore creates an unauthenticated store backed by storage
func NewStore(storage Storage, logger *logrus.Logger) *Store {
	if storage == nil {
		storage = NewMemoryStorage()
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Store{
		storage: storage,
		logger:  logger,
		subs:    make(map[int]func(Snapshot)),
	}
}

// Restore loads the persisted session, if any. A corrupt envelope is
// discarded and the store stays unauthenticated.
func (s *Store) Restore(ctx context.Context) error {
	sess, err := s.storage.Load(ctx)
	if errors.Is(err, ErrCorrupt) {
		s.logger.WithError(err).Warn("Discarding corrupt persisted session")
		if delErr := s.storage.Delete(ctx); delErr != nil {
			return fmt.Errorf("failed to discard corrupt session: %w", delErr)
		}
		sess, err = nil, nil
	}
	if err != nil {
		return fmt.Errorf("failed to restore session: %w", err)
	}
	s.apply(sess)
	return nil
}

// SetAuth stores the identity and credential in durable storage, then in
// memory. When persisting fails the in-memory state is left untouched.
// The token shape is not validated.
func (s *Store) SetAuth(ctx context.Context, user domain.User, token string) error {
	u := user
	sess := domain.Session{User: &u, Token: token}
	if err := s.storage.Save(ctx, sess); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}
	s.apply(&sess)
	s.logger.WithFields(logrus.Fields{
		"user_id": user.UserID,
		"role":    user.Role,
	}).Info("Session established")
	return nil
}

// ClearAuth resets the in-memory state and removes the durable entry.
// Memory is cleared first so no later request can attach the old credential.
func (s *Store) ClearAuth(ctx context.Context) error {
	s.apply(nil)
	if err := s.storage.Delete(ctx); err != nil {
		return fmt.Errorf("failed to remove persisted session: %w", err)
	}
	s.logger.Info("Session cleared")
	return nil
}

// Sync replaces the in-memory state with a session observed in durable
// storage by another process, without writing it back.
func (s *Store) Sync(sess *domain.Session) {
	s.apply(sess)
}

func (s *Store) apply(sess *domain.Session) {
	s.mu.Lock()
	if sess == nil || sess.Token == "" {
		s.user, s.token = nil, ""
	} else {
		s.user, s.token = cloneUser(sess.User), sess.Token
	}
	s.mu.Unlock()
	s.notify()
}

// Token returns the bearer credential, or "" when unauthenticated
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// User returns a copy of the current identity, or nil
func (s *Store) User() *domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneUser(s.user)
}

// IsAuthenticated reports whether a bearer credential is present
func (s *Store) IsAuthenticated() bool {
	return s.Token() != ""
}

// Snapshot returns a copy of the current state
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{User: cloneUser(s.user), Token: s.token, Authenticated: s.token != ""}
}

// Subscribe registers fn to be called after every change.
// The returned function removes the subscription.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify() {
	snap := s.Snapshot()
	s.subMu.Lock()
	fns := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn(snap)
	}
}

// Close releases the underlying storage
func (s *Store) Close() error {
	return s.storage.Close()
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
