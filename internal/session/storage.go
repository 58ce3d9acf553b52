// Package session holds the authenticated identity and bearer credential and
// persists them under a single storage key so a restart restores the login.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/medscan-console/internal/domain"
)

// DefaultKey is the storage key the session envelope is kept under
const DefaultKey = "auth-storage"

// ErrCorrupt is returned by Load when the persisted envelope cannot be decoded
var ErrCorrupt = errors.New("corrupt session envelope")

// Storage persists a single session envelope.
// Load returns (nil, nil) when nothing is stored.
type Storage interface {
	Load(ctx context.Context) (*domain.Session, error)
	Save(ctx context.Context, session domain.Session) error
	Delete(ctx context.Context) error
	Close() error
}

// envelope is the persisted layout: {"state":{"user":...,"token":...},"version":0}
type envelope struct {
	State struct {
		User            *domain.User `json:"user"`
		Token           string       `json:"token"`
		IsAuthenticated bool         `json:"isAuthenticated"`
	} `json:"state"`
	Version int `json:"version"`
}

func encodeEnvelope(session domain.Session) ([]byte, error) {
	var env envelope
	env.State.User = session.User
	env.State.Token = session.Token
	env.State.IsAuthenticated = session.Token != ""
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}
	return data, nil
}

func decodeEnvelope(data []byte) (*domain.Session, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	// No token means no session, whatever else was stored
	if env.State.Token == "" {
		return nil, nil
	}
	return &domain.Session{User: env.State.User, Token: env.State.Token}, nil
}

// MemoryStorage keeps the envelope in process memory only
type MemoryStorage struct {
	mu   sync.Mutex
	data []byte
}

// NewMemoryStorage creates an empty in-memory storage
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

// Load implements Storage
func (m *MemoryStorage) Load(ctx context.Context) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil, nil
	}
	return decodeEnvelope(m.data)
}

// Save implements Storage
func (m *MemoryStorage) Save(ctx context.Context, session domain.Session) error {
	data, err := encodeEnvelope(session)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data = data
	m.mu.Unlock()
	return nil
}

// Delete implements Storage
func (m *MemoryStorage) Delete(ctx context.Context) error {
	m.mu.Lock()
	m.data = nil
	m.mu.Unlock()
	return nil
}

// Close implements Storage
func (m *MemoryStorage) Close() error { return nil }
