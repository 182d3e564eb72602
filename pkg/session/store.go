package session

import (
	"errors"
	"sync"

	"igrelay/pkg/instagram"
)

var (
	// ErrNotFound is returned when no session has been persisted yet
	ErrNotFound = errors.New("session not found")
	// ErrInvalidSession is returned when a session cannot be stored
	ErrInvalidSession = errors.New("invalid session")
)

// Store persists the session of one Instagram login
type Store interface {
	// Load returns the session stored for username, or ErrNotFound
	Load(username string) (*instagram.Session, error)
	// Save replaces the stored session
	Save(session *instagram.Session) error
	// Delete removes the stored session for username
	Delete(username string) error
}

// MemoryStore keeps sessions in memory. Tests use its error injection.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]instagram.Session

	LoadError   error
	SaveError   error
	DeleteError error
	Saves       int
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]instagram.Session)}
}

func (m *MemoryStore) Load(username string) (*instagram.Session, error) {
	if m.LoadError != nil {
		return nil, m.LoadError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[username]
	if !ok {
		return nil, ErrNotFound
	}
	return copySession(&s), nil
}

func (m *MemoryStore) Save(session *instagram.Session) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	if session == nil || session.Username == "" {
		return ErrInvalidSession
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[session.Username] = *copySession(session)
	m.Saves++
	return nil
}

func (m *MemoryStore) Delete(username string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[username]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, username)
	return nil
}

func copySession(s *instagram.Session) *instagram.Session {
	c := *s
	c.Cookies = make(map[string]string, len(s.Cookies))
	for k, v := range s.Cookies {
		c.Cookies[k] = v
	}
	return &c
}
