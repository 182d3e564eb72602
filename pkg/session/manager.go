package session

import (
	"context"
	"errors"
	"fmt"

	errs "igrelay/pkg/errors"
	"igrelay/pkg/instagram"
	"igrelay/pkg/logger"
)

// Client is the authenticated Instagram API surface the relay uses
type Client interface {
	Login(ctx context.Context, username, password string) (*instagram.Session, error)
	UserIDByUsername(ctx context.Context, username string) (string, error)
	UserStories(ctx context.Context, userID string) ([]instagram.Story, error)
	DownloadMedia(ctx context.Context, mediaURL string) ([]byte, error)
}

// ClientFactory builds a new client value, bound to session when non-nil
type ClientFactory func(session *instagram.Session) Client

// Credentials are the login credentials for the source account
type Credentials struct {
	Username string
	Password string
}

// Manager owns the authenticated client value and its persisted session
type Manager struct {
	store     Store
	newClient ClientFactory
	creds     Credentials
	logger    logger.Logger

	client  Client
	session *instagram.Session
}

// NewManager creates a session manager
func NewManager(store Store, factory ClientFactory, creds Credentials, log logger.Logger) *Manager {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Manager{
		store:     store,
		newClient: factory,
		creds:     creds,
		logger:    log.WithField("component", "session"),
	}
}

// Load returns the persisted session for the configured username
func (m *Manager) Load() (*instagram.Session, error) {
	session, err := m.store.Load(m.creds.Username)
	if err != nil {
		return nil, err
	}
	if !session.Valid() {
		m.logger.Warn("Stored session has no session cookie, ignoring it")
		return nil, ErrNotFound
	}
	return session, nil
}

// Establish performs a full login on a freshly built client and makes it
// the current client
func (m *Manager) Establish(ctx context.Context) (*instagram.Session, error) {
	if m.creds.Username == "" || m.creds.Password == "" {
		return nil, errors.New("instagram username and password are required to log in")
	}

	client := m.newClient(nil)
	session, err := client.Login(ctx, m.creds.Username, m.creds.Password)
	if err != nil {
		return nil, fmt.Errorf("login as %s: %w", m.creds.Username, err)
	}

	m.client = client
	m.session = session
	return session, nil
}

// Persist saves session to the store
func (m *Manager) Persist(session *instagram.Session) error {
	if err := m.store.Save(session); err != nil {
		return errs.Wrap(errs.ErrorTypeStorage, err, "persist session")
	}
	return nil
}

// Start loads the persisted session, logging in and persisting a new one
// when none exists
func (m *Manager) Start(ctx context.Context) error {
	session, err := m.Load()
	switch {
	case err == nil:
		m.session = session
		m.client = m.newClient(session)
		m.logger.InfoWithFields("Loaded saved session", map[string]interface{}{
			"username": session.Username,
			"user_id":  session.UserID,
		})
		return nil
	case !errors.Is(err, ErrNotFound):
		return fmt.Errorf("load session: %w", err)
	}

	m.logger.Info("No saved session, logging in")
	session, err = m.Establish(ctx)
	if err != nil {
		return err
	}
	if err := m.Persist(session); err != nil {
		return err
	}

	m.logger.InfoWithFields("Logged in and saved session", map[string]interface{}{
		"username": session.Username,
		"user_id":  session.UserID,
	})
	return nil
}

// Reauthenticate discards the current client and replaces it with a newly
// logged-in one. A persistence failure is logged; the new client is kept.
func (m *Manager) Reauthenticate(ctx context.Context) error {
	m.client = nil
	m.session = nil

	session, err := m.Establish(ctx)
	if err != nil {
		return err
	}

	if err := m.Persist(session); err != nil {
		m.logger.WithError(err).Warn("Re-authenticated but could not persist session")
	}

	m.logger.InfoWithFields("Re-authenticated", map[string]interface{}{
		"username": session.Username,
		"user_id":  session.UserID,
	})
	return nil
}

// Client returns the current client value, nil before Start
func (m *Manager) Client() Client {
	return m.client
}

// Session returns the current session, nil before Start
func (m *Manager) Session() *instagram.Session {
	return m.session
}
