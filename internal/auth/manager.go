package auth

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/skybridge-labs/skybridge/internal/atproto"
	"github.com/skybridge-labs/skybridge/internal/logging"
	"github.com/skybridge-labs/skybridge/internal/monitoring"
	"github.com/skybridge-labs/skybridge/internal/store"
	"github.com/skybridge-labs/skybridge/internal/vault"
)

const sessionKey = "bluesky_session"

// Manager owns the session: it creates, refreshes, validates, and recovers
// it, and is the only component that mutates the session cell. The cell is
// mirrored into the durable store so a session survives daemon restarts;
// the store is also the fallback read when the cell is empty.
//
// Concurrent writers (a post retry racing a health-monitor recovery) are
// resolved last-writer-wins; the one-retry cap in the pipeline bounds how
// far that race can run.
type Manager struct {
	client  *atproto.Client
	store   *store.Store
	vault   *vault.Vault
	log     *logging.Logger
	metrics *monitoring.Metrics

	mu      sync.RWMutex
	session *atproto.Session
}

// NewManager creates an auth manager. metrics may be nil.
func NewManager(client *atproto.Client, s *store.Store, v *vault.Vault, log *logging.Logger, metrics *monitoring.Metrics) *Manager {
	return &Manager{
		client:  client,
		store:   s,
		vault:   v,
		log:     log,
		metrics: metrics,
	}
}

// Load hydrates the in-memory session from the durable store. Called once
// at startup; a missing or unreadable persisted session just leaves the
// manager unauthenticated.
func (m *Manager) Load(ctx context.Context) {
	raw, err := m.store.Get(ctx, sessionKey)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			m.log.Warn("failed to read persisted session", zap.Error(err))
		}
		return
	}

	var session atproto.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		m.log.Warn("discarding corrupt persisted session", zap.Error(err))
		_ = m.store.Delete(ctx, sessionKey)
		return
	}

	m.mu.Lock()
	m.session = &session
	m.mu.Unlock()
	m.log.Info("restored persisted session", zap.String("handle", session.Handle))
}

// Session returns a copy of the in-memory session, or nil.
func (m *Manager) Session() *atproto.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return nil
	}
	s := *m.session
	return &s
}

// ActiveSession returns the current session, falling back to the durable
// store when the in-memory cell is empty (e.g. after another process wrote
// it, or before Load ran). Returns nil when no session exists anywhere.
func (m *Manager) ActiveSession(ctx context.Context) *atproto.Session {
	if s := m.Session(); s != nil {
		return s
	}

	raw, err := m.store.Get(ctx, sessionKey)
	if err != nil {
		return nil
	}
	var session atproto.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil
	}

	m.mu.Lock()
	m.session = &session
	m.mu.Unlock()
	return &session
}

// SetSession installs a new session and persists it. Persistence failures
// are logged, not fatal: the in-memory session still authorizes calls for
// the life of the process.
func (m *Manager) SetSession(ctx context.Context, session *atproto.Session) {
	m.mu.Lock()
	m.session = session
	m.mu.Unlock()

	data, err := json.Marshal(session)
	if err == nil {
		err = m.store.Put(ctx, sessionKey, data)
	}
	if err != nil {
		m.log.Warn("failed to persist session", zap.Error(err))
	}
}

// ClearSession drops the session from memory and durable storage. Stored
// credentials are not touched; Logout is the only path that clears both.
func (m *Manager) ClearSession(ctx context.Context) {
	m.mu.Lock()
	m.session = nil
	m.mu.Unlock()

	if err := m.store.Delete(ctx, sessionKey); err != nil {
		m.log.Warn("failed to clear persisted session", zap.Error(err))
	}
}

// Authenticate exchanges credentials for a session. When remember is true
// the credentials are stored for later automatic re-authentication; when
// false any previously remembered credentials are cleared, so remembering
// is a per-login opt-in, not cumulative.
func (m *Manager) Authenticate(ctx context.Context, identifier, secret string, remember bool) (*atproto.Session, error) {
	session, err := m.client.CreateSession(ctx, identifier, secret)
	if err != nil {
		return nil, err
	}

	m.SetSession(ctx, session)
	m.log.Info("authenticated", zap.String("handle", session.Handle))

	if remember {
		if err := m.vault.Save(ctx, vault.Credentials{Identifier: identifier, Secret: secret}); err != nil {
			m.log.Warn("failed to store credentials", zap.Error(err))
		}
	} else {
		if err := m.vault.Clear(ctx); err != nil {
			m.log.Warn("failed to clear stored credentials", zap.Error(err))
		}
	}

	return session, nil
}

// Refresh exchanges the current refresh token for a new session. It fails
// with ErrNoSession when no refresh token is held, and does NOT clear the
// session on a rejected refresh: the caller decides whether to chain into
// credential re-auth or give up.
func (m *Manager) Refresh(ctx context.Context) (*atproto.Session, error) {
	current := m.ActiveSession(ctx)
	if current == nil || current.RefreshJwt == "" {
		return nil, atproto.ErrNoSession
	}

	session, err := m.client.RefreshSession(ctx, current.RefreshJwt)
	if err != nil {
		return nil, err
	}

	m.SetSession(ctx, session)
	m.log.Info("session refreshed", zap.String("handle", session.Handle))
	return session, nil
}

// Validate issues a lightweight authenticated read against the remote
// service. It never returns an error: any failure, including a missing
// session or a transport error, reports false.
func (m *Manager) Validate(ctx context.Context) bool {
	session := m.ActiveSession(ctx)
	if !session.Usable() {
		return false
	}
	if err := m.client.GetProfile(ctx, session.AccessJwt, session.DID); err != nil {
		m.log.Debug("session validation failed", zap.Error(err))
		return false
	}
	return true
}

// ReauthenticateStored logs in with the remembered credentials, returning
// nil on any failure. The credentials survive a failed attempt so the user
// can retry manually after fixing whatever went wrong.
func (m *Manager) ReauthenticateStored(ctx context.Context) *atproto.Session {
	creds, err := m.vault.Load(ctx)
	if err != nil {
		if !errors.Is(err, vault.ErrNoCredentials) {
			m.log.Warn("failed to load stored credentials", zap.Error(err))
		}
		return nil
	}

	session, err := m.client.CreateSession(ctx, creds.Identifier, creds.Secret)
	if err != nil {
		m.log.Warn("re-authentication with stored credentials failed", zap.Error(err))
		return nil
	}

	m.SetSession(ctx, session)
	m.log.Info("re-authenticated with stored credentials", zap.String("handle", session.Handle))
	return session
}

// Recover attempts to restore a usable session: refresh first, then
// re-auth with stored credentials. If both fail the session is cleared
// (stored credentials are kept) and false is returned. Never errors.
func (m *Manager) Recover(ctx context.Context) bool {
	if session, err := m.Refresh(ctx); err == nil && session.Usable() {
		m.metrics.RecordRecovery("refresh")
		return true
	}

	if session := m.ReauthenticateStored(ctx); session.Usable() {
		m.metrics.RecordRecovery("reauth")
		return true
	}

	m.log.Info("session recovery failed, clearing session")
	m.ClearSession(ctx)
	m.metrics.RecordRecovery("failed")
	return false
}

// HasStoredCredentials reports whether automatic reconnection is possible.
func (m *Manager) HasStoredCredentials(ctx context.Context) bool {
	return m.vault.Has(ctx)
}

// Logout clears the session and the stored credentials unconditionally.
func (m *Manager) Logout(ctx context.Context) {
	m.ClearSession(ctx)
	if err := m.vault.Clear(ctx); err != nil {
		m.log.Warn("failed to clear stored credentials", zap.Error(err))
	}
	m.log.Info("logged out")
}
