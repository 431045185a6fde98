package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/lborres/shopfront/core"
	"github.com/lborres/shopfront/pkg/token"
)

// CredentialKey is the storage key of the persisted bearer credential.
const CredentialKey = "authToken"

type sessionListener struct {
	id int
	fn func(core.SessionSnapshot)
}

// SessionStore owns the client session: the persisted credential and the
// principal decoded from it.
//
// States move Initializing -> {Anonymous, Authenticated} at boot and
// Authenticated -> Anonymous on logout or expiry. Login from Anonymous
// enters Authenticated. Listeners see every transition synchronously,
// in registration order, before the transition method returns. A
// listener must not call back into a transition method.
type SessionStore struct {
	api     core.AuthAPI
	storage core.Storage
	logger  *slog.Logger
	now     func() time.Time

	boot sync.Once

	// transitionMu serializes transitions together with their listener fan-out
	transitionMu sync.Mutex

	mu         sync.RWMutex
	state      core.SessionState
	principal  *core.Principal
	credential string
	listeners  []sessionListener
	nextID     int
}

func NewSessionStore(api core.AuthAPI, storage core.Storage, logger *slog.Logger) *SessionStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionStore{
		api:     api,
		storage: storage,
		logger:  logger,
		now:     time.Now,
		state:   core.SessionInitializing,
	}
}

// Boot reads the persisted credential and settles the initial state.
// Only the first call has any effect.
func (s *SessionStore) Boot(ctx context.Context) {
	s.boot.Do(func() {
		s.transitionMu.Lock()
		defer s.transitionMu.Unlock()

		raw, err := s.storage.Get(ctx, CredentialKey)
		if err != nil {
			if !errors.Is(err, core.ErrStorageNotFound) {
				s.logger.Warn("failed to read stored credential", "err", err)
			}
			s.transition(core.SessionAnonymous, nil, "")
			return
		}

		credential := string(raw)
		if token.IsExpired(credential, s.now()) {
			s.logger.Info("stored credential expired, purging")
			s.purge(ctx)
			s.transition(core.SessionAnonymous, nil, "")
			return
		}

		principal, err := token.Decode(credential)
		if err != nil {
			s.logger.Warn("stored credential is malformed, purging", "err", err)
			s.purge(ctx)
			s.transition(core.SessionAnonymous, nil, "")
			return
		}

		s.transition(core.SessionAuthenticated, &principal, credential)
	})
}

// Login exchanges identity and secret for a credential, persists it and
// enters Authenticated. On failure the state is left unchanged.
func (s *SessionStore) Login(ctx context.Context, identity, secret string) (string, error) {
	if identity == "" {
		return "", core.ErrIdentityRequired
	}
	if secret == "" {
		return "", core.ErrSecretRequired
	}

	s.Boot(ctx)

	credential, err := s.api.Login(ctx, identity, secret)
	if err != nil {
		return "", fmt.Errorf("%w: %w", core.ErrLoginFailed, err)
	}

	principal, err := token.Decode(credential)
	if err != nil {
		return "", fmt.Errorf("%w: %w", core.ErrLoginFailed, err)
	}
	if token.IsExpired(credential, s.now()) {
		return "", fmt.Errorf("%w: %w", core.ErrLoginFailed, core.ErrSessionExpired)
	}

	s.transitionMu.Lock()
	defer s.transitionMu.Unlock()

	// Switching accounts passes through Anonymous so listeners tear down
	// whatever belonged to the previous principal.
	if s.State() == core.SessionAuthenticated {
		s.transition(core.SessionAnonymous, nil, "")
	}

	if err := s.storage.Set(ctx, CredentialKey, []byte(credential)); err != nil {
		s.logger.Warn("failed to persist credential", "err", err)
	}

	s.transition(core.SessionAuthenticated, &principal, credential)
	s.logger.Info("logged in", "identity", principal.Identity, "role", principal.Role)

	return credential, nil
}

// Logout purges the credential and enters Anonymous. It is a no-op unless
// the session is Authenticated.
func (s *SessionStore) Logout(ctx context.Context) {
	s.transitionMu.Lock()
	defer s.transitionMu.Unlock()

	if s.State() != core.SessionAuthenticated {
		return
	}

	s.purge(ctx)
	s.transition(core.SessionAnonymous, nil, "")
	s.logger.Info("logged out")
}

// Credential returns the bearer credential for outgoing requests, or ""
// when there is none. A credential that has expired since boot triggers
// the expiry transition.
func (s *SessionStore) Credential() string {
	s.mu.RLock()
	state, credential := s.state, s.credential
	s.mu.RUnlock()

	if state != core.SessionAuthenticated {
		return ""
	}
	if !token.IsExpired(credential, s.now()) {
		return credential
	}

	s.expire(credential)
	return ""
}

// Current applies any pending expiry and returns the resulting snapshot.
func (s *SessionStore) Current() core.SessionSnapshot {
	s.Credential()
	return s.Snapshot()
}

func (s *SessionStore) expire(credential string) {
	s.transitionMu.Lock()
	defer s.transitionMu.Unlock()

	// another caller may have expired or replaced it already
	s.mu.RLock()
	stale := s.state == core.SessionAuthenticated && s.credential == credential
	s.mu.RUnlock()
	if !stale {
		return
	}

	s.logger.Info("credential expired, signing out")
	s.purge(context.Background())
	s.transition(core.SessionAnonymous, nil, "")
}

// Snapshot returns the current state and principal.
func (s *SessionStore) Snapshot() core.SessionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// State returns the current lifecycle state.
func (s *SessionStore) State() core.SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Subscribe registers fn for every subsequent transition and returns a
// function that removes it.
func (s *SessionStore) Subscribe(fn func(core.SessionSnapshot)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners = append(s.listeners, sessionListener{id: id, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.listeners = slices.DeleteFunc(s.listeners, func(l sessionListener) bool { return l.id == id })
	}
}

func (s *SessionStore) snapshotLocked() core.SessionSnapshot {
	snap := core.SessionSnapshot{State: s.state}
	if s.principal != nil {
		p := *s.principal
		snap.Principal = &p
	}
	return snap
}

// transition must be called with transitionMu held.
func (s *SessionStore) transition(state core.SessionState, principal *core.Principal, credential string) {
	s.mu.Lock()
	s.state = state
	s.principal = principal
	s.credential = credential
	snap := s.snapshotLocked()
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	for _, l := range listeners {
		l.fn(snap)
	}
}

func (s *SessionStore) purge(ctx context.Context) {
	if err := s.storage.Delete(ctx, CredentialKey); err != nil && !errors.Is(err, core.ErrStorageNotFound) {
		s.logger.Warn("failed to purge credential", "err", err)
	}
}
