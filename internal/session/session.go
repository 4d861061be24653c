// Package session owns the client's authenticated identity: the bearer token,
// the validated user profile, and the gating decisions derived from them.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/parley/internal/tokenstore"
	"github.com/jon4hz/parley/pkg/chatapi"
)

var (
	// ErrLoginFailed is returned when the backend rejects the credentials or cannot be reached.
	ErrLoginFailed = errors.New("invalid username or password")
	// ErrRegisterFailed is returned when the backend does not accept a registration.
	ErrRegisterFailed = errors.New("registration failed")
	// ErrSuperseded is returned when a newer session change happened while a login was in flight.
	ErrSuperseded = errors.New("session changed while the request was in flight")
)

// Backend is the part of the chat API the session depends on.
type Backend interface {
	Me(ctx context.Context, token string) (*chatapi.User, error)
	Login(ctx context.Context, username, password string) (string, error)
	Register(ctx context.Context, username, password string) error
	Logout(ctx context.Context, token string) error
}

// State is a point-in-time copy of the session.
type State struct {
	Token      string
	User       *chatapi.User
	Generation uint64
}

// Option configures a Manager.
type Option func(*Manager)

// WithRemoteLogout makes Logout revoke the token on the backend as well.
func WithRemoteLogout(enabled bool) Option {
	return func(m *Manager) {
		m.remoteLogout = enabled
	}
}

// Manager holds the session of one client instance.
//
// Every change of the token bumps a generation counter. Asynchronous results
// (validation, login) only commit if the generation they started with is still
// current, so a later logout can never be undone by a stale response.
type Manager struct {
	backend      Backend
	store        tokenstore.Store
	remoteLogout bool

	mu         sync.Mutex
	token      string
	user       *chatapi.User
	generation uint64

	// background validation bookkeeping
	inflight int
	idle     chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a session manager. Call Open to restore a persisted session
// and Close to dispose of it.
func New(backend Backend, store tokenstore.Store, opts ...Option) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	idle := make(chan struct{})
	close(idle)

	m := &Manager{
		backend: backend,
		store:   store,
		idle:    idle,
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open restores the persisted token, if any, and validates it.
// A token the backend rejects is discarded silently.
func (m *Manager) Open(ctx context.Context) error {
	token, err := m.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load persisted token: %w", err)
	}
	if token == "" {
		log.Debug("no persisted session found")
		return nil
	}

	m.mu.Lock()
	m.token = token
	m.user = nil
	m.generation++
	m.mu.Unlock()

	m.Bootstrap(ctx)
	return nil
}

// Close cancels background validation and waits for it to finish.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.cancel()
	m.mu.Unlock()

	m.wg.Wait()
	return nil
}

// Bootstrap validates the current token against the backend.
// Without a token it does nothing. On success the user profile is stored;
// on any failure the token is dropped from memory and from the store.
func (m *Manager) Bootstrap(ctx context.Context) {
	m.mu.Lock()
	token, generation := m.token, m.generation
	m.mu.Unlock()

	if token == "" {
		return
	}

	user, err := m.backend.Me(ctx, token)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.generation != generation {
		log.Debug("discarding stale session validation", "generation", generation, "current", m.generation)
		return
	}

	if err != nil {
		if ctx.Err() != nil {
			// cancelled by us, not rejected by the backend
			log.Debug("session validation cancelled", "error", err)
			return
		}
		log.Debug("session validation failed, logging out", "error", err)
		if err := m.clearLocked(ctx); err != nil {
			log.Error("failed to remove rejected token", "error", err)
		}
		return
	}

	m.user = user
	log.Debug("session validated", "user", user.Username, "admin", user.IsAdmin)
}

// Login exchanges the credentials for a token and persists it.
// The user profile is filled in by a background validation; use Wait to
// block until it is done.
func (m *Manager) Login(ctx context.Context, username, password string) error {
	m.mu.Lock()
	generation := m.generation
	m.mu.Unlock()

	token, err := m.backend.Login(ctx, username, password)
	if err != nil {
		log.Debug("login failed", "username", username, "error", err)
		return fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.generation != generation {
		log.Debug("discarding stale login", "username", username)
		return ErrSuperseded
	}

	if err := m.store.Save(ctx, token); err != nil {
		return fmt.Errorf("failed to persist token: %w", err)
	}

	m.token = token
	m.user = nil
	m.generation++
	m.revalidateLocked()

	log.Info("logged in", "username", username)
	return nil
}

// Register creates an account on the backend. It never changes the session.
func (m *Manager) Register(ctx context.Context, username, password string) error {
	if err := m.backend.Register(ctx, username, password); err != nil {
		log.Debug("registration failed", "username", username, "error", err)
		return fmt.Errorf("%w: %w", ErrRegisterFailed, err)
	}
	log.Info("registered", "username", username)
	return nil
}

// Logout clears the session in memory and in the store. Calling it without a
// session is a no-op. The memory state is cleared even if the store fails.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	token := m.token
	err := m.clearLocked(ctx)
	m.mu.Unlock()

	if m.remoteLogout && token != "" {
		if err := m.backend.Logout(ctx, token); err != nil {
			log.Debug("remote logout failed", "error", err)
		}
	}

	if err != nil {
		return fmt.Errorf("failed to remove persisted token: %w", err)
	}
	return nil
}

// Revalidate starts a background validation of the current token.
func (m *Manager) Revalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revalidateLocked()
}

// Wait blocks until no background validation is in flight or ctx is done.
func (m *Manager) Wait(ctx context.Context) error {
	m.mu.Lock()
	idle := m.idle
	m.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsAuthenticated reports whether a validated user is present.
func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.user != nil
}

// IsAdmin reports whether a validated user with admin rights is present.
func (m *Manager) IsAdmin() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.user != nil && m.user.IsAdmin
}

// User returns a copy of the validated user, or nil.
func (m *Manager) User() *chatapi.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyUser(m.user)
}

// Token returns the current bearer token, or an empty string.
func (m *Manager) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

// Generation returns the current session generation.
func (m *Manager) Generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation
}

// Snapshot returns a consistent copy of the session.
func (m *Manager) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return State{
		Token:      m.token,
		User:       copyUser(m.user),
		Generation: m.generation,
	}
}

// clearLocked drops token and user and removes the persisted token.
// m.mu must be held.
func (m *Manager) clearLocked(ctx context.Context) error {
	m.token = ""
	m.user = nil
	m.generation++
	return m.store.Remove(context.WithoutCancel(ctx))
}

// revalidateLocked starts Bootstrap in the background. m.mu must be held.
func (m *Manager) revalidateLocked() {
	if m.token == "" || m.ctx.Err() != nil {
		return
	}

	if m.inflight == 0 {
		m.idle = make(chan struct{})
	}
	m.inflight++
	m.wg.Add(1)

	go func() {
		defer m.wg.Done()
		m.Bootstrap(m.ctx)

		m.mu.Lock()
		defer m.mu.Unlock()
		m.inflight--
		if m.inflight == 0 {
			close(m.idle)
		}
	}()
}

func copyUser(u *chatapi.User) *chatapi.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
