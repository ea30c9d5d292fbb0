package session

import (
	"context"
	"fmt"
	"regexp"
	"sync"

	"github.com/lagren/uptimeguard/api"
	"github.com/lagren/uptimeguard/persistence"
	"github.com/lagren/uptimeguard/plan"
	"github.com/sirupsen/logrus"
)

// State is the authentication state of the process.
type State int

const (
	Unauthenticated State = iota
	Authenticating
	Authenticated
)

func (s State) String() string {
	switch s {
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

// Session is the authenticated identity. Owned by the Manager; everyone else
// reads copies.
type Session struct {
	User         api.User
	Subscription api.Subscription
}

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Manager owns the session lifecycle: it is the only writer of the credential
// store and of the client's installed API key.
//
// Every transition bumps an epoch counter. Components with in-flight remote
// calls compare epochs on completion and discard responses that straddled a
// transition, so a late response can never be applied to a stale session.
type Manager struct {
	store  *persistence.Store
	client *api.Client

	mu      sync.Mutex
	state   State
	session *Session
	epoch   uint64
}

func NewManager(store *persistence.Store, client *api.Client) *Manager {
	m := &Manager{
		store:  store,
		client: client,
	}

	// Any authenticated call answered with 401 destroys the session.
	client.OnUnauthorized(func() {
		m.teardown(context.Background())
	})

	return m
}

// Initialize restores the session from the credential store. With no stored
// credential it settles on Unauthenticated without any network call. A stored
// credential that the service rejects is cleared, so running Initialize again
// behaves identically.
func (m *Manager) Initialize(ctx context.Context) error {
	key, err := m.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("could not read credential store: %w", err)
	}

	if key == "" {
		m.transition(Unauthenticated, nil)
		return nil
	}

	m.transition(Authenticating, nil)
	epoch := m.Epoch()
	m.client.SetAPIKey(key)

	profile, err := m.client.Profile(ctx)
	if err != nil {
		logrus.Warnf("Stored credential rejected, logging out: %s", err)
		m.teardown(ctx)
		return nil
	}

	if !m.applyIfCurrent(epoch, newSession(profile)) {
		logrus.Debug("Discarding profile fetched across a session transition")
	}
	return nil
}

// Login authenticates against the service and persists the credential. On
// failure the current state is untouched and the error is classified
// (api.IsAuth for bad credentials, api.IsNetwork for transport failures).
func (m *Manager) Login(ctx context.Context, email, password string) error {
	key, err := m.client.Login(ctx, email, password)
	if err != nil {
		return err
	}

	if err := m.store.Save(ctx, key); err != nil {
		return fmt.Errorf("could not persist credential: %w", err)
	}

	m.transition(Authenticating, nil)
	epoch := m.Epoch()
	m.client.SetAPIKey(key)

	profile, err := m.client.Profile(ctx)
	if err != nil {
		m.teardown(ctx)
		return err
	}

	if !m.applyIfCurrent(epoch, newSession(profile)) {
		logrus.Debug("Discarding profile fetched across a session transition")
	}
	return nil
}

// Register creates an account. It does not authenticate; the caller must log
// in afterwards. Obvious input mistakes are rejected before any network call,
// mirroring the service's own validation.
func (m *Manager) Register(ctx context.Context, username, email, password string) error {
	if username == "" || email == "" || password == "" {
		return fmt.Errorf("username, email and password are required")
	}
	if !emailPattern.MatchString(email) {
		return fmt.Errorf("invalid email format")
	}
	if len(password) < 6 {
		return fmt.Errorf("password must be at least 6 characters")
	}

	return m.client.Register(ctx, username, email, password)
}

// Logout clears the credential and session unconditionally. No network call
// is needed for it to succeed.
func (m *Manager) Logout(ctx context.Context) {
	m.teardown(ctx)
	logrus.Info("Logged out")
}

// RefreshProfile refetches the profile with the stored credential. No-op when
// unauthenticated. Callers use it after any mutation that may change
// subscription state.
func (m *Manager) RefreshProfile(ctx context.Context) error {
	if m.State() != Authenticated {
		return nil
	}

	epoch := m.Epoch()

	profile, err := m.client.Profile(ctx)
	if err != nil {
		// A 401 already tore the session down via the client hook.
		return err
	}

	if !m.applyIfCurrent(epoch, newSession(profile)) {
		logrus.Debug("Discarding profile fetched across a session transition")
	}
	return nil
}

// State returns the current authentication state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Current returns a copy of the session, and whether one exists.
func (m *Manager) Current() (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return Session{}, false
	}
	return *m.session, true
}

// Epoch returns the transition counter. Capture it before issuing a remote
// call and discard the response if it has moved by completion.
func (m *Manager) Epoch() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.epoch
}

// applyIfCurrent installs an authenticated session unless a transition (e.g.
// a logout) happened while the profile fetch was in flight, in which case the
// response is discarded and the state left alone.
func (m *Manager) applyIfCurrent(epoch uint64, session *Session) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.epoch != epoch {
		return false
	}

	m.state = Authenticated
	m.session = session
	m.epoch++
	return true
}

func (m *Manager) transition(state State, session *Session) {
	m.mu.Lock()
	m.state = state
	m.session = session
	m.epoch++
	m.mu.Unlock()
}

func (m *Manager) teardown(ctx context.Context) {
	if err := m.store.Clear(ctx); err != nil {
		logrus.Errorf("Could not clear credential store: %s", err)
	}
	m.client.ClearAPIKey()
	m.transition(Unauthenticated, nil)
}

// newSession builds the owned session value, clamping the live subscription
// against the static plan table.
func newSession(profile *api.Profile) *Session {
	return &Session{
		User:         profile.User,
		Subscription: plan.Clamp(profile.Subscription),
	}
}
