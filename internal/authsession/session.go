// Package authsession owns the application's authentication lifecycle: it
// resolves the stored credential into a Principal, follows credential change
// events from the session store, and answers permission checks.
package authsession

import (
	"context"
	"log/slog"
	"sync"

	"github.com/meridian-consulting/meridian-auth/internal/catalog"
	"github.com/meridian-consulting/meridian-auth/internal/session"
)

// State is the lifecycle state of a Session.
type State int

const (
	// StateInitializing covers the window between Start and the first
	// credential resolution.
	StateInitializing State = iota
	// StateAnonymous means no principal is signed in.
	StateAnonymous
	// StateAuthenticated means a principal has been resolved.
	StateAuthenticated
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticated:
		return "authenticated"
	}
	return "unknown"
}

// Provider performs credential operations against the identity provider. On a
// successful login the provider stores the credential in the session store
// itself, which emits SignedIn; the Session never sets state from Login
// directly.
type Provider interface {
	Login(ctx context.Context, email, password string) (*session.Credential, error)
	Logout(ctx context.Context) error
}

// Session is the auth state machine. Construct with New, then call Start
// once; Close discards any in-flight resolution so a late result can never
// write state after teardown.
type Session struct {
	store    *session.Store
	resolver *Resolver
	provider Provider
	logger   *slog.Logger

	mu        sync.Mutex
	state     State
	principal *Principal
	gen       uint64
	closed    bool

	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()
	ready       chan struct{}
	readyOnce   sync.Once
}

// New constructs a Session in the Initializing state. It has no side effects
// until Start is called.
func New(store *session.Store, resolver *Resolver, provider Provider, logger *slog.Logger) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		store:    store,
		resolver: resolver,
		provider: provider,
		logger:   logger,
		state:    StateInitializing,
		ctx:      ctx,
		cancel:   cancel,
		ready:    make(chan struct{}),
	}
}

// Start subscribes to credential events and performs one asynchronous attempt
// to resolve the stored credential. The session always reaches a Ready state:
// resolution failure degrades to an authenticated customer principal and a
// missing credential yields Anonymous.
func (s *Session) Start() {
	s.unsubscribe = s.store.Subscribe(s.onEvent)
	gen, ok := s.beginResolve()
	if !ok {
		return
	}
	go s.initialize(gen)
}

// Ready is closed once the session has left Initializing.
func (s *Session) Ready() <-chan struct{} {
	return s.ready
}

// Close tears the session down. In-flight resolutions are discarded.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.gen++
	s.mu.Unlock()
	s.cancel()
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.markReady()
}

// Login delegates to the identity provider. Provider errors (invalid
// credentials, provider unreachable) are returned to the caller; the state
// transition itself is driven by the SignedIn event the provider emits
// through the session store.
func (s *Session) Login(ctx context.Context, email, password string) error {
	_, err := s.provider.Login(ctx, email, password)
	return err
}

// Logout requests sign-out from the provider and clears local state
// unconditionally: a user must never observe themselves as authenticated
// after requesting logout, even when the provider call fails.
func (s *Session) Logout(ctx context.Context) {
	if err := s.provider.Logout(ctx); err != nil && s.logger != nil {
		s.logger.Warn("provider logout failed", slog.Any("error", err))
	}
	s.store.Clear()
	// Clear is a no-op when the store was already empty, so force the
	// transition for sessions that were mid-initialization.
	s.mu.Lock()
	s.gen++
	s.state = StateAnonymous
	s.principal = nil
	s.mu.Unlock()
	s.markReady()
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Principal returns a copy of the resolved principal, or nil when anonymous.
func (s *Session) Principal() *Principal {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.principal == nil {
		return nil
	}
	p := *s.principal
	p.Permissions = s.principal.Permissions.Clone()
	return &p
}

// HasPermission reports whether the resolved principal holds the permission.
// Anonymous sessions hold nothing.
func (s *Session) HasPermission(p catalog.Permission) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.principal == nil {
		return false
	}
	return s.principal.Permissions.Has(p)
}

// CanAccess is HasPermission with an admin bypass.
func (s *Session) CanAccess(p catalog.Permission) bool {
	s.mu.Lock()
	if s.principal != nil && s.principal.Role == catalog.RoleAdmin {
		s.mu.Unlock()
		return true
	}
	s.mu.Unlock()
	return s.HasPermission(p)
}

func (s *Session) initialize(gen uint64) {
	cred := s.store.Credential()
	if cred == nil {
		s.commit(gen, StateAnonymous, nil)
		return
	}
	principal := s.resolver.Resolve(s.ctx, Identity{UserID: cred.UserID, Email: cred.Email})
	s.commit(gen, StateAuthenticated, &principal)
}

func (s *Session) onEvent(ev session.Event, cred *session.Credential) {
	switch ev {
	case session.SignedOut:
		// Synchronous: the caller of Clear observes Anonymous immediately,
		// and the generation bump discards any resolution still in flight.
		s.mu.Lock()
		if !s.closed {
			s.gen++
			s.state = StateAnonymous
			s.principal = nil
		}
		s.mu.Unlock()
		s.markReady()
	case session.SignedIn, session.TokenRefreshed:
		gen, ok := s.beginResolve()
		if !ok {
			return
		}
		ident := Identity{UserID: cred.UserID, Email: cred.Email}
		go func() {
			principal := s.resolver.Resolve(s.ctx, ident)
			s.commit(gen, StateAuthenticated, &principal)
		}()
	}
}

func (s *Session) beginResolve() (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, false
	}
	s.gen++
	return s.gen, true
}

// commit applies a resolution result unless the session was closed or a newer
// transition superseded it.
func (s *Session) commit(gen uint64, state State, principal *Principal) {
	s.mu.Lock()
	if s.closed || gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.state = state
	s.principal = principal
	s.mu.Unlock()
	s.markReady()
}

func (s *Session) markReady() {
	s.readyOnce.Do(func() { close(s.ready) })
}
