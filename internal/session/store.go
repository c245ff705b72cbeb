// Package session holds the zero-or-one active credential for the current
// process and notifies subscribers when it changes.
package session

import (
	"sync"
	"time"
)

// Event identifies a credential change notification.
type Event string

const (
	// SignedIn fires after a credential has been stored.
	SignedIn Event = "SIGNED_IN"
	// SignedOut fires after the credential has been cleared.
	SignedOut Event = "SIGNED_OUT"
	// TokenRefreshed fires when the stored credential is replaced for the
	// same identity, typically after a token refresh.
	TokenRefreshed Event = "TOKEN_REFRESHED"
)

// Credential is an opaque authentication credential issued by the identity
// provider.
type Credential struct {
	UserID      string
	Email       string
	AccessToken string
	ExpiresAt   time.Time
}

// Listener receives credential change events. The credential is nil for
// SignedOut.
type Listener func(Event, *Credential)

// Store holds the current credential. All methods are safe for concurrent
// use. Events are dispatched synchronously on the mutating goroutine, so a
// SignedOut emitted before a later SignedIn is always observed in that order.
type Store struct {
	mu        sync.Mutex
	cred      *Credential
	listeners map[int]Listener
	nextID    int

	// dispatchMu serializes event delivery so listeners observe state
	// transitions in the order they happened.
	dispatchMu sync.Mutex
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{listeners: make(map[int]Listener)}
}

// Credential returns a copy of the current credential, or nil when anonymous.
func (s *Store) Credential() *Credential {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cred == nil {
		return nil
	}
	cred := *s.cred
	return &cred
}

// Subscribe registers a listener for credential change events and returns its
// unsubscribe function. A listener receives every event exactly once until
// unsubscribed.
func (s *Store) Subscribe(fn Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// SetCredential stores a credential and emits SignedIn.
func (s *Store) SetCredential(cred Credential) {
	s.emit(SignedIn, &cred)
}

// RefreshCredential replaces the stored credential without changing identity
// and emits TokenRefreshed.
func (s *Store) RefreshCredential(cred Credential) {
	s.emit(TokenRefreshed, &cred)
}

// Clear drops the credential and emits SignedOut. Clearing an already empty
// store is a no-op.
func (s *Store) Clear() {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	s.mu.Lock()
	if s.cred == nil {
		s.mu.Unlock()
		return
	}
	s.cred = nil
	targets := s.snapshotListeners()
	s.mu.Unlock()

	for _, fn := range targets {
		fn(SignedOut, nil)
	}
}

// AuthHeader returns the Authorization header for authenticated requests, or
// an empty map when no credential with an access token is present.
func (s *Store) AuthHeader() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cred == nil || s.cred.AccessToken == "" {
		return map[string]string{}
	}
	return map[string]string{"Authorization": "Bearer " + s.cred.AccessToken}
}

func (s *Store) emit(ev Event, cred *Credential) {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	s.mu.Lock()
	stored := *cred
	s.cred = &stored
	targets := s.snapshotListeners()
	s.mu.Unlock()

	for _, fn := range targets {
		copy := stored
		fn(ev, &copy)
	}
}

// snapshotListeners must be called with mu held.
func (s *Store) snapshotListeners() []Listener {
	targets := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		targets = append(targets, fn)
	}
	return targets
}
