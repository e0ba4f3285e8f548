package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/NethermindEth/juno/core/felt"
	"github.com/cyphera/cyphera-session/internal/logger"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var (
	// ErrSessionRevoked is returned when signing with a session the caller
	// revoked.
	ErrSessionRevoked = errors.New("session revoked")
	// ErrInvalidTransition is returned for a lifecycle step out of order.
	ErrInvalidTransition = errors.New("invalid session state transition")
)

// State is a session's position in its lifecycle.
type State int

const (
	StateUnauthorized State = iota
	StateAuthorized
	StateRegistered
	StateRevoked
	// StateExpired is reported by Status only; it is derived from the
	// clock, never stored.
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateUnauthorized:
		return "unauthorized"
	case StateAuthorized:
		return "authorized"
	case StateRegistered:
		return "registered"
	case StateRevoked:
		return "revoked"
	case StateExpired:
		return "expired"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type registryEntry struct {
	state     State
	expiresAt uint64
}

// Registry tracks the local view of session lifecycles, keyed by session
// struct hash. Registration and revocation happen on chain; the caller
// records them here so revoked sessions stop being offered for signing.
// Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[felt.Felt]registryEntry
	logger  *zap.Logger
}

// NewRegistry creates an empty registry. A nil logger uses the global one.
func NewRegistry(l *zap.Logger) *Registry {
	return &Registry{
		entries: make(map[felt.Felt]registryEntry),
		logger:  logger.OrDefault(l),
	}
}

// MarkAuthorized records that the owner signed s.
func (r *Registry) MarkAuthorized(s *Session) error {
	return r.transition(s, StateUnauthorized, StateAuthorized)
}

// MarkRegistered records that s was persisted on chain.
func (r *Registry) MarkRegistered(s *Session) error {
	return r.transition(s, StateAuthorized, StateRegistered)
}

// Revoke records that the owner revoked a registered session. Terminal.
func (r *Registry) Revoke(s *Session) error {
	return r.transition(s, StateRegistered, StateRevoked)
}

func (r *Registry) transition(s *Session, from, to State) error {
	key := s.StructHash()

	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.entries[key].state
	if current != from {
		return errors.Wrapf(ErrInvalidTransition, "%s -> %s from %s", from, to, current)
	}
	r.entries[key] = registryEntry{state: to, expiresAt: s.ExpiresAt()}

	r.logger.Debug("Session state changed",
		zap.String("session_hash", key.String()),
		zap.Stringer("from", from),
		zap.Stringer("to", to),
	)
	return nil
}

// State returns the stored state of s.
func (r *Registry) State(s *Session) State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[s.StructHash()].state
}

// Status is State with expiry applied: an authorized or registered
// session at or past its expiry reports StateExpired.
func (r *Registry) Status(s *Session, now time.Time) State {
	state := r.State(s)
	if (state == StateAuthorized || state == StateRegistered) && s.Expired(now) {
		return StateExpired
	}
	return state
}

// CheckUsable fails for revoked sessions.
func (r *Registry) CheckUsable(s *Session) error {
	if r.State(s) == StateRevoked {
		return ErrSessionRevoked
	}
	return nil
}

// Cleanup drops entries whose session expired before now. An expired
// session is rejected by the verifier whatever its local state.
func (r *Registry) Cleanup(now time.Time) int {
	unix := now.Unix()
	if unix < 0 {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for key, entry := range r.entries {
		if uint64(unix) >= entry.expiresAt {
			delete(r.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
