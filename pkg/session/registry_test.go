package session_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cyphera/cyphera-session/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestSession(t *testing.T, expiresAt uint64) *session.Session {
	t.Helper()
	s, err := session.New(transferApprove(), expiresAt, sessionKey)
	require.NoError(t, err)
	return s
}

func TestRegistry_Lifecycle(t *testing.T) {
	r := session.NewRegistry(zap.NewNop())
	s := newTestSession(t, 1000)

	assert.Equal(t, session.StateUnauthorized, r.State(s))
	require.NoError(t, r.CheckUsable(s))

	require.NoError(t, r.MarkAuthorized(s))
	assert.Equal(t, session.StateAuthorized, r.State(s))

	require.NoError(t, r.MarkRegistered(s))
	assert.Equal(t, session.StateRegistered, r.State(s))
	require.NoError(t, r.CheckUsable(s))

	require.NoError(t, r.Revoke(s))
	assert.Equal(t, session.StateRevoked, r.State(s))
	assert.True(t, errors.Is(r.CheckUsable(s), session.ErrSessionRevoked))
}

func TestRegistry_InvalidTransitions(t *testing.T) {
	tests := []struct {
		name  string
		setup func(r *session.Registry, s *session.Session)
		step  func(r *session.Registry, s *session.Session) error
	}{
		{
			name:  "register before authorize",
			setup: func(*session.Registry, *session.Session) {},
			step:  (*session.Registry).MarkRegistered,
		},
		{
			name:  "revoke unregistered",
			setup: func(r *session.Registry, s *session.Session) { _ = r.MarkAuthorized(s) },
			step:  (*session.Registry).Revoke,
		},
		{
			name:  "authorize twice",
			setup: func(r *session.Registry, s *session.Session) { _ = r.MarkAuthorized(s) },
			step:  (*session.Registry).MarkAuthorized,
		},
		{
			name: "revoked is terminal",
			setup: func(r *session.Registry, s *session.Session) {
				_ = r.MarkAuthorized(s)
				_ = r.MarkRegistered(s)
				_ = r.Revoke(s)
			},
			step: (*session.Registry).MarkAuthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := session.NewRegistry(nil)
			s := newTestSession(t, 1000)
			tt.setup(r, s)
			err := tt.step(r, s)
			assert.True(t, errors.Is(err, session.ErrInvalidTransition))
		})
	}
}

func TestRegistry_Status(t *testing.T) {
	r := session.NewRegistry(nil)
	s := newTestSession(t, 1000)

	assert.Equal(t, session.StateUnauthorized, r.Status(s, time.Unix(2000, 0)))

	require.NoError(t, r.MarkAuthorized(s))
	assert.Equal(t, session.StateAuthorized, r.Status(s, time.Unix(999, 0)))
	assert.Equal(t, session.StateExpired, r.Status(s, time.Unix(1000, 0)))

	require.NoError(t, r.MarkRegistered(s))
	assert.Equal(t, session.StateExpired, r.Status(s, time.Unix(1001, 0)))

	require.NoError(t, r.Revoke(s))
	assert.Equal(t, session.StateRevoked, r.Status(s, time.Unix(1001, 0)))
}

func TestRegistry_Cleanup(t *testing.T) {
	r := session.NewRegistry(nil)
	short := newTestSession(t, 100)
	long := newTestSession(t, 10_000)
	require.NoError(t, r.MarkAuthorized(short))
	require.NoError(t, r.MarkAuthorized(long))

	assert.Equal(t, 1, r.Cleanup(time.Unix(500, 0)))
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, session.StateAuthorized, r.State(long))
}

func TestRegistry_ConcurrentAuthorizeOnlyOnce(t *testing.T) {
	r := session.NewRegistry(nil)
	s := newTestSession(t, 1000)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.MarkAuthorized(s) == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, succeeded)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "registered", session.StateRegistered.String())
	assert.Equal(t, "state(42)", session.State(42).String())
}
