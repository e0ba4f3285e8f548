package account

import (
	"context"
	"sync"

	"github.com/NethermindEth/juno/core/felt"
	"github.com/cyphera/cyphera-session/internal/logger"
	"github.com/cyphera/cyphera-session/pkg/cairo"
	"github.com/cyphera/cyphera-session/pkg/merkle"
	"github.com/cyphera/cyphera-session/pkg/policy"
	"github.com/cyphera/cyphera-session/pkg/session"
	"github.com/cyphera/cyphera-session/pkg/signer"
	"github.com/cyphera/cyphera-session/pkg/typedhash"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrSignerMismatch is returned when a signer's GUID differs from the one
// the session was created for.
var ErrSignerMismatch = errors.New("signer does not match session")

// SessionAccount signs on an account's behalf with a session key, within
// the session's policies.
type SessionAccount struct {
	address    felt.Felt
	chainID    felt.Felt
	session    *session.Session
	sessionKey signer.Signer
	guardian   signer.Signer
	registry   *session.Registry
	logger     *zap.Logger

	mu                 sync.RWMutex
	authorization      session.Authorization
	cacheAuthorization bool
}

// SessionOption customizes a SessionAccount.
type SessionOption func(*SessionAccount)

// WithGuardianSigner sets the guardian that co-signs every token. Required
// when the session names a guardian key.
func WithGuardianSigner(g signer.Signer) SessionOption {
	return func(a *SessionAccount) { a.guardian = g }
}

// WithSessionRegistry makes signing fail once the session is revoked in r.
func WithSessionRegistry(r *session.Registry) SessionOption {
	return func(a *SessionAccount) { a.registry = r }
}

// WithCacheAuthorization asks the account to cache the authorization on
// first use so later tokens can skip re-verifying it.
func WithCacheAuthorization(cache bool) SessionOption {
	return func(a *SessionAccount) { a.cacheAuthorization = cache }
}

// WithSessionLogger sets the logger.
func WithSessionLogger(l *zap.Logger) SessionOption {
	return func(a *SessionAccount) { a.logger = l }
}

// NewSessionAccount binds sess, its authorization and the session key to
// the account at address on chainID.
func NewSessionAccount(
	address, chainID felt.Felt,
	sess *session.Session,
	authorization session.Authorization,
	sessionKey signer.Signer,
	opts ...SessionOption,
) (*SessionAccount, error) {
	if sess == nil {
		return nil, errors.New("nil session")
	}
	if sessionKey == nil {
		return nil, errors.Wrap(ErrMissingSigner, "session key")
	}
	if authorization.IsZero() {
		return nil, errors.Wrap(cairo.ErrEncoding, "empty session authorization")
	}

	a := &SessionAccount{
		address:       address,
		chainID:       chainID,
		session:       sess,
		sessionKey:    sessionKey,
		authorization: authorization,
	}
	for _, opt := range opts {
		opt(a)
	}

	want := sess.SessionKeyGUID()
	if got := sessionKey.GUID(); !got.Equal(&want) {
		return nil, errors.Wrap(ErrSignerMismatch, "session key")
	}
	guardianGUID := sess.GuardianKeyGUID()
	switch {
	case a.guardian == nil && !guardianGUID.IsZero():
		return nil, errors.Wrap(ErrMissingSigner, "session names a guardian")
	case a.guardian != nil:
		if got := a.guardian.GUID(); !got.Equal(&guardianGUID) {
			return nil, errors.Wrap(ErrSignerMismatch, "guardian")
		}
	}

	a.logger = logger.OrDefault(a.logger).With(
		zap.String("account", address.String()),
		zap.String("session_key", want.String()),
	)
	return a, nil
}

func (a *SessionAccount) Address() felt.Felt        { return a.address }
func (a *SessionAccount) ChainID() felt.Felt        { return a.chainID }
func (a *SessionAccount) Session() *session.Session { return a.session }

// Authorization returns the authorization currently carried by tokens.
func (a *SessionAccount) Authorization() session.Authorization {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.authorization
}

// MarkRegistered switches to the registered authorization form once the
// session is persisted on chain for ownerGUID.
func (a *SessionAccount) MarkRegistered(ownerGUID felt.Felt) error {
	if a.registry != nil {
		if err := a.registry.MarkRegistered(a.session); err != nil {
			return err
		}
	}
	a.mu.Lock()
	a.authorization = session.RegisteredAuthorization(ownerGUID)
	a.mu.Unlock()
	a.logger.Info("Session registered", zap.String("owner_guid", ownerGUID.String()))
	return nil
}

// SignExecution returns the session signature for a transaction with hash
// txHash executing calls. Every call must be covered by the session.
func (a *SessionAccount) SignExecution(ctx context.Context, txHash felt.Felt, calls []cairo.Call) ([]felt.Felt, error) {
	policies := make([]policy.Policy, len(calls))
	for i, c := range calls {
		policies[i] = policy.FromCall(c)
	}

	token, err := a.BuildToken(ctx, txHash, policies)
	if err != nil {
		var notAllowed *policy.NotAllowedError
		if errors.As(err, &notAllowed) {
			for _, c := range calls {
				if policy.FromCall(c) == notAllowed.Policy {
					notAllowed.Entrypoint = c.Entrypoint
					break
				}
			}
		}
		return nil, err
	}
	return token.Signature(), nil
}

// SignTypedMessage signs an off-chain typed message on the account's
// behalf. The message's scope must be covered by the session.
func (a *SessionAccount) SignTypedMessage(ctx context.Context, msg policy.TypedMessage) ([]felt.Felt, error) {
	p, err := policy.FromTypedData(msg)
	if err != nil {
		return nil, err
	}
	hash, err := msg.MessageHash(a.address)
	if err != nil {
		return nil, errors.Wrap(err, "failed to hash typed message")
	}
	token, err := a.BuildToken(ctx, hash, []policy.Policy{p})
	if err != nil {
		return nil, err
	}
	return token.Signature(), nil
}

// BuildToken proves policies against the session and signs hash with the
// session key (and guardian).
func (a *SessionAccount) BuildToken(ctx context.Context, hash felt.Felt, policies []policy.Policy) (*session.Token, error) {
	if a.registry != nil {
		if err := a.registry.CheckUsable(a.session); err != nil {
			a.logger.Warn("Refusing to sign with revoked session")
			return nil, err
		}
	}

	proofs, err := a.prove(policies)
	if err != nil {
		return nil, err
	}

	sessionHash, err := a.session.MessageHash(a.chainID, a.address)
	if err != nil {
		return nil, errors.Wrap(err, "failed to hash session")
	}
	signed := typedhash.HashMany(hash, sessionHash)

	sessionSig, err := a.sessionKey.SignHash(ctx, signed)
	if err != nil {
		return nil, errors.Wrap(err, "session key")
	}
	guardianSig := signer.EmptySignature()
	if a.guardian != nil {
		guardianSig, err = a.guardian.SignHash(ctx, signed)
		if err != nil {
			return nil, errors.Wrap(err, "guardian")
		}
	}

	a.mu.RLock()
	token := &session.Token{
		Session:            a.session,
		CacheAuthorization: a.cacheAuthorization,
		Authorization:      a.authorization,
		SessionSignature:   sessionSig,
		GuardianSignature:  guardianSig,
		Proofs:             proofs,
	}
	a.mu.RUnlock()

	a.logger.Debug("Session token built",
		zap.String("hash", hash.String()),
		zap.Int("policies", len(policies)),
	)
	return token, nil
}

func (a *SessionAccount) prove(policies []policy.Policy) ([][]felt.Felt, error) {
	proofs := make([][]felt.Felt, 0, len(policies))
	for _, p := range policies {
		proved, err := a.session.Prove(p)
		if err != nil {
			if errors.Is(err, merkle.ErrProofInconsistency) {
				a.logger.DPanic("Merkle proof does not match session root", zap.Error(err))
			} else {
				a.logger.Warn("Action outside session policies", zap.Stringer("policy", p))
			}
			return nil, err
		}
		proofs = append(proofs, proved.Proof)
	}
	return proofs, nil
}
