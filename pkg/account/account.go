// Package account composes signers into account signatures: owner only,
// owner plus guardian, and session-bound accounts that sign with a
// delegated session key.
package account

import (
	"context"

	"github.com/NethermindEth/juno/core/felt"
	"github.com/cyphera/cyphera-session/internal/logger"
	"github.com/cyphera/cyphera-session/pkg/cairo"
	"github.com/cyphera/cyphera-session/pkg/session"
	"github.com/cyphera/cyphera-session/pkg/signer"
	"github.com/cyphera/cyphera-session/pkg/typedhash"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const addOwnerTag = "add_owner"

var addOwner = cairo.MustShortString(addOwnerTag)

// ErrMissingSigner is returned when a required signer is nil.
var ErrMissingSigner = errors.New("missing signer")

// EncodeSignatures returns [n, sig_1..., sig_n...] in the given order.
func EncodeSignatures(sigs ...signer.Signature) []felt.Felt {
	out := []felt.Felt{cairo.FeltFromUint64(uint64(len(sigs)))}
	for _, s := range sigs {
		out = append(out, s.Serialize()...)
	}
	return out
}

// Account signs with its owner and, when configured, its guardian.
type Account struct {
	address  felt.Felt
	chainID  felt.Felt
	owner    signer.Signer
	guardian signer.Signer
	registry *session.Registry
	logger   *zap.Logger
}

// Option customizes an Account.
type Option func(*Account)

// WithLogger sets the account logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Account) { a.logger = l }
}

// WithRegistry records authorized sessions in r and refuses to authorize
// sessions r knows as revoked.
func WithRegistry(r *session.Registry) Option {
	return func(a *Account) { a.registry = r }
}

// NewOwnerAccount builds an account whose signatures are [1, owner].
func NewOwnerAccount(address, chainID felt.Felt, owner signer.Signer, opts ...Option) (*Account, error) {
	return newAccount(address, chainID, owner, nil, opts)
}

// NewGuardedAccount builds an account whose signatures are
// [2, owner, guardian].
func NewGuardedAccount(address, chainID felt.Felt, owner, guardian signer.Signer, opts ...Option) (*Account, error) {
	if guardian == nil {
		return nil, errors.Wrap(ErrMissingSigner, "guardian")
	}
	return newAccount(address, chainID, owner, guardian, opts)
}

func newAccount(address, chainID felt.Felt, owner, guardian signer.Signer, opts []Option) (*Account, error) {
	if owner == nil {
		return nil, errors.Wrap(ErrMissingSigner, "owner")
	}
	a := &Account{
		address:  address,
		chainID:  chainID,
		owner:    owner,
		guardian: guardian,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = logger.OrDefault(a.logger).With(zap.String("account", address.String()))
	return a, nil
}

func (a *Account) Address() felt.Felt { return a.address }
func (a *Account) ChainID() felt.Felt { return a.chainID }
func (a *Account) OwnerGUID() felt.Felt {
	return a.owner.GUID()
}

// GuardianGUID is zero for accounts without a guardian.
func (a *Account) GuardianGUID() felt.Felt {
	if a.guardian == nil {
		return felt.Zero
	}
	return a.guardian.GUID()
}

// HasGuardian reports whether the account co-signs with a guardian.
func (a *Account) HasGuardian() bool { return a.guardian != nil }

// SignHash signs hash with the owner, then the guardian, and encodes both.
func (a *Account) SignHash(ctx context.Context, hash felt.Felt) ([]felt.Felt, error) {
	sigs, err := a.signAll(ctx, hash)
	if err != nil {
		return nil, err
	}
	return EncodeSignatures(sigs...), nil
}

// SignExecution signs a transaction hash. Owner signatures are not
// restricted by the calls.
func (a *Account) SignExecution(ctx context.Context, hash felt.Felt, _ []cairo.Call) ([]felt.Felt, error) {
	return a.SignHash(ctx, hash)
}

func (a *Account) signAll(ctx context.Context, hash felt.Felt) ([]signer.Signature, error) {
	ownerSig, err := a.owner.SignHash(ctx, hash)
	if err != nil {
		return nil, errors.Wrap(err, "owner")
	}
	if a.guardian == nil {
		return []signer.Signature{ownerSig}, nil
	}
	guardianSig, err := a.guardian.SignHash(ctx, hash)
	if err != nil {
		return nil, errors.Wrap(err, "guardian")
	}
	return []signer.Signature{ownerSig, guardianSig}, nil
}

// AuthorizeSession signs the session message hash for this account and
// chain with the owner (and guardian).
func (a *Account) AuthorizeSession(ctx context.Context, s *session.Session) (session.Authorization, error) {
	if a.registry != nil {
		if err := a.registry.CheckUsable(s); err != nil {
			return session.Authorization{}, err
		}
	}

	hash, err := s.MessageHash(a.chainID, a.address)
	if err != nil {
		return session.Authorization{}, errors.Wrap(err, "failed to hash session")
	}
	sigs, err := a.SignHash(ctx, hash)
	if err != nil {
		return session.Authorization{}, errors.Wrap(err, "failed to authorize session")
	}
	auth, err := session.SignedAuthorization(sigs)
	if err != nil {
		return session.Authorization{}, err
	}

	if a.registry != nil && a.registry.State(s) == session.StateUnauthorized {
		if err := a.registry.MarkAuthorized(s); err != nil && !errors.Is(err, session.ErrInvalidTransition) {
			return session.Authorization{}, err
		}
	}

	a.logger.Debug("Session authorized",
		zap.String("session_hash", hash.String()),
		zap.Uint64("expires_at", s.ExpiresAt()),
		zap.Bool("wildcard", s.IsWildcard()),
	)
	return auth, nil
}

// NewOwnerHash is what a candidate owner signs to prove control of its
// key before being added to the account.
func NewOwnerHash(chainID, account felt.Felt) felt.Felt {
	return typedhash.HashMany(addOwner, chainID, account)
}

// SignNewOwner has candidate sign the new-owner hash for this account.
func (a *Account) SignNewOwner(ctx context.Context, candidate signer.Signer) (signer.Signature, error) {
	if candidate == nil {
		return signer.Signature{}, errors.Wrap(ErrMissingSigner, "candidate owner")
	}
	sig, err := candidate.SignHash(ctx, NewOwnerHash(a.chainID, a.address))
	if err != nil {
		return signer.Signature{}, errors.Wrap(err, "new owner")
	}
	return sig, nil
}

// RegisterSessionCall is the account call that persists s on chain so
// later tokens can use the registered authorization form.
func (a *Account) RegisterSessionCall(s *session.Session) cairo.Call {
	calldata := append(s.Serialize(), a.owner.GUID())
	return cairo.NewCall(a.address, "register_session", calldata...)
}

// RevokeSessionCall is the account call that revokes s on chain.
func (a *Account) RevokeSessionCall(s *session.Session) (cairo.Call, error) {
	hash, err := s.MessageHash(a.chainID, a.address)
	if err != nil {
		return cairo.Call{}, err
	}
	return cairo.NewCall(a.address, "revoke_session", hash), nil
}
