package outside

import (
	"context"
	"time"

	"github.com/NethermindEth/juno/core/felt"
	"github.com/cyphera/cyphera-session/internal/logger"
	"github.com/cyphera/cyphera-session/pkg/cairo"
	"github.com/cyphera/cyphera-session/pkg/session"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrWildcardRelay is returned when a wildcard session tries to sign an
// outside execution.
var ErrWildcardRelay = errors.New("wildcard sessions cannot sign outside executions")

// Account signs execution hashes. Both owner and session accounts qualify.
type Account interface {
	Address() felt.Felt
	ChainID() felt.Felt
	SignExecution(ctx context.Context, hash felt.Felt, calls []cairo.Call) ([]felt.Felt, error)
}

type sessionBound interface {
	Session() *session.Session
}

// Relayer submits signed envelopes on chain and returns the transaction
// hash. Implementations live outside this module.
type Relayer interface {
	Relay(ctx context.Context, account felt.Felt, signed *SignedEnvelope) (felt.Felt, error)
}

// Builder assembles and signs outside executions for one account.
type Builder struct {
	account Account
	nonces  *NonceSource
	now     func() time.Time
	logger  *zap.Logger
}

// BuilderOption customizes a Builder.
type BuilderOption func(*Builder)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) BuilderOption {
	return func(b *Builder) { b.now = now }
}

// WithNonceSource shares a nonce source between builders.
func WithNonceSource(n *NonceSource) BuilderOption {
	return func(b *Builder) { b.nonces = n }
}

// WithLogger sets the builder logger.
func WithLogger(l *zap.Logger) BuilderOption {
	return func(b *Builder) { b.logger = l }
}

// NewBuilder creates a builder signing with account.
func NewBuilder(account Account, opts ...BuilderOption) *Builder {
	b := &Builder{
		account: account,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.nonces == nil {
		b.nonces = NewNonceSource()
	}
	address := account.Address()
	b.logger = logger.OrDefault(b.logger).With(zap.String("account", address.String()))
	return b
}

// BuildV3 validates the window and allocates a nonce.
func (b *Builder) BuildV3(caller felt.Felt, after, before uint64, calls []cairo.Call) (*ExecutionV3, error) {
	if err := ValidateWindow(after, before, b.now()); err != nil {
		return nil, err
	}
	return NewExecutionV3(caller, b.nonces.Next(), after, before, calls), nil
}

// BuildV2 is BuildV3 for the legacy envelope.
//
// Deprecated: use BuildV3.
func (b *Builder) BuildV2(caller felt.Felt, after, before uint64, calls []cairo.Call) (*ExecutionV2, error) {
	if err := ValidateWindow(after, before, b.now()); err != nil {
		return nil, err
	}
	return NewExecutionV2(caller, b.nonces.NextV2(), after, before, calls), nil
}

// Sign signs env with the account. The window is checked again against
// the clock so a stale envelope is never signed.
func (b *Builder) Sign(ctx context.Context, env Envelope) (*SignedEnvelope, error) {
	if sb, ok := b.account.(sessionBound); ok && sb.Session().IsWildcard() {
		b.logger.Warn("Refusing outside execution for wildcard session")
		return nil, ErrWildcardRelay
	}
	if err := ValidateWindow(env.ExecuteAfter(), env.ExecuteBefore(), b.now()); err != nil {
		return nil, err
	}

	hash, err := MessageHash(env, b.account.ChainID(), b.account.Address())
	if err != nil {
		return nil, errors.Wrap(err, "failed to hash outside execution")
	}
	sig, err := b.account.SignExecution(ctx, hash, env.Calls())
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign outside execution")
	}

	b.logger.Debug("Outside execution signed",
		zap.Uint8("version", uint8(env.Version())),
		zap.String("hash", hash.String()),
		zap.Int("calls", len(env.Calls())),
	)
	return &SignedEnvelope{Envelope: env, Signature: sig, Hash: hash}, nil
}

// Submit signs env and hands it to relayer.
func (b *Builder) Submit(ctx context.Context, relayer Relayer, env Envelope) (felt.Felt, error) {
	signed, err := b.Sign(ctx, env)
	if err != nil {
		return felt.Zero, err
	}
	txHash, err := relayer.Relay(ctx, b.account.Address(), signed)
	if err != nil {
		return felt.Zero, errors.Wrap(err, "relayer")
	}
	b.logger.Info("Outside execution relayed", zap.String("tx_hash", txHash.String()))
	return txHash, nil
}
