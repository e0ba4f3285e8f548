package session

import (
	"github.com/NethermindEth/juno/core/felt"
	"github.com/cyphera/cyphera-session/pkg/cairo"
	"github.com/cyphera/cyphera-session/pkg/signer"
)

// TokenMagic prefixes every session signature so the account can tell it
// from a plain owner signature.
const TokenMagic = "session-token"

var tokenMagic = cairo.MustShortString(TokenMagic)

// Token is the per-transaction authorization artifact. It is built fresh
// for every signed action.
type Token struct {
	Session            *Session
	CacheAuthorization bool
	Authorization      Authorization
	SessionSignature   signer.Signature
	GuardianSignature  signer.Signature
	Proofs             [][]felt.Felt
}

// Serialize returns the token in verifier order: session,
// cache_authorization, session_authorization, session_signature,
// guardian_signature, proofs.
func (t *Token) Serialize() []felt.Felt {
	guardian := t.GuardianSignature
	if guardian.Payload == nil {
		guardian = signer.EmptySignature()
	}

	out := t.Session.Serialize()
	out = append(out, cairo.Bool(t.CacheAuthorization))
	out = append(out, cairo.Span(t.Authorization.Felts())...)
	out = append(out, t.SessionSignature.Serialize()...)
	out = append(out, guardian.Serialize()...)
	return append(out, cairo.Spans(t.Proofs)...)
}

// Signature is the account signature carrying this token.
func (t *Token) Signature() []felt.Felt {
	return append([]felt.Felt{tokenMagic}, t.Serialize()...)
}

// IsTokenSignature reports whether an account signature is session-style.
func IsTokenSignature(signature []felt.Felt) bool {
	return len(signature) > 0 && signature[0].Equal(&tokenMagic)
}
