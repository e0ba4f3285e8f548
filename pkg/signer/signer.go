// Package signer abstracts the authenticators that can sign a hash on an
// account's behalf: raw Starknet keys, Ethereum (EIP-191) keys, WebAuthn
// passkeys and session keys.
package signer

import (
	"context"
	"fmt"

	"github.com/NethermindEth/juno/core/felt"
	"github.com/cyphera/cyphera-session/pkg/cairo"
	"github.com/pkg/errors"
)

var (
	// ErrSigningFailure is matched by every SigningError.
	ErrSigningFailure = errors.New("signing failure")
	// ErrPromptCancelled is returned by authenticators when the user
	// dismisses the prompt. It is retryable.
	ErrPromptCancelled = errors.New("authenticator prompt cancelled")
	// ErrMalformedSignature is returned when an authenticator hands back
	// bytes that do not form a valid signature over the requested hash.
	ErrMalformedSignature = errors.New("malformed signature")
)

// Kind is the SignerSignature enum variant.
type Kind uint8

const (
	KindStarknet Kind = iota
	KindSecp256k1
	KindSecp256r1
	KindEip191
	KindWebauthn
)

func (k Kind) String() string {
	switch k {
	case KindStarknet:
		return "starknet"
	case KindSecp256k1:
		return "secp256k1"
	case KindSecp256r1:
		return "secp256r1"
	case KindEip191:
		return "eip191"
	case KindWebauthn:
		return "webauthn"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Signer signs hashes. Implementations may block on user interaction.
type Signer interface {
	// GUID is the identity hash of the signer's public key.
	GUID() felt.Felt
	// SignHash signs hash. It must return an error matching
	// ErrSigningFailure on any failure.
	SignHash(ctx context.Context, hash felt.Felt) (Signature, error)
}

// Signature is one SignerSignature: the signer's public data followed by
// the signature values, tagged with the variant.
type Signature struct {
	Kind    Kind
	Payload []felt.Felt
}

// Serialize returns [variant, payload...].
func (s Signature) Serialize() []felt.Felt {
	out := make([]felt.Felt, 0, len(s.Payload)+1)
	out = append(out, cairo.FeltFromUint64(uint64(s.Kind)))
	return append(out, s.Payload...)
}

// IsZero reports whether s carries no signature.
func (s Signature) IsZero() bool {
	for _, f := range s.Payload {
		if !f.IsZero() {
			return false
		}
	}
	return s.Kind == KindStarknet
}

// EmptySignature stands in for an absent signer (a Starknet signature
// with zero key and values).
func EmptySignature() Signature {
	return Signature{Kind: KindStarknet, Payload: []felt.Felt{felt.Zero, felt.Zero, felt.Zero}}
}

// SigningError wraps any failure to obtain a signature.
type SigningError struct {
	Signer string
	Err    error
}

func (e *SigningError) Error() string {
	return fmt.Sprintf("%s: %s signer: %v", ErrSigningFailure, e.Signer, e.Err)
}

func (e *SigningError) Unwrap() error { return e.Err }

func (e *SigningError) Is(target error) bool { return target == ErrSigningFailure }

// Temporary reports whether retrying may succeed: the prompt was
// cancelled or the caller's context ended.
func (e *SigningError) Temporary() bool {
	return errors.Is(e.Err, ErrPromptCancelled) ||
		errors.Is(e.Err, context.Canceled) ||
		errors.Is(e.Err, context.DeadlineExceeded)
}

func signingError(signer string, err error) error {
	var se *SigningError
	if errors.As(err, &se) {
		return err
	}
	return &SigningError{Signer: signer, Err: err}
}
