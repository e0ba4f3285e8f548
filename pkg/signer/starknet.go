package signer

import (
	"context"
	"crypto/rand"

	"github.com/NethermindEth/juno/core/felt"
	starkecdsa "github.com/consensys/gnark-crypto/ecc/stark-curve/ecdsa"
	"github.com/cyphera/cyphera-session/pkg/cairo"
	"github.com/pkg/errors"
)

const starkSignatureSize = 64

// StarknetSigner signs with a raw Stark-curve private key held in memory.
type StarknetSigner struct {
	key       *starkecdsa.PrivateKey
	publicKey felt.Felt
	guid      felt.Felt
}

// NewStarknetSigner wraps an existing key.
func NewStarknetSigner(key *starkecdsa.PrivateKey) *StarknetSigner {
	x := key.PublicKey.A.X.Bytes()
	pub := cairo.FeltFromBytes(x[:])
	return &StarknetSigner{
		key:       key,
		publicKey: pub,
		guid:      StarknetGUID(pub),
	}
}

// GenerateStarknetSigner creates a signer with a fresh random key.
func GenerateStarknetSigner() (*StarknetSigner, error) {
	key, err := starkecdsa.GenerateKey(rand.Reader)
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate stark key")
	}
	return NewStarknetSigner(key), nil
}

// PublicKey is the x coordinate of the public point.
func (s *StarknetSigner) PublicKey() felt.Felt { return s.publicKey }

func (s *StarknetSigner) GUID() felt.Felt { return s.guid }

// SignHash signs hash and returns [pubkey, r, s].
func (s *StarknetSigner) SignHash(ctx context.Context, hash felt.Felt) (Signature, error) {
	if err := ctx.Err(); err != nil {
		return Signature{}, signingError(KindStarknet.String(), err)
	}
	msg := hash.Bytes()
	sig, err := s.key.Sign(msg[:], nil)
	if err != nil {
		return Signature{}, signingError(KindStarknet.String(), err)
	}
	if len(sig) != starkSignatureSize {
		return Signature{}, signingError(KindStarknet.String(), errors.Wrapf(ErrMalformedSignature, "got %d bytes", len(sig)))
	}
	return Signature{
		Kind: KindStarknet,
		Payload: []felt.Felt{
			s.publicKey,
			cairo.FeltFromBytes(sig[:32]),
			cairo.FeltFromBytes(sig[32:]),
		},
	}, nil
}

// Verify checks a signature produced by this key over hash.
func (s *StarknetSigner) Verify(hash felt.Felt, sig Signature) (bool, error) {
	if sig.Kind != KindStarknet || len(sig.Payload) != 3 {
		return false, errors.Wrap(ErrMalformedSignature, "not a starknet signature")
	}
	if !sig.Payload[0].Equal(&s.publicKey) {
		return false, nil
	}
	r := sig.Payload[1].Bytes()
	v := sig.Payload[2].Bytes()
	raw := make([]byte, 0, starkSignatureSize)
	raw = append(raw, r[:]...)
	raw = append(raw, v[:]...)
	msg := hash.Bytes()
	return s.key.PublicKey.Verify(raw, msg[:], nil)
}

// SessionKey is the ephemeral Stark key a session delegates to. It signs
// exactly like a StarknetSigner; the distinct type keeps owner and session
// roles apart at call sites.
type SessionKey struct {
	*StarknetSigner
}

// GenerateSessionKey creates a fresh session key.
func GenerateSessionKey() (*SessionKey, error) {
	s, err := GenerateStarknetSigner()
	if err != nil {
		return nil, err
	}
	return &SessionKey{StarknetSigner: s}, nil
}
