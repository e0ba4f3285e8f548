package signer

import (
	"context"
	"crypto/ecdsa"

	"github.com/NethermindEth/juno/core/felt"
	"github.com/cyphera/cyphera-session/pkg/cairo"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// Eip191Signer signs with an Ethereum secp256k1 key. The hash is wrapped
// in the EIP-191 personal-message envelope before signing, so hardware and
// browser wallets that only expose personal_sign can act as owners.
type Eip191Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
	guid    felt.Felt
}

// NewEip191Signer wraps an existing key.
func NewEip191Signer(key *ecdsa.PrivateKey) *Eip191Signer {
	address := crypto.PubkeyToAddress(key.PublicKey)
	return &Eip191Signer{
		key:     key,
		address: address,
		guid:    Eip191GUID(cairo.FeltFromBytes(address.Bytes())),
	}
}

// GenerateEip191Signer creates a signer with a fresh random key.
func GenerateEip191Signer() (*Eip191Signer, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate secp256k1 key")
	}
	return NewEip191Signer(key), nil
}

// Address is the signer's Ethereum address.
func (s *Eip191Signer) Address() common.Address { return s.address }

func (s *Eip191Signer) GUID() felt.Felt { return s.guid }

// SignHash returns [eth_address, r.low, r.high, s.low, s.high, y_parity].
func (s *Eip191Signer) SignHash(ctx context.Context, hash felt.Felt) (Signature, error) {
	if err := ctx.Err(); err != nil {
		return Signature{}, signingError(KindEip191.String(), err)
	}
	digest := Eip191Digest(hash)
	sig, err := crypto.Sign(digest, s.key)
	if err != nil {
		return Signature{}, signingError(KindEip191.String(), err)
	}
	if len(sig) != crypto.SignatureLength {
		return Signature{}, signingError(KindEip191.String(), errors.Wrapf(ErrMalformedSignature, "got %d bytes", len(sig)))
	}

	var r, v [32]byte
	copy(r[:], sig[:32])
	copy(v[:], sig[32:64])
	rLow, rHigh := cairo.SplitU256Bytes(r)
	sLow, sHigh := cairo.SplitU256Bytes(v)

	return Signature{
		Kind: KindEip191,
		Payload: []felt.Felt{
			cairo.FeltFromBytes(s.address.Bytes()),
			rLow, rHigh,
			sLow, sHigh,
			cairo.Bool(sig[64] == 1),
		},
	}, nil
}

// Eip191Digest is the personal-message hash of a felt's 32-byte encoding.
func Eip191Digest(hash felt.Felt) []byte {
	b := hash.Bytes()
	return accounts.TextHash(b[:])
}
