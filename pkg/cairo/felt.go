// Package cairo holds the field-element primitives and the Cairo wire
// serialization used at the boundary with the on-chain verifier.
package cairo

import (
	"math/big"
	"strings"

	"github.com/NethermindEth/juno/core/felt"
	"github.com/pkg/errors"
)

// ErrEncoding is returned when a value cannot be represented in the field
// element alphabet (non-ASCII short strings, oversized values, malformed
// serialized input).
var ErrEncoding = errors.New("encoding error")

// MaxShortStringLen is the number of ASCII bytes that fit in one felt.
const MaxShortStringLen = 31

var (
	// Zero is the additive identity.
	Zero = felt.Zero

	u128Mask = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
)

// FeltFromUint64 returns v as a felt.
func FeltFromUint64(v uint64) felt.Felt {
	return *new(felt.Felt).SetUint64(v)
}

// FeltFromBytes interprets b as a big-endian integer reduced into the field.
func FeltFromBytes(b []byte) felt.Felt {
	return *new(felt.Felt).SetBytes(b)
}

// FeltFromBigInt converts v into a felt.
func FeltFromBigInt(v *big.Int) felt.Felt {
	return *new(felt.Felt).SetBigInt(v)
}

// FeltFromHex parses a 0x-prefixed hex string.
func FeltFromHex(s string) (felt.Felt, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return felt.Zero, errors.Wrapf(ErrEncoding, "felt %q: missing 0x prefix", s)
	}
	f, err := new(felt.Felt).SetString(s)
	if err != nil {
		return felt.Zero, errors.Wrapf(ErrEncoding, "felt %q: %v", s, err)
	}
	return *f, nil
}

// MustHex is FeltFromHex for constants and fixtures. It panics on error.
func MustHex(s string) felt.Felt {
	f, err := FeltFromHex(s)
	if err != nil {
		panic(err)
	}
	return f
}

// Bool encodes a Cairo bool.
func Bool(b bool) felt.Felt {
	if b {
		return FeltFromUint64(1)
	}
	return felt.Zero
}

// SplitU256 splits v into its (low, high) 128-bit limbs, the Cairo u256
// layout. Values wider than 256 bits are rejected.
func SplitU256(v *big.Int) (low, high felt.Felt, err error) {
	if v.Sign() < 0 || v.BitLen() > 256 {
		return felt.Zero, felt.Zero, errors.Wrapf(ErrEncoding, "value %s does not fit in u256", v.String())
	}
	lo := new(big.Int).And(v, u128Mask)
	hi := new(big.Int).Rsh(v, 128)
	return FeltFromBigInt(lo), FeltFromBigInt(hi), nil
}

// SplitU256Bytes is SplitU256 for a 32-byte big-endian value.
func SplitU256Bytes(b [32]byte) (low, high felt.Felt) {
	return FeltFromBytes(b[16:]), FeltFromBytes(b[:16])
}

// Equal reports whether a and b hold the same value.
func Equal(a, b felt.Felt) bool {
	return a.Equal(&b)
}

// Less orders felts by their integer value.
func Less(a, b felt.Felt) bool {
	return a.Cmp(&b) < 0
}
