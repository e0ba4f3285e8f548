package cairo

import (
	"github.com/NethermindEth/juno/core/felt"
	"github.com/pkg/errors"
	"golang.org/x/crypto/sha3"
)

// ShortString encodes s as a Cairo short string: up to 31 printable ASCII
// bytes packed big-endian into one felt. Anything else is an encoding
// error; the input is never truncated.
func ShortString(s string) (felt.Felt, error) {
	if len(s) > MaxShortStringLen {
		return felt.Zero, errors.Wrapf(ErrEncoding, "short string %q exceeds %d bytes", s, MaxShortStringLen)
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7e {
			return felt.Zero, errors.Wrapf(ErrEncoding, "short string %q has non-ASCII byte at %d", s, i)
		}
	}
	return FeltFromBytes([]byte(s)), nil
}

// MustShortString is ShortString for compile-time literals.
func MustShortString(s string) felt.Felt {
	f, err := ShortString(s)
	if err != nil {
		panic(err)
	}
	return f
}

// DecodeShortString is the inverse of ShortString. Leading zero bytes are
// dropped.
func DecodeShortString(f felt.Felt) string {
	b := f.Bytes()
	i := 0
	for i < len(b) && b[i] == 0 {
		i++
	}
	return string(b[i:])
}

// StarknetKeccak is keccak256 truncated to the low 250 bits.
func StarknetKeccak(data []byte) felt.Felt {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	sum := h.Sum(nil)
	sum[0] &= 0x03
	return FeltFromBytes(sum)
}

// Selector returns the entrypoint selector for a function name.
func Selector(name string) felt.Felt {
	return StarknetKeccak([]byte(name))
}

// ByteArray serializes s as a Cairo ByteArray:
// [full_words_len, full_words..., pending_word, pending_word_len].
func ByteArray(s string) []felt.Felt {
	data := []byte(s)
	full := len(data) / MaxShortStringLen
	out := make([]felt.Felt, 0, full+3)
	out = append(out, FeltFromUint64(uint64(full)))
	for i := 0; i < full; i++ {
		out = append(out, FeltFromBytes(data[i*MaxShortStringLen:(i+1)*MaxShortStringLen]))
	}
	pending := data[full*MaxShortStringLen:]
	out = append(out, FeltFromBytes(pending), FeltFromUint64(uint64(len(pending))))
	return out
}
