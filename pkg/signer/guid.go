package signer

import (
	"crypto/sha256"

	"github.com/NethermindEth/juno/core/felt"
	"github.com/cyphera/cyphera-session/pkg/cairo"
	"github.com/cyphera/cyphera-session/pkg/typedhash"
)

var (
	starknetSignerType = cairo.MustShortString("Starknet Signer")
	eip191SignerType   = cairo.MustShortString("Eip191 Signer")
	webauthnSignerType = cairo.MustShortString("Webauthn Signer")
)

// StarknetGUID is the identity of a Stark-curve public key.
func StarknetGUID(publicKey felt.Felt) felt.Felt {
	return typedhash.HashMany(starknetSignerType, publicKey)
}

// Eip191GUID is the identity of an Ethereum address.
func Eip191GUID(address felt.Felt) felt.Felt {
	return typedhash.HashMany(eip191SignerType, address)
}

// WebauthnGUID is the identity of a passkey bound to an origin and relying
// party.
func WebauthnGUID(origin, rpID string, publicKeyX [32]byte) felt.Felt {
	return typedhash.HashMany(append([]felt.Felt{webauthnSignerType}, webauthnSignerData(origin, rpID, publicKeyX)...)...)
}

// webauthnSignerData is the serialized WebauthnSigner struct:
// [origin_len, origin bytes..., rp_id_hash.low, rp_id_hash.high, pubkey.low, pubkey.high].
func webauthnSignerData(origin, rpID string, publicKeyX [32]byte) []felt.Felt {
	out := make([]felt.Felt, 0, len(origin)+5)
	out = append(out, cairo.FeltFromUint64(uint64(len(origin))))
	for i := 0; i < len(origin); i++ {
		out = append(out, cairo.FeltFromUint64(uint64(origin[i])))
	}
	rpLow, rpHigh := cairo.SplitU256Bytes(sha256.Sum256([]byte(rpID)))
	keyLow, keyHigh := cairo.SplitU256Bytes(publicKeyX)
	return append(out, rpLow, rpHigh, keyLow, keyHigh)
}
