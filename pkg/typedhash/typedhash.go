// Package typedhash computes domain-separated, revision 1 typed-data hashes.
//
// Every struct hash mixes a per-type constant (the starknet keccak of the
// struct's literal type string) in first, and every message hash binds the
// struct hash to a domain (name, version, chain, revision) and to the
// signing account, so the same struct never hashes alike across types,
// chains or verifying contracts.
package typedhash

import (
	"github.com/NethermindEth/juno/core/crypto"
	"github.com/NethermindEth/juno/core/felt"
	"github.com/cyphera/cyphera-session/pkg/cairo"
	"github.com/pkg/errors"
)

// ErrEncoding is returned when a domain string cannot be encoded.
var ErrEncoding = cairo.ErrEncoding

// Revision is the typed-data revision used for every hash.
const Revision = 1

const (
	// MessagePrefix is mixed into every message hash.
	MessagePrefix = "StarkNet Message"

	DomainTypeString = `"StarknetDomain"("name":"shortstring","version":"shortstring","chainId":"shortstring","revision":"shortstring")`
)

var (
	messagePrefix  = cairo.MustShortString(MessagePrefix)
	domainTypeHash = TypeHash(DomainTypeString)
)

// TypeHash returns the type-hash constant for a literal type string.
func TypeHash(typeString string) felt.Felt {
	return cairo.StarknetKeccak([]byte(typeString))
}

// HashMany is Poseidon over elems.
func HashMany(elems ...felt.Felt) felt.Felt {
	ptrs := make([]*felt.Felt, len(elems))
	for i := range elems {
		ptrs[i] = &elems[i]
	}
	return *crypto.PoseidonArray(ptrs...)
}

// HashStruct hashes a struct as Poseidon(typeHash, fields...).
func HashStruct(typeHash felt.Felt, fields ...felt.Felt) felt.Felt {
	elems := make([]felt.Felt, 0, len(fields)+1)
	elems = append(elems, typeHash)
	return HashMany(append(elems, fields...)...)
}

// HashString hashes a "string" typed field: Poseidon over its ByteArray
// serialization.
func HashString(s string) felt.Felt {
	return HashMany(cairo.ByteArray(s)...)
}

// Domain describes where a message is valid.
type Domain struct {
	Name     string
	Version  felt.Felt
	ChainID  felt.Felt
	Revision felt.Felt
}

// NewDomain builds a revision 1 domain.
func NewDomain(name string, version, chainID felt.Felt) Domain {
	return Domain{
		Name:     name,
		Version:  version,
		ChainID:  chainID,
		Revision: cairo.FeltFromUint64(Revision),
	}
}

// Hash returns the domain struct hash.
func (d Domain) Hash() (felt.Felt, error) {
	name, err := cairo.ShortString(d.Name)
	if err != nil {
		return felt.Zero, errors.Wrap(err, "domain name")
	}
	return HashStruct(domainTypeHash, name, d.Version, d.ChainID, d.Revision), nil
}

// MessageHash binds structHash to a domain and signer address.
func MessageHash(d Domain, signer, structHash felt.Felt) (felt.Felt, error) {
	domainHash, err := d.Hash()
	if err != nil {
		return felt.Zero, err
	}
	return MessageHashWithDomainHash(domainHash, signer, structHash), nil
}

// MessageHashWithDomainHash is MessageHash for a precomputed domain hash.
func MessageHashWithDomainHash(domainHash, signer, structHash felt.Felt) felt.Felt {
	return HashMany(messagePrefix, domainHash, signer, structHash)
}

// ChainID encodes a chain name such as "SN_MAIN" or "SN_SEPOLIA".
func ChainID(name string) (felt.Felt, error) {
	id, err := cairo.ShortString(name)
	if err != nil {
		return felt.Zero, errors.Wrap(err, "chain id")
	}
	return id, nil
}
