package policy

import (
	"github.com/NethermindEth/juno/core/felt"
	"github.com/cyphera/cyphera-session/pkg/typedhash"
)

// TypedMessage is an off-chain typed-data message, already reduced to its
// primary type hash and encoded field values.
type TypedMessage struct {
	Domain   typedhash.Domain
	TypeHash felt.Felt
	Fields   []felt.Felt
}

// NewTypedMessage hashes the primary type string for the caller.
func NewTypedMessage(domain typedhash.Domain, typeString string, fields ...felt.Felt) TypedMessage {
	return TypedMessage{
		Domain:   domain,
		TypeHash: typedhash.TypeHash(typeString),
		Fields:   fields,
	}
}

// StructHash is the hash of the message body.
func (m TypedMessage) StructHash() felt.Felt {
	return typedhash.HashStruct(m.TypeHash, m.Fields...)
}

// ScopeHash binds the message schema to its domain. Every message of the
// same type under the same domain shares a scope.
func (m TypedMessage) ScopeHash() (felt.Felt, error) {
	domainHash, err := m.Domain.Hash()
	if err != nil {
		return felt.Zero, err
	}
	return typedhash.HashMany(domainHash, m.TypeHash), nil
}

// MessageHash is the hash signer signs for this message.
func (m TypedMessage) MessageHash(signer felt.Felt) (felt.Felt, error) {
	return typedhash.MessageHash(m.Domain, signer, m.StructHash())
}
