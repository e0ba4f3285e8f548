// Package policy defines the two kinds of action a session may be allowed
// to perform and their allow-list leaves.
package policy

import (
	"fmt"

	"github.com/NethermindEth/juno/core/felt"
	"github.com/cyphera/cyphera-session/pkg/cairo"
	"github.com/cyphera/cyphera-session/pkg/typedhash"
	"github.com/pkg/errors"
)

const (
	AllowedMethodTypeString = `"Allowed Method"("Contract Address":"ContractAddress","selector":"selector")`
	AllowedTypeTypeString   = `"Allowed Type"("Scope Hash":"felt")`
)

var (
	allowedMethodTypeHash = typedhash.TypeHash(AllowedMethodTypeString)
	allowedTypeTypeHash   = typedhash.TypeHash(AllowedTypeTypeString)
)

// ErrPolicyNotAllowed is matched by every NotAllowedError.
var ErrPolicyNotAllowed = errors.New("policy not allowed by session")

// Policy is a permission a session can carry. It is implemented only by
// CallPolicy and TypedDataPolicy. Policies are comparable and may be used
// as map keys; two policies are the same policy iff they are ==.
type Policy interface {
	MerkleLeaf() felt.Felt
	String() string
	isPolicy()
}

// CallPolicy allows invoking one entrypoint on one contract.
type CallPolicy struct {
	ContractAddress felt.Felt
	Selector        felt.Felt
}

// NewCallPolicy names the entrypoint instead of its selector.
func NewCallPolicy(contract felt.Felt, entrypoint string) CallPolicy {
	return CallPolicy{ContractAddress: contract, Selector: cairo.Selector(entrypoint)}
}

// FromCall derives the policy an executed call requires.
func FromCall(call cairo.Call) CallPolicy {
	return CallPolicy{ContractAddress: call.To, Selector: call.Selector}
}

func (p CallPolicy) MerkleLeaf() felt.Felt {
	return typedhash.HashStruct(allowedMethodTypeHash, p.ContractAddress, p.Selector)
}

func (p CallPolicy) String() string {
	return fmt.Sprintf("call(contract=%s, selector=%s)", p.ContractAddress.String(), p.Selector.String())
}

func (CallPolicy) isPolicy() {}

// TypedDataPolicy allows signing messages of one typed-data scope.
type TypedDataPolicy struct {
	ScopeHash felt.Felt
}

// FromTypedData derives the policy signing msg requires.
func FromTypedData(msg TypedMessage) (TypedDataPolicy, error) {
	scope, err := msg.ScopeHash()
	if err != nil {
		return TypedDataPolicy{}, err
	}
	return TypedDataPolicy{ScopeHash: scope}, nil
}

func (p TypedDataPolicy) MerkleLeaf() felt.Felt {
	return typedhash.HashStruct(allowedTypeTypeHash, p.ScopeHash)
}

func (p TypedDataPolicy) String() string {
	return fmt.Sprintf("typed_data(scope=%s)", p.ScopeHash.String())
}

func (TypedDataPolicy) isPolicy() {}

// Leaves returns the Merkle leaves of policies in order.
func Leaves(policies []Policy) []felt.Felt {
	out := make([]felt.Felt, len(policies))
	for i, p := range policies {
		out[i] = p.MerkleLeaf()
	}
	return out
}

// NotAllowedError reports an action the session's policies do not cover.
type NotAllowedError struct {
	Policy Policy
	// Entrypoint is set for call policies when the caller knew the name.
	Entrypoint string
}

func (e *NotAllowedError) Error() string {
	switch p := e.Policy.(type) {
	case CallPolicy:
		if e.Entrypoint != "" {
			return fmt.Sprintf("%s: contract %s, selector %q (%s)", ErrPolicyNotAllowed, p.ContractAddress.String(), e.Entrypoint, p.Selector.String())
		}
		return fmt.Sprintf("%s: contract %s, selector %s", ErrPolicyNotAllowed, p.ContractAddress.String(), p.Selector.String())
	case TypedDataPolicy:
		return fmt.Sprintf("%s: typed data scope %s", ErrPolicyNotAllowed, p.ScopeHash.String())
	default:
		return ErrPolicyNotAllowed.Error()
	}
}

func (e *NotAllowedError) Is(target error) bool {
	return target == ErrPolicyNotAllowed
}
