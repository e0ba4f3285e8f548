// Package outside builds and signs outside executions: meta-transactions
// an account signs off-chain so a relayer can submit them and pay the fee.
package outside

import (
	"fmt"
	"math/big"
	"time"

	"github.com/NethermindEth/juno/core/felt"
	"github.com/cyphera/cyphera-session/pkg/cairo"
	"github.com/cyphera/cyphera-session/pkg/typedhash"
	"github.com/pkg/errors"
)

const (
	DomainName = "Account.execute_from_outside"

	CallTypeString = `"Call"("To":"ContractAddress","Selector":"selector","Calldata":"felt*")`

	TypeStringV2 = `"OutsideExecution"("Caller":"ContractAddress","Nonce":"felt","Execute After":"u128","Execute Before":"u128","Calls":"Call*")` + CallTypeString
	TypeStringV3 = `"OutsideExecution"("Caller":"ContractAddress","Nonce":"(felt,u128)","Execute After":"u128","Execute Before":"u128","Calls":"Call*")` + CallTypeString

	// AnyCallerTag lets any address submit the execution.
	AnyCallerTag = "ANY_CALLER"
)

var (
	callTypeHash = typedhash.TypeHash(CallTypeString)
	typeHashV2   = typedhash.TypeHash(TypeStringV2)
	typeHashV3   = typedhash.TypeHash(TypeStringV3)

	// AnyCaller is the caller value accepting every relayer.
	AnyCaller = cairo.MustShortString(AnyCallerTag)

	maxMask = new(big.Int).Lsh(big.NewInt(1), 128)

	// ErrExpiredOrNotYetValid is returned when now falls outside
	// [execute_after, execute_before).
	ErrExpiredOrNotYetValid = errors.New("outside execution expired or not yet valid")
	// ErrInvalidNonce is returned for a V3 nonce with an empty or
	// over-wide mask.
	ErrInvalidNonce = errors.New("invalid outside execution nonce")
)

// Version selects the envelope shape and the account entrypoint.
type Version uint8

const (
	// V2 is the legacy envelope with a single-felt nonce.
	//
	// Deprecated: use V3.
	V2 Version = 2
	V3 Version = 3
)

// Entrypoint is the account function that executes this version.
func (v Version) Entrypoint() string {
	return fmt.Sprintf("execute_from_outside_v%d", v)
}

// Domain is the typed-data domain executions of version v are signed
// under.
func Domain(v Version, chainID felt.Felt) typedhash.Domain {
	return typedhash.NewDomain(DomainName, cairo.FeltFromUint64(uint64(v)), chainID)
}

// Envelope is an outside execution of either version.
type Envelope interface {
	Version() Version
	Caller() felt.Felt
	ExecuteAfter() uint64
	ExecuteBefore() uint64
	Calls() []cairo.Call
	StructHash() felt.Felt
	// Serialize returns the Cairo layout of the envelope struct.
	Serialize() []felt.Felt
}

// MessageHash is what the account signs for env.
func MessageHash(env Envelope, chainID, account felt.Felt) (felt.Felt, error) {
	return typedhash.MessageHash(Domain(env.Version(), chainID), account, env.StructHash())
}

// ValidateWindow checks after <= now < before.
func ValidateWindow(after, before uint64, now time.Time) error {
	unix := now.Unix()
	if unix < 0 {
		return ErrExpiredOrNotYetValid
	}
	t := uint64(unix)
	if t < after || t >= before {
		return errors.Wrapf(ErrExpiredOrNotYetValid, "now %d, window [%d, %d)", t, after, before)
	}
	return nil
}

// CanBeCalledBy reports whether relayer may submit env.
func CanBeCalledBy(env Envelope, relayer felt.Felt) bool {
	caller := env.Caller()
	return caller.Equal(&AnyCaller) || caller.Equal(&relayer)
}

// Nonce is a V3 nonce: a channel namespace and a bitmask of slots in it.
type Nonce struct {
	Namespace felt.Felt
	Mask      felt.Felt
}

// NewNonce validates mask as a non-empty 128-bit mask.
func NewNonce(namespace felt.Felt, mask *big.Int) (Nonce, error) {
	if mask.Sign() <= 0 || mask.Cmp(maxMask) >= 0 {
		return Nonce{}, errors.Wrapf(ErrInvalidNonce, "mask %s", mask.Text(16))
	}
	return Nonce{Namespace: namespace, Mask: cairo.FeltFromBigInt(mask)}, nil
}

// Hash is the typed-data encoding of the (felt, u128) tuple.
func (n Nonce) Hash() felt.Felt {
	return typedhash.HashMany(n.Namespace, n.Mask)
}

// CallHash is the typed-data hash of a call.
func CallHash(c cairo.Call) felt.Felt {
	return typedhash.HashStruct(callTypeHash, c.To, c.Selector, typedhash.HashMany(c.Calldata...))
}

func callsHash(calls []cairo.Call) felt.Felt {
	hashes := make([]felt.Felt, len(calls))
	for i, c := range calls {
		hashes[i] = CallHash(c)
	}
	return typedhash.HashMany(hashes...)
}

type window struct {
	caller felt.Felt
	after  uint64
	before uint64
	calls  []cairo.Call
}

func (w window) Caller() felt.Felt     { return w.caller }
func (w window) ExecuteAfter() uint64  { return w.after }
func (w window) ExecuteBefore() uint64 { return w.before }

// Calls returns a copy of the calls.
func (w window) Calls() []cairo.Call {
	return append([]cairo.Call(nil), w.calls...)
}

// ExecutionV2 is the legacy envelope with a single-felt nonce.
//
// Deprecated: use ExecutionV3. Kept for accounts that only expose
// execute_from_outside_v2.
type ExecutionV2 struct {
	window
	nonce felt.Felt
}

// NewExecutionV2 builds a V2 envelope.
//
// Deprecated: use NewExecutionV3.
func NewExecutionV2(caller, nonce felt.Felt, after, before uint64, calls []cairo.Call) *ExecutionV2 {
	return &ExecutionV2{
		window: window{caller: caller, after: after, before: before, calls: append([]cairo.Call(nil), calls...)},
		nonce:  nonce,
	}
}

func (e *ExecutionV2) Version() Version { return V2 }
func (e *ExecutionV2) Nonce() felt.Felt { return e.nonce }

func (e *ExecutionV2) StructHash() felt.Felt {
	return typedhash.HashStruct(typeHashV2,
		e.caller,
		e.nonce,
		cairo.FeltFromUint64(e.after),
		cairo.FeltFromUint64(e.before),
		callsHash(e.calls),
	)
}

func (e *ExecutionV2) Serialize() []felt.Felt {
	out := []felt.Felt{e.caller, e.nonce, cairo.FeltFromUint64(e.after), cairo.FeltFromUint64(e.before)}
	return append(out, cairo.SerializeCalls(e.calls)...)
}

// ExecutionV3 is the current envelope.
type ExecutionV3 struct {
	window
	nonce Nonce
}

// NewExecutionV3 builds a V3 envelope.
func NewExecutionV3(caller felt.Felt, nonce Nonce, after, before uint64, calls []cairo.Call) *ExecutionV3 {
	return &ExecutionV3{
		window: window{caller: caller, after: after, before: before, calls: append([]cairo.Call(nil), calls...)},
		nonce:  nonce,
	}
}

func (e *ExecutionV3) Version() Version { return V3 }
func (e *ExecutionV3) Nonce() Nonce     { return e.nonce }

func (e *ExecutionV3) StructHash() felt.Felt {
	return typedhash.HashStruct(typeHashV3,
		e.caller,
		e.nonce.Hash(),
		cairo.FeltFromUint64(e.after),
		cairo.FeltFromUint64(e.before),
		callsHash(e.calls),
	)
}

func (e *ExecutionV3) Serialize() []felt.Felt {
	out := []felt.Felt{
		e.caller,
		e.nonce.Namespace,
		e.nonce.Mask,
		cairo.FeltFromUint64(e.after),
		cairo.FeltFromUint64(e.before),
	}
	return append(out, cairo.SerializeCalls(e.calls)...)
}

// SignedEnvelope is an envelope with the account signature over its
// message hash.
type SignedEnvelope struct {
	Envelope  Envelope
	Signature []felt.Felt
	Hash      felt.Felt
}

// Call is the account call a relayer submits.
func (s *SignedEnvelope) Call(account felt.Felt) cairo.Call {
	calldata := s.Envelope.Serialize()
	calldata = append(calldata, cairo.Span(s.Signature)...)
	return cairo.NewCall(account, s.Envelope.Version().Entrypoint(), calldata...)
}
