package cairo

import "github.com/NethermindEth/juno/core/felt"

// Call is one contract invocation.
type Call struct {
	To       felt.Felt
	Selector felt.Felt
	Calldata []felt.Felt

	// Entrypoint is the human-readable name behind Selector, when known.
	// It is never serialized.
	Entrypoint string
}

// NewCall builds a Call for a named entrypoint.
func NewCall(to felt.Felt, entrypoint string, calldata ...felt.Felt) Call {
	return Call{
		To:         to,
		Selector:   Selector(entrypoint),
		Calldata:   calldata,
		Entrypoint: entrypoint,
	}
}

// Serialize returns the Cairo layout [to, selector, calldata_len, calldata...].
func (c Call) Serialize() []felt.Felt {
	out := make([]felt.Felt, 0, 3+len(c.Calldata))
	out = append(out, c.To, c.Selector)
	return append(out, Span(c.Calldata)...)
}

// SerializeCalls returns [calls_len, call_0..., call_n...].
func SerializeCalls(calls []Call) []felt.Felt {
	out := []felt.Felt{FeltFromUint64(uint64(len(calls)))}
	for _, c := range calls {
		out = append(out, c.Serialize()...)
	}
	return out
}

// Span prefixes elems with its length.
func Span(elems []felt.Felt) []felt.Felt {
	out := make([]felt.Felt, 0, len(elems)+1)
	out = append(out, FeltFromUint64(uint64(len(elems))))
	return append(out, elems...)
}

// Spans serializes a Span<Span<felt252>>.
func Spans(spans [][]felt.Felt) []felt.Felt {
	out := []felt.Felt{FeltFromUint64(uint64(len(spans)))}
	for _, s := range spans {
		out = append(out, Span(s)...)
	}
	return out
}
