package outside

import (
	"math/big"
	"math/bits"
	"sync"

	"github.com/NethermindEth/juno/core/felt"
	"github.com/cyphera/cyphera-session/pkg/cairo"
	"github.com/google/uuid"
)

// NonceSource hands out outside-execution nonces that are never reused
// within the source. V3 nonces take the lowest free slot of the current
// namespace; a fresh namespace is opened when all 128 slots are used.
// Safe for concurrent use.
type NonceSource struct {
	mu        sync.Mutex
	namespace felt.Felt
	used      [2]uint64
	issuedV2  map[felt.Felt]struct{}
	random    func() felt.Felt
}

// NewNonceSource starts on a random namespace.
func NewNonceSource() *NonceSource {
	return newNonceSource(randomFelt)
}

// NewNonceSourceWithNamespace starts on namespace. Later namespaces are
// random.
func NewNonceSourceWithNamespace(namespace felt.Felt) *NonceSource {
	n := newNonceSource(randomFelt)
	n.namespace = namespace
	return n
}

func newNonceSource(random func() felt.Felt) *NonceSource {
	return &NonceSource{
		namespace: random(),
		issuedV2:  make(map[felt.Felt]struct{}),
		random:    random,
	}
}

func randomFelt() felt.Felt {
	id := uuid.New()
	return cairo.FeltFromBytes(id[:])
}

// Next returns the next V3 nonce.
func (n *NonceSource) Next() Nonce {
	n.mu.Lock()
	defer n.mu.Unlock()

	slot, ok := n.lowestFree()
	if !ok {
		n.namespace = n.random()
		n.used = [2]uint64{}
		slot = 0
	}
	n.used[slot/64] |= 1 << (slot % 64)

	mask := new(big.Int).Lsh(big.NewInt(1), uint(slot))
	return Nonce{Namespace: n.namespace, Mask: cairo.FeltFromBigInt(mask)}
}

func (n *NonceSource) lowestFree() (int, bool) {
	for word, v := range n.used {
		if v != ^uint64(0) {
			return word*64 + bits.TrailingZeros64(^v), true
		}
	}
	return 0, false
}

// Namespace returns the namespace the next V3 nonce will use unless it is
// exhausted.
func (n *NonceSource) Namespace() felt.Felt {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.namespace
}

// NextV2 returns a random V2 nonce not issued before by this source.
//
// Deprecated: V2 envelopes are deprecated; use Next.
func (n *NonceSource) NextV2() felt.Felt {
	n.mu.Lock()
	defer n.mu.Unlock()

	for {
		nonce := n.random()
		if _, seen := n.issuedV2[nonce]; !seen {
			n.issuedV2[nonce] = struct{}{}
			return nonce
		}
	}
}
