package outside_test

import (
	"math/big"
	"sync"
	"testing"

	"github.com/NethermindEth/juno/core/felt"
	"github.com/cyphera/cyphera-session/pkg/cairo"
	"github.com/cyphera/cyphera-session/pkg/outside"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNonceSource_LowestFreeSlot(t *testing.T) {
	ns := cairo.FeltFromUint64(0xabc)
	src := outside.NewNonceSourceWithNamespace(ns)

	for i := 0; i < 3; i++ {
		n := src.Next()
		assert.Equal(t, ns, n.Namespace)
		assert.Equal(t, cairo.FeltFromBigInt(new(big.Int).Lsh(big.NewInt(1), uint(i))), n.Mask)
	}
}

func TestNonceSource_RotatesNamespaceWhenFull(t *testing.T) {
	ns := cairo.FeltFromUint64(0xabc)
	src := outside.NewNonceSourceWithNamespace(ns)

	for i := 0; i < 128; i++ {
		n := src.Next()
		require.Equal(t, ns, n.Namespace, "slot %d", i)
	}
	rotated := src.Next()
	assert.NotEqual(t, ns, rotated.Namespace)
	assert.Equal(t, cairo.FeltFromUint64(1), rotated.Mask)
	assert.Equal(t, rotated.Namespace, src.Namespace())
}

func TestNonceSource_ConcurrentUnique(t *testing.T) {
	src := outside.NewNonceSource()
	const workers, perWorker = 8, 50

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[outside.Nonce]struct{})
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				n := src.Next()
				mu.Lock()
				seen[n] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, workers*perWorker)
}

func TestNonceSource_NextV2Unique(t *testing.T) {
	src := outside.NewNonceSource()
	seen := make(map[felt.Felt]struct{})
	for i := 0; i < 200; i++ {
		n := src.NextV2()
		_, dup := seen[n]
		require.False(t, dup)
		seen[n] = struct{}{}
	}
}
