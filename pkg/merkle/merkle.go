// Package merkle builds the Poseidon allow-list tree used by sessions.
//
// Pairs are hashed in sorted order, Poseidon(min(a,b), max(a,b)), so a
// proof is a plain list of siblings with no left/right markers. A level
// with an odd number of nodes is padded with a zero leaf.
package merkle

import (
	"github.com/NethermindEth/juno/core/crypto"
	"github.com/NethermindEth/juno/core/felt"
	"github.com/pkg/errors"
)

var (
	// ErrEmptyTree is returned when a tree is requested over no leaves.
	ErrEmptyTree = errors.New("merkle tree has no leaves")
	// ErrIndexOutOfRange is returned for a proof index outside the leaves.
	ErrIndexOutOfRange = errors.New("merkle leaf index out of range")
	// ErrProofInconsistency marks a locally built proof that does not
	// recombine to the expected root. It indicates a bug, never bad input.
	ErrProofInconsistency = errors.New("merkle proof does not match root")
)

// HashPair combines two nodes in sorted order.
func HashPair(a, b felt.Felt) felt.Felt {
	if a.Cmp(&b) > 0 {
		a, b = b, a
	}
	return *crypto.Poseidon(&a, &b)
}

// Root returns the tree root over leaves. A single leaf is its own root.
func Root(leaves []felt.Felt) (felt.Felt, error) {
	if len(leaves) == 0 {
		return felt.Zero, ErrEmptyTree
	}
	level := make([]felt.Felt, len(leaves))
	copy(level, leaves)
	for len(level) > 1 {
		level = nextLevel(level)
	}
	return level[0], nil
}

// ComputeProof returns the sibling path for leaves[index].
func ComputeProof(leaves []felt.Felt, index int) ([]felt.Felt, error) {
	if len(leaves) == 0 {
		return nil, ErrEmptyTree
	}
	if index < 0 || index >= len(leaves) {
		return nil, errors.Wrapf(ErrIndexOutOfRange, "index %d, %d leaves", index, len(leaves))
	}

	proof := []felt.Felt{}
	level := make([]felt.Felt, len(leaves))
	copy(level, leaves)
	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, felt.Zero)
		}
		proof = append(proof, level[index^1])
		level = nextLevel(level)
		index /= 2
	}
	return proof, nil
}

// ComputeRoot folds proof into leaf.
func ComputeRoot(leaf felt.Felt, proof []felt.Felt) felt.Felt {
	current := leaf
	for _, sibling := range proof {
		current = HashPair(current, sibling)
	}
	return current
}

// Verify reports whether proof places leaf under root.
func Verify(root, leaf felt.Felt, proof []felt.Felt) bool {
	computed := ComputeRoot(leaf, proof)
	return computed.Equal(&root)
}

// nextLevel hashes adjacent pairs, padding an odd level with zero.
func nextLevel(level []felt.Felt) []felt.Felt {
	if len(level)%2 == 1 {
		level = append(level, felt.Zero)
	}
	next := make([]felt.Felt, len(level)/2)
	for i := 0; i < len(level); i += 2 {
		next[i/2] = HashPair(level[i], level[i+1])
	}
	return next
}
