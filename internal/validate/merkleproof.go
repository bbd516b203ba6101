// Package validate builds and checks Merkle inclusion proofs for individual
// transactions, on top of the block package's whole-tree proof-of-inclusion
// check.
package validate

import "github.com/camilofabregas/bitcoin-node/internal/encoding"

// Side tags which side of a pair a hash sits on when the pair is combined
// into its parent.
type Side int

const (
	Left Side = iota
	Right
)

// ProofStep is one link of a Merkle proof: a hash and the side it occupies
// relative to the running accumulator during reconstruction. The first
// step is the leaf itself; its Side is informational only and is not used
// when the proof is folded back into a root.
type ProofStep struct {
	Hash [32]byte
	Side Side
}

func hashPair(l, r [32]byte) [32]byte {
	buf := make([]byte, 0, 64)
	buf = append(buf, l[:]...)
	buf = append(buf, r[:]...)
	return [32]byte(encoding.Hash256(buf))
}

func parentLevel(level [][32]byte) [][32]byte {
	if len(level)%2 != 0 {
		level = append(level, level[len(level)-1])
	}
	parents := make([][32]byte, 0, len(level)/2)
	for i := 0; i < len(level); i += 2 {
		parents = append(parents, hashPair(level[i], level[i+1]))
	}
	return parents
}

// BuildLevels returns every level of the transaction Merkle tree built from
// txHashes (level 0 is the leaves, the last level holds only the root).
// Odd-sized levels duplicate their last hash, matching the node's
// per-level-not-global duplication rule.
func BuildLevels(txHashes [][32]byte) [][][32]byte {
	if len(txHashes) == 0 {
		return nil
	}
	leaves := make([][32]byte, len(txHashes))
	copy(leaves, txHashes)
	levels := [][][32]byte{leaves}
	for len(levels[len(levels)-1]) > 1 {
		levels = append(levels, parentLevel(levels[len(levels)-1]))
	}
	return levels
}

// Proof builds the sibling path for txHash within the tree formed by
// txHashes, so a client holding only that one transaction (plus the
// header's Merkle root) can confirm it was included in the block.
func Proof(txHash [32]byte, txHashes [][32]byte) ([]ProofStep, bool) {
	levels := BuildLevels(txHashes)
	if len(levels) == 0 {
		return nil, false
	}

	index := -1
	for i, h := range levels[0] {
		if h == txHash {
			index = i
			break
		}
	}
	if index == -1 {
		return nil, false
	}

	firstSide := Left
	if index%2 != 0 {
		firstSide = Right
	}
	steps := make([]ProofStep, 0, len(levels))
	steps = append(steps, ProofStep{Hash: txHash, Side: firstSide})

	for level := 0; level < len(levels)-1; level++ {
		var siblingSide Side
		var siblingIndex int
		if index%2 == 0 {
			siblingSide = Right
			siblingIndex = index + 1
			if siblingIndex >= len(levels[level]) {
				siblingIndex = index // odd level: lone leaf is its own duplicate
			}
		} else {
			siblingSide = Left
			siblingIndex = index - 1
		}
		steps = append(steps, ProofStep{Hash: levels[level][siblingIndex], Side: siblingSide})
		index /= 2
	}
	return steps, true
}

// RootFromProof folds a proof back into the root it claims to support.
// If the proof was tampered with or built against a different tree, the
// result simply won't equal the block header's Merkle root.
func RootFromProof(steps []ProofStep) [32]byte {
	if len(steps) == 0 {
		return [32]byte{}
	}
	acc := steps[0].Hash
	for _, step := range steps[1:] {
		if step.Side == Right {
			acc = hashPair(acc, step.Hash)
		} else {
			acc = hashPair(step.Hash, acc)
		}
	}
	return acc
}
