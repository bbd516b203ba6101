package validate

import (
	"github.com/camilofabregas/bitcoin-node/internal/block"
)

// BlockPoI recomputes the Merkle root over every transaction in full and
// reports whether it matches the block header's merkle root - the
// listener's post-IBD Proof-of-Inclusion check. Leaf hashes are folded
// in internal (little-endian) byte order, the same orientation the
// header's MerkleRoot field is parsed in, so Transaction.Hash's
// display-order txid is reversed back before hashing.
func BlockPoI(full *block.FullBlock) bool {
	if full == nil || full.BlockHeader == nil || len(full.Txs) == 0 {
		return false
	}
	leaves := make([][32]byte, len(full.Txs))
	for i, tx := range full.Txs {
		display, err := tx.Hash()
		if err != nil {
			return false
		}
		var leaf [32]byte
		copy(leaf[:], display)
		reverse(leaf[:])
		leaves[i] = leaf
	}
	levels := BuildLevels(leaves)
	if len(levels) == 0 {
		return false
	}
	root := levels[len(levels)-1][0]
	return root == full.BlockHeader.MerkleRoot
}

func reverse(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}
