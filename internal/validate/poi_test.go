package validate

import (
	"testing"

	"github.com/camilofabregas/bitcoin-node/internal/block"
	"github.com/camilofabregas/bitcoin-node/internal/script"
	"github.com/camilofabregas/bitcoin-node/internal/transactions"
)

func buildFullBlock(t *testing.T, txs []*transactions.Transaction, root [32]byte) *block.FullBlock {
	t.Helper()
	return &block.FullBlock{
		BlockHeader: &block.Block{MerkleRoot: root},
		Txs:         txs,
	}
}

func rootFromTxs(t *testing.T, txs []*transactions.Transaction) [32]byte {
	t.Helper()
	leaves := make([][32]byte, len(txs))
	for i, tx := range txs {
		display, err := tx.Hash()
		if err != nil {
			t.Fatal(err)
		}
		var leaf [32]byte
		copy(leaf[:], display)
		reverse(leaf[:])
		leaves[i] = leaf
	}
	levels := BuildLevels(leaves)
	return levels[len(levels)-1][0]
}

func sampleTx(t *testing.T, payee byte, amount uint64) *transactions.Transaction {
	t.Helper()
	hash160 := make([]byte, 20)
	hash160[0] = payee
	tx := transactions.NewTransaction(1, []transactions.TxIn{
		transactions.NewTxIn(make([]byte, 32), 0xffffffff, 0xffffffff),
	}, []transactions.TxOut{
		{Amount: amount, ScriptPubKey: script.P2pkhScript(hash160)},
	}, 0, true)
	return &tx
}

// TestBlockPoIAcceptsMatchingRoot checks that a header whose merkle root
// was derived from the block's own transactions passes.
func TestBlockPoIAcceptsMatchingRoot(t *testing.T) {
	txs := []*transactions.Transaction{
		sampleTx(t, 0xaa, 100),
		sampleTx(t, 0xbb, 200),
		sampleTx(t, 0xcc, 300),
	}
	root := rootFromTxs(t, txs)
	full := buildFullBlock(t, txs, root)

	if !BlockPoI(full) {
		t.Fatal("expected BlockPoI to accept a block with a matching merkle root")
	}
}

// TestBlockPoIRejectsTamperedRoot checks that replacing one transaction
// after the root was computed is detected.
func TestBlockPoIRejectsTamperedRoot(t *testing.T) {
	txs := []*transactions.Transaction{
		sampleTx(t, 0xaa, 100),
		sampleTx(t, 0xbb, 200),
	}
	root := rootFromTxs(t, txs)

	tampered := []*transactions.Transaction{txs[0], sampleTx(t, 0xdd, 999)}
	full := buildFullBlock(t, tampered, root)

	if BlockPoI(full) {
		t.Fatal("expected BlockPoI to reject a block whose transactions don't fold to the header root")
	}
}

// TestBlockPoIRejectsEmptyBlock checks the defensive nil/empty guards.
func TestBlockPoIRejectsEmptyBlock(t *testing.T) {
	if BlockPoI(nil) {
		t.Error("expected nil block to be rejected")
	}
	if BlockPoI(&block.FullBlock{BlockHeader: &block.Block{}}) {
		t.Error("expected a block with no transactions to be rejected")
	}
}
