package utxo

import (
	"testing"

	"github.com/camilofabregas/bitcoin-node/internal/block"
	"github.com/camilofabregas/bitcoin-node/internal/script"
	"github.com/camilofabregas/bitcoin-node/internal/transactions"
)

func hash160(b byte) []byte {
	h := make([]byte, 20)
	h[0] = b
	return h
}

func txid(b byte) []byte {
	h := make([]byte, 32)
	h[0] = b
	return h
}

// TestApplyTracksNewAndSpentOutputs builds a two-transaction block where
// the second transaction spends the first one's only output, and checks
// that Apply both records the new outputs and removes the spent one in
// the same pass (same-block spends must be visible).
func TestApplyTracksNewAndSpentOutputs(t *testing.T) {
	payeeA := hash160(0xaa)
	payeeB := hash160(0xbb)

	coinbaseLike := transactions.NewTransaction(1, []transactions.TxIn{
		transactions.NewTxIn(make([]byte, 32), 0xffffffff, 0xffffffff),
	}, []transactions.TxOut{
		{Amount: 5000, ScriptPubKey: script.P2pkhScript(payeeA)},
	}, 0, true)

	coinbaseId, err := coinbaseLike.Hash()
	if err != nil {
		t.Fatal(err)
	}

	spender := transactions.NewTransaction(1, []transactions.TxIn{
		transactions.NewTxIn(coinbaseId, 0, 0xffffffff),
	}, []transactions.TxOut{
		{Amount: 3000, ScriptPubKey: script.P2pkhScript(payeeB)},
		{Amount: 1900, ScriptPubKey: script.P2pkhScript(payeeA)},
	}, 0, true)

	fb := &block.FullBlock{
		BlockHeader: &block.Block{},
		Txs:         []*transactions.Transaction{&coinbaseLike, &spender},
	}

	set := NewSet()
	newOut, spent, unmatched, err := set.Apply(fb)
	if err != nil {
		t.Fatal(err)
	}
	if newOut != 3 {
		t.Errorf("expected 3 new outputs, got %d", newOut)
	}
	if spent != 1 {
		t.Errorf("expected 1 spent output, got %d", spent)
	}
	if unmatched != 0 {
		t.Errorf("expected 0 unmatched inputs, got %d", unmatched)
	}

	if got := set.Balance(payeeA); got != 1900 {
		t.Errorf("payeeA balance = %d, want 1900", got)
	}
	if got := set.Balance(payeeB); got != 3000 {
		t.Errorf("payeeB balance = %d, want 3000", got)
	}
	if set.Len() != 2 {
		t.Errorf("expected 2 unspent outputs remaining, got %d", set.Len())
	}

	spendableA := set.SpendableBy(payeeA)
	if len(spendableA) != 1 {
		t.Fatalf("expected 1 spendable output for payeeA, got %d", len(spendableA))
	}
	if spendableA[0].Out.Amount != 1900 {
		t.Errorf("spendable output amount = %d, want 1900", spendableA[0].Out.Amount)
	}
}

// TestApplyUnmatchedInputCounted confirms an input referencing an
// output the set never saw (spent before the node's starting height)
// is counted, not treated as an error.
func TestApplyUnmatchedInputCounted(t *testing.T) {
	tx := transactions.NewTransaction(1, []transactions.TxIn{
		transactions.NewTxIn(txid(0x01), 3, 0xffffffff),
	}, []transactions.TxOut{
		{Amount: 100, ScriptPubKey: script.P2pkhScript(hash160(0xcc))},
	}, 0, true)

	fb := &block.FullBlock{BlockHeader: &block.Block{}, Txs: []*transactions.Transaction{&tx}}

	set := NewSet()
	newOut, spent, unmatched, err := set.Apply(fb)
	if err != nil {
		t.Fatal(err)
	}
	if newOut != 1 || spent != 0 || unmatched != 1 {
		t.Errorf("got new=%d spent=%d unmatched=%d, want 1/0/1", newOut, spent, unmatched)
	}
}

// TestLookupSatisfiesOutputLookup checks that Set.Lookup resolves an
// output by the same (prevTxid, prevIdx) pair the transaction package
// uses when computing a sighash.
func TestLookupSatisfiesOutputLookup(t *testing.T) {
	tx := transactions.NewTransaction(1, []transactions.TxIn{
		transactions.NewTxIn(make([]byte, 32), 0xffffffff, 0xffffffff),
	}, []transactions.TxOut{
		{Amount: 777, ScriptPubKey: script.P2pkhScript(hash160(0xdd))},
	}, 0, true)
	id, err := tx.Hash()
	if err != nil {
		t.Fatal(err)
	}

	fb := &block.FullBlock{BlockHeader: &block.Block{}, Txs: []*transactions.Transaction{&tx}}
	set := NewSet()
	if _, _, _, err := set.Apply(fb); err != nil {
		t.Fatal(err)
	}

	var lookup transactions.OutputLookup = set.Lookup
	out, err := lookup(id, 0)
	if err != nil {
		t.Fatal(err)
	}
	if out.Amount != 777 {
		t.Errorf("looked up amount = %d, want 777", out.Amount)
	}

	if _, err := lookup(id, 1); err == nil {
		t.Error("expected error looking up a non-existent output index")
	}
}
