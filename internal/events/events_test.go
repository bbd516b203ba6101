package events

import (
	"testing"

	"github.com/camilofabregas/bitcoin-node/internal/script"
	"github.com/camilofabregas/bitcoin-node/internal/transactions"
	"github.com/camilofabregas/bitcoin-node/internal/wallet"
)

func sampleTxnInfo(t *testing.T, txnType wallet.TxnType, amount float64) wallet.TxnInfo {
	t.Helper()
	tx := transactions.NewTransaction(1, []transactions.TxIn{
		transactions.NewTxIn(make([]byte, 32), 0xffffffff, 0xffffffff),
	}, []transactions.TxOut{
		{Amount: 1000, ScriptPubKey: script.P2pkhScript(make([]byte, 20))},
	}, 0, true)
	return wallet.NewTxnInfo(tx, txnType, "test", amount, "mzAddr", "-")
}

// TestRowsFromPreservesOrderAndFields checks that each TxnInfo maps to a
// TxnRow with the same display fields, in the same order, plus a
// resolved txid.
func TestRowsFromPreservesOrderAndFields(t *testing.T) {
	infos := []wallet.TxnInfo{
		sampleTxnInfo(t, wallet.Sent, 0.001),
		sampleTxnInfo(t, wallet.Received, 0.002),
	}

	rows := rowsFrom(infos)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	for i, row := range rows {
		wantTxid, err := infos[i].Txn.Id()
		if err != nil {
			t.Fatal(err)
		}
		if row.Txid != wantTxid {
			t.Errorf("row %d txid = %s, want %s", i, row.Txid, wantTxid)
		}
		if row.Amount != infos[i].Amount {
			t.Errorf("row %d amount = %v, want %v", i, row.Amount, infos[i].Amount)
		}
		if row.Address != infos[i].Address {
			t.Errorf("row %d address = %s, want %s", i, row.Address, infos[i].Address)
		}
	}
}

// TestViewFromAccountMapsEachBucket checks that every account bucket
// lands in the matching WalletView field, under the requested alias.
func TestViewFromAccountMapsEachBucket(t *testing.T) {
	account := wallet.NewAccount("mzPublicAddress", "")
	account.Balance = 1.5
	account.PendingBalance = 0.25
	account.Sending = []wallet.TxnInfo{sampleTxnInfo(t, wallet.Sending, 0.1)}
	account.Sent = []wallet.TxnInfo{sampleTxnInfo(t, wallet.Sent, 0.2)}
	account.Receiving = []wallet.TxnInfo{sampleTxnInfo(t, wallet.Receiving, 0.3)}
	account.SavedReceived = []wallet.TxnInfo{sampleTxnInfo(t, wallet.Received, 0.4)}

	view := viewFromAccount("primary", account)

	if view.Alias != "primary" {
		t.Errorf("alias = %s, want primary", view.Alias)
	}
	if view.PublicAddress != account.PublicAddress {
		t.Errorf("public address = %s, want %s", view.PublicAddress, account.PublicAddress)
	}
	if view.Balance != 1.5 || view.PendingBalance != 0.25 {
		t.Errorf("balances = %v/%v, want 1.5/0.25", view.Balance, view.PendingBalance)
	}
	if len(view.Sending) != 1 || len(view.Sent) != 1 || len(view.Receiving) != 1 || len(view.Received) != 1 {
		t.Fatalf("expected one row in each bucket, got sending=%d sent=%d receiving=%d received=%d",
			len(view.Sending), len(view.Sent), len(view.Receiving), len(view.Received))
	}
}
