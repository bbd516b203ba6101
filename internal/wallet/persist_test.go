package wallet

import (
	"path/filepath"
	"testing"

	"github.com/camilofabregas/bitcoin-node/internal/script"
	"github.com/camilofabregas/bitcoin-node/internal/transactions"
	"github.com/camilofabregas/bitcoin-node/internal/utxo"
)

// TestSaveLoadRoundTrip writes a wallet with a Receiving entry carrying
// the default "-" label and a Sending entry carrying a user label with
// spaces, then reloads it and checks every account and entry survives -
// the wallet file is whitespace-delimited, so either an empty label or
// an unsanitized space would have shifted the field count and broken
// Load on the very next line.
func TestSaveLoadRoundTrip(t *testing.T) {
	set := utxo.NewSet()
	path := filepath.Join(t.TempDir(), "wallets.txt")
	w := New(path)

	const alias = "main"
	const address = "mmEkhDcx6xt28zTXvvNjBjCCQCXUwrKXBi"
	if err := w.AddAccount(alias, address, "", set); err != nil {
		t.Fatal(err)
	}
	account := w.Accounts[alias]

	txn := transactions.NewTransaction(1, []transactions.TxIn{
		transactions.NewTxIn(make([]byte, 32), 0xffffffff, 0xffffffff),
	}, []transactions.TxOut{
		{Amount: 1000, ScriptPubKey: script.P2pkhScript(make([]byte, 20))},
	}, 0, true)

	account.Receiving = append(account.Receiving, NewTxnInfo(txn, Receiving, "-", 0.00001, "mremfsNt32NAqPodczJQcY9sfKbcFk33ge", "-"))
	// handleSendTransaction sanitizes user labels (space -> underscore)
	// before constructing the TxnInfo, precisely so a label like this
	// survives the whitespace-delimited wallet file format intact.
	account.Sending = append(account.Sending, NewTxnInfo(txn, Sending, "rent_money", 0.01, "mremfsNt32NAqPodczJQcY9sfKbcFk33ge", "-"))

	if err := w.Save(); err != nil {
		t.Fatal(err)
	}

	loaded := New(path)
	if err := loaded.Load(set); err != nil {
		t.Fatal(err)
	}

	loadedAccount, ok := loaded.Accounts[alias]
	if !ok {
		t.Fatalf("account %s lost across reload", alias)
	}
	if len(loadedAccount.Receiving) != 1 {
		t.Fatalf("expected 1 receiving entry, got %d", len(loadedAccount.Receiving))
	}
	if got := loadedAccount.Receiving[0].Label; got != "-" {
		t.Errorf("receiving label = %q, want %q", got, "-")
	}
	if len(loadedAccount.Sending) != 1 {
		t.Fatalf("expected 1 sending entry, got %d", len(loadedAccount.Sending))
	}
	if got := loadedAccount.Sending[0].Label; got != "rent_money" {
		t.Errorf("sending label = %q, want %q", got, "rent_money")
	}
}
