// Package events carries the node's two typed event streams to anything
// outside the core: the GUI-facing stream (sync progress, block/wallet
// views) and the wallet's own internal event shape, re-exported here so
// a transport layer can sit between a user action and wallet.Loop
// without wallet importing anything about how that action arrived.
package events

import "github.com/camilofabregas/bitcoin-node/internal/wallet"

// GuiEventKind identifies the shape of a GuiEvent, mirroring the node's
// closed set of GUI-facing notifications.
type GuiEventKind int

const (
	UpdateStatusLabel GuiEventKind = iota
	HideStatus
	LoadBlocks
	UpdateWallet
	InitWallets
)

// HeaderRow is one row of the blocks view: height, hash, and a
// human-formatted timestamp.
type HeaderRow struct {
	Height int    `json:"height"`
	Hash   string `json:"hash"`
	Time   string `json:"time"`
}

// TxnRow is a transaction-history entry as rendered for display.
type TxnRow struct {
	Txid    string  `json:"txid"`
	Type    string  `json:"type"`
	Label   string  `json:"label"`
	Amount  float64 `json:"amount"`
	Address string  `json:"address"`
	Block   string  `json:"block"`
}

// WalletView is the account snapshot pushed on every UpdateWallet event.
type WalletView struct {
	Alias          string   `json:"alias"`
	PublicAddress  string   `json:"publicAddress"`
	Balance        float64  `json:"balance"`
	PendingBalance float64  `json:"pendingBalance"`
	Sending        []TxnRow `json:"sending"`
	Sent           []TxnRow `json:"sent"`
	Receiving      []TxnRow `json:"receiving"`
	Received       []TxnRow `json:"received"`
}

// GuiEvent is one notification pushed to every connected GUI client.
// Only the fields relevant to Kind are populated.
type GuiEvent struct {
	Kind GuiEventKind `json:"kind"`

	Text       string      `json:"text,omitempty"`
	Headers    []HeaderRow `json:"headers,omitempty"`
	BaseHeight int         `json:"baseHeight,omitempty"`
	Account    *WalletView `json:"account,omitempty"`
	Aliases    []string    `json:"aliases,omitempty"`
}

func rowsFrom(infos []wallet.TxnInfo) []TxnRow {
	rows := make([]TxnRow, 0, len(infos))
	for _, info := range infos {
		txid, _ := info.Txn.Id()
		rows = append(rows, TxnRow{
			Txid:    txid,
			Type:    info.Type.String(),
			Label:   info.Label,
			Amount:  info.Amount,
			Address: info.Address,
			Block:   info.Block,
		})
	}
	return rows
}

// viewFromAccount flattens a wallet.Account into its JSON-safe view.
func viewFromAccount(alias string, account *wallet.Account) *WalletView {
	return &WalletView{
		Alias:          alias,
		PublicAddress:  account.PublicAddress,
		Balance:        account.Balance,
		PendingBalance: account.PendingBalance,
		Sending:        rowsFrom(account.Sending),
		Sent:           rowsFrom(account.Sent),
		Receiving:      rowsFrom(account.Receiving),
		Received:       rowsFrom(account.SavedReceived),
	}
}
