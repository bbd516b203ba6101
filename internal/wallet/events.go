package wallet

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/camilofabregas/bitcoin-node/internal/block"
	"github.com/camilofabregas/bitcoin-node/internal/encoding"
	"github.com/camilofabregas/bitcoin-node/internal/logx"
	"github.com/camilofabregas/bitcoin-node/internal/script"
	"github.com/camilofabregas/bitcoin-node/internal/transactions"
	"github.com/camilofabregas/bitcoin-node/internal/utxo"
	"github.com/decred/slog"
)

// Notifier is implemented by whatever surface presents wallet state to
// the outside world. It is kept free of any transport so this package
// never imports it.
type Notifier interface {
	WalletsLoaded(aliases []string)
	AccountUpdated(alias string, account *Account)
	TransactionFailed(alias string, err error)
}

// Broadcaster sends a signed transaction out to the network.
type Broadcaster func(tx *transactions.Transaction) error

// EventKind identifies the shape of an incoming Event.
type EventKind int

const (
	AddWallet EventKind = iota
	SelectWallet
	SendTransaction
	ReceiveBlock
	ReceiveTxn
	Close
)

// Event is one request dropped onto a Loop's channel. Only the fields
// relevant to Kind are populated.
type Event struct {
	Kind EventKind

	Alias          string
	PublicAddress  string
	PrivateAddress string

	ReceiverAddress string
	AmountBTC       float64
	FeeBTC          float64
	Label           string

	Block   *block.FullBlock
	Txn     *transactions.Transaction
	TxidHex string
}

// Loop is the wallet's single-threaded event dispatcher: every mutation
// to wallet state funnels through its channel, so Wallet and Account
// never need their own locking.
type Loop struct {
	wallet    *Wallet
	utxos     *utxo.Set
	notify    Notifier
	broadcast Broadcaster
	events    chan Event
	logger    slog.Logger
}

func NewLoop(w *Wallet, utxos *utxo.Set, notify Notifier, broadcast Broadcaster) *Loop {
	return &Loop{
		wallet:    w,
		utxos:     utxos,
		notify:    notify,
		broadcast: broadcast,
		events:    make(chan Event, 64),
		logger:    logx.For(logx.WALLET),
	}
}

func (l *Loop) Send(e Event) {
	l.events <- e
}

// Run consumes events until a Close event arrives or the channel is
// closed by the sender. It loads whatever wallet file already exists
// on disk before entering the loop.
func (l *Loop) Run() {
	if err := l.wallet.Load(l.utxos); err != nil {
		l.logger.Errorf("loading wallet at startup: %v", err)
	} else if len(l.wallet.Accounts) > 0 {
		l.notify.WalletsLoaded(l.aliases())
	}

	for e := range l.events {
		if e.Kind == Close {
			return
		}
		l.dispatch(e)
	}
}

func (l *Loop) aliases() []string {
	aliases := make([]string, 0, len(l.wallet.Accounts))
	for alias := range l.wallet.Accounts {
		aliases = append(aliases, alias)
	}
	return aliases
}

func (l *Loop) dispatch(e Event) {
	switch e.Kind {
	case AddWallet:
		l.handleAddWallet(e)
	case SelectWallet:
		l.handleSelectWallet(e)
	case SendTransaction:
		l.handleSendTransaction(e)
	case ReceiveBlock:
		l.handleReceiveBlock(e)
	case ReceiveTxn:
		l.handleReceiveTxn(e)
	}
}

func (l *Loop) handleAddWallet(e Event) {
	if _, exists := l.wallet.Accounts[e.Alias]; exists {
		l.logger.Warnf("alias %s already registered", e.Alias)
		return
	}
	if err := validateKeyPair(e.PublicAddress, e.PrivateAddress); err != nil {
		l.logger.Errorf("rejecting wallet %s: %v", e.Alias, err)
		return
	}
	if err := l.wallet.AddAccount(e.Alias, e.PublicAddress, e.PrivateAddress, l.utxos); err != nil {
		l.logger.Errorf("adding account %s: %v", e.Alias, err)
		return
	}
	if err := l.wallet.Save(); err != nil {
		l.logger.Errorf("saving wallet: %v", err)
	}
	l.notify.AccountUpdated(e.Alias, l.wallet.Accounts[e.Alias])
}

func (l *Loop) handleSelectWallet(e Event) {
	account, ok := l.wallet.Accounts[e.Alias]
	if !ok {
		l.logger.Warnf("unknown alias %s", e.Alias)
		return
	}
	if err := account.RefreshBalance(l.utxos); err != nil {
		l.logger.Errorf("refreshing balance for %s: %v", e.Alias, err)
	}
	account.UpdatePendingBalance()
	l.notify.AccountUpdated(e.Alias, account)
}

func (l *Loop) handleSendTransaction(e Event) {
	sender, ok := l.wallet.Accounts[e.Alias]
	if !ok {
		l.logger.Warnf("unknown alias %s", e.Alias)
		return
	}

	amountSat := btcToSatoshis(e.AmountBTC)
	feeSat := btcToSatoshis(e.FeeBTC)

	tx, err := BuildTransaction(sender, e.ReceiverAddress, amountSat, feeSat, l.utxos)
	if err != nil {
		l.logger.Errorf("building transaction for %s: %v", e.Alias, err)
		l.notify.TransactionFailed(e.Alias, err)
		return
	}
	if err := l.broadcast(tx); err != nil {
		l.logger.Errorf("broadcasting transaction: %v", err)
		l.notify.TransactionFailed(e.Alias, err)
		return
	}

	label := strings.ReplaceAll(e.Label, " ", "_")

	info := NewTxnInfo(*tx, Sending, label, e.AmountBTC, e.ReceiverAddress, "-")
	sender.Sending = append(sender.Sending, info)
	sender.UpdatePendingBalance()

	// self-transfer: the receiver might be another account of this
	// same wallet, in which case it also gets a pending Receiving entry.
	for alias, account := range l.wallet.Accounts {
		if alias == e.Alias || account.PublicAddress != e.ReceiverAddress {
			continue
		}
		recvInfo := NewTxnInfo(*tx, Receiving, label, e.AmountBTC, sender.PublicAddress, "-")
		account.Receiving = append(account.Receiving, recvInfo)
		l.notify.AccountUpdated(alias, account)
	}

	if err := l.wallet.Save(); err != nil {
		l.logger.Errorf("saving wallet: %v", err)
	}
	l.notify.AccountUpdated(e.Alias, sender)
}

// handleReceiveTxn checks a newly-seen mempool transaction against every
// account's pubkey hash. A match is recorded as a pending Receiving
// entry, labelled "Change" when the counter-party is the account itself.
func (l *Loop) handleReceiveTxn(e Event) {
	if e.Txn == nil {
		return
	}
	senderAddress := addressFromScriptSig(e.Txn)

	matched := false
	for alias, account := range l.wallet.Accounts {
		pkHash, err := account.PubKeyHash()
		if err != nil {
			continue
		}
		for _, out := range e.Txn.Outputs {
			outHash, ok := out.ScriptPubKey.IsP2pkh()
			if !ok || !bytes.Equal(outHash, pkHash) {
				continue
			}
			matched = true
			label := "-"
			address := senderAddress
			if address == account.PublicAddress {
				label = "Change"
			}
			info := NewTxnInfo(*e.Txn, Receiving, label, satoshisToBTC(out.Amount), address, "-")
			account.Receiving = append(account.Receiving, info)
			l.notify.AccountUpdated(alias, account)
		}
	}
	if matched {
		if err := l.wallet.Save(); err != nil {
			l.logger.Errorf("saving wallet: %v", err)
		}
	}
}

// handleReceiveBlock refreshes every account against the now-updated
// UTXO set and moves any matching pending entries to their confirmed
// buckets.
func (l *Loop) handleReceiveBlock(e Event) {
	if e.Block == nil || e.Block.BlockHeader == nil {
		return
	}
	hash, err := e.Block.BlockHeader.Hash()
	if err != nil {
		l.logger.Errorf("hashing block header: %v", err)
		return
	}
	blockHash := fmt.Sprintf("%x", hash)

	matched := false
	for alias, account := range l.wallet.Accounts {
		if err := account.RefreshBalance(l.utxos); err != nil {
			l.logger.Errorf("refreshing balance for %s: %v", alias, err)
		}
		for _, tx := range e.Block.Txs {
			id, err := tx.Id()
			if err != nil {
				continue
			}
			before := len(account.Sending) + len(account.Receiving)
			account.UpdateSendingTxn(id, blockHash)
			account.UpdateReceivingTxn(id)
			if len(account.Sending)+len(account.Receiving) != before {
				matched = true
			}
		}
		account.UpdatePendingBalance()
		l.notify.AccountUpdated(alias, account)
	}
	if matched {
		if err := l.wallet.Save(); err != nil {
			l.logger.Errorf("saving wallet: %v", err)
		}
	}
}

// addressFromScriptSig recovers a display address for the party who
// signed this transaction's first input, by recomputing HASH160 over
// the embedded SEC public key. Returns "-" if the script doesn't carry
// the expected two-command shape.
func addressFromScriptSig(tx *transactions.Transaction) string {
	if len(tx.Inputs) == 0 {
		return "-"
	}
	cmds := tx.Inputs[0].ScriptSig.CommandStack
	if len(cmds) != 2 || !cmds[1].IsData {
		return "-"
	}
	pubKeyHash := encoding.Hash160(cmds[1].Data)
	return script.P2pkhAddress(pubKeyHash, true)
}

// validateKeyPair does format-only validation, mirroring the original
// wallet's behaviour: it checks the public address decodes as a valid
// Base58Check string and, if a private key is given, that it parses.
// It does not verify the two actually form a matching pair.
func validateKeyPair(publicAddress, privateAddress string) error {
	if _, err := encoding.DecodeBase58(publicAddress); err != nil {
		return fmt.Errorf("invalid public address: %w", err)
	}
	if privateAddress == "" {
		return nil
	}
	account := NewAccount(publicAddress, privateAddress)
	if _, err := account.PrivateKey(); err != nil {
		return fmt.Errorf("invalid private key: %w", err)
	}
	return nil
}
