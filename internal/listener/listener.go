// Package listener owns the primary upstream peer's receive side: it
// watches for inv announcements, fetches whatever they advertise, runs
// post-IBD validation on blocks, and feeds both blocks and transactions
// into the wallet's event loop.
package listener

import (
	"bytes"
	"time"

	"github.com/camilofabregas/bitcoin-node/internal/block"
	"github.com/camilofabregas/bitcoin-node/internal/logx"
	"github.com/camilofabregas/bitcoin-node/internal/nodeerr"
	"github.com/camilofabregas/bitcoin-node/internal/store"
	"github.com/camilofabregas/bitcoin-node/internal/transactions"
	"github.com/camilofabregas/bitcoin-node/internal/utxo"
	"github.com/camilofabregas/bitcoin-node/internal/validate"
	"github.com/camilofabregas/bitcoin-node/internal/wallet"
	"github.com/camilofabregas/bitcoin-node/internal/wire"
	"github.com/decred/slog"
)

const fetchTimeout = 30 * time.Second

// RecentTxSink is satisfied by the server's bounded FIFO buffer; kept as
// an interface here so this package never needs to import server and
// create a dependency cycle back the other way.
type RecentTxSink interface {
	Add(hash [32]byte, raw []byte)
}

// Listener is the dedicated consumer of inv messages on the primary
// upstream connection.
type Listener struct {
	peer       *wire.SimpleNode
	headers    *store.HeaderStore
	blocks     *store.BlockStore
	utxos      *utxo.Set
	wallet     *wallet.Loop
	serverMode bool
	recentTx   RecentTxSink
	broadcast  chan<- wire.InvMessage
	logger     slog.Logger
}

func New(peer *wire.SimpleNode, headers *store.HeaderStore, blocks *store.BlockStore, utxos *utxo.Set, walletLoop *wallet.Loop, serverMode bool, recentTx RecentTxSink, broadcast chan<- wire.InvMessage) *Listener {
	return &Listener{
		peer:       peer,
		headers:    headers,
		blocks:     blocks,
		utxos:      utxos,
		wallet:     walletLoop,
		serverMode: serverMode,
		recentTx:   recentTx,
		broadcast:  broadcast,
		logger:     logx.For(logx.LISTENER),
	}
}

// Run blocks forever (until the peer connection closes), reading the
// next inv and dispatching each of its entries by type.
func (l *Listener) Run() {
	for {
		env, err := l.peer.ReceiveAny([]string{"inv"}, 0)
		if err != nil {
			l.logger.Errorf("receiving inv: %v", err)
			return
		}
		inv, err := wire.ParseInvMessage("inv", bytes.NewReader(env.Payload))
		if err != nil {
			l.logger.Errorf("parsing inv: %v", err)
			continue
		}
		for _, item := range inv.Items {
			switch item.Type {
			case wire.DATA_TYPE_BLOCK:
				l.handleBlockInv(item)
			case wire.DATA_TYPE_TX:
				l.handleTxInv(item)
			default:
				// unknown inventory types are ignored
			}
		}
		if l.serverMode && l.broadcast != nil {
			select {
			case l.broadcast <- inv:
			default:
				l.logger.Warnf("dropping inv forward to server, broadcast channel full")
			}
		}
	}
}

// handleBlockInv fetches the advertised block, validates it, and on
// success persists the header and raw block, updates the UTXO set, and
// hands the block to the wallet loop. Validation failures drop the
// block silently (besides a log line); IBD-path blocks never reach this
// code, only ones observed after the node is caught up.
func (l *Listener) handleBlockInv(item wire.InvVector) {
	getData := wire.NewGetDataMessage()
	getData.AddData(wire.DATA_TYPE_BLOCK, item.Hash)
	if err := l.peer.Send(&getData); err != nil {
		l.logger.Errorf("requesting block %x: %v", item.Hash, err)
		return
	}

	env, err := l.peer.ReceiveAny([]string{"block", "notfound"}, fetchTimeout)
	if err != nil {
		l.logger.Errorf("awaiting block %x: %v", item.Hash, err)
		return
	}
	if env.Command == "notfound" {
		l.logger.Warnf("%v for block %x", nodeerr.ErrPeerDoesNotHaveBlock, item.Hash)
		return
	}

	full, err := block.ParseFullBlock(bytes.NewReader(env.Payload))
	if err != nil {
		l.logger.Errorf("parsing block %x: %v", item.Hash, err)
		return
	}

	if !full.BlockHeader.CheckProofOfWork() {
		l.logger.Warnf("dropping block %x: failed proof of work", item.Hash)
		return
	}
	if !validate.BlockPoI(full) {
		l.logger.Warnf("dropping block %x: merkle root mismatch", item.Hash)
		return
	}

	if err := l.headers.Append(*full.BlockHeader); err != nil {
		l.logger.Errorf("appending header for block %x: %v", item.Hash, err)
		return
	}
	if err := l.blocks.Put(item.Hash, env.Payload); err != nil {
		l.logger.Errorf("persisting block %x: %v", item.Hash, err)
		return
	}
	if _, _, _, err := l.utxos.Apply(full); err != nil {
		l.logger.Errorf("updating UTXO set for block %x: %v", item.Hash, err)
	}

	l.wallet.Send(wallet.Event{Kind: wallet.ReceiveBlock, Block: full})
	l.logger.Infof("accepted block %x", item.Hash)
}

// handleTxInv fetches an announced transaction. If server mode is
// enabled it's cached for downstream getdata requests; either way it's
// forwarded to the wallet loop so accounts can pick up a pending
// receive.
func (l *Listener) handleTxInv(item wire.InvVector) {
	getData := wire.NewGetDataMessage()
	getData.AddData(wire.DATA_TYPE_TX, item.Hash)
	if err := l.peer.Send(&getData); err != nil {
		l.logger.Errorf("requesting tx %x: %v", item.Hash, err)
		return
	}

	env, err := l.peer.ReceiveAny([]string{"tx", "notfound"}, fetchTimeout)
	if err != nil {
		l.logger.Errorf("awaiting tx %x: %v", item.Hash, err)
		return
	}
	if env.Command == "notfound" {
		l.logger.Warnf("%v for tx %x", nodeerr.ErrPeerDoesNotHaveTx, item.Hash)
		return
	}

	tx, err := transactions.ParseTransaction(bytes.NewReader(env.Payload))
	if err != nil {
		l.logger.Errorf("parsing tx %x: %v", item.Hash, err)
		return
	}
	txid, err := tx.Id()
	if err != nil {
		l.logger.Errorf("hashing tx %x: %v", item.Hash, err)
		return
	}

	if l.serverMode && l.recentTx != nil {
		l.recentTx.Add(item.Hash, env.Payload)
	}

	l.wallet.Send(wallet.Event{Kind: wallet.ReceiveTxn, Txn: &tx, TxidHex: txid})
}
