// Package utxo tracks which transaction outputs are still unspent,
// built once from the locally stored block chain and kept current as
// new blocks arrive.
package utxo

import (
	"bytes"
	"sync"
	"time"

	"github.com/camilofabregas/bitcoin-node/internal/block"
	"github.com/camilofabregas/bitcoin-node/internal/logx"
	"github.com/camilofabregas/bitcoin-node/internal/nodeerr"
	"github.com/camilofabregas/bitcoin-node/internal/store"
	"github.com/camilofabregas/bitcoin-node/internal/transactions"
	"github.com/decred/slog"
)

// Key identifies an output by the txid that created it and its index
// within that transaction's output list.
type Key struct {
	Txid  [32]byte
	Index uint32
}

func keyFor(txid []byte, idx uint32) Key {
	var k Key
	copy(k.Txid[:], txid)
	k.Index = idx
	return k
}

func isCoinbaseRef(prevTx []byte, prevIdx uint32) bool {
	if prevIdx != 0xffffffff {
		return false
	}
	for _, b := range prevTx {
		if b != 0 {
			return false
		}
	}
	return true
}

// UnspentOutput pairs an output with the key it was stored under, for
// callers that need to reference it later (building a ScriptSig, or
// marking it spent once a transaction lands).
type UnspentOutput struct {
	Key Key
	Out *transactions.TxOut
}

// Set is the node's view of every currently unspent output. It is safe
// for concurrent use: the listener applies new blocks while the wallet
// reads balances and spendable outputs.
type Set struct {
	mu      sync.RWMutex
	entries map[Key]*transactions.TxOut
	logger  slog.Logger
}

func NewSet() *Set {
	return &Set{
		entries: make(map[Key]*transactions.TxOut),
		logger:  logx.For(logx.UTXO),
	}
}

// Lookup satisfies transactions.OutputLookup, letting SigHash/SignInput
// resolve a spent output's amount and ScriptPubKey without any network
// round trip.
func (s *Set) Lookup(prevTxid []byte, prevIdx uint32) (*transactions.TxOut, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out, ok := s.entries[keyFor(prevTxid, prevIdx)]
	if !ok {
		return nil, nodeerr.ErrNotFound
	}
	return out, nil
}

// Scan performs the initial two-pass build of the UTXO set from every
// block the header store knows about: pass one collects every output
// reference any input ever spends, pass two walks the blocks again and
// an output only becomes a tracked UTXO if nothing in pass one claimed
// it. Blocks not yet present in the block store (still being fetched by
// IBD) are skipped rather than treated as an error.
func (s *Set) Scan(headers *store.HeaderStore, blocks *store.BlockStore) error {
	started := time.Now()
	s.logger.Info("starting UTXO scan")

	total := headers.Len()

	pending := make(map[Key]struct{})
	for height := 0; height < total; height++ {
		full, ok, err := loadBlock(headers, blocks, height)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		for _, tx := range full.Txs {
			for _, in := range tx.Inputs {
				if isCoinbaseRef(in.PrevTx, in.PrevIdx) {
					continue
				}
				pending[keyFor(in.PrevTx, in.PrevIdx)] = struct{}{}
			}
		}
	}

	utxos := make(map[Key]*transactions.TxOut)
	for height := 0; height < total; height++ {
		full, ok, err := loadBlock(headers, blocks, height)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		for _, tx := range full.Txs {
			txidBytes, err := tx.Hash()
			if err != nil {
				return err
			}
			var txid [32]byte
			copy(txid[:], txidBytes)

			for idx := range tx.Outputs {
				key := Key{Txid: txid, Index: uint32(idx)}
				if _, spent := pending[key]; spent {
					delete(pending, key)
					continue
				}
				out := tx.Outputs[idx]
				utxos[key] = &out
			}
		}
	}

	s.mu.Lock()
	s.entries = utxos
	s.mu.Unlock()

	s.logger.Infof("UTXO count: %d", len(utxos))
	if len(pending) > 0 {
		s.logger.Warnf("%d inputs never matched an output, expected for outputs spent before the node's starting block height", len(pending))
	}
	s.logger.Infof("UTXO scan took %s", time.Since(started))
	return nil
}

func loadBlock(headers *store.HeaderStore, blocks *store.BlockStore, height int) (*block.FullBlock, bool, error) {
	hdr, ok := headers.At(height)
	if !ok {
		return nil, false, nil
	}
	hash, err := hdr.Hash()
	if err != nil {
		return nil, false, err
	}
	var h [32]byte
	copy(h[:], hash)

	full, err := blocks.GetFullBlock(h)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return full, true, nil
}

// Apply updates the set for a single newly-validated block without
// rescanning anything already known, the incremental path used once the
// node is caught up and the listener starts handing it fresh blocks.
// New outputs are recorded before inputs are matched against them, so a
// transaction spending another output created earlier in the same block
// is still recognised as spent.
func (s *Set) Apply(full *block.FullBlock) (newOutputs, spentOutputs, unmatchedInputs int, err error) {
	pending := make(map[Key]struct{})
	for _, tx := range full.Txs {
		for _, in := range tx.Inputs {
			if isCoinbaseRef(in.PrevTx, in.PrevIdx) {
				continue
			}
			pending[keyFor(in.PrevTx, in.PrevIdx)] = struct{}{}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, tx := range full.Txs {
		txidBytes, hashErr := tx.Hash()
		if hashErr != nil {
			err = hashErr
			return
		}
		var txid [32]byte
		copy(txid[:], txidBytes)

		for idx := range tx.Outputs {
			out := tx.Outputs[idx]
			s.entries[Key{Txid: txid, Index: uint32(idx)}] = &out
			newOutputs++
		}
	}

	for key := range pending {
		if _, ok := s.entries[key]; ok {
			delete(s.entries, key)
			spentOutputs++
		} else {
			unmatchedInputs++
		}
	}

	s.logger.Infof("%d new UTXOs, %d UTXOs spent", newOutputs, spentOutputs)
	if unmatchedInputs > 0 {
		s.logger.Warnf("%d inputs in the new block did not match a known UTXO", unmatchedInputs)
	}
	return
}

// Balance sums every unspent output recognised as paying to pubKeyHash.
func (s *Set) Balance(pubKeyHash []byte) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total uint64
	for _, out := range s.entries {
		if hash, ok := out.ScriptPubKey.IsP2pkh(); ok && bytes.Equal(hash, pubKeyHash) {
			total += out.Amount
		}
	}
	return total
}

// SpendableBy returns every unspent output paying to pubKeyHash, for the
// wallet's input selection when building a new transaction.
func (s *Set) SpendableBy(pubKeyHash []byte) []UnspentOutput {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []UnspentOutput
	for key, out := range s.entries {
		if hash, ok := out.ScriptPubKey.IsP2pkh(); ok && bytes.Equal(hash, pubKeyHash) {
			result = append(result, UnspentOutput{Key: key, Out: out})
		}
	}
	return result
}

// Len reports the current size of the UTXO set.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
