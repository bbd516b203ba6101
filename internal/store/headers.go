// Package store persists the header chain and raw blocks to on-disk
// leveldb databases, replacing the original node's flat hex-line files.
package store

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/camilofabregas/bitcoin-node/internal/block"
	"github.com/syndtr/goleveldb/leveldb"
)

// HeaderStore keeps the full header chain in memory (for fast indexed
// access during getheaders responses and IBD paging) backed by a leveldb
// database keyed by height, so the chain survives restarts without
// re-downloading.
type HeaderStore struct {
	db *leveldb.DB

	mu        sync.RWMutex
	headers   []block.Block
	hashIndex map[[32]byte]int
}

func heightKey(height int) []byte {
	key := make([]byte, 4)
	binary.BigEndian.PutUint32(key, uint32(height))
	return key
}

// OpenHeaderStore opens (creating if needed) the header database at path,
// replays every stored header into memory in height order, and seeds the
// Testnet3 genesis block if the database was empty.
func OpenHeaderStore(path string) (*HeaderStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("opening header store: %w", err)
	}

	hs := &HeaderStore{
		db:        db,
		hashIndex: make(map[[32]byte]int),
	}

	iter := db.NewIterator(nil, nil)
	for iter.Next() {
		h, err := block.ParseBlock(newByteReader(iter.Value()))
		if err != nil {
			iter.Release()
			db.Close()
			return nil, fmt.Errorf("corrupt header at key %x: %w", iter.Key(), err)
		}
		hs.headers = append(hs.headers, h)
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		db.Close()
		return nil, err
	}

	if len(hs.headers) == 0 {
		genesis, err := block.ParseBlock(newByteReader(block.TESTNET_GENESIS_BLOCK))
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("parsing genesis header: %w", err)
		}
		if err := hs.appendLocked(genesis); err != nil {
			db.Close()
			return nil, err
		}
	} else {
		for i, h := range hs.headers {
			hash, err := h.Hash()
			if err != nil {
				db.Close()
				return nil, err
			}
			hs.hashIndex[[32]byte(hash)] = i
		}
	}

	return hs, nil
}

// Append adds a new header at the tip of the chain, persisting it and
// updating the in-memory hash->height index incrementally (not rebuilt
// from scratch on every call).
func (hs *HeaderStore) Append(h block.Block) error {
	hs.mu.Lock()
	defer hs.mu.Unlock()
	return hs.appendLocked(h)
}

func (hs *HeaderStore) appendLocked(h block.Block) error {
	height := len(hs.headers)
	raw, err := h.Serialize()
	if err != nil {
		return err
	}
	if err := hs.db.Put(heightKey(height), raw, nil); err != nil {
		return fmt.Errorf("persisting header at height %d: %w", height, err)
	}
	hash, err := h.Hash()
	if err != nil {
		return err
	}
	hs.headers = append(hs.headers, h)
	hs.hashIndex[[32]byte(hash)] = height
	return nil
}

func (hs *HeaderStore) Len() int {
	hs.mu.RLock()
	defer hs.mu.RUnlock()
	return len(hs.headers)
}

func (hs *HeaderStore) At(height int) (block.Block, bool) {
	hs.mu.RLock()
	defer hs.mu.RUnlock()
	if height < 0 || height >= len(hs.headers) {
		return block.Block{}, false
	}
	return hs.headers[height], true
}

func (hs *HeaderStore) HeightOf(hash [32]byte) (int, bool) {
	hs.mu.RLock()
	defer hs.mu.RUnlock()
	height, ok := hs.hashIndex[hash]
	return height, ok
}

func (hs *HeaderStore) Tip() (block.Block, int, bool) {
	hs.mu.RLock()
	defer hs.mu.RUnlock()
	if len(hs.headers) == 0 {
		return block.Block{}, 0, false
	}
	height := len(hs.headers) - 1
	return hs.headers[height], height, true
}

// Slice returns a copy of headers in [from, to) for block-locator or
// paging use, without exposing the internal slice to mutation.
func (hs *HeaderStore) Slice(from, to int) []block.Block {
	hs.mu.RLock()
	defer hs.mu.RUnlock()
	if from < 0 {
		from = 0
	}
	if to > len(hs.headers) {
		to = len(hs.headers)
	}
	if from >= to {
		return nil
	}
	out := make([]block.Block, to-from)
	copy(out, hs.headers[from:to])
	return out
}

func (hs *HeaderStore) Close() error {
	return hs.db.Close()
}
