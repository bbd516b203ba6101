package store

import (
	"bytes"
	"fmt"

	"github.com/camilofabregas/bitcoin-node/internal/block"
	"github.com/syndtr/goleveldb/leveldb"
)

func newByteReader(b []byte) *bytes.Reader {
	return bytes.NewReader(b)
}

// BlockStore persists raw full blocks (header + transactions) keyed by
// block hash, serving both IBD workers writing blocks down and the
// server's getdata responder reading them back.
type BlockStore struct {
	db *leveldb.DB
}

func OpenBlockStore(path string) (*BlockStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("opening block store: %w", err)
	}
	return &BlockStore{db: db}, nil
}

// Put stores the raw wire-encoded bytes of a full block under its hash.
// Callers serialize the FullBlock themselves so this package stays
// agnostic of the exact wire framing used upstream.
func (bs *BlockStore) Put(hash [32]byte, raw []byte) error {
	if err := bs.db.Put(hash[:], raw, nil); err != nil {
		return fmt.Errorf("persisting block %x: %w", hash, err)
	}
	return nil
}

// Get returns the raw bytes previously stored for hash, or
// leveldb.ErrNotFound if no block was ever stored under it.
func (bs *BlockStore) Get(hash [32]byte) ([]byte, error) {
	raw, err := bs.db.Get(hash[:], nil)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func (bs *BlockStore) Has(hash [32]byte) (bool, error) {
	return bs.db.Has(hash[:], nil)
}

// GetFullBlock reads and parses the stored block directly, for callers
// that want the decoded header and transactions rather than raw bytes.
func (bs *BlockStore) GetFullBlock(hash [32]byte) (*block.FullBlock, error) {
	raw, err := bs.Get(hash)
	if err != nil {
		return nil, err
	}
	return block.ParseFullBlock(newByteReader(raw))
}

func (bs *BlockStore) Close() error {
	return bs.db.Close()
}

// IsNotFound reports whether err is leveldb's not-found sentinel, so
// callers can translate it into the node's own not-found error kind
// without importing leveldb directly.
func IsNotFound(err error) bool {
	return err == leveldb.ErrNotFound
}
