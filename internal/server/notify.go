// Package server implements the node's inbound peer-facing side: it
// answers getheaders/getdata requests from other peers and rebroadcasts
// inventory as new blocks and transactions arrive.
package server

import (
	"sync"

	"github.com/camilofabregas/bitcoin-node/internal/logx"
	"github.com/camilofabregas/bitcoin-node/internal/wire"
)

// client is a single connected inbound peer, addressed by its remote
// endpoint so the registry never needs a back-pointer into the
// connection it's tracking.
type client struct {
	addr string
	peer *wire.SimpleNode
}

// ClientRegistry tracks every currently-handshaked inbound peer so the
// notifier goroutine can fan inventory out to all of them without
// reaching back into the accept loop.
type ClientRegistry struct {
	mu      sync.Mutex
	clients map[string]*client
}

func NewClientRegistry() *ClientRegistry {
	return &ClientRegistry{clients: make(map[string]*client)}
}

func (r *ClientRegistry) Register(addr string, peer *wire.SimpleNode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[addr] = &client{addr: addr, peer: peer}
}

func (r *ClientRegistry) Remove(addr string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, addr)
}

// Snapshot returns the registered clients at this instant. The notifier
// iterates a snapshot rather than the live map so a write failure mid-
// broadcast can be handled after the loop, not during it.
func (r *ClientRegistry) Snapshot() []*client {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*client, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, c)
	}
	return out
}

// runNotifier drains invBroadcast for as long as the channel is open,
// pushing every inv message to every registered client. Clients that
// fail to accept a write are collected during the pass and evicted once
// it completes.
func (s *Server) runNotifier(invBroadcast <-chan wire.InvMessage) {
	logger := logx.For(logx.SERVER)
	for inv := range invBroadcast {
		clients := s.registry.Snapshot()
		var dead []string
		for _, c := range clients {
			if err := c.peer.Send(&inv); err != nil {
				logger.Warnf("dropping client %s: %v", c.addr, err)
				dead = append(dead, c.addr)
			}
		}
		for _, addr := range dead {
			s.registry.Remove(addr)
		}
	}
}

// RecentTxBuffer is a bounded FIFO of recently-seen transactions, kept
// so the server can answer a getdata for a transaction that arrived
// over inv but was never written to durable storage. Keyed by the raw
// 32-byte hash exactly as it appears on the wire, so lookups from an
// incoming getdata never need a byte-order conversion.
type RecentTxBuffer struct {
	mu       sync.Mutex
	capacity int
	order    [][32]byte
	items    map[[32]byte][]byte
}

func NewRecentTxBuffer(capacity int) *RecentTxBuffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &RecentTxBuffer{
		capacity: capacity,
		items:    make(map[[32]byte][]byte),
	}
}

// Add stores raw under hash, evicting the oldest entry once capacity is
// exceeded.
func (b *RecentTxBuffer) Add(hash [32]byte, raw []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.items[hash]; exists {
		return
	}
	if len(b.order) >= b.capacity {
		oldest := b.order[0]
		b.order = b.order[1:]
		delete(b.items, oldest)
	}
	b.order = append(b.order, hash)
	b.items[hash] = raw
}

func (b *RecentTxBuffer) Find(hash [32]byte) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	raw, ok := b.items[hash]
	return raw, ok
}
