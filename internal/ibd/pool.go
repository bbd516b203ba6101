// Package ibd drives headers-first initial block download: page headers
// from the primary upstream peer, then fan the date-filtered block
// window out to a pool of worker peers that fetch and persist the raw
// blocks without validating them.
package ibd

import (
	"fmt"
	"sync"
	"time"

	"github.com/camilofabregas/bitcoin-node/internal/config"
	"github.com/camilofabregas/bitcoin-node/internal/logx"
	"github.com/camilofabregas/bitcoin-node/internal/nodeerr"
	"github.com/camilofabregas/bitcoin-node/internal/store"
	"github.com/camilofabregas/bitcoin-node/internal/wire"
	"github.com/decred/slog"
)

// headersPerPage is the wire protocol's page size: a getheaders response
// shorter than this marks the end of the chain.
const headersPerPage = 2000

const blockFetchTimeout = 30 * time.Second

// workItem is one header queued for block download.
type workItem struct {
	height int
	hash   [32]byte
}

// Run performs the full IBD sequence against an already-handshaked
// primary peer: page getheaders/headers to the tip, then download every
// block inside the configured date window using a worker pool.
func Run(primary *wire.SimpleNode, cfg config.Config, headers *store.HeaderStore, blocks *store.BlockStore) error {
	logger := logx.For(logx.IBD)

	if err := pageHeaders(primary, cfg, headers, logger); err != nil {
		return err
	}

	window, err := selectWindow(headers, blocks, cfg)
	if err != nil {
		return err
	}
	if len(window) == 0 {
		logger.Info("no blocks fall inside the download window")
		return nil
	}
	logger.Infof("downloading %d blocks with %d workers", len(window), cfg.WorkerCount)

	return downloadBlocks(cfg, blocks, window)
}

// pageHeaders repeatedly sends getheaders using the current tip as the
// sole locator, appending every returned header, until a page comes back
// shorter than a full 2000-header page.
func pageHeaders(primary *wire.SimpleNode, cfg config.Config, headers *store.HeaderStore, logger slog.Logger) error {
	for {
		tip, height, ok := headers.Tip()
		var locator [32]byte
		if ok {
			hash, err := tip.Hash()
			if err != nil {
				return err
			}
			copy(locator[:], hash)
		}

		resp, err := primary.RequestHeaders(cfg.Version, [][32]byte{locator}, [32]byte{})
		if err != nil {
			return fmt.Errorf("getheaders round-trip at height %d: %w", height, err)
		}

		for _, h := range resp.Blocks {
			if err := headers.Append(h); err != nil {
				return err
			}
		}
		logger.Infof("received %d headers, chain height now %d", len(resp.Blocks), headers.Len()-1)

		if len(resp.Blocks) != headersPerPage {
			return nil
		}
	}
}

// selectWindow walks every known header and keeps the ones that fall at
// or after the configured date cutoff and are not already sitting in the
// block store from a previous run.
func selectWindow(headers *store.HeaderStore, blocks *store.BlockStore, cfg config.Config) ([]workItem, error) {
	total := headers.Len()
	window := make([]workItem, 0, total)
	for height := 0; height < total; height++ {
		h, ok := headers.At(height)
		if !ok {
			continue
		}
		if h.TimeStamp < cfg.InitialBlockTime {
			continue
		}
		hashBytes, err := h.Hash()
		if err != nil {
			return nil, err
		}
		var hash [32]byte
		copy(hash[:], hashBytes)

		if has, err := blocks.Has(hash); err == nil && has {
			continue
		}
		window = append(window, workItem{height: height, hash: hash})
	}
	return window, nil
}

// downloadBlocks connects and handshakes cfg.WorkerCount independent
// peers, each draining the same pre-loaded work queue until it is empty,
// mirroring a worker pool shut down by closing its input channel.
func downloadBlocks(cfg config.Config, blocks *store.BlockStore, window []workItem) error {
	if cfg.WorkerCount <= 0 {
		return nodeerr.ErrNoWorkers
	}
	logger := logx.For(logx.THREADPOOL)

	queue := make(chan workItem, len(window))
	for _, item := range window {
		queue <- item
	}
	close(queue)

	var wg sync.WaitGroup
	connected := 0
	for id := 0; id < cfg.WorkerCount; id++ {
		peer, err := wire.Dial(cfg.Address, wire.TESTNET_PORT, true, false)
		if err != nil {
			logger.Errorf("worker %d failed to connect: %v", id, err)
			continue
		}
		if err := peer.Handshake(); err != nil {
			logger.Errorf("worker %d failed handshake: %v", id, err)
			peer.Close()
			continue
		}
		logger.Infof("worker %d connected and ready to download blocks", id)
		connected++

		wg.Add(1)
		go func(id int, peer *wire.SimpleNode) {
			defer wg.Done()
			defer peer.Close()
			runWorker(id, peer, blocks, queue, logger)
		}(id, peer)
	}
	if connected == 0 {
		return nodeerr.ErrNoConnections
	}

	wg.Wait()
	return nil
}

func runWorker(id int, peer *wire.SimpleNode, blocks *store.BlockStore, queue <-chan workItem, logger slog.Logger) {
	for item := range queue {
		if err := fetchBlock(peer, blocks, item); err != nil {
			logger.Warnf("worker %d: %v", id, err)
		}
	}
	logger.Infof("worker %d drained the queue; shutting down", id)
}

// fetchBlock requests a single block by its header hash and persists the
// raw wire payload verbatim. A notfound reply is logged and treated as
// non-fatal - the block is simply unavailable from this peer. IBD-path
// blocks are never validated; only the listener's post-IBD path runs
// PoW/PoI checks.
func fetchBlock(peer *wire.SimpleNode, blocks *store.BlockStore, item workItem) error {
	getData := wire.NewGetDataMessage()
	getData.AddData(wire.DATA_TYPE_BLOCK, item.hash)
	if err := peer.Send(&getData); err != nil {
		return fmt.Errorf("height %d: requesting block: %w", item.height, err)
	}

	env, err := peer.ReceiveAny([]string{"block", "notfound"}, blockFetchTimeout)
	if err != nil {
		return fmt.Errorf("height %d: %w", item.height, err)
	}
	if env.Command == "notfound" {
		return fmt.Errorf("height %d: %w", item.height, nodeerr.ErrPeerDoesNotHaveBlock)
	}

	if err := blocks.Put(item.hash, env.Payload); err != nil {
		return fmt.Errorf("height %d: %w", item.height, err)
	}
	return nil
}
