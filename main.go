// Command bitcoin-node runs a light (SPV-style) Bitcoin Testnet3 node:
// it synchronises headers and blocks from an upstream peer, tracks a
// locally derived UTXO set, serves downstream light clients, and hosts
// an in-process wallet reachable over a websocket event stream.
package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/camilofabregas/bitcoin-node/internal/config"
	"github.com/camilofabregas/bitcoin-node/internal/events"
	"github.com/camilofabregas/bitcoin-node/internal/ibd"
	"github.com/camilofabregas/bitcoin-node/internal/listener"
	"github.com/camilofabregas/bitcoin-node/internal/logx"
	"github.com/camilofabregas/bitcoin-node/internal/server"
	"github.com/camilofabregas/bitcoin-node/internal/store"
	"github.com/camilofabregas/bitcoin-node/internal/transactions"
	"github.com/camilofabregas/bitcoin-node/internal/utxo"
	"github.com/camilofabregas/bitcoin-node/internal/wallet"
	"github.com/camilofabregas/bitcoin-node/internal/wire"
)

const logMaxSizeBytes = 10 << 20 // 10 MiB per rotated log file
const guiAddress = "127.0.0.1:9009"

func main() {
	os.Exit(run())
}

func run() int {
	configPath, err := config.ParseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if err := logx.Init("bitcoin-node.log", logMaxSizeBytes, cfg.PrintLogger); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	logger := logx.For(logx.NETWORK)

	headers, err := store.OpenHeaderStore(cfg.HeadersPath)
	if err != nil {
		logger.Errorf("opening header store: %v", err)
		return 1
	}
	defer headers.Close()

	blocks, err := store.OpenBlockStore(cfg.BlocksPath)
	if err != nil {
		logger.Errorf("opening block store: %v", err)
		return 1
	}
	defer blocks.Close()

	hub := events.NewHub()
	go serveGUI(hub)

	primary, err := wire.Dial(cfg.Address, wire.TESTNET_PORT, true, cfg.PrintLogger)
	if err != nil {
		logger.Errorf("connecting to upstream peer %s: %v", cfg.Address, err)
		return 1
	}
	defer primary.Close()
	if err := primary.Handshake(); err != nil {
		logger.Errorf("handshake with %s: %v", cfg.Address, err)
		return 1
	}

	hub.UpdateStatusLabel("downloading headers")
	if err := ibd.Run(primary, cfg, headers, blocks); err != nil {
		logger.Errorf("initial block download: %v", err)
		return 1
	}
	hub.HideStatus()
	publishHeaders(hub, headers)

	utxos := utxo.NewSet()
	if err := utxos.Scan(headers, blocks); err != nil {
		logger.Errorf("scanning UTXO set: %v", err)
		return 1
	}

	w := wallet.New(cfg.WalletsPath)
	broadcast := func(tx *transactions.Transaction) error {
		raw, err := tx.Serialize()
		if err != nil {
			return err
		}
		msg := wire.NewGenericMessage("tx", raw)
		return primary.Send(&msg)
	}
	loop := wallet.NewLoop(w, utxos, hub, broadcast)

	invBroadcast := make(chan wire.InvMessage, 64)
	recentTx := server.NewRecentTxBuffer(cfg.MaxTxnMemory)
	l := listener.New(primary, headers, blocks, utxos, loop, cfg.ServerMode, recentTx, invBroadcast)
	go l.Run()

	if cfg.ServerMode {
		srv := server.New(cfg, headers, blocks, recentTx)
		go func() {
			if err := srv.ListenAndServe(invBroadcast); err != nil {
				logger.Errorf("inbound server stopped: %v", err)
			}
		}()
	}

	go waitForShutdownSignal(loop)
	loop.Run() // blocks the main thread for the life of the node
	return 0
}

// serveGUI mounts the websocket event hub and blocks serving it. A bind
// failure just means no GUI ever connects - the node keeps running
// headless, matching the original's "GUI is optional" posture.
func serveGUI(hub *events.Hub) {
	logger := logx.For(logx.SERVER)
	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	if err := http.ListenAndServe(guiAddress, mux); err != nil {
		logger.Warnf("GUI event stream not available: %v", err)
	}
}

// publishHeaders seeds the GUI's blocks view with every header known
// after IBD completes.
func publishHeaders(hub *events.Hub, headers *store.HeaderStore) {
	total := headers.Len()
	rows := make([]events.HeaderRow, 0, total)
	for height := 0; height < total; height++ {
		h, ok := headers.At(height)
		if !ok {
			continue
		}
		rows = append(rows, events.HeaderRow{
			Height: height,
			Hash:   h.ID(),
			Time:   h.Time().UTC().Format("2006-01-02 15:04:05"),
		})
	}
	hub.LoadBlocks(rows, 0)
}

// waitForShutdownSignal blocks until SIGINT/SIGTERM, then hands the
// wallet loop its own Close event, the same path a GUI's window-close
// button would take.
func waitForShutdownSignal(loop *wallet.Loop) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	<-sigs
	loop.Send(wallet.Event{Kind: wallet.Close})
}
