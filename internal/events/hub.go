package events

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/camilofabregas/bitcoin-node/internal/logx"
	"github.com/camilofabregas/bitcoin-node/internal/wallet"
	"github.com/decred/slog"
	"github.com/gorilla/websocket"
)

// Hub is the single-consumer GUI channel's Go-native substitute: every
// connected websocket client receives the same ordered stream of
// GuiEvents. It satisfies wallet.Notifier directly, so the wallet loop
// can push account/wallet-load notifications through it with no
// transport-specific code of its own.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}

	logger slog.Logger
}

func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]struct{}),
		logger:  logx.For(logx.SERVER),
	}
}

// ServeHTTP upgrades the request to a websocket and registers the
// connection until it errors or is closed client-side.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Errorf("upgrading GUI client: %v", err)
		return
	}

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()

	// drain and discard anything the client sends - this is a
	// publish-only stream, but we still need to notice a closed socket.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.mu.Lock()
				delete(h.clients, conn)
				h.mu.Unlock()
				conn.Close()
				return
			}
		}
	}()
}

// publish marshals event once and fans it out to every connected
// client, evicting any that fail to accept the write.
func (h *Hub) publish(event GuiEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Errorf("marshalling gui event: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	var dead []*websocket.Conn
	for conn := range h.clients {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			dead = append(dead, conn)
		}
	}
	for _, conn := range dead {
		delete(h.clients, conn)
		conn.Close()
	}
}

// UpdateStatusLabel advances the sync progress bar and label text.
func (h *Hub) UpdateStatusLabel(text string) {
	h.publish(GuiEvent{Kind: UpdateStatusLabel, Text: text})
}

// HideStatus hides the sync UI once IBD completes.
func (h *Hub) HideStatus() {
	h.publish(GuiEvent{Kind: HideStatus})
}

// LoadBlocks appends rows to the blocks view.
func (h *Hub) LoadBlocks(rows []HeaderRow, baseHeight int) {
	h.publish(GuiEvent{Kind: LoadBlocks, Headers: rows, BaseHeight: baseHeight})
}

// WalletsLoaded satisfies wallet.Notifier: seeds the wallet selector.
func (h *Hub) WalletsLoaded(aliases []string) {
	h.publish(GuiEvent{Kind: InitWallets, Aliases: aliases})
}

// AccountUpdated satisfies wallet.Notifier: pushes a fresh balance and
// transaction-table snapshot for one account.
func (h *Hub) AccountUpdated(alias string, account *wallet.Account) {
	h.publish(GuiEvent{Kind: UpdateWallet, Account: viewFromAccount(alias, account)})
}

// TransactionFailed satisfies wallet.Notifier. The closed GUI event set
// has no dedicated error kind, so a failed send is surfaced through the
// same status label the sync pipeline uses.
func (h *Hub) TransactionFailed(alias string, err error) {
	h.publish(GuiEvent{Kind: UpdateStatusLabel, Text: "transaction failed for " + alias + ": " + err.Error()})
}
