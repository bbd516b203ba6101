package server

import (
	"fmt"
	"net"

	"github.com/camilofabregas/bitcoin-node/internal/config"
	"github.com/camilofabregas/bitcoin-node/internal/logx"
	"github.com/camilofabregas/bitcoin-node/internal/store"
	"github.com/camilofabregas/bitcoin-node/internal/wire"
	"github.com/decred/slog"
)

// Server is the node's downstream-facing half: it binds cfg.ServerAddress,
// answers getheaders/getdata from light clients, and rebroadcasts inv
// messages the listener forwards it.
type Server struct {
	cfg      config.Config
	headers  *store.HeaderStore
	blocks   *store.BlockStore
	recentTx *RecentTxBuffer
	registry *ClientRegistry
	logger   slog.Logger
}

func New(cfg config.Config, headers *store.HeaderStore, blocks *store.BlockStore, recentTx *RecentTxBuffer) *Server {
	return &Server{
		cfg:      cfg,
		headers:  headers,
		blocks:   blocks,
		recentTx: recentTx,
		registry: NewClientRegistry(),
		logger:   logx.For(logx.SERVER),
	}
}

// ListenAndServe binds the configured server address, starts the
// singleton notifier goroutine consuming invBroadcast, and accepts
// inbound clients until the listener errors (process shutdown).
func (s *Server) ListenAndServe(invBroadcast <-chan wire.InvMessage) error {
	ln, err := net.Listen("tcp", s.cfg.ServerAddress)
	if err != nil {
		return fmt.Errorf("binding server address %s: %w", s.cfg.ServerAddress, err)
	}
	defer ln.Close()
	s.logger.Infof("listening for inbound peers on %s", s.cfg.ServerAddress)

	go s.runNotifier(invBroadcast)

	for {
		conn, err := ln.Accept()
		if err != nil {
			s.logger.Errorf("accept: %v", err)
			return err
		}
		go s.handleClient(conn)
	}
}

// handleClient performs the inbound handshake and then loops answering
// whatever requests the client sends, until it disconnects or sends
// something malformed enough to abort the connection.
func (s *Server) handleClient(conn net.Conn) {
	addr := conn.RemoteAddr().String()
	peer, err := wire.NewSimpleNodeFromConn(conn, true, false)
	if err != nil {
		s.logger.Errorf("wrapping connection from %s: %v", addr, err)
		conn.Close()
		return
	}

	if err := peer.HandshakeInbound(); err != nil {
		s.logger.Errorf("handshake with %s failed: %v", addr, err)
		peer.Close()
		return
	}

	s.registry.Register(addr, peer)
	s.logger.Infof("client %s connected", addr)
	defer func() {
		s.registry.Remove(addr)
		peer.Close()
		s.logger.Infof("client %s disconnected", addr)
	}()

	for {
		env, err := peer.ReceiveAny([]string{"getheaders", "getdata"}, 0)
		if err != nil {
			return
		}
		switch env.Command {
		case "getheaders":
			s.respondGetHeaders(peer, env)
		case "getdata":
			s.respondGetData(peer, env)
		}
	}
}
