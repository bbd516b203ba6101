package server

import (
	"bytes"

	"github.com/camilofabregas/bitcoin-node/internal/store"
	"github.com/camilofabregas/bitcoin-node/internal/wire"
)

const maxHeadersPerResponse = 2000

// respondGetHeaders answers a getheaders request by walking the locator
// until the first hash present in the header store's hash->height index
// is found, then returning up to 2000 subsequent headers stopping before
// hashStop. An unrecognised locator yields an empty headers message
// rather than an error.
func (s *Server) respondGetHeaders(peer *wire.SimpleNode, env wire.NetworkEnvelope) {
	req, err := wire.ParseGetHeadersMessage(bytes.NewReader(env.Payload))
	if err != nil {
		s.logger.Errorf("parsing getheaders: %v", err)
		return
	}

	from := -1
	for _, locator := range req.BlockLocators {
		if height, ok := s.headers.HeightOf(locator); ok {
			from = height + 1
			break
		}
	}

	resp := wire.HeadersMessage{}
	if from >= 0 {
		candidates := s.headers.Slice(from, from+maxHeadersPerResponse)
		for _, h := range candidates {
			hash, err := h.Hash()
			if err != nil {
				break
			}
			if [32]byte(hash) == req.HashStop {
				break
			}
			resp.Blocks = append(resp.Blocks, h)
		}
	}

	if err := peer.Send(&resp); err != nil {
		s.logger.Errorf("sending headers to client: %v", err)
	}
}

// respondGetData answers each requested inventory item with the matching
// block or transaction, or a notfound carrying the same inv when neither
// the block store nor the recent-tx buffer has it. Payloads shorter than
// a single inv entry's minimum encoding are discarded outright.
func (s *Server) respondGetData(peer *wire.SimpleNode, env wire.NetworkEnvelope) {
	if len(env.Payload) < 5 {
		s.logger.Warnf("discarding undersized getdata from client")
		return
	}
	req, err := wire.ParseGetDataMessage(bytes.NewReader(env.Payload))
	if err != nil {
		s.logger.Errorf("parsing getdata: %v", err)
		return
	}

	for _, item := range req.Data {
		switch item.Type {
		case wire.DATA_TYPE_BLOCK:
			s.respondGetDataBlock(peer, item)
		case wire.DATA_TYPE_TX:
			s.respondGetDataTxn(peer, item)
		default:
			s.sendNotFound(peer, item.Type, item.Identifier)
		}
	}
}

func (s *Server) respondGetDataBlock(peer *wire.SimpleNode, item wire.DataItem) {
	raw, err := s.blocks.Get(item.Identifier)
	if err != nil {
		if !store.IsNotFound(err) {
			s.logger.Errorf("reading block %x: %v", item.Identifier, err)
		}
		s.sendNotFound(peer, wire.DATA_TYPE_BLOCK, item.Identifier)
		return
	}
	msg := wire.NewGenericMessage("block", raw)
	if err := peer.Send(&msg); err != nil {
		s.logger.Errorf("sending block %x to client: %v", item.Identifier, err)
	}
}

func (s *Server) respondGetDataTxn(peer *wire.SimpleNode, item wire.DataItem) {
	raw, ok := s.recentTx.Find(item.Identifier)
	if !ok {
		s.sendNotFound(peer, wire.DATA_TYPE_TX, item.Identifier)
		return
	}
	msg := wire.NewGenericMessage("tx", raw)
	if err := peer.Send(&msg); err != nil {
		s.logger.Errorf("sending tx %x to client: %v", item.Identifier, err)
	}
}

func (s *Server) sendNotFound(peer *wire.SimpleNode, dataType wire.DataType, hash [32]byte) {
	msg := wire.NewNotFoundMessage(dataType, hash)
	if err := peer.Send(&msg); err != nil {
		s.logger.Errorf("sending notfound to client: %v", err)
	}
}
