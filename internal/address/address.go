package address

import (
	"fmt"
	"github.com/camilofabregas/bitcoin-node/internal/encoding"
)

type Network int

const (
	MAINNET Network = iota
	TESTNET
)

func (n Network) P2PKHVersion() byte {
	if n == TESTNET {
		return 0x6F
	}
	return 0x00
}

func (n Network) P2SHVersion() byte {
	if n == TESTNET {
		return 0xC4
	}
	return 0x05
}

type AddrType int

const (
	P2PKH AddrType = iota // base58check
	P2SH                  // base58check
)

type Address struct {
	Type    AddrType
	Network Network
	String  string
}

// FromHash160 creates a P2PKH or P2SH address from a hash160
func FromHash160(hash160 []byte, addrType AddrType, net Network) (*Address, error) {
	var prefix byte
	var addrString string

	switch addrType {
	case P2PKH:
		prefix = net.P2PKHVersion()
		addrString = encoding.EncodeBase58Checksum(append([]byte{prefix}, hash160...))
	case P2SH:
		prefix = net.P2SHVersion()
		addrString = encoding.EncodeBase58Checksum(append([]byte{prefix}, hash160...))
	default:
		return nil, fmt.Errorf("unsupported address type: %v", addrType)
	}

	return &Address{
		String:  addrString,
		Type:    addrType,
		Network: net,
	}, nil
}

// FromPublicKey creates an address from a public key
func FromPublicKey(pubkey []byte, addrType AddrType, net Network) (*Address, error) {
	hash160 := encoding.Hash160(pubkey)
	return FromHash160(hash160, addrType, net)
}
