package wallet

import (
	"fmt"

	"github.com/camilofabregas/bitcoin-node/internal/transactions"
)

// TxnType classifies a TxnInfo entry by where it sits in the
// pending->confirmed lifecycle.
type TxnType int

const (
	Undefined TxnType = iota
	Sending
	Sent
	Receiving
	Received
)

func (t TxnType) String() string {
	switch t {
	case Sending:
		return "SENDING"
	case Sent:
		return "SENT"
	case Receiving:
		return "RECEIVING"
	case Received:
		return "RECEIVED"
	default:
		return "UNDEFINED"
	}
}

// TxnInfo is one entry in an account's sending/sent/receiving/received
// history: the transaction itself plus the bookkeeping fields the
// wallet displays and persists.
type TxnInfo struct {
	Txn     transactions.Transaction
	Date    uint32 // the txn's locktime, reused as a display date
	Type    TxnType
	Label   string
	Amount  float64 // BTC, always positive; sign is derived from Type
	Address string  // counter-party address
	Block   string  // block hash hex, or "-" while unconfirmed
}

func NewTxnInfo(txn transactions.Transaction, txnType TxnType, label string, amount float64, address, block string) TxnInfo {
	return TxnInfo{
		Txn:     txn,
		Date:    txn.Locktime,
		Type:    txnType,
		Label:   label,
		Amount:  amount,
		Address: address,
		Block:   block,
	}
}

// PendingAmountString renders the signed BTC amount the GUI/CLI shows
// next to a pending or historical entry.
func (ti TxnInfo) PendingAmountString() string {
	switch ti.Type {
	case Sending, Sent:
		return fmt.Sprintf("-%.8f BTC", ti.Amount)
	case Receiving, Received:
		return fmt.Sprintf("%.8f BTC", ti.Amount)
	default:
		return ""
	}
}
