package wallet

import (
	"fmt"

	"github.com/camilofabregas/bitcoin-node/internal/encoding"
	"github.com/camilofabregas/bitcoin-node/internal/keys"
	"github.com/camilofabregas/bitcoin-node/internal/utxo"
)

const satoshisPerBTC = 100_000_000

func satoshisToBTC(sat uint64) float64 {
	return float64(sat) / satoshisPerBTC
}

func btcToSatoshis(btc float64) uint64 {
	return uint64(btc*satoshisPerBTC + 0.5)
}

// Account is one address/key pair the node tracks: its balances and its
// transaction history across all four lifecycle buckets. Owned outputs
// are not stored on the account; balances are refreshed from the shared
// utxo.Set.
type Account struct {
	PublicAddress  string // Base58Check legacy address
	PrivateAddress string // WIF-encoded private key, empty for watch-only accounts

	Balance        float64
	PendingBalance float64

	Sending        []TxnInfo
	Sent           []TxnInfo
	Receiving      []TxnInfo
	SavedReceived  []TxnInfo
}

func NewAccount(publicAddress, privateAddress string) *Account {
	return &Account{
		PublicAddress:  publicAddress,
		PrivateAddress: privateAddress,
	}
}

// PubKeyHash recovers the 20-byte HASH160 encoded in the account's
// address, the same comparison key every output's ScriptPubKey exposes
// through Script.IsP2pkh.
func (a *Account) PubKeyHash() ([]byte, error) {
	return encoding.DecodeBase58(a.PublicAddress)
}

// PrivateKey decodes the account's WIF private key for signing. Returns
// an error for watch-only accounts (no private key set).
func (a *Account) PrivateKey() (*keys.PrivateKey, error) {
	if a.PrivateAddress == "" {
		return nil, fmt.Errorf("account %s has no private key", a.PublicAddress)
	}
	return keys.ParsePrivateKey(a.PrivateAddress)
}

// RefreshBalance recomputes Balance from the live UTXO set.
func (a *Account) RefreshBalance(set *utxo.Set) error {
	pkHash, err := a.PubKeyHash()
	if err != nil {
		return err
	}
	a.Balance = satoshisToBTC(set.Balance(pkHash))
	return nil
}

// UpdatePendingBalance recomputes PendingBalance as the negative sum of
// every still-outstanding send.
func (a *Account) UpdatePendingBalance() {
	var pending float64
	for _, info := range a.Sending {
		pending -= info.Amount
	}
	a.PendingBalance = pending
}

// UpdateSendingTxn moves a previously-sent transaction from Sending to
// Sent once it is seen confirmed in blockHash.
func (a *Account) UpdateSendingTxn(txid, blockHash string) {
	for i, info := range a.Sending {
		id, err := info.Txn.Id()
		if err != nil || id != txid {
			continue
		}
		info.Type = Sent
		info.Block = blockHash
		a.Sent = append(a.Sent, info)
		a.Sending = append(a.Sending[:i], a.Sending[i+1:]...)
		return
	}
}

// UpdateReceivingTxn moves a previously-pending receive from Receiving
// to SavedReceived once it is seen confirmed.
func (a *Account) UpdateReceivingTxn(txid string) {
	for i, info := range a.Receiving {
		id, err := info.Txn.Id()
		if err != nil || id != txid {
			continue
		}
		info.Type = Received
		a.SavedReceived = append(a.SavedReceived, info)
		a.Receiving = append(a.Receiving[:i], a.Receiving[i+1:]...)
		return
	}
}

// PendingTxn returns every still-outstanding send and receive, for
// display alongside confirmed history.
func (a *Account) PendingTxn() []TxnInfo {
	out := make([]TxnInfo, 0, len(a.Sending)+len(a.Receiving))
	out = append(out, a.Sending...)
	out = append(out, a.Receiving...)
	return out
}
