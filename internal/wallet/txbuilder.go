package wallet

import (
	"fmt"

	"github.com/camilofabregas/bitcoin-node/internal/encoding"
	"github.com/camilofabregas/bitcoin-node/internal/nodeerr"
	"github.com/camilofabregas/bitcoin-node/internal/script"
	"github.com/camilofabregas/bitcoin-node/internal/transactions"
	"github.com/camilofabregas/bitcoin-node/internal/utxo"
)

// selectInputs picks which owned outputs cover amountSat+feeSat: a
// single output if one alone is enough, otherwise outputs are
// accumulated in iteration order until the total covers it. Returns the
// chosen outputs and the leftover (change) amount in satoshi.
func selectInputs(owned []utxo.UnspentOutput, taxedAmount uint64) ([]utxo.UnspentOutput, uint64, error) {
	for _, u := range owned {
		if u.Out.Amount >= taxedAmount {
			return []utxo.UnspentOutput{u}, u.Out.Amount - taxedAmount, nil
		}
	}

	var chosen []utxo.UnspentOutput
	var total uint64
	for _, u := range owned {
		chosen = append(chosen, u)
		total += u.Out.Amount
		if total >= taxedAmount {
			return chosen, total - taxedAmount, nil
		}
	}

	return nil, 0, nodeerr.ErrWalletInsufficientFunds
}

// BuildTransaction assembles and signs a P2PKH transaction spending
// sender's owned UTXOs: amountSat to receiverAddress, feeSat left
// unassigned to any output (miners collect input-output difference),
// and any leftover change back to sender.
func BuildTransaction(sender *Account, receiverAddress string, amountSat, feeSat uint64, set *utxo.Set) (*transactions.Transaction, error) {
	senderHash, err := sender.PubKeyHash()
	if err != nil {
		return nil, err
	}
	taxedAmount := amountSat + feeSat

	owned := set.SpendableBy(senderHash)
	var total uint64
	for _, u := range owned {
		total += u.Out.Amount
	}
	if total < taxedAmount {
		return nil, nodeerr.ErrWalletInsufficientFunds
	}

	chosen, change, err := selectInputs(owned, taxedAmount)
	if err != nil {
		return nil, err
	}

	receiverHash, err := encoding.DecodeBase58(receiverAddress)
	if err != nil {
		return nil, fmt.Errorf("invalid receiver address: %w", err)
	}

	inputs := make([]transactions.TxIn, len(chosen))
	lookup := make(map[utxo.Key]*transactions.TxOut, len(chosen))
	for i, u := range chosen {
		inputs[i] = transactions.NewTxIn(append([]byte(nil), u.Key.Txid[:]...), u.Key.Index, 0xffffffff)
		lookup[u.Key] = u.Out
	}

	outputs := []transactions.TxOut{
		{Amount: amountSat, ScriptPubKey: script.P2pkhScript(receiverHash)},
	}
	if change > 0 {
		outputs = append(outputs, transactions.TxOut{Amount: change, ScriptPubKey: script.P2pkhScript(senderHash)})
	}

	tx := transactions.NewTransaction(1, inputs, outputs, 0, true)

	privKey, err := sender.PrivateKey()
	if err != nil {
		return nil, err
	}
	spendLookup := func(prevTxid []byte, prevIdx uint32) (*transactions.TxOut, error) {
		var key utxo.Key
		copy(key.Txid[:], prevTxid)
		key.Index = prevIdx
		out, ok := lookup[key]
		if !ok {
			return nil, nodeerr.ErrNotFound
		}
		return out, nil
	}
	if err := tx.SignInputs(*privKey, true, spendLookup); err != nil {
		return nil, err
	}

	return &tx, nil
}
