package transactions

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"github.com/camilofabregas/bitcoin-node/internal/encoding"
	"github.com/camilofabregas/bitcoin-node/internal/keys"
	"github.com/camilofabregas/bitcoin-node/internal/nodeerr"
	"github.com/camilofabregas/bitcoin-node/internal/script"
	"io"
	"slices"
)

type Transaction struct {
	Version   uint32
	Inputs    []TxIn
	Outputs   []TxOut
	Locktime  uint32
	IsTestnet bool
}

func NewTransaction(version uint32, inputs []TxIn, outputs []TxOut, locktime uint32, isTestNet bool) Transaction {
	return Transaction{
		Version:   uint32(version),
		Inputs:    inputs,
		Outputs:   outputs,
		Locktime:  locktime,
		IsTestnet: isTestNet,
	}
}

func (t Transaction) String() string {
	id, _ := t.Id()
	return fmt.Sprintf("tx: %s\n   version:\t%d\n   tx_ins:\t%v\n   tx_outs:\t%v\n   locktime:\t%d",
		id, t.Version, t.Inputs, t.Outputs, t.Locktime)
}

func (t *Transaction) Id() (string, error) {
	// Human readable hexadecimal of the transaction hash
	hash, err := t.hash()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", hash), nil
}

// Hash returns the transaction's txid bytes in display (big-endian)
// order, the same orientation TxIn.PrevTx is stored in, so the two can
// be compared directly when matching spends against outputs.
func (t *Transaction) Hash() ([]byte, error) {
	return t.hash()
}

func (t *Transaction) hash() ([]byte, error) {
	// Binary hash of the legacy serialization
	serialized, err := t.SerializeLegacy()
	if err != nil {
		return nil, err
	}
	hash := encoding.Hash256(serialized)
	slices.Reverse(hash)
	return hash, nil
}

func (t *Transaction) Serialize() ([]byte, error) {
	// returns the byte serialization of the transaction
	return t.SerializeLegacy()
}

func (t *Transaction) SerializeLegacy() ([]byte, error) {
	// returns the byte serialization of the legacy transaction
	var result bytes.Buffer

	buf := make([]byte, 4)

	// version
	binary.LittleEndian.PutUint32(buf[:4], uint32(t.Version))
	n, err := result.Write(buf[:4])
	if err != nil || n != 4 {
		return nil, fmt.Errorf("tx serialization error (version) - %w", err)
	}

	// inputs len
	inputLen := uint64(len(t.Inputs))
	inputLenBytes, err := encoding.EncodeVarInt(inputLen)
	if err != nil {
		return nil, err
	}
	_, err = result.Write(inputLenBytes)
	if err != nil {
		return nil, fmt.Errorf("tx serialization error (inputs length) - %w", err)
	}
	// inputs slice
	for i, tx := range t.Inputs {
		data, err := tx.Serialize()
		if err != nil {
			return nil, fmt.Errorf("tx serialization error (input read %d) - %w", i, err)
		}
		_, err = result.Write(data)
		if err != nil {
			return nil, fmt.Errorf("tx serialization error (input write %d) - %w", i, err)
		}
	}

	// outputs len
	outputLen := uint64(len(t.Outputs))
	outputLenBytes, err := encoding.EncodeVarInt(outputLen)
	if err != nil {
		return nil, err
	}
	_, err = result.Write(outputLenBytes)
	if err != nil {
		return nil, fmt.Errorf("tx serialization error (outputs length) - %w", err)
	}
	for i, tx := range t.Outputs {
		data, err := tx.Serialize()
		if err != nil {
			return nil, fmt.Errorf("tx serialization error (output read %d) - %w", i, err)
		}
		_, err = result.Write(data)
		if err != nil {
			return nil, fmt.Errorf("tx serialization error (output write %d) - %w", i, err)
		}
	}

	// locktime
	binary.LittleEndian.PutUint32(buf[:4], uint32(t.Locktime))
	n, err = result.Write(buf[:4])
	if err != nil || n != 4 {
		return nil, fmt.Errorf("tx serialization error (locktime) - %w", err)
	}

	return result.Bytes(), nil
}

func ParseTransaction(r io.Reader) (Transaction, error) {
	// version
	buf := make([]byte, 5)
	n, err := r.Read(buf)
	if err != nil || n != 5 {
		return Transaction{}, fmt.Errorf("tx parse error (version and marker) - %w", err)
	}
	version := binary.LittleEndian.Uint32(buf[:4])

	return ParseLegacyTransaction(r, version, buf[4])
}

func ParseLegacyTransaction(r io.Reader, version uint32, firstByte byte) (Transaction, error) {
	// hacky way to "rewind" the reader for proper varint reading
	r = io.MultiReader(bytes.NewReader([]byte{firstByte}), r)

	// parse TxIn
	len, err := encoding.ReadVarInt(r)
	if err != nil {
		return Transaction{}, err
	}
	var i uint64
	txins := make([]TxIn, 0, len)
	for i = 0; i < len; i++ {
		tx, err := ParseTxIn(r)
		if err != nil {
			return Transaction{}, err
		}
		txins = append(txins, tx)
	}

	// parse TxOut
	len, err = encoding.ReadVarInt(r)
	if err != nil {
		return Transaction{}, err
	}
	txouts := make([]TxOut, 0, len)
	for i = 0; i < len; i++ {
		tx, err := ParseTxOut(r)
		if err != nil {
			return Transaction{}, err
		}
		txouts = append(txouts, tx)
	}

	// locktime
	buf := make([]byte, 4)
	n, err := r.Read(buf)
	if err != nil || n != 4 {
		return Transaction{}, fmt.Errorf("tx parse error (locktime) - %w", err)
	}
	locktime := binary.LittleEndian.Uint32(buf)

	return Transaction{
		Version:  version,
		Inputs:   txins,
		Outputs:  txouts,
		Locktime: locktime,
	}, nil
}

// SigHash computes the SIGHASH_ALL signature hash (z) for the input at
// inputIndex: every other input's ScriptSig is blanked, the input being
// signed gets the ScriptPubKey of the output it spends substituted in,
// and the SIGHASH_ALL type is appended before the double-SHA256.
func (t *Transaction) SigHash(inputIndex int, lookup OutputLookup) ([]byte, error) {
	prevScriptPubKey, err := t.Inputs[inputIndex].ScriptPubKey(lookup)
	if err != nil {
		return nil, err
	}

	modifiedInputs := make([]TxIn, len(t.Inputs))
	for i, input := range t.Inputs {
		modifiedInputs[i] = TxIn{
			PrevTx:   input.PrevTx,
			PrevIdx:  input.PrevIdx,
			Sequence: input.Sequence,
		}

		if i == inputIndex {
			// this is the input we're signing - use prevScriptPubKey
			modifiedInputs[i].ScriptSig = prevScriptPubKey
		} else {
			// all other inputs get empty script
			modifiedInputs[i].ScriptSig = script.NewScript([]script.ScriptCommand{})
		}
	}

	modifiedTx := Transaction{
		Version:   t.Version,
		Inputs:    modifiedInputs,
		Outputs:   t.Outputs,
		Locktime:  t.Locktime,
		IsTestnet: t.IsTestnet,
	}

	serialized, err := modifiedTx.Serialize()
	if err != nil {
		return nil, err
	}

	// append sighash type (SIGHASH_ALL, 4 bytes little-endian)
	sighashType := make([]byte, 4)
	binary.LittleEndian.PutUint32(sighashType, encoding.SIGHASH_ALL)
	serialized = append(serialized, sighashType...)

	return encoding.Hash256(serialized), nil
}

// Fee returns the difference between summed input and output values, in
// satoshi. lookup resolves each spent output locally (the UTXO engine),
// never over the network.
func (t *Transaction) Fee(lookup OutputLookup) (uint64, error) {
	inputSum := uint64(0)
	for _, tx := range t.Inputs {
		val, err := tx.Value(lookup)
		if err != nil {
			return 0, err
		}
		inputSum += val
	}

	outputSum := uint64(0)
	for _, output := range t.Outputs {
		outputSum += output.Amount
	}

	if outputSum > inputSum {
		return 0, fmt.Errorf("invalid transaction: outputs (%d) > inputs (%d)", outputSum, inputSum)
	}
	return inputSum - outputSum, nil
}

// SignInput produces a P2PKH ScriptSig for the given input: SIGHASH_ALL
// sign, DER-encode with the hash type appended, then push <sig> <pubkey>.
func (t *Transaction) SignInput(inputIndex int, privKey keys.PrivateKey, compressed bool, lookup OutputLookup) error {
	z, err := t.SigHash(inputIndex, lookup)
	if err != nil {
		return err
	}

	sig, err := privKey.SignHash(z)
	if err != nil {
		return err
	}

	derSig := sig.Serialize()
	derSigWithHashType := append(derSig, byte(encoding.SIGHASH_ALL))

	publicKey := privKey.PublicKey()
	secPubKey := publicKey.Serialize(compressed)

	prevScriptPubKey, err := t.Inputs[inputIndex].ScriptPubKey(lookup)
	if err != nil {
		return err
	}
	if expectedHash, ok := prevScriptPubKey.IsP2pkh(); ok {
		if !bytes.Equal(encoding.Hash160(secPubKey), expectedHash) {
			return nodeerr.ErrScriptCheckFailed
		}
	}

	scriptSig := script.NewScript([]script.ScriptCommand{
		{IsData: true, Data: derSigWithHashType},
		{IsData: true, Data: secPubKey},
	})

	t.Inputs[inputIndex].ScriptSig = scriptSig
	return nil
}

// SignInputs signs every input of the transaction with the same key,
// the common case for a wallet spending its own P2PKH outputs.
func (t *Transaction) SignInputs(privKey keys.PrivateKey, compressed bool, lookup OutputLookup) error {
	for i, txin := range t.Inputs {
		if err := t.SignInput(i, privKey, compressed, lookup); err != nil {
			return fmt.Errorf("error signing input %s: %w", txin, err)
		}
	}
	return nil
}

func (t *Transaction) isCoinbase() bool {
	// coinbase transactions must have exactly one input
	if len(t.Inputs) != 1 {
		return false
	}
	// the one input must have a previous transaction of 32 bytes of 00
	if !slices.Equal(t.Inputs[0].PrevTx, bytes.Repeat([]byte{0x00}, 32)) {
		return false
	}
	// the one input must have a previous index of ffffffff
	if t.Inputs[0].PrevIdx != 0xffffffff {
		return false
	}
	return true
}

func (t *Transaction) coinbaseHeight() int64 {
	if !t.isCoinbase() {
		return -1
	}
	element := t.Inputs[0].ScriptSig.CommandStack[0]
	return script.DecodeNum(element.Data)
}
