package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/camilofabregas/bitcoin-node/internal/encoding"
)

// InvVector is a single inventory entry: a data type tag plus the 32-byte
// identifier (block or transaction hash, bytes kept exactly as they
// appear on the wire, not reversed into display order).
type InvVector struct {
	Type DataType
	Hash [32]byte
}

// InvMessage carries an inventory list. The same wire shape serves three
// commands - inv, getdata and notfound - so the command string is carried
// on the value rather than fixed by the type.
type InvMessage struct {
	Items   []InvVector
	command string
}

func NewInvMessage(command string) InvMessage {
	return InvMessage{command: command}
}

func NewNotFoundMessage(dataType DataType, hash [32]byte) InvMessage {
	m := NewInvMessage("notfound")
	m.Add(dataType, hash)
	return m
}

func (m *InvMessage) Add(dataType DataType, hash [32]byte) {
	m.Items = append(m.Items, InvVector{Type: dataType, Hash: hash})
}

func (m *InvMessage) Serialize() ([]byte, error) {
	buf := bytes.NewBuffer(nil)

	count, err := encoding.EncodeVarInt(uint64(len(m.Items)))
	if err != nil {
		return nil, err
	}
	if _, err := buf.Write(count); err != nil {
		return nil, err
	}

	for _, item := range m.Items {
		typeBuf := make([]byte, 4)
		binary.LittleEndian.PutUint32(typeBuf, uint32(item.Type))
		if _, err := buf.Write(typeBuf); err != nil {
			return nil, err
		}
		if _, err := buf.Write(item.Hash[:]); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

func (m InvMessage) Command() string {
	if m.command == "" {
		return "inv"
	}
	return m.command
}

// ParseInvMessage decodes an inv/getdata/notfound payload. command is
// stamped onto the result since the wire payload itself carries no tag.
func ParseInvMessage(command string, r io.Reader) (InvMessage, error) {
	count, err := encoding.ReadVarInt(r)
	if err != nil {
		return InvMessage{}, fmt.Errorf("inv parse error (count) - %w", err)
	}

	m := NewInvMessage(command)
	m.Items = make([]InvVector, 0, count)
	for i := uint64(0); i < count; i++ {
		typeBuf := make([]byte, 4)
		if _, err := io.ReadFull(r, typeBuf); err != nil {
			return InvMessage{}, fmt.Errorf("inv parse error (type %d) - %w", i, err)
		}
		var hash [32]byte
		if _, err := io.ReadFull(r, hash[:]); err != nil {
			return InvMessage{}, fmt.Errorf("inv parse error (hash %d) - %w", i, err)
		}
		m.Items = append(m.Items, InvVector{
			Type: DataType(binary.LittleEndian.Uint32(typeBuf)),
			Hash: hash,
		})
	}
	return m, nil
}
