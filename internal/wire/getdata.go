package wire

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/camilofabregas/bitcoin-node/internal/encoding"
)

type DataType uint32

const (
	DATA_TYPE_ERROR DataType = iota
	DATA_TYPE_TX
	DATA_TYPE_BLOCK
	DATA_TYPE_FILTERED_BLOCK
	DATA_TYPE_CMPCT_BLOCK
)

type DataItem struct {
	Type       DataType
	Identifier [32]byte
}

type GetDataMessage struct {
	Data []DataItem
}

func NewGetDataMessage() GetDataMessage {
	return GetDataMessage{
		Data: []DataItem{},
	}
}

func (gd *GetDataMessage) AddData(dType DataType, id [32]byte) {
	gd.Data = append(gd.Data, DataItem{
		Type:       dType,
		Identifier: id,
	})
}

func (gd *GetDataMessage) Serialize() ([]byte, error) {
	buf := bytes.NewBuffer(nil)

	// number of items (VarInt)
	count, err := encoding.EncodeVarInt(uint64(len(gd.Data)))
	if err != nil {
		return nil, err
	}
	buf.Write(count)

	// loop through each data item
	for _, item := range gd.Data {
		// data type (4 bytes LE)
		binary.Write(buf, binary.LittleEndian, item.Type)

		// id (32 bytes, already LE from parsing)
		buf.Write(item.Identifier[:])
	}

	return buf.Bytes(), nil
}

func (gd GetDataMessage) Command() string {
	return "getdata"
}

// ParseGetDataMessage decodes a getdata payload, used by the inbound
// server to see what a client is asking for.
func ParseGetDataMessage(r io.Reader) (GetDataMessage, error) {
	count, err := encoding.ReadVarInt(r)
	if err != nil {
		return GetDataMessage{}, err
	}
	gd := NewGetDataMessage()
	for i := uint64(0); i < count; i++ {
		typeBuf := make([]byte, 4)
		if _, err := io.ReadFull(r, typeBuf); err != nil {
			return GetDataMessage{}, err
		}
		var id [32]byte
		if _, err := io.ReadFull(r, id[:]); err != nil {
			return GetDataMessage{}, err
		}
		gd.AddData(DataType(binary.LittleEndian.Uint32(typeBuf)), id)
	}
	return gd, nil
}
