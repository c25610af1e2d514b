package codec

import (
	"encoding/binary"

	"arb/internal/schema"
)

const OrderCommandPayloadSize = 32

// EncodeOrderCommand serializes an order command into a fixed-size payload.
func EncodeOrderCommand(dst []byte, cmd schema.OrderCommand) []byte {
	if cap(dst) < OrderCommandPayloadSize {
		dst = make([]byte, OrderCommandPayloadSize)
	} else {
		dst = dst[:OrderCommandPayloadSize]
	}

	binary.LittleEndian.PutUint64(dst[0:8], cmd.OrderID)
	binary.LittleEndian.PutUint16(dst[8:10], uint16(cmd.Kind))
	binary.LittleEndian.PutUint16(dst[10:12], uint16(cmd.Instrument))
	binary.LittleEndian.PutUint16(dst[12:14], uint16(cmd.Side))
	binary.LittleEndian.PutUint16(dst[14:16], uint16(cmd.Lifespan))
	binary.LittleEndian.PutUint64(dst[16:24], uint64(cmd.Price))
	binary.LittleEndian.PutUint64(dst[24:32], uint64(cmd.Qty))

	return dst
}

// DecodeOrderCommand parses a fixed-size order command payload.
func DecodeOrderCommand(src []byte) (schema.OrderCommand, bool) {
	if len(src) < OrderCommandPayloadSize {
		return schema.OrderCommand{}, false
	}
	return schema.OrderCommand{
		OrderID:    binary.LittleEndian.Uint64(src[0:8]),
		Kind:       schema.CommandKind(binary.LittleEndian.Uint16(src[8:10])),
		Instrument: schema.Instrument(binary.LittleEndian.Uint16(src[10:12])),
		Side:       schema.Side(binary.LittleEndian.Uint16(src[12:14])),
		Lifespan:   schema.Lifespan(binary.LittleEndian.Uint16(src[14:16])),
		Price:      schema.Price(int64(binary.LittleEndian.Uint64(src[16:24]))),
		Qty:        schema.Quantity(int64(binary.LittleEndian.Uint64(src[24:32]))),
	}, true
}
