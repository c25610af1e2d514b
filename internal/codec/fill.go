package codec

import (
	"encoding/binary"
	"math"

	"arb/internal/schema"
)

const (
	FillPayloadSize          = 24
	OrderStatusPayloadSize   = 32
	CycleDecisionPayloadSize = 48
)

// EncodeFill serializes a fill into a fixed-size payload.
func EncodeFill(dst []byte, fill schema.Fill) []byte {
	if cap(dst) < FillPayloadSize {
		dst = make([]byte, FillPayloadSize)
	} else {
		dst = dst[:FillPayloadSize]
	}

	binary.LittleEndian.PutUint64(dst[0:8], fill.OrderID)
	binary.LittleEndian.PutUint64(dst[8:16], uint64(fill.Price))
	binary.LittleEndian.PutUint64(dst[16:24], uint64(fill.Qty))

	return dst
}

// DecodeFill parses a fixed-size fill payload.
func DecodeFill(src []byte) (schema.Fill, bool) {
	if len(src) < FillPayloadSize {
		return schema.Fill{}, false
	}
	return schema.Fill{
		OrderID: binary.LittleEndian.Uint64(src[0:8]),
		Price:   schema.Price(int64(binary.LittleEndian.Uint64(src[8:16]))),
		Qty:     schema.Quantity(int64(binary.LittleEndian.Uint64(src[16:24]))),
	}, true
}

// EncodeOrderStatus serializes an order status into a fixed-size payload.
func EncodeOrderStatus(dst []byte, status schema.OrderStatus) []byte {
	if cap(dst) < OrderStatusPayloadSize {
		dst = make([]byte, OrderStatusPayloadSize)
	} else {
		dst = dst[:OrderStatusPayloadSize]
	}

	binary.LittleEndian.PutUint64(dst[0:8], status.OrderID)
	binary.LittleEndian.PutUint64(dst[8:16], uint64(status.FillQty))
	binary.LittleEndian.PutUint64(dst[16:24], uint64(status.RemainingQty))
	binary.LittleEndian.PutUint64(dst[24:32], uint64(status.Fees))

	return dst
}

// DecodeOrderStatus parses a fixed-size order status payload.
func DecodeOrderStatus(src []byte) (schema.OrderStatus, bool) {
	if len(src) < OrderStatusPayloadSize {
		return schema.OrderStatus{}, false
	}
	return schema.OrderStatus{
		OrderID:      binary.LittleEndian.Uint64(src[0:8]),
		FillQty:      schema.Quantity(int64(binary.LittleEndian.Uint64(src[8:16]))),
		RemainingQty: schema.Quantity(int64(binary.LittleEndian.Uint64(src[16:24]))),
		Fees:         schema.Fee(int64(binary.LittleEndian.Uint64(src[24:32]))),
	}, true
}

// EncodeOrderError serializes an order error as the id followed by the raw message.
func EncodeOrderError(dst []byte, e schema.OrderError) []byte {
	size := 8 + len(e.Message)
	if cap(dst) < size {
		dst = make([]byte, size)
	} else {
		dst = dst[:size]
	}
	binary.LittleEndian.PutUint64(dst[0:8], e.OrderID)
	copy(dst[8:], e.Message)
	return dst
}

// DecodeOrderError parses an order error payload.
func DecodeOrderError(src []byte) (schema.OrderError, bool) {
	if len(src) < 8 {
		return schema.OrderError{}, false
	}
	return schema.OrderError{
		OrderID: binary.LittleEndian.Uint64(src[0:8]),
		Message: string(src[8:]),
	}, true
}

// EncodeCycleDecision serializes a decision cycle summary into a fixed-size payload.
func EncodeCycleDecision(dst []byte, d schema.CycleDecision) []byte {
	if cap(dst) < CycleDecisionPayloadSize {
		dst = make([]byte, CycleDecisionPayloadSize)
	} else {
		dst = dst[:CycleDecisionPayloadSize]
	}

	binary.LittleEndian.PutUint64(dst[0:8], d.Seq)
	binary.LittleEndian.PutUint16(dst[8:10], d.Outcome)
	binary.LittleEndian.PutUint16(dst[10:12], d.Orders)
	binary.LittleEndian.PutUint32(dst[12:16], 0)
	binary.LittleEndian.PutUint64(dst[16:24], math.Float64bits(d.FairETF))
	binary.LittleEndian.PutUint64(dst[24:32], math.Float64bits(d.FairFut))
	binary.LittleEndian.PutUint64(dst[32:40], math.Float64bits(d.Spread))
	binary.LittleEndian.PutUint64(dst[40:48], math.Float64bits(d.SpreadNrm))

	return dst
}

// DecodeCycleDecision parses a fixed-size decision cycle payload.
func DecodeCycleDecision(src []byte) (schema.CycleDecision, bool) {
	if len(src) < CycleDecisionPayloadSize {
		return schema.CycleDecision{}, false
	}
	return schema.CycleDecision{
		Seq:       binary.LittleEndian.Uint64(src[0:8]),
		Outcome:   binary.LittleEndian.Uint16(src[8:10]),
		Orders:    binary.LittleEndian.Uint16(src[10:12]),
		FairETF:   math.Float64frombits(binary.LittleEndian.Uint64(src[16:24])),
		FairFut:   math.Float64frombits(binary.LittleEndian.Uint64(src[24:32])),
		Spread:    math.Float64frombits(binary.LittleEndian.Uint64(src[32:40])),
		SpreadNrm: math.Float64frombits(binary.LittleEndian.Uint64(src[40:48])),
	}, true
}
