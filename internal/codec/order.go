package codec

import (
	"encoding/binary"

	"frontrun/internal/schema"
)

const (
	OrderIntentPayloadSize  = 56
	OrderAckPayloadSize     = 48
	FillPayloadSize         = 40
	RiskDecisionPayloadSize = 48
)

// EncodeOrderIntent serializes an order intent into a fixed-size payload.
func EncodeOrderIntent(dst []byte, intent schema.OrderIntent) []byte {
	if cap(dst) < OrderIntentPayloadSize {
		dst = make([]byte, OrderIntentPayloadSize)
	} else {
		dst = dst[:OrderIntentPayloadSize]
	}

	binary.LittleEndian.PutUint64(dst[0:8], intent.OrderID)
	binary.LittleEndian.PutUint64(dst[8:16], intent.SignalSeq)
	binary.LittleEndian.PutUint32(dst[16:20], intent.SymbolID)
	binary.LittleEndian.PutUint16(dst[20:22], uint16(intent.Side))
	binary.LittleEndian.PutUint16(dst[22:24], uint16(intent.Type))
	binary.LittleEndian.PutUint16(dst[24:26], intent.Flags)
	var reduce uint16
	if intent.ReduceOnly {
		reduce = 1
	}
	binary.LittleEndian.PutUint16(dst[26:28], reduce)
	binary.LittleEndian.PutUint32(dst[28:32], 0)
	binary.LittleEndian.PutUint64(dst[32:40], uint64(intent.Price))
	binary.LittleEndian.PutUint64(dst[40:48], uint64(intent.Qty))
	binary.LittleEndian.PutUint64(dst[48:56], uint64(intent.Notional))

	return dst
}

// DecodeOrderIntent parses a fixed-size order intent payload.
func DecodeOrderIntent(src []byte) (schema.OrderIntent, bool) {
	if len(src) < OrderIntentPayloadSize {
		return schema.OrderIntent{}, false
	}
	return schema.OrderIntent{
		OrderID:    binary.LittleEndian.Uint64(src[0:8]),
		SignalSeq:  binary.LittleEndian.Uint64(src[8:16]),
		SymbolID:   binary.LittleEndian.Uint32(src[16:20]),
		Side:       schema.OrderSide(binary.LittleEndian.Uint16(src[20:22])),
		Type:       schema.OrderType(binary.LittleEndian.Uint16(src[22:24])),
		Flags:      binary.LittleEndian.Uint16(src[24:26]),
		ReduceOnly: binary.LittleEndian.Uint16(src[26:28]) != 0,
		Price:      schema.Price(int64(binary.LittleEndian.Uint64(src[32:40]))),
		Qty:        schema.Quantity(int64(binary.LittleEndian.Uint64(src[40:48]))),
		Notional:   schema.Notional(int64(binary.LittleEndian.Uint64(src[48:56]))),
	}, true
}

// EncodeOrderAck serializes an order ack into a fixed-size payload.
func EncodeOrderAck(dst []byte, ack schema.OrderAck) []byte {
	if cap(dst) < OrderAckPayloadSize {
		dst = make([]byte, OrderAckPayloadSize)
	} else {
		dst = dst[:OrderAckPayloadSize]
	}

	binary.LittleEndian.PutUint64(dst[0:8], ack.OrderID)
	binary.LittleEndian.PutUint32(dst[8:12], ack.SymbolID)
	binary.LittleEndian.PutUint16(dst[12:14], uint16(ack.Status))
	binary.LittleEndian.PutUint16(dst[14:16], uint16(ack.Reason))
	binary.LittleEndian.PutUint64(dst[16:24], uint64(ack.Price))
	binary.LittleEndian.PutUint64(dst[24:32], uint64(ack.Qty))
	binary.LittleEndian.PutUint64(dst[32:40], uint64(ack.LeavesQty))
	binary.LittleEndian.PutUint64(dst[40:48], uint64(ack.Fee))

	return dst
}

// DecodeOrderAck parses a fixed-size order ack payload.
func DecodeOrderAck(src []byte) (schema.OrderAck, bool) {
	if len(src) < OrderAckPayloadSize {
		return schema.OrderAck{}, false
	}
	return schema.OrderAck{
		OrderID:   binary.LittleEndian.Uint64(src[0:8]),
		SymbolID:  binary.LittleEndian.Uint32(src[8:12]),
		Status:    schema.OrderAckStatus(binary.LittleEndian.Uint16(src[12:14])),
		Reason:    schema.OrderAckReason(binary.LittleEndian.Uint16(src[14:16])),
		Price:     schema.Price(int64(binary.LittleEndian.Uint64(src[16:24]))),
		Qty:       schema.Quantity(int64(binary.LittleEndian.Uint64(src[24:32]))),
		LeavesQty: schema.Quantity(int64(binary.LittleEndian.Uint64(src[32:40]))),
		Fee:       schema.Fee(int64(binary.LittleEndian.Uint64(src[40:48]))),
	}, true
}

// EncodeFill serializes a fill into a fixed-size payload.
func EncodeFill(dst []byte, fill schema.Fill) []byte {
	if cap(dst) < FillPayloadSize {
		dst = make([]byte, FillPayloadSize)
	} else {
		dst = dst[:FillPayloadSize]
	}

	binary.LittleEndian.PutUint64(dst[0:8], fill.OrderID)
	binary.LittleEndian.PutUint32(dst[8:12], fill.SymbolID)
	binary.LittleEndian.PutUint16(dst[12:14], uint16(fill.Side))
	binary.LittleEndian.PutUint16(dst[14:16], fill.Flags)
	binary.LittleEndian.PutUint64(dst[16:24], uint64(fill.Price))
	binary.LittleEndian.PutUint64(dst[24:32], uint64(fill.Qty))
	binary.LittleEndian.PutUint64(dst[32:40], uint64(fill.Fee))

	return dst
}

// DecodeFill parses a fixed-size fill payload.
func DecodeFill(src []byte) (schema.Fill, bool) {
	if len(src) < FillPayloadSize {
		return schema.Fill{}, false
	}
	return schema.Fill{
		OrderID:  binary.LittleEndian.Uint64(src[0:8]),
		SymbolID: binary.LittleEndian.Uint32(src[8:12]),
		Side:     schema.OrderSide(binary.LittleEndian.Uint16(src[12:14])),
		Flags:    binary.LittleEndian.Uint16(src[14:16]),
		Price:    schema.Price(int64(binary.LittleEndian.Uint64(src[16:24]))),
		Qty:      schema.Quantity(int64(binary.LittleEndian.Uint64(src[24:32]))),
		Fee:      schema.Fee(int64(binary.LittleEndian.Uint64(src[32:40]))),
	}, true
}

// EncodeRiskDecision serializes a risk decision into a fixed-size payload.
func EncodeRiskDecision(dst []byte, d schema.RiskDecision) []byte {
	if cap(dst) < RiskDecisionPayloadSize {
		dst = make([]byte, RiskDecisionPayloadSize)
	} else {
		dst = dst[:RiskDecisionPayloadSize]
	}

	binary.LittleEndian.PutUint64(dst[0:8], d.OrderID)
	binary.LittleEndian.PutUint32(dst[8:12], d.SymbolID)
	binary.LittleEndian.PutUint16(dst[12:14], uint16(d.Action))
	binary.LittleEndian.PutUint16(dst[14:16], uint16(d.Reason))
	binary.LittleEndian.PutUint64(dst[16:24], uint64(d.ProposedQty))
	binary.LittleEndian.PutUint64(dst[24:32], uint64(d.Notional))
	binary.LittleEndian.PutUint64(dst[32:40], uint64(d.Exposure))
	binary.LittleEndian.PutUint64(dst[40:48], 0)

	return dst
}

// DecodeRiskDecision parses a fixed-size risk decision payload.
func DecodeRiskDecision(src []byte) (schema.RiskDecision, bool) {
	if len(src) < RiskDecisionPayloadSize {
		return schema.RiskDecision{}, false
	}
	return schema.RiskDecision{
		OrderID:     binary.LittleEndian.Uint64(src[0:8]),
		SymbolID:    binary.LittleEndian.Uint32(src[8:12]),
		Action:      schema.RiskAction(binary.LittleEndian.Uint16(src[12:14])),
		Reason:      schema.RiskReason(binary.LittleEndian.Uint16(src[14:16])),
		ProposedQty: schema.Quantity(int64(binary.LittleEndian.Uint64(src[16:24]))),
		Notional:    schema.Notional(int64(binary.LittleEndian.Uint64(src[24:32]))),
		Exposure:    schema.Notional(int64(binary.LittleEndian.Uint64(src[32:40]))),
	}, true
}
