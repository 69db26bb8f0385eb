package codec

import (
	"encoding/binary"

	"frontrun/internal/schema"
)

const (
	DepthUpdatePayloadSize = 32
	TradePayloadSize       = 40
	snapshotFixedSize      = 20
	bookLevelSize          = 16
)

// EncodeDepthUpdate serializes a depth update into a fixed-size payload.
func EncodeDepthUpdate(dst []byte, du schema.DepthUpdate) []byte {
	if cap(dst) < DepthUpdatePayloadSize {
		dst = make([]byte, DepthUpdatePayloadSize)
	} else {
		dst = dst[:DepthUpdatePayloadSize]
	}

	binary.LittleEndian.PutUint32(dst[0:4], du.SymbolID)
	binary.LittleEndian.PutUint16(dst[4:6], uint16(du.Side))
	binary.LittleEndian.PutUint16(dst[6:8], du.Flags)
	binary.LittleEndian.PutUint64(dst[8:16], uint64(du.Price))
	binary.LittleEndian.PutUint64(dst[16:24], uint64(du.Qty))
	binary.LittleEndian.PutUint64(dst[24:32], du.BookSeq)

	return dst
}

// DecodeDepthUpdate parses a fixed-size depth update payload.
func DecodeDepthUpdate(src []byte) (schema.DepthUpdate, bool) {
	if len(src) < DepthUpdatePayloadSize {
		return schema.DepthUpdate{}, false
	}
	return schema.DepthUpdate{
		SymbolID: binary.LittleEndian.Uint32(src[0:4]),
		Side:     schema.OrderSide(binary.LittleEndian.Uint16(src[4:6])),
		Flags:    binary.LittleEndian.Uint16(src[6:8]),
		Price:    schema.Price(int64(binary.LittleEndian.Uint64(src[8:16]))),
		Qty:      schema.Quantity(int64(binary.LittleEndian.Uint64(src[16:24]))),
		BookSeq:  binary.LittleEndian.Uint64(src[24:32]),
	}, true
}

// EncodeTrade serializes a trade into a fixed-size payload.
func EncodeTrade(dst []byte, t schema.Trade) []byte {
	if cap(dst) < TradePayloadSize {
		dst = make([]byte, TradePayloadSize)
	} else {
		dst = dst[:TradePayloadSize]
	}

	binary.LittleEndian.PutUint32(dst[0:4], t.SymbolID)
	binary.LittleEndian.PutUint16(dst[4:6], uint16(t.Aggressor))
	binary.LittleEndian.PutUint16(dst[6:8], t.Flags)
	binary.LittleEndian.PutUint64(dst[8:16], t.TradeID)
	binary.LittleEndian.PutUint64(dst[16:24], uint64(t.Price))
	binary.LittleEndian.PutUint64(dst[24:32], uint64(t.Qty))
	binary.LittleEndian.PutUint64(dst[32:40], 0)

	return dst
}

// DecodeTrade parses a fixed-size trade payload.
func DecodeTrade(src []byte) (schema.Trade, bool) {
	if len(src) < TradePayloadSize {
		return schema.Trade{}, false
	}
	return schema.Trade{
		SymbolID:  binary.LittleEndian.Uint32(src[0:4]),
		Aggressor: schema.OrderSide(binary.LittleEndian.Uint16(src[4:6])),
		Flags:     binary.LittleEndian.Uint16(src[6:8]),
		TradeID:   binary.LittleEndian.Uint64(src[8:16]),
		Price:     schema.Price(int64(binary.LittleEndian.Uint64(src[16:24]))),
		Qty:       schema.Quantity(int64(binary.LittleEndian.Uint64(src[24:32]))),
	}, true
}

// EncodeBookSnapshot serializes a snapshot. The payload is variable length:
// a fixed header followed by bid levels then ask levels.
func EncodeBookSnapshot(dst []byte, snap schema.BookSnapshot) []byte {
	size := snapshotFixedSize + (len(snap.Bids)+len(snap.Asks))*bookLevelSize
	if cap(dst) < size {
		dst = make([]byte, size)
	} else {
		dst = dst[:size]
	}

	binary.LittleEndian.PutUint32(dst[0:4], snap.SymbolID)
	binary.LittleEndian.PutUint64(dst[4:12], snap.BookSeq)
	binary.LittleEndian.PutUint32(dst[12:16], uint32(len(snap.Bids)))
	binary.LittleEndian.PutUint32(dst[16:20], uint32(len(snap.Asks)))

	off := snapshotFixedSize
	for _, lv := range snap.Bids {
		binary.LittleEndian.PutUint64(dst[off:off+8], uint64(lv.Price))
		binary.LittleEndian.PutUint64(dst[off+8:off+16], uint64(lv.Qty))
		off += bookLevelSize
	}
	for _, lv := range snap.Asks {
		binary.LittleEndian.PutUint64(dst[off:off+8], uint64(lv.Price))
		binary.LittleEndian.PutUint64(dst[off+8:off+16], uint64(lv.Qty))
		off += bookLevelSize
	}

	return dst
}

// DecodeBookSnapshot parses a variable-size snapshot payload.
func DecodeBookSnapshot(src []byte) (schema.BookSnapshot, bool) {
	if len(src) < snapshotFixedSize {
		return schema.BookSnapshot{}, false
	}
	bidCount := int(binary.LittleEndian.Uint32(src[12:16]))
	askCount := int(binary.LittleEndian.Uint32(src[16:20]))
	want := snapshotFixedSize + (bidCount+askCount)*bookLevelSize
	if len(src) < want {
		return schema.BookSnapshot{}, false
	}

	snap := schema.BookSnapshot{
		SymbolID: binary.LittleEndian.Uint32(src[0:4]),
		BookSeq:  binary.LittleEndian.Uint64(src[4:12]),
	}
	off := snapshotFixedSize
	if bidCount > 0 {
		snap.Bids = make([]schema.BookLevel, bidCount)
		for i := range snap.Bids {
			snap.Bids[i] = schema.BookLevel{
				Price: schema.Price(int64(binary.LittleEndian.Uint64(src[off : off+8]))),
				Qty:   schema.Quantity(int64(binary.LittleEndian.Uint64(src[off+8 : off+16]))),
			}
			off += bookLevelSize
		}
	}
	if askCount > 0 {
		snap.Asks = make([]schema.BookLevel, askCount)
		for i := range snap.Asks {
			snap.Asks[i] = schema.BookLevel{
				Price: schema.Price(int64(binary.LittleEndian.Uint64(src[off : off+8]))),
				Qty:   schema.Quantity(int64(binary.LittleEndian.Uint64(src[off+8 : off+16]))),
			}
			off += bookLevelSize
		}
	}
	return snap, true
}
