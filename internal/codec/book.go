package codec

import (
	"encoding/binary"

	"arb/internal/schema"
)

const (
	bookHeaderSize = 16
	levelSize      = 16
	maxLevels      = int(^uint16(0))
)

// BookUpdatePayloadSize returns the encoded size of a book update.
func BookUpdatePayloadSize(u schema.BookUpdate) int {
	return bookHeaderSize + levelSize*(len(u.Asks)+len(u.Bids))
}

// EncodeBookUpdate serializes a book update as a header followed by ask then bid levels.
func EncodeBookUpdate(dst []byte, u schema.BookUpdate) []byte {
	asks, bids := clampLevels(u.Asks), clampLevels(u.Bids)
	size := bookHeaderSize + levelSize*(len(asks)+len(bids))
	if cap(dst) < size {
		dst = make([]byte, size)
	} else {
		dst = dst[:size]
	}

	binary.LittleEndian.PutUint16(dst[0:2], uint16(u.Instrument))
	binary.LittleEndian.PutUint16(dst[2:4], uint16(len(asks)))
	binary.LittleEndian.PutUint16(dst[4:6], uint16(len(bids)))
	binary.LittleEndian.PutUint16(dst[6:8], 0)
	binary.LittleEndian.PutUint64(dst[8:16], u.Seq)

	off := bookHeaderSize
	for _, l := range asks {
		putLevel(dst[off:off+levelSize], l)
		off += levelSize
	}
	for _, l := range bids {
		putLevel(dst[off:off+levelSize], l)
		off += levelSize
	}
	return dst
}

// DecodeBookUpdate parses a book update payload. Level slices are freshly allocated.
func DecodeBookUpdate(src []byte) (schema.BookUpdate, bool) {
	if len(src) < bookHeaderSize {
		return schema.BookUpdate{}, false
	}
	askCount := int(binary.LittleEndian.Uint16(src[2:4]))
	bidCount := int(binary.LittleEndian.Uint16(src[4:6]))
	if len(src) < bookHeaderSize+levelSize*(askCount+bidCount) {
		return schema.BookUpdate{}, false
	}
	u := schema.BookUpdate{
		Instrument: schema.Instrument(binary.LittleEndian.Uint16(src[0:2])),
		Seq:        binary.LittleEndian.Uint64(src[8:16]),
		Asks:       make([]schema.Level, askCount),
		Bids:       make([]schema.Level, bidCount),
	}
	off := bookHeaderSize
	for i := range u.Asks {
		u.Asks[i] = readLevel(src[off : off+levelSize])
		off += levelSize
	}
	for i := range u.Bids {
		u.Bids[i] = readLevel(src[off : off+levelSize])
		off += levelSize
	}
	return u, true
}

func clampLevels(levels []schema.Level) []schema.Level {
	if len(levels) > maxLevels {
		return levels[:maxLevels]
	}
	return levels
}

func putLevel(dst []byte, l schema.Level) {
	binary.LittleEndian.PutUint64(dst[0:8], uint64(l.Price))
	binary.LittleEndian.PutUint64(dst[8:16], uint64(l.Volume))
}

func readLevel(src []byte) schema.Level {
	return schema.Level{
		Price:  schema.Price(int64(binary.LittleEndian.Uint64(src[0:8]))),
		Volume: schema.Quantity(int64(binary.LittleEndian.Uint64(src[8:16]))),
	}
}
