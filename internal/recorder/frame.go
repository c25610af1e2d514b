package recorder

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/yanun0323/errors"

	"arb/internal/schema"
)

// A frame is: header (frameHeaderSize) | payload | crc32c(header+payload).
//
//	0  magic "ARB1"
//	4  type u16, schema version u16, source u16, flags u16
//	12 payload length u32
//	16 seq u64, ts event i64, ts recv i64, trace id u64
const (
	frameHeaderSize  = 48
	frameTrailerSize = 4
	frameOverhead    = frameHeaderSize + frameTrailerSize
	maxPayloadLen    = 1 << 24
)

var frameMagic = [4]byte{'A', 'R', 'B', '1'}

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

var (
	ErrBadMagic         = errors.New("recorder: bad frame magic")
	ErrChecksumMismatch = errors.New("recorder: checksum mismatch")
	ErrPayloadTooLarge  = errors.New("recorder: payload too large")
)

func putFrameHeader(dst []byte, h schema.EventHeader, payloadLen int) {
	_ = dst[frameHeaderSize-1]
	copy(dst[0:4], frameMagic[:])
	binary.LittleEndian.PutUint16(dst[4:6], uint16(h.Type))
	binary.LittleEndian.PutUint16(dst[6:8], h.Version)
	binary.LittleEndian.PutUint16(dst[8:10], uint16(h.Source))
	binary.LittleEndian.PutUint16(dst[10:12], h.Flags)
	binary.LittleEndian.PutUint32(dst[12:16], uint32(payloadLen))
	binary.LittleEndian.PutUint64(dst[16:24], h.Seq)
	binary.LittleEndian.PutUint64(dst[24:32], uint64(h.TsEvent))
	binary.LittleEndian.PutUint64(dst[32:40], uint64(h.TsRecv))
	binary.LittleEndian.PutUint64(dst[40:48], h.TraceID)
}

func readFrameHeader(src []byte) (schema.EventHeader, int, error) {
	if [4]byte(src[0:4]) != frameMagic {
		return schema.EventHeader{}, 0, ErrBadMagic
	}
	n := binary.LittleEndian.Uint32(src[12:16])
	if n > maxPayloadLen {
		return schema.EventHeader{}, 0, errors.Wrap(ErrPayloadTooLarge, "read frame").With("len", n)
	}
	return schema.EventHeader{
		Type:    schema.EventType(binary.LittleEndian.Uint16(src[4:6])),
		Version: binary.LittleEndian.Uint16(src[6:8]),
		Source:  schema.EventSource(binary.LittleEndian.Uint16(src[8:10])),
		Flags:   binary.LittleEndian.Uint16(src[10:12]),
		Seq:     binary.LittleEndian.Uint64(src[16:24]),
		TsEvent: int64(binary.LittleEndian.Uint64(src[24:32])),
		TsRecv:  int64(binary.LittleEndian.Uint64(src[32:40])),
		TraceID: binary.LittleEndian.Uint64(src[40:48]),
	}, int(n), nil
}

func frameChecksum(header, payload []byte) uint32 {
	return crc32.Update(crc32.Update(0, castagnoli, header), castagnoli, payload)
}
