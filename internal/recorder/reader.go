package recorder

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/yanun0323/errors"

	"arb/internal/schema"
)

// Reader decodes frames from one segment.
type Reader struct {
	r       *bufio.Reader
	verify  bool
	header  [frameHeaderSize]byte
	payload []byte
}

// NewReader wraps r. When verify is false checksums are not checked.
func NewReader(r io.Reader, verify bool) *Reader {
	return &Reader{r: bufio.NewReader(r), verify: verify}
}

// Next returns the next event. The payload is reused by the following call.
// A clean end of segment returns io.EOF; a torn tail returns io.ErrUnexpectedEOF.
func (r *Reader) Next() (schema.EventHeader, []byte, error) {
	if _, err := io.ReadFull(r.r, r.header[:]); err != nil {
		return schema.EventHeader{}, nil, err
	}
	header, n, err := readFrameHeader(r.header[:])
	if err != nil {
		return header, nil, err
	}

	if cap(r.payload) < n {
		r.payload = make([]byte, n)
	}
	r.payload = r.payload[:n]
	if _, err := io.ReadFull(r.r, r.payload); err != nil {
		return header, nil, unexpected(err)
	}

	var trailer [frameTrailerSize]byte
	if _, err := io.ReadFull(r.r, trailer[:]); err != nil {
		return header, nil, unexpected(err)
	}
	if r.verify && binary.LittleEndian.Uint32(trailer[:]) != frameChecksum(r.header[:], r.payload) {
		return header, nil, errors.Wrap(ErrChecksumMismatch, "recorder: read").With("seq", header.Seq)
	}
	return header, r.payload, nil
}

func unexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
