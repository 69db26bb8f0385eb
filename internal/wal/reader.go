package wal

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"

	"frontrun/internal/schema"
)

var ErrChecksumMismatch = errors.New("wal checksum mismatch")

// ReaderOptions controls record decoding.
type ReaderOptions struct {
	DisableChecksum bool
	MaxPayloadSize  int

	// StrictSeq rejects records whose Seq does not increase monotonically.
	StrictSeq bool
}

// Reader decodes WAL records sequentially.
type Reader struct {
	r         *bufio.Reader
	opts      ReaderOptions
	headerBuf []byte
	payload   []byte
	lastSeq   uint64
	seenSeq   bool
}

// NewReader wraps an io.Reader with WAL decoding.
func NewReader(r io.Reader, opts ReaderOptions) *Reader {
	return &Reader{
		r:         bufio.NewReader(r),
		opts:      opts,
		headerBuf: make([]byte, recordHeaderSize),
	}
}

// Next returns the next record header and payload.
// The payload is only valid until the next call to Next.
func (r *Reader) Next() (schema.EventHeader, []byte, error) {
	var header schema.EventHeader

	n, err := io.ReadFull(r.r, r.headerBuf)
	if err != nil {
		if err == io.EOF && n == 0 {
			return header, nil, io.EOF
		}
		return header, nil, err
	}

	header, payloadLen, err := decodeRecordHeader(r.headerBuf)
	if err != nil {
		return header, nil, err
	}
	if r.opts.MaxPayloadSize > 0 && payloadLen > uint32(r.opts.MaxPayloadSize) {
		return header, nil, ErrPayloadTooLarge
	}

	if payloadLen > 0 {
		if cap(r.payload) < int(payloadLen) {
			r.payload = make([]byte, payloadLen)
		}
		r.payload = r.payload[:payloadLen]
		if _, err := io.ReadFull(r.r, r.payload); err != nil {
			return header, nil, err
		}
	} else {
		r.payload = r.payload[:0]
	}

	var checksumBuf [recordChecksumSize]byte
	if _, err := io.ReadFull(r.r, checksumBuf[:]); err != nil {
		return header, nil, err
	}

	if !r.opts.DisableChecksum {
		expected := binary.LittleEndian.Uint32(checksumBuf[:])
		if sum := recordChecksum(r.headerBuf, r.payload); sum != expected {
			return header, nil, ErrChecksumMismatch
		}
	}

	if r.opts.StrictSeq {
		if r.seenSeq && header.Seq <= r.lastSeq {
			return header, nil, ErrSeqRegression
		}
		r.lastSeq = header.Seq
		r.seenSeq = true
	}

	return header, r.payload, nil
}
