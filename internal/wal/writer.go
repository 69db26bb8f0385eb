package wal

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"frontrun/internal/schema"
)

var (
	ErrQueueFull       = errors.New("wal queue full")
	ErrClosed          = errors.New("wal writer closed")
	ErrNotStarted      = errors.New("wal writer not started")
	ErrAlreadyStarted  = errors.New("wal writer already started")
	ErrPayloadTooLarge = errors.New("wal payload too large")
)

const maxPayloadLen = uint64(^uint32(0))

// Writer appends events to WAL segments from a buffered queue.
// Enqueue order is write order, so one producer per writer keeps records
// sequenced.
type Writer struct {
	cfg Config
	ch  chan appendRequest
	wg  sync.WaitGroup
	err atomic.Value

	started uint32
	closed  uint32
	dropped uint64
}

// NewWriter creates a WAL writer and ensures the target directory exists.
func NewWriter(cfg Config) (*Writer, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}
	return &Writer{
		cfg: cfg,
		ch:  make(chan appendRequest, cfg.QueueSize),
	}, nil
}

// Start runs the writer loop in a new goroutine.
func (w *Writer) Start(ctx context.Context) error {
	if !atomic.CompareAndSwapUint32(&w.started, 0, 1) {
		return ErrAlreadyStarted
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()
	return nil
}

// Close stops the writer and flushes any buffered data.
func (w *Writer) Close() error {
	if atomic.CompareAndSwapUint32(&w.closed, 0, 1) {
		close(w.ch)
	}
	w.wg.Wait()
	return w.Err()
}

// Err returns the first error observed by the writer, if any.
func (w *Writer) Err() error {
	if v := w.err.Load(); v != nil {
		return v.(error)
	}
	return nil
}

// Dropped returns the number of events rejected because the queue was full.
func (w *Writer) Dropped() uint64 {
	return atomic.LoadUint64(&w.dropped)
}

// TryAppend enqueues an event without blocking. Callers on the hot path use
// this form and accept the drop when the queue is full.
func (w *Writer) TryAppend(header schema.EventHeader, payload []byte) error {
	req, err := w.prepare(header, payload)
	if err != nil {
		return err
	}
	select {
	case w.ch <- req:
		return nil
	default:
		atomic.AddUint64(&w.dropped, 1)
		return ErrQueueFull
	}
}

// Append enqueues an event, blocking until the queue accepts it or the
// context is done. Capture paths that must not lose records use this form.
func (w *Writer) Append(ctx context.Context, header schema.EventHeader, payload []byte) error {
	req, err := w.prepare(header, payload)
	if err != nil {
		return err
	}
	select {
	case w.ch <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Writer) prepare(header schema.EventHeader, payload []byte) (appendRequest, error) {
	if atomic.LoadUint32(&w.closed) != 0 {
		return appendRequest{}, ErrClosed
	}
	if atomic.LoadUint32(&w.started) == 0 {
		return appendRequest{}, ErrNotStarted
	}
	if err := w.Err(); err != nil {
		return appendRequest{}, err
	}
	if uint64(len(payload)) > maxPayloadLen {
		return appendRequest{}, ErrPayloadTooLarge
	}
	if header.Version == 0 {
		header.Version = schema.SchemaVersion
	}
	if w.cfg.CopyPayload && len(payload) > 0 {
		cp := make([]byte, len(payload))
		copy(cp, payload)
		payload = cp
	}
	return appendRequest{header: header, payload: payload}, nil
}

func (w *Writer) run(ctx context.Context) {
	var (
		seg         *segment
		segID       uint64
		headerBuf   = make([]byte, recordHeaderSize)
		checksumBuf [recordChecksumSize]byte
		flushC      <-chan time.Time
		syncC       <-chan time.Time
		flushTicker *time.Ticker
		syncTicker  *time.Ticker
	)

	if w.cfg.FlushInterval > 0 {
		flushTicker = time.NewTicker(w.cfg.FlushInterval)
		flushC = flushTicker.C
	}
	if w.cfg.SyncInterval > 0 {
		syncTicker = time.NewTicker(w.cfg.SyncInterval)
		syncC = syncTicker.C
	}

	defer func() {
		if flushTicker != nil {
			flushTicker.Stop()
		}
		if syncTicker != nil {
			syncTicker.Stop()
		}
		if err := closeSegment(seg); err != nil && w.Err() == nil {
			w.setErr(err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			w.drain(&seg, &segID, headerBuf, &checksumBuf)
			return
		case req, ok := <-w.ch:
			if !ok {
				return
			}
			if err := w.writeRecord(&seg, &segID, headerBuf, &checksumBuf, req); err != nil {
				w.setErr(err)
				return
			}
		case <-flushC:
			if err := flushSegment(seg); err != nil {
				w.setErr(err)
				return
			}
		case <-syncC:
			if err := syncSegment(seg); err != nil {
				w.setErr(err)
				return
			}
		}
	}
}

func (w *Writer) drain(seg **segment, segID *uint64, headerBuf []byte, checksumBuf *[recordChecksumSize]byte) {
	for {
		select {
		case req, ok := <-w.ch:
			if !ok {
				return
			}
			if err := w.writeRecord(seg, segID, headerBuf, checksumBuf, req); err != nil {
				w.setErr(err)
				return
			}
		default:
			return
		}
	}
}

func (w *Writer) writeRecord(seg **segment, segID *uint64, headerBuf []byte, checksumBuf *[recordChecksumSize]byte, req appendRequest) error {
	recordSize := int64(recordHeaderSize + len(req.payload) + recordChecksumSize)
	if *seg == nil || (*seg).size+recordSize > w.cfg.SegmentMaxBytes {
		if err := closeSegment(*seg); err != nil {
			return err
		}
		opened, err := w.openSegment(segID)
		if err != nil {
			return err
		}
		*seg = opened
	}

	encodeRecordHeader(headerBuf, req.header, len(req.payload))
	sum := recordChecksum(headerBuf, req.payload)
	binary.LittleEndian.PutUint32(checksumBuf[:], sum)

	if _, err := (*seg).buf.Write(headerBuf); err != nil {
		return err
	}
	if len(req.payload) > 0 {
		if _, err := (*seg).buf.Write(req.payload); err != nil {
			return err
		}
	}
	if _, err := (*seg).buf.Write(checksumBuf[:]); err != nil {
		return err
	}

	(*seg).size += recordSize
	return nil
}

func (w *Writer) openSegment(segID *uint64) (*segment, error) {
	ts := time.Now().UTC().Format("20060102-150405")
	for {
		*segID = *segID + 1
		name := fmt.Sprintf("%s-%s-%06d%s", w.cfg.FilePrefix, ts, *segID, fileExt)
		path := filepath.Join(w.cfg.Dir, name)
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
		if err != nil {
			if errors.Is(err, os.ErrExist) {
				continue
			}
			return nil, err
		}
		return &segment{
			file: file,
			buf:  bufio.NewWriterSize(file, w.cfg.BufferSize),
		}, nil
	}
}

func (w *Writer) setErr(err error) {
	if err == nil {
		return
	}
	if w.err.Load() != nil {
		return
	}
	w.err.Store(err)
}

func flushSegment(seg *segment) error {
	if seg == nil {
		return nil
	}
	return seg.buf.Flush()
}

func syncSegment(seg *segment) error {
	if seg == nil {
		return nil
	}
	if err := seg.buf.Flush(); err != nil {
		return err
	}
	return seg.file.Sync()
}

func closeSegment(seg *segment) error {
	if seg == nil {
		return nil
	}
	if err := seg.buf.Flush(); err != nil {
		_ = seg.file.Close()
		return err
	}
	if err := seg.file.Sync(); err != nil {
		_ = seg.file.Close()
		return err
	}
	return seg.file.Close()
}

type appendRequest struct {
	header  schema.EventHeader
	payload []byte
}

type segment struct {
	file *os.File
	buf  *bufio.Writer
	size int64
}
