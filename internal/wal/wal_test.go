package wal

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"frontrun/internal/codec"
	"frontrun/internal/schema"
)

func writeEvents(t *testing.T, dir string, count int) {
	t.Helper()

	w, err := NewWriter(Config{Dir: dir, CopyPayload: true})
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("start writer: %v", err)
	}

	for i := 0; i < count; i++ {
		du := schema.DepthUpdate{
			SymbolID: 1,
			Side:     schema.OrderSideBuy,
			Price:    schema.Price(100_0000_0000 + int64(i)),
			Qty:      schema.Quantity(5_0000_0000),
			BookSeq:  uint64(i + 1),
		}
		header := schema.EventHeader{
			Type:    schema.EventDepthUpdate,
			Seq:     uint64(i + 1),
			TsEvent: int64(1_700_000_000_000 + i),
			TsRecv:  int64(1_700_000_000_001 + i),
		}
		if err := w.Append(context.Background(), header, codec.EncodeDepthUpdate(nil, du)); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
}

func TestWriteAndPlaybackRoundTrip(t *testing.T) {
	dir := t.TempDir()
	writeEvents(t, dir, 50)

	pb, err := NewPlayback(PlaybackConfig{Dir: dir, StrictSeq: true})
	if err != nil {
		t.Fatalf("new playback: %v", err)
	}

	var got int
	err = pb.Run(context.Background(), func(header schema.EventHeader, payload []byte) error {
		if header.Type != schema.EventDepthUpdate {
			t.Fatalf("unexpected event type %v", header.Type)
		}
		du, ok := codec.DecodeDepthUpdate(payload)
		if !ok {
			t.Fatal("decode depth update failed")
		}
		if du.BookSeq != header.Seq {
			t.Fatalf("book seq %d != header seq %d", du.BookSeq, header.Seq)
		}
		got++
		return nil
	})
	if err != nil {
		t.Fatalf("playback: %v", err)
	}
	if got != 50 {
		t.Fatalf("replayed %d events, want 50", got)
	}
}

func TestPlaybackTimeBounds(t *testing.T) {
	dir := t.TempDir()
	writeEvents(t, dir, 10)

	pb, err := NewPlayback(PlaybackConfig{
		Dir:    dir,
		FromTs: 1_700_000_000_003,
		ToTs:   1_700_000_000_006,
	})
	if err != nil {
		t.Fatalf("new playback: %v", err)
	}

	var got int
	if err := pb.Run(context.Background(), func(schema.EventHeader, []byte) error {
		got++
		return nil
	}); err != nil {
		t.Fatalf("playback: %v", err)
	}
	if got != 4 {
		t.Fatalf("replayed %d events, want 4", got)
	}
}

func TestReaderDetectsCorruption(t *testing.T) {
	dir := t.TempDir()
	writeEvents(t, dir, 1)

	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("read dir: %v entries=%d", err, len(entries))
	}
	path := filepath.Join(dir, entries[0].Name())
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	data[recordHeaderSize+3] ^= 0xFF
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	pb, err := NewPlayback(PlaybackConfig{Dir: dir})
	if err != nil {
		t.Fatalf("new playback: %v", err)
	}
	err = pb.Run(context.Background(), func(schema.EventHeader, []byte) error { return nil })
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("got %v, want checksum mismatch", err)
	}
}

func TestTryAppendReportsQueueFull(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(Config{Dir: dir, QueueSize: 1})
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	if err := w.TryAppend(schema.EventHeader{}, nil); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("got %v, want not started", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("start writer: %v", err)
	}

	full := false
	for i := 0; i < 64; i++ {
		if err := w.TryAppend(schema.EventHeader{Type: schema.EventTrade}, nil); errors.Is(err, ErrQueueFull) {
			full = true
			break
		}
	}
	if full && w.Dropped() == 0 {
		t.Fatal("queue full but drop counter is zero")
	}
	_ = w.Close()
}
