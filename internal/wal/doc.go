/*
Package wal captures the event stream as an append-only binary log and plays
it back in order.

# Module
  - writer: buffered appender with size-based segment rotation
  - reader: sequential record decoder with checksum validation
  - playback: multi-segment replay with optional timestamp pacing

# Source
  - depth updates, trades and snapshots from the feed adapter
  - order intents, acks, fills and risk decisions from the execution path

# Produce
  - the historical event sequence consumed by backtests and recovery
*/
package wal
