/*
Core implements the strategy pipeline.

# Module
  - pipeline: decodes bus events into book and flow state, evaluates the
    detector set and hands composite signals to execution
  - runner: single thread event loop over the in-memory bus, with optional
    WAL capture and tick latency accounting

# Source
 1. market data from the live feed adapter
 2. WAL replay from the backtest engine

# Produce
  - order intents to the execution gateway
*/
package core
