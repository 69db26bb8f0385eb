package book

import "sync"

// MarketState holds one book per symbol.
type MarketState struct {
	mu    sync.RWMutex
	books map[uint32]*Book
}

// NewMarketState creates an empty market state.
func NewMarketState() *MarketState {
	return &MarketState{books: make(map[uint32]*Book)}
}

// Book returns the book for a symbol, creating it on first use.
func (m *MarketState) Book(symbolID uint32) *Book {
	m.mu.RLock()
	b, ok := m.books[symbolID]
	m.mu.RUnlock()
	if ok {
		return b
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.books[symbolID]; ok {
		return b
	}
	b = New(symbolID)
	m.books[symbolID] = b
	return b
}

// StaleDropped sums the stale drop counters of every book.
func (m *MarketState) StaleDropped() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var total uint64
	for _, b := range m.books {
		total += b.StaleDropped()
	}
	return total
}
