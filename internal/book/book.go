package book

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/btree"

	"frontrun/internal/schema"
)

var (
	ErrStaleUpdate   = errors.New("book stale update")
	ErrNegativeValue = errors.New("book negative price or quantity")
	ErrUnknownSide   = errors.New("book unknown side")
)

const treeDegree = 32

// bookSide holds one side's levels sorted best-first. Each side has its own
// lock so readers of one side never block on a writer updating the other.
// Cross-side atomicity is not guaranteed.
type bookSide struct {
	mu   sync.RWMutex
	tree *btree.BTreeG[schema.BookLevel]
}

func newSide(less btree.LessFunc[schema.BookLevel]) *bookSide {
	return &bookSide{tree: btree.NewG(treeDegree, less)}
}

func (s *bookSide) upsert(lv schema.BookLevel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lv.Qty == 0 {
		s.tree.Delete(lv)
		return
	}
	s.tree.ReplaceOrInsert(lv)
}

func (s *bookSide) replace(levels []schema.BookLevel, less btree.LessFunc[schema.BookLevel]) {
	tree := btree.NewG(treeDegree, less)
	for _, lv := range levels {
		if lv.Qty <= 0 || lv.Price < 0 {
			continue
		}
		tree.ReplaceOrInsert(lv)
	}
	s.mu.Lock()
	s.tree = tree
	s.mu.Unlock()
}

func (s *bookSide) best() (schema.BookLevel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.Min()
}

// depth returns the cumulative quantity of the top n levels.
func (s *bookSide) depth(n int) schema.Quantity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total schema.Quantity
	count := 0
	s.tree.Ascend(func(lv schema.BookLevel) bool {
		if count >= n {
			return false
		}
		total += lv.Qty
		count++
		return true
	})
	return total
}

func (s *bookSide) levels(n int) []schema.BookLevel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]schema.BookLevel, 0, n)
	s.tree.Ascend(func(lv schema.BookLevel) bool {
		if n > 0 && len(out) >= n {
			return false
		}
		out = append(out, lv)
		return true
	})
	return out
}

func (s *bookSide) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.Len()
}

// Book is the live order book for one symbol.
type Book struct {
	symbolID uint32
	bids     *bookSide
	asks     *bookSide
	lastSeq  atomic.Uint64
	stale    atomic.Uint64
}

func bidLess(a, b schema.BookLevel) bool { return a.Price > b.Price }
func askLess(a, b schema.BookLevel) bool { return a.Price < b.Price }

// New creates an empty book for a symbol.
func New(symbolID uint32) *Book {
	return &Book{
		symbolID: symbolID,
		bids:     newSide(bidLess),
		asks:     newSide(askLess),
	}
}

// SymbolID returns the symbol this book tracks.
func (b *Book) SymbolID() uint32 { return b.symbolID }

// ApplyDepth applies one incremental level update. Updates at or behind the
// last applied sequence are dropped and counted.
func (b *Book) ApplyDepth(du schema.DepthUpdate) error {
	if du.Price < 0 || du.Qty < 0 {
		return ErrNegativeValue
	}
	for {
		last := b.lastSeq.Load()
		if du.BookSeq <= last {
			b.stale.Add(1)
			return ErrStaleUpdate
		}
		if b.lastSeq.CompareAndSwap(last, du.BookSeq) {
			break
		}
	}

	lv := schema.BookLevel{Price: du.Price, Qty: du.Qty}
	switch du.Side {
	case schema.OrderSideBuy:
		b.bids.upsert(lv)
	case schema.OrderSideSell:
		b.asks.upsert(lv)
	default:
		return ErrUnknownSide
	}
	return nil
}

// ApplySnapshot replaces all levels of both sides and resets the seq gate.
func (b *Book) ApplySnapshot(snap schema.BookSnapshot) {
	b.bids.replace(snap.Bids, bidLess)
	b.asks.replace(snap.Asks, askLess)
	b.lastSeq.Store(snap.BookSeq)
}

// BestBid returns the highest bid level.
func (b *Book) BestBid() (schema.BookLevel, bool) { return b.bids.best() }

// BestAsk returns the lowest ask level.
func (b *Book) BestAsk() (schema.BookLevel, bool) { return b.asks.best() }

// MidPrice returns the midpoint of the best bid and ask.
func (b *Book) MidPrice() (schema.Price, bool) {
	bid, ok := b.bids.best()
	if !ok {
		return 0, false
	}
	ask, ok := b.asks.best()
	if !ok {
		return 0, false
	}
	return (bid.Price + ask.Price) / 2, true
}

// Depth returns the cumulative quantity of the top n levels of a side.
func (b *Book) Depth(side schema.OrderSide, n int) schema.Quantity {
	switch side {
	case schema.OrderSideBuy:
		return b.bids.depth(n)
	case schema.OrderSideSell:
		return b.asks.depth(n)
	default:
		return 0
	}
}

// Levels returns up to n levels of a side, best first. n <= 0 means all.
func (b *Book) Levels(side schema.OrderSide, n int) []schema.BookLevel {
	switch side {
	case schema.OrderSideBuy:
		return b.bids.levels(n)
	case schema.OrderSideSell:
		return b.asks.levels(n)
	default:
		return nil
	}
}

// Imbalance returns the bid and ask cumulative quantities over the top n
// levels. The caller derives the ratio; both zero means an empty window.
func (b *Book) Imbalance(n int) (schema.Quantity, schema.Quantity) {
	return b.bids.depth(n), b.asks.depth(n)
}

// Snapshot captures the current levels of both sides.
func (b *Book) Snapshot() schema.BookSnapshot {
	return schema.BookSnapshot{
		SymbolID: b.symbolID,
		BookSeq:  b.lastSeq.Load(),
		Bids:     b.bids.levels(0),
		Asks:     b.asks.levels(0),
	}
}

// LastSeq returns the last applied book sequence.
func (b *Book) LastSeq() uint64 { return b.lastSeq.Load() }

// StaleDropped returns how many updates were dropped by the seq gate.
func (b *Book) StaleDropped() uint64 { return b.stale.Load() }

// LevelCount returns the number of levels on each side.
func (b *Book) LevelCount() (bids, asks int) {
	return b.bids.len(), b.asks.len()
}
