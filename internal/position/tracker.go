package position

import (
	"errors"
	"sync"

	"frontrun/internal/schema"
)

var (
	ErrNotFound      = errors.New("position not found")
	ErrAlreadyClosed = errors.New("position already closed")
	ErrDuplicateID   = errors.New("position id already open")
)

// Status is the lifecycle state of a position.
type Status uint8

const (
	StatusOpen Status = iota + 1
	StatusClosed
)

// Position is one directional holding. All monetary fields are scaled ints.
type Position struct {
	ID          uint64
	SymbolID    uint32
	Side        schema.OrderSide
	EntryPrice  schema.Price
	ExitPrice   schema.Price
	Qty         schema.Quantity
	Notional    schema.Notional
	Fees        schema.Fee
	RealizedPnL schema.Notional
	EntryTs     int64
	ExitTs      int64
	Status      Status
}

// Tracker holds open positions and the archive of closed ones. Writers are
// the trading loop; readers may snapshot concurrently.
type Tracker struct {
	mu           sync.RWMutex
	open         map[uint64]*Position
	closed       []Position
	equityOffset schema.Notional
	realized     schema.Notional
	peakEquity   schema.Notional
	scaleDiv     int64
}

// NewTracker creates a tracker with a starting equity base. qtyScale is the
// quantity scale of the traded symbols; price*qty products divide by
// 10^qtyScale to land back on the notional scale.
func NewTracker(startingEquity schema.Notional, qtyScale schema.Scale) *Tracker {
	div := int64(1)
	for i := schema.Scale(0); i < qtyScale; i++ {
		div *= 10
	}
	return &Tracker{
		open:         make(map[uint64]*Position),
		equityOffset: startingEquity,
		peakEquity:   startingEquity,
		scaleDiv:     div,
	}
}

// Open records a filled entry.
func (t *Tracker) Open(p Position) error {
	if p.Qty <= 0 || p.EntryPrice <= 0 {
		return errors.New("position entry price and qty must be > 0")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.open[p.ID]; ok {
		return ErrDuplicateID
	}
	p.Status = StatusOpen
	if p.Notional == 0 {
		p.Notional = t.notionalOf(p.EntryPrice, p.Qty)
	}
	t.open[p.ID] = &p
	return nil
}

// Close settles a position at the exit price and archives it. The realized
// PnL is the side-signed price difference times quantity minus all fees,
// computed exactly in scaled ints.
func (t *Tracker) Close(id uint64, exitPrice schema.Price, exitFee schema.Fee, ts int64) (Position, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.open[id]
	if !ok {
		for i := range t.closed {
			if t.closed[i].ID == id {
				return Position{}, ErrAlreadyClosed
			}
		}
		return Position{}, ErrNotFound
	}

	p.ExitPrice = exitPrice
	p.ExitTs = ts
	p.Fees += exitFee
	p.RealizedPnL = t.pnlOf(p.Side, p.EntryPrice, exitPrice, p.Qty) - schema.Notional(p.Fees)
	p.Status = StatusClosed

	t.realized += p.RealizedPnL
	equity := t.equityOffset + t.realized
	if equity > t.peakEquity {
		t.peakEquity = equity
	}

	delete(t.open, id)
	t.closed = append(t.closed, *p)
	return *p, nil
}

// Get returns an open position by ID.
func (t *Tracker) Get(id uint64) (Position, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.open[id]
	if !ok {
		return Position{}, false
	}
	return *p, true
}

// OpenPositions returns a copy of all open positions.
func (t *Tracker) OpenPositions() []Position {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Position, 0, len(t.open))
	for _, p := range t.open {
		out = append(out, *p)
	}
	return out
}

// OpenCount returns the number of open positions.
func (t *Tracker) OpenCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.open)
}

// Closed returns the archive of settled positions in close order.
func (t *Tracker) Closed() []Position {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Position, len(t.closed))
	copy(out, t.closed)
	return out
}

// Exposure returns the summed entry notional of open positions.
func (t *Tracker) Exposure() schema.Notional {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var total schema.Notional
	for _, p := range t.open {
		total += p.Notional
	}
	return total
}

// UnrealizedPnL marks all open positions for one symbol against mark.
func (t *Tracker) UnrealizedPnL(symbolID uint32, mark schema.Price) schema.Notional {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var total schema.Notional
	for _, p := range t.open {
		if p.SymbolID != symbolID {
			continue
		}
		total += t.pnlOf(p.Side, p.EntryPrice, mark, p.Qty)
	}
	return total
}

// Realized returns the lifetime realized PnL.
func (t *Tracker) Realized() schema.Notional {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.realized
}

// Equity returns starting equity plus lifetime realized PnL.
func (t *Tracker) Equity() schema.Notional {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.equityOffset + t.realized
}

// PeakEquity returns the highest equity observed at a close.
func (t *Tracker) PeakEquity() schema.Notional {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.peakEquity
}

// DrawdownBps returns the current peak-to-equity drawdown in basis points.
func (t *Tracker) DrawdownBps() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.peakEquity <= 0 {
		return 0
	}
	equity := t.equityOffset + t.realized
	if equity >= t.peakEquity {
		return 0
	}
	return int64(t.peakEquity-equity) * 10000 / int64(t.peakEquity)
}

// pnlOf is the side-signed price difference times quantity. The quantity
// scale divides out so the result carries the notional scale.
func (t *Tracker) pnlOf(side schema.OrderSide, entry, exit schema.Price, qty schema.Quantity) schema.Notional {
	diff := int64(exit) - int64(entry)
	if side == schema.OrderSideSell {
		diff = -diff
	}
	return schema.Notional(diff * int64(qty) / t.scaleDiv)
}

func (t *Tracker) notionalOf(price schema.Price, qty schema.Quantity) schema.Notional {
	return schema.Notional(int64(price) * int64(qty) / t.scaleDiv)
}
