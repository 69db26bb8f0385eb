package feed

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
	"github.com/yanun0323/pkg/ws"

	"frontrun/internal/bus"
	"frontrun/internal/codec"
	"frontrun/internal/obs"
	"frontrun/internal/schema"
)

const (
	binanceBaseWsURL       = "wss://stream.binance.com:9443/ws"
	binanceMarketOnlyWsURL = "wss://data-stream.binance.vision"
)

// SourceBinance tags events produced by this adapter.
const SourceBinance uint16 = 1

// Config describes one symbol subscription.
type Config struct {
	URL           string
	Symbol        string
	SymbolID      uint32
	Scale         schema.ScaleSpec
	SnapshotDepth int
}

func (c Config) withDefaults() Config {
	if c.URL == "" {
		c.URL = binanceBaseWsURL
	}
	if c.SnapshotDepth == 0 {
		c.SnapshotDepth = 20
	}
	return c
}

// Validate checks if the configuration is usable.
func (c Config) Validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("invalid feed config: Symbol is empty")
	}
	if c.SymbolID == 0 {
		return fmt.Errorf("invalid feed config: SymbolID is zero")
	}
	switch c.SnapshotDepth {
	case 5, 10, 20:
	default:
		return fmt.Errorf("invalid feed config: SnapshotDepth must be 5, 10 or 20")
	}
	return nil
}

// Binance streams public depth and trade data into the event bus.
type Binance struct {
	cfg   Config
	wss   *ws.WebSocket
	out   *bus.Queue
	trace *obs.TraceGenerator

	seq       atomic.Uint64
	lastRecv  atomic.Int64
	malformed atomic.Uint64
}

// NewBinance creates the adapter. out is the market data queue; its policy
// decides what happens under backpressure.
func NewBinance(ctx context.Context, cfg Config, out *bus.Queue) (*Binance, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Binance{
		cfg:   cfg,
		wss:   ws.New(ctx, cfg.URL),
		out:   out,
		trace: obs.NewTraceGenerator(0),
	}, nil
}

// Start opens the websocket connection.
func (b *Binance) Start(ctx context.Context) error {
	if err := b.wss.Start(ctx); err != nil {
		return errors.Wrap(err, "start wss")
	}
	b.lastRecv.Store(time.Now().UTC().UnixNano())
	return nil
}

// Close tears the connection down.
func (b *Binance) Close() {
	b.wss.Close()
}

// LastRecv returns the receive time of the most recent parsed message.
func (b *Binance) LastRecv() int64 {
	return b.lastRecv.Load()
}

// DisconnectedFor returns how long the stream has been silent.
func (b *Binance) DisconnectedFor(now int64) time.Duration {
	last := b.lastRecv.Load()
	if last == 0 || now <= last {
		return 0
	}
	return time.Duration(now - last)
}

// Malformed returns the count of messages dropped as unparseable.
func (b *Binance) Malformed() uint64 {
	return b.malformed.Load()
}

type subscribeRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

type subscribeResponse struct {
	ID     int64 `json:"id"`
	Result any   `json:"result"`
}

func (b *Binance) subscribe(ctx context.Context, stream string, id int64) error {
	if err := b.wss.SendAndWait(ctx, ws.Sidecar{
		Sender: func(ctx context.Context, conn *ws.WebSocket) error {
			payload := subscribeRequest{
				Method: "SUBSCRIBE",
				Params: []string{stream},
				ID:     id,
			}
			if err := conn.WriteJSON(payload); err != nil {
				return errors.Wrap(err, "write subscribe payload").With("payload", payload)
			}
			return nil
		},
		Waiter: func(ctx context.Context, m ws.Message) (bool, error) {
			var resp subscribeResponse
			if err := m.Unmarshal(&resp); err != nil || resp.ID != id {
				return false, nil
			}
			if resp.Result != nil {
				return false, errors.Errorf("subscribe rejected: %+v", resp.Result)
			}
			return true, nil
		},
	}, true); err != nil {
		return errors.Wrap(err, "send and wait")
	}
	return nil
}

// SubscribeDepth subscribes the partial book depth stream at 100ms.
func (b *Binance) SubscribeDepth(ctx context.Context) error {
	stream := fmt.Sprintf("%s@depth%d@100ms", strings.ToLower(b.cfg.Symbol), b.cfg.SnapshotDepth)
	return b.subscribe(ctx, stream, 1)
}

// SubscribeTrades subscribes the raw trade stream.
func (b *Binance) SubscribeTrades(ctx context.Context) error {
	stream := fmt.Sprintf("%s@trade", strings.ToLower(b.cfg.Symbol))
	return b.subscribe(ctx, stream, 2)
}

type partialBookDepth struct {
	LastUpdateID int64       `json:"lastUpdateId"`
	Bids         [][2]string `json:"bids"`
	Asks         [][2]string `json:"asks"`
}

type tradeEvent struct {
	EventType    string `json:"e"`
	EventTime    int64  `json:"E"`
	Symbol       string `json:"s"`
	TradeID      uint64 `json:"t"`
	Price        string `json:"p"`
	Qty          string `json:"q"`
	BuyerIsMaker bool   `json:"m"`
}

// Observe consumes raw messages, parses them and publishes schema events.
// Malformed messages are dropped and counted, never fatal.
func (b *Binance) Observe(ctx context.Context) (unsubscribe func()) {
	ch, cancel := b.wss.Subscribe()

	go func() {
		defer cancel()
		for {
			select {
			case <-sys.Shutdown():
				return
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}
				b.handleMessage(ctx, m)
			}
		}
	}()

	return cancel
}

func (b *Binance) handleMessage(ctx context.Context, m ws.Message) {
	now := time.Now().UTC().UnixNano()

	if trade, ok := ws.ReadMessage[tradeEvent](m); ok && trade.EventType == "trade" {
		b.lastRecv.Store(now)
		b.publishTrade(ctx, trade, now)
		return
	}
	if depth, ok := ws.ReadMessage[partialBookDepth](m); ok && depth.LastUpdateID > 0 {
		b.lastRecv.Store(now)
		b.publishSnapshot(ctx, depth, now)
		return
	}
	b.malformed.Add(1)
}

func (b *Binance) publishTrade(ctx context.Context, t tradeEvent, now int64) {
	price, err := ParseScaled(t.Price, b.cfg.Scale.PriceScale)
	if err != nil {
		b.malformed.Add(1)
		logs.Warnf("drop trade: %v", err)
		return
	}
	qty, err := ParseScaled(t.Qty, b.cfg.Scale.QuantityScale)
	if err != nil {
		b.malformed.Add(1)
		logs.Warnf("drop trade: %v", err)
		return
	}

	// the taker is on the opposite side of the maker
	aggressor := schema.OrderSideBuy
	if t.BuyerIsMaker {
		aggressor = schema.OrderSideSell
	}

	payload := schema.Trade{
		SymbolID:  b.cfg.SymbolID,
		Aggressor: aggressor,
		TradeID:   t.TradeID,
		Price:     schema.Price(price),
		Qty:       schema.Quantity(qty),
	}
	header := schema.NewHeader(schema.EventTrade, SourceBinance, b.seq.Add(1), t.EventTime*int64(time.Millisecond), now)
	header.TraceID = b.trace.Next()
	b.publishEvent(ctx, header, codec.EncodeTrade(nil, payload))
}

func (b *Binance) publishSnapshot(ctx context.Context, d partialBookDepth, now int64) {
	snap := schema.BookSnapshot{
		SymbolID: b.cfg.SymbolID,
		BookSeq:  uint64(d.LastUpdateID),
		Bids:     make([]schema.BookLevel, 0, len(d.Bids)),
		Asks:     make([]schema.BookLevel, 0, len(d.Asks)),
	}
	for _, pair := range d.Bids {
		lv, err := parseLevel(pair, b.cfg.Scale)
		if err != nil {
			b.malformed.Add(1)
			logs.Warnf("drop snapshot: %v", err)
			return
		}
		snap.Bids = append(snap.Bids, lv)
	}
	for _, pair := range d.Asks {
		lv, err := parseLevel(pair, b.cfg.Scale)
		if err != nil {
			b.malformed.Add(1)
			logs.Warnf("drop snapshot: %v", err)
			return
		}
		snap.Asks = append(snap.Asks, lv)
	}

	header := schema.NewHeader(schema.EventBookSnapshot, SourceBinance, b.seq.Add(1), now, now)
	header.TraceID = b.trace.Next()
	b.publishEvent(ctx, header, codec.EncodeBookSnapshot(nil, snap))
}

func (b *Binance) publishEvent(ctx context.Context, header schema.EventHeader, payload []byte) {
	if err := b.out.Publish(ctx, bus.Event{Header: header, Payload: payload}); err != nil {
		logs.Warnf("publish %s: %v", header.Type, err)
	}
}
