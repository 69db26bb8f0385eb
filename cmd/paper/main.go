package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/yanun0323/logs"

	"frontrun/internal/backtest"
	"frontrun/internal/book"
	"frontrun/internal/bus"
	"frontrun/internal/core"
	"frontrun/internal/exec"
	"frontrun/internal/feed"
	"frontrun/internal/obs"
	"frontrun/internal/ops"
	"frontrun/internal/position"
	"frontrun/internal/risk"
)

// paper runs the live feed against the fill simulator and narrates every
// round trip. No WAL, no venue; a session summary prints on shutdown.
func main() {
	if err := run(); err != nil {
		log.Printf("paper: %v", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "config.yaml", "path to YAML or JSON config")
	queueSize := flag.Int("queue-size", 8192, "market data queue capacity")
	flag.Parse()

	loaded, err := ops.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	now := time.Now().UTC().UnixNano()
	breaker, err := risk.NewManager(loaded.Risk, now)
	if err != nil {
		return err
	}
	tracker := position.NewTracker(loaded.StartingEquity, loaded.Exec.QtyScale)
	books := book.NewMarketState()
	gateway := backtest.NewSimGateway(books, loaded.Backtest, loaded.Exec.QtyScale)
	engine, err := exec.NewEngine(loaded.Exec, gateway, breaker, tracker)
	if err != nil {
		return err
	}

	metrics := obs.NewMetrics()
	pipe := core.NewPipeline(loaded.Strategy, loaded.Feed.SymbolID, books, engine, metrics)

	queue := bus.NewQueue(*queueSize, bus.DropOldest)
	binance, err := feed.NewBinance(ctx, loaded.Feed, queue)
	if err != nil {
		return err
	}
	if err := binance.Start(ctx); err != nil {
		return err
	}
	defer binance.Close()
	if err := binance.SubscribeDepth(ctx); err != nil {
		return err
	}
	if err := binance.SubscribeTrades(ctx); err != nil {
		return err
	}
	unsubscribe := binance.Observe(ctx)
	defer unsubscribe()

	monitor := feed.NewMonitor(binance, breaker, loaded.Risk.DisconnectHalt, func(ctx context.Context) error {
		if err := binance.SubscribeDepth(ctx); err != nil {
			return err
		}
		return binance.SubscribeTrades(ctx)
	})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		monitor.Run(ctx)
	}()

	logs.Infof("paper session started: symbol=%s equity=%d", loaded.Feed.Symbol, loaded.StartingEquity)

	var trades int
	queue.Run(ctx, func(e bus.Event) {
		now := time.Now().UTC().UnixNano()
		if err := pipe.Apply(e); err != nil {
			logs.Warnf("apply %s seq %d: %v", e.Header.Type, e.Header.Seq, err)
			return
		}
		if sig, ok := pipe.Evaluate(e.Header.TsEvent); ok {
			decision, err := pipe.SubmitSignal(ctx, sig, now)
			if err != nil {
				logs.Warnf("entry skipped: %v", err)
			} else {
				logs.Infof("entry: dir=%s confidence=%.3f action=%v", sig.Direction, sig.Confidence, decision.Action)
			}
		}
		closed, err := pipe.EvalExits(ctx, now)
		if err != nil {
			logs.Errorf("exits: %v", err)
			return
		}
		for _, c := range closed {
			trades++
			p := c.Position
			logs.Infof("closed #%d: %s %s entry=%d exit=%d qty=%d pnl=%d fees=%d held=%s",
				trades, p.Side, c.Reason, p.EntryPrice, p.ExitPrice, p.Qty,
				p.RealizedPnL, p.Fees, time.Duration(p.ExitTs-p.EntryTs))
		}
	})

	stop()
	queue.Close()
	wg.Wait()

	snap := metrics.Snapshot()
	logs.Infof("paper session ended: trades=%d realized=%d equity=%d rejects=%d stale=%d malformed=%d",
		trades, tracker.Realized(), tracker.Equity(), gateway.Rejects(),
		snap.StaleDrops, snap.MalformedDrops)
	return nil
}
