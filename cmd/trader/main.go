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

	pyroscope "github.com/grafana/pyroscope-go"
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
	"frontrun/internal/wal"
)

func main() {
	if err := run(); err != nil {
		log.Printf("trader: %v", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "config.yaml", "path to YAML or JSON config")
	queueSize := flag.Int("queue-size", 8192, "market data queue capacity")
	statsInterval := flag.Duration("stats-interval", 30*time.Second, "metrics log interval (0=disable)")
	pyroscopeAddr := flag.String("pyroscope", "", "pyroscope server address (empty=off)")
	flag.Parse()

	loaded, err := ops.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *pyroscopeAddr != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "frontrun.trader",
			ServerAddress:   *pyroscopeAddr,
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			return fmt.Errorf("start pyroscope: %w", err)
		}
		defer func() { _ = profiler.Stop() }()
	}

	now := time.Now().UTC().UnixNano()
	breaker, err := risk.NewManager(loaded.Risk, now)
	if err != nil {
		return err
	}
	tracker := position.NewTracker(loaded.StartingEquity, loaded.Exec.QtyScale)
	books := book.NewMarketState()

	// The wire client to the venue is an external collaborator; fills come
	// from the simulator against the live book until one is linked in.
	gateway := backtest.NewSimGateway(books, loaded.Backtest, loaded.Exec.QtyScale)
	engine, err := exec.NewEngine(loaded.Exec, gateway, breaker, tracker)
	if err != nil {
		return err
	}

	metrics := obs.NewMetrics()
	pipe := core.NewPipeline(loaded.Strategy, loaded.Feed.SymbolID, books, engine, metrics)

	var capture *wal.Writer
	if loaded.WALEnabled {
		capture, err = wal.NewWriter(loaded.WAL)
		if err != nil {
			return err
		}
		if err := capture.Start(ctx); err != nil {
			return err
		}
	}

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
	if *statsInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logStats(ctx, *statsInterval, metrics, tracker)
		}()
	}

	logs.Infof("trader started: symbol=%s equity=%d wal=%v", loaded.Feed.Symbol, loaded.StartingEquity, loaded.WALEnabled)

	runner := core.NewRunner(queue, pipe, capture, metrics)
	runner.Run(ctx)

	stop()
	queue.Close()
	wg.Wait()
	if capture != nil {
		if err := capture.Close(); err != nil {
			logs.Errorf("wal close: %v", err)
		}
	}

	snap := metrics.Snapshot()
	logs.Infof("trader stopped: events=%v stale=%d malformed=%d queue_drops=%d open=%d equity=%d",
		snap.EventCounts, snap.StaleDrops, snap.MalformedDrops, snap.QueueDrops,
		tracker.OpenCount(), tracker.Equity())
	return nil
}

func logStats(ctx context.Context, interval time.Duration, metrics *obs.Metrics, tracker *position.Tracker) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := metrics.Snapshot()
			logs.Infof("stats: tick_avg=%s tick_max=%s stale=%d malformed=%d queue_drops=%d open=%d equity=%d",
				snap.TickLatency.Avg, snap.TickLatency.Max,
				snap.StaleDrops, snap.MalformedDrops, snap.QueueDrops,
				tracker.OpenCount(), tracker.Equity())
		}
	}
}
