package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"frontrun/internal/backtest"
	"frontrun/internal/ops"
)

func main() {
	if err := run(); err != nil {
		log.Printf("backtest: %v", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "config.yaml", "path to YAML or JSON config")
	walDir := flag.String("wal-dir", "", "WAL directory to replay (overrides config)")
	filePrefix := flag.String("prefix", "", "WAL file prefix (overrides config)")
	sqlitePath := flag.String("sqlite", "", "SQLite result database path (empty=no persist)")
	pgDSN := flag.String("pg", "", "PostgreSQL DSN for the result store (empty=no persist)")
	listRuns := flag.Int("list", 0, "list the N most recent stored runs and exit")
	showRun := flag.String("show", "", "print one stored run by ID and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(*sqlitePath, *pgDSN)
	if err != nil {
		return err
	}
	defer closeStore()

	if *listRuns > 0 || *showRun != "" {
		if store == nil {
			return fmt.Errorf("listing runs needs -sqlite or -pg")
		}
		if *showRun != "" {
			return printRun(ctx, store, *showRun)
		}
		return printRuns(ctx, store, *listRuns)
	}

	loaded, err := ops.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	dir := *walDir
	if dir == "" {
		dir = loaded.WAL.Dir
	}
	prefix := *filePrefix
	if prefix == "" {
		prefix = loaded.WAL.FilePrefix
	}

	engine, err := backtest.NewEngine(backtest.Config{
		Strategy:       loaded.Strategy,
		Exec:           loaded.Exec,
		Risk:           loaded.Risk,
		Sim:            loaded.Backtest,
		StartingEquity: loaded.StartingEquity,
		SymbolID:       loaded.Feed.SymbolID,
	})
	if err != nil {
		return err
	}

	started := time.Now()
	res, err := engine.RunWAL(ctx, dir, prefix)
	if err != nil {
		return fmt.Errorf("replay %s: %w", dir, err)
	}
	log.Printf("run %s finished in %s: trades=%d return=%d (%.2f%%)",
		res.RunID, time.Since(started).Round(time.Millisecond),
		res.Summary.TradeCount, res.Summary.TotalReturn, res.Summary.ReturnPct)

	report, err := res.Report()
	if err != nil {
		return err
	}
	fmt.Println(string(report))

	if store != nil {
		if err := store.Save(ctx, res); err != nil {
			return fmt.Errorf("persist run %s: %w", res.RunID, err)
		}
		log.Printf("run %s persisted", res.RunID)
	}
	return nil
}

// openStore picks the result backend: SQLite for local work, postgres when
// runs are shared. Both empty means no persistence.
func openStore(sqlitePath, pgDSN string) (*backtest.Store, func(), error) {
	noop := func() {}
	switch {
	case sqlitePath != "" && pgDSN != "":
		return nil, noop, fmt.Errorf("-sqlite and -pg are mutually exclusive")
	case sqlitePath != "":
		db, err := backtest.OpenSQLite(sqlitePath)
		if err != nil {
			return nil, noop, fmt.Errorf("open sqlite %s: %w", sqlitePath, err)
		}
		store, err := backtest.NewStore(db)
		if err != nil {
			return nil, noop, err
		}
		return store, noop, nil
	case pgDSN != "":
		db, err := backtest.OpenPostgres(pgDSN)
		if err != nil {
			return nil, noop, fmt.Errorf("connect postgres: %w", err)
		}
		store, err := backtest.NewStore(db)
		if err != nil {
			return nil, noop, err
		}
		closeDB := func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}
		return store, closeDB, nil
	default:
		return nil, noop, nil
	}
}

func printRuns(ctx context.Context, store *backtest.Store, limit int) error {
	rows, err := store.List(ctx, limit)
	if err != nil {
		return err
	}
	for _, row := range rows {
		fmt.Printf("%s  symbol=%d  trades=%d  return=%d (%.2f%%)  %s\n",
			row.ID, row.SymbolID, row.TradeCount, row.TotalReturn, row.ReturnPct,
			row.CreatedAt.UTC().Format(time.RFC3339))
	}
	return nil
}

func printRun(ctx context.Context, store *backtest.Store, runID string) error {
	res, err := store.Load(ctx, runID)
	if err != nil {
		return err
	}
	report, err := res.Report()
	if err != nil {
		return err
	}
	fmt.Println(string(report))
	return nil
}
