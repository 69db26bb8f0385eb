package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// RunRow is the persisted form of one backtest run: indexed metadata plus
// the full deterministic report blob.
type RunRow struct {
	ID          string `gorm:"primaryKey;size:36"`
	SymbolID    uint32 `gorm:"index"`
	StartTs     int64
	EndTs       int64
	TotalReturn int64
	ReturnPct   float64
	TradeCount  int
	Report      []byte
	CreatedAt   time.Time
}

// TableName implements gorm's table naming.
func (RunRow) TableName() string { return "backtest_runs" }

// Store persists backtest results through gorm. SQLite for local work,
// postgres when runs are shared.
type Store struct {
	db *gorm.DB
}

// NewStore migrates the schema and wraps the connection.
func NewStore(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&RunRow{}); err != nil {
		return nil, fmt.Errorf("migrate backtest store: %w", err)
	}
	return &Store{db: db}, nil
}

// OpenSQLite opens or creates a local SQLite result database.
func OpenSQLite(path string) (*gorm.DB, error) {
	return gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
}

// OpenPostgres connects to a shared result database.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
}

// Save persists one result row.
func (s *Store) Save(ctx context.Context, res Result) error {
	report, err := res.Report()
	if err != nil {
		return fmt.Errorf("serialize report: %w", err)
	}
	row := RunRow{
		ID:          res.RunID,
		SymbolID:    res.Config.SymbolID,
		StartTs:     res.StartTs,
		EndTs:       res.EndTs,
		TotalReturn: res.Summary.TotalReturn,
		ReturnPct:   res.Summary.ReturnPct,
		TradeCount:  res.Summary.TradeCount,
		Report:      report,
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

// Load rebuilds a full result from its stored report.
func (s *Store) Load(ctx context.Context, runID string) (Result, error) {
	var row RunRow
	if err := s.db.WithContext(ctx).First(&row, "id = ?", runID).Error; err != nil {
		return Result{}, err
	}
	var res Result
	if err := sonic.Unmarshal(row.Report, &res); err != nil {
		return Result{}, fmt.Errorf("decode report %s: %w", runID, err)
	}
	res.RunID = row.ID
	return res, nil
}

// List returns run metadata, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]RunRow, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []RunRow
	err := s.db.WithContext(ctx).
		Select("id", "symbol_id", "start_ts", "end_ts", "total_return", "return_pct", "trade_count", "created_at").
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
