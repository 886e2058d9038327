package storage

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/shaumne/poly-maker/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// STORAGE - Market config store and trade log
// ═══════════════════════════════════════════════════════════════════════════════
//
// The engine reads its market roster from here on every reload cycle and
// appends every order action to the trade log. Rows are managed externally
// (admin tooling inserts and edits markets); the engine treats them as
// read-only configuration.
//
// ═══════════════════════════════════════════════════════════════════════════════

type Database struct {
	db *gorm.DB
}

// Models

// MarketRow is one tradable market with its strategy parameters.
type MarketRow struct {
	ConditionID    string `gorm:"primaryKey"`
	Question       string
	Token1         string `gorm:"index"`
	Token2         string `gorm:"index"`
	SideToTrade    string `gorm:"default:BOTH"`
	TradingMode    string `gorm:"default:MARKET_MAKING"`
	TargetPosition decimal.Decimal `gorm:"type:decimal(20,6)"`
	NegRisk        bool
	Active         bool `gorm:"index"`

	TradeSize           decimal.Decimal `gorm:"type:decimal(20,6)"`
	MaxSize             decimal.Decimal `gorm:"type:decimal(20,6)"`
	MinSize             decimal.Decimal `gorm:"type:decimal(20,6)"`
	TickSize            decimal.Decimal `gorm:"type:decimal(10,6);default:0.01"`
	Multiplier          int
	StopLossThreshold   decimal.Decimal `gorm:"type:decimal(10,6)"`
	TakeProfitThreshold decimal.Decimal `gorm:"type:decimal(10,6)"`
	VolatilityThreshold decimal.Decimal `gorm:"type:decimal(10,6)"`
	SpreadThreshold     decimal.Decimal `gorm:"type:decimal(10,6)"`
	SleepPeriod         int
	QuickCancelThresh   decimal.Decimal `gorm:"type:decimal(10,6)"`
	PositionPatience    int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TradeLog is one row of the append-only trade activity log.
type TradeLog struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	MarketID  string `gorm:"index"`
	Asset     string `gorm:"index"`
	Side      string
	Action    string // PLACE, CANCEL, FILL, SKIP, SUSPEND
	Price     decimal.Decimal `gorm:"type:decimal(10,6)"`
	Size      decimal.Decimal `gorm:"type:decimal(20,6)"`
	CreatedAt time.Time
}

// New opens the database. A postgres:// connection string selects the
// PostgreSQL driver; anything else is treated as a SQLite file path.
func New(dbPath string) (*Database, error) {
	var db *gorm.DB
	var err error

	if strings.HasPrefix(dbPath, "postgres://") || strings.HasPrefix(dbPath, "postgresql://") {
		db, err = gorm.Open(postgres.Open(dbPath), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return nil, err
		}
		log.Info().Msg("💾 Database connected (PostgreSQL)")
	} else {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
		db, err = gorm.Open(sqlite.Open(dbPath), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", dbPath).Msg("💾 Database initialized (SQLite)")
	}

	if err := db.AutoMigrate(&MarketRow{}, &TradeLog{}); err != nil {
		return nil, err
	}

	return &Database{db: db}, nil
}

// Market operations

// LoadActiveMarkets returns the active roster as engine market configs.
// Implements core.MarketSource.
func (d *Database) LoadActiveMarkets() ([]types.Market, error) {
	var rows []MarketRow
	if err := d.db.Where("active = ?", true).Find(&rows).Error; err != nil {
		return nil, err
	}

	markets := make([]types.Market, 0, len(rows))
	for _, r := range rows {
		markets = append(markets, r.toMarket())
	}
	return markets, nil
}

// SaveMarket upserts a market row. Used by admin tooling, not the engine.
func (d *Database) SaveMarket(row *MarketRow) error {
	return d.db.Save(row).Error
}

func (r MarketRow) toMarket() types.Market {
	return types.Market{
		ConditionID:    r.ConditionID,
		Question:       r.Question,
		Token1:         r.Token1,
		Token2:         r.Token2,
		SideToTrade:    r.SideToTrade,
		TradingMode:    r.TradingMode,
		TargetPosition: r.TargetPosition,
		NegRisk:        r.NegRisk,
		Active:         r.Active,
		Params: types.StrategyParams{
			TradeSize:           r.TradeSize,
			MaxSize:             r.MaxSize,
			MinSize:             r.MinSize,
			TickSize:            r.TickSize,
			Multiplier:          r.Multiplier,
			StopLossThreshold:   r.StopLossThreshold,
			TakeProfitThreshold: r.TakeProfitThreshold,
			VolatilityThreshold: r.VolatilityThreshold,
			SpreadThreshold:     r.SpreadThreshold,
			SleepPeriod:         r.SleepPeriod,
			QuickCancelThresh:   r.QuickCancelThresh,
			PositionPatience:    r.PositionPatience,
		},
	}
}

// Trade log operations

// RecordTrade appends one trade action. Implements strategy.Recorder; a
// write failure is logged, never propagated into the trading path.
func (d *Database) RecordTrade(rec types.TradeRecord) {
	row := TradeLog{
		MarketID:  rec.Market,
		Asset:     rec.Asset,
		Side:      rec.Side,
		Action:    rec.Action,
		Price:     rec.Price,
		Size:      rec.Size,
		CreatedAt: rec.Timestamp,
	}
	if err := d.db.Create(&row).Error; err != nil {
		log.Error().Err(err).Msg("Failed to record trade")
	}
}

// GetRecentTrades returns the latest trade log entries.
func (d *Database) GetRecentTrades(limit int) ([]types.TradeRecord, error) {
	var rows []TradeLog
	if err := d.db.Order("created_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}

	trades := make([]types.TradeRecord, 0, len(rows))
	for _, r := range rows {
		trades = append(trades, types.TradeRecord{
			Market:    r.MarketID,
			Asset:     r.Asset,
			Side:      r.Side,
			Action:    r.Action,
			Price:     r.Price,
			Size:      r.Size,
			Timestamp: r.CreatedAt,
		})
	}
	return trades, nil
}

// Close closes the underlying connection.
func (d *Database) Close() {
	if sqlDB, err := d.db.DB(); err == nil {
		sqlDB.Close()
	}
}
