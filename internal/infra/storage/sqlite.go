package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"market_sync/internal/order"
)

// OrderRecord is the persisted form of an in-flight order. Decimals are
// stored as strings to keep exactness through the round trip.
type OrderRecord struct {
	ClientOrderID       string `gorm:"primaryKey"`
	ExchangeOrderID     string `gorm:"index"`
	TradingPair         string
	OrderType           string
	Side                string
	Price               string
	Amount              string
	State               string
	ExecutedAmountBase  string
	ExecutedAmountQuote string
	FeePaid             string
	FeeAsset            string
	AppliedIDs          string // JSON array of dedup ledger ids
	UpdatedAt           time.Time
}

// Storage persists in-flight orders so tracking survives a restart.
type Storage struct {
	db *gorm.DB
}

// NewStorage creates a new SQLite storage instance at the default path.
func NewStorage() (*Storage, error) {
	dbPath, err := getDBPath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve DB path: %w", err)
	}
	return NewStorageAt(dbPath)
}

// NewStorageAt creates a SQLite storage instance at the given path.
func NewStorageAt(dbPath string) (*Storage, error) {
	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	// Connect to SQLite (Pure Go)
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&OrderRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Storage{db: db}, nil
}

// getDBPath resolves the database file path based on OS
func getDBPath() (string, error) {
	var configDir string
	var err error

	if runtime.GOOS == "windows" {
		configDir = os.Getenv("LOCALAPPDATA")
		if configDir == "" {
			configDir, err = os.UserConfigDir()
		}
	} else {
		configDir, err = os.UserConfigDir()
	}

	if err != nil {
		return "", err
	}

	return filepath.Join(configDir, "MarketSync", "data", "marketsync.db"), nil
}

// SaveOrder upserts the current state of an in-flight order.
func (s *Storage) SaveOrder(o *order.InFlightOrder) error {
	ids, err := json.Marshal(o.AppliedIDs())
	if err != nil {
		return err
	}
	rec := &OrderRecord{
		ClientOrderID:       o.ClientOrderID,
		ExchangeOrderID:     o.ExchangeOrderID,
		TradingPair:         o.TradingPair,
		OrderType:           o.OrderType,
		Side:                o.Side,
		Price:               o.Price.String(),
		Amount:              o.Amount.String(),
		State:               o.State,
		ExecutedAmountBase:  o.ExecutedAmountBase.String(),
		ExecutedAmountQuote: o.ExecutedAmountQuote.String(),
		FeePaid:             o.FeePaid.String(),
		FeeAsset:            o.FeeAsset,
		AppliedIDs:          string(ids),
		UpdatedAt:           time.Now(),
	}
	return s.db.Save(rec).Error
}

// DeleteOrder removes a persisted order after eviction.
func (s *Storage) DeleteOrder(clientOrderID string) error {
	return s.db.Delete(&OrderRecord{}, "client_order_id = ?", clientOrderID).Error
}

// LoadOrders rebuilds every persisted in-flight order, for startup restore.
func (s *Storage) LoadOrders() ([]*order.InFlightOrder, error) {
	var records []OrderRecord
	if err := s.db.Find(&records).Error; err != nil {
		return nil, err
	}

	out := make([]*order.InFlightOrder, 0, len(records))
	for _, rec := range records {
		o, err := recordToOrder(rec)
		if err != nil {
			return nil, fmt.Errorf("corrupt order record %s: %w", rec.ClientOrderID, err)
		}
		out = append(out, o)
	}
	return out, nil
}

func recordToOrder(rec OrderRecord) (*order.InFlightOrder, error) {
	price, err := decimal.NewFromString(rec.Price)
	if err != nil {
		return nil, err
	}
	amount, err := decimal.NewFromString(rec.Amount)
	if err != nil {
		return nil, err
	}

	o := order.NewInFlightOrder(rec.ClientOrderID, rec.ExchangeOrderID,
		rec.TradingPair, rec.OrderType, rec.Side, price, amount)
	o.State = rec.State
	o.FeeAsset = rec.FeeAsset

	if o.ExecutedAmountBase, err = decimal.NewFromString(rec.ExecutedAmountBase); err != nil {
		return nil, err
	}
	if o.ExecutedAmountQuote, err = decimal.NewFromString(rec.ExecutedAmountQuote); err != nil {
		return nil, err
	}
	if o.FeePaid, err = decimal.NewFromString(rec.FeePaid); err != nil {
		return nil, err
	}

	var ids []string
	if rec.AppliedIDs != "" {
		if err := json.Unmarshal([]byte(rec.AppliedIDs), &ids); err != nil {
			return nil, err
		}
	}
	o.RestoreAppliedIDs(ids)
	return o, nil
}
