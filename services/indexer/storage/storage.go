package storage

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/glebarez/sqlite"
	"github.com/holiman/uint256"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/S3MTFoundationv0/s3mt.xyz/native/presale"
	"github.com/S3MTFoundationv0/s3mt.xyz/rpc"
	"github.com/S3MTFoundationv0/s3mt.xyz/services/indexer/config"
	"github.com/S3MTFoundationv0/s3mt.xyz/services/indexer/models"
)

const (
	logCursor     = "presale-log"
	summaryBatch  = 500
	maxQueryLimit = 1000
)

// ErrDSNRequired is returned when no database location is configured.
var ErrDSNRequired = errors.New("indexer storage dsn must be configured")

// Store persists indexed presale records.
type Store struct {
	db *gorm.DB
}

// Open connects to the configured database and migrates the schema.
func Open(cfg config.DatabaseConfig) (*Store, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, ErrDSNRequired
	}
	var dialector gorm.Dialector
	switch cfg.Driver {
	case config.DriverPostgres:
		dialector = postgres.Open(dsn)
	case config.DriverSQLite, "":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return New(db)
}

// New wraps an existing gorm handle and migrates the schema.
func New(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("indexer storage: db is required")
	}
	if err := models.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases database resources.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Cursor returns the last ingested log sequence.
func (s *Store) Cursor(ctx context.Context) (uint64, error) {
	var cursor models.Cursor
	err := s.db.WithContext(ctx).Where("name = ?", logCursor).Limit(1).Find(&cursor).Error
	if err != nil {
		return 0, err
	}
	return cursor.Seq, nil
}

// Apply stores entries beyond the current cursor and advances it in one
// transaction. Entries at or below the cursor are skipped so replays are
// harmless. It returns the entries that were newly applied.
func (s *Store) Apply(ctx context.Context, entries []rpc.LogEntry) ([]rpc.LogEntry, error) {
	var applied []rpc.LogEntry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cursor models.Cursor
		if err := tx.Where("name = ?", logCursor).Limit(1).Find(&cursor).Error; err != nil {
			return err
		}
		head := cursor.Seq
		for _, entry := range entries {
			if entry.Seq <= head {
				continue
			}
			if err := insertEntry(tx, entry); err != nil {
				return fmt.Errorf("seq %d: %w", entry.Seq, err)
			}
			head = entry.Seq
			applied = append(applied, entry)
		}
		if head == cursor.Seq {
			return nil
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"seq", "updated_at"}),
		}).Create(&models.Cursor{Name: logCursor, Seq: head}).Error
	})
	if err != nil {
		return nil, err
	}
	return applied, nil
}

func insertEntry(tx *gorm.DB, entry rpc.LogEntry) error {
	ignore := clause.OnConflict{Columns: []clause.Column{{Name: "seq"}}, DoNothing: true}
	switch {
	case entry.Purchase != nil:
		p := entry.Purchase
		return tx.Clauses(ignore).Create(&models.Purchase{
			Seq:              entry.Seq,
			RequestID:        entry.RequestID,
			Buyer:            p.Buyer.String(),
			Currency:         p.Currency,
			StableAmount:     models.Amount(p.StableAmount),
			NativeAmount:     models.Amount(p.NativeAmount),
			AllocationAmount: models.Amount(p.AllocationAmount),
			PurchasedAt:      p.Timestamp,
		}).Error
	case entry.Config != nil:
		c := entry.Config
		return tx.Clauses(ignore).Create(&models.ConfigChange{
			Seq:                 entry.Seq,
			Kind:                entry.Kind,
			RequestID:           entry.RequestID,
			Admin:               c.Admin.String(),
			Treasury:            c.Treasury.String(),
			AcceptedStableAsset: c.AcceptedStableAsset.String(),
			Paused:              c.Paused,
			ChangedAt:           entry.Timestamp,
		}).Error
	default:
		// Unknown kinds still advance the cursor.
		return nil
	}
}

// PurchaseQuery filters purchase listings.
type PurchaseQuery struct {
	Buyer string
	After uint64
	Limit int
	// From and To bound the purchase timestamp in unix seconds. Zero means
	// unbounded.
	From int64
	To   int64
}

// Purchases lists purchases ordered by sequence.
func (s *Store) Purchases(ctx context.Context, q PurchaseQuery) ([]models.Purchase, error) {
	if q.After >= math.MaxInt64 {
		// Sequences are assigned from 1 and never reach the signed range limit.
		return nil, nil
	}
	limit := q.Limit
	if limit <= 0 || limit > maxQueryLimit {
		limit = maxQueryLimit
	}
	var out []models.Purchase
	err := s.filter(s.db.WithContext(ctx), q).
		Where("seq > ?", q.After).
		Order("seq ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// EachPurchase streams every purchase matching q in sequence order.
func (s *Store) EachPurchase(ctx context.Context, q PurchaseQuery, fn func(models.Purchase) error) error {
	q.Limit = summaryBatch
	for {
		batch, err := s.Purchases(ctx, q)
		if err != nil {
			return err
		}
		for _, p := range batch {
			if err := fn(p); err != nil {
				return err
			}
			q.After = p.Seq
		}
		if len(batch) < summaryBatch {
			return nil
		}
	}
}

func (s *Store) filter(db *gorm.DB, q PurchaseQuery) *gorm.DB {
	db = db.Model(&models.Purchase{})
	if q.Buyer != "" {
		db = db.Where("buyer = ?", q.Buyer)
	}
	if q.From != 0 {
		db = db.Where("purchased_at >= ?", q.From)
	}
	if q.To != 0 {
		db = db.Where("purchased_at < ?", q.To)
	}
	return db
}

// ConfigChanges lists configuration changes ordered by sequence.
func (s *Store) ConfigChanges(ctx context.Context) ([]models.ConfigChange, error) {
	var out []models.ConfigChange
	err := s.db.WithContext(ctx).Order("seq ASC").Find(&out).Error
	return out, err
}

// Summary aggregates purchases. Totals are decimal strings so they survive
// sums beyond 64 bits.
type Summary struct {
	Buyer           string `json:"buyer,omitempty"`
	Purchases       int64  `json:"purchases"`
	StableTotal     string `json:"stableTotal"`
	NativeTotal     string `json:"nativeTotal"`
	AllocationTotal string `json:"allocationTotal"`
	FirstPurchase   int64  `json:"firstPurchase,omitempty"`
	LastPurchase    int64  `json:"lastPurchase,omitempty"`
}

// Summarize totals the purchases of buyer, or of everyone when buyer is empty.
func (s *Store) Summarize(ctx context.Context, buyer string) (*Summary, error) {
	var stable, native, allocation uint256.Int
	summary := &Summary{Buyer: buyer}
	err := s.EachPurchase(ctx, PurchaseQuery{Buyer: buyer}, func(p models.Purchase) error {
		summary.Purchases++
		stable.AddUint64(&stable, uint64(p.StableAmount))
		native.AddUint64(&native, uint64(p.NativeAmount))
		allocation.AddUint64(&allocation, uint64(p.AllocationAmount))
		if summary.FirstPurchase == 0 || p.PurchasedAt < summary.FirstPurchase {
			summary.FirstPurchase = p.PurchasedAt
		}
		if p.PurchasedAt > summary.LastPurchase {
			summary.LastPurchase = p.PurchasedAt
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	summary.StableTotal = stable.Dec()
	summary.NativeTotal = native.Dec()
	summary.AllocationTotal = allocation.Dec()
	return summary, nil
}

// CountByCurrency returns the number of purchases per payment path.
func (s *Store) CountByCurrency(ctx context.Context) (map[string]int64, error) {
	type row struct {
		Currency string
		Count    int64
	}
	var rows []row
	err := s.db.WithContext(ctx).Model(&models.Purchase{}).
		Select("currency, count(*) AS count").
		Group("currency").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := map[string]int64{presale.CurrencyStable: 0, presale.CurrencyNative: 0}
	for _, r := range rows {
		out[r.Currency] = r.Count
	}
	return out, nil
}
