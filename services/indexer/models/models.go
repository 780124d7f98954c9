package models

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Purchase mirrors one purchase record of the node log.
type Purchase struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey"`
	Seq              uint64    `gorm:"uniqueIndex;not null"`
	RequestID        string    `gorm:"size:64;index"`
	Buyer            string    `gorm:"size:64;index;not null"`
	Currency         string    `gorm:"size:16;index"`
	StableAmount     Amount    `gorm:"type:varchar(20);not null"`
	NativeAmount     Amount    `gorm:"type:varchar(20);not null"`
	AllocationAmount Amount    `gorm:"type:varchar(20);not null"`
	PurchasedAt      int64     `gorm:"index"`
	CreatedAt        time.Time
}

// Amount is a u64 token quantity stored as a decimal string. database/sql
// cannot bind uint64 values with the high bit set, and allocation amounts are
// caller-chosen, so the full range must round-trip.
type Amount uint64

// Value implements driver.Valuer.
func (a Amount) Value() (driver.Value, error) {
	return strconv.FormatUint(uint64(a), 10), nil
}

// Scan implements sql.Scanner.
func (a *Amount) Scan(src any) error {
	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	case int64:
		if v < 0 {
			return fmt.Errorf("amount: negative value %d", v)
		}
		*a = Amount(v)
		return nil
	case nil:
		*a = 0
		return nil
	default:
		return fmt.Errorf("amount: unsupported type %T", src)
	}
	parsed, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	*a = Amount(parsed)
	return nil
}

// ConfigChange mirrors an initialize or update_config record.
type ConfigChange struct {
	ID                  uuid.UUID `gorm:"type:uuid;primaryKey"`
	Seq                 uint64    `gorm:"uniqueIndex;not null"`
	Kind                string    `gorm:"size:64"`
	RequestID           string    `gorm:"size:64"`
	Admin               string    `gorm:"size:64"`
	Treasury            string    `gorm:"size:64"`
	AcceptedStableAsset string    `gorm:"size:64"`
	Paused              bool
	ChangedAt           int64
	CreatedAt           time.Time
}

// Cursor stores the last ingested log sequence per stream name.
type Cursor struct {
	Name      string `gorm:"size:64;primaryKey"`
	Seq       uint64 `gorm:"not null"`
	UpdatedAt time.Time
}

// BeforeCreate assigns a row id when the caller did not.
func (p *Purchase) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// BeforeCreate assigns a row id when the caller did not.
func (c *ConfigChange) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// AutoMigrate creates or updates the indexer tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Purchase{}, &ConfigChange{}, &Cursor{})
}
