package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Prices go over the wire as JSON numbers, not quoted strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// Product represents a catalog entry.
// A product with a non-nil DeletedAt has been soft deleted and is no longer active.
type Product struct {
	ID        int64           `json:"id" gorm:"primaryKey;autoIncrement"`
	Name      string          `json:"name" gorm:"type:varchar(255)"`
	Price     decimal.Decimal `json:"price" gorm:"type:decimal(12,2)"`
	DeletedAt *time.Time      `json:"deletedAt" gorm:"index"`
}

// TableName returns the table name for Product model.
func (Product) TableName() string {
	return "products"
}

// IsActive reports whether the product has not been soft deleted.
func (p Product) IsActive() bool {
	return p.DeletedAt == nil
}

// IsDeleted reports whether the product has been soft deleted.
func (p Product) IsDeleted() bool {
	return !p.IsActive()
}
