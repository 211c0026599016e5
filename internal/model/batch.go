package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Batch is a receipt-tagged quantity of one SKU held by a store.
// ActiveQuantity is the maintained counter of units not yet consumed by a sale,
// dispatch or write-off; it never drops below zero or exceeds TotalQuantity.
type Batch struct {
	BaseModel
	StoreID        uuid.UUID       `gorm:"type:uuid;not null;index;uniqueIndex:idx_batch_store_sku_code" json:"store_id"`
	ProductSKU     string          `gorm:"type:varchar(50);not null;uniqueIndex:idx_batch_store_sku_code" json:"product_sku"`
	ProductName    string          `gorm:"type:varchar(255)" json:"product_name"`
	BatchCode      string          `gorm:"type:varchar(50);not null;uniqueIndex:idx_batch_store_sku_code" json:"batch_code"`
	TotalQuantity  int             `gorm:"not null;default:0" json:"total_quantity"`
	ActiveQuantity int             `gorm:"not null;default:0;check:active_quantity >= 0" json:"active_quantity"`
	UnitCost       decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"unit_cost"`
	UnitPrice      decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"unit_price"`
}

func (Batch) TableName() string {
	return "batches"
}
