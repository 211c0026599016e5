package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BarcodeScan is one verified physical unit of a dispatch item. Append-only.
type BarcodeScan struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key;" json:"id"`
	DispatchID     uuid.UUID `gorm:"type:uuid;not null;index" json:"dispatch_id"`
	DispatchItemID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_scan_item_barcode" json:"dispatch_item_id"`
	Barcode        string    `gorm:"type:varchar(128);not null;uniqueIndex:idx_scan_item_barcode" json:"barcode"`
	ScannedBy      string    `gorm:"type:varchar(255);not null" json:"scanned_by"`
	ScannedAt      time.Time `gorm:"not null;index" json:"scanned_at"`
}

func (BarcodeScan) TableName() string {
	return "barcode_scans"
}

func (s *BarcodeScan) BeforeCreate(tx *gorm.DB) (err error) {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return
}
