package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type DispatchStatus string

const (
	StatusDraft           DispatchStatus = "draft"
	StatusPendingApproval DispatchStatus = "pending_approval"
	StatusApproved        DispatchStatus = "approved"
	StatusInTransit       DispatchStatus = "in_transit"
	StatusDelivered       DispatchStatus = "delivered"
	StatusCancelled       DispatchStatus = "cancelled"
)

// AllStatuses lists every dispatch status in lifecycle order.
var AllStatuses = []DispatchStatus{
	StatusDraft,
	StatusPendingApproval,
	StatusApproved,
	StatusInTransit,
	StatusDelivered,
	StatusCancelled,
}

func (s DispatchStatus) Valid() bool {
	for _, st := range AllStatuses {
		if s == st {
			return true
		}
	}
	return false
}

func (s DispatchStatus) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// Dispatch is a request to move batch quantities from one store to another.
// It is never deleted; cancellation is a terminal status.
type Dispatch struct {
	BaseModel
	Number               string         `gorm:"type:varchar(32);uniqueIndex;not null" json:"number"`
	SourceStoreID        uuid.UUID      `gorm:"type:uuid;not null;index" json:"source_store_id"`
	DestinationStoreID   uuid.UUID      `gorm:"type:uuid;not null;index" json:"destination_store_id"`
	Status               DispatchStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	ExpectedDeliveryDate *time.Time     `gorm:"type:date" json:"expected_delivery_date,omitempty"`
	Carrier              string         `gorm:"type:varchar(100)" json:"carrier,omitempty"`
	TrackingNumber       string         `gorm:"type:varchar(100)" json:"tracking_number,omitempty"`
	Notes                string         `gorm:"type:text" json:"notes,omitempty"`

	// Version increments on every successful write of the header.
	Version int `gorm:"not null;default:1" json:"version"`

	DispatchedAt *time.Time `json:"dispatched_at,omitempty"`
	DeliveredAt  *time.Time `json:"delivered_at,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	CancelReason string     `gorm:"type:text" json:"cancel_reason,omitempty"`

	Items []DispatchItem `gorm:"foreignKey:DispatchID" json:"items"`
}

func (Dispatch) TableName() string {
	return "dispatches"
}

func (d *Dispatch) ItemByID(id uuid.UUID) *DispatchItem {
	for i := range d.Items {
		if d.Items[i].ID == id {
			return &d.Items[i]
		}
	}
	return nil
}

func (d *Dispatch) ItemByBatch(batchID uuid.UUID) *DispatchItem {
	for i := range d.Items {
		if d.Items[i].BatchID == batchID {
			return &d.Items[i]
		}
	}
	return nil
}

// TotalValue is the cost value of everything requested on the dispatch.
func (d *Dispatch) TotalValue() decimal.Decimal {
	total := decimal.Zero
	for i := range d.Items {
		total = total.Add(d.Items[i].Value())
	}
	return total
}

// Clone returns a deep copy, items included.
func (d *Dispatch) Clone() *Dispatch {
	c := *d
	c.ExpectedDeliveryDate = cloneTime(d.ExpectedDeliveryDate)
	c.DispatchedAt = cloneTime(d.DispatchedAt)
	c.DeliveredAt = cloneTime(d.DeliveredAt)
	c.CancelledAt = cloneTime(d.CancelledAt)
	if d.Items != nil {
		c.Items = make([]DispatchItem, len(d.Items))
		for i := range d.Items {
			c.Items[i] = d.Items[i].Clone()
		}
	}
	return &c
}

// DispatchItem is one batch line of a dispatch. Cost and price are snapshots taken
// when the line is added. Received, damaged and missing are written once, at delivery.
type DispatchItem struct {
	BaseModel
	DispatchID        uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_dispatch_item_batch" json:"dispatch_id"`
	BatchID           uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_dispatch_item_batch;index" json:"batch_id"`
	ProductSKU        string          `gorm:"type:varchar(50)" json:"product_sku"`
	ProductName       string          `gorm:"type:varchar(255)" json:"product_name"`
	BatchCode         string          `gorm:"type:varchar(50)" json:"batch_code"`
	RequestedQuantity int             `gorm:"not null;check:requested_quantity > 0" json:"requested_quantity"`
	UnitCost          decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"unit_cost"`
	UnitPrice         decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"unit_price"`

	// Derived from barcode_scans on read
	ScannedCount int `gorm:"-" json:"scanned_count"`

	ReceivedQuantity *int `json:"received_quantity,omitempty"`
	DamagedQuantity  *int `json:"damaged_quantity,omitempty"`
	MissingQuantity  *int `json:"missing_quantity,omitempty"`
}

func (DispatchItem) TableName() string {
	return "dispatch_items"
}

func (i *DispatchItem) Value() decimal.Decimal {
	return i.UnitCost.Mul(decimal.NewFromInt(int64(i.RequestedQuantity)))
}

// LossValue is the cost of damaged plus missing units; zero until delivered.
func (i *DispatchItem) LossValue() decimal.Decimal {
	lost := derefInt(i.DamagedQuantity) + derefInt(i.MissingQuantity)
	return i.UnitCost.Mul(decimal.NewFromInt(int64(lost)))
}

func (i *DispatchItem) Reconciled() bool {
	return i.ReceivedQuantity != nil
}

func (i DispatchItem) Clone() DispatchItem {
	c := i
	c.ReceivedQuantity = cloneInt(i.ReceivedQuantity)
	c.DamagedQuantity = cloneInt(i.DamagedQuantity)
	c.MissingQuantity = cloneInt(i.MissingQuantity)
	return c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneInt(n *int) *int {
	if n == nil {
		return nil
	}
	v := *n
	return &v
}

func derefInt(n *int) int {
	if n == nil {
		return 0
	}
	return *n
}
