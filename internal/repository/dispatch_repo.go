package repository

import (
	"context"
	"errors"
	"time"

	"go-dispatch-ws/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DispatchRepository interface {
	Create(ctx context.Context, d *model.Dispatch) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Dispatch, error)
	FindByNumber(ctx context.Context, number string) (*model.Dispatch, error)
	// FindForUpdate loads the dispatch and holds it against concurrent writers
	// until the surrounding Atomic call finishes.
	FindForUpdate(ctx context.Context, id uuid.UUID) (*model.Dispatch, error)
	// Update writes the header if d.Version still matches storage, then bumps d.Version.
	Update(ctx context.Context, d *model.Dispatch) error
	AddItem(ctx context.Context, item *model.DispatchItem) error
	RemoveItem(ctx context.Context, dispatchID, itemID uuid.UUID) error
	// RecordReceipt writes received/damaged/missing once per item.
	RecordReceipt(ctx context.Context, item *model.DispatchItem) error
	List(ctx context.Context, filter DispatchFilter) ([]model.Dispatch, int64, error)
	Aggregate(ctx context.Context, storeID *uuid.UUID) (*DispatchAggregate, error)
}

// DispatchFilter drives list_dispatches. StoreID matches either side of the transfer.
type DispatchFilter struct {
	Status             model.DispatchStatus
	SourceStoreID      *uuid.UUID
	DestinationStoreID *uuid.UUID
	StoreID            *uuid.UUID
	Search             string
	Page               int
	Limit              int
}

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Normalize clamps paging to sane bounds.
func (f *DispatchFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = DefaultPageLimit
	}
	if f.Limit > MaxPageLimit {
		f.Limit = MaxPageLimit
	}
}

func (f DispatchFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// DispatchAggregate is the raw material for statistics
type DispatchAggregate struct {
	StatusCounts    map[model.DispatchStatus]int64
	DispatchedValue decimal.Decimal
	LossValue       decimal.Decimal
}

type dispatchRepo struct {
	db *gorm.DB
}

func NewDispatchRepo(db *gorm.DB) DispatchRepository {
	return &dispatchRepo{db}
}

// Create inserts the header before its items so a unique violation can be
// attributed to the dispatch number or to a repeated batch.
func (r *dispatchRepo) Create(ctx context.Context, d *model.Dispatch) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Omit(clause.Associations).Create(d).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateNumber
		}
		if err != nil || len(d.Items) == 0 {
			return err
		}

		for i := range d.Items {
			d.Items[i].DispatchID = d.ID
		}
		err = tx.Create(&d.Items).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateItem
		}
		return err
	})
}

func (r *dispatchRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Dispatch, error) {
	return r.findOne(ctx, r.db.WithContext(ctx), "id = ?", id)
}

func (r *dispatchRepo) FindByNumber(ctx context.Context, number string) (*model.Dispatch, error) {
	return r.findOne(ctx, r.db.WithContext(ctx), "number = ?", number)
}

func (r *dispatchRepo) FindForUpdate(ctx context.Context, id uuid.UUID) (*model.Dispatch, error) {
	return r.findOne(ctx, r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), "id = ?", id)
}

func (r *dispatchRepo) findOne(ctx context.Context, q *gorm.DB, cond string, arg interface{}) (*model.Dispatch, error) {
	var d model.Dispatch
	if err := q.First(&d, cond, arg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	// Items are loaded separately so the row lock stays on the header only
	if err := r.db.WithContext(ctx).
		Where("dispatch_id = ?", d.ID).
		Order("created_at ASC").
		Find(&d.Items).Error; err != nil {
		return nil, err
	}

	dispatches := []model.Dispatch{d}
	if err := r.fillScanCounts(ctx, dispatches); err != nil {
		return nil, err
	}
	return &dispatches[0], nil
}

func (r *dispatchRepo) Update(ctx context.Context, d *model.Dispatch) error {
	res := r.db.WithContext(ctx).Model(&model.Dispatch{}).
		Where("id = ? AND version = ?", d.ID, d.Version).
		Updates(map[string]interface{}{
			"status":                 d.Status,
			"expected_delivery_date": d.ExpectedDeliveryDate,
			"carrier":                d.Carrier,
			"tracking_number":        d.TrackingNumber,
			"notes":                  d.Notes,
			"dispatched_at":          d.DispatchedAt,
			"delivered_at":           d.DeliveredAt,
			"cancelled_at":           d.CancelledAt,
			"cancel_reason":          d.CancelReason,
			"updated_by":             d.UpdatedBy,
			"updated_at":             time.Now(),
			"version":                gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleVersion
	}
	d.Version++
	return nil
}

func (r *dispatchRepo) AddItem(ctx context.Context, item *model.DispatchItem) error {
	err := r.db.WithContext(ctx).Create(item).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateItem
	}
	return err
}

func (r *dispatchRepo) RemoveItem(ctx context.Context, dispatchID, itemID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND dispatch_id = ?", itemID, dispatchID).
		Delete(&model.DispatchItem{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *dispatchRepo) RecordReceipt(ctx context.Context, item *model.DispatchItem) error {
	res := r.db.WithContext(ctx).Model(&model.DispatchItem{}).
		Where("id = ? AND received_quantity IS NULL", item.ID).
		Updates(map[string]interface{}{
			"received_quantity": item.ReceivedQuantity,
			"damaged_quantity":  item.DamagedQuantity,
			"missing_quantity":  item.MissingQuantity,
			"updated_by":        item.UpdatedBy,
			"updated_at":        time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleVersion
	}
	return nil
}

func (r *dispatchRepo) List(ctx context.Context, filter DispatchFilter) ([]model.Dispatch, int64, error) {
	filter.Normalize()

	query := r.db.WithContext(ctx).Model(&model.Dispatch{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.SourceStoreID != nil {
		query = query.Where("source_store_id = ?", *filter.SourceStoreID)
	}
	if filter.DestinationStoreID != nil {
		query = query.Where("destination_store_id = ?", *filter.DestinationStoreID)
	}
	if filter.StoreID != nil {
		query = query.Where("(source_store_id = ? OR destination_store_id = ?)", *filter.StoreID, *filter.StoreID)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("(number ILIKE ? OR carrier ILIKE ? OR tracking_number ILIKE ? OR notes ILIKE ?)",
			like, like, like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var dispatches []model.Dispatch
	err := query.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Order("created_at DESC").
		Offset(filter.Offset()).
		Limit(filter.Limit).
		Find(&dispatches).Error
	if err != nil {
		return nil, 0, err
	}

	if err := r.fillScanCounts(ctx, dispatches); err != nil {
		return nil, 0, err
	}
	return dispatches, total, nil
}

func (r *dispatchRepo) Aggregate(ctx context.Context, storeID *uuid.UUID) (*DispatchAggregate, error) {
	agg := &DispatchAggregate{StatusCounts: make(map[model.DispatchStatus]int64)}

	type statusCount struct {
		Status model.DispatchStatus
		Count  int64
	}
	var counts []statusCount

	countQuery := r.db.WithContext(ctx).Model(&model.Dispatch{})
	if storeID != nil {
		countQuery = countQuery.Where("(source_store_id = ? OR destination_store_id = ?)", *storeID, *storeID)
	}
	if err := countQuery.Select("status, COUNT(*) AS count").Group("status").Scan(&counts).Error; err != nil {
		return nil, err
	}
	for _, c := range counts {
		agg.StatusCounts[c.Status] = c.Count
	}

	valueQuery := func() *gorm.DB {
		q := r.db.WithContext(ctx).Table("dispatch_items AS i").
			Joins("JOIN dispatches AS d ON d.id = i.dispatch_id")
		if storeID != nil {
			q = q.Where("(d.source_store_id = ? OR d.destination_store_id = ?)", *storeID, *storeID)
		}
		return q
	}

	if err := valueQuery().
		Where("d.status <> ?", model.StatusCancelled).
		Select("COALESCE(SUM(i.requested_quantity * i.unit_cost), 0)").
		Row().Scan(&agg.DispatchedValue); err != nil {
		return nil, err
	}

	if err := valueQuery().
		Where("d.status = ?", model.StatusDelivered).
		Select("COALESCE(SUM((COALESCE(i.damaged_quantity, 0) + COALESCE(i.missing_quantity, 0)) * i.unit_cost), 0)").
		Row().Scan(&agg.LossValue); err != nil {
		return nil, err
	}

	return agg, nil
}

func (r *dispatchRepo) fillScanCounts(ctx context.Context, dispatches []model.Dispatch) error {
	if len(dispatches) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(dispatches))
	for i := range dispatches {
		ids[i] = dispatches[i].ID
	}

	counts, err := (&scanRepo{db: r.db}).CountsByDispatch(ctx, ids...)
	if err != nil {
		return err
	}
	for i := range dispatches {
		for j := range dispatches[i].Items {
			dispatches[i].Items[j].ScannedCount = counts[dispatches[i].Items[j].ID]
		}
	}
	return nil
}
