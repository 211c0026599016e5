package repository

import (
	"context"
	"errors"
	"time"

	"go-dispatch-ws/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BatchRepository is the engine's view of the batch ledger. Quantity changes go
// through AdjustActiveQuantity and Receive, which are single conditional
// statements; callers never read, compute and write back a quantity.
type BatchRepository interface {
	Create(ctx context.Context, batch *model.Batch) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Batch, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]model.Batch, error)
	// ListAvailable returns the store's batches with active quantity above zero.
	ListAvailable(ctx context.Context, storeID uuid.UUID) ([]model.Batch, error)
	GetActiveQuantity(ctx context.Context, id uuid.UUID) (int, error)
	// AdjustActiveQuantity applies delta only if the result stays within
	// [0, total]; otherwise it returns ErrInsufficientStock and changes nothing.
	AdjustActiveQuantity(ctx context.Context, id uuid.UUID, delta int) error
	// Receive adds quantity to the store's batch matching source by SKU and batch
	// code, creating it from the source's cost and price when missing.
	Receive(ctx context.Context, source *model.Batch, storeID uuid.UUID, quantity int) (*model.Batch, error)
}

type batchRepo struct {
	db *gorm.DB
}

func NewBatchRepo(db *gorm.DB) BatchRepository {
	return &batchRepo{db}
}

func (r *batchRepo) Create(ctx context.Context, batch *model.Batch) error {
	return r.db.WithContext(ctx).Create(batch).Error
}

func (r *batchRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Batch, error) {
	var batch model.Batch
	if err := r.db.WithContext(ctx).First(&batch, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &batch, nil
}

func (r *batchRepo) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]model.Batch, error) {
	result := make(map[uuid.UUID]model.Batch, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var batches []model.Batch
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&batches).Error; err != nil {
		return nil, err
	}
	for _, b := range batches {
		result[b.ID] = b
	}
	return result, nil
}

func (r *batchRepo) ListAvailable(ctx context.Context, storeID uuid.UUID) ([]model.Batch, error) {
	var batches []model.Batch
	err := r.db.WithContext(ctx).
		Where("store_id = ? AND active_quantity > 0", storeID).
		Order("product_sku ASC, batch_code ASC").
		Find(&batches).Error
	return batches, err
}

func (r *batchRepo) GetActiveQuantity(ctx context.Context, id uuid.UUID) (int, error) {
	var active int
	res := r.db.WithContext(ctx).Model(&model.Batch{}).
		Select("active_quantity").
		Where("id = ?", id).
		Scan(&active)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, ErrNotFound
	}
	return active, nil
}

func (r *batchRepo) AdjustActiveQuantity(ctx context.Context, id uuid.UUID, delta int) error {
	res := r.db.WithContext(ctx).Model(&model.Batch{}).
		Where("id = ? AND active_quantity + ? >= 0 AND active_quantity + ? <= total_quantity", id, delta, delta).
		Updates(map[string]interface{}{
			"active_quantity": gorm.Expr("active_quantity + ?", delta),
			"updated_at":      time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Batch{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}
	return ErrInsufficientStock
}

func (r *batchRepo) Receive(ctx context.Context, source *model.Batch, storeID uuid.UUID, quantity int) (*model.Batch, error) {
	incoming := &model.Batch{
		StoreID:        storeID,
		ProductSKU:     source.ProductSKU,
		ProductName:    source.ProductName,
		BatchCode:      source.BatchCode,
		TotalQuantity:  quantity,
		ActiveQuantity: quantity,
		UnitCost:       source.UnitCost,
		UnitPrice:      source.UnitPrice,
	}
	incoming.CreatedBy = source.UpdatedBy
	incoming.UpdatedBy = source.UpdatedBy

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "store_id"}, {Name: "product_sku"}, {Name: "batch_code"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"total_quantity":  gorm.Expr("batches.total_quantity + EXCLUDED.total_quantity"),
			"active_quantity": gorm.Expr("batches.active_quantity + EXCLUDED.active_quantity"),
			"updated_at":      gorm.Expr("EXCLUDED.updated_at"),
		}),
	}).Create(incoming).Error
	if err != nil {
		return nil, err
	}

	var stored model.Batch
	err = r.db.WithContext(ctx).
		First(&stored, "store_id = ? AND product_sku = ? AND batch_code = ?", storeID, source.ProductSKU, source.BatchCode).Error
	if err != nil {
		return nil, err
	}
	return &stored, nil
}
