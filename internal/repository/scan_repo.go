package repository

import (
	"context"
	"errors"

	"go-dispatch-ws/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ScanRepository is the append-only barcode audit trail.
type ScanRepository interface {
	Create(ctx context.Context, scan *model.BarcodeScan) error
	Exists(ctx context.Context, itemID uuid.UUID, barcode string) (bool, error)
	CountByItem(ctx context.Context, itemID uuid.UUID) (int, error)
	ListByItem(ctx context.Context, itemID uuid.UUID) ([]model.BarcodeScan, error)
	CountsByDispatch(ctx context.Context, dispatchIDs ...uuid.UUID) (map[uuid.UUID]int, error)
}

type scanRepo struct {
	db *gorm.DB
}

func NewScanRepo(db *gorm.DB) ScanRepository {
	return &scanRepo{db}
}

func (r *scanRepo) Create(ctx context.Context, scan *model.BarcodeScan) error {
	err := r.db.WithContext(ctx).Create(scan).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateScan
	}
	return err
}

func (r *scanRepo) Exists(ctx context.Context, itemID uuid.UUID, barcode string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.BarcodeScan{}).
		Where("dispatch_item_id = ? AND barcode = ?", itemID, barcode).
		Count(&count).Error
	return count > 0, err
}

func (r *scanRepo) CountByItem(ctx context.Context, itemID uuid.UUID) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.BarcodeScan{}).
		Where("dispatch_item_id = ?", itemID).
		Count(&count).Error
	return int(count), err
}

func (r *scanRepo) ListByItem(ctx context.Context, itemID uuid.UUID) ([]model.BarcodeScan, error) {
	var scans []model.BarcodeScan
	err := r.db.WithContext(ctx).
		Where("dispatch_item_id = ?", itemID).
		Order("scanned_at ASC, id ASC").
		Find(&scans).Error
	return scans, err
}

func (r *scanRepo) CountsByDispatch(ctx context.Context, dispatchIDs ...uuid.UUID) (map[uuid.UUID]int, error) {
	result := make(map[uuid.UUID]int)
	if len(dispatchIDs) == 0 {
		return result, nil
	}

	type itemCount struct {
		DispatchItemID uuid.UUID
		Count          int
	}
	var rows []itemCount
	err := r.db.WithContext(ctx).Model(&model.BarcodeScan{}).
		Select("dispatch_item_id, COUNT(*) AS count").
		Where("dispatch_id IN ?", dispatchIDs).
		Group("dispatch_item_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		result[row.DispatchItemID] = row.Count
	}
	return result, nil
}
