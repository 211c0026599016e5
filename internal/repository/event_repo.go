package repository

import (
	"context"

	"go-dispatch-ws/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type EventRepository interface {
	Create(ctx context.Context, event *model.DispatchEvent) error
	ListByDispatch(ctx context.Context, dispatchID uuid.UUID) ([]model.DispatchEvent, error)
}

type eventRepo struct {
	db *gorm.DB
}

func NewEventRepo(db *gorm.DB) EventRepository {
	return &eventRepo{db}
}

func (r *eventRepo) Create(ctx context.Context, event *model.DispatchEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *eventRepo) ListByDispatch(ctx context.Context, dispatchID uuid.UUID) ([]model.DispatchEvent, error) {
	var events []model.DispatchEvent
	err := r.db.WithContext(ctx).
		Where("dispatch_id = ?", dispatchID).
		Order("created_at ASC").
		Find(&events).Error
	return events, err
}
