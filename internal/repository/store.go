package repository

import (
	"context"

	"go-dispatch-ws/internal/model"

	"gorm.io/gorm"
)

// Store groups the repositories of the engine. Atomic runs fn inside one unit of
// work: every repository reached through the Store handed to fn commits together
// or rolls back together when fn returns an error.
type Store interface {
	Dispatches() DispatchRepository
	Batches() BatchRepository
	Scans() ScanRepository
	Events() EventRepository
	Atomic(ctx context.Context, fn func(tx Store) error) error
}

type gormStore struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Dispatches() DispatchRepository { return &dispatchRepo{db: s.db} }
func (s *gormStore) Batches() BatchRepository       { return &batchRepo{db: s.db} }
func (s *gormStore) Scans() ScanRepository          { return &scanRepo{db: s.db} }
func (s *gormStore) Events() EventRepository        { return &eventRepo{db: s.db} }

func (s *gormStore) Atomic(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}

// AutoMigrate creates or updates the engine tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Batch{},
		&model.Dispatch{},
		&model.DispatchItem{},
		&model.BarcodeScan{},
		&model.DispatchEvent{},
	)
}
