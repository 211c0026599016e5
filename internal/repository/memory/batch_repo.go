package memory

import (
	"context"
	"sort"
	"time"

	"go-dispatch-ws/internal/model"
	"go-dispatch-ws/internal/repository"

	"github.com/google/uuid"
)

// batchRepo provides in-memory batch ledger storage
type batchRepo struct {
	s *Store
}

// Verify interface compliance
var _ repository.BatchRepository = (*batchRepo)(nil)

func (r *batchRepo) Create(ctx context.Context, batch *model.Batch) error {
	st := r.s.st
	st.mu.Lock()
	defer st.mu.Unlock()

	key := keyOf(batch.StoreID, batch.ProductSKU, batch.BatchCode)
	if _, ok := st.batchKeys[key]; ok {
		return repository.ErrDuplicateItem
	}
	stampCreate(&batch.BaseModel, time.Now())
	if _, ok := st.batches[batch.ID]; ok {
		return repository.ErrDuplicateItem
	}

	stored := *batch
	st.batches[batch.ID] = &stored
	st.batchKeys[key] = batch.ID

	id := batch.ID
	r.s.record(func(st *state) {
		delete(st.batches, id)
		delete(st.batchKeys, key)
	})
	return nil
}

func (r *batchRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Batch, error) {
	st := r.s.st
	st.mu.RLock()
	defer st.mu.RUnlock()

	b, ok := st.batches[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *b
	return &c, nil
}

func (r *batchRepo) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]model.Batch, error) {
	st := r.s.st
	st.mu.RLock()
	defer st.mu.RUnlock()

	result := make(map[uuid.UUID]model.Batch, len(ids))
	for _, id := range ids {
		if b, ok := st.batches[id]; ok {
			result[id] = *b
		}
	}
	return result, nil
}

func (r *batchRepo) ListAvailable(ctx context.Context, storeID uuid.UUID) ([]model.Batch, error) {
	st := r.s.st
	st.mu.RLock()
	defer st.mu.RUnlock()

	var result []model.Batch
	for _, b := range st.batches {
		if b.StoreID == storeID && b.ActiveQuantity > 0 {
			result = append(result, *b)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].ProductSKU != result[j].ProductSKU {
			return result[i].ProductSKU < result[j].ProductSKU
		}
		return result[i].BatchCode < result[j].BatchCode
	})
	return result, nil
}

func (r *batchRepo) GetActiveQuantity(ctx context.Context, id uuid.UUID) (int, error) {
	st := r.s.st
	st.mu.RLock()
	defer st.mu.RUnlock()

	b, ok := st.batches[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	return b.ActiveQuantity, nil
}

func (r *batchRepo) AdjustActiveQuantity(ctx context.Context, id uuid.UUID, delta int) error {
	st := r.s.st
	st.mu.Lock()
	defer st.mu.Unlock()

	b, ok := st.batches[id]
	if !ok {
		return repository.ErrNotFound
	}
	next := b.ActiveQuantity + delta
	if next < 0 || next > b.TotalQuantity {
		return repository.ErrInsufficientStock
	}

	b.ActiveQuantity = next
	b.UpdatedAt = time.Now()
	r.s.record(func(st *state) {
		st.unadjust(id, delta)
	})
	return nil
}

func (r *batchRepo) Receive(ctx context.Context, source *model.Batch, storeID uuid.UUID, quantity int) (*model.Batch, error) {
	st := r.s.st
	st.mu.Lock()
	defer st.mu.Unlock()

	now := time.Now()
	key := keyOf(storeID, source.ProductSKU, source.BatchCode)

	if id, ok := st.batchKeys[key]; ok {
		b := st.batches[id]
		b.TotalQuantity += quantity
		b.ActiveQuantity += quantity
		b.UpdatedAt = now
		r.s.record(func(st *state) {
			st.unreceive(id, key, quantity, false)
		})
		c := *b
		return &c, nil
	}

	b := &model.Batch{
		StoreID:        storeID,
		ProductSKU:     source.ProductSKU,
		ProductName:    source.ProductName,
		BatchCode:      source.BatchCode,
		TotalQuantity:  quantity,
		ActiveQuantity: quantity,
		UnitCost:       source.UnitCost,
		UnitPrice:      source.UnitPrice,
	}
	b.CreatedBy = source.UpdatedBy
	b.UpdatedBy = source.UpdatedBy
	stampCreate(&b.BaseModel, now)

	st.batches[b.ID] = b
	st.batchKeys[key] = b.ID
	id := b.ID
	r.s.record(func(st *state) {
		st.unreceive(id, key, quantity, true)
	})
	c := *b
	return &c, nil
}

// Ledger undo steps reverse their own delta on the live row instead of
// restoring a snapshot, so changes committed by other callers in the meantime
// survive a rollback.

func (st *state) unadjust(id uuid.UUID, delta int) {
	b, ok := st.batches[id]
	if !ok {
		return
	}
	b.ActiveQuantity = clamp(b.ActiveQuantity-delta, 0, b.TotalQuantity)
}

func (st *state) unreceive(id uuid.UUID, key batchKey, quantity int, created bool) {
	b, ok := st.batches[id]
	if !ok {
		return
	}
	b.TotalQuantity -= quantity
	if created && b.TotalQuantity <= 0 {
		delete(st.batches, id)
		delete(st.batchKeys, key)
		return
	}
	if b.TotalQuantity < 0 {
		b.TotalQuantity = 0
	}
	b.ActiveQuantity = clamp(b.ActiveQuantity-quantity, 0, b.TotalQuantity)
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

func keyOf(storeID uuid.UUID, sku, code string) batchKey {
	return batchKey{storeID: storeID, sku: sku, code: code}
}
