package memory

import (
	"context"
	"strings"
	"time"

	"go-dispatch-ws/internal/model"
	"go-dispatch-ws/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// dispatchRepo provides in-memory dispatch storage
type dispatchRepo struct {
	s *Store
}

// Verify interface compliance
var _ repository.DispatchRepository = (*dispatchRepo)(nil)

func (r *dispatchRepo) Create(ctx context.Context, d *model.Dispatch) error {
	st := r.s.st
	st.mu.Lock()
	defer st.mu.Unlock()

	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if _, ok := st.dispatches[d.ID]; ok {
		return repository.ErrDuplicateNumber
	}
	if _, ok := st.numbers[d.Number]; ok {
		return repository.ErrDuplicateNumber
	}
	seen := make(map[uuid.UUID]bool, len(d.Items))
	for i := range d.Items {
		if seen[d.Items[i].BatchID] {
			return repository.ErrDuplicateItem
		}
		seen[d.Items[i].BatchID] = true
	}

	now := time.Now()
	stampCreate(&d.BaseModel, now)
	if d.Version == 0 {
		d.Version = 1
	}
	for i := range d.Items {
		stampCreate(&d.Items[i].BaseModel, now)
		d.Items[i].DispatchID = d.ID
	}

	stored := d.Clone()
	st.dispatches[d.ID] = stored
	st.numbers[d.Number] = d.ID
	st.order = append(st.order, d.ID)

	id, number := d.ID, d.Number
	r.s.record(func(st *state) {
		delete(st.dispatches, id)
		delete(st.numbers, number)
		for i := len(st.order) - 1; i >= 0; i-- {
			if st.order[i] == id {
				st.order = append(st.order[:i], st.order[i+1:]...)
				break
			}
		}
	})
	return nil
}

func (r *dispatchRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Dispatch, error) {
	st := r.s.st
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.readDispatch(id)
}

func (r *dispatchRepo) FindByNumber(ctx context.Context, number string) (*model.Dispatch, error) {
	st := r.s.st
	st.mu.RLock()
	defer st.mu.RUnlock()
	id, ok := st.numbers[number]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return st.readDispatch(id)
}

func (r *dispatchRepo) FindForUpdate(ctx context.Context, id uuid.UUID) (*model.Dispatch, error) {
	if err := r.s.lockDispatch(ctx, id); err != nil {
		return nil, err
	}
	return r.FindByID(ctx, id)
}

func (r *dispatchRepo) Update(ctx context.Context, d *model.Dispatch) error {
	st := r.s.st
	st.mu.Lock()
	defer st.mu.Unlock()

	cur, ok := st.dispatches[d.ID]
	if !ok || cur.Version != d.Version {
		return repository.ErrStaleVersion
	}
	prev := cur.Clone()

	cur.Status = d.Status
	cur.ExpectedDeliveryDate = cloneTime(d.ExpectedDeliveryDate)
	cur.Carrier = d.Carrier
	cur.TrackingNumber = d.TrackingNumber
	cur.Notes = d.Notes
	cur.DispatchedAt = cloneTime(d.DispatchedAt)
	cur.DeliveredAt = cloneTime(d.DeliveredAt)
	cur.CancelledAt = cloneTime(d.CancelledAt)
	cur.CancelReason = d.CancelReason
	cur.UpdatedBy = d.UpdatedBy
	cur.UpdatedAt = time.Now()
	cur.Version++

	d.Version = cur.Version
	d.UpdatedAt = cur.UpdatedAt
	r.s.record(restoreDispatch(prev))
	return nil
}

func (r *dispatchRepo) AddItem(ctx context.Context, item *model.DispatchItem) error {
	st := r.s.st
	st.mu.Lock()
	defer st.mu.Unlock()

	cur, ok := st.dispatches[item.DispatchID]
	if !ok {
		return repository.ErrNotFound
	}
	if cur.ItemByBatch(item.BatchID) != nil {
		return repository.ErrDuplicateItem
	}
	prev := cur.Clone()

	stampCreate(&item.BaseModel, time.Now())
	cur.Items = append(cur.Items, item.Clone())
	r.s.record(restoreDispatch(prev))
	return nil
}

func (r *dispatchRepo) RemoveItem(ctx context.Context, dispatchID, itemID uuid.UUID) error {
	st := r.s.st
	st.mu.Lock()
	defer st.mu.Unlock()

	cur, ok := st.dispatches[dispatchID]
	if !ok {
		return repository.ErrNotFound
	}
	for i := range cur.Items {
		if cur.Items[i].ID == itemID {
			prev := cur.Clone()
			cur.Items = append(cur.Items[:i], cur.Items[i+1:]...)
			r.s.record(restoreDispatch(prev))
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *dispatchRepo) RecordReceipt(ctx context.Context, item *model.DispatchItem) error {
	st := r.s.st
	st.mu.Lock()
	defer st.mu.Unlock()

	cur, ok := st.dispatches[item.DispatchID]
	if !ok {
		return repository.ErrNotFound
	}
	stored := cur.ItemByID(item.ID)
	if stored == nil {
		return repository.ErrNotFound
	}
	if stored.Reconciled() {
		return repository.ErrStaleVersion
	}
	prev := cur.Clone()

	stored.ReceivedQuantity = cloneInt(item.ReceivedQuantity)
	stored.DamagedQuantity = cloneInt(item.DamagedQuantity)
	stored.MissingQuantity = cloneInt(item.MissingQuantity)
	stored.UpdatedBy = item.UpdatedBy
	stored.UpdatedAt = time.Now()
	r.s.record(restoreDispatch(prev))
	return nil
}

func (r *dispatchRepo) List(ctx context.Context, filter repository.DispatchFilter) ([]model.Dispatch, int64, error) {
	filter.Normalize()

	st := r.s.st
	st.mu.RLock()
	defer st.mu.RUnlock()

	search := strings.ToLower(filter.Search)
	var matched []*model.Dispatch
	for i := len(st.order) - 1; i >= 0; i-- {
		d := st.dispatches[st.order[i]]
		if matchesFilter(d, filter, search) {
			matched = append(matched, d)
		}
	}

	total := int64(len(matched))
	start := filter.Offset()
	if start > len(matched) {
		start = len(matched)
	}
	end := start + filter.Limit
	if end > len(matched) {
		end = len(matched)
	}

	result := make([]model.Dispatch, 0, end-start)
	for _, d := range matched[start:end] {
		result = append(result, *st.withScanCounts(d.Clone()))
	}
	return result, total, nil
}

func (r *dispatchRepo) Aggregate(ctx context.Context, storeID *uuid.UUID) (*repository.DispatchAggregate, error) {
	st := r.s.st
	st.mu.RLock()
	defer st.mu.RUnlock()

	agg := &repository.DispatchAggregate{
		StatusCounts:    make(map[model.DispatchStatus]int64),
		DispatchedValue: decimal.Zero,
		LossValue:       decimal.Zero,
	}
	for _, d := range st.dispatches {
		if storeID != nil && d.SourceStoreID != *storeID && d.DestinationStoreID != *storeID {
			continue
		}
		agg.StatusCounts[d.Status]++
		if d.Status != model.StatusCancelled {
			agg.DispatchedValue = agg.DispatchedValue.Add(d.TotalValue())
		}
		if d.Status == model.StatusDelivered {
			for i := range d.Items {
				agg.LossValue = agg.LossValue.Add(d.Items[i].LossValue())
			}
		}
	}
	return agg, nil
}

func matchesFilter(d *model.Dispatch, f repository.DispatchFilter, search string) bool {
	if f.Status != "" && d.Status != f.Status {
		return false
	}
	if f.SourceStoreID != nil && d.SourceStoreID != *f.SourceStoreID {
		return false
	}
	if f.DestinationStoreID != nil && d.DestinationStoreID != *f.DestinationStoreID {
		return false
	}
	if f.StoreID != nil && d.SourceStoreID != *f.StoreID && d.DestinationStoreID != *f.StoreID {
		return false
	}
	if search == "" {
		return true
	}
	for _, field := range []string{d.Number, d.Carrier, d.TrackingNumber, d.Notes} {
		if strings.Contains(strings.ToLower(field), search) {
			return true
		}
	}
	return false
}

// readDispatch expects st.mu held.
func (st *state) readDispatch(id uuid.UUID) (*model.Dispatch, error) {
	d, ok := st.dispatches[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return st.withScanCounts(d.Clone()), nil
}

func (st *state) withScanCounts(d *model.Dispatch) *model.Dispatch {
	for i := range d.Items {
		d.Items[i].ScannedCount = len(st.scans[d.Items[i].ID])
	}
	return d
}

func restoreDispatch(prev *model.Dispatch) func(st *state) {
	return func(st *state) {
		st.dispatches[prev.ID] = prev
	}
}

func stampCreate(base *model.BaseModel, now time.Time) {
	if base.ID == uuid.Nil {
		base.ID = uuid.New()
	}
	if base.CreatedAt.IsZero() {
		base.CreatedAt = now
	}
	base.UpdatedAt = now
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
