package memory

import (
	"context"
	"sort"
	"time"

	"go-dispatch-ws/internal/model"
	"go-dispatch-ws/internal/repository"

	"github.com/google/uuid"
)

// scanRepo provides in-memory storage for the barcode audit trail
type scanRepo struct {
	s *Store
}

// Verify interface compliance
var _ repository.ScanRepository = (*scanRepo)(nil)

func (r *scanRepo) Create(ctx context.Context, scan *model.BarcodeScan) error {
	st := r.s.st
	st.mu.Lock()
	defer st.mu.Unlock()

	key := scanKey{itemID: scan.DispatchItemID, barcode: scan.Barcode}
	if _, ok := st.scanIndex[key]; ok {
		return repository.ErrDuplicateScan
	}
	if scan.ID == uuid.Nil {
		scan.ID = uuid.New()
	}
	if scan.ScannedAt.IsZero() {
		scan.ScannedAt = time.Now()
	}

	itemID := scan.DispatchItemID
	st.scans[itemID] = append(st.scans[itemID], *scan)
	st.scanIndex[key] = struct{}{}

	r.s.record(func(st *state) {
		list := st.scans[itemID]
		if len(list) <= 1 {
			delete(st.scans, itemID)
		} else {
			st.scans[itemID] = list[:len(list)-1]
		}
		delete(st.scanIndex, key)
	})
	return nil
}

func (r *scanRepo) Exists(ctx context.Context, itemID uuid.UUID, barcode string) (bool, error) {
	st := r.s.st
	st.mu.RLock()
	defer st.mu.RUnlock()
	_, ok := st.scanIndex[scanKey{itemID: itemID, barcode: barcode}]
	return ok, nil
}

func (r *scanRepo) CountByItem(ctx context.Context, itemID uuid.UUID) (int, error) {
	st := r.s.st
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.scans[itemID]), nil
}

func (r *scanRepo) ListByItem(ctx context.Context, itemID uuid.UUID) ([]model.BarcodeScan, error) {
	st := r.s.st
	st.mu.RLock()
	defer st.mu.RUnlock()

	scans := append([]model.BarcodeScan(nil), st.scans[itemID]...)
	sort.SliceStable(scans, func(i, j int) bool {
		return scans[i].ScannedAt.Before(scans[j].ScannedAt)
	})
	return scans, nil
}

func (r *scanRepo) CountsByDispatch(ctx context.Context, dispatchIDs ...uuid.UUID) (map[uuid.UUID]int, error) {
	st := r.s.st
	st.mu.RLock()
	defer st.mu.RUnlock()

	result := make(map[uuid.UUID]int)
	for _, id := range dispatchIDs {
		d, ok := st.dispatches[id]
		if !ok {
			continue
		}
		for i := range d.Items {
			if n := len(st.scans[d.Items[i].ID]); n > 0 {
				result[d.Items[i].ID] = n
			}
		}
	}
	return result, nil
}

// eventRepo provides in-memory storage for dispatch status history
type eventRepo struct {
	s *Store
}

// Verify interface compliance
var _ repository.EventRepository = (*eventRepo)(nil)

func (r *eventRepo) Create(ctx context.Context, event *model.DispatchEvent) error {
	st := r.s.st
	st.mu.Lock()
	defer st.mu.Unlock()

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	dispatchID := event.DispatchID
	st.events[dispatchID] = append(st.events[dispatchID], *event)
	r.s.record(func(st *state) {
		list := st.events[dispatchID]
		if len(list) <= 1 {
			delete(st.events, dispatchID)
		} else {
			st.events[dispatchID] = list[:len(list)-1]
		}
	})
	return nil
}

func (r *eventRepo) ListByDispatch(ctx context.Context, dispatchID uuid.UUID) ([]model.DispatchEvent, error) {
	st := r.s.st
	st.mu.RLock()
	defer st.mu.RUnlock()
	return append([]model.DispatchEvent(nil), st.events[dispatchID]...), nil
}
