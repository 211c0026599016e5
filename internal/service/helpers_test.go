package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"go-dispatch-ws/internal/model"
	"go-dispatch-ws/internal/repository/memory"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var operator = model.Actor{ID: "op-1", Name: "Operator One", Email: "op1@example.com"}

type recordingNotifier struct {
	mu       sync.Mutex
	payloads [][]byte
	stores   [][]uuid.UUID
}

func (n *recordingNotifier) Publish(storeIDs []uuid.UUID, payload []byte) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stores = append(n.stores, storeIDs)
	n.payloads = append(n.payloads, payload)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.payloads)
}

// mapCache mirrors the generation scheme of the redis cache.
type mapCache struct {
	mu            sync.Mutex
	gen           int64
	values        map[string][]byte
	invalidations int
}

func newMapCache() *mapCache { return &mapCache{values: make(map[string][]byte)} }

func (c *mapCache) entry(gen int64, key string) string {
	return fmt.Sprintf("%d:%s", gen, key)
}

func (c *mapCache) Get(_ context.Context, key string) ([]byte, int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[c.entry(c.gen, key)]
	return v, c.gen, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, gen int64, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[c.entry(gen, key)] = value
	return nil
}

func (c *mapCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.invalidations++
	return nil
}

func (c *mapCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.values[c.entry(c.gen, key)]
	return ok
}

type recordingArchiver struct {
	summaries []*ReconciliationSummary
}

func (a *recordingArchiver) Archive(_ context.Context, s *ReconciliationSummary) error {
	a.summaries = append(a.summaries, s)
	return nil
}

type fixture struct {
	t        *testing.T
	ctx      context.Context
	store    *memory.Store
	notifier *recordingNotifier
	cache    *mapCache
	archiver *recordingArchiver
	dispatch DispatchService
	scans    ScanService
	stats    StatisticsService
	storeA   uuid.UUID
	storeB   uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{
		t:        t,
		ctx:      context.Background(),
		store:    memory.NewStore(),
		notifier: &recordingNotifier{},
		cache:    newMapCache(),
		archiver: &recordingArchiver{},
		storeA:   uuid.New(),
		storeB:   uuid.New(),
	}
	f.dispatch = NewDispatchService(f.store, f.notifier, f.cache, f.archiver, nil)
	f.scans = NewScanService(f.store, f.notifier, nil)
	f.stats = NewStatisticsService(f.store, f.cache, nil)
	return f
}

func (f *fixture) batch(storeID uuid.UUID, code string, qty int) *model.Batch {
	f.t.Helper()
	b := &model.Batch{
		StoreID:        storeID,
		ProductSKU:     "SKU-" + code,
		ProductName:    "Product " + code,
		BatchCode:      code,
		TotalQuantity:  qty,
		ActiveQuantity: qty,
		UnitCost:       decimal.NewFromFloat(2.50),
		UnitPrice:      decimal.NewFromInt(4),
	}
	require.NoError(f.t, f.store.Batches().Create(f.ctx, b))
	return b
}

func (f *fixture) active(batchID uuid.UUID) int {
	f.t.Helper()
	n, err := f.store.Batches().GetActiveQuantity(f.ctx, batchID)
	require.NoError(f.t, err)
	return n
}

// activeAt reads the destination counterpart of source, zero when none exists yet.
func (f *fixture) activeAt(storeID uuid.UUID, source *model.Batch) int {
	f.t.Helper()
	batches, err := f.store.Batches().ListAvailable(f.ctx, storeID)
	require.NoError(f.t, err)
	for _, b := range batches {
		if b.ProductSKU == source.ProductSKU && b.BatchCode == source.BatchCode {
			return b.ActiveQuantity
		}
	}
	return 0
}

func (f *fixture) create(submit bool, items ...ItemRequest) *model.Dispatch {
	f.t.Helper()
	d, err := f.dispatch.CreateDispatch(f.ctx, &CreateDispatchRequest{
		SourceStoreID:      f.storeA,
		DestinationStoreID: f.storeB,
		Items:              items,
		Submit:             submit,
	}, operator)
	require.NoError(f.t, err)
	return d
}

// inTransit walks a fresh dispatch to in_transit.
func (f *fixture) inTransit(items ...ItemRequest) *model.Dispatch {
	f.t.Helper()
	d := f.create(true, items...)
	_, err := f.dispatch.Approve(f.ctx, d.ID, operator)
	require.NoError(f.t, err)
	d, err = f.dispatch.MarkDispatched(f.ctx, d.ID, operator)
	require.NoError(f.t, err)
	return d
}

func (f *fixture) reload(id uuid.UUID) *model.Dispatch {
	f.t.Helper()
	d, err := f.store.Dispatches().FindByID(f.ctx, id)
	require.NoError(f.t, err)
	return d
}

func fullManifest(d *model.Dispatch) *DeliverRequest {
	req := &DeliverRequest{}
	for _, item := range d.Items {
		req.Items = append(req.Items, ManifestEntry{ItemID: item.ID, ReceivedQuantity: item.RequestedQuantity})
	}
	return req
}
