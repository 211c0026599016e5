package service

import (
	"encoding/json"
	"regexp"
	"sync"
	"testing"
	"time"

	"go-dispatch-ws/internal/model"
	"go-dispatch-ws/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateDispatch_Draft(t *testing.T) {
	f := newFixture(t)
	b := f.batch(f.storeA, "X", 15)

	d := f.create(false, ItemRequest{BatchID: b.ID, Quantity: 10})

	assert.Equal(t, model.StatusDraft, d.Status)
	assert.Regexp(t, regexp.MustCompile(`^DSP-\d{8}-[0-9A-F]{8}$`), d.Number)
	assert.Equal(t, operator.ID, d.CreatedBy)
	require.Len(t, d.Items, 1)
	assert.Equal(t, b.BatchCode, d.Items[0].BatchCode)
	assert.True(t, d.Items[0].UnitCost.Equal(b.UnitCost))
	assert.Equal(t, 15, f.active(b.ID), "creating a dispatch never moves stock")
	assert.Equal(t, 1, f.notifier.count())
}

func TestCreateDispatch_SubmitGoesStraightToPending(t *testing.T) {
	f := newFixture(t)
	b := f.batch(f.storeA, "X", 15)

	d := f.create(true, ItemRequest{BatchID: b.ID, Quantity: 1})
	assert.Equal(t, model.StatusPendingApproval, d.Status)
}

func TestCreateDispatch_EmptyDraftAllowed(t *testing.T) {
	f := newFixture(t)
	d := f.create(false)
	assert.Equal(t, model.StatusDraft, d.Status)
	assert.Empty(t, d.Items)
}

func TestCreateDispatch_NumberCollision(t *testing.T) {
	f := newFixture(t)
	b := f.batch(f.storeA, "X", 15)
	svc := f.dispatch.(*dispatchService)

	numbers := []string{"DSP-FIXED", "DSP-FIXED", "DSP-FRESH"}
	svc.newNumber = func(time.Time) string {
		n := numbers[0]
		if len(numbers) > 1 {
			numbers = numbers[1:]
		}
		return n
	}

	first := f.create(false, ItemRequest{BatchID: b.ID, Quantity: 1})
	assert.Equal(t, "DSP-FIXED", first.Number)

	retried := f.create(false, ItemRequest{BatchID: b.ID, Quantity: 1})
	assert.Equal(t, "DSP-FRESH", retried.Number)

	svc.newNumber = func(time.Time) string { return "DSP-FIXED" }
	_, err := f.dispatch.CreateDispatch(f.ctx, &CreateDispatchRequest{
		SourceStoreID:      f.storeA,
		DestinationStoreID: f.storeB,
		Items:              []ItemRequest{{BatchID: b.ID, Quantity: 1}},
	}, operator)
	require.Error(t, err)
	assert.Equal(t, KindConflict, KindOf(err))
	assert.ErrorIs(t, err, repository.ErrDuplicateNumber)
	assert.Contains(t, err.Error(), "number DSP-FIXED is already in use")
}

func TestCreateDispatch_ValidationErrors(t *testing.T) {
	f := newFixture(t)
	b := f.batch(f.storeA, "X", 15)
	foreign := f.batch(f.storeB, "Y", 15)

	tests := []struct {
		name  string
		req   *CreateDispatchRequest
		actor model.Actor
	}{
		{
			name:  "same store",
			req:   &CreateDispatchRequest{SourceStoreID: f.storeA, DestinationStoreID: f.storeA},
			actor: operator,
		},
		{
			name: "quantity above active",
			req: &CreateDispatchRequest{SourceStoreID: f.storeA, DestinationStoreID: f.storeB,
				Items: []ItemRequest{{BatchID: b.ID, Quantity: 20}}},
			actor: operator,
		},
		{
			name: "repeated batch",
			req: &CreateDispatchRequest{SourceStoreID: f.storeA, DestinationStoreID: f.storeB,
				Items: []ItemRequest{{BatchID: b.ID, Quantity: 1}, {BatchID: b.ID, Quantity: 2}}},
			actor: operator,
		},
		{
			name: "zero quantity",
			req: &CreateDispatchRequest{SourceStoreID: f.storeA, DestinationStoreID: f.storeB,
				Items: []ItemRequest{{BatchID: b.ID, Quantity: 0}}},
			actor: operator,
		},
		{
			name: "batch of another store",
			req: &CreateDispatchRequest{SourceStoreID: f.storeA, DestinationStoreID: f.storeB,
				Items: []ItemRequest{{BatchID: foreign.ID, Quantity: 1}}},
			actor: operator,
		},
		{
			name: "unknown batch",
			req: &CreateDispatchRequest{SourceStoreID: f.storeA, DestinationStoreID: f.storeB,
				Items: []ItemRequest{{BatchID: uuid.New(), Quantity: 1}}},
			actor: operator,
		},
		{
			name:  "submit without items",
			req:   &CreateDispatchRequest{SourceStoreID: f.storeA, DestinationStoreID: f.storeB, Submit: true},
			actor: operator,
		},
		{
			name:  "missing actor",
			req:   &CreateDispatchRequest{SourceStoreID: f.storeA, DestinationStoreID: f.storeB},
			actor: model.Actor{},
		},
		{
			name:  "missing store",
			req:   &CreateDispatchRequest{DestinationStoreID: f.storeB},
			actor: operator,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.dispatch.CreateDispatch(f.ctx, tt.req, tt.actor)
			require.Error(t, err)
			assert.True(t, IsKind(err, KindValidation), "got %v", err)
		})
	}

	page, err := f.dispatch.ListDispatches(f.ctx, repository.DispatchFilter{})
	require.NoError(t, err)
	assert.Zero(t, page.Total, "failed creates leave nothing behind")
}

func TestScenarioB_CreateAboveActiveQuantity(t *testing.T) {
	f := newFixture(t)
	b := f.batch(f.storeA, "X", 15)

	_, err := f.dispatch.CreateDispatch(f.ctx, &CreateDispatchRequest{
		SourceStoreID:      f.storeA,
		DestinationStoreID: f.storeB,
		Items:              []ItemRequest{{BatchID: b.ID, Quantity: 20}},
	}, operator)

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, KindValidation, e.Kind)
	assert.Equal(t, 15, e.Details["available_quantity"])
	assert.Equal(t, 20, e.Details["requested_quantity"])
}

func TestScenarioA_FullLifecycle(t *testing.T) {
	f := newFixture(t)
	x := f.batch(f.storeA, "X", 15)

	d := f.inTransit(ItemRequest{BatchID: x.ID, Quantity: 10})
	itemID := d.Items[0].ID

	for _, code := range []string{"U-1", "U-2", "U-3", "U-4"} {
		_, err := f.scans.Scan(f.ctx, d.ID, itemID, &ScanRequest{Barcode: code}, operator)
		require.NoError(t, err)
	}

	delivered, err := f.dispatch.MarkDelivered(f.ctx, d.ID, &DeliverRequest{Items: []ManifestEntry{
		{ItemID: itemID, ReceivedQuantity: 9, DamagedQuantity: 1},
	}}, operator)
	require.NoError(t, err)

	assert.Equal(t, model.StatusDelivered, delivered.Status)
	assert.NotNil(t, delivered.DeliveredAt)
	assert.Equal(t, 5, f.active(x.ID))
	assert.Equal(t, 9, f.activeAt(f.storeB, x))

	stored := f.reload(d.ID)
	item := stored.Items[0]
	assert.Equal(t, 4, item.ScannedCount)
	require.NotNil(t, item.ReceivedQuantity)
	assert.Equal(t, 9, *item.ReceivedQuantity)
	assert.Equal(t, 1, *item.DamagedQuantity)
	assert.Equal(t, 0, *item.MissingQuantity)

	require.Len(t, f.archiver.summaries, 1)
	assert.Equal(t, 1, f.archiver.summaries[0].Damaged)
	assert.Equal(t, "2.5", f.archiver.summaries[0].LossValue.String())

	events, err := f.dispatch.ListEvents(f.ctx, d.ID)
	require.NoError(t, err)
	var actions []string
	for _, e := range events {
		actions = append(actions, e.Action)
	}
	assert.Equal(t, []string{"create", "approve", "mark_dispatched", "mark_delivered"}, actions)
	assert.Equal(t, model.StatusInTransit, events[3].FromStatus)
}

func TestScenarioC_ApproveAfterStockDropped(t *testing.T) {
	f := newFixture(t)
	x := f.batch(f.storeA, "X", 15)
	d := f.create(true, ItemRequest{BatchID: x.ID, Quantity: 10})

	// A concurrent sale consumes stock
	require.NoError(t, f.store.Batches().AdjustActiveQuantity(f.ctx, x.ID, -8))

	_, err := f.dispatch.Approve(f.ctx, d.ID, operator)
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, KindConflict, e.Kind)
	assert.Equal(t, d.Items[0].ID.String(), e.Details["item_id"])
	assert.Equal(t, 7, e.Details["available_quantity"])

	stored := f.reload(d.ID)
	assert.Equal(t, model.StatusPendingApproval, stored.Status)
	assert.Equal(t, d.Version, stored.Version)
}

func TestScenarioE_ManifestMismatchRejectsWholeDelivery(t *testing.T) {
	f := newFixture(t)
	x := f.batch(f.storeA, "X", 15)
	y := f.batch(f.storeA, "Y", 15)
	d := f.inTransit(ItemRequest{BatchID: x.ID, Quantity: 5}, ItemRequest{BatchID: y.ID, Quantity: 5})

	_, err := f.dispatch.MarkDelivered(f.ctx, d.ID, &DeliverRequest{Items: []ManifestEntry{
		{ItemID: d.Items[0].ID, ReceivedQuantity: 5},
		{ItemID: d.Items[1].ID, ReceivedQuantity: 3, DamagedQuantity: 1},
	}}, operator)

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, KindReconciliation, e.Kind)
	assert.Equal(t, d.Items[1].ID.String(), e.Details["item_id"])

	stored := f.reload(d.ID)
	assert.Equal(t, model.StatusInTransit, stored.Status)
	assert.Nil(t, stored.Items[0].ReceivedQuantity)
	assert.Equal(t, 15, f.active(x.ID))
	assert.Equal(t, 15, f.active(y.ID))
	assert.Equal(t, 0, f.activeAt(f.storeB, x))
	assert.Empty(t, f.archiver.summaries)
}

func TestMarkDelivered_ManifestShapeErrors(t *testing.T) {
	f := newFixture(t)
	x := f.batch(f.storeA, "X", 15)
	d := f.inTransit(ItemRequest{BatchID: x.ID, Quantity: 5})
	itemID := d.Items[0].ID

	tests := []struct {
		name     string
		manifest []ManifestEntry
	}{
		{"missing entry", nil},
		{"unknown item", []ManifestEntry{{ItemID: itemID, ReceivedQuantity: 5}, {ItemID: uuid.New(), ReceivedQuantity: 1}}},
		{"repeated item", []ManifestEntry{{ItemID: itemID, ReceivedQuantity: 5}, {ItemID: itemID, ReceivedQuantity: 5}}},
		{"negative", []ManifestEntry{{ItemID: itemID, ReceivedQuantity: 6, MissingQuantity: -1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.dispatch.MarkDelivered(f.ctx, d.ID, &DeliverRequest{Items: tt.manifest}, operator)
			assert.True(t, IsKind(err, KindReconciliation), "got %v", err)
		})
	}
	assert.Equal(t, model.StatusInTransit, f.reload(d.ID).Status)
}

func TestMarkDelivered_FloorFailureRollsBackEveryItem(t *testing.T) {
	f := newFixture(t)
	x := f.batch(f.storeA, "X", 15)
	y := f.batch(f.storeA, "Y", 15)
	d := f.inTransit(ItemRequest{BatchID: x.ID, Quantity: 5}, ItemRequest{BatchID: y.ID, Quantity: 5})

	// Batch Y sold out after approval
	require.NoError(t, f.store.Batches().AdjustActiveQuantity(f.ctx, y.ID, -12))

	_, err := f.dispatch.MarkDelivered(f.ctx, d.ID, fullManifest(d), operator)
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, KindConflict, e.Kind)
	assert.Equal(t, y.ID.String(), e.Details["batch_id"])

	assert.Equal(t, 15, f.active(x.ID), "first item's decrement is rolled back")
	assert.Equal(t, 0, f.activeAt(f.storeB, x))
	stored := f.reload(d.ID)
	assert.Equal(t, model.StatusInTransit, stored.Status)
	assert.Nil(t, stored.Items[0].ReceivedQuantity)
}

func TestMarkDelivered_AllMissingCreatesNoDestinationStock(t *testing.T) {
	f := newFixture(t)
	x := f.batch(f.storeA, "X", 15)
	d := f.inTransit(ItemRequest{BatchID: x.ID, Quantity: 5})

	_, err := f.dispatch.MarkDelivered(f.ctx, d.ID, &DeliverRequest{Items: []ManifestEntry{
		{ItemID: d.Items[0].ID, MissingQuantity: 5},
	}}, operator)
	require.NoError(t, err)

	assert.Equal(t, 10, f.active(x.ID))
	available, err := f.dispatch.ListAvailableBatches(f.ctx, f.storeB)
	require.NoError(t, err)
	assert.Empty(t, available)
}

func TestMarkDelivered_MergesIntoExistingDestinationBatch(t *testing.T) {
	f := newFixture(t)
	x := f.batch(f.storeA, "X", 15)
	existing := f.batch(f.storeB, "X", 3)
	d := f.inTransit(ItemRequest{BatchID: x.ID, Quantity: 4})

	_, err := f.dispatch.MarkDelivered(f.ctx, d.ID, fullManifest(d), operator)
	require.NoError(t, err)

	merged, err := f.store.Batches().FindByID(f.ctx, existing.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, merged.ActiveQuantity)
	assert.Equal(t, 7, merged.TotalQuantity)
}

func TestTransitions_RejectedFromWrongState(t *testing.T) {
	f := newFixture(t)
	x := f.batch(f.storeA, "X", 15)

	draft := f.create(false, ItemRequest{BatchID: x.ID, Quantity: 1})
	pending := f.create(true, ItemRequest{BatchID: x.ID, Quantity: 1})

	tests := []struct {
		name string
		call func() error
		id   uuid.UUID
		want model.DispatchStatus
	}{
		{"approve draft", func() error { _, err := f.dispatch.Approve(f.ctx, draft.ID, operator); return err }, draft.ID, model.StatusDraft},
		{"dispatch draft", func() error { _, err := f.dispatch.MarkDispatched(f.ctx, draft.ID, operator); return err }, draft.ID, model.StatusDraft},
		{"deliver pending", func() error {
			_, err := f.dispatch.MarkDelivered(f.ctx, pending.ID, fullManifest(pending), operator)
			return err
		}, pending.ID, model.StatusPendingApproval},
		{"submit pending", func() error { _, err := f.dispatch.Submit(f.ctx, pending.ID, operator); return err }, pending.ID, model.StatusPendingApproval},
		{"add item to pending", func() error {
			_, err := f.dispatch.AddItem(f.ctx, pending.ID, &ItemRequest{BatchID: uuid.New(), Quantity: 1}, operator)
			return err
		}, pending.ID, model.StatusPendingApproval},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := f.reload(tt.id)
			err := tt.call()

			var e *Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, KindInvalidState, e.Kind)
			assert.Equal(t, string(tt.want), e.Details["current_status"])

			after := f.reload(tt.id)
			assert.Equal(t, tt.want, after.Status)
			assert.Equal(t, before.Version, after.Version)
		})
	}
}

func TestInvalidStateError_NamesAttemptedStatus(t *testing.T) {
	f := newFixture(t)
	x := f.batch(f.storeA, "X", 15)
	d := f.create(false, ItemRequest{BatchID: x.ID, Quantity: 1})

	_, err := f.dispatch.Approve(f.ctx, d.ID, operator)
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, string(model.StatusApproved), e.Details["attempted_status"])
}

func TestTerminalStatesRejectEverything(t *testing.T) {
	f := newFixture(t)
	x := f.batch(f.storeA, "X", 15)
	d := f.create(true, ItemRequest{BatchID: x.ID, Quantity: 1})

	_, err := f.dispatch.Cancel(f.ctx, d.ID, &CancelRequest{Reason: "changed plan"}, operator)
	require.NoError(t, err)

	_, err = f.dispatch.Cancel(f.ctx, d.ID, nil, operator)
	assert.True(t, IsKind(err, KindInvalidState))
	_, err = f.dispatch.Approve(f.ctx, d.ID, operator)
	assert.True(t, IsKind(err, KindInvalidState))
	_, err = f.dispatch.UpdateDetails(f.ctx, d.ID, &UpdateDetailsRequest{}, operator)
	assert.True(t, IsKind(err, KindInvalidState))

	stored := f.reload(d.ID)
	assert.Equal(t, model.StatusCancelled, stored.Status)
	assert.Equal(t, "changed plan", stored.CancelReason)
	assert.NotNil(t, stored.CancelledAt)
	assert.Equal(t, 15, f.active(x.ID))
}

func TestCancel_InTransitRequiresReason(t *testing.T) {
	f := newFixture(t)
	x := f.batch(f.storeA, "X", 15)
	d := f.inTransit(ItemRequest{BatchID: x.ID, Quantity: 3})

	_, err := f.dispatch.Cancel(f.ctx, d.ID, &CancelRequest{}, operator)
	assert.True(t, IsKind(err, KindValidation))
	assert.Equal(t, model.StatusInTransit, f.reload(d.ID).Status)

	cancelled, err := f.dispatch.Cancel(f.ctx, d.ID, &CancelRequest{Reason: "truck returned"}, operator)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, cancelled.Status)
	assert.Equal(t, 15, f.active(x.ID), "cancellation never touches the ledger")
}

func TestCancel_FromEveryNonTerminalState(t *testing.T) {
	f := newFixture(t)
	x := f.batch(f.storeA, "X", 15)

	draft := f.create(false, ItemRequest{BatchID: x.ID, Quantity: 1})
	pending := f.create(true, ItemRequest{BatchID: x.ID, Quantity: 1})
	approved := f.create(true, ItemRequest{BatchID: x.ID, Quantity: 1})
	_, err := f.dispatch.Approve(f.ctx, approved.ID, operator)
	require.NoError(t, err)

	for _, id := range []uuid.UUID{draft.ID, pending.ID, approved.ID} {
		d, err := f.dispatch.Cancel(f.ctx, id, nil, operator)
		require.NoError(t, err)
		assert.Equal(t, model.StatusCancelled, d.Status)
	}
}

func TestDraftEditing(t *testing.T) {
	f := newFixture(t)
	x := f.batch(f.storeA, "X", 15)
	y := f.batch(f.storeA, "Y", 2)

	d := f.create(false)
	_, err := f.dispatch.Submit(f.ctx, d.ID, operator)
	assert.True(t, IsKind(err, KindValidation), "an empty draft cannot be submitted")

	d, err = f.dispatch.AddItem(f.ctx, d.ID, &ItemRequest{BatchID: x.ID, Quantity: 4}, operator)
	require.NoError(t, err)
	d, err = f.dispatch.AddItem(f.ctx, d.ID, &ItemRequest{BatchID: y.ID, Quantity: 2}, operator)
	require.NoError(t, err)
	require.Len(t, d.Items, 2)

	_, err = f.dispatch.AddItem(f.ctx, d.ID, &ItemRequest{BatchID: x.ID, Quantity: 1}, operator)
	assert.True(t, IsKind(err, KindValidation), "a batch appears at most once")

	d, err = f.dispatch.RemoveItem(f.ctx, d.ID, d.Items[1].ID, operator)
	require.NoError(t, err)
	require.Len(t, d.Items, 1)

	_, err = f.dispatch.RemoveItem(f.ctx, d.ID, uuid.New(), operator)
	assert.True(t, IsKind(err, KindNotFound))

	d, err = f.dispatch.Submit(f.ctx, d.ID, operator)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPendingApproval, d.Status)
	assert.Len(t, f.reload(d.ID).Items, 1)
}

func TestSubmit_RechecksAvailability(t *testing.T) {
	f := newFixture(t)
	x := f.batch(f.storeA, "X", 15)
	d := f.create(false, ItemRequest{BatchID: x.ID, Quantity: 10})

	require.NoError(t, f.store.Batches().AdjustActiveQuantity(f.ctx, x.ID, -10))

	_, err := f.dispatch.Submit(f.ctx, d.ID, operator)
	assert.True(t, IsKind(err, KindValidation))
	assert.Equal(t, model.StatusDraft, f.reload(d.ID).Status)
}

func TestUpdateDetails(t *testing.T) {
	f := newFixture(t)
	x := f.batch(f.storeA, "X", 15)
	d := f.inTransit(ItemRequest{BatchID: x.ID, Quantity: 1})

	carrier, tracking := "  FastFreight ", "TRK-991"
	updated, err := f.dispatch.UpdateDetails(f.ctx, d.ID, &UpdateDetailsRequest{
		Carrier:        &carrier,
		TrackingNumber: &tracking,
	}, operator)
	require.NoError(t, err)
	assert.Equal(t, "FastFreight", updated.Carrier)
	assert.Equal(t, "TRK-991", updated.TrackingNumber)
	assert.Equal(t, model.StatusInTransit, updated.Status)
	assert.Equal(t, d.Version+1, updated.Version)
}

func TestConcurrentApprove_ExactlyOneWins(t *testing.T) {
	f := newFixture(t)
	x := f.batch(f.storeA, "X", 15)
	d := f.create(true, ItemRequest{BatchID: x.ID, Quantity: 5})

	const callers = 10
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
		kinds   []Kind
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.dispatch.Approve(f.ctx, d.ID, operator)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				success++
				return
			}
			kinds = append(kinds, KindOf(err))
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, success)
	require.Len(t, kinds, callers-1)
	for _, k := range kinds {
		assert.Equal(t, KindInvalidState, k)
	}
	assert.Equal(t, model.StatusApproved, f.reload(d.ID).Status)
}

func TestGetDispatch_ByIDOrNumber(t *testing.T) {
	f := newFixture(t)
	d := f.create(false)

	byID, err := f.dispatch.GetDispatch(f.ctx, d.ID.String())
	require.NoError(t, err)
	byNumber, err := f.dispatch.GetDispatch(f.ctx, d.Number)
	require.NoError(t, err)
	assert.Equal(t, byID.ID, byNumber.ID)

	_, err = f.dispatch.GetDispatch(f.ctx, uuid.NewString())
	assert.True(t, IsKind(err, KindNotFound))
}

func TestListDispatches_Filters(t *testing.T) {
	f := newFixture(t)
	x := f.batch(f.storeA, "X", 15)
	f.create(false, ItemRequest{BatchID: x.ID, Quantity: 1})
	f.create(true, ItemRequest{BatchID: x.ID, Quantity: 1})

	page, err := f.dispatch.ListDispatches(f.ctx, repository.DispatchFilter{Status: model.StatusPendingApproval})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, repository.DefaultPageLimit, page.Limit)

	page, err = f.dispatch.ListDispatches(f.ctx, repository.DispatchFilter{DestinationStoreID: &f.storeA})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
	assert.NotNil(t, page.Data)

	_, err = f.dispatch.ListDispatches(f.ctx, repository.DispatchFilter{Status: "shipped"})
	assert.True(t, IsKind(err, KindValidation))
}

func TestNotifications_TargetBothStores(t *testing.T) {
	f := newFixture(t)
	d := f.create(false)

	require.Equal(t, 1, f.notifier.count())
	assert.ElementsMatch(t, []uuid.UUID{f.storeA, f.storeB}, f.notifier.stores[0])

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(f.notifier.payloads[0], &payload))
	assert.Equal(t, "dispatch_update", payload["type"])
	assert.Equal(t, "create", payload["action"])
	dispatch := payload["dispatch"].(map[string]interface{})
	assert.Equal(t, d.Number, dispatch["number"])
}

func TestRejectedActionsDoNotNotify(t *testing.T) {
	f := newFixture(t)
	d := f.create(false)
	before := f.notifier.count()

	_, err := f.dispatch.Approve(f.ctx, d.ID, operator)
	require.Error(t, err)
	assert.Equal(t, before, f.notifier.count())
}
