package service

import (
	"context"
	"errors"
	"fmt"

	"go-dispatch-ws/internal/model"
	"go-dispatch-ws/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ManifestEntry is the arrival count for one dispatch item. Damaged and missing
// default to zero when omitted.
type ManifestEntry struct {
	ItemID           uuid.UUID `json:"item_id" validate:"uuid_required"`
	ReceivedQuantity int       `json:"received_quantity"`
	DamagedQuantity  int       `json:"damaged_quantity"`
	MissingQuantity  int       `json:"missing_quantity"`
}

type reconciliationLine struct {
	item  *model.DispatchItem
	entry ManifestEntry
}

// planReconciliation checks the whole manifest before anything is applied and
// pairs each item with its entry, in item order.
func planReconciliation(d *model.Dispatch, manifest []ManifestEntry) ([]reconciliationLine, error) {
	entries := make(map[uuid.UUID]ManifestEntry, len(manifest))
	for _, e := range manifest {
		if d.ItemByID(e.ItemID) == nil {
			return nil, reconciliationFailure(e.ItemID, "manifest names item %s which is not on dispatch %s", e.ItemID, d.Number)
		}
		if _, dup := entries[e.ItemID]; dup {
			return nil, reconciliationFailure(e.ItemID, "item %s appears more than once in the manifest", e.ItemID)
		}
		if e.ReceivedQuantity < 0 || e.DamagedQuantity < 0 || e.MissingQuantity < 0 {
			return nil, reconciliationFailure(e.ItemID, "item %s has a negative manifest quantity", e.ItemID)
		}
		entries[e.ItemID] = e
	}

	lines := make([]reconciliationLine, 0, len(d.Items))
	for i := range d.Items {
		item := &d.Items[i]
		e, ok := entries[item.ID]
		if !ok {
			return nil, reconciliationFailure(item.ID, "item %s has no manifest entry", item.ID)
		}
		accounted := e.ReceivedQuantity + e.DamagedQuantity + e.MissingQuantity
		if accounted != item.RequestedQuantity {
			return nil, reconciliationFailure(item.ID,
				"item %s: received %d + damaged %d + missing %d = %d, requested %d",
				item.ID, e.ReceivedQuantity, e.DamagedQuantity, e.MissingQuantity, accounted, item.RequestedQuantity).
				with("requested_quantity", item.RequestedQuantity).
				with("accounted_quantity", accounted)
		}
		lines = append(lines, reconciliationLine{item: item, entry: e})
	}
	return lines, nil
}

// applyReconciliation moves stock for every planned line: the source batch loses the
// requested units, the destination gains only the received ones.
func applyReconciliation(ctx context.Context, tx repository.Store, d *model.Dispatch, lines []reconciliationLine, actor model.Actor) error {
	for _, line := range lines {
		item := line.item

		source, err := tx.Batches().FindByID(ctx, item.BatchID)
		if err != nil {
			return translate(err, "batch", item.BatchID)
		}

		err = tx.Batches().AdjustActiveQuantity(ctx, item.BatchID, -item.RequestedQuantity)
		if errors.Is(err, repository.ErrInsufficientStock) {
			return ConflictError("batch %s no longer has %d active units for item %s",
				item.BatchCode, item.RequestedQuantity, item.ID).
				with("item_id", item.ID.String()).
				with("batch_id", item.BatchID.String()).
				with("requested_quantity", item.RequestedQuantity)
		}
		if err != nil {
			return translate(err, "batch", item.BatchID)
		}

		if line.entry.ReceivedQuantity > 0 {
			source.UpdatedBy = actor.ID
			if _, err := tx.Batches().Receive(ctx, source, d.DestinationStoreID, line.entry.ReceivedQuantity); err != nil {
				return fmt.Errorf("receive batch %s: %w", source.BatchCode, err)
			}
		}

		received, damaged, missing := line.entry.ReceivedQuantity, line.entry.DamagedQuantity, line.entry.MissingQuantity
		item.ReceivedQuantity = &received
		item.DamagedQuantity = &damaged
		item.MissingQuantity = &missing
		item.UpdatedBy = actor.ID
		if err := tx.Dispatches().RecordReceipt(ctx, item); err != nil {
			if errors.Is(err, repository.ErrStaleVersion) {
				return ReconciliationError("item %s is already reconciled", item.ID).with("item_id", item.ID.String())
			}
			return translate(err, "dispatch item", item.ID)
		}
	}
	return nil
}

func reconciliationFailure(itemID uuid.UUID, format string, args ...interface{}) *Error {
	return ReconciliationError(format, args...).with("item_id", itemID.String())
}

type ReconciliationLine struct {
	ItemID    uuid.UUID       `json:"item_id"`
	BatchID   uuid.UUID       `json:"batch_id"`
	SKU       string          `json:"product_sku"`
	Name      string          `json:"product_name"`
	BatchCode string          `json:"batch_code"`
	Requested int             `json:"requested_quantity"`
	Scanned   int             `json:"scanned_count"`
	Received  int             `json:"received_quantity"`
	Damaged   int             `json:"damaged_quantity"`
	Missing   int             `json:"missing_quantity"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	LossValue decimal.Decimal `json:"loss_value"`
}

// ReconciliationSummary totals a dispatch's arrival counts. Items not yet
// reconciled count as zero received.
type ReconciliationSummary struct {
	DispatchID         uuid.UUID            `json:"dispatch_id"`
	Number             string               `json:"number"`
	Status             model.DispatchStatus `json:"status"`
	SourceStoreID      uuid.UUID            `json:"source_store_id"`
	DestinationStoreID uuid.UUID            `json:"destination_store_id"`
	Reconciled         bool                 `json:"reconciled"`
	Requested          int                  `json:"requested_quantity"`
	Received           int                  `json:"received_quantity"`
	Damaged            int                  `json:"damaged_quantity"`
	Missing            int                  `json:"missing_quantity"`
	Value              decimal.Decimal      `json:"value"`
	LossValue          decimal.Decimal      `json:"loss_value"`
	Lines              []ReconciliationLine `json:"lines"`
}

func Summarize(d *model.Dispatch) *ReconciliationSummary {
	sum := &ReconciliationSummary{
		DispatchID:         d.ID,
		Number:             d.Number,
		Status:             d.Status,
		SourceStoreID:      d.SourceStoreID,
		DestinationStoreID: d.DestinationStoreID,
		Reconciled:         d.Status == model.StatusDelivered,
		Value:              d.TotalValue(),
		LossValue:          decimal.Zero,
		Lines:              make([]ReconciliationLine, 0, len(d.Items)),
	}
	for i := range d.Items {
		item := &d.Items[i]
		line := ReconciliationLine{
			ItemID:    item.ID,
			BatchID:   item.BatchID,
			SKU:       item.ProductSKU,
			Name:      item.ProductName,
			BatchCode: item.BatchCode,
			Requested: item.RequestedQuantity,
			Scanned:   item.ScannedCount,
			Received:  intOrZero(item.ReceivedQuantity),
			Damaged:   intOrZero(item.DamagedQuantity),
			Missing:   intOrZero(item.MissingQuantity),
			UnitCost:  item.UnitCost,
			LossValue: item.LossValue(),
		}
		sum.Requested += line.Requested
		sum.Received += line.Received
		sum.Damaged += line.Damaged
		sum.Missing += line.Missing
		sum.LossValue = sum.LossValue.Add(line.LossValue)
		sum.Lines = append(sum.Lines, line)
	}
	return sum
}

func intOrZero(n *int) int {
	if n == nil {
		return 0
	}
	return *n
}
