package service

import (
	"context"
	"encoding/json"
	"time"

	"go-dispatch-ws/internal/model"
	"go-dispatch-ws/pkg/validator"

	"github.com/google/uuid"
)

// Notifier fans committed changes out to connected clients of the given stores.
// Publish must not block the caller.
type Notifier interface {
	Publish(storeIDs []uuid.UUID, payload []byte)
}

// StatsCache holds serialized statistics under a generation. Get reports the
// generation it read and Set writes under that generation, so a value built
// before an Invalidate is never served after it. Invalidate drops every
// cached scope.
type StatsCache interface {
	Get(ctx context.Context, key string) (value []byte, gen int64, ok bool, err error)
	Set(ctx context.Context, key string, gen int64, value []byte) error
	Invalidate(ctx context.Context) error
}

// Archiver stores the reconciliation of a delivered dispatch outside the database.
type Archiver interface {
	Archive(ctx context.Context, summary *ReconciliationSummary) error
}

type nopNotifier struct{}

func (nopNotifier) Publish([]uuid.UUID, []byte) {}

type nopCache struct{}

func (nopCache) Get(context.Context, string) ([]byte, int64, bool, error) { return nil, 0, false, nil }
func (nopCache) Set(context.Context, string, int64, []byte) error         { return nil }
func (nopCache) Invalidate(context.Context) error                         { return nil }

func notifierOrNop(n Notifier) Notifier {
	if n == nil {
		return nopNotifier{}
	}
	return n
}

func cacheOrNop(c StatsCache) StatsCache {
	if c == nil {
		return nopCache{}
	}
	return c
}

func dispatchNotice(action Action, from model.DispatchStatus, d *model.Dispatch, actor model.Actor) []byte {
	payload := map[string]interface{}{
		"type":   "dispatch_update",
		"action": string(action),
		"dispatch": map[string]interface{}{
			"id":                   d.ID,
			"number":               d.Number,
			"status":               d.Status,
			"previous_status":      from,
			"source_store_id":      d.SourceStoreID,
			"destination_store_id": d.DestinationStoreID,
			"version":              d.Version,
			"item_count":           len(d.Items),
		},
		"user": map[string]interface{}{
			"id":    actor.ID,
			"name":  actor.Name,
			"email": actor.Email,
		},
		"timestamp": time.Now().Format(time.RFC3339),
	}
	jsonPayload, _ := json.Marshal(payload)
	return jsonPayload
}

func scanNotice(d *model.Dispatch, progress *ScanProgress, barcode string, actor model.Actor) []byte {
	payload := map[string]interface{}{
		"type":   "scan_update",
		"action": string(ActionScan),
		"dispatch": map[string]interface{}{
			"id":     d.ID,
			"number": d.Number,
		},
		"item": map[string]interface{}{
			"id":                progress.ItemID,
			"barcode":           barcode,
			"scanned_count":     progress.ScannedCount,
			"required_quantity": progress.RequiredQuantity,
			"all_scanned":       progress.AllScanned,
		},
		"user": map[string]interface{}{
			"id":   actor.ID,
			"name": actor.Name,
		},
		"timestamp": time.Now().Format(time.RFC3339),
	}
	jsonPayload, _ := json.Marshal(payload)
	return jsonPayload
}

// validateRequest runs the struct tags and reports every failed field.
func validateRequest(req interface{}) error {
	errs := validator.ValidateStruct(req)
	if len(errs) == 0 {
		return nil
	}
	first := errs[0]
	e := ValidationError("validation failed: field '%s' failed on tag '%s'", first.Field, first.Tag)
	return e.with("fields", errs)
}
