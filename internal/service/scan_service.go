package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go-dispatch-ws/internal/model"
	"go-dispatch-ws/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ScanRequest struct {
	Barcode string `json:"barcode" validate:"required,max=128"`
}

// ScanProgress is how far physical verification of one item has got.
type ScanProgress struct {
	DispatchID       uuid.UUID           `json:"dispatch_id"`
	ItemID           uuid.UUID           `json:"item_id"`
	ScannedCount     int                 `json:"scanned_count"`
	RequiredQuantity int                 `json:"required_quantity"`
	RemainingCount   int                 `json:"remaining_count"`
	AllScanned       bool                `json:"all_scanned"`
	Scans            []model.BarcodeScan `json:"scans,omitempty"`
}

type ScanSummary struct {
	DispatchID   uuid.UUID            `json:"dispatch_id"`
	Number       string               `json:"number"`
	Status       model.DispatchStatus `json:"status"`
	Items        []ScanProgress       `json:"items"`
	ScannedCount int                  `json:"scanned_count"`
	Required     int                  `json:"required_quantity"`
	AllScanned   bool                 `json:"all_scanned"`
}

// ScanService records barcode verification. It never gates delivery.
type ScanService interface {
	Scan(ctx context.Context, dispatchID, itemID uuid.UUID, req *ScanRequest, actor model.Actor) (*ScanProgress, error)
	GetProgress(ctx context.Context, dispatchID, itemID uuid.UUID) (*ScanProgress, error)
	GetSummary(ctx context.Context, dispatchID uuid.UUID) (*ScanSummary, error)
}

type scanService struct {
	store    repository.Store
	notifier Notifier
	log      *zap.Logger
}

func NewScanService(store repository.Store, notifier Notifier, log *zap.Logger) ScanService {
	if log == nil {
		log = zap.NewNop()
	}
	return &scanService{store: store, notifier: notifierOrNop(notifier), log: log.Named("scan")}
}

func (s *scanService) Scan(ctx context.Context, dispatchID, itemID uuid.UUID, req *ScanRequest, actor model.Actor) (*ScanProgress, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if req != nil {
		req.Barcode = strings.TrimSpace(req.Barcode)
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	var (
		progress *ScanProgress
		dispatch *model.Dispatch
	)
	err := s.store.Atomic(ctx, func(tx repository.Store) error {
		// The dispatch lock serializes scans of its items so the ceiling holds
		d, err := tx.Dispatches().FindForUpdate(ctx, dispatchID)
		if err != nil {
			return translate(err, "dispatch", dispatchID)
		}
		if err := allowed(d.Status, ActionScan); err != nil {
			return err
		}
		item := d.ItemByID(itemID)
		if item == nil {
			return NotFoundError("dispatch item", itemID)
		}

		exists, err := tx.Scans().Exists(ctx, itemID, req.Barcode)
		if err != nil {
			return fmt.Errorf("check barcode: %w", err)
		}
		if exists {
			return DuplicateScanError(req.Barcode).with("item_id", itemID.String())
		}

		count, err := tx.Scans().CountByItem(ctx, itemID)
		if err != nil {
			return fmt.Errorf("count scans: %w", err)
		}
		if count >= item.RequestedQuantity {
			return CapacityExceededError(item.RequestedQuantity).with("item_id", itemID.String())
		}

		scan := &model.BarcodeScan{
			DispatchID:     d.ID,
			DispatchItemID: itemID,
			Barcode:        req.Barcode,
			ScannedBy:      actor.ID,
			ScannedAt:      time.Now(),
		}
		if err := tx.Scans().Create(ctx, scan); err != nil {
			if e := translate(err, "barcode", req.Barcode); IsKind(e, KindDuplicateScan) {
				return e
			}
			return fmt.Errorf("record scan: %w", err)
		}

		dispatch = d
		progress = newProgress(d.ID, item, count+1)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("barcode scanned",
		zap.String("dispatch_id", dispatchID.String()),
		zap.String("item_id", itemID.String()),
		zap.String("barcode", req.Barcode),
		zap.Int("scanned_count", progress.ScannedCount),
		zap.String("actor_id", actor.ID))
	s.notifier.Publish([]uuid.UUID{dispatch.SourceStoreID, dispatch.DestinationStoreID},
		scanNotice(dispatch, progress, req.Barcode, actor))
	return progress, nil
}

func (s *scanService) GetProgress(ctx context.Context, dispatchID, itemID uuid.UUID) (*ScanProgress, error) {
	d, err := s.store.Dispatches().FindByID(ctx, dispatchID)
	if err != nil {
		return nil, translate(err, "dispatch", dispatchID)
	}
	item := d.ItemByID(itemID)
	if item == nil {
		return nil, NotFoundError("dispatch item", itemID)
	}

	scans, err := s.store.Scans().ListByItem(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}
	progress := newProgress(d.ID, item, len(scans))
	progress.Scans = scans
	if progress.Scans == nil {
		progress.Scans = []model.BarcodeScan{}
	}
	return progress, nil
}

func (s *scanService) GetSummary(ctx context.Context, dispatchID uuid.UUID) (*ScanSummary, error) {
	d, err := s.store.Dispatches().FindByID(ctx, dispatchID)
	if err != nil {
		return nil, translate(err, "dispatch", dispatchID)
	}

	summary := &ScanSummary{
		DispatchID: d.ID,
		Number:     d.Number,
		Status:     d.Status,
		Items:      make([]ScanProgress, 0, len(d.Items)),
	}
	for i := range d.Items {
		p := newProgress(d.ID, &d.Items[i], d.Items[i].ScannedCount)
		summary.Items = append(summary.Items, *p)
		summary.ScannedCount += p.ScannedCount
		summary.Required += p.RequiredQuantity
	}
	summary.AllScanned = len(d.Items) > 0 && summary.ScannedCount == summary.Required
	return summary, nil
}

func newProgress(dispatchID uuid.UUID, item *model.DispatchItem, scanned int) *ScanProgress {
	remaining := item.RequestedQuantity - scanned
	if remaining < 0 {
		remaining = 0
	}
	return &ScanProgress{
		DispatchID:       dispatchID,
		ItemID:           item.ID,
		ScannedCount:     scanned,
		RequiredQuantity: item.RequestedQuantity,
		RemainingCount:   remaining,
		AllScanned:       remaining == 0,
	}
}
