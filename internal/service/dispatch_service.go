package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go-dispatch-ws/internal/model"
	"go-dispatch-ws/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type CreateDispatchRequest struct {
	SourceStoreID        uuid.UUID     `json:"source_store_id" validate:"uuid_required"`
	DestinationStoreID   uuid.UUID     `json:"destination_store_id" validate:"uuid_required"`
	ExpectedDeliveryDate *time.Time    `json:"expected_delivery_date"`
	Carrier              string        `json:"carrier" validate:"max=100"`
	TrackingNumber       string        `json:"tracking_number" validate:"max=100"`
	Notes                string        `json:"notes" validate:"max=2000"`
	Items                []ItemRequest `json:"items" validate:"dive"`
	// Submit moves a dispatch with at least one item straight to pending_approval.
	Submit bool `json:"submit"`
}

type ItemRequest struct {
	BatchID  uuid.UUID `json:"batch_id" validate:"uuid_required"`
	Quantity int       `json:"quantity" validate:"gt=0"`
}

// UpdateDetailsRequest replaces the shipping metadata; nil fields are left unchanged.
type UpdateDetailsRequest struct {
	ExpectedDeliveryDate *time.Time `json:"expected_delivery_date"`
	Carrier              *string    `json:"carrier" validate:"omitempty,max=100"`
	TrackingNumber       *string    `json:"tracking_number" validate:"omitempty,max=100"`
	Notes                *string    `json:"notes" validate:"omitempty,max=2000"`
}

type CancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type DeliverRequest struct {
	Items []ManifestEntry `json:"items" validate:"dive"`
}

type DispatchPage struct {
	Data  []model.Dispatch `json:"data"`
	Total int64            `json:"total"`
	Page  int              `json:"page"`
	Limit int              `json:"limit"`
}

type DispatchService interface {
	CreateDispatch(ctx context.Context, req *CreateDispatchRequest, actor model.Actor) (*model.Dispatch, error)
	GetDispatch(ctx context.Context, ref string) (*model.Dispatch, error)
	ListDispatches(ctx context.Context, filter repository.DispatchFilter) (*DispatchPage, error)
	UpdateDetails(ctx context.Context, id uuid.UUID, req *UpdateDetailsRequest, actor model.Actor) (*model.Dispatch, error)
	AddItem(ctx context.Context, id uuid.UUID, req *ItemRequest, actor model.Actor) (*model.Dispatch, error)
	RemoveItem(ctx context.Context, id, itemID uuid.UUID, actor model.Actor) (*model.Dispatch, error)
	Submit(ctx context.Context, id uuid.UUID, actor model.Actor) (*model.Dispatch, error)
	Approve(ctx context.Context, id uuid.UUID, actor model.Actor) (*model.Dispatch, error)
	MarkDispatched(ctx context.Context, id uuid.UUID, actor model.Actor) (*model.Dispatch, error)
	MarkDelivered(ctx context.Context, id uuid.UUID, req *DeliverRequest, actor model.Actor) (*model.Dispatch, error)
	Cancel(ctx context.Context, id uuid.UUID, req *CancelRequest, actor model.Actor) (*model.Dispatch, error)
	ListEvents(ctx context.Context, id uuid.UUID) ([]model.DispatchEvent, error)
	GetReconciliation(ctx context.Context, id uuid.UUID) (*ReconciliationSummary, error)
	ListAvailableBatches(ctx context.Context, storeID uuid.UUID) ([]model.Batch, error)
}

type dispatchService struct {
	store    repository.Store
	notifier Notifier
	cache    StatsCache
	archiver Archiver
	log      *zap.Logger

	newNumber func(time.Time) string
}

// NewDispatchService wires the lifecycle engine. notifier, cache and archiver may be nil.
func NewDispatchService(store repository.Store, notifier Notifier, cache StatsCache, archiver Archiver, log *zap.Logger) DispatchService {
	if log == nil {
		log = zap.NewNop()
	}
	return &dispatchService{
		store:    store,
		notifier: notifierOrNop(notifier),
		cache:    cacheOrNop(cache),
		archiver: archiver,
		log:      log.Named("dispatch"),

		newNumber: generateNumber,
	}
}

func (s *dispatchService) CreateDispatch(ctx context.Context, req *CreateDispatchRequest, actor model.Actor) (*model.Dispatch, error) {
	// 1. Shape of the request
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if req.SourceStoreID == req.DestinationStoreID {
		return nil, ValidationError("source and destination store must differ").
			with("store_id", req.SourceStoreID.String())
	}
	if req.Submit && len(req.Items) == 0 {
		return nil, ValidationError("a dispatch needs at least one item to be submitted")
	}

	// 2. Items against the source ledger
	items, err := s.buildItems(ctx, s.store, req.SourceStoreID, nil, req.Items)
	if err != nil {
		return nil, err
	}

	status := model.StatusDraft
	if req.Submit {
		status = model.StatusPendingApproval
	}

	d := &model.Dispatch{
		Number:               s.newNumber(time.Now()),
		SourceStoreID:        req.SourceStoreID,
		DestinationStoreID:   req.DestinationStoreID,
		Status:               status,
		ExpectedDeliveryDate: req.ExpectedDeliveryDate,
		Carrier:              strings.TrimSpace(req.Carrier),
		TrackingNumber:       strings.TrimSpace(req.TrackingNumber),
		Notes:                req.Notes,
		Version:              1,
		Items:                items,
	}
	d.CreatedBy = actor.ID
	d.UpdatedBy = actor.ID
	for i := range d.Items {
		d.Items[i].CreatedBy = actor.ID
		d.Items[i].UpdatedBy = actor.ID
	}

	// 3. Persist header, items and history together. A number collision
	// gets one retry under a fresh number.
	for attempt := 0; ; attempt++ {
		err = s.store.Atomic(ctx, func(tx repository.Store) error {
			if err := tx.Dispatches().Create(ctx, d); err != nil {
				return err
			}
			return tx.Events().Create(ctx, newEvent(d, ActionCreate, "", actor, ""))
		})
		if errors.Is(err, repository.ErrDuplicateNumber) && attempt == 0 {
			s.log.Warn("dispatch number collision, retrying", zap.String("number", d.Number))
			d.Number = s.newNumber(time.Now())
			continue
		}
		break
	}
	if err != nil {
		return nil, translate(err, "dispatch", d.Number)
	}

	s.afterCommit(ctx, ActionCreate, "", d, actor)
	return d, nil
}

func (s *dispatchService) GetDispatch(ctx context.Context, ref string) (*model.Dispatch, error) {
	var (
		d   *model.Dispatch
		err error
	)
	if id, parseErr := uuid.Parse(ref); parseErr == nil {
		d, err = s.store.Dispatches().FindByID(ctx, id)
	} else {
		d, err = s.store.Dispatches().FindByNumber(ctx, ref)
	}
	if err != nil {
		return nil, translate(err, "dispatch", ref)
	}
	return d, nil
}

func (s *dispatchService) ListDispatches(ctx context.Context, filter repository.DispatchFilter) (*DispatchPage, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, ValidationError("unknown status %q", filter.Status).with("status", string(filter.Status))
	}
	filter.Normalize()
	dispatches, total, err := s.store.Dispatches().List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list dispatches: %w", err)
	}
	if dispatches == nil {
		dispatches = []model.Dispatch{}
	}
	return &DispatchPage{Data: dispatches, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}

func (s *dispatchService) UpdateDetails(ctx context.Context, id uuid.UUID, req *UpdateDetailsRequest, actor model.Actor) (*model.Dispatch, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	return s.mutate(ctx, id, ActionUpdateDetails, actor, "", func(tx repository.Store, d *model.Dispatch) error {
		if req.ExpectedDeliveryDate != nil {
			d.ExpectedDeliveryDate = req.ExpectedDeliveryDate
		}
		if req.Carrier != nil {
			d.Carrier = strings.TrimSpace(*req.Carrier)
		}
		if req.TrackingNumber != nil {
			d.TrackingNumber = strings.TrimSpace(*req.TrackingNumber)
		}
		if req.Notes != nil {
			d.Notes = *req.Notes
		}
		return nil
	})
}

func (s *dispatchService) AddItem(ctx context.Context, id uuid.UUID, req *ItemRequest, actor model.Actor) (*model.Dispatch, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	return s.mutate(ctx, id, ActionEditItems, actor, "", func(tx repository.Store, d *model.Dispatch) error {
		items, err := s.buildItems(ctx, tx, d.SourceStoreID, d, []ItemRequest{*req})
		if err != nil {
			return err
		}
		item := items[0]
		item.DispatchID = d.ID
		item.CreatedBy = actor.ID
		item.UpdatedBy = actor.ID
		if err := tx.Dispatches().AddItem(ctx, &item); err != nil {
			return translate(err, "batch", req.BatchID)
		}
		d.Items = append(d.Items, item)
		return nil
	})
}

func (s *dispatchService) RemoveItem(ctx context.Context, id, itemID uuid.UUID, actor model.Actor) (*model.Dispatch, error) {
	return s.mutate(ctx, id, ActionEditItems, actor, "", func(tx repository.Store, d *model.Dispatch) error {
		if d.ItemByID(itemID) == nil {
			return NotFoundError("dispatch item", itemID)
		}
		if err := tx.Dispatches().RemoveItem(ctx, d.ID, itemID); err != nil {
			return translate(err, "dispatch item", itemID)
		}
		kept := d.Items[:0]
		for _, item := range d.Items {
			if item.ID != itemID {
				kept = append(kept, item)
			}
		}
		d.Items = kept
		return nil
	})
}

func (s *dispatchService) Submit(ctx context.Context, id uuid.UUID, actor model.Actor) (*model.Dispatch, error) {
	return s.mutate(ctx, id, ActionSubmit, actor, "", func(tx repository.Store, d *model.Dispatch) error {
		short, err := s.findShortage(ctx, tx, d)
		if err != nil {
			return err
		}
		if short != nil {
			return short.asError(ValidationError)
		}
		return nil
	})
}

func (s *dispatchService) Approve(ctx context.Context, id uuid.UUID, actor model.Actor) (*model.Dispatch, error) {
	return s.mutate(ctx, id, ActionApprove, actor, "", func(tx repository.Store, d *model.Dispatch) error {
		// Authoritative check: stock may have moved since the dispatch was composed
		short, err := s.findShortage(ctx, tx, d)
		if err != nil {
			return err
		}
		if short != nil {
			return short.asError(ConflictError)
		}
		return nil
	})
}

func (s *dispatchService) MarkDispatched(ctx context.Context, id uuid.UUID, actor model.Actor) (*model.Dispatch, error) {
	return s.mutate(ctx, id, ActionDispatch, actor, "", func(tx repository.Store, d *model.Dispatch) error {
		now := time.Now()
		d.DispatchedAt = &now
		return nil
	})
}

func (s *dispatchService) MarkDelivered(ctx context.Context, id uuid.UUID, req *DeliverRequest, actor model.Actor) (*model.Dispatch, error) {
	if req == nil {
		req = &DeliverRequest{}
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	d, err := s.mutate(ctx, id, ActionDeliver, actor, "", func(tx repository.Store, d *model.Dispatch) error {
		lines, err := planReconciliation(d, req.Items)
		if err != nil {
			return err
		}
		if err := applyReconciliation(ctx, tx, d, lines, actor); err != nil {
			return err
		}
		now := time.Now()
		d.DeliveredAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.archive(ctx, d)
	return d, nil
}

func (s *dispatchService) Cancel(ctx context.Context, id uuid.UUID, req *CancelRequest, actor model.Actor) (*model.Dispatch, error) {
	if req == nil {
		req = &CancelRequest{}
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(req.Reason)
	return s.mutate(ctx, id, ActionCancel, actor, reason, func(tx repository.Store, d *model.Dispatch) error {
		if d.Status == model.StatusInTransit && reason == "" {
			return ValidationError("cancelling a dispatch in transit requires a reason").
				with("field", "reason")
		}
		now := time.Now()
		d.CancelledAt = &now
		d.CancelReason = reason
		return nil
	})
}

func (s *dispatchService) ListEvents(ctx context.Context, id uuid.UUID) ([]model.DispatchEvent, error) {
	if _, err := s.store.Dispatches().FindByID(ctx, id); err != nil {
		return nil, translate(err, "dispatch", id)
	}
	events, err := s.store.Events().ListByDispatch(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	if events == nil {
		events = []model.DispatchEvent{}
	}
	return events, nil
}

func (s *dispatchService) GetReconciliation(ctx context.Context, id uuid.UUID) (*ReconciliationSummary, error) {
	d, err := s.store.Dispatches().FindByID(ctx, id)
	if err != nil {
		return nil, translate(err, "dispatch", id)
	}
	return Summarize(d), nil
}

func (s *dispatchService) ListAvailableBatches(ctx context.Context, storeID uuid.UUID) ([]model.Batch, error) {
	batches, err := s.store.Batches().ListAvailable(ctx, storeID)
	if err != nil {
		return nil, fmt.Errorf("list available batches: %w", err)
	}
	if batches == nil {
		batches = []model.Batch{}
	}
	return batches, nil
}

// mutate runs fn against the locked dispatch and persists the result as one unit of
// work. Transition actions move the status along the graph; gated actions keep it.
func (s *dispatchService) mutate(ctx context.Context, id uuid.UUID, action Action, actor model.Actor, note string,
	fn func(tx repository.Store, d *model.Dispatch) error) (*model.Dispatch, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	var (
		result *model.Dispatch
		from   model.DispatchStatus
	)
	err := s.store.Atomic(ctx, func(tx repository.Store) error {
		d, err := tx.Dispatches().FindForUpdate(ctx, id)
		if err != nil {
			return translate(err, "dispatch", id)
		}
		from = d.Status

		next := d.Status
		if _, isTransition := transitions[action]; isTransition {
			if next, err = nextStatus(d.Status, action); err != nil {
				return err
			}
			if action != ActionCancel && len(d.Items) == 0 {
				return ValidationError("dispatch %s has no items", d.Number).with("dispatch_id", d.ID.String())
			}
		} else if err := allowed(d.Status, action); err != nil {
			return err
		}

		if fn != nil {
			if err := fn(tx, d); err != nil {
				return err
			}
		}

		d.Status = next
		d.UpdatedBy = actor.ID
		if err := tx.Dispatches().Update(ctx, d); err != nil {
			return translate(err, "dispatch", id)
		}
		if err := tx.Events().Create(ctx, newEvent(d, action, from, actor, note)); err != nil {
			return fmt.Errorf("record event: %w", err)
		}
		result = d
		return nil
	})
	if err != nil {
		s.log.Debug("dispatch action rejected",
			zap.String("dispatch_id", id.String()),
			zap.String("action", string(action)),
			zap.String("actor_id", actor.ID),
			zap.Error(err))
		return nil, err
	}

	s.afterCommit(ctx, action, from, result, actor)
	return result, nil
}

// buildItems turns item requests into snapshotted dispatch items. Every guard here
// fails with ValidationError; existing holds the items already on the dispatch.
func (s *dispatchService) buildItems(ctx context.Context, store repository.Store, sourceStoreID uuid.UUID,
	existing *model.Dispatch, reqs []ItemRequest) ([]model.DispatchItem, error) {
	ids := make([]uuid.UUID, 0, len(reqs))
	seen := make(map[uuid.UUID]bool, len(reqs))
	for _, r := range reqs {
		if r.Quantity <= 0 {
			return nil, ValidationError("quantity must be greater than zero").with("batch_id", r.BatchID.String())
		}
		if seen[r.BatchID] || (existing != nil && existing.ItemByBatch(r.BatchID) != nil) {
			return nil, ValidationError("batch %s appears more than once on the dispatch", r.BatchID).
				with("batch_id", r.BatchID.String())
		}
		seen[r.BatchID] = true
		ids = append(ids, r.BatchID)
	}

	batches, err := store.Batches().FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load batches: %w", err)
	}

	items := make([]model.DispatchItem, 0, len(reqs))
	for _, r := range reqs {
		b, ok := batches[r.BatchID]
		if !ok {
			return nil, ValidationError("batch %s does not exist", r.BatchID).with("batch_id", r.BatchID.String())
		}
		if b.StoreID != sourceStoreID {
			return nil, ValidationError("batch %s is not held by the source store", r.BatchID).
				with("batch_id", r.BatchID.String())
		}
		if r.Quantity > b.ActiveQuantity {
			return nil, ValidationError("batch %s has %d active units, %d requested", b.BatchCode, b.ActiveQuantity, r.Quantity).
				with("batch_id", b.ID.String()).
				with("requested_quantity", r.Quantity).
				with("available_quantity", b.ActiveQuantity)
		}
		items = append(items, model.DispatchItem{
			BatchID:           b.ID,
			ProductSKU:        b.ProductSKU,
			ProductName:       b.ProductName,
			BatchCode:         b.BatchCode,
			RequestedQuantity: r.Quantity,
			UnitCost:          b.UnitCost,
			UnitPrice:         b.UnitPrice,
		})
	}
	return items, nil
}

type shortage struct {
	item      *model.DispatchItem
	available int
}

func (sh *shortage) asError(build func(format string, args ...interface{}) *Error) *Error {
	return build("item %s requests %d units of batch %s but only %d are active",
		sh.item.ID, sh.item.RequestedQuantity, sh.item.BatchCode, sh.available).
		with("item_id", sh.item.ID.String()).
		with("batch_id", sh.item.BatchID.String()).
		with("requested_quantity", sh.item.RequestedQuantity).
		with("available_quantity", sh.available)
}

// findShortage returns the first item whose batch can no longer cover it.
func (s *dispatchService) findShortage(ctx context.Context, tx repository.Store, d *model.Dispatch) (*shortage, error) {
	for i := range d.Items {
		item := &d.Items[i]
		active, err := tx.Batches().GetActiveQuantity(ctx, item.BatchID)
		if errors.Is(err, repository.ErrNotFound) {
			return &shortage{item: item, available: 0}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read active quantity: %w", err)
		}
		if item.RequestedQuantity > active {
			return &shortage{item: item, available: active}, nil
		}
	}
	return nil, nil
}

func (s *dispatchService) afterCommit(ctx context.Context, action Action, from model.DispatchStatus, d *model.Dispatch, actor model.Actor) {
	s.log.Info("dispatch updated",
		zap.String("dispatch_id", d.ID.String()),
		zap.String("number", d.Number),
		zap.String("action", string(action)),
		zap.String("from", string(from)),
		zap.String("to", string(d.Status)),
		zap.Int("version", d.Version),
		zap.String("actor_id", actor.ID))

	if err := s.cache.Invalidate(ctx); err != nil {
		s.log.Warn("statistics cache invalidation failed", zap.Error(err))
	}
	s.notifier.Publish([]uuid.UUID{d.SourceStoreID, d.DestinationStoreID}, dispatchNotice(action, from, d, actor))
}

func (s *dispatchService) archive(ctx context.Context, d *model.Dispatch) {
	if s.archiver == nil {
		return
	}
	if err := s.archiver.Archive(ctx, Summarize(d)); err != nil {
		s.log.Warn("reconciliation archive failed",
			zap.String("dispatch_id", d.ID.String()),
			zap.String("number", d.Number),
			zap.Error(err))
	}
}

// generateNumber builds DSP-YYYYMMDD-XXXXXXXX
func generateNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
	return fmt.Sprintf("DSP-%s-%s", now.Format("20060102"), suffix)
}

func newEvent(d *model.Dispatch, action Action, from model.DispatchStatus, actor model.Actor, note string) *model.DispatchEvent {
	return &model.DispatchEvent{
		DispatchID: d.ID,
		Action:     string(action),
		FromStatus: from,
		ToStatus:   d.Status,
		ActorID:    actor.ID,
		ActorName:  actor.Name,
		Note:       note,
	}
}

func requireActor(actor model.Actor) error {
	if strings.TrimSpace(actor.ID) == "" {
		return ValidationError("actor identity is required").with("field", "actor")
	}
	return nil
}

// translate maps repository sentinels onto engine errors and wraps anything else.
func translate(err error, entity string, id interface{}) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return NotFoundError(entity, id)
	case errors.Is(err, repository.ErrDuplicateItem):
		e := ValidationError("%s %v is already on this dispatch", entity, id).with("id", fmt.Sprint(id))
		e.Err = err
		return e
	case errors.Is(err, repository.ErrDuplicateNumber):
		e := ConflictError("%s number %v is already in use", entity, id).with("number", fmt.Sprint(id))
		e.Err = err
		return e
	case errors.Is(err, repository.ErrDuplicateScan):
		return DuplicateScanError(fmt.Sprint(id))
	case errors.Is(err, repository.ErrStaleVersion):
		e := ConflictError("%s %v was modified concurrently", entity, id).with("id", fmt.Sprint(id))
		e.Err = err
		return e
	case errors.Is(err, repository.ErrInsufficientStock):
		e := ConflictError("%s %v has insufficient active quantity", entity, id).with("id", fmt.Sprint(id))
		e.Err = err
		return e
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%s %v: %w", entity, id, err)
	}
}
