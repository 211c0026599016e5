// Package memory is an in-process implementation of repository.Store, used for
// local runs without postgres and by the service and handler tests.
package memory

import (
	"context"
	"sync"

	"go-dispatch-ws/internal/model"
	"go-dispatch-ws/internal/repository"

	"github.com/google/uuid"
)

type batchKey struct {
	storeID uuid.UUID
	sku     string
	code    string
}

type scanKey struct {
	itemID  uuid.UUID
	barcode string
}

// state is shared by a Store and every transactional view derived from it.
type state struct {
	mu sync.RWMutex

	dispatches map[uuid.UUID]*model.Dispatch
	order      []uuid.UUID
	numbers    map[string]uuid.UUID

	batches   map[uuid.UUID]*model.Batch
	batchKeys map[batchKey]uuid.UUID

	scans     map[uuid.UUID][]model.BarcodeScan
	scanIndex map[scanKey]struct{}

	events map[uuid.UUID][]model.DispatchEvent

	locks *lockTable
}

// txn tracks one Atomic call: undo entries run in reverse on failure, and
// dispatch locks taken by FindForUpdate are released when it ends.
type txn struct {
	undo []func(st *state)
	held map[uuid.UUID]struct{}
}

// Store reads and writes are isolated per call; rows locked through
// FindForUpdate stay locked until the enclosing Atomic returns.
type Store struct {
	st *state
	tx *txn
}

// Verify interface compliance
var _ repository.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{st: &state{
		dispatches: make(map[uuid.UUID]*model.Dispatch),
		numbers:    make(map[string]uuid.UUID),
		batches:    make(map[uuid.UUID]*model.Batch),
		batchKeys:  make(map[batchKey]uuid.UUID),
		scans:      make(map[uuid.UUID][]model.BarcodeScan),
		scanIndex:  make(map[scanKey]struct{}),
		events:     make(map[uuid.UUID][]model.DispatchEvent),
		locks:      newLockTable(),
	}}
}

func (s *Store) Dispatches() repository.DispatchRepository { return &dispatchRepo{s: s} }
func (s *Store) Batches() repository.BatchRepository       { return &batchRepo{s: s} }
func (s *Store) Scans() repository.ScanRepository          { return &scanRepo{s: s} }
func (s *Store) Events() repository.EventRepository        { return &eventRepo{s: s} }

func (s *Store) Atomic(ctx context.Context, fn func(tx repository.Store) error) (err error) {
	if s.tx != nil {
		// Nested calls join the outer unit of work
		return fn(s)
	}

	t := &txn{held: make(map[uuid.UUID]struct{})}
	view := &Store{st: s.st, tx: t}
	committed := false

	defer func() {
		if !committed {
			s.st.mu.Lock()
			for i := len(t.undo) - 1; i >= 0; i-- {
				t.undo[i](s.st)
			}
			s.st.mu.Unlock()
		}
		for id := range t.held {
			s.st.locks.release(id)
		}
	}()

	if err = fn(view); err != nil {
		return err
	}
	committed = true
	return nil
}

// record registers an undo step; it must be called with st.mu held for writing
// right after the change it reverts.
func (s *Store) record(undo func(st *state)) {
	if s.tx != nil {
		s.tx.undo = append(s.tx.undo, undo)
	}
}

func (s *Store) lockDispatch(ctx context.Context, id uuid.UUID) error {
	if s.tx == nil {
		return nil
	}
	if _, ok := s.tx.held[id]; ok {
		return nil
	}
	if err := s.st.locks.acquire(ctx, id); err != nil {
		return err
	}
	s.tx.held[id] = struct{}{}
	return nil
}

type lockTable struct {
	mu    sync.Mutex
	locks map[uuid.UUID]chan struct{}
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[uuid.UUID]chan struct{})}
}

func (l *lockTable) slot(id uuid.UUID) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.locks[id]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[id] = ch
	}
	return ch
}

func (l *lockTable) acquire(ctx context.Context, id uuid.UUID) error {
	select {
	case l.slot(id) <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *lockTable) release(id uuid.UUID) {
	<-l.slot(id)
}
