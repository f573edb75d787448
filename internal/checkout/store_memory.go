package checkout

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore mirrors the Postgres store for tests and local runs. Each line
// carries its own mutex, held from LockCartLine until Commit/Rollback, which
// reproduces the row-lock serialization of FOR UPDATE: contending placements
// on the same line queue up, disjoint placements do not touch each other.
type MemoryStore struct {
	mu          sync.Mutex
	nextLineID  int64
	nextAddrID  int64
	nextOrderID int64
	lines       map[int64]*memLine
	addrs       map[int64]ShippingAddress
	orders      map[int64]*Order
	codes       map[string]bool
}

type memLine struct {
	rowLock sync.Mutex
	line    CartLine
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		lines:  make(map[int64]*memLine),
		addrs:  make(map[int64]ShippingAddress),
		orders: make(map[int64]*Order),
		codes:  make(map[string]bool),
	}
}

// AddCartLine seeds a line and returns its id.
func (s *MemoryStore) AddCartLine(l CartLine) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextLineID++
	l.ID = s.nextLineID
	l.Enabled = true
	l.OrderID = nil
	s.lines[l.ID] = &memLine{line: l}
	return l.ID
}

// Line returns a copy of the stored line.
func (s *MemoryStore) Line(id int64) (CartLine, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ml, ok := s.lines[id]
	if !ok {
		return CartLine{}, false
	}
	return ml.line, true
}

func (s *MemoryStore) Begin(ctx context.Context) (Tx, error) {
	return &memTx{s: s, reservations: make(map[int64]int)}, nil
}

type memTx struct {
	s            *MemoryStore
	locked       []*memLine
	reservations map[int64]int
	addr         *ShippingAddress
	order        *Order
	attached     []int64
	attachOrder  int64
	done         bool
}

func (t *memTx) LockCartLine(ctx context.Context, lineID int64) (*CartLine, error) {
	t.s.mu.Lock()
	ml, ok := t.s.lines[lineID]
	t.s.mu.Unlock()
	if !ok {
		return nil, ErrCartLineNotFound
	}

	ml.rowLock.Lock() // held until Commit/Rollback
	t.locked = append(t.locked, ml)

	t.s.mu.Lock()
	l := ml.line
	t.s.mu.Unlock()
	return &l, nil
}

func (t *memTx) ApplyReservation(ctx context.Context, lineID int64, qty int) error {
	t.reservations[lineID] = qty
	return nil
}

func (t *memTx) InsertAddress(ctx context.Context, a *ShippingAddress) (int64, error) {
	t.s.mu.Lock()
	t.s.nextAddrID++
	a.ID = t.s.nextAddrID
	t.s.mu.Unlock()
	cp := *a
	t.addr = &cp
	return a.ID, nil
}

func (t *memTx) OrderCodeExists(ctx context.Context, code string) (bool, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return t.s.codes[code], nil
}

func (t *memTx) InsertOrder(ctx context.Context, o *Order) (int64, error) {
	t.s.mu.Lock()
	t.s.nextOrderID++
	o.ID = t.s.nextOrderID
	t.s.mu.Unlock()
	now := time.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now
	cp := *o
	t.order = &cp
	return o.ID, nil
}

func (t *memTx) AttachLines(ctx context.Context, orderID int64, lineIDs []int64) error {
	t.attachOrder = orderID
	t.attached = append([]int64(nil), lineIDs...)
	return nil
}

func (t *memTx) Commit(ctx context.Context) error {
	if t.done {
		return fmt.Errorf("placement tx already finished")
	}
	t.s.mu.Lock()
	for id, qty := range t.reservations {
		ml := t.s.lines[id]
		ml.line.Quantity = qty
		ml.line.AvailableQty -= qty
		ml.line.SoldQty += qty
		ml.line.Enabled = false
	}
	if t.addr != nil {
		t.s.addrs[t.addr.ID] = *t.addr
	}
	if t.order != nil {
		t.s.orders[t.order.ID] = t.order
		t.s.codes[t.order.Code] = true
	}
	for _, id := range t.attached {
		oid := t.attachOrder
		t.s.lines[id].line.OrderID = &oid
	}
	t.s.mu.Unlock()
	t.release()
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.release()
	return nil
}

func (t *memTx) release() {
	for _, ml := range t.locked {
		ml.rowLock.Unlock()
	}
	t.locked = nil
	t.done = true
}

func (s *MemoryStore) GetOrder(ctx context.Context, orderID int64) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	cp := *o
	cp.Lines = nil
	for _, ml := range s.lines {
		if ml.line.OrderID != nil && *ml.line.OrderID == orderID {
			cp.Lines = append(cp.Lines, ml.line)
		}
	}
	sort.Slice(cp.Lines, func(i, j int) bool { return cp.Lines[i].ID < cp.Lines[j].ID })
	cp.SellerIDs = DistinctSellers(cp.Lines)
	return &cp, nil
}

func (s *MemoryStore) GetOrderStatus(ctx context.Context, orderID int64) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return "", ErrOrderNotFound
	}
	return o.Status, nil
}

func (s *MemoryStore) UpdateOrderStatus(ctx context.Context, orderID int64, next Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	if !CanTransition(o.Status, next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, next)
	}
	o.Status = next
	o.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) CancelOrder(ctx context.Context, orderID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	if !CanTransition(o.Status, StatusCancelled) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, StatusCancelled)
	}
	for _, ml := range s.lines {
		if ml.line.OrderID != nil && *ml.line.OrderID == orderID {
			ml.line.AvailableQty += ml.line.Quantity
			ml.line.SoldQty -= ml.line.Quantity
		}
	}
	o.Status = StatusCancelled
	o.UpdatedAt = time.Now().UTC()
	return nil
}
