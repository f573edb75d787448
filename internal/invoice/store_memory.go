package invoice

import (
	"context"
	"sync"
	"time"
)

type MemoryStore struct {
	mu      sync.Mutex
	nextID  int64
	byOrder map[int64]*Invoice
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byOrder: make(map[int64]*Invoice)}
}

func (s *MemoryStore) FindByOrder(ctx context.Context, orderID int64) (*Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.byOrder[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *inv
	return &cp, nil
}

func (s *MemoryStore) Insert(ctx context.Context, inv *Invoice) (*Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.byOrder[inv.OrderID]; ok {
		cp := *existing
		return &cp, nil
	}
	s.nextID++
	cp := *inv
	cp.ID = s.nextID
	cp.CreatedAt = time.Now().UTC()
	s.byOrder[inv.OrderID] = &cp
	out := cp
	return &out, nil
}
