package invoice

import (
	"context"
	"errors"
	"time"
)

// Invoice is the rendered billing artifact, keyed 1:1 to an order. Number
// mirrors the order code.
type Invoice struct {
	ID        int64
	OrderID   int64
	UserID    int64
	Number    string
	Content   string // rendered HTML
	CreatedAt time.Time
}

var ErrNotFound = errors.New("invoice not found")

type Store interface {
	FindByOrder(ctx context.Context, orderID int64) (*Invoice, error)

	// Insert persists the invoice unless one already exists for the order, in
	// which case the existing record is returned. Backed by a unique
	// constraint on order_id so two racing generators cannot both insert.
	Insert(ctx context.Context, inv *Invoice) (*Invoice, error)
}
