package checkout

import "context"

// Store is the persistence boundary of the placement workflow. The Postgres
// implementation is the real one; the memory implementation backs tests.
type Store interface {
	// Begin opens the all-or-nothing placement transaction.
	Begin(ctx context.Context) (Tx, error)

	GetOrder(ctx context.Context, orderID int64) (*Order, error)
	GetOrderStatus(ctx context.Context, orderID int64) (Status, error)

	// UpdateOrderStatus applies a guarded lifecycle transition. It fails with
	// ErrInvalidTransition when the state machine forbids the move.
	UpdateOrderStatus(ctx context.Context, orderID int64, next Status) error

	// CancelOrder transitions to CANCELLED and restores the stock counters of
	// the order's lines in the same transaction. The transition guard makes a
	// duplicate cancel a no-op failure rather than a double restore.
	CancelOrder(ctx context.Context, orderID int64) error
}

// Tx exposes the steps of one placement. Every mutation stays invisible to
// other transactions until Commit; LockCartLine holds the row lock until
// Commit or Rollback, serializing reservations per line.
type Tx interface {
	// LockCartLine loads a line for update; ErrCartLineNotFound when absent.
	// The lock is held until Commit or Rollback.
	LockCartLine(ctx context.Context, lineID int64) (*CartLine, error)

	// ApplyReservation freezes the line quantity to qty, debits available
	// stock, credits sold stock and disables the line. The line must be locked
	// and the availability check already done by the caller.
	ApplyReservation(ctx context.Context, lineID int64, qty int) error

	InsertAddress(ctx context.Context, addr *ShippingAddress) (int64, error)
	OrderCodeExists(ctx context.Context, code string) (bool, error)
	InsertOrder(ctx context.Context, o *Order) (int64, error)

	// AttachLines binds the consumed lines to the created order.
	AttachLines(ctx context.Context, orderID int64, lineIDs []int64) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
