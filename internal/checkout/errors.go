package checkout

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyCart         = errors.New("cart selection is empty")
	ErrCartLineNotFound  = errors.New("cart line not found")
	ErrOrderNotFound     = errors.New("order not found")
	ErrCodeExhausted     = errors.New("order code generation exhausted retries")
	ErrInvalidTransition = errors.New("invalid order status transition")
)

// InsufficientStockError identifies the offending product so the caller can
// tell the customer which line blocked the whole placement.
type InsufficientStockError struct {
	LineID      int64
	ProductName string
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %q: requested %d, available %d", e.ProductName, e.Requested, e.Available)
}

type AddressValidationError struct {
	Field string
}

func (e *AddressValidationError) Error() string {
	return fmt.Sprintf("shipping address: missing %s", e.Field)
}
