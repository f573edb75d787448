package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type fakePublisher struct {
	mu     sync.Mutex
	events [][]byte
}

func (p *fakePublisher) Publish(key, value []byte, headers ...kafkago.Header) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, value)
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func validShipping() ShippingInfo {
	return ShippingInfo{
		FullName: "Dewi Lestari",
		Street:   "Jl. Sudirman 12",
		City:     "Jakarta",
		State:    "DKI",
		Zip:      "10110",
		Country:  "ID",
		Phone:    "+62-811-000-111",
	}
}

func newOrchestrator(store *MemoryStore) (*Orchestrator, *fakePublisher) {
	pub := &fakePublisher{}
	return &Orchestrator{
		Store:      store,
		Events:     pub,
		Service:    "checkout-test",
		CodePrefix: "MP",
	}, pub
}

func TestPlaceOrderEmptyCart(t *testing.T) {
	store := NewMemoryStore()
	orch, pub := newOrchestrator(store)

	_, err := orch.PlaceOrder(context.Background(), 1, map[int64]int{}, validShipping(), "card")
	require.ErrorIs(t, err, ErrEmptyCart)
	assert.Zero(t, pub.count())
}

func TestPlaceOrderUnknownLine(t *testing.T) {
	store := NewMemoryStore()
	orch, _ := newOrchestrator(store)

	_, err := orch.PlaceOrder(context.Background(), 1, map[int64]int{99: 1}, validShipping(), "card")
	require.ErrorIs(t, err, ErrCartLineNotFound)
}

func TestPlaceOrderConsumedLineRejected(t *testing.T) {
	store := NewMemoryStore()
	lineID := store.AddCartLine(CartLine{
		UserID: 1, ProductID: 10, SellerID: 7, ProductName: "Collar",
		UnitPriceCents: 100, Quantity: 1, AvailableQty: 5,
	})
	orch, _ := newOrchestrator(store)

	_, err := orch.PlaceOrder(context.Background(), 1, map[int64]int{lineID: 1}, validShipping(), "card")
	require.NoError(t, err)

	// the line is now a historical record with nothing left to reserve
	_, err = orch.PlaceOrder(context.Background(), 1, map[int64]int{lineID: 1}, validShipping(), "card")
	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 0, stockErr.Available)
}

func TestPlaceOrderTwoLinesTwoSellers(t *testing.T) {
	store := NewMemoryStore()
	lineA := store.AddCartLine(CartLine{
		UserID: 1, ProductID: 10, SellerID: 7, ProductName: "Leash",
		UnitPriceCents: 100, Quantity: 1, AvailableQty: 10,
	})
	lineB := store.AddCartLine(CartLine{
		UserID: 1, ProductID: 11, SellerID: 8, ProductName: "Bowl",
		UnitPriceCents: 50, Quantity: 1, AvailableQty: 1,
	})
	orch, pub := newOrchestrator(store)

	res, err := orch.PlaceOrder(context.Background(), 1,
		map[int64]int{lineA: 2, lineB: 1}, validShipping(), "card")
	require.NoError(t, err)
	assert.Equal(t, 250, res.TotalCents)
	assert.NotEmpty(t, res.OrderCode)

	a, _ := store.Line(lineA)
	assert.Equal(t, 8, a.AvailableQty)
	assert.Equal(t, 2, a.SoldQty)
	assert.Equal(t, 2, a.Quantity)
	assert.False(t, a.Enabled)
	require.NotNil(t, a.OrderID)
	assert.Equal(t, res.OrderID, *a.OrderID)

	b, _ := store.Line(lineB)
	assert.Equal(t, 0, b.AvailableQty)
	assert.Equal(t, 1, b.SoldQty)

	order, err := store.GetOrder(context.Background(), res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, StatusInitial, order.Status)
	assert.Equal(t, "CARD", order.PaymentMethod)
	assert.Equal(t, res.OrderCode, order.InvoiceNumber)
	assert.Equal(t, []int64{7, 8}, order.SellerIDs)
	assert.Equal(t, 250, order.TotalCents)

	// exactly one placement announcement
	assert.Equal(t, 1, pub.count())
}

func TestPlaceOrderInsufficientStockIsAtomic(t *testing.T) {
	store := NewMemoryStore()
	lineA := store.AddCartLine(CartLine{
		UserID: 1, ProductID: 10, SellerID: 7, ProductName: "Leash",
		UnitPriceCents: 100, Quantity: 1, AvailableQty: 10,
	})
	lineB := store.AddCartLine(CartLine{
		UserID: 1, ProductID: 11, SellerID: 8, ProductName: "Bowl",
		UnitPriceCents: 50, Quantity: 1, AvailableQty: 1,
	})
	orch, pub := newOrchestrator(store)

	_, err := orch.PlaceOrder(context.Background(), 1,
		map[int64]int{lineA: 2, lineB: 5}, validShipping(), "card")

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "Bowl", stockErr.ProductName)
	assert.Equal(t, 5, stockErr.Requested)
	assert.Equal(t, 1, stockErr.Available)

	// the earlier reservation on line A rolled back with everything else
	a, _ := store.Line(lineA)
	assert.Equal(t, 10, a.AvailableQty)
	assert.Equal(t, 0, a.SoldQty)
	assert.True(t, a.Enabled)
	assert.Nil(t, a.OrderID)

	_, err = store.GetOrder(context.Background(), 1)
	assert.ErrorIs(t, err, ErrOrderNotFound)
	assert.Zero(t, pub.count())
}

func TestPlaceOrderDefaultQuantityFallback(t *testing.T) {
	store := NewMemoryStore()
	lineID := store.AddCartLine(CartLine{
		UserID: 1, ProductID: 10, SellerID: 7, ProductName: "Crate",
		UnitPriceCents: 200, Quantity: 3, AvailableQty: 5,
	})
	orch, _ := newOrchestrator(store)

	res, err := orch.PlaceOrder(context.Background(), 1, map[int64]int{lineID: 0}, validShipping(), "")
	require.NoError(t, err)
	assert.Equal(t, 600, res.TotalCents)

	l, _ := store.Line(lineID)
	assert.Equal(t, 3, l.Quantity)
	assert.Equal(t, 2, l.AvailableQty)

	order, err := store.GetOrder(context.Background(), res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, "UNKNOWN", order.PaymentMethod)
}

func TestPlaceOrderAddressValidation(t *testing.T) {
	store := NewMemoryStore()
	lineID := store.AddCartLine(CartLine{
		UserID: 1, ProductID: 10, SellerID: 7, ProductName: "Crate",
		UnitPriceCents: 200, Quantity: 1, AvailableQty: 5,
	})
	orch, _ := newOrchestrator(store)

	ship := validShipping()
	ship.Zip = "  "
	_, err := orch.PlaceOrder(context.Background(), 1, map[int64]int{lineID: 1}, ship, "card")

	var addrErr *AddressValidationError
	require.ErrorAs(t, err, &addrErr)
	assert.Equal(t, "zip", addrErr.Field)

	// rejected before any mutation
	l, _ := store.Line(lineID)
	assert.Equal(t, 5, l.AvailableQty)
	assert.True(t, l.Enabled)
}

func TestPlaceOrderContendingPlacementsSerialize(t *testing.T) {
	store := NewMemoryStore()
	lineID := store.AddCartLine(CartLine{
		UserID: 1, ProductID: 10, SellerID: 7, ProductName: "Aquarium",
		UnitPriceCents: 900, Quantity: 1, AvailableQty: 5,
	})
	orch, _ := newOrchestrator(store)

	errs := make([]error, 2)
	var g errgroup.Group
	for i := 0; i < 2; i++ {
		i := i
		g.Go(func() error {
			_, errs[i] = orch.PlaceOrder(context.Background(), int64(i+1),
				map[int64]int{lineID: 3}, validShipping(), "card")
			return nil
		})
	}
	require.NoError(t, g.Wait())

	var okCount, stockFail int
	for _, err := range errs {
		if err == nil {
			okCount++
			continue
		}
		var stockErr *InsufficientStockError
		if !errors.As(err, &stockErr) {
			t.Fatalf("unexpected error: %v", err)
		}
		stockFail++
	}
	assert.Equal(t, 1, okCount, "exactly one placement must win")
	assert.Equal(t, 1, stockFail)

	l, _ := store.Line(lineID)
	assert.Equal(t, 2, l.AvailableQty, "5 - 3, never negative")
	assert.Equal(t, 3, l.SoldQty)
}

func TestPlaceOrderDisjointPlacementsBothSucceed(t *testing.T) {
	store := NewMemoryStore()
	lineA := store.AddCartLine(CartLine{
		UserID: 1, ProductID: 10, SellerID: 7, ProductName: "Leash",
		UnitPriceCents: 100, Quantity: 1, AvailableQty: 4,
	})
	lineB := store.AddCartLine(CartLine{
		UserID: 2, ProductID: 11, SellerID: 8, ProductName: "Bowl",
		UnitPriceCents: 50, Quantity: 1, AvailableQty: 4,
	})
	orch, pub := newOrchestrator(store)

	var g errgroup.Group
	for i, id := range []int64{lineA, lineB} {
		userID, lineID := int64(i+1), id
		g.Go(func() error {
			_, err := orch.PlaceOrder(context.Background(), userID,
				map[int64]int{lineID: 2}, validShipping(), "card")
			return err
		})
	}
	require.NoError(t, g.Wait())

	a, _ := store.Line(lineA)
	b, _ := store.Line(lineB)
	assert.Equal(t, 2, a.AvailableQty)
	assert.Equal(t, 2, b.AvailableQty)
	assert.Equal(t, 2, pub.count())
}

func TestCancelOrderRestoresStock(t *testing.T) {
	store := NewMemoryStore()
	lineID := store.AddCartLine(CartLine{
		UserID: 1, ProductID: 10, SellerID: 7, ProductName: "Crate",
		UnitPriceCents: 200, Quantity: 1, AvailableQty: 5,
	})
	orch, _ := newOrchestrator(store)

	res, err := orch.PlaceOrder(context.Background(), 1, map[int64]int{lineID: 2}, validShipping(), "card")
	require.NoError(t, err)

	l, _ := store.Line(lineID)
	require.Equal(t, 3, l.AvailableQty)

	require.NoError(t, store.CancelOrder(context.Background(), res.OrderID))

	l, _ = store.Line(lineID)
	assert.Equal(t, 5, l.AvailableQty)
	assert.Equal(t, 0, l.SoldQty)

	status, err := store.GetOrderStatus(context.Background(), res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, status)

	// a second cancel must not restore twice
	err = store.CancelOrder(context.Background(), res.OrderID)
	require.ErrorIs(t, err, ErrInvalidTransition)
	l, _ = store.Line(lineID)
	assert.Equal(t, 5, l.AvailableQty)
}
