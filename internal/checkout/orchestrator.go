package checkout

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/danupranata/go-marketplace-orders/internal/kafka"
)

// Publisher is the post-commit event outlet; satisfied by kafka.Producer.
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// ShippingInfo is the caller-supplied address input, snapshotted per order.
type ShippingInfo struct {
	FullName string `json:"full_name"`
	Street   string `json:"street"`
	City     string `json:"city"`
	State    string `json:"state"`
	Zip      string `json:"zip"`
	Country  string `json:"country"`
	Phone    string `json:"phone"`
}

type PlacementResult struct {
	OrderID    int64  `json:"order_id"`
	OrderCode  string `json:"order_code"`
	TotalCents int    `json:"total_cents"`
}

// Orchestrator is the single entry point for turning selected cart lines into
// a durable order. Reservation, address snapshot and order insert happen in
// one transaction; the OrderPlaced event goes out only after commit and its
// loss never undoes the order.
type Orchestrator struct {
	Store      Store
	Events     Publisher // optional
	Service    string
	CodePrefix string
	Log        *zap.Logger
}

const defaultPaymentMethod = "UNKNOWN"

// PlaceOrder reserves stock for every selection, persists the address and the
// order atomically, and announces the placement. A requested quantity of zero
// or less falls back to the line's current default quantity.
func (o *Orchestrator) PlaceOrder(ctx context.Context, userID int64, selections map[int64]int, ship ShippingInfo, paymentMethod string) (PlacementResult, error) {
	if len(selections) == 0 {
		return PlacementResult{}, ErrEmptyCart
	}
	if err := validateShipping(ship); err != nil {
		return PlacementResult{}, err
	}
	payment := strings.ToUpper(strings.TrimSpace(paymentMethod))
	if payment == "" {
		payment = defaultPaymentMethod
	}

	// ascending id order keeps runs reproducible and rules out lock-order
	// deadlock between contending placements
	lineIDs := make([]int64, 0, len(selections))
	for id := range selections {
		lineIDs = append(lineIDs, id)
	}
	sort.Slice(lineIDs, func(i, j int) bool { return lineIDs[i] < lineIDs[j] })

	tx, err := o.Store.Begin(ctx)
	if err != nil {
		return PlacementResult{}, err
	}
	defer tx.Rollback(ctx)

	var (
		totalCents int
		lines      []CartLine
	)
	for _, id := range lineIDs {
		line, err := tx.LockCartLine(ctx, id)
		if err != nil {
			return PlacementResult{}, err
		}
		qty := selections[id]
		if qty <= 0 {
			qty = line.Quantity
		}
		// a line already consumed by another order has nothing left to
		// reserve, regardless of its remaining counter
		reservable := line.AvailableQty
		if !line.Enabled || line.OrderID != nil {
			reservable = 0
		}
		if reservable < qty {
			return PlacementResult{}, &InsufficientStockError{
				LineID: line.ID, ProductName: line.ProductName,
				Requested: qty, Available: reservable,
			}
		}
		if err := tx.ApplyReservation(ctx, id, qty); err != nil {
			return PlacementResult{}, err
		}
		line.Quantity = qty
		totalCents += line.LineTotalCents()
		lines = append(lines, *line)
	}

	addr := &ShippingAddress{
		UserID:   userID,
		FullName: ship.FullName,
		Street:   ship.Street,
		City:     ship.City,
		State:    ship.State,
		Zip:      ship.Zip,
		Country:  ship.Country,
		Phone:    ship.Phone,
	}
	addrID, err := tx.InsertAddress(ctx, addr)
	if err != nil {
		return PlacementResult{}, err
	}

	code, err := NewOrderCode(ctx, o.CodePrefix, tx.OrderCodeExists)
	if err != nil {
		return PlacementResult{}, err
	}

	order := &Order{
		Code:          code,
		UserID:        userID,
		Status:        StatusInitial,
		TotalCents:    totalCents,
		PaymentMethod: payment,
		AddressID:     addrID,
		InvoiceNumber: code,
		SellerIDs:     DistinctSellers(lines),
		Lines:         lines,
	}
	orderID, err := tx.InsertOrder(ctx, order)
	if err != nil {
		return PlacementResult{}, err
	}
	if err := tx.AttachLines(ctx, orderID, lineIDs); err != nil {
		return PlacementResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return PlacementResult{}, err
	}

	// past the commit point: from here nothing may fail the placement
	o.publishPlaced(order)

	return PlacementResult{OrderID: orderID, OrderCode: code, TotalCents: totalCents}, nil
}

func validateShipping(s ShippingInfo) error {
	required := []struct{ field, value string }{
		{"full_name", s.FullName},
		{"street", s.Street},
		{"city", s.City},
		{"zip", s.Zip},
		{"country", s.Country},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &AddressValidationError{Field: r.field}
		}
	}
	return nil
}

func (o *Orchestrator) publishPlaced(order *Order) {
	if o.Events == nil {
		return
	}
	placed := OrderPlacedPayload{
		OrderID:    order.ID,
		OrderCode:  order.Code,
		UserID:     order.UserID,
		TotalCents: order.TotalCents,
		SellerIDs:  order.SellerIDs,
	}
	for _, l := range order.Lines {
		placed.Lines = append(placed.Lines, PlacedLine{
			CartLineID:     l.ID,
			ProductID:      l.ProductID,
			SellerID:       l.SellerID,
			ProductName:    l.ProductName,
			Qty:            l.Quantity,
			UnitPriceCents: l.UnitPriceCents,
		})
	}
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     EventOrderPlaced,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      o.Service,
		CorrelationID: order.Code,
		Payload:       kafkax.MustMarshal(placed),
	}
	o.Events.Publish(PartitionKey(order.Code), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(EventOrderPlaced)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
	if o.Log != nil {
		o.Log.Info("order placed",
			zap.Int64("order_id", order.ID),
			zap.String("order_code", order.Code),
			zap.Int("total_cents", order.TotalCents),
			zap.Int("lines", len(order.Lines)),
			zap.Int("sellers", len(order.SellerIDs)),
		)
	}
}
