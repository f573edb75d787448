package checkout

import (
	"encoding/json"
	"time"
)

const (
	EventOrderPlaced    = "OrderPlaced"
	EventSellerNotified = "SellerNotified"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order code
	Payload       json.RawMessage `json:"payload"`
}

type PlacedLine struct {
	CartLineID     int64  `json:"cart_line_id"`
	ProductID      int64  `json:"product_id"`
	SellerID       int64  `json:"seller_id"`
	ProductName    string `json:"product_name"`
	Qty            int    `json:"qty"`
	UnitPriceCents int    `json:"unit_price_cents"`
}

type OrderPlacedPayload struct {
	OrderID    int64        `json:"order_id"`
	OrderCode  string       `json:"order_code"`
	UserID     int64        `json:"user_id"`
	TotalCents int          `json:"total_cents"`
	SellerIDs  []int64      `json:"seller_ids"`
	Lines      []PlacedLine `json:"lines"`
}

type SellerNotifiedPayload struct {
	SellerID int64  `json:"seller_id"`
	Text     string `json:"text"`
}
