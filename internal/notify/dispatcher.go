package notify

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/danupranata/go-marketplace-orders/internal/checkout"
	kafkax "github.com/danupranata/go-marketplace-orders/internal/kafka"
)

// Dispatcher delivers a "new order" notice to one seller. Each call is
// independent and best-effort: a failed seller must not block the others.
type Dispatcher interface {
	NotifySeller(ctx context.Context, sellerID int64, text string) error
}

// KafkaDispatcher publishes one message per seller, keyed by the order code
// carried in the correlation id.
type KafkaDispatcher struct {
	Producer *kafkax.Producer
	Service  string
}

func (d *KafkaDispatcher) NotifySeller(ctx context.Context, sellerID int64, text string) error {
	ev := checkout.Envelope{
		EventID:      uuid.NewString(),
		EventType:    checkout.EventSellerNotified,
		EventVersion: 1,
		OccurredAt:   time.Now().UTC(),
		Producer:     d.Service,
		Payload:      kafkax.MustMarshal(checkout.SellerNotifiedPayload{SellerID: sellerID, Text: text}),
	}
	// key by seller so one seller's notifications stay in order
	d.Producer.Publish([]byte(strconv.FormatInt(sellerID, 10)), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(checkout.EventSellerNotified)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
	return nil
}

// LogDispatcher is a stand-in for environments without a broker.
type LogDispatcher struct{ Log *zap.Logger }

func (d *LogDispatcher) NotifySeller(ctx context.Context, sellerID int64, text string) error {
	d.Log.Info("seller notification", zap.Int64("seller_id", sellerID), zap.String("text", text))
	return nil
}
