package fulfillment

import (
	"context"
	"encoding/json"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/danupranata/go-marketplace-orders/internal/checkout"
	"github.com/danupranata/go-marketplace-orders/internal/invoice"
	"github.com/danupranata/go-marketplace-orders/internal/kafka"
	"github.com/danupranata/go-marketplace-orders/internal/notify"
)

// Deduper tracks processed events; satisfied by redisx.Deduper.
type Deduper interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

// InvoiceGenerator is the outbound invoice contract; satisfied by
// invoice.Generator.
type InvoiceGenerator interface {
	Generate(ctx context.Context, orderID int64) (*invoice.Invoice, error)
}

// Service consumes OrderPlaced events and runs the best-effort phase of a
// placement: invoice generation and seller fan-out. Both are idempotent or
// independent, so redelivery of an event is harmless.
type Service struct {
	Invoices InvoiceGenerator
	Notifier notify.Dispatcher
	Dedup    Deduper
	Log      *zap.Logger
}

// HandleOrderPlaced is wired as the consumer handler. Invoice or notification
// failures are logged and do not fail the message: the order is already
// placed, and the recovery path is a later re-run against the same idempotent
// contracts.
func (s *Service) HandleOrderPlaced(ctx context.Context, m kafkago.Message) error {
	var env checkout.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	if env.EventType != checkout.EventOrderPlaced {
		return nil // not ours
	}

	if seen, err := s.Dedup.Seen(ctx, env.EventID); err != nil {
		return err
	} else if seen {
		return nil
	}

	p, err := kafka.UnwrapPayload[checkout.OrderPlacedPayload](env.Payload)
	if err != nil {
		return err
	}
	log := s.Log.With(zap.Int64("order_id", p.OrderID), zap.String("order_code", p.OrderCode))

	if _, err := s.Invoices.Generate(ctx, p.OrderID); err != nil {
		log.Error("invoice generation failed", zap.Error(err))
	}

	for _, sellerID := range p.SellerIDs {
		text := fmt.Sprintf("New order %s: you have items to fulfil.", p.OrderCode)
		if err := s.Notifier.NotifySeller(ctx, sellerID, text); err != nil {
			log.Error("seller notification failed", zap.Int64("seller_id", sellerID), zap.Error(err))
			continue
		}
	}

	// mark only after a full pass; a crash above means redelivery, which the
	// idempotent steps absorb
	if err := s.Dedup.Mark(ctx, env.EventID); err != nil {
		log.Warn("dedup mark failed", zap.Error(err))
	}
	return nil
}
