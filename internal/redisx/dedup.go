package redisx

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Deduper tracks processed event ids per consuming service.
// Seen is checked before handling, Mark is called after a successful pass,
// so a crash mid-handling still gets a redelivery (handlers must be idempotent).
type Deduper struct {
	R       *redis.Client
	Service string
}

func (d *Deduper) Seen(ctx context.Context, eventID string) (bool, error) {
	return Exists(ctx, d.R, fmt.Sprintf(KeyDedup, d.Service, eventID))
}

func (d *Deduper) Mark(ctx context.Context, eventID string) error {
	return d.R.Set(ctx, fmt.Sprintf(KeyDedup, d.Service, eventID), "1", TTLDedup).Err()
}
