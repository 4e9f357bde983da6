package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// DeliveryDeduper remembers webhook delivery IDs for a while so provider
// redeliveries of an already-processed event can be acknowledged without
// running it again.
type DeliveryDeduper struct {
	rdb *goredis.Client
	ttl time.Duration
}

func NewDeliveryDeduper(rdb *goredis.Client, ttl time.Duration) *DeliveryDeduper {
	return &DeliveryDeduper{rdb: rdb, ttl: ttl}
}

// FirstDelivery records deliveryID and reports whether it was not seen before.
func (d *DeliveryDeduper) FirstDelivery(ctx context.Context, deliveryID string) (bool, error) {
	args := goredis.SetArgs{TTL: d.ttl, Mode: "NX"}
	_, err := d.rdb.SetArgs(ctx, seenKey(deliveryID), "1", args).Result()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to record webhook delivery: %w", err)
	}
	return true, nil
}

// Forget drops a recorded delivery so a redelivery is processed again. Used
// when handling the first delivery failed.
func (d *DeliveryDeduper) Forget(ctx context.Context, deliveryID string) error {
	if err := d.rdb.Del(ctx, seenKey(deliveryID)).Err(); err != nil {
		return fmt.Errorf("failed to forget webhook delivery: %w", err)
	}
	return nil
}

func seenKey(deliveryID string) string {
	return "webhook:seen:" + deliveryID
}
