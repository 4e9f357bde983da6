package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Markers are stored as the createdAt unix-millisecond string, so a generation
// compares by exact string equality inside Lua.

// clearIfMatchScript deletes the marker only while it still holds the given generation.
// ARGV: [1]=createdAt ms
var clearIfMatchScript = goredis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// MarkerStore keeps pending-end markers in Redis, shared by all instances.
// Entries expire after ttl so abandoned markers do not accumulate.
type MarkerStore struct {
	rdb *goredis.Client
	ttl time.Duration
}

func NewMarkerStore(rdb *goredis.Client, ttl time.Duration) *MarkerStore {
	return &MarkerStore{rdb: rdb, ttl: ttl}
}

func (s *MarkerStore) Write(ctx context.Context, ingressID string, createdAt time.Time) error {
	if err := s.rdb.Set(ctx, markerKey(ingressID), formatMillis(createdAt), s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write marker: %w", err)
	}
	return nil
}

func (s *MarkerStore) Get(ctx context.Context, ingressID string) (time.Time, bool, error) {
	raw, err := s.rdb.Get(ctx, markerKey(ingressID)).Result()
	if errors.Is(err, goredis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read marker: %w", err)
	}

	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("corrupt marker %q: %w", raw, err)
	}
	return time.UnixMilli(ms).UTC(), true, nil
}

func (s *MarkerStore) ClearIfMatch(ctx context.Context, ingressID string, createdAt time.Time) (bool, error) {
	n, err := clearIfMatchScript.Run(ctx, s.rdb, []string{markerKey(ingressID)}, formatMillis(createdAt)).Int()
	if err != nil {
		return false, fmt.Errorf("failed to clear marker: %w", err)
	}
	return n == 1, nil
}

// Restore writes the marker back unless one exists, so a newer generation
// written in the meantime wins.
func (s *MarkerStore) Restore(ctx context.Context, ingressID string, createdAt time.Time) error {
	args := goredis.SetArgs{TTL: s.ttl, Mode: "NX"}
	err := s.rdb.SetArgs(ctx, markerKey(ingressID), formatMillis(createdAt), args).Err()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("failed to restore marker: %w", err)
	}
	return nil
}

// PendingMarker is one marker found by List.
type PendingMarker struct {
	IngressID string
	CreatedAt time.Time
}

// List scans all markers. Entries that vanish or are unparsable mid-scan are skipped.
func (s *MarkerStore) List(ctx context.Context) ([]PendingMarker, error) {
	var markers []PendingMarker
	iter := s.rdb.Scan(ctx, 0, markerKeyPrefix+"*", scanCount).Iterator()
	for iter.Next(ctx) {
		ingressID := strings.TrimPrefix(iter.Val(), markerKeyPrefix)
		createdAt, found, err := s.Get(ctx, ingressID)
		if err != nil || !found {
			continue
		}
		markers = append(markers, PendingMarker{IngressID: ingressID, CreatedAt: createdAt})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan markers: %w", err)
	}
	return markers, nil
}

const (
	markerKeyPrefix = "pending_end:"
	scanCount       = 100
)

func markerKey(ingressID string) string {
	return markerKeyPrefix + ingressID
}

func formatMillis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}
