// Command marker-sweep lists pending-end markers and optionally clears the ones
// older than a threshold. Markers outlive their reconciliation task when the
// server restarts inside the debounce window; such markers are never finalized
// and only expire through their TTL.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/pscheid92/livecart/internal/adapter/redis"
	"github.com/pscheid92/livecart/internal/platform/logging"
)

type markerStore interface {
	List(ctx context.Context) ([]redis.PendingMarker, error)
	ClearIfMatch(ctx context.Context, ingressID string, createdAt time.Time) (bool, error)
}

type summary struct {
	scanned int
	stale   int
	cleared int
}

func main() {
	var (
		redisURL   = flag.String("redis", os.Getenv("REDIS_URL"), "Redis URL (or set REDIS_URL env)")
		olderThan  = flag.Duration("older-than", 10*time.Minute, "Markers older than this count as stale")
		clearStale = flag.Bool("clear", false, "Delete stale markers (default is a dry run)")
		verbose    = flag.Bool("verbose", false, "Verbose logging")
	)
	flag.Parse()

	if *redisURL == "" {
		log.Fatal("Redis URL required (--redis or REDIS_URL env)")
	}

	level := "info"
	if *verbose {
		level = "debug"
	}
	logging.InitLogger(level, "text")

	ctx := context.Background()
	rdb, err := redis.NewClient(ctx, *redisURL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer func() { _ = rdb.Close() }()
	slog.Info("Connected to Redis", "url", sanitizeURL(*redisURL))

	// TTL only matters for writes, which this tool never does.
	store := redis.NewMarkerStore(rdb, time.Hour)

	s, err := sweep(ctx, store, time.Now(), *olderThan, !*clearStale)
	if err != nil {
		log.Fatalf("Sweep failed: %v", err)
	}

	slog.Info("Sweep summary", "scanned", s.scanned, "stale", s.stale, "cleared", s.cleared, "dry_run", !*clearStale)
}

func sweep(ctx context.Context, store markerStore, now time.Time, olderThan time.Duration, dryRun bool) (summary, error) {
	markers, err := store.List(ctx)
	if err != nil {
		return summary{}, fmt.Errorf("list markers: %w", err)
	}

	s := summary{scanned: len(markers)}
	for _, m := range markers {
		age := now.Sub(m.CreatedAt)
		if age < olderThan {
			slog.Debug("Marker pending", "ingress_id", m.IngressID, "age", age.Round(time.Second))
			continue
		}

		s.stale++
		slog.Info("Stale marker", "ingress_id", m.IngressID, "created_at", m.CreatedAt.Format(time.RFC3339), "age", age.Round(time.Second))
		if dryRun {
			continue
		}

		// Compare-and-delete so a marker refreshed since List survives.
		cleared, err := store.ClearIfMatch(ctx, m.IngressID, m.CreatedAt)
		if err != nil {
			return s, fmt.Errorf("clear marker %s: %w", m.IngressID, err)
		}
		if cleared {
			s.cleared++
		}
	}
	return s, nil
}

func sanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "invalid-url"
	}
	return u.Redacted()
}
