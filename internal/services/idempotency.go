package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// MemoryDeduper is a bounded, process-local set of processed event ids.
// When full, the oldest id is evicted first.
type MemoryDeduper struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	seen     map[string]time.Time
	order    []string
	now      func() time.Time
}

func NewMemoryDeduper(capacity int, ttl time.Duration) *MemoryDeduper {
	if capacity <= 0 {
		capacity = 1000
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &MemoryDeduper{
		capacity: capacity,
		ttl:      ttl,
		seen:     make(map[string]time.Time, capacity),
		order:    make([]string, 0, capacity),
		now:      time.Now,
	}
}

func (d *MemoryDeduper) MarkProcessed(ctx context.Context, eventID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[eventID]; ok {
		return false, nil
	}
	for len(d.order) >= d.capacity {
		d.evictOldest()
	}
	d.seen[eventID] = d.now()
	d.order = append(d.order, eventID)
	return true, nil
}

func (d *MemoryDeduper) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.order)
}

// Sweep drops ids older than the ttl and returns how many were removed.
func (d *MemoryDeduper) Sweep() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	cutoff := d.now().Add(-d.ttl)
	removed := 0
	for len(d.order) > 0 && d.seen[d.order[0]].Before(cutoff) {
		d.evictOldest()
		removed++
	}
	return removed
}

func (d *MemoryDeduper) evictOldest() {
	oldest := d.order[0]
	d.order = d.order[1:]
	delete(d.seen, oldest)
}

// StartSweeper runs Sweep every interval until ctx is done.
func (d *MemoryDeduper) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := d.Sweep(); n > 0 {
					slog.Info("webhook idempotency sweep", "removed", n)
				}
			}
		}
	}()
}

const webhookEventKeyPrefix = "webhook:event:"

// RedisDeduper shares processed event ids between instances and restarts.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisDeduper{client: client, ttl: ttl}
}

func (d *RedisDeduper) MarkProcessed(ctx context.Context, eventID string) (bool, error) {
	return d.client.SetNX(ctx, webhookEventKeyPrefix+eventID, "1", d.ttl).Result()
}
