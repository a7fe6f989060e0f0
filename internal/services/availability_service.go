package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"event-ticketing/models"
	"event-ticketing/monitoring"

	"github.com/redis/go-redis/v9"
)

type AvailabilityService struct {
	store Store
	cache AvailabilityCache
}

func NewAvailabilityService(store Store, cache AvailabilityCache) *AvailabilityService {
	return &AvailabilityService{store: store, cache: cache}
}

// Availability returns remaining places per category. The cached value is
// served until its ttl runs out; sales do not invalidate it.
func (s *AvailabilityService) Availability(ctx context.Context) (models.Availability, error) {
	if s.cache != nil {
		if a, ok := s.cache.Get(ctx); ok {
			return a, nil
		}
	}

	sold, err := s.store.CountTicketsByCategory(ctx)
	if err != nil {
		return models.Availability{}, fmt.Errorf("count tickets by category: %w", err)
	}
	a := models.NewAvailability(sold)

	if s.cache != nil {
		s.cache.Set(ctx, a)
	}
	monitoring.SetRemaining(a)
	return a, nil
}

type MemoryAvailabilityCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	value   models.Availability
	expires time.Time
	now     func() time.Time
}

func NewMemoryAvailabilityCache(ttl time.Duration) *MemoryAvailabilityCache {
	return &MemoryAvailabilityCache{ttl: ttl, now: time.Now}
}

func (c *MemoryAvailabilityCache) Get(ctx context.Context) (models.Availability, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.expires.IsZero() || !c.now().Before(c.expires) {
		return models.Availability{}, false
	}
	return c.value, true
}

func (c *MemoryAvailabilityCache) Set(ctx context.Context, a models.Availability) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = a
	c.expires = c.now().Add(c.ttl)
}

const availabilityCacheKey = "cache:availability"

type RedisAvailabilityCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisAvailabilityCache(client *redis.Client, ttl time.Duration) *RedisAvailabilityCache {
	return &RedisAvailabilityCache{client: client, ttl: ttl}
}

func (c *RedisAvailabilityCache) Get(ctx context.Context) (models.Availability, bool) {
	data, err := c.client.Get(ctx, availabilityCacheKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Error("c.client.Get()", "key", availabilityCacheKey, "error", err)
		}
		return models.Availability{}, false
	}

	var a models.Availability
	if err := json.Unmarshal(data, &a); err != nil {
		slog.Error("json.Unmarshal()", "key", availabilityCacheKey, "error", err)
		return models.Availability{}, false
	}
	return a, true
}

func (c *RedisAvailabilityCache) Set(ctx context.Context, a models.Availability) {
	if c.ttl <= 0 {
		return
	}
	data, err := json.Marshal(a)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, availabilityCacheKey, string(data), c.ttl).Err(); err != nil {
		slog.Error("c.client.Set()", "key", availabilityCacheKey, "error", err)
	}
}
