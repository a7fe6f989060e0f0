package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryDeduper_MarkProcessed(t *testing.T) {
	d := NewMemoryDeduper(10, time.Hour)
	ctx := context.Background()

	first, err := d.MarkProcessed(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, first)

	first, err = d.MarkProcessed(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, first)

	assert.Equal(t, 1, d.Len())
}

func TestMemoryDeduper_EvictsOldestWhenFull(t *testing.T) {
	d := NewMemoryDeduper(3, time.Hour)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c", "d"} {
		first, _ := d.MarkProcessed(ctx, id)
		require.True(t, first)
	}
	assert.Equal(t, 3, d.Len())

	// "a" was evicted, "d" is still remembered
	first, _ := d.MarkProcessed(ctx, "a")
	assert.True(t, first)
	first, _ = d.MarkProcessed(ctx, "d")
	assert.False(t, first)
}

func TestMemoryDeduper_Sweep(t *testing.T) {
	now := time.Date(2025, 4, 19, 20, 0, 0, 0, time.UTC)
	d := NewMemoryDeduper(100, 24*time.Hour)
	d.now = func() time.Time { return now }
	ctx := context.Background()

	d.MarkProcessed(ctx, "old")
	now = now.Add(20 * time.Hour)
	d.MarkProcessed(ctx, "recent")

	now = now.Add(5 * time.Hour)
	assert.Equal(t, 1, d.Sweep())
	assert.Equal(t, 1, d.Len())

	first, _ := d.MarkProcessed(ctx, "old")
	assert.True(t, first)
	first, _ = d.MarkProcessed(ctx, "recent")
	assert.False(t, first)
}

func TestMemoryDeduper_Concurrent(t *testing.T) {
	d := NewMemoryDeduper(1000, time.Hour)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if first, _ := d.MarkProcessed(ctx, "evt_same"); first {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestMemoryDeduper_Defaults(t *testing.T) {
	d := NewMemoryDeduper(0, 0)
	assert.Equal(t, 1000, d.capacity)
	assert.Equal(t, 24*time.Hour, d.ttl)
}

func BenchmarkMemoryDeduper_MarkProcessed(b *testing.B) {
	d := NewMemoryDeduper(1000, time.Hour)
	ctx := context.Background()
	for i := 0; i < b.N; i++ {
		d.MarkProcessed(ctx, fmt.Sprintf("evt_%d", i))
	}
}

func TestRedisDeduper_MarkProcessed(t *testing.T) {
	db, mock := redismock.NewClientMock()
	d := NewRedisDeduper(db, 24*time.Hour)
	ctx := context.Background()

	mock.ExpectSetNX("webhook:event:evt_1", "1", 24*time.Hour).SetVal(true)
	mock.ExpectSetNX("webhook:event:evt_1", "1", 24*time.Hour).SetVal(false)

	first, err := d.MarkProcessed(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, first)

	first, err = d.MarkProcessed(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, first)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisDeduper_Error(t *testing.T) {
	db, mock := redismock.NewClientMock()
	d := NewRedisDeduper(db, time.Hour)

	mock.ExpectSetNX("webhook:event:evt_1", "1", time.Hour).SetErr(errors.New("connection refused"))

	_, err := d.MarkProcessed(context.Background(), "evt_1")
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
