package seatlock

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"busticket/internal/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a lock store backed by miniredis
func setupTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to create miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	if err := client.Ping(context.Background()).Err(); err != nil {
		mr.Close()
		t.Fatalf("Failed to connect to miniredis: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return NewRedis(client, 15*time.Minute, logger.NewWithWriter(io.Discard)), mr
}

func TestKeyRoundTrip(t *testing.T) {
	key := Key(12, 305)
	assert.Equal(t, "seat_lock:12:305", key)

	s, seat, ok := ParseKey(key)
	assert.True(t, ok)
	assert.Equal(t, int64(12), s)
	assert.Equal(t, int64(305), seat)

	_, _, ok = ParseKey("seat_lock:abc")
	assert.False(t, ok)
	_, _, ok = ParseKey("other:1:2")
	assert.False(t, ok)
}

func TestLockSeat_OtherOwnerRejected(t *testing.T) {
	r, _ := setupTestRedis(t)
	ctx := context.Background()

	ok, err := r.LockSeat(ctx, 7, 1, "user:1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.LockSeat(ctx, 7, 1, "user:2")
	require.NoError(t, err)
	assert.False(t, ok, "seat held by another user")

	// same seat on another schedule is independent
	ok, err = r.LockSeat(ctx, 8, 1, "user:2")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, r.UnlockSeat(ctx, 7, 1, "user:1"))
	ok, err = r.LockSeat(ctx, 7, 1, "user:2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLockSeat_ReentrantForOwner(t *testing.T) {
	r, mr := setupTestRedis(t)
	ctx := context.Background()

	ok, err := r.LockSeat(ctx, 1, 1, "user:9")
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(10 * time.Minute)
	ok, err = r.LockSeat(ctx, 1, 1, "user:9")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 15*time.Minute, mr.TTL(Key(1, 1)), "re-lock refreshes the hold")
}

func TestUnlockSeat_OnlyOwner(t *testing.T) {
	r, mr := setupTestRedis(t)
	ctx := context.Background()

	_, err := r.LockSeat(ctx, 5, 10, "user:1")
	require.NoError(t, err)

	require.NoError(t, r.UnlockSeat(ctx, 5, 10, "user:2"))
	owner, err := mr.Get(Key(5, 10))
	require.NoError(t, err)
	assert.Equal(t, "user:1", owner)

	require.NoError(t, r.Release(ctx, 5, 10))
	assert.False(t, mr.Exists(Key(5, 10)))
}

func TestLockExpires(t *testing.T) {
	r, mr := setupTestRedis(t)
	ctx := context.Background()

	_, err := r.LockSeat(ctx, 1, 4, "user:1")
	require.NoError(t, err)
	mr.FastForward(16 * time.Minute)

	ok, err := r.LockSeat(ctx, 1, 4, "user:2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLockedSeats(t *testing.T) {
	r, _ := setupTestRedis(t)
	ctx := context.Background()

	_, err := r.LockSeat(ctx, 2, 11, "u")
	require.NoError(t, err)

	held, err := r.LockedSeats(ctx, 2, []int64{10, 11, 12})
	require.NoError(t, err)
	assert.Equal(t, map[int64]bool{11: true}, held)

	empty, err := r.LockedSeats(ctx, 2, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestConcurrentLockAttempts_SingleWinner(t *testing.T) {
	r, _ := setupTestRedis(t)
	ctx := context.Background()
	const attempts = 30
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			ok, err := r.LockSeat(ctx, 99, 21, fmt.Sprintf("user:%d", n))
			if err == nil && ok {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	// Nobody unlocks, so exactly one booking can hold the seat.
	assert.Equal(t, 1, winners)
}
