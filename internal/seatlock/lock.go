package seatlock

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"busticket/internal/logger"

	"github.com/go-redis/redis/v8"
)

const KeyPrefix = "seat_lock:"

// releaseScript deletes the key only while it still belongs to the owner.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis holds per seat locks for the duration of a booking hold.
type Redis struct {
	Client *redis.Client
	TTL    time.Duration
	Logger *logger.Logger
}

func NewRedis(client *redis.Client, ttl time.Duration, log *logger.Logger) *Redis {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Redis{Client: client, TTL: ttl, Logger: log}
}

func Key(scheduleID, seatID int64) string {
	return fmt.Sprintf("%s%d:%d", KeyPrefix, scheduleID, seatID)
}

// ParseKey is the inverse of Key.
func ParseKey(key string) (scheduleID, seatID int64, ok bool) {
	rest, found := strings.CutPrefix(key, KeyPrefix)
	if !found {
		return 0, 0, false
	}
	parts := strings.Split(rest, ":")
	if len(parts) != 2 {
		return 0, 0, false
	}
	s, err1 := strconv.ParseInt(parts[0], 10, 64)
	t, err2 := strconv.ParseInt(parts[1], 10, 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return s, t, true
}

// LockSeat succeeds when the seat is free or already held by owner.
func (r *Redis) LockSeat(ctx context.Context, scheduleID, seatID int64, owner string) (bool, error) {
	key := Key(scheduleID, seatID)
	ok, err := r.Client.SetNX(ctx, key, owner, r.TTL).Result()
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}
	current, err := r.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		// expired between SETNX and GET
		return r.Client.SetNX(ctx, key, owner, r.TTL).Result()
	}
	if err != nil {
		return false, err
	}
	if current == owner {
		return true, r.Client.Expire(ctx, key, r.TTL).Err()
	}
	return false, nil
}

func (r *Redis) UnlockSeat(ctx context.Context, scheduleID, seatID int64, owner string) error {
	return releaseScript.Run(ctx, r.Client, []string{Key(scheduleID, seatID)}, owner).Err()
}

// Release drops a lock regardless of owner, used once a seat is paid or freed.
func (r *Redis) Release(ctx context.Context, scheduleID, seatID int64) error {
	return r.Client.Del(ctx, Key(scheduleID, seatID)).Err()
}

// LockedSeats reports which of seatIDs are currently held on the schedule.
func (r *Redis) LockedSeats(ctx context.Context, scheduleID int64, seatIDs []int64) (map[int64]bool, error) {
	out := make(map[int64]bool, len(seatIDs))
	if len(seatIDs) == 0 {
		return out, nil
	}
	keys := make([]string, len(seatIDs))
	for i, id := range seatIDs {
		keys[i] = Key(scheduleID, id)
	}
	vals, err := r.Client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range vals {
		if v != nil {
			out[seatIDs[i]] = true
		}
	}
	return out, nil
}
