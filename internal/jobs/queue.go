// Package jobs runs delayed per-ticket jobs out of a Redis sorted set and
// the periodic schedule status update.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"busticket/internal/logger"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	TypeHoldExpire      = "hold-expire"
	TypePaymentReminder = "payment-reminder"

	delayedKey     = "busticket:jobs:delayed"
	ticketIndexKey = "busticket:jobs:ticket:"
)

type Job struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	TicketID   int64     `json:"ticketId"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
}

// Queue stores jobs scored by their due time in unix milliseconds.
type Queue struct {
	Client *redis.Client
	Logger *logger.Logger
	now    func() time.Time
}

func NewQueue(client *redis.Client, log *logger.Logger) *Queue {
	return &Queue{Client: client, Logger: log, now: time.Now}
}

func (q *Queue) WithClock(now func() time.Time) *Queue {
	q.now = now
	return q
}

func indexKey(ticketID int64) string {
	return ticketIndexKey + strconv.FormatInt(ticketID, 10)
}

// Enqueue schedules a job of typ for ticketID to run after delay.
func (q *Queue) Enqueue(ctx context.Context, typ string, ticketID int64, delay time.Duration) (*Job, error) {
	now := q.now().UTC()
	job := &Job{ID: uuid.NewString(), Type: typ, TicketID: ticketID, EnqueuedAt: now}
	member, err := json.Marshal(job)
	if err != nil {
		return nil, err
	}
	due := now.Add(delay)

	pipe := q.Client.TxPipeline()
	pipe.ZAdd(ctx, delayedKey, &redis.Z{Score: float64(due.UnixMilli()), Member: string(member)})
	pipe.SAdd(ctx, indexKey(ticketID), string(member))
	pipe.Expire(ctx, indexKey(ticketID), delay+24*time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to enqueue %s job for ticket %d: %w", typ, ticketID, err)
	}
	q.Logger.LogJob(typ, ticketID, fmt.Sprintf("Scheduled at %s", due.Format(time.RFC3339)))
	return job, nil
}

// RemoveForTickets drops every pending job of the given tickets.
func (q *Queue) RemoveForTickets(ctx context.Context, ticketIDs []int64) error {
	for _, id := range ticketIDs {
		members, err := q.Client.SMembers(ctx, indexKey(id)).Result()
		if err != nil {
			return fmt.Errorf("failed to read jobs of ticket %d: %w", id, err)
		}
		pipe := q.Client.TxPipeline()
		if len(members) > 0 {
			args := make([]interface{}, len(members))
			for i, m := range members {
				args[i] = m
			}
			pipe.ZRem(ctx, delayedKey, args...)
		}
		pipe.Del(ctx, indexKey(id))
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("failed to remove jobs of ticket %d: %w", id, err)
		}
	}
	return nil
}

// Due claims up to limit jobs whose time has come. A job is returned to
// exactly one caller: whoever removes it from the set owns it.
func (q *Queue) Due(ctx context.Context, now time.Time, limit int64) ([]Job, error) {
	members, err := q.Client.ZRangeByScore(ctx, delayedKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: limit,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read due jobs: %w", err)
	}

	var claimed []Job
	for _, m := range members {
		removed, err := q.Client.ZRem(ctx, delayedKey, m).Result()
		if err != nil {
			return claimed, fmt.Errorf("failed to claim job: %w", err)
		}
		if removed == 0 {
			continue
		}
		var job Job
		if err := json.Unmarshal([]byte(m), &job); err != nil {
			q.Logger.Error("JOBS", fmt.Sprintf("Dropping malformed job %q: %v", m, err))
			continue
		}
		q.Client.SRem(ctx, indexKey(job.TicketID), m)
		claimed = append(claimed, job)
	}
	return claimed, nil
}

func (q *Queue) Pending(ctx context.Context) (int64, error) {
	return q.Client.ZCard(ctx, delayedKey).Result()
}
