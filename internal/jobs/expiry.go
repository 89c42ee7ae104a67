package jobs

import (
	"context"
	"fmt"

	"busticket/internal/kafka"
	"busticket/internal/logger"
	"busticket/internal/models"
	"busticket/internal/seatlock"

	"github.com/go-redis/redis/v8"
)

// SeatExpiryListener turns expired seat locks into AVAILABLE seat events.
type SeatExpiryListener struct {
	Client    *redis.Client
	Publisher kafka.Publisher
	Topic     string
	Logger    *logger.Logger
}

// Run blocks until ctx is done. Redis must emit keyevent notifications
// for expired keys ("Ex").
func (l *SeatExpiryListener) Run(ctx context.Context) {
	channel := fmt.Sprintf("__keyevent@%d__:expired", l.Client.Options().DB)
	pubsub := l.Client.PSubscribe(ctx, channel)
	defer pubsub.Close()
	l.Logger.Info("REDIS", fmt.Sprintf("Subscribed to %s", channel))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			l.HandleExpired(msg.Payload)
		}
	}
}

// HandleExpired publishes a seat event when key is a seat lock.
func (l *SeatExpiryListener) HandleExpired(key string) bool {
	scheduleID, seatID, ok := seatlock.ParseKey(key)
	if !ok {
		return false
	}
	l.Logger.Info("SEAT_UNLOCK", fmt.Sprintf("Seat lock expired for schedule %d seat %d", scheduleID, seatID))
	event := models.NewSeatStatusEvent(scheduleID, []int64{seatID}, models.SeatStatusAvailable)
	if err := kafka.PublishJSON(l.Publisher, l.Topic, fmt.Sprint(scheduleID), event); err != nil {
		l.Logger.Error("SEAT_UNLOCK", fmt.Sprintf("Failed to publish seat unlock: %v", err))
	}
	return true
}
