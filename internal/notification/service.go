package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"busticket/internal/apperr"
	"busticket/internal/logger"
	"busticket/internal/models"
	"busticket/internal/sse"
)

type DBLayer interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
	ListByUser(ctx context.Context, userID int64) ([]models.Notification, error)
	MarkAsRead(ctx context.Context, id, userID int64) (bool, error)
	MarkAllAsRead(ctx context.Context, userID int64) (int64, error)
	CountUnread(ctx context.Context, userID int64) (int, error)
}

type Service struct {
	DB     DBLayer
	Hub    *sse.Hub
	Logger *logger.Logger
	now    func() time.Time
}

func NewService(db DBLayer, hub *sse.Hub, log *logger.Logger) *Service {
	return &Service{DB: db, Hub: hub, Logger: log, now: time.Now}
}

// Create stores a notification and pushes it to the user's open streams.
// An empty type means SYSTEM.
func (s *Service) Create(ctx context.Context, userID int64, title, message, typ string) (*models.Notification, error) {
	if userID <= 0 {
		return nil, apperr.ValidationError{Field: "userId", Msg: "userId is required"}
	}
	if strings.TrimSpace(title) == "" {
		return nil, apperr.ValidationError{Field: "title", Msg: "title is required"}
	}
	if typ == "" {
		typ = models.NotificationSystem
	}
	now := s.now().UTC()
	n := &models.Notification{
		UserID:    userID,
		Title:     title,
		Message:   message,
		Type:      typ,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.DB.CreateNotification(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}
	if s.Hub != nil {
		s.Hub.Publish(*n)
	}
	s.Logger.Debug("NOTIFICATION", fmt.Sprintf("%s notification %d for user %d", typ, n.ID, userID))
	return n, nil
}

func (s *Service) List(ctx context.Context, userID int64) ([]models.Notification, error) {
	list, err := s.DB.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return list, nil
}

func (s *Service) MarkAsRead(ctx context.Context, id, userID int64) error {
	ok, err := s.DB.MarkAsRead(ctx, id, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notification %d: %w", id, err)
	}
	if !ok {
		return apperr.NotFound("notification")
	}
	return nil
}

func (s *Service) MarkAllAsRead(ctx context.Context, userID int64) (int64, error) {
	return s.DB.MarkAllAsRead(ctx, userID)
}

func (s *Service) UnreadCount(ctx context.Context, userID int64) (int, error) {
	return s.DB.CountUnread(ctx, userID)
}
