package review

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"busticket/internal/apperr"
	"busticket/internal/logger"
	"busticket/internal/models"
	"busticket/internal/utils"
)

type DBLayer interface {
	GetTicket(ctx context.Context, id int64) (*models.Ticket, error)
	ReviewExistsForTicket(ctx context.Context, ticketID int64) (bool, error)
	CreateReview(ctx context.Context, r *models.Review) error
	GetReview(ctx context.Context, id int64) (*models.Review, error)
	ListByBus(ctx context.Context, busID int64) ([]models.Review, error)
	ListByUser(ctx context.Context, userID int64) ([]models.Review, error)
	ListAll(ctx context.Context) ([]models.Review, error)
	Unreviewed(ctx context.Context, userID int64, now time.Time) ([]models.Ticket, error)
	Stats(ctx context.Context, busID int64) (float64, int, error)
	UpdateReview(ctx context.Context, r *models.Review, columns ...string) error
	DeleteReview(ctx context.Context, id int64) error
}

type Service struct {
	DB     DBLayer
	Logger *logger.Logger
	now    func() time.Time
}

func NewService(db DBLayer, log *logger.Logger) *Service {
	return &Service{DB: db, Logger: log, now: time.Now}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func validRating(r int) error {
	if r < 1 || r > 5 {
		return apperr.ValidationError{Field: "rating", Msg: "Đánh giá phải từ 1 đến 5 sao"}
	}
	return nil
}

// Create reviews the bus of a completed trip. One review per ticket.
func (s *Service) Create(ctx context.Context, userID int64, req models.CreateReviewRequest) (*models.Review, error) {
	ticket, err := s.DB.GetTicket(ctx, req.TicketID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFoundError{Resource: "ticket", Err: err}
		}
		return nil, fmt.Errorf("failed to load ticket %d: %w", req.TicketID, err)
	}
	if ticket.UserID != userID {
		return nil, apperr.Invalid("Bạn không thể đánh giá vé của người khác")
	}
	if ticket.Status != models.TicketPaid {
		return nil, apperr.Invalid("Chỉ có thể đánh giá vé đã thanh toán")
	}
	if ticket.Schedule == nil || ticket.Schedule.Status != models.ScheduleCompleted {
		return nil, apperr.Invalid("Chỉ có thể đánh giá sau khi chuyến đi hoàn thành")
	}
	exists, err := s.DB.ReviewExistsForTicket(ctx, ticket.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check review: %w", err)
	}
	if exists {
		return nil, apperr.Invalid("Vé này đã được đánh giá")
	}
	if err := validRating(req.Rating); err != nil {
		return nil, err
	}

	images := req.Images
	if images == nil {
		images = []string{}
	}
	now := s.now().UTC()
	r := &models.Review{
		UserID:    userID,
		BusID:     ticket.Schedule.BusID,
		TicketID:  ticket.ID,
		Rating:    req.Rating,
		Comment:   strings.TrimSpace(req.Comment),
		Images:    images,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.DB.CreateReview(ctx, r); err != nil {
		return nil, fmt.Errorf("failed to create review: %w", err)
	}
	s.Logger.Info("REVIEW", fmt.Sprintf("User %d rated bus %d with %d stars", userID, r.BusID, r.Rating))
	return r, nil
}

func (s *Service) ByBus(ctx context.Context, busID int64) ([]models.Review, error) {
	return s.DB.ListByBus(ctx, busID)
}

func (s *Service) ByUser(ctx context.Context, userID int64) ([]models.Review, error) {
	return s.DB.ListByUser(ctx, userID)
}

func (s *Service) All(ctx context.Context) ([]models.Review, error) {
	return s.DB.ListAll(ctx)
}

func (s *Service) Unreviewed(ctx context.Context, userID int64) ([]models.Ticket, error) {
	tickets, err := s.DB.Unreviewed(ctx, userID, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list unreviewed tickets: %w", err)
	}
	if tickets == nil {
		tickets = []models.Ticket{}
	}
	return tickets, nil
}

func (s *Service) Stats(ctx context.Context, busID int64) (*models.ReviewStats, error) {
	avg, count, err := s.DB.Stats(ctx, busID)
	if err != nil {
		return nil, fmt.Errorf("failed to compute review stats: %w", err)
	}
	return &models.ReviewStats{BusID: busID, Average: utils.Round1(avg), Count: count}, nil
}

func (s *Service) get(ctx context.Context, id int64) (*models.Review, error) {
	r, err := s.DB.GetReview(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFoundError{Resource: "review", Err: err}
		}
		return nil, err
	}
	return r, nil
}

func (s *Service) owned(ctx context.Context, id, userID int64) (*models.Review, error) {
	r, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.UserID != userID {
		return nil, apperr.Forbidden("Bạn không có quyền chỉnh sửa đánh giá này")
	}
	return r, nil
}

func (s *Service) Update(ctx context.Context, id, userID int64, upd models.UpdateReviewRequest) (*models.Review, error) {
	r, err := s.owned(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	var cols []string
	if upd.Rating != nil {
		if err := validRating(*upd.Rating); err != nil {
			return nil, err
		}
		r.Rating = *upd.Rating
		cols = append(cols, "rating")
	}
	if upd.Comment != nil {
		r.Comment = strings.TrimSpace(*upd.Comment)
		cols = append(cols, "comment")
	}
	if upd.Images != nil {
		r.Images = *upd.Images
		if r.Images == nil {
			r.Images = []string{}
		}
		cols = append(cols, "images")
	}
	r.UpdatedAt = s.now().UTC()
	if err := s.DB.UpdateReview(ctx, r, cols...); err != nil {
		return nil, fmt.Errorf("failed to update review %d: %w", id, err)
	}
	return r, nil
}

func (s *Service) Delete(ctx context.Context, id, userID int64) error {
	if _, err := s.owned(ctx, id, userID); err != nil {
		return err
	}
	if err := s.DB.DeleteReview(ctx, id); err != nil {
		return fmt.Errorf("failed to delete review %d: %w", id, err)
	}
	return nil
}

// Reply stores the operator's answer to a review.
func (s *Service) Reply(ctx context.Context, id int64, text string) (*models.Review, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperr.ValidationError{Field: "reply", Msg: "Nội dung phản hồi không được để trống"}
	}
	r, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	r.Reply, r.RepliedAt, r.UpdatedAt = text, &now, now
	if err := s.DB.UpdateReview(ctx, r, "reply", "replied_at"); err != nil {
		return nil, fmt.Errorf("failed to reply to review %d: %w", id, err)
	}
	return r, nil
}
