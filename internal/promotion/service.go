package promotion

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"busticket/internal/apperr"
	"busticket/internal/cache"
	"busticket/internal/logger"
	"busticket/internal/models"
	"busticket/internal/utils"
)

const activeCacheKey = "promotions:active"

type DBLayer interface {
	CreatePromotion(ctx context.Context, p *models.Promotion) error
	GetPromotion(ctx context.Context, id int64) (*models.Promotion, error)
	GetPromotionByCode(ctx context.Context, code string) (*models.Promotion, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	ListPromotions(ctx context.Context) ([]models.Promotion, error)
	ListActive(ctx context.Context, now time.Time) ([]models.Promotion, error)
	UpdatePromotion(ctx context.Context, p *models.Promotion) error
	IncrementUsage(ctx context.Context, id int64) error
	DeletePromotion(ctx context.Context, id int64) error
}

type Service struct {
	DB       DBLayer
	Cache    *cache.RedisCache
	CacheTTL time.Duration
	Logger   *logger.Logger
	now      func() time.Time
}

func NewService(db DBLayer, c *cache.RedisCache, log *logger.Logger) *Service {
	return &Service{DB: db, Cache: c, CacheTTL: time.Minute, Logger: log, now: time.Now}
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func validate(p *models.Promotion) error {
	switch {
	case p.DiscountType != models.DiscountFixed && p.DiscountType != models.DiscountPercentage:
		return apperr.ValidationError{Field: "discountType", Msg: "Loại giảm giá không hợp lệ"}
	case p.DiscountValue <= 0:
		return apperr.ValidationError{Field: "discountValue", Msg: "Giá trị giảm phải lớn hơn 0"}
	case p.DiscountType == models.DiscountPercentage && p.DiscountValue > 100:
		return apperr.ValidationError{Field: "discountValue", Msg: "Phần trăm giảm không được vượt quá 100"}
	case p.StartDate.IsZero() || p.EndDate.IsZero():
		return apperr.ValidationError{Field: "startDate", Msg: "Thời gian áp dụng là bắt buộc"}
	case p.EndDate.Before(p.StartDate):
		return apperr.ValidationError{Field: "endDate", Msg: "Ngày kết thúc phải sau ngày bắt đầu"}
	case p.MinOrderValue < 0 || p.MaxDiscount < 0 || p.UsageLimit < 0:
		return apperr.Invalid("Giá trị khuyến mãi không được âm")
	}
	return nil
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.Cache.Delete(ctx, activeCacheKey); err != nil {
		s.Logger.Warn("PROMOTION", fmt.Sprintf("Failed to invalidate active promotions cache: %v", err))
	}
}

func (s *Service) Create(ctx context.Context, p models.Promotion) (*models.Promotion, error) {
	p.Code = normalizeCode(p.Code)
	if p.Code == "" {
		return nil, apperr.ValidationError{Field: "code", Msg: "Mã khuyến mãi không được để trống"}
	}
	if err := validate(&p); err != nil {
		return nil, err
	}
	exists, err := s.DB.CodeExists(ctx, p.Code)
	if err != nil {
		return nil, fmt.Errorf("failed to check promotion code: %w", err)
	}
	if exists {
		return nil, apperr.Invalid("Mã khuyến mãi đã tồn tại")
	}

	now := s.now().UTC()
	p.ID, p.UsedCount, p.CreatedAt, p.UpdatedAt = 0, 0, now, now
	p.StartDate, p.EndDate = p.StartDate.UTC(), p.EndDate.UTC()
	if err := s.DB.CreatePromotion(ctx, &p); err != nil {
		return nil, fmt.Errorf("failed to create promotion: %w", err)
	}
	s.invalidate(ctx)
	s.Logger.Info("PROMOTION", fmt.Sprintf("Promotion %s created", p.Code))
	return &p, nil
}

func (s *Service) ListAdmin(ctx context.Context) ([]models.Promotion, error) {
	return s.DB.ListPromotions(ctx)
}

// FindActive is cached briefly; writes invalidate it.
func (s *Service) FindActive(ctx context.Context) ([]models.Promotion, error) {
	return cache.Remember(ctx, s.Cache, activeCacheKey, s.CacheTTL, func() ([]models.Promotion, error) {
		promos, err := s.DB.ListActive(ctx, s.now().UTC())
		if err != nil {
			return nil, fmt.Errorf("failed to list active promotions: %w", err)
		}
		if promos == nil {
			promos = []models.Promotion{}
		}
		return promos, nil
	})
}

func (s *Service) Get(ctx context.Context, id int64) (*models.Promotion, error) {
	p, err := s.DB.GetPromotion(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFoundError{Resource: "promotion", Err: err}
		}
		return nil, err
	}
	return p, nil
}

func (s *Service) Update(ctx context.Context, id int64, upd models.PromotionUpdate) (*models.Promotion, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.Description != nil {
		p.Description = *upd.Description
	}
	if upd.DiscountType != nil {
		p.DiscountType = *upd.DiscountType
	}
	if upd.DiscountValue != nil {
		p.DiscountValue = *upd.DiscountValue
	}
	if upd.MinOrderValue != nil {
		p.MinOrderValue = *upd.MinOrderValue
	}
	if upd.MaxDiscount != nil {
		p.MaxDiscount = *upd.MaxDiscount
	}
	if upd.StartDate != nil {
		p.StartDate = upd.StartDate.UTC()
	}
	if upd.EndDate != nil {
		p.EndDate = upd.EndDate.UTC()
	}
	if upd.UsageLimit != nil {
		p.UsageLimit = *upd.UsageLimit
	}
	if upd.IsActive != nil {
		p.IsActive = *upd.IsActive
	}
	if err := validate(p); err != nil {
		return nil, err
	}
	p.UpdatedAt = s.now().UTC()
	if err := s.DB.UpdatePromotion(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to update promotion %d: %w", id, err)
	}
	s.invalidate(ctx)
	return p, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.DB.DeletePromotion(ctx, id); err != nil {
		return fmt.Errorf("failed to delete promotion %d: %w", id, err)
	}
	s.invalidate(ctx)
	return nil
}

// Apply validates code against orderValue and computes the discount.
func (s *Service) Apply(ctx context.Context, code string, orderValue float64) (*models.ApplyPromotionResult, error) {
	p, err := s.DB.GetPromotionByCode(ctx, normalizeCode(code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.Invalid("Mã khuyến mãi không hợp lệ")
		}
		return nil, fmt.Errorf("failed to load promotion: %w", err)
	}
	if !p.IsActive {
		return nil, apperr.Invalid("Mã khuyến mãi đã bị vô hiệu hóa")
	}
	now := s.now()
	if now.Before(p.StartDate) || now.After(p.EndDate) {
		return nil, apperr.Invalid("Mã khuyến mãi đã hết hạn hoặc chưa bắt đầu")
	}
	if p.UsageLimit > 0 && p.UsedCount >= p.UsageLimit {
		return nil, apperr.Invalid("Mã khuyến mãi đã hết lượt sử dụng")
	}
	if orderValue < p.MinOrderValue {
		return nil, apperr.Invalidf("Đơn hàng tối thiểu để áp dụng là %s", utils.FormatVND(p.MinOrderValue))
	}

	discount := Discount(p, orderValue)
	return &models.ApplyPromotionResult{
		Success:        true,
		DiscountAmount: discount,
		FinalPrice:     orderValue - discount,
		Promotion:      p,
	}, nil
}

// Discount computes the amount p takes off orderValue, never more than the
// order itself.
func Discount(p *models.Promotion, orderValue float64) float64 {
	var discount float64
	if p.DiscountType == models.DiscountFixed {
		discount = p.DiscountValue
	} else {
		discount = orderValue * p.DiscountValue / 100
		if p.MaxDiscount > 0 && discount > p.MaxDiscount {
			discount = p.MaxDiscount
		}
	}
	if discount > orderValue {
		discount = orderValue
	}
	return discount
}

func (s *Service) IncrementUsage(ctx context.Context, id int64) error {
	if err := s.DB.IncrementUsage(ctx, id); err != nil {
		return fmt.Errorf("failed to increment promotion %d usage: %w", id, err)
	}
	s.invalidate(ctx)
	return nil
}
