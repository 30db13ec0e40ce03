package service

import (
	"context"
	"fmt"
	"time"

	"av-rental/internal/model"
	"av-rental/internal/pricing"
	"av-rental/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type cartService struct {
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
	currency    string
	now         func() time.Time
	logger      zerolog.Logger
}

// NewCartService creates a new cart service. currency labels the totals preview.
func NewCartService(cartRepo repository.CartRepository, productRepo repository.ProductRepository, currency string, logger zerolog.Logger) CartService {
	return &cartService{
		cartRepo:    cartRepo,
		productRepo: productRepo,
		currency:    currency,
		now:         time.Now,
		logger:      logger.With().Str("service", "cart").Logger(),
	}
}

func (s *cartService) List(ctx context.Context, id *model.Identity) (*model.CartResponse, error) {
	if id == nil {
		return nil, model.ErrUnauthenticated
	}

	lines, err := s.cartRepo.ListByUser(ctx, id.UserID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", id.UserID).Msg("failed to list cart")
		return nil, fmt.Errorf("failed to list cart: %w", err)
	}

	resp := &model.CartResponse{Lines: lines}
	if lines == nil {
		resp.Lines = []model.CartLine{}
	}

	// The preview is only meaningful when the cart could be checked out as is.
	if start, end, ok := sharedRange(lines); ok {
		resp.Totals = pricing.Calculate(pricing.FromCart(lines), start, end).Model(s.currency)
	}

	return resp, nil
}

func (s *cartService) Add(ctx context.Context, id *model.Identity, req *model.AddCartItemRequest) (*model.CartLine, error) {
	if id == nil {
		return nil, model.ErrUnauthenticated
	}
	if err := validate.Struct(req); err != nil {
		return nil, validationError(err)
	}
	if req.StartDate.IsZero() || req.EndDate.IsZero() {
		return nil, model.NewValidationError("startDate and endDate are required")
	}
	if req.EndDate.Before(req.StartDate.Time) {
		return nil, model.ErrInvalidDateRange
	}

	product, err := s.productRepo.GetByID(ctx, req.ProductID)
	if err != nil {
		s.logger.Error().Err(err).Str("product_id", req.ProductID).Msg("failed to get product")
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	if product == nil {
		return nil, model.ErrProductNotFound
	}

	line := &model.CartLine{
		ID:          uuid.New(),
		UserID:      id.UserID,
		ProductID:   product.ID,
		Quantity:    req.Quantity,
		StartDate:   req.StartDate.Time,
		EndDate:     req.EndDate.Time,
		CreatedAt:   s.now().UTC(),
		ProductName: product.Name,
		UnitPrice:   product.Price,
	}

	if err := s.cartRepo.Add(ctx, line); err != nil {
		s.logger.Error().Err(err).Str("user_id", id.UserID).Str("product_id", product.ID).Msg("failed to add cart line")
		return nil, fmt.Errorf("failed to add cart line: %w", err)
	}

	s.logger.Info().
		Str("user_id", id.UserID).
		Str("line_id", line.ID.String()).
		Str("product_id", product.ID).
		Int("quantity", line.Quantity).
		Msg("cart line added")

	return line, nil
}

func (s *cartService) UpdateQuantity(ctx context.Context, id *model.Identity, lineID uuid.UUID, req *model.UpdateCartItemRequest) error {
	if id == nil {
		return model.ErrUnauthenticated
	}
	if err := validate.Struct(req); err != nil {
		return validationError(err)
	}

	ok, err := s.cartRepo.UpdateQuantity(ctx, id.UserID, lineID, req.Quantity)
	if err != nil {
		s.logger.Error().Err(err).Str("line_id", lineID.String()).Msg("failed to update cart line")
		return fmt.Errorf("failed to update cart line: %w", err)
	}
	if !ok {
		return model.ErrCartLineNotFound
	}
	return nil
}

func (s *cartService) Remove(ctx context.Context, id *model.Identity, lineID uuid.UUID) error {
	if id == nil {
		return model.ErrUnauthenticated
	}

	ok, err := s.cartRepo.Delete(ctx, id.UserID, lineID)
	if err != nil {
		s.logger.Error().Err(err).Str("line_id", lineID.String()).Msg("failed to delete cart line")
		return fmt.Errorf("failed to delete cart line: %w", err)
	}
	if !ok {
		return model.ErrCartLineNotFound
	}
	return nil
}

// sharedRange returns the rental range common to all lines. ok is false for
// an empty cart or when lines disagree.
func sharedRange(lines []model.CartLine) (start, end time.Time, ok bool) {
	if len(lines) == 0 {
		return time.Time{}, time.Time{}, false
	}
	start, end = lines[0].StartDate, lines[0].EndDate
	for _, l := range lines[1:] {
		if !l.SameRange(start, end) {
			return time.Time{}, time.Time{}, false
		}
	}
	return start, end, true
}
