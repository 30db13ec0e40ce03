package service

import (
	"context"
	"fmt"

	"av-rental/internal/model"
	"av-rental/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// orderService implements OrderService.
type orderService struct {
	orderRepo repository.OrderRepository
	logger    zerolog.Logger
}

// NewOrderService creates a new order service.
func NewOrderService(orderRepo repository.OrderRepository, logger zerolog.Logger) OrderService {
	return &orderService{
		orderRepo: orderRepo,
		logger:    logger.With().Str("service", "order").Logger(),
	}
}

// List returns the caller's orders.
func (s *orderService) List(ctx context.Context, id *model.Identity) ([]model.Order, error) {
	if id == nil {
		return nil, model.ErrUnauthenticated
	}

	orders, err := s.orderRepo.ListByUser(ctx, id.UserID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", id.UserID).Msg("failed to list orders")
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	if orders == nil {
		orders = []model.Order{}
	}
	return orders, nil
}

// Get retrieves an order with its lines. Owners and admins only.
func (s *orderService) Get(ctx context.Context, id *model.Identity, orderID uuid.UUID) (*model.OrderResponse, error) {
	if id == nil {
		return nil, model.ErrUnauthenticated
	}

	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to get order")
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil {
		return nil, model.ErrOrderNotFound
	}
	if !id.CanAccess(order.UserID) {
		s.logger.Warn().
			Str("user_id", id.UserID).
			Str("order_id", orderID.String()).
			Msg("order access denied")
		return nil, model.ErrForbidden
	}

	lines, err := s.orderRepo.GetLines(ctx, orderID)
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to get order lines")
		return nil, fmt.Errorf("failed to get order lines: %w", err)
	}
	if lines == nil {
		lines = []model.OrderLine{}
	}

	return &model.OrderResponse{Order: *order, Lines: lines}, nil
}

// Delete removes an order. Admins only.
func (s *orderService) Delete(ctx context.Context, id *model.Identity, orderID uuid.UUID) error {
	if id == nil {
		return model.ErrUnauthenticated
	}
	if !id.IsAdmin {
		return model.ErrForbidden
	}

	ok, err := s.orderRepo.Delete(ctx, orderID)
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to delete order")
		return fmt.Errorf("failed to delete order: %w", err)
	}
	if !ok {
		return model.ErrOrderNotFound
	}

	s.logger.Info().
		Str("order_id", orderID.String()).
		Str("admin_id", id.UserID).
		Msg("order deleted")
	return nil
}
