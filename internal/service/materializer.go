package service

import (
	"context"
	"fmt"
	"time"

	"av-rental/internal/model"
	"av-rental/internal/pricing"
	"av-rental/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// materializer turns the cart of a paid order into immutable order lines.
type materializer struct {
	cartRepo  repository.CartRepository
	orderRepo repository.OrderRepository
	now       func() time.Time
	logger    zerolog.Logger
}

func newMaterializer(cartRepo repository.CartRepository, orderRepo repository.OrderRepository, logger zerolog.Logger) *materializer {
	return &materializer{
		cartRepo:  cartRepo,
		orderRepo: orderRepo,
		now:       time.Now,
		logger:    logger.With().Str("component", "materializer").Logger(),
	}
}

// materialize writes the order lines and removes the cart lines they came
// from, all in one transaction. It reports created=false when the order
// already had lines.
func (m *materializer) materialize(ctx context.Context, order *model.Order) (created bool, err error) {
	err = repository.WithTx(ctx, repository.TxStarterFunc(m.orderRepo.BeginTx), func(tx pgx.Tx) error {
		locked, err := m.orderRepo.LockByID(ctx, tx, order.ID)
		if err != nil {
			return fmt.Errorf("failed to lock order: %w", err)
		}
		if locked == nil {
			return model.ErrOrderNotFound
		}

		existing, err := m.orderRepo.GetLinesTx(ctx, tx, locked.ID)
		if err != nil {
			return fmt.Errorf("failed to read order lines: %w", err)
		}
		if len(existing) > 0 {
			m.logger.Debug().Str("order_id", locked.ID.String()).Int("lines", len(existing)).Msg("order already materialized")
			return nil
		}

		cart, err := m.cartRepo.ListByUserForUpdate(ctx, tx, locked.UserID)
		if err != nil {
			return fmt.Errorf("failed to read cart: %w", err)
		}
		if len(cart) == 0 {
			m.logger.Error().
				Str("order_id", locked.ID.String()).
				Str("user_id", locked.UserID).
				Msg("paid order has no cart lines to materialize")
			return model.ErrEmptyCart
		}
		for _, l := range cart {
			if !l.SameRange(locked.StartDate, locked.EndDate) {
				return model.ErrCartDateMismatch
			}
		}

		totals := pricing.Calculate(pricing.FromCart(cart), locked.StartDate, locked.EndDate)
		if totals.AmountMinorUnits != locked.TotalAmount {
			m.logger.Warn().
				Str("order_id", locked.ID.String()).
				Int64("charged", locked.TotalAmount).
				Int64("repriced", totals.AmountMinorUnits).
				Msg("cart total drifted from charged amount")
		}

		now := m.now().UTC()
		lines := make([]model.OrderLine, len(cart))
		ids := make([]uuid.UUID, len(cart))
		for i, l := range cart {
			lines[i] = model.OrderLine{
				ID:        uuid.New(),
				OrderID:   locked.ID,
				ProductID: l.ProductID,
				Name:      l.ProductName,
				UnitPrice: pricing.MinorUnits(l.UnitPrice),
				Quantity:  l.Quantity * totals.Days,
				CreatedAt: now,
			}
			ids[i] = l.ID
		}

		if err := m.orderRepo.CreateLines(ctx, tx, lines); err != nil {
			return fmt.Errorf("failed to create order lines: %w", err)
		}
		if _, err := m.cartRepo.DeleteByIDs(ctx, tx, locked.UserID, ids); err != nil {
			return fmt.Errorf("failed to clear cart: %w", err)
		}

		created = true
		m.logger.Info().
			Str("order_id", locked.ID.String()).
			Int("lines", len(lines)).
			Int("days", totals.Days).
			Msg("order materialized")
		return nil
	})
	if err != nil {
		created = false
		if model.KindOf(err) == model.KindInternal {
			m.logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("failed to materialize order")
		}
		return false, err
	}
	return created, nil
}
