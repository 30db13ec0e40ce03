package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"av-rental/internal/events"
	"av-rental/internal/idempotency"
	"av-rental/internal/model"
	"av-rental/internal/payment"
	"av-rental/internal/pricing"
	"av-rental/internal/repository"

	"github.com/rs/zerolog"
)

// CheckoutConfig carries the storefront settings used to build provider sessions.
type CheckoutConfig struct {
	SiteURL  string
	Locale   string
	Currency string
}

type checkoutService struct {
	cfg          CheckoutConfig
	cartRepo     repository.CartRepository
	orderRepo    repository.OrderRepository
	gateways     *payment.Registry
	idempotency  idempotency.Store
	materializer *materializer
	publisher    events.Publisher
	now          func() time.Time
	logger       zerolog.Logger
}

// NewCheckoutService creates a new checkout service.
func NewCheckoutService(
	cfg CheckoutConfig,
	cartRepo repository.CartRepository,
	orderRepo repository.OrderRepository,
	gateways *payment.Registry,
	store idempotency.Store,
	publisher events.Publisher,
	logger zerolog.Logger,
) CheckoutService {
	logger = logger.With().Str("service", "checkout").Logger()
	return &checkoutService{
		cfg:          cfg,
		cartRepo:     cartRepo,
		orderRepo:    orderRepo,
		gateways:     gateways,
		idempotency:  store,
		materializer: newMaterializer(cartRepo, orderRepo, logger),
		publisher:    publisher,
		now:          time.Now,
		logger:       logger,
	}
}

func (s *checkoutService) CreateSession(ctx context.Context, id *model.Identity, req *model.CheckoutRequest) (result *model.CheckoutSession, err error) {
	if id == nil {
		return nil, model.ErrUnauthenticated
	}
	if err := validate.Struct(req); err != nil {
		return nil, validationError(err)
	}

	gateway, err := s.gateways.Get(req.Provider)
	if err != nil {
		return nil, err
	}

	if req.IdempotencyKey != "" && s.idempotency != nil {
		key := idempotency.Key(id.UserID, req.IdempotencyKey)
		cached, berr := s.idempotency.Begin(ctx, key)
		switch {
		case errors.Is(berr, model.ErrCheckoutInProgress):
			return nil, berr
		case berr != nil:
			// Without the store we still serve the request, just without replay protection.
			s.logger.Warn().Err(berr).Str("user_id", id.UserID).Msg("idempotency store unavailable")
		case cached != nil:
			s.logger.Info().
				Str("user_id", id.UserID).
				Str("session_id", cached.SessionID).
				Msg("returning stored checkout session for idempotency key")
			return cached, nil
		default:
			defer func() {
				s.finishIdempotency(key, result, err)
			}()
		}
	}

	lines, err := s.cartRepo.ListByUser(ctx, id.UserID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", id.UserID).Msg("failed to read cart")
		return nil, fmt.Errorf("failed to read cart: %w", err)
	}
	if len(lines) == 0 {
		return nil, model.ErrEmptyCart
	}
	start, end, ok := sharedRange(lines)
	if !ok {
		s.logger.Warn().Str("user_id", id.UserID).Int("lines", len(lines)).Msg("cart lines disagree on rental dates")
		return nil, model.ErrInconsistentDateRange
	}

	totals := pricing.Calculate(pricing.FromCart(lines), start, end)
	ref := payment.NewMerchantReference(s.now())

	customer := model.Customer{Email: id.Email}
	if req.Customer != nil {
		customer.Name = req.Customer.Name
		customer.Phone = req.Customer.Phone
		if req.Customer.Email != "" {
			customer.Email = req.Customer.Email
		}
	}

	session, err := gateway.CreateSession(ctx, payment.SessionRequest{
		AmountMinorUnits:  totals.AmountMinorUnits,
		Currency:          s.cfg.Currency,
		MerchantReference: ref,
		Description: fmt.Sprintf("Equipment rental %s to %s (%d days)",
			start.Format(model.DateLayout), end.Format(model.DateLayout), totals.Days),
		CustomerEmail: customer.Email,
		Locale:        s.cfg.Locale,
		ReturnURL:     s.cfg.SiteURL + "/checkout/success?provider=" + gateway.Name(),
		CancelURL:     s.cfg.SiteURL + "/cart",
	})
	if err != nil {
		ev := s.logger.Error().Err(err).
			Str("provider", gateway.Name()).
			Str("merchant_reference", ref)
		var pe *model.ProviderError
		if errors.As(err, &pe) {
			ev = ev.Int("provider_status", pe.Status).Str("provider_payload", pe.Payload)
		}
		ev.Msg("failed to create payment session")
		return nil, err
	}

	order := &model.Order{
		UserID:            id.UserID,
		Provider:          gateway.Name(),
		SessionID:         session.ID,
		MerchantReference: ref,
		StartDate:         start,
		EndDate:           end,
		DeliveryMode:      req.Delivery,
		Address:           req.Address,
		PaymentMethod:     "card",
		TotalAmount:       totals.AmountMinorUnits,
		Currency:          s.cfg.Currency,
		Status:            model.OrderStatusPending,
		CustomerName:      customer.Name,
		CustomerEmail:     customer.Email,
		CustomerPhone:     customer.Phone,
	}
	if err := s.orderRepo.UpsertPending(ctx, order); err != nil {
		// The provider session exists but nothing local points at it.
		s.logger.Error().Err(err).
			Bool("orphan_session", true).
			Str("provider", gateway.Name()).
			Str("session_id", session.ID).
			Str("merchant_reference", ref).
			Msg("failed to record pending order")
		return nil, fmt.Errorf("failed to record pending order: %w", err)
	}

	s.logger.Info().
		Str("order_id", order.ID.String()).
		Str("user_id", id.UserID).
		Str("provider", gateway.Name()).
		Str("session_id", session.ID).
		Str("merchant_reference", order.MerchantReference).
		Int64("amount", order.TotalAmount).
		Msg("checkout session created")

	return &model.CheckoutSession{
		URL:               session.URL,
		SessionID:         session.ID,
		OrderID:           order.ID,
		MerchantReference: order.MerchantReference,
	}, nil
}

// finishIdempotency stores a successful result or frees the key for a retry.
// It runs on a fresh context so a cancelled request still releases its key.
func (s *checkoutService) finishIdempotency(key string, result *model.CheckoutSession, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err == nil && result != nil {
		if cerr := s.idempotency.Complete(ctx, key, result); cerr != nil {
			s.logger.Warn().Err(cerr).Str("session_id", result.SessionID).Msg("failed to store idempotent checkout result")
		}
		return
	}
	if rerr := s.idempotency.Release(ctx, key); rerr != nil {
		s.logger.Warn().Err(rerr).Msg("failed to release idempotency key")
	}
}

func (s *checkoutService) Confirm(ctx context.Context, id *model.Identity, req *model.ConfirmRequest) (*model.ConfirmResult, error) {
	if id == nil {
		return nil, model.ErrUnauthenticated
	}
	if req == nil || req.SessionID == "" {
		return nil, model.ErrMissingSessionID
	}

	order, err := s.orderRepo.GetBySessionID(ctx, req.SessionID)
	if err != nil {
		s.logger.Error().Err(err).Str("session_id", req.SessionID).Msg("failed to get order by session")
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil {
		return nil, model.ErrOrderNotFound
	}
	if !id.CanAccess(order.UserID) {
		s.logger.Warn().
			Str("user_id", id.UserID).
			Str("order_id", order.ID.String()).
			Msg("confirm attempted on another user's order")
		return nil, model.ErrForbidden
	}

	gateway, err := s.gateways.Get(order.Provider)
	if err != nil {
		s.logger.Error().Err(err).Str("provider", order.Provider).Str("order_id", order.ID.String()).Msg("order provider not configured")
		return nil, fmt.Errorf("provider %s not configured: %w", order.Provider, err)
	}

	n, err := gateway.FetchStatus(ctx, req.SessionID)
	if err != nil {
		ev := s.logger.Warn().Err(err).Str("provider", gateway.Name()).Str("session_id", req.SessionID)
		var pe *model.ProviderError
		if errors.As(err, &pe) {
			ev = ev.Int("provider_status", pe.Status).Str("provider_payload", pe.Payload)
		}
		ev.Msg("failed to fetch payment status")
		return nil, model.ErrPaymentUnverifiable
	}

	status := order.Status
	if n.Mapped() {
		upd := n.StatusUpdate()
		upd.SessionID = req.SessionID
		if upd.MerchantReference == "" {
			upd.MerchantReference = order.MerchantReference
		}

		res, err := s.orderRepo.UpdateStatus(ctx, upd)
		switch {
		case errors.Is(err, model.ErrTerminalStatusConflict):
			// The order already settled differently; report what is stored.
		case err != nil:
			s.logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("failed to update order status")
			return nil, fmt.Errorf("failed to update order status: %w", err)
		}
		if res != nil && res.Order != nil {
			order = res.Order
			status = order.Status
			if res.Changed {
				publish(ctx, s.publisher, s.logger, events.TypeOrderStatusChanged, order, s.now())
			}
		}
	} else {
		s.logger.Info().
			Str("order_id", order.ID.String()).
			Str("provider_status", n.Describe()).
			Msg("provider status not final yet")
	}

	if status == model.OrderStatusPaid {
		created, err := s.materializer.materialize(ctx, order)
		if err != nil {
			return nil, err
		}
		if created {
			publish(ctx, s.publisher, s.logger, events.TypeOrderPaid, order, s.now())
		}
	}

	return &model.ConfirmResult{
		OK:      status == model.OrderStatusPaid,
		OrderID: order.ID,
		Status:  status,
	}, nil
}
