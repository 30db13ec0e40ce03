package service

import (
	"context"
	"errors"
	"net/http"
	"time"

	"av-rental/internal/audit"
	"av-rental/internal/events"
	"av-rental/internal/model"
	"av-rental/internal/payment"
	"av-rental/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type paymentService struct {
	orderRepo repository.OrderRepository
	eventRepo repository.PaymentEventRepository
	gateways  *payment.Registry
	archiver  audit.Archiver
	publisher events.Publisher
	now       func() time.Time
	logger    zerolog.Logger
}

// NewPaymentService creates the webhook service. archiver may be nil.
func NewPaymentService(
	orderRepo repository.OrderRepository,
	eventRepo repository.PaymentEventRepository,
	gateways *payment.Registry,
	archiver audit.Archiver,
	publisher events.Publisher,
	logger zerolog.Logger,
) PaymentService {
	return &paymentService{
		orderRepo: orderRepo,
		eventRepo: eventRepo,
		gateways:  gateways,
		archiver:  archiver,
		publisher: publisher,
		now:       time.Now,
		logger:    logger.With().Str("service", "payment").Logger(),
	}
}

// unknownSource is the audit source of webhooks whose provider cannot be told.
const unknownSource = "unknown"

func (s *paymentService) HandleWebhook(ctx context.Context, provider string, header http.Header, body []byte) error {
	receivedAt := s.now().UTC()
	record := &model.PaymentEvent{
		ID:        uuid.New(),
		Source:    provider,
		EventType: "unknown",
		Payload:   string(body),
		CreatedAt: receivedAt,
	}

	var (
		gateway payment.Gateway
		err     error
	)
	if provider == "" {
		gateway, err = s.gateways.Detect(header)
		if err != nil {
			s.logger.Warn().Msg("webhook carries no known signature header")
			record.Source = unknownSource
			s.record(ctx, record)
			return model.ErrInvalidSignature
		}
	} else {
		gateway, err = s.gateways.Get(provider)
		if err != nil {
			s.logger.Warn().Str("provider", provider).Msg("webhook for unknown provider")
			s.record(ctx, record)
			return err
		}
	}
	record.Source = gateway.Name()

	sig, err := gateway.VerifySignature(header, body)
	record.Signature = sig
	if err != nil {
		s.logger.Warn().Err(err).Str("provider", gateway.Name()).Msg("webhook signature rejected")
		s.record(ctx, record)
		return model.ErrInvalidSignature
	}
	record.Verified = true

	ev, err := gateway.ParseEvent(body)
	if err != nil {
		s.logger.Warn().Err(err).Str("provider", gateway.Name()).Msg("webhook payload rejected")
		s.record(ctx, record)
		return model.ErrInvalidPayload
	}

	n := ev.Normalize()
	if n.EventType != "" {
		record.EventType = n.EventType
	}
	record.PaymentID = n.PaymentID
	record.MerchantReference = n.MerchantReference
	s.record(ctx, record)
	s.archive(ctx, record.ID, gateway.Name(), receivedAt, body)

	logger := s.logger.With().
		Str("provider", gateway.Name()).
		Str("event_type", n.EventType).
		Str("payment_id", n.PaymentID).
		Str("merchant_reference", n.MerchantReference).
		Logger()

	if !n.Mapped() {
		logger.Info().Str("provider_status", n.Describe()).Msg("webhook status not mapped, acknowledged")
		return nil
	}

	res, err := s.orderRepo.UpdateStatus(ctx, n.StatusUpdate())
	switch {
	case errors.Is(err, model.ErrTerminalStatusConflict):
		logger.Warn().Str("status", n.Status.String()).Msg("webhook conflicts with final order status, ignored")
		return nil
	case err != nil:
		// Acknowledge anyway; the reconciler will pick the order up.
		logger.Error().Err(err).Msg("failed to apply webhook status")
		return nil
	case res == nil:
		logger.Warn().Str("status", n.Status.String()).Msg("webhook matches no order")
		return nil
	}

	logger.Info().
		Str("order_id", res.Order.ID.String()).
		Str("status", res.Order.Status.String()).
		Bool("changed", res.Changed).
		Msg("webhook applied")

	if res.Changed {
		publish(ctx, s.publisher, s.logger, events.TypeOrderStatusChanged, res.Order, s.now())
	}
	return nil
}

func (s *paymentService) record(ctx context.Context, ev *model.PaymentEvent) {
	if err := s.eventRepo.Create(ctx, ev); err != nil {
		s.logger.Error().Err(err).
			Str("event_id", ev.ID.String()).
			Str("provider", ev.Source).
			Msg("failed to record payment event")
	}
}

func (s *paymentService) archive(ctx context.Context, id uuid.UUID, provider string, at time.Time, body []byte) {
	if s.archiver == nil {
		return
	}
	key, err := s.archiver.Archive(ctx, audit.Record{EventID: id, Provider: provider, ReceivedAt: at, Payload: body})
	if err != nil {
		s.logger.Warn().Err(err).Str("event_id", id.String()).Msg("failed to archive webhook payload")
		return
	}
	s.logger.Debug().Str("event_id", id.String()).Str("key", key).Msg("webhook payload archived")
}
