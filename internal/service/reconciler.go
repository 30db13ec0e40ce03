package service

import (
	"context"
	"errors"
	"time"

	"av-rental/internal/events"
	"av-rental/internal/model"
	"av-rental/internal/payment"
	"av-rental/internal/repository"

	"github.com/rs/zerolog"
)

// ReconcileReport summarizes one reconcile pass.
type ReconcileReport struct {
	Checked  int `json:"checked"`
	Updated  int `json:"updated"`
	Unmapped int `json:"unmapped"`
	Failed   int `json:"failed"`
}

// PendingReconciler settles pending orders whose webhook never arrived by
// polling the provider. It does not materialize lines; that still happens on
// the owner's confirm.
type PendingReconciler struct {
	orderRepo repository.OrderRepository
	gateways  *payment.Registry
	publisher events.Publisher
	grace     time.Duration
	batch     int
	now       func() time.Time
	logger    zerolog.Logger
}

// NewPendingReconciler creates a reconciler for orders pending longer than grace.
func NewPendingReconciler(
	orderRepo repository.OrderRepository,
	gateways *payment.Registry,
	publisher events.Publisher,
	grace time.Duration,
	logger zerolog.Logger,
) *PendingReconciler {
	return &PendingReconciler{
		orderRepo: orderRepo,
		gateways:  gateways,
		publisher: publisher,
		grace:     grace,
		batch:     100,
		now:       time.Now,
		logger:    logger.With().Str("component", "reconciler").Logger(),
	}
}

// Run reconciles every interval until ctx is done.
func (r *PendingReconciler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info().Dur("interval", interval).Dur("grace", r.grace).Msg("reconciler started")
	for {
		select {
		case <-ticker.C:
			if _, err := r.ReconcileOnce(ctx); err != nil && ctx.Err() == nil {
				r.logger.Error().Err(err).Msg("reconcile pass failed")
			}
		case <-ctx.Done():
			r.logger.Info().Msg("reconciler stopped")
			return
		}
	}
}

// ReconcileOnce polls the provider for each stale pending order and applies
// mapped statuses. Per-order failures are counted, not returned.
func (r *PendingReconciler) ReconcileOnce(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport

	cutoff := r.now().Add(-r.grace)
	orders, err := r.orderRepo.ListPendingBefore(ctx, cutoff, r.batch)
	if err != nil {
		return report, err
	}

	for i := range orders {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		report.Checked++

		order := &orders[i]
		logger := r.logger.With().
			Str("order_id", order.ID.String()).
			Str("provider", order.Provider).
			Str("session_id", order.SessionID).
			Logger()

		gateway, err := r.gateways.Get(order.Provider)
		if err != nil {
			logger.Warn().Msg("order provider not configured, skipped")
			report.Failed++
			continue
		}

		n, err := gateway.FetchStatus(ctx, order.SessionID)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to fetch payment status")
			report.Failed++
			continue
		}
		if !n.Mapped() {
			logger.Debug().Str("provider_status", n.Describe()).Msg("still pending at provider")
			report.Unmapped++
			continue
		}

		upd := n.StatusUpdate()
		upd.SessionID = order.SessionID
		if upd.MerchantReference == "" {
			upd.MerchantReference = order.MerchantReference
		}

		res, err := r.orderRepo.UpdateStatus(ctx, upd)
		switch {
		case errors.Is(err, model.ErrTerminalStatusConflict):
			logger.Warn().Str("status", n.Status.String()).Msg("order settled concurrently with a different status")
			continue
		case err != nil:
			logger.Error().Err(err).Msg("failed to update order status")
			report.Failed++
			continue
		case res == nil:
			continue
		}

		if res.Changed {
			report.Updated++
			logger.Info().Str("status", res.Order.Status.String()).Msg("pending order reconciled")
			publish(ctx, r.publisher, r.logger, events.TypeOrderStatusChanged, res.Order, r.now())
		}
	}

	r.logger.Info().
		Int("checked", report.Checked).
		Int("updated", report.Updated).
		Int("unmapped", report.Unmapped).
		Int("failed", report.Failed).
		Msg("reconcile pass finished")
	return report, nil
}
