package repository

import (
	"context"
	"fmt"
	"time"

	"av-rental/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

type paymentEventRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewPaymentEventRepository creates a new PostgreSQL-backed webhook audit log.
func NewPaymentEventRepository(pool *pgxpool.Pool, logger zerolog.Logger) PaymentEventRepository {
	return &paymentEventRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "payment_event").Logger(),
	}
}

func (r *paymentEventRepository) Create(ctx context.Context, event *model.PaymentEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO payment_events
			(id, source, event_type, payment_id, merchant_reference, payload, signature, verified, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.pool.Exec(ctx, query,
		event.ID, event.Source, event.EventType, event.PaymentID, event.MerchantReference,
		event.Payload, event.Signature, event.Verified, event.CreatedAt,
	)
	if err != nil {
		r.logger.Error().Err(err).
			Str("source", event.Source).
			Str("payment_id", event.PaymentID).
			Msg("failed to record payment event")
		return fmt.Errorf("failed to record payment event: %w", err)
	}

	return nil
}

func (r *paymentEventRepository) ListByPaymentID(ctx context.Context, paymentID string) ([]model.PaymentEvent, error) {
	query := `
		SELECT id, source, event_type, payment_id, merchant_reference, payload, signature, verified, created_at
		FROM payment_events
		WHERE payment_id = $1
		ORDER BY created_at, id
	`

	rows, err := r.pool.Query(ctx, query, paymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query payment events: %w", err)
	}
	defer rows.Close()

	events := []model.PaymentEvent{}
	for rows.Next() {
		var e model.PaymentEvent
		if err := rows.Scan(
			&e.ID, &e.Source, &e.EventType, &e.PaymentID, &e.MerchantReference,
			&e.Payload, &e.Signature, &e.Verified, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan payment event: %w", err)
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payment events: %w", err)
	}

	return events, nil
}
