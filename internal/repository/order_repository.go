package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"av-rental/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// orderRepository implements the OrderRepository interface using PostgreSQL.
type orderRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool *pgxpool.Pool, logger zerolog.Logger) OrderRepository {
	return &orderRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "order").Logger(),
	}
}

const orderColumns = `
	id, user_id, provider, session_id, merchant_reference, payment_id,
	start_date, end_date, delivery_mode, address, payment_method,
	total_amount, currency, status, customer_name, customer_email, customer_phone,
	created_at, updated_at
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*model.Order, error) {
	var o model.Order
	err := row.Scan(
		&o.ID, &o.UserID, &o.Provider, &o.SessionID, &o.MerchantReference, &o.PaymentID,
		&o.StartDate, &o.EndDate, &o.DeliveryMode, &o.Address, &o.PaymentMethod,
		&o.TotalAmount, &o.Currency, &o.Status, &o.CustomerName, &o.CustomerEmail, &o.CustomerPhone,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// BeginTx starts a new database transaction.
func (r *orderRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to begin transaction")
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

// UpsertPending inserts the order or refreshes the row that already holds its
// session id. Status, id and merchant reference of an existing row are kept.
func (r *orderRepository) UpsertPending(ctx context.Context, order *model.Order) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}

	query := `
		INSERT INTO orders (
			id, user_id, provider, session_id, merchant_reference,
			start_date, end_date, delivery_mode, address, payment_method,
			total_amount, currency, status, customer_name, customer_email, customer_phone
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 'pending', $13, $14, $15)
		ON CONFLICT (session_id) DO UPDATE SET
			start_date     = EXCLUDED.start_date,
			end_date       = EXCLUDED.end_date,
			delivery_mode  = EXCLUDED.delivery_mode,
			address        = EXCLUDED.address,
			payment_method = EXCLUDED.payment_method,
			total_amount   = EXCLUDED.total_amount,
			currency       = EXCLUDED.currency,
			customer_name  = EXCLUDED.customer_name,
			customer_email = EXCLUDED.customer_email,
			customer_phone = EXCLUDED.customer_phone,
			updated_at     = NOW()
		RETURNING id, merchant_reference, status, created_at, updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		order.ID, order.UserID, order.Provider, order.SessionID, order.MerchantReference,
		order.StartDate, order.EndDate, order.DeliveryMode, order.Address, order.PaymentMethod,
		order.TotalAmount, order.Currency, order.CustomerName, order.CustomerEmail, order.CustomerPhone,
	).Scan(&order.ID, &order.MerchantReference, &order.Status, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("session_id", order.SessionID).
			Str("merchant_reference", order.MerchantReference).
			Msg("failed to upsert order")
		return fmt.Errorf("failed to upsert order: %w", err)
	}

	r.logger.Debug().
		Str("order_id", order.ID.String()).
		Str("session_id", order.SessionID).
		Msg("order upserted successfully")

	return nil
}

func (r *orderRepository) getOne(ctx context.Context, q querier, query string, args ...any) (*model.Order, error) {
	order, err := scanOrder(q.QueryRow(ctx, query, args...))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return order, nil
}

// GetByID retrieves an order by its ID.
func (r *orderRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	order, err := r.getOne(ctx, r.pool, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to query order")
		return nil, fmt.Errorf("failed to query order: %w", err)
	}
	return order, nil
}

// GetBySessionID retrieves an order by its provider session id.
func (r *orderRepository) GetBySessionID(ctx context.Context, sessionID string) (*model.Order, error) {
	order, err := r.getOne(ctx, r.pool, `SELECT `+orderColumns+` FROM orders WHERE session_id = $1`, sessionID)
	if err != nil {
		r.logger.Error().Err(err).Str("session_id", sessionID).Msg("failed to query order")
		return nil, fmt.Errorf("failed to query order: %w", err)
	}
	return order, nil
}

func (r *orderRepository) list(ctx context.Context, query string, args ...any) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	orders := []model.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	return orders, nil
}

// ListByUser returns the user's orders, newest first.
func (r *orderRepository) ListByUser(ctx context.Context, userID string) ([]model.Order, error) {
	orders, err := r.list(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC, id`,
		userID,
	)
	if err != nil {
		r.logger.Error().Err(err).Str("user_id", userID).Msg("failed to list orders")
		return nil, err
	}
	return orders, nil
}

// ListPendingBefore returns pending orders created before cutoff, oldest first.
func (r *orderRepository) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]model.Order, error) {
	orders, err := r.list(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE status = 'pending' AND created_at < $1
		 ORDER BY created_at
		 LIMIT $2`,
		cutoff, limit,
	)
	if err != nil {
		r.logger.Error().Err(err).Time("cutoff", cutoff).Msg("failed to list pending orders")
		return nil, err
	}
	return orders, nil
}

// locate finds the row an update targets, locking it. Payment id wins over
// merchant reference, which wins over session id.
func (r *orderRepository) locate(ctx context.Context, tx pgx.Tx, upd model.StatusUpdate) (*model.Order, error) {
	keys := []struct {
		column string
		value  string
	}{
		{"payment_id", upd.PaymentID},
		{"merchant_reference", upd.MerchantReference},
		{"session_id", upd.SessionID},
	}

	for _, k := range keys {
		if k.value == "" {
			continue
		}
		order, err := r.getOne(ctx, tx,
			`SELECT `+orderColumns+` FROM orders WHERE `+k.column+` = $1 FOR UPDATE`, k.value)
		if err != nil {
			return nil, fmt.Errorf("failed to locate order by %s: %w", k.column, err)
		}
		if order != nil {
			return order, nil
		}
	}
	return nil, nil
}

// UpdateStatus moves an order out of pending at most once. Replaying the
// status the order already holds is a no-op.
func (r *orderRepository) UpdateStatus(ctx context.Context, upd model.StatusUpdate) (*model.StatusUpdateResult, error) {
	var result *model.StatusUpdateResult

	err := WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		current, err := r.locate(ctx, tx, upd)
		if err != nil || current == nil {
			return err
		}

		if current.Status == upd.Status {
			if upd.PaymentID != "" && current.PaymentID == nil {
				if _, err := tx.Exec(ctx,
					`UPDATE orders SET payment_id = $2, updated_at = NOW() WHERE id = $1`,
					current.ID, upd.PaymentID,
				); err != nil {
					return fmt.Errorf("failed to attach payment id: %w", err)
				}
				pid := upd.PaymentID
				current.PaymentID = &pid
			}
			result = &model.StatusUpdateResult{Order: current}
			return nil
		}

		if current.Status.IsTerminal() {
			result = &model.StatusUpdateResult{Order: current}
			return model.ErrTerminalStatusConflict
		}

		updated, err := scanOrder(tx.QueryRow(ctx, `
			UPDATE orders
			SET status = $2,
			    payment_id = COALESCE(NULLIF($3, ''), payment_id),
			    updated_at = NOW()
			WHERE id = $1 AND (status = 'pending' OR status = $2)
			RETURNING `+orderColumns,
			current.ID, upd.Status, upd.PaymentID,
		))
		if err != nil {
			return fmt.Errorf("failed to update order status: %w", err)
		}

		result = &model.StatusUpdateResult{Order: updated, Changed: true}
		return nil
	})

	if err != nil {
		if errors.Is(err, model.ErrTerminalStatusConflict) {
			r.logger.Warn().
				Str("order_id", result.Order.ID.String()).
				Str("current_status", result.Order.Status.String()).
				Str("requested_status", upd.Status.String()).
				Msg("rejected status change on final order")
			return result, err
		}
		r.logger.Error().Err(err).
			Str("payment_id", upd.PaymentID).
			Str("merchant_reference", upd.MerchantReference).
			Msg("failed to apply status update")
		return nil, err
	}

	if result != nil && result.Changed {
		r.logger.Info().
			Str("order_id", result.Order.ID.String()).
			Str("status", result.Order.Status.String()).
			Msg("order status updated")
	}

	return result, nil
}

// LockByID selects the order FOR UPDATE inside tx.
func (r *orderRepository) LockByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Order, error) {
	order, err := r.getOne(ctx, tx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to lock order")
		return nil, fmt.Errorf("failed to lock order: %w", err)
	}
	return order, nil
}

func (r *orderRepository) GetLines(ctx context.Context, orderID uuid.UUID) ([]model.OrderLine, error) {
	return r.getLines(ctx, r.pool, orderID)
}

func (r *orderRepository) GetLinesTx(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) ([]model.OrderLine, error) {
	return r.getLines(ctx, tx, orderID)
}

func (r *orderRepository) getLines(ctx context.Context, q querier, orderID uuid.UUID) ([]model.OrderLine, error) {
	query := `
		SELECT id, order_id, product_id, name, unit_price, quantity, created_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY created_at, id
	`

	rows, err := q.Query(ctx, query, orderID)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("order_id", orderID.String()).
			Msg("failed to query order items")
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	lines := []model.OrderLine{}
	for rows.Next() {
		var l model.OrderLine
		err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.Name, &l.UnitPrice, &l.Quantity, &l.CreatedAt)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan order item row")
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		lines = append(lines, l)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating order item rows")
		return nil, fmt.Errorf("error iterating order items: %w", err)
	}

	return lines, nil
}

// CreateLines inserts multiple order lines within the provided transaction.
func (r *orderRepository) CreateLines(ctx context.Context, tx pgx.Tx, lines []model.OrderLine) error {
	if len(lines) == 0 {
		return nil
	}

	query := `
		INSERT INTO order_items (id, order_id, product_id, name, unit_price, quantity, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	now := time.Now().UTC()
	batch := &pgx.Batch{}
	for _, l := range lines {
		if l.CreatedAt.IsZero() {
			l.CreatedAt = now
		}
		batch.Queue(query, l.ID, l.OrderID, l.ProductID, l.Name, l.UnitPrice, l.Quantity, l.CreatedAt)
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < len(lines); i++ {
		_, err := results.Exec()
		if err != nil {
			r.logger.Error().
				Err(err).
				Str("order_id", lines[i].OrderID.String()).
				Str("product_id", lines[i].ProductID).
				Msg("failed to create order item")
			return fmt.Errorf("failed to create order item: %w", err)
		}
	}

	r.logger.Debug().
		Int("count", len(lines)).
		Msg("order items created successfully")

	return nil
}

// Delete removes an order; its lines cascade.
func (r *orderRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		r.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to delete order")
		return false, fmt.Errorf("failed to delete order: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
