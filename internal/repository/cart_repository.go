package repository

import (
	"context"
	"fmt"

	"av-rental/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

type cartRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewCartRepository creates a new PostgreSQL-backed cart repository.
func NewCartRepository(pool *pgxpool.Pool, logger zerolog.Logger) CartRepository {
	return &cartRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "cart").Logger(),
	}
}

const cartSelect = `
	SELECT c.id, c.user_id, c.product_id, c.quantity, c.start_date, c.end_date, c.created_at,
	       p.name, p.price
	FROM cart_items c
	JOIN products p ON p.id = c.product_id
	WHERE c.user_id = $1
	ORDER BY c.created_at, c.id
`

func (r *cartRepository) ListByUser(ctx context.Context, userID string) ([]model.CartLine, error) {
	return r.list(ctx, r.pool, cartSelect, userID)
}

func (r *cartRepository) ListByUserForUpdate(ctx context.Context, tx pgx.Tx, userID string) ([]model.CartLine, error) {
	return r.list(ctx, tx, cartSelect+` FOR UPDATE OF c`, userID)
}

func (r *cartRepository) list(ctx context.Context, q querier, query, userID string) ([]model.CartLine, error) {
	rows, err := q.Query(ctx, query, userID)
	if err != nil {
		r.logger.Error().Err(err).Str("user_id", userID).Msg("failed to query cart")
		return nil, fmt.Errorf("failed to query cart: %w", err)
	}
	defer rows.Close()

	lines := []model.CartLine{}
	for rows.Next() {
		var l model.CartLine
		err := rows.Scan(
			&l.ID, &l.UserID, &l.ProductID, &l.Quantity, &l.StartDate, &l.EndDate, &l.CreatedAt,
			&l.ProductName, &l.UnitPrice,
		)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan cart row")
			return nil, fmt.Errorf("failed to scan cart line: %w", err)
		}
		lines = append(lines, l)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating cart rows")
		return nil, fmt.Errorf("error iterating cart lines: %w", err)
	}

	return lines, nil
}

func (r *cartRepository) Add(ctx context.Context, line *model.CartLine) error {
	if line.ID == uuid.Nil {
		line.ID = uuid.New()
	}

	query := `
		INSERT INTO cart_items (id, user_id, product_id, quantity, start_date, end_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`

	err := r.pool.QueryRow(ctx, query,
		line.ID, line.UserID, line.ProductID, line.Quantity, line.StartDate, line.EndDate,
	).Scan(&line.CreatedAt)
	if err != nil {
		r.logger.Error().Err(err).
			Str("user_id", line.UserID).
			Str("product_id", line.ProductID).
			Msg("failed to add cart line")
		return fmt.Errorf("failed to add cart line: %w", err)
	}

	r.logger.Debug().Str("cart_line_id", line.ID.String()).Msg("cart line added")
	return nil
}

func (r *cartRepository) UpdateQuantity(ctx context.Context, userID string, id uuid.UUID, quantity int) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE cart_items SET quantity = $3 WHERE id = $1 AND user_id = $2`,
		id, userID, quantity,
	)
	if err != nil {
		r.logger.Error().Err(err).Str("cart_line_id", id.String()).Msg("failed to update cart line")
		return false, fmt.Errorf("failed to update cart line: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *cartRepository) Delete(ctx context.Context, userID string, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM cart_items WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		r.logger.Error().Err(err).Str("cart_line_id", id.String()).Msg("failed to delete cart line")
		return false, fmt.Errorf("failed to delete cart line: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *cartRepository) DeleteByIDs(ctx context.Context, tx pgx.Tx, userID string, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	tag, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1 AND id = ANY($2)`, userID, ids)
	if err != nil {
		r.logger.Error().Err(err).Str("user_id", userID).Int("count", len(ids)).Msg("failed to clear cart lines")
		return 0, fmt.Errorf("failed to clear cart lines: %w", err)
	}

	r.logger.Debug().
		Str("user_id", userID).
		Int64("deleted", tag.RowsAffected()).
		Msg("cart lines cleared")

	return tag.RowsAffected(), nil
}
