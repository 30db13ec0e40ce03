package repository

import (
	"context"
	"time"

	"av-rental/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ProductRepository defines the interface for product data access operations.
type ProductRepository interface {
	// GetAll retrieves products with pagination support. An empty category
	// matches every product.
	GetAll(ctx context.Context, category string, limit, offset int) ([]model.Product, error)

	// GetByID retrieves a single product by its ID. Returns nil when absent.
	GetByID(ctx context.Context, id string) (*model.Product, error)
}

// CartRepository defines data access for a user's cart lines.
type CartRepository interface {
	// ListByUser returns the user's cart lines joined with product name and price.
	ListByUser(ctx context.Context, userID string) ([]model.CartLine, error)

	// ListByUserForUpdate is ListByUser inside tx, locking the cart rows.
	ListByUserForUpdate(ctx context.Context, tx pgx.Tx, userID string) ([]model.CartLine, error)

	// Add inserts a new cart line.
	Add(ctx context.Context, line *model.CartLine) error

	// UpdateQuantity changes the quantity of one of the user's lines.
	// Returns false when the line does not exist or belongs to someone else.
	UpdateQuantity(ctx context.Context, userID string, id uuid.UUID, quantity int) (bool, error)

	// Delete removes one of the user's lines.
	Delete(ctx context.Context, userID string, id uuid.UUID) (bool, error)

	// DeleteByIDs removes the given lines of the user inside tx.
	DeleteByIDs(ctx context.Context, tx pgx.Tx, userID string, ids []uuid.UUID) (int64, error)
}

// OrderRepository defines the interface for order data access operations.
type OrderRepository interface {
	// BeginTx starts a new database transaction.
	BeginTx(ctx context.Context) (pgx.Tx, error)

	// UpsertPending inserts a pending order keyed by session id, or refreshes
	// the existing row for that session. The stored id, merchant reference,
	// status and timestamps are written back into order.
	UpsertPending(ctx context.Context, order *model.Order) error

	// GetByID retrieves an order by its ID. Returns nil when absent.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error)

	// GetBySessionID retrieves an order by provider session id. Returns nil when absent.
	GetBySessionID(ctx context.Context, sessionID string) (*model.Order, error)

	// ListByUser returns the user's orders, newest first.
	ListByUser(ctx context.Context, userID string) ([]model.Order, error)

	// ListPendingBefore returns pending orders created before the cutoff, oldest first.
	ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]model.Order, error)

	// UpdateStatus applies a compare-and-set status transition. Returns
	// (nil, nil) when no order matches, and model.ErrTerminalStatusConflict
	// when the order already holds a different terminal status.
	UpdateStatus(ctx context.Context, upd model.StatusUpdate) (*model.StatusUpdateResult, error)

	// LockByID selects the order row FOR UPDATE inside tx. Returns nil when absent.
	LockByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Order, error)

	// GetLines retrieves the lines of an order.
	GetLines(ctx context.Context, orderID uuid.UUID) ([]model.OrderLine, error)

	// GetLinesTx retrieves the lines of an order inside tx.
	GetLinesTx(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) ([]model.OrderLine, error)

	// CreateLines inserts order lines within the provided transaction.
	CreateLines(ctx context.Context, tx pgx.Tx, lines []model.OrderLine) error

	// Delete removes an order and its lines. Returns false when absent.
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}

// PaymentEventRepository is the append-only webhook audit log.
type PaymentEventRepository interface {
	// Create appends one event.
	Create(ctx context.Context, event *model.PaymentEvent) error

	// ListByPaymentID returns events for a provider payment id, oldest first.
	ListByPaymentID(ctx context.Context, paymentID string) ([]model.PaymentEvent, error)
}
