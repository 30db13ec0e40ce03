package service

import (
	"context"
	"net/http"
	"strings"
	"time"

	"av-rental/internal/events"
	"av-rental/internal/model"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ProductService defines read access to the rental catalogue.
type ProductService interface {
	// GetAll retrieves products with pagination, optionally filtered by category.
	GetAll(ctx context.Context, category string, limit, offset int) ([]model.Product, error)

	// GetByID retrieves a single product by ID.
	GetByID(ctx context.Context, id string) (*model.Product, error)
}

// CartService manages the caller's cart.
type CartService interface {
	// List returns the cart lines with a pricing preview.
	List(ctx context.Context, id *model.Identity) (*model.CartResponse, error)

	// Add puts a product on the cart for a rental range.
	Add(ctx context.Context, id *model.Identity, req *model.AddCartItemRequest) (*model.CartLine, error)

	// UpdateQuantity changes the quantity of one line.
	UpdateQuantity(ctx context.Context, id *model.Identity, lineID uuid.UUID, req *model.UpdateCartItemRequest) error

	// Remove deletes one line.
	Remove(ctx context.Context, id *model.Identity, lineID uuid.UUID) error
}

// CheckoutService opens provider sessions and confirms their outcome.
type CheckoutService interface {
	// CreateSession prices the cart, opens a hosted checkout and records the
	// pending order.
	CreateSession(ctx context.Context, id *model.Identity, req *model.CheckoutRequest) (*model.CheckoutSession, error)

	// Confirm polls the provider for a session, applies the status and, once
	// paid, turns the cart into order lines.
	Confirm(ctx context.Context, id *model.Identity, req *model.ConfirmRequest) (*model.ConfirmResult, error)
}

// PaymentService receives provider webhooks.
type PaymentService interface {
	// HandleWebhook verifies, records and applies one notification. provider
	// may be empty, in which case it is detected from the signature header.
	// Only signature, payload and provider errors are returned; storage and
	// publishing failures are logged.
	HandleWebhook(ctx context.Context, provider string, header http.Header, body []byte) error
}

// OrderService exposes order history.
type OrderService interface {
	// List returns the caller's orders, newest first.
	List(ctx context.Context, id *model.Identity) ([]model.Order, error)

	// Get returns one order with its lines. Owner or admin only.
	Get(ctx context.Context, id *model.Identity, orderID uuid.UUID) (*model.OrderResponse, error)

	// Delete removes an order. Admin only.
	Delete(ctx context.Context, id *model.Identity, orderID uuid.UUID) error
}

var validate = validator.New()

// validationError turns validator output into a DomainError naming the first
// failing field.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if ve, ok := err.(validator.ValidationErrors); ok {
		verrs = ve
	}
	if len(verrs) == 0 {
		return model.NewValidationError(err.Error())
	}

	fe := verrs[0]
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	return model.NewValidationError("invalid field " + field + ": failed " + fe.Tag())
}

// publish sends an order event; failures are logged and dropped.
func publish(ctx context.Context, pub events.Publisher, logger zerolog.Logger, eventType string, order *model.Order, now time.Time) {
	if pub == nil || order == nil {
		return
	}
	if err := pub.Publish(ctx, events.NewOrderEvent(eventType, order, now)); err != nil {
		logger.Error().
			Err(err).
			Str("event_type", eventType).
			Str("order_id", order.ID.String()).
			Msg("failed to publish order event")
	}
}
