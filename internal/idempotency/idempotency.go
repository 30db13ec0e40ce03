// Package idempotency remembers the outcome of checkout initiations keyed by
// the client's Idempotency-Key so a retried request does not open a second
// provider session.
package idempotency

import (
	"context"
	"errors"
	"fmt"

	"av-rental/internal/model"
)

// ErrCacheMiss is returned by lookups that find nothing.
var ErrCacheMiss = errors.New("idempotency: cache miss")

// Store reserves keys and records completed checkout sessions.
type Store interface {
	// Begin reserves key for the caller. It returns (nil, nil) when the
	// reservation succeeded, the stored session when a previous request with
	// the same key completed, or model.ErrCheckoutInProgress while another
	// request holds the reservation.
	Begin(ctx context.Context, key string) (*model.CheckoutSession, error)

	// Complete stores the session under a key reserved by Begin.
	Complete(ctx context.Context, key string, session *model.CheckoutSession) error

	// Release drops a reservation so the client may retry after a failure.
	Release(ctx context.Context, key string) error
}

// Key scopes a client key to one user.
func Key(userID, clientKey string) string {
	return fmt.Sprintf("idempotency:checkout:%s:%s", userID, clientKey)
}
