package payment

import (
	"context"
	"errors"
	"net/http"
	"time"

	"av-rental/internal/model"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// BreakerSettings tunes WithBreaker.
type BreakerSettings struct {
	MaxFailures uint32        // consecutive failures before opening
	OpenTimeout time.Duration // time spent open before probing
	Interval    time.Duration // closed-state counter reset period
}

// DefaultBreakerSettings returns the production breaker tuning.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MaxFailures: 5,
		OpenTimeout: 30 * time.Second,
		Interval:    time.Minute,
	}
}

type breakerGateway struct {
	Gateway
	cb *gobreaker.CircuitBreaker[any]
}

// WithBreaker guards the outbound calls of g with a circuit breaker. Webhook
// verification and parsing stay local and are not guarded. Client errors
// (4xx) do not count as failures.
func WithBreaker(g Gateway, s BreakerSettings, logger zerolog.Logger) Gateway {
	log := logger.With().Str("component", "breaker").Str("provider", g.Name()).Logger()

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        g.Name(),
		MaxRequests: 1,
		Interval:    s.Interval,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var pe *model.ProviderError
			return errors.As(err, &pe) && pe.Status >= 400 && pe.Status < 500
		},
	})

	return &breakerGateway{Gateway: g, cb: cb}
}

func (b *breakerGateway) wrap(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		pe := model.NewProviderError(b.Name(), http.StatusServiceUnavailable, "provider temporarily unavailable", "")
		pe.Err = err
		return pe
	}
	return err
}

func (b *breakerGateway) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	res, err := b.cb.Execute(func() (any, error) {
		return b.Gateway.CreateSession(ctx, req)
	})
	if err != nil {
		return nil, b.wrap(err)
	}
	return res.(*Session), nil
}

func (b *breakerGateway) FetchStatus(ctx context.Context, sessionID string) (*Notification, error) {
	res, err := b.cb.Execute(func() (any, error) {
		return b.Gateway.FetchStatus(ctx, sessionID)
	})
	if err != nil {
		return nil, b.wrap(err)
	}
	return res.(*Notification), nil
}
