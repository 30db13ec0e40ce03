package router

import (
	"net/http"
	"time"

	"av-rental/internal/auth"
	"av-rental/internal/handler"
	"av-rental/internal/middleware"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Handlers groups the HTTP handlers mounted by New.
type Handlers struct {
	Product  *handler.ProductHandler
	Cart     *handler.CartHandler
	Checkout *handler.CheckoutHandler
	Webhook  *handler.WebhookHandler
	Order    *handler.OrderHandler
}

// New creates a new HTTP router with all routes and middleware configured.
func New(h Handlers, verifier auth.Verifier, timeout time.Duration, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	// Recovery -> RequestID -> Logging -> CORS -> Timeout -> Authenticate
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.RequestID)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS)
	if timeout > 0 {
		r.Use(chimw.Timeout(timeout))
	}

	// Health check endpoint (no authentication required)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	})

	// Providers authenticate with signatures, not bearer tokens.
	r.Route("/payment/webhook", func(r chi.Router) {
		r.Post("/", h.Webhook.Handle)
		r.Post("/{provider}", h.Webhook.Handle)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(verifier, logger))

		r.Get("/products", h.Product.GetAll)
		r.Get("/products/{id}", h.Product.GetByID)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", h.Cart.List)
				r.Post("/items", h.Cart.Add)
				r.Patch("/items/{id}", h.Cart.UpdateQuantity)
				r.Delete("/items/{id}", h.Cart.Remove)
			})

			r.Post("/checkout/session", h.Checkout.CreateSession)
			r.Post("/checkout/confirm", h.Checkout.Confirm)

			r.Get("/orders", h.Order.List)
			r.Get("/orders/{id}", h.Order.GetByID)
			r.With(middleware.RequireAdmin).Delete("/orders/{id}", h.Order.Delete)
		})
	})

	return r
}
