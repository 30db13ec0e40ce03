package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"av-rental/internal/events"
	"av-rental/internal/handler"
	"av-rental/internal/model"
	"av-rental/internal/payment"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = model.Identity{UserID: "user-alice", Email: "alice@example.com"}
	bob   = model.Identity{UserID: "user-bob", Email: "bob@example.com"}
	admin = model.Identity{UserID: "user-admin", Email: "admin@example.com", IsAdmin: true}
)

func addItem(productID string, qty int) map[string]any {
	return map[string]any{
		"productId": productID,
		"quantity":  qty,
		"startDate": "2024-06-01",
		"endDate":   "2024-06-03",
	}
}

func paymentIDFor(sessionID string) string {
	return "mock_pay_" + strings.TrimPrefix(sessionID, "mock_sess_")
}

// fillCart puts a camera (x2) and a light (x1) for three days in the user's cart.
func fillCart(t *testing.T, app *App, tok string) {
	t.Helper()
	for _, item := range []map[string]any{addItem("CAM-01", 2), addItem("LGT-01", 1)} {
		w := app.do(t, http.MethodPost, "/cart/items", tok, item)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}
}

func openSession(t *testing.T, app *App, tok string, headers ...string) model.CheckoutSession {
	t.Helper()
	w := app.do(t, http.MethodPost, "/checkout/session", tok, map[string]any{"delivery": "pickup"}, headers...)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode[model.CheckoutSession](t, w)
}

func countRows(t *testing.T, app *App, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, app.DB.Pool.QueryRow(context.Background(), query, args...).Scan(&n))
	return n
}

func TestProductAPI_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	testDB := SetupTestDB(t)
	app := setupApp(t, testDB)
	CleanupDB(t, testDB.Pool)
	SeedProducts(t, testDB.Pool)

	t.Run("GET /products is public", func(t *testing.T) {
		w := app.do(t, http.MethodGet, "/products", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, decode[[]model.Product](t, w), 3)
	})

	t.Run("GET /products filters by category", func(t *testing.T) {
		w := app.do(t, http.MethodGet, "/products?category=camera", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		products := decode[[]model.Product](t, w)
		require.Len(t, products, 1)
		assert.Equal(t, "CAM-01", products[0].ID)
	})

	t.Run("GET /products with pagination", func(t *testing.T) {
		w := app.do(t, http.MethodGet, "/products?limit=2&offset=0", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, decode[[]model.Product](t, w), 2)
	})

	t.Run("GET /products/{id} returns 404 for unknown product", func(t *testing.T) {
		w := app.do(t, http.MethodGet, "/products/NOPE", "", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestCartAPI_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	testDB := SetupTestDB(t)
	app := setupApp(t, testDB)
	CleanupDB(t, testDB.Pool)
	SeedProducts(t, testDB.Pool)
	tok := token(t, alice)

	t.Run("cart requires a session", func(t *testing.T) {
		w := app.do(t, http.MethodGet, "/cart", "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("totals cover every rental day with VAT", func(t *testing.T) {
		fillCart(t, app, tok)

		w := app.do(t, http.MethodGet, "/cart", tok, nil)
		require.Equal(t, http.StatusOK, w.Code)
		cart := decode[model.CartResponse](t, w)
		require.Len(t, cart.Lines, 2)
		require.NotNil(t, cart.Totals)
		assert.Equal(t, 3, cart.Totals.Days)
		assert.Equal(t, int64(21600), cart.Totals.AmountMinorUnits)
	})

	t.Run("carts are private", func(t *testing.T) {
		w := app.do(t, http.MethodGet, "/cart", token(t, bob), nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, decode[model.CartResponse](t, w).Lines)
	})

	t.Run("unknown product is rejected", func(t *testing.T) {
		w := app.do(t, http.MethodPost, "/cart/items", tok, addItem("NOPE", 1))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestCheckoutFlow_WebhookThenConfirm(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	testDB := SetupTestDB(t)
	app := setupApp(t, testDB)
	CleanupDB(t, testDB.Pool)
	SeedProducts(t, testDB.Pool)
	tok := token(t, alice)

	fillCart(t, app, tok)

	session := openSession(t, app, tok, handler.IdempotencyKeyHeader, "attempt-1")
	assert.True(t, strings.HasPrefix(session.SessionID, "mock_sess_"))
	assert.Contains(t, session.URL, "session_id="+session.SessionID)

	replay := openSession(t, app, tok, handler.IdempotencyKeyHeader, "attempt-1")
	assert.Equal(t, session, replay, "same idempotency key must return the same session")

	w := app.webhook(t, payment.MockEvent{
		Type:              "payment.succeeded",
		SessionID:         session.SessionID,
		PaymentID:         paymentIDFor(session.SessionID),
		MerchantReference: session.MerchantReference,
		Status:            "paid",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())

	// The webhook settles the status; the cart is untouched until confirm.
	w = app.do(t, http.MethodGet, "/cart", tok, nil)
	assert.Len(t, decode[model.CartResponse](t, w).Lines, 2)

	w = app.do(t, http.MethodPost, "/checkout/confirm", tok, model.ConfirmRequest{SessionID: session.SessionID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	result := decode[model.ConfirmResult](t, w)
	assert.True(t, result.OK)
	assert.Equal(t, session.OrderID, result.OrderID)
	assert.Equal(t, model.OrderStatusPaid, result.Status)

	w = app.do(t, http.MethodGet, "/cart", tok, nil)
	assert.Empty(t, decode[model.CartResponse](t, w).Lines)

	w = app.do(t, http.MethodGet, "/orders/"+session.OrderID.String(), tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	order := decode[model.OrderResponse](t, w)
	assert.Equal(t, model.OrderStatusPaid, order.Status)
	assert.Equal(t, int64(21600), order.TotalAmount)
	require.Len(t, order.Lines, 2)

	quantities := map[string]int{}
	for _, l := range order.Lines {
		quantities[l.ProductID] = l.Quantity
	}
	assert.Equal(t, map[string]int{"CAM-01": 6, "LGT-01": 3}, quantities)

	t.Run("confirm is repeatable", func(t *testing.T) {
		w := app.do(t, http.MethodPost, "/checkout/confirm", tok, model.ConfirmRequest{SessionID: session.SessionID})
		require.Equal(t, http.StatusOK, w.Code)
		assert.True(t, decode[model.ConfirmResult](t, w).OK)
		assert.Equal(t, 2, countRows(t, app, "SELECT COUNT(*) FROM order_items WHERE order_id = $1", session.OrderID))
	})

	t.Run("webhook is audited", func(t *testing.T) {
		assert.Equal(t, 1, countRows(t, app,
			"SELECT COUNT(*) FROM payment_events WHERE merchant_reference = $1 AND verified", session.MerchantReference))
	})

	t.Run("events are published once per change", func(t *testing.T) {
		assert.Equal(t, []string{events.TypeOrderStatusChanged, events.TypeOrderPaid}, app.Publisher.types())
	})

	t.Run("other users cannot read the order", func(t *testing.T) {
		w := app.do(t, http.MethodGet, "/orders/"+session.OrderID.String(), token(t, bob), nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestCheckoutFlow_RefusedKeepsCart(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	testDB := SetupTestDB(t)
	app := setupApp(t, testDB)
	CleanupDB(t, testDB.Pool)
	SeedProducts(t, testDB.Pool)
	tok := token(t, alice)

	fillCart(t, app, tok)
	session := openSession(t, app, tok)

	w := app.webhook(t, payment.MockEvent{
		Type:              "payment.refused",
		SessionID:         session.SessionID,
		MerchantReference: session.MerchantReference,
		Status:            "refused",
	})
	require.Equal(t, http.StatusOK, w.Code)

	// The provider poll now claims paid, but the refusal is already final.
	w = app.do(t, http.MethodPost, "/checkout/confirm", tok, model.ConfirmRequest{SessionID: session.SessionID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	result := decode[model.ConfirmResult](t, w)
	assert.False(t, result.OK)
	assert.Equal(t, model.OrderStatusRefused, result.Status)

	w = app.do(t, http.MethodGet, "/cart", tok, nil)
	assert.Len(t, decode[model.CartResponse](t, w).Lines, 2)
	assert.Zero(t, countRows(t, app, "SELECT COUNT(*) FROM order_items"))
}

func TestWebhook_TamperedBodyIsRejected(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	testDB := SetupTestDB(t)
	app := setupApp(t, testDB)
	CleanupDB(t, testDB.Pool)

	body := json.RawMessage(`{"type":"payment.succeeded","sessionId":"mock_sess_00","status":"paid"}`)
	w := app.do(t, http.MethodPost, "/payment/webhook/mock", "", body, app.Gateway.SignatureHeader(), "deadbeef")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = app.webhook(t, payment.MockEvent{Type: "payment.succeeded", SessionID: "mock_sess_00", Status: "paid"})
	assert.Equal(t, http.StatusOK, w.Code, "unknown sessions are acknowledged")

	assert.Equal(t, 1, countRows(t, app, "SELECT COUNT(*) FROM payment_events WHERE NOT verified"))
	assert.Equal(t, 1, countRows(t, app, "SELECT COUNT(*) FROM payment_events WHERE verified"))
}

func TestWebhook_UnattributedRequestsAreAudited(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	testDB := SetupTestDB(t)
	app := setupApp(t, testDB)
	CleanupDB(t, testDB.Pool)

	body := json.RawMessage(`{"type":"payment.succeeded","sessionId":"mock_sess_00","status":"paid"}`)

	w := app.do(t, http.MethodPost, "/payment/webhook", "", body)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 1, countRows(t, app,
		"SELECT COUNT(*) FROM payment_events WHERE source = 'unknown' AND NOT verified AND signature = ''"))

	w = app.do(t, http.MethodPost, "/payment/webhook/paypal", "", body)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 1, countRows(t, app,
		"SELECT COUNT(*) FROM payment_events WHERE source = 'paypal' AND NOT verified"))

	assert.Equal(t, 2, countRows(t, app, "SELECT COUNT(*) FROM payment_events"))
	assert.Zero(t, countRows(t, app, "SELECT COUNT(*) FROM payment_events WHERE verified"))
}

func TestReconciler_SettlesAbandonedSessions(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	testDB := SetupTestDB(t)
	app := setupApp(t, testDB)
	CleanupDB(t, testDB.Pool)
	SeedProducts(t, testDB.Pool)
	tok := token(t, alice)

	fillCart(t, app, tok)
	session := openSession(t, app, tok)

	report, err := app.Reconciler.ReconcileOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Checked)
	assert.Equal(t, 1, report.Updated)

	w := app.do(t, http.MethodGet, "/orders/"+session.OrderID.String(), tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	order := decode[model.OrderResponse](t, w)
	assert.Equal(t, model.OrderStatusPaid, order.Status)
	assert.Empty(t, order.Lines, "reconciliation does not touch the cart")

	w = app.do(t, http.MethodPost, "/checkout/confirm", tok, model.ConfirmRequest{SessionID: session.SessionID})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[model.ConfirmResult](t, w).OK)
	assert.Equal(t, 2, countRows(t, app, "SELECT COUNT(*) FROM order_items WHERE order_id = $1", session.OrderID))
}

func TestOrderAPI_AdminDelete(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	testDB := SetupTestDB(t)
	app := setupApp(t, testDB)
	CleanupDB(t, testDB.Pool)
	SeedProducts(t, testDB.Pool)
	tok := token(t, alice)

	fillCart(t, app, tok)
	session := openSession(t, app, tok)
	path := "/orders/" + session.OrderID.String()

	w := app.do(t, http.MethodDelete, path, tok, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = app.do(t, http.MethodGet, path, token(t, admin), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = app.do(t, http.MethodDelete, path, token(t, admin), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = app.do(t, http.MethodGet, path, tok, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = app.do(t, http.MethodGet, "/orders", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]model.Order](t, w))
}
