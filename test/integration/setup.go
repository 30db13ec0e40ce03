package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"av-rental/internal/audit"
	"av-rental/internal/auth"
	"av-rental/internal/config"
	"av-rental/internal/database"
	"av-rental/internal/events"
	"av-rental/internal/handler"
	"av-rental/internal/idempotency"
	"av-rental/internal/model"
	"av-rental/internal/payment"
	"av-rental/internal/repository"
	"av-rental/internal/router"
	"av-rental/internal/service"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	jwtSecret  = "integration-secret"
	mockSecret = "integration-webhook-secret"
)

// TestDB represents a migrated test database instance.
type TestDB struct {
	Container *postgres.PostgresContainer
	Pool      *pgxpool.Pool
	ConnStr   string
}

// SetupTestDB starts a PostgreSQL container and applies the schema migrations.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	ctx := context.Background()

	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	logger := zerolog.Nop()
	if err := database.MigrateURL(connStr, database.Up, logger); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	pool, err := database.NewPoolFromURL(ctx, connStr, config.DatabaseConfig{
		MaxConnections:  10,
		MinConnections:  2,
		MaxConnLifetime: 300,
	}, logger)
	if err != nil {
		t.Fatalf("failed to create connection pool: %v", err)
	}

	t.Cleanup(func() {
		pool.Close()
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	return &TestDB{
		Container: postgresContainer,
		Pool:      pool,
		ConnStr:   connStr,
	}
}

// SeedProducts inserts the rental catalogue used by the tests.
func SeedProducts(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	ctx := context.Background()

	products := []struct {
		id       string
		name     string
		price    string
		category string
	}{
		{"CAM-01", "Cinema camera", "25.00", "camera"},
		{"LGT-01", "LED panel", "10.00", "lighting"},
		{"SND-01", "Shotgun microphone", "8.50", "sound"},
	}

	for _, p := range products {
		_, err := pool.Exec(ctx,
			"INSERT INTO products (id, name, price, category) VALUES ($1, $2, $3::numeric, $4)",
			p.id, p.name, p.price, p.category,
		)
		if err != nil {
			t.Fatalf("failed to seed product %s: %v", p.id, err)
		}
	}
}

// CleanupDB removes all rows, children first.
func CleanupDB(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	ctx := context.Background()

	for _, table := range []string{"payment_events", "order_items", "orders", "cart_items", "products"} {
		if _, err := pool.Exec(ctx, "DELETE FROM "+table); err != nil {
			t.Logf("failed to clean table %s: %v", table, err)
		}
	}
}

// recordingPublisher keeps published events in memory.
type recordingPublisher struct {
	events []events.OrderEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.OrderEvent) error {
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// App is the fully wired API on top of a test database and the mock provider.
type App struct {
	DB         *TestDB
	Handler    http.Handler
	Gateway    *payment.MockGateway
	Publisher  *recordingPublisher
	Archiver   audit.Archiver
	Reconciler *service.PendingReconciler
}

func setupApp(t *testing.T, db *TestDB) *App {
	t.Helper()

	logger := zerolog.Nop()

	gateway := payment.NewMock(payment.MockConfig{WebhookSecret: mockSecret}, logger)
	gateways := payment.NewRegistry(payment.ProviderMock, gateway)
	publisher := &recordingPublisher{}
	archiver := audit.NewFileArchiver(t.TempDir(), logger)

	productRepo := repository.NewProductRepository(db.Pool, logger)
	cartRepo := repository.NewCartRepository(db.Pool, logger)
	orderRepo := repository.NewOrderRepository(db.Pool, logger)
	eventRepo := repository.NewPaymentEventRepository(db.Pool, logger)

	checkout := service.NewCheckoutService(
		service.CheckoutConfig{SiteURL: "http://shop.test", Locale: "fr_FR", Currency: "EUR"},
		cartRepo, orderRepo, gateways, idempotency.NewMemoryStore(time.Minute), publisher, logger,
	)

	h := router.New(router.Handlers{
		Product:  handler.NewProductHandler(service.NewProductService(productRepo, logger), logger),
		Cart:     handler.NewCartHandler(service.NewCartService(cartRepo, productRepo, "EUR", logger), logger),
		Checkout: handler.NewCheckoutHandler(checkout, logger),
		Webhook:  handler.NewWebhookHandler(service.NewPaymentService(orderRepo, eventRepo, gateways, archiver, publisher, logger), logger),
		Order:    handler.NewOrderHandler(service.NewOrderService(orderRepo, logger), logger),
	}, auth.NewJWTVerifier(jwtSecret), 10*time.Second, logger)

	return &App{
		DB:         db,
		Handler:    h,
		Gateway:    gateway,
		Publisher:  publisher,
		Archiver:   archiver,
		// Negative grace so orders created a moment ago are picked up.
		Reconciler: service.NewPendingReconciler(orderRepo, gateways, publisher, -time.Minute, logger),
	}
}

func token(t *testing.T, id model.Identity) string {
	t.Helper()
	tok, err := auth.IssueToken(jwtSecret, id, time.Hour)
	require.NoError(t, err)
	return tok
}

// do sends a JSON request. An empty token sends an anonymous request.
func (a *App) do(t *testing.T, method, path, tok string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	a.Handler.ServeHTTP(w, req)
	return w
}

// webhook posts a signed mock provider notification.
func (a *App) webhook(t *testing.T, ev payment.MockEvent) *httptest.ResponseRecorder {
	t.Helper()

	body, err := json.Marshal(ev)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/payment/webhook/mock", bytes.NewReader(body))
	req.Header.Set(a.Gateway.SignatureHeader(), a.Gateway.Sign(body))

	w := httptest.NewRecorder()
	a.Handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v), "body: %s", w.Body.String())
	return v
}
