package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"av-rental/internal/model"

	"github.com/rs/zerolog"
)

const (
	stripeSignatureHeader = "Stripe-Signature"
	stripeTolerance       = 5 * time.Minute
)

// StripeConfig configures the Stripe gateway.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	APIURL        string
	Timeout       time.Duration
}

type stripeGateway struct {
	cfg    StripeConfig
	client *http.Client
	now    func() time.Time
	logger zerolog.Logger
}

// NewStripe creates a Stripe Checkout gateway.
func NewStripe(cfg StripeConfig, logger zerolog.Logger) Gateway {
	if cfg.APIURL == "" {
		cfg.APIURL = "https://api.stripe.com"
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	return &stripeGateway{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		now:    time.Now,
		logger: logger.With().Str("component", "payment").Str("provider", ProviderStripe).Logger(),
	}
}

func (g *stripeGateway) Name() string            { return ProviderStripe }
func (g *stripeGateway) SignatureHeader() string { return stripeSignatureHeader }

type stripeSession struct {
	ID                string            `json:"id"`
	URL               string            `json:"url"`
	Status            string            `json:"status"`
	PaymentStatus     string            `json:"payment_status"`
	PaymentIntent     stripeRef         `json:"payment_intent"`
	ClientReferenceID string            `json:"client_reference_id"`
	Metadata          map[string]string `json:"metadata"`
}

type stripeError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// stripeLocale converts "fr_FR" to "fr"; Stripe wants the short form.
func stripeLocale(locale string) string {
	if locale == "" {
		return "auto"
	}
	lang, _, _ := strings.Cut(locale, "_")
	return strings.ToLower(lang)
}

func (g *stripeGateway) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	successURL := req.ReturnURL
	if strings.Contains(successURL, "?") {
		successURL += "&session_id={CHECKOUT_SESSION_ID}"
	} else {
		successURL += "?session_id={CHECKOUT_SESSION_ID}"
	}

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", successURL)
	form.Set("cancel_url", req.CancelURL)
	form.Set("client_reference_id", req.MerchantReference)
	form.Set("locale", stripeLocale(req.Locale))
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", strings.ToLower(req.Currency))
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(req.AmountMinorUnits, 10))
	form.Set("line_items[0][price_data][product_data][name]", req.Description)
	form.Set("metadata["+metadataMerchantReference+"]", req.MerchantReference)
	form.Set("payment_intent_data[metadata]["+metadataMerchantReference+"]", req.MerchantReference)
	if req.CustomerEmail != "" {
		form.Set("customer_email", req.CustomerEmail)
	}

	var out stripeSession
	if err := g.do(ctx, http.MethodPost, "/v1/checkout/sessions", form, &out); err != nil {
		return nil, err
	}
	if out.ID == "" || out.URL == "" {
		return nil, model.NewProviderError(ProviderStripe, http.StatusOK, "session response missing id or url", "")
	}

	g.logger.Info().
		Str("session_id", out.ID).
		Str("merchant_reference", req.MerchantReference).
		Int64("amount", req.AmountMinorUnits).
		Msg("checkout session created")

	return &Session{ID: out.ID, URL: out.URL}, nil
}

func (g *stripeGateway) FetchStatus(ctx context.Context, sessionID string) (*Notification, error) {
	var out stripeSession
	if err := g.do(ctx, http.MethodGet, "/v1/checkout/sessions/"+url.PathEscape(sessionID), nil, &out); err != nil {
		return nil, err
	}

	ref := out.Metadata[metadataMerchantReference]
	if ref == "" {
		ref = out.ClientReferenceID
	}

	n := &Notification{
		Provider:          ProviderStripe,
		EventType:         "checkout.session.poll",
		SessionID:         out.ID,
		PaymentID:         string(out.PaymentIntent),
		MerchantReference: ref,
		RawStatus:         out.Status + "/" + out.PaymentStatus,
	}
	n.Status, _ = MapStripeSession(out.Status, out.PaymentStatus)
	return n, nil
}

func (g *stripeGateway) do(ctx context.Context, method, path string, form url.Values, out any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, g.cfg.APIURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build stripe request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.cfg.SecretKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		pe := model.NewProviderError(ProviderStripe, 0, "request failed", "")
		pe.Err = err
		return pe
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		pe := model.NewProviderError(ProviderStripe, resp.StatusCode, "failed to read response", "")
		pe.Err = err
		return pe
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var se stripeError
		msg := http.StatusText(resp.StatusCode)
		if json.Unmarshal(raw, &se) == nil && se.Error.Message != "" {
			msg = se.Error.Message
		}
		g.logger.Error().
			Int("status", resp.StatusCode).
			Str("path", path).
			Str("payload", string(raw)).
			Msg("stripe request failed")
		return model.NewProviderError(ProviderStripe, resp.StatusCode, msg, string(raw))
	}

	if err := json.Unmarshal(raw, out); err != nil {
		pe := model.NewProviderError(ProviderStripe, resp.StatusCode, "malformed response", string(raw))
		pe.Err = err
		return pe
	}
	return nil
}

func (g *stripeGateway) VerifySignature(header http.Header, body []byte) (string, error) {
	sig := header.Get(stripeSignatureHeader)
	return sig, verifyStripe(g.cfg.WebhookSecret, sig, body, stripeTolerance, g.now())
}

func (g *stripeGateway) ParseEvent(body []byte) (Event, error) {
	var ev StripeEvent
	if err := decodeEvent(body, &ev); err != nil {
		return nil, err
	}
	if ev.Type == "" {
		return nil, fmt.Errorf("%w: missing event type", model.ErrInvalidPayload)
	}
	return &ev, nil
}
