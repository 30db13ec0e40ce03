package payment

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"av-rental/internal/model"

	"github.com/rs/zerolog"
)

const worldlineSignatureHeader = "X-GCS-Signature"

// WorldlineConfig configures the Worldline hosted checkout gateway.
type WorldlineConfig struct {
	MerchantID    string
	APIKey        string
	APISecret     string
	WebhookSecret string
	APIURL        string
	Timeout       time.Duration
}

type worldlineGateway struct {
	cfg    WorldlineConfig
	client *http.Client
	now    func() time.Time
	logger zerolog.Logger
}

// NewWorldline creates a Worldline Direct hosted checkout gateway.
func NewWorldline(cfg WorldlineConfig, logger zerolog.Logger) Gateway {
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	return &worldlineGateway{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		now:    time.Now,
		logger: logger.With().Str("component", "payment").Str("provider", ProviderWorldline).Logger(),
	}
}

func (g *worldlineGateway) Name() string            { return ProviderWorldline }
func (g *worldlineGateway) SignatureHeader() string { return worldlineSignatureHeader }

type worldlineAmount struct {
	Amount       int64  `json:"amount"`
	CurrencyCode string `json:"currencyCode"`
}

type worldlineCreateRequest struct {
	Order struct {
		AmountOfMoney worldlineAmount `json:"amountOfMoney"`
		References    struct {
			MerchantReference string `json:"merchantReference"`
			Descriptor        string `json:"descriptor,omitempty"`
		} `json:"references"`
		Customer *worldlineCustomer `json:"customer,omitempty"`
	} `json:"order"`
	HostedCheckoutSpecificInput struct {
		ReturnURL string `json:"returnUrl"`
		Locale    string `json:"locale,omitempty"`
	} `json:"hostedCheckoutSpecificInput"`
}

type worldlineCustomer struct {
	ContactDetails struct {
		EmailAddress string `json:"emailAddress,omitempty"`
	} `json:"contactDetails"`
}

type worldlineCreateResponse struct {
	HostedCheckoutID  string `json:"hostedCheckoutId"`
	RedirectURL       string `json:"redirectUrl"`
	ReturnMAC         string `json:"RETURNMAC"`
	MerchantReference string `json:"merchantReference"`
}

type worldlineStatusResponse struct {
	Status               string `json:"status"`
	CreatedPaymentOutput *struct {
		Payment               *WorldlinePayment `json:"payment"`
		PaymentStatusCategory string            `json:"paymentStatusCategory"`
	} `json:"createdPaymentOutput"`
}

type worldlineError struct {
	ErrorID string `json:"errorId"`
	Errors  []struct {
		Code    string `json:"code"`
		ID      string `json:"id"`
		Message string `json:"message"`
	} `json:"errors"`
}

func (g *worldlineGateway) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	var in worldlineCreateRequest
	in.Order.AmountOfMoney = worldlineAmount{Amount: req.AmountMinorUnits, CurrencyCode: strings.ToUpper(req.Currency)}
	in.Order.References.MerchantReference = req.MerchantReference
	in.Order.References.Descriptor = req.Description
	if req.CustomerEmail != "" {
		in.Order.Customer = &worldlineCustomer{}
		in.Order.Customer.ContactDetails.EmailAddress = req.CustomerEmail
	}
	in.HostedCheckoutSpecificInput.ReturnURL = req.ReturnURL
	in.HostedCheckoutSpecificInput.Locale = req.Locale

	var out worldlineCreateResponse
	if err := g.do(ctx, http.MethodPost, g.path("hostedcheckouts"), in, &out); err != nil {
		return nil, err
	}
	if out.HostedCheckoutID == "" || out.RedirectURL == "" {
		return nil, model.NewProviderError(ProviderWorldline, http.StatusOK, "hosted checkout response missing id or redirect", "")
	}

	g.logger.Info().
		Str("session_id", out.HostedCheckoutID).
		Str("merchant_reference", req.MerchantReference).
		Int64("amount", req.AmountMinorUnits).
		Msg("hosted checkout created")

	return &Session{ID: out.HostedCheckoutID, URL: out.RedirectURL}, nil
}

func (g *worldlineGateway) FetchStatus(ctx context.Context, sessionID string) (*Notification, error) {
	var out worldlineStatusResponse
	if err := g.do(ctx, http.MethodGet, g.path("hostedcheckouts/"+url.PathEscape(sessionID)), nil, &out); err != nil {
		return nil, err
	}

	n := &Notification{
		Provider:  ProviderWorldline,
		EventType: "hostedcheckout.poll",
		SessionID: sessionID,
		RawStatus: out.Status,
	}

	if out.CreatedPaymentOutput != nil && out.CreatedPaymentOutput.Payment != nil {
		n.applyWorldlinePayment(out.CreatedPaymentOutput.Payment)
		return n, nil
	}

	if out.Status == "CANCELLED_BY_CONSUMER" {
		n.Status = model.OrderStatusCanceled
	}
	return n, nil
}

func (g *worldlineGateway) path(resource string) string {
	return "/v2/" + url.PathEscape(g.cfg.MerchantID) + "/" + resource
}

// authorization builds the v1HMAC header over the canonical request.
func (g *worldlineGateway) authorization(method, contentType, date, path string) string {
	toSign := method + "\n" + contentType + "\n" + date + "\n" + path + "\n"
	sig := base64.StdEncoding.EncodeToString(mac(g.cfg.APISecret, []byte(toSign)))
	return "GCS v1HMAC:" + g.cfg.APIKey + ":" + sig
}

func (g *worldlineGateway) do(ctx context.Context, method, path string, in, out any) error {
	var (
		body        io.Reader
		contentType string
	)
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode worldline request: %w", err)
		}
		body = bytes.NewReader(payload)
		contentType = "application/json; charset=utf-8"
	}

	req, err := http.NewRequestWithContext(ctx, method, g.cfg.APIURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build worldline request: %w", err)
	}

	date := g.now().UTC().Format(http.TimeFormat)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Date", date)
	req.Header.Set("Authorization", g.authorization(method, contentType, date, path))

	resp, err := g.client.Do(req)
	if err != nil {
		pe := model.NewProviderError(ProviderWorldline, 0, "request failed", "")
		pe.Err = err
		return pe
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		pe := model.NewProviderError(ProviderWorldline, resp.StatusCode, "failed to read response", "")
		pe.Err = err
		return pe
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := http.StatusText(resp.StatusCode)
		var we worldlineError
		if json.Unmarshal(raw, &we) == nil && len(we.Errors) > 0 {
			msg = we.Errors[0].Message
		}
		g.logger.Error().
			Int("status", resp.StatusCode).
			Str("path", path).
			Str("payload", string(raw)).
			Msg("worldline request failed")
		return model.NewProviderError(ProviderWorldline, resp.StatusCode, msg, string(raw))
	}

	if err := json.Unmarshal(raw, out); err != nil {
		pe := model.NewProviderError(ProviderWorldline, resp.StatusCode, "malformed response", string(raw))
		pe.Err = err
		return pe
	}
	return nil
}

func (g *worldlineGateway) VerifySignature(header http.Header, body []byte) (string, error) {
	sig := header.Get(worldlineSignatureHeader)
	return sig, verifyBase64(g.cfg.WebhookSecret, sig, body)
}

func (g *worldlineGateway) ParseEvent(body []byte) (Event, error) {
	var ev WorldlineEvent
	if err := decodeEvent(body, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}
