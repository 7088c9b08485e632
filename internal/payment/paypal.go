package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// PayPal REST endpoints.
const (
	paypalSandboxBase = "https://api-m.sandbox.paypal.com"
	paypalLiveBase    = "https://api-m.paypal.com"
)

// BookingReferencePrefix tags the reference id of purchase units so the
// webhook correlation extractors can recover a booking id from it.
const BookingReferencePrefix = "booking_"

// PayPalGateway drives the Orders v2 API.  Webhook verification goes
// through PayPal's own verify-webhook-signature endpoint since the
// scheme requires their certificate chain.
type PayPalGateway struct {
	httpClient   *http.Client
	baseURL      string
	clientID     string
	clientSecret string
	webhookID    string

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewPayPalGateway returns a gateway for the sandbox or live environment.
func NewPayPalGateway(clientID, clientSecret, webhookID string, live bool) *PayPalGateway {
	base := paypalSandboxBase
	if live {
		base = paypalLiveBase
	}
	return &PayPalGateway{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		baseURL:      base,
		clientID:     clientID,
		clientSecret: clientSecret,
		webhookID:    webhookID,
	}
}

// Name implements Gateway.
func (g *PayPalGateway) Name() string { return "Paypal" }

// token returns a cached OAuth access token, refreshing it when expired.
func (g *PayPalGateway) token(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.accessToken != "" && time.Now().Before(g.tokenExpiry) {
		return g.accessToken, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("paypal: build token request: %w", err)
	}
	req.SetBasicAuth(g.clientID, g.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("paypal: token request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("paypal: token request returned %d: %s", resp.StatusCode, detail)
	}
	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("paypal: decode token response: %w", err)
	}
	g.accessToken = tok.AccessToken
	// Renew a minute early to avoid using a token that expires in flight.
	g.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - time.Minute)
	return g.accessToken, nil
}

// CreatePayment creates a CAPTURE-intent order carrying the booking id
// both as custom_id and as a prefixed reference id.
func (g *PayPalGateway) CreatePayment(ctx context.Context, amount float64, currency, bookingID string) (Order, error) {
	if amount <= 0 {
		return Order{}, fmt.Errorf("paypal: invalid payment amount %.2f", amount)
	}
	body := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{{
			"reference_id": BookingReferencePrefix + bookingID,
			"custom_id":    bookingID,
			"amount": map[string]any{
				"currency_code": currency,
				"value":         strconv.FormatFloat(amount, 'f', 2, 64),
			},
		}},
	}
	var created struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := g.do(ctx, http.MethodPost, "/v2/checkout/orders", body, &created); err != nil {
		return Order{}, err
	}
	log.Printf("paypal: created order %s for booking %s", created.ID, bookingID)
	return Order{ID: created.ID, ClientToken: created.ID}, nil
}

// CapturePayment captures an approved order and normalises the result.
func (g *PayPalGateway) CapturePayment(ctx context.Context, orderID string) (Capture, error) {
	var result struct {
		Status        string `json:"status"`
		PurchaseUnits []struct {
			Payments struct {
				Captures []struct {
					ID     string `json:"id"`
					Amount struct {
						Value        string `json:"value"`
						CurrencyCode string `json:"currency_code"`
					} `json:"amount"`
				} `json:"captures"`
			} `json:"payments"`
		} `json:"purchase_units"`
		Payer struct {
			EmailAddress string `json:"email_address"`
			Name         struct {
				GivenName string `json:"given_name"`
				Surname   string `json:"surname"`
			} `json:"name"`
		} `json:"payer"`
	}
	if err := g.do(ctx, http.MethodPost, "/v2/checkout/orders/"+url.PathEscape(orderID)+"/capture", map[string]any{}, &result); err != nil {
		return Capture{}, err
	}

	res := Capture{
		Completed:  result.Status == "COMPLETED",
		Status:     result.Status,
		PayerEmail: result.Payer.EmailAddress,
		PayerName:  strings.TrimSpace(result.Payer.Name.GivenName + " " + result.Payer.Name.Surname),
	}
	if len(result.PurchaseUnits) > 0 && len(result.PurchaseUnits[0].Payments.Captures) > 0 {
		c := result.PurchaseUnits[0].Payments.Captures[0]
		res.Reference = c.ID
		res.Currency = c.Amount.CurrencyCode
		res.Amount, _ = strconv.ParseFloat(c.Amount.Value, 64)
	}
	return res, nil
}

// VerifyWebhook asks PayPal to confirm the transmission signature.  All
// five transmission headers must be present.
func (g *PayPalGateway) VerifyWebhook(ctx context.Context, header http.Header, body []byte) error {
	authAlgo := header.Get("Paypal-Auth-Algo")
	certURL := header.Get("Paypal-Cert-Url")
	transmissionID := header.Get("Paypal-Transmission-Id")
	transmissionSig := header.Get("Paypal-Transmission-Sig")
	transmissionTime := header.Get("Paypal-Transmission-Time")
	if authAlgo == "" || certURL == "" || transmissionID == "" || transmissionSig == "" || transmissionTime == "" {
		return ErrVerificationFailed
	}

	var event map[string]any
	if err := json.Unmarshal(body, &event); err != nil {
		return ErrVerificationFailed
	}
	reqBody := map[string]any{
		"auth_algo":         authAlgo,
		"cert_url":          certURL,
		"transmission_id":   transmissionID,
		"transmission_sig":  transmissionSig,
		"transmission_time": transmissionTime,
		"webhook_id":        g.webhookID,
		"webhook_event":     event,
	}
	var result struct {
		VerificationStatus string `json:"verification_status"`
	}
	if err := g.do(ctx, http.MethodPost, "/v1/notifications/verify-webhook-signature", reqBody, &result); err != nil {
		log.Printf("paypal: webhook verification call failed: %v", err)
		return ErrVerificationFailed
	}
	if result.VerificationStatus != "SUCCESS" {
		return ErrVerificationFailed
	}
	return nil
}

// ParseWebhookEvent decodes a verified event envelope and classifies the
// types the booking flow reacts to.
func (g *PayPalGateway) ParseWebhookEvent(body []byte) (WebhookEvent, error) {
	var envelope struct {
		EventType string         `json:"event_type"`
		Resource  map[string]any `json:"resource"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return WebhookEvent{}, fmt.Errorf("paypal: decode webhook payload: %w", err)
	}
	if envelope.EventType == "" || envelope.Resource == nil {
		return WebhookEvent{}, fmt.Errorf("paypal: webhook payload missing event type or resource")
	}

	kind := EventIgnored
	switch envelope.EventType {
	case "PAYMENT.CAPTURE.COMPLETED":
		// A capture resource that is not COMPLETED is not a payment.
		if s, _ := envelope.Resource["status"].(string); s == "COMPLETED" {
			kind = EventCaptureCompleted
		}
	case "PAYMENT.CAPTURE.DENIED":
		kind = EventCaptureDenied
	case "PAYMENT.CAPTURE.REFUNDED":
		kind = EventRefunded
	case "PAYMENT.CAPTURE.REVERSED":
		kind = EventReversed
	case "CHECKOUT.ORDER.APPROVED":
		kind = EventOrderApproved
	}
	return WebhookEvent{Type: envelope.EventType, Kind: kind, Resource: envelope.Resource}, nil
}

// do performs one JSON API call with a bearer token.
func (g *PayPalGateway) do(ctx context.Context, method, path string, body, out any) error {
	tok, err := g.token(ctx)
	if err != nil {
		return err
	}
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("paypal: encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("paypal: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("paypal: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("paypal: %s %s returned %d: %s", method, path, resp.StatusCode, detail)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
