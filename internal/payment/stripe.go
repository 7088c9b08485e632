package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// stripeAPIBase is the production REST endpoint; tests override it.
const stripeAPIBase = "https://api.stripe.com"

// stripeSignatureTolerance bounds how old a webhook timestamp may be
// before the delivery is rejected as a possible replay.
const stripeSignatureTolerance = 5 * time.Minute

// StripeGateway drives Stripe PaymentIntents over the REST API and
// verifies webhook deliveries with the documented t=…,v1=… HMAC scheme.
type StripeGateway struct {
	httpClient    *http.Client
	baseURL       string
	secretKey     string
	webhookSecret string
	// now is stubbed in signature tests.
	now func() time.Time
}

// NewStripeGateway returns a gateway using the given API and webhook
// secrets.
func NewStripeGateway(secretKey, webhookSecret string) *StripeGateway {
	return &StripeGateway{
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		baseURL:       stripeAPIBase,
		secretKey:     secretKey,
		webhookSecret: webhookSecret,
		now:           time.Now,
	}
}

// Name implements Gateway.
func (g *StripeGateway) Name() string { return "Stripe" }

type stripeIntent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	ReceiptEmail string `json:"receipt_email"`
}

// CreatePayment creates a PaymentIntent for the amount, carrying the
// booking id in metadata so webhooks can be correlated back.
func (g *StripeGateway) CreatePayment(ctx context.Context, amount float64, currency, bookingID string) (Order, error) {
	if amount <= 0 {
		return Order{}, fmt.Errorf("stripe: invalid payment amount %.2f", amount)
	}
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(int64(math.Round(amount*100)), 10))
	form.Set("currency", strings.ToLower(currency))
	form.Add("payment_method_types[]", "card")
	form.Set("metadata[booking_id]", bookingID)
	form.Set("description", "General Assembly booking "+bookingID)

	var intent stripeIntent
	if err := g.do(ctx, http.MethodPost, "/v1/payment_intents", form, &intent); err != nil {
		return Order{}, err
	}
	log.Printf("stripe: created payment intent %s for booking %s", intent.ID, bookingID)
	return Order{ID: intent.ID, ClientToken: intent.ClientSecret}, nil
}

// CapturePayment retrieves the PaymentIntent and reports whether it
// succeeded.  Confirmation happens client-side; the server only verifies
// the outcome before recording it.
func (g *StripeGateway) CapturePayment(ctx context.Context, paymentID string) (Capture, error) {
	var intent stripeIntent
	if err := g.do(ctx, http.MethodGet, "/v1/payment_intents/"+url.PathEscape(paymentID), nil, &intent); err != nil {
		return Capture{}, err
	}
	return Capture{
		Completed:  intent.Status == "succeeded",
		Status:     intent.Status,
		Reference:  intent.ID,
		Amount:     float64(intent.Amount) / 100,
		Currency:   strings.ToUpper(intent.Currency),
		PayerEmail: intent.ReceiptEmail,
	}, nil
}

// VerifyWebhook checks the Stripe-Signature header: HMAC-SHA256 over
// "<timestamp>.<body>" with the endpoint secret, compared in constant
// time against every v1 candidate, with a replay tolerance on the
// timestamp.
func (g *StripeGateway) VerifyWebhook(_ context.Context, header http.Header, body []byte) error {
	sig := header.Get("Stripe-Signature")
	if sig == "" {
		return ErrVerificationFailed
	}
	var ts int64 = -1
	var candidates []string
	for _, part := range strings.Split(sig, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return ErrVerificationFailed
			}
			ts = n
		case "v1":
			candidates = append(candidates, v)
		}
	}
	if ts < 0 || len(candidates) == 0 {
		return ErrVerificationFailed
	}
	if d := g.now().Sub(time.Unix(ts, 0)); d > stripeSignatureTolerance || d < -stripeSignatureTolerance {
		return ErrVerificationFailed
	}

	mac := hmac.New(sha256.New, []byte(g.webhookSecret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	for _, c := range candidates {
		if hmac.Equal([]byte(expected), []byte(c)) {
			return nil
		}
	}
	return ErrVerificationFailed
}

// ParseWebhookEvent decodes a verified event envelope and classifies the
// types the booking flow reacts to.
func (g *StripeGateway) ParseWebhookEvent(body []byte) (WebhookEvent, error) {
	var envelope struct {
		Type string `json:"type"`
		Data struct {
			Object map[string]any `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return WebhookEvent{}, fmt.Errorf("stripe: decode webhook payload: %w", err)
	}
	if envelope.Type == "" {
		return WebhookEvent{}, fmt.Errorf("stripe: webhook payload missing event type")
	}

	kind := EventIgnored
	switch envelope.Type {
	case "payment_intent.succeeded":
		// The success path for the intents this gateway creates.  The
		// status guard keeps a mislabelled delivery from completing a
		// booking.
		if s, _ := envelope.Data.Object["status"].(string); s == "succeeded" {
			kind = EventCaptureCompleted
		}
	case "checkout.session.completed":
		// Hosted-checkout deliveries from older integrations.  The
		// session completes even for async payment methods; only a paid
		// session counts as a capture.
		if s, _ := envelope.Data.Object["payment_status"].(string); s == "paid" {
			kind = EventCaptureCompleted
		}
	case "payment_intent.payment_failed":
		kind = EventCaptureDenied
	case "charge.refunded":
		kind = EventRefunded
	}
	return WebhookEvent{Type: envelope.Type, Kind: kind, Resource: envelope.Data.Object}, nil
}

// do performs one form-encoded API call.
func (g *StripeGateway) do(ctx context.Context, method, path string, form url.Values, out any) error {
	var reader io.Reader
	if form != nil {
		reader = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("stripe: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.secretKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("stripe: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("stripe: %s %s returned %d: %s", method, path, resp.StatusCode, detail)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
