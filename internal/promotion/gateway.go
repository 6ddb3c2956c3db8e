// Package promotion sells listing promotions: it prices the tiers, creates
// payment orders, talks to the payment gateway and applies the bought
// promotion once the gateway confirms.
package promotion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrGateway marks transient payment-gateway failures.
var ErrGateway = errors.New("payment gateway unavailable")

// Charge is one payment request sent to the gateway.
type Charge struct {
	OrderID     string
	PaymentID   string
	ListingID   string
	Amount      int // whole lira
	Currency    string
	Description string
	ItemName    string
	ReturnURL   string
	CancelURL   string
}

// GatewayState is the gateway's view of a payment.
type GatewayState string

const (
	GatewayPending   GatewayState = "pending"
	GatewayCompleted GatewayState = "completed"
	GatewayFailed    GatewayState = "failed"
	GatewayCancelled GatewayState = "cancelled"
)

// Gateway is the external payment provider.
type Gateway interface {
	// Initiate registers the charge and returns where to send the user and
	// the provider's reference for later status checks.
	Initiate(ctx context.Context, c Charge) (paymentURL, providerRef string, err error)
	Status(ctx context.Context, providerRef string) (GatewayState, error)
}

// PYTRGateway is the HTTP client for the PYTR payments API.
type PYTRGateway struct {
	baseURL    string
	merchantID string
	apiKey     string
	client     *http.Client
	retries    uint64
}

// NewPYTRGateway returns a gateway client. Requests are bounded by timeout.
func NewPYTRGateway(baseURL, merchantID, apiKey string, timeout time.Duration) *PYTRGateway {
	return &PYTRGateway{
		baseURL:    strings.TrimRight(baseURL, "/"),
		merchantID: merchantID,
		apiKey:     apiKey,
		client:     &http.Client{Timeout: timeout},
		retries:    3,
	}
}

type pytrItem struct {
	Name     string `json:"name"`
	Price    int    `json:"price"`
	Quantity int    `json:"quantity"`
}

type pytrPayment struct {
	MerchantID  string     `json:"merchant_id"`
	Amount      int        `json:"amount"` // kuruş
	Currency    string     `json:"currency"`
	OrderID     string     `json:"order_id"`
	ReturnURL   string     `json:"return_url"`
	CancelURL   string     `json:"cancel_url"`
	Description string     `json:"description"`
	Items       []pytrItem `json:"items"`
}

type pytrPaymentResponse struct {
	ID         string `json:"id"`
	PaymentURL string `json:"payment_url"`
	Status     string `json:"status"`
}

// Initiate posts the charge. It is not retried: a repeated POST could open
// a second payment for the same order.
func (g *PYTRGateway) Initiate(ctx context.Context, c Charge) (string, string, error) {
	kurus := c.Amount * 100
	body, err := json.Marshal(pytrPayment{
		MerchantID:  g.merchantID,
		Amount:      kurus,
		Currency:    c.Currency,
		OrderID:     c.OrderID,
		ReturnURL:   withQuery(c.ReturnURL, url.Values{"payment_id": {c.PaymentID}, "job_id": {c.ListingID}}),
		CancelURL:   withQuery(c.CancelURL, url.Values{"payment_id": {c.PaymentID}}),
		Description: c.Description,
		Items:       []pytrItem{{Name: c.ItemName, Price: kurus, Quantity: 1}},
	})
	if err != nil {
		return "", "", err
	}

	var out pytrPaymentResponse
	if err := g.do(ctx, http.MethodPost, "/payments", body, &out); err != nil {
		return "", "", err
	}
	if out.PaymentURL == "" {
		return "", "", fmt.Errorf("%w: response has no payment_url", ErrGateway)
	}
	ref := out.ID
	if ref == "" {
		ref = c.OrderID
	}
	return out.PaymentURL, ref, nil
}

// Status asks for the payment's state, retrying transient failures.
func (g *PYTRGateway) Status(ctx context.Context, providerRef string) (GatewayState, error) {
	var out pytrPaymentResponse
	op := func() error {
		err := g.do(ctx, http.MethodGet, "/payments/"+url.PathEscape(providerRef), nil, &out)
		var perm *permanentError
		if errors.As(err, &perm) {
			return backoff.Permanent(err)
		}
		return err
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), g.retries), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return "", err
	}

	switch st := GatewayState(strings.ToLower(out.Status)); st {
	case GatewayPending, GatewayCompleted, GatewayFailed, GatewayCancelled:
		return st, nil
	case "success", "paid":
		return GatewayCompleted, nil
	default:
		return "", fmt.Errorf("%w: unknown payment status %q", ErrGateway, out.Status)
	}
}

// permanentError is a 4xx answer; retrying cannot help.
type permanentError struct {
	status int
	body   string
}

func (e *permanentError) Error() string {
	return fmt.Sprintf("payment gateway rejected request: status %d: %s", e.status, e.body)
}

func (g *PYTRGateway) do(ctx context.Context, method, path string, body []byte, out any) error {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGateway, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", ErrGateway, resp.StatusCode)
	case resp.StatusCode >= 400:
		return &permanentError{status: resp.StatusCode, body: strings.TrimSpace(string(raw))}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrGateway, err)
	}
	return nil
}

func withQuery(base string, q url.Values) string {
	if base == "" {
		return ""
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + q.Encode()
}
