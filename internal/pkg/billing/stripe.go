package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/careerpilot/careerpilot/internal/pkg/env"
)

const defaultStripeAPIBaseURL = "https://api.stripe.com/v1"

// ProviderClient is the subset of the billing provider API the reconciler and
// the checkout flow consume.
type ProviderClient interface {
	GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error)
	UpdateSubscriptionMetadata(ctx context.Context, subscriptionID string, metadata map[string]string) error
	CancelSubscription(ctx context.Context, subscriptionID string) error
	CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (*CheckoutSession, error)
}

// CheckoutSessionParams describes a subscription checkout to create.
type CheckoutSessionParams struct {
	PriceID    string
	Customer   string
	SuccessURL string
	CancelURL  string
	Metadata   map[string]string
}

// StripeClient talks to the Stripe REST API with form-encoded requests.
type StripeClient struct {
	SecretKey  string
	APIBaseURL string

	HTTPClient *http.Client
}

// NewStripeClientFromEnv builds a client from STRIPE_* environment config.
func NewStripeClientFromEnv() *StripeClient {
	return &StripeClient{
		SecretKey:  strings.TrimSpace(env.GetEnv("STRIPE_SECRET_KEY", "")),
		APIBaseURL: strings.TrimRight(env.GetEnv("STRIPE_API_BASE_URL", defaultStripeAPIBaseURL), "/"),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (c *StripeClient) GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	id := strings.TrimSpace(subscriptionID)
	if id == "" {
		return nil, errors.New("subscription id is required")
	}
	body, err := c.do(ctx, http.MethodGet, "/subscriptions/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	var sub Subscription
	if err := json.Unmarshal(body, &sub); err != nil {
		return nil, fmt.Errorf("decoding subscription: %w", err)
	}
	return &sub, nil
}

func (c *StripeClient) UpdateSubscriptionMetadata(ctx context.Context, subscriptionID string, metadata map[string]string) error {
	id := strings.TrimSpace(subscriptionID)
	if id == "" {
		return errors.New("subscription id is required")
	}
	form := url.Values{}
	for k, v := range metadata {
		form.Set("metadata["+k+"]", v)
	}
	_, err := c.do(ctx, http.MethodPost, "/subscriptions/"+url.PathEscape(id), form)
	return err
}

func (c *StripeClient) CancelSubscription(ctx context.Context, subscriptionID string) error {
	id := strings.TrimSpace(subscriptionID)
	if id == "" {
		return errors.New("subscription id is required")
	}
	_, err := c.do(ctx, http.MethodDelete, "/subscriptions/"+url.PathEscape(id), nil)
	return err
}

func (c *StripeClient) CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (*CheckoutSession, error) {
	if strings.TrimSpace(params.PriceID) == "" {
		return nil, errors.New("price id is required")
	}
	form := url.Values{}
	form.Set("mode", "subscription")
	form.Set("line_items[0][price]", params.PriceID)
	form.Set("line_items[0][quantity]", "1")
	form.Set("success_url", params.SuccessURL)
	form.Set("cancel_url", params.CancelURL)
	if params.Customer != "" {
		form.Set("customer", params.Customer)
	}
	for k, v := range params.Metadata {
		form.Set("metadata["+k+"]", v)
		// The same association must land on the subscription the session creates.
		form.Set("subscription_data[metadata]["+k+"]", v)
	}

	body, err := c.do(ctx, http.MethodPost, "/checkout/sessions", form)
	if err != nil {
		return nil, err
	}
	var sess CheckoutSession
	if err := json.Unmarshal(body, &sess); err != nil {
		return nil, fmt.Errorf("decoding checkout session: %w", err)
	}
	return &sess, nil
}

func (c *StripeClient) do(ctx context.Context, method, path string, form url.Values) ([]byte, error) {
	if strings.TrimSpace(c.SecretKey) == "" {
		return nil, errors.New("STRIPE_SECRET_KEY is not configured")
	}

	var reqBody io.Reader
	if form != nil {
		reqBody = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.APIBaseURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)
	req.Header.Set("Accept", "application/json")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("stripe request %s %s failed: status=%d body=%s", method, path, resp.StatusCode, string(body))
	}
	return body, nil
}
