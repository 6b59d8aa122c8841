package collab

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// Billing is the subscription-check collaborator.
type Billing interface {
	// SubscriptionActive reports whether the customer with this email has an
	// active premium subscription.
	SubscriptionActive(ctx context.Context, email string) (bool, error)
}

const stripeBaseURL = "https://api.stripe.com/v1"

// premiumProductID identifies the premium plan product in Stripe.
const premiumProductID = "prod_TqhJhf7EuIDrfQ"

// stripe talks to the Stripe REST API.
type stripe struct {
	secretKey string
	client    httpDoer
	baseURL   string
}

// NewStripe creates a Billing backed by Stripe.
func NewStripe(secretKey string) Billing {
	return &stripe{secretKey: secretKey, client: defaultClient(), baseURL: stripeBaseURL}
}

func (s *stripe) SubscriptionActive(ctx context.Context, email string) (bool, error) {
	if s.secretKey == "" {
		return false, Errf("billing", "Stripe API key not configured")
	}

	// 1. Find the customer by email.
	q := url.Values{}
	q.Set("email", email)
	q.Set("limit", "1")
	var customers struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := s.get(ctx, "/customers?"+q.Encode(), &customers); err != nil {
		return false, err
	}
	if len(customers.Data) == 0 {
		return false, nil
	}

	// 2. List the customer's active subscriptions and look for the premium
	// product among their items.
	q = url.Values{}
	q.Set("customer", customers.Data[0].ID)
	q.Set("status", "active")
	var subs struct {
		Data []struct {
			Items struct {
				Data []struct {
					Price struct {
						Product string `json:"product"`
					} `json:"price"`
				} `json:"data"`
			} `json:"items"`
		} `json:"data"`
	}
	if err := s.get(ctx, "/subscriptions?"+q.Encode(), &subs); err != nil {
		return false, err
	}
	for _, sub := range subs.Data {
		for _, item := range sub.Items.Data {
			if item.Price.Product == premiumProductID {
				return true, nil
			}
		}
	}
	return false, nil
}

// get performs an authenticated Stripe GET. Stripe errors arrive as
// {"error": {"message": ...}} which condense() already extracts.
func (s *stripe) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("billing: creating request: %w", err)
	}
	req.SetBasicAuth(s.secretKey, "")

	resp, err := s.client.Do(req)
	if err != nil {
		return Errf("billing", "request failed: %v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return Errf("billing", "reading response: %v", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Errf("billing", "%s (HTTP %d)", condense(data), resp.StatusCode)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return Errf("billing", "decoding response: %v", err)
	}
	return nil
}
