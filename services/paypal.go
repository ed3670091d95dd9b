package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const DefaultPaypalBaseURL = "https://api-m.sandbox.paypal.com"

type PaypalSubscriber struct {
	EmailAddress string `json:"email_address"`
	PayerID      string `json:"payer_id"`
}

type PaypalBillingInfo struct {
	NextBillingTime *time.Time `json:"next_billing_time"`
}

// PaypalSubscription is the part of a billing subscription this service reads.
type PaypalSubscription struct {
	ID          string            `json:"id"`
	Status      string            `json:"status"`
	PlanID      string            `json:"plan_id"`
	Subscriber  PaypalSubscriber  `json:"subscriber"`
	BillingInfo PaypalBillingInfo `json:"billing_info"`
}

// IsActive is true for statuses that grant access.
func (s *PaypalSubscription) IsActive() bool {
	return s.Status == "ACTIVE" || s.Status == "APPROVED"
}

type PaypalAPI interface {
	GetSubscription(ctx context.Context, id string) (*PaypalSubscription, error)
	CancelSubscription(ctx context.Context, id, reason string) error
	VerifyWebhookSignature(ctx context.Context, headers http.Header, body []byte) error
}

// PaypalClient talks to the PayPal REST API with a client-credentials token.
type PaypalClient struct {
	baseURL    string
	webhookID  string
	httpClient *http.Client
}

func NewPaypalClient(clientID, clientSecret, baseURL, webhookID string) *PaypalClient {
	if baseURL == "" {
		baseURL = DefaultPaypalBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	config := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     baseURL + "/v1/oauth2/token",
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	return &PaypalClient{
		baseURL:    baseURL,
		webhookID:  webhookID,
		httpClient: config.Client(context.Background()),
	}
}

// VerifiesWebhooks is true when a webhook id is configured.
func (p *PaypalClient) VerifiesWebhooks() bool { return p.webhookID != "" }

func (p *PaypalClient) doRequest(ctx context.Context, method, endpoint string, body interface{}, result interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return &PaypalError{Detail: err.Error()}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &PaypalError{StatusCode: resp.StatusCode, Detail: strings.TrimSpace(string(data))}
	}
	if result != nil && len(data) > 0 {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func (p *PaypalClient) GetSubscription(ctx context.Context, id string) (*PaypalSubscription, error) {
	var sub PaypalSubscription
	if err := p.doRequest(ctx, http.MethodGet, "/v1/billing/subscriptions/"+id, nil, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

func (p *PaypalClient) CancelSubscription(ctx context.Context, id, reason string) error {
	return p.doRequest(ctx, http.MethodPost, "/v1/billing/subscriptions/"+id+"/cancel",
		map[string]string{"reason": reason}, nil)
}

// VerifyWebhookSignature asks PayPal to check the transmission headers of a
// webhook delivery. It is a no-op without a configured webhook id.
func (p *PaypalClient) VerifyWebhookSignature(ctx context.Context, headers http.Header, body []byte) error {
	if p.webhookID == "" {
		return nil
	}
	req := map[string]interface{}{
		"auth_algo":         headers.Get("Paypal-Auth-Algo"),
		"cert_url":          headers.Get("Paypal-Cert-Url"),
		"transmission_id":   headers.Get("Paypal-Transmission-Id"),
		"transmission_sig":  headers.Get("Paypal-Transmission-Sig"),
		"transmission_time": headers.Get("Paypal-Transmission-Time"),
		"webhook_id":        p.webhookID,
		"webhook_event":     json.RawMessage(body),
	}
	var resp struct {
		VerificationStatus string `json:"verification_status"`
	}
	if err := p.doRequest(ctx, http.MethodPost, "/v1/notifications/verify-webhook-signature", req, &resp); err != nil {
		return fmt.Errorf("%w: %v", ErrWebhookSignature, err)
	}
	if resp.VerificationStatus != "SUCCESS" {
		return fmt.Errorf("%w: status %s", ErrWebhookSignature, resp.VerificationStatus)
	}
	return nil
}
