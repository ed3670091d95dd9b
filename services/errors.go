package services

import (
	"errors"
	"fmt"
)

var (
	ErrNotConfigured = errors.New("not configured")
	ErrInvalidInput  = errors.New("invalid input")
	ErrNotFound      = errors.New("not found")

	// AI generation
	ErrProviderRequest = errors.New("AI provider request failed")
	ErrEmptyResponse   = errors.New("AI provider returned no content")
	ErrParseResponse   = errors.New("failed to parse AI response")
	ErrInvalidQuestion = errors.New("invalid question format")
	ErrUnsupportedFile = errors.New("unsupported file type")

	// Subscriptions and payments
	ErrNoSubscription      = errors.New("no active subscription found")
	ErrPaypalRequest       = errors.New("PayPal request failed")
	ErrSubscriptionPending = errors.New("subscription is not active at PayPal")
	ErrInvalidWebhook      = errors.New("invalid webhook event")
	ErrWebhookSignature    = errors.New("webhook signature verification failed")
)

// PaypalError carries the detail of a failed PayPal call. It matches
// ErrPaypalRequest under errors.Is.
type PaypalError struct {
	StatusCode int
	Detail     string
}

func (e *PaypalError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %s", ErrPaypalRequest, e.Detail)
	}
	return fmt.Sprintf("%s (%d): %s", ErrPaypalRequest, e.StatusCode, e.Detail)
}

func (e *PaypalError) Unwrap() error { return ErrPaypalRequest }
