// Package billing creates Stripe Checkout sessions for payment links.
package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"vargasjr/internal/action"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
)

// Config configures the Stripe client. APIBase overrides the API host.
type Config struct {
	SecretKey  string
	APIBase    string
	SuccessURL string
	Logger     *slog.Logger
}

// Stripe implements action.CheckoutCreator.
type Stripe struct {
	cfg    Config
	api    *client.API
	logger *slog.Logger
}

func NewStripe(cfg Config) *Stripe {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	backendCfg := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: 30 * time.Second},
		LeveledLogger:     stripeLogger{cfg.Logger},
		MaxNetworkRetries: stripe.Int64(1),
	}
	if cfg.APIBase != "" {
		backendCfg.URL = stripe.String(strings.TrimRight(cfg.APIBase, "/"))
	}
	api := &client.API{}
	api.Init(cfg.SecretKey, stripe.NewBackendsWithConfig(backendCfg))
	return &Stripe{cfg: cfg, api: api, logger: cfg.Logger}
}

// CreateCheckout creates a payment-mode Checkout Session and returns its
// hosted URL.
func (s *Stripe) CreateCheckout(ctx context.Context, req action.CheckoutRequest) (string, error) {
	if s.cfg.SecretKey == "" {
		return "", fmt.Errorf("stripe secret key not configured")
	}
	if req.Quantity < 1 {
		req.Quantity = 1
	}
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Price:    stripe.String(req.PriceID),
			Quantity: stripe.Int64(int64(req.Quantity)),
		}},
	}
	params.Context = ctx
	if s.cfg.SuccessURL != "" {
		params.SuccessURL = stripe.String(s.cfg.SuccessURL)
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	if req.ClientReferenceID != "" {
		params.ClientReferenceID = stripe.String(req.ClientReferenceID)
	}

	cs, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		var se *stripe.Error
		if errors.As(err, &se) && se.Msg != "" {
			return "", fmt.Errorf("stripe: %s", se.Msg)
		}
		return "", fmt.Errorf("stripe request: %w", err)
	}
	if cs.URL == "" {
		return "", fmt.Errorf("stripe: session %s has no url", cs.ID)
	}
	s.logger.Debug("checkout session created", "session_id", cs.ID)
	return cs.URL, nil
}

// stripeLogger routes stripe-go's leveled logging into slog.
type stripeLogger struct{ l *slog.Logger }

func (s stripeLogger) Debugf(format string, v ...interface{}) { s.l.Debug(fmt.Sprintf(format, v...)) }
func (s stripeLogger) Infof(format string, v ...interface{})  { s.l.Debug(fmt.Sprintf(format, v...)) }
func (s stripeLogger) Warnf(format string, v ...interface{})  { s.l.Warn(fmt.Sprintf(format, v...)) }
func (s stripeLogger) Errorf(format string, v ...interface{}) { s.l.Error(fmt.Sprintf(format, v...)) }
