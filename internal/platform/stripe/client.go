package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"go.uber.org/fx"
	"go.uber.org/zap"

	cfgpkg "github.com/fatflowers/lingobill/pkg/config"
)

// MetadataUserID is the metadata key carrying our user id on checkout
// sessions and subscriptions, read back by the webhook reconciler.
const MetadataUserID = "user_id"

var ErrNotConfigured = errors.New("stripe: billing not configured")

type CheckoutInput struct {
	UserID string
	// CustomerID reuses an existing Stripe customer; empty lets Checkout create one.
	CustomerID string
}

// Client is the subset of the Stripe API the service calls.
type Client interface {
	CreateCheckoutSession(ctx context.Context, in CheckoutInput) (string, error)
	CreatePortalSession(ctx context.Context, customerID string) (string, error)
}

type apiClient struct {
	api         *client.API
	priceID     string
	frontendURL string
}

func NewClient(l *zap.SugaredLogger, cfg *cfgpkg.Config) Client {
	return newAPIClient(l, cfg, nil)
}

// newAPIClient uses the default Stripe backends when backends is nil.
func newAPIClient(l *zap.SugaredLogger, cfg *cfgpkg.Config, backends *stripe.Backends) *apiClient {
	frontendURL := strings.TrimRight(cfg.Stripe.FrontendURL, "/")
	if cfg.Stripe.SecretKey == "" {
		l.Warnw("stripe secret key not configured, billing endpoints will fail")
		return &apiClient{frontendURL: frontendURL}
	}
	api := &client.API{}
	api.Init(cfg.Stripe.SecretKey, backends)
	return &apiClient{api: api, priceID: cfg.Stripe.PriceID, frontendURL: frontendURL}
}

func (c *apiClient) CreateCheckoutSession(ctx context.Context, in CheckoutInput) (string, error) {
	if c.api == nil || c.priceID == "" || c.frontendURL == "" {
		return "", ErrNotConfigured
	}
	params := &stripe.CheckoutSessionParams{
		Params: stripe.Params{Context: ctx},
		Mode:   stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(c.priceID),
				Quantity: stripe.Int64(1),
			},
		},
		ClientReferenceID: stripe.String(in.UserID),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{MetadataUserID: in.UserID},
		},
		SuccessURL: stripe.String(c.frontendURL + "/billing/success"),
		CancelURL:  stripe.String(c.frontendURL + "/billing/cancel"),
	}
	params.AddMetadata(MetadataUserID, in.UserID)
	if in.CustomerID != "" {
		params.Customer = stripe.String(in.CustomerID)
	}

	sess, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return sess.URL, nil
}

func (c *apiClient) CreatePortalSession(ctx context.Context, customerID string) (string, error) {
	if c.api == nil || c.frontendURL == "" {
		return "", ErrNotConfigured
	}
	params := &stripe.BillingPortalSessionParams{
		Params:    stripe.Params{Context: ctx},
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(c.frontendURL + "/settings/billing"),
	}
	sess, err := c.api.BillingPortalSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("create portal session: %w", err)
	}
	return sess.URL, nil
}

var Module = fx.Options(fx.Provide(NewClient))
