package stripe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
	"go.uber.org/zap"

	cfgpkg "github.com/fatflowers/lingobill/pkg/config"
)

func TestNewClient_UnconfiguredReturnsErrNotConfigured(t *testing.T) {
	c := NewClient(zap.NewNop().Sugar(), &cfgpkg.Config{})

	_, err := c.CreateCheckoutSession(context.Background(), CheckoutInput{UserID: "u1"})
	require.ErrorIs(t, err, ErrNotConfigured)

	_, err = c.CreatePortalSession(context.Background(), "cus_1")
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestNewClient_MissingPriceIsNotConfigured(t *testing.T) {
	cfg := &cfgpkg.Config{}
	cfg.Stripe.SecretKey = "sk_test_x"
	cfg.Stripe.FrontendURL = "https://app.example.com/"
	c := NewClient(zap.NewNop().Sugar(), cfg)

	_, err := c.CreateCheckoutSession(context.Background(), CheckoutInput{UserID: "u1"})
	require.ErrorIs(t, err, ErrNotConfigured)
	require.Equal(t, "https://app.example.com", c.(*apiClient).frontendURL)
}

type capturedCall struct {
	path string
	form url.Values
}

// fakeStripe answers every call with a session whose url echoes the path.
func fakeStripe(t *testing.T) (*stripe.Backends, <-chan capturedCall) {
	t.Helper()
	calls := make(chan capturedCall, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		calls <- capturedCall{path: r.URL.Path, form: r.PostForm}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"sess_1","url":"https://stripe.example` + r.URL.Path + `"}`))
	}))
	t.Cleanup(srv.Close)

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		HTTPClient:        srv.Client(),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	return &stripe.Backends{API: backend, Connect: backend, Uploads: backend}, calls
}

func configured() *cfgpkg.Config {
	cfg := &cfgpkg.Config{}
	cfg.Stripe.SecretKey = "sk_test_x"
	cfg.Stripe.PriceID = "price_premium"
	cfg.Stripe.FrontendURL = "https://app.example.com"
	return cfg
}

func TestCreateCheckoutSession_TagsUserOnSessionAndSubscription(t *testing.T) {
	backends, calls := fakeStripe(t)
	c := newAPIClient(zap.NewNop().Sugar(), configured(), backends)

	u, err := c.CreateCheckoutSession(context.Background(), CheckoutInput{UserID: "u1", CustomerID: "cus_1"})
	require.NoError(t, err)
	require.Equal(t, "https://stripe.example/v1/checkout/sessions", u)

	call := <-calls
	require.Equal(t, "/v1/checkout/sessions", call.path)
	require.Equal(t, "u1", call.form.Get("metadata["+MetadataUserID+"]"))
	require.Equal(t, "u1", call.form.Get("subscription_data[metadata]["+MetadataUserID+"]"))
	require.Equal(t, "u1", call.form.Get("client_reference_id"))
	require.Equal(t, "cus_1", call.form.Get("customer"))
	require.Equal(t, "subscription", call.form.Get("mode"))
	require.Equal(t, "price_premium", call.form.Get("line_items[0][price]"))
	require.Equal(t, "https://app.example.com/billing/success", call.form.Get("success_url"))
}

func TestCreateCheckoutSession_NewCustomerOmitsCustomer(t *testing.T) {
	backends, calls := fakeStripe(t)
	c := newAPIClient(zap.NewNop().Sugar(), configured(), backends)

	_, err := c.CreateCheckoutSession(context.Background(), CheckoutInput{UserID: "u2"})
	require.NoError(t, err)

	call := <-calls
	_, ok := call.form["customer"]
	require.False(t, ok)
	require.Equal(t, "u2", call.form.Get("subscription_data[metadata]["+MetadataUserID+"]"))
}

func TestCreatePortalSession(t *testing.T) {
	backends, calls := fakeStripe(t)
	c := newAPIClient(zap.NewNop().Sugar(), configured(), backends)

	u, err := c.CreatePortalSession(context.Background(), "cus_1")
	require.NoError(t, err)
	require.Equal(t, "https://stripe.example/v1/billing_portal/sessions", u)

	call := <-calls
	require.Equal(t, "cus_1", call.form.Get("customer"))
	require.Equal(t, "https://app.example.com/settings/billing", call.form.Get("return_url"))
}
