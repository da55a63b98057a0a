package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatflowers/lingobill/pkg/types"
	"github.com/stretchr/testify/require"
)

func TestNew_DefaultsAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "test.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
server:
  port: 9999
stripe:
  price_id: price_123
quota:
  vocal_on_error: open
`), 0o600))

	t.Setenv("APP_CONFIG_FILE", file)
	t.Setenv("APP_STRIPE_WEBHOOK_SECRET", "whsec_env")

	c, err := New()
	require.NoError(t, err)
	require.Equal(t, 9999, c.Server.Port)
	require.Equal(t, "0.0.0.0", c.Server.Host)
	require.Equal(t, "price_123", c.Stripe.PriceID)
	require.Equal(t, "whsec_env", c.Stripe.WebhookSecret)
	require.False(t, c.Stripe.Configured())
	require.Equal(t, types.FailClosed, c.Quota.UploadOnError)
	require.Equal(t, types.FailOpen, c.Quota.VocalOnError)
	require.Equal(t, time.Minute, c.Promo.RedeemRateWindow)
	require.Equal(t, 15*time.Minute, c.Sweeper.Interval)
}

func TestValidate_RejectsUnknownFailurePolicy(t *testing.T) {
	c := &Config{Quota: QuotaConfig{UploadOnError: types.FailClosed, VocalOnError: "maybe"}}
	err := c.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "quota.vocal_on_error")
}

func TestValidate_ProdRequiresJWTSecret(t *testing.T) {
	c := &Config{Env: EnvProd, Quota: QuotaConfig{UploadOnError: types.FailClosed, VocalOnError: types.FailClosed}}
	require.Error(t, c.Validate())
	c.Auth.JWTSecret = "secret"
	require.NoError(t, c.Validate())
}
