package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/stripe/stripe-go/v79"
	stripewebhook "github.com/stripe/stripe-go/v79/webhook"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	notificationlog "github.com/fatflowers/lingobill/internal/app/service/notification_log"
	"github.com/fatflowers/lingobill/internal/app/service/subscription"
	models "github.com/fatflowers/lingobill/internal/models"
	"github.com/fatflowers/lingobill/internal/platform/sentry"
	"github.com/fatflowers/lingobill/pkg/clock"
	"github.com/fatflowers/lingobill/pkg/config"
	"github.com/fatflowers/lingobill/pkg/logctx"
	"github.com/fatflowers/lingobill/pkg/metrics"
	"github.com/fatflowers/lingobill/pkg/types"
)

var (
	ErrNotConfigured    = errors.New("webhook: provider credentials not configured")
	ErrMissingSignature = errors.New("webhook: missing signature header")
	ErrInvalidSignature = errors.New("webhook: signature verification failed")
)

// Outcome describes what Apply did with an event.
type Outcome struct {
	Status models.WebhookEventLogStatus `json:"status"`
	UserID string                       `json:"user_id,omitempty"`
	Action string                       `json:"action"`
}

type Reconciler struct {
	stripeCfg config.StripeConfig
	subs      *subscription.Service
	events    *notificationlog.Service
	reporter  sentry.Reporter
	clock     clock.Clock
	log       *zap.SugaredLogger
}

func NewReconciler(cfg *config.Config, subs *subscription.Service, events *notificationlog.Service, reporter sentry.Reporter, clk clock.Clock, log *zap.SugaredLogger) *Reconciler {
	return &Reconciler{stripeCfg: cfg.Stripe, subs: subs, events: events, reporter: reporter, clock: clk, log: log}
}

var Module = fx.Options(fx.Provide(NewReconciler))

// Verify checks the signature header against the webhook secret before the
// payload is parsed.
func (r *Reconciler) Verify(payload []byte, sigHeader string) (stripe.Event, error) {
	if r.stripeCfg.WebhookSecret == "" {
		return stripe.Event{}, ErrNotConfigured
	}
	if sigHeader == "" {
		return stripe.Event{}, ErrMissingSignature
	}
	ev, err := stripewebhook.ConstructEventWithOptions(payload, sigHeader, r.stripeCfg.WebhookSecret,
		stripewebhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return stripe.Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return ev, nil
}

// Handle verifies, decodes and applies one delivery, logging it in
// webhook_event_logs. Every event that verifies and decodes is acknowledged
// unless applying it failed.
func (r *Reconciler) Handle(ctx context.Context, payload []byte, sigHeader string) (*Outcome, error) {
	lg := logctx.FromCtx(ctx, r.log)
	if !r.stripeCfg.Configured() {
		lg.Errorw("webhook_not_configured")
		return nil, ErrNotConfigured
	}

	raw, err := r.Verify(payload, sigHeader)
	if err != nil {
		lg.Warnw("webhook_signature_rejected", "err", err)
		metrics.Inc(metrics.WebhookEvents, "unverified", "rejected")
		return nil, err
	}

	ev, err := Decode(raw)
	if err != nil {
		lg.Warnw("webhook_malformed", "event_id", raw.ID, "type", raw.Type, "err", err)
		r.saveLog(ctx, raw, "", models.WebhookEventLogStatusHandleFailed, map[string]any{"error": err.Error()})
		metrics.Inc(metrics.WebhookEvents, string(raw.Type), "malformed")
		return nil, err
	}

	r.saveLog(ctx, raw, "", models.WebhookEventLogStatusReceived, nil)

	out, err := r.Apply(ctx, ev)
	if err != nil {
		lg.Errorw("webhook_apply_failed", "event_id", raw.ID, "type", raw.Type, "err", err)
		r.saveLog(ctx, raw, "", models.WebhookEventLogStatusHandleFailed, map[string]any{"error": err.Error()})
		r.reporter.CaptureError(ctx, err, map[string]string{"webhook_event_type": string(raw.Type), "webhook_event_id": raw.ID})
		metrics.Inc(metrics.WebhookEvents, string(raw.Type), "failed")
		return nil, err
	}

	r.saveLog(ctx, raw, out.UserID, out.Status, map[string]any{"outcome": out})
	metrics.Inc(metrics.WebhookEvents, string(raw.Type), string(out.Status))
	return out, nil
}

// Apply mutates the subscription store for ev. Every mutation is an upsert
// keyed by user id, so redelivery of the same event is safe.
func (r *Reconciler) Apply(ctx context.Context, ev Event) (*Outcome, error) {
	lg := logctx.FromCtx(ctx, r.log).With("event_id", ev.EventMeta().ID, "event_type", ev.EventMeta().Type)

	switch e := ev.(type) {
	case CheckoutCompleted:
		if e.UserID == "" {
			lg.Warnw("webhook_unattributed", "customer_id", e.CustomerID, "subscription_id", e.SubscriptionID)
			return &Outcome{Status: models.WebhookEventLogStatusIgnored, Action: "unattributed"}, nil
		}
		tier, status := types.TierPremium, types.SubscriptionStatusActive
		patch := subscription.Patch{Tier: &tier, Status: &status, ClearExpiresAt: true, ClearPromoCode: true}
		if e.CustomerID != "" {
			patch.StripeCustomerID = lo.ToPtr(e.CustomerID)
		}
		if e.SubscriptionID != "" {
			patch.StripeSubscriptionID = lo.ToPtr(e.SubscriptionID)
		}
		if _, err := r.subs.UpsertSubscription(ctx, e.UserID, patch, types.SubscriptionChangeReasonCheckout); err != nil {
			return nil, err
		}
		lg.Infow("webhook_checkout_applied", "user_id", e.UserID)
		return &Outcome{Status: models.WebhookEventLogStatusHandled, UserID: e.UserID, Action: "premium_activated"}, nil

	case SubscriptionDeleted:
		userID, err := r.resolveUser(ctx, e.UserID, e.SubscriptionID)
		if err != nil {
			return nil, err
		}
		if userID == "" {
			lg.Warnw("webhook_unattributed", "subscription_id", e.SubscriptionID, "customer_id", e.CustomerID)
			return &Outcome{Status: models.WebhookEventLogStatusIgnored, Action: "unattributed"}, nil
		}
		tier, status := types.TierFree, types.SubscriptionStatusCancelled
		if _, err := r.subs.UpsertSubscription(ctx, userID, subscription.Patch{Tier: &tier, Status: &status}, types.SubscriptionChangeReasonStripeCancel); err != nil {
			return nil, err
		}
		lg.Infow("webhook_subscription_cancelled", "user_id", userID)
		return &Outcome{Status: models.WebhookEventLogStatusHandled, UserID: userID, Action: "cancelled"}, nil

	case SubscriptionUpdated:
		userID, err := r.resolveUser(ctx, e.UserID, e.SubscriptionID)
		if err != nil {
			return nil, err
		}
		if userID == "" {
			lg.Warnw("webhook_unattributed", "subscription_id", e.SubscriptionID)
			return &Outcome{Status: models.WebhookEventLogStatusIgnored, Action: "unattributed"}, nil
		}
		status := MapProviderStatus(e.ProviderStatus)
		if _, err := r.subs.UpsertSubscription(ctx, userID, subscription.Patch{Status: &status}, types.SubscriptionChangeReasonStripeUpdate); err != nil {
			return nil, err
		}
		lg.Infow("webhook_subscription_updated", "user_id", userID, "provider_status", e.ProviderStatus, "status", status)
		return &Outcome{Status: models.WebhookEventLogStatusHandled, UserID: userID, Action: "status_" + string(status)}, nil

	case PaymentFailed:
		// No state change yet; dunning is handled by the provider.
		userID, err := r.resolveUser(ctx, "", e.SubscriptionID)
		if err != nil {
			return nil, err
		}
		lg.Warnw("webhook_payment_failed", "user_id", userID, "invoice_id", e.InvoiceID, "subscription_id", e.SubscriptionID)
		return &Outcome{Status: models.WebhookEventLogStatusHandled, UserID: userID, Action: "logged"}, nil

	case Ignored:
		lg.Infow("webhook_ignored")
		return &Outcome{Status: models.WebhookEventLogStatusIgnored, Action: "ignored"}, nil

	default:
		return nil, fmt.Errorf("webhook: no handler for %T", ev)
	}
}

// MapProviderStatus maps a provider subscription status onto ours.
func MapProviderStatus(s stripe.SubscriptionStatus) types.SubscriptionStatus {
	switch s {
	case stripe.SubscriptionStatusActive:
		return types.SubscriptionStatusActive
	case stripe.SubscriptionStatusCanceled:
		return types.SubscriptionStatusCancelled
	default:
		return types.SubscriptionStatusExpired
	}
}

// resolveUser prefers the metadata user id and falls back to the row that
// stores the provider subscription id.
func (r *Reconciler) resolveUser(ctx context.Context, metadataUserID, stripeSubscriptionID string) (string, error) {
	if metadataUserID != "" {
		return metadataUserID, nil
	}
	sub, err := r.subs.FindByStripeSubscriptionID(ctx, stripeSubscriptionID)
	if err != nil {
		return "", err
	}
	if sub == nil {
		return "", nil
	}
	return sub.UserID, nil
}

func (r *Reconciler) saveLog(ctx context.Context, ev stripe.Event, userID string, status models.WebhookEventLogStatus, result map[string]any) {
	entry := &models.WebhookEventLog{
		ProviderID: types.PaymentProviderStripe,
		EventID:    ev.ID,
		EventType:  string(ev.Type),
		TraceID:    logctx.TraceID(ctx),
		EventTime:  r.clock.Now(),
		Status:     status,
	}
	if ev.Created > 0 {
		entry.EventTime = time.Unix(ev.Created, 0).UTC()
	}
	if userID != "" {
		entry.UserID = lo.ToPtr(userID)
	}
	if ev.Data != nil && len(ev.Data.Raw) > 0 {
		entry.Data = datatypes.JSON(ev.Data.Raw)
	}
	if result != nil {
		if b, err := json.Marshal(result); err == nil {
			j := datatypes.JSON(b)
			entry.Result = &j
		}
	}
	r.events.Save(ctx, entry)
}
