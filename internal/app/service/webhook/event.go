package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79"

	stripeplatform "github.com/fatflowers/lingobill/internal/platform/stripe"
)

var ErrMalformedEvent = errors.New("webhook: malformed event object")

// Event is the closed set of provider events the reconciler understands.
// Anything else decodes to Ignored.
type Event interface {
	EventMeta() Meta
	isEvent()
}

type Meta struct {
	ID      string
	Type    string
	Created time.Time
}

func (m Meta) EventMeta() Meta { return m }

type CheckoutCompleted struct {
	Meta
	UserID         string
	CustomerID     string
	SubscriptionID string
}

type SubscriptionDeleted struct {
	Meta
	UserID         string
	SubscriptionID string
	CustomerID     string
}

type SubscriptionUpdated struct {
	Meta
	UserID         string
	SubscriptionID string
	ProviderStatus stripe.SubscriptionStatus
}

type PaymentFailed struct {
	Meta
	InvoiceID      string
	SubscriptionID string
	CustomerID     string
}

type Ignored struct {
	Meta
}

func (CheckoutCompleted) isEvent()   {}
func (SubscriptionDeleted) isEvent() {}
func (SubscriptionUpdated) isEvent() {}
func (PaymentFailed) isEvent()       {}
func (Ignored) isEvent()             {}

// Decode turns a verified provider event into an Event. A known type whose
// object cannot be read is ErrMalformedEvent.
func Decode(ev stripe.Event) (Event, error) {
	meta := Meta{ID: ev.ID, Type: string(ev.Type), Created: time.Unix(ev.Created, 0).UTC()}
	if ev.Data == nil {
		return nil, fmt.Errorf("%w: missing data", ErrMalformedEvent)
	}
	raw := ev.Data.Raw

	switch ev.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(raw, &sess); err != nil {
			return nil, fmt.Errorf("%w: checkout session: %v", ErrMalformedEvent, err)
		}
		userID := metadataUserID(sess.Metadata)
		if userID == "" {
			userID = strings.TrimSpace(sess.ClientReferenceID)
		}
		out := CheckoutCompleted{Meta: meta, UserID: userID}
		if sess.Customer != nil {
			out.CustomerID = sess.Customer.ID
		}
		if sess.Subscription != nil {
			out.SubscriptionID = sess.Subscription.ID
		}
		return out, nil

	case stripe.EventTypeCustomerSubscriptionDeleted, stripe.EventTypeCustomerSubscriptionUpdated:
		var sub stripe.Subscription
		if err := json.Unmarshal(raw, &sub); err != nil {
			return nil, fmt.Errorf("%w: subscription: %v", ErrMalformedEvent, err)
		}
		var customerID string
		if sub.Customer != nil {
			customerID = sub.Customer.ID
		}
		if ev.Type == stripe.EventTypeCustomerSubscriptionDeleted {
			return SubscriptionDeleted{Meta: meta, UserID: metadataUserID(sub.Metadata), SubscriptionID: sub.ID, CustomerID: customerID}, nil
		}
		return SubscriptionUpdated{Meta: meta, UserID: metadataUserID(sub.Metadata), SubscriptionID: sub.ID, ProviderStatus: sub.Status}, nil

	case stripe.EventTypeInvoicePaymentFailed:
		var inv stripe.Invoice
		if err := json.Unmarshal(raw, &inv); err != nil {
			return nil, fmt.Errorf("%w: invoice: %v", ErrMalformedEvent, err)
		}
		out := PaymentFailed{Meta: meta, InvoiceID: inv.ID}
		if inv.Subscription != nil {
			out.SubscriptionID = inv.Subscription.ID
		}
		if inv.Customer != nil {
			out.CustomerID = inv.Customer.ID
		}
		return out, nil

	default:
		return Ignored{Meta: meta}, nil
	}
}

func metadataUserID(md map[string]string) string {
	if md == nil {
		return ""
	}
	return strings.TrimSpace(md[stripeplatform.MetadataUserID])
}
