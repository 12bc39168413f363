// Package payments verifies and decodes Stripe webhook deliveries.
package payments

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/okian/nurture/internal/domain/errkind"
	"github.com/okian/nurture/internal/domain/model"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

// SignatureHeader is the header Stripe signs deliveries with.
const SignatureHeader = "Stripe-Signature"

// Kind groups the event types the service reacts to.
type Kind int

// Event kinds.
const (
	KindIgnored Kind = iota
	KindCheckoutCompleted
	KindSubscriptionChanged
	KindPaymentFailed
)

// Event is a verified webhook event reduced to what the service stores.
type Event struct {
	Kind    Kind
	Payment model.PaymentEvent
}

// Verifier checks signatures with the endpoint's signing secret.
type Verifier struct {
	secret string
	now    func() time.Time
}

// NewVerifier creates a verifier for secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: secret, now: time.Now}
}

// Parse verifies header against payload and decodes the event. Any failure
// is a validation error: the caller answers 400 and changes nothing.
func (v *Verifier) Parse(payload []byte, header string) (Event, error) {
	const op = "payments.Parse"
	if v.secret == "" || header == "" {
		return Event{}, errkind.Wrap(op, errkind.ErrValidation, ErrInvalidSignature)
	}
	ev, err := webhook.ConstructEventWithOptions(payload, header, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return Event{}, errkind.Wrap(op, errkind.ErrValidation, fmt.Errorf("%w: %v", ErrInvalidSignature, err))
	}
	if ev.ID == "" || ev.Type == "" {
		return Event{}, errkind.Wrap(op, errkind.ErrValidation, ErrMalformedEvent)
	}

	out := Event{Payment: model.PaymentEvent{EventID: ev.ID, Type: string(ev.Type), CreatedAt: v.now().UTC()}}
	if ev.Data == nil {
		return out, nil
	}
	switch ev.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var s stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &s); err != nil {
			return Event{}, malformed(op, err)
		}
		out.Kind = KindCheckoutCompleted
		out.Payment.Reference = s.ID
		out.Payment.Status = string(s.PaymentStatus)
		out.Payment.Amount = s.AmountTotal
		out.Payment.Currency = string(s.Currency)
		out.Payment.Email = checkoutEmail(&s)
	case stripe.EventTypeCustomerSubscriptionCreated,
		stripe.EventTypeCustomerSubscriptionUpdated,
		stripe.EventTypeCustomerSubscriptionDeleted:
		var s stripe.Subscription
		if err := json.Unmarshal(ev.Data.Raw, &s); err != nil {
			return Event{}, malformed(op, err)
		}
		out.Kind = KindSubscriptionChanged
		out.Payment.Reference = s.ID
		out.Payment.Status = string(s.Status)
		out.Payment.Currency = string(s.Currency)
		if s.Customer != nil && s.Customer.Email != "" {
			out.Payment.Email = s.Customer.Email
		} else {
			out.Payment.Email = s.Metadata["email"]
		}
	case stripe.EventTypeInvoicePaymentFailed:
		var inv stripe.Invoice
		if err := json.Unmarshal(ev.Data.Raw, &inv); err != nil {
			return Event{}, malformed(op, err)
		}
		out.Kind = KindPaymentFailed
		out.Payment.Reference = inv.ID
		out.Payment.Status = string(inv.Status)
		out.Payment.Amount = inv.AmountDue
		out.Payment.Currency = string(inv.Currency)
		out.Payment.Email = inv.CustomerEmail
	}
	out.Payment.Email = strings.ToLower(strings.TrimSpace(out.Payment.Email))
	return out, nil
}

func checkoutEmail(s *stripe.CheckoutSession) string {
	if s.CustomerDetails != nil && s.CustomerDetails.Email != "" {
		return s.CustomerDetails.Email
	}
	if s.CustomerEmail != "" {
		return s.CustomerEmail
	}
	return s.Metadata["email"]
}

func malformed(op string, err error) error {
	return errkind.Wrap(op, errkind.ErrValidation, fmt.Errorf("%w: %v", ErrMalformedEvent, err))
}
