package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/okian/nurture/internal/adapters/payments"
	service "github.com/okian/nurture/internal/app"
	"github.com/okian/nurture/internal/domain/errkind"
)

// PaymentDependencies defines the interface for payment webhooks.
type PaymentDependencies interface {
	HandlePaymentWebhook(ctx context.Context, payload []byte, signature string) (service.PaymentResult, error)
}

type webhookResponse struct {
	OK        bool `json:"ok"`
	Received  bool `json:"received"`
	Duplicate bool `json:"duplicate,omitempty"`
}

// PaymentsHandler handles payment-processor webhooks.
type PaymentsHandler struct {
	deps PaymentDependencies
	rw   responder
}

// NewPaymentsHandler creates a new payments handler.
func NewPaymentsHandler(deps PaymentDependencies, rw responder) *PaymentsHandler {
	return &PaymentsHandler{deps: deps, rw: rw}
}

// HandleStripeWebhook handles POST /stripe/webhook requests. The raw body is
// verified against the Stripe-Signature header before anything is parsed.
// Event types the service does not act on are acknowledged with 200.
func (h *PaymentsHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	const op = "api.stripe_webhook"
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.rw.error(w, r, errkind.Validation(op, "request body too large"))
			return
		}
		h.rw.error(w, r, errkind.Validation(op, "unreadable request body"))
		return
	}
	res, err := h.deps.HandlePaymentWebhook(r.Context(), payload, r.Header.Get(payments.SignatureHeader))
	if err != nil {
		h.rw.error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, webhookResponse{OK: true, Received: true, Duplicate: res.Duplicate})
}
