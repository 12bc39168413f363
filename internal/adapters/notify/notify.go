// Package notify posts signed lead payloads to an internal webhook.
//
// The body is signed with HMAC-SHA256 over the raw JSON and sent as
// "X-Nurture-Signature: sha256=<hex>".
package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/okian/nurture/internal/adapters/upstream"
	"github.com/okian/nurture/internal/domain/errkind"
)

// SignatureHeader carries the body signature.
const SignatureHeader = "X-Nurture-Signature"

const signaturePrefix = "sha256="

// LeadEvent is the payload posted for a new or updated lead.
type LeadEvent struct {
	Event      string    `json:"event"`
	LeadID     string    `json:"lead_id"`
	Email      string    `json:"email"`
	Name       string    `json:"name,omitempty"`
	Source     string    `json:"source,omitempty"`
	Score      int       `json:"score,omitempty"`
	Tier       string    `json:"tier,omitempty"`
	SequenceID string    `json:"sequence_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Webhook posts signed events. A Webhook with no URL is disabled.
type Webhook struct {
	url    string
	secret string
	http   *upstream.Client
}

// NewWebhook creates a webhook poster.
func NewWebhook(url, secret string, timeout time.Duration) *Webhook {
	return &Webhook{url: url, secret: secret, http: upstream.New("lead_webhook", timeout)}
}

// Enabled reports whether a target URL is configured.
func (w *Webhook) Enabled() bool { return w.url != "" }

// Post sends ev. It is a no-op when the webhook is disabled.
func (w *Webhook) Post(ctx context.Context, ev LeadEvent) error {
	const op = "notify.Post"
	if !w.Enabled() {
		return nil
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode lead event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return errkind.Wrap(op, errkind.ErrUpstream, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if w.secret != "" {
		req.Header.Set(SignatureHeader, Sign(w.secret, body))
	}
	return w.http.Do(req, nil)
}

// Sign returns the signature header value for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a signature header value against body in constant time.
func Verify(secret string, body []byte, header string) bool {
	if secret == "" || !strings.HasPrefix(header, signaturePrefix) {
		return false
	}
	got, err := hex.DecodeString(strings.TrimPrefix(header, signaturePrefix))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}
