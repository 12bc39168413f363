// Package email delivers rendered messages through an HTTP email API
// (Resend-compatible: POST {base}/emails with a bearer key).
package email

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/okian/nurture/internal/adapters/upstream"
	"github.com/okian/nurture/internal/domain/errkind"
	"github.com/okian/nurture/internal/domain/templates"
)

const defaultBaseURL = "https://api.resend.com"

// Sender sends email.
type Sender struct {
	apiKey  string
	baseURL string
	from    string
	http    *upstream.Client
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
	HTML    string   `json:"html,omitempty"`
}

// New creates a sender. baseURL may be empty for the default API root.
func New(apiKey, baseURL, from string, timeout time.Duration) *Sender {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Sender{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		from:    from,
		http:    upstream.New("email", timeout),
	}
}

// Send delivers msg to the address to.
func (s *Sender) Send(ctx context.Context, to string, msg templates.Message) error {
	const op = "email.Send"
	if s.apiKey == "" || s.from == "" {
		return errkind.Wrap(op, errkind.ErrUpstream, upstream.ErrNotConfigured)
	}
	if strings.TrimSpace(to) == "" {
		return errkind.Validation(op, "recipient email is empty")
	}
	req, err := upstream.JSONRequest(ctx, http.MethodPost, s.baseURL+"/emails", sendRequest{
		From:    s.from,
		To:      []string{to},
		Subject: msg.Subject,
		Text:    msg.Text,
		HTML:    msg.HTML,
	})
	if err != nil {
		return errkind.Wrap(op, errkind.ErrUpstream, err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	return s.http.Do(req, nil)
}
