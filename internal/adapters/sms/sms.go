// Package sms delivers text messages through the Twilio Messages API.
package sms

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/okian/nurture/internal/adapters/upstream"
	"github.com/okian/nurture/internal/domain/errkind"
	"github.com/okian/nurture/internal/domain/templates"
)

const defaultBaseURL = "https://api.twilio.com"

// Sender sends SMS.
type Sender struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	http       *upstream.Client
}

// New creates a sender. baseURL may be empty for the default API root.
func New(accountSID, authToken, from, baseURL string, timeout time.Duration) *Sender {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Sender{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		baseURL:    strings.TrimRight(baseURL, "/"),
		http:       upstream.New("sms", timeout),
	}
}

// Send delivers the text body of msg to the phone number to.
func (s *Sender) Send(ctx context.Context, to string, msg templates.Message) error {
	const op = "sms.Send"
	if s.accountSID == "" || s.authToken == "" || s.from == "" {
		return errkind.Wrap(op, errkind.ErrUpstream, upstream.ErrNotConfigured)
	}
	if strings.TrimSpace(to) == "" {
		return errkind.Validation(op, "recipient phone is empty")
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", s.from)
	form.Set("Body", msg.Text)
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.baseURL, url.PathEscape(s.accountSID))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return errkind.Wrap(op, errkind.ErrUpstream, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(s.accountSID, s.authToken)
	return s.http.Do(req, nil)
}
