package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/okian/nurture/internal/domain/errkind"
)

// Identity and shared-secret headers.
const (
	AdminHeader         = "X-Admin-Email"
	WebhookSecretHeader = "X-Webhook-Secret"
)

// Authorizer checks admin identity against a static allow-list and cron
// callers against shared secrets. One instance is shared by every handler.
type Authorizer struct {
	admins        map[string]struct{}
	cronSecret    string
	webhookSecret string
}

// NewAuthorizer creates an authorizer. Empty secrets never match.
func NewAuthorizer(adminEmails []string, cronSecret, webhookSecret string) *Authorizer {
	a := &Authorizer{
		admins:        make(map[string]struct{}, len(adminEmails)),
		cronSecret:    cronSecret,
		webhookSecret: webhookSecret,
	}
	for _, e := range adminEmails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			a.admins[e] = struct{}{}
		}
	}
	return a
}

// Admin authorizes r as an admin read. The identity comes from the
// X-Admin-Email header set by the fronting auth proxy.
func (a *Authorizer) Admin(r *http.Request, op string) error {
	email := strings.ToLower(strings.TrimSpace(r.Header.Get(AdminHeader)))
	if email == "" {
		return errkind.Wrap(op, errkind.ErrAuth, ErrMissingIdentity)
	}
	if _, ok := a.admins[email]; !ok {
		return errkind.Wrap(op, errkind.ErrForbidden, ErrNotAdmin)
	}
	return nil
}

// Cron reports whether r carries the cron bearer token or the shared
// webhook secret header.
func (a *Authorizer) Cron(r *http.Request) bool {
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok && secretEqual(token, a.cronSecret) {
		return true
	}
	return secretEqual(r.Header.Get(WebhookSecretHeader), a.webhookSecret)
}

func secretEqual(got, want string) bool {
	if got == "" || want == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
