// Package bootstrap builds the service graph from configuration. The HTTP
// server and the operator CLI share it so both run with the same providers.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"

	"github.com/okian/nurture/internal/adapters/email"
	"github.com/okian/nurture/internal/adapters/http/api"
	"github.com/okian/nurture/internal/adapters/http/swagger"
	"github.com/okian/nurture/internal/adapters/llm"
	"github.com/okian/nurture/internal/adapters/notify"
	"github.com/okian/nurture/internal/adapters/payments"
	"github.com/okian/nurture/internal/adapters/repository"
	"github.com/okian/nurture/internal/adapters/sms"
	service "github.com/okian/nurture/internal/app"
	"github.com/okian/nurture/internal/config"
	"github.com/okian/nurture/internal/domain/dedupe"
	"github.com/okian/nurture/internal/domain/model"
	"github.com/okian/nurture/internal/domain/scoring"
	"github.com/okian/nurture/internal/domain/templates"
	"github.com/okian/nurture/pkg/logger"
)

// OpenStore opens the configured database with the upstream timeout applied
// to every query.
func OpenStore(ctx context.Context, cfg *config.Config) (*repository.SQLiteStore, error) {
	store, err := repository.Open(ctx, cfg.DatabasePath, repository.WithQueryTimeout(cfg.UpstreamTimeout()))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return store, nil
}

// Scorer returns a scorer using the configured weights.
func Scorer(cfg *config.Config) *scoring.Scorer {
	return scoring.NewScorer(scoring.WithWeights(cfg.CategoryWeights, cfg.DefaultCategoryWeight))
}

// NewService builds the application service and its collaborators from
// cfg. Providers without credentials are left out; the operations that
// need them report an upstream error.
func NewService(cfg *config.Config, store repository.Store, log logger.Logger) (*service.Service, error) {
	renderer, err := templates.New()
	if err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}
	timeout := cfg.UpstreamTimeout()

	senders := map[model.Channel]service.Sender{}
	var mailer *email.Sender
	if cfg.EmailEnabled() {
		mailer = email.New(cfg.Email.APIKey, cfg.Email.BaseURL, cfg.Email.From, timeout)
		senders[model.ChannelEmail] = mailer
	} else {
		log.Warn(context.Background(), "email provider not configured; email sends will fail")
	}
	if cfg.SMSEnabled() {
		senders[model.ChannelSMS] = sms.New(cfg.SMS.AccountSID, cfg.SMS.AuthToken, cfg.SMS.From, cfg.SMS.BaseURL, timeout)
	}

	dispatcher := service.NewDispatcher(store, renderer, senders,
		service.WithBatchSize(cfg.DispatchBatchSize),
		service.WithDispatchWorkers(cfg.DispatchWorkers),
		service.WithDispatchLogger(log.Named("dispatcher")),
	)

	opts := []service.Option{
		service.WithLogger(log.Named("service")),
		service.WithScorer(Scorer(cfg)),
		service.WithGapCount(cfg.GapCount),
		service.WithDispatcher(dispatcher),
		service.WithDispatchOnCapture(cfg.DispatchOnCapture),
		service.WithDeduper(dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(cfg.DedupeSize))),
		service.WithPayments(payments.NewVerifier(cfg.Stripe.WebhookSecret)),
	}
	if cfg.LLM.APIKey != "" {
		opts = append(opts, service.WithLLM(llm.New(cfg.LLM.APIKey,
			llm.WithBaseURL(cfg.LLM.BaseURL),
			llm.WithModel(cfg.LLM.Model),
			llm.WithMaxTokens(cfg.LLM.MaxTokens),
			llm.WithTimeout(timeout),
		)))
	}
	if mailer != nil && cfg.NotifyEmail != "" {
		opts = append(opts, service.WithOwnerNotification(mailer, cfg.NotifyEmail))
	}
	if cfg.LeadWebhookURL != "" {
		opts = append(opts, service.WithLeadNotifier(notify.NewWebhook(cfg.LeadWebhookURL, cfg.WebhookSecret, timeout)))
	}
	return service.New(store, renderer, opts...), nil
}

// NewHandler mounts the API and docs routes behind panic recovery.
func NewHandler(ctx context.Context, cfg *config.Config, svc *service.Service, log logger.Logger) http.Handler {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)

	auth := api.NewAuthorizer(cfg.AdminEmails, cfg.CronSecret, cfg.WebhookSecret)
	api.NewServer(svc, auth, api.WithLogger(log.Named("api"))).Register(ctx, mux)
	return api.RecoverMiddleware(mux, log.Named("http"))
}
