// Package service wires scoring, classification, scheduling and dispatch
// into the operations the HTTP API and CLI expose.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/okian/nurture/internal/adapters/llm"
	"github.com/okian/nurture/internal/adapters/notify"
	"github.com/okian/nurture/internal/adapters/payments"
	"github.com/okian/nurture/internal/adapters/repository"
	"github.com/okian/nurture/internal/domain/dedupe"
	"github.com/okian/nurture/internal/domain/errkind"
	"github.com/okian/nurture/internal/domain/gaps"
	"github.com/okian/nurture/internal/domain/model"
	"github.com/okian/nurture/internal/domain/scoring"
	"github.com/okian/nurture/internal/domain/sequence"
	"github.com/okian/nurture/internal/domain/templates"
	"github.com/okian/nurture/pkg/logger"
	"github.com/okian/nurture/pkg/metrics"
)

const (
	minAnalysisLength = 100
	minRating         = 1
	maxRating         = 5
	defaultListLimit  = 50
	maxListLimit      = 500
)

// LLM generates text for the content endpoints.
type LLM interface {
	Summarize(ctx context.Context, text string) (string, error)
	Insights(ctx context.Context, text string) ([]string, error)
	GenerateTitle(ctx context.Context, text string) (string, error)
	DocumentChat(ctx context.Context, document string, conversation []llm.Message) (string, error)
}

// LeadNotifier posts lead events to an internal webhook.
type LeadNotifier interface {
	Post(ctx context.Context, ev notify.LeadEvent) error
}

// PaymentParser verifies and decodes payment webhook deliveries.
type PaymentParser interface {
	Parse(payload []byte, header string) (payments.Event, error)
}

// Service implements the API dependencies for lead capture and nurture.
type Service struct {
	store      repository.Store
	scorer     *scoring.Scorer
	scheduler  *Scheduler
	dispatcher *Dispatcher
	renderer   *templates.Registry
	deduper    dedupe.Deduper

	llm      LLM
	mailer   Sender
	notifier LeadNotifier
	payments PaymentParser

	gapCount          int
	notifyEmail       string
	dispatchOnCapture bool
	now               func() time.Time

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithScorer sets the scorer built from configured weights.
func WithScorer(s *scoring.Scorer) Option {
	return func(svc *Service) {
		if s != nil {
			svc.scorer = s
		}
	}
}

// WithGapCount sets how many gaps are reported per assessment.
func WithGapCount(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.gapCount = n
		}
	}
}

// WithDispatcher sets the dispatcher used by sweeps and capture-time dispatch.
func WithDispatcher(d *Dispatcher) Option {
	return func(s *Service) { s.dispatcher = d }
}

// WithLLM sets the content-generation provider.
func WithLLM(l LLM) Option {
	return func(s *Service) { s.llm = l }
}

// WithOwnerNotification sends an email to address on every new lead.
func WithOwnerNotification(mailer Sender, address string) Option {
	return func(s *Service) {
		s.mailer = mailer
		s.notifyEmail = address
	}
}

// WithLeadNotifier sets the signed lead webhook.
func WithLeadNotifier(n LeadNotifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithPayments sets the payment webhook parser.
func WithPayments(p PaymentParser) Option {
	return func(s *Service) { s.payments = p }
}

// WithDeduper sets the in-memory payment event deduper.
func WithDeduper(d dedupe.Deduper) Option {
	return func(s *Service) {
		if d != nil {
			s.deduper = d
		}
	}
}

// WithDispatchOnCapture runs a sweep right after capture endpoints schedule
// sends, so zero-offset steps go out without waiting for the next trigger.
func WithDispatchOnCapture(enabled bool) Option {
	return func(s *Service) { s.dispatchOnCapture = enabled }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service on store. renderer is shared with the dispatcher.
func New(store repository.Store, renderer *templates.Registry, opts ...Option) *Service {
	s := &Service{
		store:    store,
		renderer: renderer,
		scorer:   scoring.NewScorer(),
		deduper:  dedupe.NewInMemoryDeduper(),
		gapCount: gaps.DefaultCount,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.scheduler = NewScheduler(store, s.logger.Named("scheduler"))
	return s
}

// NormalizeEmail lowercases and trims an address and checks its shape.
func NormalizeEmail(op, raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", errkind.Validation(op, "email is required")
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return "", errkind.Validation(op, "email is invalid")
	}
	return email, nil
}

// LeadInput is a contact-form submission.
type LeadInput struct {
	Name    string
	Email   string
	Phone   string
	Source  string
	Message string
}

// CaptureResult reports a lead capture.
type CaptureResult struct {
	Lead      model.Lead
	Created   bool
	Scheduled int
	// Warnings holds best-effort side effects that failed; each wraps
	// errkind.ErrNonFatal.
	Warnings []error
}

// CaptureLead stores a contact-form lead and starts the general sequence for
// leads that have none yet.
func (s *Service) CaptureLead(ctx context.Context, in LeadInput) (CaptureResult, error) {
	const op = "service.CaptureLead"
	email, err := NormalizeEmail(op, in.Email)
	if err != nil {
		return CaptureResult{}, err
	}
	source := strings.TrimSpace(in.Source)
	if source == "" {
		source = "contact"
	}

	res, err := s.captureLead(ctx, model.Lead{Email: email, Name: in.Name, Phone: in.Phone, Source: source})
	if err != nil {
		return CaptureResult{}, err
	}
	if msg := strings.TrimSpace(in.Message); msg != "" {
		if err := s.store.AddContactMessage(ctx, model.ContactMessage{LeadID: res.Lead.ID, Source: source, Message: msg}); err != nil {
			return CaptureResult{}, errkind.Wrap(op, errkind.ErrUpstream, err)
		}
	}

	if res.Created {
		res.Warnings = append(res.Warnings, s.notifyOwner(ctx, res.Lead, in.Message))
	}
	res.Warnings = append(res.Warnings, s.afterCapture(ctx, "lead.captured", res.Lead)...)
	res.Warnings = compact(res.Warnings)
	return res, nil
}

// Subscribe records a newsletter sign-up. created is false for addresses
// already subscribed, which is not an error.
func (s *Service) Subscribe(ctx context.Context, rawEmail, source, leadMagnet string) (bool, error) {
	const op = "service.Subscribe"
	email, err := NormalizeEmail(op, rawEmail)
	if err != nil {
		return false, err
	}
	if source = strings.TrimSpace(source); source == "" {
		source = "newsletter"
	}
	created, err := s.store.AddSubscriber(ctx, model.Subscriber{Email: email, Source: source, LeadMagnet: leadMagnet})
	if err != nil {
		return false, errkind.Wrap(op, errkind.ErrUpstream, err)
	}
	if !created {
		return false, nil
	}

	res, err := s.captureLead(ctx, model.Lead{Email: email, Source: source})
	if err != nil {
		return false, err
	}
	for _, w := range compact(s.afterCapture(ctx, "lead.subscribed", res.Lead)) {
		s.logger.Warn(ctx, "subscribe side effect failed", logger.Error(w))
	}
	return true, nil
}

func (s *Service) captureLead(ctx context.Context, lead model.Lead) (CaptureResult, error) {
	const op = "service.captureLead"
	stored, created, err := s.store.UpsertLead(ctx, lead)
	if err != nil {
		return CaptureResult{}, errkind.Wrap(op, errkind.ErrUpstream, err)
	}
	if created {
		metrics.RecordLeadCaptured(lead.Source)
	}

	res := CaptureResult{Lead: stored, Created: created}
	if stored.SequenceID != "" {
		return res, nil
	}

	stored.SequenceID = model.SequenceGeneral
	if err := s.store.RecordAssessment(ctx, stored.ID, repository.Assessment{
		Ratings:    stored.Ratings,
		Score:      stored.Score,
		Tier:       stored.Tier,
		SequenceID: stored.SequenceID,
		Profile:    stored.Profile,
	}); err != nil {
		return CaptureResult{}, errkind.Wrap(op, errkind.ErrUpstream, err)
	}
	n, err := s.scheduler.Schedule(ctx, stored, stored.SequenceID, s.now())
	if err != nil {
		return CaptureResult{}, errkind.Wrap(op, errkind.ErrUpstream, err)
	}
	res.Lead, res.Scheduled = stored, n
	return res, nil
}

// DiagnosticResult is the pure scoring outcome for a set of answers.
type DiagnosticResult struct {
	Score           int
	Tier            scoring.Tier
	WeightedAverage float64
	TopGaps         []string
	Roadmap         []string
}

// Diagnose scores answers without persisting anything.
func (s *Service) Diagnose(answers model.Ratings) (DiagnosticResult, error) {
	if err := validateRatings("service.Diagnose", answers); err != nil {
		return DiagnosticResult{}, err
	}
	r := s.scorer.Score(answers)
	return DiagnosticResult{
		Score:           r.Score,
		Tier:            r.Tier,
		WeightedAverage: r.WeightedAverage,
		TopGaps:         gaps.Extract(answers, s.gapCount),
		Roadmap:         scoring.Roadmap(r.Tier),
	}, nil
}

func validateRatings(op string, answers model.Ratings) error {
	for _, a := range answers {
		if strings.TrimSpace(a.Category) == "" {
			return errkind.Validation(op, "answer category is empty")
		}
		if a.Value < minRating || a.Value > maxRating {
			return errkind.Validation(op, fmt.Sprintf("rating for %q must be between %d and %d", a.Category, minRating, maxRating))
		}
	}
	return nil
}

// AssessmentInput is a completed assessment.
type AssessmentInput struct {
	Email   string
	Name    string
	Phone   string
	Source  string
	Answers model.Ratings
	Profile model.Profile
}

// AssessmentResult reports an assessment completion.
type AssessmentResult struct {
	Lead       model.Lead
	Diagnostic DiagnosticResult
	Sequence   model.SequenceID
	Scheduled  int
	Warnings   []error
}

// CompleteAssessment scores, classifies and stores a lead, then schedules its
// sequence. Resubmitting schedules only steps not scheduled before.
func (s *Service) CompleteAssessment(ctx context.Context, in AssessmentInput) (AssessmentResult, error) {
	const op = "service.CompleteAssessment"
	email, err := NormalizeEmail(op, in.Email)
	if err != nil {
		return AssessmentResult{}, err
	}
	in.Profile.SpiritualOpenness = in.Profile.SpiritualOpenness.Normalize()
	if !in.Profile.SpiritualOpenness.Valid() {
		return AssessmentResult{}, errkind.Validation(op, "spiritual_openness must be high, moderate or low")
	}
	diag, err := s.Diagnose(in.Answers)
	if err != nil {
		return AssessmentResult{}, err
	}
	seq := sequence.Classify(in.Profile)

	source := strings.TrimSpace(in.Source)
	if source == "" {
		source = "assessment"
	}
	lead, created, err := s.store.UpsertLead(ctx, model.Lead{Email: email, Name: in.Name, Phone: in.Phone, Source: source})
	if err != nil {
		return AssessmentResult{}, errkind.Wrap(op, errkind.ErrUpstream, err)
	}
	if created {
		metrics.RecordLeadCaptured(source)
	}
	if err := s.store.RecordAssessment(ctx, lead.ID, repository.Assessment{
		Ratings:    in.Answers,
		Score:      diag.Score,
		Tier:       string(diag.Tier),
		SequenceID: seq,
		Profile:    in.Profile,
	}); err != nil {
		return AssessmentResult{}, errkind.Wrap(op, errkind.ErrUpstream, err)
	}
	metrics.RecordLeadScored(string(diag.Tier))

	lead.Ratings, lead.Score, lead.Tier, lead.SequenceID, lead.Profile = in.Answers, diag.Score, string(diag.Tier), seq, in.Profile
	n, err := s.scheduler.Schedule(ctx, lead, seq, s.now())
	if err != nil {
		return AssessmentResult{}, errkind.Wrap(op, errkind.ErrUpstream, err)
	}

	res := AssessmentResult{Lead: lead, Diagnostic: diag, Sequence: seq, Scheduled: n}
	res.Warnings = compact(s.afterCapture(ctx, "lead.assessed", lead))
	return res, nil
}

// afterCapture runs the best-effort steps shared by capture paths.
func (s *Service) afterCapture(ctx context.Context, event string, lead model.Lead) []error {
	warnings := []error{s.postLeadEvent(ctx, event, lead)}
	if s.dispatchOnCapture && s.dispatcher != nil {
		if _, err := s.dispatcher.Sweep(ctx); err != nil {
			warnings = append(warnings, s.nonFatal(ctx, "capture dispatch", err))
		}
	}
	return warnings
}

func (s *Service) notifyOwner(ctx context.Context, lead model.Lead, message string) error {
	if s.mailer == nil || s.notifyEmail == "" {
		return nil
	}
	msg, err := s.renderer.Render(templates.OwnerNewLead, model.ChannelEmail, templates.Data{
		Name:    lead.Name,
		Email:   lead.Email,
		Source:  lead.Source,
		Message: message,
	})
	if err == nil {
		err = s.mailer.Send(ctx, s.notifyEmail, msg)
	}
	if err != nil {
		return s.nonFatal(ctx, "owner notification", err)
	}
	return nil
}

func (s *Service) postLeadEvent(ctx context.Context, event string, lead model.Lead) error {
	if s.notifier == nil {
		return nil
	}
	err := s.notifier.Post(ctx, notify.LeadEvent{
		Event:      event,
		LeadID:     lead.ID.String(),
		Email:      lead.Email,
		Name:       lead.Name,
		Source:     lead.Source,
		Score:      lead.Score,
		Tier:       lead.Tier,
		SequenceID: string(lead.SequenceID),
		OccurredAt: s.now().UTC(),
	})
	if err != nil {
		return s.nonFatal(ctx, "lead webhook", err)
	}
	return nil
}

func (s *Service) nonFatal(ctx context.Context, op string, err error) error {
	s.logger.Warn(ctx, "best-effort step failed", logger.String("step", op), logger.Error(err))
	return errkind.Wrap(op, errkind.ErrNonFatal, err)
}

// TrackEngagement stamps last_engagement_at for a known lead.
func (s *Service) TrackEngagement(ctx context.Context, rawEmail, event string) error {
	const op = "service.TrackEngagement"
	email, err := NormalizeEmail(op, rawEmail)
	if err != nil {
		return err
	}
	if err := s.store.TouchEngagement(ctx, email, s.now()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errkind.New(op, errkind.ErrNotFound)
		}
		return errkind.Wrap(op, errkind.ErrUpstream, err)
	}
	s.logger.Debug(ctx, "engagement tracked", logger.String("event", event))
	return nil
}

// Summarize condenses text of at least 100 characters.
func (s *Service) Summarize(ctx context.Context, text string) (string, error) {
	text, err := s.analysisText("service.Summarize", text)
	if err != nil {
		return "", err
	}
	return s.llm.Summarize(ctx, text)
}

// Insights extracts insights from text of at least 100 characters.
func (s *Service) Insights(ctx context.Context, text string) ([]string, error) {
	text, err := s.analysisText("service.Insights", text)
	if err != nil {
		return nil, err
	}
	return s.llm.Insights(ctx, text)
}

// GenerateTitle proposes a title for text.
func (s *Service) GenerateTitle(ctx context.Context, text string) (string, error) {
	const op = "service.GenerateTitle"
	if strings.TrimSpace(text) == "" {
		return "", errkind.Validation(op, "text is required")
	}
	if s.llm == nil {
		return "", errkind.New(op, errkind.ErrUpstream)
	}
	return s.llm.GenerateTitle(ctx, strings.TrimSpace(text))
}

// DocumentChat answers the conversation about document.
func (s *Service) DocumentChat(ctx context.Context, document string, conversation []llm.Message) (string, error) {
	const op = "service.DocumentChat"
	if len(conversation) == 0 {
		return "", errkind.Validation(op, "conversation is required")
	}
	last := conversation[len(conversation)-1]
	if strings.TrimSpace(last.Content) == "" {
		return "", errkind.Validation(op, "last message is empty")
	}
	if s.llm == nil {
		return "", errkind.New(op, errkind.ErrUpstream)
	}
	return s.llm.DocumentChat(ctx, document, conversation)
}

func (s *Service) analysisText(op, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errkind.Validation(op, "text is required")
	}
	if len([]rune(text)) < minAnalysisLength {
		return "", errkind.Validation(op, fmt.Sprintf("text must be at least %d characters", minAnalysisLength))
	}
	if s.llm == nil {
		return "", errkind.New(op, errkind.ErrUpstream)
	}
	return text, nil
}

// PaymentResult reports a payment webhook delivery.
type PaymentResult struct {
	EventID   string
	Type      string
	Handled   bool
	Duplicate bool
}

// HandlePaymentWebhook verifies and applies one payment event. Invalid
// signatures fail with a validation error before anything is written.
// Redelivered events are acknowledged without being applied again.
func (s *Service) HandlePaymentWebhook(ctx context.Context, payload []byte, signature string) (PaymentResult, error) {
	const op = "service.HandlePaymentWebhook"
	if s.payments == nil {
		return PaymentResult{}, errkind.New(op, errkind.ErrUpstream)
	}
	ev, err := s.payments.Parse(payload, signature)
	if err != nil {
		metrics.RecordWebhookEvent("unknown", "rejected")
		return PaymentResult{}, err
	}
	res := PaymentResult{EventID: ev.Payment.EventID, Type: ev.Payment.Type}

	if s.deduper.SeenAndRecord(ctx, ev.Payment.EventID) {
		metrics.RecordWebhookEvent(res.Type, "duplicate")
		res.Duplicate = true
		return res, nil
	}

	res.Handled, res.Duplicate, err = s.applyPayment(ctx, ev)
	if err != nil {
		s.deduper.Unrecord(ctx, ev.Payment.EventID)
		metrics.RecordWebhookEvent(res.Type, "error")
		return PaymentResult{}, err
	}
	switch {
	case res.Duplicate:
		metrics.RecordWebhookEvent(res.Type, "duplicate")
	case res.Handled:
		metrics.RecordWebhookEvent(res.Type, "handled")
	default:
		metrics.RecordWebhookEvent(res.Type, "ignored")
	}
	return res, nil
}

func (s *Service) applyPayment(ctx context.Context, ev payments.Event) (handled, duplicate bool, err error) {
	const op = "service.applyPayment"
	fields := []logger.Field{
		logger.String("event_id", ev.Payment.EventID),
		logger.String("type", ev.Payment.Type),
	}
	if ev.Kind == payments.KindIgnored {
		s.logger.Info(ctx, "payment event ignored", fields...)
		return false, false, nil
	}

	created, err := s.store.RecordPaymentEvent(ctx, ev.Payment)
	if err != nil {
		return false, false, errkind.Wrap(op, errkind.ErrUpstream, err)
	}
	if !created {
		return false, true, nil
	}

	switch ev.Kind {
	case payments.KindCheckoutCompleted:
		if ev.Payment.Email == "" {
			s.logger.Warn(ctx, "checkout without customer email", fields...)
			break
		}
		err := s.store.MarkCustomer(ctx, ev.Payment.Email)
		if errors.Is(err, repository.ErrNotFound) {
			_, _, err = s.store.UpsertLead(ctx, model.Lead{Email: ev.Payment.Email, Source: "checkout"})
			if err == nil {
				err = s.store.MarkCustomer(ctx, ev.Payment.Email)
			}
		}
		if err != nil {
			return false, false, errkind.Wrap(op, errkind.ErrUpstream, err)
		}
		s.logger.Info(ctx, "checkout completed", append(fields, logger.Int64("amount", ev.Payment.Amount))...)
	case payments.KindSubscriptionChanged:
		s.logger.Info(ctx, "subscription changed", append(fields, logger.String("status", ev.Payment.Status))...)
	case payments.KindPaymentFailed:
		s.logger.Warn(ctx, "invoice payment failed", append(fields, logger.String("email", ev.Payment.Email))...)
	}
	return true, false, nil
}

// Dispatch runs one delivery sweep.
func (s *Service) Dispatch(ctx context.Context) (Summary, error) {
	if s.dispatcher == nil {
		return Summary{}, errkind.New("service.Dispatch", errkind.ErrUpstream)
	}
	sum, err := s.dispatcher.Sweep(ctx)
	if err != nil {
		return Summary{}, errkind.Wrap("service.Dispatch", errkind.ErrUpstream, err)
	}
	return sum, nil
}

// DispatchStatus counts scheduled sends by state as of now.
func (s *Service) DispatchStatus(ctx context.Context) (model.SendCounts, error) {
	counts, err := s.store.CountSends(ctx, s.now())
	if err != nil {
		return model.SendCounts{}, errkind.Wrap("service.DispatchStatus", errkind.ErrUpstream, err)
	}
	return counts, nil
}

// ListLeads returns recent leads for admins.
func (s *Service) ListLeads(ctx context.Context, limit int) ([]model.Lead, error) {
	leads, err := s.store.ListLeads(ctx, clampLimit(limit))
	if err != nil {
		return nil, errkind.Wrap("service.ListLeads", errkind.ErrUpstream, err)
	}
	return leads, nil
}

// ListSends returns scheduled sends for admins, optionally by status.
func (s *Service) ListSends(ctx context.Context, status model.SendStatus, limit int) ([]model.ScheduledSend, error) {
	const op = "service.ListSends"
	switch status {
	case "", model.StatusPending, model.StatusInFlight, model.StatusSent, model.StatusFailed:
	default:
		return nil, errkind.Validation(op, fmt.Sprintf("unknown status %q", status))
	}
	sends, err := s.store.ListSends(ctx, status, clampLimit(limit))
	if err != nil {
		return nil, errkind.Wrap(op, errkind.ErrUpstream, err)
	}
	return sends, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return min(limit, maxListLimit)
}

func compact(errs []error) []error {
	out := errs[:0]
	for _, e := range errs {
		if e != nil {
			out = append(out, e)
		}
	}
	return out
}
