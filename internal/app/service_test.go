package service_test

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/okian/nurture/internal/adapters/llm"
	"github.com/okian/nurture/internal/adapters/notify"
	"github.com/okian/nurture/internal/adapters/payments"
	service "github.com/okian/nurture/internal/app"
	"github.com/okian/nurture/internal/domain/errkind"
	"github.com/okian/nurture/internal/domain/model"
	"github.com/okian/nurture/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/stripe/stripe-go/v76/webhook"
)

const stripeSecret = "whsec_service_test"

type fakeLLM struct {
	calls int
}

func (f *fakeLLM) Summarize(ctx context.Context, text string) (string, error) {
	f.calls++
	return "summary", nil
}

func (f *fakeLLM) Insights(ctx context.Context, text string) ([]string, error) {
	f.calls++
	return []string{"one", "two"}, nil
}

func (f *fakeLLM) GenerateTitle(ctx context.Context, text string) (string, error) {
	f.calls++
	return "A Title", nil
}

func (f *fakeLLM) DocumentChat(ctx context.Context, document string, conversation []llm.Message) (string, error) {
	f.calls++
	return "answer", nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []notify.LeadEvent
	err    error
}

func (f *fakeNotifier) Post(ctx context.Context, ev notify.LeadEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return f.err
}

func stripeHeader(payload string) string {
	ts := time.Now()
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(webhook.ComputeSignature(ts, []byte(payload), stripeSecret)))
}

func checkoutPayload(eventID, email string) string {
	return fmt.Sprintf(`{"id":%q,"object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_1","object":"checkout.session","amount_total":9900,"currency":"usd","payment_status":"paid","customer_details":{"email":%q}}}}`, eventID, email)
}

func TestServiceCaptureLead(t *testing.T) {
	Convey("Given a service with owner notification and a lead webhook", t, func() {
		ctx := context.Background()
		store := openStore(t)
		mailer := newFakeSender()
		notifier := &fakeNotifier{}
		svc := service.New(store, registry(t),
			service.WithOwnerNotification(mailer, "owner@example.com"),
			service.WithLeadNotifier(notifier),
		)

		Convey("When the email is missing", func() {
			_, err := svc.CaptureLead(ctx, service.LeadInput{Name: "Ada"})

			Convey("Then it is a validation error", func() {
				So(errors.Is(err, errkind.ErrValidation), ShouldBeTrue)
				So(errkind.Message(err), ShouldEqual, "email is required")
			})
		})

		Convey("When the email is malformed", func() {
			_, err := svc.CaptureLead(ctx, service.LeadInput{Email: "not-an-email"})
			So(errors.Is(err, errkind.ErrValidation), ShouldBeTrue)
		})

		Convey("When a new lead is captured", func() {
			res, err := svc.CaptureLead(ctx, service.LeadInput{
				Name:    "Ada Lovelace",
				Email:   " Ada@Example.com ",
				Message: "Looking for help with our strategy.",
			})
			So(err, ShouldBeNil)

			Convey("Then it is stored with the general sequence scheduled", func() {
				So(res.Created, ShouldBeTrue)
				So(res.Scheduled, ShouldEqual, 4)
				So(res.Warnings, ShouldBeEmpty)

				lead, err := store.LeadByEmail(ctx, "ada@example.com")
				So(err, ShouldBeNil)
				So(lead.SequenceID, ShouldEqual, model.SequenceGeneral)
				So(lead.Source, ShouldEqual, "contact")
			})

			Convey("And the owner is told about it", func() {
				got := mailer.to("owner@example.com")
				So(got, ShouldHaveLength, 1)
				So(got[0].Subject, ShouldEqual, "New lead: Ada Lovelace")
				So(got[0].Text, ShouldContainSubstring, "Looking for help with our strategy.")
			})

			Convey("And the lead webhook receives the event", func() {
				So(notifier.events, ShouldHaveLength, 1)
				So(notifier.events[0].Event, ShouldEqual, "lead.captured")
				So(notifier.events[0].Email, ShouldEqual, "ada@example.com")
			})

			Convey("And capturing the same email again schedules nothing new", func() {
				again, err := svc.CaptureLead(ctx, service.LeadInput{Email: "ada@example.com"})
				So(err, ShouldBeNil)
				So(again.Created, ShouldBeFalse)
				So(again.Scheduled, ShouldEqual, 0)
				So(again.Lead.ID, ShouldEqual, res.Lead.ID)
				So(mailer.to("owner@example.com"), ShouldHaveLength, 1)
			})
		})

		Convey("When the lead webhook is down", func() {
			notifier.err = errors.New("connection refused")
			res, err := svc.CaptureLead(ctx, service.LeadInput{Email: "grace@example.com"})

			Convey("Then the capture still succeeds with a non-fatal warning", func() {
				So(err, ShouldBeNil)
				So(res.Created, ShouldBeTrue)
				So(res.Warnings, ShouldHaveLength, 1)
				So(errors.Is(res.Warnings[0], errkind.ErrNonFatal), ShouldBeTrue)
			})
		})
	})
}

func TestServiceDispatchOnCapture(t *testing.T) {
	Convey("Given a service that dispatches right after capture", t, func() {
		ctx := context.Background()
		store := openStore(t)
		reg := registry(t)
		email := newFakeSender()
		d := service.NewDispatcher(store, reg, map[model.Channel]service.Sender{model.ChannelEmail: email})
		svc := service.New(store, reg, service.WithDispatcher(d), service.WithDispatchOnCapture(true))

		Convey("When a lead is captured", func() {
			_, err := svc.CaptureLead(ctx, service.LeadInput{Name: "Ada", Email: "ada@example.com"})
			So(err, ShouldBeNil)

			Convey("Then the welcome email goes out through the dispatcher", func() {
				got := email.to("ada@example.com")
				So(got, ShouldHaveLength, 1)
				So(got[0].Subject, ShouldEqual, "Thanks for reaching out, Ada")

				counts, err := svc.DispatchStatus(ctx)
				So(err, ShouldBeNil)
				So(counts.Sent, ShouldEqual, 1)
				So(counts.Pending, ShouldEqual, 3)
			})
		})
	})
}

func TestServiceSubscribe(t *testing.T) {
	Convey("Given a service", t, func() {
		ctx := context.Background()
		store := openStore(t)
		svc := service.New(store, registry(t))

		Convey("When an address subscribes twice", func() {
			first, err := svc.Subscribe(ctx, "reader@example.com", "", "guide")
			So(err, ShouldBeNil)
			second, err := svc.Subscribe(ctx, "READER@example.com", "", "guide")
			So(err, ShouldBeNil)

			Convey("Then the second sign-up is reported as a duplicate, not an error", func() {
				So(first, ShouldBeTrue)
				So(second, ShouldBeFalse)
			})

			Convey("And the subscriber becomes a lead on the general sequence", func() {
				lead, err := store.LeadByEmail(ctx, "reader@example.com")
				So(err, ShouldBeNil)
				So(lead.Source, ShouldEqual, "newsletter")
				sends, err := store.SendsForLead(ctx, lead.ID)
				So(err, ShouldBeNil)
				So(sends, ShouldHaveLength, 4)
			})
		})

		Convey("When the email is empty", func() {
			_, err := svc.Subscribe(ctx, "  ", "", "")
			So(errors.Is(err, errkind.ErrValidation), ShouldBeTrue)
		})
	})
}

func TestServiceDiagnose(t *testing.T) {
	Convey("Given a service", t, func() {
		svc := service.New(openStore(t), registry(t))

		Convey("When answers are valid", func() {
			res, err := svc.Diagnose(model.Ratings{
				{Category: "Strategy", Value: 2},
				{Category: "Culture", Value: 4},
				{Category: "Data", Value: 1},
			})

			Convey("Then score, tier, gaps and roadmap are derived", func() {
				So(err, ShouldBeNil)
				So(res.Score, ShouldBeBetweenOrEqual, 0, 50)
				So(res.Tier, ShouldEqual, scoring.TierFor(res.Score))
				So(res.TopGaps, ShouldResemble, []string{"Data: 1/5", "Strategy: 2/5", "Culture: 4/5"})
				So(res.Roadmap, ShouldNotBeEmpty)
			})
		})

		Convey("When there are no answers", func() {
			res, err := svc.Diagnose(nil)
			So(err, ShouldBeNil)
			So(res.Score, ShouldEqual, 0)
			So(res.Tier, ShouldEqual, scoring.TierFoundations)
		})

		Convey("When a rating is out of range", func() {
			_, err := svc.Diagnose(model.Ratings{{Category: "Strategy", Value: 6}})
			So(errors.Is(err, errkind.ErrValidation), ShouldBeTrue)
			So(errkind.Message(err), ShouldContainSubstring, "between 1 and 5")
		})
	})
}

func TestServiceCompleteAssessment(t *testing.T) {
	Convey("Given a service", t, func() {
		ctx := context.Background()
		store := openStore(t)
		svc := service.New(store, registry(t))
		in := service.AssessmentInput{
			Email:   "pastor@example.com",
			Name:    "Sam",
			Answers: model.Ratings{{Category: "Strategy", Value: 3}, {Category: "Leadership", Value: 4}},
			Profile: model.Profile{PrimaryFocus: "Ministry growth"},
		}

		Convey("When an assessment completes", func() {
			res, err := svc.CompleteAssessment(ctx, in)
			So(err, ShouldBeNil)

			Convey("Then the lead is scored, classified and scheduled", func() {
				So(res.Sequence, ShouldEqual, model.SequenceMinistryFocused)
				So(res.Scheduled, ShouldEqual, 4)

				lead, err := store.LeadByEmail(ctx, "pastor@example.com")
				So(err, ShouldBeNil)
				So(lead.Score, ShouldEqual, res.Diagnostic.Score)
				So(lead.Tier, ShouldEqual, string(res.Diagnostic.Tier))
				So(lead.SequenceID, ShouldEqual, model.SequenceMinistryFocused)
				So(lead.Profile.PrimaryFocus, ShouldEqual, "Ministry growth")
			})

			Convey("And resubmitting does not duplicate sends", func() {
				again, err := svc.CompleteAssessment(ctx, in)
				So(err, ShouldBeNil)
				So(again.Scheduled, ShouldEqual, 0)

				sends, err := store.SendsForLead(ctx, res.Lead.ID)
				So(err, ShouldBeNil)
				So(sends, ShouldHaveLength, 4)
			})
		})

		Convey("When the openness level is capitalised", func() {
			in.Profile = model.Profile{PrimaryFocus: "business", SpiritualOpenness: "High"}
			res, err := svc.CompleteAssessment(ctx, in)
			So(err, ShouldBeNil)

			Convey("Then it is accepted and stored lower-cased", func() {
				So(res.Sequence, ShouldEqual, model.SequenceMinistryFocused)
				lead, err := store.LeadByEmail(ctx, "pastor@example.com")
				So(err, ShouldBeNil)
				So(lead.Profile.SpiritualOpenness, ShouldEqual, model.OpennessHigh)
			})
		})

		Convey("When the openness level is unknown", func() {
			in.Profile.SpiritualOpenness = "very"
			_, err := svc.CompleteAssessment(ctx, in)
			So(errors.Is(err, errkind.ErrValidation), ShouldBeTrue)
		})
	})
}

func TestServiceContentGeneration(t *testing.T) {
	Convey("Given a service with an LLM", t, func() {
		ctx := context.Background()
		ai := &fakeLLM{}
		svc := service.New(openStore(t), registry(t), service.WithLLM(ai))
		long := strings.Repeat("growth ", 20)

		Convey("When the text is too short to summarize", func() {
			_, err := svc.Summarize(ctx, "short")

			Convey("Then the LLM is not called", func() {
				So(errors.Is(err, errkind.ErrValidation), ShouldBeTrue)
				So(ai.calls, ShouldEqual, 0)
			})
		})

		Convey("When the text is long enough", func() {
			summary, err := svc.Summarize(ctx, long)
			So(err, ShouldBeNil)
			So(summary, ShouldEqual, "summary")

			insights, err := svc.Insights(ctx, long)
			So(err, ShouldBeNil)
			So(insights, ShouldHaveLength, 2)
		})

		Convey("When a title is requested", func() {
			_, err := svc.GenerateTitle(ctx, "")
			So(errors.Is(err, errkind.ErrValidation), ShouldBeTrue)

			title, err := svc.GenerateTitle(ctx, "notes")
			So(err, ShouldBeNil)
			So(title, ShouldEqual, "A Title")
		})

		Convey("When chatting without a conversation", func() {
			_, err := svc.DocumentChat(ctx, "doc", nil)
			So(errors.Is(err, errkind.ErrValidation), ShouldBeTrue)

			answer, err := svc.DocumentChat(ctx, "doc", []llm.Message{{Role: llm.RoleUser, Content: "what?"}})
			So(err, ShouldBeNil)
			So(answer, ShouldEqual, "answer")
		})
	})

	Convey("Given a service without an LLM", t, func() {
		svc := service.New(openStore(t), registry(t))
		_, err := svc.Summarize(context.Background(), strings.Repeat("x", 120))
		So(errors.Is(err, errkind.ErrUpstream), ShouldBeTrue)
	})
}

func TestServicePaymentWebhook(t *testing.T) {
	Convey("Given a service verifying payment webhooks", t, func() {
		ctx := context.Background()
		store := openStore(t)
		svc := service.New(store, registry(t), service.WithPayments(payments.NewVerifier(stripeSecret)))
		_, _, err := store.UpsertLead(ctx, model.Lead{Email: "buyer@example.com", Source: "test"})
		So(err, ShouldBeNil)

		Convey("When the signature is invalid", func() {
			payload := checkoutPayload("evt_bad", "buyer@example.com")
			_, err := svc.HandlePaymentWebhook(ctx, []byte(payload), stripeHeader(`{"id":"evt_other"}`))

			Convey("Then it is rejected and nothing changes", func() {
				So(errors.Is(err, errkind.ErrValidation), ShouldBeTrue)
				lead, err := store.LeadByEmail(ctx, "buyer@example.com")
				So(err, ShouldBeNil)
				So(lead.Customer, ShouldBeFalse)

				created, err := store.RecordPaymentEvent(ctx, model.PaymentEvent{EventID: "evt_bad", Type: "checkout.session.completed"})
				So(err, ShouldBeNil)
				So(created, ShouldBeTrue)
			})
		})

		Convey("When a checkout completes", func() {
			payload := checkoutPayload("evt_1", "Buyer@Example.com")
			res, err := svc.HandlePaymentWebhook(ctx, []byte(payload), stripeHeader(payload))
			So(err, ShouldBeNil)

			Convey("Then the lead becomes a customer", func() {
				So(res.Handled, ShouldBeTrue)
				So(res.Duplicate, ShouldBeFalse)
				lead, err := store.LeadByEmail(ctx, "buyer@example.com")
				So(err, ShouldBeNil)
				So(lead.Customer, ShouldBeTrue)
			})

			Convey("And a redelivery is acknowledged as a duplicate", func() {
				again, err := svc.HandlePaymentWebhook(ctx, []byte(payload), stripeHeader(payload))
				So(err, ShouldBeNil)
				So(again.Duplicate, ShouldBeTrue)
			})
		})

		Convey("When the buyer was never a lead", func() {
			payload := checkoutPayload("evt_2", "walkin@example.com")
			_, err := svc.HandlePaymentWebhook(ctx, []byte(payload), stripeHeader(payload))
			So(err, ShouldBeNil)

			lead, err := store.LeadByEmail(ctx, "walkin@example.com")
			So(err, ShouldBeNil)
			So(lead.Customer, ShouldBeTrue)
			So(lead.Source, ShouldEqual, "checkout")
		})

		Convey("When the event type is not handled", func() {
			payload := `{"id":"evt_3","object":"event","type":"charge.refunded","data":{"object":{"id":"ch_1"}}}`
			res, err := svc.HandlePaymentWebhook(ctx, []byte(payload), stripeHeader(payload))

			Convey("Then it is acknowledged without being applied", func() {
				So(err, ShouldBeNil)
				So(res.Handled, ShouldBeFalse)
				So(res.Type, ShouldEqual, "charge.refunded")
			})
		})
	})
}

func TestServiceEngagementAndAdmin(t *testing.T) {
	Convey("Given a service with one lead", t, func() {
		ctx := context.Background()
		store := openStore(t)
		now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
		svc := service.New(store, registry(t), service.WithClock(func() time.Time { return now }))
		_, err := svc.CaptureLead(ctx, service.LeadInput{Email: "ada@example.com"})
		So(err, ShouldBeNil)

		Convey("When engagement is tracked", func() {
			So(svc.TrackEngagement(ctx, "ADA@example.com", "email_open"), ShouldBeNil)
			lead, err := store.LeadByEmail(ctx, "ada@example.com")
			So(err, ShouldBeNil)
			So(lead.LastEngagementAt, ShouldNotBeNil)
			So(lead.LastEngagementAt.Equal(now), ShouldBeTrue)
		})

		Convey("When the lead is unknown", func() {
			err := svc.TrackEngagement(ctx, "ghost@example.com", "click")
			So(errors.Is(err, errkind.ErrNotFound), ShouldBeTrue)
		})

		Convey("When admins list records", func() {
			leads, err := svc.ListLeads(ctx, 0)
			So(err, ShouldBeNil)
			So(leads, ShouldHaveLength, 1)

			sends, err := svc.ListSends(ctx, model.StatusPending, 10)
			So(err, ShouldBeNil)
			So(sends, ShouldHaveLength, 4)

			_, err = svc.ListSends(ctx, "bogus", 10)
			So(errors.Is(err, errkind.ErrValidation), ShouldBeTrue)
		})

		Convey("When no dispatcher is configured", func() {
			_, err := svc.Dispatch(ctx)
			So(errors.Is(err, errkind.ErrUpstream), ShouldBeTrue)
		})
	})
}
