// Package repository persists leads, scheduled sends and the records hanging
// off them.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/okian/nurture/internal/domain/model"
)

// Assessment carries the derived fields written after a lead is scored and
// classified.
type Assessment struct {
	Ratings    model.Ratings
	Score      int
	Tier       string
	SequenceID model.SequenceID
	Profile    model.Profile
}

// LeadStore reads and writes leads and lead-adjacent records.
type LeadStore interface {
	// UpsertLead inserts a lead keyed by email or fills in missing contact
	// fields of the existing one. created reports whether a row was inserted.
	UpsertLead(ctx context.Context, lead model.Lead) (stored model.Lead, created bool, err error)
	// RecordAssessment writes score, tier, sequence and profile for a lead.
	RecordAssessment(ctx context.Context, leadID uuid.UUID, a Assessment) error
	// LeadByEmail returns ErrNotFound for unknown emails.
	LeadByEmail(ctx context.Context, email string) (model.Lead, error)
	ListLeads(ctx context.Context, limit int) ([]model.Lead, error)
	// TouchEngagement sets last_engagement_at. Returns ErrNotFound for unknown emails.
	TouchEngagement(ctx context.Context, email string, at time.Time) error
	// MarkCustomer flags the lead with email as a paying customer.
	MarkCustomer(ctx context.Context, email string) error
	AddContactMessage(ctx context.Context, msg model.ContactMessage) error
	// AddSubscriber returns created=false when the email is already subscribed.
	AddSubscriber(ctx context.Context, sub model.Subscriber) (created bool, err error)
	// RecordPaymentEvent returns created=false when the event was stored before.
	RecordPaymentEvent(ctx context.Context, ev model.PaymentEvent) (created bool, err error)
}

// SendStore persists scheduled sends and their state transitions.
type SendStore interface {
	// ScheduleSends inserts sends atomically. Rows whose
	// (lead_id, sequence_id, step_index) already exist are skipped.
	// It returns the number of rows actually inserted.
	ScheduleSends(ctx context.Context, sends []model.ScheduledSend) (int, error)
	// DueSends lists pending sends with scheduled_for <= now, oldest first.
	DueSends(ctx context.Context, now time.Time, limit int) ([]model.DueSend, error)
	// ClaimSend moves a send from pending to in_flight. It returns false when
	// the send was not pending, e.g. another sweep claimed it first.
	ClaimSend(ctx context.Context, id string, at time.Time) (bool, error)
	// CompleteSend moves an in_flight send to sent or failed. Returns
	// ErrNotClaimed when the send is not in flight.
	CompleteSend(ctx context.Context, id string, status model.SendStatus, errMsg string, at time.Time) error
	SendsForLead(ctx context.Context, leadID uuid.UUID) ([]model.ScheduledSend, error)
	ListSends(ctx context.Context, status model.SendStatus, limit int) ([]model.ScheduledSend, error)
	CountSends(ctx context.Context, now time.Time) (model.SendCounts, error)
}

// Store is the full persistence surface.
type Store interface {
	LeadStore
	SendStore
	Close() error
}
