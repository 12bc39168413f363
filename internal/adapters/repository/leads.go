package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/okian/nurture/internal/domain/model"
)

const leadColumns = `id, email, name, phone, source, ratings, score, tier, sequence_id,
	investment_level, primary_focus, spiritual_openness, customer,
	created_at, updated_at, last_engagement_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLead(row rowScanner) (model.Lead, error) {
	var (
		l                    model.Lead
		id, ratings, seq     string
		openness             string
		customer             int
		createdAt, updatedAt int64
		engagedAt            sql.NullInt64
	)
	err := row.Scan(&id, &l.Email, &l.Name, &l.Phone, &l.Source, &ratings, &l.Score, &l.Tier, &seq,
		&l.Profile.InvestmentLevel, &l.Profile.PrimaryFocus, &openness, &customer,
		&createdAt, &updatedAt, &engagedAt)
	if err != nil {
		return model.Lead{}, err
	}
	if l.ID, err = uuid.Parse(id); err != nil {
		return model.Lead{}, fmt.Errorf("parse lead id: %w", err)
	}
	if err := json.Unmarshal([]byte(ratings), &l.Ratings); err != nil {
		return model.Lead{}, fmt.Errorf("decode ratings: %w", err)
	}
	if len(l.Ratings) == 0 {
		l.Ratings = nil
	}
	l.SequenceID = model.SequenceID(seq)
	l.Profile.SpiritualOpenness = model.Openness(openness)
	l.Customer = customer == 1
	l.CreatedAt = fromMillis(createdAt)
	l.UpdatedAt = fromMillis(updatedAt)
	l.LastEngagementAt = nullableTime(engagedAt)
	return l, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UpsertLead inserts a lead or fills blank contact fields of an existing one.
func (s *SQLiteStore) UpsertLead(ctx context.Context, lead model.Lead) (model.Lead, bool, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	email := normalizeEmail(lead.Email)
	if email == "" {
		return model.Lead{}, false, errors.New("upsert lead: empty email")
	}
	if lead.ID == uuid.Nil {
		lead.ID = uuid.New()
	}
	now := toMillis(s.now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Lead{}, false, fmt.Errorf("begin upsert lead: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO leads (id, email, name, phone, source, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(email) DO UPDATE SET
			name = CASE WHEN leads.name = '' THEN excluded.name ELSE leads.name END,
			phone = CASE WHEN excluded.phone <> '' THEN excluded.phone ELSE leads.phone END,
			source = CASE WHEN leads.source = '' THEN excluded.source ELSE leads.source END,
			updated_at = excluded.updated_at`,
		lead.ID.String(), email, strings.TrimSpace(lead.Name), strings.TrimSpace(lead.Phone),
		strings.TrimSpace(lead.Source), now, now)
	if err != nil {
		return model.Lead{}, false, fmt.Errorf("upsert lead: %w", err)
	}

	stored, err := scanLead(tx.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE email = ?`, email))
	if err != nil {
		return model.Lead{}, false, fmt.Errorf("read upserted lead: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return model.Lead{}, false, fmt.Errorf("commit upsert lead: %w", err)
	}
	return stored, stored.ID == lead.ID, nil
}

// RecordAssessment stores the derived scoring and classification fields.
func (s *SQLiteStore) RecordAssessment(ctx context.Context, leadID uuid.UUID, a Assessment) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	ratings, err := json.Marshal(a.Ratings)
	if err != nil {
		return fmt.Errorf("encode ratings: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE leads SET ratings = ?, score = ?, tier = ?, sequence_id = ?,
			investment_level = ?, primary_focus = ?, spiritual_openness = ?, updated_at = ?
		WHERE id = ?`,
		string(ratings), a.Score, a.Tier, string(a.SequenceID),
		a.Profile.InvestmentLevel, a.Profile.PrimaryFocus, string(a.Profile.SpiritualOpenness),
		toMillis(s.now()), leadID.String())
	if err != nil {
		return fmt.Errorf("record assessment: %w", err)
	}
	return expectOne(res, leadID.String())
}

// LeadByEmail looks a lead up by its unique email.
func (s *SQLiteStore) LeadByEmail(ctx context.Context, email string) (model.Lead, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	l, err := scanLead(s.db.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE email = ?`, normalizeEmail(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Lead{}, fmt.Errorf("lead %q: %w", email, ErrNotFound)
	}
	if err != nil {
		return model.Lead{}, fmt.Errorf("lead by email: %w", err)
	}
	return l, nil
}

// ListLeads returns the most recently created leads first.
func (s *SQLiteStore) ListLeads(ctx context.Context, limit int) ([]model.Lead, error) {
	if err := checkLimit(limit); err != nil {
		return nil, err
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT `+leadColumns+` FROM leads ORDER BY created_at DESC, email LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var leads []model.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, l)
	}
	return leads, rows.Err()
}

// TouchEngagement records the latest engagement time.
func (s *SQLiteStore) TouchEngagement(ctx context.Context, email string, at time.Time) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `UPDATE leads SET last_engagement_at = ?, updated_at = ? WHERE email = ?`,
		toMillis(at), toMillis(s.now()), normalizeEmail(email))
	if err != nil {
		return fmt.Errorf("touch engagement: %w", err)
	}
	return expectOne(res, email)
}

// MarkCustomer flags a lead as a paying customer.
func (s *SQLiteStore) MarkCustomer(ctx context.Context, email string) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `UPDATE leads SET customer = 1, updated_at = ? WHERE email = ?`,
		toMillis(s.now()), normalizeEmail(email))
	if err != nil {
		return fmt.Errorf("mark customer: %w", err)
	}
	return expectOne(res, email)
}

// AddContactMessage stores a contact-form message.
func (s *SQLiteStore) AddContactMessage(ctx context.Context, msg model.ContactMessage) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	created := msg.CreatedAt
	if created.IsZero() {
		created = s.now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO contact_messages (id, lead_id, source, message, created_at) VALUES (?, ?, ?, ?, ?)`,
		msg.ID.String(), msg.LeadID.String(), msg.Source, msg.Message, toMillis(created))
	if err != nil {
		return fmt.Errorf("add contact message: %w", err)
	}
	return nil
}

// AddSubscriber stores a newsletter sign-up. Duplicates are not an error.
func (s *SQLiteStore) AddSubscriber(ctx context.Context, sub model.Subscriber) (bool, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO subscribers (email, source, lead_magnet, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(email) DO NOTHING`,
		normalizeEmail(sub.Email), sub.Source, sub.LeadMagnet, toMillis(s.now()))
	if err != nil {
		return false, fmt.Errorf("add subscriber: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("add subscriber: %w", err)
	}
	return n == 1, nil
}

// RecordPaymentEvent stores a processed payment webhook event once.
func (s *SQLiteStore) RecordPaymentEvent(ctx context.Context, ev model.PaymentEvent) (bool, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO payment_events (event_id, type, email, reference, status, amount, currency, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(event_id) DO NOTHING`,
		ev.EventID, ev.Type, normalizeEmail(ev.Email), ev.Reference, ev.Status, ev.Amount, ev.Currency,
		toMillis(s.now()))
	if err != nil {
		return false, fmt.Errorf("record payment event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record payment event: %w", err)
	}
	return n == 1, nil
}

func expectOne(res sql.Result, key string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%q: %w", key, ErrNotFound)
	}
	return nil
}
