package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/okian/nurture/internal/domain/model"
)

const sendColumns = `s.id, s.lead_id, s.sequence_id, s.step_index, s.channel, s.template_id,
	s.scheduled_for, s.status, s.error_message, s.claimed_at, s.sent_at, s.created_at`

func scanSend(row rowScanner, extra ...any) (model.ScheduledSend, error) {
	var (
		send                    model.ScheduledSend
		leadID, seq, ch, status string
		scheduledFor, createdAt int64
		errMsg                  sql.NullString
		claimedAt, sentAt       sql.NullInt64
	)
	dest := []any{&send.ID, &leadID, &seq, &send.StepIndex, &ch, &send.TemplateID,
		&scheduledFor, &status, &errMsg, &claimedAt, &sentAt, &createdAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return model.ScheduledSend{}, err
	}
	id, err := uuid.Parse(leadID)
	if err != nil {
		return model.ScheduledSend{}, fmt.Errorf("parse lead id: %w", err)
	}
	send.LeadID = id
	send.SequenceID = model.SequenceID(seq)
	send.Channel = model.Channel(ch)
	send.Status = model.SendStatus(status)
	send.ScheduledFor = fromMillis(scheduledFor)
	send.CreatedAt = fromMillis(createdAt)
	send.ClaimedAt = nullableTime(claimedAt)
	send.SentAt = nullableTime(sentAt)
	if errMsg.Valid {
		msg := errMsg.String
		send.ErrorMessage = &msg
	}
	return send, nil
}

func validateSend(send model.ScheduledSend) error {
	switch {
	case send.ID == "":
		return fmt.Errorf("%w: empty id", ErrInvalidSend)
	case send.LeadID == uuid.Nil:
		return fmt.Errorf("%w: %s has no lead", ErrInvalidSend, send.ID)
	case send.StepIndex < 0:
		return fmt.Errorf("%w: %s has negative step index", ErrInvalidSend, send.ID)
	case send.Channel != model.ChannelEmail && send.Channel != model.ChannelSMS:
		return fmt.Errorf("%w: %s has channel %q", ErrInvalidSend, send.ID, send.Channel)
	case send.TemplateID == "":
		return fmt.Errorf("%w: %s has no template", ErrInvalidSend, send.ID)
	}
	return nil
}

// ScheduleSends inserts all sends in one transaction, skipping any whose
// (lead, sequence, step) row already exists.
func (s *SQLiteStore) ScheduleSends(ctx context.Context, sends []model.ScheduledSend) (int, error) {
	if len(sends) == 0 {
		return 0, nil
	}
	for _, send := range sends {
		if err := validateSend(send); err != nil {
			return 0, err
		}
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin schedule sends: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO scheduled_sends
			(id, lead_id, sequence_id, step_index, channel, template_id, scheduled_for, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 'pending', ?)
		ON CONFLICT(lead_id, sequence_id, step_index) DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("prepare schedule sends: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	created := toMillis(s.now())
	inserted := 0
	for _, send := range sends {
		res, err := stmt.ExecContext(ctx, send.ID, send.LeadID.String(), string(send.SequenceID),
			send.StepIndex, string(send.Channel), send.TemplateID, toMillis(send.ScheduledFor), created)
		if err != nil {
			return 0, fmt.Errorf("insert send %s: %w", send.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("insert send %s: %w", send.ID, err)
		}
		inserted += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit schedule sends: %w", err)
	}
	return inserted, nil
}

// DueSends lists pending sends whose time has come, with their contact.
func (s *SQLiteStore) DueSends(ctx context.Context, now time.Time, limit int) ([]model.DueSend, error) {
	if err := checkLimit(limit); err != nil {
		return nil, err
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sendColumns+`, l.email, l.name, l.phone
		FROM scheduled_sends s JOIN leads l ON l.id = s.lead_id
		WHERE s.status = 'pending' AND s.scheduled_for <= ?
		ORDER BY s.scheduled_for, s.id
		LIMIT ?`, toMillis(now), limit)
	if err != nil {
		return nil, fmt.Errorf("due sends: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var due []model.DueSend
	for rows.Next() {
		var c model.Contact
		send, err := scanSend(rows, &c.Email, &c.Name, &c.Phone)
		if err != nil {
			return nil, fmt.Errorf("scan due send: %w", err)
		}
		c.LeadID = send.LeadID
		due = append(due, model.DueSend{Send: send, Contact: c})
	}
	return due, rows.Err()
}

// ClaimSend flips a pending send to in_flight. Exactly one caller wins.
func (s *SQLiteStore) ClaimSend(ctx context.Context, id string, at time.Time) (bool, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		UPDATE scheduled_sends SET status = 'in_flight', claimed_at = ?
		WHERE id = ? AND status = 'pending'`, toMillis(at), id)
	if err != nil {
		return false, fmt.Errorf("claim send %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim send %s: %w", id, err)
	}
	return n == 1, nil
}

// CompleteSend records the terminal outcome of a claimed send.
func (s *SQLiteStore) CompleteSend(ctx context.Context, id string, status model.SendStatus, errMsg string, at time.Time) error {
	if !status.Terminal() {
		return fmt.Errorf("%w: %s cannot complete as %q", ErrInvalidSend, id, status)
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var (
		msg    sql.NullString
		sentAt sql.NullInt64
	)
	if status == model.StatusSent {
		sentAt = sql.NullInt64{Int64: toMillis(at), Valid: true}
	} else {
		msg = sql.NullString{String: errMsg, Valid: true}
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE scheduled_sends SET status = ?, error_message = ?, sent_at = ?
		WHERE id = ? AND status = 'in_flight'`, string(status), msg, sentAt, id)
	if err != nil {
		return fmt.Errorf("complete send %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("complete send %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", id, ErrNotClaimed)
	}
	return nil
}

// SendsForLead returns every send of a lead ordered by sequence and step.
func (s *SQLiteStore) SendsForLead(ctx context.Context, leadID uuid.UUID) ([]model.ScheduledSend, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sendColumns+` FROM scheduled_sends s
		WHERE s.lead_id = ?
		ORDER BY s.sequence_id, s.step_index`, leadID.String())
	if err != nil {
		return nil, fmt.Errorf("sends for lead: %w", err)
	}
	return collectSends(rows)
}

// ListSends returns sends in status (any status when empty), soonest first.
func (s *SQLiteStore) ListSends(ctx context.Context, status model.SendStatus, limit int) ([]model.ScheduledSend, error) {
	if err := checkLimit(limit); err != nil {
		return nil, err
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sendColumns+` FROM scheduled_sends s
		WHERE ? = '' OR s.status = ?
		ORDER BY s.scheduled_for, s.id
		LIMIT ?`, string(status), string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("list sends: %w", err)
	}
	return collectSends(rows)
}

// CountSends summarises sends by status. Due counts pending sends at or
// before now.
func (s *SQLiteStore) CountSends(ctx context.Context, now time.Time) (model.SendCounts, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var c model.SendCounts
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'pending' AND scheduled_for <= ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'in_flight' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'sent' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0)
		FROM scheduled_sends`, toMillis(now)).Scan(&c.Pending, &c.Due, &c.InFlight, &c.Sent, &c.Failed)
	if err != nil {
		return model.SendCounts{}, fmt.Errorf("count sends: %w", err)
	}
	return c, nil
}

func collectSends(rows *sql.Rows) ([]model.ScheduledSend, error) {
	defer func() { _ = rows.Close() }()
	var sends []model.ScheduledSend
	for rows.Next() {
		send, err := scanSend(rows)
		if err != nil {
			return nil, fmt.Errorf("scan send: %w", err)
		}
		sends = append(sends, send)
	}
	return sends, rows.Err()
}
