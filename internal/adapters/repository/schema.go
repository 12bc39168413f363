package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// Timestamps are stored as unix milliseconds so range predicates compare
// integers rather than driver-specific time strings.
const schema = `
CREATE TABLE IF NOT EXISTS leads (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL DEFAULT '',
	phone TEXT NOT NULL DEFAULT '',
	source TEXT NOT NULL DEFAULT '',
	ratings TEXT NOT NULL DEFAULT '{}',
	score INTEGER NOT NULL DEFAULT 0,
	tier TEXT NOT NULL DEFAULT '',
	sequence_id TEXT NOT NULL DEFAULT '',
	investment_level TEXT NOT NULL DEFAULT '',
	primary_focus TEXT NOT NULL DEFAULT '',
	spiritual_openness TEXT NOT NULL DEFAULT '',
	customer INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	last_engagement_at INTEGER
);

CREATE TABLE IF NOT EXISTS scheduled_sends (
	id TEXT PRIMARY KEY,
	lead_id TEXT NOT NULL,
	sequence_id TEXT NOT NULL,
	step_index INTEGER NOT NULL,
	channel TEXT NOT NULL CHECK(channel IN ('email', 'sms')),
	template_id TEXT NOT NULL,
	scheduled_for INTEGER NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending' CHECK(status IN ('pending', 'in_flight', 'sent', 'failed')),
	error_message TEXT,
	claimed_at INTEGER,
	sent_at INTEGER,
	created_at INTEGER NOT NULL,
	UNIQUE (lead_id, sequence_id, step_index),
	FOREIGN KEY (lead_id) REFERENCES leads(id)
);

CREATE INDEX IF NOT EXISTS idx_scheduled_sends_due ON scheduled_sends(status, scheduled_for);
CREATE INDEX IF NOT EXISTS idx_scheduled_sends_lead ON scheduled_sends(lead_id);

CREATE TRIGGER IF NOT EXISTS scheduled_sends_terminal_immutable
BEFORE UPDATE ON scheduled_sends
WHEN OLD.status IN ('sent', 'failed')
BEGIN
	SELECT RAISE(ABORT, 'scheduled send is terminal');
END;

CREATE TABLE IF NOT EXISTS subscribers (
	email TEXT PRIMARY KEY,
	source TEXT NOT NULL DEFAULT '',
	lead_magnet TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS contact_messages (
	id TEXT PRIMARY KEY,
	lead_id TEXT NOT NULL,
	source TEXT NOT NULL DEFAULT '',
	message TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	FOREIGN KEY (lead_id) REFERENCES leads(id)
);

CREATE TABLE IF NOT EXISTS payment_events (
	event_id TEXT PRIMARY KEY,
	type TEXT NOT NULL,
	email TEXT NOT NULL DEFAULT '',
	reference TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT '',
	amount INTEGER NOT NULL DEFAULT 0,
	currency TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);
`

// InitSchema creates every table, index and trigger if missing.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}
