package model

import (
	"time"

	"github.com/google/uuid"
)

// Channel is a delivery channel.
type Channel string

// Delivery channels.
const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// SendStatus is the lifecycle state of a ScheduledSend.
//
// pending -> in_flight -> sent|failed. The terminal states never change.
type SendStatus string

// Send states.
const (
	StatusPending  SendStatus = "pending"
	StatusInFlight SendStatus = "in_flight"
	StatusSent     SendStatus = "sent"
	StatusFailed   SendStatus = "failed"
)

// Terminal reports whether the status is final.
func (s SendStatus) Terminal() bool {
	return s == StatusSent || s == StatusFailed
}

// ScheduledSend is one persisted, time-delayed nurture message.
type ScheduledSend struct {
	ID           string     `json:"id"`
	LeadID       uuid.UUID  `json:"lead_id"`
	SequenceID   SequenceID `json:"sequence_id"`
	StepIndex    int        `json:"step_index"`
	Channel      Channel    `json:"channel"`
	TemplateID   string     `json:"template_id"`
	ScheduledFor time.Time  `json:"scheduled_for"`
	Status       SendStatus `json:"status"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	ClaimedAt    *time.Time `json:"claimed_at,omitempty"`
	SentAt       *time.Time `json:"sent_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// DueSend pairs a claimed send with the contact it goes to.
type DueSend struct {
	Send    ScheduledSend
	Contact Contact
}

// SendCounts summarises the scheduled_sends table by status.
type SendCounts struct {
	Pending  int `json:"pending"`
	Due      int `json:"due"`
	InFlight int `json:"in_flight"`
	Sent     int `json:"sent"`
	Failed   int `json:"failed"`
}
