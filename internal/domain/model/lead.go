// Package model contains domain models passed between layers.
package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// SequenceID names a nurture sequence.
type SequenceID string

// Nurture sequences, see the sequence package for their step tables.
const (
	SequenceHighValue         SequenceID = "high_value"
	SequenceMinistryFocused   SequenceID = "ministry_focused"
	SequenceInvestorProspect  SequenceID = "investor_prospect"
	SequenceBusinessStrategic SequenceID = "business_strategic"
	SequenceGeneral           SequenceID = "general"
)

// Openness is the self-reported spiritual-openness level.
type Openness string

// Openness levels.
const (
	OpennessHigh     Openness = "high"
	OpennessModerate Openness = "moderate"
	OpennessLow      Openness = "low"
)

// Normalize lower-cases o and trims surrounding space.
func (o Openness) Normalize() Openness {
	return Openness(strings.ToLower(strings.TrimSpace(string(o))))
}

// Valid reports whether o is empty or one of the known levels.
func (o Openness) Valid() bool {
	switch o {
	case "", OpennessHigh, OpennessModerate, OpennessLow:
		return true
	}
	return false
}

// Profile holds the free-text attributes the sequence classifier reads.
type Profile struct {
	InvestmentLevel   string   `json:"investment_level,omitempty"`
	PrimaryFocus      string   `json:"primary_focus,omitempty"`
	SpiritualOpenness Openness `json:"spiritual_openness,omitempty"`
}

// Lead is a prospective customer keyed by email.
type Lead struct {
	ID               uuid.UUID  `json:"id"`
	Email            string     `json:"email"`
	Name             string     `json:"name,omitempty"`
	Phone            string     `json:"phone,omitempty"`
	Source           string     `json:"source,omitempty"`
	Ratings          Ratings    `json:"ratings,omitempty"`
	Score            int        `json:"score"`
	Tier             string     `json:"tier,omitempty"`
	SequenceID       SequenceID `json:"sequence_id,omitempty"`
	Profile          Profile    `json:"profile"`
	Customer         bool       `json:"customer"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	LastEngagementAt *time.Time `json:"last_engagement_at,omitempty"`
}

// Contact is the subset of a lead needed to deliver a message.
type Contact struct {
	LeadID uuid.UUID
	Email  string
	Name   string
	Phone  string
}

// FirstName returns the first word of the contact name, or "there".
func (c Contact) FirstName() string {
	fields := strings.Fields(c.Name)
	if len(fields) == 0 {
		return "there"
	}
	return fields[0]
}

// Subscriber is a newsletter sign-up.
type Subscriber struct {
	Email      string    `json:"email"`
	Source     string    `json:"source,omitempty"`
	LeadMagnet string    `json:"lead_magnet,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ContactMessage is a free-text message left through the contact form.
type ContactMessage struct {
	ID        uuid.UUID `json:"id"`
	LeadID    uuid.UUID `json:"lead_id"`
	Source    string    `json:"source,omitempty"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// PaymentEvent is the persisted outcome of a payment-processor webhook.
type PaymentEvent struct {
	EventID   string    `json:"event_id"`
	Type      string    `json:"type"`
	Email     string    `json:"email,omitempty"`
	Reference string    `json:"reference,omitempty"`
	Status    string    `json:"status,omitempty"`
	Amount    int64     `json:"amount,omitempty"`
	Currency  string    `json:"currency,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
