// Package loadtest drives synthetic assessments through a running nurture
// service and checks every response against locally computed scores.
package loadtest

import (
	"time"

	"github.com/okian/nurture/internal/domain/model"
)

// Config holds configuration for one load test run.
type Config struct {
	BaseURL    string        // Base URL of the service
	NumLeads   int           // Number of assessments to generate
	Workers    int           // Number of concurrent submitters
	Timeout    time.Duration // HTTP request timeout
	OutputFile string        // Where generated assessments are written; empty skips it
	Domain     string        // Email domain for generated leads
	Seed       uint64        // Generator seed; runs with the same seed produce the same answers

	// Weights must match the server's category weights for scores to line up.
	Weights       map[string]float64
	DefaultWeight float64
}

// Assessment is one generated submission plus the outcome the service is
// expected to return for it.
type Assessment struct {
	Email             string         `json:"email"`
	Name              string         `json:"name"`
	Source            string         `json:"source"`
	Answers           model.Ratings  `json:"answers"`
	InvestmentLevel   string         `json:"investment_level,omitempty"`
	PrimaryFocus      string         `json:"primary_focus,omitempty"`
	SpiritualOpenness model.Openness `json:"spiritual_openness,omitempty"`

	Expected Expectation `json:"-"`
}

// Expectation is the locally computed result for an Assessment.
type Expectation struct {
	Score    int              `json:"score"`
	Tier     string           `json:"tier"`
	Sequence model.SequenceID `json:"sequence"`
}

// Stats holds run statistics.
type Stats struct {
	Generated  int
	Submitted  int
	Accepted   int
	Rejected   int // non-2xx responses
	Failed     int // transport errors
	Mismatched int // accepted but scored or classified differently
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
}
