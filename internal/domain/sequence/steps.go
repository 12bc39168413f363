package sequence

import (
	"time"

	"github.com/okian/nurture/internal/domain/model"
)

const (
	hour = time.Hour
	day  = 24 * time.Hour
)

// Step is one entry of a sequence table. Index is stable across releases:
// it is part of the idempotency key of the scheduled send it produces.
type Step struct {
	Index      int
	Channel    model.Channel
	Offset     time.Duration
	TemplateID string
}

var tables = map[model.SequenceID][]Step{ //nolint:gochecknoglobals // static sequence tables
	model.SequenceHighValue: {
		{Index: 0, Channel: model.ChannelEmail, Offset: 2 * hour, TemplateID: "high_value_intro"},
		{Index: 1, Channel: model.ChannelSMS, Offset: 1 * day, TemplateID: "high_value_sms_checkin"},
		{Index: 2, Channel: model.ChannelEmail, Offset: 3 * day, TemplateID: "high_value_case_study"},
		{Index: 3, Channel: model.ChannelEmail, Offset: 7 * day, TemplateID: "high_value_strategy_call"},
	},
	model.SequenceMinistryFocused: {
		{Index: 0, Channel: model.ChannelEmail, Offset: 1 * hour, TemplateID: "ministry_welcome"},
		{Index: 1, Channel: model.ChannelEmail, Offset: 2 * day, TemplateID: "ministry_stewardship"},
		{Index: 2, Channel: model.ChannelEmail, Offset: 5 * day, TemplateID: "ministry_story"},
		{Index: 3, Channel: model.ChannelEmail, Offset: 10 * day, TemplateID: "ministry_invite"},
	},
	model.SequenceInvestorProspect: {
		{Index: 0, Channel: model.ChannelEmail, Offset: 2 * hour, TemplateID: "investor_intro"},
		{Index: 1, Channel: model.ChannelEmail, Offset: 2 * day, TemplateID: "investor_thesis"},
		{Index: 2, Channel: model.ChannelSMS, Offset: 3 * day, TemplateID: "investor_sms_followup"},
		{Index: 3, Channel: model.ChannelEmail, Offset: 6 * day, TemplateID: "investor_call"},
	},
	model.SequenceBusinessStrategic: {
		{Index: 0, Channel: model.ChannelEmail, Offset: 1 * hour, TemplateID: "business_welcome"},
		{Index: 1, Channel: model.ChannelEmail, Offset: 3 * day, TemplateID: "business_framework"},
		{Index: 2, Channel: model.ChannelEmail, Offset: 7 * day, TemplateID: "business_case_study"},
		{Index: 3, Channel: model.ChannelEmail, Offset: 14 * day, TemplateID: "business_call"},
	},
	model.SequenceGeneral: {
		{Index: 0, Channel: model.ChannelEmail, Offset: 0, TemplateID: "general_welcome"},
		{Index: 1, Channel: model.ChannelEmail, Offset: 3 * day, TemplateID: "general_resources"},
		{Index: 2, Channel: model.ChannelEmail, Offset: 7 * day, TemplateID: "general_story"},
		{Index: 3, Channel: model.ChannelEmail, Offset: 14 * day, TemplateID: "general_invite"},
	},
}

// Steps returns the ordered steps of seq. Unknown sequences have none.
func Steps(seq model.SequenceID) []Step {
	steps := tables[seq]
	out := make([]Step, len(steps))
	copy(out, steps)
	return out
}

// Known reports whether seq has a step table.
func Known(seq model.SequenceID) bool {
	_, ok := tables[seq]
	return ok
}

// TemplateIDs lists every template referenced by any sequence.
func TemplateIDs() []string {
	var ids []string
	for _, steps := range tables {
		for _, s := range steps {
			ids = append(ids, s.TemplateID)
		}
	}
	return ids
}
