package service

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/nurture/internal/adapters/repository"
	"github.com/okian/nurture/internal/domain/errkind"
	"github.com/okian/nurture/internal/domain/model"
	"github.com/okian/nurture/internal/domain/sequence"
	"github.com/okian/nurture/pkg/logger"
	"github.com/okian/nurture/pkg/metrics"
	"github.com/oklog/ulid/v2"
)

// Scheduler turns a classified lead into persisted scheduled sends. It keeps
// no timers: delivery happens when a dispatcher sweep finds the rows due.
type Scheduler struct {
	store  repository.SendStore
	logger logger.Logger
}

// NewScheduler creates a scheduler writing to store.
func NewScheduler(store repository.SendStore, l logger.Logger) *Scheduler {
	if l == nil {
		l = logger.Get().Named("scheduler")
	}
	return &Scheduler{store: store, logger: l}
}

// Schedule persists every step of seq for lead with scheduled_for = at + offset.
//
// Steps already scheduled for (lead, seq) are skipped, so calling it again
// for the same classification is a no-op. SMS steps are skipped for leads
// without a phone number. It returns the number of rows created; on error
// nothing is written.
func (s *Scheduler) Schedule(ctx context.Context, lead model.Lead, seq model.SequenceID, at time.Time) (int, error) {
	const op = "scheduler.Schedule"
	if !sequence.Known(seq) {
		return 0, errkind.Validation(op, fmt.Sprintf("unknown sequence %q", seq))
	}

	steps := sequence.Steps(seq)
	sends := make([]model.ScheduledSend, 0, len(steps))
	for _, step := range steps {
		if step.Channel == model.ChannelSMS && lead.Phone == "" {
			continue
		}
		sends = append(sends, model.ScheduledSend{
			ID:           ulid.Make().String(),
			LeadID:       lead.ID,
			SequenceID:   seq,
			StepIndex:    step.Index,
			Channel:      step.Channel,
			TemplateID:   step.TemplateID,
			ScheduledFor: at.Add(step.Offset),
			Status:       model.StatusPending,
		})
	}

	created, err := s.store.ScheduleSends(ctx, sends)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	metrics.RecordSendsScheduled(string(seq), created)
	s.logger.Info(ctx, "sequence scheduled",
		logger.String("lead_id", lead.ID.String()),
		logger.String("sequence", string(seq)),
		logger.Int("created", created),
		logger.Int("skipped", len(sends)-created),
	)
	return created, nil
}
