package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/okian/nurture/internal/adapters/mq/queue"
	"github.com/okian/nurture/internal/adapters/mq/worker"
	"github.com/okian/nurture/internal/adapters/repository"
	"github.com/okian/nurture/internal/domain/model"
	"github.com/okian/nurture/internal/domain/templates"
	"github.com/okian/nurture/pkg/logger"
	"github.com/okian/nurture/pkg/metrics"
)

const (
	// DefaultBatchSize caps how many due sends one sweep picks up.
	DefaultBatchSize      = 50
	defaultDispatchWorker = 4
	maxErrorMessage       = 500
)

// ErrNoSender is recorded on sends whose channel has no configured provider.
var ErrNoSender = errors.New("no sender configured for channel")

// Sender delivers a rendered message on one channel.
type Sender interface {
	Send(ctx context.Context, to string, msg templates.Message) error
}

// Renderer produces message copy for a template.
type Renderer interface {
	Render(id string, channel model.Channel, data templates.Data) (templates.Message, error)
}

// Summary reports one sweep.
type Summary struct {
	Due     int `json:"due"`
	Claimed int `json:"claimed"`
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	// Lost counts due sends another sweep claimed first.
	Lost int `json:"lost"`
	// Unfinished counts claimed sends whose outcome could not be stored.
	// They stay in_flight and are never retried automatically.
	Unfinished int `json:"unfinished"`
}

// DispatcherOption applies a configuration option to the Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithBatchSize caps due sends per sweep.
func WithBatchSize(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.batchSize = n
		}
	}
}

// WithDispatchWorkers sets how many leads are delivered in parallel.
func WithDispatchWorkers(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

// WithDispatchClock overrides the time source.
func WithDispatchClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

// WithDispatchLogger sets the dispatcher logger.
func WithDispatchLogger(l logger.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// Dispatcher delivers due scheduled sends. Each sweep claims rows with a
// conditional pending -> in_flight update before sending, so concurrent
// sweeps never deliver the same row twice. Every claimed row ends sent or
// failed after a single attempt.
type Dispatcher struct {
	store     repository.SendStore
	renderer  Renderer
	senders   map[model.Channel]Sender
	batchSize int
	workers   int
	now       func() time.Time
	logger    logger.Logger
}

// NewDispatcher creates a dispatcher. senders maps each channel to its
// provider; channels without one fail their sends.
func NewDispatcher(store repository.SendStore, renderer Renderer, senders map[model.Channel]Sender, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		store:     store,
		renderer:  renderer,
		senders:   senders,
		batchSize: DefaultBatchSize,
		workers:   defaultDispatchWorker,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = logger.Get().Named("dispatcher")
	}
	return d
}

// Sweep runs one dispatch pass.
//
// Sends of one lead are delivered in ascending scheduled_for order by a
// single worker; different leads are delivered in parallel.
func (d *Dispatcher) Sweep(ctx context.Context) (Summary, error) {
	start := time.Now()
	now := d.now()

	due, err := d.store.DueSends(ctx, now, d.batchSize)
	if err != nil {
		return Summary{}, fmt.Errorf("load due sends: %w", err)
	}
	sum := &tally{Summary: Summary{Due: len(due)}}
	if len(due) == 0 {
		return sum.Summary, nil
	}

	// Claimed rows must reach sent or failed even if the caller goes away;
	// the store and providers bound each call with their own timeout.
	work := context.WithoutCancel(ctx)
	jobs := d.claim(ctx, work, due, now, sum)
	if len(jobs) > 0 {
		d.deliverAll(work, jobs, sum)
	}

	metrics.RecordDispatch(float64(time.Since(start).Milliseconds()), sum.Claimed, sum.Lost)
	d.logger.Info(ctx, "sweep finished",
		logger.Int("due", sum.Due),
		logger.Int("claimed", sum.Claimed),
		logger.Int("sent", sum.Sent),
		logger.Int("failed", sum.Failed),
		logger.Int("lost", sum.Lost),
		logger.Int("unfinished", sum.Unfinished),
		logger.Duration("took", time.Since(start)),
	)
	return sum.Summary, nil
}

// claim flips each due send to in_flight and groups the winners by lead,
// keeping the scheduled_for order DueSends returned them in. It stops
// claiming once the caller's ctx is done; rows not yet claimed stay pending.
func (d *Dispatcher) claim(ctx, work context.Context, due []model.DueSend, now time.Time, sum *tally) []queue.Job {
	byLead := make(map[uuid.UUID]int)
	var jobs []queue.Job
	for _, ds := range due {
		if ctx.Err() != nil {
			d.logger.Warn(work, "sweep canceled, leaving remaining sends pending",
				logger.Int("claimed", sum.Claimed), logger.Error(ctx.Err()))
			break
		}
		ok, err := d.store.ClaimSend(work, ds.Send.ID, now)
		if err != nil {
			d.logger.Error(ctx, "claim failed", logger.String("send_id", ds.Send.ID), logger.Error(err))
			continue
		}
		if !ok {
			sum.Lost++
			continue
		}
		sum.Claimed++
		i, seen := byLead[ds.Send.LeadID]
		if !seen {
			i = len(jobs)
			byLead[ds.Send.LeadID] = i
			jobs = append(jobs, queue.Job{LeadID: ds.Send.LeadID})
		}
		jobs[i].Sends = append(jobs[i].Sends, ds)
	}
	return jobs
}

func (d *Dispatcher) deliverAll(ctx context.Context, jobs []queue.Job, sum *tally) {
	q := queue.NewInMemoryQueue(queue.WithCapacity(len(jobs)))
	pool := worker.NewPool(min(d.workers, len(jobs)), q, worker.HandlerFunc(func(ctx context.Context, job queue.Job) error {
		for _, ds := range job.Sends {
			d.deliver(ctx, ds, sum)
		}
		return nil
	}))
	pool.Start(ctx)

	for _, job := range jobs {
		if err := q.Enqueue(ctx, job); err != nil {
			// The queue is sized to the batch; deliver inline rather than
			// leave claimed rows behind.
			d.logger.Warn(ctx, "enqueue failed, delivering inline", logger.Error(err))
			for _, ds := range job.Sends {
				d.deliver(ctx, ds, sum)
			}
		}
	}
	// ctx is never canceled here, so Drain waits for every worker.
	if err := pool.Drain(ctx); err != nil {
		d.logger.Error(ctx, "drain interrupted", logger.Error(err))
	}
}

// deliver makes the single delivery attempt for a claimed send and records
// its terminal status.
func (d *Dispatcher) deliver(ctx context.Context, ds model.DueSend, sum *tally) {
	send := ds.Send
	err := d.attempt(ctx, ds)

	status, outcome, msg := model.StatusSent, metrics.OutcomeSent, ""
	if err != nil {
		status, outcome, msg = model.StatusFailed, metrics.OutcomeFailed, truncate(err.Error(), maxErrorMessage)
		d.logger.Warn(ctx, "delivery failed",
			logger.String("send_id", send.ID),
			logger.String("channel", string(send.Channel)),
			logger.String("template", send.TemplateID),
			logger.Error(err),
		)
	}
	metrics.RecordDelivery(string(send.Channel), outcome)

	if err := d.store.CompleteSend(ctx, send.ID, status, msg, d.now()); err != nil {
		d.logger.Error(ctx, "recording outcome failed, send left in flight",
			logger.String("send_id", send.ID),
			logger.String("status", string(status)),
			logger.Error(err),
		)
		sum.add(func(s *Summary) { s.Unfinished++ })
		return
	}
	if status == model.StatusSent {
		sum.add(func(s *Summary) { s.Sent++ })
	} else {
		sum.add(func(s *Summary) { s.Failed++ })
	}
}

func (d *Dispatcher) attempt(ctx context.Context, ds model.DueSend) error {
	sender, ok := d.senders[ds.Send.Channel]
	if !ok || sender == nil {
		return fmt.Errorf("%w: %s", ErrNoSender, ds.Send.Channel)
	}
	msg, err := d.renderer.Render(ds.Send.TemplateID, ds.Send.Channel, templates.DataFor(ds.Contact))
	if err != nil {
		return err
	}
	to := ds.Contact.Email
	if ds.Send.Channel == model.ChannelSMS {
		to = ds.Contact.Phone
	}
	return sender.Send(ctx, to, msg)
}

type tally struct {
	mu sync.Mutex
	Summary
}

func (t *tally) add(f func(*Summary)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	f(&t.Summary)
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
