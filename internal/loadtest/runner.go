package loadtest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/nurture/pkg/logger"
)

const (
	directoryPermission = 0o750
	filePermission      = 0o600
	percentage          = 100
)

type assessmentResponse struct {
	OK         bool   `json:"ok"`
	Score      int    `json:"score"`
	Tier       string `json:"tier"`
	SequenceID string `json:"sequenceId"`
	Scheduled  int    `json:"scheduled"`
}

type outcome int

const (
	outcomeAccepted outcome = iota
	outcomeMismatched
	outcomeRejected
	outcomeFailed
)

// Run checks service health, submits cfg.NumLeads generated assessments
// and verifies each response. It returns ErrVerification when any
// submission was rejected, failed or disagreed with the local result.
func Run(ctx context.Context, cfg *Config, l logger.Logger) (Stats, error) {
	stats := Stats{StartTime: time.Now()}
	if cfg.NumLeads <= 0 {
		return stats, ErrNoLeads
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Domain == "" {
		cfg.Domain = "example.com"
	}
	if l == nil {
		l = logger.Get().Named("loadtest")
	}

	l.Info(ctx, "starting load test",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("leads", cfg.NumLeads),
		logger.Int("workers", cfg.Workers),
		logger.Duration("timeout", cfg.Timeout),
	)

	client := newHTTPClient(cfg.BaseURL, cfg.Timeout)
	if err := checkHealth(ctx, client); err != nil {
		return stats, err
	}

	assessments := newGenerator(cfg).generate(cfg.NumLeads)
	stats.Generated = len(assessments)

	submit(ctx, client, cfg.Workers, assessments, &stats, l)

	if cfg.OutputFile != "" {
		if err := save(cfg.OutputFile, assessments); err != nil {
			l.Warn(ctx, "failed to save assessments", logger.Error(err))
		} else {
			l.Info(ctx, "assessments saved", logger.String("file", cfg.OutputFile))
		}
	}
	if status, body, err := client.get(ctx, "/stats"); err == nil && status == http.StatusOK {
		l.Info(ctx, "send backlog after run", logger.String("stats", string(body)))
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	logStats(ctx, l, stats)

	if stats.Accepted != stats.Generated {
		return stats, fmt.Errorf("%w: %d of %d accepted, %d mismatched",
			ErrVerification, stats.Accepted, stats.Generated, stats.Mismatched)
	}
	return stats, nil
}

func checkHealth(ctx context.Context, client *httpClient) error {
	status, _, err := client.get(ctx, "/healthz")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnhealthy, err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, status)
	}
	return nil
}

// submit posts assessments through a fixed pool of workers.
func submit(ctx context.Context, client *httpClient, workers int, assessments []Assessment, stats *Stats, l logger.Logger) {
	var submitted, accepted, mismatched, rejected, failed atomic.Int64

	jobs := make(chan int, workers*2)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				submitted.Add(1)
				switch submitOne(ctx, client, &assessments[i], l) {
				case outcomeAccepted:
					accepted.Add(1)
				case outcomeMismatched:
					mismatched.Add(1)
				case outcomeRejected:
					rejected.Add(1)
				case outcomeFailed:
					failed.Add(1)
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range assessments {
			select {
			case <-ctx.Done():
				return
			case jobs <- i:
			}
		}
	}()
	wg.Wait()

	stats.Submitted = int(submitted.Load())
	stats.Accepted = int(accepted.Load())
	stats.Mismatched = int(mismatched.Load())
	stats.Rejected = int(rejected.Load())
	stats.Failed = int(failed.Load())
}

func submitOne(ctx context.Context, client *httpClient, a *Assessment, l logger.Logger) outcome {
	status, body, err := client.post(ctx, "/assessment", a)
	if err != nil {
		l.Debug(ctx, "submission failed", logger.String("email", a.Email), logger.Error(err))
		return outcomeFailed
	}
	if status != http.StatusOK {
		l.Warn(ctx, "submission rejected", logger.String("email", a.Email), logger.Int("status", status), logger.String("body", string(body)))
		return outcomeRejected
	}
	var resp assessmentResponse
	if err := json.Unmarshal(body, &resp); err != nil || !resp.OK {
		l.Warn(ctx, "unreadable response", logger.String("email", a.Email), logger.String("body", string(body)))
		return outcomeRejected
	}
	want := a.Expected
	if resp.Score != want.Score || resp.Tier != want.Tier || resp.SequenceID != string(want.Sequence) {
		l.Warn(ctx, "result mismatch",
			logger.String("email", a.Email),
			logger.Int("score", resp.Score), logger.Int("wantScore", want.Score),
			logger.String("tier", resp.Tier), logger.String("wantTier", want.Tier),
			logger.String("sequence", resp.SequenceID), logger.String("wantSequence", string(want.Sequence)),
		)
		return outcomeMismatched
	}
	return outcomeAccepted
}

// savedAssessment pairs a submission with its expectation for the output file.
type savedAssessment struct {
	Assessment
	Expected Expectation `json:"expected"`
}

func save(path string, assessments []Assessment) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	out := make([]savedAssessment, len(assessments))
	for i, a := range assessments {
		out[i] = savedAssessment{Assessment: a, Expected: a.Expected}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal assessments: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), filePermission)
}

func logStats(ctx context.Context, l logger.Logger, s Stats) {
	var successRate, perSecond float64
	if s.Submitted > 0 {
		successRate = float64(s.Accepted) / float64(s.Submitted) * percentage
	}
	if s.Duration > 0 {
		perSecond = float64(s.Submitted) / s.Duration.Seconds()
	}
	l.Info(ctx, "final statistics",
		logger.Int("generated", s.Generated),
		logger.Int("submitted", s.Submitted),
		logger.Int("accepted", s.Accepted),
		logger.Int("mismatched", s.Mismatched),
		logger.Int("rejected", s.Rejected),
		logger.Int("failed", s.Failed),
		logger.Duration("duration", s.Duration),
		logger.Any("successRate", successRate),
		logger.Any("perSecond", perSecond),
	)
}
