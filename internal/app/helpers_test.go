package service_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/okian/nurture/internal/adapters/repository"
	"github.com/okian/nurture/internal/domain/model"
	"github.com/okian/nurture/internal/domain/templates"
	"github.com/okian/nurture/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func openStore(t *testing.T) *repository.SQLiteStore {
	t.Helper()
	store, err := repository.Open(context.Background(), filepath.Join(t.TempDir(), "nurture.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func registry(t *testing.T) *templates.Registry {
	t.Helper()
	reg, err := templates.New()
	if err != nil {
		t.Fatalf("parse templates: %v", err)
	}
	return reg
}

func createLead(t *testing.T, store repository.Store, email, name, phone string) model.Lead {
	t.Helper()
	lead, _, err := store.UpsertLead(context.Background(), model.Lead{Email: email, Name: name, Phone: phone, Source: "test"})
	if err != nil {
		t.Fatalf("upsert lead: %v", err)
	}
	return lead
}

type delivery struct {
	to  string
	msg templates.Message
}

// fakeSender records every delivery; it fails for recipients in failFor.
type fakeSender struct {
	mu      sync.Mutex
	sent    []delivery
	failFor map[string]bool
	failErr error
	delay   time.Duration
	onSend  func()
}

func newFakeSender() *fakeSender {
	return &fakeSender{failFor: map[string]bool{}}
}

func (f *fakeSender) Send(ctx context.Context, to string, msg templates.Message) error {
	f.mu.Lock()
	fail, failErr, hook := f.failFor[to], f.failErr, f.onSend
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if fail {
		if failErr != nil {
			return failErr
		}
		return errors.New("provider rejected recipient")
	}
	f.sent = append(f.sent, delivery{to: to, msg: msg})
	return nil
}

func (f *fakeSender) deliveries() []delivery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]delivery(nil), f.sent...)
}

func (f *fakeSender) to(recipient string) []templates.Message {
	var out []templates.Message
	for _, d := range f.deliveries() {
		if d.to == recipient {
			out = append(out, d.msg)
		}
	}
	return out
}
