package loadtest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/nurture/internal/adapters/http/api"
	"github.com/okian/nurture/internal/adapters/repository"
	service "github.com/okian/nurture/internal/app"
	"github.com/okian/nurture/internal/domain/model"
	"github.com/okian/nurture/internal/domain/templates"
	"github.com/okian/nurture/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func liveServer(t *testing.T) (*httptest.Server, *repository.SQLiteStore) {
	t.Helper()
	ctx := context.Background()
	store, err := repository.Open(ctx, filepath.Join(t.TempDir(), "load.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	reg, err := templates.New()
	if err != nil {
		t.Fatal(err)
	}
	mux := http.NewServeMux()
	api.NewServer(service.New(store, reg), api.NewAuthorizer(nil, "", "")).Register(ctx, mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, store
}

func TestGenerator(t *testing.T) {
	Convey("Given two generators with the same seed", t, func() {
		a := newGenerator(&Config{Seed: 7, Domain: "example.com"}).generate(50)
		b := newGenerator(&Config{Seed: 7, Domain: "example.com"}).generate(50)

		Convey("Then answers and profiles repeat but addresses are unique", func() {
			seen := map[string]bool{}
			for i := range a {
				So(a[i].Answers, ShouldResemble, b[i].Answers)
				So(a[i].PrimaryFocus, ShouldEqual, b[i].PrimaryFocus)
				So(seen[a[i].Email], ShouldBeFalse)
				seen[a[i].Email] = true
			}
		})

		Convey("Then every rating is on the 1..5 scale", func() {
			for _, as := range a {
				So(len(as.Answers), ShouldBeGreaterThan, 0)
				for _, r := range as.Answers {
					So(r.Value, ShouldBeBetweenOrEqual, 1, 5)
				}
			}
		})
	})
}

func TestRun(t *testing.T) {
	Convey("Given a live service", t, func() {
		srv, store := liveServer(t)
		out := filepath.Join(t.TempDir(), "out", "assessments.json")
		cfg := &Config{
			BaseURL:    srv.URL,
			NumLeads:   24,
			Workers:    4,
			Timeout:    5 * time.Second,
			OutputFile: out,
			Seed:       42,
		}

		Convey("When the run completes", func() {
			stats, err := Run(context.Background(), cfg, logger.Nop())

			Convey("Then every response matches the local result", func() {
				So(err, ShouldBeNil)
				So(stats.Generated, ShouldEqual, 24)
				So(stats.Accepted, ShouldEqual, 24)
				So(stats.Mismatched, ShouldEqual, 0)
			})

			Convey("And each lead is stored with sends scheduled", func() {
				leads, err := store.ListLeads(context.Background(), 100)
				So(err, ShouldBeNil)
				So(leads, ShouldHaveLength, 24)
				counts, err := store.CountSends(context.Background(), time.Now())
				So(err, ShouldBeNil)
				So(counts.Pending, ShouldBeGreaterThanOrEqualTo, 24)
			})

			Convey("And the generated assessments are saved with expectations", func() {
				data, err := os.ReadFile(out)
				So(err, ShouldBeNil)
				var saved []struct {
					Email    string        `json:"email"`
					Answers  model.Ratings `json:"answers"`
					Expected Expectation   `json:"expected"`
				}
				So(json.Unmarshal(data, &saved), ShouldBeNil)
				So(saved, ShouldHaveLength, 24)
				So(saved[0].Expected.Tier, ShouldNotBeEmpty)
			})
		})
	})

	Convey("Given a service that scores everything as zero", t, func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
		mux.HandleFunc("/assessment", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"ok":true,"score":0,"tier":"Foundations","sequenceId":"nowhere"}`))
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		stats, err := Run(context.Background(), &Config{BaseURL: srv.URL, NumLeads: 5, Workers: 2, Timeout: time.Second}, logger.Nop())

		Convey("Then the run fails verification", func() {
			So(errors.Is(err, ErrVerification), ShouldBeTrue)
			So(stats.Mismatched, ShouldEqual, 5)
		})
	})

	Convey("Given a service that is down", t, func() {
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close()

		_, err := Run(context.Background(), &Config{BaseURL: srv.URL, NumLeads: 1, Timeout: time.Second}, logger.Nop())

		Convey("Then the health check fails first", func() {
			So(errors.Is(err, ErrUnhealthy), ShouldBeTrue)
		})
	})

	Convey("Given no leads to generate", t, func() {
		_, err := Run(context.Background(), &Config{}, logger.Nop())
		So(errors.Is(err, ErrNoLeads), ShouldBeTrue)
	})
}
