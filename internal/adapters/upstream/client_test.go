package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/okian/nurture/internal/domain/errkind"
	. "github.com/smartystreets/goconvey/convey"
)

func TestClientDo(t *testing.T) {
	Convey("Given a provider test server", t, func() {
		status := http.StatusOK
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"id":"msg_1"}`))
		}))
		defer srv.Close()

		c := New("test", time.Second)
		ctx := context.Background()

		Convey("When the provider answers 200", func() {
			req, err := JSONRequest(ctx, http.MethodPost, srv.URL+"/send", map[string]string{"to": "a"})
			So(err, ShouldBeNil)
			var out struct {
				ID string `json:"id"`
			}
			So(c.Do(req, &out), ShouldBeNil)
			So(out.ID, ShouldEqual, "msg_1")
		})

		Convey("When the provider rate limits", func() {
			status = http.StatusTooManyRequests
			req, _ := JSONRequest(ctx, http.MethodPost, srv.URL, nil)
			err := c.Do(req, nil)
			So(errors.Is(err, errkind.ErrRateLimited), ShouldBeTrue)
		})

		Convey("When the provider fails", func() {
			status = http.StatusBadGateway
			req, _ := JSONRequest(ctx, http.MethodPost, srv.URL, nil)
			err := c.Do(req, nil)
			So(errors.Is(err, errkind.ErrUpstream), ShouldBeTrue)
			So(errkind.Message(err), ShouldEqual, "upstream failure")
		})
	})

	Convey("Given an unreachable provider", t, func() {
		c := New("down", 200*time.Millisecond)
		req, _ := JSONRequest(context.Background(), http.MethodGet, "http://127.0.0.1:1/", nil)
		So(errors.Is(c.Do(req, nil), errkind.ErrUpstream), ShouldBeTrue)
	})
}
