package sms

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/okian/nurture/internal/domain/errkind"
	"github.com/okian/nurture/internal/domain/templates"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSender(t *testing.T) {
	Convey("Given a Twilio-style test server", t, func() {
		var (
			path, user, pass, to, body string
		)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path = r.URL.Path
			user, pass, _ = r.BasicAuth()
			_ = r.ParseForm()
			to, body = r.PostForm.Get("To"), r.PostForm.Get("Body")
			if to == "+10000000000" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"sid":"SM1"}`))
		}))
		defer srv.Close()

		s := New("AC123", "token", "+15550000", srv.URL, time.Second)

		Convey("When sending succeeds", func() {
			err := s.Send(context.Background(), "+15550100", templates.Message{Text: "Hello"})

			Convey("Then the form and credentials are sent", func() {
				So(err, ShouldBeNil)
				So(path, ShouldEqual, "/2010-04-01/Accounts/AC123/Messages.json")
				So(user, ShouldEqual, "AC123")
				So(pass, ShouldEqual, "token")
				So(to, ShouldEqual, "+15550100")
				So(body, ShouldEqual, "Hello")
			})
		})

		Convey("When the provider rejects the number", func() {
			err := s.Send(context.Background(), "+10000000000", templates.Message{Text: "Hello"})
			So(errors.Is(err, errkind.ErrUpstream), ShouldBeTrue)
		})

		Convey("When the lead has no phone", func() {
			err := s.Send(context.Background(), "", templates.Message{Text: "Hello"})
			So(errors.Is(err, errkind.ErrValidation), ShouldBeTrue)
		})

		Convey("When credentials are missing", func() {
			err := New("", "", "", srv.URL, time.Second).Send(context.Background(), "+15550100", templates.Message{})
			So(errors.Is(err, errkind.ErrUpstream), ShouldBeTrue)
		})
	})
}
