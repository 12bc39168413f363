package model_test

import (
	"encoding/json"
	"testing"

	"github.com/okian/nurture/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRatingsJSON(t *testing.T) {
	Convey("Given a JSON object of ratings", t, func() {
		raw := []byte(`{"Strategy": 4, "Data": 1, "Culture": 3, "Alpha": 2}`)

		Convey("When decoding", func() {
			var r model.Ratings
			err := json.Unmarshal(raw, &r)

			Convey("Then submission order is preserved", func() {
				So(err, ShouldBeNil)
				So(r, ShouldResemble, model.Ratings{
					{Category: "Strategy", Value: 4},
					{Category: "Data", Value: 1},
					{Category: "Culture", Value: 3},
					{Category: "Alpha", Value: 2},
				})
				v, ok := r.Get("Culture")
				So(ok, ShouldBeTrue)
				So(v, ShouldEqual, 3)
			})

			Convey("And encoding keeps the same order", func() {
				out, err := json.Marshal(r)
				So(err, ShouldBeNil)
				So(string(out), ShouldEqual, `{"Strategy":4,"Data":1,"Culture":3,"Alpha":2}`)
			})
		})

		Convey("When a rating is not an integer", func() {
			var r model.Ratings
			err := json.Unmarshal([]byte(`{"Strategy": "high"}`), &r)

			Convey("Then decoding fails", func() {
				So(err, ShouldNotBeNil)
			})
		})

		Convey("When the value is null", func() {
			r := model.Ratings{{Category: "x", Value: 1}}
			So(json.Unmarshal([]byte(`null`), &r), ShouldBeNil)
			So(r, ShouldBeNil)
		})
	})
}

func TestContactFirstName(t *testing.T) {
	Convey("Given contacts", t, func() {
		So(model.Contact{Name: "Ada Lovelace"}.FirstName(), ShouldEqual, "Ada")
		So(model.Contact{Name: "  Grace "}.FirstName(), ShouldEqual, "Grace")
		So(model.Contact{}.FirstName(), ShouldEqual, "there")
	})
}

func TestSendStatus(t *testing.T) {
	Convey("Given send statuses", t, func() {
		So(model.StatusSent.Terminal(), ShouldBeTrue)
		So(model.StatusFailed.Terminal(), ShouldBeTrue)
		So(model.StatusPending.Terminal(), ShouldBeFalse)
		So(model.StatusInFlight.Terminal(), ShouldBeFalse)
		So(model.Openness("HIGH").Valid(), ShouldBeFalse)
		So(model.Openness(" HIGH ").Normalize(), ShouldEqual, model.OpennessHigh)
		So(model.Openness("Moderate").Normalize().Valid(), ShouldBeTrue)
		So(model.OpennessModerate.Valid(), ShouldBeTrue)
	})
}
