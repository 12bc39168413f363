package gaps_test

import (
	"testing"

	"github.com/okian/nurture/internal/domain/gaps"
	"github.com/okian/nurture/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestExtract(t *testing.T) {
	Convey("Given ratings with ties", t, func() {
		ratings := model.Ratings{
			{Category: "A", Value: 1},
			{Category: "B", Value: 5},
			{Category: "C", Value: 2},
			{Category: "D", Value: 1},
		}

		Convey("When extracting three gaps", func() {
			got := gaps.Extract(ratings, 3)

			Convey("Then the lowest come first and ties keep submission order", func() {
				So(got, ShouldResemble, []string{"A: 1/5", "D: 1/5", "C: 2/5"})
			})

			Convey("And the input is not reordered", func() {
				So(ratings[1].Category, ShouldEqual, "B")
			})
		})

		Convey("When n is not positive", func() {
			So(gaps.Extract(ratings, 0), ShouldHaveLength, gaps.DefaultCount)
		})

		Convey("When n exceeds the number of ratings", func() {
			So(gaps.Extract(ratings, 10), ShouldHaveLength, 4)
		})
	})

	Convey("Given no ratings", t, func() {
		So(gaps.Extract(nil, 3), ShouldBeEmpty)
	})
}
