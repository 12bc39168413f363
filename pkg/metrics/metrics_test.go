package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestNewManager(t *testing.T) {
	Convey("Given a manager on a private registry", t, func() {
		registry := prometheus.NewRegistry()
		m := NewManager(
			WithNamespace("test"),
			WithSubsystem("unit"),
			WithHistogramBuckets([]float64{1, 10}),
			WithPrometheusRegistry(registry),
		)

		Convey("Then its collectors are registered under the namespace", func() {
			m.leadsCaptured.WithLabelValues("newsletter").Inc()
			families, err := registry.Gather()
			So(err, ShouldBeNil)
			names := make([]string, 0, len(families))
			for _, f := range families {
				names = append(names, f.GetName())
			}
			So(names, ShouldContain, "test_unit_leads_captured_total")
		})
	})
}

func TestGlobalRecorders(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording deliveries", func() {
			before := testutil.ToFloat64(globalManager.deliveries.WithLabelValues("email", OutcomeSent))
			RecordDelivery("email", OutcomeSent)

			Convey("Then the counter moves", func() {
				after := testutil.ToFloat64(globalManager.deliveries.WithLabelValues("email", OutcomeSent))
				So(after-before, ShouldEqual, 1)
			})
		})

		Convey("When scheduling zero sends", func() {
			before := testutil.ToFloat64(globalManager.sendsScheduled.WithLabelValues("general"))
			RecordSendsScheduled("general", 0)
			RecordSendsScheduled("general", 4)

			Convey("Then only positive counts are added", func() {
				after := testutil.ToFloat64(globalManager.sendsScheduled.WithLabelValues("general"))
				So(after-before, ShouldEqual, 4)
			})
		})

		Convey("When the send backlog is refreshed", func() {
			UpdateSendCounts(7, 2, 1, 30, 3)

			Convey("Then each status gauge holds the latest value", func() {
				So(testutil.ToFloat64(globalManager.sendsByStatus.WithLabelValues("pending")), ShouldEqual, 7)
				So(testutil.ToFloat64(globalManager.sendsByStatus.WithLabelValues("due")), ShouldEqual, 2)
				So(testutil.ToFloat64(globalManager.sendsByStatus.WithLabelValues("failed")), ShouldEqual, 3)
			})
		})

		Convey("When system metrics are updated", func() {
			UpdateSystemGoroutineCount(12)
			RecordSystemGCPauseTime(0.5)
			So(testutil.ToFloat64(globalManager.systemGoroutines), ShouldEqual, 12)
			So(testutil.ToFloat64(globalManager.systemGCPauseMillis), ShouldEqual, 0.5)
		})

		Convey("And the registry is exposed", func() {
			So(GetRegistry(), ShouldNotBeNil)
		})
	})
}
