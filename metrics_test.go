package qweave

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestMetrics(t *testing.T) {
	Convey("Given fresh metrics", t, func() {
		m := newMetrics()

		Convey("When operations are recorded", func() {
			m.recordOperation(time.Now().Add(-2 * time.Millisecond))
			m.recordOperation(time.Now().Add(-4 * time.Millisecond))

			Convey("It should count them and track latency", func() {
				So(m.Operations, ShouldEqual, 2)
				So(m.AverageOperationLatency, ShouldBeGreaterThanOrEqualTo, 2*time.Millisecond)
				So(m.P99OperationLatency, ShouldBeGreaterThanOrEqualTo, m.P95OperationLatency)
			})
		})

		Convey("When events and warnings are recorded", func() {
			for _, event := range []string{"measurement", "materialize", "merge", "factor", "resize", "resize"} {
				m.recordEvent(event)
			}
			m.recordWarning("drift")
			m.recordWarning("kraus_completeness")
			m.recordWarning("truncation")

			Convey("It should count each kind", func() {
				So(m.Measurements, ShouldEqual, 1)
				So(m.Materializes, ShouldEqual, 1)
				So(m.Merges, ShouldEqual, 1)
				So(m.Factorizations, ShouldEqual, 1)
				So(m.Resizes, ShouldEqual, 2)
				So(m.DriftWarnings, ShouldEqual, 1)
				So(m.KrausWarnings, ShouldEqual, 1)
				So(m.TruncWarnings, ShouldEqual, 1)
				So(m.ExportMetrics()["trunc_warnings"], ShouldEqual, int64(1))
			})
		})

		Convey("When tensors and rejections are recorded", func() {
			m.recordTensor(512)
			m.recordTensor(128)
			m.recordRejection()

			Convey("It should keep the peak and the rejection count", func() {
				So(m.PeakTensorBytes, ShouldEqual, 512)
				So(m.Rejections, ShouldEqual, 1)
			})
		})

		Convey("ExportMetrics should expose every counter", func() {
			m.recordEvent("merge")
			exported := m.ExportMetrics()

			So(exported["merges"], ShouldEqual, int64(1))
			So(exported["operations"], ShouldEqual, int64(0))
			for _, key := range []string{"measurements", "rejections", "peak_tensor_bytes", "p99_latency_us"} {
				_, ok := exported[key]
				So(ok, ShouldBeTrue)
			}
		})
	})

	Convey("Given a composite driven through a few operations", t, func() {
		ce, err := NewCompositeEnvelope(nil)
		So(err, ShouldBeNil)
		a, _ := NewPolarization(Diagonal)
		b, _ := NewPolarization(Horizontal)

		So(ce.ApplyOperation(cnot(), a, b), ShouldBeNil)
		_, err = ce.MeasurePartial([]*State{a})
		So(err, ShouldBeNil)

		Convey("Its metrics should reflect the work done", func() {
			m := ce.Metrics()
			So(m.Operations, ShouldBeGreaterThanOrEqualTo, 1)
			So(m.Materializes, ShouldBeGreaterThanOrEqualTo, 1)
			So(m.Measurements, ShouldBeGreaterThanOrEqualTo, 1)
			So(m.PeakTensorBytes, ShouldBeGreaterThan, 0)
		})
	})
}
