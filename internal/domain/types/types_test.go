package types_test

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	types "github.com/okian/ahp/internal/domain/types"
)

func TestHealth(t *testing.T) {
	Convey("Given a Health value", t, func() {
		Convey("When the status is healthy", func() {
			h := types.Health{Status: types.StatusHealthy, PolicyStoreReachable: true}
			So(h.Healthy(), ShouldBeTrue)
		})

		Convey("When the status is unhealthy", func() {
			h := types.Health{Status: types.StatusUnhealthy, Error: "policy not found"}
			So(h.Healthy(), ShouldBeFalse)
		})
	})
}

func TestUnixSeconds(t *testing.T) {
	Convey("Given timestamps", t, func() {
		Convey("When the time is zero", func() {
			So(types.UnixSeconds(time.Time{}), ShouldEqual, 0)
		})

		Convey("When the time is set", func() {
			ts := time.Unix(1700000000, int64(500*time.Millisecond))
			So(types.UnixSeconds(ts), ShouldAlmostEqual, 1700000000.5, 1e-6)
		})
	})
}
