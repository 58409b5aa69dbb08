package model_test

import (
	"testing"

	model "github.com/okian/ahp/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestCriteriaNames(t *testing.T) {
	convey.Convey("Given a criteria configuration", t, func() {
		criteria := model.Criteria{
			"power":   {Weight: 0.5},
			"cost":    {Weight: 1.0},
			"latency": {Weight: 0.2, HigherIsBetter: false},
		}

		convey.Convey("Then names are returned in lexical order", func() {
			convey.So(criteria.Names(), convey.ShouldResemble, []string{"cost", "latency", "power"})
		})

		convey.Convey("And an empty configuration yields no names", func() {
			convey.So(model.Criteria{}.Names(), convey.ShouldBeEmpty)
		})
	})
}

func TestWeightsFromScores(t *testing.T) {
	convey.Convey("Given collected entity scores", t, func() {
		scores := map[string]int64{"fog": 40, "cloud": 100, "edge": 75}

		convey.Convey("When building the weight list", func() {
			weights := model.WeightsFromScores(scores)

			convey.Convey("Then every entity gets its score as weight, ordered by name", func() {
				convey.So(weights, convey.ShouldResemble, []model.Weight{
					{Entity: "cloud", Weight: 100},
					{Entity: "edge", Weight: 75},
					{Entity: "fog", Weight: 40},
				})
			})
		})

		convey.Convey("When the map is empty", func() {
			convey.So(model.WeightsFromScores(nil), convey.ShouldBeEmpty)
		})
	})
}
