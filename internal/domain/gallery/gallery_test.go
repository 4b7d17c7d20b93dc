package gallery_test

import (
	"testing"

	"github.com/okian/birdboard/internal/domain/gallery"
	"github.com/okian/birdboard/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestJoin(t *testing.T) {
	observations := []model.Observation{
		{SpeciesCode: "grerhe1", ComName: "Great Egret", LocName: "first"},
		{SpeciesCode: "amecro", ComName: "American Crow"},
		{SpeciesCode: "grerhe1", ComName: "Great Egret", LocName: "second"},
		{SpeciesCode: "blujay", ComName: "Blue Jay"},
	}

	Convey("Given an empty photo mapping", t, func() {
		Convey("Then the gallery is empty regardless of observations", func() {
			got := gallery.Join(observations, model.PhotoMapping{})
			So(got.Status, ShouldEqual, model.StatusNoData)
			So(got.Items, ShouldBeEmpty)
			So(gallery.Join(observations, nil).Items, ShouldBeEmpty)
		})
	})

	Convey("Given a mapping for some observed species", t, func() {
		mapping := model.PhotoMapping{
			"blujay":  "https://www.instagram.com/p/JAY/",
			"grerhe1": "https://www.instagram.com/p/EGRET/",
			"rethaw":  "https://www.instagram.com/p/HAWK/",
			"amecro":  "",
		}

		Convey("When joining", func() {
			got := gallery.Join(observations, mapping)

			Convey("Then each mapped species appears once in observation order", func() {
				So(got.Items, ShouldHaveLength, 2)
				So(got.Items[0].SpeciesCode, ShouldEqual, "grerhe1")
				So(got.Items[0].LocName, ShouldEqual, "first")
				So(got.Items[0].PhotoURL, ShouldEqual, "https://www.instagram.com/p/EGRET/")
				So(got.Items[1].SpeciesCode, ShouldEqual, "blujay")
			})

			Convey("Then blank URLs and unobserved species are skipped", func() {
				for _, p := range got.Items {
					So(p.SpeciesCode, ShouldNotEqual, "amecro")
					So(p.SpeciesCode, ShouldNotEqual, "rethaw")
				}
			})
		})
	})
}
