package raw_test

import (
	"context"
	"errors"
	"testing"

	raw "github.com/senselab/datakit/internal/domain/raw"
	record "github.com/senselab/datakit/internal/domain/record"
	version "github.com/senselab/datakit/internal/domain/version"
	logging "github.com/senselab/datakit/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logging.Init()
}

// twoTrialRecord builds a record with two trials of 4 and 3 samples at 10 Hz.
func twoTrialRecord() record.Raw {
	return record.Raw{
		Time:  [][]float64{{0, 0.1, 0.2, 0.3}, {-0.1, 0, 0.1}},
		Trial: []*record.Matrix{record.NewMatrix(2, 4, nil), record.NewMatrix(2, 3, nil)},
		Label: []string{"ch1", "ch2"},
	}
}

func TestNormalizeLatest(t *testing.T) {
	Convey("Given a raw normalizer", t, func() {
		n := raw.New()
		ctx := context.Background()

		Convey("When normalizing a legacy record to the latest version", func() {
			rec := twoTrialRecord()
			rec.Fsample = 10
			rec.Offset = []int{0, -1}

			out, err := n.Normalize(ctx, rec)
			So(err, ShouldBeNil)

			Convey("Then deprecated and obsolete fields are gone", func() {
				So(out.Fsample, ShouldEqual, 0)
				So(out.Offset, ShouldBeNil)
			})

			Convey("And sample bookkeeping is reconstructed consecutively", func() {
				So(out.SampleInfo, ShouldResemble, [][2]int{{1, 4}, {5, 7}})
			})

			Convey("And the required fields pass through untouched", func() {
				So(out.Time, ShouldResemble, rec.Time)
				So(out.Trial, ShouldResemble, rec.Trial)
				So(out.Label, ShouldResemble, rec.Label)
			})

			Convey("And the input record is not mutated", func() {
				So(rec.Fsample, ShouldEqual, 10)
				So(rec.Offset, ShouldResemble, []int{0, -1})
			})
		})

		Convey("When the record already carries sample bookkeeping", func() {
			rec := twoTrialRecord()
			rec.SampleInfo = [][2]int{{101, 104}, {201, 203}}

			out, err := n.Normalize(ctx, rec, raw.WithVersion("2011v2"))

			Convey("Then it is preserved as-is", func() {
				So(err, ShouldBeNil)
				So(out.SampleInfo, ShouldResemble, [][2]int{{101, 104}, {201, 203}})
			})
		})
	})
}

func TestNormalize2011v1(t *testing.T) {
	Convey("Given a raw normalizer", t, func() {
		n := raw.New()

		Convey("When targeting the 2011v1 era", func() {
			rec := twoTrialRecord()
			rec.Fsample = 10
			rec.Offset = []int{0, -1}

			out, err := n.Normalize(context.Background(), rec, raw.WithVersion("2011v1"))
			So(err, ShouldBeNil)

			Convey("Then the sampling rate survives but offsets do not", func() {
				So(out.Fsample, ShouldEqual, 10)
				So(out.Offset, ShouldBeNil)
			})

			Convey("And no sample bookkeeping is fabricated", func() {
				So(out.SampleInfo, ShouldBeNil)
			})
		})
	})
}

func TestNormalize2003(t *testing.T) {
	Convey("Given a raw normalizer", t, func() {
		n := raw.New()
		ctx := context.Background()

		Convey("When targeting the 2003 era without a sampling rate", func() {
			rec := twoTrialRecord()
			rec.SampleInfo = [][2]int{{1, 4}, {5, 7}}
			rec.TrialInfo = record.NewMatrix(2, 1, []float64{1, 2})

			out, err := n.Normalize(ctx, rec, raw.WithVersion("2003"))
			So(err, ShouldBeNil)

			Convey("Then the sampling rate is derived from the first time axis", func() {
				So(out.Fsample, ShouldAlmostEqual, 10, 1e-9)
			})

			Convey("And trigger offsets are derived per trial", func() {
				So(out.Offset, ShouldResemble, []int{0, -1})
			})

			Convey("And later-era bookkeeping is removed", func() {
				So(out.SampleInfo, ShouldBeNil)
				So(out.TrialInfo, ShouldBeNil)
			})
		})

		Convey("When the record already declares a sampling rate", func() {
			rec := twoTrialRecord()
			rec.Fsample = 500

			out, err := n.Normalize(ctx, rec, raw.WithVersion("2003"))

			Convey("Then the declared rate wins", func() {
				So(err, ShouldBeNil)
				So(out.Fsample, ShouldEqual, 500)
			})
		})

		Convey("When the time axes are too short to derive a rate", func() {
			rec := record.Raw{
				Time:  [][]float64{{0}},
				Trial: []*record.Matrix{record.NewMatrix(1, 1, nil)},
				Label: []string{"ch1"},
			}

			_, err := n.Normalize(ctx, rec, raw.WithVersion("2003"))

			Convey("Then it fails as malformed", func() {
				So(errors.Is(err, record.ErrMalformed), ShouldBeTrue)
			})
		})
	})
}

func TestNormalizeFailures(t *testing.T) {
	Convey("Given a raw normalizer", t, func() {
		n := raw.New()
		ctx := context.Background()

		Convey("When the version tag is unknown", func() {
			_, err := n.Normalize(ctx, twoTrialRecord(), raw.WithVersion("1999"))

			Convey("Then it fails with the unsupported sentinel carrying the tag", func() {
				So(errors.Is(err, version.ErrUnsupported), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, `"1999"`)
			})
		})

		Convey("When a required field is missing", func() {
			rec := twoTrialRecord()
			rec.Label = nil

			_, err := n.Normalize(ctx, rec)

			Convey("Then it fails immediately with the missing-field sentinel", func() {
				So(errors.Is(err, record.ErrMissingField), ShouldBeTrue)
			})
		})
	})
}
