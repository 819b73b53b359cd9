package odata

import (
	"encoding/json"
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Edm conversions", func() {
	DescribeTable("parseDuration",
		func(in string, want time.Duration) {
			got, err := parseDuration(in)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(want))
		},
		Entry("hours and minutes", "PT13H20M", 13*time.Hour+20*time.Minute),
		Entry("days", "P2D", 48*time.Hour),
		Entry("days and fraction", "P1DT0.5S", 24*time.Hour+500*time.Millisecond),
		Entry("seconds only", "PT45S", 45*time.Second),
		Entry("negative", "-PT1H", -time.Hour),
		Entry("zero", "PT0S", time.Duration(0)),
	)

	DescribeTable("parseDuration rejects",
		func(in string) {
			_, err := parseDuration(in)
			Expect(err).To(MatchError(errInvalidDuration))
		},
		Entry("empty", ""),
		Entry("bare P", "P"),
		Entry("clock", "13:20"),
		Entry("dangling T", "P1DT"),
		Entry("years", "P1Y"),
		Entry("out of order", "PT1S2H"),
	)

	DescribeTable("parseDateTime",
		func(in string, want time.Time) {
			got, err := parseDateTime(in)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(BeTemporally("==", want))
		},
		Entry("verbose", "/Date(1262304000000)/", time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)),
		Entry("verbose with offset", "/Date(1262304000000+0060)/", time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)),
		Entry("before the epoch", "/Date(-86400000)/", time.Date(1969, 12, 31, 0, 0, 0, 0, time.UTC)),
		Entry("iso", "2010-01-01T10:30:00Z", time.Date(2010, 1, 1, 10, 30, 0, 0, time.UTC)),
		Entry("iso without zone", "2010-01-01T10:30:00.25", time.Date(2010, 1, 1, 10, 30, 0, 250000000, time.UTC)),
		Entry("iso minutes", "2010-01-01T10:30", time.Date(2010, 1, 1, 10, 30, 0, 0, time.UTC)),
	)

	It("keeps the verbose offset as the zone", func() {
		got, err := parseDateTime("/Date(1262304000000-0120)/")
		Expect(err).NotTo(HaveOccurred())
		_, offset := got.Zone()
		Expect(offset).To(Equal(-120 * 60))
	})

	DescribeTable("parseDateTime rejects",
		func(in string) {
			_, err := parseDateTime(in)
			Expect(err).To(HaveOccurred())
		},
		Entry("unterminated", "/Date(1262304000000"),
		Entry("not a number", "/Date(soon)/"),
		Entry("text", "yesterday"),
	)

	DescribeTable("convertPrimitive",
		func(edmType string, in, want any) {
			got, err := convertPrimitive(edmType, in)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(want))
		},
		Entry("int from number", "Edm.Int32", json.Number("42"), int64(42)),
		Entry("int64 from string", "Edm.Int64", "9007199254740993", int64(9007199254740993)),
		Entry("byte from float", "Edm.Byte", float64(7), int64(7)),
		Entry("boolean", "Edm.Boolean", true, true),
		Entry("boolean from string", "Edm.Boolean", "false", false),
		Entry("double", "Edm.Double", json.Number("1.5"), 1.5),
		Entry("decimal from number", "Edm.Decimal", json.Number("12.50"), "12.50"),
		Entry("decimal from float", "Edm.Decimal", 0.25, "0.25"),
		Entry("binary", "Edm.Binary", "aGk=", []byte("hi")),
		Entry("string", "Edm.String", "x", "x"),
		Entry("unknown primitive", "Edm.Geography", "POINT(0 0)", "POINT(0 0)"),
		Entry("null", "Edm.Int32", nil, nil),
	)

	It("reads non-finite doubles", func() {
		v, err := convertPrimitive("Edm.Double", "INF")
		Expect(err).NotTo(HaveOccurred())
		Expect(math.IsInf(v.(float64), 1)).To(BeTrue())
		v, err = convertPrimitive("Edm.Single", "-INF")
		Expect(err).NotTo(HaveOccurred())
		Expect(math.IsInf(v.(float64), -1)).To(BeTrue())
		v, err = convertPrimitive("Edm.Double", "NaN")
		Expect(err).NotTo(HaveOccurred())
		Expect(math.IsNaN(v.(float64))).To(BeTrue())
	})

	DescribeTable("convertPrimitive rejects",
		func(edmType string, in any) {
			_, err := convertPrimitive(edmType, in)
			Expect(err).To(HaveOccurred())
		},
		Entry("fractional int", "Edm.Int16", 1.5),
		Entry("boolean from number", "Edm.Boolean", json.Number("1")),
		Entry("date from number", "Edm.DateTime", json.Number("1")),
		Entry("guid", "Edm.Guid", "xyz"),
		Entry("binary", "Edm.Binary", "%%%"),
		Entry("decimal", "Edm.Decimal", true),
	)
})
