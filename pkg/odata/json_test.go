package odata_test

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/pboyd04/goodata/pkg/csdl"
	"github.com/pboyd04/goodata/pkg/odata"
	"github.com/pboyd04/goodata/pkg/odatatest"
)

const verboseProducts = `{"d":{"results":[{
	"__metadata":{"uri":"http://example.org/svc/Products(0)","type":"ODataDemo.Product"},
	"ID":0,
	"Name":"Bread",
	"ReleaseDate":"/Date(694224000000)/",
	"Rating":4,
	"Price":"2.5",
	"Code":"6ba7b810-9dad-11d1-80b4-00c04fd430c8",
	"Shelf":"PT13H20M",
	"Address":{"Street":"1 Main St","Zip":12345},
	"Tags":{"results":["fresh","daily"]},
	"Category":{"__deferred":{"uri":"http://example.org/svc/Products(0)/Category"}}
}],"__count":"1","__next":"http://example.org/svc/Products?$skiptoken=1"}}`

var _ = Describe("JSONHandler", func() {
	var doc *csdl.Edmx

	BeforeEach(func() {
		var err error
		doc, err = csdl.Unmarshal([]byte(odatatest.DemoMetadata))
		Expect(err).NotTo(HaveOccurred())
	})

	read := func(body string, opts ...odata.Option) (any, error) {
		client := &odatatest.ImmediateClient{Response: odatatest.JSONResponse("", body)}
		opts = append(opts, odata.WithHTTPClient(client))
		data, _, err := odata.ReadContext(context.Background(), &odata.Request{RequestURI: productsURL}, opts...)
		return data, err
	}

	Context("with metadata", func() {
		It("types verbose entity properties", func() {
			data, err := read(verboseProducts, odata.WithMetadata(doc))
			Expect(err).NotTo(HaveOccurred())

			feed := data.(*odata.Feed)
			Expect(*feed.Count).To(Equal(int64(1)))
			Expect(feed.Next).To(Equal("http://example.org/svc/Products?$skiptoken=1"))
			product := feed.Results[0].(map[string]any)
			Expect(product["ID"]).To(Equal(int64(0)))
			Expect(product["Name"]).To(Equal("Bread"))
			Expect(product["ReleaseDate"]).To(BeTemporally("==", time.UnixMilli(694224000000)))
			Expect(product["Rating"]).To(Equal(int64(4)))
			Expect(product["Price"]).To(Equal("2.5"))
			Expect(product["Code"]).To(Equal(uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")))
			Expect(product["Shelf"]).To(Equal(13*time.Hour + 20*time.Minute))
			Expect(product["Address"]).To(Equal(map[string]any{"Street": "1 Main St", "Zip": int64(12345)}))
			Expect(product["Tags"]).To(Equal([]any{"fresh", "daily"}))
			Expect(product["Category"]).To(HaveKey("__deferred"))
		})

		It("types expanded navigation properties", func() {
			data, err := read(`{"d":{
				"__metadata":{"type":"ODataDemo.Product"},
				"ID":"7",
				"Category":{"ID":1,"Name":"Beverages","Products":{"results":[{"ID":8,"Rating":"2"}]}}
			}}`, odata.WithMetadata(doc))
			Expect(err).NotTo(HaveOccurred())

			product := data.(map[string]any)
			Expect(product["ID"]).To(Equal(int64(7)))
			category := product["Category"].(map[string]any)
			Expect(category["ID"]).To(Equal(int64(1)))
			related := category["Products"].(map[string]any)["results"].([]any)
			Expect(related[0]).To(HaveKeyWithValue("Rating", int64(2)))
		})

		It("finds the entity type from the light context URL", func() {
			data, err := read(`{
				"odata.metadata":"http://example.org/svc/$metadata#Products",
				"odata.count":"2",
				"value":[{"ID":5,"ReleaseDate":"2010-01-01T00:00:00"},{"ID":6,"ReleaseDate":"2010-01-02T10:00:00+02:00"}]
			}`, odata.WithMetadata(doc))
			Expect(err).NotTo(HaveOccurred())

			feed := data.(*odata.Feed)
			Expect(*feed.Count).To(Equal(int64(2)))
			Expect(feed.Results[0]).To(HaveKeyWithValue("ID", int64(5)))
			Expect(feed.Results[0].(map[string]any)["ReleaseDate"]).
				To(BeTemporally("==", time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)))
			Expect(feed.Results[1].(map[string]any)["ReleaseDate"]).
				To(BeTemporally("==", time.Date(2010, 1, 2, 8, 0, 0, 0, time.UTC)))
		})

		It("reads a single light entity", func() {
			data, err := read(`{"@odata.context":"$metadata#Categories/$entity","ID":3,"Name":"Snacks"}`,
				odata.WithMetadata(doc))
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(HaveKeyWithValue("ID", int64(3)))
		})

		It("prefers the declared type", func() {
			data, err := read(`{"odata.metadata":"$metadata#Products","value":[{"odata.type":"ODataDemo.Category","ID":1,"Products":[]}]}`,
				odata.WithMetadata(doc))
			Expect(err).NotTo(HaveOccurred())
			Expect(data.(*odata.Feed).Results[0]).To(HaveKeyWithValue("ID", int64(1)))
		})

		It("leaves payloads of unknown types alone", func() {
			data, err := read(`{"d":{"__metadata":{"type":"Other.Thing"},"ID":1}}`, odata.WithMetadata(doc))
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(HaveKey("ID"))
		})

		It("keeps nulls", func() {
			data, err := read(`{"d":{"__metadata":{"type":"ODataDemo.Product"},"Code":null,"Address":null}}`,
				odata.WithMetadata(doc))
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(HaveKeyWithValue("Code", BeNil()))
			Expect(data).To(HaveKeyWithValue("Address", BeNil()))
		})

		It("accepts a model spanning documents", func() {
			data, err := read(`{"odata.metadata":"$metadata#Products","value":[{"ID":9}]}`,
				odata.WithModel(csdl.NewModel(doc)))
			Expect(err).NotTo(HaveOccurred())
			Expect(data.(*odata.Feed).Results[0]).To(HaveKeyWithValue("ID", int64(9)))
		})

		DescribeTable("reports values that do not match their type",
			func(property, value, edmType string) {
				_, err := read(`{"d":{"__metadata":{"type":"ODataDemo.Product"},"`+property+`":`+value+`}}`,
					odata.WithMetadata(doc))
				var convErr *odata.ConversionError
				Expect(errors.As(err, &convErr)).To(BeTrue())
				Expect(convErr.Property).To(Equal(property))
				Expect(convErr.Type).To(Equal(edmType))
			},
			Entry("integer", "Rating", `"abc"`, "Edm.Int32"),
			Entry("fraction", "Rating", `1.5`, "Edm.Int32"),
			Entry("date", "ReleaseDate", `"yesterday"`, "Edm.DateTime"),
			Entry("guid", "Code", `"not-a-guid"`, "Edm.Guid"),
			Entry("time", "Shelf", `"13:20"`, "Edm.Time"),
			Entry("decimal", "Price", `"cheap"`, "Edm.Decimal"),
			Entry("complex", "Address", `"1 Main St"`, "ODataDemo.Address"),
			Entry("collection", "Tags", `"fresh"`, "Collection(Edm.String)"),
		)
	})

	Context("without metadata", func() {
		It("decodes plain JSON", func() {
			data, err := read(verboseProducts)
			Expect(err).NotTo(HaveOccurred())

			product := data.(*odata.Feed).Results[0].(map[string]any)
			Expect(product["ID"]).To(Equal(float64(0)))
			Expect(product["ReleaseDate"]).To(Equal("/Date(694224000000)/"))
			Expect(product["Code"]).To(Equal("6ba7b810-9dad-11d1-80b4-00c04fd430c8"))
		})

		It("unwraps verbose v1 collections", func() {
			data, err := read(`{"d":[{"ID":1},{"ID":2}]}`)
			Expect(err).NotTo(HaveOccurred())
			feed := data.(*odata.Feed)
			Expect(feed.Results).To(HaveLen(2))
			Expect(feed.Count).To(BeNil())
		})

		It("returns other documents as decoded", func() {
			data, err := read(`{"error":{"code":"","message":"x"}}`)
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(HaveKey("error"))
		})
	})
})
