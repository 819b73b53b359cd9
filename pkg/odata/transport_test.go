package odata_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/pboyd04/goodata/pkg/csdl"
	"github.com/pboyd04/goodata/pkg/odata"
	"github.com/pboyd04/goodata/pkg/odatatest"
)

var _ = Describe("NetHTTPClient", func() {
	var (
		ctx    context.Context
		svc    *odatatest.Service
		server *httptest.Server
		client *odata.NetHTTPClient
	)

	start := func() {
		server = httptest.NewServer(svc.Router())
		DeferCleanup(server.Close)
		client = odata.NewNetHTTPClient(server.Client())
	}

	readURL := func(path string, opts ...odata.Option) (any, *odata.Response, error) {
		opts = append(opts, odata.WithHTTPClient(client))
		return odata.ReadContext(ctx, &odata.Request{RequestURI: server.URL + path}, opts...)
	}

	BeforeEach(func() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
		DeferCleanup(cancel)
		svc = odatatest.NewDemoService()
	})

	Context("against the demo service", func() {
		BeforeEach(start)

		It("reads the metadata document", func() {
			data, resp, err := readURL("/$metadata")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			doc := data.(*csdl.Edmx)
			Expect(doc.Version).To(Equal("1.0"))
		})

		It("reads a typed feed", func() {
			data, _, err := readURL("/$metadata")
			Expect(err).NotTo(HaveOccurred())

			data, _, err = readURL("/Products", odata.WithMetadata(data.(*csdl.Edmx)))
			Expect(err).NotTo(HaveOccurred())
			feed := data.(*odata.Feed)
			Expect(*feed.Count).To(Equal(int64(2)))
			Expect(feed.Results).To(HaveLen(2))
			bread := feed.Results[0].(map[string]any)
			Expect(bread["ID"]).To(Equal(int64(0)))
			Expect(bread["ReleaseDate"]).To(BeTemporally("==", time.UnixMilli(694224000000)))
			Expect(bread["Tags"]).To(Equal([]any{"fresh", "daily"}))
			Expect(bread["__metadata"]).To(HaveKeyWithValue("uri", server.URL+"/Products(0)"))
			milk := feed.Results[1].(map[string]any)
			Expect(milk["Code"]).To(BeNil())
			Expect(milk["Tags"]).To(BeEmpty())
		})

		It("reads a single entity", func() {
			data, _, err := readURL("/Products(1)")
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(HaveKeyWithValue("Name", "Milk"))
		})

		It("reads a count as text", func() {
			data, _, err := readURL("/Categories/$count")
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal("2"))
		})

		It("sends the prepared headers", func() {
			_, _, err := readURL("/Products")
			Expect(err).NotTo(HaveOccurred())

			headers := svc.Headers()
			Expect(headers).To(HaveLen(1))
			Expect(headers[0].Get("MaxDataServiceVersion")).To(Equal(odata.MaxDataServiceVersion))
			Expect(headers[0].Get("Accept")).To(Equal(odata.DefaultHandler.Accept()))
		})

		DescribeTable("reports missing resources as HTTP errors",
			func(path string) {
				_, _, err := readURL(path)
				var httpErr *odata.HTTPError
				Expect(errors.As(err, &httpErr)).To(BeTrue())
				Expect(httpErr.StatusCode).To(Equal(http.StatusNotFound))
				Expect(string(httpErr.Response.Body)).To(ContainSubstring("Resource not found"))
			},
			Entry("unknown set", "/Suppliers"),
			Entry("unknown key", "/Products(9)"),
			Entry("unknown count", "/Suppliers/$count"),
			Entry("unknown path", "/Products(0)/Category/Name"),
		)
	})

	Context("with authentication", func() {
		BeforeEach(func() {
			svc.User = "alice"
			svc.Password = "secret"
			start()
		})

		It("rejects anonymous reads", func() {
			_, _, err := readURL("/Products")
			var httpErr *odata.HTTPError
			Expect(errors.As(err, &httpErr)).To(BeTrue())
			Expect(httpErr.StatusCode).To(Equal(http.StatusUnauthorized))
		})

		It("sends basic credentials", func() {
			_, _, err := odata.ReadContext(ctx, &odata.Request{
				RequestURI: server.URL + "/Products",
				User:       "alice",
				Password:   "secret",
			}, odata.WithHTTPClient(client))
			Expect(err).NotTo(HaveOccurred())
		})
	})

	It("encodes request data as JSON", func() {
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"d": map[string]string{
					"method":      r.Method,
					"contentType": r.Header.Get("Content-Type"),
					"body":        string(body),
				},
			})
		}))
		DeferCleanup(server.Close)
		client = odata.NewNetHTTPClient(server.Client())

		data, _, err := odata.ReadContext(ctx, &odata.Request{
			RequestURI: server.URL,
			Method:     http.MethodPost,
			Data:       map[string]int{"ID": 1},
		}, odata.WithHTTPClient(client))
		Expect(err).NotTo(HaveOccurred())
		Expect(data).To(HaveKeyWithValue("method", "POST"))
		Expect(data).To(HaveKeyWithValue("contentType", "application/json"))
		Expect(data).To(HaveKeyWithValue("body", `{"ID":1}`))
	})

	It("reports connection failures", func() {
		server = httptest.NewServer(svc.Router())
		server.Close()
		client = odata.NewNetHTTPClient(nil)
		_, _, err := readURL("/Products")
		Expect(err).To(HaveOccurred())
	})

	It("suppresses callbacks after abort", func() {
		release := make(chan struct{})
		var arrived atomic.Bool
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			arrived.Store(true)
			select {
			case <-release:
			case <-r.Context().Done():
			}
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte("late"))
		}))
		DeferCleanup(server.Close)
		DeferCleanup(func() { close(release) })
		client = odata.NewNetHTTPClient(server.Client())

		var callbacks atomic.Int32
		op := odata.Read(server.URL, func(any, *odata.Response) {
			callbacks.Add(1)
		}, func(error) {
			callbacks.Add(1)
		}, odata.WithHTTPClient(client))
		Eventually(arrived.Load).Should(BeTrue())
		op.Abort()

		Consistently(callbacks.Load, 200*time.Millisecond).Should(BeZero())
	})
})
