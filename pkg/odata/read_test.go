package odata_test

import (
	"context"
	"errors"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/pboyd04/goodata/pkg/csdl"
	"github.com/pboyd04/goodata/pkg/odata"
	"github.com/pboyd04/goodata/pkg/odatatest"
)

const productsURL = "http://example.org/svc/Products"

type recorder struct {
	successes atomic.Int32
	failures  atomic.Int32
	data      atomic.Value
	err       atomic.Value
}

func (r *recorder) success(data any, _ *odata.Response) {
	r.successes.Add(1)
	if data != nil {
		r.data.Store(data)
	}
}

func (r *recorder) fail(err error) {
	r.failures.Add(1)
	r.err.Store(err)
}

var _ = Describe("Read", func() {
	var rec *recorder

	BeforeEach(func() {
		rec = &recorder{}
	})

	Context("with a transport that answers immediately", func() {
		It("calls success once with the decoded payload for a bare URL", func() {
			core, logs := observer.New(zapcore.DebugLevel)
			odata.SetLogger(zap.New(core))
			DeferCleanup(odata.SetLogger, zap.NewNop())

			client := &odatatest.ImmediateClient{
				Response: odatatest.JSONResponse("", `{"d":{"results":[{"ID":1,"Name":"Bread"}],"__count":"1"}}`),
			}
			odata.Read(productsURL, rec.success, nil, odata.WithHTTPClient(client))

			Expect(rec.successes.Load()).To(Equal(int32(1)))
			feed, ok := rec.data.Load().(*odata.Feed)
			Expect(ok).To(BeTrue())
			Expect(feed.Results).To(HaveLen(1))
			Expect(feed.Results[0]).To(HaveKeyWithValue("Name", "Bread"))
			Expect(feed.Results[0]).To(HaveKeyWithValue("ID", float64(1)))
			Expect(feed.Count).NotTo(BeNil())
			Expect(*feed.Count).To(Equal(int64(1)))
			Expect(logs.FilterMessage("read failed").Len()).To(BeZero())
		})

		It("prepares the request", func() {
			client := &odatatest.ImmediateClient{}
			headers := map[string]string{"x-custom": "1"}
			odata.ReadRequest(&odata.Request{RequestURI: productsURL, Headers: headers}, rec.success, rec.fail,
				odata.WithHTTPClient(client))

			Expect(client.Requests()).To(HaveLen(1))
			sent := client.Requests()[0]
			Expect(sent.Method).To(Equal("GET"))
			Expect(sent.RequestURI).To(Equal(productsURL))
			Expect(sent.Headers).To(HaveKeyWithValue("Accept", odata.DefaultHandler.Accept()))
			Expect(sent.Headers).To(HaveKeyWithValue("MaxDataServiceVersion", odata.MaxDataServiceVersion))
			Expect(sent.Headers).To(HaveKeyWithValue("X-Custom", "1"))
			Expect(headers).To(Equal(map[string]string{"x-custom": "1"}))
		})

		It("keeps headers the caller set", func() {
			client := &odatatest.ImmediateClient{}
			odata.ReadRequest(&odata.Request{
				RequestURI: productsURL,
				Method:     "HEAD",
				Headers:    map[string]string{"accept": "application/json", "maxdataserviceversion": "2.0"},
			}, rec.success, rec.fail, odata.WithHTTPClient(client))

			sent := client.Requests()[0]
			Expect(sent.Method).To(Equal("HEAD"))
			Expect(sent.Headers).To(Equal(map[string]string{
				"Accept":                "application/json",
				"Maxdataserviceversion": "2.0",
			}))
		})

		It("reports transport failures through the error callback only", func() {
			client := &odatatest.ImmediateClient{Err: errors.New("connection refused")}
			odata.Read(productsURL, rec.success, rec.fail, odata.WithHTTPClient(client))

			Expect(rec.successes.Load()).To(BeZero())
			Expect(rec.failures.Load()).To(Equal(int32(1)))
			Expect(rec.err.Load()).To(MatchError("connection refused"))
		})

		It("reports handler failures through the error callback", func() {
			client := &odatatest.ImmediateClient{Response: odatatest.JSONResponse("", `{"d":`)}
			odata.Read(productsURL, rec.success, rec.fail, odata.WithHTTPClient(client))

			Expect(rec.successes.Load()).To(BeZero())
			Expect(rec.failures.Load()).To(Equal(int32(1)))
		})

		It("uses a custom handler", func() {
			client := &odatatest.ImmediateClient{Response: odatatest.Response("", 200, "application/json", "3")}
			odata.Read(productsURL+"/$count", rec.success, rec.fail,
				odata.WithHTTPClient(client), odata.WithHandler(odata.TextHandler{}))

			Expect(rec.data.Load()).To(Equal("3"))
			Expect(client.Requests()[0].Headers).To(HaveKeyWithValue("Accept", "text/plain;q=0.7"))
		})

		It("makes abort a no-op after completion", func() {
			client := &odatatest.ImmediateClient{Response: odatatest.JSONResponse("", `{"d":{}}`)}
			op := odata.Read(productsURL, rec.success, rec.fail, odata.WithHTTPClient(client))
			op.Abort()

			Expect(rec.successes.Load()).To(Equal(int32(1)))
			Expect(client.Aborts()).To(BeZero())
		})
	})

	Context("with a transport that completes later", func() {
		var client *odatatest.PendingClient

		BeforeEach(func() {
			client = &odatatest.PendingClient{}
		})

		It("calls back exactly once", func() {
			odata.Read(productsURL, rec.success, rec.fail, odata.WithHTTPClient(client))
			call := client.Last()
			Expect(call).NotTo(BeNil())
			Expect(rec.successes.Load()).To(BeZero())

			call.Complete(odatatest.JSONResponse("", `{"d":{"ID":1}}`))
			call.Complete(odatatest.JSONResponse("", `{"d":{"ID":2}}`))
			call.Fail(errors.New("late"))

			Expect(rec.successes.Load()).To(Equal(int32(1)))
			Expect(rec.failures.Load()).To(BeZero())
			Expect(rec.data.Load()).To(HaveKeyWithValue("ID", float64(1)))
		})

		It("does not call success after a failure", func() {
			odata.Read(productsURL, rec.success, rec.fail, odata.WithHTTPClient(client))
			call := client.Last()
			call.Fail(errors.New("boom"))
			call.Complete(odatatest.JSONResponse("", `{}`))

			Expect(rec.failures.Load()).To(Equal(int32(1)))
			Expect(rec.successes.Load()).To(BeZero())
		})

		It("suppresses both callbacks after abort", func() {
			op := odata.Read(productsURL, rec.success, rec.fail, odata.WithHTTPClient(client))
			op.Abort()
			call := client.Last()
			Expect(call.Aborted()).To(BeTrue())

			call.Complete(odatatest.JSONResponse("", `{"d":{}}`))
			call.Fail(errors.New("late"))

			Expect(rec.successes.Load()).To(BeZero())
			Expect(rec.failures.Load()).To(BeZero())
		})

		It("tolerates repeated aborts", func() {
			op := odata.Read(productsURL, rec.success, rec.fail, odata.WithHTTPClient(client))
			op.Abort()
			op.Abort()
			client.Last().Complete(odatatest.JSONResponse("", `{}`))
			Expect(rec.successes.Load()).To(BeZero())
		})
	})

	Context("ReadContext", func() {
		It("returns the decoded payload", func() {
			client := &odatatest.ImmediateClient{Response: odatatest.JSONResponse("", `{"d":{"Name":"Milk"}}`)}
			data, resp, err := odata.ReadContext(context.Background(), &odata.Request{RequestURI: productsURL + "(1)"},
				odata.WithHTTPClient(client))

			Expect(err).NotTo(HaveOccurred())
			Expect(resp.RequestURI).To(Equal(productsURL + "(1)"))
			Expect(data).To(HaveKeyWithValue("Name", "Milk"))
		})

		It("returns the transport error", func() {
			client := &odatatest.ImmediateClient{Err: &odata.HTTPError{StatusCode: 500}}
			_, _, err := odata.ReadContext(context.Background(), &odata.Request{RequestURI: productsURL},
				odata.WithHTTPClient(client))

			var httpErr *odata.HTTPError
			Expect(errors.As(err, &httpErr)).To(BeTrue())
			Expect(httpErr.StatusCode).To(Equal(500))
			Expect(err.Error()).To(ContainSubstring("500 Internal Server Error"))
		})

		It("aborts the read when the context ends", func() {
			client := &odatatest.PendingClient{}
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_, _, err := odata.ReadContext(ctx, &odata.Request{RequestURI: productsURL}, odata.WithHTTPClient(client))

			Expect(err).To(MatchError(context.Canceled))
			Expect(client.Last().Aborted()).To(BeTrue())
		})
	})

	Context("DefaultHandler", func() {
		read := func(contentType, body string) any {
			client := &odatatest.ImmediateClient{Response: odatatest.Response("", 200, contentType, body)}
			data, _, err := odata.ReadContext(context.Background(), &odata.Request{RequestURI: productsURL},
				odata.WithHTTPClient(client))
			Expect(err).NotTo(HaveOccurred())
			return data
		}

		It("reads metadata documents", func() {
			data := read("application/xml;charset=utf-8", odatatest.DemoMetadata)
			doc, ok := data.(*csdl.Edmx)
			Expect(ok).To(BeTrue())
			Expect(doc.Schemas()).To(HaveLen(1))
			Expect(doc.Schemas()[0].Namespace).To(Equal("ODataDemo"))
		})

		It("reads plain text", func() {
			Expect(read("text/plain", "42")).To(Equal("42"))
		})

		It("leaves unknown media types undecoded", func() {
			Expect(read("application/atom+xml", "<feed/>")).To(BeNil())
		})

		It("leaves empty bodies undecoded", func() {
			Expect(read("application/json", "")).To(BeNil())
		})
	})
})
