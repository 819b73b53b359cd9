package odata_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/pboyd04/goodata/pkg/cache"
	"github.com/pboyd04/goodata/pkg/odata"
	"github.com/pboyd04/goodata/pkg/odatatest"
)

var _ = Describe("MetadataLoader", func() {
	const root = "http://example.org/svc/"

	var (
		ctx    context.Context
		client *odatatest.ImmediateClient
		store  *cache.MemoryCache
		loader *odata.MetadataLoader
	)

	BeforeEach(func() {
		ctx = context.Background()
		client = &odatatest.ImmediateClient{
			Response: odatatest.Response("", http.StatusOK, "application/xml", odatatest.DemoMetadata),
		}
		store = cache.NewMemoryCache()
		loader = &odata.MetadataLoader{Client: client, Cache: store}
	})

	It("builds the metadata URL", func() {
		Expect(odata.MetadataURL(root)).To(Equal("http://example.org/svc/$metadata"))
		Expect(odata.MetadataURL("http://example.org/svc")).To(Equal("http://example.org/svc/$metadata"))
	})

	It("fetches once and then serves from the cache", func() {
		doc, err := loader.Load(ctx, root)
		Expect(err).NotTo(HaveOccurred())
		Expect(doc.Schemas()[0].Namespace).To(Equal("ODataDemo"))

		again, err := loader.Load(ctx, root)
		Expect(err).NotTo(HaveOccurred())
		Expect(again.Schemas()[0].Namespace).To(Equal("ODataDemo"))
		Expect(client.Requests()).To(HaveLen(1))
		Expect(client.Requests()[0].RequestURI).To(Equal("http://example.org/svc/$metadata"))
		Expect(store.Len()).To(Equal(1))
	})

	It("fetches again after Invalidate", func() {
		_, err := loader.Load(ctx, root)
		Expect(err).NotTo(HaveOccurred())
		Expect(loader.Invalidate(ctx, root)).To(Succeed())
		Expect(store.Len()).To(BeZero())

		_, err = loader.Load(ctx, root)
		Expect(err).NotTo(HaveOccurred())
		Expect(client.Requests()).To(HaveLen(2))
	})

	It("replaces unreadable cache entries", func() {
		Expect(store.Set(ctx, "metadata:http://example.org/svc/$metadata", []byte("<junk"), 0)).To(Succeed())

		doc, err := loader.Load(ctx, root)
		Expect(err).NotTo(HaveOccurred())
		Expect(doc).NotTo(BeNil())
		Expect(client.Requests()).To(HaveLen(1))

		_, err = loader.Load(ctx, root)
		Expect(err).NotTo(HaveOccurred())
		Expect(client.Requests()).To(HaveLen(1))
	})

	It("works without a cache", func() {
		loader.Cache = nil
		_, err := loader.Load(ctx, root)
		Expect(err).NotTo(HaveOccurred())
		_, err = loader.Load(ctx, root)
		Expect(err).NotTo(HaveOccurred())
		Expect(client.Requests()).To(HaveLen(2))
		Expect(loader.Invalidate(ctx, root)).To(Succeed())
	})

	It("passes credentials", func() {
		loader.User = "alice"
		loader.Password = "secret"
		_, err := loader.Load(ctx, root)
		Expect(err).NotTo(HaveOccurred())
		Expect(client.Requests()[0].User).To(Equal("alice"))
		Expect(client.Requests()[0].Password).To(Equal("secret"))
	})

	It("does not cache failures", func() {
		client.Err = &odata.HTTPError{StatusCode: http.StatusServiceUnavailable}
		_, err := loader.Load(ctx, root)
		var httpErr *odata.HTTPError
		Expect(errors.As(err, &httpErr)).To(BeTrue())
		Expect(store.Len()).To(BeZero())
	})

	It("rejects documents that are not metadata", func() {
		client.Response = odatatest.Response("", http.StatusOK, "application/xml", "<feed/>")
		_, err := loader.Load(ctx, root)
		Expect(err).To(HaveOccurred())
		Expect(store.Len()).To(BeZero())
	})

	It("loads from a live service", func() {
		server := httptest.NewServer(odatatest.NewDemoService().Router())
		DeferCleanup(server.Close)
		loader.Client = odata.NewNetHTTPClient(server.Client())

		doc, err := loader.Load(ctx, server.URL)
		Expect(err).NotTo(HaveOccurred())
		Expect(doc.DataServices.Schema).To(HaveLen(1))
	})
})
