// Package odata reads data from OData services. A read is asynchronous: the
// caller supplies callbacks and gets back a handle that can abort the read.
// Transport and payload decoding are pluggable through HTTPClient and Handler.
package odata

import (
	"net/http"

	"github.com/pboyd04/goodata/pkg/csdl"
)

const (
	// MaxDataServiceVersion is sent with every request that does not set it.
	MaxDataServiceVersion = "3.0"

	headerAccept                = "Accept"
	headerContentType           = "Content-Type"
	headerMaxDataServiceVersion = "MaxDataServiceVersion"
)

// Request describes a single read. Headers are sent as given; Data is sent as
// the body when set.
type Request struct {
	Headers    map[string]string
	RequestURI string
	Method     string
	Data       any
	User       string
	Password   string
}

// Response is filled by the transport. Data is set by the Handler.
type Response struct {
	RequestURI string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Data       any
}

// Abortable cancels an operation that has not completed yet.
type Abortable interface {
	Abort()
}

type (
	ResponseFunc func(resp *Response)
	ErrorFunc    func(err error)
	SuccessFunc  func(data any, resp *Response)
)

// HTTPClient transmits requests. It must call exactly one of success or fail
// unless the returned Abortable is aborted first.
type HTTPClient interface {
	Request(req *Request, success ResponseFunc, fail ErrorFunc) Abortable
}

// HandlerContext is what a Handler knows about the service. Both fields are
// nil when the read has no metadata.
type HandlerContext struct {
	Metadata *csdl.Edmx
	Model    *csdl.Model
}

// Handler turns a response body into Response.Data.
type Handler interface {
	// Accept is the value sent in the Accept header.
	Accept() string
	Read(resp *Response, ctx *HandlerContext) error
}

// MediaTypeHandler is a Handler that can tell which payloads it reads.
type MediaTypeHandler interface {
	Handler
	CanRead(mediaType string) bool
}
