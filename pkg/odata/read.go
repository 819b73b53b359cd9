package odata

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/pboyd04/goodata/pkg/csdl"
)

var (
	// DefaultHandler negotiates between JSON, metadata and plain text.
	DefaultHandler Handler = NewNegotiatingHandler(JSONHandler{}, MetadataHandler{}, TextHandler{})
	// DefaultHTTPClient is used when a read names no transport.
	DefaultHTTPClient HTTPClient = NewNetHTTPClient(nil)
)

type options struct {
	handler  Handler
	client   HTTPClient
	metadata *csdl.Edmx
	model    *csdl.Model
}

type Option func(*options)

func WithHandler(h Handler) Option {
	return func(o *options) {
		o.handler = h
	}
}

func WithHTTPClient(c HTTPClient) Option {
	return func(o *options) {
		o.client = c
	}
}

// WithMetadata lets handlers type payload values. Without it payloads are
// decoded untyped.
func WithMetadata(doc *csdl.Edmx) Option {
	return func(o *options) {
		o.metadata = doc
		o.model = nil
	}
}

// WithModel is WithMetadata for an already indexed model, which may span
// several documents.
func WithModel(m *csdl.Model) Option {
	return func(o *options) {
		o.model = m
		if docs := m.Documents(); len(docs) > 0 {
			o.metadata = docs[0]
		}
	}
}

func newOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.handler == nil {
		o.handler = DefaultHandler
	}
	if o.client == nil {
		o.client = DefaultHTTPClient
	}
	if o.metadata != nil && o.model == nil {
		o.model = csdl.NewModel(o.metadata)
	}
	return o
}

// DefaultSuccess is used when a read has no success callback.
func DefaultSuccess(data any, resp *Response) {
	logger.Info("read succeeded", zap.String("uri", resp.RequestURI), zap.Int("status", resp.StatusCode))
}

// DefaultError is used when a read has no error callback.
func DefaultError(err error) {
	logger.Error("read failed", zap.Error(err))
}

// Read issues a GET for url.
func Read(url string, success SuccessFunc, fail ErrorFunc, opts ...Option) Abortable {
	return ReadRequest(&Request{RequestURI: url}, success, fail, opts...)
}

// ReadRequest starts req and returns immediately. Exactly one of success or
// fail is called, at most once, on whatever goroutine the transport calls
// back on. Neither is called after Abort returns.
func ReadRequest(req *Request, success SuccessFunc, fail ErrorFunc, opts ...Option) Abortable {
	o := newOptions(opts)
	if success == nil {
		success = DefaultSuccess
	}
	if fail == nil {
		fail = DefaultError
	}
	op := &operation{
		success: success,
		fail:    fail,
		handler: o.handler,
		hctx:    &HandlerContext{Metadata: o.metadata, Model: o.model},
	}
	prepared := prepareRequest(req, o.handler)
	logger.Debug("read", zap.String("method", prepared.Method), zap.String("uri", prepared.RequestURI))
	op.setTransport(o.client.Request(prepared, op.complete, op.failed))
	return op
}

// ReadContext is the blocking form of ReadRequest. Cancelling ctx aborts the
// read.
func ReadContext(ctx context.Context, req *Request, opts ...Option) (any, *Response, error) {
	type result struct {
		data any
		resp *Response
		err  error
	}
	done := make(chan result, 1)
	op := ReadRequest(req, func(data any, resp *Response) {
		done <- result{data: data, resp: resp}
	}, func(err error) {
		done <- result{err: err}
	}, opts...)
	select {
	case r := <-done:
		return r.data, r.resp, r.err
	case <-ctx.Done():
		op.Abort()
		// the read may have completed before the abort
		select {
		case r := <-done:
			return r.data, r.resp, r.err
		default:
		}
		return nil, nil, ctx.Err()
	}
}

func prepareRequest(req *Request, handler Handler) *Request {
	prepared := *req
	prepared.Headers = make(map[string]string, len(req.Headers)+2)
	for name, value := range req.Headers {
		prepared.Headers[http.CanonicalHeaderKey(name)] = value
	}
	if prepared.Method == "" {
		prepared.Method = http.MethodGet
	}
	if !hasHeader(prepared.Headers, headerAccept) {
		if accept := handler.Accept(); accept != "" {
			prepared.Headers[headerAccept] = accept
		}
	}
	if !hasHeader(prepared.Headers, headerMaxDataServiceVersion) {
		prepared.Headers[headerMaxDataServiceVersion] = MaxDataServiceVersion
	}
	return &prepared
}

func hasHeader(headers map[string]string, name string) bool {
	for key := range headers {
		if strings.EqualFold(key, name) {
			return true
		}
	}
	return false
}

type opState int

const (
	statePending opState = iota
	stateDone
	stateAborted
)

// operation guards the callbacks of one read.
type operation struct {
	mu        sync.Mutex
	state     opState
	transport Abortable

	success SuccessFunc
	fail    ErrorFunc
	handler Handler
	hctx    *HandlerContext
}

// finish moves the operation out of pending. Only the first caller wins.
func (op *operation) finish() bool {
	op.mu.Lock()
	defer op.mu.Unlock()
	if op.state != statePending {
		return false
	}
	op.state = stateDone
	return true
}

func (op *operation) complete(resp *Response) {
	if !op.finish() {
		logger.Debug("dropping late response", zap.String("uri", resp.RequestURI))
		return
	}
	if err := op.handler.Read(resp, op.hctx); err != nil {
		op.fail(err)
		return
	}
	op.success(resp.Data, resp)
}

func (op *operation) failed(err error) {
	if !op.finish() {
		logger.Debug("dropping late error", zap.Error(err))
		return
	}
	op.fail(err)
}

func (op *operation) setTransport(t Abortable) {
	op.mu.Lock()
	op.transport = t
	aborted := op.state == stateAborted
	op.mu.Unlock()
	if aborted && t != nil {
		t.Abort()
	}
}

// Abort is a no-op once the transport has delivered its result.
func (op *operation) Abort() {
	op.mu.Lock()
	if op.state != statePending {
		op.mu.Unlock()
		return
	}
	op.state = stateAborted
	t := op.transport
	op.mu.Unlock()
	if t != nil {
		t.Abort()
	}
}
