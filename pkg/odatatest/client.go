// Package odatatest provides transports and a fake service for testing code
// built on package odata.
package odatatest

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/pboyd04/goodata/pkg/odata"
)

// Response builds a response with the given media type.
func Response(uri string, status int, contentType, body string) *odata.Response {
	return &odata.Response{
		RequestURI: uri,
		StatusCode: status,
		Headers:    http.Header{"Content-Type": []string{contentType}},
		Body:       []byte(body),
	}
}

// JSONResponse is a 200 application/json response.
func JSONResponse(uri, body string) *odata.Response {
	return Response(uri, http.StatusOK, "application/json", body)
}

type abortFunc func()

func (f abortFunc) Abort() { f() }

// ImmediateClient answers every request before Request returns.
type ImmediateClient struct {
	Response *odata.Response
	Err      error

	mu       sync.Mutex
	requests []*odata.Request
	aborts   atomic.Int32
}

func (c *ImmediateClient) Request(req *odata.Request, success odata.ResponseFunc, fail odata.ErrorFunc) odata.Abortable {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.mu.Unlock()
	switch {
	case c.Err != nil:
		fail(c.Err)
	case c.Response != nil:
		resp := *c.Response
		if resp.RequestURI == "" {
			resp.RequestURI = req.RequestURI
		}
		success(&resp)
	default:
		success(&odata.Response{RequestURI: req.RequestURI, StatusCode: http.StatusNoContent})
	}
	return abortFunc(func() { c.aborts.Add(1) })
}

func (c *ImmediateClient) Requests() []*odata.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*odata.Request(nil), c.requests...)
}

// Aborts counts Abort calls that reached the transport.
func (c *ImmediateClient) Aborts() int {
	return int(c.aborts.Load())
}

// Call is one request held by a PendingClient.
type Call struct {
	Request *odata.Request
	success odata.ResponseFunc
	fail    odata.ErrorFunc
	aborted atomic.Bool
}

// Complete delivers resp even when the call was aborted, so tests can check
// that late results are dropped by the reader.
func (c *Call) Complete(resp *odata.Response) {
	if resp.RequestURI == "" {
		resp.RequestURI = c.Request.RequestURI
	}
	c.success(resp)
}

// Fail delivers err, ignoring any abort like Complete.
func (c *Call) Fail(err error) {
	c.fail(err)
}

func (c *Call) Abort() {
	c.aborted.Store(true)
}

func (c *Call) Aborted() bool {
	return c.aborted.Load()
}

// PendingClient holds every request until the test completes it.
type PendingClient struct {
	mu    sync.Mutex
	calls []*Call
}

func (p *PendingClient) Request(req *odata.Request, success odata.ResponseFunc, fail odata.ErrorFunc) odata.Abortable {
	call := &Call{Request: req, success: success, fail: fail}
	p.mu.Lock()
	p.calls = append(p.calls, call)
	p.mu.Unlock()
	return call
}

func (p *PendingClient) Calls() []*Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Call(nil), p.calls...)
}

// Last returns the most recent call, or nil.
func (p *PendingClient) Last() *Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.calls) == 0 {
		return nil
	}
	return p.calls[len(p.calls)-1]
}
