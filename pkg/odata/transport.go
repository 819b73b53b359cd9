package odata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"

	"go.uber.org/zap"
)

// NetHTTPClient is the default transport. Each request runs on its own
// goroutine and callbacks are made from it.
type NetHTTPClient struct {
	Client *http.Client
}

func NewNetHTTPClient(client *http.Client) *NetHTTPClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &NetHTTPClient{Client: client}
}

type netCall struct {
	cancel  context.CancelFunc
	aborted atomic.Bool
}

func (c *netCall) Abort() {
	c.aborted.Store(true)
	c.cancel()
}

func (c *NetHTTPClient) Request(req *Request, success ResponseFunc, fail ErrorFunc) Abortable {
	ctx, cancel := context.WithCancel(context.Background())
	call := &netCall{cancel: cancel}
	go func() {
		defer cancel()
		resp, err := c.do(ctx, req)
		if call.aborted.Load() {
			logger.Debug("request aborted", zap.String("uri", req.RequestURI))
			return
		}
		if err != nil {
			if fail != nil {
				fail(err)
			}
			return
		}
		if success != nil {
			success(resp)
		}
	}()
	return call
}

func requestBody(data any) (io.Reader, bool, error) {
	switch body := data.(type) {
	case nil:
		return nil, false, nil
	case []byte:
		return bytes.NewReader(body), false, nil
	case string:
		return bytes.NewBufferString(body), false, nil
	case io.Reader:
		return body, false, nil
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		return nil, false, fmt.Errorf("odata: encoding request body: %w", err)
	}
	return bytes.NewReader(encoded), true, nil
}

func (c *NetHTTPClient) do(ctx context.Context, req *Request) (*Response, error) {
	body, isJSON, err := requestBody(req.Data)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.RequestURI, body)
	if err != nil {
		return nil, fmt.Errorf("odata: %w", err)
	}
	for name, value := range req.Headers {
		httpReq.Header.Set(name, value)
	}
	if isJSON && httpReq.Header.Get(headerContentType) == "" {
		httpReq.Header.Set(headerContentType, "application/json")
	}
	if req.User != "" {
		httpReq.SetBasicAuth(req.User, req.Password)
	}
	httpResp, err := c.Client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()
	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("odata: reading response: %w", err)
	}
	resp := &Response{
		RequestURI: req.RequestURI,
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header,
		Body:       data,
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, &HTTPError{StatusCode: httpResp.StatusCode, Status: httpResp.Status, Response: resp}
	}
	return resp, nil
}
