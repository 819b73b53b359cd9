package odata

import (
	"fmt"
	"mime"
	"strings"

	"go.uber.org/zap"

	"github.com/pboyd04/goodata/pkg/csdl"
)

func mediaType(resp *Response) string {
	contentType := resp.Headers.Get(headerContentType)
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		logger.Debug("bad content type", zap.String("contentType", contentType), zap.Error(err))
		return ""
	}
	return mt
}

// NegotiatingHandler hands a response to the first handler that reads its
// media type. Responses nobody reads keep a nil Data.
type NegotiatingHandler struct {
	Handlers []MediaTypeHandler
}

func NewNegotiatingHandler(handlers ...MediaTypeHandler) *NegotiatingHandler {
	return &NegotiatingHandler{Handlers: handlers}
}

func (n *NegotiatingHandler) Accept() string {
	accepts := make([]string, 0, len(n.Handlers)+1)
	for _, h := range n.Handlers {
		accepts = append(accepts, h.Accept())
	}
	accepts = append(accepts, "*/*;q=0.1")
	return strings.Join(accepts, ", ")
}

func (n *NegotiatingHandler) CanRead(mediaType string) bool {
	for _, h := range n.Handlers {
		if h.CanRead(mediaType) {
			return true
		}
	}
	return false
}

func (n *NegotiatingHandler) Read(resp *Response, ctx *HandlerContext) error {
	if len(resp.Body) == 0 {
		return nil
	}
	mt := mediaType(resp)
	for _, h := range n.Handlers {
		if h.CanRead(mt) {
			return h.Read(resp, ctx)
		}
	}
	logger.Debug("no handler for media type", zap.String("mediaType", mt), zap.String("uri", resp.RequestURI))
	return nil
}

// TextHandler returns the body as a string, e.g. for $count and $value.
type TextHandler struct{}

func (TextHandler) Accept() string {
	return "text/plain;q=0.7"
}

func (TextHandler) CanRead(mediaType string) bool {
	return mediaType == "text/plain"
}

func (TextHandler) Read(resp *Response, _ *HandlerContext) error {
	resp.Data = string(resp.Body)
	return nil
}

// MetadataHandler reads a $metadata document into a *csdl.Edmx.
type MetadataHandler struct{}

func (MetadataHandler) Accept() string {
	return "application/xml;q=0.8"
}

func (MetadataHandler) CanRead(mediaType string) bool {
	return mediaType == "application/xml" || mediaType == "text/xml"
}

func (MetadataHandler) Read(resp *Response, _ *HandlerContext) error {
	doc, err := csdl.Unmarshal(resp.Body)
	if err != nil {
		return fmt.Errorf("odata: reading metadata from %s: %w", resp.RequestURI, err)
	}
	resp.Data = doc
	return nil
}
