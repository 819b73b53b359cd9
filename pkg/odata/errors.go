package odata

import (
	"fmt"
	"net/http"
)

// HTTPError is reported for responses outside the 2xx range.
type HTTPError struct {
	StatusCode int
	Status     string
	Response   *Response
}

func (e *HTTPError) Error() string {
	status := e.Status
	if status == "" {
		status = fmt.Sprintf("%d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	if e.Response != nil && e.Response.RequestURI != "" {
		return "odata: " + e.Response.RequestURI + ": " + status
	}
	return "odata: " + status
}

// ConversionError is a property value that does not match its Edm type.
type ConversionError struct {
	Property string
	Type     string
	Value    any
	Err      error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("odata: property %s: cannot read %v as %s: %v", e.Property, e.Value, e.Type, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}
