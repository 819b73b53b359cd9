package odatatest

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pboyd04/goodata/pkg/odata"
)

func get(t *testing.T, svc *Service, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	svc.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "http://svc.example"+path, nil))
	var body map[string]any
	if rec.Header().Get("Content-Type") != "" && rec.Body.Len() > 0 && rec.Body.Bytes()[0] == '{' {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestNewServiceRejectsBadMetadata(t *testing.T) {
	_, err := NewService([]byte("<nope/>"))
	assert.Error(t, err)
}

func TestServiceMetadata(t *testing.T) {
	rec, _ := get(t, NewDemoService(), "/$metadata")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/xml", rec.Header().Get("Content-Type"))
	assert.Equal(t, DemoMetadata, rec.Body.String())
}

func TestServiceFeed(t *testing.T) {
	rec, body := get(t, NewDemoService(), "/Categories")
	require.Equal(t, http.StatusOK, rec.Code)
	d := body["d"].(map[string]any)
	assert.Equal(t, "2", d["__count"])
	results := d["results"].([]any)
	require.Len(t, results, 2)
	first := results[0].(map[string]any)
	assert.Equal(t, "Food", first["Name"])
	assert.Equal(t, map[string]any{
		"uri":  "http://svc.example/Categories(0)",
		"type": "ODataDemo.Category",
	}, first["__metadata"])
}

func TestServiceEntity(t *testing.T) {
	svc := NewDemoService()
	rec, body := get(t, svc, "/Products(1)")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Milk", body["d"].(map[string]any)["Name"])

	rec, _ = get(t, svc, "/Products('1')")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServiceCount(t *testing.T) {
	svc := NewDemoService()
	svc.AddEntities("Categories", map[string]any{"ID": 2, "Name": "Snacks"})
	rec, _ := get(t, svc, "/Categories/$count")
	assert.Equal(t, "3", rec.Body.String())
	assert.Equal(t, "text/plain", rec.Header().Get("Content-Type"))
}

func TestServiceNotFound(t *testing.T) {
	svc := NewDemoService()
	for _, path := range []string{"/Suppliers", "/Products(42)", "/Suppliers/$count", "/a/b/c"} {
		rec, body := get(t, svc, path)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		require.Contains(t, body, "error", path)
	}
}

func TestServiceAuth(t *testing.T) {
	svc := NewDemoService()
	svc.User = "alice"
	svc.Password = "secret"

	rec, _ := get(t, svc, "/Products")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))

	req := httptest.NewRequest(http.MethodGet, "/Products", nil)
	req.SetBasicAuth("alice", "secret")
	rec = httptest.NewRecorder()
	svc.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, svc.Headers(), 2)
}

func TestImmediateClient(t *testing.T) {
	client := &ImmediateClient{Response: JSONResponse("", `{}`)}
	var got *odata.Response
	op := client.Request(&odata.Request{RequestURI: "http://svc/x"}, func(resp *odata.Response) {
		got = resp
	}, func(error) {
		t.Fatal("unexpected failure")
	})
	require.NotNil(t, got)
	assert.Equal(t, "http://svc/x", got.RequestURI)
	assert.Empty(t, client.Response.RequestURI)
	op.Abort()
	assert.Equal(t, 1, client.Aborts())
	assert.Len(t, client.Requests(), 1)

	client = &ImmediateClient{Err: errors.New("down")}
	var failure error
	client.Request(&odata.Request{}, func(*odata.Response) {
		t.Fatal("unexpected success")
	}, func(err error) {
		failure = err
	})
	assert.EqualError(t, failure, "down")
}

func TestPendingClient(t *testing.T) {
	client := &PendingClient{}
	assert.Nil(t, client.Last())

	var completed int
	op := client.Request(&odata.Request{RequestURI: "http://svc/x"}, func(resp *odata.Response) {
		completed++
		assert.Equal(t, "http://svc/x", resp.RequestURI)
	}, nil)
	call := client.Last()
	require.NotNil(t, call)
	assert.Zero(t, completed)

	op.Abort()
	assert.True(t, call.Aborted())
	call.Complete(JSONResponse("", `{}`))
	assert.Equal(t, 1, completed)
	assert.Len(t, client.Calls(), 1)
}
