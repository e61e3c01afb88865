package main

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rewriteTransport sends requests for any host to the test server so the
// fetcher can be exercised against allow-listed hostnames
type rewriteTransport struct {
	server *httptest.Server
}

func (t rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	target, _ := url.Parse(t.server.URL)
	req.URL.Scheme = target.Scheme
	req.URL.Host = target.Host
	return http.DefaultTransport.RoundTrip(req)
}

func stubbedFetcher(server *httptest.Server) *FragmentFetcher {
	f := newFragmentFetcher(FragmentConfig{Timeout: 2 * time.Second})
	f.client.Transport = rewriteTransport{server: server}
	return f
}

func TestFragmentRejectsDisallowedHostBeforeNetworkCall(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	f := stubbedFetcher(server)
	_, err := f.Fetch("https://google.com")
	require.Error(t, err)
	assert.False(t, called, "no network call for a disallowed host")

	var getErr *HTTPGetError
	assert.False(t, errors.As(err, &getErr), "host rejection is a validation error, not an HTTP error")
}

func TestFragmentRejectsEmptyURL(t *testing.T) {
	f := newFragmentFetcher(FragmentConfig{})
	_, err := f.Fetch("")
	assert.Error(t, err)
}

func TestFragmentReturnsBodyOnSuccess(t *testing.T) {
	html := "<html>test</html>"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(html))
	}))
	defer server.Close()

	f := stubbedFetcher(server)
	body, err := f.Fetch("https://temple.foo.exlibrisgroup.com/x")
	require.NoError(t, err)
	assert.Equal(t, html, body)
}

func TestFragmentErrorOnUpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}))
	defer server.Close()

	f := stubbedFetcher(server)
	_, err := f.Fetch("https://temple.foo.exlibrisgroup.com/x")
	require.Error(t, err)

	var getErr *HTTPGetError
	require.True(t, errors.As(err, &getErr))
	assert.Contains(t, getErr.Message, "Internal Server Error")
}

func TestFragmentErrorOnTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	f := newFragmentFetcher(FragmentConfig{Timeout: 50 * time.Millisecond})
	f.client.Transport = rewriteTransport{server: server}

	_, err := f.Fetch("https://temple.foo.exlibrisgroup.com/x")
	require.Error(t, err)
	var getErr *HTTPGetError
	assert.True(t, errors.As(err, &getErr))
}

func TestFragmentAppendsNewUIParam(t *testing.T) {
	f := newFragmentFetcher(FragmentConfig{})

	transformed := f.transformURL("https://temple.foo.exlibrisgroup.com/x?a=1")
	assert.Contains(t, transformed, "&is_new_ui=true")

	already := "https://temple.foo.exlibrisgroup.com/x?a=1&is_new_ui=true"
	assert.Equal(t, already, f.transformURL(already), "parameter is never double-appended")
}

func TestFragmentEndpointBadURLIsServerError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &ServiceContext{Fragments: newFragmentFetcher(FragmentConfig{})}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/availability?availability_url=http://google.com", nil)

	svc.getAvailabilityFragment(c)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestFragmentEndpointReturnsHTML(t *testing.T) {
	gin.SetMode(gin.TestMode)
	html := "<div>1 copy available</div>"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(html))
	}))
	defer server.Close()

	svc := &ServiceContext{Fragments: stubbedFetcher(server)}
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET",
		"/availability?availability_url=https%3A%2F%2Ftemple.foo.exlibrisgroup.com%2Fx", nil)

	svc.getAvailabilityFragment(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, html, w.Body.String())
}

func TestFragmentRequestsTransformedURL(t *testing.T) {
	var gotQuery url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
	}))
	defer server.Close()

	f := stubbedFetcher(server)
	_, err := f.Fetch("https://temple.foo.exlibrisgroup.com/x?a=1")
	require.NoError(t, err)
	assert.Equal(t, "true", gotQuery.Get("is_new_ui"))
}
