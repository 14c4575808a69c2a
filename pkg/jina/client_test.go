package jina

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch_RetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":200,"data":[{"title":"Acme reviews","url":"https://example.com","description":"snippet"}]}`))
	}))
	defer srv.Close()

	c := NewClient("key", WithSearchBaseURL(srv.URL), WithRetryBackoff(time.Millisecond))
	resp, err := c.Search(context.Background(), "Acme employer reviews")
	require.NoError(t, err)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "Acme reviews", resp.Data[0].Title)
	assert.Equal(t, int32(2), calls.Load())
}

func TestSearch_NoResultsIsNotAnError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := NewClient("key", WithSearchBaseURL(srv.URL), WithRetryBackoff(time.Millisecond))
	resp, err := c.Search(context.Background(), "no hits for this query")
	require.NoError(t, err)
	assert.Empty(t, resp.Data)
	// 422 is a definitive answer, not a flake worth retrying.
	assert.Equal(t, int32(1), calls.Load())
}

func TestSearch_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient("key", WithSearchBaseURL(srv.URL), WithRetryBackoff(time.Millisecond))
	_, err := c.Search(context.Background(), "Acme")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
	assert.Equal(t, int32(1), calls.Load())
}

func TestSearch_ExhaustedRetriesSurfaceLastError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient("key", WithSearchBaseURL(srv.URL), WithRetryBackoff(time.Millisecond))
	_, err := c.Search(context.Background(), "Acme")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
	assert.Equal(t, int32(3), calls.Load())
}

func TestSearch_SiteFilter(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("site")
		_, _ = w.Write([]byte(`{"code":200,"data":[]}`))
	}))
	defer srv.Close()

	c := NewClient("key", WithSearchBaseURL(srv.URL))
	_, err := c.Search(context.Background(), "Acme", WithSiteFilter("acme.example"))
	require.NoError(t, err)
	assert.Equal(t, "acme.example", gotQuery)
}
