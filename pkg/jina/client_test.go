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

	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/resilience"
)

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2,
	}
}

func TestRead_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "markdown", r.Header.Get("X-Return-Format"))
		w.Write([]byte(`{"code":200,"data":{"title":"Springfield Bakery","url":"https://example.com","content":"Fresh bread daily"}}`))
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL), WithRetryConfig(fastRetry()))
	resp, err := c.Read(context.Background(), "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, "Springfield Bakery", resp.Data.Title)
	assert.Equal(t, "Fresh bread daily", resp.Data.Content)
}

func TestRead_RetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"code":200,"data":{"content":"ok"}}`))
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL), WithRetryConfig(fastRetry()))
	resp, err := c.Read(context.Background(), "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Data.Content)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRead_NonTransientStatusFailsFast(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL), WithRetryConfig(fastRetry()))
	_, err := c.Read(context.Background(), "https://example.com")
	assert.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestSearch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":200,"data":[{"title":"Result","url":"https://example.com","description":"a bakery"}]}`))
	}))
	defer srv.Close()

	c := NewClient("test-key", WithSearchBaseURL(srv.URL), WithRetryConfig(fastRetry()))
	resp, err := c.Search(context.Background(), "springfield bakery")
	require.NoError(t, err)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "https://example.com", resp.Data[0].URL)
}

func TestSearch_SiteFilter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "facebook.com", r.URL.Query().Get("site"))
		w.Write([]byte(`{"code":200,"data":[]}`))
	}))
	defer srv.Close()

	c := NewClient("test-key", WithSearchBaseURL(srv.URL), WithRetryConfig(fastRetry()))
	_, err := c.Search(context.Background(), "springfield bakery", WithSiteFilter("facebook.com"))
	require.NoError(t, err)
}

func TestSearch_NoResultsIsEmptyNotError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := NewClient("test-key", WithSearchBaseURL(srv.URL), WithRetryConfig(fastRetry()))
	resp, err := c.Search(context.Background(), "no such business anywhere")
	require.NoError(t, err)
	assert.Empty(t, resp.Data)
}
