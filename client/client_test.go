package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commandpost/dispatch-core/models"
)

// refreshingTokens starts with a stale credential and hands out a fresh
// one on Refresh.
type refreshingTokens struct {
	current  atomic.Value
	refreshs atomic.Int64
}

func newRefreshingTokens(stale string) *refreshingTokens {
	rt := &refreshingTokens{}
	rt.current.Store(stale)
	return rt
}

func (rt *refreshingTokens) Token(context.Context) (string, error) {
	return rt.current.Load().(string), nil
}

func (rt *refreshingTokens) Refresh(context.Context) (string, error) {
	rt.refreshs.Add(1)
	rt.current.Store("fresh")
	return "fresh", nil
}

func TestDoRefreshesOnceOn401(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tokens := newRefreshingTokens("stale")
	c := New(srv.URL, tokens)

	resp, err := c.Do(context.Background(), http.MethodGet, "/api/v1/calls", nil, nil)
	require.NoError(t, err)
	drain(resp)

	assert.Equal(t, int64(1), tokens.refreshs.Load())
	assert.Equal(t, int64(2), requests.Load())
}

func TestDoAuthFailureAfterRetry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(srv.URL, StaticToken("rejected"))

	_, err := c.Do(context.Background(), http.MethodGet, "/api/v1/calls", nil, nil)
	require.Error(t, err)
	assert.Equal(t, KindAuth, KindOf(err))
}

func TestDoValidationErrorCarriesServerMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(models.ErrorMessageResponse{
			Response: models.MessageError{Message: "illegal status transition"},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, StaticToken("tok"))

	_, err := c.Do(context.Background(), http.MethodPost, "/api/v1/call/1/status", []byte(`{}`), nil)
	require.Error(t, err)

	var reqErr *Error
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, KindValidation, reqErr.Kind)
	assert.Equal(t, http.StatusUnprocessableEntity, reqErr.Status)
	assert.Equal(t, "illegal status transition", reqErr.Message)
}

func TestDoGatewayStatusIsNetworkKind(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(srv.URL, StaticToken("tok"))

	_, err := c.Do(context.Background(), http.MethodPost, "/api/v1/calls", []byte(`{}`), nil)
	assert.Equal(t, KindNetwork, KindOf(err))
}

func TestDoTransportFailureIsNetworkKind(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening anymore

	c := New(srv.URL, StaticToken("tok"))

	_, err := c.Do(context.Background(), http.MethodGet, "/api/v1/calls", nil, nil)
	assert.Equal(t, KindNetwork, KindOf(err))
}

func TestKindForStatus(t *testing.T) {
	assert.Equal(t, KindAuth, kindForStatus(http.StatusUnauthorized))
	assert.Equal(t, KindNetwork, kindForStatus(http.StatusBadGateway))
	assert.Equal(t, KindNetwork, kindForStatus(http.StatusTooManyRequests))
	assert.Equal(t, KindValidation, kindForStatus(http.StatusConflict))
	assert.Equal(t, KindValidation, kindForStatus(http.StatusNotFound))
}
