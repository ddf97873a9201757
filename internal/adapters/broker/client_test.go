package broker_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mohanprasath-R/RMS/internal/adapters/broker"
)

// newBridge fakes the manager bridge's JSON API.
func newBridge(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/session", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"connected": true})
	})
	mux.HandleFunc("/api/", handler)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func TestDialHandshake(t *testing.T) {
	ts := newBridge(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	c := broker.Dial(ts.URL, 1, "secret")
	assert.True(t, c.Connected())

	down := broker.Dial("http://127.0.0.1:1", 1, "secret")
	assert.False(t, down.Connected())
}

func TestGetAccountDetails(t *testing.T) {
	ts := newBridge(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/accounts/1001", r.URL.Path)
		user, _, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "7", user)
		json.NewEncoder(w).Encode(map[string]any{"balance": 500.0, "equity": 520.0})
	})

	c := broker.Dial(ts.URL, 7, "secret")
	details, err := c.GetAccountDetails(context.Background(), 1001)
	require.NoError(t, err)
	assert.Equal(t, 500.0, details["balance"])
}

func TestGetClosedTradesSinceParam(t *testing.T) {
	since := time.Now().Add(-24 * time.Hour)
	ts := newBridge(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/accounts/1001/trades", r.URL.Path)
		assert.NotEmpty(t, r.URL.Query().Get("since"))
		json.NewEncoder(w).Encode([]map[string]any{{"Symbol": "EURUSD", "Vol": 0.1}})
	})

	c := broker.Dial(ts.URL, 1, "secret")
	trades, err := c.GetClosedTrades(context.Background(), 1001, since)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "EURUSD", trades[0]["Symbol"])
}

func TestRetryOnServerError(t *testing.T) {
	var calls atomic.Int32
	ts := newBridge(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode([]map[string]any{})
	})

	c := broker.Dial(ts.URL, 1, "secret")
	_, err := c.GetOpenPositions(context.Background(), 1001)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	ts := newBridge(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "no such account", http.StatusNotFound)
	})

	c := broker.Dial(ts.URL, 1, "secret")
	_, err := c.GetAccountDetails(context.Background(), 9999)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}
