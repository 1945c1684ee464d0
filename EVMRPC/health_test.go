package EVMRPC

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealth(t *testing.T) {
	saved := healthTimeout
	healthTimeout = 200 * time.Millisecond
	t.Cleanup(func() { healthTimeout = saved })

	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc":"2.0","id":0,"result":"Geth/v1.13.14"}`))
	}))
	defer ok.Close()

	rpcErr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc":"2.0","id":0,"error":{"code":-32601,"message":"method not found"}}`))
	}))
	defer rpcErr.Close()

	release := make(chan struct{})
	stuck := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer stuck.Close()
	defer close(release)

	c := &Client{urls: []string{ok.URL, rpcErr.URL, stuck.URL}}

	start := time.Now()
	res := c.Health()
	assert.Less(t, time.Since(start), 5*time.Second)

	require.Len(t, res, 3)
	assert.True(t, res[0].OK())
	assert.Equal(t, "Geth/v1.13.14", res[0].Version)
	assert.False(t, res[1].OK())
	assert.Equal(t, "method not found", res[1].Error)
	assert.False(t, res[2].OK())
	assert.Equal(t, stuck.URL, res[2].URL)
}
