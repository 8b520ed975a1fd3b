package Adhoc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendAliveMessage(t *testing.T) {
	got := make(chan RegisterRequest, 16)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/register", r.URL.Path)
		var req RegisterRequest
		if assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			got <- req
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(RegisterResponse{Id: req.Id, Success: true})
	}))
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	RegServerCfg.SetAddress(u.Hostname(), port)
	Interval = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go SendAliveMessage(ctx, &wg, RegisterRequest{
		IP:            "10.0.0.2",
		Port:          50051,
		InstanceClass: InstanceClassFor("native"),
		PluginType:    "NDPluginBlur",
		PortName:      "BLUR1",
	})

	first := <-got
	second := <-got
	cancel()
	wg.Wait()

	assert.Equal(t, "NDPluginBlur", first.PluginType)
	assert.Equal(t, "BLUR1", first.PortName)
	assert.Equal(t, NativeInstance, first.InstanceClass)
	assert.NotEmpty(t, first.Id)
	assert.Equal(t, first.Id, second.Id, "the id is stable across heartbeats")
}

func TestRegServerConfig_URL(t *testing.T) {
	cfg := RegServerConfig{}
	cfg.SetAddress("registry.local", 8500)
	assert.Equal(t, "http://registry.local:8500/api/register", cfg.URL())
	cfg.SetAddress("https://registry.local", 443)
	assert.Equal(t, "https://registry.local:443/api/register", cfg.URL())
	assert.Equal(t, OpenCVInstance, InstanceClassFor("opencv"))
}
