package metrics_test

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/keyops/internal/metrics"
)

func TestDefaultServerConfig(t *testing.T) {
	t.Parallel()

	config := metrics.DefaultServerConfig()

	assert.False(t, config.Enabled)
	assert.Equal(t, ":9090", config.Addr)
	assert.Equal(t, "/metrics", config.Path)
	assert.Equal(t, 5*time.Second, config.ReadTimeout)
	assert.Equal(t, 10*time.Second, config.WriteTimeout)
}

func TestServerStartDisabled(t *testing.T) {
	t.Parallel()

	server := metrics.NewServer(metrics.DefaultServerConfig())

	require.NoError(t, server.Start())
	assert.Empty(t, server.Addr())
}

func TestServerStopBeforeStart(t *testing.T) {
	t.Parallel()

	server := metrics.NewServer(metrics.DefaultServerConfig())
	assert.NoError(t, server.Stop(context.Background()))
}

func TestServerServesCounters(t *testing.T) {
	metrics.Init()
	metrics.RecordStore("filesystem")

	config := metrics.DefaultServerConfig()
	config.Enabled = true
	config.Addr = "localhost:19290"

	server := metrics.NewServer(config)
	require.NoError(t, server.Start())

	// Give the listener time to come up
	time.Sleep(100 * time.Millisecond)

	resp, err := http.Get("http://localhost:19290/metrics")
	if err != nil {
		t.Skipf("skipping test: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "keyops_store_operations_total"),
		"expected keyops counters in scrape output")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, server.Stop(ctx))
}

func TestServerHealthEndpoint(t *testing.T) {
	config := metrics.DefaultServerConfig()
	config.Enabled = true
	config.Addr = "localhost:19291"

	server := metrics.NewServer(config)
	require.NoError(t, server.Start())

	time.Sleep(100 * time.Millisecond)

	resp, err := http.Get("http://localhost:19291/health")
	if err != nil {
		t.Skipf("skipping test: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "OK", string(body))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, server.Stop(ctx))
}
