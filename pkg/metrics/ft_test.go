package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFTMetrics_Commands(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newFTMetrics(reg)

	m.RecordCommandStart("WRITE")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commandsInFlight.WithLabelValues("WRITE")))

	m.RecordCommand("WRITE", 20*time.Millisecond, OutcomeOK)
	m.RecordCommand("WRITE", time.Millisecond, OutcomeCapacity)
	m.RecordCommandEnd("WRITE")

	assert.Equal(t, 0.0, testutil.ToFloat64(m.commandsInFlight.WithLabelValues("WRITE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commandsTotal.WithLabelValues("WRITE", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commandsTotal.WithLabelValues("WRITE", OutcomeCapacity)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.commandDuration))
}

func TestFTMetrics_BytesAndConnections(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newFTMetrics(reg)

	m.RecordBytesTransferred(DirectionUpload, 4096)
	m.RecordBytesTransferred(DirectionUpload, 10)
	m.RecordBytesTransferred(DirectionDownload, 7)
	assert.Equal(t, 4106.0, testutil.ToFloat64(m.bytesTransferred.WithLabelValues(DirectionUpload)))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.bytesTransferred.WithLabelValues(DirectionDownload)))

	m.RecordConnectionAccepted()
	m.RecordConnectionAccepted()
	m.RecordConnectionClosed()
	m.RecordConnectionThrottled()
	m.SetActiveConnections(1)
	m.SetLockRegistrySize(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.connectionsAccepted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.connectionsClosed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.connectionsThrottled))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.activeConnections))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.lockRegistrySize))
}

func TestNoopFTMetrics(t *testing.T) {
	m := NewNoopFTMetrics()
	assert.NotPanics(t, func() {
		m.RecordCommandStart("READ")
		m.RecordCommand("READ", time.Second, OutcomeTransport)
		m.RecordCommandEnd("READ")
		m.RecordBytesTransferred(DirectionDownload, 1)
		m.RecordLockWait("READ", time.Millisecond)
		m.SetLockRegistrySize(1)
		m.SetActiveConnections(1)
		m.RecordConnectionAccepted()
		m.RecordConnectionClosed()
		m.RecordConnectionThrottled()
	})
}

// The global registry is process-wide, so this is the only test that
// initializes it.
func TestServer_ExposesRegistry(t *testing.T) {
	InitRegistry()
	require.True(t, IsEnabled())

	m := NewFTMetrics()
	m.RecordConnectionAccepted()

	srv := httptest.NewServer(NewServer(ServerConfig{}).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "ftserver_connections_accepted_total 1")

	health, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)
}

func TestServer_DefaultPort(t *testing.T) {
	assert.Equal(t, 9090, NewServer(ServerConfig{}).Port())
	assert.Equal(t, 9191, NewServer(ServerConfig{Port: 9191}).Port())
}
