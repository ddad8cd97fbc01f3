package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/webconsole/internal/config"
	memorypublisher "github.com/JakeFAU/webconsole/internal/publisher/memory"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Demo.StepDelay = 0
	cfg.Progress.HeartbeatPeriod = 0
	cfg.Stream.FlushWindow = 10 * time.Millisecond
	cfg.Server.ShutdownTimeout = 2 * time.Second
	return cfg
}

func TestNewAppRegistersDemos(t *testing.T) {
	t.Parallel()

	app, err := NewApp(context.Background(), testConfig(t), zap.NewNop(), WithRegisterer(prometheus.NewRegistry()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close(context.Background()) })

	var names []string
	for _, op := range app.Registry().List() {
		names = append(names, op.Name)
	}
	require.Equal(t, []string{"fail", "fanout", "tasks"}, names)
	require.IsType(t, &memorypublisher.Publisher{}, app.Publisher())
}

func TestNewAppRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Server.Port = -1
	_, err := NewApp(context.Background(), cfg, zap.NewNop(), WithRegisterer(prometheus.NewRegistry()))
	require.ErrorContains(t, err, "server.port")
}

func TestNewAppMetricsRegisteredOnce(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	app, err := NewApp(context.Background(), testConfig(t), zap.NewNop(), WithRegisterer(reg))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close(context.Background()) })

	_, err = NewApp(context.Background(), testConfig(t), zap.NewNop(), WithRegisterer(reg))
	require.ErrorContains(t, err, "metrics sink init failed")
}

func TestAppStreamsTasksDemo(t *testing.T) {
	t.Parallel()

	app, err := NewApp(context.Background(), testConfig(t), zap.NewNop(), WithRegisterer(prometheus.NewRegistry()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close(context.Background()) })

	ts := httptest.NewServer(app.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/operations/tasks/stream")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "Tasks demonstration complete.")
	require.Contains(t, string(body), `"percent":100`)
}

func TestAppServeStopsOnCancel(t *testing.T) {
	t.Parallel()

	app, err := NewApp(context.Background(), testConfig(t), zap.NewNop(), WithRegisterer(prometheus.NewRegistry()))
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
