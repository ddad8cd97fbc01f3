package api

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/webconsole/internal/config"
	"github.com/JakeFAU/webconsole/internal/console"
	"github.com/JakeFAU/webconsole/internal/host"
	"github.com/JakeFAU/webconsole/internal/publisher/memory"
	"github.com/JakeFAU/webconsole/internal/relay"
	"github.com/JakeFAU/webconsole/internal/stream"
)

func TestServer_Health(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, testConfig(t), nil)
	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code, path)
		require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	}
}

func TestServer_Metrics(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, testConfig(t), nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "webconsole_")
}

func TestServer_ListOperations(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, testConfig(t), nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/operations", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"name":"quick"`)
	require.Contains(t, rec.Body.String(), `"name":"broken"`)
}

func TestServer_UnknownOperation(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, testConfig(t), nil)
	for _, path := range []string{"/v1/operations/missing/stream", "/v1/operations/missing/relay", "/v1/remotes/missing/stream"} {
		rec := httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestServer_StreamOperation(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(newTestServer(t, testConfig(t), nil).Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/operations/quick/stream")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/x-ndjson", resp.Header.Get("Content-Type"))
	require.NotEmpty(t, resp.Header.Get("X-Operation-ID"))

	events := readEvents(t, resp.Body)
	var logs []string
	sawProgress, sawMarker := false, false
	for _, evt := range events {
		switch evt.Kind {
		case console.KindLog:
			logs = append(logs, evt.Template)
		case console.KindProgress:
			sawProgress = sawProgress || evt.Percent == 50
		case console.KindBatchComplete:
			sawMarker = true
		}
	}
	require.Equal(t, []string{"hello", "bye"}, logs)
	require.True(t, sawProgress)
	require.True(t, sawMarker)
}

func TestServer_RelayOperation(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(newTestServer(t, testConfig(t), nil).Handler())
	defer ts.Close()

	res := fetchRelay(t, ts.URL+"/v1/operations/quick/relay")
	require.Equal(t, []string{"complete"}, res.Signals)
	require.Len(t, res.Forwarded, 3)

	res = fetchRelay(t, ts.URL+"/v1/operations/broken/relay")
	require.Equal(t, []string{"failed"}, res.Signals)
	require.Contains(t, strings.Join(res.Forwarded, "\n"), `"kind":"exception"`)
}

func TestServer_StreamRemotePublishesSignals(t *testing.T) {
	t.Parallel()

	upstream := httptest.NewServer(newTestServer(t, testConfig(t), nil).Handler())
	defer upstream.Close()

	cfg := testConfig(t)
	cfg.Relay.Remotes = map[string]string{"up": upstream.URL + "/v1/operations/quick/relay"}
	cfg.Relay.SignalTopic = "signals"
	pub := memory.New()
	downstream := httptest.NewServer(newTestServer(t, cfg, pub).Handler())
	defer downstream.Close()

	resp, err := http.Get(downstream.URL + "/v1/remotes/UP/stream")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var logs []string
	for _, evt := range readEvents(t, resp.Body) {
		if evt.Kind == console.KindLog {
			logs = append(logs, evt.Template)
		}
	}
	require.Contains(t, logs, "hello")
	require.Contains(t, logs, "bye")
	require.Contains(t, logs, "Relay from up ended with 1 signal(s)")
	require.Equal(t, []any{relay.SignalMessage{Source: "up", Sequence: 1, Payload: "complete"}}, pub.Topic("signals"))

	rec := httptest.NewRecorder()
	newTestServer(t, cfg, pub).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/remotes", nil))
	require.Contains(t, rec.Body.String(), `"up"`)
}

func TestServer_APIKey(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Auth.Enabled = true
	cfg.Auth.APIKey = "secret"
	server := newTestServer(t, cfg, nil)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/operations", nil))
	require.Equal(t, http.StatusForbidden, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/operations", nil)
	req.Header.Set("X-API-Key", "secret")
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/operations?api_key=secret", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_OperationSurvivesViewerDisconnect(t *testing.T) {
	t.Parallel()

	finished := make(chan struct{})
	registry := host.NewRegistry()
	require.NoError(t, registry.Register(host.Operation{
		Name: "slow",
		Run: func(ctx context.Context, sink console.Sink) error {
			defer close(finished)
			time.Sleep(100 * time.Millisecond)
			console.Info(sink, "still here")
			return ctx.Err()
		},
	}))
	server := NewServer(testConfig(t), Deps{Registry: registry, Logger: zap.NewNop()})

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/v1/operations/slow/stream", nil).WithContext(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		server.Handler().ServeHTTP(httptest.NewRecorder(), req)
	}()
	cancel()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("operation did not finish")
	}
	<-done
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Stream.FlushWindow = 10 * time.Millisecond
	cfg.Stream.WriteTimeout = time.Second
	cfg.Progress.HeartbeatPeriod = 0
	return cfg
}

func newTestServer(t *testing.T, cfg config.Config, pub relay.Publisher) *Server {
	t.Helper()
	registry := host.NewRegistry()
	require.NoError(t, registry.Register(host.Operation{
		Name:        "quick",
		Description: "logs twice around a progress update",
		Run: func(_ context.Context, sink console.Sink) error {
			console.Info(sink, "hello")
			if err := sink.SetProgress(50); err != nil {
				return err
			}
			console.Info(sink, "bye")
			return nil
		},
	}))
	require.NoError(t, registry.Register(host.Operation{
		Name: "broken",
		Run: func(context.Context, console.Sink) error {
			return errors.New("kaput")
		},
	}))
	return NewServer(cfg, Deps{Registry: registry, Publisher: pub, Logger: zap.NewNop()})
}

func readEvents(t *testing.T, r io.Reader) []console.Event {
	t.Helper()
	var out []console.Event
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		evt, err := stream.JSONCodec{}.Decode(sc.Bytes())
		require.NoError(t, err)
		out = append(out, evt)
	}
	require.NoError(t, sc.Err())
	return out
}

func fetchRelay(t *testing.T, url string) relay.Result {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res, err := relay.Decode(resp.Body)
	require.NoError(t, err)
	return res
}
