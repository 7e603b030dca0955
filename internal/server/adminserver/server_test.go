package adminserver

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yndnr/framesync-go/internal/infra/buildinfo"
	"github.com/yndnr/framesync-go/internal/server/registry"
	"github.com/yndnr/framesync-go/internal/telemetry/metric"
)

type fakeSource struct {
	st registry.Status
}

func (f *fakeSource) Status() registry.Status { return f.st }

func (f *fakeSource) Addr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 7450}
}

func newTestHandler(t *testing.T, src Source) (*httptest.Server, *prometheus.Registry) {
	t.Helper()
	reg := metric.NewRegistry()
	s := New("127.0.0.1:0", src, reg, nil)
	ts := httptest.NewServer(s.Handler(reg))
	t.Cleanup(ts.Close)
	return ts, reg
}

func TestStatus(t *testing.T) {
	src := &fakeSource{st: registry.Status{
		Nodes: []registry.NodeStatus{
			{ID: "projector-left", SessionID: "s1", LastTag: 42},
		},
		NextMerge: 7,
		Merged:    7,
		Released:  6,
	}}
	ts, _ := newTestHandler(t, src)

	client := connect.NewClient[StatusRequest, StatusResponse](
		ts.Client(), ts.URL+StatusProcedure, connect.WithCodec(JSONCodec{}))

	resp, err := client.CallUnary(context.Background(), connect.NewRequest(&StatusRequest{}))
	require.NoError(t, err)

	got := resp.Msg
	assert.Equal(t, "127.0.0.1:7450", got.SyncAddr)
	assert.Equal(t, buildinfo.ProtocolVersion, got.Build.Protocol)
	assert.Equal(t, uint64(7), got.Registry.NextMerge)
	require.Len(t, got.Registry.Nodes, 1)
	assert.Equal(t, "projector-left", got.Registry.Nodes[0].ID)
	assert.Equal(t, uint64(42), got.Registry.Nodes[0].LastTag)
	assert.WithinDuration(t, time.Now(), got.StartedAt, time.Minute)
}

func TestStatus_NoSource(t *testing.T) {
	ts, _ := newTestHandler(t, nil)

	client := connect.NewClient[StatusRequest, StatusResponse](
		ts.Client(), ts.URL+StatusProcedure, connect.WithCodec(JSONCodec{}))

	_, err := client.CallUnary(context.Background(), connect.NewRequest(&StatusRequest{}))
	require.Error(t, err)
	assert.Equal(t, connect.CodeUnavailable, connect.CodeOf(err))
}

func TestMetricsAndHealth(t *testing.T) {
	ts, reg := newTestHandler(t, &fakeSource{})
	m := metric.NewCoordinatorMetrics(reg)
	m.RoundMerged(3, 0)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "framesync_coordinator_rounds_merged_total 1")

	resp, err = http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "ok", strings.TrimSpace(string(body)))
}

func TestServer_StartShutdown(t *testing.T) {
	s := New("127.0.0.1:0", &fakeSource{}, nil, nil)
	require.NoError(t, s.Start())
	require.NotNil(t, s.Addr())

	resp, err := http.Get("http://" + s.Addr().String() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get("http://" + s.Addr().String() + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Shutdown(ctx))
}
