package connection

import (
	"context"
	"net"
	"net/http/httptest"
	"testing"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yndnr/framesync-go/internal/server/adminserver"
	"github.com/yndnr/framesync-go/internal/server/registry"
)

type fakeSource struct{}

func (fakeSource) Status() registry.Status {
	return registry.Status{
		Nodes:     []registry.NodeStatus{{ID: "projector-left", LastTag: 9}},
		NextMerge: 10,
		Merged:    10,
	}
}

func (fakeSource) Addr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 7450}
}

func TestAdminClient_Status(t *testing.T) {
	s := adminserver.New("127.0.0.1:0", fakeSource{}, nil, nil)
	ts := httptest.NewServer(s.Handler(nil))
	defer ts.Close()

	c := NewAdminClient(ts.URL, ts.Client())
	st, err := c.Status(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:7450", st.SyncAddr)
	assert.Equal(t, uint64(10), st.Registry.NextMerge)
	require.Len(t, st.Registry.Nodes, 1)
	assert.Equal(t, "projector-left", st.Registry.Nodes[0].ID)
}

func TestAdminClient_Unavailable(t *testing.T) {
	s := adminserver.New("127.0.0.1:0", nil, nil, nil)
	ts := httptest.NewServer(s.Handler(nil))
	defer ts.Close()

	_, err := NewAdminClient(ts.URL, ts.Client()).Status(context.Background())
	require.Error(t, err)
	assert.Equal(t, connect.CodeUnavailable, connect.CodeOf(err))
}

func TestNewAdminClient_BaseURL(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{"127.0.0.1:7451", "http://127.0.0.1:7451"},
		{"http://coordinator:7451/", "http://coordinator:7451"},
		{"https://coordinator", "https://coordinator"},
	}
	for _, tt := range tests {
		if got := NewAdminClient(tt.addr, nil).BaseURL(); got != tt.want {
			t.Errorf("BaseURL(%q) = %q, want %q", tt.addr, got, tt.want)
		}
	}
}
