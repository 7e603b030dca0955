package command

import (
	"encoding/json"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/yndnr/framesync-go/internal/server/adminserver"
	"github.com/yndnr/framesync-go/internal/server/registry"
)

type fakeSource struct{}

func (fakeSource) Status() registry.Status {
	return registry.Status{
		Nodes: []registry.NodeStatus{
			{ID: "projector-left", SessionID: "s-1", Remote: "10.0.0.5:50122", LastTag: 41, LastSeen: time.Now()},
			{ID: "projector-right", SessionID: "s-2", Remote: "10.0.0.6:50188", LastTag: 41, Submitted: true},
		},
		NextMerge: 42,
		Merged:    42,
		Released:  41,
	}
}

func (fakeSource) Addr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(10, 0, 0, 2), Port: 7450}
}

func startAdmin(t *testing.T) string {
	t.Helper()
	s := adminserver.New("127.0.0.1:0", fakeSource{}, nil, nil)
	ts := httptest.NewServer(s.Handler(nil))
	t.Cleanup(ts.Close)
	return ts.URL
}

func TestStatus_Table(t *testing.T) {
	url := startAdmin(t)

	out, err := runApp(t, "", "--admin", url, "status")
	if err != nil {
		t.Fatalf("status error = %v", err)
	}

	for _, want := range []string{"Coordinator", "10.0.0.2:7450", "next_merge", "42", "Nodes", "projector-left", "projector-right", "10.0.0.6:50188"} {
		if !strings.Contains(out, want) {
			t.Errorf("status output missing %q:\n%s", want, out)
		}
	}
}

func TestStatus_JSON(t *testing.T) {
	url := startAdmin(t)

	out, err := runApp(t, "", "--admin", url, "-o", "json", "status")
	if err != nil {
		t.Fatalf("status error = %v", err)
	}

	var got adminserver.StatusResponse
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if got.SyncAddr != "10.0.0.2:7450" || len(got.Registry.Nodes) != 2 {
		t.Errorf("status = %+v", got)
	}
}

func TestStatus_YAML(t *testing.T) {
	url := startAdmin(t)

	out, err := runApp(t, "", "--admin", url, "-o", "yaml", "status")
	if err != nil {
		t.Fatalf("status error = %v", err)
	}
	if !strings.Contains(out, "sync_addr: 10.0.0.2:7450") || !strings.Contains(out, "next_merge: 42") {
		t.Errorf("yaml output:\n%s", out)
	}
}

func TestStatus_Unreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	if _, err := runApp(t, "", "--admin", addr, "status"); err == nil {
		t.Error("status against a closed port should fail")
	}
}
