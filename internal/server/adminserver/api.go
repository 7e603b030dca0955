package adminserver

import (
	"encoding/json"
	"time"

	"github.com/yndnr/framesync-go/internal/infra/buildinfo"
	"github.com/yndnr/framesync-go/internal/server/registry"
)

// StatusProcedure is the connect procedure path of Status.
const StatusProcedure = "/framesync.admin.v1.AdminService/Status"

// StatusRequest is empty.
type StatusRequest struct{}

// StatusResponse describes the running coordinator.
type StatusResponse struct {
	Build     buildinfo.Info  `json:"build" yaml:"build"`
	StartedAt time.Time       `json:"started_at" yaml:"started_at"`
	Uptime    string          `json:"uptime" yaml:"uptime"`
	SyncAddr  string          `json:"sync_addr" yaml:"sync_addr"`
	Registry  registry.Status `json:"registry" yaml:"registry"`
}

// JSONCodec is the connect codec used by the admin API. Messages are
// plain Go structs, not protobuf types.
type JSONCodec struct{}

// Name implements connect.Codec.
func (JSONCodec) Name() string { return "json" }

// Marshal implements connect.Codec.
func (JSONCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

// Unmarshal implements connect.Codec.
func (JSONCodec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}
