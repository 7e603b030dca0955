package connection

import (
	"context"
	"net/http"
	"strings"
	"time"

	"connectrpc.com/connect"

	"github.com/yndnr/framesync-go/internal/server/adminserver"
)

// DefaultTimeout bounds a single admin call.
const DefaultTimeout = 10 * time.Second

// AdminClient calls the coordinator admin API.
type AdminClient struct {
	baseURL string
	status  *connect.Client[adminserver.StatusRequest, adminserver.StatusResponse]
}

// NewAdminClient creates a client for addr, given as host:port or URL.
// A nil httpClient uses one with DefaultTimeout.
func NewAdminClient(addr string, httpClient *http.Client) *AdminClient {
	baseURL := strings.TrimRight(addr, "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}

	return &AdminClient{
		baseURL: baseURL,
		status: connect.NewClient[adminserver.StatusRequest, adminserver.StatusResponse](
			httpClient,
			baseURL+adminserver.StatusProcedure,
			connect.WithCodec(adminserver.JSONCodec{}),
		),
	}
}

// Status fetches the coordinator status.
func (c *AdminClient) Status(ctx context.Context) (*adminserver.StatusResponse, error) {
	resp, err := c.status.CallUnary(ctx, connect.NewRequest(&adminserver.StatusRequest{}))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

// BaseURL returns the admin base URL.
func (c *AdminClient) BaseURL() string {
	return c.baseURL
}
