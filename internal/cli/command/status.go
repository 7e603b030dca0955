package command

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/framesync-go/internal/cli/connection"
	"github.com/yndnr/framesync-go/internal/cli/output"
	"github.com/yndnr/framesync-go/internal/server/adminserver"
)

// StatusCommand returns the status command.
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "Show coordinator status and registered nodes",
		Action: status,
	}
}

func status(c *cli.Context) error {
	flags, err := ParseGlobalFlags(c)
	if err != nil {
		return err
	}

	client := connection.NewAdminClient(flags.Admin, nil)
	ctx, cancel := context.WithTimeout(c.Context, connection.DefaultTimeout)
	defer cancel()

	st, err := client.Status(ctx)
	if err != nil {
		return fmt.Errorf("status from %s: %w", client.BaseURL(), err)
	}
	return render(c, flags.Output, st, statusView{st})
}

type statusView struct {
	*adminserver.StatusResponse
}

func (v statusView) Tables() []*output.Table {
	r := v.Registry
	summary := &output.Table{Title: "Coordinator", Headers: []string{"FIELD", "VALUE"}}
	summary.AddRow("version", v.Build.Version)
	summary.AddRow("protocol", strconv.Itoa(v.Build.Protocol))
	summary.AddRow("uptime", v.Uptime)
	summary.AddRow("sync_addr", v.SyncAddr)
	summary.AddRow("nodes", strconv.Itoa(len(r.Nodes)))
	summary.AddRow("next_merge", strconv.FormatUint(r.NextMerge, 10))
	summary.AddRow("pending_rounds", strconv.Itoa(r.PendingRounds))
	summary.AddRow("merged_total", strconv.FormatUint(r.Merged, 10))
	summary.AddRow("released_total", strconv.FormatUint(r.Released, 10))

	nodes := &output.Table{
		Title:   "Nodes",
		Headers: []string{"NODE", "SESSION", "REMOTE", "LAST_ROUND", "SUBMITTED", "LAST_SEEN"},
	}
	for _, n := range r.Nodes {
		nodes.AddRow(
			n.ID,
			n.SessionID,
			n.Remote,
			strconv.FormatUint(n.LastTag, 10),
			strconv.FormatBool(n.Submitted),
			formatTime(n.LastSeen),
		)
	}
	return []*output.Table{summary, nodes}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("15:04:05.000")
}
