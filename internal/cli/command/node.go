package command

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	nodeconfig "github.com/yndnr/framesync-go/internal/node/config"
	"github.com/yndnr/framesync-go/internal/telemetry/logger"
	"github.com/yndnr/framesync-go/pkg/framesync"
)

// maxFPS keeps the frame interval at or above one millisecond.
const maxFPS = 1000

// NodeCommand returns the headless node harness command.
func NodeCommand() *cli.Command {
	return &cli.Command{
		Name:  "node",
		Usage: "Run a headless node that publishes one event per stdin line",
		Description: "Each stdin line is an event: a name followed by key=value fields, e.g.\n" +
			"   Brush_Move x=0.25 y=0.5 tool=pen pressed=true\n" +
			"Every delivered event is printed as \"<round> <event>\".",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "node-config",
				Aliases: []string{"n"},
				Usage:   "Node configuration file",
				EnvVars: []string{"FRAMESYNC_NODE_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "server",
				Usage: "Coordinator sync address, overrides server.address",
			},
			&cli.BoolFlag{
				Name:  "standalone",
				Usage: "Run without a coordinator",
			},
			&cli.IntFlag{
				Name:  "fps",
				Usage: "Frames per second (1-1000)",
				Value: 60,
			},
			&cli.IntFlag{
				Name:  "frames",
				Usage: "Stop after this many frames (0 runs until interrupted)",
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "Do not print delivered events",
			},
		},
		Action: runNode,
	}
}

func runNode(c *cli.Context) error {
	fps, frames := c.Int("fps"), c.Int("frames")
	if fps <= 0 || fps > maxFPS {
		return fmt.Errorf("--fps must be between 1 and %d, got %d", maxFPS, fps)
	}

	path := c.String("node-config")
	if path == "" {
		path = cliConfig(c).NodeConfig
	}
	overrides := map[string]any{}
	if addr := c.String("server"); addr != "" {
		overrides["server.address"] = addr
	}
	if c.Bool("standalone") {
		overrides["server.enabled"] = false
	}

	cfg, err := nodeconfig.Load(path, overrides)
	if err != nil {
		return err
	}
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: c.App.ErrWriter,
	})
	if err != nil {
		return err
	}
	slogger := logger.Slog(log)

	node, err := framesync.New(cfg, framesync.WithLogger(slogger))
	if err != nil {
		return err
	}
	defer node.Close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithNodeID(logger.WithLogger(ctx, log), node.ID())

	if err := node.Start(ctx); err != nil {
		return err
	}
	if path != "" {
		if err := node.Watch(path, overrides); err != nil {
			slogger.Warn("config watch disabled", "path", path, "error", err)
		}
	}

	go func() {
		scanner := bufio.NewScanner(c.App.Reader)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			e, err := parseEventLine(line)
			if err != nil {
				logger.L(ctx).Warn("skipping input line", "line", line, "error", err)
				continue
			}
			if err := node.Publish(e); err != nil {
				return
			}
		}
	}()

	w := c.App.Writer
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

loop:
	for frame := 0; frames == 0 || frame < frames; frame++ {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
		}

		round := node.Round()
		events, err := node.OnFrameBegin(ctx)
		if err != nil {
			return err
		}
		logger.L(logger.WithRound(ctx, uint64(round))).Debug("frame delivered",
			"events", len(events),
			"state", node.State().String())
		if !c.Bool("quiet") {
			for _, e := range events {
				fmt.Fprintf(w, "%d %s\n", round, formatEvent(e))
			}
		}
		if err := node.OnRenderComplete(ctx); err != nil {
			return err
		}
	}

	printNodeStats(w, node.Stats())
	return nil
}

func printNodeStats(w io.Writer, st framesync.Stats) {
	fmt.Fprintf(w, "frames=%d synced=%d degraded=%d missed_barriers=%d discarded=%d violations=%d reconnects=%d\n",
		st.Rounds, st.SyncedRounds, st.DegradedRounds, st.MissedBarriers, st.Discarded, st.Violations, st.Reconnects)
}

// parseEventLine parses "name key=value ...". Values that parse as
// numbers or booleans keep that type; everything else is a string.
func parseEventLine(line string) (framesync.Event, error) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return framesync.Event{}, fmt.Errorf("empty event line")
	}

	kvs := make([]framesync.KV, 0, len(parts)-1)
	for _, p := range parts[1:] {
		key, raw, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return framesync.Event{}, fmt.Errorf("field %q is not key=value", p)
		}
		kvs = append(kvs, framesync.KV{Key: key, Value: parseValue(raw)})
	}
	return framesync.NewEvent(parts[0], kvs...)
}

func parseValue(raw string) any {
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	switch raw {
	case "true":
		return true
	case "false":
		return false
	}
	return raw
}

// formatEvent renders e in the same "name key=value" form parseEventLine reads.
func formatEvent(e framesync.Event) string {
	var b strings.Builder
	b.WriteString(e.Name())
	for _, f := range e.Fields() {
		b.WriteByte(' ')
		b.WriteString(f.Key)
		b.WriteByte('=')
		switch v := f.Value().(type) {
		case float64:
			b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		default:
			fmt.Fprint(&b, v)
		}
	}
	return b.String()
}
