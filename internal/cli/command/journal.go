package command

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/framesync-go/internal/cli/output"
	"github.com/yndnr/framesync-go/internal/core/domain"
	"github.com/yndnr/framesync-go/internal/storage/journal"
)

// JournalCommand returns the journal command.
func JournalCommand() *cli.Command {
	return &cli.Command{
		Name:  "journal",
		Usage: "List merged rounds from a coordinator journal directory",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "dir",
				Aliases:  []string{"d"},
				Usage:    "Journal directory (journal.dir of the server)",
				Required: true,
			},
			&cli.Uint64Flag{
				Name:  "from",
				Usage: "First server round to list",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum rounds to list (0 for all)",
				Value: 20,
			},
			&cli.IntFlag{
				Name:  "tail",
				Usage: "List the last N rounds instead of starting at --from",
			},
			&cli.BoolFlag{
				Name:  "events",
				Usage: "Include the event names of each round",
			},
		},
		Action: journalList,
	}
}

func journalList(c *cli.Context) error {
	flags, err := ParseGlobalFlags(c)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	j, err := journal.Open(journal.Options{Dir: c.String("dir"), ReadOnly: true}, logger)
	if err != nil {
		return err
	}
	defer j.Close()

	from, limit := c.Uint64("from"), c.Int("limit")
	if tail := c.Int("tail"); tail > 0 {
		last, err := j.Last()
		if errors.Is(err, journal.ErrNotFound) {
			return render(c, flags.Output, []journalRow{}, journalView{})
		}
		if err != nil {
			return err
		}
		from, limit = 0, tail
		if last.Round+1 > uint64(tail) {
			from = last.Round + 1 - uint64(tail)
		}
	}

	entries, err := j.Range(from, limit)
	if err != nil {
		return fmt.Errorf("read journal: %w", err)
	}

	withEvents := c.Bool("events")
	rows := make([]journalRow, len(entries))
	for i, e := range entries {
		rows[i] = newJournalRow(e, withEvents)
	}
	return render(c, flags.Output, rows, journalView{rows: rows, events: withEvents})
}

// journalRow is the printable form of a journal.Entry.
type journalRow struct {
	Round    uint64   `json:"round" yaml:"round"`
	Digest   string   `json:"digest" yaml:"digest"`
	At       string   `json:"at" yaml:"at"`
	Nodes    []string `json:"nodes" yaml:"nodes"`
	Missing  []string `json:"missing,omitempty" yaml:"missing,omitempty"`
	TimedOut bool     `json:"timed_out" yaml:"timed_out"`
	Count    int      `json:"event_count" yaml:"event_count"`
	Events   []string `json:"events,omitempty" yaml:"events,omitempty"`
}

func newJournalRow(e journal.Entry, withEvents bool) journalRow {
	row := journalRow{
		Round:    e.Round,
		Digest:   fmt.Sprintf("%016x", e.Digest),
		At:       e.At.UTC().Format("2006-01-02T15:04:05.000Z"),
		Nodes:    e.Nodes,
		Missing:  e.Missing,
		TimedOut: e.TimedOut,
		Count:    len(e.Events),
	}
	if withEvents {
		row.Events = domain.Names(e.Events)
	}
	return row
}

type journalView struct {
	rows   []journalRow
	events bool
}

func (v journalView) Tables() []*output.Table {
	t := &output.Table{Headers: []string{"ROUND", "DIGEST", "AT", "NODES", "MISSING", "TIMED_OUT", "EVENTS"}}
	for _, r := range v.rows {
		events := strconv.Itoa(r.Count)
		if v.events {
			events = strings.Join(r.Events, ",")
		}
		t.AddRow(
			strconv.FormatUint(r.Round, 10),
			r.Digest,
			r.At,
			strings.Join(r.Nodes, ","),
			strings.Join(r.Missing, ","),
			strconv.FormatBool(r.TimedOut),
			events,
		)
	}
	return []*output.Table{t}
}
