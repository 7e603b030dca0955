package output

import (
	"io"
	"strings"
	"text/tabwriter"
)

// Tabler is implemented by values with a table layout. A value may
// render as several tables, printed one after another.
type Tabler interface {
	Tables() []*Table
}

// TableFormatter formats data as aligned tables.
type TableFormatter struct {
	NoHeaders bool
}

// Format implements Formatter. *Table, Table and Tabler are rendered
// as tables; anything else falls back to YAML.
func (f *TableFormatter) Format(w io.Writer, data any) error {
	switch v := data.(type) {
	case nil:
		return nil
	case *Table:
		return v.RenderWithOptions(w, f.NoHeaders)
	case Table:
		return v.RenderWithOptions(w, f.NoHeaders)
	case Tabler:
		for i, t := range v.Tables() {
			if i > 0 {
				if _, err := io.WriteString(w, "\n"); err != nil {
					return err
				}
			}
			if err := t.RenderWithOptions(w, f.NoHeaders); err != nil {
				return err
			}
		}
		return nil
	default:
		return (&YAMLFormatter{}).Format(w, data)
	}
}

// Table represents tabular data. A non-empty Title is printed above
// the headers.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// Render renders the table to the writer.
func (t *Table) Render(w io.Writer) error {
	return t.RenderWithOptions(w, false)
}

// RenderWithOptions renders the table, optionally without title and headers.
func (t *Table) RenderWithOptions(w io.Writer, noHeaders bool) error {
	if !noHeaders && t.Title != "" {
		if _, err := io.WriteString(w, t.Title+"\n"); err != nil {
			return err
		}
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if !noHeaders && len(t.Headers) > 0 {
		writeRow(tw, t.Headers)
	}
	for _, row := range t.Rows {
		writeRow(tw, row)
	}
	return tw.Flush()
}

// writeRow writes one tab-separated row. Empty cells print as "-".
func writeRow(w io.Writer, cells []string) {
	out := make([]string, len(cells))
	for i, cell := range cells {
		if cell == "" {
			cell = "-"
		}
		out[i] = cell
	}
	io.WriteString(w, strings.Join(out, "\t")+"\n")
}

// AddRow adds a row to the table.
func (t *Table) AddRow(cells ...string) {
	t.Rows = append(t.Rows, cells)
}

// SetHeaders sets the table headers.
func (t *Table) SetHeaders(headers ...string) {
	t.Headers = headers
}
