package audit

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
)

func newTable(title string) table.Writer {
	tw := table.NewWriter()
	tw.SetTitle(title)
	tw.SetStyle(table.StyleLight)
	return tw
}

// RenderRows writes the row invariant check as a table.
func RenderRows(w io.Writer, site string, r RowReport) error {
	status := "OK"
	if !r.OK() {
		status = "VIOLATED"
	}
	t := r.Totals()
	tw := newTable(fmt.Sprintf("%s: row invariant %s (%s raw = %s valid + %s rejected)", site, status,
		humanize.Comma(int64(t.Raw)), humanize.Comma(int64(t.Valid)), humanize.Comma(int64(t.Rejected))))
	tw.AppendHeader(table.Row{"Source", "Raw", "Valid", "Rejected", "Mismatch"})
	for _, s := range r.Sources {
		tw.AppendRow(table.Row{
			s.Source,
			humanize.Comma(int64(s.Raw)),
			humanize.Comma(int64(s.Valid)),
			humanize.Comma(int64(s.Rejected)),
			s.Mismatch(),
		})
	}
	_, err := fmt.Fprintln(w, tw.Render())
	return err
}

// RenderHours writes span-hours per source as a table.
func RenderHours(w io.Writer, site string, rows []HoursRow) error {
	var valid, rejected float64
	for _, h := range rows {
		valid += h.Valid
		rejected += h.Rejected
	}
	tw := newTable(fmt.Sprintf("%s: span-hours (%s total = %s valid + %s rejected)", site,
		humanize.CommafWithDigits(valid+rejected, 1), humanize.CommafWithDigits(valid, 1), humanize.CommafWithDigits(rejected, 1)))
	tw.AppendHeader(table.Row{"Source", "Valid", "Rejected", "Total"})
	for _, h := range rows {
		tw.AppendRow(table.Row{
			h.Source,
			humanize.CommafWithDigits(h.Valid, 1),
			humanize.CommafWithDigits(h.Rejected, 1),
			humanize.CommafWithDigits(h.Total(), 1),
		})
	}
	_, err := fmt.Fprintln(w, tw.Render())
	return err
}

// RenderSummary writes the rejected-row summary as a table.
func RenderSummary(w io.Writer, site string, s Summary) error {
	if s.Rejected == 0 {
		_, err := fmt.Fprintf(w, "%s: no rejected rows in window\n", site)
		return err
	}
	tw := newTable(fmt.Sprintf("%s: %s rejected / %s total", site,
		humanize.Comma(int64(s.Rejected)), humanize.Comma(int64(s.Total))))
	tw.AppendHeader(table.Row{"Start Year", "Source", "Status", "Rows", "% Of Source"})
	for _, r := range s.Rows {
		tw.AppendRow(table.Row{r.Year, r.Source, string(r.Status), humanize.Comma(int64(r.Rows)), fmt.Sprintf("%.1f", r.Percent)})
	}
	_, err := fmt.Fprintln(w, tw.Render())
	return err
}
