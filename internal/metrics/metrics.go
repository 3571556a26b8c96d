// Package metrics implements Progress/Metrics (spec §4.J): informational
// counters rendered as a console summary table, with an optional
// state-machine diagram export.
package metrics

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/textcorpus/posindex/internal/pipeline"
)

// FlavorResult pairs one flavor's final state with its counters, one row
// of the summary table.
type FlavorResult struct {
	Flavor string
	State  pipeline.State
	Stats  pipeline.StatsSnapshot
}

// WriteSummary renders one row per FlavorResult to w. Metrics are
// informational only and never influence correctness (spec §4.J).
func WriteSummary(w io.Writer, results []FlavorResult) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Flavor", "State", "Batches", "Tuples", "Bytes Spilled", "Unique Keys", "Merge Passes", "Wall Clock"})
	for _, r := range results {
		wall := "-"
		if !r.Stats.Started.IsZero() && !r.Stats.Finished.IsZero() {
			wall = r.Stats.Finished.Sub(r.Stats.Started).String()
		}
		t.AppendRow(table.Row{
			r.Flavor,
			r.State.String(),
			r.Stats.BatchesFetched,
			r.Stats.TuplesExtracted,
			r.Stats.BytesSpilled,
			r.Stats.UniqueKeysWritten,
			r.Stats.MergePasses,
			wall,
		})
	}
	t.Render()
}

// Summarize formats a single-line human summary, used for log lines
// outside of the final table (e.g. per-flavor completion messages).
func Summarize(flavor string, s pipeline.StatsSnapshot) string {
	return fmt.Sprintf("flavor=%s batches=%d tuples=%d unique_keys=%d bytes_spilled=%d",
		flavor, s.BatchesFetched, s.TuplesExtracted, s.UniqueKeysWritten, s.BytesSpilled)
}
