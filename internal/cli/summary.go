package cli

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/raphaelgruber/seedforge/internal/metrics"
	"github.com/raphaelgruber/seedforge/internal/service"
)

// renderSummary builds the end-of-run table from the run result and metrics.
func renderSummary(res *service.Result, snap metrics.Snapshot) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Metric", "Value"})

	tw.AppendRows([]table.Row{
		{"Run", res.RunID},
		{"Outcome", res.Outcome.String()},
		{"Seeds", res.Total},
		{"Submitted", res.Submitted},
		{"Completed", res.Completed},
		{"Failed", len(res.Failures)},
		{"Records", len(res.Records)},
		{"Snapshots", res.Snapshots},
		{"Elapsed", res.Elapsed.Round(time.Second).String()},
	})

	if retries := snap.Counters[metrics.CounterRetries]; retries > 0 {
		tw.AppendRow(table.Row{"Retries", retries})
	}
	if empty := snap.Counters[metrics.CounterEmptyReplies]; empty > 0 {
		tw.AppendRow(table.Row{"Empty replies", empty})
	}

	if op := snap.LLMGenerate; op != nil {
		tw.AppendSeparator()
		tw.AppendRow(table.Row{"LLM calls", op.Count})
		tw.AppendRow(table.Row{"Avg latency", fmt.Sprintf("%.0f ms", op.AvgTimeMs)})
		if op.TotalInputTokens != nil && op.TotalOutputTokens != nil {
			tw.AppendRow(table.Row{"Tokens (in/out)", fmt.Sprintf("%d / %d", *op.TotalInputTokens, *op.TotalOutputTokens)})
		}
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft},
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})

	return tw.Render()
}
