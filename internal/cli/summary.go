package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/samber/lo"

	"github.com/networkteam/rocketworld/world"
)

func renderSummary(w io.Writer, results []world.Result) {
	if len(results) == 0 {
		fmt.Fprintln(w, text.FgYellow.Sprint("No scenarios were run"))
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.Style().Format.Footer = text.FormatDefault
	t.AppendHeader(table.Row{"SCENARIO", "RESULT", "DURATION", "TRACE", "VIDEO"})

	for _, r := range results {
		result := text.FgGreen.Sprint("passed")
		if !r.Passed {
			result = text.FgRed.Sprint("failed")
		}
		t.AppendRow(table.Row{
			r.Scenario,
			result,
			r.Duration.Round(time.Millisecond),
			r.Artifacts.TracePath,
			r.Artifacts.VideoPath,
		})
	}

	passed := lo.CountBy(results, func(r world.Result) bool { return r.Passed })
	t.AppendFooter(table.Row{"TOTAL", fmt.Sprintf("%d/%d passed", passed, len(results))})

	t.Render()
}
