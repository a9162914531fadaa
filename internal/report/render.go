package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"beatcut/internal/textutil"
)

// Render formats the report as plain text.
func Render(r RunReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "beatcut run %s\n", r.RunID)
	fmt.Fprintf(&b, "Status:   %s\n", textutil.Title(r.Status))
	if r.Failed() {
		stage := r.FailedStage
		if stage == "" {
			stage = "unknown"
		}
		fmt.Fprintf(&b, "Failed:   %s (%s)\n", stage, r.ErrorKind)
		fmt.Fprintf(&b, "Error:    %s\n", r.ErrorMessage)
	}
	fmt.Fprintf(&b, "Seed:     %d\n", r.Seed)
	if !r.StartedAt.IsZero() {
		fmt.Fprintf(&b, "Started:  %s\n", r.StartedAt.Format(time.RFC3339))
	}
	if !r.FinishedAt.IsZero() {
		fmt.Fprintf(&b, "Finished: %s\n", r.FinishedAt.Format(time.RFC3339))
	}
	if r.OutputPath != "" {
		fmt.Fprintf(&b, "Output:   %s (%s)\n", r.OutputPath, humanize.IBytes(uint64(max(r.OutputSize, 0))))
	}

	if r.Track != nil {
		b.WriteString("\nTrack\n")
		fmt.Fprintf(&b, "  %s\n", r.Track.Path)
		fmt.Fprintf(&b, "  %s · %.1f BPM · %d beats\n", seconds(r.Track.Duration), r.Track.Tempo, r.Track.Beats)
	}

	if len(r.Entries) > 0 {
		rows := make([][]string, 0, len(r.Entries))
		for _, e := range r.Entries {
			name := e.ClipID
			if e.ClipName != "" && e.ClipName != e.ClipID {
				name = e.ClipID + " " + e.ClipName
			}
			loop := ""
			if e.Loop {
				loop = "yes"
			}
			rows = append(rows, []string{
				strconv.Itoa(e.Index + 1),
				seconds(e.Start),
				seconds(e.Duration),
				name,
				seconds(e.SourceIn) + "-" + seconds(e.SourceOut),
				loop,
			})
		}
		section(&b, fmt.Sprintf("Edit list (%d cuts, %d clips)", len(r.Entries), len(r.ClipsUsed)),
			[]string{"#", "Start", "Length", "Clip", "Source", "Loop"}, rows, 0, 1, 2)
	}

	if len(r.Groups) > 0 {
		limit := min(len(r.Groups), maxGroups)
		rows := make([][]string, 0, limit)
		for _, g := range r.Groups[:limit] {
			rows = append(rows, []string{g.Codec, g.Resolution, strconv.Itoa(g.Count), humanize.IBytes(uint64(max(g.SizeBytes, 0)))})
		}
		section(&b, "Clips by format", []string{"Codec", "Resolution", "Clips", "Size"}, rows, 2, 3)
		if rest := len(r.Groups) - limit; rest > 0 {
			fmt.Fprintf(&b, "... and %d more groups\n", rest)
		}
	}

	if len(r.Warnings) > 0 {
		rows := make([][]string, 0, len(r.Warnings))
		for _, w := range r.Warnings {
			rows = append(rows, []string{w.Stage, w.Code, w.Message})
		}
		section(&b, "Warnings", []string{"Stage", "Code", "Message"}, rows)
	}

	if len(r.Timings) > 0 {
		rows := make([][]string, 0, len(r.Timings))
		var total time.Duration
		for _, t := range r.Timings {
			rows = append(rows, []string{textutil.Title(t.Stage), t.Elapsed.Round(time.Millisecond).String()})
			total += t.Elapsed
		}
		rows = append(rows, []string{"Total", total.Round(time.Millisecond).String()})
		section(&b, "Stage timings", []string{"Stage", "Elapsed"}, rows, 1)
	}
	return b.String()
}

// Write renders r to path, creating parent directories.
func Write(path string, r RunReport) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(Render(r)), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func section(b *strings.Builder, title string, headers []string, rows [][]string, rightAligned ...int) {
	b.WriteString("\n")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(Table(headers, rows, rightAligned...))
	b.WriteString("\n")
}

// Table renders rows under headers as a light box table. Columns listed in
// rightAligned (zero-based) are right aligned; headers stay left aligned.
// Short rows are padded with empty cells.
func Table(headers []string, rows [][]string, rightAligned ...int) string {
	if len(headers) == 0 {
		return ""
	}
	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)

	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)
	for _, row := range rows {
		r := make(table.Row, len(headers))
		for i := range headers {
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, len(rightAligned))
	for _, idx := range rightAligned {
		configs = append(configs, table.ColumnConfig{Number: idx + 1, Align: text.AlignRight, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

func seconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64) + "s"
}
