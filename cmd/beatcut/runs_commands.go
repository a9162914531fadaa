package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"beatcut/internal/config"
	"beatcut/internal/report"
	"beatcut/internal/store"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "Browse run history",
	}
	runsCmd.AddCommand(newRunsListCommand(ctx))
	runsCmd.AddCommand(newRunsShowCommand(ctx))
	return runsCmd
}

func newRunsListCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				runs, err := st.ListRuns(cmd.Context(), limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				rows := make([][]string, 0, len(runs))
				for _, run := range runs {
					status := string(run.Status)
					if run.Status == store.StatusFailed && run.ErrorKind != "" {
						status = fmt.Sprintf("%s (%s)", status, run.ErrorKind)
					}
					rows = append(rows, []string{
						shortRunID(run.ID),
						formatWhen(run.CreatedAt),
						status,
						fmt.Sprintf("%.1f", run.Tempo),
						strconv.Itoa(run.EntryCount),
						displayPath(run.AudioPath),
					})
				}
				fmt.Fprintln(out, report.Table(
					[]string{"Run", "Started", "Status", "BPM", "Cuts", "Audio"},
					rows,
					3, 4,
				))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show (0 for all)")
	return cmd
}

func newRunsShowCommand(ctx *commandContext) *cobra.Command {
	var showReport bool

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run and its report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				run, err := findRun(cmd, st, args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Run:      %s\n", run.ID)
				fmt.Fprintf(out, "Status:   %s\n", run.Status)
				if run.Stage != "" && run.Status.Terminal() {
					fmt.Fprintf(out, "Stage:    %s\n", run.Stage)
				}
				if run.ErrorKind != "" {
					fmt.Fprintf(out, "Error:    %s: %s\n", run.ErrorKind, run.ErrorMessage)
				}
				fmt.Fprintf(out, "Audio:    %s\n", run.AudioPath)
				fmt.Fprintf(out, "Seed:     %d\n", run.Seed)
				fmt.Fprintf(out, "Tempo:    %.1f BPM\n", run.Tempo)
				fmt.Fprintf(out, "Cuts:     %d\n", run.EntryCount)
				fmt.Fprintf(out, "Started:  %s\n", formatWhen(run.CreatedAt))
				fmt.Fprintf(out, "Updated:  %s\n", formatWhen(run.UpdatedAt))
				if run.OutputPath != "" {
					fmt.Fprintf(out, "Output:   %s\n", run.OutputPath)
				}
				if run.ReportPath != "" {
					fmt.Fprintf(out, "Report:   %s\n", run.ReportPath)
				}
				if !showReport || run.ReportPath == "" {
					return nil
				}
				data, err := os.ReadFile(run.ReportPath)
				if err != nil {
					return fmt.Errorf("read report: %w", err)
				}
				fmt.Fprintln(out)
				fmt.Fprint(out, string(data))
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&showReport, "report", "r", false, "Print the full run report")
	return cmd
}

// findRun resolves a full run id or a unique prefix of one.
func findRun(cmd *cobra.Command, st *store.Store, ref string) (*store.Run, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("run id is required")
	}
	run, err := st.GetRun(cmd.Context(), ref)
	if err != nil {
		return nil, err
	}
	if run != nil {
		return run, nil
	}
	runs, err := st.ListRuns(cmd.Context(), 0)
	if err != nil {
		return nil, err
	}
	var match *store.Run
	for _, candidate := range runs {
		if !strings.HasPrefix(candidate.ID, ref) {
			continue
		}
		if match != nil {
			return nil, fmt.Errorf("run id prefix %q is ambiguous", ref)
		}
		match = candidate
	}
	if match == nil {
		return nil, fmt.Errorf("run %s not found", ref)
	}
	return match, nil
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func displayPath(path string) string {
	const maxLen = 48
	if len(path) <= maxLen {
		return path
	}
	return "…" + path[len(path)-maxLen+1:]
}
