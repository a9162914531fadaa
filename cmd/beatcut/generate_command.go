package main

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"beatcut/internal/config"
	"beatcut/internal/render"
	"beatcut/internal/store"
	"beatcut/internal/workflow"
)

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var (
		outputPath string
		reportPath string
		seed       int64
		noProgress bool
	)

	cmd := &cobra.Command{
		Use:   "generate <audio|project>",
		Short: "Render a beat-synchronized video for a track",
		Long: "Analyzes the track (or reuses an analyzed project), selects clips from the\n" +
			"library, aligns cuts to the beat grid and renders the result with ffmpeg.\n" +
			"A run report is written whether or not the run succeeds.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.logger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				req := workflow.Request{
					Source:     args[0],
					OutputPath: outputPath,
					ReportPath: reportPath,
					Seed:       seed,
				}
				var bar *progressbar.ProgressBar
				if !noProgress && isTerminal(cmd.ErrOrStderr()) {
					bar = newRenderBar(cmd.ErrOrStderr())
					req.Progress = func(p render.Progress) {
						bar.Describe(p.Phase)
						_ = bar.Set(int(p.Percent))
					}
				}

				runner := workflow.NewRunner(cfg, st, logger)
				res, runErr := runner.Run(cmd.Context(), req)
				if bar != nil {
					_ = bar.Finish()
					fmt.Fprintln(cmd.ErrOrStderr())
				}
				if res != nil {
					printRunResult(cmd.OutOrStdout(), res)
				}
				return runErr
			})
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file (defaults to <output_dir>/<track>-<run>.<container>)")
	cmd.Flags().StringVar(&reportPath, "report", "", "Report file (defaults to next to the output)")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Random seed (0 uses selection.seed or a random seed)")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable the progress bar")
	return cmd
}

func printRunResult(out io.Writer, res *workflow.Result) {
	fmt.Fprintf(out, "Run:    %s (%s)\n", res.RunID, res.Status)
	fmt.Fprintf(out, "Seed:   %d\n", res.Seed)
	if res.OutputPath != "" {
		fmt.Fprintf(out, "Output: %s (%s)\n", res.OutputPath, humanize.IBytes(uint64(max(res.Report.OutputSize, 0))))
	}
	if res.ReportPath != "" {
		fmt.Fprintf(out, "Report: %s\n", res.ReportPath)
	}
	if n := len(res.Report.Warnings); n > 0 {
		fmt.Fprintf(out, "Warnings: %d\n", n)
		for _, w := range res.Report.Warnings {
			fmt.Fprintf(out, "  - %s\n", w)
		}
	}
}

func newRenderBar(w io.Writer) *progressbar.ProgressBar {
	return progressbar.NewOptions(100,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("render"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionClearOnFinish(),
	)
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
