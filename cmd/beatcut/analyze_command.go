package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"beatcut/internal/audio"
	"beatcut/internal/project"
	"beatcut/internal/report"
)

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var (
		name        string
		mode        string
		target      float64
		sensitivity float64
		list        bool
	)

	cmd := &cobra.Command{
		Use:   "analyze [audio|number]",
		Short: "Analyze a track and store it as a reusable project",
		Long: "Detects tempo and beats, splits the track into segments and writes\n" +
			"manifest.json and timecodes.txt under <data_dir>/projects/<slug>/.\n\n" +
			"Without an argument, lists the tracks in paths.music_dir. A track can be\n" +
			"named by path, by file name inside the music directory, or by its number.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if list || len(args) == 0 {
				return printMusic(cmd.OutOrStdout(), cfg.Paths.MusicDir)
			}
			audioPath, err := project.ResolveAudio(cfg.Paths.MusicDir, args[0])
			if err != nil {
				return err
			}
			logger, err := ctx.logger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			opts := audio.SegmentOptions{
				Mode:          cfg.Analysis.SegmentMode,
				TargetSegment: cfg.Analysis.TargetSegment,
				Sensitivity:   cfg.Analysis.Sensitivity,
			}
			if cmd.Flags().Changed("mode") {
				opts.Mode = strings.ToLower(strings.TrimSpace(mode))
			}
			switch opts.Mode {
			case audio.ModeBeat, audio.ModeOnset, audio.ModeUniform:
			default:
				return fmt.Errorf("unsupported segment mode %q (use beat, onset or uniform)", opts.Mode)
			}
			if cmd.Flags().Changed("target") {
				opts.TargetSegment = target
			}
			if cmd.Flags().Changed("sensitivity") {
				if sensitivity <= 0 {
					return errors.New("--sensitivity must be positive")
				}
				opts.Sensitivity = sensitivity
			}

			analyzer := audio.NewAnalyzer(cfg.Analysis, audio.FFmpegDecoder{Binary: cfg.Encoding.FFmpegBinary}, logger)
			track, err := analyzer.Analyze(cmd.Context(), audioPath)
			if err != nil {
				return err
			}
			segments := audio.Segments(track, opts)
			manifest, err := project.Create(cfg.ProjectsDir(), audioPath, name, project.NewAnalysis(track, segments, opts.Mode), time.Now())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Project:  %s\n", manifest.Slug)
			fmt.Fprintf(out, "Location: %s\n", manifest.Dir())
			fmt.Fprintf(out, "Tempo:    %.1f BPM\n", track.Tempo)
			fmt.Fprintf(out, "Duration: %.1fs\n", track.Duration)
			fmt.Fprintf(out, "Beats:    %d\n", len(track.Beats))
			fmt.Fprintf(out, "Segments: %d (%s)\n", len(segments), opts.Mode)
			fmt.Fprintf(out, "Generate with: beatcut generate %s\n", manifest.Slug)
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Project name (defaults to the file name)")
	cmd.Flags().StringVarP(&mode, "mode", "m", "", "Segment mode: beat, onset or uniform")
	cmd.Flags().Float64Var(&target, "target", 0, "Target segment length in seconds")
	cmd.Flags().Float64Var(&sensitivity, "sensitivity", 0, "Cut density multiplier (higher cuts more often)")
	cmd.Flags().BoolVarP(&list, "list", "l", false, "List tracks in the music directory")
	return cmd
}

func printMusic(out io.Writer, dir string) error {
	files, err := project.ListMusic(dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Fprintf(out, "No audio files in %s\n", dir)
		return nil
	}
	rows := make([][]string, 0, len(files))
	for i, f := range files {
		rows = append(rows, []string{strconv.Itoa(i + 1), f.Name, humanize.IBytes(uint64(f.SizeBytes))})
	}
	fmt.Fprintf(out, "Tracks in %s\n", dir)
	fmt.Fprintln(out, report.Table([]string{"#", "Track", "Size"}, rows, 0, 2))
	fmt.Fprintln(out, "Analyze with: beatcut analyze <number|file>")
	return nil
}
