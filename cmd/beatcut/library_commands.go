package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"beatcut/internal/config"
	"beatcut/internal/library"
	"beatcut/internal/logging"
	"beatcut/internal/report"
	"beatcut/internal/store"
)

func newLibraryCommand(ctx *commandContext) *cobra.Command {
	libraryCmd := &cobra.Command{
		Use:   "library",
		Short: "Inspect the clip library and its usage history",
	}
	libraryCmd.AddCommand(newLibraryListCommand(ctx))
	libraryCmd.AddCommand(newLibraryUsageCommand(ctx))
	libraryCmd.AddCommand(newLibraryResetUsageCommand(ctx))
	return libraryCmd
}

func newLibraryListCommand(ctx *commandContext) *cobra.Command {
	var (
		tags        []string
		excludeTags []string
		minHeight   int
		orientation string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List clips that match the selection filters",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.logger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				idx, err := library.Open(cmd.Context(), cfg, st, logger)
				if err != nil {
					return err
				}
				filter := library.Filter{
					Tags:        cfg.Selection.Tags,
					ExcludeTags: cfg.Selection.ExcludeTags,
					MinHeight:   cfg.Selection.MinHeight,
					Orientation: cfg.Selection.Orientation,
				}
				if cmd.Flags().Changed("tag") {
					filter.Tags = tags
				}
				if cmd.Flags().Changed("exclude-tag") {
					filter.ExcludeTags = excludeTags
				}
				if cmd.Flags().Changed("min-height") {
					filter.MinHeight = minHeight
				}
				if cmd.Flags().Changed("orientation") {
					filter.Orientation = strings.ToLower(strings.TrimSpace(orientation))
					if filter.Orientation == "any" {
						filter.Orientation = ""
					}
				}
				clips, err := idx.ListCandidates(cmd.Context(), filter)
				if err != nil {
					return err
				}

				var rows [][]string
				var total int64
				for clip := range clips {
					rows = append(rows, []string{
						clip.ID,
						clip.Name,
						fmt.Sprintf("%.1fs", clip.Duration),
						clip.Resolution(),
						clip.Codec,
						humanize.IBytes(uint64(max(clip.SizeBytes, 0))),
						strings.Join(clip.Tags, ", "),
						strconv.Itoa(clip.UsageCount),
					})
					total += clip.SizeBytes
				}
				out := cmd.OutOrStdout()
				if len(rows) == 0 {
					fmt.Fprintln(out, "No clips match the current filters")
					return nil
				}
				fmt.Fprintln(out, report.Table(
					[]string{"ID", "Name", "Length", "Resolution", "Codec", "Size", "Tags", "Uses"},
					rows,
					2, 5, 7,
				))
				fmt.Fprintf(out, "%d of %d clips · %s · source %s\n", len(rows), idx.Len(), humanize.IBytes(uint64(max(total, 0))), idx.Source())
				if skipped := idx.Skipped(); len(skipped) > 0 {
					fmt.Fprintf(out, "%d clips skipped (see log for details)\n", len(skipped))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&tags, "tag", nil, "Only clips with any of these tags")
	cmd.Flags().StringSliceVar(&excludeTags, "exclude-tag", nil, "Skip clips with any of these tags")
	cmd.Flags().IntVar(&minHeight, "min-height", 0, "Minimum clip height in pixels")
	cmd.Flags().StringVar(&orientation, "orientation", "", "any, landscape or portrait")
	return cmd
}

func newLibraryUsageCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Show how often clips have been used",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				usage, err := st.AllUsage(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(usage) == 0 {
					fmt.Fprintln(out, "No clip usage recorded")
					return nil
				}
				if limit > 0 && len(usage) > limit {
					usage = usage[:limit]
				}
				rows := make([][]string, 0, len(usage))
				for _, u := range usage {
					rows = append(rows, []string{u.ClipID, strconv.Itoa(u.Count), formatWhen(u.LastUsedAt)})
				}
				fmt.Fprintln(out, report.Table([]string{"Clip", "Uses", "Last used"}, rows, 1))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show at most this many clips")
	return cmd
}

func newLibraryResetUsageCommand(ctx *commandContext) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset-usage",
		Short: "Clear usage counts and cooldown history",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("reset-usage clears every usage count; rerun with --yes to confirm")
			}
			logger, err := ctx.logger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				removed, err := st.ResetUsage(cmd.Context())
				if err != nil {
					return err
				}
				logger.Info("usage reset", logging.Int64("clips", removed))
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared usage for %d clips\n", removed)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm the reset")
	return cmd
}

func formatWhen(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return fmt.Sprintf("%s (%s)", t.Local().Format("2006-01-02 15:04"), humanize.Time(t))
}
