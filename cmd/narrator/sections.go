package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/bobarin/narrator/internal/logging"
	"github.com/bobarin/narrator/internal/models"
	"github.com/bobarin/narrator/internal/sections"
	"github.com/bobarin/narrator/internal/timing"
)

func newSectionsCommand(ctx *commandContext) *cobra.Command {
	var (
		inputDir  string
		imagesDir string
		language  string
	)

	cmd := &cobra.Command{
		Use:   "sections",
		Short: "Show the section time ranges resolved from a timing file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.ensure()
			if err != nil {
				return err
			}

			in := timing.InputFor(inputDir, language)
			track, err := timing.Load(in.TimingPath)
			if err != nil {
				return err
			}

			if imagesDir == "" {
				imagesDir = filepath.Join(inputDir, "images")
			}
			cache := sections.NewImageCache(imagesDir, language, cfg.MaxImageWidth, logging.Component(logger, "images"))
			defer cache.Close()

			ranges := sections.Ordered(sections.NewResolver(logging.Component(logger, "sections")).Resolve(track, cache))
			if len(ranges) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no sections resolved")
				return nil
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Section", "Start", "End", "Duration", "Image"},
				sectionRows(ranges),
				[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVarP(&inputDir, "input", "i", "", "Directory holding timings_{lang}.json")
	cmd.Flags().StringVar(&imagesDir, "images", "", "Section image directory (default <input>/images)")
	cmd.Flags().StringVarP(&language, "lang", "l", "en", "Language to inspect")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func sectionRows(ranges []models.SectionTimeRange) [][]string {
	rows := make([][]string, 0, len(ranges))
	for _, r := range ranges {
		img := "missing"
		if r.Image != nil {
			b := r.Image.Bounds()
			img = fmt.Sprintf("%dx%d", b.Dx(), b.Dy())
		}
		rows = append(rows, []string{
			r.Name,
			formatClock(r.StartMs),
			formatClock(r.EndMs),
			formatClock(r.EndMs - r.StartMs),
			img,
		})
	}
	return rows
}

// formatClock renders milliseconds as m:ss.mmm.
func formatClock(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	return fmt.Sprintf("%d:%06.3f", int(d.Minutes()), (d % time.Minute).Seconds())
}
