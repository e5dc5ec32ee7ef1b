package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bobarin/narrator/internal/deps"
	"github.com/bobarin/narrator/internal/logging"
	"github.com/bobarin/narrator/internal/models"
	"github.com/bobarin/narrator/internal/services"
	"github.com/bobarin/narrator/internal/shorts"
	"github.com/bobarin/narrator/internal/timing"
)

func newReflowCommand(ctx *commandContext) *cobra.Command {
	var (
		timingsPath string
		output      string
		contentOnly bool
	)

	cmd := &cobra.Command{
		Use:   "reflow <video>",
		Short: "Derive a 1080x1920 vertical cut from a landscape video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.ensure()
			if err != nil {
				return err
			}
			if err := deps.Require(deps.MediaRequirements(cfg.FFmpegBinary, cfg.FFprobeBinary)); err != nil {
				return err
			}

			source := args[0]
			if output == "" {
				output = defaultShortsPath(source)
			}

			var track *models.Track
			if timingsPath != "" {
				track, err = timing.Load(timingsPath)
				if err != nil {
					return err
				}
			}

			ffmpeg := services.NewFFmpegService(cfg.FFmpegBinary, cfg.FFprobeBinary, logging.Component(logger, "ffmpeg"))
			engine := shorts.NewEngine(ffmpeg, cfg.FPS, cfg.TempDir, logging.Component(logger, "shorts"))
			if err := engine.ToShorts(cmd.Context(), shorts.Request{
				Source:      source,
				Output:      output,
				Timing:      track,
				ContentOnly: contentOnly,
			}); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), output)
			return nil
		},
	}

	cmd.Flags().StringVar(&timingsPath, "timings", "", "Timing file of the narration, enables edge trimming")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output path (default shorts_<name>.mp4 beside the source)")
	cmd.Flags().BoolVar(&contentOnly, "content-only", false, "Source has no intro/outro; skip edge trimming")

	return cmd
}

// defaultShortsPath maps ".../video_en.mp4" to ".../shorts_en.mp4".
func defaultShortsPath(source string) string {
	dir, name := filepath.Split(source)
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for _, prefix := range []string{"video_", "content_"} {
		if strings.HasPrefix(stem, prefix) {
			stem = strings.TrimPrefix(stem, prefix)
			break
		}
	}
	if ext == "" {
		ext = ".mp4"
	}
	return filepath.Join(dir, "shorts_"+stem+ext)
}
