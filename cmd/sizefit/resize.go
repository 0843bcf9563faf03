package main

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/harliandi/sizefit/internal/codec"
	"github.com/harliandi/sizefit/internal/config"
	"github.com/harliandi/sizefit/internal/converter"
	"github.com/harliandi/sizefit/internal/file"
	"github.com/harliandi/sizefit/internal/sizing"
)

type resizeOptions struct {
	width      int
	height     int
	keepAspect bool
	output     string
}

func newResizeCmd(cfg *config.Config) *cobra.Command {
	var opts resizeOptions

	cmd := &cobra.Command{
		Use:   "resize [flags] <path>",
		Short: "Resize an image to explicit pixel dimensions",
		Example: "  sizefit resize photo.jpg --width 800 --height 600\n" +
			"  sizefit resize photo.jpg --width 800 --keep-aspect",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResize(cmd, cfg, args[0], opts)
		},
	}

	cmd.Flags().IntVarP(&opts.width, "width", "W", 0, "output width in pixels")
	cmd.Flags().IntVarP(&opts.height, "height", "H", 0, "output height in pixels")
	cmd.Flags().BoolVarP(&opts.keepAspect, "keep-aspect", "k", false, "derive the missing dimension from the source aspect ratio")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output path (default <name>_resized<ext> next to the input)")

	return cmd
}

func runResize(cmd *cobra.Command, cfg *config.Config, path string, opts resizeOptions) error {
	src, err := codec.DecodeFile(path)
	if err != nil {
		return err
	}

	width, height, err := deriveDimensions(src.Width, src.Height, opts.width, opts.height, opts.keepAspect)
	if err != nil {
		return err
	}

	out, err := converter.New(cfg.OutputFormat, cfg.Tolerance()).Resize(src, width, height)
	if err != nil {
		return err
	}

	dest := opts.output
	if dest == "" {
		dest = file.ResizedPath(path, out.Format)
	} else if fixed := file.MatchExtension(dest, out.Format); fixed != dest {
		log.Warn().Str("requested", dest).Str("written", fixed).Str("format", out.Format.String()).
			Msg("output extension does not match the encoded format")
		dest = fixed
	}
	if err := file.WriteAtomic(dest, out.Data); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), renderSummary(resizeRows(src, out, dest)))
	return nil
}

// deriveDimensions resolves the requested output size. With keepAspect the
// width wins when both are given and the other side follows the source ratio.
func deriveDimensions(srcW, srcH, width, height int, keepAspect bool) (int, int, error) {
	if width < 0 || height < 0 {
		return 0, 0, fmt.Errorf("%w: dimensions must be positive", sizing.ErrInvalidTarget)
	}
	if width == 0 && height == 0 {
		return 0, 0, errors.New("--width or --height is required")
	}

	if keepAspect && srcW > 0 && srcH > 0 {
		ratio := float64(srcW) / float64(srcH)
		if width > 0 {
			height = int(float64(width) / ratio)
		} else {
			width = int(float64(height) * ratio)
		}
		if width < 1 || height < 1 {
			return 0, 0, fmt.Errorf("%w: derived size %dx%d is empty", sizing.ErrInvalidTarget, width, height)
		}
	}

	if width == 0 || height == 0 {
		return 0, 0, errors.New("--width and --height are both required without --keep-aspect")
	}
	return width, height, nil
}
