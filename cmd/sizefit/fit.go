package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/harliandi/sizefit/internal/codec"
	"github.com/harliandi/sizefit/internal/config"
	"github.com/harliandi/sizefit/internal/converter"
	"github.com/harliandi/sizefit/internal/file"
	"github.com/harliandi/sizefit/internal/sizing"
)

type fitOptions struct {
	target    string
	tolerance float64
	format    string
	output    string
}

func newFitCmd(cfg *config.Config) *cobra.Command {
	var opts fitOptions

	cmd := &cobra.Command{
		Use:   "fit [flags] <path>",
		Short: "Re-encode an image so its file size lands near a target",
		Example: "  sizefit fit photo.png --target 100KB\n" +
			"  sizefit fit scan.heic --target 1.5MB --tolerance 10 --format webp -o out.webp",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFit(cmd, cfg, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.target, "target", "t", "", "target size, e.g. 2000B, 100KB, 1.5MB")
	cmd.Flags().Float64Var(&opts.tolerance, "tolerance", 0, "accepted deviation in percent, (0, 50] (default from config, 20)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "lossy format for sources without quality control: jpeg or webp")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output path (default <name>_resized<ext> next to the input)")
	_ = cmd.MarkFlagRequired("target")

	return cmd
}

func runFit(cmd *cobra.Command, cfg *config.Config, path string, opts fitOptions) error {
	targetBytes, err := sizing.ParseSize(opts.target)
	if err != nil {
		return err
	}

	tolerancePercent := cfg.TolerancePercent
	if cmd.Flags().Changed("tolerance") {
		tolerancePercent = opts.tolerance
	}
	tolerance, err := sizing.ToleranceFromPercent(tolerancePercent)
	if err != nil {
		return err
	}

	format := cfg.OutputFormat
	if opts.format != "" {
		format = codec.ParseFormat(opts.format)
		if !format.SupportsQuality() {
			return fmt.Errorf("%w: --format must be jpeg or webp, got %q", codec.ErrUnsupportedFormat, opts.format)
		}
	}

	src, err := codec.DecodeFile(path)
	if err != nil {
		return err
	}

	if targetBytes > 2*src.ByteSize {
		log.Warn().
			Str("target", sizing.FormatSize(targetBytes)).
			Str("original", sizing.FormatSize(src.ByteSize)).
			Msg("target is more than twice the original size; the image will not grow to meet it")
	}

	out, err := converter.New(format, tolerance).Fit(src, targetBytes, tolerance, format)
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

	band := sizing.TargetSpec{Bytes: targetBytes, Tolerance: tolerance}.Band()
	fmt.Fprintln(cmd.OutOrStdout(), renderSummary(fitRows(src, band, out, dest)))
	return nil
}
