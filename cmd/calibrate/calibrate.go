// Package calibrate computes a calibration ratio from two reference points.
package calibrate

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/camruler/camruler/internal/app"
	"github.com/camruler/camruler/internal/errors"
	"github.com/camruler/camruler/internal/logger"
	"github.com/camruler/camruler/internal/measure"
)

type options struct {
	p1, p2 string
	known  float64
	save   bool
}

// Command creates the calibrate command.
func Command(ctx *app.Context) *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "calibrate",
		Short: "Compute the length per pixel from two reference points",
		Long: "Compute the calibration ratio from two points spanning a reference of known length. " +
			"With --save the ratio is written to the config file and used as the starting ratio of new sessions.",
		Example: "  camruler calibrate --p1 10,20 --p2 283,20 --known 15 --save",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, ctx, opts)
		},
	}

	cmd.Flags().StringVar(&opts.p1, "p1", "", "First reference point as x,y")
	cmd.Flags().StringVar(&opts.p2, "p2", "", "Second reference point as x,y")
	cmd.Flags().Float64Var(&opts.known, "known", 0, "Known length between the points (default from calibration.knownlength)")
	cmd.Flags().BoolVar(&opts.save, "save", false, "Persist the ratio to the config file")
	_ = cmd.MarkFlagRequired("p1")
	_ = cmd.MarkFlagRequired("p2")

	return cmd
}

func run(cmd *cobra.Command, ctx *app.Context, opts *options) error {
	s := ctx.Settings
	p1, err := measure.ParsePoint(opts.p1)
	if err != nil {
		return err
	}
	p2, err := measure.ParsePoint(opts.p2)
	if err != nil {
		return err
	}

	known := opts.known
	if !cmd.Flags().Changed("known") {
		known = s.Calibration.KnownLength
	}
	if known < s.Calibration.MinLength {
		return errors.New(measure.ErrInvalidKnownLength).
			Component("cli").
			Category(errors.CategoryValidation).
			Context("known_length", known).
			Context("min_length", s.Calibration.MinLength).
			Build()
	}

	ratio, err := measure.CalibrateWithEpsilon(p1, p2, known, s.Calibration.Epsilon)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "pixel distance: %.2f px\n", measure.PixelDistance(p1, p2))
	fmt.Fprintf(out, "known length:   %s %s\n", measure.FormatValue(known), s.Measurement.Unit)
	fmt.Fprintf(out, "ratio:          %.6f %s/px\n", ratio, s.Measurement.Unit)

	if !opts.save {
		return nil
	}
	s.Calibration.Persist = true
	if _, err := ctx.PersistRatio(ratio); err != nil {
		return err
	}
	ctx.Log.Debug("ratio saved", logger.Float64("ratio", ratio))
	return nil
}
