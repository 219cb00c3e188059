// Package measure measures points offline, optionally on a still image.
package measure

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/camruler/camruler/internal/app"
	"github.com/camruler/camruler/internal/errors"
	"github.com/camruler/camruler/internal/logger"
	ruler "github.com/camruler/camruler/internal/measure"
	"github.com/camruler/camruler/internal/overlay"
	"github.com/camruler/camruler/internal/session"
	"github.com/camruler/camruler/internal/video"
)

type options struct {
	points string
	ratio  float64
	image  string
	out    string
	save   bool
}

// Command creates the measure command.
func Command(ctx *app.Context) *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "measure",
		Short: "Measure the distances between points",
		Long: "Print the distance between each consecutive pair of points and the extent of all points. " +
			"With --image and --out the annotated image is written; with --save the measurement is appended " +
			"to the record table as the next product.",
		Example: "  camruler measure --points \"0,0;100,0;100,50\" --image part.jpg --out part-annotated.jpg --save",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, ctx, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.points, "points", "p", "", "Points as \"x,y;x,y;...\"")
	cmd.Flags().Float64Var(&opts.ratio, "ratio", 0, "Length per pixel (default: persisted calibration, then measurement.defaultratio)")
	cmd.Flags().StringVar(&opts.image, "image", "", "JPEG the points were picked on")
	cmd.Flags().StringVar(&opts.out, "out", "", "Write the annotated JPEG here (requires --image)")
	cmd.Flags().BoolVar(&opts.save, "save", false, "Append the measurement to the record table")
	_ = cmd.MarkFlagRequired("points")

	return cmd
}

func run(cmd *cobra.Command, ctx *app.Context, opts *options) error {
	s := ctx.Settings
	if opts.out != "" && opts.image == "" {
		return errors.ValidationError("--out requires --image")
	}
	points, err := ruler.ParsePoints(opts.points)
	if err != nil {
		return err
	}

	ratio := ruler.EffectiveRatio(s.Calibration.Ratio, s.Measurement.DefaultRatio)
	if cmd.Flags().Changed("ratio") {
		if !ruler.ValidRatio(opts.ratio) {
			return errors.New(ruler.ErrInvalidRatio).
				Component("cli").
				Category(errors.CategoryValidation).
				Context("ratio", opts.ratio).
				Build()
		}
		ratio = opts.ratio
	}

	var frame video.Frame
	if opts.image != "" {
		if frame, err = loadFrame(opts.image, points); err != nil {
			return err
		}
	}

	segments := ruler.Annotate(points, ratio)
	width, height, err := ruler.Extent(points, ratio)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	unit := s.Measurement.Unit
	fmt.Fprintf(out, "ratio: %.6f %s/px\n", ratio, unit)
	for _, row := range ruler.DistanceTable(segments) {
		fmt.Fprintf(out, "%s: %s %s\n", row.Pair, row.Distance, unit)
	}
	fmt.Fprintf(out, "width: %s %s, height: %s %s\n", ruler.FormatValue(width), unit, ruler.FormatValue(height), unit)

	if opts.out != "" {
		renderer := overlay.NewRenderer(overlay.DefaultStyle, s.Video.JPEGQuality)
		annotated, err := renderer.Render(frame.Data, overlay.MeasurementPlan(segments, unit))
		if err != nil {
			return err
		}
		if err := os.WriteFile(opts.out, annotated, 0o644); err != nil {
			return errors.FileError(err, opts.out)
		}
		fmt.Fprintf(out, "annotated image written to %s\n", opts.out)
	}

	if opts.save {
		return save(cmd, ctx, points, ratio)
	}
	return nil
}

// loadFrame reads a JPEG and checks every point lies on it.
func loadFrame(path string, points []ruler.Point) (video.Frame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return video.Frame{}, errors.FileError(err, path)
	}
	frame, err := video.DecodeJPEG(data)
	if err != nil {
		return video.Frame{}, err
	}
	for i, p := range points {
		if !frame.Contains(p.X, p.Y) {
			return video.Frame{}, errors.New(session.ErrPointOutOfFrame).
				Component("cli").
				Category(errors.CategoryValidation).
				Context("index", i).
				Context("x", p.X).
				Context("y", p.Y).
				Context("frame_width", frame.Width).
				Context("frame_height", frame.Height).
				Build()
		}
	}
	return frame, nil
}

// save appends the measurement as the product after the highest stored one.
func save(cmd *cobra.Command, ctx *app.Context, points []ruler.Point, ratio float64) error {
	store, err := ctx.OpenStore(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	last, err := store.LastProductNumber(cmd.Context())
	if err != nil {
		return err
	}
	rec, err := ruler.NewRecord(last+1, points, ratio)
	if err != nil {
		return err
	}
	if err := store.Append(cmd.Context(), rec); err != nil {
		return err
	}
	ctx.Log.Info("measurement saved", logger.Int("product", rec.Product), logger.String("csv", ctx.Settings.Output.CSV.Path))
	fmt.Fprintf(cmd.OutOrStdout(), "saved product %d\n", rec.Product)
	return nil
}
