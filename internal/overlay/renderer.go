package overlay

import (
	"gocv.io/x/gocv"

	"github.com/camruler/camruler/internal/errors"
)

const componentName = "overlay"

// Renderer draws plans onto JPEG frames.
type Renderer struct {
	style   Style
	quality int
}

// NewRenderer returns a renderer encoding output at the given JPEG quality.
func NewRenderer(style Style, quality int) *Renderer {
	if quality <= 0 || quality > 100 {
		quality = 90
	}
	return &Renderer{style: style, quality: quality}
}

// Render decodes frame, draws plan and re-encodes it. An empty plan returns
// frame unchanged.
func (r *Renderer) Render(frame []byte, plan Plan) ([]byte, error) {
	if plan.Empty() {
		return frame, nil
	}

	img, err := gocv.IMDecode(frame, gocv.IMReadColor)
	if err != nil {
		return nil, r.wrap(err, "decode")
	}
	defer img.Close()
	if img.Empty() {
		return nil, r.wrap(errors.NewStd("frame decoded to an empty image"), "decode")
	}

	r.Draw(&img, plan)

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, img, []int{gocv.IMWriteJpegQuality, r.quality})
	if err != nil {
		return nil, r.wrap(err, "encode")
	}
	defer buf.Close()
	return append([]byte(nil), buf.GetBytes()...), nil
}

// Draw paints plan onto img in place.
func (r *Renderer) Draw(img *gocv.Mat, plan Plan) {
	s := r.style
	for _, l := range plan.Lines {
		gocv.Line(img, l.From, l.To, s.LineColor, s.Thickness)
		gocv.PutText(img, l.Label.Text, l.Label.At, gocv.FontHersheySimplex, s.FontScale, s.LineColor, s.Thickness)
	}
	for _, m := range plan.Markers {
		gocv.Circle(img, m.Center, s.MarkerRadius, s.MarkerColor, -1)
		gocv.PutText(img, m.Label.Text, m.Label.At, gocv.FontHersheySimplex, s.FontScale, s.MarkerColor, s.Thickness)
	}
}

func (r *Renderer) wrap(err error, op string) error {
	return errors.New(err).
		Component(componentName).
		Category(errors.CategoryImageProcessing).
		Context("operation", op).
		Build()
}
